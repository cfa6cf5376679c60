package mismoxml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/loanglide/mismo/report"
)

// EventKind distinguishes walker callbacks.
type EventKind int

const (
	// StartElement fires when an element opens, with its attributes.
	StartElement EventKind = iota
	// EndElement fires when an element closes.
	EndElement
	// Text fires for non-whitespace character data inside an element.
	Text
)

// Event is one walker callback. Path is the full resolved element path
// using local names, e.g. /MESSAGE/DEAL_SETS/DEAL_SET.
type Event struct {
	Kind   EventKind
	Name   string
	Path   string
	Attrs  []xml.Attr
	Text   string
	Line   int
	Column int
}

// ErrStopWalk aborts a walk without reporting an error.
var ErrStopWalk = errors.New("stop walk")

// Walk parses the document and fires the callback per element boundary
// and text node. The document must already be well-formed; parse
// failures surface as errors.
func Walk(doc []byte, fn func(Event) error) error {
	lines := newLineIndex(doc)
	dec := xml.NewDecoder(bytes.NewReader(doc))

	var stack []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line, col := lines.position(dec.InputOffset())
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			ev := Event{
				Kind:   StartElement,
				Name:   t.Name.Local,
				Path:   "/" + strings.Join(stack, "/"),
				Attrs:  t.Attr,
				Line:   line,
				Column: col,
			}
			if err := fire(fn, ev); err != nil {
				return err
			}
		case xml.EndElement:
			ev := Event{
				Kind:   EndElement,
				Name:   t.Name.Local,
				Path:   "/" + strings.Join(stack, "/"),
				Line:   line,
				Column: col,
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			if err := fire(fn, ev); err != nil {
				return err
			}
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" || len(stack) == 0 {
				continue
			}
			ev := Event{
				Kind:   Text,
				Name:   stack[len(stack)-1],
				Path:   "/" + strings.Join(stack, "/"),
				Text:   text,
				Line:   line,
				Column: col,
			}
			if err := fire(fn, ev); err != nil {
				return err
			}
		}
	}
}

func fire(fn func(Event) error, ev Event) error {
	err := fn(ev)
	if errors.Is(err, ErrStopWalk) {
		return nil
	}
	return err
}

// CheckWellFormed verifies the document parses, has a root element, and
// contains no forbidden control characters. A non-empty result means
// the document must not be processed further.
func CheckWellFormed(doc []byte) report.List {
	var issues report.List

	if len(bytes.TrimSpace(doc)) == 0 {
		return report.List{report.New(report.CategoryWellFormedness,
			report.CodeMalformedXML, report.SeverityError,
			"document is empty", "")}
	}

	if issue, found := findControlCharacter(doc); found {
		issues = append(issues, issue)
	}

	dec := xml.NewDecoder(bytes.NewReader(doc))
	sawRoot := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			issue := report.Newf(report.CategoryWellFormedness,
				report.CodeMalformedXML, report.SeverityError, "",
				"document is not well-formed: %v", err)
			var syntaxErr *xml.SyntaxError
			if errors.As(err, &syntaxErr) {
				issue.Line = syntaxErr.Line
				issue.Column = 1
				issue.Message = "document is not well-formed: " + syntaxErr.Msg
			}
			return append(issues, issue)
		}
		if _, ok := tok.(xml.StartElement); ok {
			sawRoot = true
		}
	}

	if !sawRoot {
		issues = append(issues, report.New(report.CategoryWellFormedness,
			report.CodeMalformedXML, report.SeverityError,
			"document has no root element", ""))
	}
	return issues
}

func findControlCharacter(doc []byte) (report.Issue, bool) {
	lines := newLineIndex(doc)
	for i, b := range doc {
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			line, col := lines.position(int64(i))
			issue := report.Newf(report.CategoryWellFormedness,
				report.CodeControlCharacter, report.SeverityError, "",
				"forbidden control character 0x%02X", b)
			issue.Line = line
			issue.Column = col
			return issue, true
		}
	}
	return report.Issue{}, false
}

// RootElement returns the root element name and attributes without a
// full walk.
func RootElement(doc []byte) (string, []xml.Attr, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, start.Attr, nil
		}
	}
}

// lineIndex maps byte offsets to line and column numbers.
type lineIndex struct {
	starts []int64
}

func newLineIndex(doc []byte) *lineIndex {
	starts := []int64{0}
	for i, b := range doc {
		if b == '\n' {
			starts = append(starts, int64(i)+1)
		}
	}
	return &lineIndex{starts: starts}
}

func (l *lineIndex) position(offset int64) (line, column int) {
	idx := sort.Search(len(l.starts), func(i int) bool {
		return l.starts[i] > offset
	}) - 1
	if idx < 0 {
		idx = 0
	}
	return idx + 1, int(offset-l.starts[idx]) + 1
}
