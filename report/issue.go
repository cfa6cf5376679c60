package report

import (
	"errors"
	"fmt"
	"strings"
)

// Category buckets a validation issue by the kind of conformance check
// that produced it. Categories are fixed; reports group and count by them.
type Category string

const (
	// CategoryWellFormedness covers XML syntax failures. Fatal: nothing
	// downstream of a malformed document is checked.
	CategoryWellFormedness Category = "well-formedness"
	// CategoryStructure covers missing required elements, namespaces,
	// and version declarations.
	CategoryStructure Category = "structure"
	// CategoryEnum covers values outside a known LDD enumeration.
	CategoryEnum Category = "enum"
	// CategoryDatatype covers lexically malformed values (dates, phones,
	// SSNs, percentages, postal codes).
	CategoryDatatype Category = "datatype"
	// CategoryConditional covers conditionally required fields whose
	// triggering predicate fired.
	CategoryConditional Category = "conditional-required"
	// CategoryRequired covers unconditionally required fields.
	CategoryRequired Category = "required-field"
	// CategoryMappingGap covers inbound data retained but not mapped to
	// a canonical field. Never fatal: the data is kept, not lost.
	CategoryMappingGap Category = "mapping-gap"
	// CategorySensitive flags that a value was redacted before leaving
	// the engine. Informational.
	CategorySensitive Category = "sensitive-data"
	// CategoryExtension covers vendor-extension placement and value
	// violations under the EXTENSION/OTHER convention.
	CategoryExtension Category = "extension"
)

// Severity is the weight of an issue when deriving report status.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Code identifies a conformance issue precisely enough for callers to
// branch on it without parsing messages.
type Code string

const (
	// CodeMalformedXML indicates the document could not be parsed.
	CodeMalformedXML Code = "xml-malformed"
	// CodeControlCharacter indicates a forbidden control character in the document.
	CodeControlCharacter Code = "xml-control-character"
	// CodeRootElement indicates a missing or wrong root element.
	CodeRootElement Code = "structure-root-element"
	// CodeNamespaceMissing indicates a required namespace is not declared.
	CodeNamespaceMissing Code = "structure-namespace-missing"
	// CodeVersionIdentifier indicates a missing or unsupported MISMOVersionID.
	CodeVersionIdentifier Code = "structure-version-identifier"
	// CodeElementMissing indicates a required element chain is broken.
	CodeElementMissing Code = "structure-element-missing"
	// CodeLDDIdentifier indicates a missing or mismatched logical data
	// dictionary identifier.
	CodeLDDIdentifier Code = "structure-ldd-identifier"
	// CodeElementPairing indicates a container missing its expected companion
	// element (a LOAN without terms, a COLLATERAL without a subject property).
	CodeElementPairing Code = "structure-element-pairing"

	// CodeEnumViolation indicates a value outside a known enumeration.
	CodeEnumViolation Code = "enum-violation"
	// CodeDatatypeViolation indicates a lexically invalid value.
	CodeDatatypeViolation Code = "datatype-violation"
	// CodeValueOutOfRange indicates a parseable value outside its business range.
	CodeValueOutOfRange Code = "datatype-out-of-range"

	// CodeRequiredField indicates an unconditionally required canonical field is empty.
	CodeRequiredField Code = "required-field-missing"
	// CodeConditionalRequired indicates a conditionally required field is
	// empty while its predicate holds.
	CodeConditionalRequired Code = "conditional-required-missing"

	// CodeUnmappedNode indicates inbound data retained outside the canonical mapping.
	CodeUnmappedNode Code = "mapping-unmapped-node"
	// CodeMappingCoverage indicates overall mapping coverage fell below
	// the expected floor.
	CodeMappingCoverage Code = "mapping-coverage"

	// CodeSensitiveValue indicates a sensitive value was redacted.
	CodeSensitiveValue Code = "sensitive-value-redacted"

	// CodeExtensionPlacement indicates a vendor field emitted outside its
	// whitelisted parent container.
	CodeExtensionPlacement Code = "extension-placement"
	// CodeExtensionUnknownField indicates a vendor field with no registry entry.
	CodeExtensionUnknownField Code = "extension-unknown-field"
	// CodeExtensionValue indicates a vendor field value violating its
	// declared datatype or enumeration.
	CodeExtensionValue Code = "extension-value"
)

// Issue describes a single conformance finding with category, code, and
// optional document context. Message, Expected, and Actual are redacted
// before the issue leaves the engine.
type Issue struct {
	Category Category `json:"category"`
	Code     Code     `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Path     string   `json:"path,omitempty"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	Expected []string `json:"expected,omitempty"`
	Actual   string   `json:"actual,omitempty"`
}

// List is an error that wraps zero or more issues.
type List []Issue

// Error returns a compact summary of the issues.
func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no conformance issues"
	case 1:
		return l[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more)", l[0].Error(), len(l)-1)
	}
}

// Errors returns the error-severity subset of the list.
func (l List) Errors() List {
	return l.filter(SeverityError)
}

// Warnings returns the warning-severity subset of the list.
func (l List) Warnings() List {
	return l.filter(SeverityWarning)
}

func (l List) filter(s Severity) List {
	var out List
	for _, issue := range l {
		if issue.Severity == s {
			out = append(out, issue)
		}
	}
	return out
}

// HasErrors reports whether any issue carries error severity.
func (l List) HasErrors() bool {
	for _, issue := range l {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Error formats the issue for display, including code, message, and context.
func (i *Issue) Error() string {
	if i == nil {
		return "issue <nil>"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s", i.Code, i.Message))
	if i.Path != "" {
		b.WriteString(fmt.Sprintf(" at %s", i.Path))
	}
	if i.Line > 0 && i.Column > 0 {
		if i.Path == "" {
			b.WriteString(fmt.Sprintf(" at line %d, column %d", i.Line, i.Column))
		} else {
			b.WriteString(fmt.Sprintf(" (line %d, column %d)", i.Line, i.Column))
		}
	}
	if len(i.Expected) > 0 {
		b.WriteString(fmt.Sprintf(" (expected: %s)", strings.Join(i.Expected, ", ")))
	}
	if i.Actual != "" {
		b.WriteString(fmt.Sprintf(" (actual: %s)", i.Actual))
	}
	return b.String()
}

// New builds an Issue with a category, code, severity, message, and optional path.
func New(cat Category, code Code, sev Severity, msg, path string) Issue {
	return Issue{Category: cat, Code: code, Severity: sev, Message: msg, Path: path}
}

// Newf formats a message and builds an Issue.
func Newf(cat Category, code Code, sev Severity, path, format string, args ...any) Issue {
	return New(cat, code, sev, fmt.Sprintf(format, args...), path)
}

// AsIssues extracts conformance issues from an error returned by engine operations.
func AsIssues(err error) ([]Issue, bool) {
	list, ok := asList(err)
	if !ok {
		return nil, false
	}
	return []Issue(list), true
}

func asList(err error) (List, bool) {
	if err == nil {
		return nil, false
	}
	var list List
	if errors.As(err, &list) {
		return list, true
	}

	var listPtr *List
	if errors.As(err, &listPtr) && listPtr != nil {
		return *listPtr, true
	}

	return nil, false
}
