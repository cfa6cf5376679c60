// Command mismolint validates a MISMO XML document against a schema
// pack and prints the conformance issues. The document may be a local
// file or an http(s) URL.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/loanglide/mismo"
	"github.com/loanglide/mismo/report"
)

func main() {
	os.Exit(run())
}

func run() int {
	return runWithArgs(os.Args[1:], os.Stdout, os.Stderr)
}

func runWithArgs(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mismolint", flag.ContinueOnError)
	fs.SetOutput(stderr)
	packID := fs.String("pack", mismo.PackGeneric, "schema pack identifier")
	mode := fs.String("mode", "full", "validation depth: well-formed, structure, or full")
	asJSON := fs.Bool("json", false, "print the full conformance report as JSON")
	var usageErr error
	fs.Usage = func() {
		usageErr = errors.Join(
			usageErr,
			writef(stderr, "Usage: %s [flags] <document.xml | url>\n\n", fs.Name()),
			writeln(stderr, "Validates a MISMO XML document against a schema pack."),
			writeln(stderr),
			writeln(stderr, "Options:"),
		)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	remaining := fs.Args()
	if len(remaining) != 1 {
		if err := writeln(stderr, "error: exactly one document argument is required"); err != nil {
			return 1
		}
		fs.Usage()
		if usageErr != nil {
			return 1
		}
		return 2
	}
	target := remaining[0]

	engine, err := mismo.New()
	if err != nil {
		if writeErr := writef(stderr, "error initializing engine: %v\n", err); writeErr != nil {
			return 1
		}
		return 1
	}

	opts := mismo.ValidateOptions{PackID: *packID, Mode: mismo.ValidationMode(*mode)}
	var result *mismo.ValidateResult
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		result, err = engine.ValidateURL(context.Background(), target, opts)
	} else {
		var doc []byte
		doc, err = os.ReadFile(target)
		if err == nil {
			result, err = engine.ValidateXML(doc, opts)
		}
	}
	if err != nil {
		if writeErr := writef(stderr, "error validating: %v\n", err); writeErr != nil {
			return 1
		}
		return 1
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Report); err != nil {
			_ = writef(stderr, "error encoding report: %v\n", err)
			return 1
		}
	} else {
		for _, issue := range result.Report.Issues {
			if err := writeln(stderr, issueLine(issue)); err != nil {
				return 1
			}
		}
	}

	switch result.Status {
	case report.StatusFail:
		if err := writef(stderr, "%s fails to validate\n", target); err != nil {
			return 1
		}
		return 1
	case report.StatusPassWarnings:
		if err := writef(stdout, "%s validates with %d warning(s)\n",
			target, result.Report.WarningCount); err != nil {
			return 1
		}
	default:
		if err := writef(stdout, "%s validates\n", target); err != nil {
			return 1
		}
	}
	return 0
}

func issueLine(issue report.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: [%s/%s] %s", issue.Severity, issue.Category, issue.Code, issue.Message)
	if issue.Path != "" {
		fmt.Fprintf(&b, " (%s", issue.Path)
		if issue.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", issue.Line, issue.Column)
		}
		b.WriteString(")")
	}
	return b.String()
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}
