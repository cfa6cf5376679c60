package report

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/loanglide/mismo/canonical"
	"github.com/loanglide/mismo/internal/redact"
)

// Status is the overall conformance outcome.
type Status string

const (
	StatusPass         Status = "PASS"
	StatusPassWarnings Status = "PASS_WITH_WARNINGS"
	StatusFail         Status = "FAIL"
)

// Report is the categorized conformance record handed back to the
// surrounding system. Generation metadata never carries raw identity
// values; every textual field has passed the redaction boundary.
type Report struct {
	ID     string `json:"id"`
	Status Status `json:"status"`

	Issues     List               `json:"issues"`
	ByCategory map[Category]List  `json:"by_category,omitempty"`
	Counts     map[Category]int   `json:"counts,omitempty"`
	Suggestion map[Category]string `json:"suggestions,omitempty"`

	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`

	// Completeness scores a fixed field checklist independent of the
	// error and warning counts; dashboards trend it over time.
	Completeness float64 `json:"completeness"`

	GeneratedAt time.Time `json:"generated_at,omitempty"`
	Actor       string    `json:"actor,omitempty"`
	PIIRedacted bool      `json:"pii_redacted"`
}

// Meta carries caller-supplied generation metadata. The clock comes
// from the caller so reports stay out of the exporter's determinism
// surface.
type Meta struct {
	Actor       string
	GeneratedAt time.Time
}

// suggestions give the caller one actionable line per category.
var suggestions = map[Category]string{
	CategoryWellFormedness: "Repair the XML document before any further processing; nothing downstream was checked.",
	CategoryStructure:      "Add the missing required elements, namespaces, or version identifiers for the selected schema pack.",
	CategoryEnum:           "Replace the value with one of the allowed enumeration values; lender systems reject unknown codes.",
	CategoryDatatype:       "Reformat the value to the canonical lexical form for its datatype.",
	CategoryConditional:    "Populate the conditionally required field or clear the condition that requires it.",
	CategoryRequired:       "Populate the required canonical field before exporting.",
	CategoryMappingGap:     "Review retained unmapped nodes; extend the mapping table if the data should be canonical.",
	CategorySensitive:      "No action needed; sensitive values were masked at the reporting boundary.",
	CategoryExtension:      "Move the vendor field under its whitelisted parent container or register it.",
}

// StatusOf derives the report status from an issue list: any error is a
// FAIL, warnings alone are PASS_WITH_WARNINGS.
func StatusOf(issues List) Status {
	status := StatusPass
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityError:
			return StatusFail
		case SeverityWarning:
			status = StatusPassWarnings
		}
	}
	return status
}

// Generate aggregates issue lists into a conformance report, applying
// redaction to every message and expected/actual pair. The snapshot is
// optional; when present it feeds the completeness checklist.
func Generate(meta Meta, snap *canonical.Snapshot, lists ...List) Report {
	var issues List
	for _, l := range lists {
		issues = append(issues, l...)
	}

	redacted := make(List, len(issues))
	for i, issue := range issues {
		issue.Message = redact.String(issue.Message)
		issue.Actual = redact.String(issue.Actual)
		issue.Expected = redact.Strings(issue.Expected)
		redacted[i] = issue
	}

	byCategory := lo.GroupBy(redacted, func(i Issue) Category { return i.Category })
	counts := make(map[Category]int, len(byCategory))
	hints := make(map[Category]string, len(byCategory))
	for cat, group := range byCategory {
		counts[cat] = len(group)
		if hint, ok := suggestions[cat]; ok {
			hints[cat] = hint
		}
	}

	return Report{
		ID:           uuid.NewString(),
		Status:       StatusOf(redacted),
		Issues:       redacted,
		ByCategory:   byCategory,
		Counts:       counts,
		Suggestion:   hints,
		ErrorCount:   len(redacted.Errors()),
		WarningCount: len(redacted.Warnings()),
		Completeness: Completeness(snap),
		GeneratedAt:  meta.GeneratedAt,
		Actor:        meta.Actor,
		PIIRedacted:  true,
	}
}

// Completeness scores the snapshot against a fixed checklist: borrower
// identity, property address, loan terms, and DSCR inputs. Returns a
// fraction in [0,1]; nil snapshots score zero.
func Completeness(snap *canonical.Snapshot) float64 {
	if snap == nil {
		return 0
	}

	checks := []bool{
		// Borrower identity.
		len(snap.Borrowers) > 0,
		lo.SomeBy(snap.Borrowers, func(b canonical.Borrower) bool {
			return b.FirstName != "" && b.LastName != ""
		}),
		lo.SomeBy(snap.Borrowers, func(b canonical.Borrower) bool { return b.SSN != "" }),
		// Property address.
		len(snap.Properties) > 0,
		lo.SomeBy(snap.Properties, func(p canonical.Property) bool {
			return p.Address.Street != "" && p.Address.State != "" && p.Address.Zip != ""
		}),
		// Loan terms.
		snap.Loan.Amount > 0,
		snap.Loan.InterestRate > 0,
		snap.Loan.TermMonths > 0,
		snap.Loan.Purpose != "",
		// DSCR inputs: either the ratio itself or rental income to derive it.
		snap.Loan.DSCR != nil || lo.SomeBy(snap.Properties, func(p canonical.Property) bool {
			return p.MonthlyRentalIncome != nil
		}),
	}

	satisfied := lo.CountBy(checks, func(ok bool) bool { return ok })
	return float64(satisfied) / float64(len(checks))
}
