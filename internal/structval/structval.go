// Package structval checks a MISMO XML document against a schema pack:
// well-formedness, required structure and namespaces, datatype and
// business-range spot checks, and LDD enumeration conformance. It
// validates both freshly exported documents and externally received
// ones; the checks target exactly the two supported packs, not
// arbitrary schemas.
package structval

import (
	"strconv"
	"strings"

	"github.com/loanglide/mismo/internal/ldd"
	"github.com/loanglide/mismo/internal/mismoxml"
	"github.com/loanglide/mismo/internal/schemapack"
	"github.com/loanglide/mismo/report"
)

// Mode selects how deep validation goes.
type Mode int

const (
	// WellFormedOnly stops after the XML syntax check.
	WellFormedOnly Mode = iota
	// StructureOnly adds root, namespace, version, and element-chain checks.
	StructureOnly
	// Full adds datatype spot checks, structural pairings, and the enum pass.
	Full
)

// Validator is stateless and safe for concurrent use.
type Validator struct{}

// New returns a validator.
func New() *Validator { return &Validator{} }

// Validate runs the selected passes in order. A well-formedness failure
// short-circuits everything else.
func (v *Validator) Validate(doc []byte, pack schemapack.Pack, mode Mode) report.List {
	issues := mismoxml.CheckWellFormed(doc)
	if issues.HasErrors() || mode == WellFormedOnly {
		return issues
	}

	issues = append(issues, v.structureIssues(doc, pack)...)
	if mode == StructureOnly {
		return issues
	}

	issues = append(issues, v.contentIssues(doc)...)
	return issues
}

// requiredChain is the minimum element spine every MISMO deal document
// carries.
var requiredChain = []string{
	"/MESSAGE/DEAL_SETS",
	"/MESSAGE/DEAL_SETS/DEAL_SET",
	"/MESSAGE/DEAL_SETS/DEAL_SET/DEALS",
	"/MESSAGE/DEAL_SETS/DEAL_SET/DEALS/DEAL",
	"/MESSAGE/DEAL_SETS/DEAL_SET/DEALS/DEAL/LOANS",
	"/MESSAGE/DEAL_SETS/DEAL_SET/DEALS/DEAL/LOANS/LOAN",
}

const lddIdentifierPath = "/MESSAGE/ABOUT_VERSIONS/ABOUT_VERSION/DataVersionIdentifier"

func (v *Validator) structureIssues(doc []byte, pack schemapack.Pack) report.List {
	var issues report.List

	rootName, rootAttrs, err := mismoxml.RootElement(doc)
	if err != nil {
		return report.List{report.Newf(report.CategoryStructure,
			report.CodeRootElement, report.SeverityError, "/",
			"cannot read root element: %v", err)}
	}

	if rootName != pack.RootElement {
		issues = append(issues, report.Issue{
			Category: report.CategoryStructure,
			Code:     report.CodeRootElement,
			Severity: report.SeverityError,
			Message:  "unexpected root element",
			Path:     "/" + rootName,
			Expected: []string{pack.RootElement},
			Actual:   rootName,
		})
		return issues
	}

	declared := map[string]struct{}{}
	versionID := ""
	for _, attr := range rootAttrs {
		switch {
		case attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns":
			declared[attr.Value] = struct{}{}
		case attr.Name.Local == "MISMOVersionID":
			versionID = attr.Value
		}
	}

	for _, ns := range pack.RequiredNamespaces {
		if _, ok := declared[ns.URI]; !ok {
			issues = append(issues, report.Newf(report.CategoryStructure,
				report.CodeNamespaceMissing, report.SeverityError, "/"+pack.RootElement,
				"required namespace %s is not declared", ns.URI))
		}
	}

	switch {
	case versionID == "":
		issues = append(issues, report.New(report.CategoryStructure,
			report.CodeVersionIdentifier, report.SeverityError,
			"MISMOVersionID attribute is missing", "/"+pack.RootElement))
	case !strings.HasPrefix(versionID, pack.MISMOVersion):
		issues = append(issues, report.Issue{
			Category: report.CategoryStructure,
			Code:     report.CodeVersionIdentifier,
			Severity: report.SeverityError,
			Message:  "unsupported MISMO version",
			Path:     "/" + pack.RootElement,
			Expected: []string{pack.MISMOVersion + "*"},
			Actual:   versionID,
		})
	}

	seen := map[string]bool{}
	lddIdentifier := ""
	_ = mismoxml.Walk(doc, func(ev mismoxml.Event) error {
		switch ev.Kind {
		case mismoxml.StartElement:
			seen[ev.Path] = true
		case mismoxml.Text:
			if ev.Path == lddIdentifierPath && lddIdentifier == "" {
				lddIdentifier = ev.Text
			}
		}
		return nil
	})

	for _, path := range requiredChain {
		if !seen[path] {
			issues = append(issues, report.Newf(report.CategoryStructure,
				report.CodeElementMissing, report.SeverityError, path,
				"required element %s is missing", path[strings.LastIndex(path, "/")+1:]))
		}
	}

	// The strict pack requires the LDD identifier; the generic pack
	// recommends it.
	severity := report.SeverityWarning
	if pack.Strict {
		severity = report.SeverityError
	}
	switch {
	case lddIdentifier == "":
		issues = append(issues, report.New(report.CategoryStructure,
			report.CodeLDDIdentifier, severity,
			"logical data dictionary identifier is missing", lddIdentifierPath))
	case lddIdentifier != pack.LDDIdentifier:
		issues = append(issues, report.Issue{
			Category: report.CategoryStructure,
			Code:     report.CodeLDDIdentifier,
			Severity: severity,
			Message:  "logical data dictionary identifier does not match the schema pack",
			Path:     lddIdentifierPath,
			Expected: []string{pack.LDDIdentifier},
			Actual:   lddIdentifier,
		})
	}

	return issues
}

// contentIssues runs the datatype spot checks, structural pairings, and
// the enumeration pass in one walk.
func (v *Validator) contentIssues(doc []byte) report.List {
	var issues report.List

	type containerState struct {
		path       string
		line, col  int
		companion  bool
		hasName    bool
		isBorrower bool
	}
	var loans, collaterals, parties []*containerState
	var openLoan, openCollateral, openParty *containerState

	_ = mismoxml.Walk(doc, func(ev mismoxml.Event) error {
		switch ev.Kind {
		case mismoxml.StartElement:
			switch ev.Name {
			case "LOAN":
				openLoan = &containerState{path: ev.Path, line: ev.Line, col: ev.Column}
				loans = append(loans, openLoan)
			case "TERMS_OF_LOAN":
				if openLoan != nil {
					openLoan.companion = true
				}
			case "COLLATERAL":
				openCollateral = &containerState{path: ev.Path, line: ev.Line, col: ev.Column}
				collaterals = append(collaterals, openCollateral)
			case "SUBJECT_PROPERTY":
				if openCollateral != nil {
					openCollateral.companion = true
				}
			case "PARTY":
				openParty = &containerState{path: ev.Path, line: ev.Line, col: ev.Column}
				parties = append(parties, openParty)
			case "BORROWER":
				if openParty != nil {
					openParty.isBorrower = true
				}
			}
		case mismoxml.EndElement:
			switch ev.Name {
			case "LOAN":
				openLoan = nil
			case "COLLATERAL":
				openCollateral = nil
			case "PARTY":
				openParty = nil
			}
		case mismoxml.Text:
			if ev.Name == "LastName" && openParty != nil {
				openParty.hasName = true
			}
			issues = append(issues, v.valueIssues(ev)...)
		}
		return nil
	})

	for _, loan := range loans {
		if !loan.companion {
			issues = append(issues, positioned(report.Newf(report.CategoryStructure,
				report.CodeElementPairing, report.SeverityError, loan.path,
				"a LOAN must contain TERMS_OF_LOAN"), loan.line, loan.col))
		}
	}
	for _, coll := range collaterals {
		if !coll.companion {
			issues = append(issues, positioned(report.Newf(report.CategoryStructure,
				report.CodeElementPairing, report.SeverityError, coll.path,
				"a COLLATERAL must contain SUBJECT_PROPERTY"), coll.line, coll.col))
		}
	}
	for _, party := range parties {
		if party.isBorrower && !party.hasName {
			issues = append(issues, positioned(report.Newf(report.CategoryStructure,
				report.CodeElementPairing, report.SeverityWarning, party.path,
				"a borrower PARTY should carry an individual name"), party.line, party.col))
		}
	}

	return issues
}

// valueIssues applies per-element datatype and enumeration checks.
func (v *Validator) valueIssues(ev mismoxml.Event) report.List {
	var issues report.List

	fail := func(code report.Code, sev report.Severity, msg string) {
		issue := report.New(report.CategoryDatatype, code, sev, msg, ev.Path)
		issue.Line, issue.Column = ev.Line, ev.Column
		issues = append(issues, issue)
	}

	switch ev.Name {
	case "NoteRatePercent":
		if rate, err := strconv.ParseFloat(ev.Text, 64); err != nil {
			fail(report.CodeDatatypeViolation, report.SeverityError, "note rate is not numeric")
		} else if rate < 0 || rate > 25 {
			fail(report.CodeValueOutOfRange, report.SeverityWarning,
				"note rate is outside the expected 0-25 percent range")
		}
	case "LTVRatioPercent":
		if ltv, err := strconv.ParseFloat(ev.Text, 64); err != nil {
			fail(report.CodeDatatypeViolation, report.SeverityError, "LTV ratio is not numeric")
		} else if ltv <= 0 || ltv > 100 {
			fail(report.CodeValueOutOfRange, report.SeverityWarning,
				"LTV ratio is outside the expected 0-100 percent range")
		}
	case "NoteAmount", "AssetCashOrMarketValueAmount", "FeeActualTotalAmount",
		"PropertyEstimatedValueAmount", "OwnedPropertyMarketValueAmount":
		if amt, err := strconv.ParseFloat(ev.Text, 64); err != nil {
			fail(report.CodeDatatypeViolation, report.SeverityError, "amount is not numeric")
		} else if amt < 0 {
			fail(report.CodeValueOutOfRange, report.SeverityWarning, "amount is negative")
		}
	case "CreditScoreValue":
		if d, ok := ldd.LookupDatatype("credit-score"); ok && !d.Validate(ev.Text) {
			fail(report.CodeValueOutOfRange, report.SeverityError,
				"credit score is outside the 300-850 range")
		}
	case "PostalCode":
		if d, ok := ldd.LookupDatatype("zip"); ok && !d.Validate(ev.Text) {
			fail(report.CodeDatatypeViolation, report.SeverityError,
				"postal code is not a valid ZIP or ZIP+4")
		}
	case "StateCode":
		if d, ok := ldd.LookupDatatype("state"); ok && !d.Validate(ev.Text) {
			fail(report.CodeDatatypeViolation, report.SeverityError,
				"state code is not a recognized state or territory")
		}
	case "BorrowerBirthDate":
		if d, ok := ldd.LookupDatatype("date"); ok && !d.Validate(ev.Text) {
			fail(report.CodeDatatypeViolation, report.SeverityError,
				"birth date is not a recognized date")
		}
	}

	// Every occurrence of a known LDD-enumerated element is checked;
	// violations are always errors since lender systems reject them.
	if enum, bound := ldd.XMLElementEnum(ev.Name); bound {
		if allowed, known := ldd.EnumAllowed(enum, ev.Text); known && !allowed {
			expected, _ := ldd.EnumValues(enum)
			issue := report.Issue{
				Category: report.CategoryEnum,
				Code:     report.CodeEnumViolation,
				Severity: report.SeverityError,
				Message:  "value is not allowed for " + enum,
				Path:     ev.Path,
				Line:     ev.Line,
				Column:   ev.Column,
				Expected: expected,
				Actual:   ev.Text,
			}
			issues = append(issues, issue)
		}
	}

	return issues
}

func positioned(issue report.Issue, line, col int) report.Issue {
	issue.Line, issue.Column = line, col
	return issue
}
