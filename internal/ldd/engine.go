// Package ldd validates canonical loan data against the MISMO logical
// data dictionary: enumerations, datatype lexical rules, and
// cross-field conditional requirements. Validation is independent of
// any XML representation and deterministic: the same snapshot always
// yields the same issues in the same order.
package ldd

import (
	"fmt"
	"strconv"

	"github.com/loanglide/mismo/canonical"
	"github.com/loanglide/mismo/report"
)

// Engine runs the dictionary checks. It is stateless and safe for
// concurrent use.
type Engine struct{}

// NewEngine returns the rules engine.
func NewEngine() *Engine { return &Engine{} }

// Result pairs derived status with the full issue list.
type Result struct {
	Status report.Status
	Issues report.List
}

// Validate runs required-field, datatype, enumeration, and conditional
// checks in that fixed order.
func (e *Engine) Validate(snap *canonical.Snapshot) Result {
	var issues report.List
	issues = append(issues, e.requiredIssues(snap)...)
	issues = append(issues, e.datatypeIssues(snap)...)
	issues = append(issues, e.enumIssues(snap)...)
	issues = append(issues, e.conditionalIssues(snap)...)
	return Result{Status: report.StatusOf(issues), Issues: issues}
}

func (e *Engine) requiredIssues(snap *canonical.Snapshot) report.List {
	var issues report.List

	required := func(ok bool, path, what string) {
		if !ok {
			issues = append(issues, report.Newf(report.CategoryRequired,
				report.CodeRequiredField, report.SeverityError, path,
				"%s is required", what))
		}
	}

	required(snap.Loan.Amount > 0, "loan.amount", "loan amount")
	required(snap.Loan.TermMonths > 0, "loan.term_months", "loan term")
	required(snap.Loan.Purpose != "", "loan.purpose", "loan purpose")
	required(len(snap.Properties) > 0, "properties", "at least one property")

	if len(snap.Borrowers) == 0 {
		issues = append(issues, report.New(report.CategoryRequired,
			report.CodeRequiredField, report.SeverityWarning,
			"a deal normally carries at least one borrower", "borrowers"))
	}

	for i, b := range snap.Borrowers {
		path := fmt.Sprintf("borrowers[%d]", i)
		required(b.LastName != "" || snap.Loan.VestingType == "Entity",
			path+".last_name", "borrower last name")
		required(b.Role != "", path+".role", "borrower role")
	}

	for i, p := range snap.Properties {
		path := fmt.Sprintf("properties[%d]", i)
		required(p.Address.Street != "", path+".address.street", "property street")
		required(p.Address.State != "", path+".address.state", "property state")
		required(p.Address.Zip != "", path+".address.zip", "property zip")
	}

	return issues
}

func (e *Engine) datatypeIssues(snap *canonical.Snapshot) report.List {
	var issues report.List

	check := func(datatype, raw, path string) {
		if raw == "" {
			return
		}
		d, ok := LookupDatatype(datatype)
		if !ok {
			return
		}
		if !d.Validate(raw) {
			issues = append(issues, report.Newf(report.CategoryDatatype,
				report.CodeDatatypeViolation, report.SeverityError, path,
				"value is not a valid %s", datatype))
		}
	}

	for i, b := range snap.Borrowers {
		path := fmt.Sprintf("borrowers[%d]", i)
		check("ssn", b.SSN, path+".ssn")
		check("date", b.BirthDate, path+".birth_date")
		check("phone", b.Phone, path+".phone")
		check("state", b.MailingAddress.State, path+".mailing_address.state")
		check("zip", b.MailingAddress.Zip, path+".mailing_address.zip")
		if b.CreditScore != nil {
			check("credit-score", strconv.Itoa(*b.CreditScore), path+".credit_score")
		}
	}

	for i, p := range snap.Properties {
		path := fmt.Sprintf("properties[%d]", i)
		check("state", p.Address.State, path+".address.state")
		check("zip", p.Address.Zip, path+".address.zip")
	}
	for i, r := range snap.REO {
		path := fmt.Sprintf("reo[%d]", i)
		check("state", r.Address.State, path+".address.state")
		check("zip", r.Address.Zip, path+".address.zip")
	}

	if snap.Loan.InterestRate < 0 || snap.Loan.InterestRate > 100 {
		issues = append(issues, report.New(report.CategoryDatatype,
			report.CodeValueOutOfRange, report.SeverityError,
			"interest rate must be a percent between 0 and 100", "loan.interest_rate"))
	}
	if snap.Loan.LTV < 0 || snap.Loan.LTV > 200 {
		issues = append(issues, report.New(report.CategoryDatatype,
			report.CodeValueOutOfRange, report.SeverityError,
			"loan-to-value ratio is outside the acceptable range", "loan.ltv"))
	}
	if snap.Loan.DSCR != nil && (*snap.Loan.DSCR < 0 || *snap.Loan.DSCR >= 100) {
		issues = append(issues, report.New(report.CategoryDatatype,
			report.CodeValueOutOfRange, report.SeverityError,
			"debt service coverage ratio is outside the acceptable range", "loan.dscr"))
	}

	return issues
}

// enumChecks binds canonical fields to their enumerations in a fixed
// order. Empty values are skipped; requiredness is handled elsewhere.
func (e *Engine) enumIssues(snap *canonical.Snapshot) report.List {
	var issues report.List

	check := func(enum, value, path string) {
		if value == "" {
			return
		}
		allowed, known := EnumAllowed(enum, value)
		if !known || allowed {
			return
		}
		values, _ := EnumValues(enum)
		issues = append(issues, report.Issue{
			Category: report.CategoryEnum,
			Code:     report.CodeEnumViolation,
			Severity: report.SeverityError,
			Message:  fmt.Sprintf("value is not allowed for %s", enum),
			Path:     path,
			Expected: values,
			Actual:   value,
		})
	}

	check("CanonicalLoanPurposeType", snap.Loan.Purpose, "loan.purpose")
	check("LoanAmortizationType", snap.Loan.AmortizationType, "loan.amortization_type")
	check("LienPriorityType", snap.Loan.LienPriority, "loan.lien_priority")
	check("VestingType", snap.Loan.VestingType, "loan.vesting_type")
	check("EntityOrganizationType", snap.Loan.EntityType, "loan.entity_type")
	check("VendorLoanProgramType", snap.Loan.ProgramType, "loan.program_type")

	for i, b := range snap.Borrowers {
		path := fmt.Sprintf("borrowers[%d]", i)
		check("BorrowerRoleType", b.Role, path+".role")
		check("CitizenshipResidencyType", b.Citizenship, path+".citizenship")
		check("MaritalStatusType", b.MaritalStatus, path+".marital_status")
		if b.Declarations != nil {
			check("BankruptcyChapterType", b.Declarations.BankruptcyChapter,
				path+".declarations.bankruptcy_chapter")
		}
		if b.Demographics != nil {
			check("HMDAEthnicityType", b.Demographics.Ethnicity, path+".demographics.ethnicity")
			check("HMDARaceType", b.Demographics.Race, path+".demographics.race")
			check("GenderType", b.Demographics.Sex, path+".demographics.sex")
		}
	}

	for i, p := range snap.Properties {
		path := fmt.Sprintf("properties[%d]", i)
		check("PropertyType", p.PropertyType, path+".property_type")
		check("PropertyUsageType", p.Occupancy, path+".occupancy")
	}
	for i, r := range snap.REO {
		check("REODispositionStatusType", r.Disposition, fmt.Sprintf("reo[%d].disposition", i))
	}
	for i, a := range snap.Assets {
		check("AssetType", a.AccountType, fmt.Sprintf("assets[%d].account_type", i))
	}
	for i, f := range snap.Fees {
		check("IntegratedDisclosureSectionType", f.Category, fmt.Sprintf("fees[%d].category", i))
	}

	return issues
}

func (e *Engine) conditionalIssues(snap *canonical.Snapshot) report.List {
	var issues report.List
	for _, rule := range conditionalRules {
		if !rule.When(snap) || !rule.Missing(snap) {
			continue
		}
		issues = append(issues, report.Issue{
			Category: report.CategoryConditional,
			Code:     report.CodeConditionalRequired,
			Severity: rule.Severity,
			Message:  rule.Message,
			Path:     rule.RequiredField,
		})
	}
	return issues
}

// Normalize returns a copy of the snapshot with every valid string
// value rewritten to its canonical lexical form. Invalid values are
// left untouched; Validate reports them.
func (e *Engine) Normalize(snap *canonical.Snapshot) *canonical.Snapshot {
	out := *snap
	out.Borrowers = append([]canonical.Borrower(nil), snap.Borrowers...)
	out.Properties = append([]canonical.Property(nil), snap.Properties...)
	out.REO = append([]canonical.REOProperty(nil), snap.REO...)
	out.Assets = append([]canonical.Asset(nil), snap.Assets...)
	out.Fees = append([]canonical.Fee(nil), snap.Fees...)

	reformat := func(datatype string, raw *string) {
		if *raw == "" {
			return
		}
		d, ok := LookupDatatype(datatype)
		if !ok {
			return
		}
		if formatted, err := d.Format(*raw); err == nil {
			*raw = formatted
		}
	}

	for i := range out.Borrowers {
		b := &out.Borrowers[i]
		reformat("ssn", &b.SSN)
		reformat("date", &b.BirthDate)
		reformat("phone", &b.Phone)
		reformat("state", &b.MailingAddress.State)
		reformat("zip", &b.MailingAddress.Zip)
	}
	for i := range out.Properties {
		p := &out.Properties[i]
		reformat("state", &p.Address.State)
		reformat("zip", &p.Address.Zip)
	}
	for i := range out.REO {
		r := &out.REO[i]
		reformat("state", &r.Address.State)
		reformat("zip", &r.Address.Zip)
	}

	return &out
}
