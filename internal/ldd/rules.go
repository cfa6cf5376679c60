package ldd

import (
	"github.com/samber/lo"

	"github.com/loanglide/mismo/canonical"
	"github.com/loanglide/mismo/report"
)

// Rule is one conditional-requirement: when the predicate holds and the
// required field is empty, an issue fires at the rule's severity. Rules
// are evaluated in declaration order, which fixes issue order.
type Rule struct {
	ID            string
	Severity      report.Severity
	RequiredField string
	Message       string
	When          func(*canonical.Snapshot) bool
	Missing       func(*canonical.Snapshot) bool
}

var conditionalRules = []Rule{
	{
		ID:            "cash-out-amount",
		Severity:      report.SeverityError,
		RequiredField: "loan.cash_out_amount",
		Message:       "cash-out amount is required when loan purpose is CashOutRefinance",
		When: func(s *canonical.Snapshot) bool {
			return s.Loan.Purpose == "CashOutRefinance"
		},
		Missing: func(s *canonical.Snapshot) bool {
			return s.Loan.CashOutAmount == nil || *s.Loan.CashOutAmount <= 0
		},
	},
	{
		ID:            "entity-name",
		Severity:      report.SeverityError,
		RequiredField: "loan.entity_name",
		Message:       "entity legal name is required when vesting type is Entity",
		When: func(s *canonical.Snapshot) bool {
			return s.Loan.VestingType == "Entity"
		},
		Missing: func(s *canonical.Snapshot) bool {
			return s.Loan.EntityName == ""
		},
	},
	{
		ID:            "entity-type",
		Severity:      report.SeverityError,
		RequiredField: "loan.entity_type",
		Message:       "entity organization type is required when vesting type is Entity",
		When: func(s *canonical.Snapshot) bool {
			return s.Loan.VestingType == "Entity"
		},
		Missing: func(s *canonical.Snapshot) bool {
			return s.Loan.EntityType == ""
		},
	},
	{
		ID:            "bankruptcy-chapter",
		Severity:      report.SeverityError,
		RequiredField: "borrower.declarations.bankruptcy_chapter",
		Message:       "bankruptcy chapter is required when bankruptcy is declared",
		When: func(s *canonical.Snapshot) bool {
			return lo.SomeBy(s.Borrowers, func(b canonical.Borrower) bool {
				return b.Declarations != nil && b.Declarations.Bankruptcy
			})
		},
		Missing: func(s *canonical.Snapshot) bool {
			return lo.SomeBy(s.Borrowers, func(b canonical.Borrower) bool {
				return b.Declarations != nil && b.Declarations.Bankruptcy &&
					b.Declarations.BankruptcyChapter == ""
			})
		},
	},
	{
		ID:            "dscr-rental-income",
		Severity:      report.SeverityWarning,
		RequiredField: "property.monthly_rental_income",
		Message:       "rental income is expected on a DSCR program with investment occupancy",
		When: func(s *canonical.Snapshot) bool {
			return s.Loan.ProgramType == "DSCR" && lo.SomeBy(s.Properties,
				func(p canonical.Property) bool { return p.Occupancy == "Investment" })
		},
		Missing: func(s *canonical.Snapshot) bool {
			return !lo.SomeBy(s.Properties, func(p canonical.Property) bool {
				return p.MonthlyRentalIncome != nil && *p.MonthlyRentalIncome > 0
			})
		},
	},
	{
		ID:            "purchase-price",
		Severity:      report.SeverityWarning,
		RequiredField: "property.purchase_price",
		Message:       "purchase price is expected when loan purpose is Purchase",
		When: func(s *canonical.Snapshot) bool {
			return s.Loan.Purpose == "Purchase"
		},
		Missing: func(s *canonical.Snapshot) bool {
			return !lo.SomeBy(s.Properties, func(p canonical.Property) bool {
				return p.PurchasePrice != nil && *p.PurchasePrice > 0
			})
		},
	},
	{
		ID:            "reo-rental-income",
		Severity:      report.SeverityWarning,
		RequiredField: "reo.monthly_rental_income",
		Message:       "rental income is expected on owned property retained for rental",
		When: func(s *canonical.Snapshot) bool {
			return lo.SomeBy(s.REO, func(r canonical.REOProperty) bool {
				return r.Disposition == "RetainForRental"
			})
		},
		Missing: func(s *canonical.Snapshot) bool {
			return lo.SomeBy(s.REO, func(r canonical.REOProperty) bool {
				return r.Disposition == "RetainForRental" &&
					(r.MonthlyRentalIncome == nil || *r.MonthlyRentalIncome <= 0)
			})
		},
	},
	{
		ID:            "business-purpose-program",
		Severity:      report.SeverityWarning,
		RequiredField: "loan.program_type",
		Message:       "loan program type is expected on business-purpose loans",
		When: func(s *canonical.Snapshot) bool {
			return s.Loan.BusinessPurpose != nil && *s.Loan.BusinessPurpose
		},
		Missing: func(s *canonical.Snapshot) bool {
			return s.Loan.ProgramType == ""
		},
	},
}
