package roundtrip

import (
	"fmt"
	"math"

	"github.com/loanglide/mismo/canonical"
	"github.com/loanglide/mismo/internal/sequence"
)

// floatTolerance absorbs the fixed-precision decimal formats the wire
// uses for amounts, percents, and ratios.
const floatTolerance = 1e-3

// Difference is one field that did not survive the round trip.
type Difference struct {
	Path string
	Want string
	Got  string
}

func (d Difference) String() string {
	return fmt.Sprintf("%s: want %q, got %q", d.Path, d.Want, d.Got)
}

// Diff compares a source snapshot with its re-imported counterpart.
// Both sides are put into sequence order first; sequence numbers,
// labels, and creation timestamps are not part of the comparison since
// the wire format does not carry creation time and renumbering is
// allowed. The loan purposes Refinance and NoCashOutRefinance are one
// equivalence class: the wire folds both onto Refinance/NoCashOut.
func Diff(want, got *canonical.Snapshot) []Difference {
	var diffs []Difference
	add := func(path string, w, g any) {
		diffs = append(diffs, Difference{Path: path, Want: fmt.Sprint(w), Got: fmt.Sprint(g)})
	}

	diffLoan(want.Loan, got.Loan, add)

	wb := sequence.Borrowers(want.Borrowers)
	gb := sequence.Borrowers(got.Borrowers)
	if len(wb) != len(gb) {
		add("borrowers.count", len(wb), len(gb))
	} else {
		for i := range wb {
			diffBorrower(fmt.Sprintf("borrowers[%d]", i), wb[i], gb[i], add)
		}
	}

	wp := sequence.Properties(want.Properties)
	gp := sequence.Properties(got.Properties)
	if len(wp) != len(gp) {
		add("properties.count", len(wp), len(gp))
	} else {
		for i := range wp {
			diffProperty(fmt.Sprintf("properties[%d]", i), wp[i], gp[i], add)
		}
	}

	wr := sequence.REO(want.REO)
	gr := sequence.REO(got.REO)
	if len(wr) != len(gr) {
		add("reo.count", len(wr), len(gr))
	} else {
		for i := range wr {
			diffREO(fmt.Sprintf("reo[%d]", i), wr[i], gr[i], add)
		}
	}

	wa := sequence.Assets(want.Assets)
	ga := sequence.Assets(got.Assets)
	if len(wa) != len(ga) {
		add("assets.count", len(wa), len(ga))
	} else {
		for i := range wa {
			diffAsset(fmt.Sprintf("assets[%d]", i), wa[i], ga[i], add)
		}
	}

	wf := sequence.Fees(want.Fees)
	gf := sequence.Fees(got.Fees)
	if len(wf) != len(gf) {
		add("fees.count", len(wf), len(gf))
	} else {
		for i := range wf {
			diffFee(fmt.Sprintf("fees[%d]", i), wf[i], gf[i], add)
		}
	}

	return diffs
}

type addFunc func(path string, want, got any)

func diffLoan(w, g canonical.Loan, add addFunc) {
	cmpF("loan.amount", w.Amount, g.Amount, add)
	cmpF("loan.interest_rate", w.InterestRate, g.InterestRate, add)
	cmpI("loan.term_months", w.TermMonths, g.TermMonths, add)
	if !purposeEquivalent(w.Purpose, g.Purpose) {
		add("loan.purpose", w.Purpose, g.Purpose)
	}
	cmpS("loan.amortization_type", w.AmortizationType, g.AmortizationType, add)
	cmpS("loan.lien_priority", w.LienPriority, g.LienPriority, add)
	cmpF("loan.ltv", w.LTV, g.LTV, add)
	cmpFP("loan.cash_out_amount", w.CashOutAmount, g.CashOutAmount, add)
	cmpB("loan.interest_only", w.InterestOnly, g.InterestOnly, add)
	cmpB("loan.balloon_payment", w.BalloonPayment, g.BalloonPayment, add)

	// Individual vesting is the wire default; only entity vesting is
	// carried explicitly.
	if w.VestingType == "Entity" || g.VestingType == "Entity" {
		cmpS("loan.vesting_type", w.VestingType, g.VestingType, add)
		cmpS("loan.entity_name", w.EntityName, g.EntityName, add)
		cmpS("loan.entity_type", w.EntityType, g.EntityType, add)
	}

	cmpFP("loan.dscr", w.DSCR, g.DSCR, add)
	cmpBP("loan.business_purpose", w.BusinessPurpose, g.BusinessPurpose, add)
	cmpS("loan.program_type", w.ProgramType, g.ProgramType, add)
	cmpIP("loan.prepayment_penalty_months", w.PrepaymentPenaltyMonths, g.PrepaymentPenaltyMonths, add)
}

func diffBorrower(path string, w, g canonical.Borrower, add addFunc) {
	cmpS(path+".role", w.Role, g.Role, add)
	cmpS(path+".first_name", w.FirstName, g.FirstName, add)
	cmpS(path+".middle_name", w.MiddleName, g.MiddleName, add)
	cmpS(path+".last_name", w.LastName, g.LastName, add)
	cmpS(path+".suffix_name", w.SuffixName, g.SuffixName, add)
	cmpS(path+".ssn", w.SSN, g.SSN, add)
	cmpS(path+".birth_date", w.BirthDate, g.BirthDate, add)
	cmpS(path+".email", w.Email, g.Email, add)
	cmpS(path+".phone", w.Phone, g.Phone, add)
	diffAddress(path+".mailing_address", w.MailingAddress, g.MailingAddress, add)
	cmpS(path+".citizenship", w.Citizenship, g.Citizenship, add)
	cmpS(path+".marital_status", w.MaritalStatus, g.MaritalStatus, add)
	cmpIP(path+".credit_score", w.CreditScore, g.CreditScore, add)

	switch {
	case w.Declarations == nil && g.Declarations == nil:
	case w.Declarations == nil || g.Declarations == nil:
		add(path+".declarations", w.Declarations != nil, g.Declarations != nil)
	default:
		wd, gd := *w.Declarations, *g.Declarations
		cmpB(path+".declarations.bankruptcy", wd.Bankruptcy, gd.Bankruptcy, add)
		cmpS(path+".declarations.bankruptcy_chapter", wd.BankruptcyChapter, gd.BankruptcyChapter, add)
		cmpB(path+".declarations.foreclosure", wd.Foreclosure, gd.Foreclosure, add)
		cmpB(path+".declarations.outstanding_judgments", wd.OutstandingJudgments, gd.OutstandingJudgments, add)
		cmpB(path+".declarations.party_to_lawsuit", wd.PartyToLawsuit, gd.PartyToLawsuit, add)
		cmpB(path+".declarations.delinquent_federal_debt", wd.DelinquentFederalDebt, gd.DelinquentFederalDebt, add)
	}

	switch {
	case w.Demographics == nil && g.Demographics == nil:
	case w.Demographics == nil || g.Demographics == nil:
		add(path+".demographics", w.Demographics != nil, g.Demographics != nil)
	default:
		wm, gm := *w.Demographics, *g.Demographics
		cmpS(path+".demographics.ethnicity", wm.Ethnicity, gm.Ethnicity, add)
		cmpS(path+".demographics.race", wm.Race, gm.Race, add)
		cmpS(path+".demographics.sex", wm.Sex, gm.Sex, add)
		cmpB(path+".demographics.refused", wm.Refused, gm.Refused, add)
	}
}

func diffProperty(path string, w, g canonical.Property, add addFunc) {
	diffAddress(path+".address", w.Address, g.Address, add)
	cmpS(path+".property_type", w.PropertyType, g.PropertyType, add)
	cmpS(path+".occupancy", w.Occupancy, g.Occupancy, add)
	cmpF(path+".estimated_value", w.EstimatedValue, g.EstimatedValue, add)
	cmpFP(path+".purchase_price", w.PurchasePrice, g.PurchasePrice, add)
	cmpFP(path+".monthly_rental_income", w.MonthlyRentalIncome, g.MonthlyRentalIncome, add)
	cmpBP(path+".short_term_rental", w.ShortTermRental, g.ShortTermRental, add)
	cmpFP(path+".occupancy_rate", w.OccupancyRate, g.OccupancyRate, add)
}

func diffREO(path string, w, g canonical.REOProperty, add addFunc) {
	diffAddress(path+".address", w.Address, g.Address, add)
	cmpF(path+".market_value", w.MarketValue, g.MarketValue, add)
	cmpFP(path+".lien_balance", w.LienBalance, g.LienBalance, add)
	cmpFP(path+".monthly_rental_income", w.MonthlyRentalIncome, g.MonthlyRentalIncome, add)
	cmpS(path+".disposition", w.Disposition, g.Disposition, add)
}

func diffAsset(path string, w, g canonical.Asset, add addFunc) {
	cmpS(path+".account_type", w.AccountType, g.AccountType, add)
	cmpS(path+".holder_name", w.HolderName, g.HolderName, add)
	cmpS(path+".account_number", w.AccountNumber, g.AccountNumber, add)
	cmpF(path+".balance", w.Balance, g.Balance, add)
}

func diffFee(path string, w, g canonical.Fee, add addFunc) {
	cmpS(path+".name", w.Name, g.Name, add)
	cmpS(path+".category", w.Category, g.Category, add)
	cmpF(path+".amount", w.Amount, g.Amount, add)
}

func diffAddress(path string, w, g canonical.Address, add addFunc) {
	cmpS(path+".street", w.Street, g.Street, add)
	cmpS(path+".unit", w.Unit, g.Unit, add)
	cmpS(path+".city", w.City, g.City, add)
	cmpS(path+".state", w.State, g.State, add)
	cmpS(path+".zip", w.Zip, g.Zip, add)
}

func purposeEquivalent(w, g string) bool {
	fold := func(p string) string {
		if p == "NoCashOutRefinance" {
			return "Refinance"
		}
		return p
	}
	return fold(w) == fold(g)
}

func cmpS(path, w, g string, add addFunc) {
	if w != g {
		add(path, w, g)
	}
}

func cmpI(path string, w, g int, add addFunc) {
	if w != g {
		add(path, w, g)
	}
}

func cmpB(path string, w, g bool, add addFunc) {
	if w != g {
		add(path, w, g)
	}
}

func cmpF(path string, w, g float64, add addFunc) {
	if math.Abs(w-g) > floatTolerance {
		add(path, w, g)
	}
}

func cmpFP(path string, w, g *float64, add addFunc) {
	switch {
	case w == nil && g == nil:
	case w == nil || g == nil:
		add(path, deref(w), deref(g))
	case math.Abs(*w-*g) > floatTolerance:
		add(path, *w, *g)
	}
}

func cmpIP(path string, w, g *int, add addFunc) {
	switch {
	case w == nil && g == nil:
	case w == nil || g == nil || *w != *g:
		add(path, derefI(w), derefI(g))
	}
}

func cmpBP(path string, w, g *bool, add addFunc) {
	switch {
	case w == nil && g == nil:
	case w == nil || g == nil || *w != *g:
		add(path, derefB(w), derefB(g))
	}
}

func deref(v *float64) any {
	if v == nil {
		return "<nil>"
	}
	return *v
}

func derefI(v *int) any {
	if v == nil {
		return "<nil>"
	}
	return *v
}

func derefB(v *bool) any {
	if v == nil {
		return "<nil>"
	}
	return *v
}
