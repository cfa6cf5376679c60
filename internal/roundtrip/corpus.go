// Package roundtrip generates synthetic deal corpora, exports and
// re-imports every case, and diffs the recovered snapshot against the
// source. It is the regression harness behind the public RunRegression
// operation and the round-trip test suites.
package roundtrip

import (
	"fmt"
	"time"

	"github.com/loanglide/mismo/canonical"
)

// Case is one synthetic deal with the branch choices that produced it.
type Case struct {
	Name     string
	Snapshot *canonical.Snapshot

	// Branches records which value each generation dimension took, for
	// coverage accounting.
	Branches map[string]string
}

// Generation dimensions. Each case strides every dimension
// independently so small corpora still cross most branch pairs.
var (
	purposes      = []string{"Purchase", "CashOutRefinance", "NoCashOutRefinance", "Refinance", "ConstructionToPermanent"}
	programs      = []string{"DSCR", "BankStatement", "FullDoc", "Bridge", "AssetDepletion"}
	vestings      = []string{"Individual", "Entity", "Entity", "Trust"}
	entityTypes   = []string{"LimitedLiabilityCompany", "Corporation", "LimitedPartnership", "Trust"}
	occupancies   = []string{"Investment", "PrimaryResidence", "SecondHome"}
	propertyTypes = []string{"SingleFamilyDetached", "Condominium", "TwoToFourUnit", "PUD", "SingleFamilyAttached"}
	amortizations = []string{"Fixed", "AdjustableRate"}
	dispositions  = []string{"RetainForRental", "PendingSale", "Sold"}
	assetTypes    = []string{"CheckingAccount", "SavingsAccount", "Stock", "MoneyMarketFund"}
	feeSections   = []string{"OriginationCharges", "ServicesBorrowerDidShopFor", "TaxesAndOtherGovernmentFees"}

	firstNames = []string{"Ana", "Marcus", "Priya", "Wei", "Dolores", "Sam", "Yusuf", "Elena"}
	lastNames  = []string{"Alvarez", "Okafor", "Nakamura", "Lindqvist", "Reyes", "Osei", "Kowalski", "Haddad"}
	streets    = []string{"Cypress Ave", "Harbor Blvd", "Mill Creek Rd", "Juniper St", "Lakeview Dr", "Cannery Row"}
	cities     = []string{"Austin", "Tampa", "Columbus", "Reno", "Savannah", "Boise"}
	states     = []string{"TX", "FL", "OH", "NV", "GA", "ID"}
)

// corpusEpoch anchors synthetic timestamps so generation is a pure
// function of the case index.
var corpusEpoch = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

// Generate builds n deterministic cases. Case i depends only on i, so
// regression runs are reproducible and failures can be replayed by
// index.
func Generate(n int) []Case {
	cases := make([]Case, 0, n)
	for i := 0; i < n; i++ {
		cases = append(cases, generate(i))
	}
	return cases
}

func generate(i int) Case {
	pick := func(values []string, stride int) string {
		return values[(i/max(stride, 1))%len(values)]
	}

	branches := map[string]string{
		"purpose":       purposes[i%len(purposes)],
		"program":       pick(programs, 2),
		"vesting":       pick(vestings, 3),
		"occupancy":     pick(occupancies, 1),
		"property_type": pick(propertyTypes, 2),
		"amortization":  pick(amortizations, 1),
	}

	borrowerCount := 1 + i%3
	propertyCount := 1 + (i/4)%2
	reoCount := (i / 2) % 4
	if i%13 == 0 {
		// A handful of cases cross the sequence renumbering boundary.
		reoCount = 7
	}
	assetCount := i % 3
	feeCount := (i / 3) % 4

	branches["borrowers"] = fmt.Sprintf("%d", borrowerCount)
	branches["properties"] = fmt.Sprintf("%d", propertyCount)
	branches["reo"] = fmt.Sprintf("%d", reoCount)
	branches["guarantor"] = boolBranch(borrowerCount == 3)
	branches["declarations"] = boolBranch(i%2 == 0)
	branches["demographics"] = boolBranch(i%3 == 0)

	snap := &canonical.Snapshot{Loan: loanFor(i, branches)}
	for b := 0; b < borrowerCount; b++ {
		snap.Borrowers = append(snap.Borrowers, borrowerFor(i, b))
	}
	for p := 0; p < propertyCount; p++ {
		snap.Properties = append(snap.Properties, propertyFor(i, p, branches))
	}
	for r := 0; r < reoCount; r++ {
		snap.REO = append(snap.REO, reoFor(i, r))
	}
	for a := 0; a < assetCount; a++ {
		snap.Assets = append(snap.Assets, assetFor(i, a))
	}
	for f := 0; f < feeCount; f++ {
		snap.Fees = append(snap.Fees, feeFor(i, f))
	}

	return Case{
		Name:     fmt.Sprintf("case-%04d-%s", i, branches["purpose"]),
		Snapshot: snap,
		Branches: branches,
	}
}

func loanFor(i int, branches map[string]string) canonical.Loan {
	loan := canonical.Loan{
		Amount:           150000 + float64(i%40)*12500,
		InterestRate:     5.125 + float64(i%16)*0.125,
		TermMonths:       []int{360, 240, 180, 120}[i%4],
		Purpose:          branches["purpose"],
		AmortizationType: branches["amortization"],
		LienPriority:     "FirstLien",
		LTV:              55 + float64(i%8)*5,
		InterestOnly:     i%5 == 0,
		BalloonPayment:   i%7 == 0,
		ProgramType:      branches["program"],
	}

	if loan.Purpose == "CashOutRefinance" {
		cashOut := 25000 + float64(i%10)*5000
		loan.CashOutAmount = &cashOut
	}

	loan.VestingType = branches["vesting"]
	if loan.VestingType == "Entity" {
		loan.EntityName = fmt.Sprintf("%s Holdings LLC", lastNames[i%len(lastNames)])
		loan.EntityType = entityTypes[i%len(entityTypes)]
	}

	if loan.ProgramType == "DSCR" {
		dscr := 1.05 + float64(i%9)*0.05
		loan.DSCR = &dscr
		business := true
		loan.BusinessPurpose = &business
	}
	if i%6 == 0 {
		months := 12 * (1 + i%3)
		loan.PrepaymentPenaltyMonths = &months
	}

	return loan
}

func borrowerFor(i, ordinal int) canonical.Borrower {
	role := "CoBorrower"
	switch {
	case ordinal == 0:
		role = "Primary"
	case ordinal == 2:
		role = "Guarantor"
	}

	idx := (i + ordinal*3) % len(firstNames)
	b := canonical.Borrower{
		Role:       role,
		FirstName:  firstNames[idx],
		LastName:   lastNames[(i+ordinal)%len(lastNames)],
		SSN:        fmt.Sprintf("%09d", 100010001+(i*17+ordinal)%899989998),
		BirthDate:  fmt.Sprintf("19%02d-%02d-%02d", 55+(i+ordinal)%40, 1+i%12, 1+(i+ordinal)%28),
		Email:      fmt.Sprintf("%s.%d@example.com", firstNames[idx], i),
		Phone:      fmt.Sprintf("+1512555%04d", (i*31+ordinal)%10000),
		CreatedAt:  corpusEpoch.Add(time.Duration(i*24+ordinal) * time.Hour),
		MailingAddress: canonical.Address{
			Street: fmt.Sprintf("%d %s", 100+i%900, streets[(i+ordinal)%len(streets)]),
			City:   cities[i%len(cities)],
			State:  states[i%len(states)],
			Zip:    fmt.Sprintf("%05d", 30000+(i*7+ordinal)%60000),
		},
		Citizenship:   "USCitizen",
		MaritalStatus: []string{"Married", "Unmarried", "Separated"}[(i+ordinal)%3],
	}

	score := 640 + (i*11+ordinal*7)%180
	b.CreditScore = &score

	if i%2 == 0 {
		b.Declarations = &canonical.Declarations{
			Bankruptcy:           i%8 == 0,
			OutstandingJudgments: i%10 == 0,
		}
		if b.Declarations.Bankruptcy {
			b.Declarations.BankruptcyChapter = "ChapterSeven"
		}
	}
	if i%3 == 0 {
		b.Demographics = &canonical.Demographics{
			Ethnicity: "NotHispanicOrLatino",
			Race:      []string{"White", "Asian", "BlackOrAfricanAmerican"}[(i+ordinal)%3],
			Sex:       []string{"Female", "Male", "InformationNotProvided"}[(i+ordinal)%3],
			Refused:   (i+ordinal)%9 == 0,
		}
	}

	return b
}

func propertyFor(i, ordinal int, branches map[string]string) canonical.Property {
	p := canonical.Property{
		Address: canonical.Address{
			Street: fmt.Sprintf("%d %s", 200+(i*3+ordinal)%700, streets[(i+ordinal+2)%len(streets)]),
			City:   cities[(i+ordinal)%len(cities)],
			State:  states[(i+ordinal)%len(states)],
			Zip:    fmt.Sprintf("%05d", 30000+(i*13+ordinal)%60000),
		},
		PropertyType:   branches["property_type"],
		Occupancy:      branches["occupancy"],
		EstimatedValue: 250000 + float64((i*9+ordinal)%30)*15000,
	}

	if branches["purpose"] == "Purchase" {
		price := p.EstimatedValue * 0.97
		p.PurchasePrice = &price
	}
	if branches["occupancy"] == "Investment" {
		rent := 1800 + float64(i%12)*150
		p.MonthlyRentalIncome = &rent
		if i%4 == 0 {
			short := true
			rate := 82.5 + float64(i%7)*2.5
			p.ShortTermRental = &short
			p.OccupancyRate = &rate
		}
	}

	return p
}

func reoFor(i, ordinal int) canonical.REOProperty {
	r := canonical.REOProperty{
		Address: canonical.Address{
			Street: fmt.Sprintf("%d %s", 300+(i*5+ordinal*11)%600, streets[(i+ordinal+4)%len(streets)]),
			City:   cities[(i+ordinal+1)%len(cities)],
			State:  states[(i+ordinal+1)%len(states)],
			Zip:    fmt.Sprintf("%05d", 30000+(i*19+ordinal*3)%60000),
		},
		MarketValue: 180000 + float64((i+ordinal)%20)*10000,
		Disposition: dispositions[(i+ordinal)%len(dispositions)],
	}
	if ordinal%2 == 0 {
		lien := r.MarketValue * 0.6
		r.LienBalance = &lien
	}
	if r.Disposition == "RetainForRental" {
		rent := 1500 + float64(ordinal)*125
		r.MonthlyRentalIncome = &rent
	}
	return r
}

func assetFor(i, ordinal int) canonical.Asset {
	return canonical.Asset{
		AccountType:   assetTypes[(i+ordinal)%len(assetTypes)],
		HolderName:    "First Meridian Bank",
		AccountNumber: fmt.Sprintf("%010d", 4000000000+int64(i)*977+int64(ordinal)),
		Balance:       12000 + float64((i*7+ordinal)%50)*2500,
	}
}

func feeFor(i, ordinal int) canonical.Fee {
	names := []string{"Origination Fee", "Appraisal Fee", "Title Insurance", "Recording Fee"}
	return canonical.Fee{
		Name:     names[ordinal%len(names)],
		Category: feeSections[(i+ordinal)%len(feeSections)],
		Amount:   350 + float64((i+ordinal*5)%40)*75,
	}
}

func boolBranch(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
