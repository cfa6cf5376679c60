package export

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanglide/mismo/canonical"
	"github.com/loanglide/mismo/internal/extension"
	"github.com/loanglide/mismo/internal/ldd"
	"github.com/loanglide/mismo/internal/mismoxml"
	"github.com/loanglide/mismo/internal/schemapack"
)

func newExporter(t *testing.T) *Exporter {
	t.Helper()
	ext, err := extension.NewRegistry()
	require.NoError(t, err)
	return New(ldd.NewEngine(), ext)
}

func pack(t *testing.T, id string) schemapack.Pack {
	t.Helper()
	r, err := schemapack.NewRegistry()
	require.NoError(t, err)
	p, err := r.Lookup(id)
	require.NoError(t, err)
	return p
}

func sampleSnapshot() *canonical.Snapshot {
	cashOut := 45000.0
	rent := 3100.0
	lien := 187000.0
	score := 742
	return &canonical.Snapshot{
		Loan: canonical.Loan{
			Amount:           412500,
			InterestRate:     7.125,
			TermMonths:       360,
			Purpose:          "CashOutRefinance",
			CashOutAmount:    &cashOut,
			AmortizationType: "Fixed",
			LienPriority:     "FirstLien",
			LTV:              72.5,
		},
		Borrowers: []canonical.Borrower{
			{
				Role:      "CoBorrower",
				FirstName: "Marcus",
				LastName:  "Webb",
				CreatedAt: time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC),
			},
			{
				Role:        "Primary",
				FirstName:   "Dana",
				LastName:    "Okafor",
				SSN:         "453870001",
				BirthDate:   "1982-06-09",
				Email:       "dana@example.com",
				Phone:       "+15125550147",
				CreditScore: &score,
				CreatedAt:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
				MailingAddress: canonical.Address{
					Street: "44 Pecan St", City: "Austin", State: "TX", Zip: "78701",
				},
			},
			{
				Role:      "Guarantor",
				FirstName: "Iris",
				LastName:  "Webb",
				CreatedAt: time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
			},
		},
		Properties: []canonical.Property{{
			Address:             canonical.Address{Street: "900 Lamar Blvd", City: "Austin", State: "TX", Zip: "78704"},
			PropertyType:        "SingleFamilyDetached",
			Occupancy:           "Investment",
			EstimatedValue:      569000,
			MonthlyRentalIncome: &rent,
		}},
		REO: []canonical.REOProperty{{
			Address:     canonical.Address{Street: "12 Elm Ct", City: "Waco", State: "TX", Zip: "76701"},
			MarketValue: 250000,
			LienBalance: &lien,
			Disposition: "RetainForRental",
		}},
		Assets: []canonical.Asset{{
			AccountType:   "CheckingAccount",
			HolderName:    "First Plains Bank",
			AccountNumber: "4000977001",
			Balance:       86000,
		}},
		Fees: []canonical.Fee{{
			Name: "Appraisal Fee", Category: "ServicesBorrowerDidNotShopFor", Amount: 650,
		}},
	}
}

func TestExportIsDeterministic(t *testing.T) {
	e := newExporter(t)
	p := pack(t, "PACK_A_GENERIC_MISMO_34_B324")

	first, err := e.Export(sampleSnapshot(), p)
	require.NoError(t, err)
	require.NotEmpty(t, first.XML)
	assert.Len(t, first.ContentHash, 64)
	assert.Equal(t, len(first.XML), first.ByteSize)

	for i := 0; i < 5; i++ {
		again, err := e.Export(sampleSnapshot(), p)
		require.NoError(t, err)
		assert.Equal(t, first.XML, again.XML)
		assert.Equal(t, first.ContentHash, again.ContentHash)
	}
}

func TestExportEnvelope(t *testing.T) {
	e := newExporter(t)

	res, err := e.Export(sampleSnapshot(), pack(t, "PACK_A_GENERIC_MISMO_34_B324"))
	require.NoError(t, err)
	doc := string(res.XML)

	assert.Contains(t, doc, `<MESSAGE xmlns="http://www.mismo.org/residential/2009/schemas"`)
	assert.Contains(t, doc, `xmlns:xlink="http://www.w3.org/1999/xlink"`)
	assert.Contains(t, doc, `MISMOVersionID="3.4.0"`)
	assert.Contains(t, doc, "<DataVersionIdentifier>MISMO_3.4.0_B324</DataVersionIdentifier>")

	strict, err := e.Export(sampleSnapshot(), pack(t, "PACK_B_DU_ULAD_STRICT_34_B324"))
	require.NoError(t, err)
	assert.Contains(t, string(strict.XML),
		"<DataVersionIdentifier>MISMO_3.4.0_B324_DU_ULAD</DataVersionIdentifier>")
	assert.NotEqual(t, res.ContentHash, strict.ContentHash)
}

func TestExportDealContainerOrder(t *testing.T) {
	e := newExporter(t)

	res, err := e.Export(sampleSnapshot(), pack(t, "PACK_A_GENERIC_MISMO_34_B324"))
	require.NoError(t, err)
	doc := string(res.XML)

	order := []string{"<ASSETS>", "<COLLATERALS>", "<LOANS>", "<PARTIES>", "<RELATIONSHIPS>"}
	prev := -1
	for _, marker := range order {
		idx := strings.Index(doc, marker)
		require.GreaterOrEqual(t, idx, 0, marker)
		assert.Greater(t, idx, prev, "%s out of order", marker)
		prev = idx
	}
}

func TestExportFoldsCashOutPurpose(t *testing.T) {
	e := newExporter(t)
	p := pack(t, "PACK_A_GENERIC_MISMO_34_B324")

	res, err := e.Export(sampleSnapshot(), p)
	require.NoError(t, err)
	doc := string(res.XML)

	// The cash-out split never reaches LoanPurposeType.
	assert.Contains(t, doc, "<LoanPurposeType>Refinance</LoanPurposeType>")
	assert.NotContains(t, doc, "CashOutRefinance</LoanPurposeType>")
	assert.Contains(t, doc, "<RefinanceCashOutDeterminationType>CashOut</RefinanceCashOutDeterminationType>")
	assert.Contains(t, doc, "<RefinanceCashOutAmount>45000.00</RefinanceCashOutAmount>")

	snap := sampleSnapshot()
	snap.Loan.Purpose = "NoCashOutRefinance"
	snap.Loan.CashOutAmount = nil
	res, err = e.Export(snap, p)
	require.NoError(t, err)
	assert.Contains(t, string(res.XML),
		"<RefinanceCashOutDeterminationType>NoCashOut</RefinanceCashOutDeterminationType>")

	snap.Loan.Purpose = "Purchase"
	res, err = e.Export(snap, p)
	require.NoError(t, err)
	assert.NotContains(t, string(res.XML), "<REFINANCE>")
	assert.Contains(t, string(res.XML), "<LoanPurposeType>Purchase</LoanPurposeType>")
}

func TestExportBorrowerRoles(t *testing.T) {
	e := newExporter(t)

	res, err := e.Export(sampleSnapshot(), pack(t, "PACK_A_GENERIC_MISMO_34_B324"))
	require.NoError(t, err)

	type party struct{ classification, role string }
	var parties []party
	var current party
	err = mismoxml.Walk(res.XML, func(ev mismoxml.Event) error {
		switch {
		case ev.Kind == mismoxml.EndElement && ev.Name == "PARTY":
			parties = append(parties, current)
			current = party{}
		case ev.Kind == mismoxml.Text && ev.Name == "BorrowerClassificationType":
			current.classification = ev.Text
		case ev.Kind == mismoxml.Text && ev.Name == "PartyRoleType":
			current.role = ev.Text
		}
		return nil
	})
	require.NoError(t, err)

	// Sequence order puts the primary first, then the co-borrower by
	// creation time, then the guarantor.
	require.Len(t, parties, 3)
	assert.Equal(t, party{"Primary", "Borrower"}, parties[0])
	assert.Equal(t, party{"Secondary", "Borrower"}, parties[1])
	assert.Equal(t, party{"Secondary", "Guarantor"}, parties[2])
}

func TestExportSequencesAndLabels(t *testing.T) {
	e := newExporter(t)

	res, err := e.Export(sampleSnapshot(), pack(t, "PACK_A_GENERIC_MISMO_34_B324"))
	require.NoError(t, err)
	doc := string(res.XML)

	assert.Contains(t, doc, `xlink:label="PARTY_1"`)
	assert.Contains(t, doc, `xlink:label="PARTY_3"`)
	assert.Contains(t, doc, `xlink:from="PARTY_1"`)
	assert.Contains(t, doc, `xlink:to="LOAN_1"`)

	// Party sequence numbers are 1..n with no gaps.
	seqs := regexp.MustCompile(`<PARTY SequenceNumber="(\d)"`).FindAllStringSubmatch(doc, -1)
	require.Len(t, seqs, 3)
	for i, m := range seqs {
		assert.Equal(t, string(rune('1'+i)), m[1])
	}
}

func TestExportVendorExtensionPlacement(t *testing.T) {
	e := newExporter(t)
	snap := sampleSnapshot()
	dscr := 1.31
	business := true
	snap.Loan.DSCR = &dscr
	snap.Loan.BusinessPurpose = &business
	snap.Loan.ProgramType = "DSCR"

	res, err := e.Export(snap, pack(t, "PACK_A_GENERIC_MISMO_34_B324"))
	require.NoError(t, err)
	doc := string(res.XML)

	// The vendor namespace is declared on OTHER only, never on the root.
	assert.Contains(t, doc, `<OTHER xmlns:lg="urn:loanglide:mismo:extension:v1">`)
	assert.NotContains(t, doc, `<MESSAGE xmlns:lg`)
	assert.Contains(t, doc, "<lg:BusinessLoanDetail>")
	assert.Contains(t, doc, "<lg:DebtServiceCoverageRatio>1.310</lg:DebtServiceCoverageRatio>")

	extIdx := strings.Index(doc, "<EXTENSION>")
	loansEnd := strings.Index(doc, "</LOANS>")
	require.GreaterOrEqual(t, extIdx, 0)
	assert.Less(t, extIdx, loansEnd)
}

func TestExportSubjectPropertyExtension(t *testing.T) {
	e := newExporter(t)
	snap := sampleSnapshot()
	shortTerm := true
	rate := 92.0
	snap.Properties[0].ShortTermRental = &shortTerm
	snap.Properties[0].OccupancyRate = &rate

	res, err := e.Export(snap, pack(t, "PACK_A_GENERIC_MISMO_34_B324"))
	require.NoError(t, err)
	doc := string(res.XML)

	assert.Contains(t, doc, "<lg:RentalOperationsDetail>")
	assert.Contains(t, doc, "<lg:ShortTermRentalIndicator>true</lg:ShortTermRentalIndicator>")
	assert.Contains(t, doc, "<lg:AnnualOccupancyRatePercent>0.920000</lg:AnnualOccupancyRatePercent>")

	// An invalid extension value fails the export, matching the LOAN
	// path; valid sibling fields are never dropped silently.
	bad := 150.0
	snap.Properties[0].OccupancyRate = &bad
	_, err = e.Export(snap, pack(t, "PACK_A_GENERIC_MISMO_34_B324"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "occupancy_rate")
}

func TestExportEntityVestingOnPrimaryParty(t *testing.T) {
	e := newExporter(t)
	snap := sampleSnapshot()
	snap.Loan.VestingType = "Entity"
	snap.Loan.EntityName = "Okafor Capital LLC"
	snap.Loan.EntityType = "LimitedLiabilityCompany"

	res, err := e.Export(snap, pack(t, "PACK_A_GENERIC_MISMO_34_B324"))
	require.NoError(t, err)
	doc := string(res.XML)

	assert.Contains(t, doc, "<lg:EntityLegalName>Okafor Capital LLC</lg:EntityLegalName>")
	// Only the first party carries the vesting block.
	assert.Equal(t, 1, strings.Count(doc, "<lg:EntityVestingDetail>"))
}

func TestExportNormalizesValues(t *testing.T) {
	e := newExporter(t)
	snap := sampleSnapshot()
	snap.Borrowers = snap.Borrowers[1:2]
	snap.Borrowers[0].SSN = "453-87-0001"
	snap.Borrowers[0].Phone = "(512) 555-0147"

	res, err := e.Export(snap, pack(t, "PACK_A_GENERIC_MISMO_34_B324"))
	require.NoError(t, err)
	doc := string(res.XML)

	assert.Contains(t, doc, "<TaxpayerIdentifierValue>453870001</TaxpayerIdentifierValue>")
	assert.Contains(t, doc, "<ContactPointTelephoneValue>+15125550147</ContactPointTelephoneValue>")
	// Input snapshot is left untouched.
	assert.Equal(t, "453-87-0001", snap.Borrowers[0].SSN)
}

func TestBuildExtensionFragment(t *testing.T) {
	e := newExporter(t)
	dscr := 1.2
	snap := &canonical.Snapshot{Loan: canonical.Loan{DSCR: &dscr, ProgramType: "DSCR"}}

	frag, err := e.BuildExtensionFragment(snap, "LOAN")
	require.NoError(t, err)
	got := string(frag)
	assert.True(t, strings.HasPrefix(got, "<EXTENSION>"))
	assert.Contains(t, got, `<OTHER xmlns:lg="urn:loanglide:mismo:extension:v1">`)
	assert.Contains(t, got, "<lg:LoanProgramType>DSCR</lg:LoanProgramType>")

	frag, err = e.BuildExtensionFragment(snap, "PARTY")
	require.NoError(t, err)
	assert.Nil(t, frag)
}
