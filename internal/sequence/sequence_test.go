package sequence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanglide/mismo/canonical"
)

func TestBorrowersOrder(t *testing.T) {
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	in := []canonical.Borrower{
		{Role: "Guarantor", LastName: "Osei", CreatedAt: base},
		{Role: "CoBorrower", LastName: "Reyes", CreatedAt: base.Add(time.Hour)},
		{Role: "CoBorrower", LastName: "Nakamura", CreatedAt: base},
		{Role: "Primary", LastName: "Alvarez", CreatedAt: base.Add(2 * time.Hour)},
	}

	out := Borrowers(in)
	require.Len(t, out, 4)

	names := []string{out[0].LastName, out[1].LastName, out[2].LastName, out[3].LastName}
	assert.Equal(t, []string{"Alvarez", "Nakamura", "Reyes", "Osei"}, names)
	for i, b := range out {
		assert.Equal(t, i+1, b.SequenceNumber)
	}
	assert.Equal(t, "PARTY_1", out[0].Label)
	assert.Equal(t, "PARTY_4", out[3].Label)

	// Input order is untouched.
	assert.Equal(t, "Osei", in[0].LastName)
	assert.Zero(t, in[0].SequenceNumber)
}

func TestBorrowersPreserveUniquePriorNumbers(t *testing.T) {
	in := []canonical.Borrower{
		{Role: "CoBorrower", LastName: "Reyes", SequenceNumber: 5},
		{Role: "Primary", LastName: "Alvarez"},
		{Role: "CoBorrower", LastName: "Nakamura"},
	}

	out := Borrowers(in)
	bySeq := map[int]string{}
	for _, b := range out {
		bySeq[b.SequenceNumber] = b.LastName
	}

	// Reyes keeps 5; the others gap-fill from 1.
	assert.Equal(t, "Reyes", bySeq[5])
	assert.Equal(t, "Alvarez", bySeq[1])
	assert.Equal(t, "Nakamura", bySeq[2])
}

func TestBorrowersDuplicatePriorNumbersRenumber(t *testing.T) {
	in := []canonical.Borrower{
		{Role: "Primary", LastName: "Alvarez", SequenceNumber: 2},
		{Role: "CoBorrower", LastName: "Reyes", SequenceNumber: 2},
	}

	out := Borrowers(in)
	seen := map[int]bool{}
	for _, b := range out {
		assert.False(t, seen[b.SequenceNumber], "sequence numbers must be unique")
		seen[b.SequenceNumber] = true
	}
	assert.True(t, seen[1])
	assert.True(t, seen[2])
}

func TestBorrowersNameTieBreak(t *testing.T) {
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	in := []canonical.Borrower{
		{Role: "CoBorrower", FirstName: "Maya", LastName: "Reyes", CreatedAt: base},
		{Role: "CoBorrower", FirstName: "Ana", LastName: "Reyes", CreatedAt: base},
		{Role: "CoBorrower", FirstName: "Ana", MiddleName: "B", LastName: "Reyes", SuffixName: "Jr", CreatedAt: base},
	}

	out := Borrowers(in)
	require.Len(t, out, 3)

	// Role, prior sequence, and creation time all tie, so the joined
	// name decides: "Ana B Reyes Jr" < "Ana Reyes" < "Maya Reyes".
	assert.Equal(t, "Jr", out[0].SuffixName)
	assert.Equal(t, "Ana", out[1].FirstName)
	assert.Empty(t, out[1].MiddleName)
	assert.Equal(t, "Maya", out[2].FirstName)
}

func TestBorrowersRenumberMatchesOnAllNameParts(t *testing.T) {
	in := []canonical.Borrower{
		{Role: "CoBorrower", FirstName: "Ana", LastName: "Reyes", SuffixName: "Jr", SequenceNumber: 3},
		{Role: "CoBorrower", FirstName: "Ana", LastName: "Reyes"},
		{Role: "Primary", FirstName: "Dana", LastName: "Okafor"},
	}

	out := Borrowers(in)
	bySeq := map[int]canonical.Borrower{}
	for _, b := range out {
		bySeq[b.SequenceNumber] = b
	}

	// Only the suffixed Reyes carried a prior number; the plain one must
	// not inherit it.
	assert.Equal(t, "Jr", bySeq[3].SuffixName)
	assert.Equal(t, "Okafor", bySeq[1].LastName)
	assert.Equal(t, "Reyes", bySeq[2].LastName)
	assert.Empty(t, bySeq[2].SuffixName)
}

func TestPropertiesOrderByAddress(t *testing.T) {
	in := []canonical.Property{
		{Address: canonical.Address{Street: "9 Mill Creek Rd", City: "Reno", State: "NV"}},
		{Address: canonical.Address{Street: "12 Cypress Ave", City: "Austin", State: "TX"}},
	}

	out := Properties(in)
	assert.Equal(t, "12 Cypress Ave", out[0].Address.Street)
	assert.Equal(t, "PROPERTY_1", out[0].Label)
	assert.Equal(t, "PROPERTY_2", out[1].Label)
}

func TestAssetsOrder(t *testing.T) {
	in := []canonical.Asset{
		{AccountType: "SavingsAccount", Balance: 5000, HolderName: "B"},
		{AccountType: "CheckingAccount", Balance: 1000, HolderName: "A"},
		{AccountType: "CheckingAccount", Balance: 9000, HolderName: "A"},
	}

	out := Assets(in)
	assert.Equal(t, "CheckingAccount", out[0].AccountType)
	assert.Equal(t, 9000.0, out[0].Balance) // higher balance first within a type
	assert.Equal(t, 1000.0, out[1].Balance)
	assert.Equal(t, "SavingsAccount", out[2].AccountType)
}

func TestFeesFollowDisclosureSectionOrder(t *testing.T) {
	in := []canonical.Fee{
		{Name: "Recording Fee", Category: "TaxesAndOtherGovernmentFees", Amount: 125},
		{Name: "Origination Fee", Category: "OriginationCharges", Amount: 1500},
		{Name: "Appraisal Fee", Category: "ServicesBorrowerDidNotShopFor", Amount: 600},
		{Name: "Custom Fee", Category: "SomethingNonStandard", Amount: 50},
	}

	out := Fees(in)
	names := make([]string, len(out))
	for i, f := range out {
		names[i] = f.Name
	}
	// Unknown categories sort after every known section.
	assert.Equal(t, []string{"Origination Fee", "Appraisal Fee", "Recording Fee", "Custom Fee"}, names)
}

func TestSequencingIsDeterministic(t *testing.T) {
	in := []canonical.REOProperty{
		{Address: canonical.Address{Street: "44 Juniper St", City: "Boise", State: "ID"}},
		{Address: canonical.Address{Street: "7 Harbor Blvd", City: "Tampa", State: "FL"}},
		{Address: canonical.Address{Street: "100 Cannery Row", City: "Savannah", State: "GA"}},
	}

	first := REO(in)
	for i := 0; i < 10; i++ {
		again := REO(in)
		assert.Equal(t, first, again)
	}
}
