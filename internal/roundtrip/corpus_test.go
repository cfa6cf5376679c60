package roundtrip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsDeterministic(t *testing.T) {
	first := Generate(12)
	second := Generate(12)
	require.Len(t, first, 12)
	assert.Equal(t, first, second)
}

func TestGenerateCaseNamesAreStable(t *testing.T) {
	cases := Generate(3)
	assert.Equal(t, "case-0000-Purchase", cases[0].Name)
	assert.Equal(t, "case-0001-CashOutRefinance", cases[1].Name)
	assert.Equal(t, "case-0002-NoCashOutRefinance", cases[2].Name)
}

func TestGenerateBranchSpread(t *testing.T) {
	cases := Generate(30)

	seen := map[string]map[string]bool{}
	for _, c := range cases {
		for dim, value := range c.Branches {
			if seen[dim] == nil {
				seen[dim] = map[string]bool{}
			}
			seen[dim][value] = true
		}
	}

	for _, purpose := range purposes {
		assert.True(t, seen["purpose"][purpose], "purpose %s never generated", purpose)
	}
	for _, occ := range occupancies {
		assert.True(t, seen["occupancy"][occ], "occupancy %s never generated", occ)
	}
	assert.True(t, seen["guarantor"]["yes"])
	assert.True(t, seen["vesting"]["Entity"])
	assert.True(t, seen["declarations"]["yes"])
}

func TestGenerateHonorsBranches(t *testing.T) {
	for _, c := range Generate(40) {
		assert.Equal(t, c.Branches["purpose"], c.Snapshot.Loan.Purpose, c.Name)
		require.NotEmpty(t, c.Snapshot.Borrowers, c.Name)
		assert.Equal(t, "Primary", c.Snapshot.Borrowers[0].Role, c.Name)

		if c.Snapshot.Loan.Purpose == "CashOutRefinance" {
			assert.NotNil(t, c.Snapshot.Loan.CashOutAmount, c.Name)
		}
		if c.Snapshot.Loan.VestingType == "Entity" {
			assert.NotEmpty(t, c.Snapshot.Loan.EntityName, c.Name)
			assert.NotEmpty(t, c.Snapshot.Loan.EntityType, c.Name)
		}
		if c.Snapshot.Loan.ProgramType == "DSCR" {
			assert.NotNil(t, c.Snapshot.Loan.DSCR, c.Name)
		}
	}
}

func TestGenerateCrossesRenumberingBoundary(t *testing.T) {
	// Every 13th case carries enough owned properties to force ordinal
	// gap-filling past a single digit run.
	cases := Generate(14)
	assert.Len(t, cases[0].Snapshot.REO, 7)
	assert.Len(t, cases[13].Snapshot.REO, 7)
}
