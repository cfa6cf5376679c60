package structval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanglide/mismo/canonical"
	"github.com/loanglide/mismo/internal/export"
	"github.com/loanglide/mismo/internal/extension"
	"github.com/loanglide/mismo/internal/ldd"
	"github.com/loanglide/mismo/internal/schemapack"
	"github.com/loanglide/mismo/report"
)

func packs(t *testing.T) (generic, strict schemapack.Pack) {
	t.Helper()
	r, err := schemapack.NewRegistry()
	require.NoError(t, err)
	generic, err = r.Lookup("PACK_A_GENERIC_MISMO_34_B324")
	require.NoError(t, err)
	strict, err = r.Lookup("PACK_B_DU_ULAD_STRICT_34_B324")
	require.NoError(t, err)
	return generic, strict
}

func exported(t *testing.T, pack schemapack.Pack) []byte {
	t.Helper()
	ext, err := extension.NewRegistry()
	require.NoError(t, err)
	snap := &canonical.Snapshot{
		Loan: canonical.Loan{
			Amount: 300000, InterestRate: 6.875, TermMonths: 360,
			Purpose: "Purchase", AmortizationType: "Fixed", LTV: 80,
		},
		Borrowers: []canonical.Borrower{{
			Role: "Primary", FirstName: "Dana", LastName: "Okafor",
			BirthDate: "1982-06-09",
			MailingAddress: canonical.Address{
				Street: "44 Pecan St", City: "Austin", State: "TX", Zip: "78701",
			},
		}},
		Properties: []canonical.Property{{
			Address:        canonical.Address{Street: "900 Lamar Blvd", City: "Austin", State: "TX", Zip: "78704"},
			Occupancy:      "PrimaryResidence",
			EstimatedValue: 375000,
		}},
	}
	res, err := export.New(ldd.NewEngine(), ext).Export(snap, pack)
	require.NoError(t, err)
	return res.XML
}

func codes(issues report.List) []report.Code {
	out := make([]report.Code, len(issues))
	for i, issue := range issues {
		out[i] = issue.Code
	}
	return out
}

func TestValidateExportedDocument(t *testing.T) {
	generic, strict := packs(t)
	v := New()

	assert.Empty(t, v.Validate(exported(t, generic), generic, Full))
	assert.Empty(t, v.Validate(exported(t, strict), strict, Full))
}

func TestValidateMalformedShortCircuits(t *testing.T) {
	generic, _ := packs(t)
	v := New()

	issues := v.Validate([]byte("<MESSAGE><DEAL>"), generic, Full)
	require.NotEmpty(t, issues)
	for _, issue := range issues {
		assert.Equal(t, report.CategoryWellFormedness, issue.Category)
	}
}

func TestValidateWellFormedOnlyStops(t *testing.T) {
	generic, _ := packs(t)
	v := New()

	// Structurally wrong but syntactically fine.
	issues := v.Validate([]byte("<WRONG_ROOT/>"), generic, WellFormedOnly)
	assert.Empty(t, issues)
}

func TestValidateWrongRoot(t *testing.T) {
	generic, _ := packs(t)

	issues := New().Validate([]byte("<LOAN_FILE/>"), generic, StructureOnly)
	require.Len(t, issues, 1)
	assert.Equal(t, report.CodeRootElement, issues[0].Code)
	assert.Equal(t, "LOAN_FILE", issues[0].Actual)
}

func TestValidateMissingNamespaceAndVersion(t *testing.T) {
	generic, _ := packs(t)

	issues := New().Validate([]byte("<MESSAGE/>"), generic, StructureOnly)
	got := codes(issues)
	assert.Contains(t, got, report.CodeNamespaceMissing)
	assert.Contains(t, got, report.CodeVersionIdentifier)
	assert.Contains(t, got, report.CodeElementMissing)
}

func TestValidateUnsupportedVersion(t *testing.T) {
	generic, _ := packs(t)
	doc := strings.Replace(string(exported(t, generic)),
		`MISMOVersionID="3.4.0"`, `MISMOVersionID="2.6"`, 1)

	issues := New().Validate([]byte(doc), generic, StructureOnly)
	require.Len(t, issues, 1)
	assert.Equal(t, report.CodeVersionIdentifier, issues[0].Code)
	assert.Equal(t, "2.6", issues[0].Actual)
}

func TestValidateLDDIdentifierSeverity(t *testing.T) {
	generic, strict := packs(t)
	v := New()

	// A generic-pack document checked against the strict pack has the
	// wrong LDD identifier and misses the ULAD namespaces.
	doc := exported(t, generic)

	strictIssues := v.Validate(doc, strict, StructureOnly)
	var lddIssue *report.Issue
	for i := range strictIssues {
		if strictIssues[i].Code == report.CodeLDDIdentifier {
			lddIssue = &strictIssues[i]
		}
	}
	require.NotNil(t, lddIssue)
	assert.Equal(t, report.SeverityError, lddIssue.Severity)
	assert.Contains(t, codes(strictIssues), report.CodeNamespaceMissing)

	// Against the generic pack a missing identifier only warns.
	missing := strings.Replace(string(doc),
		"<DataVersionIdentifier>MISMO_3.4.0_B324</DataVersionIdentifier>", "", 1)
	genericIssues := v.Validate([]byte(missing), generic, StructureOnly)
	require.Len(t, genericIssues, 1)
	assert.Equal(t, report.CodeLDDIdentifier, genericIssues[0].Code)
	assert.Equal(t, report.SeverityWarning, genericIssues[0].Severity)
}

func TestValidateEnumViolationIsError(t *testing.T) {
	generic, _ := packs(t)
	doc := strings.Replace(string(exported(t, generic)),
		"<LoanPurposeType>Purchase</LoanPurposeType>",
		"<LoanPurposeType>Flip</LoanPurposeType>", 1)

	issues := New().Validate([]byte(doc), generic, Full)
	require.Len(t, issues, 1)
	assert.Equal(t, report.CodeEnumViolation, issues[0].Code)
	assert.Equal(t, report.SeverityError, issues[0].Severity)
	assert.Equal(t, "Flip", issues[0].Actual)
	assert.NotZero(t, issues[0].Line)
}

func TestValidateValueChecks(t *testing.T) {
	generic, _ := packs(t)
	base := string(exported(t, generic))

	tests := map[string]struct {
		old, new string
		code     report.Code
		severity report.Severity
	}{
		"non-numeric note amount": {
			old: "<NoteAmount>300000.00</NoteAmount>", new: "<NoteAmount>lots</NoteAmount>",
			code: report.CodeDatatypeViolation, severity: report.SeverityError,
		},
		"out-of-range note rate": {
			old: "<NoteRatePercent>6.875</NoteRatePercent>", new: "<NoteRatePercent>31.000</NoteRatePercent>",
			code: report.CodeValueOutOfRange, severity: report.SeverityWarning,
		},
		"ltv above 100": {
			old: "<LTVRatioPercent>80.000</LTVRatioPercent>", new: "<LTVRatioPercent>140.000</LTVRatioPercent>",
			code: report.CodeValueOutOfRange, severity: report.SeverityWarning,
		},
		"bad postal code": {
			old: "<PostalCode>78704</PostalCode>", new: "<PostalCode>7870</PostalCode>",
			code: report.CodeDatatypeViolation, severity: report.SeverityError,
		},
		"bad birth date": {
			old: "<BorrowerBirthDate>1982-06-09</BorrowerBirthDate>", new: "<BorrowerBirthDate>June 9</BorrowerBirthDate>",
			code: report.CodeDatatypeViolation, severity: report.SeverityError,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			doc := strings.Replace(base, tt.old, tt.new, 1)
			require.NotEqual(t, base, doc, "replacement did not apply")

			issues := New().Validate([]byte(doc), generic, Full)
			require.NotEmpty(t, issues)
			assert.Equal(t, tt.code, issues[0].Code)
			assert.Equal(t, tt.severity, issues[0].Severity)
		})
	}
}

func TestValidatePairings(t *testing.T) {
	generic, _ := packs(t)
	base := string(exported(t, generic))

	noTerms := strings.Replace(base, "<TERMS_OF_LOAN>", "<TERMS_OF_LOAN_X>", 1)
	noTerms = strings.Replace(noTerms, "</TERMS_OF_LOAN>", "</TERMS_OF_LOAN_X>", 1)
	issues := New().Validate([]byte(noTerms), generic, Full)
	found := false
	for _, issue := range issues {
		if issue.Code == report.CodeElementPairing &&
			strings.Contains(issue.Message, "TERMS_OF_LOAN") {
			found = true
			assert.Equal(t, report.SeverityError, issue.Severity)
		}
	}
	assert.True(t, found)

	noName := strings.Replace(base, "<LastName>Okafor</LastName>", "", 1)
	issues = New().Validate([]byte(noName), generic, Full)
	found = false
	for _, issue := range issues {
		if issue.Code == report.CodeElementPairing {
			found = true
			assert.Equal(t, report.SeverityWarning, issue.Severity)
		}
	}
	assert.True(t, found)
}
