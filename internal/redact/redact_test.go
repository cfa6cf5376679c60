package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	tests := map[string]struct {
		in   string
		want string
	}{
		"formatted ssn": {
			in:   "value 123-45-6789 rejected",
			want: "value *******6789 rejected",
		},
		"bare ssn digits": {
			in:   "value 123456789 rejected",
			want: "value *****6789 rejected",
		},
		"ein": {
			in:   "ein 12-3456789",
			want: "ein ******6789",
		},
		"date of birth": {
			in:   "born 1985-03-14",
			want: "born ****-**-**",
		},
		"account number": {
			in:   "account 4000977001 closed",
			want: "account ******7001 closed",
		},
		"clean text": {
			in:   "note rate is outside the expected range",
			want: "note rate is outside the expected range",
		},
		"short digits untouched": {
			in:   "78701 and 360",
			want: "78701 and 360",
		},
		"empty": {in: "", want: ""},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, String(tt.in))
		})
	}
}

func TestStrings(t *testing.T) {
	assert.Nil(t, Strings(nil))
	assert.Equal(t, []string{"*******6789", "ok"}, Strings([]string{"123-45-6789", "ok"}))
}

func TestSensitivePath(t *testing.T) {
	assert.True(t, SensitivePath("/MESSAGE/DEAL/PARTY/TAXPAYER_IDENTIFIERS/TaxpayerIdentifierValue"))
	assert.True(t, SensitivePath("/PARTY/ROLES/ROLE/BORROWER/BORROWER_DETAIL/BorrowerBirthDate"))
	assert.True(t, SensitivePath("/ASSET/ASSET_DETAIL/AssetAccountIdentifier"))
	assert.False(t, SensitivePath("/MESSAGE/DEAL/LOANS/LOAN/TERMS_OF_LOAN/NoteAmount"))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "*****6789", Preview("123456789", true))
	assert.Equal(t, "****", Preview("1234", true))
	assert.Equal(t, "", Preview("", true))

	long := "this preview is quite long and should be truncated at some point for safety"
	got := Preview(long, false)
	assert.Len(t, []rune(got), 48+1) // 48 characters plus the ellipsis
	assert.Contains(t, got, "this preview")
}
