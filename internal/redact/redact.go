// Package redact is the single PII boundary for the interchange engine.
// Every message, expected/actual pair, and value preview passes through
// here before it can appear in a report, a log line, or an audit record.
// Upstream components may redact earlier; this layer applies regardless.
package redact

import (
	"regexp"
	"strings"
)

var (
	ssnPattern = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	einPattern = regexp.MustCompile(`\b\d{2}-\d{7}\b`)
	dobPattern = regexp.MustCompile(`\b(19|20)\d{2}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])\b`)
	// Bare digit runs of 8+ catch unformatted SSNs, EINs, and account or
	// routing numbers in one pass.
	longDigitPattern = regexp.MustCompile(`\d{8,}`)
)

// sensitivePathTokens classify element paths whose values must never
// appear unmasked. Matching is on lower-cased path text.
var sensitivePathTokens = []string{
	"taxpayeridentifier",
	"ssn",
	"socialsecurity",
	"birthdate",
	"dateofbirth",
	"accountidentifier",
	"accountnumber",
	"routingnumber",
	"assetaccountidentifier",
}

// String masks SSN, EIN, date-of-birth, and long digit sequences inside
// free text, keeping the last four characters of each match.
func String(s string) string {
	if s == "" {
		return s
	}
	s = ssnPattern.ReplaceAllStringFunc(s, maskKeepLast4)
	s = einPattern.ReplaceAllStringFunc(s, maskKeepLast4)
	s = dobPattern.ReplaceAllString(s, "****-**-**")
	s = longDigitPattern.ReplaceAllStringFunc(s, maskKeepLast4)
	return s
}

// Strings masks each element of a slice, returning nil for nil input.
func Strings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = String(s)
	}
	return out
}

// SensitivePath reports whether an element path names a value class
// that must be masked wherever it surfaces.
func SensitivePath(path string) bool {
	lower := strings.ToLower(path)
	for _, token := range sensitivePathTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// Preview renders a value safe for inclusion in an unmapped-node record.
// Sensitive values keep only the last four characters; others are passed
// through the text mask and truncated.
func Preview(value string, sensitive bool) string {
	if value == "" {
		return ""
	}
	if sensitive {
		return maskKeepLast4(value)
	}
	masked := String(value)
	const maxPreview = 48
	if len(masked) > maxPreview {
		return masked[:maxPreview] + "…"
	}
	return masked
}

func maskKeepLast4(s string) string {
	runes := []rune(s)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-4:])
}
