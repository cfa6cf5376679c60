package ldd

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Datatype validates a raw lexical value and reformats valid values to
// their canonical string form. Formatting is a pure function: the same
// raw input always yields the same canonical output.
type Datatype struct {
	name     string
	validate func(string) bool
	format   func(string) (string, error)
}

// Name returns the datatype identifier used in registry data files.
func (d Datatype) Name() string { return d.name }

// Validate reports whether the raw value is lexically acceptable.
func (d Datatype) Validate(raw string) bool {
	return d.validate(strings.TrimSpace(raw))
}

// Format canonicalizes a raw value. Invalid values return an error and
// an empty string.
func (d Datatype) Format(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !d.validate(raw) {
		return "", fmt.Errorf("%s: invalid value", d.name)
	}
	return d.format(raw)
}

var (
	zipPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$|^\d{9}$`)
	ssnPattern = regexp.MustCompile(`^\d{3}-?\d{2}-?\d{4}$`)
	einPattern = regexp.MustCompile(`^\d{2}-?\d{7}$`)
)

// stateCodes is the 50-state plus district and territory set.
var stateCodes = map[string]struct{}{}

func init() {
	for _, code := range strings.Fields(
		"AL AK AZ AR CA CO CT DE FL GA HI ID IL IN IA KS KY LA ME MD " +
			"MA MI MN MS MO MT NE NV NH NJ NM NY NC ND OH OK OR PA RI SC " +
			"SD TN TX UT VT VA WA WV WI WY DC PR VI GU AS MP") {
		stateCodes[code] = struct{}{}
	}
}

// dateLayouts are accepted in order; the first match wins.
var dateLayouts = []string{"2006-01-02", "01/02/2006", "20060102"}

var datatypes = map[string]Datatype{
	"currency": {
		name: "currency",
		validate: func(raw string) bool {
			v, err := parseAmount(raw)
			return err == nil && v >= 0
		},
		format: func(raw string) (string, error) {
			v, err := parseAmount(raw)
			if err != nil {
				return "", err
			}
			return strconv.FormatFloat(v, 'f', 2, 64), nil
		},
	},
	// Percent input is the human form (7.125 means 7.125%); the
	// canonical form is a decimal fraction with fixed precision.
	"percent": {
		name: "percent",
		validate: func(raw string) bool {
			v, err := strconv.ParseFloat(raw, 64)
			return err == nil && v >= 0 && v <= 100
		},
		format: func(raw string) (string, error) {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return "", err
			}
			return strconv.FormatFloat(v/100, 'f', 6, 64), nil
		},
	},
	"ratio": {
		name: "ratio",
		validate: func(raw string) bool {
			v, err := strconv.ParseFloat(raw, 64)
			return err == nil && v >= 0 && v < 100
		},
		format: func(raw string) (string, error) {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return "", err
			}
			return strconv.FormatFloat(v, 'f', 3, 64), nil
		},
	},
	"date": {
		name: "date",
		validate: func(raw string) bool {
			_, err := parseDate(raw)
			return err == nil
		},
		format: func(raw string) (string, error) {
			t, err := parseDate(raw)
			if err != nil {
				return "", err
			}
			return t.Format("2006-01-02"), nil
		},
	},
	// US phone numbers normalize to E.164.
	"phone": {
		name: "phone",
		validate: func(raw string) bool {
			_, ok := phoneDigits(raw)
			return ok
		},
		format: func(raw string) (string, error) {
			digits, ok := phoneDigits(raw)
			if !ok {
				return "", fmt.Errorf("phone: invalid value")
			}
			return "+1" + digits, nil
		},
	},
	"ssn": {
		name: "ssn",
		validate: func(raw string) bool {
			if !ssnPattern.MatchString(raw) {
				return false
			}
			digits := digitsOnly(raw)
			area := digits[:3]
			return area != "000" && area != "666" && area[0] != '9'
		},
		format: func(raw string) (string, error) {
			return digitsOnly(raw), nil
		},
	},
	"ein": {
		name: "ein",
		validate: func(raw string) bool {
			return einPattern.MatchString(raw)
		},
		format: func(raw string) (string, error) {
			digits := digitsOnly(raw)
			return digits[:2] + "-" + digits[2:], nil
		},
	},
	"zip": {
		name: "zip",
		validate: func(raw string) bool {
			return zipPattern.MatchString(raw)
		},
		format: func(raw string) (string, error) {
			digits := digitsOnly(raw)
			if len(digits) == 9 {
				return digits[:5] + "-" + digits[5:], nil
			}
			return digits[:5], nil
		},
	},
	"state": {
		name: "state",
		validate: func(raw string) bool {
			_, ok := stateCodes[strings.ToUpper(raw)]
			return ok
		},
		format: func(raw string) (string, error) {
			return strings.ToUpper(raw), nil
		},
	},
	"credit-score": {
		name: "credit-score",
		validate: func(raw string) bool {
			v, err := strconv.Atoi(raw)
			return err == nil && v >= 300 && v <= 850
		},
		format: func(raw string) (string, error) {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return "", err
			}
			return strconv.Itoa(v), nil
		},
	},
	"count": {
		name: "count",
		validate: func(raw string) bool {
			v, err := strconv.Atoi(raw)
			return err == nil && v >= 0
		},
		format: func(raw string) (string, error) {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return "", err
			}
			return strconv.Itoa(v), nil
		},
	},
	"boolean": {
		name: "boolean",
		validate: func(raw string) bool {
			_, err := parseBool(raw)
			return err == nil
		},
		format: func(raw string) (string, error) {
			v, err := parseBool(raw)
			if err != nil {
				return "", err
			}
			return strconv.FormatBool(v), nil
		},
	},
	"text": {
		name:     "text",
		validate: func(raw string) bool { return raw != "" },
		format:   func(raw string) (string, error) { return raw, nil },
	},
}

// LookupDatatype returns the named datatype and whether it exists.
func LookupDatatype(name string) (Datatype, bool) {
	d, ok := datatypes[name]
	return d, ok
}

func parseAmount(raw string) (float64, error) {
	raw = strings.ReplaceAll(raw, ",", "")
	raw = strings.TrimPrefix(raw, "$")
	return strconv.ParseFloat(raw, 64)
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date: unrecognized format %q", raw)
}

// phoneDigits extracts the 10 national digits from a US phone number.
func phoneDigits(raw string) (string, bool) {
	digits := digitsOnly(raw)
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 || digits[0] == '0' || digits[0] == '1' {
		return "", false
	}
	return digits, true
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "true", "1", "y", "yes":
		return true, nil
	case "false", "0", "n", "no":
		return false, nil
	}
	return false, fmt.Errorf("boolean: invalid value %q", raw)
}

func digitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
