// Package extension keeps vendor-specific fields inside EXTENSION/OTHER
// containers per the MEG-0025 convention. The catalog is embedded data
// loaded once at init; only registered fields may be emitted, only
// under their whitelisted parent containers, and always in alphabetical
// field order.
package extension

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/loanglide/mismo/canonical"
	"github.com/loanglide/mismo/internal/ldd"
	"github.com/loanglide/mismo/report"
)

// Vendor namespace, declared only on the OTHER element inside
// EXTENSION, never on the document root.
const (
	VendorNamespaceURI    = "urn:loanglide:mismo:extension:v1"
	VendorNamespacePrefix = "lg"
)

//go:embed extensions.yaml
var catalogYAML []byte

// Field is one typed vendor field.
type Field struct {
	Name     string `yaml:"name"` // XML element name
	Key      string `yaml:"key"`  // canonical key
	Datatype string `yaml:"datatype"`
	Enum     string `yaml:"enum,omitempty"`
}

// Element is one vendor wrapper element with its parent whitelist.
type Element struct {
	Key     string   `yaml:"key"`
	Wrapper string   `yaml:"wrapper"`
	Parents []string `yaml:"parents"`
	Fields  []Field  `yaml:"fields"`
}

func (e Element) allowedUnder(container string) bool {
	for _, p := range e.Parents {
		if p == container {
			return true
		}
	}
	return false
}

func (e Element) field(key string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Registry is the immutable vendor extension catalog.
type Registry struct {
	elements map[string]Element
	byParent map[string][]Element
}

// NewRegistry loads the embedded extension catalog.
func NewRegistry() (*Registry, error) {
	var doc struct {
		Elements []Element `yaml:"elements"`
	}
	if err := yaml.Unmarshal(catalogYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse extension catalog: %w", err)
	}

	r := &Registry{
		elements: make(map[string]Element, len(doc.Elements)),
		byParent: make(map[string][]Element),
	}
	for _, el := range doc.Elements {
		if el.Key == "" || el.Wrapper == "" || len(el.Parents) == 0 {
			return nil, fmt.Errorf("extension element %q is incomplete", el.Key)
		}
		for _, f := range el.Fields {
			if _, ok := ldd.LookupDatatype(f.Datatype); !ok {
				return nil, fmt.Errorf("extension field %s.%s: unknown datatype %q",
					el.Key, f.Key, f.Datatype)
			}
		}
		// Alphabetical field order is part of the determinism contract.
		sort.Slice(el.Fields, func(i, j int) bool {
			return el.Fields[i].Name < el.Fields[j].Name
		})
		r.elements[el.Key] = el
		for _, p := range el.Parents {
			r.byParent[p] = append(r.byParent[p], el)
		}
	}
	for _, els := range r.byParent {
		sort.Slice(els, func(i, j int) bool { return els[i].Wrapper < els[j].Wrapper })
	}
	return r, nil
}

// BuiltField is a vendor field ready for serialization.
type BuiltField struct {
	Name  string
	Value string
}

// BuiltElement is one wrapper element with its fields in emission order.
type BuiltElement struct {
	Wrapper string
	Fields  []BuiltField
}

// Fragment is the EXTENSION/OTHER content for one parent container.
type Fragment struct {
	Elements []BuiltElement
}

// Empty reports whether the fragment carries no fields.
func (f *Fragment) Empty() bool {
	return f == nil || len(f.Elements) == 0
}

// Build assembles the extension fragment for a container from canonical
// key/value data. Unregistered keys and keys registered under other
// containers are skipped; values are canonicalized through their
// declared datatype. Output order is fixed regardless of input order.
func (r *Registry) Build(values map[string]string, container string) (*Fragment, error) {
	els, ok := r.byParent[container]
	if !ok || len(values) == 0 {
		return &Fragment{}, nil
	}

	var frag Fragment
	for _, el := range els {
		var built BuiltElement
		built.Wrapper = el.Wrapper
		for _, f := range el.Fields {
			raw, present := values[f.Key]
			if !present || raw == "" {
				continue
			}
			d, _ := ldd.LookupDatatype(f.Datatype)
			formatted, err := d.Format(raw)
			if err != nil {
				return nil, fmt.Errorf("extension %s.%s: %w", el.Key, f.Key, err)
			}
			built.Fields = append(built.Fields, BuiltField{Name: f.Name, Value: formatted})
		}
		if len(built.Fields) > 0 {
			frag.Elements = append(frag.Elements, built)
		}
	}
	return &frag, nil
}

// Validate checks extension values for one element the way the LDD
// engine checks core fields: datatype first, then enumeration.
func (r *Registry) Validate(values map[string]string, elementKey string) report.List {
	el, ok := r.elements[elementKey]
	if !ok {
		return report.List{report.Newf(report.CategoryExtension,
			report.CodeExtensionUnknownField, report.SeverityError, elementKey,
			"unknown extension element %q", elementKey)}
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var issues report.List
	for _, key := range keys {
		raw := values[key]
		if raw == "" {
			continue
		}
		f, known := el.field(key)
		if !known {
			issues = append(issues, report.Newf(report.CategoryExtension,
				report.CodeExtensionUnknownField, report.SeverityWarning,
				elementKey+"."+key, "field %q is not registered for %s", key, elementKey))
			continue
		}
		d, _ := ldd.LookupDatatype(f.Datatype)
		if !d.Validate(raw) {
			issues = append(issues, report.Newf(report.CategoryExtension,
				report.CodeExtensionValue, report.SeverityError,
				elementKey+"."+key, "value is not a valid %s", f.Datatype))
			continue
		}
		if f.Enum != "" {
			formatted, _ := d.Format(raw)
			if allowed, known := ldd.EnumAllowed(f.Enum, formatted); known && !allowed {
				expected, _ := ldd.EnumValues(f.Enum)
				issues = append(issues, report.Issue{
					Category: report.CategoryExtension,
					Code:     report.CodeExtensionValue,
					Severity: report.SeverityError,
					Message:  fmt.Sprintf("value is not allowed for %s", f.Enum),
					Path:     elementKey + "." + key,
					Expected: expected,
					Actual:   formatted,
				})
			}
		}
	}
	return issues
}

// AllowedUnder reports whether any registered element may appear under
// the container.
func (r *Registry) AllowedUnder(container string) bool {
	return len(r.byParent[container]) > 0
}

// Containers returns the whitelisted parent containers in sorted order.
func (r *Registry) Containers() []string {
	out := make([]string, 0, len(r.byParent))
	for c := range r.byParent {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Collect derives container-scoped extension values from the typed
// canonical snapshot. The subject property contributes the
// SUBJECT_PROPERTY values; PARTY values apply to entity vesting.
func Collect(snap *canonical.Snapshot) map[string]map[string]string {
	out := make(map[string]map[string]string)

	loan := map[string]string{}
	if snap.Loan.BusinessPurpose != nil {
		loan["business_purpose"] = boolString(*snap.Loan.BusinessPurpose)
	}
	if snap.Loan.DSCR != nil {
		loan["dscr"] = floatString(*snap.Loan.DSCR)
	}
	if snap.Loan.ProgramType != "" {
		loan["program_type"] = snap.Loan.ProgramType
	}
	if snap.Loan.PrepaymentPenaltyMonths != nil {
		loan["prepayment_penalty_months"] = fmt.Sprintf("%d", *snap.Loan.PrepaymentPenaltyMonths)
	}
	if len(loan) > 0 {
		out["LOAN"] = loan
	}

	if snap.Loan.VestingType == "Entity" {
		party := map[string]string{}
		if snap.Loan.EntityName != "" {
			party["entity_name"] = snap.Loan.EntityName
		}
		if snap.Loan.EntityType != "" {
			party["entity_type"] = snap.Loan.EntityType
		}
		if len(party) > 0 {
			out["PARTY"] = party
		}
	}

	return out
}

// CollectProperty derives SUBJECT_PROPERTY extension values for one property.
func CollectProperty(p canonical.Property) map[string]string {
	values := map[string]string{}
	if p.ShortTermRental != nil {
		values["short_term_rental"] = boolString(*p.ShortTermRental)
	}
	if p.OccupancyRate != nil {
		values["occupancy_rate"] = floatString(*p.OccupancyRate)
	}
	if p.ShortTermRental != nil && p.MonthlyRentalIncome != nil {
		values["monthly_rental_income"] = floatString(*p.MonthlyRentalIncome)
	}
	return values
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func floatString(v float64) string {
	return fmt.Sprintf("%g", v)
}
