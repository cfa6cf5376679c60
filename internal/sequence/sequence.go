// Package sequence assigns deterministic ordinals and stable
// cross-reference labels to repeating MISMO containers. The exporter
// depends on the guarantee that a fixed input collection always comes
// back in the same total order with the same labels.
package sequence

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/loanglide/mismo/canonical"
)

// Container label prefixes, matched to MISMO element names.
const (
	LabelBorrower = "PARTY"
	LabelProperty = "PROPERTY"
	LabelREO      = "REO"
	LabelAsset    = "ASSET"
	LabelFee      = "FEE"
)

// roleRank orders borrower roles: primary obligor first.
var roleRank = map[string]int{
	"Primary":    0,
	"CoBorrower": 1,
	"Guarantor":  2,
}

// feeCategoryRank is the fixed integrated-disclosure section order.
var feeCategoryRank = map[string]int{
	"OriginationCharges":            0,
	"ServicesBorrowerDidNotShopFor": 1,
	"ServicesBorrowerDidShopFor":    2,
	"TaxesAndOtherGovernmentFees":   3,
	"Prepaids":                      4,
	"InitialEscrowPaymentAtClosing": 5,
	"OtherCosts":                    6,
}

// Borrowers returns a sorted copy with ordinals and labels assigned.
// Order: primary role first, then explicit prior sequence, then
// creation time, then name as the final tie-break.
func Borrowers(in []canonical.Borrower) []canonical.Borrower {
	out := append([]canonical.Borrower(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := rank(roleRank, a.Role), rank(roleRank, b.Role); ra != rb {
			return ra < rb
		}
		if pa, pb := priorSeq(a.SequenceNumber), priorSeq(b.SequenceNumber); pa != pb {
			return pa < pb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return fullName(a) < fullName(b)
	})
	for i := range out {
		out[i].SequenceNumber = i + 1
		out[i].Label = label(LabelBorrower, i+1)
	}
	return renumberBorrowers(in, out)
}

// renumberBorrowers honors unique pre-existing sequence numbers,
// gap-filling the rest, then re-sorts by the final ordinal.
func renumberBorrowers(original, sorted []canonical.Borrower) []canonical.Borrower {
	prior := priorNumbers(lo.Map(original, func(b canonical.Borrower, _ int) int {
		return b.SequenceNumber
	}))
	if len(prior) == 0 {
		return sorted
	}
	assignGapFilled(len(sorted), prior, func(i int) int {
		return originalSeqAt(original, sorted[i])
	}, func(i, n int) {
		sorted[i].SequenceNumber = n
		sorted[i].Label = label(LabelBorrower, n)
	})
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SequenceNumber < sorted[j].SequenceNumber
	})
	return sorted
}

func originalSeqAt(original []canonical.Borrower, b canonical.Borrower) int {
	for _, o := range original {
		if fullName(o) == fullName(b) && o.SSN == b.SSN && o.Role == b.Role {
			return o.SequenceNumber
		}
	}
	return 0
}

// Properties sorts by prior sequence then address text. The first
// property in final order is treated as the subject property.
func Properties(in []canonical.Property) []canonical.Property {
	out := append([]canonical.Property(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if pa, pb := priorSeq(a.SequenceNumber), priorSeq(b.SequenceNumber); pa != pb {
			return pa < pb
		}
		return a.Address.OneLine() < b.Address.OneLine()
	})
	for i := range out {
		out[i].SequenceNumber = i + 1
		out[i].Label = label(LabelProperty, i+1)
	}
	return out
}

// REO sorts owned property by prior sequence then address text.
func REO(in []canonical.REOProperty) []canonical.REOProperty {
	out := append([]canonical.REOProperty(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if pa, pb := priorSeq(a.SequenceNumber), priorSeq(b.SequenceNumber); pa != pb {
			return pa < pb
		}
		return a.Address.OneLine() < b.Address.OneLine()
	})
	for i := range out {
		out[i].SequenceNumber = i + 1
		out[i].Label = label(LabelREO, i+1)
	}
	return out
}

// Assets sorts by prior sequence, then account-type name, then balance
// descending, then holder name.
func Assets(in []canonical.Asset) []canonical.Asset {
	out := append([]canonical.Asset(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if pa, pb := priorSeq(a.SequenceNumber), priorSeq(b.SequenceNumber); pa != pb {
			return pa < pb
		}
		if a.AccountType != b.AccountType {
			return a.AccountType < b.AccountType
		}
		if a.Balance != b.Balance {
			return a.Balance > b.Balance
		}
		return a.HolderName < b.HolderName
	})
	for i := range out {
		out[i].SequenceNumber = i + 1
		out[i].Label = label(LabelAsset, i+1)
	}
	return out
}

// Fees sorts by the fixed disclosure-section order, then fee name.
func Fees(in []canonical.Fee) []canonical.Fee {
	out := append([]canonical.Fee(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := rank(feeCategoryRank, a.Category), rank(feeCategoryRank, b.Category); ra != rb {
			return ra < rb
		}
		return a.Name < b.Name
	})
	for i := range out {
		out[i].SequenceNumber = i + 1
		out[i].Label = label(LabelFee, i+1)
	}
	return out
}

func label(prefix string, n int) string {
	return fmt.Sprintf("%s_%d", strings.ToUpper(prefix), n)
}

// fullName joins the borrower's name parts into one comparable key,
// used for the final sort tie-break and the renumber identity match.
func fullName(b canonical.Borrower) string {
	return strings.Join(lo.Compact([]string{
		b.FirstName, b.MiddleName, b.LastName, b.SuffixName,
	}), " ")
}

func rank(table map[string]int, key string) int {
	if r, ok := table[key]; ok {
		return r
	}
	return len(table)
}

// priorSeq maps "no prior number" after every explicit one.
func priorSeq(n int) int {
	if n <= 0 {
		return int(^uint(0) >> 1)
	}
	return n
}

// priorNumbers returns the set of valid, unique pre-existing ordinals.
func priorNumbers(nums []int) map[int]struct{} {
	counts := lo.CountValues(lo.Filter(nums, func(n int, _ int) bool { return n > 0 }))
	out := make(map[int]struct{})
	for n, c := range counts {
		if c == 1 {
			out[n] = struct{}{}
		}
	}
	return out
}

// assignGapFilled keeps each element's valid prior ordinal and assigns
// the remaining elements the lowest unused numbers in sorted position.
func assignGapFilled(n int, prior map[int]struct{}, priorOf func(int) int, set func(i, n int)) {
	used := make(map[int]struct{})
	for i := 0; i < n; i++ {
		if p := priorOf(i); p > 0 {
			if _, ok := prior[p]; ok {
				set(i, p)
				used[p] = struct{}{}
			}
		}
	}
	next := 1
	for i := 0; i < n; i++ {
		if p := priorOf(i); p > 0 {
			if _, ok := prior[p]; ok {
				continue
			}
		}
		for {
			if _, taken := used[next]; !taken {
				break
			}
			next++
		}
		set(i, next)
		used[next] = struct{}{}
	}
}
