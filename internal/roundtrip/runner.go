package roundtrip

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/davecgh/go-spew/spew"
	"golang.org/x/sync/errgroup"

	"github.com/loanglide/mismo/canonical"
	"github.com/loanglide/mismo/internal/ldd"
	"github.com/loanglide/mismo/report"
)

// Ops is the slice of the engine the harness needs: serialize a
// snapshot, validate the document, and recover the snapshot. The engine
// implements it; tests may substitute a deliberately lossy
// implementation.
type Ops interface {
	ExportSnapshot(snap *canonical.Snapshot, packID string) ([]byte, error)
	ValidateDocument(doc []byte, packID string) (report.Status, error)
	ImportSnapshot(doc []byte) (*canonical.Snapshot, error)
}

// Failure is one case that did not survive the round trip.
type Failure struct {
	Case        string
	Differences []Difference
	Err         error

	// Detail is a dump of the source and recovered snapshots, kept out
	// of logs and attached only to the failure record.
	Detail string
}

// Summary is the aggregate outcome of a regression run.
type Summary struct {
	Total    int
	Passed   int
	Failed   int
	Failures []Failure

	// BranchCoverage counts cases per generation dimension value, so a
	// run that never exercised a branch is visible.
	BranchCoverage map[string]map[string]int
}

// Run exports, validates, and re-imports every case with bounded
// parallelism, diffing each recovered snapshot against its normalized
// source. Cases
// are independent; results land in an index-addressed slice so the
// summary order matches the corpus order regardless of scheduling.
func Run(ctx context.Context, ops Ops, packID string, cases []Case) (*Summary, error) {
	lddEngine := ldd.NewEngine()
	failures := make([]*Failure, len(cases))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, c := range cases {
		i, c := i, c
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			failures[i] = runCase(ops, packID, c, lddEngine)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("regression run: %w", err)
	}

	summary := &Summary{
		Total:          len(cases),
		BranchCoverage: map[string]map[string]int{},
	}
	for i, c := range cases {
		for dim, value := range c.Branches {
			if summary.BranchCoverage[dim] == nil {
				summary.BranchCoverage[dim] = map[string]int{}
			}
			summary.BranchCoverage[dim][value]++
		}
		if failures[i] == nil {
			summary.Passed++
			continue
		}
		summary.Failed++
		summary.Failures = append(summary.Failures, *failures[i])
	}
	return summary, nil
}

func runCase(ops Ops, packID string, c Case, lddEngine *ldd.Engine) *Failure {
	doc, err := ops.ExportSnapshot(c.Snapshot, packID)
	if err != nil {
		return &Failure{Case: c.Name, Err: fmt.Errorf("export: %w", err)}
	}

	// A case passes only when the exported document clears validation
	// and the recovered snapshot matches; a FAIL here is a failure even
	// if the data would have survived the trip.
	status, err := ops.ValidateDocument(doc, packID)
	if err != nil {
		return &Failure{Case: c.Name, Err: fmt.Errorf("validate: %w", err)}
	}
	if status == report.StatusFail {
		return &Failure{Case: c.Name,
			Err: fmt.Errorf("exported document failed validation against %s", packID)}
	}

	recovered, err := ops.ImportSnapshot(doc)
	if err != nil {
		return &Failure{Case: c.Name, Err: fmt.Errorf("import: %w", err)}
	}

	// The exporter normalizes lexical forms before serializing, so the
	// source side is normalized the same way before comparing.
	want := lddEngine.Normalize(c.Snapshot)
	diffs := Diff(want, recovered)
	if len(diffs) == 0 {
		return nil
	}

	return &Failure{
		Case:        c.Name,
		Differences: diffs,
		Detail: spew.Sdump(map[string]any{
			"source":    want,
			"recovered": recovered,
		}),
	}
}

// UncoveredBranches lists dimension values the corpus never produced,
// against the full branch tables. Useful for sizing a corpus.
func (s *Summary) UncoveredBranches() []string {
	tables := map[string][]string{
		"purpose":       purposes,
		"program":       programs,
		"occupancy":     occupancies,
		"property_type": propertyTypes,
		"amortization":  amortizations,
	}
	var missing []string
	for dim, values := range tables {
		for _, v := range values {
			if s.BranchCoverage[dim][v] == 0 {
				missing = append(missing, dim+"="+v)
			}
		}
	}
	sort.Strings(missing)
	return missing
}
