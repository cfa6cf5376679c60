package mismo

import (
	"context"
	"fmt"

	"github.com/loanglide/mismo/internal/roundtrip"
)

// RegressionOptions configures RunRegression.
type RegressionOptions struct {
	// PackID selects the schema pack; defaults to PackGeneric.
	PackID string

	// Cases is the corpus size; defaults to 128.
	Cases int
}

// RegressionFailure is one corpus case that did not survive the round
// trip. Detail is a full dump of both snapshots; it may contain
// synthetic identity values and is never logged by the engine.
type RegressionFailure struct {
	Case        string   `json:"case"`
	Differences []string `json:"differences,omitempty"`
	Error       string   `json:"error,omitempty"`
	Detail      string   `json:"-"`
}

// RegressionSummary is the aggregate outcome of a regression run.
type RegressionSummary struct {
	Total    int                 `json:"total"`
	Passed   int                 `json:"passed"`
	Failed   int                 `json:"failed"`
	Failures []RegressionFailure `json:"failures,omitempty"`

	BranchCoverage    map[string]map[string]int `json:"branch_coverage,omitempty"`
	UncoveredBranches []string                  `json:"uncovered_branches,omitempty"`
}

// RunRegression generates a deterministic synthetic corpus, exports and
// re-imports every case, and reports which fields failed to survive.
// Case i depends only on i, so failures replay across runs.
func (e *Engine) RunRegression(ctx context.Context, opts RegressionOptions) (*RegressionSummary, error) {
	packID := e.packID(opts.PackID)
	if _, err := e.packs.Lookup(packID); err != nil {
		return nil, err
	}
	n := opts.Cases
	if n <= 0 {
		n = 128
	}

	cases := roundtrip.Generate(n)
	run, err := roundtrip.Run(ctx, e, packID, cases)
	if err != nil {
		return nil, err
	}

	summary := &RegressionSummary{
		Total:             run.Total,
		Passed:            run.Passed,
		Failed:            run.Failed,
		BranchCoverage:    run.BranchCoverage,
		UncoveredBranches: run.UncoveredBranches(),
	}
	for _, f := range run.Failures {
		out := RegressionFailure{Case: f.Case, Detail: f.Detail}
		if f.Err != nil {
			out.Error = f.Err.Error()
		}
		for _, d := range f.Differences {
			out.Differences = append(out.Differences, d.String())
		}
		summary.Failures = append(summary.Failures, out)
	}

	e.logger.Info("regression run finished",
		"pack", packID, "total", summary.Total,
		"passed", summary.Passed, "failed", summary.Failed)
	if summary.Failed > 0 {
		return summary, fmt.Errorf("round-trip regression: %d of %d cases failed",
			summary.Failed, summary.Total)
	}
	return summary, nil
}
