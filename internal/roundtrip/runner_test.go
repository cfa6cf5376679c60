package roundtrip

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanglide/mismo/canonical"
	"github.com/loanglide/mismo/internal/export"
	"github.com/loanglide/mismo/internal/extension"
	"github.com/loanglide/mismo/internal/importer"
	"github.com/loanglide/mismo/internal/ldd"
	"github.com/loanglide/mismo/internal/schemapack"
	"github.com/loanglide/mismo/internal/structval"
	"github.com/loanglide/mismo/report"
)

// engineOps wires the real exporter, validator, and importer into the
// harness without the public engine's gating.
type engineOps struct {
	exporter  *export.Exporter
	validator *structval.Validator
	importer  *importer.Importer
	packs     *schemapack.Registry
}

func newEngineOps(t *testing.T) *engineOps {
	t.Helper()
	ext, err := extension.NewRegistry()
	require.NoError(t, err)
	packs, err := schemapack.NewRegistry()
	require.NoError(t, err)
	im, err := importer.New(ldd.NewEngine())
	require.NoError(t, err)
	return &engineOps{
		exporter:  export.New(ldd.NewEngine(), ext),
		validator: structval.New(),
		importer:  im,
		packs:     packs,
	}
}

func (o *engineOps) ExportSnapshot(snap *canonical.Snapshot, packID string) ([]byte, error) {
	pack, err := o.packs.Lookup(packID)
	if err != nil {
		return nil, err
	}
	res, err := o.exporter.Export(snap, pack)
	if err != nil {
		return nil, err
	}
	return res.XML, nil
}

func (o *engineOps) ValidateDocument(doc []byte, packID string) (report.Status, error) {
	pack, err := o.packs.Lookup(packID)
	if err != nil {
		return "", err
	}
	return report.StatusOf(o.validator.Validate(doc, pack, structval.Full)), nil
}

func (o *engineOps) ImportSnapshot(doc []byte) (*canonical.Snapshot, error) {
	res, err := o.importer.Import(doc)
	if err != nil {
		return nil, err
	}
	return res.Snapshot, nil
}

// lossyOps drops every borrower phone on the way back in.
type lossyOps struct{ *engineOps }

func (o lossyOps) ImportSnapshot(doc []byte) (*canonical.Snapshot, error) {
	snap, err := o.engineOps.ImportSnapshot(doc)
	if err != nil {
		return nil, err
	}
	for i := range snap.Borrowers {
		snap.Borrowers[i].Phone = ""
	}
	return snap, nil
}

// invalidOps exports documents carrying an out-of-dictionary occupancy
// so every case fails enumeration validation.
type invalidOps struct{ *engineOps }

func (o invalidOps) ExportSnapshot(snap *canonical.Snapshot, packID string) ([]byte, error) {
	bad := *snap
	bad.Properties = append([]canonical.Property(nil), snap.Properties...)
	for i := range bad.Properties {
		bad.Properties[i].Occupancy = "Flip"
	}
	return o.engineOps.ExportSnapshot(&bad, packID)
}

// failingOps cannot export at all.
type failingOps struct{}

func (failingOps) ExportSnapshot(*canonical.Snapshot, string) ([]byte, error) {
	return nil, errors.New("serializer offline")
}

func (failingOps) ValidateDocument([]byte, string) (report.Status, error) {
	return "", errors.New("unreachable")
}

func (failingOps) ImportSnapshot([]byte) (*canonical.Snapshot, error) {
	return nil, errors.New("unreachable")
}

func TestRunAllCasesSurvive(t *testing.T) {
	ops := newEngineOps(t)
	cases := Generate(24)

	summary, err := Run(context.Background(), ops, "PACK_A_GENERIC_MISMO_34_B324", cases)
	require.NoError(t, err)

	for _, f := range summary.Failures {
		for _, d := range f.Differences {
			t.Logf("%s: %s", f.Case, d)
		}
	}
	assert.Equal(t, 24, summary.Total)
	assert.Equal(t, 24, summary.Passed)
	assert.Zero(t, summary.Failed)
	assert.Empty(t, summary.UncoveredBranches(),
		"a 24-case corpus strides every generation dimension")
}

func TestRunStrictPack(t *testing.T) {
	ops := newEngineOps(t)

	summary, err := Run(context.Background(), ops, "PACK_B_DU_ULAD_STRICT_34_B324", Generate(8))
	require.NoError(t, err)
	assert.Zero(t, summary.Failed)
}

func TestRunReportsLossyDifferences(t *testing.T) {
	ops := lossyOps{newEngineOps(t)}

	summary, err := Run(context.Background(), ops, "PACK_A_GENERIC_MISMO_34_B324", Generate(6))
	require.NoError(t, err)
	require.Equal(t, 6, summary.Failed)

	f := summary.Failures[0]
	assert.Equal(t, "case-0000-Purchase", f.Case)
	require.NotEmpty(t, f.Differences)
	assert.Contains(t, f.Differences[0].Path, ".phone")
	assert.NotEmpty(t, f.Detail, "failures carry a snapshot dump for replay")
}

func TestRunFailsCasesWithInvalidDocuments(t *testing.T) {
	ops := invalidOps{newEngineOps(t)}

	summary, err := Run(context.Background(), ops, "PACK_A_GENERIC_MISMO_34_B324", Generate(3))
	require.NoError(t, err)

	// The data would survive the trip, but the document itself is not
	// conformant; every case must count as failed.
	assert.Zero(t, summary.Passed)
	require.Equal(t, 3, summary.Failed)
	require.Error(t, summary.Failures[0].Err)
	assert.Contains(t, summary.Failures[0].Err.Error(), "failed validation")
}

func TestRunRecordsOperationErrors(t *testing.T) {
	summary, err := Run(context.Background(), failingOps{}, "PACK_A_GENERIC_MISMO_34_B324", Generate(2))
	require.NoError(t, err)
	require.Equal(t, 2, summary.Failed)
	require.Error(t, summary.Failures[0].Err)
	assert.Contains(t, summary.Failures[0].Err.Error(), "export")
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, newEngineOps(t), "PACK_A_GENERIC_MISMO_34_B324", Generate(64))
	assert.Error(t, err)
}

func TestUncoveredBranchesForTinyCorpus(t *testing.T) {
	summary, err := Run(context.Background(), newEngineOps(t), "PACK_A_GENERIC_MISMO_34_B324", Generate(1))
	require.NoError(t, err)

	missing := summary.UncoveredBranches()
	assert.Contains(t, missing, "purpose=CashOutRefinance")
	assert.Contains(t, missing, "amortization=AdjustableRate")
}
