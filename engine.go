package mismo

import (
	"context"
	"fmt"

	"github.com/loanglide/mismo/canonical"
	"github.com/loanglide/mismo/internal/importer"
	"github.com/loanglide/mismo/internal/structval"
	"github.com/loanglide/mismo/report"
)

// ValidationMode selects how deep ValidateXML goes.
type ValidationMode string

const (
	// ModeWellFormed stops after the XML syntax check.
	ModeWellFormed ValidationMode = "well-formed"
	// ModeStructure adds root, namespace, version, and element checks.
	ModeStructure ValidationMode = "structure"
	// ModeFull runs every pass including datatypes and enumerations.
	ModeFull ValidationMode = "full"
)

func (m ValidationMode) internal() (structval.Mode, error) {
	switch m {
	case ModeWellFormed:
		return structval.WellFormedOnly, nil
	case ModeStructure:
		return structval.StructureOnly, nil
	case ModeFull, "":
		return structval.Full, nil
	}
	return 0, fmt.Errorf("unknown validation mode %q", m)
}

// GenerateOptions configures GenerateXML.
type GenerateOptions struct {
	// PackID selects the schema pack; defaults to PackGeneric.
	PackID string

	// BestEffort serializes even when dictionary validation fails. The
	// report still records every issue and the result is flagged.
	BestEffort bool
}

// GenerateResult is a serialized document plus its conformance record.
type GenerateResult struct {
	XML         []byte
	ContentHash string
	ByteSize    int
	BestEffort  bool
	Report      report.Report
}

// GenerateXML validates the snapshot against the logical data
// dictionary and serializes it. Validation errors block generation
// unless best-effort mode is on; either way the report carries the
// full issue list.
func (e *Engine) GenerateXML(snap *canonical.Snapshot, opts GenerateOptions) (*GenerateResult, error) {
	pack, err := e.packs.Lookup(e.packID(opts.PackID))
	if err != nil {
		return nil, err
	}

	verdict := e.ldd.Validate(snap)
	rep := report.Generate(e.meta(), snap, verdict.Issues)

	if verdict.Status == report.StatusFail && !opts.BestEffort {
		e.logger.Info("generation blocked",
			"pack", pack.ID, "errors", rep.ErrorCount, "report", rep.ID)
		return &GenerateResult{Report: rep}, ErrGenerationBlocked
	}

	out, err := e.exporter.Export(snap, pack)
	if err != nil {
		return nil, fmt.Errorf("export snapshot: %w", err)
	}

	e.logger.Info("document generated",
		"pack", pack.ID, "bytes", out.ByteSize, "hash", out.ContentHash,
		"status", rep.Status, "best_effort", opts.BestEffort)
	return &GenerateResult{
		XML:         out.XML,
		ContentHash: out.ContentHash,
		ByteSize:    out.ByteSize,
		BestEffort:  opts.BestEffort && verdict.Status == report.StatusFail,
		Report:      rep,
	}, nil
}

// ValidateOptions configures ValidateXML.
type ValidateOptions struct {
	PackID string
	Mode   ValidationMode
}

// ValidateResult is the conformance outcome for one document.
type ValidateResult struct {
	Status report.Status
	Report report.Report
}

// ValidateXML checks a document against a schema pack at the selected
// depth.
func (e *Engine) ValidateXML(doc []byte, opts ValidateOptions) (*ValidateResult, error) {
	pack, err := e.packs.Lookup(e.packID(opts.PackID))
	if err != nil {
		return nil, err
	}
	mode, err := opts.Mode.internal()
	if err != nil {
		return nil, err
	}

	issues := e.validator.Validate(doc, pack, mode)
	rep := report.Generate(e.meta(), nil, issues)

	e.logger.Info("document validated",
		"pack", pack.ID, "mode", string(opts.Mode), "status", rep.Status,
		"errors", rep.ErrorCount, "warnings", rep.WarningCount)
	return &ValidateResult{Status: rep.Status, Report: rep}, nil
}

// ValidateURL fetches a document by reference and validates it. Fetch
// failures return a *fetch.TransportError, never a FAIL report.
func (e *Engine) ValidateURL(ctx context.Context, url string, opts ValidateOptions) (*ValidateResult, error) {
	doc, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return e.ValidateXML(doc, opts)
}

// ImportOptions configures ImportXML.
type ImportOptions struct {
	PackID string

	// RawOnly recovers whatever canonical data is present even when
	// the document fails validation.
	RawOnly bool
}

// ImportResult is the recovered snapshot with its retention ledger.
// InputHash and ByteSize are populated even when import is blocked.
type ImportResult struct {
	Snapshot *canonical.Snapshot
	Unmapped []report.UnmappedNode
	Report   report.Report

	InputHash     string
	ByteSize      int
	MappedCount   int
	TextNodeCount int
}

// ImportXML validates an inbound document and maps it back to a
// canonical snapshot. Validation errors block the mapped snapshot
// unless raw-only mode is on; the audit hash is recorded either way.
func (e *Engine) ImportXML(doc []byte, opts ImportOptions) (*ImportResult, error) {
	pack, err := e.packs.Lookup(e.packID(opts.PackID))
	if err != nil {
		return nil, err
	}

	res := &ImportResult{
		InputHash: importer.HashInput(doc),
		ByteSize:  len(doc),
	}

	issues := e.validator.Validate(doc, pack, structval.Full)
	if issues.HasErrors() && !opts.RawOnly {
		res.Report = report.Generate(e.meta(), nil, issues)
		e.logger.Info("import blocked",
			"pack", pack.ID, "hash", res.InputHash, "errors", res.Report.ErrorCount)
		return res, ErrImportBlocked
	}

	mapped, err := e.importer.Import(doc)
	if err != nil {
		return nil, fmt.Errorf("import document: %w", err)
	}

	res.Snapshot = mapped.Snapshot
	res.Unmapped = mapped.Unmapped
	res.MappedCount = mapped.MappedCount
	res.TextNodeCount = mapped.TextNodeCount
	res.Report = report.Generate(e.meta(), mapped.Snapshot, issues, mapped.Issues)

	e.logger.Info("document imported",
		"pack", pack.ID, "hash", res.InputHash,
		"mapped", res.MappedCount, "unmapped", len(res.Unmapped),
		"status", res.Report.Status)
	return res, nil
}

// ImportURL fetches a document by reference and imports it.
func (e *Engine) ImportURL(ctx context.Context, url string, opts ImportOptions) (*ImportResult, error) {
	doc, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return e.ImportXML(doc, opts)
}

// BuildExtension serializes the EXTENSION fragment for one parent
// container, or nil when no registered field carries a value. The
// container must be whitelisted in the extension catalog.
func (e *Engine) BuildExtension(snap *canonical.Snapshot, container string) ([]byte, error) {
	if !e.ext.AllowedUnder(container) {
		return nil, fmt.Errorf("no extension element is registered under %q (allowed: %v)",
			container, e.ext.Containers())
	}
	return e.exporter.BuildExtensionFragment(snap, container)
}

// ExportSnapshot serializes without dictionary gating. The regression
// harness uses it; most callers want GenerateXML.
func (e *Engine) ExportSnapshot(snap *canonical.Snapshot, packID string) ([]byte, error) {
	pack, err := e.packs.Lookup(e.packID(packID))
	if err != nil {
		return nil, err
	}
	out, err := e.exporter.Export(snap, pack)
	if err != nil {
		return nil, err
	}
	return out.XML, nil
}

// ValidateDocument runs the full validation pass and reports only the
// resulting status. The regression harness calls it between export and
// import; most callers want ValidateXML.
func (e *Engine) ValidateDocument(doc []byte, packID string) (report.Status, error) {
	res, err := e.ValidateXML(doc, ValidateOptions{PackID: packID, Mode: ModeFull})
	if err != nil {
		return "", err
	}
	return res.Status, nil
}

// ImportSnapshot recovers a snapshot without validation gating. The
// regression harness uses it; most callers want ImportXML.
func (e *Engine) ImportSnapshot(doc []byte) (*canonical.Snapshot, error) {
	res, err := e.importer.Import(doc)
	if err != nil {
		return nil, err
	}
	return res.Snapshot, nil
}

func (e *Engine) packID(id string) string {
	if id == "" {
		return PackGeneric
	}
	return id
}

func (e *Engine) meta() report.Meta {
	return report.Meta{Actor: e.actor, GeneratedAt: e.now()}
}
