// Package mismo is a MISMO 3.4 interchange engine for loan origination
// data. It serializes canonical loan snapshots to schema-conformant
// MISMO XML, validates documents against the supported schema packs,
// recovers canonical data from inbound documents without silent loss,
// and carries vendor fields in EXTENSION/OTHER containers.
//
// Export is deterministic: the same snapshot and schema pack always
// produce identical bytes and an identical content hash. Conformance
// reports never carry raw identity values; every textual field passes a
// redaction boundary before leaving the engine.
package mismo

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loanglide/mismo/internal/export"
	"github.com/loanglide/mismo/internal/extension"
	"github.com/loanglide/mismo/internal/fetch"
	"github.com/loanglide/mismo/internal/importer"
	"github.com/loanglide/mismo/internal/ldd"
	"github.com/loanglide/mismo/internal/schemapack"
	"github.com/loanglide/mismo/internal/structval"
)

// Supported schema pack identifiers.
const (
	PackGeneric = "PACK_A_GENERIC_MISMO_34_B324"
	PackDUULAD  = "PACK_B_DU_ULAD_STRICT_34_B324"
)

// Sentinel errors the caller can branch on.
var (
	// ErrGenerationBlocked means the snapshot failed dictionary
	// validation and best-effort mode was off. The returned result
	// still carries the conformance report.
	ErrGenerationBlocked = errors.New("generation blocked by validation errors")

	// ErrImportBlocked means the inbound document failed validation and
	// raw-only mode was off. The returned result still carries the
	// report plus the input hash for audit.
	ErrImportBlocked = errors.New("import blocked by validation errors")
)

// Engine is the interchange engine. It is immutable after New and safe
// for concurrent use; one engine serves an entire process.
type Engine struct {
	packs     *schemapack.Registry
	ext       *extension.Registry
	ldd       *ldd.Engine
	exporter  *export.Exporter
	validator *structval.Validator
	importer  *importer.Importer
	fetcher   *fetch.Fetcher

	logger *slog.Logger
	actor  string
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger replaces the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithActor sets the actor recorded on generated reports.
func WithActor(actor string) Option {
	return func(e *Engine) { e.actor = actor }
}

// WithClock replaces the report timestamp source, typically for tests.
// The exporter never reads the clock; only report metadata does.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithFetcher replaces the document fetcher used for by-reference
// validation and import.
func WithFetcher(f *fetch.Fetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

// New builds an engine over the embedded schema pack and extension
// catalogs.
func New(opts ...Option) (*Engine, error) {
	packs, err := schemapack.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("load schema packs: %w", err)
	}
	ext, err := extension.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("load extension catalog: %w", err)
	}

	lddEngine := ldd.NewEngine()
	imp, err := importer.New(lddEngine)
	if err != nil {
		return nil, fmt.Errorf("load import mapping: %w", err)
	}

	e := &Engine{
		packs:     packs,
		ext:       ext,
		ldd:       lddEngine,
		exporter:  export.New(lddEngine, ext),
		validator: structval.New(),
		importer:  imp,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fetcher == nil {
		e.fetcher = fetch.New(fetch.WithLogger(e.logger))
	}
	return e, nil
}

// Packs returns the supported schema pack identifiers.
func (e *Engine) Packs() []string {
	return e.packs.IDs()
}
