// Package pipeline composes the statement parser, the ledger, and the
// optional annotation collaborator into a single import operation.
package pipeline

import (
	"context"
	"fmt"

	"github.com/bankbook-dev/bankbook/internal/annotate"
	"github.com/bankbook-dev/bankbook/internal/logging"
	"github.com/bankbook-dev/bankbook/internal/model"
	"github.com/bankbook-dev/bankbook/internal/statement"
)

// Extractor parses a statement file into transactions.
type Extractor interface {
	Extract(path string) ([]model.Transaction, error)
}

// Store inserts extracted transactions.
type Store interface {
	Insert(ctx context.Context, records []model.Transaction) (int, error)
}

// Annotator fills in missing descriptions and categories.
type Annotator interface {
	AnnotateAllUnannotated(ctx context.Context) (int, error)
}

// Result reports what one import run did.
type Result struct {
	Extracted int `json:"extracted"`
	Inserted  int `json:"inserted"`
	Annotated int `json:"annotated"`
	// Files is the number of statement files consumed.
	Files int `json:"files,omitempty"`
}

// Processor runs the import pipeline. All collaborators are injected;
// annotator may be nil when annotation is not configured.
type Processor struct {
	parser    Extractor
	store     Store
	annotator Annotator
}

// New creates a Processor.
func New(parser Extractor, store Store, annotator Annotator) *Processor {
	return &Processor{parser: parser, store: store, annotator: annotator}
}

// Process imports one statement file: extract, insert, and optionally
// annotate the backlog. Extraction and insertion errors propagate
// unwrapped in meaning; there is no partial rollback, and dedup on the
// composite key makes a rerun safe.
func (p *Processor) Process(ctx context.Context, path string, annotateAll bool) (Result, error) {
	txns, err := p.parser.Extract(path)
	if err != nil {
		return Result{}, err
	}

	inserted, err := p.store.Insert(ctx, txns)
	res := Result{Extracted: len(txns), Inserted: inserted, Files: 1}
	if err != nil {
		return res, err
	}

	logging.Logger.WithFields(map[string]any{
		"file":      path,
		"extracted": res.Extracted,
		"inserted":  res.Inserted,
	}).Info("statement imported")

	if annotateAll {
		if p.annotator == nil {
			return res, annotate.ErrNotConfigured
		}
		n, err := p.annotator.AnnotateAllUnannotated(ctx)
		res.Annotated = n
		if err != nil {
			return res, fmt.Errorf("annotating: %w", err)
		}
	}
	return res, nil
}

// ProcessDir drains <root>/import/, importing each CSV and moving it to
// import/processed/. Annotation, when requested, runs once after the
// last file.
func (p *Processor) ProcessDir(ctx context.Context, root string, annotateAll bool) (Result, error) {
	files, err := statement.Scan(root)
	if err != nil {
		return Result{}, err
	}

	var total Result
	for _, f := range files {
		res, err := p.Process(ctx, f.Path, false)
		total.Extracted += res.Extracted
		total.Inserted += res.Inserted
		if err != nil {
			return total, fmt.Errorf("importing %s: %w", f.Name, err)
		}
		if err := statement.MarkProcessed(root, f.Name); err != nil {
			return total, err
		}
		total.Files++
	}

	if annotateAll {
		if p.annotator == nil {
			return total, annotate.ErrNotConfigured
		}
		n, err := p.annotator.AnnotateAllUnannotated(ctx)
		total.Annotated = n
		if err != nil {
			return total, fmt.Errorf("annotating: %w", err)
		}
	}
	return total, nil
}
