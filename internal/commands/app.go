package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bankbook-dev/bankbook/internal/annotate"
	"github.com/bankbook-dev/bankbook/internal/config"
	"github.com/bankbook-dev/bankbook/internal/database"
	"github.com/bankbook-dev/bankbook/internal/ledger"
	"github.com/bankbook-dev/bankbook/internal/pipeline"
	"github.com/bankbook-dev/bankbook/internal/statement"
)

// app bundles the collaborators a command needs. Commands that touch the
// database call openApp in their RunE and defer Close.
type app struct {
	cfg    *config.Config
	db     *database.DB
	ledger *ledger.Service
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(config.DefaultFileName)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	svc, err := ledger.NewService(db, cfg.DefaultPageSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &app{cfg: cfg, db: db, ledger: svc}, nil
}

func (a *app) Close() {
	a.db.Close()
}

// annotator returns the configured annotator, or annotate.ErrNotConfigured
// when no API key is present.
func (a *app) annotator() (*annotate.Annotator, error) {
	return annotate.New(a.cfg.OpenAI, a.ledger)
}

// parseDateFlag turns an optional YYYY-MM-DD flag value into a time.
func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q, want YYYY-MM-DD", name, value)
	}
	return &t, nil
}

// processor wires the import pipeline. The annotator slot stays nil when
// annotation is not configured; the pipeline reports ErrNotConfigured only
// if annotation is actually requested.
func (a *app) processor() *pipeline.Processor {
	var ann pipeline.Annotator
	if an, err := a.annotator(); err == nil {
		ann = an
	}
	return pipeline.New(statement.NewParser(), a.ledger, ann)
}
