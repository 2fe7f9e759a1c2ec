// Package application is the interactive editing session shared by the MCP
// server, the terminal viewer and the watcher. It owns the model together with
// its action history and serializes every caller behind one mutex.
package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/actions"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/analysis"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/config"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/export"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/logger"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/model"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/store"
)

// ErrNoModel is returned by Load when nothing has been saved for the project yet.
var ErrNoModel = errors.New("no saved model")

// Application is one editing session over a project directory.
type Application struct {
	mu sync.Mutex

	root    string
	cfg     *config.Config
	log     *logger.Logger
	model   *model.Model
	manager *actions.Manager
	catalog *actions.Catalog
	store   *store.Store

	dirty bool
	stale []string
}

// New opens the project store below rootDir. The model starts empty; call Load
// or Analyze to fill it.
func New(rootDir string, cfg *config.Config, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		c := config.DefaultConfig
		cfg = &c
	}
	if log == nil {
		log = logger.Nop()
	}
	s, err := store.NewStore(cfg.ModelPath(rootDir), log)
	if err != nil {
		return nil, err
	}
	return &Application{
		root:    rootDir,
		cfg:     cfg,
		log:     log,
		model:   model.New(model.WithLogger(log), model.WithStrictWeights(cfg.StrictWeights)),
		manager: actions.NewManager(log),
		catalog: actions.NewCatalog(log),
		store:   s,
	}, nil
}

// Open starts a session for rootDir with the saved model, analyzing the sources
// when nothing has been saved yet.
func Open(ctx context.Context, rootDir string, cfg *config.Config, log *logger.Logger) (*Application, error) {
	app, err := New(rootDir, cfg, log)
	if err != nil {
		return nil, err
	}
	result, err := app.Load()
	switch {
	case errors.Is(err, ErrNoModel):
		report, aerr := app.Analyze(ctx)
		if aerr != nil {
			app.Close()
			return nil, aerr
		}
		if ferr := report.Err(); ferr != nil {
			app.log.Warn("Analysis finished with failures", "count", len(report.Failures), "error", ferr)
		}
	case err != nil:
		app.Close()
		return nil, err
	default:
		if ferr := result.Err(); ferr != nil {
			app.log.Warn("Model loaded with failures", "error", ferr)
		}
	}
	return app, nil
}

func (a *Application) Close() error {
	return a.store.Close()
}

func (a *Application) Root() string { return a.root }

// View runs fn with the model while holding the session lock. fn must not
// keep references to elements after it returns.
func (a *Application) View(fn func(m *model.Model)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(a.model)
}

// LoadResult reports what a load restored and what it had to skip.
type LoadResult struct {
	Store   *store.LoadReport
	History actions.LoadReport
}

// Err combines the store failures and skipped history records.
func (r *LoadResult) Err() error {
	var errs []error
	if r.Store != nil {
		errs = append(errs, r.Store.Err())
	}
	for _, s := range r.History.Skipped {
		errs = append(errs, fmt.Errorf("action %d (%s): %w", s.Index, s.Type, s.Err))
	}
	return errors.Join(errs...)
}

// Load replaces the session with the saved model and rebuilds its history.
func (a *Application) Load() (*LoadResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.reset()
	report, err := a.store.Load(a.model)
	if err != nil {
		return nil, err
	}
	if report.Elements == 0 {
		return nil, ErrNoModel
	}
	a.model.Elements().AssignElementOrder()
	history := a.catalog.LoadAll(a.model, a.manager, a.model.Actions())
	a.log.Info("Model loaded", "elements", report.Elements, "relations", report.Relations,
		"actions", history.Loaded, "skipped", len(history.Skipped))
	return &LoadResult{Store: report, History: history}, nil
}

// Save writes the model and its applied history to the project store.
func (a *Application) Save() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.exportHistory()
	if err := a.store.Save(a.model); err != nil {
		return err
	}
	a.dirty = false
	a.log.Info("Model saved", "path", a.cfg.ModelPath(a.root), "actions", len(a.model.Actions()))
	return nil
}

// Analyze replaces the session with a fresh analysis of the project sources.
func (a *Application) Analyze(ctx context.Context) (*analysis.Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.reset()
	report, err := analysis.NewAnalyzer(a.model, a.cfg, a.log).Analyze(ctx, a.root)
	if err != nil {
		return nil, err
	}
	a.model.Elements().AssignElementOrder()
	a.model.Elements().DrainEvents()
	a.dirty = true
	return report, nil
}

// ExportArchive writes the model and its history as a .dsm archive.
func (a *Application) ExportArchive(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.exportHistory()
	return export.SaveArchive(path, a.model)
}

// ImportArchive replaces the session with the content of a .dsm archive.
func (a *Application) ImportArchive(path string) (*export.ReadReport, actions.LoadReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.reset()
	report, err := export.LoadArchive(path, a.model)
	if err != nil {
		return nil, actions.LoadReport{}, err
	}
	a.model.Elements().AssignElementOrder()
	history := a.catalog.LoadAll(a.model, a.manager, a.model.Actions())
	a.dirty = true
	return report, history, nil
}

// ExportExcalidraw draws the current matrix into an Excalidraw file.
func (a *Application) ExportExcalidraw(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return export.ExportExcalidraw(a.model, path)
}

// MatrixText renders the matrix for the current expansion state.
func (a *Application) MatrixText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return export.RenderText(export.BuildMatrix(a.model.Elements()))
}

// MarkStale records a changed source file. It implements watcher.Notifier.
func (a *Application) MarkStale(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.stale {
		if p == path {
			return
		}
	}
	a.stale = append(a.stale, path)
	a.log.Debug("Model is stale", "path", path)
}

func (a *Application) reset() {
	a.model.Clear()
	a.manager.Clear()
	a.stale = nil
	a.dirty = false
}

// exportHistory rewrites the model's action log from the applied history.
func (a *Application) exportHistory() {
	a.model.ClearActions()
	a.catalog.SaveAll(a.manager, a.model.AddAction)
}
