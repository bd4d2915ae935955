// Package app is the root context named in spec §9 "Global mutable
// state": there is none at package scope. Process-wide handles — the
// Graph Store, the Search Store, the Event Bus, and every component built
// on top of them — are constructed once here and passed by reference to
// every caller, the way the teacher's internal/core.RealKernel owns its
// fact store and hands it to every shard.
package app

import (
	"context"
	"fmt"

	"codeforge/internal/config"
	"codeforge/internal/eventbus"
	"codeforge/internal/graph"
	"codeforge/internal/logging"
	"codeforge/internal/model"
	"codeforge/internal/notes"
	"codeforge/internal/parser"
	"codeforge/internal/propagation"
	"codeforge/internal/query"
	"codeforge/internal/search"
	"codeforge/internal/syncengine"
	"codeforge/internal/watcher"
	"codeforge/internal/workflow"
	"codeforge/internal/workspace"
)

// App owns one Graph Store handle and one Search Store handle plus every
// component built on top of them (§9, §5 "Shared state"). Transports
// (HTTP/WebSocket, stdio JSON-RPC) are external collaborators that hold a
// reference to an App and translate their native messages into calls
// against its components — neither transport is implemented here (§1).
type App struct {
	Config *config.Config

	Graph  graph.Store
	Search search.Store
	Bus    *eventbus.Bus

	Sync       *syncengine.Engine
	Workflow   *workflow.Manager
	Notes      *notes.Manager
	Workspace  *workspace.Manager
	Query      *query.Service
	Dispatcher *parser.Dispatcher

	watchers map[string]*watcher.Watcher
}

// New wires every component from cfg. Driver selection ("sqlite" vs
// "mock") is the one startup-time polymorphism point named in §9 "Dynamic
// dispatch over stores" — everything else in the App is concrete.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logging.Configure(cfg.Logging.Level, cfg.Logging.Categories)

	g, err := openGraph(cfg.Graph)
	if err != nil {
		return nil, fmt.Errorf("app: open graph store: %w", err)
	}
	s, err := openSearch(cfg.Search)
	if err != nil {
		return nil, fmt.Errorf("app: open search store: %w", err)
	}

	bus := eventbus.New(eventbus.NoopEmitter{})
	notesMgr := notes.New(g, s, bus)
	wfMgr := workflow.New(g, bus)
	wsMgr := workspace.New(g)
	qs := query.New(g, s)

	syncOpts := []syncengine.Option{}
	if cfg.Sync.MaxFileSizeBytes > 0 {
		syncOpts = append(syncOpts, syncengine.WithMaxFileSize(cfg.Sync.MaxFileSizeBytes))
	}
	syncEngine := syncengine.New(g, s, notesMgr, bus, syncOpts...)

	return &App{
		Config:     cfg,
		Graph:      g,
		Search:     s,
		Bus:        bus,
		Sync:       syncEngine,
		Workflow:   wfMgr,
		Notes:      notesMgr,
		Workspace:  wsMgr,
		Query:      qs,
		Dispatcher: parser.Default(),
		watchers:   make(map[string]*watcher.Watcher),
	}, nil
}

func openGraph(cfg config.GraphConfig) (graph.Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "codeforge_graph.db"
		}
		return graph.NewSqliteStore(dsn)
	case "mock":
		return graph.NewMock(), nil
	default:
		return nil, fmt.Errorf("app: unknown graph driver %q", cfg.Driver)
	}
}

func openSearch(cfg config.SearchConfig) (search.Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "codeforge_search.db"
		}
		return search.NewSqliteStore(dsn)
	case "mock":
		return search.NewMock(), nil
	default:
		return nil, fmt.Errorf("app: unknown search driver %q", cfg.Driver)
	}
}

// ContextNotes runs the Note Propagation Engine (§4.H) for anchor using the
// App's Graph Store, the one place a caller needs both a store handle and
// an anchor rather than a pre-built component.
func (a *App) ContextNotes(ctx context.Context, anchor model.Anchor, maxDepth int, minScore float64) (propagation.Result, error) {
	return propagation.Notes(ctx, a.Graph, anchor, maxDepth, minScore)
}

// Watch starts a File Watcher (§4.E) over project.RootPath, driving the
// Sync Engine's incremental path on settled file changes and falling back
// to a full Sync on event-queue overflow. Calling Watch twice for the same
// project slug replaces the prior watcher.
func (a *App) Watch(ctx context.Context, project model.Project) error {
	if w, ok := a.watchers[project.Slug]; ok {
		w.Stop()
	}
	w := watcher.New(project.RootPath,
		func(ctx context.Context, paths []string) error {
			_, err := a.Sync.SyncFiles(ctx, project, paths)
			return err
		},
		func(ctx context.Context) error {
			_, err := a.Sync.Sync(ctx, project)
			return err
		},
	)
	a.watchers[project.Slug] = w
	return w.Start(ctx)
}

// Close releases every watcher started via Watch and both store handles.
func (a *App) Close() error {
	for _, w := range a.watchers {
		w.Stop()
	}
	a.Bus.Close()
	if closer, ok := a.Graph.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return err
		}
	}
	if closer, ok := a.Search.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
