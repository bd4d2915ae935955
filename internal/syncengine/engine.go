// Package syncengine implements the Sync Engine (§4.D): it reconciles a
// project's on-disk source tree with the Graph Store and Search Store,
// parsing changed files, resolving imports, synthesizing external-trait
// nodes, and re-verifying assertion notes.
package syncengine

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"codeforge/internal/errs"
	"codeforge/internal/eventbus"
	"codeforge/internal/graph"
	"codeforge/internal/logging"
	"codeforge/internal/model"
	"codeforge/internal/notes"
	"codeforge/internal/parser"
	"codeforge/internal/search"
)

// parseWorkers bounds how many files are parsed concurrently per sync
// (§4.D "Concurrency" — "parse phases of different files run in parallel
// up to a worker budget").
const parseWorkers = 8

// AssertionVerifier re-evaluates one assertion-type Note, reporting
// whether it still holds. The default, checkAnchorsExist, only checks that
// anchored files/functions haven't disappeared; callers with richer
// domain knowledge can supply their own.
type AssertionVerifier func(ctx context.Context, g graph.Store, n model.Note) (bool, error)

// Engine owns one Graph Store handle and one Search Store handle, plus the
// keyed lock table and dispatcher shared by every sync it runs.
type Engine struct {
	graph      graph.Store
	search     search.Store
	dispatcher *parser.Dispatcher
	notes      *notes.Manager
	bus        *eventbus.Bus
	verifier   AssertionVerifier

	fileLocks    *keyedLocks
	projectLocks *keyedLocks
	maxFileSize  int64
	workers      int
}

type Option func(*Engine)

// WithAssertionVerifier overrides the default assertion re-evaluation.
func WithAssertionVerifier(v AssertionVerifier) Option { return func(e *Engine) { e.verifier = v } }

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(n int64) Option { return func(e *Engine) { e.maxFileSize = n } }

func New(g graph.Store, s search.Store, notesManager *notes.Manager, bus *eventbus.Bus, opts ...Option) *Engine {
	e := &Engine{
		graph: g, search: s, dispatcher: parser.Default(), notes: notesManager, bus: bus,
		verifier:     checkAnchorsExist,
		fileLocks:    newKeyedLocks(),
		projectLocks: newKeyedLocks(),
		maxFileSize:  DefaultMaxFileSize,
		workers:      parseWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) publish(ctx context.Context, ev eventbus.Event) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(ctx, ev)
}

// Stats summarizes one sync run (§4.D.8).
type Stats struct {
	FilesSynced int
	FilesFailed int
	DurationMs  int64
}

// Sync runs the full discovery-based reconciliation for project (§4.D
// steps 1-8). Two syncs of the same project never run concurrently.
func (e *Engine) Sync(ctx context.Context, project model.Project) (Stats, error) {
	lock := e.projectLocks.lockFor(project.ID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	candidates, err := e.discover(project.RootPath)
	if err != nil {
		return Stats{}, errs.StoreFatal("syncengine.Sync", err)
	}

	existing, err := e.allFiles(ctx, project.ID)
	if err != nil {
		return Stats{}, err
	}
	existingHash := make(map[string]string, len(existing))
	for _, f := range existing {
		existingHash[f.Path] = f.ContentHash
	}
	candidateSet := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		candidateSet[c] = true
	}

	stats, err := e.ingestCandidates(ctx, project, candidates, existingHash)
	if err != nil {
		return Stats{}, err
	}

	for path := range existingHash {
		if candidateSet[path] {
			continue
		}
		if err := e.removeOne(ctx, project, path); err != nil {
			logging.Get(logging.CategorySync).Warn("remove failed for %s: %v", path, err)
			stats.FilesFailed++
			continue
		}
	}

	if err := e.resolveImports(ctx, project.ID, nil); err != nil {
		return Stats{}, err
	}
	if err := e.verifyAssertions(ctx, project.ID); err != nil {
		return Stats{}, err
	}
	_ = e.graph.TouchProjectSynced(ctx, project.ID, time.Now())

	stats.DurationMs = time.Since(start).Milliseconds()
	logging.Sync("sync complete for %s: %d files synced, %d failed, %dms", project.Slug, stats.FilesSynced, stats.FilesFailed, stats.DurationMs)
	return stats, nil
}

// SyncFiles runs the incremental path (§4.D "Incremental sync from
// commit"): discovery is bypassed, and only filesChanged is diffed,
// ingested, or removed. Import resolution is limited to filesChanged plus
// their existing IMPORTS neighbors.
func (e *Engine) SyncFiles(ctx context.Context, project model.Project, filesChanged []string) (Stats, error) {
	lock := e.projectLocks.lockFor(project.ID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	existingHash := make(map[string]string, len(filesChanged))
	for _, path := range filesChanged {
		if f, ok, err := e.graph.GetFile(ctx, project.ID, path); err == nil && ok {
			existingHash[path] = f.ContentHash
		}
	}

	var toIngest []string
	for _, path := range filesChanged {
		abs := filepath.Join(project.RootPath, path)
		if _, err := os.Stat(abs); err != nil {
			if err := e.removeOne(ctx, project, path); err != nil {
				logging.Get(logging.CategorySync).Warn("remove failed for %s: %v", path, err)
			}
			continue
		}
		toIngest = append(toIngest, path)
	}

	stats, err := e.ingestCandidates(ctx, project, toIngest, existingHash)
	if err != nil {
		return Stats{}, err
	}

	scope := make(map[string]bool, len(filesChanged))
	for _, path := range filesChanged {
		scope[path] = true
		if neighbors, err := e.graph.ImportsOf(ctx, project.ID, path); err == nil {
			for _, n := range neighbors {
				scope[n.Path] = true
			}
		}
		if neighbors, err := e.graph.ImportedBy(ctx, project.ID, path); err == nil {
			for _, n := range neighbors {
				scope[n.Path] = true
			}
		}
	}
	if err := e.resolveImports(ctx, project.ID, scope); err != nil {
		return Stats{}, err
	}
	if err := e.verifyAssertions(ctx, project.ID); err != nil {
		return Stats{}, err
	}

	stats.DurationMs = time.Since(start).Milliseconds()
	logging.Sync("incremental sync complete for %s: %d files synced, %d failed, %dms", project.Slug, stats.FilesSynced, stats.FilesFailed, stats.DurationMs)
	return stats, nil
}

// ingestCandidates reads+hashes+parses paths in parallel up to e.workers,
// skipping any file whose hash is unchanged, grounded on the errgroup
// worker-limit + preallocated-results-slice pattern (§4.D "Concurrency").
func (e *Engine) ingestCandidates(ctx context.Context, project model.Project, paths []string, existingHash map[string]string) (Stats, error) {
	type outcome struct {
		failed  bool
		skipped bool // unchanged: hash matched, nothing written
	}
	results := make([]outcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			abs := filepath.Join(project.RootPath, path)
			content, err := os.ReadFile(abs)
			if err != nil {
				logging.Get(logging.CategorySync).Warn("read failed for %s: %v", path, err)
				results[i] = outcome{failed: true}
				return nil
			}
			hash := contentHash(content)
			prevHash, existed := existingHash[path]
			if existed && prevHash == hash {
				results[i] = outcome{skipped: true}
				return nil // unchanged, nothing to do
			}
			if err := e.ingestOne(gctx, project, path, content, hash, existed); err != nil {
				logging.Get(logging.CategorySync).Warn("ingest failed for %s: %v", path, err)
				results[i] = outcome{failed: true}
				return nil // a per-file failure doesn't abort the rest of the sync
			}
			return nil
		})
	}
	_ = g.Wait()

	var stats Stats
	for _, r := range results {
		switch {
		case r.failed:
			stats.FilesFailed++
		case r.skipped:
			// unchanged: not counted as synced
		default:
			stats.FilesSynced++
		}
	}
	return stats, nil
}

func (e *Engine) allFiles(ctx context.Context, projectID string) ([]model.File, error) {
	var out []model.File
	offset := 0
	for {
		page, total, err := e.graph.ListFiles(ctx, graph.FileFilter{ProjectID: projectID}, graph.Page{Limit: graph.MaxPageLimit, Offset: offset})
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		offset += len(page)
		if len(page) == 0 || offset >= total {
			break
		}
	}
	return out, nil
}

// verifyAssertions re-evaluates every assertion-type Note in the project,
// flagging the ones that no longer hold (§4.D.7).
func (e *Engine) verifyAssertions(ctx context.Context, projectID string) error {
	if e.notes == nil {
		return nil
	}
	offset := 0
	for {
		page, total, err := e.graph.ListNotes(ctx, graph.NoteFilter{ProjectID: projectID, NoteType: model.NoteTypeAssertion}, graph.Page{Limit: graph.MaxPageLimit, Offset: offset})
		if err != nil {
			return err
		}
		for _, n := range page {
			holds, err := e.verifier(ctx, e.graph, n)
			if err != nil {
				logging.Get(logging.CategorySync).Warn("assertion verification failed for %s: %v", n.ID, err)
				continue
			}
			if _, err := e.notes.VerifyAssertion(ctx, n.ID, holds); err != nil {
				logging.Get(logging.CategorySync).Warn("assertion transition failed for %s: %v", n.ID, err)
			}
		}
		offset += len(page)
		if len(page) == 0 || offset >= total {
			break
		}
	}
	return nil
}

// checkAnchorsExist is the default AssertionVerifier: an assertion fails
// once any File or Function it's anchored to has vanished from the graph.
// Other anchor kinds can't be cheaply re-verified here, so they're assumed
// to still hold.
func checkAnchorsExist(ctx context.Context, g graph.Store, n model.Note) (bool, error) {
	for _, a := range n.Anchors {
		switch a.EntityType {
		case model.EntityFile:
			_, ok, err := g.GetFile(ctx, n.ProjectID, a.EntityID)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		case model.EntityFunction:
			_, ok, err := g.FindFunctionByID(ctx, a.EntityID)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}
