package syncengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"codeforge/internal/eventbus"
	"codeforge/internal/graph"
	"codeforge/internal/model"
	"codeforge/internal/notes"
	"codeforge/internal/search"
)

func newTestEngine(t *testing.T) (*Engine, *graph.Mock, model.Project) {
	t.Helper()
	g := graph.NewMock()
	s := search.NewMock()
	bus := eventbus.New(nil)
	t.Cleanup(bus.Close)
	n := notes.New(g, s, bus)

	root := t.TempDir()
	ctx := context.Background()
	p, err := g.UpsertProject(ctx, model.Project{Slug: "demo", Name: "demo", RootPath: root})
	require.NoError(t, err)

	return New(g, s, n, bus), g, p
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

const goSrcA = `package demo

func Helper() int { return 1 }

func UseHelper() int { return Helper() }
`

const goSrcB = `package demo

import "demo/a"

func CallA() int { return a.UseHelper() }
`

func TestDiscoverySkipsBuildDirsAndBinaries(t *testing.T) {
	e, _, p := newTestEngine(t)
	writeFile(t, p.RootPath, "a.go", goSrcA)
	writeFile(t, p.RootPath, "node_modules/vendor.go", goSrcA)
	writeFile(t, p.RootPath, ".git/hooks/pre-commit", "#!/bin/sh\n")
	require.NoError(t, os.WriteFile(filepath.Join(p.RootPath, "blob.go"), append([]byte{0}, []byte(goSrcA)...), 0o644))

	found, err := e.discover(p.RootPath)
	require.NoError(t, err)
	require.Contains(t, found, "a.go")
	require.NotContains(t, found, "node_modules/vendor.go")
	require.NotContains(t, found, "blob.go", "NUL byte makes this look binary")
}

func TestSyncIngestsParsesAndResolvesImports(t *testing.T) {
	ctx := context.Background()
	e, g, p := newTestEngine(t)
	writeFile(t, p.RootPath, "a.go", goSrcA)
	writeFile(t, p.RootPath, "b.go", goSrcB)

	stats, err := e.Sync(ctx, p)
	require.NoError(t, err)
	require.Equal(t, 2, stats.FilesSynced)
	require.Equal(t, 0, stats.FilesFailed)

	fa, ok, err := g.GetFile(ctx, p.ID, "a.go")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "go", fa.Language)

	fns, err := g.FindFunctionsByName(ctx, p.ID, "Helper")
	require.NoError(t, err)
	require.Len(t, fns, 1)

	imports, err := g.UnresolvedImports(ctx, p.ID)
	require.NoError(t, err)
	require.Empty(t, imports, "demo/a should resolve via fuzzy basename match to a.go")

	neighbors, err := g.ImportsOf(ctx, p.ID, "b.go")
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	require.Equal(t, "a.go", neighbors[0].Path)

	updatedProject, err := g.GetProjectByID(ctx, p.ID)
	require.NoError(t, err)
	require.False(t, updatedProject.LastSynced.IsZero())
}

func TestSyncIsIdempotentAndSkipsUnchangedFiles(t *testing.T) {
	ctx := context.Background()
	e, _, p := newTestEngine(t)
	writeFile(t, p.RootPath, "a.go", goSrcA)

	first, err := e.Sync(ctx, p)
	require.NoError(t, err)
	require.Equal(t, 1, first.FilesSynced)

	second, err := e.Sync(ctx, p)
	require.NoError(t, err)
	require.Equal(t, 0, second.FilesSynced, "unchanged content should be skipped on re-sync")
}

func TestSyncRemovesDeletedFiles(t *testing.T) {
	ctx := context.Background()
	e, g, p := newTestEngine(t)
	writeFile(t, p.RootPath, "a.go", goSrcA)
	_, err := e.Sync(ctx, p)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(p.RootPath, "a.go")))
	_, err = e.Sync(ctx, p)
	require.NoError(t, err)

	_, ok, err := g.GetFile(ctx, p.ID, "a.go")
	require.NoError(t, err)
	require.False(t, ok, "removed file must be cascade-deleted from the graph")
}

func TestSyncFilesIncrementalOnlyTouchesGivenPaths(t *testing.T) {
	ctx := context.Background()
	e, g, p := newTestEngine(t)
	writeFile(t, p.RootPath, "a.go", goSrcA)
	writeFile(t, p.RootPath, "b.go", goSrcB)
	_, err := e.Sync(ctx, p)
	require.NoError(t, err)

	writeFile(t, p.RootPath, "a.go", goSrcA+"\nfunc Extra() int { return 2 }\n")
	stats, err := e.SyncFiles(ctx, p, []string{"a.go"})
	require.NoError(t, err)
	require.Equal(t, 1, stats.FilesSynced)

	fns, err := g.FindFunctionsByName(ctx, p.ID, "Extra")
	require.NoError(t, err)
	require.Len(t, fns, 1)
}

func TestSyncFilesRemovesDeletedPath(t *testing.T) {
	ctx := context.Background()
	e, g, p := newTestEngine(t)
	writeFile(t, p.RootPath, "a.go", goSrcA)
	_, err := e.Sync(ctx, p)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(p.RootPath, "a.go")))
	_, err = e.SyncFiles(ctx, p, []string{"a.go"})
	require.NoError(t, err)

	_, ok, err := g.GetFile(ctx, p.ID, "a.go")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyAssertionsFlagsNoteWhenAnchorFileVanishes(t *testing.T) {
	ctx := context.Background()
	e, g, p := newTestEngine(t)
	writeFile(t, p.RootPath, "a.go", goSrcA)
	_, err := e.Sync(ctx, p)
	require.NoError(t, err)

	nm := notes.New(g, search.NewMock(), eventbus.New(nil))
	n, err := nm.Create(ctx, model.Note{
		ProjectID: p.ID, NoteType: model.NoteTypeAssertion, Content: "a.go always exists",
		Anchors: []model.Anchor{{EntityType: model.EntityFile, EntityID: "a.go"}},
	})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(p.RootPath, "a.go")))
	_, err = e.Sync(ctx, p)
	require.NoError(t, err)

	updated, ok, err := g.GetNote(ctx, n.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.NoteStatusNeedsReview, updated.Status, "assertion whose anchor file vanished must be flagged")
}
