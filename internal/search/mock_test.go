package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockSearchCodeFiltersAndRanks(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	require.NoError(t, m.IndexCode(ctx, CodeDoc{ProjectID: "p1", Path: "a.go", Language: "go", Symbols: "Greet", Signatures: "func Greet() {}"}))
	require.NoError(t, m.IndexCode(ctx, CodeDoc{ProjectID: "p1", Path: "b.py", Language: "python", Symbols: "greet", Signatures: "def greet(): pass"}))
	require.NoError(t, m.IndexCode(ctx, CodeDoc{ProjectID: "p2", Path: "c.go", Language: "go", Symbols: "Greet", Signatures: "func Greet() {}"}))

	results, err := m.SearchCode(ctx, "greet", CodeFilter{ProjectID: "p1"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	results, err = m.SearchCode(ctx, "greet", CodeFilter{ProjectID: "p1", Language: "go"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "a.go", results[0].Path)
}

func TestMockSearchCodeRanksSymbolsAboveImports(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	// "widget" only appears in an import on one file, but is the symbol
	// name on the other; the symbol match must outrank the import match.
	require.NoError(t, m.IndexCode(ctx, CodeDoc{ProjectID: "p1", Path: "import_only.go", Language: "go", Symbols: "Other", Imports: "pkg/widget"}))
	require.NoError(t, m.IndexCode(ctx, CodeDoc{ProjectID: "p1", Path: "symbol_match.go", Language: "go", Symbols: "Widget"}))

	results, err := m.SearchCode(ctx, "widget", CodeFilter{ProjectID: "p1"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "symbol_match.go", results[0].Path, "a symbols match must outrank an imports-only match")
}

func TestMockSearchNotes(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	require.NoError(t, m.IndexNote(ctx, NoteDoc{ID: "n1", ProjectID: "p1", NoteType: "gotcha", Content: "watch out for the race condition here"}))
	require.NoError(t, m.IndexNote(ctx, NoteDoc{ID: "n2", ProjectID: "p1", NoteType: "tip", Content: "use context cancellation"}))

	results, err := m.SearchNotes(ctx, "race", NoteFilter{ProjectID: "p1"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "n1", results[0].ID)

	require.NoError(t, m.RemoveNote(ctx, "n1"))
	results, err = m.SearchNotes(ctx, "race", NoteFilter{ProjectID: "p1"}, 10)
	require.NoError(t, err)
	require.Empty(t, results)
}
