package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"codeforge/internal/graph"
	"codeforge/internal/model"
	"codeforge/internal/search"
)

const testProject = "proj1"

func seedImportChain(t *testing.T, g *graph.Mock) {
	t.Helper()
	ctx := context.Background()
	for _, path := range []string{"a.go", "b.go", "c.go", "d_test.go"} {
		_, err := g.UpsertFile(ctx, model.File{ProjectID: testProject, Path: path, Language: "go"})
		require.NoError(t, err)
	}
	// c.go imports b.go imports a.go; d_test.go imports c.go
	_, err := g.UpsertImport(ctx, model.Import{ID: "i1", ProjectID: testProject, FilePath: "b.go", RawPath: "a", ResolvedFile: "a.go"})
	require.NoError(t, err)
	_, err = g.UpsertImport(ctx, model.Import{ID: "i2", ProjectID: testProject, FilePath: "c.go", RawPath: "b", ResolvedFile: "b.go"})
	require.NoError(t, err)
	_, err = g.UpsertImport(ctx, model.Import{ID: "i3", ProjectID: testProject, FilePath: "d_test.go", RawPath: "c", ResolvedFile: "c.go"})
	require.NoError(t, err)
}

func TestSearchCodeResolvesToFileAndFiltersPathPrefix(t *testing.T) {
	ctx := context.Background()
	g := graph.NewMock()
	s := search.NewMock()
	svc := New(g, s)

	_, err := g.UpsertProject(ctx, model.Project{ID: testProject, Slug: "demo", Name: "demo"})
	require.NoError(t, err)
	_, err = g.UpsertFile(ctx, model.File{ProjectID: testProject, Path: "src/main.go", Language: "go"})
	require.NoError(t, err)
	require.NoError(t, s.IndexCode(ctx, search.CodeDoc{ProjectID: testProject, Path: "src/main.go", Language: "go", Signatures: "func main() {}"}))

	hits, err := svc.SearchCode(ctx, "demo", "", "src/", "main", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "src/main.go", hits[0].File.Path)

	hits, err = svc.SearchCode(ctx, "demo", "", "other/", "main", 10)
	require.NoError(t, err)
	require.Empty(t, hits, "path prefix excludes the only match")
}

func TestFindReferencesReturnsSymbolsAndCallers(t *testing.T) {
	ctx := context.Background()
	g := graph.NewMock()
	svc := New(g, search.NewMock())

	require.NoError(t, g.ReplaceFileSymbols(ctx, testProject, "a.go", graph.FileSymbols{
		Functions: []model.Function{{ID: "fn.target", ProjectID: testProject, FilePath: "a.go", Name: "Parse"}},
	}))
	require.NoError(t, g.ReplaceFileSymbols(ctx, testProject, "b.go", graph.FileSymbols{
		Functions: []model.Function{{ID: "fn.caller", ProjectID: testProject, FilePath: "b.go", Name: "Run"}},
		Calls:     []graph.CallEdge{{CallerID: "fn.caller", CalleeID: "fn.target"}},
	}))

	refs, err := svc.FindReferences(ctx, testProject, "Parse")
	require.NoError(t, err)
	require.Len(t, refs.Functions, 1)
	require.Equal(t, "fn.target", refs.Functions[0].ID)
	require.Len(t, refs.Callers, 1)
	require.Equal(t, "fn.caller", refs.Callers[0].ID)
}

func TestCallGraphOfWalksBothDirections(t *testing.T) {
	ctx := context.Background()
	g := graph.NewMock()
	svc := New(g, search.NewMock())

	require.NoError(t, g.ReplaceFileSymbols(ctx, testProject, "x.go", graph.FileSymbols{
		Functions: []model.Function{
			{ID: "root", ProjectID: testProject, FilePath: "x.go", Name: "Root"},
			{ID: "caller", ProjectID: testProject, FilePath: "x.go", Name: "Caller"},
			{ID: "callee", ProjectID: testProject, FilePath: "x.go", Name: "Callee"},
		},
		Calls: []graph.CallEdge{
			{CallerID: "caller", CalleeID: "root"},
			{CallerID: "root", CalleeID: "callee"},
		},
	}))

	cg, err := svc.CallGraphOf(ctx, testProject, "root", 2)
	require.NoError(t, err)
	require.Equal(t, "root", cg.Root.ID)
	ids := map[string]bool{}
	for _, n := range cg.Nodes {
		ids[n.Function.ID] = true
	}
	require.True(t, ids["caller"])
	require.True(t, ids["callee"])
	require.Len(t, cg.Edges, 2)
}

func TestImpactAnalysisBySymbolUnionsCallersAndImports(t *testing.T) {
	ctx := context.Background()
	g := graph.NewMock()
	svc := New(g, search.NewMock())
	seedImportChain(t, g)

	require.NoError(t, g.ReplaceFileSymbols(ctx, testProject, "a.go", graph.FileSymbols{
		Functions: []model.Function{{ID: "fn.a", ProjectID: testProject, FilePath: "a.go", Name: "Helper"}},
	}))
	require.NoError(t, g.ReplaceFileSymbols(ctx, testProject, "b.go", graph.FileSymbols{
		Functions: []model.Function{{ID: "fn.b", ProjectID: testProject, FilePath: "b.go", Name: "UseHelper"}},
		Calls:     []graph.CallEdge{{CallerID: "fn.b", CalleeID: "fn.a"}},
	}))

	impact, err := svc.ImpactAnalysis(ctx, testProject, ImpactTarget{SymbolName: "Helper"}, 5)
	require.NoError(t, err)
	require.Contains(t, impact.DirectlyAffected, "b.go", "caller file is directly affected")
	require.Contains(t, impact.TransitivelyAffected, "c.go")
	require.Contains(t, impact.TransitivelyAffected, "d_test.go")
	require.Contains(t, impact.TestFilesAffected, "d_test.go")
	require.Equal(t, RiskLow, impact.RiskLevel)
}

func TestArchitectureRanksByTotalDegree(t *testing.T) {
	ctx := context.Background()
	g := graph.NewMock()
	svc := New(g, search.NewMock())
	seedImportChain(t, g)

	ranked, err := svc.Architecture(ctx, testProject, 2)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	require.Equal(t, "b.go", ranked[0].Path, "b.go has both an importer and an import")
}

func TestTraitImplQueries(t *testing.T) {
	ctx := context.Background()
	g := graph.NewMock()
	svc := New(g, search.NewMock())

	require.NoError(t, g.ReplaceFileSymbols(ctx, testProject, "shapes.go", graph.FileSymbols{
		Impls: []model.ImplBlock{
			{ID: "impl1", ProjectID: testProject, FilePath: "shapes.go", TypeName: "Circle", TraitName: "Drawable"},
			{ID: "impl2", ProjectID: testProject, FilePath: "shapes.go", TypeName: "Circle", TraitName: "Serializable"},
			{ID: "impl3", ProjectID: testProject, FilePath: "shapes.go", TypeName: "Square", TraitName: "Drawable"},
		},
	}))

	impls, err := svc.FindTraitImplementations(ctx, testProject, "Drawable")
	require.NoError(t, err)
	require.Len(t, impls, 2)

	traits, err := svc.FindTypeTraits(ctx, testProject, "Circle")
	require.NoError(t, err)
	require.Equal(t, []string{"Drawable", "Serializable"}, traits)

	blocks, err := svc.GetImplBlocks(ctx, testProject, "Square")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
}
