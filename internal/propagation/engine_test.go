package propagation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"codeforge/internal/graph"
	"codeforge/internal/model"
)

func TestDirectNotesOnlyActiveAndExactAnchor(t *testing.T) {
	ctx := context.Background()
	m := graph.NewMock()
	target := model.Anchor{EntityType: model.EntityFunction, EntityID: "fn1"}

	_, err := m.UpsertNote(ctx, model.Note{ID: "n1", Content: "active one", NoteType: model.NoteTypeTip, Status: model.NoteStatusActive, Anchors: []model.Anchor{target}})
	require.NoError(t, err)
	_, err = m.UpsertNote(ctx, model.Note{ID: "n2", Content: "obsolete one", NoteType: model.NoteTypeTip, Status: model.NoteStatusObsolete, Anchors: []model.Anchor{target}})
	require.NoError(t, err)

	res, err := Notes(ctx, m, target, DefaultMaxDepth, DefaultMinScore)
	require.NoError(t, err)
	require.Len(t, res.Direct, 1)
	require.Equal(t, "n1", res.Direct[0].ID)
}

func TestPropagationWalksContainsAndScores(t *testing.T) {
	ctx := context.Background()
	m := graph.NewMock()
	file := model.Anchor{EntityType: model.EntityFile, EntityID: "a.go"}
	fn := model.Anchor{EntityType: model.EntityFunction, EntityID: "fn1"}

	require.NoError(t, m.AddEdge(ctx, graph.Edge{FromType: model.EntityFile, FromID: "a.go", RelType: model.RelContains, ToType: model.EntityFunction, ToID: "fn1"}))

	_, err := m.UpsertNote(ctx, model.Note{
		ID: "n1", Content: "file-level note", NoteType: model.NoteTypeGuideline, Status: model.NoteStatusActive,
		Importance: model.ImportanceHigh, Anchors: []model.Anchor{file},
	})
	require.NoError(t, err)

	res, err := Notes(ctx, m, fn, DefaultMaxDepth, DefaultMinScore)
	require.NoError(t, err)
	require.Len(t, res.Propagated, 1)
	p := res.Propagated[0]
	require.Equal(t, "n1", p.Note.ID)
	// fn -> file is the reverse CONTAINS direction, weight 0.9 (spec.md §4.H
	// S4 worked example), times importance 1.1, freshness 1.0
	require.InDelta(t, 0.9*1.1, p.RelevanceScore, 0.001)
	require.Equal(t, []model.RelType{model.RelContains}, p.Path)
}

// TestPropagationS4Scenario reproduces spec.md §8 scenario S4: a guideline
// note on x.rs reaches y.rs's function f through IMPORTS then CONTAINS,
// scoring ≈ 0.9 (CONTAINS, fn->file) * 0.6 (IMPORTS) * 1.0 (fresh) * 1.1
// (high importance) ≈ 0.594.
func TestPropagationS4Scenario(t *testing.T) {
	ctx := context.Background()
	m := graph.NewMock()
	x := model.Anchor{EntityType: model.EntityFile, EntityID: "x.rs"}
	f := model.Anchor{EntityType: model.EntityFunction, EntityID: "f"}

	require.NoError(t, m.AddEdge(ctx, graph.Edge{FromType: model.EntityFile, FromID: "y.rs", RelType: model.RelImports, ToType: model.EntityFile, ToID: "x.rs"}))
	require.NoError(t, m.AddEdge(ctx, graph.Edge{FromType: model.EntityFile, FromID: "y.rs", RelType: model.RelContains, ToType: model.EntityFunction, ToID: "f"}))

	_, err := m.UpsertNote(ctx, model.Note{
		ID: "n1", Content: "guideline on x.rs", NoteType: model.NoteTypeGuideline, Status: model.NoteStatusActive,
		Importance: model.ImportanceHigh, Anchors: []model.Anchor{x},
	})
	require.NoError(t, err)

	res, err := Notes(ctx, m, f, DefaultMaxDepth, DefaultMinScore)
	require.NoError(t, err)
	require.Len(t, res.Propagated, 1)
	require.Equal(t, "n1", res.Propagated[0].Note.ID)
	require.InDelta(t, 0.594, res.Propagated[0].RelevanceScore, 0.01)
}

func TestPropagationFiltersBelowMinScore(t *testing.T) {
	ctx := context.Background()
	m := graph.NewMock()
	file := model.Anchor{EntityType: model.EntityFile, EntityID: "a.go"}
	fn := model.Anchor{EntityType: model.EntityFunction, EntityID: "fn1"}
	require.NoError(t, m.AddEdge(ctx, graph.Edge{FromType: model.EntityFile, FromID: "a.go", RelType: model.RelContains, ToType: model.EntityFunction, ToID: "fn1"}))

	_, err := m.UpsertNote(ctx, model.Note{
		ID: "n1", Content: "low importance stale note", NoteType: model.NoteTypeTip, Status: model.NoteStatusActive,
		Importance: model.ImportanceLow, StalenessScore: 0.9, Anchors: []model.Anchor{file},
	})
	require.NoError(t, err)

	res, err := Notes(ctx, m, fn, DefaultMaxDepth, DefaultMinScore)
	require.NoError(t, err)
	require.Empty(t, res.Propagated, "0.9 * 0.1 freshness * 0.8 importance is below the default min_score")
}

func TestPropagationOrderingDescendingRelevance(t *testing.T) {
	ctx := context.Background()
	m := graph.NewMock()
	file := model.Anchor{EntityType: model.EntityFile, EntityID: "a.go"}
	fn := model.Anchor{EntityType: model.EntityFunction, EntityID: "fn1"}
	require.NoError(t, m.AddEdge(ctx, graph.Edge{FromType: model.EntityFile, FromID: "a.go", RelType: model.RelContains, ToType: model.EntityFunction, ToID: "fn1"}))

	_, err := m.UpsertNote(ctx, model.Note{ID: "low", Content: "low", NoteType: model.NoteTypeTip, Status: model.NoteStatusActive, Importance: model.ImportanceLow, Anchors: []model.Anchor{file}})
	require.NoError(t, err)
	_, err = m.UpsertNote(ctx, model.Note{ID: "crit", Content: "critical", NoteType: model.NoteTypeGotcha, Status: model.NoteStatusActive, Importance: model.ImportanceCritical, Anchors: []model.Anchor{file}})
	require.NoError(t, err)

	res, err := Notes(ctx, m, fn, DefaultMaxDepth, DefaultMinScore)
	require.NoError(t, err)
	require.Len(t, res.Propagated, 2)
	require.Equal(t, "crit", res.Propagated[0].Note.ID, "higher importance weight ranks first")
	require.Equal(t, "low", res.Propagated[1].Note.ID)
}
