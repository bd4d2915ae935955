package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"codeforge/internal/model"
)

func TestTaskDependencyCycleRejected(t *testing.T) {
	ctx := context.Background()
	m := NewMock()

	_, err := m.UpsertPlan(ctx, model.Plan{ID: "plan1", Title: "Plan"})
	require.NoError(t, err)
	for _, id := range []string{"t1", "t2", "t3"} {
		_, err := m.UpsertTask(ctx, model.Task{ID: id, PlanID: "plan1", Title: id, Status: model.TaskStatusPending})
		require.NoError(t, err)
	}

	require.NoError(t, m.AddTaskDependency(ctx, "t2", "t1")) // t2 depends on t1
	require.NoError(t, m.AddTaskDependency(ctx, "t3", "t2")) // t3 depends on t2

	err = m.AddTaskDependency(ctx, "t1", "t3") // would close the cycle t1->t3->t2->t1
	require.Error(t, err)

	err = m.AddTaskDependency(ctx, "t1", "t1")
	require.Error(t, err)
}

func TestNextAvailableTaskRespectsDependencies(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	_, _ = m.UpsertPlan(ctx, model.Plan{ID: "plan1", Title: "Plan"})
	_, _ = m.UpsertTask(ctx, model.Task{ID: "t1", PlanID: "plan1", Title: "t1", Priority: 1, Status: model.TaskStatusPending})
	_, _ = m.UpsertTask(ctx, model.Task{ID: "t2", PlanID: "plan1", Title: "t2", Priority: 5, Status: model.TaskStatusPending})
	require.NoError(t, m.AddTaskDependency(ctx, "t2", "t1"))

	next, ok, err := m.NextAvailableTask(ctx, "plan1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "t1", next.ID, "t2 is higher priority but blocked on t1")

	_, _ = m.UpsertTask(ctx, model.Task{ID: "t1", PlanID: "plan1", Title: "t1", Priority: 1, Status: model.TaskStatusCompleted})
	next, ok, err = m.NextAvailableTask(ctx, "plan1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "t2", next.ID)
}

func TestDeleteTaskRemovesDanglingDependencyEdges(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	_, _ = m.UpsertPlan(ctx, model.Plan{ID: "plan1", Title: "Plan"})
	_, _ = m.UpsertTask(ctx, model.Task{ID: "t1", PlanID: "plan1", Title: "t1", Status: model.TaskStatusPending})
	_, _ = m.UpsertTask(ctx, model.Task{ID: "t2", PlanID: "plan1", Title: "t2", Status: model.TaskStatusPending})
	require.NoError(t, m.AddTaskDependency(ctx, "t2", "t1"))

	require.NoError(t, m.DeleteTask(ctx, "t1"))

	deps, err := m.TaskDependencies(ctx, "t2")
	require.NoError(t, err)
	require.Empty(t, deps, "dependency on deleted task must not remain")
}

func TestDeleteFileCascadesSymbols(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	_, _ = m.UpsertFile(ctx, model.File{ProjectID: "p1", Path: "a.go", Language: "go"})
	require.NoError(t, m.ReplaceFileSymbols(ctx, "p1", "a.go", FileSymbols{
		Functions: []model.Function{{ID: "f1", ProjectID: "p1", FilePath: "a.go", Name: "Foo"}},
	}))

	require.NoError(t, m.DeleteFile(ctx, "p1", "a.go"))

	_, ok, _ := m.GetFile(ctx, "p1", "a.go")
	require.False(t, ok)
	syms, err := m.GetFileSymbols(ctx, "p1", "a.go")
	require.NoError(t, err)
	require.Empty(t, syms.Functions)
}

func TestListProjectsPagingBoundary(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	for i := 0; i < 5; i++ {
		_, err := m.UpsertProject(ctx, model.Project{ID: string(rune('a' + i)), Slug: string(rune('a' + i)), Name: string(rune('a' + i))})
		require.NoError(t, err)
	}

	_, _, err := m.ListProjects(ctx, Page{Limit: 100})
	require.NoError(t, err)

	_, _, err = m.ListProjects(ctx, Page{Limit: 101})
	require.Error(t, err, "limit above 100 must be rejected")

	projects, total, err := m.ListProjects(ctx, Page{Limit: 0})
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, projects, 5, "unset limit defaults rather than returning zero rows")
}

func TestPropagationWalkDeterministicOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	anchor := model.Anchor{EntityType: model.EntityFile, EntityID: "root.go"}

	require.NoError(t, m.AddEdge(ctx, Edge{FromType: model.EntityFile, FromID: "root.go", RelType: model.RelImports, ToType: model.EntityFile, ToID: "b.go"}))
	require.NoError(t, m.AddEdge(ctx, Edge{FromType: model.EntityFile, FromID: "root.go", RelType: model.RelImports, ToType: model.EntityFile, ToID: "a.go"}))

	paths, err := m.PropagationWalk(ctx, anchor, 1, []model.RelType{model.RelImports})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	require.Equal(t, "a.go", paths[0].EntityID, "lexical tie-break orders a.go before b.go")
	require.Equal(t, "b.go", paths[1].EntityID)
}

func TestNotesByAnchor(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	anchor := model.Anchor{EntityType: model.EntityFunction, EntityID: "fn1"}
	_, err := m.UpsertNote(ctx, model.Note{ID: "n1", Content: "watch out", NoteType: model.NoteTypeGotcha, Status: model.NoteStatusActive, Anchors: []model.Anchor{anchor}})
	require.NoError(t, err)

	notes, err := m.NotesByAnchor(ctx, anchor)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, "n1", notes[0].ID)
}
