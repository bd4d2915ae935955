package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"codeforge/internal/config"
	"codeforge/internal/model"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Graph.Driver = "mock"
	cfg.Search.Driver = "mock"
	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNewWiresEveryComponent(t *testing.T) {
	a := newTestApp(t)
	require.NotNil(t, a.Graph)
	require.NotNil(t, a.Search)
	require.NotNil(t, a.Bus)
	require.NotNil(t, a.Sync)
	require.NotNil(t, a.Workflow)
	require.NotNil(t, a.Notes)
	require.NotNil(t, a.Workspace)
	require.NotNil(t, a.Query)
	require.NotNil(t, a.Dispatcher)
}

func TestAppNextTaskRespectsDependencies(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	project, err := a.Graph.UpsertProject(ctx, model.Project{ID: "p1", Slug: "demo", Name: "demo", RootPath: "."})
	require.NoError(t, err)

	plan, err := a.Workflow.CreatePlan(ctx, model.Plan{ProjectID: project.ID, Title: "Ship"})
	require.NoError(t, err)

	t1, err := a.Workflow.CreateTask(ctx, model.Task{PlanID: plan.ID, Title: "A", Priority: 5})
	require.NoError(t, err)
	_, err = a.Workflow.TransitionTask(ctx, t1.ID, model.TaskStatusInProgress)
	require.NoError(t, err)
	_, err = a.Workflow.TransitionTask(ctx, t1.ID, model.TaskStatusCompleted)
	require.NoError(t, err)

	t2, err := a.Workflow.CreateTask(ctx, model.Task{PlanID: plan.ID, Title: "B", Priority: 10})
	require.NoError(t, err)
	require.NoError(t, a.Workflow.AddDependency(ctx, t2.ID, t1.ID))

	next, ok, err := a.Workflow.NextTask(ctx, plan.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, t2.ID, next.ID)
}

func TestContextNotesEmptyOnUnattachedEntity(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	result, err := a.ContextNotes(ctx, model.Anchor{EntityType: model.EntityFile, EntityID: "nope"}, 3, 0.1)
	require.NoError(t, err)
	require.Empty(t, result.Direct)
	require.Empty(t, result.Propagated)
}
