package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"codeforge/internal/eventbus"
	"codeforge/internal/graph"
	"codeforge/internal/model"
)

func newTestManager(t *testing.T) (*Manager, *graph.Mock, *eventbus.Bus) {
	t.Helper()
	store := graph.NewMock()
	bus := eventbus.New(nil)
	t.Cleanup(bus.Close)
	return New(store, bus), store, bus
}

func TestCreatePlanAndTaskValidation(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	_, err := m.CreatePlan(ctx, model.Plan{})
	require.Error(t, err, "empty title must be rejected")

	plan, err := m.CreatePlan(ctx, model.Plan{Title: "Ship it"})
	require.NoError(t, err)
	require.Equal(t, model.PlanStatusDraft, plan.Status)
	require.NotEmpty(t, plan.ID)

	_, err = m.CreateTask(ctx, model.Task{Title: "orphan", PlanID: "does-not-exist"})
	require.Error(t, err, "unknown plan must be rejected")

	task, err := m.CreateTask(ctx, model.Task{Title: "write code", PlanID: plan.ID, Priority: 5})
	require.NoError(t, err)
	require.Equal(t, model.TaskStatusPending, task.Status)
}

func TestTransitionTaskRejectsIllegalMove(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	plan, _ := m.CreatePlan(ctx, model.Plan{Title: "p"})
	task, _ := m.CreateTask(ctx, model.Task{Title: "t", PlanID: plan.ID})

	_, err := m.TransitionTask(ctx, task.ID, model.TaskStatusCompleted)
	require.Error(t, err, "pending cannot jump straight to completed")

	updated, err := m.TransitionTask(ctx, task.ID, model.TaskStatusInProgress)
	require.NoError(t, err)
	require.Equal(t, model.TaskStatusInProgress, updated.Status)

	_, err = m.TransitionTask(ctx, task.ID, model.TaskStatusCompleted)
	require.NoError(t, err)

	_, err = m.TransitionTask(ctx, task.ID, model.TaskStatusInProgress)
	require.Error(t, err, "completed is terminal")
}

func TestNextTaskAndDependencyLinking(t *testing.T) {
	ctx := context.Background()
	m, _, bus := newTestManager(t)
	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	plan, _ := m.CreatePlan(ctx, model.Plan{Title: "p"})
	t1, _ := m.CreateTask(ctx, model.Task{Title: "first", PlanID: plan.ID, Priority: 1})
	t2, _ := m.CreateTask(ctx, model.Task{Title: "second", PlanID: plan.ID, Priority: 10})

	require.NoError(t, m.AddDependency(ctx, t2.ID, t1.ID))

	next, ok, err := m.NextTask(ctx, plan.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, t1.ID, next.ID, "higher-priority t2 is blocked on t1")

	seenLink := false
	for i := 0; i < 10; i++ {
		select {
		case ev := <-sub.Events:
			if ev.Action == eventbus.ActionLinked {
				seenLink = true
			}
		default:
		}
	}
	require.True(t, seenLink, "AddDependency should publish a linked event")
}

func TestCriticalPathLinearChain(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	plan, _ := m.CreatePlan(ctx, model.Plan{Title: "p"})

	a, _ := m.CreateTask(ctx, model.Task{Title: "a", PlanID: plan.ID})
	b, _ := m.CreateTask(ctx, model.Task{Title: "b", PlanID: plan.ID})
	c, _ := m.CreateTask(ctx, model.Task{Title: "c", PlanID: plan.ID})
	_, _ = m.CreateTask(ctx, model.Task{Title: "isolated", PlanID: plan.ID})

	require.NoError(t, m.AddDependency(ctx, b.ID, a.ID)) // b depends on a
	require.NoError(t, m.AddDependency(ctx, c.ID, b.ID)) // c depends on b

	chain, err := m.CriticalPath(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	require.Equal(t, []string{a.ID, b.ID, c.ID}, []string{chain[0].ID, chain[1].ID, chain[2].ID})
}

func TestProgressFromSteps(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	plan, _ := m.CreatePlan(ctx, model.Plan{Title: "p"})
	task, _ := m.CreateTask(ctx, model.Task{Title: "t", PlanID: plan.ID})

	s1, err := m.AddStep(ctx, model.Step{TaskID: task.ID, Description: "step1"})
	require.NoError(t, err)
	_, err = m.AddStep(ctx, model.Step{TaskID: task.ID, Description: "step2"})
	require.NoError(t, err)

	progress, err := m.Progress(ctx, task.ID)
	require.NoError(t, err)
	require.Zero(t, progress)

	_, err = m.TransitionStep(ctx, s1, model.StepStatusCompleted)
	require.NoError(t, err)

	progress, err = m.Progress(ctx, task.ID)
	require.NoError(t, err)
	require.InDelta(t, 0.5, progress, 0.001)
}

func TestRegisterCommitLinksAndTriggersSync(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	plan, _ := m.CreatePlan(ctx, model.Plan{Title: "p", ProjectID: "proj1"})
	task, _ := m.CreateTask(ctx, model.Task{Title: "t", PlanID: plan.ID})

	var triggeredFiles []string
	trigger := func(_ context.Context, projectID string, files []string) {
		require.Equal(t, "proj1", projectID)
		triggeredFiles = files
	}

	commit, err := m.RegisterCommit(ctx, model.Commit{
		SHA: "abc123", ProjectID: "proj1", Message: "fix bug", FilesChanged: []string{"a.go"},
	}, []string{task.ID}, plan.ID, trigger)
	require.NoError(t, err)
	require.Equal(t, "abc123", commit.SHA)
	require.Equal(t, []string{"a.go"}, triggeredFiles)
}
