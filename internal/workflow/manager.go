// Package workflow implements the Plan/Task Manager (§4.F): Plans, Tasks,
// Steps, Decisions, Constraints, Milestones, and Commits, layered over the
// Graph Store. Status changes are table-validated (status.go) rather than
// left to callers, and every mutation that succeeds is published on the
// event bus.
package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"codeforge/internal/errs"
	"codeforge/internal/eventbus"
	"codeforge/internal/graph"
	"codeforge/internal/logging"
	"codeforge/internal/model"
)

// Manager owns the workflow model. A nil bus is valid; events are simply
// not published.
type Manager struct {
	store graph.Store
	bus   *eventbus.Bus
}

func New(store graph.Store, bus *eventbus.Bus) *Manager {
	return &Manager{store: store, bus: bus}
}

func (m *Manager) publish(ctx context.Context, ev eventbus.Event) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(ctx, ev)
}

// --- Plan ---

func (m *Manager) CreatePlan(ctx context.Context, p model.Plan) (model.Plan, error) {
	if p.Title == "" {
		return model.Plan{}, errs.Validation("workflow.CreatePlan", nil)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = model.PlanStatusDraft
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	out, err := m.store.UpsertPlan(ctx, p)
	if err != nil {
		return model.Plan{}, err
	}
	logging.Workflow("plan %s created: %s", out.ID, out.Title)
	m.publish(ctx, eventbus.Event{EntityType: model.EntityPlan, EntityID: out.ID, Action: eventbus.ActionCreated, ProjectID: out.ProjectID})
	return out, nil
}

func (m *Manager) GetPlan(ctx context.Context, id string) (model.Plan, bool, error) {
	return m.store.GetPlan(ctx, id)
}

func (m *Manager) ListPlans(ctx context.Context, projectID string, page graph.Page) ([]model.Plan, int, error) {
	return m.store.ListPlans(ctx, projectID, page)
}

// TransitionPlan moves a Plan to newStatus, rejecting transitions not in
// the lifecycle table.
func (m *Manager) TransitionPlan(ctx context.Context, planID string, newStatus model.PlanStatus) (model.Plan, error) {
	p, ok, err := m.store.GetPlan(ctx, planID)
	if err != nil {
		return model.Plan{}, err
	}
	if !ok {
		return model.Plan{}, errs.NotFound("workflow.TransitionPlan", nil)
	}
	if !isAllowedPlanTransition(p.Status, newStatus) {
		return model.Plan{}, errs.Validation("workflow.TransitionPlan", planTransitionError(p.Status, newStatus))
	}
	p.Status = newStatus
	out, err := m.store.UpsertPlan(ctx, p)
	if err != nil {
		return model.Plan{}, err
	}
	m.publish(ctx, eventbus.Event{EntityType: model.EntityPlan, EntityID: out.ID, Action: eventbus.ActionUpdated, ProjectID: out.ProjectID})
	return out, nil
}

// --- Task ---

func (m *Manager) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	if t.Title == "" || t.PlanID == "" {
		return model.Task{}, errs.Validation("workflow.CreateTask", nil)
	}
	if _, ok, err := m.store.GetPlan(ctx, t.PlanID); err != nil {
		return model.Task{}, err
	} else if !ok {
		return model.Task{}, errs.NotFound("workflow.CreateTask", nil)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = model.TaskStatusPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	out, err := m.store.UpsertTask(ctx, t)
	if err != nil {
		return model.Task{}, err
	}
	logging.Workflow("task %s created in plan %s", out.ID, out.PlanID)
	m.publish(ctx, eventbus.Event{EntityType: model.EntityTask, EntityID: out.ID, Action: eventbus.ActionCreated})
	return out, nil
}

func (m *Manager) GetTask(ctx context.Context, id string) (model.Task, bool, error) {
	return m.store.GetTask(ctx, id)
}

func (m *Manager) ListTasks(ctx context.Context, filter graph.TaskFilter, page graph.Page) ([]model.Task, int, error) {
	return m.store.ListTasks(ctx, filter, page)
}

func (m *Manager) DeleteTask(ctx context.Context, id string) error {
	if err := m.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	m.publish(ctx, eventbus.Event{EntityType: model.EntityTask, EntityID: id, Action: eventbus.ActionDeleted})
	return nil
}

// TransitionTask moves a Task to newStatus, rejecting transitions not in
// the lifecycle table (§4.F "Failure semantics").
func (m *Manager) TransitionTask(ctx context.Context, taskID string, newStatus model.TaskStatus) (model.Task, error) {
	t, ok, err := m.store.GetTask(ctx, taskID)
	if err != nil {
		return model.Task{}, err
	}
	if !ok {
		return model.Task{}, errs.NotFound("workflow.TransitionTask", nil)
	}
	if !isAllowedTaskTransition(t.Status, newStatus) {
		return model.Task{}, errs.Validation("workflow.TransitionTask", taskTransitionError(t.Status, newStatus))
	}
	t.Status = newStatus
	out, err := m.store.UpsertTask(ctx, t)
	if err != nil {
		return model.Task{}, err
	}
	m.publish(ctx, eventbus.Event{EntityType: model.EntityTask, EntityID: out.ID, Action: eventbus.ActionUpdated})
	return out, nil
}

// AddDependency records that fromTaskID depends on toTaskID. The Graph
// Store rejects self-dependencies and anything that would close a cycle.
func (m *Manager) AddDependency(ctx context.Context, fromTaskID, toTaskID string) error {
	if err := m.store.AddTaskDependency(ctx, fromTaskID, toTaskID); err != nil {
		return err
	}
	related := model.Anchor{EntityType: model.EntityTask, EntityID: toTaskID}
	m.publish(ctx, eventbus.Event{EntityType: model.EntityTask, EntityID: fromTaskID, Action: eventbus.ActionLinked, Related: &related})
	return nil
}

func (m *Manager) RemoveDependency(ctx context.Context, fromTaskID, toTaskID string) error {
	if err := m.store.RemoveTaskDependency(ctx, fromTaskID, toTaskID); err != nil {
		return err
	}
	related := model.Anchor{EntityType: model.EntityTask, EntityID: toTaskID}
	m.publish(ctx, eventbus.Event{EntityType: model.EntityTask, EntityID: fromTaskID, Action: eventbus.ActionUnlinked, Related: &related})
	return nil
}

// NextTask selects the highest-priority pending task in planID with every
// dependency completed, tie-broken by earliest created_at (§4.F).
func (m *Manager) NextTask(ctx context.Context, planID string) (model.Task, bool, error) {
	return m.store.NextAvailableTask(ctx, planID)
}

// --- Step ---

func (m *Manager) AddStep(ctx context.Context, s model.Step) (model.Step, error) {
	if s.TaskID == "" || s.Description == "" {
		return model.Step{}, errs.Validation("workflow.AddStep", nil)
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = model.StepStatusPending
	}
	out, err := m.store.UpsertStep(ctx, s)
	if err != nil {
		return model.Step{}, err
	}
	m.publish(ctx, eventbus.Event{EntityType: model.EntityStep, EntityID: out.ID, Action: eventbus.ActionCreated})
	return out, nil
}

func (m *Manager) ListSteps(ctx context.Context, taskID string) ([]model.Step, error) {
	return m.store.ListSteps(ctx, taskID)
}

func (m *Manager) TransitionStep(ctx context.Context, step model.Step, newStatus model.StepStatus) (model.Step, error) {
	if !isAllowedStepTransition(step.Status, newStatus) {
		return model.Step{}, errs.Validation("workflow.TransitionStep", stepTransitionError(step.Status, newStatus))
	}
	step.Status = newStatus
	out, err := m.store.UpsertStep(ctx, step)
	if err != nil {
		return model.Step{}, err
	}
	m.publish(ctx, eventbus.Event{EntityType: model.EntityStep, EntityID: out.ID, Action: eventbus.ActionUpdated})
	return out, nil
}

// --- Decision / Constraint ---

func (m *Manager) AddDecision(ctx context.Context, d model.Decision) (model.Decision, error) {
	if d.TaskID == "" || d.Description == "" {
		return model.Decision{}, errs.Validation("workflow.AddDecision", nil)
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now()
	}
	out, err := m.store.UpsertDecision(ctx, d)
	if err != nil {
		return model.Decision{}, err
	}
	m.publish(ctx, eventbus.Event{EntityType: model.EntityDecision, EntityID: out.ID, Action: eventbus.ActionCreated})
	return out, nil
}

func (m *Manager) ListDecisions(ctx context.Context, taskID string) ([]model.Decision, error) {
	return m.store.ListDecisions(ctx, taskID)
}

func (m *Manager) AddConstraint(ctx context.Context, c model.Constraint) (model.Constraint, error) {
	if c.PlanID == "" || c.Description == "" {
		return model.Constraint{}, errs.Validation("workflow.AddConstraint", nil)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	out, err := m.store.UpsertConstraint(ctx, c)
	if err != nil {
		return model.Constraint{}, err
	}
	m.publish(ctx, eventbus.Event{EntityType: model.EntityConstraint, EntityID: out.ID, Action: eventbus.ActionCreated})
	return out, nil
}

func (m *Manager) ListConstraints(ctx context.Context, planID string) ([]model.Constraint, error) {
	return m.store.ListConstraints(ctx, planID)
}

// --- Commit / Milestone ---

// SyncTrigger is invoked after a commit is registered with FilesChanged, so
// the caller can kick an incremental sync without this package importing
// the Sync Engine. A nil trigger is a no-op (§4.F "Commit linkage").
type SyncTrigger func(ctx context.Context, projectID string, files []string)

// RegisterCommit upserts a Commit, links it to the given tasks and plan (if
// any), and invokes trigger with its FilesChanged when non-nil.
func (m *Manager) RegisterCommit(ctx context.Context, c model.Commit, taskIDs []string, planID string, trigger SyncTrigger) (model.Commit, error) {
	if c.SHA == "" {
		return model.Commit{}, errs.Validation("workflow.RegisterCommit", nil)
	}
	if c.CommittedAt.IsZero() {
		c.CommittedAt = time.Now()
	}
	out, err := m.store.UpsertCommit(ctx, c)
	if err != nil {
		return model.Commit{}, err
	}
	for _, taskID := range taskIDs {
		if err := m.store.LinkCommitToTask(ctx, out.SHA, taskID); err != nil {
			return model.Commit{}, err
		}
	}
	if planID != "" {
		if err := m.store.LinkCommitToPlan(ctx, out.SHA, planID); err != nil {
			return model.Commit{}, err
		}
	}
	logging.Workflow("commit %s registered, linked to %d task(s)", out.SHA, len(taskIDs))
	m.publish(ctx, eventbus.Event{EntityType: model.EntityCommit, EntityID: out.SHA, Action: eventbus.ActionCreated, ProjectID: out.ProjectID})
	if trigger != nil && len(out.FilesChanged) > 0 {
		trigger(ctx, out.ProjectID, out.FilesChanged)
	}
	return out, nil
}

func (m *Manager) CreateMilestone(ctx context.Context, ms model.Milestone) (model.Milestone, error) {
	if ms.Title == "" || ms.ProjectID == "" {
		return model.Milestone{}, errs.Validation("workflow.CreateMilestone", nil)
	}
	if ms.ID == "" {
		ms.ID = uuid.NewString()
	}
	out, err := m.store.UpsertMilestone(ctx, ms)
	if err != nil {
		return model.Milestone{}, err
	}
	m.publish(ctx, eventbus.Event{EntityType: model.EntityMilestone, EntityID: out.ID, Action: eventbus.ActionCreated, ProjectID: out.ProjectID})
	return out, nil
}

func (m *Manager) LinkMilestoneTask(ctx context.Context, milestoneID, taskID string) error {
	if err := m.store.LinkMilestoneTask(ctx, milestoneID, taskID); err != nil {
		return err
	}
	related := model.Anchor{EntityType: model.EntityTask, EntityID: taskID}
	m.publish(ctx, eventbus.Event{EntityType: model.EntityMilestone, EntityID: milestoneID, Action: eventbus.ActionLinked, Related: &related})
	return nil
}

func (m *Manager) LinkMilestoneCommit(ctx context.Context, milestoneID, sha string) error {
	if err := m.store.LinkMilestoneCommit(ctx, milestoneID, sha); err != nil {
		return err
	}
	related := model.Anchor{EntityType: model.EntityCommit, EntityID: sha}
	m.publish(ctx, eventbus.Event{EntityType: model.EntityMilestone, EntityID: milestoneID, Action: eventbus.ActionLinked, Related: &related})
	return nil
}
