package workflow

import (
	"fmt"

	"codeforge/internal/model"
)

// taskTransitions lists the Task statuses reachable from each status.
// completed is terminal: reopening a finished task is a new task, not a
// transition, grounded on emergent-company-specmcp's isAllowedTransition
// table-driven validator.
var taskTransitions = map[model.TaskStatus][]model.TaskStatus{
	model.TaskStatusPending:    {model.TaskStatusInProgress, model.TaskStatusBlocked},
	model.TaskStatusInProgress: {model.TaskStatusCompleted, model.TaskStatusBlocked, model.TaskStatusPending},
	model.TaskStatusBlocked:    {model.TaskStatusPending, model.TaskStatusInProgress},
	model.TaskStatusCompleted:  {},
}

func isAllowedTaskTransition(from, to model.TaskStatus) bool {
	if from == to {
		return false
	}
	for _, allowed := range taskTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func taskTransitionError(from, to model.TaskStatus) error {
	return fmt.Errorf("cannot transition task from %q to %q", from, to)
}

// planTransitions mirrors the Task table for Plan lifecycle.
var planTransitions = map[model.PlanStatus][]model.PlanStatus{
	model.PlanStatusDraft:    {model.PlanStatusActive, model.PlanStatusArchived},
	model.PlanStatusActive:   {model.PlanStatusComplete, model.PlanStatusArchived},
	model.PlanStatusComplete: {model.PlanStatusArchived},
	model.PlanStatusArchived: {},
}

func isAllowedPlanTransition(from, to model.PlanStatus) bool {
	if from == to {
		return false
	}
	for _, allowed := range planTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func planTransitionError(from, to model.PlanStatus) error {
	return fmt.Errorf("cannot transition plan from %q to %q", from, to)
}

// stepTransitions: steps are advisory (§4.F "Progress"), so the only
// disallowed move is leaving a terminal state.
var stepTransitions = map[model.StepStatus][]model.StepStatus{
	model.StepStatusPending:    {model.StepStatusInProgress, model.StepStatusSkipped, model.StepStatusCompleted},
	model.StepStatusInProgress: {model.StepStatusCompleted, model.StepStatusSkipped, model.StepStatusPending},
	model.StepStatusCompleted:  {},
	model.StepStatusSkipped:    {},
}

func isAllowedStepTransition(from, to model.StepStatus) bool {
	if from == to {
		return false
	}
	for _, allowed := range stepTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func stepTransitionError(from, to model.StepStatus) error {
	return fmt.Errorf("cannot transition step from %q to %q", from, to)
}
