package workflow

import (
	"context"
	"sort"

	"codeforge/internal/graph"
	"codeforge/internal/model"
)

func (m *Manager) allTasks(ctx context.Context, planID string) ([]model.Task, error) {
	var out []model.Task
	offset := 0
	for {
		page, total, err := m.store.ListTasks(ctx, graph.TaskFilter{PlanID: planID}, graph.Page{Limit: graph.MaxPageLimit, Offset: offset})
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

// betterTiebreak reports whether a should be preferred over b when both
// tie on DP length: higher priority first, then earlier created_at (§4.F
// "Critical-path").
func betterTiebreak(a, b model.Task) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// CriticalPath returns the longest chain of tasks in planID connected by
// DEPENDS_ON, ordered from the chain's source to its end. Computed via
// topological order (Kahn's algorithm) plus DP over in-degree-zero sources
// (§4.F).
func (m *Manager) CriticalPath(ctx context.Context, planID string) ([]model.Task, error) {
	tasks, err := m.allTasks(ctx, planID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	byID := make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	deps := make(map[string][]string)    // task -> tasks it depends on (prerequisites)
	dependents := make(map[string][]string) // task -> tasks depending on it
	for _, t := range tasks {
		d, err := m.store.TaskDependencies(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		deps[t.ID] = d
		for _, prereq := range d {
			dependents[prereq] = append(dependents[prereq], t.ID)
		}
	}

	inDegree := make(map[string]int, len(tasks))
	for _, t := range tasks {
		inDegree[t.ID] = len(deps[t.ID])
	}

	var queue []string
	for _, t := range tasks {
		if inDegree[t.ID] == 0 {
			queue = append(queue, t.ID)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return betterTiebreak(byID[queue[i]], byID[queue[j]]) })

	dp := make(map[string]int, len(tasks))
	prev := make(map[string]string, len(tasks))
	var order []string

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		if dp[id] == 0 {
			dp[id] = 1
		}

		var ready []string
		for _, dependent := range dependents[id] {
			inDegree[dependent]--
			candidate := dp[id] + 1
			if candidate > dp[dependent] || (candidate == dp[dependent] && prev[dependent] != "" && betterTiebreak(byID[id], byID[prev[dependent]])) {
				dp[dependent] = candidate
				prev[dependent] = id
			}
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
		sort.Slice(ready, func(i, j int) bool { return betterTiebreak(byID[ready[i]], byID[ready[j]]) })
		queue = append(queue, ready...)
	}

	// Find the task with the longest chain, tie-broken the same way.
	var best string
	for _, id := range order {
		if best == "" || dp[id] > dp[best] || (dp[id] == dp[best] && betterTiebreak(byID[id], byID[best])) {
			best = id
		}
	}
	if best == "" {
		return nil, nil
	}

	var chain []model.Task
	for cur := best; cur != ""; cur = prev[cur] {
		chain = append([]model.Task{byID[cur]}, chain...)
	}
	return chain, nil
}

// Progress is completed steps / total steps for a task. Tasks reach
// "completed" independently of their steps — steps are advisory (§4.F).
func (m *Manager) Progress(ctx context.Context, taskID string) (float64, error) {
	steps, err := m.store.ListSteps(ctx, taskID)
	if err != nil {
		return 0, err
	}
	if len(steps) == 0 {
		return 0, nil
	}
	completed := 0
	for _, s := range steps {
		if s.Status == model.StepStatusCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(steps)), nil
}
