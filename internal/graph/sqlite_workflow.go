package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"codeforge/internal/errs"
	"codeforge/internal/model"
)

func encodeStrings(ss []string) interface{} {
	if len(ss) == 0 {
		return nil
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

func decodeStrings(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil
	}
	return out
}

// --- Plan ---

func (s *SqliteStore) UpsertPlan(ctx context.Context, p model.Plan) (model.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Title == "" {
		return model.Plan{}, errs.Validation("graph.UpsertPlan", nil)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plans (id, project_id, title, description, status, priority, created_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET title=excluded.title, description=excluded.description,
			status=excluded.status, priority=excluded.priority`,
		p.ID, p.ProjectID, p.Title, p.Description, string(p.Status), p.Priority, timeOrNil(p.CreatedAt))
	if err != nil {
		return model.Plan{}, errs.StoreTransient("graph.UpsertPlan", err)
	}
	return p, nil
}

func (s *SqliteStore) GetPlan(ctx context.Context, id string) (model.Plan, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, project_id, title, description, status, priority, created_at FROM plans WHERE id = ?`, id)
	var p model.Plan
	var projectID sql.NullString
	var status string
	var createdAt sql.NullString
	if err := row.Scan(&p.ID, &projectID, &p.Title, &p.Description, &status, &p.Priority, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return model.Plan{}, false, nil
		}
		return model.Plan{}, false, errs.StoreTransient("graph.GetPlan", err)
	}
	p.ProjectID, p.Status, p.CreatedAt = projectID.String, model.PlanStatus(status), parseTime(createdAt)
	return p, true, nil
}

func (s *SqliteStore) ListPlans(ctx context.Context, projectID string, page Page) ([]model.Plan, int, error) {
	if err := validatePage(page); err != nil {
		return nil, 0, err
	}
	page = normalizePage(page)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plans WHERE project_id = ?`, projectID).Scan(&total); err != nil {
		return nil, 0, errs.StoreTransient("graph.ListPlans", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, title, description, status, priority, created_at FROM plans WHERE project_id = ? ORDER BY created_at LIMIT ? OFFSET ?`, projectID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, errs.StoreTransient("graph.ListPlans", err)
	}
	defer rows.Close()
	var out []model.Plan
	for rows.Next() {
		var p model.Plan
		var pid sql.NullString
		var status string
		var createdAt sql.NullString
		if err := rows.Scan(&p.ID, &pid, &p.Title, &p.Description, &status, &p.Priority, &createdAt); err != nil {
			return nil, 0, errs.StoreTransient("graph.ListPlans", err)
		}
		p.ProjectID, p.Status, p.CreatedAt = pid.String, model.PlanStatus(status), parseTime(createdAt)
		out = append(out, p)
	}
	return out, total, nil
}

// --- Task ---

func (s *SqliteStore) UpsertTask(ctx context.Context, t model.Task) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.PlanID == "" || t.Title == "" {
		return model.Task{}, errs.Validation("graph.UpsertTask", nil)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, plan_id, title, description, status, priority, tags, acceptance_criteria, affected_files, assigned_to, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET title=excluded.title, description=excluded.description,
			status=excluded.status, priority=excluded.priority, tags=excluded.tags,
			acceptance_criteria=excluded.acceptance_criteria, affected_files=excluded.affected_files,
			assigned_to=excluded.assigned_to`,
		t.ID, t.PlanID, t.Title, t.Description, string(t.Status), t.Priority,
		encodeStrings(t.Tags), encodeStrings(t.AcceptanceCriteria), encodeStrings(t.AffectedFiles),
		t.AssignedTo, timeOrNil(t.CreatedAt))
	if err != nil {
		return model.Task{}, errs.StoreTransient("graph.UpsertTask", err)
	}
	return t, nil
}

func scanTask(row *sql.Row) (model.Task, bool, error) {
	var t model.Task
	var status string
	var tags, criteria, files sql.NullString
	var assignedTo, createdAt sql.NullString
	if err := row.Scan(&t.ID, &t.PlanID, &t.Title, &t.Description, &status, &t.Priority, &tags, &criteria, &files, &assignedTo, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return model.Task{}, false, nil
		}
		return model.Task{}, false, errs.StoreTransient("graph.GetTask", err)
	}
	t.Status = model.TaskStatus(status)
	t.Tags, t.AcceptanceCriteria, t.AffectedFiles = decodeStrings(tags), decodeStrings(criteria), decodeStrings(files)
	t.AssignedTo, t.CreatedAt = assignedTo.String, parseTime(createdAt)
	return t, true, nil
}

func (s *SqliteStore) GetTask(ctx context.Context, id string) (model.Task, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, plan_id, title, description, status, priority, tags, acceptance_criteria, affected_files, assigned_to, created_at FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

func (s *SqliteStore) ListTasks(ctx context.Context, filter TaskFilter, page Page) ([]model.Task, int, error) {
	if err := validatePage(page); err != nil {
		return nil, 0, err
	}
	page = normalizePage(page)

	where := "1=1"
	var args []interface{}
	if filter.PlanID != "" {
		where += " AND plan_id = ?"
		args = append(args, filter.PlanID)
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, string(filter.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, errs.StoreTransient("graph.ListTasks", err)
	}
	q := fmt.Sprintf("SELECT id, plan_id, title, description, status, priority, tags, acceptance_criteria, affected_files, assigned_to, created_at FROM tasks WHERE %s ORDER BY priority DESC, created_at LIMIT ? OFFSET ?", where)
	args = append(args, page.Limit, page.Offset)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, errs.StoreTransient("graph.ListTasks", err)
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		var t model.Task
		var status string
		var tags, criteria, files sql.NullString
		var assignedTo, createdAt sql.NullString
		if err := rows.Scan(&t.ID, &t.PlanID, &t.Title, &t.Description, &status, &t.Priority, &tags, &criteria, &files, &assignedTo, &createdAt); err != nil {
			return nil, 0, errs.StoreTransient("graph.ListTasks", err)
		}
		t.Status = model.TaskStatus(status)
		t.Tags, t.AcceptanceCriteria, t.AffectedFiles = decodeStrings(tags), decodeStrings(criteria), decodeStrings(files)
		t.AssignedTo, t.CreatedAt = assignedTo.String, parseTime(createdAt)
		if len(filter.Tags) > 0 && !hasAnyTag(t.Tags, filter.Tags) {
			continue
		}
		out = append(out, t)
	}
	return out, total, nil
}

func hasAnyTag(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	for _, w := range want {
		if set[w] {
			return true
		}
	}
	return false
}

// DeleteTask removes the task and any DEPENDS_ON edges naming it, so the DAG
// never retains a dangling reference (§3.3 "DAG invariant").
func (s *SqliteStore) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.StoreTransient("graph.DeleteTask", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return errs.StoreTransient("graph.DeleteTask", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM edges WHERE rel_type = 'DEPENDS_ON' AND ((from_type='Task' AND from_id=?) OR (to_type='Task' AND to_id=?))`,
		id, id); err != nil {
		return errs.StoreTransient("graph.DeleteTask", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE task_id = ?`, id); err != nil {
		return errs.StoreTransient("graph.DeleteTask", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM decisions WHERE task_id = ?`, id); err != nil {
		return errs.StoreTransient("graph.DeleteTask", err)
	}
	if err := tx.Commit(); err != nil {
		return errs.StoreTransient("graph.DeleteTask", err)
	}
	return nil
}

// AddTaskDependency records "fromTaskID depends on toTaskID" as a DEPENDS_ON
// edge, rejecting the add if it would close a cycle (§3.3 "DAG invariant").
func (s *SqliteStore) AddTaskDependency(ctx context.Context, fromTaskID, toTaskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fromTaskID == toTaskID {
		return errs.Validation("graph.AddTaskDependency", fmt.Errorf("task cannot depend on itself"))
	}
	wouldCycle, err := s.reachable(ctx, toTaskID, fromTaskID)
	if err != nil {
		return err
	}
	if wouldCycle {
		return errs.Conflict("graph.AddTaskDependency", fmt.Errorf("adding dependency %s -> %s would create a cycle", fromTaskID, toTaskID))
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO edges (from_type, from_id, rel_type, to_type, to_id, created_at) VALUES ('Task', ?, 'DEPENDS_ON', 'Task', ?, ?)`,
		fromTaskID, toTaskID, timeOrNil(time.Now()))
	if err != nil {
		return errs.StoreTransient("graph.AddTaskDependency", err)
	}
	return nil
}

// reachable reports whether to is reachable from `from` following existing
// DEPENDS_ON edges forward — used to detect would-be cycles before insert.
func (s *SqliteStore) reachable(ctx context.Context, from, to string) (bool, error) {
	visited := map[string]bool{from: true}
	frontier := []string{from}
	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			rows, err := s.db.QueryContext(ctx, `SELECT to_id FROM edges WHERE from_type='Task' AND from_id=? AND rel_type='DEPENDS_ON'`, id)
			if err != nil {
				return false, errs.StoreTransient("graph.reachable", err)
			}
			for rows.Next() {
				var dep string
				if err := rows.Scan(&dep); err != nil {
					rows.Close()
					return false, errs.StoreTransient("graph.reachable", err)
				}
				if dep == to {
					rows.Close()
					return true, nil
				}
				if !visited[dep] {
					visited[dep] = true
					next = append(next, dep)
				}
			}
			rows.Close()
		}
		frontier = next
	}
	return false, nil
}

func (s *SqliteStore) RemoveTaskDependency(ctx context.Context, fromTaskID, toTaskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM edges WHERE from_type='Task' AND from_id=? AND rel_type='DEPENDS_ON' AND to_type='Task' AND to_id=?`,
		fromTaskID, toTaskID)
	if err != nil {
		return errs.StoreTransient("graph.RemoveTaskDependency", err)
	}
	return nil
}

func (s *SqliteStore) TaskDependencies(ctx context.Context, taskID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT to_id FROM edges WHERE from_type='Task' AND from_id=? AND rel_type='DEPENDS_ON'`, taskID)
	if err != nil {
		return nil, errs.StoreTransient("graph.TaskDependencies", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.StoreTransient("graph.TaskDependencies", err)
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *SqliteStore) TaskDependents(ctx context.Context, taskID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT from_id FROM edges WHERE to_type='Task' AND to_id=? AND rel_type='DEPENDS_ON'`, taskID)
	if err != nil {
		return nil, errs.StoreTransient("graph.TaskDependents", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.StoreTransient("graph.TaskDependents", err)
		}
		out = append(out, id)
	}
	return out, nil
}

// NextAvailableTask picks the highest-priority pending task in planID whose
// dependencies are all completed, breaking ties by creation order (§4.F
// "next task selection").
func (s *SqliteStore) NextAvailableTask(ctx context.Context, planID string) (model.Task, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, plan_id, title, description, status, priority, tags, acceptance_criteria, affected_files, assigned_to, created_at
		 FROM tasks WHERE plan_id = ? AND status = 'pending' ORDER BY priority DESC, created_at ASC`, planID)
	if err != nil {
		return model.Task{}, false, errs.StoreTransient("graph.NextAvailableTask", err)
	}
	defer rows.Close()

	var candidates []model.Task
	for rows.Next() {
		var t model.Task
		var status string
		var tags, criteria, files sql.NullString
		var assignedTo, createdAt sql.NullString
		if err := rows.Scan(&t.ID, &t.PlanID, &t.Title, &t.Description, &status, &t.Priority, &tags, &criteria, &files, &assignedTo, &createdAt); err != nil {
			return model.Task{}, false, errs.StoreTransient("graph.NextAvailableTask", err)
		}
		t.Status = model.TaskStatus(status)
		t.Tags, t.AcceptanceCriteria, t.AffectedFiles = decodeStrings(tags), decodeStrings(criteria), decodeStrings(files)
		t.AssignedTo, t.CreatedAt = assignedTo.String, parseTime(createdAt)
		candidates = append(candidates, t)
	}

	for _, t := range candidates {
		deps, err := s.TaskDependencies(ctx, t.ID)
		if err != nil {
			return model.Task{}, false, err
		}
		ready := true
		for _, depID := range deps {
			dep, ok, err := s.GetTask(ctx, depID)
			if err != nil {
				return model.Task{}, false, err
			}
			if !ok || dep.Status != model.TaskStatusCompleted {
				ready = false
				break
			}
		}
		if ready {
			return t, true, nil
		}
	}
	return model.Task{}, false, nil
}

// --- Step ---

func (s *SqliteStore) UpsertStep(ctx context.Context, st model.Step) (model.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO steps (id, task_id, description, verification, status) VALUES (?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET description=excluded.description, verification=excluded.verification, status=excluded.status`,
		st.ID, st.TaskID, st.Description, st.Verification, string(st.Status))
	if err != nil {
		return model.Step{}, errs.StoreTransient("graph.UpsertStep", err)
	}
	return st, nil
}

func (s *SqliteStore) ListSteps(ctx context.Context, taskID string) ([]model.Step, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, task_id, description, verification, status FROM steps WHERE task_id = ?`, taskID)
	if err != nil {
		return nil, errs.StoreTransient("graph.ListSteps", err)
	}
	defer rows.Close()
	var out []model.Step
	for rows.Next() {
		var st model.Step
		var status string
		if err := rows.Scan(&st.ID, &st.TaskID, &st.Description, &st.Verification, &status); err != nil {
			return nil, errs.StoreTransient("graph.ListSteps", err)
		}
		st.Status = model.StepStatus(status)
		out = append(out, st)
	}
	return out, nil
}

// --- Decision ---

func (s *SqliteStore) UpsertDecision(ctx context.Context, d model.Decision) (model.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, task_id, description, rationale, alternatives, chosen_option, decided_at) VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(id) DO NOTHING`,
		d.ID, d.TaskID, d.Description, d.Rationale, encodeStrings(d.Alternatives), d.ChosenOption, timeOrNil(d.DecidedAt))
	if err != nil {
		return model.Decision{}, errs.StoreTransient("graph.UpsertDecision", err)
	}
	return d, nil
}

func (s *SqliteStore) ListDecisions(ctx context.Context, taskID string) ([]model.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, task_id, description, rationale, alternatives, chosen_option, decided_at FROM decisions WHERE task_id = ? ORDER BY decided_at`, taskID)
	if err != nil {
		return nil, errs.StoreTransient("graph.ListDecisions", err)
	}
	defer rows.Close()
	var out []model.Decision
	for rows.Next() {
		var d model.Decision
		var alts sql.NullString
		var decidedAt sql.NullString
		if err := rows.Scan(&d.ID, &d.TaskID, &d.Description, &d.Rationale, &alts, &d.ChosenOption, &decidedAt); err != nil {
			return nil, errs.StoreTransient("graph.ListDecisions", err)
		}
		d.Alternatives = decodeStrings(alts)
		d.DecidedAt = parseTime(decidedAt)
		out = append(out, d)
	}
	return out, nil
}

// --- Constraint ---

func (s *SqliteStore) UpsertConstraint(ctx context.Context, c model.Constraint) (model.Constraint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO constraints (id, plan_id, kind, description, severity) VALUES (?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET kind=excluded.kind, description=excluded.description, severity=excluded.severity`,
		c.ID, c.PlanID, c.Kind, c.Description, c.Severity)
	if err != nil {
		return model.Constraint{}, errs.StoreTransient("graph.UpsertConstraint", err)
	}
	return c, nil
}

func (s *SqliteStore) ListConstraints(ctx context.Context, planID string) ([]model.Constraint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, plan_id, kind, description, severity FROM constraints WHERE plan_id = ?`, planID)
	if err != nil {
		return nil, errs.StoreTransient("graph.ListConstraints", err)
	}
	defer rows.Close()
	var out []model.Constraint
	for rows.Next() {
		var c model.Constraint
		if err := rows.Scan(&c.ID, &c.PlanID, &c.Kind, &c.Description, &c.Severity); err != nil {
			return nil, errs.StoreTransient("graph.ListConstraints", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// --- Commit ---

func (s *SqliteStore) UpsertCommit(ctx context.Context, c model.Commit) (model.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commits (sha, project_id, message, author, files_changed, committed_at) VALUES (?,?,?,?,?,?)
		ON CONFLICT(sha) DO UPDATE SET message=excluded.message, author=excluded.author, files_changed=excluded.files_changed`,
		c.SHA, c.ProjectID, c.Message, c.Author, encodeStrings(c.FilesChanged), timeOrNil(c.CommittedAt))
	if err != nil {
		return model.Commit{}, errs.StoreTransient("graph.UpsertCommit", err)
	}
	return c, nil
}

func (s *SqliteStore) GetCommit(ctx context.Context, sha string) (model.Commit, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT sha, project_id, message, author, files_changed, committed_at FROM commits WHERE sha = ?`, sha)
	var c model.Commit
	var files sql.NullString
	var committedAt sql.NullString
	if err := row.Scan(&c.SHA, &c.ProjectID, &c.Message, &c.Author, &files, &committedAt); err != nil {
		if err == sql.ErrNoRows {
			return model.Commit{}, false, nil
		}
		return model.Commit{}, false, errs.StoreTransient("graph.GetCommit", err)
	}
	c.FilesChanged = decodeStrings(files)
	c.CommittedAt = parseTime(committedAt)
	return c, true, nil
}

func (s *SqliteStore) LinkCommitToTask(ctx context.Context, sha, taskID string) error {
	return s.AddEdge(ctx, Edge{FromType: model.EntityTask, FromID: taskID, RelType: model.RelResolvedBy, ToType: model.EntityCommit, ToID: sha})
}

func (s *SqliteStore) LinkCommitToPlan(ctx context.Context, sha, planID string) error {
	return s.AddEdge(ctx, Edge{FromType: model.EntityCommit, FromID: sha, RelType: model.RelResultedIn, ToType: model.EntityPlan, ToID: planID})
}

func (s *SqliteStore) LinkMilestoneCommit(ctx context.Context, milestoneID, sha string) error {
	return s.AddEdge(ctx, Edge{FromType: model.EntityMilestone, FromID: milestoneID, RelType: model.RelIncludesCommit, ToType: model.EntityCommit, ToID: sha})
}

// --- Milestone ---

func (s *SqliteStore) UpsertMilestone(ctx context.Context, m model.Milestone) (model.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var target interface{}
	if m.TargetDate != nil {
		target = timeOrNil(*m.TargetDate)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO milestones (id, project_id, title, target_date, status, version) VALUES (?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET title=excluded.title, target_date=excluded.target_date, status=excluded.status, version=excluded.version`,
		m.ID, m.ProjectID, m.Title, target, m.Status, m.Version)
	if err != nil {
		return model.Milestone{}, errs.StoreTransient("graph.UpsertMilestone", err)
	}
	return m, nil
}

func (s *SqliteStore) LinkMilestoneTask(ctx context.Context, milestoneID, taskID string) error {
	return s.AddEdge(ctx, Edge{FromType: model.EntityMilestone, FromID: milestoneID, RelType: model.RelIncludesTask, ToType: model.EntityTask, ToID: taskID})
}
