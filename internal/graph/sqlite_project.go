package graph

import (
	"context"
	"database/sql"
	"time"

	"codeforge/internal/errs"
	"codeforge/internal/model"
)

func timeOrNil(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *SqliteStore) UpsertProject(ctx context.Context, p model.Project) (model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Slug == "" {
		return model.Project{}, errs.Validation("graph.UpsertProject", nil)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, slug, name, root_path, created_at, last_synced)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET name=excluded.name, root_path=excluded.root_path`,
		p.ID, p.Slug, p.Name, p.RootPath, timeOrNil(p.CreatedAt), timeOrNil(p.LastSynced))
	if err != nil {
		return model.Project{}, errs.StoreTransient("graph.UpsertProject", err)
	}
	return p, nil
}

func (s *SqliteStore) scanProject(row *sql.Row) (model.Project, error) {
	var p model.Project
	var createdAt, lastSynced sql.NullString
	if err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.RootPath, &createdAt, &lastSynced); err != nil {
		if err == sql.ErrNoRows {
			return model.Project{}, errs.NotFound("graph.GetProject", err)
		}
		return model.Project{}, errs.StoreTransient("graph.GetProject", err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.LastSynced = parseTime(lastSynced)
	return p, nil
}

func (s *SqliteStore) GetProjectBySlug(ctx context.Context, slug string) (model.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, slug, name, root_path, created_at, last_synced FROM projects WHERE slug = ?`, slug)
	return s.scanProject(row)
}

func (s *SqliteStore) GetProjectByID(ctx context.Context, id string) (model.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, slug, name, root_path, created_at, last_synced FROM projects WHERE id = ?`, id)
	return s.scanProject(row)
}

func (s *SqliteStore) ListProjects(ctx context.Context, page Page) ([]model.Project, int, error) {
	if err := validatePage(page); err != nil {
		return nil, 0, err
	}
	page = normalizePage(page)
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&total); err != nil {
		return nil, 0, errs.StoreTransient("graph.ListProjects", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, slug, name, root_path, created_at, last_synced FROM projects ORDER BY name LIMIT ? OFFSET ?`, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, errs.StoreTransient("graph.ListProjects", err)
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var p model.Project
		var createdAt, lastSynced sql.NullString
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.RootPath, &createdAt, &lastSynced); err != nil {
			return nil, 0, errs.StoreTransient("graph.ListProjects", err)
		}
		p.CreatedAt = parseTime(createdAt)
		p.LastSynced = parseTime(lastSynced)
		out = append(out, p)
	}
	return out, total, nil
}

func (s *SqliteStore) TouchProjectSynced(ctx context.Context, projectID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE projects SET last_synced = ? WHERE id = ?`, timeOrNil(at), projectID)
	if err != nil {
		return errs.StoreTransient("graph.TouchProjectSynced", err)
	}
	return nil
}

// MaxPageLimit is the hard ceiling on list-operation page sizes (§4.B, §8).
const MaxPageLimit = 100

func validatePage(p Page) error {
	if p.Limit > MaxPageLimit {
		return errs.Validation("graph.Page", nil)
	}
	return nil
}

// normalizePage fills in a default limit when the caller left it unset so
// `LIMIT 0` never silently returns zero rows.
func normalizePage(p Page) Page {
	if p.Limit <= 0 {
		p.Limit = MaxPageLimit
	}
	return p
}
