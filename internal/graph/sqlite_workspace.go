package graph

import (
	"context"
	"database/sql"
	"encoding/json"

	"codeforge/internal/errs"
	"codeforge/internal/model"
)

func (s *SqliteStore) UpsertWorkspace(ctx context.Context, w model.Workspace) (model.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.Slug == "" {
		return model.Workspace{}, errs.Validation("graph.UpsertWorkspace", nil)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspaces (slug, name, description) VALUES (?,?,?)
		ON CONFLICT(slug) DO UPDATE SET name=excluded.name, description=excluded.description`,
		w.Slug, w.Name, w.Description)
	if err != nil {
		return model.Workspace{}, errs.StoreTransient("graph.UpsertWorkspace", err)
	}
	return w, nil
}

func (s *SqliteStore) UpsertResource(ctx context.Context, r model.Resource) (model.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resources (id, workspace_slug, name, kind, file_path, version) VALUES (?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, kind=excluded.kind, file_path=excluded.file_path, version=excluded.version`,
		r.ID, r.WsSlug, r.Name, r.Kind, r.FilePath, r.Version)
	if err != nil {
		return model.Resource{}, errs.StoreTransient("graph.UpsertResource", err)
	}
	return r, nil
}

func (s *SqliteStore) UpsertComponent(ctx context.Context, c model.Component) (model.Component, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cfg interface{}
	if len(c.Config) > 0 {
		b, err := json.Marshal(c.Config)
		if err != nil {
			return model.Component{}, errs.Internal("graph.UpsertComponent", err)
		}
		cfg = string(b)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO components (id, workspace_slug, name, kind, runtime, config) VALUES (?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, kind=excluded.kind, runtime=excluded.runtime, config=excluded.config`,
		c.ID, c.WsSlug, c.Name, c.Kind, c.Runtime, cfg)
	if err != nil {
		return model.Component{}, errs.StoreTransient("graph.UpsertComponent", err)
	}
	return c, nil
}

func (s *SqliteStore) LinkProjectToWorkspace(ctx context.Context, projectID, workspaceSlug string) error {
	return s.AddEdge(ctx, Edge{FromType: model.EntityProject, FromID: projectID, RelType: model.RelBelongsToWS, ToType: model.EntityWorkspace, ToID: workspaceSlug})
}

func (s *SqliteStore) GetResource(ctx context.Context, id string) (model.Resource, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, workspace_slug, name, kind, file_path, version FROM resources WHERE id = ?`, id)
	var r model.Resource
	err := row.Scan(&r.ID, &r.WsSlug, &r.Name, &r.Kind, &r.FilePath, &r.Version)
	if err == sql.ErrNoRows {
		return model.Resource{}, false, nil
	}
	if err != nil {
		return model.Resource{}, false, errs.StoreTransient("graph.GetResource", err)
	}
	return r, true, nil
}

// ListResources lists Resources owned by workspaceSlug (§4.B "for each
// entity and edge type").
func (s *SqliteStore) ListResources(ctx context.Context, workspaceSlug string, page Page) ([]model.Resource, int, error) {
	if err := validatePage(page); err != nil {
		return nil, 0, err
	}
	page = normalizePage(page)
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resources WHERE workspace_slug = ?`, workspaceSlug).Scan(&total); err != nil {
		return nil, 0, errs.StoreTransient("graph.ListResources", err)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_slug, name, kind, file_path, version FROM resources WHERE workspace_slug = ? ORDER BY name LIMIT ? OFFSET ?`,
		workspaceSlug, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, errs.StoreTransient("graph.ListResources", err)
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		var r model.Resource
		if err := rows.Scan(&r.ID, &r.WsSlug, &r.Name, &r.Kind, &r.FilePath, &r.Version); err != nil {
			return nil, 0, errs.StoreTransient("graph.ListResources", err)
		}
		out = append(out, r)
	}
	return out, total, nil
}

func (s *SqliteStore) GetComponent(ctx context.Context, id string) (model.Component, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, workspace_slug, name, kind, runtime, config FROM components WHERE id = ?`, id)
	var c model.Component
	var cfg sql.NullString
	err := row.Scan(&c.ID, &c.WsSlug, &c.Name, &c.Kind, &c.Runtime, &cfg)
	if err == sql.ErrNoRows {
		return model.Component{}, false, nil
	}
	if err != nil {
		return model.Component{}, false, errs.StoreTransient("graph.GetComponent", err)
	}
	if cfg.Valid && cfg.String != "" {
		_ = json.Unmarshal([]byte(cfg.String), &c.Config)
	}
	return c, true, nil
}

// ListComponents lists Components owned by workspaceSlug.
func (s *SqliteStore) ListComponents(ctx context.Context, workspaceSlug string, page Page) ([]model.Component, int, error) {
	if err := validatePage(page); err != nil {
		return nil, 0, err
	}
	page = normalizePage(page)
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM components WHERE workspace_slug = ?`, workspaceSlug).Scan(&total); err != nil {
		return nil, 0, errs.StoreTransient("graph.ListComponents", err)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_slug, name, kind, runtime, config FROM components WHERE workspace_slug = ? ORDER BY name LIMIT ? OFFSET ?`,
		workspaceSlug, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, errs.StoreTransient("graph.ListComponents", err)
	}
	defer rows.Close()

	var out []model.Component
	for rows.Next() {
		var c model.Component
		var cfg sql.NullString
		if err := rows.Scan(&c.ID, &c.WsSlug, &c.Name, &c.Kind, &c.Runtime, &cfg); err != nil {
			return nil, 0, errs.StoreTransient("graph.ListComponents", err)
		}
		if cfg.Valid && cfg.String != "" {
			_ = json.Unmarshal([]byte(cfg.String), &c.Config)
		}
		out = append(out, c)
	}
	return out, total, nil
}

// LinkWorkspaceResource records that workspaceSlug owns resourceID
// (HAS_RESOURCE, §3.2 Workspace edges).
func (s *SqliteStore) LinkWorkspaceResource(ctx context.Context, workspaceSlug, resourceID string) error {
	return s.AddEdge(ctx, Edge{FromType: model.EntityWorkspace, FromID: workspaceSlug, RelType: model.RelHasResource, ToType: model.EntityResource, ToID: resourceID})
}

// LinkComponentResource records componentID's relationship to resourceID:
// IMPLEMENTS_RESOURCE when implements is true (the component provides the
// resource), USES_RESOURCE otherwise (the component consumes it).
func (s *SqliteStore) LinkComponentResource(ctx context.Context, componentID, resourceID string, implements bool) error {
	rel := model.RelUsesResource
	if implements {
		rel = model.RelImplementsRes
	}
	return s.AddEdge(ctx, Edge{FromType: model.EntityComponent, FromID: componentID, RelType: rel, ToType: model.EntityResource, ToID: resourceID})
}

// LinkComponentToProject records that componentID's behavior is implemented
// by projectID's source tree (MAPS_TO_PROJECT).
func (s *SqliteStore) LinkComponentToProject(ctx context.Context, componentID, projectID string) error {
	return s.AddEdge(ctx, Edge{FromType: model.EntityComponent, FromID: componentID, RelType: model.RelMapsToProject, ToType: model.EntityProject, ToID: projectID})
}

// LinkComponentDependency records that fromComponentID depends on
// toComponentID over protocol (DEPENDS_ON_COMPONENT{protocol, required}).
func (s *SqliteStore) LinkComponentDependency(ctx context.Context, fromComponentID, toComponentID, protocol string, required bool) error {
	return s.AddEdge(ctx, Edge{
		FromType: model.EntityComponent, FromID: fromComponentID,
		RelType: model.RelDependsOnCompo, ToType: model.EntityComponent, ToID: toComponentID,
		Metadata: map[string]interface{}{"protocol": protocol, "required": required},
	})
}
