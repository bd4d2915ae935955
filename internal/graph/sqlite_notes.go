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

func encodeAnchors(anchors []model.Anchor) (interface{}, error) {
	if len(anchors) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(anchors)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeAnchors(s sql.NullString) []model.Anchor {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []model.Anchor
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil
	}
	return out
}

func (s *SqliteStore) UpsertNote(ctx context.Context, n model.Note) (model.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.Content == "" {
		return model.Note{}, errs.Validation("graph.UpsertNote", nil)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	anchors, err := encodeAnchors(n.Anchors)
	if err != nil {
		return model.Note{}, errs.Internal("graph.UpsertNote", err)
	}
	var supersedes interface{}
	if n.SupersedesID != "" {
		supersedes = n.SupersedesID
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notes (id, project_id, workspace_slug, note_type, content, importance, status, tags, scope, anchors, staleness_score, created_at, last_confirmed_at, supersedes_id)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET content=excluded.content, importance=excluded.importance,
			status=excluded.status, tags=excluded.tags, scope=excluded.scope, anchors=excluded.anchors,
			staleness_score=excluded.staleness_score, last_confirmed_at=excluded.last_confirmed_at,
			supersedes_id=excluded.supersedes_id`,
		n.ID, n.ProjectID, n.WorkspaceSlug, string(n.NoteType), n.Content, string(n.Importance), string(n.Status),
		encodeStrings(n.Tags), n.Scope, anchors, n.StalenessScore, timeOrNil(n.CreatedAt), timeOrNil(n.LastConfirmedAt), supersedes)
	if err != nil {
		return model.Note{}, errs.StoreTransient("graph.UpsertNote", err)
	}

	if n.SupersedesID != "" {
		if err := s.AddEdge(ctx, Edge{FromType: model.EntityNote, FromID: n.ID, RelType: model.RelSupersedes, ToType: model.EntityNote, ToID: n.SupersedesID}); err != nil {
			return model.Note{}, err
		}
	}
	for _, a := range n.Anchors {
		if err := s.AddEdge(ctx, Edge{FromType: model.EntityNote, FromID: n.ID, RelType: model.RelAttachedTo, ToType: a.EntityType, ToID: a.EntityID}); err != nil {
			return model.Note{}, err
		}
	}
	return n, nil
}

func scanNote(row interface {
	Scan(dest ...interface{}) error
}) (model.Note, bool, error) {
	var n model.Note
	var projectID, wsSlug sql.NullString
	var noteType, importance, status string
	var tags, scope, anchors sql.NullString
	var createdAt, lastConfirmed, supersedes sql.NullString
	err := row.Scan(&n.ID, &projectID, &wsSlug, &noteType, &n.Content, &importance, &status, &tags, &scope, &anchors, &n.StalenessScore, &createdAt, &lastConfirmed, &supersedes)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Note{}, false, nil
		}
		return model.Note{}, false, errs.StoreTransient("graph.scanNote", err)
	}
	n.ProjectID, n.WorkspaceSlug = projectID.String, wsSlug.String
	n.NoteType, n.Importance, n.Status = model.NoteType(noteType), model.Importance(importance), model.NoteStatus(status)
	n.Tags = decodeStrings(tags)
	n.Scope = scope.String
	n.Anchors = decodeAnchors(anchors)
	n.CreatedAt = parseTime(createdAt)
	n.LastConfirmedAt = parseTime(lastConfirmed)
	if supersedes.Valid {
		n.SupersedesID = supersedes.String
	}
	return n, true, nil
}

func (s *SqliteStore) GetNote(ctx context.Context, id string) (model.Note, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, project_id, workspace_slug, note_type, content, importance, status, tags, scope, anchors, staleness_score, created_at, last_confirmed_at, supersedes_id FROM notes WHERE id = ?`, id)
	return scanNote(row)
}

func (s *SqliteStore) ListNotes(ctx context.Context, filter NoteFilter, page Page) ([]model.Note, int, error) {
	if err := validatePage(page); err != nil {
		return nil, 0, err
	}
	page = normalizePage(page)

	where := "1=1"
	var args []interface{}
	if filter.ProjectID != "" {
		where += " AND project_id = ?"
		args = append(args, filter.ProjectID)
	}
	if filter.WorkspaceSlug != "" {
		where += " AND workspace_slug = ?"
		args = append(args, filter.WorkspaceSlug)
	}
	if filter.NoteType != "" {
		where += " AND note_type = ?"
		args = append(args, string(filter.NoteType))
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Importance != "" {
		where += " AND importance = ?"
		args = append(args, string(filter.Importance))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, errs.StoreTransient("graph.ListNotes", err)
	}
	q := fmt.Sprintf("SELECT id, project_id, workspace_slug, note_type, content, importance, status, tags, scope, anchors, staleness_score, created_at, last_confirmed_at, supersedes_id FROM notes WHERE %s ORDER BY created_at DESC LIMIT ? OFFSET ?", where)
	args = append(args, page.Limit, page.Offset)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, errs.StoreTransient("graph.ListNotes", err)
	}
	defer rows.Close()

	var out []model.Note
	for rows.Next() {
		n, ok, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			out = append(out, n)
		}
	}
	return out, total, nil
}

// NotesByAnchor returns every Note attached to a given entity via an
// ATTACHED_TO edge (§4.G "anchors").
func (s *SqliteStore) NotesByAnchor(ctx context.Context, anchor model.Anchor) ([]model.Note, error) {
	edges, err := s.EdgesTo(ctx, anchor.EntityType, anchor.EntityID, model.RelAttachedTo)
	if err != nil {
		return nil, err
	}
	var out []model.Note
	for _, e := range edges {
		if e.FromType != model.EntityNote {
			continue
		}
		n, ok, err := s.GetNote(ctx, e.FromID)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, n)
		}
	}
	return out, nil
}
