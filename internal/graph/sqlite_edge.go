package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"codeforge/internal/errs"
	"codeforge/internal/model"
)

func (s *SqliteStore) AddEdge(ctx context.Context, e Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	var meta interface{}
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return errs.Internal("graph.AddEdge", err)
		}
		meta = string(b)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO edges (from_type, from_id, rel_type, to_type, to_id, project_id, metadata, created_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		string(e.FromType), e.FromID, string(e.RelType), string(e.ToType), e.ToID, e.ProjectID, meta, timeOrNil(e.CreatedAt))
	if err != nil {
		return errs.StoreTransient("graph.AddEdge", err)
	}
	return nil
}

func (s *SqliteStore) RemoveEdge(ctx context.Context, e Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM edges WHERE from_type=? AND from_id=? AND rel_type=? AND to_type=? AND to_id=?`,
		string(e.FromType), e.FromID, string(e.RelType), string(e.ToType), e.ToID)
	if err != nil {
		return errs.StoreTransient("graph.RemoveEdge", err)
	}
	return nil
}

func scanEdges(rows *sql.Rows) ([]Edge, error) {
	defer rows.Close()
	var out []Edge
	for rows.Next() {
		var e Edge
		var fromType, toType, relType string
		var projectID, meta sql.NullString
		var createdAt sql.NullString
		if err := rows.Scan(&fromType, &e.FromID, &relType, &toType, &e.ToID, &projectID, &meta, &createdAt); err != nil {
			return nil, errs.StoreTransient("graph.scanEdges", err)
		}
		e.FromType, e.ToType, e.RelType = model.EntityType(fromType), model.EntityType(toType), model.RelType(relType)
		e.ProjectID = projectID.String
		e.CreatedAt = parseTime(createdAt)
		if meta.Valid && meta.String != "" {
			var m map[string]interface{}
			if err := json.Unmarshal([]byte(meta.String), &m); err == nil {
				e.Metadata = m
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *SqliteStore) EdgesFrom(ctx context.Context, fromType model.EntityType, fromID string, rel model.RelType) ([]Edge, error) {
	var rows *sql.Rows
	var err error
	if rel == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT from_type, from_id, rel_type, to_type, to_id, project_id, metadata, created_at FROM edges WHERE from_type=? AND from_id=?`,
			string(fromType), fromID)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT from_type, from_id, rel_type, to_type, to_id, project_id, metadata, created_at FROM edges WHERE from_type=? AND from_id=? AND rel_type=?`,
			string(fromType), fromID, string(rel))
	}
	if err != nil {
		return nil, errs.StoreTransient("graph.EdgesFrom", err)
	}
	return scanEdges(rows)
}

func (s *SqliteStore) EdgesTo(ctx context.Context, toType model.EntityType, toID string, rel model.RelType) ([]Edge, error) {
	var rows *sql.Rows
	var err error
	if rel == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT from_type, from_id, rel_type, to_type, to_id, project_id, metadata, created_at FROM edges WHERE to_type=? AND to_id=?`,
			string(toType), toID)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT from_type, from_id, rel_type, to_type, to_id, project_id, metadata, created_at FROM edges WHERE to_type=? AND to_id=? AND rel_type=?`,
			string(toType), toID, string(rel))
	}
	if err != nil {
		return nil, errs.StoreTransient("graph.EdgesTo", err)
	}
	return scanEdges(rows)
}
