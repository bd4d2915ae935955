package graph

import (
	"context"
	"database/sql"
	"sort"

	"codeforge/internal/errs"
	"codeforge/internal/model"
)

func (s *SqliteStore) ImportsOf(ctx context.Context, projectID, filePath string) ([]model.File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.project_id, f.path, f.language, f.content_hash, f.size, f.mtime
		FROM imports i JOIN files f ON f.project_id = i.project_id AND f.path = i.resolved_file
		WHERE i.project_id = ? AND i.file_path = ? AND i.resolved_file IS NOT NULL AND i.resolved_file != ''`,
		projectID, filePath)
	if err != nil {
		return nil, errs.StoreTransient("graph.ImportsOf", err)
	}
	return scanFiles(rows)
}

func (s *SqliteStore) ImportedBy(ctx context.Context, projectID, filePath string) ([]model.File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.project_id, f.path, f.language, f.content_hash, f.size, f.mtime
		FROM imports i JOIN files f ON f.project_id = i.project_id AND f.path = i.file_path
		WHERE i.project_id = ? AND i.resolved_file = ?`,
		projectID, filePath)
	if err != nil {
		return nil, errs.StoreTransient("graph.ImportedBy", err)
	}
	return scanFiles(rows)
}

func scanFiles(rows *sql.Rows) ([]model.File, error) {
	defer rows.Close()
	var out []model.File
	for rows.Next() {
		var f model.File
		var mtime sql.NullString
		if err := rows.Scan(&f.ProjectID, &f.Path, &f.Language, &f.ContentHash, &f.Size, &mtime); err != nil {
			return nil, errs.StoreTransient("graph.scanFiles", err)
		}
		f.MTime = parseTime(mtime)
		out = append(out, f)
	}
	return out, nil
}

// TransitiveDependents walks ImportedBy edges breadth-first up to maxDepth,
// deduping by file path so a diamond dependency graph yields each dependent
// once at its shortest distance (§4.B "transitive dependents").
func (s *SqliteStore) TransitiveDependents(ctx context.Context, projectID, filePath string, maxDepth int) ([]TraversalPath, error) {
	visited := map[string]bool{filePath: true}
	frontier := []string{filePath}
	var out []TraversalPath

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		sort.Strings(frontier)
		for _, path := range frontier {
			deps, err := s.ImportedBy(ctx, projectID, path)
			if err != nil {
				return nil, err
			}
			sort.Slice(deps, func(i, j int) bool { return deps[i].Path < deps[j].Path })
			for _, d := range deps {
				if visited[d.Path] {
					continue
				}
				visited[d.Path] = true
				out = append(out, TraversalPath{EntityType: model.EntityFile, EntityID: d.Path, Distance: depth, ViaRelType: model.RelImports})
				next = append(next, d.Path)
			}
		}
		frontier = next
	}
	return out, nil
}

func (s *SqliteStore) callGraphWalk(ctx context.Context, functionID string, maxDepth int, forward bool) ([]TraversalPath, error) {
	visited := map[string]bool{functionID: true}
	frontier := []string{functionID}
	var out []TraversalPath

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		sort.Strings(frontier)
		for _, id := range frontier {
			var edges []Edge
			var err error
			if forward {
				edges, err = s.EdgesFrom(ctx, model.EntityFunction, id, model.RelCalls)
			} else {
				edges, err = s.EdgesTo(ctx, model.EntityFunction, id, model.RelCalls)
			}
			if err != nil {
				return nil, err
			}
			sort.Slice(edges, func(i, j int) bool {
				if forward {
					return edges[i].ToID < edges[j].ToID
				}
				return edges[i].FromID < edges[j].FromID
			})
			for _, e := range edges {
				other := e.ToID
				if !forward {
					other = e.FromID
				}
				if visited[other] {
					continue
				}
				visited[other] = true
				out = append(out, TraversalPath{EntityType: model.EntityFunction, EntityID: other, Distance: depth, ViaRelType: model.RelCalls})
				next = append(next, other)
			}
		}
		frontier = next
	}
	return out, nil
}

// Callers walks CALLS edges backward: who (transitively) calls functionID.
func (s *SqliteStore) Callers(ctx context.Context, projectID, functionID string, maxDepth int) ([]TraversalPath, error) {
	return s.callGraphWalk(ctx, functionID, maxDepth, false)
}

// Callees walks CALLS edges forward: what functionID (transitively) calls.
func (s *SqliteStore) Callees(ctx context.Context, projectID, functionID string, maxDepth int) ([]TraversalPath, error) {
	return s.callGraphWalk(ctx, functionID, maxDepth, true)
}

// PropagationWalk is the graph-level primitive behind the Note Propagation
// Engine (§4.H): BFS from anchor over any edge whose RelType is in
// edgeWhitelist, in either direction, breaking ties by (EntityType, EntityID)
// lexical order for determinism.
func (s *SqliteStore) PropagationWalk(ctx context.Context, anchor model.Anchor, maxDepth int, edgeWhitelist []model.RelType) ([]TraversalPath, error) {
	allowed := make(map[model.RelType]bool, len(edgeWhitelist))
	for _, r := range edgeWhitelist {
		allowed[r] = true
	}

	type node struct {
		typ model.EntityType
		id  string
	}
	start := node{anchor.EntityType, anchor.EntityID}
	visited := map[node]bool{start: true}
	frontier := []node{start}
	var out []TraversalPath

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []node
		sort.Slice(frontier, func(i, j int) bool {
			if frontier[i].typ != frontier[j].typ {
				return frontier[i].typ < frontier[j].typ
			}
			return frontier[i].id < frontier[j].id
		})

		type candidate struct {
			n   node
			rel model.RelType
		}
		var candidates []candidate

		for _, n := range frontier {
			out1, err := s.EdgesFrom(ctx, n.typ, n.id, "")
			if err != nil {
				return nil, err
			}
			for _, e := range out1 {
				if len(allowed) > 0 && !allowed[e.RelType] {
					continue
				}
				candidates = append(candidates, candidate{node{e.ToType, e.ToID}, e.RelType})
			}
			in1, err := s.EdgesTo(ctx, n.typ, n.id, "")
			if err != nil {
				return nil, err
			}
			for _, e := range in1 {
				if len(allowed) > 0 && !allowed[e.RelType] {
					continue
				}
				candidates = append(candidates, candidate{node{e.FromType, e.FromID}, e.RelType})
			}
		}

		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].n.typ != candidates[j].n.typ {
				return candidates[i].n.typ < candidates[j].n.typ
			}
			return candidates[i].n.id < candidates[j].n.id
		})

		for _, c := range candidates {
			if visited[c.n] {
				continue
			}
			visited[c.n] = true
			out = append(out, TraversalPath{EntityType: c.n.typ, EntityID: c.n.id, Distance: depth, ViaRelType: c.rel})
			next = append(next, c.n)
		}
		frontier = next
	}
	return out, nil
}
