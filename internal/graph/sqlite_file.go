package graph

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"codeforge/internal/errs"
	"codeforge/internal/model"
)

func (s *SqliteStore) UpsertFile(ctx context.Context, f model.File) (model.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (project_id, path, language, content_hash, size, mtime)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, path) DO UPDATE SET
			language=excluded.language, content_hash=excluded.content_hash,
			size=excluded.size, mtime=excluded.mtime`,
		f.ProjectID, f.Path, f.Language, f.ContentHash, f.Size, timeOrNil(f.MTime))
	if err != nil {
		return model.File{}, errs.StoreTransient("graph.UpsertFile", err)
	}
	return f, nil
}

func (s *SqliteStore) GetFile(ctx context.Context, projectID, path string) (model.File, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT project_id, path, language, content_hash, size, mtime FROM files WHERE project_id = ? AND path = ?`, projectID, path)
	var f model.File
	var mtime sql.NullString
	err := row.Scan(&f.ProjectID, &f.Path, &f.Language, &f.ContentHash, &f.Size, &mtime)
	if err == sql.ErrNoRows {
		return model.File{}, false, nil
	}
	if err != nil {
		return model.File{}, false, errs.StoreTransient("graph.GetFile", err)
	}
	f.MTime = parseTime(mtime)
	return f, true, nil
}

func (s *SqliteStore) ListFiles(ctx context.Context, filter FileFilter, page Page) ([]model.File, int, error) {
	if err := validatePage(page); err != nil {
		return nil, 0, err
	}
	page = normalizePage(page)

	where := []string{"1=1"}
	var args []interface{}
	if filter.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Language != "" {
		where = append(where, "language = ?")
		args = append(args, filter.Language)
	}
	if filter.PathPrefix != "" {
		where = append(where, "path LIKE ?")
		args = append(args, filter.PathPrefix+"%")
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countArgs := append([]interface{}{}, args...)
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files WHERE "+whereClause, countArgs...).Scan(&total); err != nil {
		return nil, 0, errs.StoreTransient("graph.ListFiles", err)
	}

	q := fmt.Sprintf("SELECT project_id, path, language, content_hash, size, mtime FROM files WHERE %s ORDER BY path LIMIT ? OFFSET ?", whereClause)
	args = append(args, page.Limit, page.Offset)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, errs.StoreTransient("graph.ListFiles", err)
	}
	defer rows.Close()

	var out []model.File
	for rows.Next() {
		var f model.File
		var mtime sql.NullString
		if err := rows.Scan(&f.ProjectID, &f.Path, &f.Language, &f.ContentHash, &f.Size, &mtime); err != nil {
			return nil, 0, errs.StoreTransient("graph.ListFiles", err)
		}
		f.MTime = parseTime(mtime)
		out = append(out, f)
	}
	return out, total, nil
}

// DeleteFile cascades to every contained symbol per §3.3 "Containment
// integrity": deleting a File deletes all contained Function/TypeDecl/
// Import/ImplBlock rows and any edges anchored to it.
func (s *SqliteStore) DeleteFile(ctx context.Context, projectID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.StoreTransient("graph.DeleteFile", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM functions WHERE project_id = ? AND file_path = ?`,
		`DELETE FROM type_decls WHERE project_id = ? AND file_path = ?`,
		`DELETE FROM imports WHERE project_id = ? AND file_path = ?`,
		`DELETE FROM impl_blocks WHERE project_id = ? AND file_path = ?`,
		`DELETE FROM files WHERE project_id = ? AND path = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, projectID, path); err != nil {
			return errs.StoreTransient("graph.DeleteFile", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE (from_type = 'File' AND from_id = ?) OR (to_type = 'File' AND to_id = ?)`, path, path); err != nil {
		return errs.StoreTransient("graph.DeleteFile", err)
	}
	if err := tx.Commit(); err != nil {
		return errs.StoreTransient("graph.DeleteFile", err)
	}
	return nil
}

// ReplaceFileSymbols atomically replaces every child of a File — the
// "delete prior symbol children, insert new children" step of §4.D.3.
func (s *SqliteStore) ReplaceFileSymbols(ctx context.Context, projectID, path string, in FileSymbols) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.StoreTransient("graph.ReplaceFileSymbols", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM edges WHERE project_id = ? AND rel_type = 'CALLS' AND from_id IN (SELECT id FROM functions WHERE project_id = ? AND file_path = ?)`,
		projectID, projectID, path); err != nil {
		return errs.StoreTransient("graph.ReplaceFileSymbols", err)
	}
	for _, stmt := range []string{
		`DELETE FROM functions WHERE project_id = ? AND file_path = ?`,
		`DELETE FROM type_decls WHERE project_id = ? AND file_path = ?`,
		`DELETE FROM imports WHERE project_id = ? AND file_path = ?`,
		`DELETE FROM impl_blocks WHERE project_id = ? AND file_path = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, projectID, path); err != nil {
			return errs.StoreTransient("graph.ReplaceFileSymbols", err)
		}
	}

	for _, fn := range in.Functions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO functions (id, project_id, file_path, name, signature, line, is_public, is_async, docstring) VALUES (?,?,?,?,?,?,?,?,?)`,
			fn.ID, projectID, path, fn.Name, fn.Signature, fn.Line, boolToInt(fn.IsPublic), boolToInt(fn.IsAsync), fn.Docstring); err != nil {
			return errs.StoreTransient("graph.ReplaceFileSymbols", err)
		}
	}
	for _, ty := range in.Types {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO type_decls (id, project_id, file_path, kind, name, line, is_public, docstring) VALUES (?,?,?,?,?,?,?,?)`,
			ty.ID, projectID, path, string(ty.Kind), ty.Name, ty.Line, boolToInt(ty.IsPublic), ty.Docstring); err != nil {
			return errs.StoreTransient("graph.ReplaceFileSymbols", err)
		}
	}
	for _, imp := range in.Imports {
		var resolved interface{}
		if imp.ResolvedFile != "" {
			resolved = imp.ResolvedFile
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO imports (id, project_id, file_path, raw_path, resolved_file) VALUES (?,?,?,?,?)`,
			imp.ID, projectID, path, imp.RawPath, resolved); err != nil {
			return errs.StoreTransient("graph.ReplaceFileSymbols", err)
		}
	}
	for _, impl := range in.Impls {
		var trait interface{}
		if impl.TraitName != "" {
			trait = impl.TraitName
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO impl_blocks (id, project_id, file_path, type_name, trait_name, line) VALUES (?,?,?,?,?,?)`,
			impl.ID, projectID, path, impl.TypeName, trait, impl.Line); err != nil {
			return errs.StoreTransient("graph.ReplaceFileSymbols", err)
		}
	}
	for _, call := range in.Calls {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO edges (from_type, from_id, rel_type, to_type, to_id, project_id) VALUES ('Function', ?, 'CALLS', 'Function', ?, ?)`,
			call.CallerID, call.CalleeID, projectID); err != nil {
			return errs.StoreTransient("graph.ReplaceFileSymbols", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.StoreTransient("graph.ReplaceFileSymbols", err)
	}
	return nil
}

func (s *SqliteStore) GetFileSymbols(ctx context.Context, projectID, path string) (FileSymbols, error) {
	var out FileSymbols

	fnRows, err := s.db.QueryContext(ctx, `SELECT id, name, signature, line, is_public, is_async, docstring FROM functions WHERE project_id = ? AND file_path = ?`, projectID, path)
	if err != nil {
		return out, errs.StoreTransient("graph.GetFileSymbols", err)
	}
	for fnRows.Next() {
		var fn model.Function
		var isPublic, isAsync int
		if err := fnRows.Scan(&fn.ID, &fn.Name, &fn.Signature, &fn.Line, &isPublic, &isAsync, &fn.Docstring); err != nil {
			fnRows.Close()
			return out, errs.StoreTransient("graph.GetFileSymbols", err)
		}
		fn.ProjectID, fn.FilePath = projectID, path
		fn.IsPublic, fn.IsAsync = isPublic != 0, isAsync != 0
		out.Functions = append(out.Functions, fn)
	}
	fnRows.Close()

	tyRows, err := s.db.QueryContext(ctx, `SELECT id, kind, name, line, is_public, docstring FROM type_decls WHERE project_id = ? AND file_path = ?`, projectID, path)
	if err != nil {
		return out, errs.StoreTransient("graph.GetFileSymbols", err)
	}
	for tyRows.Next() {
		var ty model.TypeDecl
		var isPublic int
		var kind string
		if err := tyRows.Scan(&ty.ID, &kind, &ty.Name, &ty.Line, &isPublic, &ty.Docstring); err != nil {
			tyRows.Close()
			return out, errs.StoreTransient("graph.GetFileSymbols", err)
		}
		ty.ProjectID, ty.FilePath, ty.Kind, ty.IsPublic = projectID, path, model.TypeKind(kind), isPublic != 0
		out.Types = append(out.Types, ty)
	}
	tyRows.Close()

	impRows, err := s.db.QueryContext(ctx, `SELECT id, raw_path, resolved_file FROM imports WHERE project_id = ? AND file_path = ?`, projectID, path)
	if err != nil {
		return out, errs.StoreTransient("graph.GetFileSymbols", err)
	}
	for impRows.Next() {
		var imp model.Import
		var resolved sql.NullString
		if err := impRows.Scan(&imp.ID, &imp.RawPath, &resolved); err != nil {
			impRows.Close()
			return out, errs.StoreTransient("graph.GetFileSymbols", err)
		}
		imp.ProjectID, imp.FilePath = projectID, path
		if resolved.Valid {
			imp.ResolvedFile = resolved.String
		}
		out.Imports = append(out.Imports, imp)
	}
	impRows.Close()

	implRows, err := s.db.QueryContext(ctx, `SELECT id, type_name, trait_name, line FROM impl_blocks WHERE project_id = ? AND file_path = ?`, projectID, path)
	if err != nil {
		return out, errs.StoreTransient("graph.GetFileSymbols", err)
	}
	for implRows.Next() {
		var impl model.ImplBlock
		var trait sql.NullString
		if err := implRows.Scan(&impl.ID, &impl.TypeName, &trait, &impl.Line); err != nil {
			implRows.Close()
			return out, errs.StoreTransient("graph.GetFileSymbols", err)
		}
		impl.ProjectID, impl.FilePath = projectID, path
		if trait.Valid {
			impl.TraitName = trait.String
		}
		out.Impls = append(out.Impls, impl)
	}
	implRows.Close()

	return out, nil
}

func (s *SqliteStore) UpsertImport(ctx context.Context, imp model.Import) (model.Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var resolved interface{}
	if imp.ResolvedFile != "" {
		resolved = imp.ResolvedFile
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO imports (id, project_id, file_path, raw_path, resolved_file) VALUES (?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET resolved_file = excluded.resolved_file`,
		imp.ID, imp.ProjectID, imp.FilePath, imp.RawPath, resolved)
	if err != nil {
		return model.Import{}, errs.StoreTransient("graph.UpsertImport", err)
	}
	return imp, nil
}

func (s *SqliteStore) ResolveImport(ctx context.Context, importID, resolvedFilePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE imports SET resolved_file = ? WHERE id = ?`, resolvedFilePath, importID)
	if err != nil {
		return errs.StoreTransient("graph.ResolveImport", err)
	}
	return nil
}

func (s *SqliteStore) UnresolvedImports(ctx context.Context, projectID string) ([]model.Import, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, file_path, raw_path FROM imports WHERE project_id = ? AND (resolved_file IS NULL OR resolved_file = '')`, projectID)
	if err != nil {
		return nil, errs.StoreTransient("graph.UnresolvedImports", err)
	}
	defer rows.Close()
	var out []model.Import
	for rows.Next() {
		var imp model.Import
		if err := rows.Scan(&imp.ID, &imp.FilePath, &imp.RawPath); err != nil {
			return nil, errs.StoreTransient("graph.UnresolvedImports", err)
		}
		imp.ProjectID = projectID
		out = append(out, imp)
	}
	return out, nil
}

func (s *SqliteStore) UpsertExternalTrait(ctx context.Context, t model.ExternalTrait) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO external_traits (name, source_crate) VALUES (?, ?)`, t.Name, t.SourceCrate)
	if err != nil {
		return errs.StoreTransient("graph.UpsertExternalTrait", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
