package graph

import (
	"context"
	"database/sql"

	"codeforge/internal/errs"
	"codeforge/internal/model"
)

// FindFunctionByID looks up a single Function by its primary key, used to
// resolve call-graph traversal results back to a file path (§4.I "Impact
// analysis").
func (s *SqliteStore) FindFunctionByID(ctx context.Context, id string) (model.Function, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, project_id, file_path, name, signature, line, is_public, is_async, docstring FROM functions WHERE id = ?`, id)
	var fn model.Function
	var isPublic, isAsync int
	if err := row.Scan(&fn.ID, &fn.ProjectID, &fn.FilePath, &fn.Name, &fn.Signature, &fn.Line, &isPublic, &isAsync, &fn.Docstring); err != nil {
		if err == sql.ErrNoRows {
			return model.Function{}, false, nil
		}
		return model.Function{}, false, errs.StoreTransient("graph.FindFunctionByID", err)
	}
	fn.IsPublic, fn.IsAsync = isPublic != 0, isAsync != 0
	return fn, true, nil
}

// FindFunctionsByName looks up every Function named name, optionally
// scoped to a project, via the functions(name) index (§4.I "References").
func (s *SqliteStore) FindFunctionsByName(ctx context.Context, projectID, name string) ([]model.Function, error) {
	q := `SELECT id, project_id, file_path, name, signature, line, is_public, is_async, docstring FROM functions WHERE name = ?`
	args := []interface{}{name}
	if projectID != "" {
		q += ` AND project_id = ?`
		args = append(args, projectID)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.StoreTransient("graph.FindFunctionsByName", err)
	}
	defer rows.Close()

	var out []model.Function
	for rows.Next() {
		var fn model.Function
		var isPublic, isAsync int
		if err := rows.Scan(&fn.ID, &fn.ProjectID, &fn.FilePath, &fn.Name, &fn.Signature, &fn.Line, &isPublic, &isAsync, &fn.Docstring); err != nil {
			return nil, errs.StoreTransient("graph.FindFunctionsByName", err)
		}
		fn.IsPublic, fn.IsAsync = isPublic != 0, isAsync != 0
		out = append(out, fn)
	}
	return out, nil
}

// FindTypesByName looks up every Struct/Enum/Trait named name.
func (s *SqliteStore) FindTypesByName(ctx context.Context, projectID, name string) ([]model.TypeDecl, error) {
	q := `SELECT id, project_id, file_path, kind, name, line, is_public, docstring FROM type_decls WHERE name = ?`
	args := []interface{}{name}
	if projectID != "" {
		q += ` AND project_id = ?`
		args = append(args, projectID)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.StoreTransient("graph.FindTypesByName", err)
	}
	defer rows.Close()

	var out []model.TypeDecl
	for rows.Next() {
		var ty model.TypeDecl
		var kind string
		var isPublic int
		if err := rows.Scan(&ty.ID, &ty.ProjectID, &ty.FilePath, &kind, &ty.Name, &ty.Line, &isPublic, &ty.Docstring); err != nil {
			return nil, errs.StoreTransient("graph.FindTypesByName", err)
		}
		ty.Kind, ty.IsPublic = model.TypeKind(kind), isPublic != 0
		out = append(out, ty)
	}
	return out, nil
}

func (s *SqliteStore) implBlocksWhere(ctx context.Context, projectID, column, value string) ([]model.ImplBlock, error) {
	q := `SELECT id, project_id, file_path, type_name, trait_name, line FROM impl_blocks WHERE ` + column + ` = ?`
	args := []interface{}{value}
	if projectID != "" {
		q += ` AND project_id = ?`
		args = append(args, projectID)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.StoreTransient("graph.implBlocksWhere", err)
	}
	defer rows.Close()

	var out []model.ImplBlock
	for rows.Next() {
		var impl model.ImplBlock
		var trait sql.NullString
		if err := rows.Scan(&impl.ID, &impl.ProjectID, &impl.FilePath, &impl.TypeName, &trait, &impl.Line); err != nil {
			return nil, errs.StoreTransient("graph.implBlocksWhere", err)
		}
		if trait.Valid {
			impl.TraitName = trait.String
		}
		out = append(out, impl)
	}
	return out, nil
}

// FindImplBlocksByType returns every ImplBlock for typeName — "get_impl_blocks(type)" in §4.I.
func (s *SqliteStore) FindImplBlocksByType(ctx context.Context, projectID, typeName string) ([]model.ImplBlock, error) {
	return s.implBlocksWhere(ctx, projectID, "type_name", typeName)
}

// FindImplBlocksByTrait returns every ImplBlock implementing traitName —
// "find_trait_implementations(trait)" in §4.I.
func (s *SqliteStore) FindImplBlocksByTrait(ctx context.Context, projectID, traitName string) ([]model.ImplBlock, error) {
	return s.implBlocksWhere(ctx, projectID, "trait_name", traitName)
}
