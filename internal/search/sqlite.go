package search

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"codeforge/internal/errs"
	"codeforge/internal/logging"
)

// SqliteStore is the real Search Store backend: two FTS5 virtual tables,
// grounded on jaakkos-stringwork's internal/knowledge/store.go "documents"
// table, split into a code index and a notes index per §4.C.
//
// It deliberately uses the cgo mattn/go-sqlite3 driver (registered as
// "sqlite3") rather than the pure-Go modernc.org/sqlite driver the Graph
// Store uses, so both of the teacher's SQLite-family dependencies get a
// distinct home (see SPEC_FULL.md §3.5).
type SqliteStore struct {
	db *sql.DB
	mu sync.Mutex
}

var _ Store = (*SqliteStore)(nil)

func NewSqliteStore(dsn string) (*SqliteStore, error) {
	timer := logging.StartTimer(logging.CategorySearch, "NewSqliteStore")
	defer timer.Stop()

	if dir := filepath.Dir(dsn); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("search: create dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("search: open %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)

	s := &SqliteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Search("search store ready at %s", dsn)
	return s, nil
}

// codeRankWeights are the bm25() column weights matching the priority
// order of §4.C's searchable fields: symbols outrank docstrings outrank
// signatures outrank path outrank imports. Position matches the column
// order in the code_fts schema below; the three UNINDEXED columns get a
// weight of 0 since bm25 never scores them anyway.
const codeRankWeights = "0.0, 0.0, 0.0, 10.0, 6.0, 4.0, 2.0, 1.0"

const schema = `
CREATE VIRTUAL TABLE IF NOT EXISTS code_fts USING fts5(
	project_id UNINDEXED,
	path UNINDEXED,
	language UNINDEXED,
	symbols,
	docstrings,
	signatures,
	path_text,
	imports,
	tokenize = 'porter unicode61'
);

CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
	id UNINDEXED,
	project_id UNINDEXED,
	workspace_slug UNINDEXED,
	note_type UNINDEXED,
	tags,
	content,
	tokenize = 'porter unicode61'
);
`

func (s *SqliteStore) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("search: migrate: %w", err)
	}
	return nil
}

func (s *SqliteStore) Close() error { return s.db.Close() }

func (s *SqliteStore) IndexCode(ctx context.Context, doc CodeDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.StoreTransient("search.IndexCode", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM code_fts WHERE project_id = ? AND path = ?`, doc.ProjectID, doc.Path); err != nil {
		return errs.StoreTransient("search.IndexCode", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO code_fts (project_id, path, language, symbols, docstrings, signatures, path_text, imports) VALUES (?,?,?,?,?,?,?,?)`,
		doc.ProjectID, doc.Path, doc.Language, doc.Symbols, doc.Docstrings, doc.Signatures, doc.Path, doc.Imports); err != nil {
		return errs.StoreTransient("search.IndexCode", err)
	}
	if err := tx.Commit(); err != nil {
		return errs.StoreTransient("search.IndexCode", err)
	}
	return nil
}

func (s *SqliteStore) RemoveCode(ctx context.Context, projectID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM code_fts WHERE project_id = ? AND path = ?`, projectID, path)
	if err != nil {
		return errs.StoreTransient("search.RemoveCode", err)
	}
	return nil
}

func (s *SqliteStore) RemoveCodeByProject(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM code_fts WHERE project_id = ?`, projectID)
	if err != nil {
		return errs.StoreTransient("search.RemoveCodeByProject", err)
	}
	return nil
}

func (s *SqliteStore) SearchCode(ctx context.Context, query string, filter CodeFilter, limit int) ([]CodeResult, error) {
	ftsQuery := sanitizeFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	where := []string{"code_fts MATCH ?"}
	args := []interface{}{ftsQuery}
	if filter.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Language != "" {
		where = append(where, "language = ?")
		args = append(args, filter.Language)
	}
	args = append(args, limit)

	q := fmt.Sprintf(`
		SELECT project_id, path, language, snippet(code_fts, 5, '>>>', '<<<', '...', 32) AS snip,
			bm25(code_fts, %s) AS rank
		FROM code_fts WHERE %s ORDER BY rank LIMIT ?`, codeRankWeights, strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.StoreTransient("search.SearchCode", err)
	}
	defer rows.Close()

	var out []CodeResult
	for rows.Next() {
		var r CodeResult
		if err := rows.Scan(&r.ProjectID, &r.Path, &r.Language, &r.Snippet, &r.Rank); err != nil {
			return nil, errs.StoreTransient("search.SearchCode", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *SqliteStore) IndexNote(ctx context.Context, doc NoteDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.StoreTransient("search.IndexNote", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notes_fts WHERE id = ?`, doc.ID); err != nil {
		return errs.StoreTransient("search.IndexNote", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO notes_fts (id, project_id, workspace_slug, note_type, tags, content) VALUES (?,?,?,?,?,?)`,
		doc.ID, doc.ProjectID, doc.WorkspaceSlug, doc.NoteType, doc.Tags, doc.Content); err != nil {
		return errs.StoreTransient("search.IndexNote", err)
	}
	if err := tx.Commit(); err != nil {
		return errs.StoreTransient("search.IndexNote", err)
	}
	return nil
}

func (s *SqliteStore) RemoveNote(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM notes_fts WHERE id = ?`, id)
	if err != nil {
		return errs.StoreTransient("search.RemoveNote", err)
	}
	return nil
}

func (s *SqliteStore) SearchNotes(ctx context.Context, query string, filter NoteFilter, limit int) ([]NoteResult, error) {
	ftsQuery := sanitizeFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	where := []string{"notes_fts MATCH ?"}
	args := []interface{}{ftsQuery}
	if filter.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.WorkspaceSlug != "" {
		where = append(where, "workspace_slug = ?")
		args = append(args, filter.WorkspaceSlug)
	}
	if filter.NoteType != "" {
		where = append(where, "note_type = ?")
		args = append(args, filter.NoteType)
	}
	args = append(args, limit)

	q := fmt.Sprintf(`
		SELECT id, note_type, snippet(notes_fts, 5, '>>>', '<<<', '...', 32) AS snip, rank
		FROM notes_fts WHERE %s ORDER BY rank LIMIT ?`, strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.StoreTransient("search.SearchNotes", err)
	}
	defer rows.Close()

	var out []NoteResult
	for rows.Next() {
		var r NoteResult
		if err := rows.Scan(&r.ID, &r.NoteType, &r.Snippet, &r.Rank); err != nil {
			return nil, errs.StoreTransient("search.SearchNotes", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// sanitizeFTSQuery strips FTS5 syntax characters a caller-supplied query
// might accidentally trigger, grounded on jaakkos-stringwork's
// sanitizeFTSQuery.
func sanitizeFTSQuery(q string) string {
	replacer := strings.NewReplacer(`"`, "", "'", "", "(", "", ")", "", "*", "", ":", "", "^", "", "{", "", "}", "")
	cleaned := replacer.Replace(q)
	fields := strings.Fields(cleaned)
	var tokens []string
	for _, f := range fields {
		if f == "" || f == "AND" || f == "OR" || f == "NOT" || f == "NEAR" {
			continue
		}
		tokens = append(tokens, f)
	}
	if len(tokens) == 0 {
		return ""
	}
	return strings.Join(tokens, " ")
}
