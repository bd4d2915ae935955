package graph

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"codeforge/internal/logging"
)

// SqliteStore is the real Graph Store backend: typed node tables plus one
// polymorphic edges table, grounded on the teacher's
// internal/store/local_graph.go link-table pattern generalized from a
// single relation to the full §3.1/§3.2 entity and relationship set.
type SqliteStore struct {
	db *sql.DB
	mu sync.Mutex // serializes writes; reads use the pool directly
}

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore opens (or creates) the graph database at dsn and applies
// the schema.
func NewSqliteStore(dsn string) (*SqliteStore, error) {
	timer := logging.StartTimer(logging.CategoryGraph, "NewSqliteStore")
	defer timer.Stop()

	if dir := filepath.Dir(dsn); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("graph: create dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dsn+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("graph: open %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single writer, serialize via the pool

	s := &SqliteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Graph("graph store ready at %s", dsn)
	return s, nil
}

func (s *SqliteStore) Close() error { return s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	slug TEXT UNIQUE NOT NULL,
	name TEXT NOT NULL,
	root_path TEXT NOT NULL,
	created_at TEXT NOT NULL,
	last_synced TEXT
);

CREATE TABLE IF NOT EXISTS files (
	project_id TEXT NOT NULL,
	path TEXT NOT NULL,
	language TEXT,
	content_hash TEXT,
	size INTEGER,
	mtime TEXT,
	PRIMARY KEY (project_id, path)
);

CREATE TABLE IF NOT EXISTS functions (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	name TEXT NOT NULL,
	signature TEXT,
	line INTEGER,
	is_public INTEGER,
	is_async INTEGER,
	docstring TEXT
);
CREATE INDEX IF NOT EXISTS idx_functions_file ON functions(project_id, file_path);
CREATE INDEX IF NOT EXISTS idx_functions_name ON functions(name);

CREATE TABLE IF NOT EXISTS type_decls (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	kind TEXT NOT NULL,
	name TEXT NOT NULL,
	line INTEGER,
	is_public INTEGER,
	docstring TEXT
);
CREATE INDEX IF NOT EXISTS idx_types_file ON type_decls(project_id, file_path);
CREATE INDEX IF NOT EXISTS idx_types_name ON type_decls(name);

CREATE TABLE IF NOT EXISTS imports (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	raw_path TEXT NOT NULL,
	resolved_file TEXT
);
CREATE INDEX IF NOT EXISTS idx_imports_file ON imports(project_id, file_path);

CREATE TABLE IF NOT EXISTS impl_blocks (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	type_name TEXT NOT NULL,
	trait_name TEXT,
	line INTEGER
);
CREATE INDEX IF NOT EXISTS idx_impls_file ON impl_blocks(project_id, file_path);

CREATE TABLE IF NOT EXISTS external_traits (
	name TEXT NOT NULL,
	source_crate TEXT NOT NULL,
	PRIMARY KEY (name, source_crate)
);

CREATE TABLE IF NOT EXISTS edges (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	from_type TEXT NOT NULL,
	from_id TEXT NOT NULL,
	rel_type TEXT NOT NULL,
	to_type TEXT NOT NULL,
	to_id TEXT NOT NULL,
	project_id TEXT,
	metadata TEXT,
	created_at TEXT,
	UNIQUE(from_type, from_id, rel_type, to_type, to_id)
);
CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_type, from_id, rel_type);
CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_type, to_id, rel_type);

CREATE TABLE IF NOT EXISTS plans (
	id TEXT PRIMARY KEY,
	project_id TEXT,
	title TEXT NOT NULL,
	description TEXT,
	status TEXT,
	priority INTEGER,
	created_at TEXT
);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	plan_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	status TEXT,
	priority INTEGER,
	tags TEXT,
	acceptance_criteria TEXT,
	affected_files TEXT,
	assigned_to TEXT,
	created_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_tasks_plan ON tasks(plan_id);

CREATE TABLE IF NOT EXISTS steps (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL,
	description TEXT,
	verification TEXT,
	status TEXT
);
CREATE INDEX IF NOT EXISTS idx_steps_task ON steps(task_id);

CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL,
	description TEXT,
	rationale TEXT,
	alternatives TEXT,
	chosen_option TEXT,
	decided_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_decisions_task ON decisions(task_id);

CREATE TABLE IF NOT EXISTS constraints (
	id TEXT PRIMARY KEY,
	plan_id TEXT NOT NULL,
	kind TEXT,
	description TEXT,
	severity TEXT
);
CREATE INDEX IF NOT EXISTS idx_constraints_plan ON constraints(plan_id);

CREATE TABLE IF NOT EXISTS commits (
	sha TEXT PRIMARY KEY,
	project_id TEXT,
	message TEXT,
	author TEXT,
	files_changed TEXT,
	committed_at TEXT
);

CREATE TABLE IF NOT EXISTS milestones (
	id TEXT PRIMARY KEY,
	project_id TEXT,
	title TEXT,
	target_date TEXT,
	status TEXT,
	version TEXT
);

CREATE TABLE IF NOT EXISTS workspaces (
	slug TEXT PRIMARY KEY,
	name TEXT,
	description TEXT
);

CREATE TABLE IF NOT EXISTS resources (
	id TEXT PRIMARY KEY,
	workspace_slug TEXT NOT NULL,
	name TEXT,
	kind TEXT,
	file_path TEXT,
	version TEXT
);

CREATE TABLE IF NOT EXISTS components (
	id TEXT PRIMARY KEY,
	workspace_slug TEXT NOT NULL,
	name TEXT,
	kind TEXT,
	runtime TEXT,
	config TEXT
);

CREATE TABLE IF NOT EXISTS notes (
	id TEXT PRIMARY KEY,
	project_id TEXT,
	workspace_slug TEXT,
	note_type TEXT,
	content TEXT,
	importance TEXT,
	status TEXT,
	tags TEXT,
	scope TEXT,
	anchors TEXT,
	staleness_score REAL,
	created_at TEXT,
	last_confirmed_at TEXT,
	supersedes_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_notes_project ON notes(project_id);
`

func (s *SqliteStore) migrate() error {
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("graph: migrate: %w", err)
	}
	return nil
}
