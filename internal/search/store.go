// Package search implements the Search Store (§4.C): full-text code and
// note indexes behind one interface, satisfied by a real SQLite FTS5
// backend or an in-memory Mock (§9 "dynamic dispatch over stores").
package search

import "context"

// CodeDoc is one indexed unit of source — currently one row per file. Its
// fields are kept distinct, rather than flattened into one blob, so the
// Search Store can rank a match in Symbols above one only found in Imports
// (§4.C "searchable fields, in priority order": symbols, docstrings,
// signatures, path, imports).
type CodeDoc struct {
	ProjectID  string
	Path       string
	Language   string
	Symbols    string // space-joined function/type names
	Docstrings string
	Signatures string
	Imports    string
}

// CodeFilter narrows a code search to a project and/or language.
type CodeFilter struct {
	ProjectID string
	Language  string
}

// CodeResult is one ranked code search hit.
type CodeResult struct {
	ProjectID string
	Path      string
	Language  string
	Snippet   string
	Rank      float64
}

// NoteDoc is one indexed Note (§4.G).
type NoteDoc struct {
	ID            string
	ProjectID     string
	WorkspaceSlug string
	NoteType      string
	Tags          string // space-joined
	Content       string
}

// NoteFilter narrows a note search.
type NoteFilter struct {
	ProjectID     string
	WorkspaceSlug string
	NoteType      string
}

// NoteResult is one ranked note search hit.
type NoteResult struct {
	ID       string
	Snippet  string
	NoteType string
	Rank     float64
}

// Store is the full Search Store surface.
type Store interface {
	IndexCode(ctx context.Context, doc CodeDoc) error
	RemoveCode(ctx context.Context, projectID, path string) error
	RemoveCodeByProject(ctx context.Context, projectID string) error
	SearchCode(ctx context.Context, query string, filter CodeFilter, limit int) ([]CodeResult, error)

	IndexNote(ctx context.Context, doc NoteDoc) error
	RemoveNote(ctx context.Context, id string) error
	SearchNotes(ctx context.Context, query string, filter NoteFilter, limit int) ([]NoteResult, error)

	Close() error
}
