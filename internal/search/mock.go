package search

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Mock is a naive in-memory Store: case-insensitive substring counts over
// the indexed fields, field-equality filters, and a rank equal to minus the
// occurrence count (weighted per field for code). Satisfies the
// same interface as SqliteStore so component tests never need a live FTS5
// database (§9).
type Mock struct {
	mu    sync.Mutex
	code  map[string]CodeDoc // key: projectID + "\x00" + path
	notes map[string]NoteDoc // key: note ID
}

var _ Store = (*Mock)(nil)

func NewMock() *Mock {
	return &Mock{code: make(map[string]CodeDoc), notes: make(map[string]NoteDoc)}
}

func (m *Mock) Close() error { return nil }

func codeKey(projectID, path string) string { return projectID + "\x00" + path }

func (m *Mock) IndexCode(ctx context.Context, doc CodeDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.code[codeKey(doc.ProjectID, doc.Path)] = doc
	return nil
}

func (m *Mock) RemoveCode(ctx context.Context, projectID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.code, codeKey(projectID, path))
	return nil
}

func (m *Mock) RemoveCodeByProject(ctx context.Context, projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, doc := range m.code {
		if doc.ProjectID == projectID {
			delete(m.code, k)
		}
	}
	return nil
}

func (m *Mock) SearchCode(ctx context.Context, query string, filter CodeFilter, limit int) ([]CodeResult, error) {
	if limit <= 0 {
		limit = 20
	}
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []CodeResult
	for _, doc := range m.code {
		if filter.ProjectID != "" && doc.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Language != "" && doc.Language != filter.Language {
			continue
		}
		// Weighted occurrence count mirrors the real store's bm25 column
		// weights (§4.C priority order: symbols, docstrings, signatures,
		// path, imports), so Mock-backed tests see the same ordering.
		score := 0.0
		for _, t := range terms {
			score += 10 * float64(strings.Count(strings.ToLower(doc.Symbols), t))
			score += 6 * float64(strings.Count(strings.ToLower(doc.Docstrings), t))
			score += 4 * float64(strings.Count(strings.ToLower(doc.Signatures), t))
			score += 2 * float64(strings.Count(strings.ToLower(doc.Path), t))
			score += 1 * float64(strings.Count(strings.ToLower(doc.Imports), t))
		}
		if score == 0 {
			continue
		}
		preview := doc.Docstrings + " " + doc.Signatures
		out = append(out, CodeResult{ProjectID: doc.ProjectID, Path: doc.Path, Language: doc.Language, Snippet: snippetOf(preview, terms[0]), Rank: -score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Mock) IndexNote(ctx context.Context, doc NoteDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[doc.ID] = doc
	return nil
}

func (m *Mock) RemoveNote(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.notes, id)
	return nil
}

func (m *Mock) SearchNotes(ctx context.Context, query string, filter NoteFilter, limit int) ([]NoteResult, error) {
	if limit <= 0 {
		limit = 20
	}
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []NoteResult
	for _, doc := range m.notes {
		if filter.ProjectID != "" && doc.ProjectID != filter.ProjectID {
			continue
		}
		if filter.WorkspaceSlug != "" && doc.WorkspaceSlug != filter.WorkspaceSlug {
			continue
		}
		if filter.NoteType != "" && doc.NoteType != filter.NoteType {
			continue
		}
		haystack := strings.ToLower(doc.Tags + " " + doc.Content)
		hits := 0
		for _, t := range terms {
			hits += strings.Count(haystack, t)
		}
		if hits == 0 {
			continue
		}
		out = append(out, NoteResult{ID: doc.ID, NoteType: doc.NoteType, Snippet: snippetOf(doc.Content, terms[0]), Rank: -float64(hits)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func snippetOf(content, term string) string {
	lower := strings.ToLower(content)
	idx := strings.Index(lower, strings.ToLower(term))
	if idx < 0 {
		if len(content) > 80 {
			return content[:80] + "..."
		}
		return content
	}
	start := idx - 30
	if start < 0 {
		start = 0
	}
	end := idx + 50
	if end > len(content) {
		end = len(content)
	}
	return "..." + content[start:end] + "..."
}
