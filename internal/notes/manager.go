// Package notes implements the Notes Manager (§4.G): CRUD and lifecycle for
// Notes anchored to graph entities, staleness scoring, and supersession.
// Writes fan out to the Search Store so notes are full-text searchable and
// to the event bus so other components observe note lifecycle changes.
package notes

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"codeforge/internal/errs"
	"codeforge/internal/eventbus"
	"codeforge/internal/graph"
	"codeforge/internal/logging"
	"codeforge/internal/model"
	"codeforge/internal/search"
)

// baseDecayDays is the half-life-ish constant per note_type used by the
// staleness formula (§4.G "Staleness score"). Assertions never decay by
// time, only by verification failure, so they carry no entry here.
var baseDecayDays = map[model.NoteType]float64{
	model.NoteTypeContext:     30,
	model.NoteTypeTip:         90,
	model.NoteTypeObservation: 90,
	model.NoteTypeGotcha:      180,
	model.NoteTypeGuideline:   365,
	model.NoteTypePattern:     365,
}

var importanceFactor = map[model.Importance]float64{
	model.ImportanceCritical: 0.5,
	model.ImportanceHigh:     0.7,
	model.ImportanceMedium:   1.0,
	model.ImportanceLow:      1.3,
}

// staleThreshold is where an active Note crosses into stale (§4.G).
const staleThreshold = 0.8

// noteTransitions is the status machine from §4.G's diagram.
var noteTransitions = map[model.NoteStatus][]model.NoteStatus{
	model.NoteStatusActive:      {model.NoteStatusNeedsReview, model.NoteStatusStale, model.NoteStatusObsolete},
	model.NoteStatusNeedsReview: {model.NoteStatusActive, model.NoteStatusObsolete},
	model.NoteStatusStale:       {model.NoteStatusActive, model.NoteStatusObsolete},
	model.NoteStatusObsolete:    {model.NoteStatusArchived},
	model.NoteStatusArchived:    {},
}

func isAllowedNoteTransition(from, to model.NoteStatus) bool {
	if from == to {
		return false
	}
	for _, allowed := range noteTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Manager owns Note CRUD, lifecycle, and staleness scoring.
type Manager struct {
	store  graph.Store
	search search.Store
	bus    *eventbus.Bus
}

func New(store graph.Store, searchStore search.Store, bus *eventbus.Bus) *Manager {
	return &Manager{store: store, search: searchStore, bus: bus}
}

func (m *Manager) publish(ctx context.Context, ev eventbus.Event) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(ctx, ev)
}

func (m *Manager) mirror(ctx context.Context, n model.Note) {
	if m.search == nil {
		return
	}
	tags := strings.Join(n.Tags, " ")
	_ = m.search.IndexNote(ctx, search.NoteDoc{
		ID: n.ID, ProjectID: n.ProjectID, WorkspaceSlug: n.WorkspaceSlug,
		NoteType: string(n.NoteType), Tags: tags, Content: n.Content,
	})
}

// Create validates and persists a new Note, anchoring it to the given
// entities (a deduped set per §4.G) and mirroring it into the Search Store.
func (m *Manager) Create(ctx context.Context, n model.Note) (model.Note, error) {
	if n.Content == "" || n.NoteType == "" {
		return model.Note{}, errs.Validation("notes.Create", nil)
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Status == "" {
		n.Status = model.NoteStatusActive
	}
	if n.Importance == "" {
		n.Importance = model.ImportanceMedium
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	n.Anchors = dedupeAnchors(n.Anchors)

	out, err := m.store.UpsertNote(ctx, n)
	if err != nil {
		return model.Note{}, err
	}
	m.mirror(ctx, out)
	logging.Notes("note %s created (%s, %s)", out.ID, out.NoteType, out.Importance)
	m.publish(ctx, eventbus.Event{EntityType: model.EntityNote, EntityID: out.ID, Action: eventbus.ActionCreated, ProjectID: out.ProjectID})
	return out, nil
}

func dedupeAnchors(anchors []model.Anchor) []model.Anchor {
	seen := make(map[model.Anchor]bool, len(anchors))
	var out []model.Anchor
	for _, a := range anchors {
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

func (m *Manager) Get(ctx context.Context, id string) (model.Note, bool, error) {
	return m.store.GetNote(ctx, id)
}

func (m *Manager) List(ctx context.Context, filter graph.NoteFilter, page graph.Page) ([]model.Note, int, error) {
	return m.store.ListNotes(ctx, filter, page)
}

func (m *Manager) ByAnchor(ctx context.Context, anchor model.Anchor) ([]model.Note, error) {
	return m.store.NotesByAnchor(ctx, anchor)
}

// Search runs a full-text query over indexed note content.
func (m *Manager) Search(ctx context.Context, query string, filter search.NoteFilter, limit int) ([]search.NoteResult, error) {
	return m.search.SearchNotes(ctx, query, filter, limit)
}

// Transition moves a Note to newStatus along the lifecycle diagram in
// §4.G, rejecting any move not in noteTransitions. Moving back to active
// resets staleness (confirm semantics).
func (m *Manager) Transition(ctx context.Context, id string, newStatus model.NoteStatus) (model.Note, error) {
	n, ok, err := m.store.GetNote(ctx, id)
	if err != nil {
		return model.Note{}, err
	}
	if !ok {
		return model.Note{}, errs.NotFound("notes.Transition", nil)
	}
	if !isAllowedNoteTransition(n.Status, newStatus) {
		return model.Note{}, errs.Validation("notes.Transition", nil)
	}
	n.Status = newStatus
	if newStatus == model.NoteStatusActive {
		n.LastConfirmedAt = time.Now()
		n.StalenessScore = 0
	}
	out, err := m.store.UpsertNote(ctx, n)
	if err != nil {
		return model.Note{}, err
	}
	m.mirror(ctx, out)
	m.publish(ctx, eventbus.Event{EntityType: model.EntityNote, EntityID: out.ID, Action: eventbus.ActionUpdated, ProjectID: out.ProjectID})
	return out, nil
}

// Confirm is Transition to active from needs_review or stale — the
// "confirm" edges in the status diagram.
func (m *Manager) Confirm(ctx context.Context, id string) (model.Note, error) {
	return m.Transition(ctx, id, model.NoteStatusActive)
}

// Invalidate is Transition to obsolete from active, needs_review or stale.
func (m *Manager) Invalidate(ctx context.Context, id string) (model.Note, error) {
	return m.Transition(ctx, id, model.NoteStatusObsolete)
}

// Archive is Transition to archived from obsolete (terminal).
func (m *Manager) Archive(ctx context.Context, id string) (model.Note, error) {
	return m.Transition(ctx, id, model.NoteStatusArchived)
}

// FlagForReview moves an active Note to needs_review, e.g. because the
// Sync Engine detected a change in one of its anchored entities.
func (m *Manager) FlagForReview(ctx context.Context, id string) (model.Note, error) {
	return m.Transition(ctx, id, model.NoteStatusNeedsReview)
}

// Supersede creates a new Note that inherits old's anchors, links
// SUPERSEDES(new -> old), and sets old to obsolete. Chain length is
// unbounded (§4.G "Supersession").
func (m *Manager) Supersede(ctx context.Context, oldID string, replacement model.Note) (model.Note, error) {
	old, ok, err := m.store.GetNote(ctx, oldID)
	if err != nil {
		return model.Note{}, err
	}
	if !ok {
		return model.Note{}, errs.NotFound("notes.Supersede", nil)
	}

	replacement.ProjectID = old.ProjectID
	replacement.Anchors = dedupeAnchors(append(append([]model.Anchor{}, old.Anchors...), replacement.Anchors...))
	replacement.SupersedesID = old.ID
	if replacement.Status == "" {
		replacement.Status = model.NoteStatusActive
	}
	newNote, err := m.Create(ctx, replacement)
	if err != nil {
		return model.Note{}, err
	}

	old.Status = model.NoteStatusObsolete
	if _, err := m.store.UpsertNote(ctx, old); err != nil {
		return model.Note{}, err
	}
	m.publish(ctx, eventbus.Event{EntityType: model.EntityNote, EntityID: old.ID, Action: eventbus.ActionUpdated, ProjectID: old.ProjectID})
	return newNote, nil
}

// VerifyAssertion re-evaluates an assertion-type Note: assertions never
// decay by time, only by verification failure (§4.G). A failed
// verification flags the note for review instead of silently going stale.
func (m *Manager) VerifyAssertion(ctx context.Context, id string, holds bool) (model.Note, error) {
	n, ok, err := m.store.GetNote(ctx, id)
	if err != nil {
		return model.Note{}, err
	}
	if !ok {
		return model.Note{}, errs.NotFound("notes.VerifyAssertion", nil)
	}
	if n.NoteType != model.NoteTypeAssertion {
		return model.Note{}, errs.Validation("notes.VerifyAssertion", nil)
	}
	if holds {
		n.LastConfirmedAt = time.Now()
		n.StalenessScore = 0
		out, err := m.store.UpsertNote(ctx, n)
		return out, err
	}
	return m.Transition(ctx, id, model.NoteStatusNeedsReview)
}

// Staleness computes the decay score per §4.G's formula, measured from
// last_confirmed_at (or created_at if never confirmed). Assertions report
// their stored StalenessScore unchanged: elapsed time never raises it, and
// VerifyAssertion resets it to 0 when the assertion holds.
func Staleness(n model.Note, now time.Time) float64 {
	if n.NoteType == model.NoteTypeAssertion {
		return n.StalenessScore
	}
	base, ok := baseDecayDays[n.NoteType]
	if !ok || base <= 0 {
		return 0
	}
	anchor := n.LastConfirmedAt
	if anchor.IsZero() {
		anchor = n.CreatedAt
	}
	days := now.Sub(anchor).Hours() / 24
	if days < 0 {
		days = 0
	}
	factor := importanceFactor[n.Importance]
	if factor == 0 {
		factor = 1.0
	}
	return (1 - math.Exp(-days/base)) * factor
}

// RefreshStaleness recomputes a Note's staleness score and, if it has
// crossed the threshold while still active, transitions it to stale.
func (m *Manager) RefreshStaleness(ctx context.Context, n model.Note, now time.Time) (model.Note, error) {
	score := Staleness(n, now)
	n.StalenessScore = score
	crossed := n.Status == model.NoteStatusActive && score >= staleThreshold
	if crossed {
		n.Status = model.NoteStatusStale
	}
	out, err := m.store.UpsertNote(ctx, n)
	if err != nil {
		return model.Note{}, err
	}
	m.mirror(ctx, out)
	if crossed {
		m.publish(ctx, eventbus.Event{EntityType: model.EntityNote, EntityID: out.ID, Action: eventbus.ActionUpdated, ProjectID: out.ProjectID})
	}
	return out, nil
}
