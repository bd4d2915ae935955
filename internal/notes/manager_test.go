package notes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"codeforge/internal/eventbus"
	"codeforge/internal/graph"
	"codeforge/internal/model"
	"codeforge/internal/search"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	bus := eventbus.New(nil)
	t.Cleanup(bus.Close)
	return New(graph.NewMock(), search.NewMock(), bus)
}

func TestCreateDedupesAnchorsAndMirrorsToSearch(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	anchor := model.Anchor{EntityType: model.EntityFunction, EntityID: "fn1"}

	n, err := m.Create(ctx, model.Note{
		Content: "watch for the race condition here", NoteType: model.NoteTypeGotcha,
		Anchors: []model.Anchor{anchor, anchor},
	})
	require.NoError(t, err)
	require.Len(t, n.Anchors, 1, "duplicate anchors collapse to one")
	require.Equal(t, model.NoteStatusActive, n.Status)
	require.Equal(t, model.ImportanceMedium, n.Importance, "default importance")

	results, err := m.Search(ctx, "race", search.NoteFilter{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	n, err := m.Create(ctx, model.Note{Content: "c", NoteType: model.NoteTypeTip})
	require.NoError(t, err)

	_, err = m.Archive(ctx, n.ID) // active -> archived is not a direct edge
	require.Error(t, err)

	_, err = m.Invalidate(ctx, n.ID)
	require.NoError(t, err)

	final, err := m.Archive(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, model.NoteStatusArchived, final.Status)

	_, err = m.Confirm(ctx, n.ID)
	require.Error(t, err, "archived is terminal")
}

func TestConfirmResetsStaleness(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	n, err := m.Create(ctx, model.Note{Content: "c", NoteType: model.NoteTypeTip})
	require.NoError(t, err)

	n.StalenessScore = 0.9
	n.Status = model.NoteStatusStale
	_, err = m.store.UpsertNote(ctx, n)
	require.NoError(t, err)

	confirmed, err := m.Confirm(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, model.NoteStatusActive, confirmed.Status)
	require.Zero(t, confirmed.StalenessScore)
	require.False(t, confirmed.LastConfirmedAt.IsZero())
}

func TestSupersedeInheritsAnchorsAndObsoletesOld(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	anchor := model.Anchor{EntityType: model.EntityFile, EntityID: "a.go"}
	old, err := m.Create(ctx, model.Note{Content: "old info", NoteType: model.NoteTypeGuideline, Anchors: []model.Anchor{anchor}})
	require.NoError(t, err)

	fresh, err := m.Supersede(ctx, old.ID, model.Note{Content: "new info", NoteType: model.NoteTypeGuideline})
	require.NoError(t, err)
	require.Equal(t, old.ID, fresh.SupersedesID)
	require.Contains(t, fresh.Anchors, anchor)

	oldNow, ok, err := m.Get(ctx, old.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.NoteStatusObsolete, oldNow.Status)
}

func TestStalenessFormula(t *testing.T) {
	now := time.Now()
	n := model.Note{
		NoteType: model.NoteTypeGotcha, Importance: model.ImportanceHigh,
		CreatedAt: now.Add(-180 * 24 * time.Hour),
	}
	score := Staleness(n, now)
	require.InDelta(t, (1-0.3679)*0.7, score, 0.01, "one base_decay period in should land near (1-1/e) * importance_factor")

	assertion := model.Note{NoteType: model.NoteTypeAssertion, StalenessScore: 0, CreatedAt: now.Add(-10000 * 24 * time.Hour)}
	require.Zero(t, Staleness(assertion, now), "assertions never decay by elapsed time")
}

func TestVerifyAssertionFailureFlagsForReview(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	n, err := m.Create(ctx, model.Note{Content: "always true", NoteType: model.NoteTypeAssertion})
	require.NoError(t, err)

	failed, err := m.VerifyAssertion(ctx, n.ID, false)
	require.NoError(t, err)
	require.Equal(t, model.NoteStatusNeedsReview, failed.Status)

	_, err = m.Create(ctx, model.Note{Content: "x", NoteType: model.NoteTypeTip})
	require.NoError(t, err)
	_, err = m.VerifyAssertion(ctx, failed.ID, false)
	require.Error(t, err, "needs_review -> needs_review is not a transition")
}
