package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"codeforge/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New(nil)
	defer b.Close()
	sub := b.Subscribe()
	defer sub.Unsubscribe()

	b.Publish(context.Background(), Event{EntityType: model.EntityTask, EntityID: "t1", Action: ActionCreated})

	select {
	case ev := <-sub.Events:
		require.Equal(t, "t1", ev.EntityID)
		require.Equal(t, ActionCreated, ev.Action)
		require.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishFansOutToMultipleSubscribers(t *testing.T) {
	b := New(nil)
	defer b.Close()
	a := b.Subscribe()
	c := b.Subscribe()
	defer a.Unsubscribe()
	defer c.Unsubscribe()

	b.Publish(context.Background(), Event{EntityType: model.EntityNote, EntityID: "n1", Action: ActionCreated})

	for _, sub := range []*Subscription{a, c} {
		select {
		case ev := <-sub.Events:
			require.Equal(t, "n1", ev.EntityID)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestSlowSubscriberDropsOldestAndReportsLag(t *testing.T) {
	b := New(nil)
	defer b.Close()
	sub := b.Subscribe()
	defer sub.Unsubscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish(context.Background(), Event{EntityType: model.EntityFile, EntityID: "f1", Action: ActionUpdated})
	}

	require.Greater(t, sub.Lagged(), uint64(0), "slow subscriber should report dropped events rather than block the publisher")

	drained := 0
	for {
		select {
		case _, ok := <-sub.Events:
			if !ok {
				t.Fatal("channel closed early")
			}
			drained++
		default:
			require.Equal(t, subscriberBuffer, drained)
			return
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New(nil)
	defer b.Close()
	sub := b.Subscribe()
	sub.Unsubscribe()

	_, ok := <-sub.Events
	require.False(t, ok, "channel should be closed after Unsubscribe")

	// Unsubscribe and Close are idempotent/safe after the subscriber is gone.
	sub.Unsubscribe()
}

func TestCloseClosesAllSubscribers(t *testing.T) {
	b := New(nil)
	a := b.Subscribe()
	c := b.Subscribe()
	b.Close()

	_, ok := <-a.Events
	require.False(t, ok)
	_, ok = <-c.Events
	require.False(t, ok)
}

type recordingEmitter struct {
	events []Event
}

func (r *recordingEmitter) Emit(_ context.Context, ev Event) {
	r.events = append(r.events, ev)
}

func TestExternalEmitterReceivesEvents(t *testing.T) {
	rec := &recordingEmitter{}
	b := New(rec)
	defer b.Close()

	b.Publish(context.Background(), Event{EntityType: model.EntityPlan, EntityID: "p1", Action: ActionCreated})
	require.Len(t, rec.events, 1)
	require.Equal(t, "p1", rec.events[0].EntityID)
}
