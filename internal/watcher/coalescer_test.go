package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCoalescerSettlesOnlyAfterDebounceWindow(t *testing.T) {
	c := NewCoalescer(500 * time.Millisecond)
	t0 := time.Unix(1000, 0)

	c.Record("a.go", t0)
	require.Empty(t, c.Settled(t0.Add(100*time.Millisecond)), "too early, window hasn't elapsed")

	settled := c.Settled(t0.Add(600 * time.Millisecond))
	require.Equal(t, []string{"a.go"}, settled)
	require.Zero(t, c.Pending())
}

func TestCoalescerResetsWindowOnRepeatedActivity(t *testing.T) {
	c := NewCoalescer(500 * time.Millisecond)
	t0 := time.Unix(2000, 0)

	c.Record("a.go", t0)
	c.Record("a.go", t0.Add(400*time.Millisecond)) // rapid second save resets the window

	require.Empty(t, c.Settled(t0.Add(700*time.Millisecond)), "still within the reset window")
	require.Equal(t, []string{"a.go"}, c.Settled(t0.Add(920*time.Millisecond)))
}

func TestCoalescerTracksMultiplePathsIndependently(t *testing.T) {
	c := NewCoalescer(500 * time.Millisecond)
	t0 := time.Unix(3000, 0)

	c.Record("a.go", t0)
	c.Record("b.go", t0.Add(300*time.Millisecond))

	settled := c.Settled(t0.Add(550 * time.Millisecond))
	require.ElementsMatch(t, []string{"a.go"}, settled, "b.go hasn't settled yet")
	require.Equal(t, 1, c.Pending())

	settled = c.Settled(t0.Add(850 * time.Millisecond))
	require.Equal(t, []string{"b.go"}, settled)
}
