package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock is advanced manually so retention tests do not sleep.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestStore() (*fakeClock, Store) {
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return clk, NewMemStore(clk.Now)
}

func TestLifecycleToDone(t *testing.T) {
	_, s := newTestStore()
	id := NewID()
	s.Put(&Job{ID: id, Status: StatusPending})

	require.True(t, s.Advance(id, StatusPublishing, "", ""))
	require.True(t, s.Advance(id, StatusDone, "https://gallery.example.com/a/1", ""))

	j, ok := s.Get(id)
	require.True(t, ok)
	require.Equal(t, StatusDone, j.Status)
	require.Equal(t, "https://gallery.example.com/a/1", j.URL)
	require.Empty(t, j.Err)
}

func TestLifecycleToFailed(t *testing.T) {
	_, s := newTestStore()
	id := NewID()
	s.Put(&Job{ID: id, Status: StatusPending})

	require.True(t, s.Advance(id, StatusPublishing, "", ""))
	require.True(t, s.Advance(id, StatusFailed, "", "no grid cells found"))

	j, _ := s.Get(id)
	require.Equal(t, StatusFailed, j.Status)
	require.Equal(t, "no grid cells found", j.Err)
}

func TestNoBackwardTransitions(t *testing.T) {
	_, s := newTestStore()
	id := NewID()
	s.Put(&Job{ID: id, Status: StatusPending})

	require.True(t, s.Advance(id, StatusDone, "https://g/1", ""))

	// A retried completion callback must not clobber terminal fields.
	require.False(t, s.Advance(id, StatusFailed, "", "late error"))
	require.False(t, s.Advance(id, StatusPublishing, "", ""))
	require.False(t, s.Advance(id, StatusPending, "", ""))

	j, _ := s.Get(id)
	require.Equal(t, StatusDone, j.Status)
	require.Equal(t, "https://g/1", j.URL)
	require.Empty(t, j.Err)
}

func TestAdvanceUnknownJob(t *testing.T) {
	_, s := newTestStore()
	require.False(t, s.Advance("missing", StatusDone, "", ""))
}

func TestSweepExpired(t *testing.T) {
	clk, s := newTestStore()
	old := NewID()
	s.Put(&Job{ID: old, Status: StatusPending})

	clk.now = clk.now.Add(30 * time.Minute)
	fresh := NewID()
	s.Put(&Job{ID: fresh, Status: StatusPending})

	clk.now = clk.now.Add(31 * time.Minute)
	require.Equal(t, 1, s.SweepExpired())

	_, ok := s.Get(old)
	require.False(t, ok, "job past the retention window is evicted")
	_, ok = s.Get(fresh)
	require.True(t, ok)
}

func TestGetReturnsCopy(t *testing.T) {
	_, s := newTestStore()
	id := NewID()
	s.Put(&Job{ID: id, Status: StatusPending})

	j, _ := s.Get(id)
	j.Status = StatusFailed

	fresh, _ := s.Get(id)
	require.Equal(t, StatusPending, fresh.Status, "Get hands out a snapshot, not the stored job")
}
