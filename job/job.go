// Package job tracks generation jobs from preview through publish. Jobs
// live in memory only and are evicted after a fixed retention window.
package job

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/setanarut/pixelpress/grid"
)

// Status is a job lifecycle state. Transitions only move forward:
// pending → previewed → publishing → done | failed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusPreviewed  Status = "previewed"
	StatusPublishing Status = "publishing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// rank orders statuses so transitions can be checked forward-only.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusPreviewed:
		return 1
	case StatusPublishing:
		return 2
	case StatusDone, StatusFailed:
		return 3
	}
	return -1
}

// Retention is how long a job stays in the store after creation.
const Retention = time.Hour

// Job is one generation request. The grid is owned exclusively by this
// job until the replay engine consumes it.
type Job struct {
	ID        string
	Prompt    string
	Grid      *grid.Grid
	Status    Status
	URL       string
	Err       string
	CreatedAt time.Time
}

// Clock is injected so retention can be tested without real time passing.
type Clock func() time.Time

// Store is a keyed job table.
type Store interface {
	Put(j *Job)
	Get(id string) (*Job, bool)
	// Advance moves a job's status forward. Backward or repeated terminal
	// transitions are ignored, which keeps a retried completion callback
	// from clobbering terminal fields.
	Advance(id string, s Status, url, errMsg string) bool
	// SweepExpired drops jobs older than the retention window and returns
	// how many were removed.
	SweepExpired() int
}

// NewID returns a fresh job identifier.
func NewID() string {
	return uuid.NewString()
}

type memStore struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	now       Clock
	retention time.Duration
}

// NewMemStore returns an in-memory store with the given clock. A nil
// clock uses time.Now.
func NewMemStore(now Clock) Store {
	if now == nil {
		now = time.Now
	}
	return &memStore{jobs: make(map[string]*Job), now: now, retention: Retention}
}

func (s *memStore) Put(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = s.now()
	}
	s.jobs[j.ID] = j
}

func (s *memStore) Get(id string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *j
	return &cp, true
}

func (s *memStore) Advance(id string, next Status, url, errMsg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false
	}
	if next.rank() <= j.Status.rank() {
		return false
	}
	j.Status = next
	if url != "" {
		j.URL = url
	}
	if errMsg != "" {
		j.Err = errMsg
	}
	return true
}

func (s *memStore) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.retention)
	removed := 0
	for id, j := range s.jobs {
		if j.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}
