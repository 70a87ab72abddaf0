// Package viewers counts browser tabs currently watching the radar.
//
// A viewer announces itself with a heartbeat every few seconds. Viewers
// whose last heartbeat is older than the TTL are no longer counted and are
// dropped by the next sweep.
package viewers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxIDLength bounds caller-supplied viewer ids.
const MaxIDLength = 64

// Stats summarizes viewer presence.
type Stats struct {
	Active       int        `json:"activeViewers"`
	HasViewers   bool       `json:"hasViewers"`
	LastActivity *time.Time `json:"lastActivity"`
}

// Tracker records viewer heartbeats.
type Tracker struct {
	mu           sync.Mutex
	seen         map[string]time.Time
	ttl          time.Duration
	now          func() time.Time
	lastActivity time.Time
}

// NewTracker creates a tracker whose viewers expire after ttl.
func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// SetClock replaces time.Now.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Register records a heartbeat for id and returns the id the viewer should
// keep using along with the number of active viewers. A blank or oversized
// id is replaced by a new one.
func (t *Tracker) Register(id string) (string, int) {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > MaxIDLength {
		id = uuid.NewString()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.seen[id] = now
	t.lastActivity = now
	return id, t.activeLocked(now)
}

// Stats returns the current presence summary.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	active := t.activeLocked(t.now())
	stats := Stats{Active: active, HasViewers: active > 0}
	if !t.lastActivity.IsZero() {
		last := t.lastActivity
		stats.LastActivity = &last
	}
	return stats
}

// Sweep forgets expired viewers and returns how many were removed.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for id, last := range t.seen {
		if now.Sub(last) > t.ttl {
			delete(t.seen, id)
			removed++
		}
	}
	return removed
}

// Serve sweeps once per TTL until ctx is cancelled. It satisfies
// suture.Service.
func (t *Tracker) Serve(ctx context.Context) error {
	ticker := time.NewTicker(t.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Sweep()
		}
	}
}

func (t *Tracker) String() string {
	return "viewer-sweeper"
}

func (t *Tracker) activeLocked(now time.Time) int {
	n := 0
	for _, last := range t.seen {
		if now.Sub(last) <= t.ttl {
			n++
		}
	}
	return n
}
