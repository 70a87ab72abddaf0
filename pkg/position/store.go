package position

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/unklstewy/atc-radar/internal/logging"
	"github.com/unklstewy/atc-radar/internal/metrics"
	"github.com/unklstewy/atc-radar/pkg/subscription"
)

// Snapshot is the full set of live records at one instant. Its JSON form is
// the bulk read and broadcast payload.
type Snapshot struct {
	Count     int       `json:"count"`
	Aircraft  []Record  `json:"aircraft"`
	Timestamp time.Time `json:"timestamp"`

	// Seq is the store revision the snapshot reflects. It grows with every
	// write and every sweep that removed records; zero means unversioned.
	Seq uint64 `json:"-"`
}

// NewSnapshot wraps records taken at ts.
func NewSnapshot(aircraft []Record, ts time.Time) Snapshot {
	if aircraft == nil {
		aircraft = []Record{}
	}
	return Snapshot{Count: len(aircraft), Aircraft: aircraft, Timestamp: ts}
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now. Tests use it to age records without sleeping.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger replaces the default component logger.
//
//nolint:gocritic // zerolog.Logger is a value type
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// Store is the process-wide latest-value cache of aircraft positions.
//
// Every Upsert publishes a Snapshot to subscribers synchronously, before
// Upsert returns. Snapshots for successive writes are delivered in write
// order. Readers are never held up by a slow subscriber, but writers queue
// behind it. Subscriber callbacks may read from the Store and must not write
// to it; they should hand the snapshot off (for example with a non-blocking
// channel send) and return.
type Store struct {
	mu         sync.RWMutex
	records    map[string]Record
	seq        uint64
	staleAfter time.Duration
	now        func() time.Time
	log        zerolog.Logger

	// issued is the last notification ticket handed out under mu.
	// Notifications go out in ticket order once mu is released.
	issued     uint64
	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	delivered  uint64 // guarded by notifyMu
	registry   *subscription.Registry[Snapshot]
}

// NewStore creates an empty store whose records go stale staleAfter after
// their last report.
func NewStore(staleAfter time.Duration, opts ...Option) *Store {
	s := &Store{
		records:    make(map[string]Record),
		staleAfter: staleAfter,
		now:        time.Now,
		log:        logging.Component("store"),
		registry:   subscription.NewRegistry[Snapshot](),
	}
	s.notifyCond = sync.NewCond(&s.notifyMu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StaleAfter returns the staleness threshold.
func (s *Store) StaleAfter() time.Duration {
	return s.staleAfter
}

// Subscribe registers fn to receive a Snapshot after every write.
func (s *Store) Subscribe(fn subscription.Func[Snapshot]) *subscription.Subscription[Snapshot] {
	return s.registry.Subscribe(fn)
}

// Subscribers returns the number of registered subscribers.
func (s *Store) Subscribers() int {
	return s.registry.Len()
}

// Upsert replaces the record for key with the coerced fields, stamps it and
// notifies subscribers. It never fails: fields that do not coerce take their
// zero default. The stored record is returned.
func (s *Store) Upsert(key string, fields Fields) Record {
	rec := fields.record(key)

	s.mu.Lock()
	now := s.now()
	prev, exists := s.records[key]
	if exists && !s.isStale(prev, now) {
		rec.FirstSeen = prev.FirstSeen
		if now.Before(prev.LastSeen) {
			now = prev.LastSeen
		}
	} else {
		rec.FirstSeen = now
	}
	rec.LastSeen = now
	rec.Timestamp = now.UnixMilli()
	s.records[key] = rec
	s.seq++
	size := len(s.records)
	snap := s.snapshotLocked(now)
	s.issued++
	ticket := s.issued
	s.mu.Unlock()

	metrics.TrackedAircraft.Set(float64(size))
	s.log.Debug().
		Str("key", key).
		Str("callsign", rec.Callsign).
		Bool("new", !exists).
		Msg("position updated")

	s.deliver(ticket, snap)
	return rec.Clone()
}

// Get returns the live record for key.
func (s *Store) Get(key string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok || s.isStale(rec, s.now()) {
		return Record{}, false
	}
	return rec.Clone(), true
}

// FindByCallsign returns a live record with the given callsign. When several
// producers share a callsign the most recently reported one wins.
func (s *Store) FindByCallsign(callsign string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var (
		found Record
		ok    bool
	)
	for _, rec := range s.records {
		if rec.Callsign != callsign || s.isStale(rec, now) {
			continue
		}
		if !ok || rec.LastSeen.After(found.LastSeen) {
			found, ok = rec, true
		}
	}
	if !ok {
		return Record{}, false
	}
	return found.Clone(), true
}

// All returns every live record, ordered by key.
func (s *Store) All() []Record {
	return s.Snapshot().Aircraft
}

// Snapshot returns every live record together with the read time.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(s.now())
}

// Search returns live records whose callsign, flight number, departure,
// arrival or squawk contains term, ignoring case. An empty term matches all.
func (s *Store) Search(term string) []Record {
	all := s.All()
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return all
	}

	matches := make([]Record, 0, len(all))
	for _, rec := range all {
		for _, field := range []string{rec.Callsign, rec.FlightNumber, rec.Departure, rec.Arrival, rec.Squawk} {
			if strings.Contains(strings.ToLower(field), term) {
				matches = append(matches, rec)
				break
			}
		}
	}
	return matches
}

// Len returns the number of records physically held, stale ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Sweep deletes stale records and returns how many were removed.
// It does not notify subscribers; see Publish.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, rec := range s.records {
		if s.isStale(rec, now) {
			delete(s.records, key)
			removed++
		}
	}
	metrics.TrackedAircraft.Set(float64(len(s.records)))
	if removed > 0 {
		s.seq++
		metrics.SweepEvictions.Add(float64(removed))
	}
	return removed
}

// Publish sends the current snapshot to subscribers without a write.
func (s *Store) Publish() {
	s.mu.Lock()
	snap := s.snapshotLocked(s.now())
	s.issued++
	ticket := s.issued
	s.mu.Unlock()

	s.deliver(ticket, snap)
}

// deliver waits for every earlier ticket to be notified, then notifies snap.
func (s *Store) deliver(ticket uint64, snap Snapshot) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	for s.delivered+1 != ticket {
		s.notifyCond.Wait()
	}
	defer func() {
		s.delivered = ticket
		s.notifyCond.Broadcast()
	}()

	s.notify(snap)
}

func (s *Store) isStale(rec Record, now time.Time) bool {
	return now.Sub(rec.LastSeen) > s.staleAfter
}

func (s *Store) snapshotLocked(now time.Time) Snapshot {
	aircraft := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		if s.isStale(rec, now) {
			continue
		}
		aircraft = append(aircraft, rec.Clone())
	}
	sort.Slice(aircraft, func(i, j int) bool { return aircraft[i].ID < aircraft[j].ID })
	snap := NewSnapshot(aircraft, now)
	snap.Seq = s.seq
	return snap
}

// notify must be called with notifyMu held.
func (s *Store) notify(snap Snapshot) {
	err := s.registry.Notify(snap)
	if err == nil {
		return
	}

	failures := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		failures = joined.Unwrap()
	}
	for _, f := range failures {
		metrics.NotifyFailures.Inc()
		var cbErr *subscription.CallbackError
		if errors.As(f, &cbErr) {
			s.log.Warn().
				Uint64("subscriber", cbErr.SubscriberID).
				Err(cbErr.Err).
				Msg("subscriber failed")
			continue
		}
		s.log.Warn().Err(f).Msg("subscriber failed")
	}
}
