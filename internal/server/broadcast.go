package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/unklstewy/atc-radar/internal/metrics"
	"github.com/unklstewy/atc-radar/pkg/position"
)

// outbox holds the snapshots a connection has not written yet. A full
// outbox drops its oldest entry, since every snapshot supersedes the ones
// before it. Snapshots older than the last one offered are ignored.
type outbox struct {
	mu      sync.Mutex
	pending []position.Snapshot
	size    int
	lastSeq uint64
	ready   chan struct{}
	dropped func()
}

func newOutbox(size int, dropped func()) *outbox {
	if size < 1 {
		size = 1
	}
	return &outbox{
		size:    size,
		ready:   make(chan struct{}, 1),
		dropped: dropped,
	}
}

// offer queues snap without blocking. It is safe to call from store
// callbacks.
func (o *outbox) offer(snap position.Snapshot) error {
	o.mu.Lock()
	if snap.Seq != 0 && snap.Seq <= o.lastSeq {
		o.mu.Unlock()
		return nil
	}
	if snap.Seq != 0 {
		o.lastSeq = snap.Seq
	}
	if len(o.pending) == o.size {
		o.pending = o.pending[1:]
		if o.dropped != nil {
			o.dropped()
		}
	}
	o.pending = append(o.pending, snap)
	o.mu.Unlock()

	select {
	case o.ready <- struct{}{}:
	default:
	}
	return nil
}

// drain returns and clears the pending snapshots in arrival order.
func (o *outbox) drain() []position.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.pending
	o.pending = nil
	return out
}

// handleStream serves the live feed as server-sent events. Each event
// carries one snapshot; comment lines keep idle connections open.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.streams.Err() != nil {
		respondError(w, http.StatusServiceUnavailable, "Server shutting down")
		return
	}
	ctx, cancel := s.streamContext(r)
	defer cancel()

	rc := http.NewResponseController(w)
	log := s.log.With().
		Str("conn_id", uuid.NewString()[:8]).
		Str("transport", "sse").
		Str("remote", r.RemoteAddr).
		Logger()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// The stream outlives any server write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Debug().Err(err).Msg("write deadline not adjustable")
	}

	w.WriteHeader(http.StatusOK)

	metrics.ActiveStreams.WithLabelValues("sse").Inc()
	defer metrics.ActiveStreams.WithLabelValues("sse").Dec()

	log.Info().Msg("stream opened")
	defer log.Info().Msg("stream closed")

	send := func(snap position.Snapshot) error {
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		if err := rc.Flush(); err != nil {
			return err
		}
		metrics.SnapshotsSent.WithLabelValues("sse").Inc()
		return nil
	}

	initial := s.store.Snapshot()
	if err := send(initial); err != nil {
		log.Debug().Err(err).Msg("initial snapshot write failed")
		return
	}

	box, unsubscribe := s.attach(log, "sse", initial)
	defer unsubscribe()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-box.ready:
			for _, snap := range box.drain() {
				if err := send(snap); err != nil {
					log.Debug().Err(err).Msg("stream write failed")
					return
				}
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				log.Debug().Err(err).Msg("heartbeat write failed")
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// attach subscribes a fresh outbox to the store once initial has been
// delivered. A write landing between the initial read and the subscription
// is caught by re-reading the store; the outbox discards anything at or
// below the revision it has already seen. The returned func unsubscribes.
func (s *Server) attach(log zerolog.Logger, transport string, initial position.Snapshot) (*outbox, func()) {
	box := newOutbox(s.buffer, func() {
		metrics.SnapshotsDropped.WithLabelValues(transport).Inc()
	})
	box.lastSeq = initial.Seq

	sub := s.store.Subscribe(box.offer)

	if latest := s.store.Snapshot(); latest.Seq > initial.Seq {
		_ = box.offer(latest)
	}

	log.Debug().
		Uint64("subscription", sub.ID()).
		Int("aircraft", initial.Count).
		Msg("subscribed")

	return box, sub.Unsubscribe
}
