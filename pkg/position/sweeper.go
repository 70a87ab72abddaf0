package position

import (
	"context"
	"time"
)

// Sweeper periodically removes stale records from a Store. It satisfies
// suture.Service.
type Sweeper struct {
	store  *Store
	period time.Duration

	// NotifyOnEvict publishes a snapshot after a sweep that removed records,
	// so idle viewers see vanished aircraft disappear without waiting for the
	// next report.
	NotifyOnEvict bool
}

// NewSweeper creates a sweeper that runs every period.
func NewSweeper(store *Store, period time.Duration) *Sweeper {
	return &Sweeper{store: store, period: period}
}

// Serve sweeps until ctx is cancelled.
func (w *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.RunOnce()
		}
	}
}

// RunOnce performs a single sweep and returns the number of evicted records.
func (w *Sweeper) RunOnce() int {
	removed := w.store.Sweep()
	if removed == 0 {
		return 0
	}

	w.store.log.Info().
		Int("evicted", removed).
		Int("remaining", w.store.Len()).
		Msg("stale aircraft swept")

	if w.NotifyOnEvict {
		w.store.Publish()
	}
	return removed
}

func (w *Sweeper) String() string {
	return "position-sweeper"
}
