package supervisor

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/unklstewy/atc-radar/internal/logging"
	"github.com/unklstewy/atc-radar/internal/metrics"
	"github.com/unklstewy/atc-radar/pkg/position"
	"github.com/unklstewy/atc-radar/pkg/viewers"
)

// DefaultStatsSchedule logs a summary every minute.
const DefaultStatsSchedule = "@every 1m"

// StatsJob periodically logs a summary of tracked aircraft, open streams
// and viewers, and refreshes the matching gauges.
type StatsJob struct {
	store    *position.Store
	viewers  *viewers.Tracker
	schedule string
	log      zerolog.Logger
}

// NewStatsJob creates a stats job on a cron schedule. An empty schedule
// means DefaultStatsSchedule; viewers may be nil.
func NewStatsJob(store *position.Store, tracker *viewers.Tracker, schedule string) *StatsJob {
	if schedule == "" {
		schedule = DefaultStatsSchedule
	}
	return &StatsJob{
		store:    store,
		viewers:  tracker,
		schedule: schedule,
		log:      logging.Component("stats"),
	}
}

// Serve implements suture.Service.
func (j *StatsJob) Serve(ctx context.Context) error {
	jobs := cron.New()
	if _, err := jobs.AddFunc(j.schedule, j.RunOnce); err != nil {
		// A bad schedule will not fix itself on restart.
		return fmt.Errorf("stats schedule %q: %w: %w", j.schedule, err, suture.ErrDoNotRestart)
	}

	jobs.Start()
	<-ctx.Done()
	<-jobs.Stop().Done()
	return ctx.Err()
}

// RunOnce logs one summary.
func (j *StatsJob) RunOnce() {
	aircraft := len(j.store.All())
	metrics.TrackedAircraft.Set(float64(aircraft))

	event := j.log.Info().
		Int("aircraft", aircraft).
		Int("streams", j.store.Subscribers())

	if j.viewers != nil {
		stats := j.viewers.Stats()
		metrics.ActiveViewers.Set(float64(stats.Active))
		event = event.Int("viewers", stats.Active)
	}

	event.Msg("radar stats")
}

func (j *StatsJob) String() string {
	return "stats-job"
}
