// Reporter
// Flies synthetic aircraft and posts their positions to a radar server on a
// fixed cadence, standing in for the in-game producers.
package main

import (
	"context"
	"flag"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/unklstewy/atc-radar/internal/logging"
	"github.com/unklstewy/atc-radar/pkg/coordinates"
	"github.com/unklstewy/atc-radar/pkg/reporter"
)

var (
	serverURL = flag.String("server", "http://localhost:8080", "Radar server base URL")
	count     = flag.Int("n", 10, "Number of aircraft")
	lat       = flag.Float64("lat", 40.6413, "Centre latitude")
	lon       = flag.Float64("lon", -73.7781, "Centre longitude")
	radius    = flag.Float64("radius", 40, "Traffic radius in nautical miles")
	interval  = flag.Duration("interval", 5*time.Second, "Report interval per aircraft")
	player    = flag.String("player", "", "Sub-identifier sent as playerId")
	rps       = flag.Float64("rps", reporter.DefaultRequestsPerSecond, "Maximum reports per second")
	logLevel  = flag.String("log-level", "info", "Log level")
)

func main() {
	flag.Parse()

	logging.Init(logging.Config{Level: *logLevel, Format: "console"})
	log := logging.Component("reporter")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := reporter.NewClient(reporter.Config{
		URL:               strings.TrimRight(*serverURL, "/") + "/api/atc/position",
		RequestsPerSecond: *rps,
	})

	center := coordinates.Geographic{Latitude: *lat, Longitude: *lon}
	seed := uint64(time.Now().UnixNano())
	fleet := reporter.NewFleet(center, *radius, *count, rand.New(rand.NewPCG(seed, seed>>1)), time.Now())

	log.Info().
		Int("aircraft", len(fleet)).
		Dur("interval", *interval).
		Str("server", *serverURL).
		Msg("reporter starting")

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		now := time.Now()
		dt := now.Sub(last)
		last = now

		sent, failed := 0, 0
		for _, f := range fleet {
			f.Step(dt)
			if err := client.Send(ctx, f.Report(*player)); err != nil {
				if ctx.Err() != nil {
					log.Info().Msg("reporter stopped")
					return
				}
				failed++
				log.Warn().Err(err).Str("callsign", f.Callsign).Msg("report failed")
				continue
			}
			sent++
		}
		log.Debug().Int("sent", sent).Int("failed", failed).Msg("reports posted")

		select {
		case <-ctx.Done():
			log.Info().Msg("reporter stopped")
			return
		case <-ticker.C:
		}
	}
}
