// ATC Radar Server
// Accepts aircraft position reports and broadcasts the live picture to viewers.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/unklstewy/atc-radar/internal/auth"
	"github.com/unklstewy/atc-radar/internal/db"
	"github.com/unklstewy/atc-radar/internal/logging"
	"github.com/unklstewy/atc-radar/internal/server"
	"github.com/unklstewy/atc-radar/internal/supervisor"
	"github.com/unklstewy/atc-radar/pkg/config"
	"github.com/unklstewy/atc-radar/pkg/position"
	"github.com/unklstewy/atc-radar/pkg/viewers"
)

var (
	configPath = flag.String("config", "", "Path to YAML configuration file (default: $RADAR_CONFIG)")
	envFile    = flag.String("env", ".env", "Optional dotenv file loaded before configuration")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		logging.Warn().Err(err).Str("file", *envFile).Msg("failed to load env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log := logging.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := position.NewStore(cfg.Tracking.StaleAfter())
	tracker := viewers.NewTracker(cfg.Viewers.TTL)

	srvCfg := server.Config{
		Store:             store,
		Viewers:           tracker,
		HeartbeatInterval: cfg.Broadcast.HeartbeatInterval,
		Buffer:            cfg.Broadcast.Buffer,
		RateLimit:         cfg.Ingest.RateLimit,
		RateWindow:        cfg.Ingest.RateWindow,
		TrustProxy:        cfg.Server.TrustProxy,
	}

	if cfg.Auth.JWTSecret != "" {
		srvCfg.Auth = auth.NewService(auth.Config{JWTSecret: cfg.Auth.JWTSecret})
	}

	if cfg.Database.Enabled {
		database, err := db.ReconnectWithRetry(ctx, cfg.Database, 5, time.Second)
		if err != nil {
			// Capabilities fall back to FREE; positions never touch the database.
			log.Error().Err(err).Msg("database unavailable, role lookup disabled")
		} else {
			defer database.Close()
			if err := database.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("schema initialization failed")
			}
			srvCfg.Roles = db.NewGuardedRoles(db.NewUserRepository(database.DB), db.BreakerConfig{})
			srvCfg.DatabaseCheck = func(ctx context.Context) bool { return db.HealthCheck(ctx, database) }
		}
	}

	srv := server.New(srvCfg)
	httpServer := srv.HTTPServer(cfg.Server.Addr())

	sweeper := position.NewSweeper(store, cfg.Tracking.SweepEvery())
	sweeper.NotifyOnEvict = cfg.Tracking.NotifyOnEvict

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddTrackingService(sweeper)
	tree.AddTrackingService(tracker)
	tree.AddTrackingService(supervisor.NewStatsJob(store, tracker, ""))
	tree.AddAPIService(supervisor.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))

	log.Info().
		Str("addr", httpServer.Addr).
		Dur("stale_after", store.StaleAfter()).
		Dur("sweep_every", cfg.Tracking.SweepEvery()).
		Bool("roles", srvCfg.Roles != nil).
		Msg("radar server starting")

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("supervisor stopped")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		log.Warn().Int("services", len(report)).Msg("services did not stop in time")
	}

	log.Info().Msg("radar server stopped")
}
