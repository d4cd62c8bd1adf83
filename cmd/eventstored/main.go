// Command eventstored boots the Persistent Store, Event Store, and
// Orchestrator and keeps them running until signaled to stop. It
// exposes no transport of its own (RPC/HTTP is a separately specified,
// out-of-scope subsystem); a real deployment would embed the
// Orchestrator behind one. This entry point exists to demonstrate the
// wiring such a transport would sit behind, the way the teacher's
// cmd/opencode-server boots its own Service before installing an HTTP
// router on top of it.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evttree/eventstore/internal/config"
	"github.com/evttree/eventstore/internal/event"
	"github.com/evttree/eventstore/internal/eventstore"
	"github.com/evttree/eventstore/internal/logging"
	"github.com/evttree/eventstore/internal/orchestrator"
	"github.com/evttree/eventstore/internal/store"
)

func main() {
	var (
		dbPath        = flag.String("db", "", "sqlite database path (overrides config)")
		directory     = flag.String("dir", ".", "working directory used to discover project config")
		logPretty     = flag.Bool("pretty", false, "enable human-readable console logging")
		logToFile     = flag.Bool("log-file", false, "also log to a timestamped file")
		sweepSchedule = flag.String("sweep-schedule", orchestrator.DefaultSweepSchedule, "cron schedule for the idle-session sweep")
	)
	flag.Parse()

	logging.Init(logging.Config{
		Level:     logging.InfoLevel,
		Pretty:    *logPretty,
		LogToFile: *logToFile,
	})

	cfg, err := config.Load(*directory)
	if err != nil {
		logging.Component("eventstored").Fatal().Err(err).Msg("load config")
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, store.Config{Path: cfg.DatabasePath, EnableFTS: cfg.EnableFTS})
	if err != nil {
		logging.Component("eventstored").Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("open persistent store")
	}
	defer db.Close()

	bus := event.New()
	defer bus.Close()

	es := eventstore.New(db)
	orch := orchestrator.New(es, bus)

	threshold := cfg.IdleThreshold
	if threshold <= 0 {
		threshold = orchestrator.DefaultIdleThreshold
	}
	schedule := *sweepSchedule
	if cfg.IdleSweepInterval > 0 && schedule == orchestrator.DefaultSweepSchedule {
		schedule = "@every " + cfg.IdleSweepInterval.String()
	}
	sweeper := orchestrator.NewSweeper(orch, threshold)
	if err := sweeper.Start(schedule); err != nil {
		logging.Component("eventstored").Fatal().Err(err).Msg("start idle sweep")
	}
	defer sweeper.Stop()

	logging.Component("eventstored").Info().
		Str("db", cfg.DatabasePath).
		Bool("fts", cfg.EnableFTS).
		Dur("idle_threshold", threshold).
		Msg("eventstored ready")

	<-ctx.Done()
	logging.Component("eventstored").Info().Msg("eventstored: shutdown signal received, draining")

	// GetSessionState flushes an active session's pending append chain
	// before reading, so looping it over every active session drains
	// all in-flight linearization chains before the process exits.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, id := range orch.ActiveSessionIDs() {
		if _, err := orch.GetSessionState(shutdownCtx, id); err != nil {
			logging.Component("eventstored").Warn().Str("session_id", id).Err(err).Msg("flush on shutdown")
		}
	}
}
