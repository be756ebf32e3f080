package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/gameplayfx/internal/config"
	"github.com/udisondev/gameplayfx/internal/data"
	"github.com/udisondev/gameplayfx/internal/db"
	"github.com/udisondev/gameplayfx/internal/sim"
)

const ConfigPath = "config/fxsim.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := flag.String("config", ConfigPath, "path to the simulation config")
	flag.Parse()

	cfg, err := config.LoadSim(*cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	catalog, err := data.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("loading effect catalog: %w", err)
	}
	tables, err := data.LoadAttributeTables(cfg.AttributesPath)
	if err != nil {
		return fmt.Errorf("loading attribute tables: %w", err)
	}
	scenario, err := data.LoadScenario(cfg.ScenarioPath)
	if err != nil {
		return fmt.Errorf("loading scenario: %w", err)
	}
	slog.Info("data loaded",
		"effects", catalog.Len(),
		"scenario", scenario.Name,
		"actors", len(scenario.Actors),
		"steps", len(scenario.Steps))

	world, err := sim.NewWorld(sim.Options{
		Catalog:      catalog,
		Attributes:   tables,
		Scenario:     scenario,
		TickInterval: cfg.TickInterval,
		LatencyTicks: cfg.LatencyTicks,
		Seed:         cfg.Seed,
	})
	if err != nil {
		return fmt.Errorf("creating world: %w", err)
	}

	var store sim.Store
	if cfg.Persist {
		database, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()
		slog.Info("database connected")

		if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")

		store = db.NewStatePersistenceService(database.Pool())
		if err := world.Restore(ctx, store); err != nil {
			return fmt.Errorf("restoring actors: %w", err)
		}
	}

	runner := sim.NewRunner(world, cfg.Realtime, cfg.RunFor)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stopProgress := context.WithCancel(gctx)
	defer stopProgress()

	g.Go(func() error {
		defer stopProgress()
		if err := runner.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("simulation: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return nil
			case <-ticker.C:
				st := world.Stats()
				slog.Info("simulation progress", "ticks", world.Ticks(), "steps", st.Steps, "applied", st.Applied)
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}

	st := world.Stats()
	slog.Info("simulation summary",
		"sim_time", world.Now(),
		"ticks", world.Ticks(),
		"steps", st.Steps,
		"applied", st.Applied,
		"refused", st.Refused,
		"failed", st.Failed,
		"predicted", st.Predicted,
		"confirmed", st.Confirmed,
		"rejected", st.Rejected,
		"server_cues", st.CuesServer,
		"client_cues", st.CuesClients)
	for _, r := range world.Report() {
		slog.Info("actor", "id", r.ID, "attributes", r.Attributes, "effects", r.Effects)
	}

	if store != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := world.Save(saveCtx, store); err != nil {
			return fmt.Errorf("saving actors: %w", err)
		}
		slog.Info("actor state saved", "actors", len(world.Actors()))
	}
	return nil
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
