package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/hekate/calendar-sync/pkg/calendar"
	"github.com/hekate/calendar-sync/pkg/calendar/providers"
	"github.com/hekate/calendar-sync/pkg/config"
	"github.com/hekate/calendar-sync/pkg/nats"
	"github.com/hekate/calendar-sync/pkg/privacy"
	"github.com/hekate/calendar-sync/pkg/scheduler"
)

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run the sync on the configured schedule, or once",
		Flags: []cli.Flag{
			configFlag(),
			debugFlag(),
			&cli.BoolFlag{Name: "once", Usage: "Run a single sync and exit"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be pushed without writing to any target"},
		},
		Action: func(c *cli.Context) error {
			configPath := c.String("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			logger := setupLogger(cfg.Logging, c.Bool("debug"))
			slog.SetDefault(logger)
			logger.Info("Starting calendar sync",
				"version", Version,
				"commit", GitCommit,
				"build_time", BuildTime,
				"config_path", configPath,
				"dry_run", c.Bool("dry-run"))

			app, err := NewApp(cfg, providers.NewFactory(), c.Bool("dry-run"), logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer func() {
				if err := app.Close(); err != nil {
					logger.Error("Error during shutdown", "error", err)
				}
			}()

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if c.Bool("once") {
				return app.RunOnce(ctx)
			}
			return app.Serve(ctx)
		},
	}
}

// App holds the main application components
type App struct {
	config *config.Config
	logger *slog.Logger
	syncer *scheduler.Syncer
	runner *scheduler.Runner
}

// NewApp builds the sources, targets, publisher and scheduler from configuration
func NewApp(cfg *config.Config, factory *calendar.Factory, dryRun bool, logger *slog.Logger) (*App, error) {
	manager := calendar.NewManager(cfg.Coordinator, logger)
	var targets []calendar.Target

	cleanup := func() {
		manager.Close()
		for _, target := range targets {
			target.Close()
		}
	}

	for _, src := range cfg.Sources {
		source, err := factory.CreateSource(src.Type, src.Spec(), logger)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to create %s source %s: %w", src.Type, src.Name, err)
		}
		manager.AddSource(source)

		logger.Info("Configured calendar source", "name", src.Name, "type", src.Type)
	}

	for _, tgt := range cfg.Targets {
		target, err := factory.CreateTarget(tgt.Type, tgt.Spec(), logger)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to create %s target %s: %w", tgt.Type, tgt.Name, err)
		}
		targets = append(targets, target)

		logger.Info("Configured calendar target",
			"name", tgt.Name,
			"type", tgt.Type,
			"calendar_id", tgt.CalendarID)
	}

	state, err := scheduler.LoadState(cfg.StateFile)
	if err != nil {
		cleanup()
		return nil, err
	}

	var publisher scheduler.Publisher
	switch {
	case dryRun:
		logger.Info("Running in dry-run mode - nothing will be written to targets")
		publisher = scheduler.NewLogPublisher(logger)
	case cfg.NATS.Enabled:
		natsPublisher, err := nats.NewPublisher(&cfg.NATS.Config, logger)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
		}
		publisher = natsPublisher
	default:
		publisher = scheduler.NewLogPublisher(logger)
	}

	syncer := scheduler.NewSyncer(&scheduler.Config{
		Privacy:        fetchWindow(cfg),
		DryRun:         dryRun,
		CircuitBreaker: cfg.CircuitBreaker,
	}, manager, targets, state, publisher, logger)

	runner, err := scheduler.NewRunner(cfg.Schedule, func(ctx context.Context) error {
		_, err := syncer.RunOnce(ctx)
		return err
	}, logger)
	if err != nil {
		syncer.Close()
		return nil, err
	}

	return &App{
		config: cfg,
		logger: logger,
		syncer: syncer,
		runner: runner,
	}, nil
}

// fetchWindow widens the global time window to cover every target's
// override, so each target's own filter sees all events it may accept.
func fetchWindow(cfg *config.Config) *privacy.Settings {
	settings := *cfg.Privacy
	for _, tgt := range cfg.Targets {
		duration := tgt.PrivacySettings().TimeSettings.SyncDuration
		if duration.Past > settings.TimeSettings.SyncDuration.Past {
			settings.TimeSettings.SyncDuration.Past = duration.Past
		}
		if duration.Future > settings.TimeSettings.SyncDuration.Future {
			settings.TimeSettings.SyncDuration.Future = duration.Future
		}
	}
	return &settings
}

// RunOnce performs a single sync and fails if any push failed
func (a *App) RunOnce(ctx context.Context) error {
	report, err := a.syncer.RunOnce(ctx)
	if err != nil {
		return err
	}
	if failed := report.Failed(); failed > 0 {
		return fmt.Errorf("%d event pushes failed", failed)
	}
	return nil
}

// Serve runs the scheduler until the context is cancelled
func (a *App) Serve(ctx context.Context) error {
	if err := a.runner.Start(ctx, true); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	a.logger.Info("Calendar sync started",
		"schedule", a.config.Schedule,
		"next_run", a.runner.Next())

	<-ctx.Done()
	a.logger.Info("Received shutdown signal")

	a.runner.Stop()
	a.logger.Info("Calendar sync stopped gracefully")
	return nil
}

// Close releases sources, targets and the publisher
func (a *App) Close() error {
	return a.syncer.Close()
}
