package scheduler

import (
	"context"
	"log/slog"

	"github.com/hekate/calendar-sync/internal/models"
)

// Publisher defines the interface for sync report publishing
type Publisher interface {
	PublishReport(ctx context.Context, report *models.SyncReport) error
	Close() error
}

// LogPublisher writes reports to the log instead of a message bus
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher that logs each report
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// PublishReport logs the report summary and one line per target
func (p *LogPublisher) PublishReport(ctx context.Context, report *models.SyncReport) error {
	p.logger.Info("Sync report",
		"run_id", report.RunID,
		"dry_run", report.DryRun,
		"fetched", report.Fetched,
		"deduplicated", report.Deduplicated,
		"failed", report.Failed(),
		"duration", report.Duration())

	for _, t := range report.Targets {
		p.logger.Info("Sync report target",
			"run_id", report.RunID,
			"target", t.Target,
			"type", t.Type,
			"created", t.Created,
			"updated", t.Updated,
			"filtered", t.Filtered,
			"failed", t.Failed)
	}
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
