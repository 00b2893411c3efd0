package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hekate/calendar-sync/internal/models"
	"github.com/hekate/calendar-sync/pkg/calendar"
	"github.com/hekate/calendar-sync/pkg/privacy"
	"github.com/hekate/calendar-sync/pkg/retry"
)

// maxReportedErrors bounds the error strings kept per target in a report
const maxReportedErrors = 20

// EventSource defines the interface for reading coordinated events
type EventSource interface {
	GetAllEvents(ctx context.Context, from, to time.Time) (*calendar.FetchResult, error)
	Close() error
}

// Config holds the syncer configuration
type Config struct {
	// Privacy supplies the time window events are fetched for
	Privacy        *privacy.Settings
	DryRun         bool
	CircuitBreaker *retry.CircuitBreakerConfig
}

// DefaultConfig returns a default syncer configuration
func DefaultConfig() *Config {
	return &Config{
		Privacy:        privacy.DefaultSettings(),
		CircuitBreaker: retry.DefaultCircuitBreakerConfig(),
	}
}

// Syncer pushes events from the sources to every target
type Syncer struct {
	config    *Config
	source    EventSource
	targets   []calendar.Target
	breakers  map[string]*retry.CircuitBreaker
	state     *State
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
	newRunID  func() string

	mu    sync.Mutex
	stats Stats
}

// Stats summarizes the runs performed so far
type Stats struct {
	Runs       int
	FailedRuns int
	LastRun    time.Time
	LastReport *models.SyncReport
}

// NewSyncer creates a new syncer. A nil state keeps external IDs in
// memory and a nil publisher logs reports.
func NewSyncer(config *Config, source EventSource, targets []calendar.Target, state *State, publisher Publisher, logger *slog.Logger) *Syncer {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Privacy == nil {
		config.Privacy = privacy.DefaultSettings()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if state == nil {
		state = NewState("")
	}
	if publisher == nil {
		publisher = NewLogPublisher(logger)
	}

	breakers := make(map[string]*retry.CircuitBreaker, len(targets))
	for _, target := range targets {
		breakers[target.Name()] = retry.NewCircuitBreaker(target.Name(), config.CircuitBreaker, logger)
	}

	return &Syncer{
		config:    config,
		source:    source,
		targets:   targets,
		breakers:  breakers,
		state:     state,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		newRunID:  func() string { return uuid.New().String() },
	}
}

// Window returns the fetch range derived from the privacy time settings
func Window(settings *privacy.Settings, now time.Time) (time.Time, time.Time) {
	duration := settings.TimeSettings.SyncDuration
	return now.AddDate(0, 0, -duration.Past), now.AddDate(0, 0, duration.Future)
}

// RunOnce performs one sync run: fetch, push to every target, save the
// state and publish the report. Push failures are counted in the report;
// only a failed fetch returns an error.
func (s *Syncer) RunOnce(ctx context.Context) (*models.SyncReport, error) {
	now := s.now()
	report := &models.SyncReport{
		RunID:     s.newRunID(),
		StartedAt: now,
		DryRun:    s.config.DryRun,
	}
	logger := s.logger.With("run_id", report.RunID)

	from, to := Window(s.config.Privacy, now)
	logger.Info("Starting sync run",
		"from", from.Format(time.RFC3339),
		"to", to.Format(time.RFC3339),
		"targets", len(s.targets),
		"dry_run", s.config.DryRun)

	fetched, err := s.source.GetAllEvents(ctx, from, to)
	if err != nil {
		s.recordRun(report, false)
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	report.Fetched = fetched.RawCount
	report.Deduplicated = len(fetched.Events)

	// Entries are created up front so each goroutine only touches its own
	reports := make([]*models.TargetReport, len(s.targets))
	for i, target := range s.targets {
		reports[i] = report.Target(target.Name(), target.Type())
	}

	var g errgroup.Group
	for i, target := range s.targets {
		i, target := i, target
		g.Go(func() error {
			s.syncTarget(ctx, logger, target, fetched.Events, reports[i])
			return nil
		})
	}
	_ = g.Wait()

	if !s.config.DryRun {
		if err := s.state.Save(); err != nil {
			logger.Error("Failed to save sync state", "error", err)
		}
	}

	report.FinishedAt = s.now()
	if err := s.publisher.PublishReport(ctx, report); err != nil {
		logger.Error("Failed to publish sync report", "error", err)
	}

	logger.Info("Sync run finished",
		"fetched", report.Fetched,
		"deduplicated", report.Deduplicated,
		"failed", report.Failed(),
		"duration", report.Duration())

	s.recordRun(report, true)
	return report, nil
}

func (s *Syncer) syncTarget(ctx context.Context, logger *slog.Logger, target calendar.Target, events []*models.CalendarEvent, tr *models.TargetReport) {
	logger = logger.With("target", target.Name(), "target_type", target.Type())
	breaker := s.breakers[target.Name()]

	for _, event := range events {
		if ctx.Err() != nil {
			tr.Failed++
			addError(tr, ctx.Err())
			continue
		}

		key := EventKey(event)
		externalID := s.state.Get(target.Name(), key)

		if s.config.DryRun {
			if externalID == "" {
				tr.Created++
			} else {
				tr.Updated++
			}
			logger.Info("[DRY RUN] Would push event",
				"event_key", key,
				"title", event.Title,
				"start", event.StartTime,
				"external_id", externalID)
			continue
		}

		var outcome *calendar.PushOutcome
		err := breaker.Execute(func() error {
			var err error
			outcome, err = target.Push(ctx, event, externalID)
			return err
		})
		if err != nil {
			tr.Failed++
			addError(tr, fmt.Errorf("%s: %w", key, err))
			if errors.Is(err, retry.ErrCircuitOpen) {
				logger.Debug("Circuit open, event not pushed", "event_key", key)
			} else {
				logger.Error("Failed to push event", "event_key", key, "error", err)
			}
			continue
		}

		for _, warning := range outcome.Warnings {
			logger.Warn("Push warning", "event_key", key, "warning", warning)
		}

		switch outcome.Action {
		case calendar.PushCreated:
			tr.Created++
		case calendar.PushUpdated:
			tr.Updated++
		case calendar.PushFiltered:
			tr.Filtered++
			continue
		}
		if outcome.ExternalID != "" {
			s.state.Set(target.Name(), key, outcome.ExternalID)
		}
	}

	logger.Debug("Target sync complete",
		"created", tr.Created,
		"updated", tr.Updated,
		"filtered", tr.Filtered,
		"failed", tr.Failed)
}

func addError(tr *models.TargetReport, err error) {
	if len(tr.Errors) < maxReportedErrors {
		tr.Errors = append(tr.Errors, err.Error())
	}
}

func (s *Syncer) recordRun(report *models.SyncReport, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Runs++
	s.stats.LastRun = report.StartedAt
	if !ok {
		s.stats.FailedRuns++
		return
	}
	s.stats.LastReport = report
}

// GetStats returns statistics about the runs so far
func (s *Syncer) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close closes the source, the targets and the publisher
func (s *Syncer) Close() error {
	var errs []error
	if err := s.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("source: %w", err))
	}
	for _, target := range s.targets {
		if err := target.Close(); err != nil {
			errs = append(errs, fmt.Errorf("target %s: %w", target.Name(), err))
		}
	}
	if err := s.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("publisher: %w", err))
	}
	return errors.Join(errs...)
}
