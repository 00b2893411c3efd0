package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hekate/calendar-sync/internal/models"
)

// Source defines the interface for calendars events are read from
type Source interface {
	// Name returns the configured name of the source
	Name() string

	// Type returns the source type identifier (e.g., "ical", "google")
	Type() string

	// GetEvents retrieves events overlapping the time range
	GetEvents(ctx context.Context, from, to time.Time) ([]*models.CalendarEvent, error)

	// IsHealthy performs a health check on the source
	IsHealthy(ctx context.Context) error

	// Close cleans up any resources used by the source
	Close() error
}

// PushAction describes what a target did with a pushed event
type PushAction string

const (
	PushCreated  PushAction = "created"
	PushUpdated  PushAction = "updated"
	PushFiltered PushAction = "filtered"
)

// PushOutcome is returned by a target after pushing one event
type PushOutcome struct {
	Action     PushAction
	ExternalID string
	Warnings   []string
}

// Target defines the interface for calendars events are written to
type Target interface {
	// Name returns the configured name of the target
	Name() string

	// Type returns the target type identifier (e.g., "google", "outlook")
	Type() string

	// Push runs the event through the privacy policy and writes it.
	// externalID is the provider-side ID from a previous push, or empty.
	Push(ctx context.Context, event *models.CalendarEvent, externalID string) (*PushOutcome, error)

	// Close cleans up any resources used by the target
	Close() error
}

// Manager coordinates multiple calendar sources
type Manager struct {
	sources     map[string]Source
	order       []string
	coordinator *EventCoordinator
	logger      *slog.Logger
}

// NewManager creates a new calendar manager
func NewManager(coordinatorConfig *CoordinatorConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		sources:     make(map[string]Source),
		coordinator: NewEventCoordinator(coordinatorConfig, logger),
		logger:      logger,
	}
}

// AddSource adds a calendar source to the manager
func (m *Manager) AddSource(source Source) {
	if _, exists := m.sources[source.Name()]; !exists {
		m.order = append(m.order, source.Name())
	}
	m.sources[source.Name()] = source
}

// GetSource retrieves a calendar source by name
func (m *Manager) GetSource(name string) (Source, bool) {
	source, exists := m.sources[name]
	return source, exists
}

// FetchResult holds coordinated events and the raw count before deduplication
type FetchResult struct {
	Events   []*models.CalendarEvent
	RawCount int
}

// GetAllEvents retrieves events from all sources within the time range and
// coordinates them. A failing source is logged and skipped so one broken
// feed does not stop the others from syncing.
func (m *Manager) GetAllEvents(ctx context.Context, from, to time.Time) (*FetchResult, error) {
	var allEvents []*models.CalendarEvent
	failed := 0

	m.logger.Debug("Fetching events from all sources",
		"source_count", len(m.sources),
		"from", from.Format(time.RFC3339),
		"to", to.Format(time.RFC3339))

	for _, name := range m.order {
		source := m.sources[name]

		events, err := source.GetEvents(ctx, from, to)
		if err != nil {
			m.logger.Error("Failed to get events from source",
				"source_name", name,
				"source_type", source.Type(),
				"error", err)
			failed++
			continue
		}

		for _, event := range events {
			event.Source = name
		}

		m.logger.Debug("Fetched events from source",
			"source_name", name,
			"source_type", source.Type(),
			"event_count", len(events))

		allEvents = append(allEvents, events...)
	}

	if len(m.sources) > 0 && failed == len(m.sources) {
		return nil, fmt.Errorf("all %d sources failed", failed)
	}

	coordinated, err := m.coordinator.CoordinateEvents(allEvents)
	if err != nil {
		return nil, fmt.Errorf("failed to coordinate events: %w", err)
	}

	m.logger.Info("Event coordination completed",
		"raw_events", len(allEvents),
		"coordinated_events", len(coordinated),
		"duplicates_removed", len(allEvents)-len(coordinated))

	return &FetchResult{Events: coordinated, RawCount: len(allEvents)}, nil
}

// Close closes all sources
func (m *Manager) Close() error {
	var firstErr error
	for _, name := range m.order {
		if err := m.sources[name].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// HealthCheck performs health checks on all sources
func (m *Manager) HealthCheck(ctx context.Context) map[string]error {
	results := make(map[string]error)
	for name, source := range m.sources {
		results[name] = source.IsHealthy(ctx)
	}
	return results
}

// GetSourceList returns the configured source names in insertion order
func (m *Manager) GetSourceList() []string {
	return append([]string(nil), m.order...)
}
