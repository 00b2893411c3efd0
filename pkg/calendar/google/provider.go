package google

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/hekate/calendar-sync/internal/models"
	calendarPkg "github.com/hekate/calendar-sync/pkg/calendar"
	"github.com/hekate/calendar-sync/pkg/privacy"
	"github.com/hekate/calendar-sync/pkg/retry"
)

const (
	// ProviderType identifies Google Calendar in configuration
	ProviderType = "google"

	primaryCalendar = "primary"
)

// Provider reads from and writes to Google Calendar
type Provider struct {
	name        string
	api         EventsAPI
	calendarIDs []string
	converter   *Converter
	retryer     *retry.Retryer
	logger      *slog.Logger
}

// NewProvider creates a provider over an existing API. calendarIDs are read
// when used as a source; the first one is written to when used as a target.
func NewProvider(name string, api EventsAPI, calendarIDs []string, settings *privacy.Settings, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	if len(calendarIDs) == 0 {
		calendarIDs = []string{primaryCalendar}
	}
	logger = logger.With("provider", ProviderType, "name", name)

	return &Provider{
		name:        name,
		api:         api,
		calendarIDs: calendarIDs,
		converter:   NewConverter(settings, logger),
		retryer:     retry.NewRetryer(nil, logger),
		logger:      logger,
	}
}

// NewSource builds a Google source from configuration
func NewSource(spec calendarPkg.SourceSpec, logger *slog.Logger) (calendarPkg.Source, error) {
	api, err := newAuthorizedAPI(spec.Credentials, spec.Token, logger)
	if err != nil {
		return nil, err
	}
	return NewProvider(spec.Name, api, spec.CalendarIDs, nil, logger), nil
}

// NewTarget builds a Google target from configuration
func NewTarget(spec calendarPkg.TargetSpec, logger *slog.Logger) (calendarPkg.Target, error) {
	api, err := newAuthorizedAPI(spec.Credentials, spec.Token, logger)
	if err != nil {
		return nil, err
	}
	var calendarIDs []string
	if spec.CalendarID != "" {
		calendarIDs = []string{spec.CalendarID}
	}
	return NewProvider(spec.Name, api, calendarIDs, spec.Privacy, logger), nil
}

func newAuthorizedAPI(credentialsPath, tokenPath string, logger *slog.Logger) (EventsAPI, error) {
	if credentialsPath == "" || tokenPath == "" {
		return nil, fmt.Errorf("google provider requires credentials and token paths")
	}

	ctx := context.Background()
	tokenManager, err := NewTokenManager(credentialsPath, tokenPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create token manager: %w", err)
	}

	client, err := tokenManager.GetClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client: %w", err)
	}

	api, err := NewServiceAPI(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}
	return api, nil
}

// Name returns the configured name of the provider
func (p *Provider) Name() string {
	return p.name
}

// Type returns the provider type identifier
func (p *Provider) Type() string {
	return ProviderType
}

// GetEvents retrieves master events from every configured calendar
func (p *Provider) GetEvents(ctx context.Context, from, to time.Time) ([]*models.CalendarEvent, error) {
	var allEvents []*models.CalendarEvent

	for _, calendarID := range p.calendarIDs {
		items, err := retry.DoWithResult(ctx, p.retryer, func() ([]*calendar.Event, error) {
			return p.api.ListEvents(ctx, calendarID, from, to)
		})
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve events for calendar %s: %w", calendarID, err)
		}

		for _, item := range items {
			result := p.converter.FromGoogleEvent(item)
			if !result.Success {
				p.logger.Warn("Skipping event that could not be converted",
					"calendar_id", calendarID,
					"event_id", item.Id,
					"error", result.Error)
				continue
			}
			result.Data.CalendarID = calendarID
			allEvents = append(allEvents, result.Data)
		}
	}

	return allEvents, nil
}

// Push writes the event to the target calendar. An update whose event no
// longer exists falls back to an insert.
func (p *Provider) Push(ctx context.Context, event *models.CalendarEvent, externalID string) (*calendarPkg.PushOutcome, error) {
	result := p.converter.ToGoogleEvent(event)
	if result.Filtered() {
		return &calendarPkg.PushOutcome{Action: calendarPkg.PushFiltered, Warnings: result.Warnings}, nil
	}
	if !result.Success {
		return nil, fmt.Errorf("failed to convert event %s: %s", event.ID, result.Error)
	}

	item := result.Data
	calendarID := p.calendarIDs[0]

	if externalID != "" {
		updated, err := retry.DoWithResult(ctx, p.retryer, func() (*calendar.Event, error) {
			return p.api.UpdateEvent(ctx, calendarID, externalID, item)
		})
		if err == nil {
			return &calendarPkg.PushOutcome{
				Action:     calendarPkg.PushUpdated,
				ExternalID: updated.Id,
				Warnings:   result.Warnings,
			}, nil
		}
		if !isNotFound(err) {
			return nil, fmt.Errorf("failed to update event %s: %w", externalID, err)
		}
		p.logger.Info("Previously synced event is gone, recreating",
			"event_id", event.ID,
			"external_id", externalID)
	}

	item.Id = ""
	created, err := retry.DoWithResult(ctx, p.retryer, func() (*calendar.Event, error) {
		return p.api.InsertEvent(ctx, calendarID, item)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert event %s: %w", event.ID, err)
	}

	return &calendarPkg.PushOutcome{
		Action:     calendarPkg.PushCreated,
		ExternalID: created.Id,
		Warnings:   result.Warnings,
	}, nil
}

// ListCalendars returns the calendars visible to the authenticated user
func (p *Provider) ListCalendars(ctx context.Context) ([]*calendarPkg.Calendar, error) {
	entries, err := p.api.ListCalendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendar list: %w", err)
	}

	calendars := make([]*calendarPkg.Calendar, 0, len(entries))
	for _, item := range entries {
		calendars = append(calendars, &calendarPkg.Calendar{
			ID:          item.Id,
			Name:        item.Summary,
			Description: item.Description,
			TimeZone:    item.TimeZone,
			Primary:     item.Primary,
			AccessRole:  item.AccessRole,
		})
	}
	return calendars, nil
}

// IsHealthy performs a health check on the Google Calendar connection
func (p *Provider) IsHealthy(ctx context.Context) error {
	if _, err := p.api.ListCalendars(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Close releases nothing; the HTTP client is owned by the oauth2 transport
func (p *Provider) Close() error {
	return nil
}
