package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"github.com/hekate/calendar-sync/internal/models"
	calendarPkg "github.com/hekate/calendar-sync/pkg/calendar"
	"github.com/hekate/calendar-sync/pkg/privacy"
	"github.com/hekate/calendar-sync/pkg/retry"
)

// ProviderType identifies CalDAV servers in configuration
const ProviderType = "caldav"

const userAgent = "calendar-sync/1.0"

// Client is the subset of the CalDAV client the provider relies on
type Client interface {
	FindCurrentUserPrincipal(ctx context.Context) (string, error)
	FindCalendarHomeSet(ctx context.Context, principal string) (string, error)
	FindCalendars(ctx context.Context, calendarHomeSet string) ([]caldav.Calendar, error)
	QueryCalendar(ctx context.Context, calendar string, query *caldav.CalendarQuery) ([]caldav.CalendarObject, error)
	PutCalendarObject(ctx context.Context, path string, cal *ical.Calendar) (*caldav.CalendarObject, error)
}

// basicAuthTransport adds Basic Auth and the user agent to each request
type basicAuthTransport struct {
	username  string
	password  string
	transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.username != "" {
		req.SetBasicAuth(t.username, t.password)
	}
	req.Header.Set("User-Agent", userAgent)
	return t.transport.RoundTrip(req)
}

// Provider reads from and writes to one CalDAV calendar collection
type Provider struct {
	name     string
	client   Client
	calendar string // display name or collection path, as configured
	settings *privacy.Settings
	retryer  *retry.Retryer
	logger   *slog.Logger
	now      func() time.Time
	newUID   func() string

	mu       sync.Mutex
	resolved string
}

// NewProvider creates a provider over an existing client.
// calendar is a collection path (starting with "/") or a calendar display name.
func NewProvider(name string, client Client, calendar string, settings *privacy.Settings, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("provider", ProviderType, "name", name)

	return &Provider{
		name:     name,
		client:   client,
		calendar: calendar,
		settings: settings,
		retryer:  retry.NewRetryer(nil, logger),
		logger:   logger,
		now:      time.Now,
		newUID:   func() string { return uuid.New().String() },
	}
}

// NewHTTPClient creates a go-webdav CalDAV client authenticating with Basic Auth
func NewHTTPClient(endpoint, username, password string) (*caldav.Client, error) {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &basicAuthTransport{
			username:  username,
			password:  password,
			transport: http.DefaultTransport,
		},
	}

	client, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	return client, nil
}

// NewSource builds a CalDAV source from configuration
func NewSource(spec calendarPkg.SourceSpec, logger *slog.Logger) (calendarPkg.Source, error) {
	calendar := ""
	if len(spec.CalendarIDs) > 0 {
		calendar = spec.CalendarIDs[0]
	}
	return newFromConfig(spec.Name, spec.URL, spec.Username, spec.Password, calendar, nil, logger)
}

// NewTarget builds a CalDAV target from configuration
func NewTarget(spec calendarPkg.TargetSpec, logger *slog.Logger) (calendarPkg.Target, error) {
	return newFromConfig(spec.Name, spec.URL, spec.Username, spec.Password, spec.CalendarID, spec.Privacy, logger)
}

func newFromConfig(name, endpoint, username, password, calendar string, settings *privacy.Settings, logger *slog.Logger) (*Provider, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("CalDAV URL is required")
	}
	if username == "" {
		return nil, fmt.Errorf("CalDAV username is required")
	}

	// Without a calendar name the URL must point at the collection itself
	if calendar == "" {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid CalDAV URL: %w", err)
		}
		calendar = u.Path
		if calendar == "" || calendar == "/" {
			return nil, fmt.Errorf("CalDAV URL must name a collection when no calendar is configured")
		}
	}

	client, err := NewHTTPClient(endpoint, username, password)
	if err != nil {
		return nil, err
	}
	return NewProvider(name, client, calendar, settings, logger), nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return p.name
}

// Type returns the provider type identifier
func (p *Provider) Type() string {
	return ProviderType
}

// collection resolves and caches the collection path
func (p *Provider) collection(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.resolved != "" {
		return p.resolved, nil
	}

	if strings.HasPrefix(p.calendar, "/") {
		p.resolved = ensureTrailingSlash(p.calendar)
		return p.resolved, nil
	}

	p.logger.Info("Finding CalDAV calendar", "calendar", p.calendar)
	calendars, err := p.findCalendars(ctx)
	if err != nil {
		return "", err
	}
	for _, cal := range calendars {
		if cal.Name == p.calendar || path.Base(strings.TrimSuffix(cal.Path, "/")) == p.calendar {
			p.resolved = ensureTrailingSlash(cal.Path)
			p.logger.Info("Found CalDAV calendar", "path", p.resolved)
			return p.resolved, nil
		}
	}
	return "", fmt.Errorf("no calendar found with name '%s'", p.calendar)
}

func (p *Provider) findCalendars(ctx context.Context) ([]caldav.Calendar, error) {
	principal, err := p.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSet, err := p.client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := p.client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendars: %w", err)
	}
	return calendars, nil
}

// GetEvents runs a VEVENT time-range query against the collection
func (p *Provider) GetEvents(ctx context.Context, from, to time.Time) ([]*models.CalendarEvent, error) {
	collection, err := p.collection(ctx)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: from,
				End:   to,
			}},
		},
	}

	objects, err := retry.DoWithResult(ctx, p.retryer, func() ([]caldav.CalendarObject, error) {
		return p.client.QueryCalendar(ctx, collection, query)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar %s: %w", collection, err)
	}

	var events []*models.CalendarEvent
	for _, object := range objects {
		if object.Data == nil {
			continue
		}
		for _, vevent := range object.Data.Events() {
			if vevent.Props.Get(ical.PropRecurrenceID) != nil {
				continue
			}
			event, err := FromEvent(&vevent)
			if err != nil {
				p.logger.Warn("Skipping unconvertible CalDAV event",
					"path", object.Path,
					"error", err)
				continue
			}
			event.ExternalID = object.Path
			event.CalendarID = collection
			events = append(events, event)
		}
	}

	p.logger.Debug("Fetched CalDAV events",
		"collection", collection,
		"object_count", len(objects),
		"event_count", len(events))

	return events, nil
}

// Push writes the event as a calendar object. The object path is the
// external ID, so a known path is overwritten and a new one is created.
func (p *Provider) Push(ctx context.Context, event *models.CalendarEvent, externalID string) (*calendarPkg.PushOutcome, error) {
	prepared, filter := privacy.Apply(event, p.settings, p.now())
	if !filter.Allowed {
		p.logger.Debug("event filtered out by privacy settings",
			"event_id", event.ID,
			"reason", filter.Reason)
		return &calendarPkg.PushOutcome{Action: calendarPkg.PushFiltered, Warnings: filter.Warnings}, nil
	}

	collection, err := p.collection(ctx)
	if err != nil {
		return nil, err
	}

	uid := prepared.ID
	if uid == "" {
		uid = p.newUID()
	}

	cal, err := ToCalendar(prepared, uid, p.now())
	if err != nil {
		return nil, err
	}

	objectPath := externalID
	action := calendarPkg.PushUpdated
	if objectPath == "" {
		objectPath = collection + objectName(uid)
		action = calendarPkg.PushCreated
	}

	object, err := retry.DoWithResult(ctx, p.retryer, func() (*caldav.CalendarObject, error) {
		return p.client.PutCalendarObject(ctx, objectPath, cal)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to put calendar object %s: %w", objectPath, err)
	}
	if object != nil && object.Path != "" {
		objectPath = object.Path
	}

	p.logger.Debug("Pushed event to CalDAV",
		"event_id", event.ID,
		"path", objectPath,
		"action", action)

	return &calendarPkg.PushOutcome{Action: action, ExternalID: objectPath, Warnings: filter.Warnings}, nil
}

// ListCalendars lists the calendars in the user's home set
func (p *Provider) ListCalendars(ctx context.Context) ([]*calendarPkg.Calendar, error) {
	calendars, err := p.findCalendars(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*calendarPkg.Calendar, 0, len(calendars))
	for _, cal := range calendars {
		result = append(result, &calendarPkg.Calendar{
			ID:          cal.Path,
			Name:        cal.Name,
			Description: cal.Description,
			AccessRole:  calendarPkg.AccessOwner,
		})
	}
	return result, nil
}

// IsHealthy checks that the collection can be resolved
func (p *Provider) IsHealthy(ctx context.Context) error {
	if _, err := p.collection(ctx); err != nil {
		return fmt.Errorf("CalDAV health check failed: %w", err)
	}
	return nil
}

// Close cleans up resources
func (p *Provider) Close() error {
	return nil
}

// objectName builds a path-safe object name from an event UID
func objectName(uid string) string {
	return url.PathEscape(strings.ReplaceAll(uid, "/", "_")) + ".ics"
}

func ensureTrailingSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}
