package outlook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/hekate/calendar-sync/internal/models"
	calendarPkg "github.com/hekate/calendar-sync/pkg/calendar"
	"github.com/hekate/calendar-sync/pkg/privacy"
	"github.com/hekate/calendar-sync/pkg/retry"
)

const (
	// ProviderType identifies Outlook in configuration
	ProviderType = "outlook"

	// GraphBaseURL is the Microsoft Graph v1.0 endpoint
	GraphBaseURL = "https://graph.microsoft.com/v1.0"
)

// Client talks to one Outlook calendar through Microsoft Graph
type Client struct {
	name       string
	baseURL    string
	calendarID string
	http       *http.Client
	converter  *Converter
	retryer    *retry.Retryer
	logger     *slog.Logger
}

// NewClient creates a Graph client. An empty calendarID means the user's
// default calendar; httpClient must already carry authorization.
func NewClient(name string, httpClient *http.Client, baseURL, calendarID string, settings *privacy.Settings, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = GraphBaseURL
	}
	logger = logger.With("provider", ProviderType, "name", name)

	return &Client{
		name:       name,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		calendarID: calendarID,
		http:       httpClient,
		converter:  NewConverter(settings, logger),
		retryer:    retry.NewRetryer(nil, logger),
		logger:     logger,
	}
}

// NewTarget builds an Outlook target from configuration
func NewTarget(spec calendarPkg.TargetSpec, logger *slog.Logger) (calendarPkg.Target, error) {
	httpClient, err := authorizedClient(spec.Credentials, spec.Token, spec.TenantID, logger)
	if err != nil {
		return nil, err
	}
	return NewClient(spec.Name, httpClient, "", spec.CalendarID, spec.Privacy, logger), nil
}

// NewSource builds an Outlook source from configuration
func NewSource(spec calendarPkg.SourceSpec, logger *slog.Logger) (calendarPkg.Source, error) {
	httpClient, err := authorizedClient(spec.Credentials, spec.Token, spec.TenantID, logger)
	if err != nil {
		return nil, err
	}
	calendarID := ""
	if len(spec.CalendarIDs) > 0 {
		calendarID = spec.CalendarIDs[0]
	}
	return NewClient(spec.Name, httpClient, "", calendarID, nil, logger), nil
}

// Name returns the configured name of the client
func (c *Client) Name() string {
	return c.name
}

// Type returns the provider type identifier
func (c *Client) Type() string {
	return ProviderType
}

func (c *Client) calendarPath() string {
	if c.calendarID == "" {
		return "/me/calendar"
	}
	return "/me/calendars/" + url.PathEscape(c.calendarID)
}

// Push creates or updates the event. An update whose event no longer
// exists falls back to a create.
func (c *Client) Push(ctx context.Context, event *models.CalendarEvent, externalID string) (*calendarPkg.PushOutcome, error) {
	result := c.converter.ToOutlookEvent(event)
	if result.Filtered() {
		return &calendarPkg.PushOutcome{Action: calendarPkg.PushFiltered, Warnings: result.Warnings}, nil
	}
	if !result.Success {
		return nil, fmt.Errorf("failed to convert event %s: %s", event.ID, result.Error)
	}

	item := result.Data
	item.ID = ""

	if externalID != "" {
		var updated Event
		path := c.calendarPath() + "/events/" + url.PathEscape(externalID)
		err := c.do(ctx, http.MethodPatch, path, item, &updated)
		if err == nil {
			return &calendarPkg.PushOutcome{
				Action:     calendarPkg.PushUpdated,
				ExternalID: externalID,
				Warnings:   result.Warnings,
			}, nil
		}
		if !isNotFound(err) {
			return nil, fmt.Errorf("failed to update event %s: %w", externalID, err)
		}
		c.logger.Info("Previously synced event is gone, recreating",
			"event_id", event.ID,
			"external_id", externalID)
	}

	var created Event
	if err := c.do(ctx, http.MethodPost, c.calendarPath()+"/events", item, &created); err != nil {
		return nil, fmt.Errorf("failed to create event %s: %w", event.ID, err)
	}

	return &calendarPkg.PushOutcome{
		Action:     calendarPkg.PushCreated,
		ExternalID: created.ID,
		Warnings:   result.Warnings,
	}, nil
}

// ListEvents returns series masters and single events starting in the window
func (c *Client) ListEvents(ctx context.Context, from, to time.Time) ([]*Event, error) {
	params := url.Values{}
	params.Set("$filter", fmt.Sprintf("start/dateTime ge '%s' and start/dateTime lt '%s'",
		from.UTC().Format(outlookTimeFormat), to.UTC().Format(outlookTimeFormat)))
	params.Set("$orderby", "start/dateTime")
	params.Set("$top", "100")

	next := c.calendarPath() + "/events?" + params.Encode()
	var events []*Event
	for next != "" {
		var page listResponse[*Event]
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}
		events = append(events, page.Value...)
		next = page.NextLink
	}
	return events, nil
}

// GetEvents lists and converts events; unconvertible ones are skipped
func (c *Client) GetEvents(ctx context.Context, from, to time.Time) ([]*models.CalendarEvent, error) {
	items, err := c.ListEvents(ctx, from, to)
	if err != nil {
		return nil, err
	}

	events := make([]*models.CalendarEvent, 0, len(items))
	for _, item := range items {
		result := c.converter.FromOutlookEvent(item)
		if !result.Success {
			c.logger.Warn("Skipping event that could not be converted",
				"event_id", item.ID,
				"error", result.Error)
			continue
		}
		result.Data.CalendarID = c.calendarID
		events = append(events, result.Data)
	}
	return events, nil
}

// ListCalendars returns the user's calendars
func (c *Client) ListCalendars(ctx context.Context) ([]*calendarPkg.Calendar, error) {
	var calendars []*calendarPkg.Calendar
	next := "/me/calendars"
	for next != "" {
		var page listResponse[calendarEntry]
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("unable to retrieve calendar list: %w", err)
		}
		for _, entry := range page.Value {
			role := calendarPkg.AccessReader
			if entry.CanEdit {
				role = calendarPkg.AccessWriter
			}
			calendars = append(calendars, &calendarPkg.Calendar{
				ID:         entry.ID,
				Name:       entry.Name,
				Primary:    entry.IsDefaultCalendar,
				AccessRole: role,
			})
		}
		next = page.NextLink
	}
	return calendars, nil
}

// IsHealthy checks that the configured calendar is reachable
func (c *Client) IsHealthy(ctx context.Context) error {
	var entry calendarEntry
	if err := c.do(ctx, http.MethodGet, c.calendarPath(), nil, &entry); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// do sends a Graph request with retries. target may be a relative path or
// an absolute nextLink.
func (c *Client) do(ctx context.Context, method, target string, body, out interface{}) error {
	endpoint := target
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		endpoint = c.baseURL + target
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	return c.retryer.Do(ctx, func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Prefer", `outlook.timezone="UTC"`)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return retry.NewHTTPError(resp.StatusCode, strings.TrimSpace(string(detail)), endpoint)
		}

		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}

func isNotFound(err error) bool {
	var httpErr *retry.HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}
