package ical

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hekate/calendar-sync/internal/models"
	calendarPkg "github.com/hekate/calendar-sync/pkg/calendar"
	"github.com/hekate/calendar-sync/pkg/retry"
)

// ProviderType is the source type identifier for published iCal feeds
const ProviderType = "ical"

const userAgent = "calendar-sync/1.0"

// Provider reads events from a published iCal feed
type Provider struct {
	name     string
	url      string
	username string
	password string
	client   *http.Client
	logger   *slog.Logger
	retryer  *retry.Retryer
}

// RetryConfig returns the retry policy used when fetching feeds
func RetryConfig() *retry.Config {
	config := retry.DefaultConfig()
	config.InitialDelay = 2 * time.Second
	return config
}

// NewProvider creates an iCal feed provider
func NewProvider(name, url string, client *http.Client, retryConfig *retry.Config, logger *slog.Logger) (*Provider, error) {
	if url == "" {
		return nil, fmt.Errorf("iCal URL is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if retryConfig == nil {
		retryConfig = RetryConfig()
	}
	if name == "" {
		name = url
	}

	return &Provider{
		name:    name,
		url:     url,
		client:  client,
		logger:  logger,
		retryer: retry.NewRetryer(retryConfig, logger),
	}, nil
}

// NewSource builds an iCal source from configuration
func NewSource(spec calendarPkg.SourceSpec, logger *slog.Logger) (calendarPkg.Source, error) {
	p, err := NewProvider(spec.Name, spec.URL, nil, nil, logger)
	if err != nil {
		return nil, err
	}
	p.username = spec.Username
	p.password = spec.Password
	p.logger.Info("Initialized iCal provider", "name", p.name, "url", spec.URL)
	return p, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return p.name
}

// Type returns the provider type identifier
func (p *Provider) Type() string {
	return ProviderType
}

// GetEvents fetches the feed and returns the events overlapping the range
func (p *Provider) GetEvents(ctx context.Context, from, to time.Time) ([]*models.CalendarEvent, error) {
	icalData, err := p.fetchICalData(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch iCal data: %w", err)
	}

	events, err := ParseICalData(icalData, p.url, from, to, p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to parse iCal data: %w", err)
	}

	p.logger.Debug("Parsed iCal feed",
		"name", p.name,
		"event_count", len(events))

	return events, nil
}

// fetchICalData retrieves iCal data from the URL with retry logic
func (p *Provider) fetchICalData(ctx context.Context) (string, error) {
	body, err := retry.DoWithResult(ctx, p.retryer, func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Accept", "text/calendar,application/calendar")
		req.Header.Set("User-Agent", userAgent)
		if p.username != "" {
			req.SetBasicAuth(p.username, p.password)
		}

		p.logger.Debug("Fetching iCal data", "url", p.url)

		resp, err := p.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("HTTP request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			p.logger.Warn("HTTP error when fetching iCal data",
				"url", p.url,
				"status_code", resp.StatusCode,
				"status", resp.Status)
			return "", retry.NewHTTPError(resp.StatusCode, resp.Status, p.url)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read response body: %w", err)
		}

		p.logger.Debug("Successfully fetched iCal data",
			"url", p.url,
			"content_length", len(data))

		return string(data), nil
	})
	if err != nil {
		p.logger.Error("Failed to fetch iCal data after retries",
			"url", p.url,
			"error", err)
		return "", err
	}

	return body, nil
}

// ListCalendars returns the feed as a single read-only calendar
func (p *Provider) ListCalendars(ctx context.Context) ([]*calendarPkg.Calendar, error) {
	return []*calendarPkg.Calendar{{
		ID:          p.url,
		Name:        p.name,
		Description: fmt.Sprintf("Calendar from %s", p.url),
		Primary:     true,
		AccessRole:  calendarPkg.AccessReader,
	}}, nil
}

// IsHealthy performs a health check by attempting to fetch calendar data
func (p *Provider) IsHealthy(ctx context.Context) error {
	if _, err := p.fetchICalData(ctx); err != nil {
		return fmt.Errorf("iCal health check failed: %w", err)
	}
	return nil
}

// Close cleans up resources
func (p *Provider) Close() error {
	return nil
}
