package google

import (
	"context"
	"errors"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hekate/calendar-sync/pkg/retry"
)

// EventsAPI is the subset of the Google Calendar API the provider uses
type EventsAPI interface {
	ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]*calendar.Event, error)
	InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error)
	ListCalendars(ctx context.Context) ([]*calendar.CalendarListEntry, error)
}

type serviceAPI struct {
	service *calendar.Service
}

// NewServiceAPI wraps a Calendar service built with the given client options
func NewServiceAPI(ctx context.Context, opts ...option.ClientOption) (EventsAPI, error) {
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &serviceAPI{service: service}, nil
}

// ListEvents returns master events rather than expanded instances so the
// recurrence rule travels with the event.
func (s *serviceAPI) ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]*calendar.Event, error) {
	var items []*calendar.Event
	err := s.service.Events.List(calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(false).
		ShowDeleted(false).
		Pages(ctx, func(page *calendar.Events) error {
			items = append(items, page.Items...)
			return nil
		})
	return items, classify(err)
}

func (s *serviceAPI) InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	created, err := s.service.Events.Insert(calendarID, event).Context(ctx).Do()
	return created, classify(err)
}

func (s *serviceAPI) UpdateEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error) {
	updated, err := s.service.Events.Update(calendarID, eventID, event).Context(ctx).Do()
	return updated, classify(err)
}

func (s *serviceAPI) ListCalendars(ctx context.Context) ([]*calendar.CalendarListEntry, error) {
	var entries []*calendar.CalendarListEntry
	err := s.service.CalendarList.List().Pages(ctx, func(page *calendar.CalendarList) error {
		entries = append(entries, page.Items...)
		return nil
	})
	return entries, classify(err)
}

// classify keeps the googleapi error and adds an HTTPError so the retryer
// can judge it by status code.
func classify(err error) error {
	var ae *googleapi.Error
	if errors.As(err, &ae) {
		return &apiError{
			err:  ae,
			http: retry.NewHTTPError(ae.Code, http.StatusText(ae.Code), ""),
		}
	}
	return err
}

type apiError struct {
	err  *googleapi.Error
	http *retry.HTTPError
}

func (e *apiError) Error() string { return e.err.Error() }

func (e *apiError) Unwrap() []error { return []error{e.err, e.http} }

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var ae *googleapi.Error
	ok := errors.As(err, &ae)
	return ok && (ae.Code == http.StatusNotFound || ae.Code == http.StatusGone)
}
