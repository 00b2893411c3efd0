package calendar

import "context"

// Access roles a calendar can be shared with
const (
	AccessOwner  = "owner"
	AccessWriter = "writer"
	AccessReader = "reader"
)

// Calendar describes a calendar a provider can read from or push to
type Calendar struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TimeZone    string `json:"timezone,omitempty"`
	Primary     bool   `json:"primary,omitempty"`
	AccessRole  string `json:"access_role,omitempty"`
}

// Writable reports whether events can be pushed to the calendar
func (c *Calendar) Writable() bool {
	return c.AccessRole == AccessOwner || c.AccessRole == AccessWriter
}

// CalendarLister is implemented by providers that can enumerate calendars
type CalendarLister interface {
	ListCalendars(ctx context.Context) ([]*Calendar, error)
}
