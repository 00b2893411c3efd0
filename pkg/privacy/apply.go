package privacy

import (
	"time"

	"github.com/hekate/calendar-sync/internal/models"
)

// Apply runs the filter and, when the event is allowed, the transformer.
// With nil or disabled settings the event passes through as a copy.
// The returned event is nil when the filter rejects it.
func Apply(event *models.CalendarEvent, settings *Settings, now time.Time) (*models.CalendarEvent, FilterResult) {
	if settings == nil || !settings.Enabled {
		return event.Clone(), FilterResult{Allowed: true}
	}

	result := Filter(event, settings, now)
	if !result.Allowed {
		return nil, result
	}

	return Transform(event, settings), result
}
