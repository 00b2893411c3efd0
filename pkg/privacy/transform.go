package privacy

import (
	"time"

	"github.com/hekate/calendar-sync/internal/models"
)

// Transform returns a copy of the event with the field policy, anonymize
// rules and hour rounding applied. The input event is never modified.
//
// Transform is idempotent: feeding its output back in yields the same event.
func Transform(event *models.CalendarEvent, settings *Settings) *models.CalendarEvent {
	out := event.Clone()

	anonymizePrivate := settings.AnonymizePrivateEvents && event.Visibility == models.VisibilityPrivate

	for _, field := range []string{FieldTitle, FieldDescription, FieldLocation, FieldAttendees} {
		fs, _ := settings.FieldSettings.Get(field)
		switch {
		case !fs.Sync:
			clearField(out, field)
		case fs.Anonymize || anonymizePrivate:
			anonymizeField(out, field, fs)
		}
	}

	// Rules see the already transformed event
	for _, rule := range settings.AdvancedRules {
		if rule.Action != ActionAnonymize {
			continue
		}
		if ruleMatches(out, rule) {
			fs, _ := settings.FieldSettings.Get(rule.Field)
			anonymizeField(out, rule.Field, fs)
		}
	}

	if settings.TimeSettings.RoundToHour && out.HasStart() {
		start, end := roundToHour(out.StartTime, out.EndTime)
		out.SetTimes(start, end)
	}

	return out
}

func clearField(event *models.CalendarEvent, field string) {
	switch field {
	case FieldTitle:
		event.Title = ""
	case FieldDescription:
		event.Description = ""
	case FieldLocation:
		event.Location = ""
	case FieldAttendees:
		event.Attendees = nil
	}
}

func anonymizeField(event *models.CalendarEvent, field string, fs FieldSetting) {
	switch field {
	case FieldTitle:
		if fs.Placeholder != "" {
			event.Title = fs.Placeholder
		} else {
			event.Title = DefaultTitlePlaceholder
		}
	case FieldDescription:
		event.Description = fs.Placeholder
	case FieldLocation:
		event.Location = fs.Placeholder
	case FieldAttendees:
		// a placeholder is not a valid attendee address
		event.Attendees = nil
	}
}

// roundToHour truncates both instants to the hour in their own location.
// When that collapses the interval the end moves one hour past the start.
func roundToHour(start, end time.Time) (time.Time, time.Time) {
	start = truncateHour(start)
	if end.IsZero() {
		return start, end
	}
	end = truncateHour(end)
	if !end.After(start) {
		end = start.Add(time.Hour)
	}
	return start, end
}

func truncateHour(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}
