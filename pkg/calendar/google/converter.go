package google

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/hekate/calendar-sync/internal/models"
	calendarPkg "github.com/hekate/calendar-sync/pkg/calendar"
	"github.com/hekate/calendar-sync/pkg/privacy"
)

const (
	dateLayout   = "2006-01-02"
	untitled     = "Sem título"
	rrulePrefix  = "RRULE:"
	methodEmail  = "email"
	methodPopup  = "popup"
	defaultLeadM = 10
)

// Converter maps internal events to and from Google Calendar events
type Converter struct {
	settings *privacy.Settings
	logger   *slog.Logger
	now      func() time.Time
}

// NewConverter creates a converter applying the given privacy settings on outbound events
func NewConverter(settings *privacy.Settings, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// ToGoogleEvent filters, anonymizes and maps an internal event to a Google event
func (c *Converter) ToGoogleEvent(event *models.CalendarEvent) calendarPkg.Result[*calendar.Event] {
	return calendarPkg.Guard(func() calendarPkg.Result[*calendar.Event] {
		if event == nil {
			return calendarPkg.Fail[*calendar.Event]("event is nil")
		}
		prepared, filter := privacy.Apply(event, c.settings, c.now())
		if !filter.Allowed {
			c.logger.Debug("event filtered out by privacy settings",
				"event_id", event.ID,
				"reason", filter.Reason)
			result := calendarPkg.Fail[*calendar.Event]("%s", calendarPkg.ErrFilteredOut)
			result.Warnings = filter.Warnings
			return result
		}

		item, warnings, err := toGoogle(prepared)
		if err != nil {
			return calendarPkg.Fail[*calendar.Event]("%v", err)
		}
		warnings = append(filter.Warnings, warnings...)
		for _, w := range warnings {
			c.logger.Warn("google mapping warning", "event_id", event.ID, "warning", w)
		}
		return calendarPkg.OK(item, warnings...)
	})
}

func toGoogle(event *models.CalendarEvent) (*calendar.Event, []string, error) {
	if !event.HasStart() {
		return nil, nil, fmt.Errorf("event %q has no start time", event.ID)
	}

	var warnings []string
	tz := event.EffectiveTimezone()
	loc, err := time.LoadLocation(tz)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("unknown timezone %q, using UTC", tz))
		tz = "UTC"
		loc = time.UTC
	}

	end := event.EndTime
	if end.IsZero() {
		end = event.StartTime
	}

	item := &calendar.Event{
		Id:          event.ExternalID,
		Summary:     event.Title,
		Description: event.Description,
		Location:    event.Location,
		Status:      calendarPkg.MapStatusToGoogle(event.Status),
		Visibility:  string(visibilityOrDefault(event.Visibility)),
	}

	if event.IsAllDay() {
		startDate, endDate := event.StartDate, event.EndDate
		if startDate.IsZero() {
			startDate = event.StartTime
		}
		if endDate.IsZero() {
			endDate = end
		}
		// Dates are calendar days in their own zone; converting would shift them
		startDate = civilDate(startDate)
		endDate = civilDate(endDate)
		if !endDate.After(startDate) {
			endDate = startDate.AddDate(0, 0, 1)
		}
		item.Start = &calendar.EventDateTime{Date: startDate.Format(dateLayout), TimeZone: tz}
		item.End = &calendar.EventDateTime{Date: endDate.Format(dateLayout), TimeZone: tz}
	} else {
		item.Start = &calendar.EventDateTime{DateTime: event.StartTime.In(loc).Format(time.RFC3339), TimeZone: tz}
		item.End = &calendar.EventDateTime{DateTime: end.In(loc).Format(time.RFC3339), TimeZone: tz}
	}

	for _, attendee := range event.Attendees {
		item.Attendees = append(item.Attendees, &calendar.EventAttendee{Email: attendee})
	}

	if event.RecurrenceRule != "" {
		rule := event.RecurrenceRule
		if !strings.HasPrefix(strings.ToUpper(rule), rrulePrefix) {
			rule = rrulePrefix + rule
		}
		item.Recurrence = []string{rule}
	}

	if len(event.Reminders) > 0 {
		reminders := &calendar.EventReminders{
			UseDefault:      false,
			ForceSendFields: []string{"UseDefault"},
		}
		for _, reminder := range event.Reminders {
			reminders.Overrides = append(reminders.Overrides, convertReminder(reminder))
		}
		item.Reminders = reminders
	}

	return item, warnings, nil
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// convertReminder maps an internal reminder to a Google override.
// Minutes are floored; anything that is not an email becomes a popup.
func convertReminder(reminder models.Reminder) *calendar.EventReminder {
	method := methodPopup
	if reminder.Type == models.ReminderEmail {
		method = methodEmail
	}
	return &calendar.EventReminder{
		Method:          method,
		Minutes:         int64(math.Floor(reminder.Minutes)),
		ForceSendFields: []string{"Minutes"},
	}
}

func visibilityOrDefault(v models.Visibility) models.Visibility {
	switch v {
	case models.VisibilityPublic, models.VisibilityPrivate, models.VisibilityConfidential:
		return v
	default:
		return models.VisibilityDefault
	}
}

// FromGoogleEvent maps a Google event back to an internal event.
// Inbound events are trusted, so no privacy policy is applied.
func (c *Converter) FromGoogleEvent(item *calendar.Event) calendarPkg.Result[*models.CalendarEvent] {
	return calendarPkg.Guard(func() calendarPkg.Result[*models.CalendarEvent] {
		if item == nil {
			return calendarPkg.Fail[*models.CalendarEvent]("google event is nil")
		}

		start, allDay, err := parseEventTime(item.Start)
		if err != nil {
			return calendarPkg.Fail[*models.CalendarEvent]("failed to parse start time: %v", err)
		}

		var warnings []string
		end, _, err := parseEventTime(item.End)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("end time unusable (%v), using start time", err))
			end = start
		}

		title := item.Summary
		if title == "" {
			title = untitled
		}

		eventType := models.EventTypeTimed
		if allDay {
			eventType = models.EventTypeAllDay
		}

		event := &models.CalendarEvent{
			ID:          item.Id,
			ExternalID:  item.Id,
			Title:       title,
			Description: item.Description,
			Location:    item.Location,
			Status:      calendarPkg.MapStatusFromGoogle(item.Status),
			Visibility:  visibilityOrDefault(models.Visibility(item.Visibility)),
			Type:        eventType,
			Reminders:   c.convertReminders(item),
		}
		if item.Start != nil {
			event.Timezone = item.Start.TimeZone
		}
		event.SetTimes(start, end)

		for _, attendee := range item.Attendees {
			if attendee != nil && attendee.Email != "" {
				event.Attendees = append(event.Attendees, attendee.Email)
			}
		}

		for _, line := range item.Recurrence {
			if strings.HasPrefix(strings.ToUpper(line), rrulePrefix) {
				event.RecurrenceRule = line[len(rrulePrefix):]
				break
			}
		}

		return calendarPkg.OK(event, warnings...)
	})
}

// parseEventTime parses Google Calendar event time (handles both dateTime and date fields).
// The second return value is true for date-only (all-day) values.
func parseEventTime(eventTime *calendar.EventDateTime) (time.Time, bool, error) {
	if eventTime == nil {
		return time.Time{}, false, fmt.Errorf("event time is nil")
	}

	loc := time.UTC
	if eventTime.TimeZone != "" {
		if l, err := time.LoadLocation(eventTime.TimeZone); err == nil {
			loc = l
		}
	}

	if eventTime.DateTime != "" {
		t, err := time.Parse(time.RFC3339, eventTime.DateTime)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("failed to parse datetime: %w", err)
		}
		return t.In(loc), false, nil
	}

	if eventTime.Date != "" {
		t, err := time.ParseInLocation(dateLayout, eventTime.Date, loc)
		if err != nil {
			return time.Time{}, true, fmt.Errorf("failed to parse date: %w", err)
		}
		return t, true, nil
	}

	return time.Time{}, false, fmt.Errorf("no datetime or date field found")
}

// convertReminders converts Google Calendar reminders to internal reminders
func (c *Converter) convertReminders(item *calendar.Event) []models.Reminder {
	if item.Reminders == nil {
		return nil
	}

	if item.Reminders.UseDefault {
		// The calendar default is not part of the event; Google's usual default is 10 minutes
		c.logger.Debug("event uses default reminders", "event_id", item.Id)
		return []models.Reminder{{Type: models.ReminderPush, Minutes: defaultLeadM, Method: methodPopup}}
	}

	var reminders []models.Reminder
	for _, override := range item.Reminders.Overrides {
		if override == nil {
			continue
		}
		reminderType := models.ReminderPush
		if override.Method == methodEmail {
			reminderType = models.ReminderEmail
		}
		reminders = append(reminders, models.Reminder{
			Type:    reminderType,
			Minutes: float64(override.Minutes),
			Method:  override.Method,
		})
	}
	return reminders
}
