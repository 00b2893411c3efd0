package ical

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	goical "github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/hekate/calendar-sync/internal/models"
)

const (
	defaultTimedDuration = time.Hour
	actionEmail          = "EMAIL"

	propertyRecurrenceID ics.ComponentProperty = "RECURRENCE-ID"
	propertyDuration     ics.ComponentProperty = "DURATION"
)

// ParseICalData parses a VCALENDAR payload and returns the events overlapping [from, to).
// Recurring events are kept when any occurrence overlaps the window.
func ParseICalData(icalData string, calendarID string, from, to time.Time, logger *slog.Logger) ([]*models.CalendarEvent, error) {
	if logger == nil {
		logger = slog.Default()
	}

	calendar, err := ics.ParseCalendar(strings.NewReader(icalData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse iCal data: %w", err)
	}

	var events []*models.CalendarEvent
	for _, vevent := range calendar.Events() {
		// Overridden instances share the master's UID; the master carries the series.
		if vevent.GetProperty(propertyRecurrenceID) != nil {
			logger.Debug("Skipping recurrence override", "uid", vevent.Id(), "calendar_id", calendarID)
			continue
		}

		event, err := ConvertVEvent(vevent, logger)
		if err != nil {
			logger.Warn("Failed to convert iCal event", "error", err, "calendar_id", calendarID)
			continue
		}
		event.CalendarID = calendarID

		if Overlaps(event, from, to) {
			events = append(events, event)
		}
	}

	return events, nil
}

// Overlaps reports whether the event, or one of its occurrences, intersects [from, to)
func Overlaps(event *models.CalendarEvent, from, to time.Time) bool {
	if event.RecurrenceRule == "" {
		return event.StartTime.Before(to) && event.EndTime.After(from)
	}

	opt, err := rrule.StrToROption(event.RecurrenceRule)
	if err != nil {
		// Unreadable rule: keep the series if it started before the window ends
		return event.StartTime.Before(to)
	}
	opt.Dtstart = event.StartTime
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return event.StartTime.Before(to)
	}

	length := event.EndTime.Sub(event.StartTime)
	return len(rule.Between(from.Add(-length), to, true)) > 0
}

// ConvertVEvent maps one VEVENT to the internal event model
func ConvertVEvent(vevent *ics.VEvent, logger *slog.Logger) (*models.CalendarEvent, error) {
	if logger == nil {
		logger = slog.Default()
	}

	uid := vevent.Id()
	if uid == "" {
		return nil, fmt.Errorf("event missing UID")
	}

	event := &models.CalendarEvent{
		ID:         uid,
		Title:      propertyValue(vevent, ics.ComponentPropertySummary),
		Visibility: models.VisibilityFromClass(propertyValue(vevent, ics.ComponentPropertyClass)),
		Type:       models.EventTypeTimed,
	}
	event.Description = propertyValue(vevent, ics.ComponentPropertyDescription)
	event.Location = propertyValue(vevent, ics.ComponentPropertyLocation)

	if status := propertyValue(vevent, ics.ComponentPropertyStatus); status != "" {
		parsed, ok := models.ParseStatus(status)
		if !ok {
			logger.Debug("Unknown event status, assuming confirmed", "uid", uid, "status", status)
		}
		event.Status = parsed
	}

	dtstart := vevent.GetProperty(ics.ComponentPropertyDtStart)
	if dtstart == nil {
		return nil, fmt.Errorf("event %q missing start time", uid)
	}
	if isDateValue(dtstart) {
		event.Type = models.EventTypeAllDay
	}
	event.Timezone = timezoneOf(dtstart)

	start, end, err := eventTimes(vevent, event.IsAllDay())
	if err != nil {
		return nil, fmt.Errorf("event %q: %w", uid, err)
	}
	event.SetTimes(start, end)

	if rule := propertyValue(vevent, ics.ComponentPropertyRrule); rule != "" {
		event.RecurrenceRule = strings.TrimPrefix(rule, "RRULE:")
	}

	for _, attendee := range vevent.GetProperties(ics.ComponentPropertyAttendee) {
		email := strings.TrimSpace(attendee.Value)
		if len(email) >= 7 && strings.EqualFold(email[:7], "mailto:") {
			email = email[7:]
		}
		if email != "" {
			event.Attendees = append(event.Attendees, email)
		}
	}

	for _, alarm := range vevent.Alarms() {
		reminder, err := ConvertVAlarm(alarm, start)
		if err != nil {
			logger.Warn("Failed to convert iCal alarm", "error", err, "uid", uid)
			continue
		}
		event.Reminders = append(event.Reminders, *reminder)
	}

	return event, nil
}

func eventTimes(vevent *ics.VEvent, allDay bool) (time.Time, time.Time, error) {
	var start time.Time
	var err error
	if allDay {
		start, err = vevent.GetAllDayStartAt()
	} else {
		start, err = vevent.GetStartAt()
	}
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to parse start time: %w", err)
	}

	var end time.Time
	if allDay {
		end, err = vevent.GetAllDayEndAt()
	} else {
		end, err = vevent.GetEndAt()
	}
	if err == nil && !end.Before(start) {
		return start, end, nil
	}

	if duration := vevent.GetProperty(propertyDuration); duration != nil {
		if d, derr := parseDuration(duration.Value); derr == nil && d >= 0 {
			return start, start.Add(d), nil
		}
	}

	if allDay {
		return start, start.AddDate(0, 0, 1), nil
	}
	return start, start.Add(defaultTimedDuration), nil
}

// ConvertVAlarm maps a VALARM to a reminder. Relative triggers give the lead
// time directly; absolute ones are measured against the event start.
func ConvertVAlarm(alarm *ics.VAlarm, start time.Time) (*models.Reminder, error) {
	reminder := &models.Reminder{Type: models.ReminderPush}

	action := strings.ToUpper(propertyValue(alarm, ics.ComponentPropertyAction))
	if action == actionEmail {
		reminder.Type = models.ReminderEmail
	}
	reminder.Method = strings.ToLower(action)

	trigger := alarm.GetProperty(ics.ComponentPropertyTrigger)
	if trigger == nil {
		return nil, fmt.Errorf("alarm has no trigger")
	}

	if isDateTimeValue(trigger) {
		at, err := time.Parse("20060102T150405Z", trigger.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to parse absolute trigger %q: %w", trigger.Value, err)
		}
		reminder.Minutes = start.Sub(at).Minutes()
	} else {
		d, err := parseDuration(trigger.Value)
		if err != nil {
			return nil, err
		}
		reminder.Minutes = -d.Minutes()
	}

	if reminder.Minutes < 0 {
		reminder.Minutes = 0
	}
	return reminder, nil
}

// parseDuration parses an RFC 5545 duration such as -PT15M or P1DT2H
func parseDuration(value string) (time.Duration, error) {
	prop := goical.NewProp(goical.PropDuration)
	prop.Value = strings.TrimSpace(value)
	d, err := prop.Duration()
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", value, err)
	}
	return d, nil
}

type propertyGetter interface {
	GetProperty(componentProperty ics.ComponentProperty) *ics.IANAProperty
}

func propertyValue(component propertyGetter, property ics.ComponentProperty) string {
	if prop := component.GetProperty(property); prop != nil {
		return prop.Value
	}
	return ""
}

func paramValue(prop *ics.IANAProperty, name string) string {
	if prop.ICalParameters == nil {
		return ""
	}
	if values := prop.ICalParameters[name]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func isDateValue(prop *ics.IANAProperty) bool {
	if strings.EqualFold(paramValue(prop, "VALUE"), "DATE") {
		return true
	}
	return !strings.Contains(prop.Value, "T")
}

func isDateTimeValue(prop *ics.IANAProperty) bool {
	return strings.EqualFold(paramValue(prop, "VALUE"), "DATE-TIME")
}

func timezoneOf(prop *ics.IANAProperty) string {
	if tz := paramValue(prop, "TZID"); tz != "" {
		return tz
	}
	if strings.HasSuffix(prop.Value, "Z") {
		return "UTC"
	}
	return ""
}
