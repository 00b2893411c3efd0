package caldav

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/hekate/calendar-sync/internal/models"
)

const (
	productID = "-//hekate//calendar-sync//EN"

	actionDisplay = "DISPLAY"
	actionEmail   = "EMAIL"
)

// ToCalendar wraps an event in a VCALENDAR ready for PutCalendarObject
func ToCalendar(event *models.CalendarEvent, uid string, now time.Time) (*ical.Calendar, error) {
	if !event.HasStart() {
		return nil, fmt.Errorf("event %q has no start time", event.ID)
	}

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, uid)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	vevent.Props.SetText(ical.PropSummary, event.Title)
	vevent.Props.SetText(ical.PropStatus, event.Status.String())

	if event.IsAllDay() {
		start, end := event.StartDate, event.EndDate
		if start.IsZero() {
			start = event.StartTime
		}
		if !end.After(start) {
			end = start.AddDate(0, 0, 1)
		}
		vevent.Props.SetDate(ical.PropDateTimeStart, start)
		vevent.Props.SetDate(ical.PropDateTimeEnd, end)
	} else {
		end := event.EndTime
		if end.Before(event.StartTime) {
			end = event.StartTime
		}
		vevent.Props.SetDateTime(ical.PropDateTimeStart, event.StartTime.UTC())
		vevent.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
	}

	if event.Description != "" {
		vevent.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		vevent.Props.SetText(ical.PropLocation, event.Location)
	}
	if class := event.Visibility.Class(); class != "" {
		vevent.Props.SetText(ical.PropClass, class)
	}
	if event.RecurrenceRule != "" {
		// RRULE is a structured value; SetText would escape its separators
		rule := ical.NewProp(ical.PropRecurrenceRule)
		rule.Value = strings.TrimPrefix(event.RecurrenceRule, "RRULE:")
		vevent.Props.Set(rule)
	}
	for _, attendee := range event.Attendees {
		prop := ical.NewProp(ical.PropAttendee)
		prop.Value = "mailto:" + attendee
		vevent.Props.Add(prop)
	}
	for _, reminder := range event.Reminders {
		vevent.Children = append(vevent.Children, toAlarm(reminder, event.Title))
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, vevent.Component)
	return cal, nil
}

func toAlarm(reminder models.Reminder, title string) *ical.Component {
	alarm := ical.NewComponent(ical.CompAlarm)
	action := actionDisplay
	if reminder.Type == models.ReminderEmail {
		action = actionEmail
		alarm.Props.SetText(ical.PropSummary, title)
	}
	alarm.Props.SetText(ical.PropAction, action)
	alarm.Props.SetText(ical.PropDescription, title)

	trigger := ical.NewProp(ical.PropTrigger)
	trigger.Value = fmt.Sprintf("-PT%dM", int64(math.Floor(reminder.Minutes)))
	alarm.Props.Set(trigger)
	return alarm
}

// FromEvent maps a VEVENT read from a CalDAV collection to the internal model
func FromEvent(vevent *ical.Event) (*models.CalendarEvent, error) {
	uid, err := vevent.Props.Text(ical.PropUID)
	if err != nil || uid == "" {
		return nil, fmt.Errorf("event missing UID")
	}

	dtstart := vevent.Props.Get(ical.PropDateTimeStart)
	if dtstart == nil {
		return nil, fmt.Errorf("event %q missing start time", uid)
	}

	event := &models.CalendarEvent{
		ID:   uid,
		Type: models.EventTypeTimed,
	}
	if dtstart.ValueType() == ical.ValueDate {
		event.Type = models.EventTypeAllDay
	}
	event.Timezone = dtstart.Params.Get(ical.ParamTimezoneID)
	if event.Timezone == "" && strings.HasSuffix(dtstart.Value, "Z") {
		event.Timezone = "UTC"
	}

	start, err := vevent.DateTimeStart(time.UTC)
	if err != nil {
		return nil, fmt.Errorf("event %q: failed to parse start time: %w", uid, err)
	}
	end, err := vevent.DateTimeEnd(time.UTC)
	if err != nil || end.Before(start) {
		end = start
	}
	event.SetTimes(start, end)

	event.Title = textProp(vevent.Props, ical.PropSummary)
	event.Description = textProp(vevent.Props, ical.PropDescription)
	event.Location = textProp(vevent.Props, ical.PropLocation)
	event.Visibility = models.VisibilityFromClass(textProp(vevent.Props, ical.PropClass))
	event.Status, _ = models.ParseStatus(textProp(vevent.Props, ical.PropStatus))

	if rule := vevent.Props.Get(ical.PropRecurrenceRule); rule != nil {
		event.RecurrenceRule = rule.Value
	}

	for _, attendee := range vevent.Props.Values(ical.PropAttendee) {
		email := strings.TrimSpace(attendee.Value)
		if len(email) >= 7 && strings.EqualFold(email[:7], "mailto:") {
			email = email[7:]
		}
		if email != "" {
			event.Attendees = append(event.Attendees, email)
		}
	}

	for _, child := range vevent.Children {
		if child.Name != ical.CompAlarm {
			continue
		}
		if reminder, ok := fromAlarm(child, start); ok {
			event.Reminders = append(event.Reminders, reminder)
		}
	}

	return event, nil
}

func fromAlarm(alarm *ical.Component, start time.Time) (models.Reminder, bool) {
	trigger := alarm.Props.Get(ical.PropTrigger)
	if trigger == nil {
		return models.Reminder{}, false
	}

	action := strings.ToUpper(textProp(alarm.Props, ical.PropAction))
	reminder := models.Reminder{Type: models.ReminderPush, Method: strings.ToLower(action)}
	if action == actionEmail {
		reminder.Type = models.ReminderEmail
	}

	if trigger.ValueType() == ical.ValueDateTime {
		at, err := trigger.DateTime(time.UTC)
		if err != nil {
			return models.Reminder{}, false
		}
		reminder.Minutes = start.Sub(at).Minutes()
	} else {
		d, err := trigger.Duration()
		if err != nil {
			return models.Reminder{}, false
		}
		reminder.Minutes = -d.Minutes()
	}

	if reminder.Minutes < 0 {
		reminder.Minutes = 0
	}
	return reminder, true
}

func textProp(props ical.Props, name string) string {
	value, err := props.Text(name)
	if err != nil {
		return ""
	}
	return value
}
