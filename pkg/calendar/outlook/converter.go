package outlook

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hekate/calendar-sync/internal/models"
	calendarPkg "github.com/hekate/calendar-sync/pkg/calendar"
	"github.com/hekate/calendar-sync/pkg/privacy"
)

const (
	outlookTimeFormat = "2006-01-02T15:04:05"
	// Graph returns seven fractional digits
	outlookParseFormat = "2006-01-02T15:04:05.9999999"
	untitled           = "Sem título"
	contentTypeText    = "text"
	responseNone       = "none"
	attendeeRequired   = "required"
)

// Converter maps internal events to and from Microsoft Graph events
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

// ToOutlookEvent filters, anonymizes and maps an internal event to a Graph event
func (c *Converter) ToOutlookEvent(event *models.CalendarEvent) calendarPkg.Result[*Event] {
	return calendarPkg.Guard(func() calendarPkg.Result[*Event] {
		if event == nil {
			return calendarPkg.Fail[*Event]("event is nil")
		}
		prepared, filter := privacy.Apply(event, c.settings, c.now())
		if !filter.Allowed {
			c.logger.Debug("event filtered out by privacy settings",
				"event_id", event.ID,
				"reason", filter.Reason)
			result := calendarPkg.Fail[*Event]("%s", calendarPkg.ErrFilteredOut)
			result.Warnings = filter.Warnings
			return result
		}

		item, warnings, err := toOutlook(prepared)
		if err != nil {
			return calendarPkg.Fail[*Event]("%v", err)
		}
		warnings = append(filter.Warnings, warnings...)
		for _, w := range warnings {
			c.logger.Warn("outlook mapping warning", "event_id", event.ID, "warning", w)
		}
		return calendarPkg.OK(item, warnings...)
	})
}

func toOutlook(event *models.CalendarEvent) (*Event, []string, error) {
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

	start := event.StartTime.In(loc)
	end := event.EndTime
	if end.IsZero() {
		end = event.StartTime
	}
	end = end.In(loc)

	item := &Event{
		ID:          event.ExternalID,
		Subject:     event.Title,
		Body:        &ItemBody{ContentType: contentTypeText, Content: event.Description},
		ShowAs:      calendarPkg.MapStatusToOutlook(event.Status),
		Sensitivity: sensitivity(event.Visibility),
		IsAllDay:    event.IsAllDay(),
		IsCancelled: event.Status == models.StatusCancelled,
	}
	if event.Location != "" {
		item.Location = &Location{DisplayName: event.Location}
	}

	if item.IsAllDay {
		// Graph wants midnight boundaries and at least one day
		day, lastDay := event.StartDate, event.EndDate
		if day.IsZero() {
			day = event.StartTime
		}
		if lastDay.IsZero() {
			lastDay = end
		}
		start = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
		end = time.Date(lastDay.Year(), lastDay.Month(), lastDay.Day(), 0, 0, 0, 0, loc)
		if !end.After(start) {
			end = start.AddDate(0, 0, 1)
		}
	}
	item.Start = &DateTimeTimeZone{DateTime: start.Format(outlookTimeFormat), TimeZone: tz}
	item.End = &DateTimeTimeZone{DateTime: end.Format(outlookTimeFormat), TimeZone: tz}

	for _, address := range event.Attendees {
		item.Attendees = append(item.Attendees, Attendee{
			Type:         attendeeRequired,
			EmailAddress: EmailAddress{Address: address, Name: address},
			Status:       &ResponseStatus{Response: responseNone},
		})
	}

	if event.RecurrenceRule != "" {
		recurrence, err := ParseRecurrenceRule(event.RecurrenceRule, start)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("recurrence dropped: %v", err))
		} else {
			recurrence.Range.RecurrenceTimeZone = tz
			item.Recurrence = recurrence
		}
	}

	// Graph keeps a single reminder per event
	if len(event.Reminders) > 0 {
		on := true
		minutes := int(math.Floor(event.Reminders[0].Minutes))
		item.IsReminderOn = &on
		item.ReminderMinutesBeforeStart = &minutes
		if len(event.Reminders) > 1 {
			warnings = append(warnings, fmt.Sprintf("only the first of %d reminders is kept", len(event.Reminders)))
		}
	}

	return item, warnings, nil
}

func sensitivity(v models.Visibility) string {
	switch v {
	case models.VisibilityPrivate:
		return SensitivityPrivate
	case models.VisibilityConfidential:
		return SensitivityConfidential
	default:
		return SensitivityNormal
	}
}

func visibility(sensitivity string) models.Visibility {
	switch sensitivity {
	case SensitivityPrivate, SensitivityPersonal:
		return models.VisibilityPrivate
	case SensitivityConfidential:
		return models.VisibilityConfidential
	default:
		return models.VisibilityDefault
	}
}

// FromOutlookEvent maps a Graph event back to an internal event.
// Outlook events always come back as TIMED; inbound events skip privacy.
func (c *Converter) FromOutlookEvent(item *Event) calendarPkg.Result[*models.CalendarEvent] {
	return calendarPkg.Guard(func() calendarPkg.Result[*models.CalendarEvent] {
		if item == nil {
			return calendarPkg.Fail[*models.CalendarEvent]("outlook event is nil")
		}

		var warnings []string
		start, tz, err := parseDateTime(item.Start)
		if err != nil {
			return calendarPkg.Fail[*models.CalendarEvent]("failed to parse start time: %v", err)
		}
		if tz.warning != "" {
			warnings = append(warnings, tz.warning)
		}

		end, _, err := parseDateTime(item.End)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("end time unusable (%v), using start time", err))
			end = start
		}

		title := item.Subject
		if title == "" {
			title = untitled
		}

		event := &models.CalendarEvent{
			ID:         item.ID,
			ExternalID: item.ID,
			Title:      title,
			Status:     calendarPkg.MapStatusFromOutlook(item.ShowAs),
			Visibility: visibility(item.Sensitivity),
			Type:       models.EventTypeTimed,
			Timezone:   tz.name,
		}
		if item.IsCancelled {
			event.Status = models.StatusCancelled
		}
		if item.Body != nil {
			event.Description = item.Body.Content
		}
		if item.Location != nil {
			event.Location = item.Location.DisplayName
		}
		event.SetTimes(start, end)

		for _, attendee := range item.Attendees {
			if attendee.EmailAddress.Address != "" {
				event.Attendees = append(event.Attendees, attendee.EmailAddress.Address)
			}
		}

		if item.Recurrence != nil {
			rule, err := StringifyRecurrencePattern(item.Recurrence)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("recurrence dropped: %v", err))
			} else {
				event.RecurrenceRule = rule
			}
		}

		if item.IsReminderOn != nil && *item.IsReminderOn && item.ReminderMinutesBeforeStart != nil {
			event.Reminders = []models.Reminder{{
				Type:    models.ReminderPush,
				Minutes: float64(*item.ReminderMinutesBeforeStart),
				Method:  "popup",
			}}
		}

		return calendarPkg.OK(event, warnings...)
	})
}

type zoneInfo struct {
	name    string
	warning string
}

func parseDateTime(value *DateTimeTimeZone) (time.Time, zoneInfo, error) {
	if value == nil || value.DateTime == "" {
		return time.Time{}, zoneInfo{}, fmt.Errorf("no dateTime field found")
	}

	zone := zoneInfo{name: value.TimeZone}
	loc := time.UTC
	if value.TimeZone != "" {
		l, err := time.LoadLocation(value.TimeZone)
		if err != nil {
			zone.warning = fmt.Sprintf("unknown timezone %q, using UTC", value.TimeZone)
			zone.name = "UTC"
		} else {
			loc = l
		}
	}

	t, err := time.ParseInLocation(outlookParseFormat, value.DateTime, loc)
	if err != nil {
		return time.Time{}, zone, fmt.Errorf("failed to parse datetime %q: %w", value.DateTime, err)
	}
	return t, zone, nil
}
