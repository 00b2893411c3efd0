package outlook

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/teambition/rrule-go"

	"github.com/hekate/calendar-sync/internal/models"
	calendarPkg "github.com/hekate/calendar-sync/pkg/calendar"
	"github.com/hekate/calendar-sync/pkg/privacy"
)

var fixedNow = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

func newTestConverter(settings *privacy.Settings) *Converter {
	c := NewConverter(settings, slog.Default())
	c.now = func() time.Time { return fixedNow }
	return c
}

func sampleEvent() *models.CalendarEvent {
	event := &models.CalendarEvent{
		ID:             "evt-9",
		Title:          "Círculo de Tarô",
		Description:    "Arcanos maiores",
		Location:       "Sala Lua",
		Attendees:      []string{"ana@example.com"},
		Visibility:     models.VisibilityConfidential,
		Status:         models.StatusTentative,
		Type:           models.EventTypeTimed,
		Timezone:       "Europe/Lisbon",
		RecurrenceRule: "FREQ=WEEKLY;BYDAY=TU;COUNT=4",
		Reminders: []models.Reminder{
			{Type: models.ReminderPush, Minutes: 15.5},
			{Type: models.ReminderEmail, Minutes: 60},
		},
	}
	event.SetTimes(seriesStart, seriesStart.Add(90*time.Minute))
	return event
}

func TestToOutlookEvent(t *testing.T) {
	settings := privacy.DefaultSettings()
	settings.SyncConfidentialEvents = true

	result := newTestConverter(settings).ToOutlookEvent(sampleEvent())
	if !result.Success {
		t.Fatalf("ToOutlookEvent failed: %s", result.Error)
	}
	item := result.Data

	if item.Subject != "Círculo de Tarô" {
		t.Errorf("Subject = %q", item.Subject)
	}
	if diff := cmp.Diff(&ItemBody{ContentType: "text", Content: "Arcanos maiores"}, item.Body); diff != "" {
		t.Errorf("Body mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(&DateTimeTimeZone{DateTime: "2025-03-04T19:00:00", TimeZone: "Europe/Lisbon"}, item.Start); diff != "" {
		t.Errorf("Start mismatch (-want +got):\n%s", diff)
	}
	if item.End.DateTime != "2025-03-04T20:30:00" {
		t.Errorf("End = %q", item.End.DateTime)
	}
	if item.ShowAs != calendarPkg.OutlookShowAsTentative {
		t.Errorf("ShowAs = %q, want tentative", item.ShowAs)
	}
	if item.Sensitivity != SensitivityConfidential {
		t.Errorf("Sensitivity = %q", item.Sensitivity)
	}

	wantAttendees := []Attendee{{
		Type:         "required",
		EmailAddress: EmailAddress{Address: "ana@example.com", Name: "ana@example.com"},
		Status:       &ResponseStatus{Response: "none"},
	}}
	if diff := cmp.Diff(wantAttendees, item.Attendees); diff != "" {
		t.Errorf("Attendees mismatch (-want +got):\n%s", diff)
	}

	if item.Recurrence == nil {
		t.Fatal("Expected recurrence")
	}
	if item.Recurrence.Pattern.Type != PatternWeekly || item.Recurrence.Range.NumberOfOccurrences != 4 {
		t.Errorf("Recurrence = %+v", item.Recurrence)
	}
	if item.Recurrence.Range.RecurrenceTimeZone != "Europe/Lisbon" {
		t.Errorf("RecurrenceTimeZone = %q", item.Recurrence.Range.RecurrenceTimeZone)
	}

	if item.IsReminderOn == nil || !*item.IsReminderOn || *item.ReminderMinutesBeforeStart != 15 {
		t.Errorf("reminder = %v/%v, want on/15", item.IsReminderOn, item.ReminderMinutesBeforeStart)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "reminders") {
		t.Errorf("Warnings = %v, want one about dropped reminders", result.Warnings)
	}
}

func TestToOutlookEvent_Filtered(t *testing.T) {
	result := newTestConverter(privacy.DefaultSettings()).ToOutlookEvent(sampleEvent())
	if !result.Filtered() {
		t.Fatalf("Expected confidential event to be filtered, got %+v", result)
	}
	if result.Error != "Event filtered out by privacy settings" {
		t.Errorf("Error = %q", result.Error)
	}
}

func TestToOutlookEvent_UnsupportedRecurrenceIsDropped(t *testing.T) {
	event := sampleEvent()
	event.RecurrenceRule = "FREQ=MINUTELY;INTERVAL=30"
	event.Reminders = nil

	result := newTestConverter(nil).ToOutlookEvent(event)
	if !result.Success {
		t.Fatalf("ToOutlookEvent failed: %s", result.Error)
	}
	if result.Data.Recurrence != nil {
		t.Error("Expected recurrence to be dropped")
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "recurrence dropped") {
		t.Errorf("Warnings = %v", result.Warnings)
	}
}

func TestToOutlookEvent_AllDay(t *testing.T) {
	day := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		end       time.Time
		timezone  string
		wantStart string
		wantEnd   string
	}{
		{"end equal to start spans one day", day, "", "2025-03-04T00:00:00", "2025-03-05T00:00:00"},
		{"two days", day.AddDate(0, 0, 2), "", "2025-03-04T00:00:00", "2025-03-06T00:00:00"},
		{"zone west of UTC keeps the day", day.AddDate(0, 0, 1), "America/Sao_Paulo", "2025-03-04T00:00:00", "2025-03-05T00:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &models.CalendarEvent{
				ID:       "holiday",
				Title:    "Carnaval",
				Type:     models.EventTypeAllDay,
				Timezone: tt.timezone,
			}
			event.SetTimes(day, tt.end)

			result := newTestConverter(nil).ToOutlookEvent(event)
			if !result.Success {
				t.Fatalf("ToOutlookEvent failed: %s", result.Error)
			}
			if !result.Data.IsAllDay {
				t.Error("Expected isAllDay")
			}
			if result.Data.Start.DateTime != tt.wantStart || result.Data.End.DateTime != tt.wantEnd {
				t.Errorf("range = %s..%s, want %s..%s", result.Data.Start.DateTime, result.Data.End.DateTime, tt.wantStart, tt.wantEnd)
			}
			if result.Data.Sensitivity != SensitivityNormal {
				t.Errorf("Sensitivity = %q, want normal", result.Data.Sensitivity)
			}
		})
	}
}

func TestToOutlookEvent_NilEvent(t *testing.T) {
	result := newTestConverter(privacy.DefaultSettings()).ToOutlookEvent(nil)
	if result.Success || result.Data != nil || result.Error == "" {
		t.Errorf("ToOutlookEvent(nil) = %+v, want a failed result", result)
	}
	if result.Filtered() {
		t.Error("a nil event is a failure, not a privacy rejection")
	}
}

func TestToOutlookEvent_RoundedAndAnonymized(t *testing.T) {
	settings := privacy.DefaultSettings()
	settings.TimeSettings.RoundToHour = true
	settings.FieldSettings.Location = privacy.FieldSetting{Sync: false}

	event := sampleEvent()
	event.Visibility = models.VisibilityPublic
	event.SetTimes(
		time.Date(2025, 3, 4, 10, 15, 0, 0, time.UTC),
		time.Date(2025, 3, 4, 10, 45, 0, 0, time.UTC),
	)
	event.Timezone = "UTC"

	result := newTestConverter(settings).ToOutlookEvent(event)
	if !result.Success {
		t.Fatalf("ToOutlookEvent failed: %s", result.Error)
	}
	if result.Data.Start.DateTime != "2025-03-04T10:00:00" || result.Data.End.DateTime != "2025-03-04T11:00:00" {
		t.Errorf("range = %s..%s, want 10:00..11:00", result.Data.Start.DateTime, result.Data.End.DateTime)
	}
	if result.Data.Location != nil {
		t.Errorf("Location = %+v, want none", result.Data.Location)
	}
}

func TestFromOutlookEvent(t *testing.T) {
	on := true
	minutes := 30
	item := &Event{
		ID:          "AAMk-1",
		Subject:     "",
		Body:        &ItemBody{ContentType: "html", Content: "<p>notes</p>"},
		Location:    &Location{DisplayName: "Online"},
		Start:       &DateTimeTimeZone{DateTime: "2025-03-04T19:00:00.0000000", TimeZone: "UTC"},
		End:         &DateTimeTimeZone{DateTime: "2025-03-04T20:00:00.0000000", TimeZone: "UTC"},
		Attendees:   []Attendee{{EmailAddress: EmailAddress{Address: "bia@example.com", Name: "Bia"}}},
		ShowAs:      "free",
		Sensitivity: "personal",
		IsAllDay:    true,
		Recurrence: &PatternedRecurrence{
			Pattern: RecurrencePattern{Type: PatternDaily, Interval: 1},
			Range:   RecurrenceRange{Type: RangeNumbered, StartDate: "2025-03-04", NumberOfOccurrences: 3},
		},
		IsReminderOn:               &on,
		ReminderMinutesBeforeStart: &minutes,
	}

	result := newTestConverter(nil).FromOutlookEvent(item)
	if !result.Success {
		t.Fatalf("FromOutlookEvent failed: %s", result.Error)
	}
	event := result.Data

	if event.Title != "Sem título" {
		t.Errorf("Title = %q", event.Title)
	}
	if event.Type != models.EventTypeTimed {
		t.Errorf("Type = %v, want TIMED even for all-day input", event.Type)
	}
	if event.Status != models.StatusCancelled {
		t.Errorf("Status = %v, want CANCELLED for free", event.Status)
	}
	if event.Visibility != models.VisibilityPrivate {
		t.Errorf("Visibility = %v, want private", event.Visibility)
	}
	if !event.StartTime.Equal(seriesStart) {
		t.Errorf("StartTime = %v, want %v", event.StartTime, seriesStart)
	}
	if event.Description != "<p>notes</p>" || event.Location != "Online" {
		t.Errorf("Description/Location = %q/%q", event.Description, event.Location)
	}
	opt, err := rrule.StrToROption(event.RecurrenceRule)
	if err != nil {
		t.Fatalf("RecurrenceRule %q does not parse: %v", event.RecurrenceRule, err)
	}
	if opt.Freq != rrule.DAILY || opt.Count != 3 {
		t.Errorf("RecurrenceRule = %q, want daily x3", event.RecurrenceRule)
	}
	if diff := cmp.Diff([]models.Reminder{{Type: models.ReminderPush, Minutes: 30, Method: "popup"}}, event.Reminders); diff != "" {
		t.Errorf("Reminders mismatch (-want +got):\n%s", diff)
	}
}

func TestFromOutlookEvent_Edges(t *testing.T) {
	c := newTestConverter(nil)

	if result := c.FromOutlookEvent(nil); result.Success {
		t.Error("Expected failure for nil event")
	}
	if result := c.FromOutlookEvent(&Event{ID: "x", Subject: "no start"}); result.Success {
		t.Error("Expected failure without start")
	}

	result := c.FromOutlookEvent(&Event{
		ID:      "y",
		Subject: "Unknown zone",
		Start:   &DateTimeTimeZone{DateTime: "2025-03-04T19:00:00", TimeZone: "Pacific Standard Time"},
		End:     &DateTimeTimeZone{DateTime: "2025-03-04T20:00:00", TimeZone: "Pacific Standard Time"},
		ShowAs:  "busy",
	})
	if !result.Success {
		t.Fatalf("FromOutlookEvent failed: %s", result.Error)
	}
	if result.Data.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC fallback", result.Data.Timezone)
	}
	if len(result.Warnings) == 0 {
		t.Error("Expected timezone warning")
	}
	if result.Data.Status != models.StatusConfirmed {
		t.Errorf("Status = %v, want CONFIRMED for busy", result.Data.Status)
	}
}
