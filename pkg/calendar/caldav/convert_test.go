package caldav

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/go-cmp/cmp"

	"github.com/hekate/calendar-sync/internal/models"
)

var stamp = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func timedEvent() *models.CalendarEvent {
	lisbon, _ := time.LoadLocation("Europe/Lisbon")
	event := &models.CalendarEvent{
		ID:             "evt-1",
		Title:          "Consulta",
		Description:    "Primeira sessão",
		Location:       "Sala 2",
		Timezone:       "Europe/Lisbon",
		Attendees:      []string{"ana@example.com"},
		Visibility:     models.VisibilityPrivate,
		Status:         models.StatusTentative,
		Type:           models.EventTypeTimed,
		RecurrenceRule: "FREQ=WEEKLY;BYDAY=MO,WE;COUNT=6",
		Reminders: []models.Reminder{
			{Type: models.ReminderPush, Minutes: 10},
			{Type: models.ReminderEmail, Minutes: 60.7},
		},
	}
	start := time.Date(2025, 3, 10, 14, 0, 0, 0, lisbon)
	event.SetTimes(start, start.Add(50*time.Minute))
	return event
}

func encode(t *testing.T, cal *ical.Calendar) string {
	t.Helper()
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		t.Fatalf("failed to encode calendar: %v", err)
	}
	return buf.String()
}

func TestToCalendarTimed(t *testing.T) {
	cal, err := ToCalendar(timedEvent(), "evt-1", stamp)
	if err != nil {
		t.Fatalf("ToCalendar() unexpected error: %v", err)
	}

	text := encode(t, cal)
	for _, want := range []string{
		"UID:evt-1",
		"SUMMARY:Consulta",
		"DTSTART:20250310T140000Z",
		"DTEND:20250310T145000Z",
		"STATUS:TENTATIVE",
		"CLASS:PRIVATE",
		"RRULE:FREQ=WEEKLY;BYDAY=MO,WE;COUNT=6",
		"ATTENDEE:mailto:ana@example.com",
		"TRIGGER:-PT10M",
		"TRIGGER:-PT60M",
		"ACTION:EMAIL",
		"PRODID:" + productID,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("encoded calendar missing %q:\n%s", want, text)
		}
	}
}

func TestToCalendarAllDay(t *testing.T) {
	event := &models.CalendarEvent{ID: "holiday", Title: "Feriado", Type: models.EventTypeAllDay}
	day := time.Date(2025, 4, 25, 0, 0, 0, 0, time.UTC)
	event.SetTimes(day, day)

	cal, err := ToCalendar(event, "holiday", stamp)
	if err != nil {
		t.Fatalf("ToCalendar() unexpected error: %v", err)
	}

	text := encode(t, cal)
	for _, want := range []string{"DTSTART;VALUE=DATE:20250425", "DTEND;VALUE=DATE:20250426"} {
		if !strings.Contains(text, want) {
			t.Errorf("encoded calendar missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "CLASS:") {
		t.Errorf("default visibility must not emit CLASS:\n%s", text)
	}
}

func TestToCalendarMissingStart(t *testing.T) {
	if _, err := ToCalendar(&models.CalendarEvent{ID: "x"}, "x", stamp); err == nil {
		t.Error("expected error for event without start")
	}
}

func TestRoundTrip(t *testing.T) {
	original := timedEvent()

	cal, err := ToCalendar(original, original.ID, stamp)
	if err != nil {
		t.Fatalf("ToCalendar() unexpected error: %v", err)
	}

	decoded, err := ical.NewDecoder(strings.NewReader(encode(t, cal))).Decode()
	if err != nil {
		t.Fatalf("failed to decode calendar: %v", err)
	}
	events := decoded.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	got, err := FromEvent(&events[0])
	if err != nil {
		t.Fatalf("FromEvent() unexpected error: %v", err)
	}

	want := original.Clone()
	want.Timezone = "UTC"
	want.Reminders = []models.Reminder{
		{Type: models.ReminderPush, Minutes: 10, Method: "display"},
		{Type: models.ReminderEmail, Minutes: 60, Method: "email"},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFromEvent(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		check   func(t *testing.T, event *models.CalendarEvent)
		wantErr bool
	}{
		{
			name: "all day without end",
			body: "UID:a\r\nDTSTAMP:20250301T080000Z\r\nDTSTART;VALUE=DATE:20250425\r\nSUMMARY:Feriado\r\n",
			check: func(t *testing.T, event *models.CalendarEvent) {
				if !event.IsAllDay() {
					t.Errorf("expected all-day, got %s", event.Type)
				}
				if event.StartDate.Day() != 25 {
					t.Errorf("unexpected start date %v", event.StartDate)
				}
			},
		},
		{
			name: "tzid and publication status",
			body: "UID:b\r\nDTSTAMP:20250301T080000Z\r\nDTSTART;TZID=America/Sao_Paulo:20250310T090000\r\nDTEND;TZID=America/Sao_Paulo:20250310T100000\r\nSTATUS:CANCELED\r\nCLASS:CONFIDENTIAL\r\n",
			check: func(t *testing.T, event *models.CalendarEvent) {
				if event.Timezone != "America/Sao_Paulo" {
					t.Errorf("expected America/Sao_Paulo, got %q", event.Timezone)
				}
				if want := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC); !event.StartTime.Equal(want) {
					t.Errorf("expected start %v, got %v", want, event.StartTime)
				}
				if event.Status != models.StatusCancelled {
					t.Errorf("expected CANCELLED, got %s", event.Status)
				}
				if event.Visibility != models.VisibilityConfidential {
					t.Errorf("expected confidential, got %s", event.Visibility)
				}
			},
		},
		{
			name: "absolute alarm",
			body: "UID:c\r\nDTSTAMP:20250301T080000Z\r\nDTSTART:20250310T090000Z\r\nBEGIN:VALARM\r\nACTION:DISPLAY\r\nDESCRIPTION:x\r\nTRIGGER;VALUE=DATE-TIME:20250310T083000Z\r\nEND:VALARM\r\n",
			check: func(t *testing.T, event *models.CalendarEvent) {
				want := []models.Reminder{{Type: models.ReminderPush, Minutes: 30, Method: "display"}}
				if diff := cmp.Diff(want, event.Reminders); diff != "" {
					t.Errorf("reminders mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name:    "missing start",
			body:    "UID:d\r\nDTSTAMP:20250301T080000Z\r\nSUMMARY:Nowhen\r\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\nBEGIN:VEVENT\r\n" + tt.body + "END:VEVENT\r\nEND:VCALENDAR\r\n"
			cal, err := ical.NewDecoder(strings.NewReader(data)).Decode()
			if err != nil {
				t.Fatalf("failed to decode test calendar: %v", err)
			}
			events := cal.Events()
			if len(events) != 1 {
				t.Fatalf("expected 1 event, got %d", len(events))
			}

			event, err := FromEvent(&events[0])
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", event)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, event)
		})
	}
}
