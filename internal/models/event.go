package models

import (
	"fmt"
	"strings"
	"time"
)

// Visibility describes how restricted an event's details are
type Visibility string

const (
	VisibilityDefault      Visibility = "default"
	VisibilityPublic       Visibility = "public"
	VisibilityPrivate      Visibility = "private"
	VisibilityConfidential Visibility = "confidential"
)

// VisibilityFromClass maps an iCalendar CLASS value to a Visibility
func VisibilityFromClass(class string) Visibility {
	switch strings.ToUpper(strings.TrimSpace(class)) {
	case "PUBLIC":
		return VisibilityPublic
	case "PRIVATE":
		return VisibilityPrivate
	case "CONFIDENTIAL":
		return VisibilityConfidential
	default:
		return VisibilityDefault
	}
}

// Class returns the iCalendar CLASS value, or "" for the default visibility
func (v Visibility) Class() string {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityConfidential:
		return strings.ToUpper(string(v))
	default:
		return ""
	}
}

// EventType distinguishes all-day events from timed ones
type EventType string

const (
	EventTypeAllDay EventType = "ALL_DAY"
	EventTypeTimed  EventType = "TIMED"
)

// ReminderType is the delivery channel of a reminder
type ReminderType string

const (
	ReminderEmail ReminderType = "EMAIL"
	ReminderPush  ReminderType = "PUSH"
)

// Status is the scheduling status of an event.
//
// Two vocabularies reach this package: the scheduling one
// (CONFIRMED, TENTATIVE, CANCELLED) and the content publication one
// (PUBLISHED, DRAFT, CANCELED). Both are normalized into Status by
// ParseStatus so the provider mappers only ever see three values.
type Status int

const (
	StatusConfirmed Status = iota
	StatusTentative
	StatusCancelled
)

// ParseStatus normalizes either status vocabulary into a Status.
// The second return value is false for unknown input, in which case
// StatusConfirmed is returned.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CONFIRMED", "PUBLISHED":
		return StatusConfirmed, true
	case "TENTATIVE", "DRAFT":
		return StatusTentative, true
	case "CANCELLED", "CANCELED":
		return StatusCancelled, true
	default:
		return StatusConfirmed, false
	}
}

func (s Status) String() string {
	switch s {
	case StatusTentative:
		return "TENTATIVE"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "CONFIRMED"
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler and accepts both vocabularies
func (s *Status) UnmarshalText(text []byte) error {
	status, ok := ParseStatus(string(text))
	if !ok {
		return fmt.Errorf("unknown event status %q", string(text))
	}
	*s = status
	return nil
}

// Reminder is a notification configured on an event
type Reminder struct {
	Type    ReminderType `json:"type" yaml:"type"`
	Minutes float64      `json:"minutes" yaml:"minutes"`
	Method  string       `json:"method,omitempty" yaml:"method,omitempty"`
}

// CalendarEvent is the canonical internal representation of an event
type CalendarEvent struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Location       string     `json:"location,omitempty"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        time.Time  `json:"end_time"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        time.Time  `json:"end_date"`
	Timezone       string     `json:"timezone,omitempty"`
	Attendees      []string   `json:"attendees,omitempty"`
	Visibility     Visibility `json:"visibility"`
	Status         Status     `json:"status"`
	Type           EventType  `json:"type"`
	RecurrenceRule string     `json:"recurrence_rule,omitempty"`
	Reminders      []Reminder `json:"reminders,omitempty"`
	ExternalID     string     `json:"external_id,omitempty"`
	UserID         string     `json:"user_id,omitempty"`
	CalendarID     string     `json:"calendar_id,omitempty"`
	Source         string     `json:"source,omitempty"`
}

// Clone returns a deep copy of the event
func (e *CalendarEvent) Clone() *CalendarEvent {
	if e == nil {
		return nil
	}
	c := *e
	if e.Attendees != nil {
		c.Attendees = append([]string(nil), e.Attendees...)
	}
	if e.Reminders != nil {
		c.Reminders = append([]Reminder(nil), e.Reminders...)
	}
	return &c
}

// EffectiveTimezone returns the event timezone, or "UTC" when none is set
func (e *CalendarEvent) EffectiveTimezone() string {
	if e.Timezone == "" {
		return "UTC"
	}
	return e.Timezone
}

// IsAllDay returns true for ALL_DAY events
func (e *CalendarEvent) IsAllDay() bool {
	return e.Type == EventTypeAllDay
}

// HasStart returns true if the event carries a start instant
func (e *CalendarEvent) HasStart() bool {
	return !e.StartTime.IsZero()
}

// SetTimes sets the start and end instants and keeps the date mirrors in sync.
// All-day events get midnight-aligned dates.
func (e *CalendarEvent) SetTimes(start, end time.Time) {
	e.StartTime = start
	e.EndTime = end
	e.StartDate = start
	e.EndDate = end
	if e.IsAllDay() {
		e.StartDate = dateOnly(start)
		e.EndDate = dateOnly(end)
	}
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
