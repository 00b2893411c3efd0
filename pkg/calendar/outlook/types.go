package outlook

// Event is the subset of a Microsoft Graph event this package reads and writes
type Event struct {
	ID                         string               `json:"id,omitempty"`
	Subject                    string               `json:"subject"`
	Body                       *ItemBody            `json:"body,omitempty"`
	Location                   *Location            `json:"location,omitempty"`
	Start                      *DateTimeTimeZone    `json:"start,omitempty"`
	End                        *DateTimeTimeZone    `json:"end,omitempty"`
	Attendees                  []Attendee           `json:"attendees,omitempty"`
	ShowAs                     string               `json:"showAs,omitempty"`
	Sensitivity                string               `json:"sensitivity,omitempty"`
	IsAllDay                   bool                 `json:"isAllDay"`
	IsCancelled                bool                 `json:"isCancelled,omitempty"`
	IsReminderOn               *bool                `json:"isReminderOn,omitempty"`
	ReminderMinutesBeforeStart *int                 `json:"reminderMinutesBeforeStart,omitempty"`
	Recurrence                 *PatternedRecurrence `json:"recurrence,omitempty"`
}

// ItemBody is the event body
type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Location is where the event takes place
type Location struct {
	DisplayName string `json:"displayName"`
}

// DateTimeTimeZone is a wall clock time plus the zone it is expressed in
type DateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// Attendee is an event participant
type Attendee struct {
	Type         string          `json:"type,omitempty"`
	EmailAddress EmailAddress    `json:"emailAddress"`
	Status       *ResponseStatus `json:"status,omitempty"`
}

// EmailAddress identifies an attendee
type EmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// ResponseStatus is an attendee's reply
type ResponseStatus struct {
	Response string `json:"response"`
	Time     string `json:"time,omitempty"`
}

// PatternedRecurrence is Graph's structured replacement for RRULE
type PatternedRecurrence struct {
	Pattern RecurrencePattern `json:"pattern"`
	Range   RecurrenceRange   `json:"range"`
}

// RecurrencePattern says how often an event repeats
type RecurrencePattern struct {
	Type           string   `json:"type"`
	Interval       int      `json:"interval"`
	Month          int      `json:"month,omitempty"`
	DayOfMonth     int      `json:"dayOfMonth,omitempty"`
	DaysOfWeek     []string `json:"daysOfWeek,omitempty"`
	FirstDayOfWeek string   `json:"firstDayOfWeek,omitempty"`
	Index          string   `json:"index,omitempty"`
}

// RecurrenceRange says when a recurrence stops
type RecurrenceRange struct {
	Type                string `json:"type"`
	StartDate           string `json:"startDate"`
	EndDate             string `json:"endDate,omitempty"`
	RecurrenceTimeZone  string `json:"recurrenceTimeZone,omitempty"`
	NumberOfOccurrences int    `json:"numberOfOccurrences,omitempty"`
}

// Pattern types
const (
	PatternDaily           = "daily"
	PatternWeekly          = "weekly"
	PatternAbsoluteMonthly = "absoluteMonthly"
	PatternRelativeMonthly = "relativeMonthly"
	PatternAbsoluteYearly  = "absoluteYearly"
	PatternRelativeYearly  = "relativeYearly"
)

// Range types
const (
	RangeEndDate  = "endDate"
	RangeNoEnd    = "noEnd"
	RangeNumbered = "numbered"
)

// Sensitivity values
const (
	SensitivityNormal       = "normal"
	SensitivityPersonal     = "personal"
	SensitivityPrivate      = "private"
	SensitivityConfidential = "confidential"
)

type calendarEntry struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	IsDefaultCalendar bool   `json:"isDefaultCalendar"`
	CanEdit           bool   `json:"canEdit"`
}

type listResponse[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}
