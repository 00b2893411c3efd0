package outlook

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

const dateLayout = "2006-01-02"

// Graph day names, indexed like rrule.Weekday.Day() (Monday first)
var graphDays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

var rruleDays = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

var graphIndex = map[int]string{1: "first", 2: "second", 3: "third", 4: "fourth", -1: "last"}

// ParseRecurrenceRule translates an RRULE into a Graph recurrence.
// start anchors the range and fills in whatever the rule leaves implicit.
// Only rules Graph can represent are accepted.
func ParseRecurrenceRule(rule string, start time.Time) (*PatternedRecurrence, error) {
	rule = strings.TrimSpace(rule)
	if len(rule) >= 6 && strings.EqualFold(rule[:6], "RRULE:") {
		rule = rule[6:]
	}
	if rule == "" {
		return nil, fmt.Errorf("empty recurrence rule")
	}

	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence rule %q: %w", rule, err)
	}

	if err := checkRepresentable(opt); err != nil {
		return nil, fmt.Errorf("recurrence rule %q: %w", rule, err)
	}

	interval := opt.Interval
	if interval < 1 {
		interval = 1
	}

	pattern := RecurrencePattern{Interval: interval}
	relative := len(opt.Bysetpos) > 0
	for _, wd := range opt.Byweekday {
		if wd.N() != 0 {
			relative = true
		}
	}

	switch opt.Freq {
	case rrule.DAILY:
		if len(opt.Byweekday) > 0 {
			pattern.Type = PatternWeekly
			pattern.DaysOfWeek = dayNames(opt.Byweekday)
			pattern.FirstDayOfWeek = graphDays[opt.Wkst.Day()]
		} else {
			pattern.Type = PatternDaily
		}

	case rrule.WEEKLY:
		pattern.Type = PatternWeekly
		pattern.DaysOfWeek = dayNames(opt.Byweekday)
		if len(pattern.DaysOfWeek) == 0 {
			pattern.DaysOfWeek = []string{strings.ToLower(start.Weekday().String())}
		}
		pattern.FirstDayOfWeek = graphDays[opt.Wkst.Day()]

	case rrule.MONTHLY:
		if relative {
			pattern.Type = PatternRelativeMonthly
			if err := setRelative(&pattern, opt); err != nil {
				return nil, err
			}
		} else {
			pattern.Type = PatternAbsoluteMonthly
			day, err := dayOfMonth(opt, start)
			if err != nil {
				return nil, err
			}
			pattern.DayOfMonth = day
		}

	case rrule.YEARLY:
		pattern.Month = int(start.Month())
		if len(opt.Bymonth) > 0 {
			pattern.Month = opt.Bymonth[0]
		}
		if relative {
			pattern.Type = PatternRelativeYearly
			if err := setRelative(&pattern, opt); err != nil {
				return nil, err
			}
		} else {
			pattern.Type = PatternAbsoluteYearly
			day, err := dayOfMonth(opt, start)
			if err != nil {
				return nil, err
			}
			pattern.DayOfMonth = day
		}

	default:
		return nil, fmt.Errorf("unsupported recurrence frequency %s", opt.Freq)
	}

	rangeSpec := RecurrenceRange{
		Type:      RangeNoEnd,
		StartDate: start.Format(dateLayout),
	}
	switch {
	case opt.Count > 0:
		rangeSpec.Type = RangeNumbered
		rangeSpec.NumberOfOccurrences = opt.Count
	case !opt.Until.IsZero():
		rangeSpec.Type = RangeEndDate
		rangeSpec.EndDate = opt.Until.In(start.Location()).Format(dateLayout)
	}

	return &PatternedRecurrence{Pattern: pattern, Range: rangeSpec}, nil
}

// checkRepresentable rejects rule parts a Graph pattern has no field for,
// so they are never silently turned into a different schedule.
func checkRepresentable(opt *rrule.ROption) error {
	switch {
	case len(opt.Byhour) > 0, len(opt.Byminute) > 0, len(opt.Bysecond) > 0:
		return fmt.Errorf("BYHOUR, BYMINUTE and BYSECOND are not supported")
	case len(opt.Byyearday) > 0:
		return fmt.Errorf("BYYEARDAY is not supported")
	case len(opt.Byweekno) > 0:
		return fmt.Errorf("BYWEEKNO is not supported")
	case len(opt.Bymonthday) > 1:
		return fmt.Errorf("more than one BYMONTHDAY is not supported")
	case len(opt.Bymonth) > 1:
		return fmt.Errorf("more than one BYMONTH is not supported")
	}

	switch opt.Freq {
	case rrule.DAILY, rrule.WEEKLY:
		if len(opt.Bysetpos) > 0 {
			return fmt.Errorf("BYSETPOS is not supported on %s rules", opt.Freq)
		}
		if len(opt.Bymonthday) > 0 {
			return fmt.Errorf("BYMONTHDAY is not supported on %s rules", opt.Freq)
		}
	case rrule.MONTHLY, rrule.YEARLY:
		if len(opt.Bysetpos) > 1 {
			return fmt.Errorf("more than one BYSETPOS is not supported")
		}
		if len(opt.Byweekday) > 0 && len(opt.Bymonthday) > 0 {
			return fmt.Errorf("BYDAY combined with BYMONTHDAY is not supported")
		}
		if len(opt.Byweekday) > 0 && len(opt.Bysetpos) == 0 {
			for _, wd := range opt.Byweekday {
				if wd.N() == 0 {
					return fmt.Errorf("BYDAY without an ordinal is not supported on %s rules", opt.Freq)
				}
			}
		}
	}
	return nil
}

func dayNames(days []rrule.Weekday) []string {
	names := make([]string, 0, len(days))
	for _, wd := range days {
		names = append(names, graphDays[wd.Day()])
	}
	return names
}

func dayOfMonth(opt *rrule.ROption, start time.Time) (int, error) {
	if len(opt.Bymonthday) == 0 {
		return start.Day(), nil
	}
	day := opt.Bymonthday[0]
	if day < 1 {
		return 0, fmt.Errorf("negative BYMONTHDAY %d is not supported", day)
	}
	return day, nil
}

func setRelative(pattern *RecurrencePattern, opt *rrule.ROption) error {
	if len(opt.Byweekday) == 0 {
		return fmt.Errorf("relative recurrence needs BYDAY")
	}

	n := 0
	if len(opt.Bysetpos) > 0 {
		n = opt.Bysetpos[0]
	}
	for _, wd := range opt.Byweekday {
		if wd.N() != 0 {
			n = wd.N()
			break
		}
	}

	index, ok := graphIndex[n]
	if !ok {
		return fmt.Errorf("week index %d is not supported", n)
	}

	pattern.Index = index
	pattern.DaysOfWeek = dayNames(opt.Byweekday)
	return nil
}

// StringifyRecurrencePattern translates a Graph recurrence back into an RRULE
// (without the "RRULE:" prefix).
func StringifyRecurrencePattern(recurrence *PatternedRecurrence) (string, error) {
	if recurrence == nil {
		return "", fmt.Errorf("recurrence is nil")
	}
	p := recurrence.Pattern

	opt := rrule.ROption{}
	if p.Interval > 1 {
		opt.Interval = p.Interval
	}

	switch p.Type {
	case PatternDaily:
		opt.Freq = rrule.DAILY

	case PatternWeekly:
		opt.Freq = rrule.WEEKLY
		days, err := weekdays(p.DaysOfWeek, 0)
		if err != nil {
			return "", err
		}
		opt.Byweekday = days
		if p.FirstDayOfWeek != "" {
			wkst, err := weekday(p.FirstDayOfWeek)
			if err != nil {
				return "", err
			}
			opt.Wkst = wkst
		}

	case PatternAbsoluteMonthly, PatternAbsoluteYearly:
		opt.Freq = rrule.MONTHLY
		if p.Type == PatternAbsoluteYearly {
			opt.Freq = rrule.YEARLY
			if p.Month > 0 {
				opt.Bymonth = []int{p.Month}
			}
		}
		if p.DayOfMonth > 0 {
			opt.Bymonthday = []int{p.DayOfMonth}
		}

	case PatternRelativeMonthly, PatternRelativeYearly:
		opt.Freq = rrule.MONTHLY
		if p.Type == PatternRelativeYearly {
			opt.Freq = rrule.YEARLY
			if p.Month > 0 {
				opt.Bymonth = []int{p.Month}
			}
		}
		n, err := indexNumber(p.Index)
		if err != nil {
			return "", err
		}
		days, err := weekdays(p.DaysOfWeek, n)
		if err != nil {
			return "", err
		}
		opt.Byweekday = days

	default:
		return "", fmt.Errorf("unsupported recurrence pattern %q", p.Type)
	}

	r := recurrence.Range
	switch r.Type {
	case RangeNumbered:
		if r.NumberOfOccurrences > 0 {
			opt.Count = r.NumberOfOccurrences
		}
	case RangeEndDate:
		end, err := time.Parse(dateLayout, r.EndDate)
		if err != nil {
			return "", fmt.Errorf("invalid recurrence end date %q: %w", r.EndDate, err)
		}
		// endDate is inclusive
		opt.Until = end.Add(24*time.Hour - time.Second)
	}

	return opt.RRuleString(), nil
}

func weekday(name string) (rrule.Weekday, error) {
	for i, day := range graphDays {
		if strings.EqualFold(day, name) {
			return rruleDays[i], nil
		}
	}
	return rrule.MO, fmt.Errorf("unknown day of week %q", name)
}

func weekdays(names []string, n int) ([]rrule.Weekday, error) {
	days := make([]rrule.Weekday, 0, len(names))
	for _, name := range names {
		wd, err := weekday(name)
		if err != nil {
			return nil, err
		}
		if n != 0 {
			wd = wd.Nth(n)
		}
		days = append(days, wd)
	}
	return days, nil
}

func indexNumber(index string) (int, error) {
	if index == "" {
		return 1, nil
	}
	for n, name := range graphIndex {
		if strings.EqualFold(name, index) {
			return n, nil
		}
	}
	return 0, fmt.Errorf("unknown week index %q", index)
}
