package privacy

import (
	"regexp"
	"strings"

	"github.com/hekate/calendar-sync/internal/models"
)

// MatchesRule evaluates a rule predicate against a field value.
// String operators compare case-insensitively. The regex operator compiles
// ruleValue case-insensitively and tests the raw value; a malformed pattern
// never matches.
func MatchesRule(value string, operator Operator, ruleValue string) bool {
	if operator == OperatorRegex {
		re, err := compileRule(ruleValue)
		if err != nil {
			return false
		}
		return re.MatchString(value)
	}

	v := strings.ToLower(value)
	r := strings.ToLower(ruleValue)

	switch operator {
	case OperatorContains:
		return strings.Contains(v, r)
	case OperatorEquals:
		return v == r
	case OperatorStartsWith:
		return strings.HasPrefix(v, r)
	case OperatorEndsWith:
		return strings.HasSuffix(v, r)
	default:
		return false
	}
}

func compileRule(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}

// fieldValue extracts the string a rule is matched against.
// Attendees are joined with ", ".
func fieldValue(event *models.CalendarEvent, field string) string {
	switch field {
	case FieldTitle:
		return event.Title
	case FieldDescription:
		return event.Description
	case FieldLocation:
		return event.Location
	case FieldAttendees:
		return strings.Join(event.Attendees, ", ")
	default:
		return ""
	}
}

func ruleMatches(event *models.CalendarEvent, rule Rule) bool {
	return MatchesRule(fieldValue(event, rule.Field), rule.Operator, rule.Value)
}
