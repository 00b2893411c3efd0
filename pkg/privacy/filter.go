package privacy

import (
	"fmt"
	"strings"
	"time"

	"github.com/hekate/calendar-sync/internal/models"
)

// FilterResult is the outcome of running an event through the privacy filter
type FilterResult struct {
	Allowed  bool     `json:"allowed"`
	Reason   string   `json:"reason,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func reject(reason string, warnings []string) FilterResult {
	return FilterResult{Allowed: false, Reason: reason, Warnings: warnings}
}

// Filter decides whether an event may be synced under the given settings.
// Checks run in a fixed order and the first failing one rejects the event:
// visibility, time window, keywords, exclude rules, includeOnly rules.
func Filter(event *models.CalendarEvent, settings *Settings, now time.Time) FilterResult {
	var warnings []string

	// Visibility gate
	switch event.Visibility {
	case models.VisibilityPrivate:
		if !settings.SyncPrivateEvents {
			return reject("private events are not synced", warnings)
		}
	case models.VisibilityConfidential:
		if !settings.SyncConfidentialEvents {
			return reject("confidential events are not synced", warnings)
		}
	}

	// Time window gate
	if event.HasStart() {
		duration := settings.TimeSettings.SyncDuration
		pastLimit := now.AddDate(0, 0, -duration.Past)
		futureLimit := now.AddDate(0, 0, duration.Future)
		if event.StartTime.Before(pastLimit) {
			return reject(fmt.Sprintf("event starts before the sync window (%d days in the past)", duration.Past), warnings)
		}
		if event.StartTime.After(futureLimit) {
			return reject(fmt.Sprintf("event starts after the sync window (%d days in the future)", duration.Future), warnings)
		}
	} else {
		warnings = append(warnings, "event has no start time, sync window not applied")
	}

	// Keyword gate
	if kw := settings.KeywordFiltering; kw.Enabled && len(kw.Keywords) > 0 {
		matched := matchesAnyKeyword(event, kw.Keywords)
		switch kw.Mode {
		case KeywordModeIncludeOnly:
			if !matched {
				return reject("event matches none of the required keywords", warnings)
			}
		default:
			if matched {
				return reject("event matches an excluded keyword", warnings)
			}
		}
	}

	for i, rule := range settings.AdvancedRules {
		if rule.Operator == OperatorRegex {
			if _, err := compileRule(rule.Value); err != nil {
				warnings = append(warnings, fmt.Sprintf("advanced rule %d has an invalid pattern and never matches: %v", i, err))
			}
		}
	}

	// Exclude rules
	for _, rule := range settings.AdvancedRules {
		if rule.Action == ActionExclude && ruleMatches(event, rule) {
			return reject(fmt.Sprintf("excluded by rule: %s %s %q", rule.Field, rule.Operator, rule.Value), warnings)
		}
	}

	// IncludeOnly rules
	hasIncludeOnly := false
	for _, rule := range settings.AdvancedRules {
		if rule.Action != ActionIncludeOnly {
			continue
		}
		hasIncludeOnly = true
		if ruleMatches(event, rule) {
			return FilterResult{Allowed: true, Warnings: warnings}
		}
	}
	if hasIncludeOnly {
		return reject("event matches none of the include-only rules", warnings)
	}

	return FilterResult{Allowed: true, Warnings: warnings}
}

func matchesAnyKeyword(event *models.CalendarEvent, keywords []string) bool {
	text := strings.ToLower(strings.Join([]string{event.Title, event.Description, event.Location}, " "))
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
