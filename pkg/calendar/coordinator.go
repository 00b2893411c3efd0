package calendar

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hekate/calendar-sync/internal/models"
)

// Merge strategies for duplicate events
const (
	MergeKeepFirst      = "keep_first"
	MergeKeepLast       = "keep_last"
	MergeUnionReminders = "merge_reminders"
)

// CoordinatorConfig holds configuration for multi-source coordination
type CoordinatorConfig struct {
	DeduplicationEnabled bool           `yaml:"deduplication_enabled"`
	DeduplicationWindow  time.Duration  `yaml:"deduplication_window"`
	SourcePriorities     map[string]int `yaml:"source_priorities"`
	MergeStrategy        string         `yaml:"merge_strategy"`
}

// DefaultCoordinatorConfig returns a default configuration for multi-source coordination
func DefaultCoordinatorConfig() *CoordinatorConfig {
	return &CoordinatorConfig{
		DeduplicationEnabled: true,
		DeduplicationWindow:  5 * time.Minute,
		SourcePriorities:     map[string]int{},
		MergeStrategy:        MergeUnionReminders,
	}
}

// EventCoordinator deduplicates events read from several sources
type EventCoordinator struct {
	config *CoordinatorConfig
	logger *slog.Logger
}

// NewEventCoordinator creates a new event coordinator
func NewEventCoordinator(config *CoordinatorConfig, logger *slog.Logger) *EventCoordinator {
	if config == nil {
		config = DefaultCoordinatorConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &EventCoordinator{
		config: config,
		logger: logger,
	}
}

// CoordinateEvents orders events by source priority, merges duplicates and
// returns the result sorted by start time. The input slice is reordered.
func (c *EventCoordinator) CoordinateEvents(events []*models.CalendarEvent) ([]*models.CalendarEvent, error) {
	if len(events) == 0 {
		return events, nil
	}

	c.prioritizeEventsBySource(events)

	coordinated := events
	if c.config.DeduplicationEnabled {
		coordinated = c.deduplicateEvents(events)
	}

	sort.SliceStable(coordinated, func(i, j int) bool {
		return coordinated[i].StartTime.Before(coordinated[j].StartTime)
	})

	c.logger.Debug("Event coordination complete",
		"input_count", len(events),
		"output_count", len(coordinated))

	return coordinated, nil
}

// prioritizeEventsBySource sorts events by configured source priority
// (lower number first); sources without a priority follow, alphabetically.
func (c *EventCoordinator) prioritizeEventsBySource(events []*models.CalendarEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a := strings.ToLower(events[i].Source)
		b := strings.ToLower(events[j].Source)

		priorityA, okA := c.config.SourcePriorities[a]
		priorityB, okB := c.config.SourcePriorities[b]

		switch {
		case okA && okB:
			return priorityA < priorityB
		case okA:
			return true
		case okB:
			return false
		default:
			return a < b
		}
	})
}

func (c *EventCoordinator) deduplicateEvents(events []*models.CalendarEvent) []*models.CalendarEvent {
	if len(events) <= 1 {
		return events
	}

	var deduplicated []*models.CalendarEvent
	processed := make([]bool, len(events))

	for i, event := range events {
		if processed[i] {
			continue
		}

		group := []*models.CalendarEvent{event}
		processed[i] = true
		for j := i + 1; j < len(events); j++ {
			if !processed[j] && c.areEventsSimilar(event, events[j]) {
				group = append(group, events[j])
				processed[j] = true
			}
		}

		if len(group) == 1 {
			deduplicated = append(deduplicated, event)
			continue
		}

		merged := c.mergeEvents(group)
		deduplicated = append(deduplicated, merged)

		c.logger.Debug("Merged duplicate events",
			"primary_event", event.ID,
			"total_duplicates", len(group),
			"merged_title", merged.Title)
	}

	return deduplicated
}

// areEventsSimilar determines if two events are likely the same event from different sources
func (c *EventCoordinator) areEventsSimilar(a, b *models.CalendarEvent) bool {
	if a.ID != "" && a.ID == b.ID {
		return true
	}

	timeDiff := a.StartTime.Sub(b.StartTime)
	if timeDiff < 0 {
		timeDiff = -timeDiff
	}
	if timeDiff > c.config.DeduplicationWindow {
		return false
	}

	return areTitlesSimilar(a.Title, b.Title)
}

var titleStopwords = map[string]bool{
	"reunião": true, "aula": true, "sessão": true, "meeting": true, "call": true, "sync": true,
	"de": true, "da": true, "do": true, "e": true, "com": true, "the": true, "a": true, "and": true, "with": true, "for": true, "of": true,
}

// areTitlesSimilar performs a word overlap check on normalized titles
func areTitlesSimilar(a, b string) bool {
	normA := strings.ToLower(strings.TrimSpace(a))
	normB := strings.ToLower(strings.TrimSpace(b))

	if normA == "" || normB == "" {
		return false
	}
	if normA == normB {
		return true
	}
	// "Tarô" vs "Curso de Tarô"
	if strings.Contains(normA, normB) || strings.Contains(normB, normA) {
		return true
	}

	wordsA := meaningfulWords(normA)
	wordsB := meaningfulWords(normB)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return false
	}

	common := 0
	for word := range wordsA {
		if wordsB[word] {
			common++
		}
	}
	if common == 0 {
		return false
	}

	smaller := len(wordsA)
	if len(wordsB) < smaller {
		smaller = len(wordsB)
	}

	return float64(common)/float64(smaller) >= 0.7
}

func meaningfulWords(title string) map[string]bool {
	words := make(map[string]bool)
	for _, word := range strings.Fields(title) {
		if len([]rune(word)) <= 2 || titleStopwords[word] {
			continue
		}
		words[word] = true
	}
	return words
}

// mergeEvents combines similar events; the first one has the highest priority
func (c *EventCoordinator) mergeEvents(events []*models.CalendarEvent) *models.CalendarEvent {
	merged := events[0].Clone()

	switch c.config.MergeStrategy {
	case MergeKeepLast:
		merged.Reminders = append([]models.Reminder(nil), events[len(events)-1].Reminders...)
	case MergeUnionReminders:
		merged.Reminders = unionReminders(events)
	}

	seen := make(map[string]bool)
	for _, attendee := range merged.Attendees {
		seen[strings.ToLower(attendee)] = true
	}

	for _, event := range events[1:] {
		if merged.Description == "" {
			merged.Description = event.Description
		}
		if merged.Location == "" {
			merged.Location = event.Location
		}
		if merged.RecurrenceRule == "" {
			merged.RecurrenceRule = event.RecurrenceRule
		}
		for _, attendee := range event.Attendees {
			if !seen[strings.ToLower(attendee)] {
				seen[strings.ToLower(attendee)] = true
				merged.Attendees = append(merged.Attendees, attendee)
			}
		}
	}

	if merged.ID == "" {
		var sourceIDs []string
		for _, event := range events {
			if event.ID != "" {
				sourceIDs = append(sourceIDs, event.ID)
			}
		}
		merged.ID = fmt.Sprintf("merged-%s", strings.Join(sourceIDs, "-"))
	}

	return merged
}

func unionReminders(events []*models.CalendarEvent) []models.Reminder {
	var reminders []models.Reminder
	seen := make(map[string]bool)
	for _, event := range events {
		for _, reminder := range event.Reminders {
			key := fmt.Sprintf("%s-%g", reminder.Type, reminder.Minutes)
			if seen[key] {
				continue
			}
			seen[key] = true
			reminders = append(reminders, reminder)
		}
	}
	sort.SliceStable(reminders, func(i, j int) bool {
		return reminders[i].Minutes > reminders[j].Minutes
	})
	return reminders
}
