package privacy

import (
	"fmt"

	"github.com/hekate/calendar-sync/internal/models"
)

// Field names that can be configured, anonymized or matched by rules
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldLocation    = "location"
	FieldAttendees   = "attendees"
)

// DefaultTitlePlaceholder replaces anonymized titles when no placeholder is configured
const DefaultTitlePlaceholder = "Evento Privado"

// KeywordMode selects how keyword filtering treats matches
type KeywordMode string

const (
	KeywordModeExclude     KeywordMode = "exclude"
	KeywordModeIncludeOnly KeywordMode = "includeOnly"
)

// Operator is the predicate used by an advanced rule
type Operator string

const (
	OperatorContains   Operator = "contains"
	OperatorEquals     Operator = "equals"
	OperatorStartsWith Operator = "startsWith"
	OperatorEndsWith   Operator = "endsWith"
	OperatorRegex      Operator = "regex"
)

// Action is what happens to an event matched by an advanced rule
type Action string

const (
	ActionExclude     Action = "exclude"
	ActionAnonymize   Action = "anonymize"
	ActionIncludeOnly Action = "includeOnly"
)

// FieldSetting controls how a single event field leaves the system.
// Placeholder replaces an anonymized title, description or location;
// attendees are cleared instead, so Validate rejects a placeholder there.
type FieldSetting struct {
	Sync        bool   `yaml:"sync" json:"sync"`
	Anonymize   bool   `yaml:"anonymize" json:"anonymize"`
	Placeholder string `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
}

// FieldSettings holds per-field policy
type FieldSettings struct {
	Title       FieldSetting `yaml:"title" json:"title"`
	Description FieldSetting `yaml:"description" json:"description"`
	Location    FieldSetting `yaml:"location" json:"location"`
	Attendees   FieldSetting `yaml:"attendees" json:"attendees"`
}

// Get returns the setting for the named field
func (f *FieldSettings) Get(field string) (FieldSetting, bool) {
	switch field {
	case FieldTitle:
		return f.Title, true
	case FieldDescription:
		return f.Description, true
	case FieldLocation:
		return f.Location, true
	case FieldAttendees:
		return f.Attendees, true
	default:
		return FieldSetting{}, false
	}
}

// KeywordFiltering configures the keyword gate
type KeywordFiltering struct {
	Enabled  bool        `yaml:"enabled" json:"enabled"`
	Mode     KeywordMode `yaml:"mode" json:"mode"`
	Keywords []string    `yaml:"keywords" json:"keywords"`
}

// SyncDuration is the sync window in days around now
type SyncDuration struct {
	Past   int `yaml:"past" json:"past"`
	Future int `yaml:"future" json:"future"`
}

// TimeSettings configures the time window gate and timestamp rounding.
// SyncBusyStatus is carried for the settings screen and does not change a sync.
type TimeSettings struct {
	SyncDuration   SyncDuration `yaml:"sync_duration" json:"syncDuration"`
	SyncBusyStatus bool         `yaml:"sync_busy_status" json:"syncBusyStatus"`
	RoundToHour    bool         `yaml:"round_to_hour" json:"roundToHour"`
}

// Rule is an advanced privacy rule evaluated against one field
type Rule struct {
	Field    string   `yaml:"field" json:"field"`
	Operator Operator `yaml:"operator" json:"operator"`
	Value    string   `yaml:"value" json:"value"`
	Action   Action   `yaml:"action" json:"action"`
}

// Settings is the privacy policy applied before an event is synced to a provider.
// DefaultVisibility is stored and validated for the settings screen only;
// mappers take visibility from the event itself.
type Settings struct {
	Enabled                bool              `yaml:"enabled" json:"enabled"`
	DefaultVisibility      models.Visibility `yaml:"default_visibility" json:"defaultVisibility"`
	SyncPrivateEvents      bool              `yaml:"sync_private_events" json:"syncPrivateEvents"`
	SyncConfidentialEvents bool              `yaml:"sync_confidential_events" json:"syncConfidentialEvents"`
	AnonymizePrivateEvents bool              `yaml:"anonymize_private_events" json:"anonymizePrivateEvents"`
	FieldSettings          FieldSettings     `yaml:"field_settings" json:"fieldSettings"`
	KeywordFiltering       KeywordFiltering  `yaml:"keyword_filtering" json:"keywordFiltering"`
	TimeSettings           TimeSettings      `yaml:"time_settings" json:"timeSettings"`
	AdvancedRules          []Rule            `yaml:"advanced_rules" json:"advancedRules"`
}

// DefaultSettings returns the policy used when nothing is configured:
// enabled, every field synced as-is, a 30 day past and 365 day future window.
func DefaultSettings() *Settings {
	return &Settings{
		Enabled:                true,
		DefaultVisibility:      models.VisibilityDefault,
		SyncPrivateEvents:      true,
		SyncConfidentialEvents: false,
		AnonymizePrivateEvents: false,
		FieldSettings: FieldSettings{
			Title:       FieldSetting{Sync: true},
			Description: FieldSetting{Sync: true},
			Location:    FieldSetting{Sync: true},
			Attendees:   FieldSetting{Sync: true},
		},
		KeywordFiltering: KeywordFiltering{
			Mode: KeywordModeExclude,
		},
		TimeSettings: TimeSettings{
			SyncDuration: SyncDuration{Past: 30, Future: 365},
		},
	}
}

// Validate checks enumerated values and rule fields
func (s *Settings) Validate() error {
	switch s.DefaultVisibility {
	case "", models.VisibilityDefault, models.VisibilityPublic, models.VisibilityPrivate, models.VisibilityConfidential:
	default:
		return fmt.Errorf("unknown default visibility %q", s.DefaultVisibility)
	}

	switch s.KeywordFiltering.Mode {
	case "", KeywordModeExclude, KeywordModeIncludeOnly:
	default:
		return fmt.Errorf("unknown keyword filtering mode %q", s.KeywordFiltering.Mode)
	}

	if s.FieldSettings.Attendees.Placeholder != "" {
		return fmt.Errorf("field_settings.attendees: placeholder is not supported, anonymized attendees are removed")
	}

	if s.TimeSettings.SyncDuration.Past < 0 || s.TimeSettings.SyncDuration.Future < 0 {
		return fmt.Errorf("sync duration must not be negative")
	}

	for i, rule := range s.AdvancedRules {
		if _, ok := s.FieldSettings.Get(rule.Field); !ok {
			return fmt.Errorf("advanced_rules[%d]: unknown field %q", i, rule.Field)
		}
		switch rule.Operator {
		case OperatorContains, OperatorEquals, OperatorStartsWith, OperatorEndsWith, OperatorRegex:
		default:
			return fmt.Errorf("advanced_rules[%d]: unknown operator %q", i, rule.Operator)
		}
		switch rule.Action {
		case ActionExclude, ActionAnonymize, ActionIncludeOnly:
		default:
			return fmt.Errorf("advanced_rules[%d]: unknown action %q", i, rule.Action)
		}
	}

	return nil
}
