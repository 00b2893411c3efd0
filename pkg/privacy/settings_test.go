package privacy

import (
	"strings"
	"testing"
)

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(s *Settings)
		wantErr string
	}{
		{"defaults", func(s *Settings) {}, ""},
		{"title placeholder", func(s *Settings) { s.FieldSettings.Title.Placeholder = "Ocupado" }, ""},
		{"attendees placeholder", func(s *Settings) { s.FieldSettings.Attendees.Placeholder = "alguem@example.com" }, "attendees"},
		{"unknown visibility", func(s *Settings) { s.DefaultVisibility = "secret" }, "default visibility"},
		{"unknown keyword mode", func(s *Settings) { s.KeywordFiltering.Mode = "maybe" }, "keyword filtering mode"},
		{"negative window", func(s *Settings) { s.TimeSettings.SyncDuration.Past = -1 }, "negative"},
		{"unknown rule field", func(s *Settings) {
			s.AdvancedRules = []Rule{{Field: "organizer", Operator: OperatorEquals, Value: "x", Action: ActionExclude}}
		}, "unknown field"},
		{"unknown rule operator", func(s *Settings) {
			s.AdvancedRules = []Rule{{Field: FieldTitle, Operator: "like", Value: "x", Action: ActionExclude}}
		}, "unknown operator"},
		{"unknown rule action", func(s *Settings) {
			s.AdvancedRules = []Rule{{Field: FieldTitle, Operator: OperatorEquals, Value: "x", Action: "hide"}}
		}, "unknown action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := DefaultSettings()
			tt.modify(settings)

			err := settings.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
