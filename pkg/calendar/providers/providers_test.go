package providers

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hekate/calendar-sync/pkg/calendar"
)

func TestInitializeBuiltinProviders(t *testing.T) {
	factory := calendar.NewFactory()

	if types := factory.SupportedSourceTypes(); len(types) != 0 {
		t.Errorf("Expected 0 initial sources, got %d", len(types))
	}

	InitializeBuiltinProviders(factory)

	if diff := cmp.Diff([]string{"caldav", "google", "ical", "outlook"}, factory.SupportedSourceTypes()); diff != "" {
		t.Errorf("source types mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"caldav", "google", "outlook"}, factory.SupportedTargetTypes()); diff != "" {
		t.Errorf("target types mismatch (-want +got):\n%s", diff)
	}
}

func TestInitializeBuiltinProviders_Idempotent(t *testing.T) {
	factory := calendar.NewFactory()
	InitializeBuiltinProviders(factory)
	InitializeBuiltinProviders(factory)

	if got := len(factory.SupportedSourceTypes()); got != 4 {
		t.Errorf("Expected 4 source types after double registration, got %d", got)
	}
}

func TestCreateICalSource(t *testing.T) {
	factory := NewFactory()

	source, err := factory.CreateSource("ical", calendar.SourceSpec{Name: "feed", URL: "https://example.com/calendar.ics"}, nil)
	if err != nil {
		t.Fatalf("Failed to create ical source: %v", err)
	}
	if source.Type() != "ical" || source.Name() != "feed" {
		t.Errorf("unexpected source %s/%s", source.Type(), source.Name())
	}

	// Two sources are independent instances
	other, err := factory.CreateSource("ical", calendar.SourceSpec{Name: "feed", URL: "https://example.com/calendar.ics"}, nil)
	if err != nil {
		t.Fatalf("Failed to create second ical source: %v", err)
	}
	if source == other {
		t.Error("Expected different source instances, got the same")
	}
}

func TestCreateCalDAVTarget(t *testing.T) {
	factory := NewFactory()

	target, err := factory.CreateTarget("caldav", calendar.TargetSpec{
		Name:     "nextcloud",
		URL:      "https://dav.example.com/remote.php/dav/calendars/ana/personal/",
		Username: "ana",
		Password: "secret",
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create caldav target: %v", err)
	}
	if target.Type() != "caldav" {
		t.Errorf("Expected target type 'caldav', got %s", target.Type())
	}
}

func TestCreateErrors(t *testing.T) {
	factory := NewFactory()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"unknown source type", func() error {
			_, err := factory.CreateSource("exchange", calendar.SourceSpec{Name: "x"}, nil)
			return err
		}},
		{"ical is not a target", func() error {
			_, err := factory.CreateTarget("ical", calendar.TargetSpec{Name: "x"}, nil)
			return err
		}},
		{"ical without url", func() error {
			_, err := factory.CreateSource("ical", calendar.SourceSpec{Name: "x"}, nil)
			return err
		}},
		{"google without credentials", func() error {
			_, err := factory.CreateTarget("google", calendar.TargetSpec{Name: "x"}, nil)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
