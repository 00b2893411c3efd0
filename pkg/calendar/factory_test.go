package calendar

import (
	"context"
	"log/slog"
	"testing"

	"github.com/hekate/calendar-sync/internal/models"
)

type stubTarget struct {
	spec TargetSpec
}

func (s *stubTarget) Name() string { return s.spec.Name }
func (s *stubTarget) Type() string { return "stub" }
func (s *stubTarget) Push(ctx context.Context, event *models.CalendarEvent, externalID string) (*PushOutcome, error) {
	return &PushOutcome{Action: PushCreated, ExternalID: "x"}, nil
}
func (s *stubTarget) Close() error { return nil }

func TestFactory_Sources(t *testing.T) {
	factory := NewFactory()
	factory.RegisterSource("mock", func(spec SourceSpec, logger *slog.Logger) (Source, error) {
		return NewMockSource(spec.Name, "mock"), nil
	})

	source, err := factory.CreateSource("mock", SourceSpec{Name: "feed"}, nil)
	if err != nil {
		t.Fatalf("CreateSource() error: %v", err)
	}
	if source.Name() != "feed" {
		t.Errorf("Expected source name 'feed', got '%s'", source.Name())
	}

	if _, err := factory.CreateSource("caldav", SourceSpec{}, nil); err == nil {
		t.Error("Expected error for unsupported source type")
	}
}

func TestFactory_Targets(t *testing.T) {
	factory := NewFactory()
	factory.RegisterTarget("stub", func(spec TargetSpec, logger *slog.Logger) (Target, error) {
		return &stubTarget{spec: spec}, nil
	})
	factory.RegisterTarget("another", func(spec TargetSpec, logger *slog.Logger) (Target, error) {
		return &stubTarget{spec: spec}, nil
	})

	target, err := factory.CreateTarget("stub", TargetSpec{Name: "agenda", CalendarID: "primary"}, nil)
	if err != nil {
		t.Fatalf("CreateTarget() error: %v", err)
	}
	if target.Name() != "agenda" {
		t.Errorf("Expected target name 'agenda', got '%s'", target.Name())
	}

	types := factory.SupportedTargetTypes()
	if len(types) != 2 || types[0] != "another" || types[1] != "stub" {
		t.Errorf("Expected sorted target types, got %v", types)
	}

	if _, err := factory.CreateTarget("icloud", TargetSpec{}, nil); err == nil {
		t.Error("Expected error for unsupported target type")
	}
}
