package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hekate/calendar-sync/internal/models"
)

// MockSource implements Source for testing
type MockSource struct {
	name       string
	sourceType string
	events     []*models.CalendarEvent
	err        error
	healthy    bool
	closed     bool
}

func NewMockSource(name, sourceType string) *MockSource {
	return &MockSource{
		name:       name,
		sourceType: sourceType,
		healthy:    true,
	}
}

func (m *MockSource) Name() string { return m.name }
func (m *MockSource) Type() string { return m.sourceType }

func (m *MockSource) GetEvents(ctx context.Context, from, to time.Time) ([]*models.CalendarEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.events, nil
}

func (m *MockSource) IsHealthy(ctx context.Context) error {
	if !m.healthy {
		return errors.New("source is unhealthy")
	}
	return nil
}

func (m *MockSource) Close() error {
	m.closed = true
	return nil
}

func TestManagerBasicOperations(t *testing.T) {
	manager := NewManager(nil, nil)

	manager.AddSource(NewMockSource("cursos", "ical"))
	manager.AddSource(NewMockSource("agenda", "google"))

	source, exists := manager.GetSource("cursos")
	if !exists {
		t.Fatal("Expected source to exist after adding")
	}
	if source.Type() != "ical" {
		t.Errorf("Expected source type 'ical', got '%s'", source.Type())
	}

	names := manager.GetSourceList()
	if len(names) != 2 || names[0] != "cursos" || names[1] != "agenda" {
		t.Errorf("Expected sources in insertion order, got %v", names)
	}
}

func TestManagerGetAllEvents(t *testing.T) {
	manager := NewManager(nil, nil)
	now := time.Now()

	cursos := NewMockSource("cursos", "ical")
	cursos.events = []*models.CalendarEvent{
		{ID: "a", Title: "Curso de Tarô", StartTime: now.Add(2 * time.Hour)},
	}
	agenda := NewMockSource("agenda", "google")
	agenda.events = []*models.CalendarEvent{
		{ID: "b", Title: "Mentoria", StartTime: now.Add(time.Hour)},
	}
	broken := NewMockSource("broken", "ical")
	broken.err = errors.New("connection refused")

	manager.AddSource(cursos)
	manager.AddSource(agenda)
	manager.AddSource(broken)

	result, err := manager.GetAllEvents(context.Background(), now, now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Failed to get events: %v", err)
	}

	if len(result.Events) != 2 || result.RawCount != 2 {
		t.Fatalf("Expected 2 events, got %d (raw %d)", len(result.Events), result.RawCount)
	}
	if result.Events[0].Title != "Mentoria" {
		t.Errorf("Expected events sorted by start time, got %s first", result.Events[0].Title)
	}
	if result.Events[0].Source != "agenda" || result.Events[1].Source != "cursos" {
		t.Errorf("Expected events stamped with their source, got %s and %s", result.Events[0].Source, result.Events[1].Source)
	}
}

func TestManagerGetAllEvents_AllSourcesFail(t *testing.T) {
	manager := NewManager(nil, nil)
	broken := NewMockSource("broken", "ical")
	broken.err = errors.New("timeout")
	manager.AddSource(broken)

	if _, err := manager.GetAllEvents(context.Background(), time.Now(), time.Now().Add(time.Hour)); err == nil {
		t.Error("Expected error when every source fails")
	}
}

func TestManagerHealthCheckAndClose(t *testing.T) {
	manager := NewManager(nil, nil)

	healthy := NewMockSource("healthy", "ical")
	unhealthy := NewMockSource("unhealthy", "ical")
	unhealthy.healthy = false
	manager.AddSource(healthy)
	manager.AddSource(unhealthy)

	results := manager.HealthCheck(context.Background())
	if results["healthy"] != nil {
		t.Errorf("Expected healthy source, got error: %v", results["healthy"])
	}
	if results["unhealthy"] == nil {
		t.Error("Expected error for unhealthy source")
	}

	if err := manager.Close(); err != nil {
		t.Fatalf("Unexpected close error: %v", err)
	}
	if !healthy.closed || !unhealthy.closed {
		t.Error("Expected all sources to be closed")
	}
}
