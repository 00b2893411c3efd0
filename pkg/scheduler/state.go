package scheduler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/hekate/calendar-sync/internal/models"
)

// State remembers the external ID each event received on each target,
// keyed by target name and then by EventKey.
type State struct {
	mu      sync.RWMutex
	path    string
	targets map[string]map[string]string
}

type stateFile struct {
	UpdatedAt time.Time                    `json:"updated_at"`
	Targets   map[string]map[string]string `json:"targets"`
}

// NewState creates an empty state. An empty path keeps it in memory only.
func NewState(path string) *State {
	return &State{
		path:    path,
		targets: make(map[string]map[string]string),
	}
}

// LoadState reads the state file, starting fresh when it does not exist yet
func LoadState(path string) (*State, error) {
	state := NewState(path)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sync state: %w", err)
	}

	var file stateFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sync state %s: %w", path, err)
	}
	for target, ids := range file.Targets {
		if ids != nil {
			state.targets[target] = ids
		}
	}
	return state, nil
}

// EventKey identifies an event across runs. Events without an ID fall
// back to their title and start time.
func EventKey(event *models.CalendarEvent) string {
	id := event.ID
	if id == "" {
		id = event.Title + "@" + event.StartTime.UTC().Format(time.RFC3339)
	}
	return event.Source + "/" + id
}

// Get returns the external ID recorded for key on target
func (s *State) Get(target, key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.targets[target][key]
}

// Set records the external ID for key on target
func (s *State) Set(target, key, externalID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.targets[target]
	if !ok {
		ids = make(map[string]string)
		s.targets[target] = ids
	}
	ids[key] = externalID
}

// Len returns the number of events recorded for target
func (s *State) Len(target string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.targets[target])
}

// Save writes the state atomically through a temporary file
func (s *State) Save() error {
	if s.path == "" {
		return nil
	}

	s.mu.RLock()
	data, err := json.MarshalIndent(stateFile{UpdatedAt: time.Now().UTC(), Targets: s.targets}, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode sync state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".sync-state-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write sync state: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace sync state: %w", err)
	}
	return nil
}
