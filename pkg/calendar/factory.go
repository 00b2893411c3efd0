package calendar

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/hekate/calendar-sync/pkg/privacy"
)

// SourceSpec carries what a source constructor needs from configuration
type SourceSpec struct {
	Name        string
	URL         string
	Username    string
	Password    string
	Credentials string
	Token       string
	TenantID    string
	CalendarIDs []string
}

// TargetSpec carries what a target constructor needs from configuration
type TargetSpec struct {
	Name        string
	CalendarID  string
	URL         string
	Username    string
	Password    string
	Credentials string
	Token       string
	TenantID    string
	Privacy     *privacy.Settings
}

// SourceConstructor builds a source from its spec
type SourceConstructor func(spec SourceSpec, logger *slog.Logger) (Source, error)

// TargetConstructor builds a target from its spec
type TargetConstructor func(spec TargetSpec, logger *slog.Logger) (Target, error)

// Factory creates sources and targets by type
type Factory struct {
	sources map[string]SourceConstructor
	targets map[string]TargetConstructor
}

// NewFactory creates an empty factory
func NewFactory() *Factory {
	return &Factory{
		sources: make(map[string]SourceConstructor),
		targets: make(map[string]TargetConstructor),
	}
}

// RegisterSource registers a source constructor
func (f *Factory) RegisterSource(sourceType string, constructor SourceConstructor) {
	f.sources[sourceType] = constructor
}

// RegisterTarget registers a target constructor
func (f *Factory) RegisterTarget(targetType string, constructor TargetConstructor) {
	f.targets[targetType] = constructor
}

// CreateSource creates a new source instance based on the type
func (f *Factory) CreateSource(sourceType string, spec SourceSpec, logger *slog.Logger) (Source, error) {
	constructor, exists := f.sources[sourceType]
	if !exists {
		return nil, fmt.Errorf("unsupported source type: %s", sourceType)
	}
	return constructor(spec, logger)
}

// CreateTarget creates a new target instance based on the type
func (f *Factory) CreateTarget(targetType string, spec TargetSpec, logger *slog.Logger) (Target, error) {
	constructor, exists := f.targets[targetType]
	if !exists {
		return nil, fmt.Errorf("unsupported target type: %s", targetType)
	}
	return constructor(spec, logger)
}

// SupportedSourceTypes returns the registered source types, sorted
func (f *Factory) SupportedSourceTypes() []string {
	types := make([]string, 0, len(f.sources))
	for sourceType := range f.sources {
		types = append(types, sourceType)
	}
	sort.Strings(types)
	return types
}

// SupportedTargetTypes returns the registered target types, sorted
func (f *Factory) SupportedTargetTypes() []string {
	types := make([]string, 0, len(f.targets))
	for targetType := range f.targets {
		types = append(types, targetType)
	}
	sort.Strings(types)
	return types
}
