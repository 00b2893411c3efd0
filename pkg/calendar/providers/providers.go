package providers

import (
	"github.com/hekate/calendar-sync/pkg/calendar"
	"github.com/hekate/calendar-sync/pkg/calendar/caldav"
	"github.com/hekate/calendar-sync/pkg/calendar/google"
	"github.com/hekate/calendar-sync/pkg/calendar/ical"
	"github.com/hekate/calendar-sync/pkg/calendar/outlook"
)

// InitializeBuiltinProviders registers all built-in sources and targets with the factory
func InitializeBuiltinProviders(factory *calendar.Factory) {
	// Sources
	factory.RegisterSource(ical.ProviderType, ical.NewSource)
	factory.RegisterSource(caldav.ProviderType, caldav.NewSource)
	factory.RegisterSource(google.ProviderType, google.NewSource)
	factory.RegisterSource(outlook.ProviderType, outlook.NewSource)

	// Targets
	factory.RegisterTarget(google.ProviderType, google.NewTarget)
	factory.RegisterTarget(outlook.ProviderType, outlook.NewTarget)
	factory.RegisterTarget(caldav.ProviderType, caldav.NewTarget)
}

// NewFactory returns a factory with every built-in provider registered
func NewFactory() *calendar.Factory {
	factory := calendar.NewFactory()
	InitializeBuiltinProviders(factory)
	return factory
}
