package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hekate/calendar-sync/pkg/calendar"
	natspub "github.com/hekate/calendar-sync/pkg/nats"
	"github.com/hekate/calendar-sync/pkg/privacy"
	"github.com/hekate/calendar-sync/pkg/retry"
)

// Defaults applied by Load when a value is not configured
const (
	DefaultSchedule  = "*/15 * * * *"
	DefaultStateFile = "calendar-sync-state.json"
)

var (
	sourceTypes = []string{"caldav", "google", "ical", "outlook"}
	targetTypes = []string{"caldav", "google", "outlook"}
)

type Config struct {
	Sources        []SourceConfig              `yaml:"sources"`
	Targets        []TargetConfig              `yaml:"targets"`
	Privacy        *privacy.Settings           `yaml:"privacy"`
	Schedule       string                      `yaml:"schedule"`
	StateFile      string                      `yaml:"state_file"`
	NATS           NATSConfig                  `yaml:"nats"`
	Coordinator    *calendar.CoordinatorConfig `yaml:"coordinator"`
	CircuitBreaker *retry.CircuitBreakerConfig `yaml:"circuit_breaker"`
	Logging        LoggingConfig               `yaml:"logging"`
}

// NATSConfig enables report publishing; without it reports are only logged
type NATSConfig struct {
	Enabled        bool `yaml:"enabled"`
	natspub.Config `yaml:",inline"`
}

type SourceConfig struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	URL         string   `yaml:"url"`
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	Credentials string   `yaml:"credentials"`
	Token       string   `yaml:"token"`
	TenantID    string   `yaml:"tenant_id"`
	CalendarIDs []string `yaml:"calendar_ids"`
}

type TargetConfig struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	CalendarID  string `yaml:"calendar_id"`
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	Credentials string `yaml:"credentials"`
	Token       string `yaml:"token"`
	TenantID    string `yaml:"tenant_id"`

	// Privacy overrides individual keys of the global privacy block
	Privacy yaml.Node `yaml:"privacy"`

	settings *privacy.Settings
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML file at configPath, expanding ${VAR} references
// from the environment before parsing.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes and validates configuration from YAML
func Parse(data []byte) (*Config, error) {
	config := Config{
		Privacy:        privacy.DefaultSettings(),
		NATS:           NATSConfig{Config: *natspub.DefaultConfig()},
		Coordinator:    calendar.DefaultCoordinatorConfig(),
		CircuitBreaker: retry.DefaultCircuitBreakerConfig(),
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target must be configured")
	}

	if c.Privacy == nil {
		c.Privacy = privacy.DefaultSettings()
	}
	if err := c.Privacy.Validate(); err != nil {
		return fmt.Errorf("privacy: %w", err)
	}

	names := make(map[string]bool)
	for i := range c.Sources {
		src := &c.Sources[i]
		if src.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if names[src.Name] {
			return fmt.Errorf("sources[%d]: duplicate name %q", i, src.Name)
		}
		names[src.Name] = true

		if err := checkType(src.Type, sourceTypes); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if err := checkConnection(src.Type, src.URL, src.Username, src.Credentials, src.Token); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
	}

	names = make(map[string]bool)
	for i := range c.Targets {
		tgt := &c.Targets[i]
		if tgt.Name == "" {
			return fmt.Errorf("targets[%d]: name is required", i)
		}
		if names[tgt.Name] {
			return fmt.Errorf("targets[%d]: duplicate name %q", i, tgt.Name)
		}
		names[tgt.Name] = true

		if err := checkType(tgt.Type, targetTypes); err != nil {
			return fmt.Errorf("targets[%d]: %w", i, err)
		}
		if err := checkConnection(tgt.Type, tgt.URL, tgt.Username, tgt.Credentials, tgt.Token); err != nil {
			return fmt.Errorf("targets[%d]: %w", i, err)
		}
		if tgt.Type == "google" && tgt.CalendarID == "" {
			tgt.CalendarID = "primary"
		}

		settings, err := c.targetPrivacy(tgt)
		if err != nil {
			return fmt.Errorf("targets[%d]: privacy: %w", i, err)
		}
		tgt.settings = settings
	}

	if c.Schedule == "" {
		c.Schedule = DefaultSchedule
	}
	if c.StateFile == "" {
		c.StateFile = DefaultStateFile
	}

	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			return fmt.Errorf("NATS URL is required when NATS is enabled")
		}
		if c.NATS.Subject == "" {
			return fmt.Errorf("NATS subject is required when NATS is enabled")
		}
	}

	if c.Coordinator == nil {
		c.Coordinator = calendar.DefaultCoordinatorConfig()
	}
	switch c.Coordinator.MergeStrategy {
	case "":
		c.Coordinator.MergeStrategy = calendar.MergeUnionReminders
	case calendar.MergeKeepFirst, calendar.MergeKeepLast, calendar.MergeUnionReminders:
	default:
		return fmt.Errorf("coordinator: unknown merge strategy %q", c.Coordinator.MergeStrategy)
	}

	if c.CircuitBreaker == nil {
		c.CircuitBreaker = retry.DefaultCircuitBreakerConfig()
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	return nil
}

// targetPrivacy overlays the target's privacy block on a copy of the global settings
func (c *Config) targetPrivacy(tgt *TargetConfig) (*privacy.Settings, error) {
	if tgt.Privacy.IsZero() {
		return c.Privacy, nil
	}

	settings := cloneSettings(c.Privacy)
	if err := tgt.Privacy.Decode(settings); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func cloneSettings(s *privacy.Settings) *privacy.Settings {
	clone := *s
	clone.KeywordFiltering.Keywords = append([]string(nil), s.KeywordFiltering.Keywords...)
	clone.AdvancedRules = append([]privacy.Rule(nil), s.AdvancedRules...)
	return &clone
}

func checkType(value string, known []string) error {
	if value == "" {
		return fmt.Errorf("type is required")
	}
	for _, k := range known {
		if value == k {
			return nil
		}
	}
	return fmt.Errorf("unsupported type %q (expected one of %s)", value, strings.Join(known, ", "))
}

func checkConnection(kind, url, username, credentials, token string) error {
	switch kind {
	case "ical":
		if url == "" {
			return fmt.Errorf("url is required for ical")
		}
	case "caldav":
		if url == "" {
			return fmt.Errorf("url is required for caldav")
		}
		if username == "" {
			return fmt.Errorf("username is required for caldav")
		}
	case "google", "outlook":
		if credentials == "" {
			return fmt.Errorf("credentials path is required for %s", kind)
		}
		if token == "" {
			return fmt.Errorf("token path is required for %s", kind)
		}
	}
	return nil
}

// Spec converts the source entry into a constructor spec
func (s SourceConfig) Spec() calendar.SourceSpec {
	return calendar.SourceSpec{
		Name:        s.Name,
		URL:         s.URL,
		Username:    s.Username,
		Password:    s.Password,
		Credentials: s.Credentials,
		Token:       s.Token,
		TenantID:    s.TenantID,
		CalendarIDs: s.CalendarIDs,
	}
}

// PrivacySettings returns the effective policy for the target
func (t TargetConfig) PrivacySettings() *privacy.Settings {
	return t.settings
}

// Spec converts the target entry into a constructor spec
func (t TargetConfig) Spec() calendar.TargetSpec {
	return calendar.TargetSpec{
		Name:        t.Name,
		CalendarID:  t.CalendarID,
		URL:         t.URL,
		Username:    t.Username,
		Password:    t.Password,
		Credentials: t.Credentials,
		Token:       t.Token,
		TenantID:    t.TenantID,
		Privacy:     t.settings,
	}
}
