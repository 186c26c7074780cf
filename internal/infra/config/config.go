// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server       ServerConfig            `yaml:"server"`
	Admin        AdminConfig             `yaml:"admin"`
	FlowBeat     FlowBeatConfig          `yaml:"flowbeat"`
	Spotify      SpotifyConfig           `yaml:"spotify"`
	Player       PlayerConfig            `yaml:"player"`
	Stream       StreamConfig            `yaml:"stream"`
	Notification NotificationConfig      `yaml:"notification"`
	Catalogs     []CatalogConfig         `yaml:"catalogs" validate:"dive"`
	Filters      map[string]FilterConfig `yaml:"filters"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// FlowBeatConfig represents the FlowBeat API configuration.
type FlowBeatConfig struct {
	BaseURL         string `yaml:"base_url" default:"http://localhost:8000/api/v1" validate:"required,url"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password" validate:"required_with=Username"`
	TimeoutSec      int    `yaml:"timeout_sec" default:"10" validate:"gte=1,lte=120"`
	ReportQueueSize int    `yaml:"report_queue_size" default:"64" validate:"gte=1"`
}

// SpotifyConfig represents Spotify API configuration. Spotify is optional;
// leaving the client ID empty disables it.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret" validate:"required_with=ClientID"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// Enabled reports whether Spotify credentials are configured.
func (s SpotifyConfig) Enabled() bool {
	return s.ClientID != ""
}

// PlayerConfig represents playback core configuration.
type PlayerConfig struct {
	PrefsPath            string `yaml:"prefs_path" default:"flowbeat-prefs.toml"`
	TimeUpdateIntervalMs int    `yaml:"time_update_interval_ms" default:"1000" validate:"gte=50,lte=60000"`
	LoopBufferSize       int    `yaml:"loop_buffer_size" default:"64" validate:"gte=1"`
}

// StreamConfig represents the HTTP streaming backend configuration.
type StreamConfig struct {
	TickMs         int    `yaml:"tick_ms" default:"250" validate:"gte=10,lte=5000"`
	ReadTimeoutSec int    `yaml:"read_timeout_sec" default:"30" validate:"gte=1"`
	ChunkBytes     int    `yaml:"chunk_bytes" default:"32768" validate:"gte=1024"`
	FallbackKbps   int    `yaml:"fallback_kbps" default:"128" validate:"gte=8"`
	UserAgent      string `yaml:"user_agent" default:"flowbeat-player"`
}

// NotificationConfig represents subscriber fan-out configuration.
type NotificationConfig struct {
	BufferSize int `yaml:"buffer_size" default:"32" validate:"gte=1"`
}

// CatalogConfig represents a single catalog source configuration.
type CatalogConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=flowbeat spotify"`
	Name        string         `yaml:"name" validate:"required"`
	DisplayName string         `yaml:"display_name"`
	Settings    map[string]any `yaml:"settings"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes, applying environment
// overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("FLOWBEAT_BASE_URL"); v != "" {
		c.FlowBeat.BaseURL = v
	}
	if v := os.Getenv("FLOWBEAT_USERNAME"); v != "" {
		c.FlowBeat.Username = v
	}
	if v := os.Getenv("FLOWBEAT_PASSWORD"); v != "" {
		c.FlowBeat.Password = v
	}
	if v := os.Getenv("FLOWBEAT_PREFS_PATH"); v != "" {
		c.Player.PrefsPath = v
	}
	if v := os.Getenv("FLOWBEAT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("FLOWBEAT_TIME_UPDATE_INTERVAL_MS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			c.Player.TimeUpdateIntervalMs = i
		}
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	seen := make(map[string]bool, len(c.Catalogs))
	for i, cat := range c.Catalogs {
		if seen[cat.Name] {
			return errors.Newf("duplicate catalog name %q (catalog index %d)", cat.Name, i)
		}
		seen[cat.Name] = true
		if cat.Type == "spotify" && !c.Spotify.Enabled() {
			return errors.Newf("catalog %q requires spotify credentials", cat.Name)
		}
	}

	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// FilterSettings returns the settings for a filter.
func (c *Config) FilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok && f.Settings != nil {
		return f.Settings
	}
	return map[string]any{}
}

// TimeUpdateInterval returns the minimum spacing of time update notifications.
func (c *Config) TimeUpdateInterval() time.Duration {
	return time.Duration(c.Player.TimeUpdateIntervalMs) * time.Millisecond
}

// FlowBeatTimeout returns the FlowBeat request timeout.
func (c *Config) FlowBeatTimeout() time.Duration {
	return time.Duration(c.FlowBeat.TimeoutSec) * time.Second
}
