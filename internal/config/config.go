package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"strava-effort/internal/logging"
	"strava-effort/internal/service"
	"strava-effort/internal/strava"
)

// Config represents the application configuration
type Config struct {
	Strava StravaConfig   `koanf:"strava"`
	Store  StoreConfig    `koanf:"store"`
	Sync   SyncConfig     `koanf:"sync"`
	Log    logging.Config `koanf:"log"`
}

// StravaConfig holds Strava API credentials
type StravaConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	BaseURL      string `koanf:"base_url"`
}

// StoreConfig locates the local cache
type StoreConfig struct {
	Path string `koanf:"path"`
}

// SyncConfig tunes remote fetching
type SyncConfig struct {
	PageSize      int           `koanf:"page_size"`
	BackfillDelay time.Duration `koanf:"backfill_delay"`
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

const (
	placeholderClientID     = "YOUR_CLIENT_ID"
	placeholderClientSecret = "YOUR_CLIENT_SECRET"
	maxPageSize             = 200
)

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Strava: StravaConfig{
			BaseURL: strava.BaseURL,
		},
		Sync: SyncConfig{
			PageSize:      service.DefaultPageSize,
			BackfillDelay: service.DefaultBackfillDelay,
		},
		Log: logging.DefaultConfig(),
	}
}

// Load reads the configuration from ~/.strava-effort/config.yaml
func Load() (*Config, error) {
	path, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the configuration at path on top of DefaultConfig. The
// environment variables in envMappings override the file.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ErrNoConfig
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Store.Path == "" {
		dir, err := GetConfigDir()
		if err != nil {
			return nil, err
		}
		cfg.Store.Path = filepath.Join(dir, "cache.db")
	}

	return &cfg, nil
}

// envMappings maps the environment variables that override the file onto
// config keys. Other variables are ignored.
var envMappings = map[string]string{
	"strava_client_id":             "strava.client_id",
	"strava_client_secret":         "strava.client_secret",
	"strava_base_url":              "strava.base_url",
	"strava_effort_db":             "store.path",
	"strava_effort_page_size":      "sync.page_size",
	"strava_effort_backfill_delay": "sync.backfill_delay",
	"log_level":                    "log.level",
	"log_format":                   "log.format",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// CreateExample creates an example config file if none exists
func CreateExample() error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	example := fmt.Sprintf(`strava:
  client_id: %s
  client_secret: %s
sync:
  page_size: 30
  backfill_delay: 200ms
log:
  level: info
  format: console
`, placeholderClientID, placeholderClientSecret)

	if err := os.WriteFile(path, []byte(example), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks if the config has required fields
func (c *Config) Validate() error {
	if c.Strava.ClientID == "" || c.Strava.ClientID == placeholderClientID {
		return errors.New("strava.client_id is required - get it from https://www.strava.com/settings/api")
	}
	if c.Strava.ClientSecret == "" || c.Strava.ClientSecret == placeholderClientSecret {
		return errors.New("strava.client_secret is required - get it from https://www.strava.com/settings/api")
	}

	if c.Sync.PageSize < 1 || c.Sync.PageSize > maxPageSize {
		return fmt.Errorf("sync.page_size must be between 1 and %d, got %d", maxPageSize, c.Sync.PageSize)
	}
	if c.Sync.BackfillDelay < 0 {
		return fmt.Errorf("sync.backfill_delay must not be negative, got %v", c.Sync.BackfillDelay)
	}

	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("log.format must be \"json\" or \"console\", got %q", c.Log.Format)
	}

	return nil
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".strava-effort"), nil
}
