// Package config resolves keel's settings from defaults, an optional
// config.yaml in the data directory and KEEL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/julianstephens/keel/internal/constants"
	"github.com/julianstephens/keel/internal/temporal"
)

// Config holds the resolved configuration.
type Config struct {
	DataDir  string        `mapstructure:"data_dir"`
	Debug    bool          `mapstructure:"debug"`
	Timezone string        `mapstructure:"timezone"`
	Sync     SyncConfig    `mapstructure:"sync"`
	Storage  StorageConfig `mapstructure:"storage"`
}

type SyncConfig struct {
	// Provider is none, managed or folder.
	Provider string `mapstructure:"provider"`
	// Container is the managed container root, e.g. a cloud drive folder.
	Container string        `mapstructure:"container"`
	Debounce  time.Duration `mapstructure:"debounce"`
}

type StorageConfig struct {
	// ForceFallback skips the relational engine entirely.
	ForceFallback bool `mapstructure:"force_fallback"`
}

// Overrides carries command-line flags, which win over every other source.
type Overrides struct {
	DataDir string
	Debug   bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", constants.DefaultConfigDir)
	v.SetDefault("debug", false)
	v.SetDefault("timezone", constants.DefaultTimezone)
	v.SetDefault("sync.provider", constants.SyncProviderNone)
	v.SetDefault("sync.container", "")
	v.SetDefault("sync.debounce", constants.DefaultSyncDebounce)
	v.SetDefault("storage.force_fallback", false)
}

// Load resolves the configuration. The data directory is decided first,
// from the override, KEEL_DATA_DIR or the default, because config.yaml is
// read from it.
func Load(o Overrides) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dataDir := o.DataDir
	if dataDir == "" {
		dataDir = v.GetString("data_dir")
	}
	dataDir, err := ExpandHome(dataDir)
	if err != nil {
		return nil, err
	}

	v.SetConfigName(constants.ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dataDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.DataDir = dataDir
	if o.Debug {
		cfg.Debug = true
	}
	if cfg.Sync.Container != "" {
		if cfg.Sync.Container, err = ExpandHome(cfg.Sync.Container); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Sync.Provider {
	case constants.SyncProviderNone, constants.SyncProviderManaged, constants.SyncProviderFolder:
	default:
		return fmt.Errorf("invalid sync.provider %q (expected %s, %s or %s)", c.Sync.Provider,
			constants.SyncProviderNone, constants.SyncProviderManaged, constants.SyncProviderFolder)
	}
	if c.Sync.Provider == constants.SyncProviderManaged && c.Sync.Container == "" {
		return fmt.Errorf("sync.container is required for the %s provider", constants.SyncProviderManaged)
	}
	if c.Sync.Debounce <= 0 {
		return fmt.Errorf("sync.debounce must be positive, got %s", c.Sync.Debounce)
	}
	if _, err := temporal.LoadLocation(c.Timezone); err != nil {
		return err
	}
	return nil
}

// Location returns the configured timezone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := temporal.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, constants.DatabaseFileName)
}

func (c *Config) FallbackPath() string {
	return filepath.Join(c.DataDir, constants.FallbackFileName)
}

func (c *Config) WatcherLockPath() string {
	return filepath.Join(c.DataDir, constants.WatcherLockName)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
