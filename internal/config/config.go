// Package config loads thinglink settings from defaults, an optional YAML
// file and THINGLINK_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	fileName  = "thinglink"
	fileType  = "yaml"
	envPrefix = "THINGLINK"

	// FileExt is the name of the config file written by init.
	FileExt = "thinglink.yaml"

	keyBackend          = "backend"
	keyDataDir          = "data_dir"
	keyKeyFile          = "key_file"
	keySchemaFile       = "schema_file"
	keyLogLevel         = "log_level"
	keyBadgerSyncWrites = "badger.sync_writes"
	keyBadgerInMemory   = "badger.in_memory"
)

// Backends lists the supported substrate backends.
var Backends = []string{"sqlite", "badger"}

// LogLevels lists the accepted log_level values.
var LogLevels = []string{"debug", "info", "warn", "error"}

// Config is the resolved configuration.
type Config struct {
	Backend    string       `mapstructure:"backend" yaml:"backend"`
	DataDir    string       `mapstructure:"data_dir" yaml:"data_dir"`
	KeyFile    string       `mapstructure:"key_file" yaml:"key_file,omitempty"`
	SchemaFile string       `mapstructure:"schema_file" yaml:"schema_file,omitempty"`
	LogLevel   string       `mapstructure:"log_level" yaml:"log_level"`
	Badger     BadgerConfig `mapstructure:"badger" yaml:"badger"`
}

// BadgerConfig holds settings of the badger backend.
type BadgerConfig struct {
	SyncWrites bool `mapstructure:"sync_writes" yaml:"sync_writes"`
	InMemory   bool `mapstructure:"in_memory" yaml:"in_memory"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Backend:  "sqlite",
		DataDir:  ".thinglink",
		LogLevel: "warn",
		Badger:   BadgerConfig{SyncWrites: true},
	}
}

func newViper() *viper.Viper {
	d := Default()
	v := viper.New()
	v.SetDefault(keyBackend, d.Backend)
	v.SetDefault(keyDataDir, d.DataDir)
	v.SetDefault(keyKeyFile, "")
	v.SetDefault(keySchemaFile, "")
	v.SetDefault(keyLogLevel, d.LogLevel)
	v.SetDefault(keyBadgerSyncWrites, d.Badger.SyncWrites)
	v.SetDefault(keyBadgerInMemory, d.Badger.InMemory)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load resolves the configuration. An explicit path must exist; otherwise
// thinglink.yaml is searched in ".", ".thinglink" and
// "$HOME/.config/thinglink", and a missing file is not an error.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType(fileType)
		v.AddConfigPath(".")
		v.AddConfigPath(Default().DataDir)
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "thinglink"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.KeyFile == "" {
		cfg.KeyFile = filepath.Join(cfg.DataDir, "agent.key")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown backends and log levels.
func (c *Config) Validate() error {
	if !slices.Contains(Backends, c.Backend) {
		return fmt.Errorf("invalid backend %q: must be one of %v", c.Backend, Backends)
	}
	if !slices.Contains(LogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log_level %q: must be one of %v", c.LogLevel, LogLevels)
	}
	if c.DataDir == "" && !(c.Backend == "badger" && c.Badger.InMemory) {
		return errors.New("data_dir is empty")
	}
	return nil
}

// SlogLevel maps LogLevel onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// StorePath is where the configured backend keeps its data.
func (c *Config) StorePath() string {
	if c.Backend == "badger" {
		return filepath.Join(c.DataDir, "badger")
	}
	return filepath.Join(c.DataDir, "thinglink.db")
}

// YAML renders c as a config file.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	return append([]byte("# thinglink configuration\n"), out...), nil
}

// WriteDefault writes c to path unless a file already exists there. It
// reports whether it wrote.
func (c *Config) WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}
	data, err := c.YAML()
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write config file: %w", err)
	}
	return true, nil
}
