package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix viper uses for environment overrides
// (WORMHOLE_MESSENGER_GROUP, WORMHOLE_LOGGING_LEVEL, ...).
const EnvPrefix = "WORMHOLE"

// Config holds all wormhole configuration
type Config struct {
	Messenger MessengerConfig `mapstructure:"messenger"`
	Groups    GroupsConfig    `mapstructure:"groups"`
	Signal    SignalConfig    `mapstructure:"signal"`
	Session   SessionConfig   `mapstructure:"session"`
	Codec     string          `mapstructure:"codec"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// MessengerConfig selects the group container, optional sub-directory
// and transport kind used by CLI commands.
type MessengerConfig struct {
	// Group is the shared group identifier (e.g. "group.dev.wormhole").
	Group string `mapstructure:"group"`
	// Directory is an optional sub-directory inside the group container.
	Directory string `mapstructure:"directory"`
	// Transport is one of the transport kind names ("file", "coordinated-file", ...).
	Transport string `mapstructure:"transport"`
}

// GroupsConfig controls where group containers live on disk
type GroupsConfig struct {
	// Root overrides the containers root. Empty means the platform default.
	Root string `mapstructure:"root"`
}

// SignalConfig controls change-signal delivery
type SignalConfig struct {
	// Backend is "file" (cross-process, fsnotify) or "local" (in-process only).
	Backend string `mapstructure:"backend"`
	// Dir overrides the signal directory. Empty means <groups root>/.signals.
	Dir string `mapstructure:"dir"`
	// DebounceMs coalesces bursts of posts for the same name.
	DebounceMs int `mapstructure:"debounce_ms"`
}

// SessionConfig controls the session backing the session transport kinds
type SessionConfig struct {
	// Backend is "spool" (cross-process) or "pair" (in-process, used by the demo).
	Backend string `mapstructure:"backend"`
	// Dir is the spool root. Empty means <groups root>/.session/<group>.
	Dir string `mapstructure:"dir"`
	// Role is this process's role in the spool.
	Role string `mapstructure:"role"`
	// Peer is the counterpart role.
	Peer string `mapstructure:"peer"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled turns on file logging (default: false)
	Enabled bool `mapstructure:"enabled"`
	// Level sets the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is where the log file is written. Empty means ConfigDir().
	Dir string `mapstructure:"dir"`
}

// Signal backends
const (
	SignalBackendFile  = "file"
	SignalBackendLocal = "local"
)

// Session backends
const (
	SessionBackendSpool = "spool"
	SessionBackendPair  = "pair"
)

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Messenger: MessengerConfig{
			Transport: "file",
		},
		Signal: SignalConfig{
			Backend:    SignalBackendFile,
			DebounceMs: 50,
		},
		Session: SessionConfig{
			Backend: SessionBackendSpool,
			Role:    "host",
			Peer:    "extension",
		},
		Codec: "json",
		Logging: LoggingConfig{
			Enabled: false,
			Level:   "info",
		},
	}
}

// Debounce returns the signal debounce as a time.Duration (0 means disabled)
func (c *SignalConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// LogDir returns the directory log files are written to
func (c *LoggingConfig) LogDir() string {
	if c.Dir != "" {
		return c.Dir
	}
	return ConfigDir()
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("messenger.group", defaults.Messenger.Group)
	viper.SetDefault("messenger.directory", defaults.Messenger.Directory)
	viper.SetDefault("messenger.transport", defaults.Messenger.Transport)

	viper.SetDefault("groups.root", defaults.Groups.Root)

	viper.SetDefault("signal.backend", defaults.Signal.Backend)
	viper.SetDefault("signal.dir", defaults.Signal.Dir)
	viper.SetDefault("signal.debounce_ms", defaults.Signal.DebounceMs)

	viper.SetDefault("session.backend", defaults.Session.Backend)
	viper.SetDefault("session.dir", defaults.Session.Dir)
	viper.SetDefault("session.role", defaults.Session.Role)
	viper.SetDefault("session.peer", defaults.Session.Peer)

	viper.SetDefault("codec", defaults.Codec)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "wormhole")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wormhole"
	}
	return filepath.Join(home, ".config", "wormhole")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
