package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Iron-Ham/wormhole/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify wormhole configuration",
	Long: `View or modify wormhole configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  wormhole config set messenger.group group.dev.demo
  wormhole config set messenger.transport coordinated-file
  wormhole config set signal.debounce_ms 0

Valid keys:
  messenger.group       - Application group identifier
  messenger.directory   - Optional sub-directory inside the group
  messenger.transport   - file, coordinated-file, session-context,
                          session-message or session-file
  groups.root           - Root directory holding group containers
  signal.backend        - file or local
  signal.dir            - Directory for change signals
  signal.debounce_ms    - Coalescing window for change signals
  session.backend       - spool or pair
  session.dir           - Spool root directory
  session.role          - This process's session role
  session.peer          - The peer's session role
  codec                 - json, yaml or toml
  logging.enabled       - Write a log file (true/false)
  logging.level         - debug, info, warn or error
  logging.dir           - Log file directory`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/wormhole/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// configKeys maps every settable key to its value type.
var configKeys = map[string]string{
	"messenger.group":     "string",
	"messenger.directory": "string",
	"messenger.transport": "string",
	"groups.root":         "string",
	"signal.backend":      "string",
	"signal.dir":          "string",
	"signal.debounce_ms":  "int",
	"session.backend":     "string",
	"session.dir":         "string",
	"session.role":        "string",
	"session.peer":        "string",
	"codec":               "string",
	"logging.enabled":     "bool",
	"logging.level":       "string",
	"logging.dir":         "string",
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintln(out)

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "messenger:")
	fmt.Fprintf(out, "  group: %s\n", cfg.Messenger.Group)
	fmt.Fprintf(out, "  directory: %s\n", cfg.Messenger.Directory)
	fmt.Fprintf(out, "  transport: %s\n", cfg.Messenger.Transport)

	fmt.Fprintln(out, "groups:")
	fmt.Fprintf(out, "  root: %s\n", orDefault(cfg.Groups.Root, "default"))

	fmt.Fprintln(out, "signal:")
	fmt.Fprintf(out, "  backend: %s\n", cfg.Signal.Backend)
	fmt.Fprintf(out, "  dir: %s\n", orDefault(cfg.Signal.Dir, "default"))
	fmt.Fprintf(out, "  debounce_ms: %d\n", cfg.Signal.DebounceMs)

	fmt.Fprintln(out, "session:")
	fmt.Fprintf(out, "  backend: %s\n", cfg.Session.Backend)
	fmt.Fprintf(out, "  dir: %s\n", orDefault(cfg.Session.Dir, "default"))
	fmt.Fprintf(out, "  role: %s\n", cfg.Session.Role)
	fmt.Fprintf(out, "  peer: %s\n", cfg.Session.Peer)

	fmt.Fprintf(out, "codec: %s\n", cfg.Codec)

	fmt.Fprintln(out, "logging:")
	fmt.Fprintf(out, "  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Fprintf(out, "  level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "  dir: %s\n", cfg.Logging.LogDir())

	return nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return "(" + fallback + ")"
	}
	return v
}

// parseConfigValue converts value to the type registered for key.
func parseConfigValue(key, value string) (any, error) {
	keyType, ok := configKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'wormhole config set --help' to see valid keys", key)
	}

	switch keyType {
	case "bool":
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return value == "true", nil
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if intVal < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return intVal, nil
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	typedValue, err := parseConfigValue(key, args[1])
	if err != nil {
		return err
	}

	// Validate the merged result before anything is written
	viper.Set(key, typedValue)
	if _, err := config.Load(); err != nil {
		return err
	}

	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)

	return nil
}

const defaultConfigContent = `# wormhole configuration

# Where messages go
messenger:
  # Application group identifier; create it with: wormhole group add <group>
  group: ""
  # Optional sub-directory inside the group container
  directory: ""
  # file, coordinated-file, session-context, session-message, session-file
  transport: file

groups:
  # Root directory holding group containers (empty: platform default)
  root: ""

# Change signals tell listeners in other processes that a message changed
signal:
  # file (cross-process) or local (this process only)
  backend: file
  # Coalescing window in milliseconds; 0 delivers every signal
  debounce_ms: 50

# Session used by the session-* transports
session:
  # spool (cross-process) or pair (in-process demo only)
  backend: spool
  role: host
  peer: extension

# Payload encoding: json, yaml or toml
codec: json

logging:
  enabled: false
  level: info
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'wormhole config set' to modify values", configFile)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize wormhole's behavior.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. $HOME/.config/wormhole/config.yaml\n")
	fmt.Fprintf(out, "  3. ./config.yaml (current directory)\n")
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_MESSENGER_GROUP)\n", config.EnvPrefix, config.EnvPrefix)

	return nil
}
