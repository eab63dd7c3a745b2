package cmd

import (
	"strings"

	"github.com/Iron-Ham/wormhole/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "wormhole",
	Short: "Pass messages between processes through shared group containers",
	Long: `Wormhole passes small messages between cooperating processes.

A message is a value stored under an identifier inside an application group
container. Writers pass messages; listeners are told when the value behind an
identifier changes and receive the new payload. Five transports are available:
plain files, lock-coordinated files, and three session transports that push
messages to a live peer.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/wormhole/config.yaml)")
	flags.StringP("group", "g", "", "application group identifier")
	flags.StringP("directory", "d", "", "optional sub-directory inside the group container")
	flags.StringP("transport", "t", "", "transport kind (file, coordinated-file, session-context, session-message, session-file)")
	flags.String("codec", "", "payload codec (json, yaml, toml)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("session-role", "", "this process's session role")
	flags.String("session-peer", "", "the peer's session role")

	bindFlags()
}

// bindFlags binds the global flags to their configuration keys.
func bindFlags() {
	flags := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("messenger.group", flags.Lookup("group"))
	_ = viper.BindPFlag("messenger.directory", flags.Lookup("directory"))
	_ = viper.BindPFlag("messenger.transport", flags.Lookup("transport"))
	_ = viper.BindPFlag("codec", flags.Lookup("codec"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("session.role", flags.Lookup("session-role"))
	_ = viper.BindPFlag("session.peer", flags.Lookup("session-peer"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/wormhole")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(config.EnvPrefix)
	// e.g., WORMHOLE_MESSENGER_GROUP for messenger.group
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
