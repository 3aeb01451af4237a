package cmd

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aridash/ari/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "ari",
	Short: "Live dashboard for multi-agent sessions",
	Long: `Ari shows a multi-agent session as it happens: the main agent's chat,
each agent's thinking, the task plan with worker progress, and system notices.

Updates from the agents go through a bounded, batching router so the
dashboard stays responsive when agents produce output faster than it can
be drawn.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/ari/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// A .env file in the working directory may set ARI_* variables.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		rootCmd.PrintErrf("Warning: failed to load .env: %v\n", err)
	}

	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ARI")
	// Replace dots with underscores for nested keys in env vars
	// e.g., ARI_UI_QUEUE_CAPACITY for ui.queue_capacity
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
