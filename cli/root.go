package cli

import (
	"os"

	"github.com/spf13/cobra"

	"postrelay/config"
	"postrelay/logger"
)

var (
	envFile  string
	dataDir  string
	logLevel string

	settings config.Settings
)

var rootCmd = &cobra.Command{
	Use:   "postrelay",
	Short: "WordPress to Instagram and Facebook publishing relay",
	Long: `postrelay receives WordPress publish webhooks, prepares the post's
featured image or a rendered reel, and publishes it to Instagram and
Facebook. Every delivery is queued durably and processed by one worker.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides POSTRELAY_DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
}

func setup(cmd *cobra.Command, args []string) error {
	settings = config.Load(envFile)
	if dataDir != "" {
		os.Setenv("POSTRELAY_DATA_DIR", dataDir)
	}

	if err := logger.Init(settings.LogFile, true); err != nil {
		return err
	}
	level := settings.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logger.SetLevel(logger.ParseLevel(level))
	return nil
}
