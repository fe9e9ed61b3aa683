// Package cmd provides the command-line interface for the ticket relay.
package cmd

import (
	"os"

	"github.com/danielolaszy/ticketrelay/internal/config"
	"github.com/danielolaszy/ticketrelay/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// settings collects flags, environment and the env file.
	settings = config.NewViper()

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ticketrelay",
	Short: "Ticketrelay forwards tickets to an issue tracker",
	Long: `Ticketrelay receives tickets over HTTP and forwards them to a GitHub
repository's issues (or a Jira project). A ticket whose title appears in an
existing issue title updates and closes that issue; otherwise a new issue is
created.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, err := cmd.Flags().GetString("env-file")
		if err != nil {
			return err
		}

		loaded, err := config.Load(settings, envFile)
		if err != nil {
			return err
		}
		cfg = loaded

		logging.SetupLogger(os.Stderr, logging.LogLevel(cfg.Logging.Level), logging.LogFormat(cfg.Logging.Format))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("env-file", config.DefaultEnvFile, "dotenv file with configuration")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("tracker", config.TrackerGitHub, "issue tracker backend (github, jira)")
	rootCmd.PersistentFlags().String("mode", "upsert", "relay mode (upsert, create)")
	rootCmd.PersistentFlags().Int("max-issues", 100, "maximum number of existing issues scanned for a match")

	for key, flag := range map[string]string{
		"log_level":        "log-level",
		"log_format":       "log-format",
		"relay_tracker":    "tracker",
		"relay_mode":       "mode",
		"relay_max_issues": "max-issues",
	} {
		settings.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)) // nolint:errcheck
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
}
