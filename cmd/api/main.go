package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"sharesync/api/internal/config"
	"sharesync/api/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "sharesync",
	Short: "ShareSync collaboration API",
	Long: `ShareSync serves the project collaboration API: accounts, projects,
posts, tasks, files, notifications, points and realtime updates.

Running without a subcommand is the same as "sharesync serve".`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Apply migrations and start the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// loadConfig reads configuration and installs the global logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	logging.SetGlobal(logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr))
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
