// Package cmd is the inkframe command line.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aouyang1/inkframe/api"
	"github.com/aouyang1/inkframe/config"
	"github.com/aouyang1/inkframe/store"
)

var (
	configPath string
	serverURL  string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "inkframe",
	Short: "Manage a fleet of e-paper photo frames",
	Long: `inkframe indexes the shared and local image trees, switches frames between
their default category and event overrides, and runs the render script for every
frame due to wake up in the coming hour.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for help commands
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		slog.SetDefault(newLogger(cfg))
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("INKFRAME_CONFIG"), "path to the TOML config file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "send the command to a running server instead of acting locally")
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openServices opens the database and wires the shared components. The caller
// closes the returned database.
func openServices() (*api.Services, *store.Database, error) {
	db, err := store.NewDatabase(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return api.NewServices(cfg, db, nil), db, nil
}
