package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/agent2000/agent2000/internal/config"
	"github.com/agent2000/agent2000/internal/logging"
	"github.com/agent2000/agent2000/pkg/history"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var rootCmd = &cobra.Command{
	Use:   "agent2000",
	Short: "agent2000 packages and serves the agent helper services",
	Long: `agent2000 renders, verifies and builds the container recipes of the agent UI,
and runs the helper service the image exposes on port 8080.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

var (
	appConfig = config.Default()
	appLogger = logging.NewNop()
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./agent2000.yaml when present)")
	rootCmd.PersistentFlags().String("env-file", "", "Env file loaded before reading the environment (default ./.env)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
}

// configFlags maps config keys to the flags of cmd that override them.
func configFlags(cmd *cobra.Command) map[string]*pflag.Flag {
	bind := map[string]string{
		"log.level":   "log-level",
		"log.format":  "log-format",
		"server.port": "port",
	}
	out := map[string]*pflag.Flag{}
	for key, name := range bind {
		if f := cmd.Flags().Lookup(name); f != nil {
			out[key] = f
		}
	}
	return out
}

func loadConfig(cmd *cobra.Command) error {
	file, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, err := config.Load(config.Options{
		ConfigFile: file,
		EnvFile:    envFile,
		Flags:      configFlags(cmd),
	})
	if err != nil {
		return err
	}
	appConfig = cfg
	appLogger = logging.NewFormat(cfg.Log.Format, cfg.LogLevel())
	slog.SetDefault(appLogger)
	if cfg.File != "" {
		appLogger.Debug("config loaded", "file", cfg.File)
	}
	return nil
}

// openHistory builds the configured store and a manager primed with what the
// store already holds. The returned func releases the store.
func openHistory(ctx context.Context) (*history.Manager, func(), error) {
	store, closeStore, err := appConfig.HistoryStore(ctx, appLogger)
	if err != nil {
		return nil, nil, err
	}
	manager := history.NewManager(appConfig.HistoryManager(),
		history.WithStore(store),
		history.WithLogger(appLogger),
	)
	n, err := manager.LoadFromStore(ctx)
	if err != nil {
		appLogger.Warn("failed to load history", "backend", appConfig.History.Backend, "error", err)
	} else {
		appLogger.Info("history loaded", "backend", appConfig.History.Backend, "entries", n)
	}
	return manager, func() {
		if err := closeStore(); err != nil {
			appLogger.Warn("failed to close history store", "error", err)
		}
	}, nil
}
