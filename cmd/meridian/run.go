package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meridian-gw/meridian/pkg/config"
	"github.com/meridian-gw/meridian/pkg/gateway"
	"github.com/meridian-gw/meridian/pkg/telemetry"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	noWatch       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Meridian gateway",
	Long: `Start the gateway with the specified configuration.

The gateway listens on the configured address and routes chat completion
requests across the configured providers. The configuration file is watched
for changes and reloaded without dropping in-flight requests.

Examples:
  # Start with default config
  meridian run

  # Start with custom config
  meridian run --config /etc/meridian/config.yaml

  # Override listen address
  meridian run --listen 0.0.0.0:8080

  # Validate config without starting
  meridian run --dry-run`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the gateway")
	runCmd.Flags().BoolVar(&runFlags.noWatch, "no-watch", false, "disable config file watching")
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyFlagOverrides(cfg)

	telemetry.SetupLogging(cfg.Logging.Level, cfg.Logging.Format)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("assembling gateway: %w", err)
	}
	defer gw.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gw.Start(ctx); err != nil {
		return fmt.Errorf("starting gateway: %w", err)
	}

	if !runFlags.noWatch {
		if err := watchConfig(ctx, gw); err != nil {
			slog.Warn("config watching disabled", "error", err)
		}
	}

	slog.Info("meridian starting",
		"version", Version,
		"address", cfg.Server.ListenAddress,
		"providers", gw.Registry().Len(),
		"strategy", cfg.Routing.Strategy,
	)

	srv := gateway.NewServer(gw)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	slog.Info("meridian stopped")
	return nil
}

// watchConfig reloads the gateway whenever the config file changes on disk.
// Invalid files are rejected by the watcher and the running config stays.
func watchConfig(ctx context.Context, gw *gateway.Gateway) error {
	w, err := config.NewWatcher(cfgFile)
	if err != nil {
		return err
	}

	go func() {
		defer w.Close()
		err := w.Watch(ctx, func(cfg *config.Config) {
			applyFlagOverrides(cfg)
			if err := gw.Reload(ctx, cfg); err != nil {
				slog.Error("config reload failed", "error", err)
			}
		})
		if err != nil {
			slog.Error("config watcher stopped", "error", err)
		}
	}()
	return nil
}

// applyFlagOverrides lets command-line flags win over the file for the
// settings they cover, including across reloads.
func applyFlagOverrides(cfg *config.Config) {
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
}
