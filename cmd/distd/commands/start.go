package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/marmos91/distd/internal/logger"
	"github.com/marmos91/distd/internal/telemetry"
	"github.com/marmos91/distd/pkg/api"
	"github.com/marmos91/distd/pkg/config"
	"github.com/marmos91/distd/pkg/metrics"
	promMetrics "github.com/marmos91/distd/pkg/metrics/prometheus"
	"github.com/marmos91/distd/pkg/server"
	"github.com/marmos91/distd/pkg/stats"
	"github.com/marmos91/distd/pkg/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	startRoot    string
	startMetrics bool
)

var startCmd = &cobra.Command{
	Use:   "start [host] [port]",
	Short: "Start the file server",
	Long: `Start the distd file server in the foreground.

The optional positional arguments override server.bind_address and
server.port from the configuration. The server stops gracefully on
SIGINT or SIGTERM, telling connected clients it is shutting down.

Examples:
  # Serve the current directory on 0.0.0.0:8888
  distd start

  # Serve /srv/files on localhost:2121 with metrics on :9090
  distd start 127.0.0.1 2121 --root /srv/files --metrics

  # Override config with environment variables
  DISTD_LOGGING_LEVEL=DEBUG distd start`,
	Args: cobra.MaximumNArgs(2),
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&startRoot, "root", "", "Directory to serve (overrides server.root)")
	startCmd.Flags().BoolVar(&startMetrics, "metrics", false, "Enable the metrics/health HTTP endpoint")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustWatch(GetConfigFile(), reloadLogging, func(err error) {
		logger.Warn("Ignoring invalid configuration change", logger.Err(err))
	})
	if err != nil {
		return err
	}

	if err := applyStartOverrides(cfg, args, startRoot, startMetrics); err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, cfg.TelemetryConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		// ctx is cancelled by now; give the exporter its own budget.
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeouts.Shutdown)
		defer cancel()
		if err := telemetryShutdown(flushCtx); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}

	st, err := store.NewOS(cfg.Server.Root)
	if err != nil {
		return fmt.Errorf("failed to open root directory: %w", err)
	}

	agg := stats.New()
	var opts []server.Option
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		if err := promMetrics.RegisterStats(agg); err != nil {
			return fmt.Errorf("failed to register statistics collector: %w", err)
		}
		opts = append(opts, server.WithMetrics(promMetrics.NewServerMetrics()))
	}

	srv := server.New(cfg.ServerConfig(), st, agg, opts...)

	// A bind failure is fatal: surface it before anything else starts.
	if err := srv.Listen(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	fmt.Printf("distd %s serving %s on %s\n", Version, st.Root(), srv.Addr())

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		// The HTTP side has nothing to report once the transfer server is gone.
		defer cancel()
		return srv.Serve(runCtx)
	})

	if cfg.Metrics.Enabled {
		apiServer := api.NewServer(cfg.APIConfig(), api.FromServer(srv))
		g.Go(func() error {
			return apiServer.Start(runCtx)
		})
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")

	if err := g.Wait(); err != nil {
		logger.Error("Server error", logger.Err(err))
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// applyStartOverrides layers positional arguments and flags over cfg and
// re-validates the result.
func applyStartOverrides(cfg *config.Config, args []string, root string, enableMetrics bool) error {
	if len(args) > 0 {
		cfg.Server.BindAddress = args[0]
	}
	if len(args) > 1 {
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", args[1], err)
		}
		cfg.Server.Port = port
	}
	if root != "" {
		cfg.Server.Root = root
	}
	if enableMetrics {
		cfg.Metrics.Enabled = true
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// reloadLogging applies a changed log level without a restart.
func reloadLogging(cfg *config.Config) {
	if cfg.Logging.Level == logger.GetLevel().String() {
		return
	}
	logger.SetLevel(cfg.Logging.Level)
	logger.Info("Log level changed", "level", cfg.Logging.Level)
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
