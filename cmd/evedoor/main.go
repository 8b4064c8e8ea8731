// Eve door simulator
//
// This is the main entry point for the virtual Eve door/contact sensor.
// It hosts a single simulated door that toggles its contact every period,
// drains its battery and keeps an Eve-style usage history, and exposes it
// over MQTT, InfluxDB and a small read-only HTTP status API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-evedoor/internal/api"
	"github.com/nerrad567/gray-logic-evedoor/internal/bridge"
	"github.com/nerrad567/gray-logic-evedoor/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-evedoor/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-evedoor/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-evedoor/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-evedoor/internal/platform"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// defaultConfigPath is used when neither --config nor EVEDOOR_CONFIG is set.
	defaultConfigPath = "configs/config.yaml"

	// shutdownTimeout bounds the platform shutdown after a signal.
	shutdownTimeout = 15 * time.Second

	// Reasons passed to the platform's Start and Shutdown hooks.
	startReason    = "evedoor process started"
	shutdownReason = "evedoor process exiting"
)

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "evedoor",
		Short: "Virtual Eve door/contact sensor",
		Long: `evedoor simulates an Eve door sensor.

The door toggles between open and closed once per period, drains a
simulated battery and records an Eve-style usage history that survives
restarts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPathFrom(cmd))
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to config file (default $EVEDOOR_CONFIG or "+defaultConfigPath+")")

	rootCmd.AddCommand(
		newRunCmd(),
		newVersionCmd(),
		newHistoryCmd(),
	)
	return rootCmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the simulator until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPathFrom(cmd))
		},
	}
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				//nolint:errcheck // Best-effort write to stdout
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
					"version": version,
					"commit":  commit,
					"date":    date,
				})
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "evedoor version %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

// newHistoryCmd prints the persisted history of the door without running
// the simulator. It must not be run against a database in use by a live
// simulator with WAL disabled.
func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the stored usage history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			cfg, err := config.Load(configPathFrom(cmd))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return printHistory(cmd.Context(), cmd.OutOrStdout(), cfg, limit)
		},
	}
	cmd.Flags().Int("limit", 20, "Number of entries to print, newest first")
	return cmd
}

// configPathFrom returns the configuration file path.
// The --config flag wins, then EVEDOOR_CONFIG, then the default.
func configPathFrom(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	if path := os.Getenv("EVEDOOR_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting evedoor",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.SetDebug(cfg.Platform.Debug)
	log.Info("logger initialised",
		"level", log.Level().String(),
		"format", cfg.Logging.Format,
	)

	hostOpts := bridge.Options{
		Config: cfg.Host,
		QoS:    byte(cfg.MQTT.QoS),
		Logger: log.Component("bridge"),
	}
	checks := make(map[string]api.HealthChecker)

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		hostOpts.Metrics = influxClient
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to MQTT broker (optional)
	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker.ClientID == "" {
			cfg.MQTT.Broker.ClientID = "evedoor-" + uuid.NewString()[:8]
		}
		mqttClient, connErr := mqtt.Connect(cfg.MQTT)
		if connErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT session established")
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		hostOpts.MQTT = mqttClient
		hostOpts.Topics = mqttClient.Topics()
		checks["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	host := bridge.New(hostOpts)
	host.Start()
	defer func() {
		log.Info("stopping bridge host")
		host.Stop()
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	plat, err := platform.New(host, cfg.Platform, platform.Options{
		Logger:           log.Component("platform"),
		Database:         cfg.Database,
		Interval:         cfg.Simulation.Interval,
		HistoryQueueSize: cfg.Simulation.HistoryQueueSize,
		HistoryRetention: cfg.Simulation.HistoryRetention,
		Registerer:       registry,
	})
	if err != nil {
		return fmt.Errorf("creating platform: %w", err)
	}

	if err := plat.Start(ctx, startReason); err != nil {
		return fmt.Errorf("starting platform: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := plat.Shutdown(shutdownCtx, shutdownReason); shutdownErr != nil {
			log.Error("error shutting down platform", "error", shutdownErr)
		}
	}()

	if err := plat.Configure(ctx); err != nil {
		return fmt.Errorf("configuring platform: %w", err)
	}

	// Start the status API (optional)
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log.Component("api"),
			Platform: plat,
			Gatherer: registry,
			Checks:   checks,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if apiErr := server.Start(ctx); apiErr != nil {
			return fmt.Errorf("starting API server: %w", apiErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("status API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"device", platform.DeviceName,
		"interval", cfg.Simulation.Interval.String(),
		"state", plat.State(),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server (if enabled)
	// 2. Platform shutdown (stops the timer and flushes history)
	// 3. Bridge host
	// 4. MQTT, then InfluxDB (if enabled)

	return nil
}
