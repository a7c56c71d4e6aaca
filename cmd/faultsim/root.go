package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"pico-faultsim/internal/analytics"
	"pico-faultsim/internal/cache"
	"pico-faultsim/internal/config"
	"pico-faultsim/internal/diagnostics"
	"pico-faultsim/internal/fault"
	"pico-faultsim/internal/logging"
	"pico-faultsim/internal/metrics"
	"pico-faultsim/internal/scenario"
)

// version задается при сборке через -ldflags
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	seed       int64
}

var rootCmd = &cobra.Command{
	Use:   "faultsim",
	Short: "Fault-injection simulator for a Raspberry Pi Pico test bench",
	Long: "faultsim injects configurable faults into a virtual Pico (LED, GPIO, ADC, USB, power),\n" +
		"runs diagnostic rounds and reconciles injected faults with detected ones.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configPath, "config", "", "Path to YAML config (default $FAULTSIM_CONFIG)")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	f.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text or json")
	f.Int64Var(&rootFlags.seed, "seed", 0, "RNG seed for every virtual device")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(smokeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(bridgeCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version
}

// app общее окружение команд
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	events  *logging.EventLog
	catalog *scenario.Catalog
	store   *cache.RedisCache
}

// newApp конфигурация, логгер, журнал событий и каталог сценариев
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return nil, err
	}
	if rootFlags.logLevel != "" {
		cfg.Logging.Level = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		cfg.Logging.Format = rootFlags.logFormat
	}
	if cmd.Flags().Changed("seed") {
		cfg.Simulation.Seed = rootFlags.seed
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr()),
	}

	a.events, err = logging.OpenEventLog(cfg.Logging.EventsFile)
	if err != nil {
		return nil, err
	}

	a.catalog, err = scenario.Builtin()
	if err != nil {
		a.Close()
		return nil, err
	}
	for _, path := range cfg.Simulation.ScenarioFiles {
		if err := a.catalog.AddFile(path); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// connectStore подключает Redis, если он включен в конфигурации
func (a *app) connectStore() error {
	if !a.cfg.Redis.Enabled || a.store != nil {
		return nil
	}
	store, err := cache.NewRedisCache(a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB, a.cfg.Redis.Retention)
	if err != nil {
		return fmt.Errorf("report store: %w", err)
	}
	a.store = store
	a.logger.Info("connected to Redis", "addr", a.cfg.Redis.Addr)
	return nil
}

func (a *app) recorder() fault.Recorder {
	return fault.Tee(metrics.Recorder{}, logging.NewSlogRecorder(logging.Component(a.logger, "fault")))
}

func (a *app) runner(opts ...diagnostics.Option) *diagnostics.Runner {
	sim := a.cfg.Simulation
	base := []diagnostics.Option{
		diagnostics.WithSeed(sim.Seed),
		diagnostics.WithRounds(sim.Rounds),
		diagnostics.WithWorkers(sim.Workers),
		diagnostics.WithLenientKinds(!sim.StrictKinds),
		diagnostics.WithRecorder(a.recorder()),
		diagnostics.WithEventLog(a.events),
		diagnostics.WithLogger(logging.Component(a.logger, "diagnostics")),
	}
	if a.store != nil {
		base = append(base, diagnostics.WithSink(a.store))
	}
	return diagnostics.NewRunner(analytics.NewDetector(a.cfg.Detector), append(base, opts...)...)
}

// Close освобождает журнал событий и соединение с Redis
func (a *app) Close() {
	if err := a.events.Close(); err != nil {
		a.logger.Warn("failed to close event log", "error", err)
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close Redis", "error", err)
		}
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "faultsim %s\n", version)
	},
}
