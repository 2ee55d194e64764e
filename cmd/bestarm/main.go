package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fractal-lba/bestarm/internal/config"
	"github.com/fractal-lba/bestarm/internal/logger"
	"github.com/fractal-lba/bestarm/internal/metrics"
	"github.com/fractal-lba/bestarm/internal/store"
	"github.com/fractal-lba/bestarm/pkg/otel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile   string
	input        string
	logMode      string
	minReward    float64
	maxReward    float64
	storeBackend string
	snapshotPath string
	metricsAddr  string
	otlpEndpoint string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "bestarm",
		Short: "Best-arm identification over recorded ratings",
		Long: `Replays recorded per-probe ratings as a bandit environment, computes
confidence radii under five concentration bounds, and reports how many
systems each system cannot be separated from.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&opts.input, "input", "i", "", "Ratings CSV (system,utterance,score)")
	rootCmd.PersistentFlags().StringVar(&opts.logMode, "log-mode", "", "Log mode: dev, prod or nop")
	rootCmd.PersistentFlags().Float64Var(&opts.minReward, "min-reward", 0, "Lowest possible rating")
	rootCmd.PersistentFlags().Float64Var(&opts.maxReward, "max-reward", 0, "Highest possible rating")
	rootCmd.PersistentFlags().StringVar(&opts.storeBackend, "store", "", "Report store: none, memory, redis or postgres")
	rootCmd.PersistentFlags().StringVar(&opts.snapshotPath, "snapshot", "", "Memory store snapshot file")
	rootCmd.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	rootCmd.PersistentFlags().StringVar(&opts.otlpEndpoint, "otlp-endpoint", "", "Export traces to this OTLP gRPC collector")

	rootCmd.AddCommand(confidenceCmd(opts))
	rootCmd.AddCommand(statsCmd(opts))
	rootCmd.AddCommand(simulateCmd(opts))

	return rootCmd
}

// app holds the ambient services of one command run.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
	tp      *sdktrace.TracerProvider
	srv     *http.Server
	out     io.Writer
}

// newApp resolves configuration (defaults < file < env < flags) and starts
// logging, metrics and tracing. Subcommand flag overrides run before the
// config is validated.
func newApp(ctx context.Context, cmd *cobra.Command, opts *rootOptions, overrides ...func(*config.Config)) (*app, error) {
	if opts.input == "" {
		return nil, errors.New("--input is required")
	}

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-mode") {
		cfg.LogMode = opts.logMode
	}
	if flags.Changed("min-reward") {
		cfg.MinReward = opts.minReward
	}
	if flags.Changed("max-reward") {
		cfg.MaxReward = opts.maxReward
	}
	if flags.Changed("store") {
		cfg.Store.Backend = opts.storeBackend
	}
	if flags.Changed("snapshot") {
		cfg.Store.SnapshotPath = opts.snapshotPath
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if flags.Changed("otlp-endpoint") {
		cfg.OTLPEndpoint = opts.otlpEndpoint
	}
	for _, override := range overrides {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	a := &app{
		cfg:     cfg,
		log:     log.With("command", cmd.Name()),
		metrics: metrics.New(reg),
		out:     cmd.OutOrStdout(),
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		a.srv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("metrics server failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		a.log.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	if cfg.OTLPEndpoint != "" {
		oc := otel.DefaultConfig("bestarm")
		oc.CollectorEndpoint = cfg.OTLPEndpoint
		tp, err := otel.InitTracer(ctx, oc)
		if err != nil {
			a.log.Warn("tracing disabled", "error", err)
		} else {
			a.tp = tp
		}
	}

	return a, nil
}

func (a *app) Close(ctx context.Context) {
	if a.srv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("metrics server shutdown failed", "error", err)
		}
	}
	if err := otel.Shutdown(ctx, a.tp); err != nil {
		a.log.Warn("tracer shutdown failed", "error", err)
	}
	a.log.Sync()
}

// openStore returns nil for the "none" backend.
func (a *app) openStore() (store.Store, error) {
	sc := a.cfg.Store
	switch sc.Backend {
	case "none":
		return nil, nil
	case "memory":
		a.log.Info("using memory report store", "snapshot", sc.SnapshotPath)
		return store.NewMemoryStore(sc.SnapshotPath)
	case "redis":
		a.log.Info("using redis report store", "addr", sc.RedisAddr)
		return store.NewRedisStore(sc.RedisAddr, sc.RedisPassword, sc.RedisDB)
	case "postgres":
		a.log.Info("using postgres report store")
		return store.NewPostgresStore(sc.PostgresConn)
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", config.ErrInvalidConfig, sc.Backend)
	}
}

// writeTo writes to path, or to fallback when path is empty.
func writeTo(path string, fallback io.Writer, write func(io.Writer) error) error {
	if path == "" {
		return write(fallback)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
