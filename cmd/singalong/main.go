// Command singalong serves the sing-along HTTP API: lyric sheet parsing,
// session management, live lyric following and vocal/backing mixdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/singalong/internal/api"
	"github.com/MrWong99/singalong/internal/config"
	"github.com/MrWong99/singalong/internal/health"
	"github.com/MrWong99/singalong/internal/observe"
	"github.com/MrWong99/singalong/internal/resilience"
	"github.com/MrWong99/singalong/internal/session"
	"github.com/MrWong99/singalong/internal/takestore"
	"github.com/MrWong99/singalong/pkg/mixdown"
)

// version is set at build time with -ldflags "-X main.version=…".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	watch := true
	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "singalong: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "singalong: config file %q not found, using built-in defaults\n", *configPath)
		cfg = config.Default()
		watch = false
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	slog.Info("singalong starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"storage", cfg.Storage.Backend,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(provider.MeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Take store ────────────────────────────────────────────────────────────
	store, checkers, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to open take store", "backend", cfg.Storage.Backend, "err", err)
		return 1
	}
	defer closeStore()

	// ── Sessions ──────────────────────────────────────────────────────────────
	engineOpts := []mixdown.Option{
		mixdown.WithMeterProvider(provider.MeterProvider()),
		mixdown.WithTracerProvider(provider.TracerProvider()),
	}
	sessions := session.NewManager(session.ManagerConfig{
		Engine:  session.NewEngine(cfg.Mix, engineOpts...),
		Store:   takestore.Instrument(store, metrics),
		Metrics: metrics,
	})

	// ── Config hot reload ─────────────────────────────────────────────────────
	if watch {
		w, err := config.NewWatcher(*configPath, func(_, _ *config.Config, d config.ConfigDiff) {
			if d.MixChanged {
				sessions.SetEngine(session.NewEngine(d.NewMix, engineOpts...))
				slog.Info("mix settings reloaded",
					"backing_gain", d.NewMix.BackingGain,
					"vocal_gain", d.NewMix.VocalGain,
					"latency_offset", d.NewMix.LatencyOffset,
				)
			}
			if d.LogLevelChanged {
				level.Set(slogLevel(d.NewLogLevel))
				slog.Info("log level changed", "log_level", d.NewLogLevel)
			}
			if len(d.RestartRequired) > 0 {
				slog.Warn("config changes require a restart", "fields", d.RestartRequired)
			}
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	checks := health.New(checkers...)
	srv := api.New(api.Config{
		Sessions:       sessions,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Health:         checks,
		MetricsHandler: provider.MetricsHandler(),
		Metrics:        metrics,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	printStartupSummary(cfg)
	slog.Info("server ready", "addr", cfg.Server.ListenAddr)

	exitCode := 0
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping…")
	case err := <-serveErr:
		slog.Error("http server failed", "err", err)
		exitCode = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	checks.SetDraining(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Sessions close first so follow streams get a going-away frame before
	// the server stops waiting for hijacked connections.
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		slog.Warn("session shutdown incomplete", "err", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "err", err)
		exitCode = 1
	}

	slog.Info("goodbye")
	return exitCode
}

// openStore opens the configured take store. Database backends sit behind a
// circuit breaker. The returned checkers feed /readyz; closeFn releases the
// backend and is always non-nil.
func openStore(ctx context.Context, sc config.StorageConfig) (takestore.Store, []health.Checker, func(), error) {
	switch sc.Backend {
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, sc.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := takestore.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		guarded := takestore.Guard(store, resilience.Config{Name: "takestore.postgres"})
		return guarded, []health.Checker{
			{Name: "takestore", Check: pool.Ping},
			{Name: "takestore_circuit", Check: guarded.Check},
		}, pool.Close, nil

	case config.StorageSQLite:
		store, err := takestore.OpenSQLite(ctx, sc.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := store.Close(); err != nil {
				slog.Warn("sqlite close error", "err", err)
			}
		}
		guarded := takestore.Guard(store, resilience.Config{Name: "takestore.sqlite"})
		return guarded, []health.Checker{
			{Name: "takestore", Check: store.Ping},
			{Name: "takestore_circuit", Check: guarded.Check},
		}, closeFn, nil

	default:
		return takestore.NewMemStore(), nil, func() {}, nil
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Singalong startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Listen addr", cfg.Server.ListenAddr)
	printRow("Storage", string(cfg.Storage.Backend))
	printRow("Backing gain", fmt.Sprintf("%.2f", cfg.Mix.BackingGain))
	printRow("Vocal gain", fmt.Sprintf("%.2f", cfg.Mix.VocalGain))
	printRow("Latency", cfg.Mix.LatencyOffset.String())
	printRow("Max duration", cfg.Mix.MaxDuration.String())
	printRow("Upload limit", fmt.Sprintf("%d MiB", cfg.Server.MaxUploadBytes>>20))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if value == "" {
		value = "(not set)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
