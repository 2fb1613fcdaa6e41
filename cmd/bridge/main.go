// deskbridge - chat-to-generator response delivery bridge
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	dockerclient "github.com/docker/docker/client"

	"github.com/deskbridge/deskbridge/internal/api"
	"github.com/deskbridge/deskbridge/internal/bridge"
	"github.com/deskbridge/deskbridge/internal/config"
	"github.com/deskbridge/deskbridge/internal/gen"
	"github.com/deskbridge/deskbridge/internal/health"
	"github.com/deskbridge/deskbridge/internal/monitor"
	"github.com/deskbridge/deskbridge/internal/platform/mattermost"
	"github.com/deskbridge/deskbridge/internal/platform/seencache"
	"github.com/deskbridge/deskbridge/internal/recovery"
	"github.com/deskbridge/deskbridge/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting bridge", "admin_port", cfg.AdminPort, "generator", cfg.GeneratorURL)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	generator := gen.NewClient(cfg.GeneratorURL, logger)
	source := gen.NewWebSocketSource(cfg.WebSocketURL(), logger)
	mon := monitor.New(source, generator, cfg.Monitor, logger)
	registry := monitor.NewRegistry()

	platformClient := mattermost.NewClient(cfg.Mattermost.URL, cfg.Mattermost.BotToken, logger)
	seen := seencache.New(cfg.Seen.MaxEntries, cfg.Seen.TTL)

	// Docker access is optional; without it the generator probe falls back
	// to the debug port alone and container restarts are unavailable.
	dockerCli, err := dockerclient.NewClientWithOpts(dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation())
	if err != nil {
		slog.Warn("Docker client unavailable, container probe and restarts disabled", "error", err)
		dockerCli = nil
	}

	probes := []health.Probe{
		health.FuncProbe("api", generator.Health),
		health.TCPProbe("generator", cfg.Health.DebugPortAddr),
		health.FuncProbe("bridge", platformClient.Ping),
	}
	if dockerCli != nil {
		probes = append(probes, health.DockerProbe("generator_container", cfg.Health.GeneratorContainer, dockerCli, logger))
	}
	tracker := health.NewTracker(probes, cfg.Health.CheckInterval, cfg.Health.CheckTimeout, logger)

	executors := map[string]recovery.Executor{
		"api":    recovery.NewCommandExecutor("systemctl", []string{"restart", "generator-api"}, logger),
		"bridge": recovery.NewInitializeExecutor(generator),
	}
	if dockerCli != nil {
		executors["generator"] = recovery.NewDockerRestartExecutor(dockerCli, cfg.Health.GeneratorContainer, logger)
		executors["generator_container"] = executors["generator"]
	}

	gate := recovery.NewGate(executors, cfg.Health.ManualOnly, cfg.Health.MaxAttempts, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker.OnCycle(func(snap health.Snapshot) {
		gate.Evaluate(ctx, snap)
	})
	tracker.Start(ctx)
	defer tracker.Stop()

	store.StartRetentionWorker(ctx, repo, cfg.Seen.TTL)

	resetHandler := bridge.NewResetHandler(executors, tracker, logger)
	b := bridge.New(cfg, platformClient, platformClient, generator, mon, registry, tracker, resetHandler, repo, seen, logger)

	// Setup admin router.
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	api.NewHandler(repo, tracker, registry).Routes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.AdminPort,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Admin server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Admin server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Run the bridge loop in the foreground when a platform is configured;
	// otherwise only the admin surface is up.
	if cfg.Mattermost.URL != "" {
		if err := b.Run(ctx); err != nil {
			slog.Error("Bridge loop failed", "error", err)
			stop()
		}
	} else {
		slog.Warn("No platform configured, running admin surface only")
	}

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Admin server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Bridge stopped successfully")
}
