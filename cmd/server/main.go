// Chat relay server: persona-injecting proxy in front of a generative-language API.
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

	"github.com/ashureev/chat-relay/internal/api"
	"github.com/ashureev/chat-relay/internal/auth"
	"github.com/ashureev/chat-relay/internal/config"
	"github.com/ashureev/chat-relay/internal/files"
	"github.com/ashureev/chat-relay/internal/identity"
	"github.com/ashureev/chat-relay/internal/middleware"
	"github.com/ashureev/chat-relay/internal/observability"
	"github.com/ashureev/chat-relay/internal/prompt"
	"github.com/ashureev/chat-relay/internal/relay"
	"github.com/ashureev/chat-relay/internal/sanitize"
	"github.com/ashureev/chat-relay/internal/session"
	"github.com/ashureev/chat-relay/internal/store"
	"github.com/ashureev/chat-relay/internal/upstream"
	"github.com/ashureev/chat-relay/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout    = 10 * time.Second
	rateLimiterIdleTTL = 10 * time.Minute
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

	if err := run(cfg, logger); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		return err
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	sessions := session.NewStore(
		session.WithHistoryCap(cfg.Session.HistoryCap),
		session.WithLogger(logger),
	)
	defer sessions.Close()

	client := upstream.New(
		upstream.WithAPIKey(cfg.Upstream.APIKey),
		upstream.WithModel(cfg.Upstream.Model),
		upstream.WithBaseURL(cfg.Upstream.BaseURL),
		upstream.WithTimeout(cfg.Upstream.Timeout),
		upstream.WithLogger(logger),
	)
	if !client.Configured() {
		slog.Warn("GEMINI_API_KEY is not set; chat requests will fail until it is configured")
	}

	relayer, err := relay.New(relay.Config{
		Store:     sessions,
		Assembler: prompt.NewAssembler(prompt.Persona{Name: cfg.Persona.Name, Creator: cfg.Persona.Creator}, cfg.Session.PromptWindow),
		Completer: client,
		Sanitizer: sanitize.ForPersona(cfg.Persona.Name, cfg.Persona.Aliases...),
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	authSvc := auth.NewService(repo, cfg.Auth.TokenSecret, cfg.Auth.TokenTTL, auth.WithLogger(logger))

	storage, err := files.NewStorage(cfg.Upload.Dir, cfg.Upload.MaxBytes, logger)
	if err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, rateLimiterIdleTTL)
	limiter.OnReject(func(key string) {
		metrics.RecordRequest("rate_limited")
		slog.Warn("Rate limit exceeded", "client", key)
	})

	handler := api.NewHandler(api.Deps{
		Chat:         relayer,
		Auth:         authSvc,
		Files:        storage,
		Repo:         repo,
		MaxBodyBytes: cfg.MaxRequestBodySize,
		Logger:       logger,
	})

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware(authSvc))

	handler.RegisterRoutes(r, limiter.Middleware(clientKey))
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Upstream.Timeout + 15*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	session.StartSweeper(gctx, sessions, cfg.Session.SweepInterval, cfg.Session.TTL, func(removed int) {
		metrics.RecordSwept(removed)
		metrics.SetActiveSessions(sessions.Len())
	})

	g.Go(func() error {
		limiter.Run(gctx)
		return nil
	})

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// clientKey throttles authenticated callers by account and everyone else by IP.
func clientKey(r *http.Request) string {
	if userID := identity.UserIDFromContext(r.Context()); userID != "" {
		return "user:" + userID
	}
	return "ip:" + identity.IPFromRequest(r)
}
