package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/catalog-console/catalog-console/internal/app"
	"github.com/catalog-console/catalog-console/internal/audit"
	"github.com/catalog-console/catalog-console/internal/auth"
	"github.com/catalog-console/catalog-console/internal/catalog"
	"github.com/catalog-console/catalog-console/internal/credstore"
	"github.com/catalog-console/catalog-console/internal/gateway"
	"github.com/catalog-console/catalog-console/internal/observability"
	"github.com/catalog-console/catalog-console/internal/platform/cache"
	"github.com/catalog-console/catalog-console/internal/shared"
	"github.com/catalog-console/catalog-console/internal/view"
	"github.com/catalog-console/catalog-console/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "catalog_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("load templates", slog.Any("error", err))
		os.Exit(1)
	}
	metrics := observability.NewMetrics()

	verifier, err := auth.NewVerifier(cfg.AuthMode, cfg.AuthUsers)
	if err != nil {
		logger.Error("init verifier", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	var recorder audit.Recorder = audit.NewLogRecorder(logger)
	if cfg.AuditEnabled {
		jobClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		recorder = jobClient
	}

	provider := auth.NewProvider(auth.ProviderConfig{
		Store:    credstore.NewRedis(redisClient, "credentials"),
		Sessions: sessionManager,
		Verifier: verifier,
		TTL:      cfg.CredentialTTL,
		Logger:   logger,
		Listeners: []auth.ListenerFactory{
			audit.ListenerFactory(recorder, logger),
			metrics.AuthListener(),
		},
	})

	gatewayClient, err := gateway.New(gateway.Config{
		BaseURL:    cfg.APIBaseURL,
		Logger:     logger,
		Registerer: metrics.Registerer(),
	})
	if err != nil {
		logger.Error("init catalog gateway", slog.Any("error", err))
		os.Exit(1)
	}

	guard := auth.NewGuard(templates, logger)
	authHandler := auth.NewHandler(logger, templates, csrfManager, guard)
	catalogHandler := catalog.NewHandler(logger, templates, csrfManager, gatewayClient, guard)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthProvider:   provider,
		Guard:          guard,
		AuthHandler:    authHandler,
		CatalogHandler: catalogHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("api_base_url", cfg.APIBaseURL),
			slog.String("auth_mode", cfg.AuthMode),
			slog.Bool("audit", cfg.AuditEnabled),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
