// Package main is the entrypoint for the Platerelay API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/platerelay/platerelay/internal/audit"
	"github.com/platerelay/platerelay/internal/cache"
	"github.com/platerelay/platerelay/internal/config"
	"github.com/platerelay/platerelay/internal/conversation"
	"github.com/platerelay/platerelay/internal/courier"
	"github.com/platerelay/platerelay/internal/handler"
	"github.com/platerelay/platerelay/internal/metrics"
	"github.com/platerelay/platerelay/internal/middleware"
	"github.com/platerelay/platerelay/internal/ratelimit"
	"github.com/platerelay/platerelay/internal/repository"
	"github.com/platerelay/platerelay/internal/server"
	"github.com/platerelay/platerelay/internal/service"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	metricsRecorder := metrics.NewInMemory()

	// Admission control over the message log
	limiter, err := ratelimit.New(repo, cfg.MaxMessagesPerHour)
	if err != nil {
		logger.Error("failed to configure rate limiter", "error", err)
		os.Exit(1)
	}

	// Outbound delivery endpoint
	cr := courier.NewHTTP(courier.Config{
		URL:           cfg.CourierURL,
		Secret:        cfg.CourierSecret,
		Timeout:       cfg.CourierTimeout,
		MaxRetries:    cfg.CourierMaxRetries,
		RatePerSecond: cfg.CourierRatePerSecond,
		Burst:         cfg.CourierBurst,
	}, logger)

	// Delivery audit pipeline (publisher on the send path, worker draining
	// the stream into Postgres)
	deliveryRepo := repository.NewDeliveryLogRepository(repo)

	var auditPublisher *audit.Publisher
	var auditWorker *audit.Worker
	if cfg.AuditEnabled {
		auditPublisher = audit.NewPublisher(cacheClient.Client(), logger, metricsRecorder)
		auditWorker = audit.NewWorker(cacheClient.Client(), deliveryRepo, logger, audit.NewConsumerID(), metricsRecorder)
		auditWorker.SetBatchSize(cfg.AuditBatchSize)
		auditWorker.SetBlockTimeout(cfg.AuditBlockDuration)
	}

	relayService := service.NewRelayService(repo, cacheClient, limiter, cr, auditPublisher, cfg.MessageTemplate, metricsRecorder)

	// Conversation flow tracking for the webhook surface
	flowCtx, stopFlows := context.WithCancel(ctx)
	defer stopFlows()
	flows := conversation.NewTracker(cfg.ConversationTTL)
	flows.StartSweeper(flowCtx, time.Minute)

	// Initialize handlers
	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	plateHandler := handler.NewPlateHandler(relayService, logger)
	messageHandler := handler.NewMessageHandler(relayService, logger)
	updateHandler := handler.NewUpdateHandler(relayService, flows, logger)
	accessKeyHandler := handler.NewAccessKeyHandler(logger, repo)
	adminHandler := handler.NewAdminHandler(repo, deliveryRepo, logger)
	metricsHandler := handler.NewMetricsHandler(metricsRecorder)

	// Setup router
	r := setupRouter(routerDeps{
		hello:      h,
		health:     healthHandler,
		plates:     plateHandler,
		messages:   messageHandler,
		updates:    updateHandler,
		accessKeys: accessKeyHandler,
		admin:      adminHandler,
		metrics:    metricsHandler,
		repo:       repo,
		cache:      cacheClient,
		cfg:        cfg,
		logger:     logger,
	})

	// Create and run server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	if auditWorker != nil {
		go func() {
			if err := auditWorker.Run(context.Background()); err != nil {
				logger.Error("audit worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("audit worker", auditWorker.Shutdown)
	}
	srv.OnShutdown("conversation sweeper", func(context.Context) error {
		stopFlows()
		return nil
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"max_messages_per_hour", cfg.MaxMessagesPerHour,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routerDeps struct {
	hello      *handler.Handler
	health     *handler.HealthHandler
	plates     *handler.PlateHandler
	messages   *handler.MessageHandler
	updates    *handler.UpdateHandler
	accessKeys *handler.AccessKeyHandler
	admin      *handler.AdminHandler
	metrics    *handler.MetricsHandler
	repo       *repository.Repository
	cache      *cache.Cache
	cfg        *config.Config
	logger     *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.Recoverer(d.logger))
	r.Use(middleware.Security(middleware.DefaultSecurityConfig()))
	r.Use(middleware.MaxBodySize(d.cfg.MaxRequestBodySize))

	if origins := d.cfg.GetCORSAllowedOrigins(); len(origins) > 0 {
		corsCfg := middleware.DefaultCORSConfig()
		corsCfg.AllowedOrigins = origins
		r.Use(middleware.CORS(corsCfg))
	}

	// Health and diagnostics endpoints (no auth required)
	r.Get("/healthz", d.health.Healthz)
	r.Get("/readyz", d.health.Readyz)
	r.Get("/metrics", d.metrics.Metrics)

	// Root info endpoint
	r.Get("/", d.hello.Hello)

	// Auth middleware configuration
	authCfg := middleware.AuthConfig{
		Logger:     d.logger,
		Repository: d.repo,
		Cache:      d.cache,
	}

	// Rate limit middleware configuration
	rateLimitCfg := middleware.RateLimitConfig{
		Logger:         d.logger,
		Cache:          d.cache,
		APIEnabled:     d.cfg.RateLimitAPIEnabled,
		APIRPM:         d.cfg.RateLimitRPM,
		APIBurst:       d.cfg.RateLimitBurst,
		WebhookEnabled: d.cfg.RateLimitWebhookEnabled,
		WebhookRPS:     d.cfg.RateLimitWebhookRPS,
		WebhookBurst:   d.cfg.RateLimitWebhookBurst,
	}

	// Chat transport webhook with IP-based rate limiting (no access key;
	// the transport adapter is trusted at the network edge)
	r.With(middleware.RateLimitIP(rateLimitCfg)).Post("/webhook/update", d.updates.Handle)

	// API v1 routes (require authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))
		r.Use(middleware.RateLimitAPI(rateLimitCfg))

		// Plate management
		r.Route("/plates", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", d.plates.List)
			r.With(middleware.RequireWrite()).Post("/", d.plates.Create)
			r.With(middleware.RequireWrite()).Delete("/{number}", d.plates.Delete)
		})

		// Message relay and inbox
		r.Route("/messages", func(r chi.Router) {
			r.With(middleware.RequireSend()).Post("/", d.messages.Send)
			r.With(middleware.RequireSend()).Post("/contact", d.messages.ShareContact)
			r.With(middleware.RequireRead()).Get("/inbox", d.messages.Inbox)
			r.With(middleware.RequireRead()).Get("/quota", d.messages.Quota)
		})

		// Access key management (requires admin scope for mutations)
		r.Route("/access-keys", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", d.accessKeys.List)
			r.With(middleware.RequireAdmin()).Post("/", d.accessKeys.Create)
			r.With(middleware.RequireAdmin()).Delete("/{key_id}", d.accessKeys.Revoke)
			r.With(middleware.RequireAdmin()).Post("/{key_id}/rotate", d.accessKeys.Rotate)
		})

		// Operator lookups
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin())
			r.Get("/plates", d.admin.LookupPlate)
			r.Get("/users", d.admin.LookupUser)
			r.Get("/delivery-stats", d.admin.DeliveryStats)
		})
	})

	// 404 and 405 handlers
	r.NotFound(d.hello.NotFound)
	r.MethodNotAllowed(d.hello.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
