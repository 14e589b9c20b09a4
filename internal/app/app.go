package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"transport-pricing-service/internal/config"
	"transport-pricing-service/internal/database"
	"transport-pricing-service/internal/http/handler"
	appmiddleware "transport-pricing-service/internal/http/middleware"
	"transport-pricing-service/internal/http/response"
	"transport-pricing-service/internal/jobs"
	"transport-pricing-service/internal/observability"
	"transport-pricing-service/internal/pricing"
	"transport-pricing-service/internal/repository"
	"transport-pricing-service/internal/security"
	"transport-pricing-service/internal/service"
	"transport-pricing-service/internal/webhook"
)

// App wires the whole service together. The API binary serves Router; the
// worker binary runs Dispatcher and Reprices.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *gorm.DB
	Redis  *redis.Client

	Router http.Handler

	Dispatcher *jobs.WebhookDispatcher
	Reprices   *jobs.RepriceRunner
}

func New(cfg *config.Config) (*App, error) {
	logger := observability.NewLogger("transport-pricing-service", cfg.Env, cfg.LogLevel)

	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis unreachable at startup, redis-backed features degrade until it recovers",
			"addr", cfg.RedisAddr, "error", err)
	}

	return build(cfg, logger, db, rdb)
}

// build assembles the object graph from already-opened backends.
func build(cfg *config.Config, logger *slog.Logger, db *gorm.DB, rdb *redis.Client) (*App, error) {
	orders := repository.NewOrderRepository(db)
	leads := repository.NewLeadRepository(db)
	tasks := repository.NewWebhookTaskRepository(db)
	audit := repository.NewAuditLogRepository(db)

	orderSvc := service.NewOrderService(db, orders, leads, tasks, audit, logger)
	leadSvc := service.NewLeadService(leads, audit, logger)

	quoteCache := pricing.NewRedisQuoteCache(rdb, "price")
	calculator := pricing.NewCachedCalculator(quoteCache, cfg.PriceCacheTTL, logger)

	repriceQueue := jobs.NewRedisRepriceQueue(rdb, cfg.RepriceQueueKey)

	jwtMgr := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret)

	var limiter appmiddleware.Limiter
	if cfg.RateLimitRedis {
		limiter = appmiddleware.NewRedisFixedWindowLimiter(rdb, "rl")
	} else {
		limiter = appmiddleware.NewLocalFixedWindowLimiter()
	}

	var idemStore service.IdempotencyStore
	if cfg.IdempotencyRedisEnabled {
		idemStore = service.NewRedisIdempotencyStore(rdb, "idemp")
	} else {
		idemStore = service.NewLocalIdempotencyStore()
	}

	router := NewRouter(RouterDeps{
		Config:       cfg,
		Logger:       logger,
		JWT:          jwtMgr,
		Limiter:      limiter,
		Idempotency:  idemStore,
		Leads:        handler.NewLeadHandler(leadSvc),
		Orders:       handler.NewOrderHandler(orderSvc, repriceQueue),
		Quotes:       handler.NewQuoteHandler(calculator),
		WebhookTasks: handler.NewWebhookTaskHandler(tasks),
	})

	deliverer := webhook.NewDeliverer(cfg.WebhookURL, cfg.WebhookTimeout)
	dispatcher := jobs.NewWebhookDispatcher(tasks, deliverer, cfg.WebhookMaxAttempts, cfg.WebhookPollEvery, cfg.WebhookBatchSize, logger)
	reprices := jobs.NewRepriceRunner(repriceQueue, orders, orderSvc, calculator, audit, logger)

	return &App{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Redis:      rdb,
		Router:     router,
		Dispatcher: dispatcher,
		Reprices:   reprices,
	}, nil
}

type RouterDeps struct {
	Config       *config.Config
	Logger       *slog.Logger
	JWT          *security.JWTManager
	Limiter      appmiddleware.Limiter
	Idempotency  service.IdempotencyStore
	Leads        *handler.LeadHandler
	Orders       *handler.OrderHandler
	Quotes       *handler.QuoteHandler
	WebhookTasks *handler.WebhookTaskHandler
}

func NewRouter(deps RouterDeps) http.Handler {
	cfg := deps.Config

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		response.JSON(w, req, http.StatusOK, map[string]string{"status": "ok"})
	})

	rateLimiter := appmiddleware.NewRateLimiter(
		deps.Limiter,
		cfg.RateLimit,
		cfg.RateLimitWindow,
		appmiddleware.FailureMode(cfg.RateLimitMode),
		"api",
		deps.Logger,
	).WithBypass(appmiddleware.NewRequestBypassEvaluator(appmiddleware.RequestBypassConfig{
		EnableInternalProbeBypass: true,
	}))

	idempotency := appmiddleware.NewIdempotency(deps.Idempotency, appmiddleware.IdempotencyConfig{
		TTL:         cfg.IdempotencyTTL,
		WaitTimeout: cfg.IdempotencyWaitTimeout,
	}, deps.Logger)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(appmiddleware.Authenticator(deps.JWT))
		api.Use(rateLimiter.Middleware())
		if cfg.IdempotencyEnabled {
			api.Use(idempotency.Middleware())
		}

		api.Route("/leads", func(rt chi.Router) {
			rt.Post("/", deps.Leads.Create)
			rt.Get("/", deps.Leads.List)
			rt.Get("/{id}", deps.Leads.Get)
		})

		api.Route("/orders", func(rt chi.Router) {
			rt.Post("/", deps.Orders.Create)
			rt.Get("/", deps.Orders.List)
			rt.Get("/{id}", deps.Orders.Get)
			rt.Patch("/{id}", deps.Orders.Update)
			rt.Delete("/{id}", deps.Orders.Delete)
			rt.Post("/{id}/reprice", deps.Orders.Reprice)
		})

		api.Post("/quotes/calc", deps.Quotes.Calc)

		api.Get("/webhook-tasks/stats", deps.WebhookTasks.Stats)
	})

	return r
}

// Close releases the backends. Safe to call once on shutdown.
func (a *App) Close() error {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("closing redis client", "error", err)
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
