package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq" // PostgreSQL driver

	"verdict/internal/audit"
	"verdict/internal/config"
	"verdict/internal/constants"
	"verdict/internal/logger"
	"verdict/internal/reasoning"
	"verdict/internal/rules"
	"verdict/internal/workflows"
	"verdict/pkg/bootstrap"
	"verdict/pkg/health"
	"verdict/pkg/metrics"
	"verdict/pkg/middleware"
	"verdict/pkg/ratelimit"
	"verdict/pkg/tracing"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type App struct {
	config         *config.Config
	logger         logger.Logger
	base           *bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redisClient    *redis.Client
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config:      cfg,
		logger:      log,
		base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.base.InitBroker(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	if err := a.initServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	tp, err := tracing.Init(a.config.Tracing, "audit-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		a.logger.WarnwCtx(ctx, "Redis connection failed, continuing without decision cache", "error", err)
	} else {
		a.redisClient = redisClient
	}
	return nil
}

// newCompleter builds the reasoning backend. A missing provider is not fatal:
// the service still serves rules and history, and audits degrade to manual
// review.
func (a *App) newCompleter(ctx context.Context) reasoning.Completer {
	client, err := reasoning.NewOpenAIClient(a.config.Reasoning)
	if err != nil {
		a.logger.WarnwCtx(ctx, "Reasoning provider unavailable, audits will require manual review", "error", err)
		return reasoning.Unavailable()
	}
	return reasoning.WithBreaker(client, a.config.CircuitBreaker)
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware("audit-service"))
	}

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.config.Audit.RateLimit.Enabled {
		rateLimitConfig := ratelimit.Config{
			RequestsPerSecond: a.config.Audit.RateLimit.RPS,
			Burst:             a.config.Audit.RateLimit.Burst,
			CleanupInterval:   time.Duration(a.config.Audit.RateLimit.CleanupInterval) * time.Second,
			ClientTTL:         time.Duration(a.config.Audit.RateLimit.MaxAge) * time.Second,
		}
		router.Use(ratelimit.NewLimiter(rateLimitConfig).Middleware())
		metrics.RegisterRateLimitMetrics()
		a.logger.InfowCtx(context.Background(), "Rate limiting enabled", "rps", rateLimitConfig.RequestsPerSecond, "burst", rateLimitConfig.Burst)
	}

	completer := a.newCompleter(context.Background())
	interpreter := reasoning.NewInterpreter(completer, a.config.Reasoning.InterpretTimeout, a.logger)
	reasoner := reasoning.NewReasoner(completer, a.config.Reasoning.EvaluateTimeout, a.logger)

	rulesRepo := rules.NewRepository(a.db)
	rulesSvc := rules.NewService(rulesRepo, interpreter, a.logger)

	workflowsRepo := workflows.NewRepository(a.db)
	workflowsSvc := workflows.NewService(workflowsRepo, a.logger)

	auditRepo := audit.NewRepository(a.db)
	decisionCache := audit.NewDecisionCache(a.redisClient, a.config.Audit.DecisionCacheTTLSeconds, a.logger)
	publisher := audit.NewDecisionEventPublisher(a.base.Producer, a.config.Broker.Kafka, a.logger)
	auditSvc := audit.NewService(auditRepo, workflowsRepo, rulesRepo, reasoner, decisionCache, publisher, a.logger)

	var mutating []gin.HandlerFunc
	if a.config.Auth.Enabled {
		mutating = append(mutating, middleware.APIKeyAuth(a.config.Auth.APIKeys))
	}

	rules.NewHandler(rulesSvc, a.logger).RegisterRoutes(router, mutating...)
	workflows.NewHandler(workflowsSvc, a.logger).RegisterRoutes(router, mutating...)
	audit.NewHandler(auditSvc, a.logger).RegisterRoutes(router, mutating...)

	metrics.RegisterAuditMetrics()
	metrics.RegisterCircuitBreakerMetrics()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	if a.redisClient != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	}
	healthRegistry.Register(health.NewReasoningChecker(a.config.Reasoning.Provider, a.config.Reasoning.APIKey))

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
	return nil
}

func (a *App) initServer() error {
	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Server.Port),
		Handler: a.router,
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.logger.InfowCtx(ctx, "Server listening", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
		}
	}

	errs = append(errs, a.base.ShutdownBroker()...)
	errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient, a.db)...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	a.logger.InfowCtx(ctx, "Server exited successfully")
	return nil
}
