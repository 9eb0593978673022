package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/patient-portal/cmd/mainconfig"
	"github.com/wolfman30/patient-portal/internal/api/router"
	"github.com/wolfman30/patient-portal/internal/app/bootstrap"
	appconfig "github.com/wolfman30/patient-portal/internal/config"
	"github.com/wolfman30/patient-portal/internal/http/handlers"
	"github.com/wolfman30/patient-portal/internal/observability/metrics"
	"github.com/wolfman30/patient-portal/internal/portal"
	"github.com/wolfman30/patient-portal/internal/webchat"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting patient portal API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.PortalJWTSecret == "" {
		if cfg.IsProduction() {
			logger.Error("PORTAL_JWT_SECRET is required in production")
			os.Exit(1)
		}
		cfg.PortalJWTSecret = "dev-portal-secret"
		logger.Warn("PORTAL_JWT_SECRET not set; using development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	var sqlDB *sql.DB
	if pool != nil {
		defer pool.Close()
		sqlDB = stdlib.OpenDBFromPool(pool)
		defer func() { _ = sqlDB.Close() }()
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	var awsCfg *aws.Config
	if loaded, err := mainconfig.LoadAWSConfig(ctx, cfg); err != nil {
		logger.Warn("AWS config unavailable; AWS-backed features disabled", "error", err)
	} else {
		awsCfg = &loaded
	}

	metricsHandler, portalMetrics := setupMetrics()

	app, err := bootstrap.BuildPortal(ctx, cfg, bootstrap.Infra{
		Pool:    pool,
		SQLDB:   sqlDB,
		Redis:   redisClient,
		AWS:     awsCfg,
		Metrics: portalMetrics,
	}, logger)
	if err != nil {
		logger.Error("failed to assemble portal", "error", err)
		os.Exit(1)
	}
	if app.Deliverer != nil {
		go app.Deliverer.Start(ctx)
		logger.Info("intent outbox deliverer started")
	}

	checks := map[string]router.Pinger{}
	if pool != nil {
		checks["postgres"] = pool
	}
	if redisClient != nil {
		checks["redis"] = redisPinger{redisClient}
	}

	r := router.New(&router.Config{
		Logger:             logger,
		Portal:             handlers.NewPortalHandler(app.Portal, cfg.PortalJWTSecret, bootstrap.DefaultTokenTTL(cfg), logger),
		WebChat:            webchat.NewHandler(app.Portal, portal.PublicMessage, logger),
		JWTSecret:          cfg.PortalJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		ReadinessChecks:    checks,
	})

	// WriteTimeout leaves room for a slow completion on POST /portal/chat.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.CompletionTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (http.Handler, *metrics.PortalMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), metrics.NewPortalMetrics(registry)
}

func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if url == "" {
		logger.Warn("DATABASE_URL not set; using in-memory stores")
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("postgres not reachable", "error", err)
		os.Exit(1)
	}
	return pool
}

type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }
