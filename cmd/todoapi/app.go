package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fluxorio/todoapi/handlers"
	"github.com/fluxorio/todoapi/pkg/core"
	"github.com/fluxorio/todoapi/pkg/db"
	obs "github.com/fluxorio/todoapi/pkg/observability/prometheus"
	"github.com/fluxorio/todoapi/pkg/tokens"
	"github.com/fluxorio/todoapi/pkg/web"
	"github.com/fluxorio/todoapi/pkg/web/health"
	"github.com/fluxorio/todoapi/pkg/web/middleware"
	"github.com/fluxorio/todoapi/pkg/web/middleware/auth"
	"github.com/fluxorio/todoapi/pkg/web/middleware/security"
	"github.com/fluxorio/todoapi/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const serviceName = "todoapi"

// app owns every long-lived resource of the server
type app struct {
	cfg       *AppConfig
	logger    core.Logger
	pool      *db.Pool
	redis     *redis.Client
	blacklist tokens.Blacklist
	metrics   *obs.Metrics
	server    *web.FastHTTPServer
}

// newApp opens the database, builds the services and mounts all routes.
// Metrics are registered on registry through m.
func newApp(ctx context.Context, cfg *AppConfig, logger core.Logger, registry *prometheus.Registry, m *obs.Metrics) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: m}

	poolConfig := db.DefaultPoolConfig(cfg.Database.DSN, cfg.Database.Driver)
	poolConfig.MaxOpenConns = cfg.Database.MaxOpenConns
	poolConfig.MaxIdleConns = cfg.Database.MaxIdleConns
	poolConfig.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	pool, err := db.NewPool(poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.pool = pool

	if cfg.Database.AutoMigrate {
		applied, err := db.Migrate(ctx, pool.DB(), pool.Dialect())
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
		if len(applied) > 0 {
			logger.Infof("applied migrations %v", applied)
		}
	}
	if err := m.RegisterDBStats(pool.DB(), serviceName); err != nil {
		logger.Warnf("database pool metrics not registered: %v", err)
	}

	manager, err := tokens.NewManager(tokens.Config{
		SecretKey:  cfg.Auth.SecretKey,
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Tokens.AccessTTL,
		RefreshTTL: cfg.Tokens.RefreshTTL,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.blacklist = tokens.NewSQLBlacklist(pool.DB())
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			logger.Warnf("redis at %s unreachable, blacklist lookups fall back to the database: %v", cfg.Redis.Addr, err)
		}
		cancel()
		a.blacklist = tokens.NewRedisBlacklist(a.blacklist, a.redis, logger)
	}

	users := services.NewUserService(pool.DB())
	authService := services.NewAuthService(users, manager, a.blacklist, logger)
	todoService := services.NewTodoService(pool.DB())

	serverConfig := web.CCUBasedConfigWithUtilization(cfg.Server.Addr, cfg.Server.MaxCCU, cfg.Server.UtilizationPercent)
	a.server = web.NewFastHTTPServer(serverConfig, logger)
	logger.WithFields(map[string]interface{}{
		"max_ccu":         cfg.Server.MaxCCU,
		"normal_capacity": serverConfig.MaxQueue + serverConfig.Workers,
		"utilization":     cfg.Server.UtilizationPercent,
	}).Info("server configured with CCU-based backpressure")

	router := a.server.Router()
	router.SetErrorHandler(handlers.ErrorHandler(logger))
	router.UseFast(a.globalMiddleware()...)

	readiness := health.NewRegistry()
	readiness.Register("database", health.DatabaseCheck(pool))
	readiness.Register("capacity", health.CapacityCheck(a.server, 90))
	router.GETFast("/health", health.LiveHandler(serviceName))
	router.GETFast("/live", health.LiveHandler(serviceName))
	router.GETFast("/ready", readiness.ReadyHandler(5*time.Second))
	if cfg.Metrics.Enabled {
		obs.RegisterMetricsEndpoint(router, cfg.Metrics.Path, registry)
	}

	handlers.RegisterRoutes(router,
		handlers.NewAuthHandler(authService, m),
		handlers.NewTodoHandler(todoService, services.PageSizes{
			Default: cfg.Pagination.PageSize,
			Max:     cfg.Pagination.MaxPageSize,
		}, m),
		auth.Protected(auth.DefaultJWTConfig(manager), authService),
	)
	return a, nil
}

// globalMiddleware runs on every request, outermost first
func (a *app) globalMiddleware() []web.FastMiddleware {
	chain := []web.FastMiddleware{
		middleware.Recovery(middleware.RecoveryConfig{Logger: a.logger, StackTrace: true}),
		middleware.Logging(middleware.LoggingConfig{
			Logger:    a.logger,
			SkipPaths: []string{"/health", "/live", "/ready", a.cfg.Metrics.Path},
		}),
	}
	if a.cfg.Metrics.Enabled {
		chain = append(chain, obs.FastHTTPMetricsMiddleware(a.metrics))
	}

	cors := security.DefaultCORSConfig()
	cors.AllowedOrigins = a.cfg.Server.AllowedOrigins
	chain = append(chain,
		security.Headers(security.DefaultHeadersConfig()),
		security.CORS(cors),
	)

	if a.cfg.RateLimit.Enabled {
		limit := security.DefaultRateLimitConfig()
		limit.RequestsPerMinute = a.cfg.RateLimit.RequestsPerMinute
		limit.Burst = a.cfg.RateLimit.Burst
		limit.SkipPaths = []string{"/health", "/live", "/ready", a.cfg.Metrics.Path}
		chain = append(chain, security.RateLimit(limit))
	}

	return append(chain, middleware.Timeout(middleware.TimeoutConfig{
		Timeout: a.cfg.Server.RequestTimeout,
		Logger:  a.logger,
	}))
}

// run serves until ctx is cancelled or the listener fails, then shuts down
func (a *app) run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("listening on %s", a.server.Addr())
		errCh <- a.server.ListenAndServe()
	}()

	loopCtx, stopLoops := context.WithCancel(ctx)
	defer stopLoops()
	if a.cfg.Metrics.Enabled && a.cfg.Metrics.UpdateInterval > 0 {
		go every(loopCtx, a.cfg.Metrics.UpdateInterval, a.updateServerMetrics)
	}
	if a.cfg.Tokens.BlacklistPurgeInterval > 0 {
		go every(loopCtx, a.cfg.Tokens.BlacklistPurgeInterval, a.purgeBlacklist)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case serveErr = <-errCh:
	}
	stopLoops()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Errorf("shutdown: %v", err)
	}
	a.close()
	return serveErr
}

func (a *app) updateServerMetrics(context.Context) {
	a.metrics.UpdateServerMetrics(a.server.Metrics())
}

func (a *app) purgeBlacklist(ctx context.Context) {
	n, err := a.blacklist.PurgeExpired(ctx, time.Now())
	if err != nil {
		a.logger.Warnf("blacklist purge failed: %v", err)
		return
	}
	a.metrics.RecordBlacklistPurge(n)
	if n > 0 {
		a.logger.Infof("purged %d expired blacklist entries", n)
	}
}

// close releases the database and redis connections
func (a *app) close() {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.pool != nil {
		errs = append(errs, a.pool.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warnf("close: %v", err)
	}
}

// every calls fn each interval until ctx is done
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
