package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	handlers "SafeYatra/internal/handler"
	"SafeYatra/internal/listeners"
	"SafeYatra/internal/service"
	"SafeYatra/internal/store"
	"SafeYatra/pkg/backup"
	"SafeYatra/pkg/cache"
	"SafeYatra/pkg/config"
	"SafeYatra/pkg/logger"
	"SafeYatra/pkg/metrics"
	"SafeYatra/pkg/middleware"
	"SafeYatra/pkg/scheduler"
	"SafeYatra/pkg/search"
	"SafeYatra/pkg/sse"
	"SafeYatra/pkg/storage"
	"SafeYatra/pkg/util"
	ws "SafeYatra/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// components holds everything Run has to tear down.
type components struct {
	store     *store.GormStore
	cache     cache.Cache
	hub       *ws.Hub
	stream    *sse.Hub
	index     search.Engine
	snapshots *store.Snapshotter
	jobs      *scheduler.Scheduler
	cron      *scheduler.Cron
	server    *http.Server
}

func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log, cfg.Mode); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	comps, err := initComponents(appCtx, cfg)
	if err != nil {
		logger.Error("could not init components", zap.Error(err))
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Addr), zap.String("prefix", cfg.APIPrefix))
		if err := comps.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("captured signal, initiating shutdown", zap.String("signal", sig.String()))
	case err = <-errCh:
		logger.Error("http server failed", zap.Error(err))
	}

	comps.shutdown()
	logger.Info("gracefully shut down")
	return err
}

func initComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	gin.SetMode(cfg.Mode)

	db, err := store.Open(os.Stdout, cfg.DBDriver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	c := &components{store: db, jobs: scheduler.New()}

	c.snapshots = store.NewSnapshotter(db, cfg.SnapshotPath)
	if _, err := c.snapshots.Restore(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	if cfg.SeedDemo {
		if _, err := store.SeedDemo(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
	}

	c.cache, err = cache.NewCache(cfg.Cache)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache: %w", err)
	}

	sig := util.NewSignals()
	sig.OnPanic(func(event string, r any) {
		logger.Error("signal handler panicked", zap.String("event", event), zap.Any("panic", r))
	})

	c.index, err = search.New(search.Config{IndexPath: cfg.SearchIndexPath, QueryTimeout: 2 * time.Second}, nil)
	if err != nil {
		c.shutdown()
		return nil, fmt.Errorf("open search index: %w", err)
	}
	zones := service.NewZoneService(db, cfg.ZoneCacheTTL).WithSearch(c.index)
	if err := zones.Reindex(ctx); err != nil {
		c.shutdown()
		return nil, fmt.Errorf("index zones: %w", err)
	}
	deps := handlers.Deps{
		Store:         db,
		Zones:         zones,
		Locations:     service.NewLocationService(db, zones, sig, c.cache, cfg.HighRiskSuppressWindow),
		SOS:           service.NewSOSService(db, sig),
		Notifications: service.NewNotificationService(db, sig),
		Auth:          middleware.NewAuthenticator(cfg.JWTSecret, cfg.JWTExpiresIn, db.GetUser),
		Metrics:       metrics.NewMetrics(),
		Idempotency:   c.cache,
	}

	wsCfg := ws.LoadConfigFromEnv()
	wsCfg.AllowedOrigins = cfg.AllowedOrigins
	c.hub = ws.NewHub(wsCfg)
	c.stream = sse.NewHub(cfg.StreamPingInterval)
	deps.Hub = c.hub
	deps.Stream = c.stream
	listeners.NewRealtime(listeners.Fanout{c.hub, listeners.NewStream(c.stream)}, deps.Metrics).Connect(sig)

	deps.Monitor = metrics.NewSystemMonitor(100, filepath.Dir(cfg.SnapshotPath), deps.Metrics)
	deps.Monitor.Gauge("realtime_sessions", listeners.Sessions(c.hub, deps.Metrics))
	c.jobs.Every("system-stats", cfg.SystemStatsInterval, scheduler.FuncJob(deps.Monitor.Collect))

	c.jobs.Every("snapshot", cfg.SnapshotInterval, scheduler.FuncJob(func(ctx context.Context) {
		start := time.Now()
		err := c.snapshots.Flush(ctx)
		deps.Metrics.RecordSnapshot(time.Since(start), err)
		if err != nil {
			logger.Error("snapshot flush failed", zap.Error(err))
		}
	}))

	if cfg.BackupEnabled {
		c.cron = scheduler.NewCron(time.Local)
		b := backup.New(backup.Config{
			Source:   cfg.SnapshotPath,
			Dir:      cfg.BackupPath,
			Schedule: cfg.BackupSchedule,
			Keep:     cfg.BackupKeep,
		}, c.snapshots.Flush)
		if cfg.BackupOffsite.Enabled() {
			remote, err := storage.NewMinioStore(cfg.BackupOffsite)
			if err != nil {
				c.shutdown()
				return nil, fmt.Errorf("init offsite backup: %w", err)
			}
			b.WithOffsite(remote)
			logger.Info("offsite backup enabled", zap.String("endpoint", cfg.BackupOffsite.Endpoint), zap.String("bucket", cfg.BackupOffsite.Bucket))
		}
		if err := b.Schedule(c.cron); err != nil {
			c.shutdown()
			return nil, fmt.Errorf("schedule backup: %w", err)
		}
		c.cron.Start()
	}

	limiterStore, err := middleware.NewLimiterStore(c.cache)
	if err != nil {
		c.shutdown()
		return nil, fmt.Errorf("init rate limiter: %w", err)
	}
	deps.Limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:         cfg.RateLimit,
		Routes:       cfg.RouteRates(cfg.APIPrefix),
		Identifier:   "ip",
		TrustedCIDRs: cfg.RateLimitTrustedCIDRs,
		SkipPaths:    []string{cfg.APIPrefix + "/health", cfg.APIPrefix + "/metrics", cfg.APIPrefix + "/ws"},
		AddHeaders:   true,
	}, limiterStore).WithObserver(middleware.NewPrometheusObserver(deps.Metrics.Registry()))

	h := handlers.NewHandlers(deps)
	c.hub.SetEventHandler(h)

	engine := gin.New()
	engine.Use(logger.GinLogger(), logger.GinRecovery(true))
	h.Register(engine, cfg.APIPrefix)

	c.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Mode == gin.DebugMode && cfg.SeedDemo {
		for i := range store.DemoUsers {
			u := store.DemoUsers[i]
			if token, _, err := deps.Auth.IssueToken(&u); err == nil {
				logger.Debug("demo token", zap.String("user", u.ID), zap.String("role", string(u.Role)), zap.String("token", token))
			}
		}
	}
	return c, nil
}

// shutdown stops intake first, then background jobs, then writes a final
// snapshot before the store closes.
func (c *components) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			logger.Warn("http server shutdown", zap.Error(err))
		}
	}
	if c.hub != nil {
		c.hub.Close()
	}
	if c.stream != nil {
		c.stream.Close()
	}
	c.jobs.Stop()
	if c.cron != nil {
		c.cron.Stop()
	}
	if c.snapshots != nil {
		if err := c.snapshots.Flush(ctx); err != nil {
			logger.Error("final snapshot failed", zap.Error(err))
		}
	}
	if c.index != nil {
		_ = c.index.Close()
	}
	if c.cache != nil {
		_ = c.cache.Close()
	}
	if err := c.store.Close(); err != nil {
		logger.Warn("store close", zap.Error(err))
	}
}
