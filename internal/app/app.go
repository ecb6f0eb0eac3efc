package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bazarhq/bazar/internal/auth"
	"github.com/bazarhq/bazar/internal/config"
	"github.com/bazarhq/bazar/internal/handlers"
	"github.com/bazarhq/bazar/internal/logger"
	"github.com/bazarhq/bazar/internal/market"
	"github.com/bazarhq/bazar/internal/metrics"
	"github.com/bazarhq/bazar/internal/middleware"
	"github.com/bazarhq/bazar/internal/ratelimit"
	"github.com/bazarhq/bazar/internal/store"
	"github.com/bazarhq/bazar/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// Builder wires bazar application dependencies.
type Builder struct {
	cfg            *config.Config
	version        string
	logger         logger.Logger
	fiberApp       *fiber.App
	store          *store.Store
	users          *market.UserService
	listings       *market.ListingService
	orders         *market.OrderService
	rateLimitSvc   *ratelimit.Service
	tracerProvider *telemetry.TracerProvider
	closers        []func()
}

// NewBuilder creates a new application builder.
func NewBuilder(cfg *config.Config, version string) *Builder {
	return &Builder{cfg: cfg, version: version}
}

// Build assembles the bazar application components.
func (b *Builder) Build(ctx context.Context) (*App, error) {
	b.initLogger()
	b.recordStartupMetrics()
	b.initFiber()
	b.initTracing(ctx)
	b.initMiddleware()

	if err := b.initStore(); err != nil {
		b.cleanupOnError()
		return nil, err
	}

	b.initServices()
	b.initHandlers()

	return &App{
		cfg:          b.cfg,
		version:      b.version,
		logger:       b.logger,
		fiberApp:     b.fiberApp,
		store:        b.store,
		rateLimitSvc: b.rateLimitSvc,
		closers:      b.closers,
	}, nil
}

func (b *Builder) initLogger() {
	b.logger = logger.NewFromConfig(b.cfg.Log.Level, b.cfg.Log.Format)
	logger.SetDefault(b.logger)
}

func (b *Builder) recordStartupMetrics() {
	metrics.BuildInfo.WithLabelValues(b.version, runtime.Version()).Set(1)

	b.logger.Info("Starting bazar",
		logger.String("version", b.version),
		logger.String("address", b.cfg.Address()),
		logger.String("data_root", b.cfg.Store.DataRoot),
		logger.String("log_level", b.cfg.Log.Level),
		logger.String("log_format", b.cfg.Log.Format),
	)
}

func (b *Builder) initFiber() {
	b.fiberApp = fiber.New()
}

func (b *Builder) initTracing(ctx context.Context) {
	tracingCfg := telemetry.TracingConfig{
		Enabled:        b.cfg.Tracing.Enabled,
		Endpoint:       b.cfg.Tracing.Endpoint,
		ServiceName:    b.cfg.Tracing.ServiceName,
		ServiceVersion: b.cfg.Tracing.ServiceVersion,
		Environment:    b.cfg.Tracing.Environment,
		SamplingRatio:  b.cfg.Tracing.SamplingRatio,
		InsecureConn:   b.cfg.Tracing.InsecureConn,
	}

	provider, err := telemetry.InitTracing(ctx, tracingCfg)
	if err != nil {
		b.logger.Error("Failed to initialize tracing", logger.Error(err))
		return
	}

	if b.cfg.Tracing.Enabled {
		b.logger.Info("OpenTelemetry tracing initialized",
			logger.String("endpoint", b.cfg.Tracing.Endpoint),
			logger.String("service_name", b.cfg.Tracing.ServiceName),
		)

		b.addCloser(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				b.logger.Error("Failed to shutdown tracer provider", logger.Error(err))
			}
		})
	}

	b.tracerProvider = provider
}

func (b *Builder) initMiddleware() {
	b.fiberApp.Use(middleware.RequestLogging(b.logger))
	b.fiberApp.Use(middleware.MetricsMiddleware())

	if b.cfg.Tracing.Enabled {
		b.fiberApp.Use(middleware.TracingMiddleware(b.cfg.Tracing.ServiceName))
	}

	if b.cfg.RateLimit.Enabled {
		b.rateLimitSvc = ratelimit.NewService(ratelimit.Config{
			Enabled:         b.cfg.RateLimit.Enabled,
			RequestsPerSec:  b.cfg.RateLimit.RequestsPerSec,
			Burst:           b.cfg.RateLimit.Burst,
			CleanupInterval: b.cfg.RateLimit.CleanupInterval,
		})

		b.fiberApp.Use(middleware.RateLimitMiddleware(b.rateLimitSvc))

		b.logger.Info("Rate limiting enabled",
			logger.Float64("requests_per_sec", b.cfg.RateLimit.RequestsPerSec),
			logger.Int("burst", b.cfg.RateLimit.Burst),
		)
	}
}

func (b *Builder) initStore() error {
	st, err := store.New(b.cfg.Store.DataRoot, store.Options{
		CacheTTL: b.cfg.Store.CacheTTL,
		Backups:  b.cfg.Store.Backups,
		Logger:   b.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize document store: %w", err)
	}

	if err := market.EnsureCollections(st); err != nil {
		return fmt.Errorf("failed to seed collections: %w", err)
	}

	b.store = st
	return nil
}

func (b *Builder) initServices() {
	defaultLocation := market.Location{
		Lat:     b.cfg.Geo.DefaultLatitude,
		Lng:     b.cfg.Geo.DefaultLongitude,
		Address: b.cfg.Geo.DefaultAddress,
	}

	b.users = market.NewUserService(b.store, defaultLocation, b.logger)
	b.listings = market.NewListingService(b.store, b.users, market.ListingLimits{
		MaxPerUser:    b.cfg.Limits.MaxListingsPerUser,
		MaxTags:       b.cfg.Limits.MaxTagsPerListing,
		MaxImages:     b.cfg.Limits.MaxImagesPerListing,
		MaxRadiusKm:   b.cfg.Limits.MaxSearchRadiusKm,
		DefaultRadius: b.cfg.Geo.DefaultRadiusKm,
	}, b.logger)
	b.orders = market.NewOrderService(b.store, b.users, b.listings, b.logger)
}

func (b *Builder) initHandlers() {
	userHandler := handlers.NewUserHandler(b.users)
	listingHandler := handlers.NewListingHandler(b.listings)
	orderHandler := handlers.NewOrderHandler(b.orders)
	healthHandler := handlers.NewHealthHandler(b.store, b.version)

	var jwtService *auth.JWTService
	if b.cfg.Auth.Enabled {
		jwtService = auth.NewJWTService(
			b.cfg.Auth.JWTSecret,
			b.cfg.Auth.JWTExpiry,
			b.cfg.Auth.RefreshExpiry,
			b.cfg.Auth.Issuer,
		)
		authHandler := handlers.NewAuthHandler(b.users, jwtService)

		b.fiberApp.Post("/auth/login", authHandler.Login)
		b.fiberApp.Post("/auth/refresh", authHandler.Refresh)
	}

	b.fiberApp.Get("/health", healthHandler.Check)
	b.fiberApp.Get("/health/live", healthHandler.Liveness)
	b.fiberApp.Get("/health/ready", healthHandler.Readiness)
	b.fiberApp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	b.fiberApp.Post("/users", userHandler.Register)

	if b.cfg.Auth.Enabled {
		b.fiberApp.Use(middleware.JWTAuth(jwtService, append(b.cfg.Auth.PublicPaths, "/users")))
	}

	b.fiberApp.Get("/users/:id", userHandler.Get)
	b.fiberApp.Put("/users/:id", userHandler.Update)
	b.fiberApp.Delete("/users/:id", userHandler.Delete)
	b.fiberApp.Put("/users/:id/location", userHandler.UpdateLocation)
	b.fiberApp.Get("/users/:id/stats", userHandler.Stats)

	suspendChain := []fiber.Handler{userHandler.Suspend}
	activateChain := []fiber.Handler{userHandler.Activate}
	if b.cfg.Auth.Enabled {
		suspendChain = append([]fiber.Handler{middleware.RequireAdmin()}, suspendChain...)
		activateChain = append([]fiber.Handler{middleware.RequireAdmin()}, activateChain...)
	}
	b.fiberApp.Post("/users/:id/suspend", suspendChain...)
	b.fiberApp.Post("/users/:id/activate", activateChain...)

	b.fiberApp.Post("/listings", listingHandler.Create)
	b.fiberApp.Get("/listings", listingHandler.Search)
	b.fiberApp.Get("/listings/nearby", listingHandler.Nearby)
	b.fiberApp.Get("/listings/featured", listingHandler.Featured)
	b.fiberApp.Get("/listings/recent", listingHandler.Recent)
	b.fiberApp.Get("/listings/:id", listingHandler.Get)
	b.fiberApp.Put("/listings/:id", listingHandler.Update)
	b.fiberApp.Delete("/listings/:id", listingHandler.Delete)
	b.fiberApp.Post("/listings/:id/favorite", listingHandler.Favorite)
	b.fiberApp.Post("/listings/:id/rate", listingHandler.Rate)

	b.fiberApp.Post("/orders", orderHandler.Create)
	b.fiberApp.Get("/orders", orderHandler.List)
	b.fiberApp.Get("/orders/:id", orderHandler.Get)
	b.fiberApp.Put("/orders/:id/status", orderHandler.UpdateStatus)
	b.fiberApp.Post("/orders/:id/cancel", orderHandler.Cancel)
}

func (b *Builder) addCloser(closer func()) {
	b.closers = append(b.closers, closer)
}

func (b *Builder) cleanupOnError() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// App represents a configured bazar application ready to run.
type App struct {
	cfg            *config.Config
	version        string
	logger         logger.Logger
	fiberApp       *fiber.App
	store          *store.Store
	rateLimitSvc   *ratelimit.Service
	closers        []func()
	backgroundStop []func()
}

// Run starts the bazar application and handles graceful shutdown.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.logger.Info("Server starting", logger.String("address", a.cfg.Address()))

	a.startBackgroundTasks()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.fiberApp.Listen(a.cfg.Address())
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			a.logger.Error("Failed to start server", logger.Error(err))
			a.stopBackgroundTasks()
			a.runClosers()
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server...")

	a.stopBackgroundTasks()

	if err := a.fiberApp.Shutdown(); err != nil {
		a.logger.Error("Server forced to shutdown", logger.Error(err))
	}

	a.runClosers()

	if err := <-serverErr; err != nil {
		return err
	}

	a.logger.Info("Server exited gracefully")
	return nil
}

func (a *App) startBackgroundTasks() {
	if a.store != nil {
		a.backgroundStop = append(a.backgroundStop, a.startCacheStats())
	}
}

func (a *App) stopBackgroundTasks() {
	for i := len(a.backgroundStop) - 1; i >= 0; i-- {
		a.backgroundStop[i]()
	}
	a.backgroundStop = nil
}

// startCacheStats periodically refreshes the cached documents gauge.
func (a *App) startCacheStats() func() {
	stop := make(chan struct{})

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats := a.store.Stats()
				metrics.StoreCachedDocuments.Set(float64(stats.CachedDocuments))
			case <-stop:
				return
			}
		}
	}()

	return func() { close(stop) }
}

func (a *App) runClosers() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
