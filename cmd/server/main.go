package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	warehouseapp "github.com/wms/backend/internal/application/warehouse"
	"github.com/wms/backend/internal/domain/allocation"
	"github.com/wms/backend/internal/infrastructure/cache"
	"github.com/wms/backend/internal/infrastructure/config"
	"github.com/wms/backend/internal/infrastructure/event"
	"github.com/wms/backend/internal/infrastructure/logger"
	"github.com/wms/backend/internal/infrastructure/persistence"
	"github.com/wms/backend/internal/infrastructure/scheduler"
	infrastrategy "github.com/wms/backend/internal/infrastructure/strategy"
	"github.com/wms/backend/internal/infrastructure/telemetry"
	"github.com/wms/backend/internal/interfaces/http/handler"
	"github.com/wms/backend/internal/interfaces/http/middleware"
	"github.com/wms/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting WMS Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize telemetry providers (optional)
	var (
		tracerProvider  *telemetry.TracerProvider
		meterProvider   *telemetry.MeterProvider
		businessMetrics *telemetry.BusinessMetrics
		profiler        *telemetry.Profiler
	)
	if cfg.Telemetry.Enabled {
		tracerProvider, err = telemetry.NewTracerProvider(context.Background(), telemetry.Config{
			Enabled:           true,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			SamplingRatio:     cfg.Telemetry.SamplingRatio,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize tracer provider", zap.Error(err))
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				log.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()

		meterProvider, err = telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
			Enabled:           true,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize meter provider", zap.Error(err))
		}
		defer func() {
			if err := meterProvider.Shutdown(context.Background()); err != nil {
				log.Error("Error shutting down meter provider", zap.Error(err))
			}
		}()

		// Ship structured logs to the collector alongside stdout
		if cfg.Telemetry.LogsEnabled {
			loggerProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
				Enabled:           true,
				CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
				ServiceName:       cfg.Telemetry.ServiceName,
				Insecure:          cfg.Telemetry.Insecure,
			}, log)
			if err != nil {
				log.Fatal("Failed to initialize logger provider", zap.Error(err))
			}
			defer func() {
				if err := loggerProvider.Shutdown(context.Background()); err != nil {
					log.Error("Error shutting down logger provider", zap.Error(err))
				}
			}()
			otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
				ServiceName:    cfg.Telemetry.ServiceName,
				LoggerProvider: loggerProvider,
				Level:          zapcore.InfoLevel,
			})
			log = log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
				return zapcore.NewTee(core, otelCore)
			}))
		}

		// Business-level warehouse metrics fed by domain events plus a
		// periodic gauge collection from the database
		businessMetrics, err = telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
			Meter:             meterProvider.Meter("wms.warehouse"),
			Logger:            log,
			WarehouseProvider: telemetry.NewGormWarehouseMetricsProvider(db.DB),
		})
		if err != nil {
			log.Fatal("Failed to initialize business metrics", zap.Error(err))
		}
		businessMetrics.StartPeriodicCollection(context.Background(), 0)
		defer businessMetrics.Stop()

		// Database query metrics
		dbMetrics, err := telemetry.NewDBMetrics(meterProvider.Meter("wms.db"), telemetry.DefaultDBMetricsConfig(), log)
		if err != nil {
			log.Warn("Failed to initialize database metrics", zap.Error(err))
		} else if err := db.DB.Use(telemetry.NewDBMetricsPlugin(dbMetrics, log)); err != nil {
			log.Warn("Failed to register database metrics plugin", zap.Error(err))
		}

		// Database query tracing
		if cfg.Telemetry.DBTraceEnabled {
			dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
				Enabled:         true,
				LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
				SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			}, log)
			if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
				log.Warn("Failed to register database tracing", zap.Error(err))
			}
		}

		// Continuous profiling
		if cfg.Telemetry.ProfilingEnabled {
			profiler, err = telemetry.NewProfiler(telemetry.ProfilerConfig{
				Enabled:           true,
				ServerAddress:     cfg.Telemetry.ProfilingServerAddr,
				ApplicationName:   cfg.Telemetry.ServiceName,
				ProfileCPU:        true,
				ProfileAllocSpace: true,
				ProfileInuseSpace: true,
				ProfileGoroutines: true,
			}, log)
			if err != nil {
				log.Fatal("Failed to initialize profiler", zap.Error(err))
			}
			defer func() {
				if err := profiler.Stop(); err != nil {
					log.Error("Error stopping profiler", zap.Error(err))
				}
			}()
			if err := tracerProvider.EnableSpanProfiles(); err != nil {
				log.Warn("Failed to enable span profiles", zap.Error(err))
			}
		}

		log.Info("Telemetry initialized",
			zap.String("collector_endpoint", cfg.Telemetry.CollectorEndpoint),
			zap.Float64("sampling_ratio", cfg.Telemetry.SamplingRatio),
			zap.Bool("db_tracing", cfg.Telemetry.DBTraceEnabled),
			zap.Bool("profiling", cfg.Telemetry.ProfilingEnabled),
		)
	}

	// Initialize repositories
	locationRepo := persistence.NewGormStorageLocationRepository(db.DB)
	reservationRepo := persistence.NewGormCapacityReservationRepository(db.DB)

	// Transaction scope shared by all warehouse write paths
	scope := persistence.NewGormTransactionScope(db.DB)

	// Idempotency store for posting guards (Redis with in-memory fallback)
	idempotencyFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	idempotencyStore, err := idempotencyFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	// Initialize application services
	jobService := warehouseapp.NewJobService(warehouseapp.Config{
		Allocation: allocation.Config{
			PickPolicy:          allocation.PolicyType(cfg.Warehouse.PickPolicy),
			Placement:           allocation.PlacementPolicy(cfg.Warehouse.PlacementPolicy),
			ReservationTTL:      cfg.Warehouse.ReservationTTL,
			DefaultUnitTypeCode: cfg.Warehouse.DefaultUnitTypeCode,
			MaxCapacityRetries:  cfg.Warehouse.MaxCapacityRetries,
		},
		InboundDockCode:  cfg.Warehouse.InboundDockCode,
		OutboundDockCode: cfg.Warehouse.OutboundDockCode,
		PostingGuardTTL:  cfg.Warehouse.PostingGuardTTL,
	}, scope, idempotencyStore, log)
	locationService := warehouseapp.NewLocationService(scope, log)
	handlingUnitService := warehouseapp.NewHandlingUnitService(scope, log)
	occupancyService := warehouseapp.NewOccupancyService(scope, log)
	reservationExpirationService := warehouseapp.NewReservationExpirationService(reservationRepo, locationRepo, log)

	// Initialize event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)

	if businessMetrics != nil {
		metricsHandler := warehouseapp.NewMetricsEventHandler(businessMetrics, log)
		eventBus.Subscribe(metricsHandler)
		log.Info("Event handlers registered",
			zap.Strings("metrics_events", metricsHandler.EventTypes()),
		)
	}

	// Start event bus
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Inject event bus into services that publish events
	jobService.SetEventPublisher(eventBus)
	occupancyService.SetEventPublisher(eventBus)
	reservationExpirationService.SetEventPublisher(eventBus)

	// Recompute committed occupancy from the ledger before serving traffic
	if cfg.Warehouse.RebuildOnStartup {
		stats, err := occupancyService.Rebuild(context.Background())
		if err != nil {
			log.Fatal("Failed to rebuild occupancy", zap.Error(err))
		}
		log.Info("Occupancy rebuilt from ledger",
			zap.Int("locations_scanned", stats.LocationsScanned),
			zap.Int("locations_changed", stats.LocationsChanged),
			zap.Int("failures", stats.Failures),
		)
	}

	// Start reservation sweeper (releases expired soft holds)
	sweeperConfig := scheduler.DefaultReservationSweeperConfig()
	sweeperConfig.Enabled = cfg.Sweeper.Enabled
	if cfg.Sweeper.CheckInterval > 0 {
		sweeperConfig.CheckInterval = cfg.Sweeper.CheckInterval
	}
	sweeper := scheduler.NewReservationSweeper(sweeperConfig, reservationExpirationService, log)
	if err := sweeper.Start(context.Background()); err != nil {
		log.Fatal("Failed to start reservation sweeper", zap.Error(err))
	}
	defer func() {
		if err := sweeper.Stop(context.Background()); err != nil {
			log.Error("Error stopping reservation sweeper", zap.Error(err))
		}
	}()

	// Strategy registry exposing the built-in lot selection and placement
	// strategies over the system API
	strategyRegistry, err := infrastrategy.NewRegistryWithDefaults()
	if err != nil {
		log.Fatal("Failed to initialize strategy registry", zap.Error(err))
	}

	// Initialize HTTP handlers
	jobHandler := handler.NewJobHandler(jobService)
	balanceHandler := handler.NewBalanceHandler(jobService)
	locationHandler := handler.NewLocationHandler(locationService, handlingUnitService)
	handlingUnitHandler := handler.NewHandlingUnitHandler(handlingUnitService)
	strategyHandler := handler.NewStrategyHandler(strategyRegistry)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Tracing - OpenTelemetry spans (if enabled)
	// 4. Logger - Log requests
	// 5. Security - Add security headers
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	// 8. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.SpanErrorMarker())
	}
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// HTTP request metrics and profiling labels (if enabled)
	if meterProvider != nil {
		engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			ServiceName:   cfg.Telemetry.ServiceName,
			Enabled:       true,
		}))
	}
	if profiler != nil && profiler.IsEnabled() {
		engine.Use(middleware.Profiling())
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Warehouse jobs (create, allocate, post, cancel)
	jobRoutes := router.NewDomainGroup("jobs", "/jobs")
	jobRoutes.POST("", jobHandler.Create)
	jobRoutes.GET("", jobHandler.List)
	jobRoutes.GET("/:id", jobHandler.GetByID)
	jobRoutes.POST("/:id/allocate", jobHandler.Allocate)
	jobRoutes.POST("/:id/post/:phase", jobHandler.PostPhase)
	jobRoutes.POST("/:id/cancel", jobHandler.Cancel)

	// Stock balances derived from the ledger
	balanceRoutes := router.NewDomainGroup("balances", "/balances")
	balanceRoutes.GET("", balanceHandler.GetBalance)

	// Storage locations and capacity figures
	locationRoutes := router.NewDomainGroup("locations", "/locations")
	locationRoutes.GET("", locationHandler.List)
	locationRoutes.GET("/:id", locationHandler.GetByID)
	locationRoutes.GET("/:id/capacity", locationHandler.GetCapacity)
	locationRoutes.GET("/:id/handling-units", locationHandler.ListUnits)

	// Handling units
	handlingUnitRoutes := router.NewDomainGroup("handling-units", "/handling-units")
	handlingUnitRoutes.GET("", handlingUnitHandler.List)
	handlingUnitRoutes.GET("/:id", handlingUnitHandler.GetByID)

	// Register all domain groups
	r.Register(jobRoutes).
		Register(balanceRoutes).
		Register(locationRoutes).
		Register(handlingUnitRoutes)

	// Register system routes
	systemHandler := handler.NewSystemHandler()
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	systemRoutes.GET("/strategies", strategyHandler.ListStrategies)
	systemRoutes.GET("/strategies/lot-selection", strategyHandler.GetLotStrategies)
	systemRoutes.GET("/strategies/placement", strategyHandler.GetPlacementStrategies)
	r.Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
