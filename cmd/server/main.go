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

	partnerapp "github.com/settleflow/backend/internal/application/partner"
	settlementapp "github.com/settleflow/backend/internal/application/settlement"
	"github.com/settleflow/backend/internal/infrastructure/cache"
	"github.com/settleflow/backend/internal/infrastructure/config"
	"github.com/settleflow/backend/internal/infrastructure/event"
	"github.com/settleflow/backend/internal/infrastructure/logger"
	"github.com/settleflow/backend/internal/infrastructure/persistence"
	"github.com/settleflow/backend/internal/interfaces/http/handler"
	"github.com/settleflow/backend/internal/interfaces/http/middleware"
	"github.com/settleflow/backend/internal/interfaces/http/router"
)

//	@title			SettleFlow Backend API
//	@version		1.0
//	@description	Cash allocation and netting reconciliation engine

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting SettleFlow Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	counterpartyRepo := persistence.NewGormCounterpartyRepository(db.DB)
	voucherRepo := persistence.NewGormVoucherRepository(db.DB)
	transactionRepo := persistence.NewGormCashTransactionRepository(db.DB)
	allocationRepo := persistence.NewGormAllocationRepository(db.DB)
	nettingRepo := persistence.NewGormNettingRepository(db.DB)
	changeRequestRepo := persistence.NewGormChangeRequestRepository(db.DB)
	txManager := persistence.NewGormTransactionManager(db)

	// Initialize event bus with audit trail
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewAuditHandler(log))
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Idempotency store guards netting confirmation against double submits.
	// Redis is used when configured, otherwise a process-local store.
	var lockStore settlementapp.IdempotencyStore
	if cfg.Redis.Enabled {
		redisStore, err := cache.NewRedisLockStore(&cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := redisStore.Close(); err != nil {
				log.Error("Error closing Redis connection", zap.Error(err))
			}
		}()
		lockStore = redisStore
		log.Info("Redis lock store connected", zap.String("addr", cfg.Redis.Addr()))
	} else {
		lockStore = cache.NewInMemoryLockStore()
		log.Info("Using in-memory lock store")
	}

	// Initialize application services
	counterpartyService := partnerapp.NewCounterpartyService(counterpartyRepo, eventBus)
	aliasService := partnerapp.NewAliasService(counterpartyRepo, transactionRepo, txManager, eventBus)
	voucherService := settlementapp.NewVoucherService(voucherRepo, counterpartyRepo, eventBus)
	transactionService := settlementapp.NewTransactionService(transactionRepo, counterpartyRepo, eventBus)
	allocationService := settlementapp.NewAllocationService(transactionRepo, voucherRepo, allocationRepo, txManager, eventBus)
	nettingService := settlementapp.NewNettingService(nettingRepo, voucherRepo, transactionRepo, allocationRepo, counterpartyRepo, txManager, lockStore, eventBus)
	changeService := settlementapp.NewChangeService(changeRequestRepo, voucherRepo, txManager, eventBus)

	// Initialize HTTP handlers
	counterpartyHandler := handler.NewCounterpartyHandler(counterpartyService, aliasService)
	voucherHandler := handler.NewVoucherHandler(voucherService)
	transactionHandler := handler.NewTransactionHandler(transactionService)
	allocationHandler := handler.NewAllocationHandler(allocationService)
	nettingHandler := handler.NewNettingHandler(nettingService)
	changeRequestHandler := handler.NewChangeRequestHandler(changeService)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack, ordered: request ID, panic recovery, request
	// logging, tracing, CORS, body size limit.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.App.Name,
		Enabled:     true,
	}))
	engine.Use(middleware.SpanErrorMarker())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db))

	// Setup API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Partner domain (counterparties, alias resolution)
	partnerRoutes := router.NewDomainGroup("partners", "/partners")
	partnerRoutes.Use(middleware.Tenant())
	partnerRoutes.POST("/counterparties", counterpartyHandler.Create)
	partnerRoutes.GET("/counterparties", counterpartyHandler.List)
	partnerRoutes.GET("/counterparties/:id", counterpartyHandler.GetByID)
	partnerRoutes.PUT("/counterparties/:id/name", counterpartyHandler.Rename)
	partnerRoutes.POST("/counterparties/:id/aliases", counterpartyHandler.MapAlias)
	partnerRoutes.GET("/unmatched-names", counterpartyHandler.ListUnmatchedNames)

	// Settlement domain (vouchers, transactions, allocations, nettings,
	// change requests)
	settlementRoutes := router.NewDomainGroup("settlement", "/settlement")
	settlementRoutes.Use(middleware.Tenant())
	settlementRoutes.POST("/vouchers", voucherHandler.Create)
	settlementRoutes.GET("/vouchers", voucherHandler.List)
	settlementRoutes.GET("/vouchers/:id", voucherHandler.GetByID)
	settlementRoutes.PUT("/vouchers/:id/moderation", voucherHandler.SetModeration)
	settlementRoutes.GET("/counterparties/:id/summary", voucherHandler.CounterpartySummary)

	settlementRoutes.POST("/transactions", transactionHandler.Create)
	settlementRoutes.GET("/transactions", transactionHandler.List)
	settlementRoutes.GET("/transactions/:id", transactionHandler.GetByID)
	settlementRoutes.PUT("/transactions/:id/moderation", transactionHandler.SetModeration)
	settlementRoutes.POST("/transactions/:id/allocations/auto", allocationHandler.AutoAllocate)
	settlementRoutes.POST("/transactions/:id/allocations/manual", allocationHandler.ManualAllocate)

	settlementRoutes.GET("/allocations", allocationHandler.List)
	settlementRoutes.GET("/allocations/:id", allocationHandler.GetByID)
	settlementRoutes.DELETE("/allocations/:id", allocationHandler.Delete)

	settlementRoutes.GET("/nettings/eligible", nettingHandler.GetEligible)
	settlementRoutes.POST("/nettings", nettingHandler.CreateDraft)
	settlementRoutes.GET("/nettings", nettingHandler.List)
	settlementRoutes.GET("/nettings/:id", nettingHandler.GetByID)
	settlementRoutes.POST("/nettings/:id/confirm", nettingHandler.Confirm)
	settlementRoutes.POST("/nettings/:id/cancel", nettingHandler.Cancel)

	settlementRoutes.POST("/change-requests", changeRequestHandler.Submit)
	settlementRoutes.GET("/change-requests", changeRequestHandler.List)
	settlementRoutes.GET("/change-requests/:id", changeRequestHandler.GetByID)
	settlementRoutes.POST("/change-requests/:id/approve", changeRequestHandler.Approve)
	settlementRoutes.POST("/change-requests/:id/reject", changeRequestHandler.Reject)

	// System routes (no tenant required)
	systemHandler := handler.NewSystemHandler()
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r.Register(partnerRoutes).
		Register(settlementRoutes).
		Register(systemRoutes)

	r.Setup()

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
func healthHandler(db *persistence.Database) gin.HandlerFunc {
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
