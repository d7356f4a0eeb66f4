package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/cabanaresort/reservations-backend/internal/config"
	"github.com/cabanaresort/reservations-backend/internal/database"
	"github.com/cabanaresort/reservations-backend/internal/handlers"
	"github.com/cabanaresort/reservations-backend/internal/metrics"
	"github.com/cabanaresort/reservations-backend/internal/middleware"
	"github.com/cabanaresort/reservations-backend/internal/realtime"
	"github.com/cabanaresort/reservations-backend/internal/services"
	"github.com/cabanaresort/reservations-backend/pkg/jwt"
	"github.com/cabanaresort/reservations-backend/pkg/mailer"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Cabana Reservations Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	metrics.Register()

	// Repositories
	reservationRepo := database.NewReservationRepository(db.DB, cfg.Reservation.LockTimeout)
	cabanaRepo := database.NewCabanaRepository(db.DB)
	historyRepo := database.NewStatusHistoryRepository(db.DB)
	requestRepo := database.NewRequestRepository(db.DB)
	extraRepo := database.NewExtraItemRepository(db.DB)
	guestRepo := database.NewGuestRepository(db.DB)
	pricingRepo := database.NewPricingRepository(db.DB)

	// Services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)

	var emailGateway mailer.EmailGateway
	if cfg.Email.Mode == "production" {
		emailGateway = mailer.NewHTTPGateway(mailer.Config{
			APIURL:      cfg.Email.APIURL,
			APIKey:      cfg.Email.APIKey,
			FromAddress: cfg.Email.FromAddress,
		})
		logger.Infof("Email gateway initialized: %s", emailGateway.GetName())
	} else {
		emailGateway = mailer.NewLogGateway(logger)
		logger.Info("Email gateway in development mode (no mail will be sent)")
	}

	var broadcaster services.Broadcaster = &services.NoopBroadcaster{}
	if cfg.Redis.Enabled {
		redisClient := realtime.NewRedisClient(cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := realtime.Ping(ctx, redisClient); err != nil {
			cancel()
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		cancel()
		redisBroadcaster := realtime.NewRedisBroadcaster(redisClient, logger)
		defer redisBroadcaster.Close()
		broadcaster = redisBroadcaster
		logger.Info("Redis broadcaster connected")
	} else {
		logger.Info("Redis disabled, realtime events will be dropped")
	}

	auditService := services.NewAuditService(db, logger)
	notifier := services.NewLogNotifier(logger)
	resolver := services.NewPriceResolver(pricingRepo, logger)

	reservationService := services.NewReservationService(
		reservationRepo, cabanaRepo, historyRepo, extraRepo, guestRepo,
		resolver, notifier, emailGateway, broadcaster, auditService, logger,
	)
	requestService := services.NewRequestService(
		requestRepo, reservationRepo, cabanaRepo, historyRepo, guestRepo,
		resolver, notifier, emailGateway, broadcaster, auditService, logger,
	)
	reconciliationService := services.NewReconciliationService(reservationRepo, cabanaRepo, logger)

	cronService := services.NewCronService(reconciliationService, auditService, cfg.Reservation.ReconcileSchedule, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	logger.Info("Services initialized")

	// Handlers
	reservationHandler := handlers.NewReservationHandler(reservationService)
	requestHandler := handlers.NewRequestHandler(requestService)
	cabanaHandler := handlers.NewCabanaHandler(cabanaRepo, reservationRepo)
	pricingHandler := handlers.NewPricingHandler(resolver, pricingRepo)
	guestHandler := handlers.NewGuestHandler(guestRepo)
	adminHandler := handlers.NewAdminHandler(reconciliationService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(jwtService))
	{
		// Cabana catalog
		v1.GET("/cabanas", cabanaHandler.List)
		v1.GET("/cabanas/:id", cabanaHandler.GetByID)
		v1.GET("/cabanas/:id/reservations", cabanaHandler.ListReservations)
		v1.POST("/cabanas", middleware.RequireRole(middleware.RoleManager), cabanaHandler.Create)
		v1.PATCH("/cabanas/:id", middleware.RequireRole(middleware.RoleManager), cabanaHandler.Update)

		// Pricing
		v1.POST("/pricing/quote", pricingHandler.Quote)
		v1.GET("/products", pricingHandler.ListProducts)

		// Reservation lifecycle
		v1.POST("/reservations", reservationHandler.Create)
		v1.GET("/reservations/mine", reservationHandler.ListMine)
		v1.GET("/reservations/pending", middleware.RequireRole(middleware.RoleManager), reservationHandler.ListPending)
		v1.GET("/reservations/:id", reservationHandler.GetByID)
		v1.GET("/reservations/:id/history", reservationHandler.GetHistory)
		v1.GET("/reservations/:id/extras", reservationHandler.ListExtras)
		v1.POST("/reservations/:id/approve", middleware.RequireRole(middleware.RoleManager), reservationHandler.Approve)
		v1.POST("/reservations/:id/reject", middleware.RequireRole(middleware.RoleManager), reservationHandler.Reject)
		v1.POST("/reservations/:id/check-in", middleware.RequireRole(middleware.RoleStaff, middleware.RoleManager), reservationHandler.CheckIn)
		v1.POST("/reservations/:id/check-out", middleware.RequireRole(middleware.RoleStaff, middleware.RoleManager), reservationHandler.CheckOut)
		v1.POST("/reservations/:id/extras", middleware.RequireRole(middleware.RoleStaff, middleware.RoleManager), reservationHandler.AddExtras)
		v1.POST("/reservations/:id/review", reservationHandler.LeaveReview)

		// Modification and cancellation sub-requests
		v1.POST("/reservations/:id/modification-requests", requestHandler.CreateModification)
		v1.POST("/reservations/:id/cancellation-requests", requestHandler.CreateCancellation)
		v1.GET("/modification-requests/pending", middleware.RequireRole(middleware.RoleManager), requestHandler.ListPendingModifications)
		v1.GET("/cancellation-requests/pending", middleware.RequireRole(middleware.RoleManager), requestHandler.ListPendingCancellations)
		v1.POST("/modification-requests/:id/resolve", middleware.RequireRole(middleware.RoleManager), requestHandler.ResolveModification)
		v1.POST("/cancellation-requests/:id/resolve", middleware.RequireRole(middleware.RoleManager), requestHandler.ResolveCancellation)

		// Guest profiles
		v1.POST("/guests", middleware.RequireRole(middleware.RoleStaff, middleware.RoleManager), guestHandler.Create)
		v1.GET("/guests/:id", middleware.RequireRole(middleware.RoleStaff, middleware.RoleManager), guestHandler.GetByID)

		// Operational actions
		v1.POST("/admin/reconcile", middleware.RequireRole(middleware.RoleManager), adminHandler.Reconcile)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	cronService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	// Drain pending notifications and emails before exiting
	reservationService.WaitForSideEffects()
	requestService.WaitForSideEffects()

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
		}

		if userCtx, exists := middleware.GetUserContext(c); exists {
			fields["user_id"] = userCtx.UserID
		}

		entry := logger.WithFields(fields)
		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
