// Package server
//
// @title VakSpot API
// @version 1.0
// @description Marketplace connecting clients with tradespeople
// @host localhost:8080
// @BasePath /
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vakspot/vakspot/internal/accounts"
	"github.com/vakspot/vakspot/internal/auth"
	"github.com/vakspot/vakspot/internal/bids"
	"github.com/vakspot/vakspot/internal/catalog"
	"github.com/vakspot/vakspot/internal/config"
	"github.com/vakspot/vakspot/internal/database"
	"github.com/vakspot/vakspot/internal/guard"
	"github.com/vakspot/vakspot/internal/jobs"
	"github.com/vakspot/vakspot/internal/mail"
	"github.com/vakspot/vakspot/internal/messaging"
	"github.com/vakspot/vakspot/internal/models"
	"github.com/vakspot/vakspot/internal/storage"
	"github.com/vakspot/vakspot/internal/upsell"
	"github.com/vakspot/vakspot/internal/workers"
)

// Server represents the HTTP server
type Server struct {
	router      *gin.Engine
	db          *gorm.DB
	config      *config.Config
	logger      zerolog.Logger
	validator   *validator.Validate
	asynqClient *asynq.Client // nil when no Redis is configured
	scheduler   *cron.Cron    // in-process job expiry when there is no worker queue
	tokens      *auth.TokenIssuer
	sessions    *auth.Reader
	credentials *auth.Provider
	guard       *guard.Guard
	store       storage.Store

	accountsService  *accounts.Service
	catalogService   *catalog.Service
	jobsService      *jobs.Service
	bidsService      *bids.Service
	messagingService *messaging.Service
	upsellService    *upsell.Service

	version string
}

// New opens and migrates the configured database and creates a server on it
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	db, err := database.Open(cfg.Database.URL, zlog, database.Options{})
	if err != nil {
		return nil, err
	}

	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return NewWithDB(cfg, db, zlog, version)
}

// NewWithDB creates a server on an already migrated database
func NewWithDB(cfg *config.Config, db *gorm.DB, zlog zerolog.Logger, version string) (*Server, error) {
	secret, err := resolveSessionSecret(db, cfg.Session.Secret, zlog)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenIssuer(secret, cfg.Session.MaxAge)
	if err != nil {
		return nil, err
	}

	credentials, err := auth.NewProvider(db, zlog)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credentials provider: %w", err)
	}

	table := guard.DefaultTable()
	if cfg.Guard.RouteTablePath != "" {
		table, err = guard.LoadTable(cfg.Guard.RouteTablePath)
		if err != nil {
			return nil, err
		}
		zlog.Info().Str("path", cfg.Guard.RouteTablePath).Int("rules", len(table)).Msg("Loaded route table")
	}

	store, err := storage.New(cfg.Storage, zlog)
	if err != nil {
		return nil, err
	}

	// Mail goes through the worker queue when Redis is available, inline otherwise
	var notifier mail.Notifier
	var asynqClient *asynq.Client
	if cfg.Redis.Enabled() {
		asynqClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr: cfg.Redis.Address,
		})
		notifier = mail.NewQueueNotifier(asynqClient, zlog)
	} else {
		zlog.Info().Msg("REDIS_ADDRESS not set - sending mail inline")
		notifier = mail.NewDirectNotifier(mail.NewSender(cfg.Mail, zlog), zlog)
	}

	publicURL := cfg.HTTP.PublicURL
	server := &Server{
		db:               db,
		config:           cfg,
		logger:           zlog,
		validator:        newValidator(),
		asynqClient:      asynqClient,
		tokens:           tokens,
		sessions:         auth.NewReader(tokens),
		credentials:      credentials,
		guard:            guard.New(table),
		store:            store,
		accountsService:  accounts.NewService(db, notifier, publicURL, zlog),
		catalogService:   catalog.NewService(db, zlog),
		jobsService:      jobs.NewService(db, zlog),
		bidsService:      bids.NewService(db, notifier, publicURL, zlog),
		messagingService: messaging.NewService(db, notifier, publicURL, zlog),
		upsellService:    upsell.NewService(db, zlog),
		version:          version,
	}

	// Without a queue there is no worker to run the expiry sweep
	if asynqClient == nil && cfg.Jobs.ExpirySchedule != "" {
		run := workers.RunExpireJobs(server.jobsService, cfg.Jobs.MaxAge, zlog)
		server.scheduler, err = workers.NewScheduler(cfg.Jobs.ExpirySchedule, run, zlog)
		if err != nil {
			return nil, err
		}
	}

	server.setupRouter()

	return server, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()
	s.router.MaxMultipartMemory = storage.MaxUploadSize + 1<<20
	s.router.SetHTMLTemplate(pageTemplate)

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.HTTP.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Every request gets its principal before the guard looks at it
	s.router.Use(s.sessionMiddleware())
	s.router.Use(s.guardMiddleware())

	s.router.GET("/health", s.healthCheck)
	if s.config.HTTP.StaticDir != "" {
		s.router.Static("/static", s.config.HTTP.StaticDir)
	}
	if disk, ok := s.store.(*storage.DiskStore); ok {
		s.router.Static("/uploads", disk.Dir())
	}

	// Public API
	s.router.POST("/api/auth/register", s.register)
	s.router.POST("/api/auth/login", s.login)
	s.router.POST("/api/auth/logout", s.logout)
	s.router.GET("/api/auth/session", s.getSession)
	s.router.GET("/api/categories", s.listCategories)

	// Authenticated API; each service re-checks role and ownership
	api := s.router.Group("/api")
	api.Use(s.requireSession())
	{
		api.GET("/me", s.getMe)
		api.PATCH("/me", s.updateMe)

		api.GET("/pro/profile", s.getProProfile)
		api.PATCH("/pro/profile", s.updateProProfile)
		api.PUT("/pro/categories", s.setProCategories)

		api.GET("/jobs", s.listMyJobs)
		api.POST("/jobs", s.createJob)
		api.GET("/jobs/:id", s.getJob)
		api.PATCH("/jobs/:id", s.updateJob)
		api.DELETE("/jobs/:id", s.deleteJob)
		api.POST("/jobs/:id/cancel", s.cancelJob)
		api.POST("/jobs/:id/complete", s.completeJob)
		api.GET("/jobs/:id/bids", s.listJobBids)
		api.POST("/jobs/:id/bids", s.submitBid)

		api.GET("/leads", s.listLeads)

		api.GET("/bids", s.listMyBids)
		api.POST("/bids/:id/accept", s.acceptBid)
		api.POST("/bids/:id/reject", s.rejectBid)
		api.POST("/bids/:id/withdraw", s.withdrawBid)

		api.GET("/messages", s.listConversations)
		api.POST("/messages", s.sendMessage)
		api.GET("/messages/:jobId/:userId", s.getThread)

		api.GET("/services", s.listServices)
		api.POST("/services/:id/purchase", s.purchaseService)
		api.GET("/purchases", s.listPurchases)

		api.POST("/uploads", s.upload)

		admin := api.Group("/admin")
		{
			admin.GET("/users", s.listUsers)
			admin.PATCH("/users/:id", s.updateUser)
			admin.DELETE("/users/:id", s.deleteUser)

			admin.GET("/jobs", s.listAllJobs)
			admin.DELETE("/jobs/:id", s.deleteJob)

			admin.POST("/categories", s.createCategory)
			admin.PUT("/categories/:id", s.updateCategory)
			admin.DELETE("/categories/:id", s.deleteCategory)

			admin.POST("/services", s.createService)
			admin.PUT("/services/:id", s.updateService)
			admin.DELETE("/services/:id", s.deleteService)

			admin.GET("/purchases", s.listPurchases)
			admin.POST("/purchases/:id/paid", s.markPurchasePaid)
			admin.POST("/purchases/:id/cancel", s.cancelPurchase)
		}
	}

	// Pages
	s.router.NoRoute(s.renderPage)
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		event := s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP())
		if p, ok := GetPrincipal(c); ok {
			event = event.Str("user_id", p.ID)
		}
		event.Msg("HTTP request")
	}
}

// @Router /health [get]
// @Success 200 {object} map[string]interface{}
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "vakspot-api",
		"version":   s.version,
	})
}

// GetDB returns the database connection
func (s *Server) GetDB() *gorm.DB {
	return s.db
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until SIGINT or SIGTERM
func (s *Server) Start() error {
	port := ":" + s.config.HTTP.Port

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              port,
		Handler:           s.router,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if s.scheduler != nil {
		s.scheduler.Start()
		s.logger.Info().Msg("Started in-process job expiry scheduler")
	}

	// Start server in goroutine
	go func() {
		s.logger.Info().Str("port", port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	if s.scheduler != nil {
		<-s.scheduler.Stop().Done()
	}

	if s.asynqClient != nil {
		if err := s.asynqClient.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Error closing Asynq client")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.logger.Info().Msg("Server shutdown complete")

	// Close database connection to flush WAL writes
	if err := database.Close(s.db); err != nil {
		s.logger.Error().Err(err).Msg("Error closing database")
	}

	return nil
}
