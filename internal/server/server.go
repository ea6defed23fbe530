package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/postwave/postwave/internal/config"
	"github.com/postwave/postwave/internal/service"
	"github.com/postwave/postwave/internal/service/asset"
	"github.com/postwave/postwave/internal/service/credential"
	"github.com/postwave/postwave/internal/service/platform/facebook"
	"github.com/postwave/postwave/internal/service/platform/instagram"
	"github.com/postwave/postwave/internal/service/platform/linkedin"
	"github.com/postwave/postwave/internal/service/platform/twitter"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Store        *service.JobStore
	Orchestrator *service.Orchestrator
	Scheduler    *service.Scheduler
	Lifecycle    *service.Lifecycle
	Monitoring   *service.MonitoringService
	Hashtags     *service.HashtagService
	StatsUpdater *service.StatsUpdater
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	publishTimeout, err := time.ParseDuration(cfg.Scheduler.PublishTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid publish timeout: %w", err)
	}

	// Initialize services
	monitoring := service.NewMonitoringService(db, logger)
	store := service.NewJobStore(db, logger)
	resolver := credential.NewHTTPResolver(logger, cfg.Credentials.BaseURL, cfg.Credentials.Token, 0)
	fetcher := asset.NewHTTPFetcher(logger, cfg.Assets.BaseURL, cfg.Assets.PublicBase, 0)

	orchestrator := service.NewOrchestrator(logger, resolver, fetcher, monitoring, publishTimeout)
	if err := registerPublishers(orchestrator, cfg, logger); err != nil {
		return nil, err
	}

	scheduler := service.NewScheduler(&cfg.Scheduler, logger, store, orchestrator)
	lifecycle := service.NewLifecycle(logger, store, scheduler, &cfg.Limits)
	hashtags := service.NewHashtagService(&cfg.Hashtags, logger)
	statsUpdater := service.NewStatsUpdater(monitoring, logger, 10*time.Minute)

	// Create router
	router := gin.New()

	srv := &Server{
		Config:       cfg,
		DB:           db,
		Router:       router,
		Logger:       logger,
		Store:        store,
		Orchestrator: orchestrator,
		Scheduler:    scheduler,
		Lifecycle:    lifecycle,
		Monitoring:   monitoring,
		Hashtags:     hashtags,
		StatsUpdater: statsUpdater,
	}

	// Setup middleware and routes
	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

// registerPublishers wires one publisher per enabled platform into the
// orchestrator.
func registerPublishers(orchestrator *service.Orchestrator, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Platforms.Facebook.Enabled {
		pub := facebook.NewPublisher(logger, facebook.Config{GraphBaseURL: cfg.Platforms.Facebook.GraphBaseURL})
		if err := orchestrator.RegisterPublisher(pub); err != nil {
			return err
		}
	}
	if cfg.Platforms.Instagram.Enabled {
		pub := instagram.NewPublisher(logger, instagram.Config{GraphBaseURL: cfg.Platforms.Instagram.GraphBaseURL})
		if err := orchestrator.RegisterPublisher(pub); err != nil {
			return err
		}
	}
	if cfg.Platforms.LinkedIn.Enabled {
		pub := linkedin.NewPublisher(logger, linkedin.Config{APIBaseURL: cfg.Platforms.LinkedIn.APIBaseURL})
		if err := orchestrator.RegisterPublisher(pub); err != nil {
			return err
		}
	}
	if cfg.Platforms.Twitter.Enabled {
		pub := twitter.NewPublisher(logger, twitter.Config{
			ConsumerKey:    cfg.Platforms.Twitter.ConsumerKey,
			ConsumerSecret: cfg.Platforms.Twitter.ConsumerSecret,
			APIBaseURL:     cfg.Platforms.Twitter.APIBaseURL,
			UploadBaseURL:  cfg.Platforms.Twitter.UploadBaseURL,
		})
		if err := orchestrator.RegisterPublisher(pub); err != nil {
			return err
		}
	}

	logger.Info("Publishers registered", zap.Strings("platforms", orchestrator.Platforms()))
	return nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// API routes
	api := s.Router.Group("/api/v1")
	{
		posts := api.Group("/posts")
		{
			posts.POST("", s.handleCreatePost)
			posts.GET("", s.handleListPosts)
			posts.GET("/:id", s.handleGetPost)
			posts.PUT("/:id", s.handleEditPost)
			posts.PUT("/:id/schedule", s.handleReschedulePost)
			posts.POST("/:id/cancel", s.handleCancelPost)
			posts.DELETE("/:id", s.handleDeletePost)
		}

		api.GET("/config/limits", s.handleGetLimits)
		api.GET("/hashtags", s.handleSuggestHashtags)

		monitoring := api.Group("/monitoring")
		{
			monitoring.GET("/summary", s.handleMonitoringSummary)
			monitoring.GET("/errors", s.handleMonitoringErrors)
		}
	}
}

func (s *Server) Start(ctx context.Context) error {
	// Start scheduler
	if err := s.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	s.StatsUpdater.Start(ctx)

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
			return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
		}
		return s.Server.ListenAndServe()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop background loops first
	s.Scheduler.Stop()
	s.StatsUpdater.Stop()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
