// Package main runs the event booking HTTP server with graceful shutdown.
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

	"github.com/evecs/backend/config"
	"github.com/evecs/backend/internal/assist"
	"github.com/evecs/backend/internal/auth"
	"github.com/evecs/backend/internal/events"
	"github.com/evecs/backend/internal/locations"
	"github.com/evecs/backend/internal/middleware"
	"github.com/evecs/backend/internal/models"
	"github.com/evecs/backend/internal/schema"
	"github.com/evecs/backend/internal/store"
	"github.com/evecs/backend/internal/tickets"
	"github.com/evecs/backend/internal/vocab"
	"github.com/evecs/backend/pkg/database"
	"github.com/evecs/backend/pkg/redis"
	"github.com/evecs/backend/pkg/response"
	"github.com/evecs/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	mongoClient, err := database.NewMongoClient(ctx, cfg.Mongo.URI, logger)
	if err != nil {
		logger.Fatal("mongo", zap.Error(err))
	}
	defer mongoClient.Disconnect(context.Background())

	docs := store.NewMongo(mongoClient.Database(cfg.Mongo.DBName),
		time.Duration(cfg.Store.TimeoutSeconds)*time.Second, logger)
	if err := docs.EnsureIndexes(ctx,
		models.CollectionLocations, models.CollectionEvents,
		models.CollectionUsers, models.CollectionUserEmails,
		models.CollectionTickets); err != nil {
		logger.Fatal("store indexes", zap.Error(err))
	}

	fallback := vocab.Static{Groups: cfg.Vocab.Groups, Tags: cfg.Vocab.Tags}
	var loader vocab.Loader = fallback
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable, using static vocabularies", zap.Error(err))
	} else {
		defer rdb.Close()
		loader = vocab.RedisLoader{Client: rdb.Client, Fallback: fallback}
	}
	vocabulary, err := vocab.New(ctx, loader)
	if err != nil {
		logger.Fatal("vocab", zap.Error(err))
	}

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ImagesBucket:         cfg.AWS.ImagesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	oracle := schema.New()

	// Auth
	authRepo := auth.NewRepository(docs)
	authHandler := auth.NewHandler(authRepo, jwtService, vocabulary, logger)

	// Locations
	locationRepo := locations.NewRepository(docs)
	locationSvc := locations.NewService(locationRepo, oracle, logger)
	locationHandler := locations.NewHandler(locationSvc)

	// Events
	eventRepo := events.NewRepository(docs)
	eventSvc := events.NewService(eventRepo, locationRepo, authRepo, vocabulary, oracle, logger, cfg.Store.MaxRetries)
	eventHandler := events.NewHandler(eventSvc, s3Client, logger)

	// Tickets (wired back into the event cascade)
	ticketRepo := tickets.NewRepository(docs)
	ticketSvc := tickets.NewService(ticketRepo, eventRepo, authRepo, oracle, logger, cfg.Store.MaxRetries)
	ticketHandler := tickets.NewHandler(ticketSvc)
	eventSvc.SetTicketPurger(ticketSvc)

	// Drafting
	drafter := assist.NewDrafter(assist.Config{
		Endpoint: cfg.Assist.Endpoint,
		APIKey:   cfg.Assist.APIKey,
		Model:    cfg.Assist.Model,
	}, logger)
	assistHandler := assist.NewHandler(drafter, logger)

	limiter := middleware.NewRateLimiter(middleware.LimiterConfig{
		RPS:     cfg.Server.RateLimitRPS,
		Burst:   cfg.Server.RateLimitBurst,
		IdleTTL: 10 * time.Minute,
	})

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public, rate limited)
	authGroup := router.Group("/auth")
	authGroup.Use(limiter.Middleware())
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users
		api.GET("/users/me", authHandler.Me)
		api.PUT("/users/me", authHandler.UpdateMe)
		api.DELETE("/users/me", authHandler.DeleteMe)
		api.GET("/users/me/tickets", ticketHandler.ListMine)

		// Locations (management requires the authorized flag)
		api.GET("/locations", locationHandler.List)
		api.GET("/locations/:id", locationHandler.Get)
		api.POST("/locations", middleware.RequireAuthorized(), locationHandler.Create)
		api.PUT("/locations/:id", middleware.RequireAuthorized(), locationHandler.Edit)
		api.DELETE("/locations/:id", middleware.RequireAuthorized(), locationHandler.Delete)

		// Events
		api.GET("/events", eventHandler.List)
		api.POST("/events/calendar", eventHandler.Calendar)
		api.POST("/events/draft", assistHandler.Draft)
		api.GET("/events/:id", eventHandler.Get)
		api.POST("/events", eventHandler.Create)
		api.PUT("/events/:id", eventHandler.Update)
		api.DELETE("/events/:id", eventHandler.Delete)
		api.POST("/events/:id/admins", eventHandler.GrantAdminship)
		api.GET("/events/:id/code", eventHandler.Code)
		api.POST("/events/:id/image", eventHandler.UploadImage)
		api.GET("/events/:id/tickets", ticketHandler.ListByEvent)

		// Tickets
		api.POST("/tickets", ticketHandler.Create)
		api.GET("/tickets/:id", ticketHandler.Get)
		api.POST("/tickets/:id/validate", ticketHandler.Validate)
		api.DELETE("/tickets/:id", ticketHandler.Delete)

		// Admin
		api.POST("/admin/vocab/reload", middleware.RequireAuthorized(), func(c *gin.Context) {
			if err := vocabulary.Reload(c.Request.Context()); err != nil {
				logger.Error("vocab reload failed", zap.Error(err))
				response.Internal(c, "failed to reload vocabularies")
				return
			}
			response.OK(c, gin.H{
				"version": vocabulary.Version(),
				"groups":  vocabulary.Groups(),
				"tags":    vocabulary.Tags(),
			})
		})
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
