package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-grouping-api/api/swagger"
	"github.com/noah-isme/sma-grouping-api/internal/handler"
	"github.com/noah-isme/sma-grouping-api/internal/middleware"
	"github.com/noah-isme/sma-grouping-api/internal/repository"
	"github.com/noah-isme/sma-grouping-api/internal/service"
	"github.com/noah-isme/sma-grouping-api/pkg/cache"
	"github.com/noah-isme/sma-grouping-api/pkg/config"
	"github.com/noah-isme/sma-grouping-api/pkg/database"
	"github.com/noah-isme/sma-grouping-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-grouping-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-grouping-api/pkg/middleware/requestid"
)

// @title SMA Grouping API
// @version 0.1.0
// @description Scenario generation and satisfaction analytics for activity group assignment
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Grouping.ScoreCacheTTL, logr, true)
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Grouping.ScoreCacheTTL, logr, false)
	}

	validate := validator.New()

	activityRepo := repository.NewActivityRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	preferenceRepo := repository.NewPreferenceRepository(db)
	partitionRepo := repository.NewPartitionRepository(db)
	placementRepo := repository.NewPlacementRepository(db)

	partitionSvc := service.NewPartitionService(
		activityRepo, studentRepo, preferenceRepo, partitionRepo, placementRepo,
		db, cacheSvc, metricsSvc, validate, logr,
		service.PartitionServiceConfig{SwapFactor: cfg.Grouping.SwapFactor},
	)
	candidateSvc := service.NewCandidateService(
		partitionSvc, cacheSvc, validate, logr,
		service.CandidateServiceConfig{
			DefaultCount: cfg.Grouping.DefaultCandidates,
			MaxCount:     cfg.Grouping.MaxCandidates,
			TTL:          cfg.Grouping.CandidateTTL,
		},
	)
	analyticsSvc := service.NewAnalyticsService(
		partitionRepo, preferenceRepo, cacheSvc, validate, logr, cfg.Grouping.ScoreCacheTTL,
	)

	partitionHandler := handler.NewPartitionHandler(partitionSvc)
	candidateHandler := handler.NewCandidateHandler(candidateSvc)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	if cfg.Auth.Enabled {
		api.Use(middleware.JWT(cfg.Auth.JWTSecret))
	}

	activities := api.Group("/activities/:id")
	{
		activities.POST("/partition/generate", partitionHandler.Generate)
		activities.POST("/partition/reset", partitionHandler.Reset)
		activities.POST("/partition/publish", partitionHandler.Publish)
		activities.POST("/partition/archive", partitionHandler.Archive)
		activities.GET("/partition", partitionHandler.Current)
		activities.GET("/partition/score", analyticsHandler.ScoreActivity)

		activities.POST("/candidates", candidateHandler.Generate)
		activities.GET("/candidates", candidateHandler.List)
		activities.POST("/candidates/:candidateId/adopt", candidateHandler.Adopt)

		activities.GET("/placements", partitionHandler.Placements)
	}
	api.POST("/partitions/score", analyticsHandler.ScoreAdhoc)
	api.GET("/metrics/summary", metricsHandler.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
