package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calcReco/app/echo-server/router"
	"calcReco/business/recommendation"
	"calcReco/internal/middleware"
	psqlRepo "calcReco/internal/repository/postgres"
	redisRepo "calcReco/internal/repository/redis"
	"calcReco/internal/rest"
	"calcReco/pkg/config"
	"calcReco/pkg/database"
	redisdb "calcReco/pkg/database/redis"
	"calcReco/pkg/logger"
	"calcReco/pkg/metrics"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	logger.Info("Starting "+cfg.App.Name, "version", cfg.App.Version)

	metrics.Init()

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	logger.Info("Database connected successfully")

	// Init repo
	historyRepo := psqlRepo.NewHistoryRepository(db)
	patternRepo := psqlRepo.NewPatternRepository(db)
	presetRepo := psqlRepo.NewPresetRepository(db)
	prefsRepo := psqlRepo.NewPreferencesRepository(db)

	// Init cache backend
	var opts []recommendation.Option
	var redisClient *goredis.Client
	if cfg.Recommendation.CacheEnabled && cfg.Recommendation.CacheBackend == "redis" {
		redisClient, err = redisdb.NewRedisClient(context.Background(), cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to redis", "error", err)
		}
		opts = append(opts, recommendation.WithCacheStore(redisRepo.NewRecommendationCache(redisClient, "")))
		logger.Info("Redis recommendation cache enabled")
	}

	// Init service
	recoCfg := recommendation.DefaultConfig()
	recoCfg.CacheEnabled = cfg.Recommendation.CacheEnabled
	recoCfg.CacheTTL = cfg.Recommendation.CacheTTL
	recoCfg.CoalesceInFlight = cfg.Recommendation.CoalesceInFlight
	recoCfg.MaxRecommendations = cfg.Recommendation.MaxRecommendations
	recoCfg.MinConfidenceThreshold = cfg.Recommendation.MinConfidenceThreshold
	recoCfg.HistoryLimit = cfg.Recommendation.HistoryLimit

	recoService := recommendation.NewRecommendationService(historyRepo, patternRepo, presetRepo, prefsRepo, recoCfg, opts...)

	// Init handler
	recoHandler := rest.NewRecommendationHandler(recoService)
	recoAdminHandler := rest.NewRecommendationAdminHandler(recoService)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// HTTP error handler
	e.HTTPErrorHandler = middleware.ErrorHandler

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(middleware.Trace())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"http://localhost:3000", "http://localhost:8080"},
		AllowMethods: []string{http.MethodGet, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	// Auth middleware
	auth := middleware.OptionalAuth(cfg.JWT.SecretKey)
	adminOnly := middleware.AdminOnly()

	// Setup routes
	api := e.Group("/api/v1")
	router.SetRecommendationRoutes(api, recoHandler, auth)
	router.SetRecommendationAdminRoutes(api, recoAdminHandler, auth, adminOnly)

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown server
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	if err := redisdb.CloseRedisClient(redisClient); err != nil {
		logger.Error("Redis close error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("Server stopped")
}
