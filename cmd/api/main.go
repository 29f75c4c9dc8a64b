package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/octobees/contact-collector/internal/auth"
	"github.com/octobees/contact-collector/internal/config"
	"github.com/octobees/contact-collector/internal/database"
	"github.com/octobees/contact-collector/internal/handler"
	"github.com/octobees/contact-collector/internal/hunter"
	"github.com/octobees/contact-collector/internal/logger"
	middlewarepkg "github.com/octobees/contact-collector/internal/middleware"
	"github.com/octobees/contact-collector/internal/queue"
	"github.com/octobees/contact-collector/internal/repository"
	"github.com/octobees/contact-collector/internal/router"
	"github.com/octobees/contact-collector/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "text").WithError(err).Fatal("failed to load config")
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	var (
		collectionsRepo repository.CollectionsRepository
		usageRepo       repository.UsageRepository
	)
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			log.WithError(err).Fatal("failed to connect database")
		}
		defer pool.Close()

		schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = repository.EnsureSchema(schemaCtx, pool)
		schemaCancel()
		if err != nil {
			log.WithError(err).Fatal("failed to ensure schema")
		}

		collectionsRepo = repository.NewPGXCollectionsRepository(pool, log)
		usageRepo = repository.NewPGXUsageRepository(pool)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory storage")
		collectionsRepo = repository.NewMemoryCollectionsRepository()
		usageRepo = repository.NewMemoryUsageRepository()
	}

	if cfg.Collector.APIKey == "" {
		log.Warn("HUNTER_API_KEY not set, collection jobs will fail until configured")
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, 24*time.Hour)
	usageService := service.NewUsageService(usageRepo)
	collector := hunter.NewClient(cfg.Collector, log)

	jobQueue := queue.New(cfg.Queue, log)
	pool := queue.NewPool(jobQueue, collector, collectionsRepo, cfg.Queue, cfg.Collector.Timeout, log)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	pool.Start(workerCtx)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging(log))
	e.Use(echoMiddleware.Recover())

	router.Register(e, cfg, jwtManager, router.Handlers{
		Collect:     handler.NewCollectHandler(jobQueue, usageService),
		Status:      handler.NewStatusHandler(jobQueue, collectionsRepo),
		Export:      handler.NewExportHandler(jobQueue, collectionsRepo),
		Reveal:      handler.NewRevealHandler(collectionsRepo, usageService),
		Collections: handler.NewCollectionsHandler(collectionsRepo),
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.Start(":" + cfg.Port)
	}()

	log.With("port", cfg.Port).Info("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.With("signal", sig.String()).Info("shutting down")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
		workerCancel()
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}

	jobQueue.Close()
	workerCancel()
	pool.Wait()
}
