package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikkim/gold-portfolio-backend/config"
	"github.com/ikkim/gold-portfolio-backend/internal/app/controller"
	"github.com/ikkim/gold-portfolio-backend/internal/app/repository"
	"github.com/ikkim/gold-portfolio-backend/internal/app/service"
	"github.com/ikkim/gold-portfolio-backend/internal/db"
	"github.com/ikkim/gold-portfolio-backend/internal/router"
	"github.com/ikkim/gold-portfolio-backend/internal/scheduler"
	"github.com/ikkim/gold-portfolio-backend/internal/storage"
	"github.com/ikkim/gold-portfolio-backend/pkg/logger"
	"github.com/ikkim/gold-portfolio-backend/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	logFormat := "json"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
		logFormat = "console"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      logFormat,
		EnableColor: true,
		Service:     "gold-portfolio",
	})

	logger.Info("Starting Gold Portfolio Server", logger.Fields{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	// Initialize database
	store, err := db.Initialize(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Initialize repositories
	holdingRepo := repository.NewHoldingRepository(store.DB())
	transactionRepo := repository.NewTransactionRepository(store.DB())
	priceHistoryRepo := repository.NewPriceHistoryRepository(store.DB())

	// 시세 조회. 요청 경로만 Redis 캐시를 거치고 이력 기록은 원본을 직접 조회한다
	fetcher := service.NewGaleri24Fetcher(&cfg.Scraper)
	var prices service.PriceSource = fetcher
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, price cache disabled", logger.Fields{
				"error": err.Error(),
			})
		} else {
			defer redisClient.Close()
			prices = service.NewCachedPriceSource(prices, redisClient, cfg.Redis.CacheTTL)
		}
	}

	// 내보내기 보관소 (버킷이 없으면 비활성화)
	var archiver service.ExportArchiver
	if storage.Enabled(&cfg.S3) {
		archiver = storage.NewS3Storage(&cfg.S3)
		logger.Info("Export archive enabled", logger.Fields{"bucket": cfg.S3.Bucket})
	}

	// Initialize services
	priceHistoryService := service.NewPriceHistoryService(priceHistoryRepo, fetcher)
	portfolioService := service.NewPortfolioService(holdingRepo, transactionRepo, prices)
	transferService := service.NewHoldingTransferService(holdingRepo, archiver)

	// Initialize controllers
	priceController := controller.NewPriceController(prices, priceHistoryService)
	portfolioController := controller.NewPortfolioController(portfolioService, transferService)

	// Start scheduler
	var priceScheduler *scheduler.PriceScheduler
	if cfg.Scheduler.Enabled {
		priceScheduler = scheduler.NewPriceScheduler(priceHistoryService, cfg.Scheduler.CronSpec)
		if err := priceScheduler.Start(); err != nil {
			logger.Fatal("Failed to start price scheduler", err)
		}
	}

	// Setup router
	r := router.NewRouter(priceController, portfolioController, store, cfg)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server started successfully", logger.Fields{
			"address": server.Addr,
			"pid":     os.Getpid(),
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")

	if priceScheduler != nil {
		priceScheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}

	logger.Info("Server stopped successfully")
}
