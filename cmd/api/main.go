package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"price-scout/internal/browser"
	"price-scout/internal/category"
	"price-scout/internal/config"
	"price-scout/internal/crawler"
	"price-scout/internal/database"
	"price-scout/internal/logger"
	"price-scout/internal/ranking"
	"price-scout/internal/repository"
	"price-scout/internal/server"
	"price-scout/internal/service"
	"price-scout/internal/task"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// in-flight searches may still be waiting on sources
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stops the refresh task, then releases browser, redis and database
	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")
	done <- true
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting price-scout API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	dbService, err := database.New(cfg.Database, log.Named("database"))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	db := dbService.DB()
	log.Info("Database health check", zap.Any("health", dbService.Health()))

	if err := database.RunMigrations(db, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database migrations completed successfully")

	tables, err := category.LoadFile(cfg.Search.CatalogFile)
	if err != nil {
		log.Fatal("Failed to load catalog tables", zap.Error(err))
	}

	syncCtx, cancelSync := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repository.NewStoreRepository(db).Sync(syncCtx, tables.Stores); err != nil {
		log.Fatal("Failed to sync stores", zap.Error(err))
	}
	if err := repository.NewCategoryRepository(db).Sync(syncCtx, tables.Categories); err != nil {
		log.Fatal("Failed to sync categories", zap.Error(err))
	}
	cancelSync()

	classifier := category.NewClassifier(tables.Categories)

	redisClient := connectRedis(cfg.Redis, log)

	var session *browser.Session
	if cfg.Browser.Enabled {
		session = browser.NewSession(browser.Config{
			RemoteURL: cfg.Browser.RemoteURL,
			NoSandbox: cfg.Browser.NoSandbox,
			UserAgent: cfg.Crawler.UserAgent,
			Timeout:   cfg.Crawler.Timeout,
			Settle:    cfg.Browser.Settle,
			Logger:    log.Named("browser"),
		})
	}

	sources, err := crawler.LoadSources(cfg.Crawler.SourcesFile)
	if err != nil {
		log.Fatal("Failed to load crawler sources", zap.Error(err))
	}

	deps := crawler.Dependencies{
		HTTP: crawler.NewHTTPClient(crawler.HTTPOptions{
			Timeout:   cfg.Crawler.Timeout,
			UserAgent: cfg.Crawler.UserAgent,
		}),
		Redis:    redisClient,
		CacheTTL: cfg.Crawler.CacheTTL,
		Logger:   log.Named("crawler"),
	}
	// a nil *Session must not become a non-nil Evaluator
	if session != nil {
		deps.Browser = session
	}

	crawlers, err := crawler.Build(sources, deps)
	if err != nil {
		log.Fatal("Failed to build crawlers", zap.Error(err))
	}
	orchestrator := crawler.NewOrchestrator(crawlers, classifier, log.Named("orchestrator"))
	log.Info("Crawlers ready", zap.Int("sources", len(crawlers)))

	preferred := cfg.Search.PreferredStores
	if len(preferred) == 0 {
		preferred = tables.PreferredStores()
	}
	ranker := ranking.NewRanker(classifier, tables.Exclusions, preferred)

	productRepo := repository.NewProductRepository(db)

	mergeService := service.NewMergeService(
		repository.NewCatalogStore(db),
		classifier,
		decimal.NewFromInt(cfg.Merge.NotifyThreshold),
		log.Named("merge"),
	)
	searchService := service.NewSearchService(orchestrator, ranker, mergeService, cfg.Search.MaxResults, log.Named("search"))
	catalogService := service.NewCatalogService(
		productRepo,
		repository.NewPriceHistoryRepository(db),
		repository.NewCategoryRepository(db),
		repository.NewStoreRepository(db),
		log.Named("catalog"),
	)
	notificationService := service.NewNotificationService(repository.NewNotificationRepository(db))

	var refreshTask *task.RefreshTask
	if cfg.Refresh.Enabled {
		refreshService := service.NewRefreshService(productRepo, orchestrator, mergeService, service.RefreshOptions{
			BatchSize:       cfg.Refresh.BatchSize,
			StaleAfter:      cfg.Refresh.StaleAfter,
			NotifyThreshold: decimal.NewFromInt(cfg.Refresh.NotifyThreshold),
		}, log.Named("refresh"))

		refreshTask, err = task.NewRefreshTask(refreshService, cfg.Refresh.Schedule, log.Named("refresh"))
		if err != nil {
			log.Fatal("Failed to create refresh task", zap.Error(err))
		}
		if err := refreshTask.Start(); err != nil {
			log.Fatal("Failed to start refresh task", zap.Error(err))
		}
	}

	srvDeps := server.Dependencies{
		DB:            dbService,
		Redis:         redisClient,
		Refresh:       refreshTask,
		Search:        searchService,
		Catalog:       catalogService,
		Notifications: notificationService,
	}
	if session != nil {
		srvDeps.Browser = session
	}
	srv := server.NewServer(cfg, log, srvDeps)

	done := make(chan bool, 1)
	go gracefulShutdown(srv, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}

// connectRedis returns nil when redis is disabled or unreachable; rate
// limiting and the crawl cache are then skipped
func connectRedis(cfg config.RedisConfig, log *zap.Logger) *redis.Client {
	if !cfg.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unavailable, continuing without cache and rate limiting", zap.Error(err))
		_ = client.Close()
		return nil
	}
	log.Info("Connected to redis", zap.String("addr", client.Options().Addr))
	return client
}
