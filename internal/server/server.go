package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"price-scout/internal/config"
	"price-scout/internal/database"
	custommiddleware "price-scout/internal/middleware"
	"price-scout/internal/service"
	"price-scout/internal/task"
	"price-scout/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies are the components the HTTP server exposes and later releases.
// Redis, Browser and Refresh are optional.
type Dependencies struct {
	DB            database.Service
	Redis         *redis.Client
	Browser       io.Closer
	Refresh       *task.RefreshTask
	Search        service.SearchService
	Catalog       service.CatalogService
	Notifications service.NotificationService
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	deps   Dependencies
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.CORSOrigins))

	router.Get("/health", healthHandler(deps.DB))

	var limiter func(http.Handler) http.Handler
	if cfg.RateLimit.Enabled && deps.Redis != nil {
		limiter = custommiddleware.RateLimitMiddleware(deps.Redis, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "ratelimit:search",
		}, logger)
	}

	transport.NewSearchHandler(deps.Search, logger.Named("search")).RegisterRoutes(router, limiter)
	transport.NewCatalogHandler(deps.Catalog, logger.Named("catalog")).RegisterRoutes(router)
	transport.NewNotificationHandler(deps.Notifications, logger.Named("notifications")).RegisterRoutes(router)

	return &Server{
		Server: &http.Server{
			Addr:        fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:     router,
			IdleTimeout: time.Minute,
			ReadTimeout: 10 * time.Second,
			// a live search waits for the slowest source
			WriteTimeout: cfg.Crawler.Timeout + 30*time.Second,
		},
		config: cfg,
		logger: logger,
		deps:   deps,
	}
}

func healthHandler(db database.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			custommiddleware.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		health := db.Health()
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	}
}

// Close releases everything the server was given, the scheduler first so no
// refresh starts against a closing pool
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.deps.Refresh != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := s.deps.Refresh.Stop(ctx); err != nil {
			s.logger.Error("Refresh task did not stop in time", zap.Error(err))
		}
		cancel()
	}

	if s.deps.Browser != nil {
		if err := s.deps.Browser.Close(); err != nil {
			s.logger.Error("Failed to close browser session", zap.Error(err))
		}
	}

	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.deps.DB != nil {
		if err := s.deps.DB.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	_ = s.logger.Sync()
	return nil
}
