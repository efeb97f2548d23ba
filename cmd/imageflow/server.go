package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/BaSui01/imageflow/api/handlers"
	"github.com/BaSui01/imageflow/config"
	"github.com/BaSui01/imageflow/dispatch"
	"github.com/BaSui01/imageflow/internal/database"
	"github.com/BaSui01/imageflow/internal/metrics"
	"github.com/BaSui01/imageflow/internal/server"
	"github.com/BaSui01/imageflow/internal/telemetry"
	"github.com/BaSui01/imageflow/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// =============================================================================
// 🖥️ Server
// =============================================================================

// Server wires the stores, dispatcher and HTTP surface together and manages
// their lifecycle.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers

	httpManager    *server.Manager
	metricsManager *server.Manager

	db      *gorm.DB
	pool    *database.PoolManager
	configs *store.ConfigStore
	history store.HistoryStore

	dispatcher  *dispatch.Dispatcher
	coordinator *dispatch.Coordinator

	generationHandler *handlers.GenerationHandler
	configHandler     *handlers.ConfigHandler
	historyHandler    *handlers.HistoryHandler
	uploadHandler     *handlers.UploadHandler
	metaHandler       *handlers.MetaHandler
	healthHandler     *handlers.HealthHandler

	metricsCollector *metrics.Collector

	rateLimiterCancel context.CancelFunc

	wg sync.WaitGroup
}

// NewServer creates a server around an already-opened and migrated database.
func NewServer(cfg *config.Config, logger *zap.Logger, otel *telemetry.Providers, db *gorm.DB) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		otel:   otel,
		db:     db,
	}
}

// =============================================================================
// 🚀 Startup
// =============================================================================

// Start brings up the stores, the dispatch layer and both HTTP listeners.
func (s *Server) Start() error {
	s.metricsCollector = metrics.NewCollector("imageflow", s.logger)

	if err := s.initStores(); err != nil {
		return fmt.Errorf("failed to init stores: %w", err)
	}

	s.initDispatch()
	s.initHandlers()

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("history_backend", s.cfg.History.Backend),
	)

	return nil
}

// =============================================================================
// 🔧 Initialization
// =============================================================================

// initStores sets up the connection pool, the config store and the selected
// history backend.
func (s *Server) initStores() error {
	poolCfg := database.DefaultPoolConfig()
	if s.cfg.Database.MaxOpenConns > 0 {
		poolCfg.MaxOpenConns = s.cfg.Database.MaxOpenConns
	}
	if s.cfg.Database.MaxIdleConns > 0 {
		poolCfg.MaxIdleConns = s.cfg.Database.MaxIdleConns
	}
	if s.cfg.Database.ConnMaxLifetime > 0 {
		poolCfg.ConnMaxLifetime = s.cfg.Database.ConnMaxLifetime
	}

	pool, err := database.NewPoolManager(s.db, poolCfg, s.metricsCollector, s.logger)
	if err != nil {
		return fmt.Errorf("failed to configure connection pool: %w", err)
	}
	s.pool = pool

	s.configs = store.NewConfigStore(s.db, s.logger)

	switch s.cfg.History.Backend {
	case "redis":
		redisHistory, err := store.NewRedisHistoryStore(store.RedisHistoryOptions{
			Addr:       s.cfg.Redis.Addr,
			Password:   s.cfg.Redis.Password,
			DB:         s.cfg.Redis.DB,
			PoolSize:   s.cfg.Redis.PoolSize,
			MaxEntries: s.cfg.History.MaxEntries,
		})
		if err != nil {
			return fmt.Errorf("failed to connect redis history: %w", err)
		}
		s.history = redisHistory
		s.logger.Info("History backend: redis", zap.String("addr", s.cfg.Redis.Addr))
	default:
		s.history = store.NewGormHistoryStore(s.db, s.logger)
		s.logger.Info("History backend: database")
	}

	return nil
}

// initDispatch builds the dispatcher and the stream coordinator.
func (s *Server) initDispatch() {
	s.dispatcher = dispatch.New(s.configs, s.history, s.logger, dispatch.Options{
		UpstreamTimeout: s.cfg.Providers.UpstreamTimeout,
		Limits: dispatch.Limits{
			MaxConcurrent:     s.cfg.Providers.MaxConcurrent,
			RequestsPerSecond: s.cfg.Providers.RequestsPerSecond,
			Burst:             s.cfg.Providers.Burst,
		},
		Metrics: s.metricsCollector,
	})

	s.coordinator = dispatch.NewCoordinator(s.dispatcher, s.logger, s.metricsCollector, s.cfg.Stream.ProgressDelay)
}

// initHandlers wires the HTTP handlers to the dispatch and storage layers.
func (s *Server) initHandlers() {
	s.generationHandler = handlers.NewGenerationHandler(s.dispatcher, s.coordinator, s.logger)
	s.configHandler = handlers.NewConfigHandler(s.configs, s.dispatcher, s.logger)
	s.historyHandler = handlers.NewHistoryHandler(s.history, s.logger)
	s.uploadHandler = handlers.NewUploadHandler(s.logger)
	s.metaHandler = handlers.NewMetaHandler(s.dispatcher, s.configs, s.history, s.logger)
	s.healthHandler = handlers.NewHealthHandler(s.db, s.logger)

	s.logger.Info("Handlers initialized")
}

// =============================================================================
// 🌐 HTTP server
// =============================================================================

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// ========================================
	// Probes
	// ========================================
	mux.HandleFunc("GET /health", s.healthHandler.Health)
	mux.HandleFunc("GET /healthz", s.healthHandler.Health)
	mux.HandleFunc("GET /ready", s.healthHandler.Ready)
	mux.HandleFunc("GET /readyz", s.healthHandler.Ready)
	mux.HandleFunc("GET /version", s.healthHandler.VersionInfo)

	// ========================================
	// Generation
	// ========================================
	mux.HandleFunc("POST /api/generate", s.generationHandler.Generate)
	mux.HandleFunc("POST /api/generate-stream", s.generationHandler.GenerateStream)
	mux.HandleFunc("POST /api/stream-generate", s.generationHandler.NativeStream)

	// ========================================
	// Provider configurations
	// Registered under both prefixes; clients predating the rename still
	// use /api/api-configs.
	// ========================================
	for _, prefix := range []string{"/api/configs", "/api/api-configs"} {
		mux.HandleFunc("GET "+prefix, s.configHandler.List)
		mux.HandleFunc("POST "+prefix, s.configHandler.Create)
		mux.HandleFunc("POST "+prefix+"/test", s.configHandler.Test)
		mux.HandleFunc("GET "+prefix+"/{id}", s.configHandler.Get)
		mux.HandleFunc("PUT "+prefix+"/{id}", s.configHandler.Update)
		mux.HandleFunc("DELETE "+prefix+"/{id}", s.configHandler.Delete)
	}

	// ========================================
	// History
	// ========================================
	for _, prefix := range []string{"/api/history", "/api/chat-history"} {
		mux.HandleFunc("GET "+prefix, s.historyHandler.Recent)
		mux.HandleFunc("DELETE "+prefix+"/{id}", s.historyHandler.Delete)
	}

	// ========================================
	// Uploads and metadata
	// ========================================
	mux.HandleFunc("POST /api/upload", s.uploadHandler.Upload)
	mux.HandleFunc("POST /api/batch-upload", s.uploadHandler.BatchUpload)
	mux.HandleFunc("GET /api/generation-types", s.metaHandler.GenerationTypes)
	mux.HandleFunc("GET /api/sizes", s.metaHandler.Sizes)
	mux.HandleFunc("GET /api/models", s.metaHandler.Models)
	mux.HandleFunc("GET /api/system-status", s.metaHandler.SystemStatus)

	// ========================================
	// Middleware chain
	// ========================================
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
		CORS(s.cfg.Server.CORSOrigins),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		middlewares = append(middlewares,
			RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger))
	}
	handler := Chain(mux, middlewares...)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics server
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 Shutdown
// =============================================================================

// WaitForShutdown blocks until a termination signal, then shuts everything down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops the listeners and releases store connections.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	if redisHistory, ok := s.history.(*store.RedisHistoryStore); ok {
		if err := redisHistory.Close(); err != nil {
			s.logger.Error("Redis history shutdown error", zap.Error(err))
		}
	}

	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			s.logger.Error("Database pool shutdown error", zap.Error(err))
		}
	}

	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.wg.Wait()

	s.logger.Info("Graceful shutdown completed")
}
