package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httphandlers "peerlink/internal/handlers/http"
	"peerlink/internal/infrastructure/middleware"
	"peerlink/internal/infrastructure/monitoring"
	repositories "peerlink/internal/infrastructure/repositories"
	signalinfra "peerlink/internal/infrastructure/signal"
	"peerlink/pkg/config"
	"peerlink/pkg/logger"
	"peerlink/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/peerlink/config.yaml",
		"config.yaml",
	}
	if path := os.Getenv("PEERLINK_CONFIG"); path != "" {
		configPaths = append([]string{path}, configPaths...)
	}

	var cfg *config.Config
	var err error
	var loadedFrom string

	for _, path := range configPaths {
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err = config.Load(path)
		if err == nil {
			loadedFrom = path
			break
		}
	}

	loadErr := err
	if cfg == nil || err != nil {
		// Fallback to defaults (plus env overrides) if no config file is usable
		if cfg, err = config.Load(""); err != nil {
			cfg = config.DefaultConfig()
		}
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()
	if loadedFrom != "" {
		log.Infow("loaded config", "path", loadedFrom)
	} else {
		log.Infow("no usable config file, using defaults", "error", loadErr)
	}

	// Tracing
	tracer, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Initialize repository factory
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}

	instanceID := uuid.NewString()
	registry := repoFactory.CreateUserRegistry()
	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)

	relay := signalinfra.NewRelay(registry,
		signalinfra.WithPresencePublisher(repoFactory.CreatePresencePublisher(instanceID)),
		signalinfra.WithMetrics(collector),
		signalinfra.WithLogger(zapLogger),
	)
	wsServer := signalinfra.NewWebSocketServer(relay, cfg, collector, zapLogger)

	// Health checks
	health := monitoring.NewHealthChecker()
	health.AddDrainCheck(wsServer.Draining, cfg.Monitoring.HealthCheckInterval)
	if client := repoFactory.RedisClient(); client != nil {
		health.AddRedisCheck(client, cfg.Monitoring.HealthCheckInterval, cfg.Monitoring.HealthCheckTimeout)
	}

	checksCtx, stopChecks := context.WithCancel(context.Background())
	defer stopChecks()
	health.StartBackgroundChecks(checksCtx)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestLoggerMiddleware(logger.NewContextLogger(zapLogger)),
		middleware.TracingMiddleware(),
		middleware.ErrorHandlerMiddleware(log),
		middleware.NewHTTPRateLimitMiddleware(cfg),
	)

	router.GET(cfg.Signal.Path,
		middleware.NewWebSocketConnectLimitMiddleware(cfg),
		gin.WrapF(wsServer.HandleWebSocket),
	)

	relayHandler := httphandlers.NewRelayHandler(relay, wsServer, health, cfg)
	relayHandler.SetupRoutes(router)

	// Prometheus metrics endpoint
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	// Client UI
	if cfg.Server.StaticDir != "" {
		router.NoRoute(gin.WrapH(http.FileServer(http.Dir(cfg.Server.StaticDir))))
		log.Infow("serving static files", "dir", cfg.Server.StaticDir)
	}

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting signaling relay",
			"address", cfg.Server.Address,
			"path", cfg.Signal.Path,
			"instance_id", instanceID,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Errorw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	log.Info("shutting down signaling relay...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Hijacked sockets are not tracked by http.Server, so close them separately.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Warnw("websocket connections did not drain in time", "error", err, "open", wsServer.ConnectionCount())
	}

	relay.Close()
	stopChecks()

	if err := repoFactory.Close(); err != nil {
		log.Errorw("error closing repository factory", "error", err)
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := tracer.Shutdown(flushCtx); err != nil {
		log.Warnw("error flushing traces", "error", err)
	}

	log.Info("signaling relay stopped")
}
