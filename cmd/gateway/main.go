package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	osSignal "os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"

	"webrtc-gateway/internal/core/domain"
	"webrtc-gateway/internal/core/services"
	httphandlers "webrtc-gateway/internal/handlers/http"
	"webrtc-gateway/internal/infrastructure/ipc"
	"webrtc-gateway/internal/infrastructure/middleware"
	"webrtc-gateway/internal/infrastructure/monitoring"
	signalinfra "webrtc-gateway/internal/infrastructure/signal"
	"webrtc-gateway/internal/infrastructure/stats"
	webrtcinfra "webrtc-gateway/internal/infrastructure/webrtc"
	"webrtc-gateway/pkg/config"
	"webrtc-gateway/pkg/logger"
	"webrtc-gateway/pkg/tracing"
)

func main() {
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/webrtc-gateway/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "webrtc-gateway",
		JaegerURL:   cfg.Tracing.JaegerURL,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	queue := domain.NewIngestQueue(cfg.IPC.VideoBufferSize, cfg.IPC.AudioBufferSize)
	metricsService := services.NewMetricsService()
	batchedMetrics := services.NewBatchedMetricsService(metricsService, 32, 250*time.Millisecond)
	defer batchedMetrics.Stop()

	ipcConsumer := ipc.NewConsumer(cfg.IPC.SocketPath, queue, batchedMetrics, zapLogger)

	var iceServers []webrtc.ICEServer
	for _, s := range cfg.WebRTC.ICEServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	peerManager := webrtcinfra.NewManager(webrtcinfra.Config{
		VideoCodec:   domain.VideoCodec(cfg.WebRTC.VideoCodec),
		AudioCodec:   "opus",
		ICEServers:   iceServers,
		PortRangeMin: cfg.WebRTC.PortRangeMin,
		PortRangeMax: cfg.WebRTC.PortRangeMax,
	}, 0, zapLogger)

	distribution := services.NewDistributionService(queue, peerManager, batchedMetrics, zapLogger)

	statsSink := stats.New(cfg, zapLogger)
	defer statsSink.Close()

	var prometheusCollector *monitoring.PrometheusCollector
	if cfg.Monitoring.PrometheusEnabled {
		prometheusCollector = monitoring.NewPrometheusCollector()
	}
	statsPublisher := monitoring.NewStatsPublisher(metricsService, peerManager, ipcConsumer, prometheusCollector, statsSink, cfg.Monitoring.MetricsInterval)

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddCheck("stats_sink", func(checkCtx context.Context) (bool, error) {
		if err := stats.CheckReady(checkCtx, statsSink); err != nil {
			log.Warnw("stats sink health check failed", "error", err)
			return false, err
		}
		return true, nil
	}, 10*time.Second, 3*time.Second)
	healthChecker.AddCheck("ipc_producer", func(context.Context) (bool, error) {
		if !ipcConsumer.IsConnected() {
			log.Warnw("ipc producer disconnected")
		}
		return true, nil // producer disconnects surface via /webrtc/health, never block readiness
	}, 10*time.Second, 3*time.Second)

	signalingHandler := httphandlers.NewSignalingHandler(
		peerManager,
		metricsService,
		ipcConsumer,
		healthCheckerReadiness{checker: healthChecker},
		zapLogger,
	)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Signaling.AllowedOrigins))
	router.Use(middleware.SizeLimitMiddleware(64 * 1024))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	signalingHandler.SetupRoutes(router)

	if cfg.CandidatePush.Enabled {
		candidateStream := signalinfra.NewCandidateStream(peerManager, cfg.Signaling.AllowedOrigins, zapLogger)
		router.GET("/webrtc/candidates", gin.WrapH(candidateStream))
	}

	srv := &http.Server{
		Addr:         cfg.Signaling.ListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.Signaling.ReadTimeout,
		WriteTimeout: cfg.Signaling.WriteTimeout,
	}

	runCtx, cancelRun := context.WithCancel(context.Background())

	go func() {
		if err := ipcConsumer.Run(runCtx); err != nil {
			log.Errorw("ipc consumer stopped with error", "error", err)
		}
	}()
	go distribution.Run(runCtx)
	go statsPublisher.Run(runCtx)
	healthChecker.StartBackgroundChecks(runCtx)

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting signaling server", "addr", cfg.Signaling.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	osSignal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Errorw("signaling server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	log.Info("shutting down webrtc-gateway")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Signaling.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during signaling server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing signaling server", "error", closeErr)
		}
	}

	cancelRun()

	sessionCloseCtx, sessionCloseCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer sessionCloseCancel()
	if err := peerManager.Close(sessionCloseCtx); err != nil {
		log.Errorw("error closing peer sessions", "error", err)
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer provider", "error", err)
	}

	log.Info("webrtc-gateway stopped")
}

// healthCheckerReadiness adapts a *monitoring.HealthChecker into the narrow
// Ready(ctx) error shape the signaling handler's /ready endpoint expects.
type healthCheckerReadiness struct {
	checker *monitoring.HealthChecker
}

func (r healthCheckerReadiness) Ready(ctx context.Context) error {
	status := r.checker.CheckAll(ctx)
	if status.Status != "healthy" {
		return fmt.Errorf("unhealthy: %v", status.Checks)
	}
	return nil
}
