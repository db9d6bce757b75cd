package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/facegate/facegate/internal/adapters/index"
	"github.com/facegate/facegate/internal/adapters/pipeline"
	app "github.com/facegate/facegate/internal/app"
	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/domain/model"
	"github.com/facegate/facegate/internal/perception"
	"github.com/facegate/facegate/pkg/logger"
	"github.com/facegate/facegate/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	statsLogInterval  = 30 * time.Second
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	zones, err := app.ZonesFromConfig(cfg.Zones)
	if err != nil {
		log.Error(ctx, "invalid zone configuration", logger.Error(err))
		return
	}
	grants := app.GrantsFromConfig(cfg.Grants)

	// The simulated perception engine stands in for the real detector and
	// encoder processes during development.
	sim := perception.NewSimEngine()

	svc := app.New(
		app.WithLogger(log),
		app.WithDetector(sim),
		app.WithEncoder(sim),
		app.WithIdentityRepository(perception.NewStaticRepository()),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithWorkQueueSize(cfg.WorkQueueSize),
		app.WithBatchSize(cfg.BatchSize),
		app.WithBatchTimeout(time.Duration(cfg.BatchTimeoutMS)*time.Millisecond),
		app.WithFrameQueueCapacity(cfg.FrameQueueSize),
		app.WithDispatchBuffer(cfg.DispatchBuffer),
		app.WithCacheCapacity(cfg.CacheCapacity),
		app.WithCacheTTL(time.Duration(cfg.CacheTTLMS)*time.Millisecond),
		app.WithMetric(index.ParseMetric(cfg.DistanceMetric)),
		app.WithMaxDistance(cfg.MaxDistance),
		app.WithTieEpsilon(cfg.TieEpsilon),
		app.WithTuning(pipeline.Tuning{
			MatchThreshold:          cfg.MatchThreshold,
			QualityFloor:            cfg.QualityFloor,
			DetectorConfidenceFloor: cfg.DetectorConfidenceFloor,
		}),
		app.WithRules(zones, grants),
		app.WithCameraZones(cfg.Cameras),
	)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	// Denied decisions go to the external notification system; here the
	// sink is a structured log line.
	alertLog := log.Named("alerts")
	if err := svc.RegisterAlertSink(ctx, "alert-log", func(d model.AccessDecision) {
		alertLog.Warn(ctx, "access denied",
			logger.String("identity", d.IdentityID),
			logger.String("zone", d.ZoneID),
			logger.String("reason", string(d.Reason)),
		)
	}); err != nil {
		log.Error(ctx, "failed to register alert sink", logger.Error(err))
		return
	}

	go logStatsLoop(ctx, svc, log)

	// HTTP mux: operational surface only. The business API lives in the
	// external API layer.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "stopped")
}

// logStatsLoop periodically logs service statistics.
func logStatsLoop(ctx context.Context, svc *app.Service, log logger.Logger) {
	ticker := time.NewTicker(statsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Debug(ctx, "service stats", logger.Any("stats", svc.Stats()))
		}
	}
}
