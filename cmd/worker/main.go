package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pabraksas/pay-connector/internal/bootstrap"
	"github.com/pabraksas/pay-connector/internal/capture"
	"github.com/pabraksas/pay-connector/internal/events"
	"github.com/pabraksas/pay-connector/internal/gateway"
	infraRedis "github.com/pabraksas/pay-connector/internal/infrastructure/redis"
	"github.com/pabraksas/pay-connector/internal/repository/postgres"
	"github.com/pabraksas/pay-connector/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "pay-connector-worker", "pay_connector")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()
	cfg := app.Config

	// --- Persistence ---
	chargeRepo := postgres.NewChargeRepository(app.Pool)
	emittedEventRepo := postgres.NewEmittedEventRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Event outbox ---
	eventBus := infraRedis.NewEventBus(app.Redis)
	eventService := events.NewEventService(eventBus, emittedEventRepo, app.Logger, app.Metrics)
	offerer := events.NewStateTransitionService(eventService, cfg.Events.EmitRetryDelay, app.Logger)
	sweeper := events.NewSweeper(
		emittedEventRepo, eventBus,
		cfg.Events.SweepInterval, cfg.Events.SweepBatchSize,
		app.Logger, app.Metrics,
	)

	// --- State machine ---
	chargeService := service.NewChargeService(
		chargeRepo, txManager, offerer,
		service.Config{
			EmitStateTransitionEvents: cfg.Events.EmitStateTransitionEvents,
			MaxCaptureRetries:         cfg.Capture.MaxRetries,
		},
		app.Logger, app.Metrics,
	)

	// --- Gateway providers ---
	breakerSettings := gateway.DefaultBreakerSettings()
	breakerSettings.MaxRequests = cfg.Gateway.BreakerMaxRequests
	breakerSettings.Interval = cfg.Gateway.BreakerInterval
	breakerSettings.Timeout = cfg.Gateway.BreakerTimeout
	breakerSettings.MinRequests = cfg.Gateway.BreakerThreshold
	breakerSettings.OnStateChange = func(name string, _, to gobreaker.State) {
		app.Metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
	}
	providerFactory := gateway.NewFactory(breakerSettings)

	// --- Capture queue ---
	captureQueue := infraRedis.NewCaptureQueue(
		app.Redis,
		cfg.Capture.ConsumerGroup,
		cfg.InstanceID,
		cfg.Capture.BatchSize,
		cfg.Capture.BlockDuration,
		cfg.Capture.VisibilityTimeout,
	)
	if err := captureQueue.EnsureGroup(ctx); err != nil {
		app.Logger.Fatal().Err(err).Msg("Failed to create capture consumer group")
	}
	processor := capture.NewProcessor(
		captureQueue, chargeService, providerFactory,
		cfg.Capture.MaxRetries,
		app.Logger, app.Metrics,
	)

	app.Logger.Info().
		Str("stream", infraRedis.CaptureStream).
		Str("group", cfg.Capture.ConsumerGroup).
		Str("consumer", cfg.InstanceID).
		Int("max_capture_retries", cfg.Capture.MaxRetries).
		Msg("Worker started, listening for capture messages...")

	// Signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Capture queue processor.
	g.Go(func() error {
		return processor.Run(gCtx)
	})

	// 2. Emitted-event sweeper.
	g.Go(func() error {
		return sweeper.Run(gCtx)
	})

	// 3. Ops endpoint: health and metrics.
	opsServer := newOpsServer(cfg.Ops.Port)
	g.Go(func() error {
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Ops.ShutdownTimeout)
		defer shutdownCancel()
		return opsServer.Shutdown(shutdownCtx)
	})

	// 4. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

func newOpsServer(port int) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
