package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/ap-automation/internal/bootstrap"
	"github.com/kirillkom/ap-automation/internal/config"
	"github.com/kirillkom/ap-automation/internal/observability/logging"
	"github.com/kirillkom/ap-automation/internal/observability/metrics"
)

const serviceName = "ap-worker"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	// The worker always consumes from the queue.
	cfg.ProcessInline = false
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	workerMetrics.MustRegister(app.WorkflowMetrics.Collectors()...)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	app.Queue.OnLag(func(lag time.Duration) {
		workerMetrics.ObserveQueueLag(serviceName, lag)
	})

	timeout := time.Duration(cfg.WorkerProcessTimeoutSeconds) * time.Second
	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "process_timeout", timeout.String())
	err = app.Queue.SubscribeInvoiceUploaded(ctx, func(handlerCtx context.Context, invoiceID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, timeout)
		defer cancel()

		workerMetrics.StartInvoice()
		started := time.Now()
		err := app.ProcessUC.ProcessByID(processCtx, invoiceID)
		workerMetrics.FinishInvoice(serviceName, time.Since(started), err)
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
