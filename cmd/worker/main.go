package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/legal-rag-assistant/internal/bootstrap"
	"github.com/kirillkom/legal-rag-assistant/internal/config"
	"github.com/kirillkom/legal-rag-assistant/internal/observability/logging"
	"github.com/kirillkom/legal-rag-assistant/internal/observability/metrics"
)

const (
	serviceName    = "worker"
	processTimeout = 10 * time.Minute
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err.Error())
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject, "metrics_port", cfg.WorkerMetricsPort)
	err = app.Queue.SubscribeCorpusUploaded(ctx, func(handlerCtx context.Context, runID string) error {
		if run, err := app.Runs.GetByID(handlerCtx, runID); err == nil {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(run.CreatedAt))
		}

		processCtx, cancel := context.WithTimeout(handlerCtx, processTimeout)
		defer cancel()

		workerMetrics.StartRun()
		started := time.Now()
		err := app.ProcessUC.ProcessByID(processCtx, runID)

		indexed := 0
		if err == nil {
			if run, getErr := app.Runs.GetByID(handlerCtx, runID); getErr == nil {
				indexed = run.DocsIndexed
			}
		}
		workerMetrics.FinishRun(serviceName, time.Since(started), indexed, err)
		slog.Info("ingest_run_processed", "run_id", runID, "docs_indexed", indexed, "ok", err == nil)
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker_subscribe_failed", "error", err.Error())
		os.Exit(1)
	}
}
