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

	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/scenesmith/genqueue/config"
	"github.com/scenesmith/genqueue/core"
	"github.com/scenesmith/genqueue/logging"
	"github.com/scenesmith/genqueue/metrics"
	promexport "github.com/scenesmith/genqueue/observability/prometheus"
	"github.com/scenesmith/genqueue/probe"
)

const (
	metricsNamespace = "genqueue"
	shutdownTimeout  = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	var simulate bool

	command := &cobra.Command{
		Use:   "serve",
		Short: "Run the admission queue and its HTTP API",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(simulate)
		},
	}

	command.Flags().BoolVar(&simulate, "simulate", false,
		"attach a built-in executor that finishes tasks after a short delay")
	return command
}

func runServe(simulate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewZap(logging.Config{Level: cfg.LogLevel, Development: cfg.DevMode})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	queueCfg := core.QueueConfig{
		FailureThreshold:    cfg.FailureThreshold,
		Cooldown:            cfg.Cooldown,
		DefaultTaskTimeout:  cfg.DefaultTaskTimeout,
		GateRecheckInterval: cfg.GateRecheckInterval,
		HeadroomMB:          cfg.HeadroomMB,
		RecentTaskLimit:     cfg.RecentTaskLimit,
		Logger:              logger.With(logging.F("component", "queue")),
	}
	if cfg.MemoryProbe == "system" {
		queueCfg.Probe = probe.NewSystemMemory()
	}
	if cfg.RequirementsFile != "" {
		reqs, err := config.LoadRequirements(cfg.RequirementsFile)
		if err != nil {
			return fmt.Errorf("load requirements: %w", err)
		}
		table := make(map[core.TaskType]uint64, len(reqs.PerType))
		for taskType, mb := range reqs.PerType {
			table[core.TaskType(taskType)] = mb
		}
		queueCfg.Requirements = table
		queueCfg.DefaultRequirementMB = reqs.DefaultMB
		logger.Info("memory requirements loaded",
			logging.F("file", cfg.RequirementsFile),
			logging.F("types", len(table)))
	}

	queue := core.NewAdmissionQueue(queueCfg)
	collector := metrics.NewCollector(metrics.Config{
		WindowDuration:    cfg.WindowDuration,
		SnapshotInterval:  cfg.SnapshotInterval,
		EventBufferCap:    cfg.EventBufferCap,
		SnapshotBufferCap: cfg.SnapshotBufferCap,
		HistoryLimit:      cfg.HistoryLimit,
		Logger:            logger.With(logging.F("component", "metrics")),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue.Start(ctx)
	detachMetrics, err := metrics.Attach(ctx, queue, collector)
	if err != nil {
		return fmt.Errorf("attach metrics: %w", err)
	}

	exporter, err := promexport.NewExporter(metricsNamespace, prom.DefaultRegisterer, promexport.ExporterOptions{})
	if err != nil {
		return fmt.Errorf("init prometheus exporter: %w", err)
	}
	unsubscribeExporter := queue.Subscribe(exporter)

	poller, err := promexport.NewStatePoller(metricsNamespace, prom.DefaultRegisterer, queue, cfg.SnapshotInterval)
	if err != nil {
		return fmt.Errorf("init state poller: %w", err)
	}
	poller.Start(ctx)

	switch {
	case simulate:
		sim := newSimExecutor(queue, logger.With(logging.F("component", "simulator")))
		queue.SetDispatch(sim.Dispatch)
		logger.Info("simulated executor attached")
	case cfg.ExecutorURL != "":
		hook := newWebhookExecutor(cfg.ExecutorURL, queue, logger.With(logging.F("component", "executor")))
		queue.SetDispatch(hook.Dispatch)
		logger.Info("executor webhook attached", logging.F("url", cfg.ExecutorURL))
	default:
		logger.Warn("no executor configured, tasks will queue until GENQUEUE_EXECUTOR_URL is set or --simulate is used")
	}

	if !cfg.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger.With(logging.F("component", "http"))))

	api := &server{queue: queue, collector: collector, logger: logger}
	api.registerRoutes(router)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("http server listening", logging.F("addr", cfg.HTTPAddr))
		serverErrors <- httpServer.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", logging.F("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed, forcing close", logging.F("error", err))
		_ = httpServer.Close()
	}

	unsubscribeExporter()
	detachMetrics()
	poller.Stop()
	queue.Stop()

	logger.Info("shutdown complete")
	return nil
}
