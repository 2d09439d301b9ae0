// Package main provides the studyplan re-plan scheduler daemon.
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" // #nosec G108 - pprof is intentionally exposed for debugging, isolated to separate port
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muaviaUsmani/studyplan/internal/config"
	"github.com/muaviaUsmani/studyplan/internal/logger"
	"github.com/muaviaUsmani/studyplan/internal/metrics"
	"github.com/muaviaUsmani/studyplan/internal/plan"
	"github.com/muaviaUsmani/studyplan/internal/scheduler"
	"github.com/muaviaUsmani/studyplan/internal/service"
	"github.com/muaviaUsmani/studyplan/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	logger.SetDefault(log)
	schedulerLog := log.WithComponent(logger.ComponentScheduler)

	schedulerLog.Info("Scheduler starting",
		"redis_url", cfg.RedisURL,
		"replan_enabled", cfg.ReplanEnabled,
		"replan_interval", cfg.ReplanInterval,
		"worker_concurrency", cfg.WorkerConcurrency,
		"schedules_file", cfg.SchedulesFile)

	m := metrics.Default()

	// pprof and /metrics share a debug port
	debugPort := os.Getenv("PPROF_PORT")
	if debugPort == "" {
		debugPort = "6062"
	}
	http.Handle("/metrics", m.Handler())
	go func() {
		schedulerLog.Info("Starting debug server", "port", debugPort, "url", fmt.Sprintf("http://localhost:%s/debug/pprof/", debugPort))
		debugServer := &http.Server{
			Addr:              ":" + debugPort,
			ReadHeaderTimeout: 5 * time.Second,
		}
		if err := debugServer.ListenAndServe(); err != nil {
			schedulerLog.Error("Debug server failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.ReplanEnabled {
		schedulerLog.Info("Periodic re-planning is disabled, waiting for shutdown")
		<-ctx.Done()
		return
	}

	registry := scheduler.NewRegistry()
	if cfg.SchedulesFile != "" {
		schedules, err := scheduler.LoadSchedules(cfg.SchedulesFile)
		if err != nil {
			schedulerLog.Error("Failed to load schedules", "error", err)
			os.Exit(1)
		}
		if err := registry.RegisterAll(schedules); err != nil {
			schedulerLog.Error("Failed to register schedules", "error", err)
			os.Exit(1)
		}
	}
	if registry.Count() == 0 {
		schedulerLog.Warn("No re-plan schedules registered")
	}

	client, err := plan.ConnectRedis(ctx, cfg.RedisURL, 5, schedulerLog)
	if err != nil {
		schedulerLog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	store := plan.NewRedisStore(client, cfg.PlanTTL)
	defer store.Close()

	svc, err := service.New(store, cfg.Preferences, cfg.Policy,
		service.WithLogger(log.WithComponent(logger.ComponentService)),
		service.WithMetrics(m),
	)
	if err != nil {
		schedulerLog.Error("Failed to create plan service", "error", err)
		os.Exit(1)
	}

	pool := worker.NewPool(cfg.WorkerConcurrency, cfg.RunTimeout, cfg.WorkerConcurrency*4, log, m)
	pool.Start(ctx)

	cron := scheduler.NewCronScheduler(registry, svc, pool, client, cfg.ReplanInterval)
	cron.SetLogger(schedulerLog)
	cron.SetMetrics(m)

	schedulerLog.Info("Scheduler ready", "schedules", registry.Count())
	cron.Start(ctx)

	schedulerLog.Info("Received shutdown signal, initiating graceful shutdown")
	pool.Stop(cfg.RunTimeout)
	schedulerLog.Info("Scheduler shut down successfully")
}
