// Package main provides the studyplan API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" // #nosec G108 - pprof is intentionally exposed for debugging, isolated to separate port
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muaviaUsmani/studyplan/internal/api"
	"github.com/muaviaUsmani/studyplan/internal/config"
	"github.com/muaviaUsmani/studyplan/internal/logger"
	"github.com/muaviaUsmani/studyplan/internal/metrics"
	"github.com/muaviaUsmani/studyplan/internal/plan"
	"github.com/muaviaUsmani/studyplan/internal/service"
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
	defer func() {
		if err := log.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close logger: %v\n", err)
		}
	}()

	logger.SetDefault(log)
	apiLog := log.WithComponent(logger.ComponentAPI)

	apiLog.Info("API server starting",
		"redis_url", cfg.RedisURL,
		"api_port", cfg.APIPort,
		"plan_ttl", cfg.PlanTTL,
		"run_timeout", cfg.RunTimeout)

	// Start pprof server on separate port for profiling
	pprofPort := os.Getenv("PPROF_PORT")
	if pprofPort == "" {
		pprofPort = "6060"
	}
	go func() {
		apiLog.Info("Starting pprof server", "port", pprofPort, "url", fmt.Sprintf("http://localhost:%s/debug/pprof/", pprofPort))
		pprofServer := &http.Server{
			Addr:              ":" + pprofPort,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := pprofServer.ListenAndServe(); err != nil {
			apiLog.Error("pprof server failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := plan.ConnectRedis(ctx, cfg.RedisURL, 5, apiLog)
	if err != nil {
		apiLog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	store := plan.NewRedisStore(client, cfg.PlanTTL)
	defer store.Close()

	m := metrics.Default()
	svc, err := service.New(store, cfg.Preferences, cfg.Policy,
		service.WithLogger(log.WithComponent(logger.ComponentService)),
		service.WithMetrics(m),
	)
	if err != nil {
		apiLog.Error("Failed to create plan service", "error", err)
		os.Exit(1)
	}

	handler := api.NewServer(svc, m, log).Handler()
	addr := ":" + cfg.APIPort
	server := &http.Server{
		Addr:              addr,
		Handler:           http.TimeoutHandler(handler, cfg.RunTimeout, `{"error":"request timed out"}`),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RunTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// SIGHUP rotates the log file
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if err := log.Rotate(); err != nil {
				apiLog.Error("Failed to rotate log file", "error", err)
			}
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		apiLog.Info("API server listening", "address", addr)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			apiLog.Error("API server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		apiLog.Info("Received shutdown signal, initiating graceful shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		apiLog.Error("Graceful shutdown failed", "error", err)
	}
	apiLog.Info("API server shut down successfully")
}
