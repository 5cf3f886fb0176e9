// Package main is the entry point for the jobtrack notifier.
// The notifier fans due reminders out into the notification queue and
// drains the queue through the configured delivery channels.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobtrack/internal/authz"
	"jobtrack/internal/config"
	"jobtrack/internal/logger"
	"jobtrack/internal/observability"
	"jobtrack/internal/reminder"
	"jobtrack/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger := logger.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pg.Close()

	// Tracing
	shutdownTracer, err := observability.Init(ctx, "jobtrack-notifier", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	directory := authz.NewDirectory(pg)
	scheduler := reminder.NewScheduler(pg, directory, slogger)

	dispatcher := reminder.NewDispatcher(pg, reminder.NewLogDeliverer(slogger), reminder.DispatcherConfig{
		Concurrency:  cfg.NotifierConcurrency,
		PollInterval: cfg.NotifierPollInterval,
		MaxBackoff:   cfg.NotifierMaxBackoff,
	}, slogger)

	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		if err := dispatcher.Run(ctx); err != nil {
			log.Printf("Dispatcher stopped: %v", err)
		}
	}()

	// Periodic scan for due reminders. Each pass moves due, unsent
	// reminders into the notification queue.
	go func() {
		ticker := time.NewTicker(cfg.ReminderScanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				n, err := scheduler.DispatchDue(ctx, now)
				if err != nil {
					slogger.Warn("due reminder scan failed", "error", err)
					continue
				}
				if n > 0 {
					slogger.Info("due reminders dispatched", "count", n)
				}
			}
		}
	}()

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()

	// Start a dedicated metrics server on port 6172
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		log.Println("Notifier metrics listening on :6172")
		if err := http.ListenAndServe(":6172", mux); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	log.Printf("Notifier started with concurrency %d", cfg.NotifierConcurrency)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down notifier...")
	cancel()

	<-dispatcherDone
}
