// Package main is the entry point for the jobtrack API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"jobtrack/internal/audit"
	"jobtrack/internal/authz"
	"jobtrack/internal/config"
	"jobtrack/internal/logger"
	"jobtrack/internal/observability"
	"jobtrack/internal/reminder"
	"jobtrack/internal/server"
	"jobtrack/internal/server/handlers"
	"jobtrack/internal/store/postgres"
	"jobtrack/internal/workflow"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	flag.Parse()

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

	if *migrateFlag {
		log.Println("Running database migrations...")
		if err := postgres.Migrate(pg.DB()); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
	}

	// Tracing
	shutdownTracer, err := observability.Init(ctx, "jobtrack-server", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
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

	// Use an Observable Gauge (Async) that queries the DB only when scraped.
	meter := otel.Meter("jobtrack-server")
	_, err = meter.Int64ObservableGauge("jobtrack.notifications.pending",
		metric.WithDescription("Current number of pending notification entries"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			count, err := pg.CountPendingNotifications(ctx)
			if err != nil {
				log.Printf("Failed to count pending notifications: %v", err)
				return nil // Don't crash metrics scrape on DB error
			}
			obs.Observe(count)
			return nil
		}),
	)
	if err != nil {
		log.Printf("Failed to register pending notifications metric: %v", err)
	}

	// Domain wiring
	directory := authz.NewDirectory(pg)
	graphs := workflow.NewGraphLoader(pg)
	refresher := workflow.NewRefresher(pg, slogger)
	go refresher.Run(ctx)

	engine := workflow.NewEngine(pg, directory, graphs, refresher, slogger)
	auditLog := audit.NewLog(pg, directory, slogger)
	scheduler := reminder.NewScheduler(pg, directory, slogger)

	h := handlers.New(pg, engine, auditLog, scheduler, directory, slogger)

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := server.New(server.Config{
		Addr:           addr,
		SystemSecret:   cfg.SystemSecret,
		MetricsHandler: metricsHandler,
	}, pg, h)

	go func() {
		log.Printf("jobtrack server starting on %s", addr)
		if err := srv.Run(ctx); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited properly")
}
