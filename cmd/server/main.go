/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the attendance engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and TRACKER_ environment config
  2. Initialize SQLite document store
  3. Load the ledgers (submissions, casual leave, requests, warnings,
     eligibility snapshot)
  4. Wire the chat adapter client, handlers and router
  5. Start the daily sweep scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: tracker.db)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler, waiting for an in-flight sweep
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Daily sweep scheduling
  - config/config.go: Environment configuration
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crewtrack/attendance-engine/api"
	"github.com/crewtrack/attendance-engine/config"
	"github.com/crewtrack/attendance-engine/core"
	"github.com/crewtrack/attendance-engine/eligibility"
	"github.com/crewtrack/attendance-engine/leave"
	"github.com/crewtrack/attendance-engine/platform"
	"github.com/crewtrack/attendance-engine/store/sqlite"
	"github.com/crewtrack/attendance-engine/submission"
	"github.com/crewtrack/attendance-engine/warning"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "tracker.db", "SQLite database path")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	adapter := platform.NewClient(cfg.AdapterURL)

	// Load ledgers
	ctx := context.Background()
	submissions, err := submission.NewStore(ctx, store)
	if err != nil {
		log.Fatalf("Failed to load submissions: %v", err)
	}
	casual, err := leave.NewLedger(ctx, store)
	if err != nil {
		log.Fatalf("Failed to load casual leave: %v", err)
	}
	requests, err := leave.NewRequests(ctx, store)
	if err != nil {
		log.Fatalf("Failed to load leave requests: %v", err)
	}
	cache, err := eligibility.NewCache(ctx, store, adapter)
	if err != nil {
		log.Fatalf("Failed to load eligibility cache: %v", err)
	}
	cache.WithTTL(cfg.EligibilityTTL)
	warnings, err := warning.NewEngine(ctx, store)
	if err != nil {
		log.Fatalf("Failed to load warnings: %v", err)
	}

	leaveSources := []warning.LeaveSource{requests, casual}
	warnings.Submissions = submissions
	warnings.Leaves = leaveSources
	warnings.Eligibility = cache
	warnings.Notifier = adapter
	warnings.Roles = adapter
	warnings.Channel = cfg.WarningChannel

	reminder := &warning.Reminder{
		Submissions: submissions,
		Leaves:      leaveSources,
		Eligibility: cache,
		Channels:    adapter,
		Notifier:    adapter,
	}

	approvals := &leave.Approvals{
		Requests:        requests,
		Directory:       adapter,
		Notifier:        adapter,
		Threads:         adapter,
		TrackingChannel: cfg.TrackingChannel,
		BotName:         cfg.BotName,
	}

	handler := &api.Handler{
		Submissions:    submissions,
		Casual:         casual,
		Requests:       requests,
		Approvals:      approvals,
		Eligibility:    cache,
		Warnings:       warnings,
		Directory:      adapter,
		Notifier:       adapter,
		RequestChannel: cfg.RequestChannel,
		RetentionDays:  cfg.RequestRetention,
		Clock:          core.SystemClock{},
	}

	// Sweep times were validated by config.Load.
	warningAt, _ := config.ParseClockTime(cfg.WarningSweepAt)
	reminderAt, _ := config.ParseClockTime(cfg.ReminderSweepAt)
	scheduler := api.NewScheduler(warnings, reminder, adapter, warningAt, reminderAt)
	scheduler.Start()
	defer scheduler.Stop()

	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
