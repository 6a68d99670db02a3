package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feedpane/feedpane/app/api"
	"github.com/feedpane/feedpane/app/cfg"
	"github.com/feedpane/feedpane/app/database"
	"github.com/feedpane/feedpane/app/feed"
	"github.com/feedpane/feedpane/app/fetch"
	"github.com/feedpane/feedpane/app/limiter"
	"github.com/feedpane/feedpane/app/seeds"
	"github.com/feedpane/feedpane/app/update"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	log.Printf("Starting Feedpane server (version %s)...", appCfg.Version)

	// Database connection and schema
	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	log.Printf("Database ready at %s (schema version %d, dirty=%v)", appCfg.DBPath, version, dirty)

	// Repositories
	feedRepo := database.NewFeedRepository(db)
	itemRepo := database.NewItemRepository(db)
	sessionRepo := database.NewSessionRepository(db)

	// Register default feeds
	defaultFeeds, err := seeds.Load(appCfg.SeedsFile)
	if err != nil {
		log.Fatal("Failed to load seeds file:", err)
	}
	for _, seed := range defaultFeeds {
		if _, err := feedRepo.CreateFeed(seed.URL); err != nil {
			log.Printf("Warning: failed to register default feed %s: %v", seed.URL, err)
		}
	}
	if len(defaultFeeds) > 0 {
		log.Printf("Registered %d default feeds", len(defaultFeeds))
	}

	// Core components
	fetcher := fetch.NewClient(nil)
	domainLimiter := limiter.NewDomainLimiter(time.Duration(appCfg.DomainInterval) * time.Second)
	queue := update.NewQueue()

	runner := update.NewRunner(queue, feedRepo, itemRepo,
		fetcher, feed.NewParser(), feed.NewExtractor(), domainLimiter)
	log.Printf("Starting %d background workers...", appCfg.WorkerCount)
	runner.Start()
	defer runner.Stop()

	scheduler := update.NewScheduler(queue, feedRepo)
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP server
	handler := api.NewHandler(feedRepo, itemRepo, sessionRepo, scheduler, queue, api.NewResolver(fetcher))
	server := api.NewServer(handler)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on port %s", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("Feedpane server started successfully!")

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-serverErrChan:
		log.Printf("Server error: %v", err)
	}

	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server stopped")
	}

	// Runner and scheduler are stopped via defers; in-flight tasks either
	// finish their transaction or roll back cleanly.
	log.Println("Feedpane server shutdown complete")
}
