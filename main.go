package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"

	"medialog/api"
	"medialog/config"
	"medialog/handlers"
	"medialog/internal/database"
	"medialog/services/accounts"
	"medialog/services/catalog"
	"medialog/services/library"
	"medialog/services/notes"
	"medialog/services/queue"
	"medialog/services/scheduler"
	"medialog/services/stats"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	// Determine config path (env or default)
	configPath := os.Getenv("MEDIALOG_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("data", "settings.json")
	}

	// Init config manager and load settings (creates defaults if missing)
	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	db, err := database.Open(settings.Database.Path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	catalogService := catalog.NewService(settings.Catalog.TMDBAPIKey, settings.Catalog.Language, settings.Catalog.CacheTTLHours)
	if !catalogService.Configured() {
		log.Printf("warning: no TMDB API key configured; search and metadata enrichment are disabled")
	}

	libraryService := library.NewService(db, catalogService)
	queueService := queue.NewService(db, libraryService, catalogService)
	notesService := notes.NewService(db)
	statsService := stats.NewService(db)

	accountsService, err := accounts.NewService(db)
	if err != nil {
		log.Fatalf("failed to initialise accounts: %v", err)
	}

	imageHandler := handlers.NewImageHandler(filepath.Dir(settings.Database.Path), catalogService.PosterClient())

	schedulerService := scheduler.NewService(cfgManager, libraryService)
	if err := schedulerService.Start(context.Background()); err != nil {
		log.Printf("Warning: scheduler failed to start: %v", err)
	}

	r := mux.NewRouter()
	api.Register(
		r,
		handlers.NewAuthHandler(accountsService),
		handlers.NewLibraryHandler(libraryService),
		handlers.NewQueueHandler(queueService),
		handlers.NewCatalogHandler(catalogService),
		handlers.NewNotesHandler(notesService),
		handlers.NewStatsHandler(statsService),
		imageHandler,
		handlers.NewSettingsHandler(cfgManager),
		handlers.NewMaintenanceHandler(schedulerService),
		accountsService,
	)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	log.Printf("Server starting on %s", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := schedulerService.Stop(shutdownCtx); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Shutdown complete")
}
