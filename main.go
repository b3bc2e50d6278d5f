package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photovault/internal/database"
	"photovault/internal/handlers"
	"photovault/internal/icloud"
	"photovault/internal/importer"
	"photovault/internal/logging"
	"photovault/internal/media"
	"photovault/internal/middleware"
	"photovault/internal/remote"
	"photovault/internal/startup"
	"photovault/internal/store"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	ctx := context.Background()

	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Expired sessions accumulate otherwise.
	go func() {
		ticker := time.NewTicker(time.Hour)
		for range ticker.C {
			if err := db.CleanExpiredSessions(context.Background()); err != nil {
				logging.Warn("session cleanup: %v", err)
			}
		}
	}()

	photoStore, err := store.New(db, config.PhotosDir)
	if err != nil {
		logging.Fatal("Failed to initialize photo store: %v", err)
	}

	cache, err := media.NewCache(config.ThumbnailDir)
	if err != nil {
		logging.Fatal("Failed to initialize thumbnail cache: %v", err)
	}
	if config.ThumbnailsEnabled {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable, using pure-Go decoders: %v", err)
		}
		defer media.ShutdownVips()
	}
	startup.LogThumbnailerInit(config.ThumbnailsEnabled)

	client := icloud.NewClient(config.ICloudBaseURL, icloud.RetryPolicy{
		MaxAttempts: config.RetryAttempts,
		Delay:       config.RetryDelay,
	})
	manager := remote.NewManager(client)
	imp := importer.New(manager, photoStore, cache)

	h := handlers.New(db, photoStore, manager, imp, cache, config)

	router := h.Router(config.MetricsEnabled)
	startup.LogHTTPRoutes(router)

	handler := middleware.Chain(router,
		middleware.Logger,
		middleware.Metrics,
		middleware.Compression,
	)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // long downloads are bounded by the streaming writer
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv)

	startup.LogServerStarted(config.Port, config.MetricsEnabled, time.Since(startTime))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
}

func handleShutdown(srv *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	}
	startup.LogShutdownComplete()
}
