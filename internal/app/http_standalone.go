package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hotelmap/internal/config"
	"hotelmap/internal/httpapi"
	"hotelmap/internal/service"
)

// ServeHTTP runs the JSON API until interrupted. Scheduled backups run in
// this process when a schedule is configured.
func ServeHTTP(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	be, err := openBackend(cfg, service.NoopEmitter{})
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer be.close()
	be.start(ctx, true)

	bodyLimit := cfg.ImportLimit
	if cfg.UploadLimit > bodyLimit {
		bodyLimit = cfg.UploadLimit
	}
	// Headroom so oversize payloads reach the service's own limit check.
	bodyLimit += 64 << 10

	app := httpapi.New(be.maps, be.backups, be.loader, httpapi.Options{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		BodyLimit:    int(bodyLimit),
	})

	go func() {
		<-ctx.Done()
		log.Println("[HTTP] Shutting down...")
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Printf("[HTTP] Shutdown: %v", err)
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("[HTTP] Starting hotel map API on %s (data: %s)", addr, cfg.DataDir)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	be.loader.WaitRunning(context.Background())
	be.backups.WaitRunning(context.Background())
}
