// Package httpapi exposes the floor map over a small JSON HTTP API for
// scripts and kiosks that cannot run the desktop app.
package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"hotelmap/internal/service"
)

// ============================================================
// Server
// ============================================================

// Options tunes the fiber app.
type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// BodyLimit must fit the larger of the upload and import limits.
	BodyLimit int
	// Quiet disables request logging. Used by tests.
	Quiet bool
}

// New builds the fiber app with every route registered. backups may be
// nil. A nil loader is replaced by one writing through svc.
func New(svc *service.MapService, backups *service.BackupService, loader *service.MarkerLoader, opts Options) *fiber.App {
	if loader == nil {
		loader = service.NewMarkerLoader(svc, nil)
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = 16 << 20
	}
	app := fiber.New(fiber.Config{
		AppName:      "Hotel Map",
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		BodyLimit:    opts.BodyLimit,
		ErrorHandler: errorHandler,
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	if !opts.Quiet {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"Content-Type"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
	}))

	// ============================================================
	// Health Check Routes
	// ============================================================

	app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})

	app.Get("/health/ready", func(c fiber.Ctx) error {
		_, version := svc.Document()
		return c.JSON(fiber.Map{"status": "ready", "version": version})
	})

	// ============================================================
	// Map Routes
	// ============================================================

	h := &Handler{svc: svc, backups: backups, loader: loader}
	api := app.Group("/api/v1")

	api.Get("/view", h.GetView)
	api.Get("/document", h.GetDocument)
	api.Get("/export", h.Export)
	api.Post("/import", h.Import)

	api.Get("/floors", h.ListFloors)
	api.Post("/floors", h.CreateFloor)
	api.Get("/floors/:id", h.GetFloor)
	api.Patch("/floors/:id", h.RenameFloor)
	api.Delete("/floors/:id", h.DeleteFloor)
	api.Post("/floors/:id/clear", h.ClearFloor)
	api.Get("/floors/:id/preview.png", h.Preview)
	api.Put("/floors/:id/image", h.UploadImage)
	api.Delete("/floors/:id/image", h.RemoveImage)
	api.Delete("/images", h.ClearImages)

	api.Post("/floors/:id/markers", h.AddMarker)
	api.Post("/floors/:id/markers/bulk", h.LoadMarkers)
	api.Get("/marker-sources", h.ListMarkerSources)
	api.Get("/marker-loads", h.ListMarkerLoads)
	api.Delete("/floors/:id/markers/:markerId", h.DeleteMarker)
	api.Post("/floors/:id/connections", h.Connect)
	api.Delete("/floors/:id/connections", h.Disconnect)

	api.Get("/revisions", h.ListRevisions)
	api.Post("/revisions/:id/restore", h.RestoreRevision)

	api.Get("/backups", h.ListBackups)
	api.Post("/backups", h.RunBackup)

	return app
}
