package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"hotelmap/internal/domain"
	"hotelmap/internal/etl"
	"hotelmap/internal/imaging"
	"hotelmap/internal/service"
)

// ============================================================
// Map Handler
// ============================================================

type Handler struct {
	svc     *service.MapService
	backups *service.BackupService
	loader  *service.MarkerLoader
}

type floorRequest struct {
	Name string `json:"name"`
}

type markerRequest struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Name string  `json:"name"`
	Icon string  `json:"icon"`
}

type linkRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ── Document ───────────────────────────────────────────────

// GetView returns the render projection of the current floor.
func (h *Handler) GetView(c fiber.Ctx) error {
	return c.JSON(h.svc.View())
}

// GetDocument returns the whole document and its version.
func (h *Handler) GetDocument(c fiber.Ctx) error {
	doc, version := h.svc.Document()
	return c.JSON(fiber.Map{"version": version, "data": doc})
}

// Export sends the export file as an attachment.
func (h *Handler) Export(c fiber.Ctx) error {
	name, data, err := h.svc.Export()
	if err != nil {
		return err
	}
	c.Set("Content-Type", "application/json")
	c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	return c.Send(data)
}

// Import replaces the document with the request body.
func (h *Handler) Import(c fiber.Ctx) error {
	if err := requireConfirm(c); err != nil {
		return err
	}
	log.Printf("[HTTP] Import request (%d bytes)", len(c.Body()))
	report, err := h.svc.Import(context.Background(), c.Body())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"report": report, "summary": report.String()})
}

// ── Floors ─────────────────────────────────────────────────

func (h *Handler) ListFloors(c fiber.Ctx) error {
	return c.JSON(h.svc.Floors())
}

func (h *Handler) CreateFloor(c fiber.Ctx) error {
	var req floorRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	id, err := h.svc.AddFloor(context.Background(), req.Name)
	if err != nil {
		return err
	}
	f, err := h.svc.Floor(id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"id": id, "floor": f})
}

func (h *Handler) GetFloor(c fiber.Ctx) error {
	id, err := floorID(c)
	if err != nil {
		return err
	}
	f, err := h.svc.Floor(id)
	if err != nil {
		return err
	}
	stats, _ := h.svc.Stats(id)
	return c.JSON(fiber.Map{"id": id, "floor": f, "stats": stats})
}

func (h *Handler) RenameFloor(c fiber.Ctx) error {
	id, err := floorID(c)
	if err != nil {
		return err
	}
	var req floorRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	if err := h.svc.RenameFloor(context.Background(), id, req.Name); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *Handler) DeleteFloor(c fiber.Ctx) error {
	id, err := floorID(c)
	if err != nil {
		return err
	}
	if err := requireConfirm(c); err != nil {
		return err
	}
	if err := h.svc.DeleteFloor(context.Background(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ClearFloor empties a floor. ?image=true also removes the floor plan.
func (h *Handler) ClearFloor(c fiber.Ctx) error {
	id, err := floorID(c)
	if err != nil {
		return err
	}
	if err := requireConfirm(c); err != nil {
		return err
	}
	if err := h.svc.ClearFloor(context.Background(), id, c.Query("image") == "true"); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Preview renders the floor as PNG. ?width= bounds the output width.
func (h *Handler) Preview(c fiber.Ctx) error {
	id, err := floorID(c)
	if err != nil {
		return err
	}
	width := imaging.DefaultPreviewWidth
	if raw := c.Query("width"); raw != "" {
		width, err = strconv.Atoi(raw)
		if err != nil || width <= 0 || width > 4096 {
			return domain.Invalid("width", "must be between 1 and 4096")
		}
	}
	png, err := h.svc.FloorPreview(id, width)
	if err != nil {
		return err
	}
	c.Set("Content-Type", "image/png")
	return c.Send(png)
}

// UploadImage takes the raw image bytes as the request body.
func (h *Handler) UploadImage(c fiber.Ctx) error {
	id, err := floorID(c)
	if err != nil {
		return err
	}
	img, err := h.svc.UploadFloorImage(context.Background(), id, c.Body())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"mime": img.MIME, "width": img.Width, "height": img.Height, "size": img.Size})
}

func (h *Handler) RemoveImage(c fiber.Ctx) error {
	id, err := floorID(c)
	if err != nil {
		return err
	}
	if err := h.svc.RemoveFloorImage(context.Background(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ClearImages drops every floor plan image.
func (h *Handler) ClearImages(c fiber.Ctx) error {
	if err := requireConfirm(c); err != nil {
		return err
	}
	n, err := h.svc.ClearImageCache(context.Background())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"removed": n})
}

// ── Markers and connections ────────────────────────────────

func (h *Handler) AddMarker(c fiber.Ctx) error {
	id, err := floorID(c)
	if err != nil {
		return err
	}
	var req markerRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	markerID, err := h.svc.AddMarker(context.Background(), id, domain.Position{X: req.X, Y: req.Y}, req.Name, req.Icon)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"id": markerID})
}

func (h *Handler) DeleteMarker(c fiber.Ctx) error {
	id, err := floorID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMarker(context.Background(), id, c.Params("markerId")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *Handler) Connect(c fiber.Ctx) error {
	id, err := floorID(c)
	if err != nil {
		return err
	}
	var req linkRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Connect(context.Background(), id, req.From, req.To)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"result": res.String()})
}

// Disconnect takes the endpoints as ?from= and ?to=.
func (h *Handler) Disconnect(c fiber.Ctx) error {
	id, err := floorID(c)
	if err != nil {
		return err
	}
	res, err := h.svc.Disconnect(context.Background(), id, c.Query("from"), c.Query("to"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"result": res.String()})
}

// LoadMarkers places every row of the CSV or JSON body on the floor.
// Query: format=csv|json, mode=append|replace, name/icon/x/y column
// names, dataPath for JSON, delimiter for CSV. replace needs confirm=true.
func (h *Handler) LoadMarkers(c fiber.Ctx) error {
	id, err := floorID(c)
	if err != nil {
		return err
	}
	mode, err := etl.ParseLoadMode(c.Query("mode"))
	if err != nil {
		return domain.Invalid("mode", err.Error())
	}
	if mode == etl.LoadReplace {
		if err := requireConfirm(c); err != nil {
			return err
		}
	}
	if len(c.Body()) == 0 {
		return domain.Invalid("body", "empty body")
	}

	format := c.Query("format", "csv")
	cfg := map[string]any{"data": string(c.Body())}
	switch format {
	case "csv":
		if d := c.Query("delimiter"); d != "" {
			cfg["delimiter"] = d
		}
		if hh := c.Query("hasHeader"); hh != "" {
			cfg["hasHeader"] = hh
		}
	case "json":
		cfg["dataPath"] = c.Query("dataPath")
	default:
		return domain.Invalid("format", fmt.Sprintf("unsupported format %q (use csv or json)", format))
	}

	result, err := h.loader.Load(context.Background(), service.LoadInput{
		SourceType:   format,
		SourceConfig: cfg,
		Mapping: etl.ColumnMapping{
			Name: c.Query("name"),
			Icon: c.Query("icon"),
			X:    c.Query("x"),
			Y:    c.Query("y"),
		},
		DedupeKey: c.Query("dedupe"),
		FloorID:   id,
		Mode:      string(mode),
	})
	if err != nil {
		if result != nil && len(result.Skipped) > 0 {
			return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error(), "skipped": result.Skipped})
		}
		return err
	}
	return c.Status(http.StatusCreated).JSON(result)
}

func (h *Handler) ListMarkerSources(c fiber.Ctx) error {
	return c.JSON(h.loader.ListSources())
}

func (h *Handler) ListMarkerLoads(c fiber.Ctx) error {
	runs, err := h.loader.ListRuns()
	if err != nil {
		return err
	}
	return c.JSON(runs)
}

// ── Revisions and backups ──────────────────────────────────

func (h *Handler) ListRevisions(c fiber.Ctx) error {
	revs, err := h.svc.ListRevisions()
	if err != nil {
		return err
	}
	if revs == nil {
		revs = []domain.Revision{}
	}
	return c.JSON(revs)
}

func (h *Handler) RestoreRevision(c fiber.Ctx) error {
	if err := requireConfirm(c); err != nil {
		return err
	}
	if err := h.svc.RestoreRevision(context.Background(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(h.svc.View())
}

func (h *Handler) ListBackups(c fiber.Ctx) error {
	if h.backups == nil {
		return fiber.NewError(http.StatusNotFound, "backups are not configured")
	}
	files, err := h.backups.ListBackups()
	if err != nil {
		return err
	}
	return c.JSON(files)
}

func (h *Handler) RunBackup(c fiber.Ctx) error {
	if h.backups == nil {
		return fiber.NewError(http.StatusNotFound, "backups are not configured")
	}
	file, err := h.backups.RunBackup(context.Background())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(file)
}

// ── helpers ────────────────────────────────────────────────

func floorID(c fiber.Ctx) (int, error) {
	id, ok := domain.ParseFloorKey(c.Params("id"))
	if !ok {
		return 0, domain.Invalid("id", fmt.Sprintf("floor id %q is not a positive integer", c.Params("id")))
	}
	return id, nil
}

func decode(c fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return domain.Invalid("body", "empty body")
	}
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return domain.Invalid("body", "invalid json")
	}
	return nil
}

func requireConfirm(c fiber.Ctx) error {
	if c.Query("confirm") != "true" {
		return errConfirmRequired
	}
	return nil
}
