package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"hotelmap/internal/config"
	"hotelmap/internal/domain"
	"hotelmap/internal/editmode"
	"hotelmap/internal/etl"
	"hotelmap/internal/imaging"
	mcpserver "hotelmap/internal/mcp"
	"hotelmap/internal/service"
	"hotelmap/internal/storage"
)

// App is the main Wails application struct.
// All exported methods are available as Wails bindings.
type App struct {
	ctx context.Context
	cfg *config.Config

	be        *backend
	maps      *service.MapService
	backups   *service.BackupService
	loader    *service.MarkerLoader
	settings  *service.WindowSettingsService
	approvals *approvalWatcher
	mcp       *mcpserver.Server // hosted in-process when cfg.MCPAddr is set
	stopMCP   context.CancelFunc
}

// New creates a new App.
func New(cfg *config.Config) *App {
	return &App{cfg: cfg}
}

// wailsEmitter forwards service events to the frontend.
type wailsEmitter struct {
	ctx context.Context
}

func (e wailsEmitter) Emit(_ context.Context, event string, data any) {
	wailsRuntime.EventsEmit(e.ctx, event, data)
}

// InitialWindowSize reads the saved window size before the window exists.
func InitialWindowSize(cfg *config.Config) service.WindowSize {
	db, err := storage.New(cfg.DBPath())
	if err != nil {
		return service.NewWindowSettingsService(nil).LoadWindowSize()
	}
	defer db.Close()
	return service.NewWindowSettingsService(db).LoadWindowSize()
}

// Startup is called when the app starts.
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx

	be, err := openBackend(a.cfg, wailsEmitter{ctx: ctx})
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to open storage: %v", err)
		return
	}
	a.be = be
	a.maps = be.maps
	a.backups = be.backups
	a.loader = be.loader
	a.settings = service.NewWindowSettingsService(be.db)

	a.maps.SetConfirm(a.confirm)
	be.start(ctx, true)

	if id, ok := a.settings.LastFloor(); ok {
		if err := a.maps.SelectFloor(ctx, id); err != nil {
			wailsRuntime.LogDebugf(ctx, "[APP] Last floor %d is gone: %v", id, err)
		}
	}

	a.approvals = newApprovalWatcher(ctx, be.db.Conn(), a.cfg.PollInterval)
	a.approvals.Start()

	if a.cfg.MCPAddr != "" {
		mcpCtx := a.hostMCP(ctx, wailsEmitter{ctx: ctx})
		go func() {
			if err := a.mcp.ListenHTTP(mcpCtx, a.cfg.MCPAddr); err != nil {
				wailsRuntime.LogErrorf(ctx, "[MCP] %v", err)
			}
		}()
	}
}

// hostMCP builds the in-process MCP server. Its destructive tools ask this
// window for approval through emitter. The returned context ends on
// Shutdown.
func (a *App) hostMCP(ctx context.Context, emitter service.EventEmitter) context.Context {
	mcpCtx, cancel := context.WithCancel(ctx)
	a.stopMCP = cancel
	a.mcp = mcpserver.New(mcpCtx, mcpserver.Deps{
		Emitter:     emitter,
		Map:         a.maps,
		Backups:     a.backups,
		Loader:      a.loader,
		AutoApprove: a.cfg.MCPAutoApprove,
	})
	return mcpCtx
}

// Shutdown is called when the app is closing.
func (a *App) Shutdown(ctx context.Context) {
	if a.stopMCP != nil {
		a.stopMCP()
	}
	if a.approvals != nil {
		a.approvals.Stop()
	}
	if a.be == nil {
		return
	}
	if w, h := wailsRuntime.WindowGetSize(ctx); w > 0 && h > 0 {
		if err := a.settings.SaveWindowSize(w, h); err != nil {
			wailsRuntime.LogErrorf(ctx, "[APP] Save window size: %v", err)
		}
	}
	if id, ok := domain.ParseFloorKey(a.maps.View().CurrentFloor); ok {
		a.settings.SaveLastFloor(id)
	}
	a.loader.WaitRunning(ctx)
	a.backups.WaitRunning(ctx)
	a.be.close()
}

// confirm shows a native yes/no dialog for destructive commands.
func (a *App) confirm(prompt string) bool {
	answer, err := wailsRuntime.MessageDialog(a.ctx, wailsRuntime.MessageDialogOptions{
		Type:          wailsRuntime.QuestionDialog,
		Title:         "Hotel Map",
		Message:       prompt,
		Buttons:       []string{"Yes", "No"},
		DefaultButton: "No",
		CancelButton:  "No",
	})
	if err != nil {
		wailsRuntime.LogErrorf(a.ctx, "[APP] Confirm dialog: %v", err)
		return false
	}
	return answer == "Yes" || answer == "Ok"
}

// ============================================================
// Floors
// ============================================================

// GetView returns the current render projection.
func (a *App) GetView() domain.MapView {
	return a.maps.View()
}

func (a *App) SelectFloor(floorID int) error {
	return a.maps.SelectFloor(a.ctx, floorID)
}

func (a *App) AddFloor(name string) (int, error) {
	return a.maps.AddFloor(a.ctx, name)
}

func (a *App) DeleteFloor(floorID int) error {
	return a.maps.DeleteFloor(a.ctx, floorID)
}

func (a *App) RenameFloor(floorID int, name string) error {
	return a.maps.RenameFloor(a.ctx, floorID, name)
}

// ============================================================
// Edit Mode
// ============================================================

// IconOption is one entry of the marker icon picker.
type IconOption struct {
	Value string `json:"value"`
	Glyph string `json:"glyph"`
}

func (a *App) ListIcons() []IconOption {
	var out []IconOption
	for _, ic := range domain.Icons() {
		out = append(out, IconOption{Value: string(ic), Glyph: ic.Glyph()})
	}
	return out
}

func (a *App) SetMode(mode string) error {
	return a.maps.SetMode(a.ctx, mode)
}

// Click handles a pointer event on the floor plan.
func (a *App) Click(click editmode.Click) (editmode.Outcome, error) {
	return a.maps.Click(a.ctx, click)
}

// ConfirmMarker submits the marker dialog.
func (a *App) ConfirmMarker(name, icon string) (editmode.Outcome, error) {
	return a.maps.ConfirmMarker(a.ctx, name, icon)
}

// CancelMarker dismisses the marker dialog.
func (a *App) CancelMarker() {
	a.maps.CancelMarker(a.ctx)
}

// ============================================================
// Floor Plan Images
// ============================================================

// PickFloorImage lets the user choose an image file for a floor.
// Returns nil when the dialog is cancelled.
func (a *App) PickFloorImage(floorID int) (*imaging.FloorImage, error) {
	path, err := wailsRuntime.OpenFileDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title: "Select Floor Plan",
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: "Images", Pattern: "*.png;*.jpg;*.jpeg;*.gif;*.webp;*.svg"},
		},
	})
	if err != nil || path == "" {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return a.maps.UploadFloorImage(a.ctx, floorID, data)
}

// UploadFloorImage accepts an image dropped onto the window as a data URL.
func (a *App) UploadFloorImage(floorID int, dataURL string) (*imaging.FloorImage, error) {
	_, data, err := imaging.ParseDataURL(dataURL)
	if err != nil {
		return nil, domain.Invalid("image", err.Error())
	}
	return a.maps.UploadFloorImage(a.ctx, floorID, data)
}

func (a *App) RemoveFloorImage(floorID int) error {
	return a.maps.RemoveFloorImage(a.ctx, floorID)
}

func (a *App) ClearFloor(floorID int, clearImage bool) error {
	return a.maps.ClearFloor(a.ctx, floorID, clearImage)
}

// ClearImageCache removes every floor plan and returns how many were dropped.
func (a *App) ClearImageCache() (int, error) {
	return a.maps.ClearImageCache(a.ctx)
}

// ============================================================
// Import / Export
// ============================================================

// ImportFile asks for a JSON export and replaces the map with it.
// Returns nil when the dialog is cancelled.
func (a *App) ImportFile() (*service.ImportReport, error) {
	path, err := wailsRuntime.OpenFileDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title: "Import Map",
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: "JSON", Pattern: "*.json"},
		},
	})
	if err != nil || path == "" {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import: %w", err)
	}
	report, err := a.maps.Import(a.ctx, data)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// ExportFile writes the map to a user-chosen file and returns its path.
func (a *App) ExportFile() (string, error) {
	name, data, err := a.maps.Export()
	if err != nil {
		return "", err
	}
	home, _ := os.UserHomeDir()
	path, err := wailsRuntime.SaveFileDialog(a.ctx, wailsRuntime.SaveDialogOptions{
		Title:            "Export Map",
		DefaultDirectory: filepath.Join(home, "Downloads"),
		DefaultFilename:  name,
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: "JSON", Pattern: "*.json"},
		},
	})
	if err != nil || path == "" {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	wailsRuntime.LogInfof(a.ctx, "[APP] Exported map to %s", path)
	return path, nil
}

// CopyExportToClipboard puts the export JSON on the clipboard.
func (a *App) CopyExportToClipboard() error {
	_, data, err := a.maps.Export()
	if err != nil {
		return err
	}
	return wailsRuntime.ClipboardSetText(a.ctx, string(data))
}

// ============================================================
// Bulk Marker Loads
// ============================================================

func (a *App) ListMarkerSources() []etl.SourceSpec {
	return a.loader.ListSources()
}

// PreviewMarkerSource shows the first rows of a room list.
func (a *App) PreviewMarkerSource(sourceType string, cfg etl.SourceConfig) (*service.PreviewResult, error) {
	return a.loader.Preview(a.ctx, sourceType, cfg)
}

// LoadMarkers places a room list on a floor.
func (a *App) LoadMarkers(input service.LoadInput) (*etl.Result, error) {
	return a.loader.Load(a.ctx, input)
}

// ListMarkerLoads returns recent bulk loads, newest first.
func (a *App) ListMarkerLoads() ([]etl.RunLog, error) {
	return a.loader.ListRuns()
}

// ImportMarkersFile asks for a CSV or JSON room list and loads it onto a
// floor using the default columns. Returns nil when the dialog is cancelled.
func (a *App) ImportMarkersFile(floorID int, mode string) (*etl.Result, error) {
	path, err := wailsRuntime.OpenFileDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title: "Load Room List",
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: "Room lists", Pattern: "*.csv;*.json"},
		},
	})
	if err != nil || path == "" {
		return nil, err
	}
	return a.loader.Load(a.ctx, service.LoadInput{
		SourceType:   etl.SourceForFile(path),
		SourceConfig: etl.SourceConfig{"filePath": path},
		FloorID:      floorID,
		Mode:         mode,
	})
}

// ============================================================
// History and Backups
// ============================================================

func (a *App) ListRevisions() ([]domain.Revision, error) {
	return a.maps.ListRevisions()
}

func (a *App) RestoreRevision(revisionID string) error {
	return a.maps.RestoreRevision(a.ctx, revisionID)
}

func (a *App) ListBackups() ([]service.BackupFile, error) {
	return a.backups.ListBackups()
}

func (a *App) RunBackup() (*service.BackupFile, error) {
	return a.backups.RunBackup(a.ctx)
}

// ============================================================
// MCP Approvals
// ============================================================

// ListMCPApprovals returns destructive actions waiting for the user, from
// the hosted server first and then from standalone processes.
func (a *App) ListMCPApprovals() ([]mcpserver.PendingAction, error) {
	out := []mcpserver.PendingAction{}
	if a.mcp != nil {
		out = append(out, a.mcp.PendingApprovals()...)
	}
	stored, err := mcpserver.ListPendingApprovals(a.be.db.Conn())
	if err != nil {
		return out, err
	}
	return append(out, stored...), nil
}

// ResolveMCPApproval answers a request from the hosted server or, when it
// does not know the id, from a standalone MCP process.
func (a *App) ResolveMCPApproval(id string, approved bool) error {
	if a.mcp != nil && a.mcp.Resolve(id, approved) {
		return nil
	}
	if err := mcpserver.ResolveApproval(a.be.db.Conn(), id, approved); err != nil {
		return err
	}
	if a.approvals != nil {
		a.approvals.Forget(id)
	}
	return nil
}

// ApproveMCPAction lets a pending destructive MCP tool run.
func (a *App) ApproveMCPAction(id string) error {
	return a.ResolveMCPApproval(id, true)
}

// RejectMCPAction refuses a pending destructive MCP tool.
func (a *App) RejectMCPAction(id string) error {
	return a.ResolveMCPApproval(id, false)
}
