package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"hotelmap/internal/broadcast"
	"hotelmap/internal/domain"
	"hotelmap/internal/editmode"
	"hotelmap/internal/floorstore"
	"hotelmap/internal/geometry"
	"hotelmap/internal/imaging"
)

// ─────────────────────────────────────────────────────────────
// MapService — the editing session
// ─────────────────────────────────────────────────────────────

// MapService owns the floor store, the edit-mode machine and persistence
// for one session. Every command runs under one mutex, mutates, saves the
// whole document and emits the new view. Remote updates take the same
// lock.
type MapService struct {
	mu sync.Mutex

	store    *floorstore.Store
	machine  *editmode.Machine
	layout   *floorstore.LayoutEngine
	persist  *Persistence
	transfer *TransferService
	emitter  EventEmitter
	confirm  editmode.ConfirmFunc

	uploadLimit int64
	version     int64
	now         func() time.Time
	unsubscribe func()

	// detached is set when the stored document could not be read. Saves
	// are held back until replaceLocked swaps in a whole document.
	detached bool
}

// ErrDetached is wrapped in the StorageError a detached session returns
// instead of saving.
var ErrDetached = errors.New("stored map unreadable; import or restore a revision to overwrite it")

// NewMapService creates a session. Call Start before issuing commands.
func NewMapService(persist *Persistence, transfer *TransferService, emitter EventEmitter, uploadLimit int64) *MapService {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	if transfer == nil {
		transfer = NewTransferService(0)
	}
	store := floorstore.New()
	return &MapService{
		store:       store,
		machine:     editmode.New(store, nil),
		layout:      floorstore.NewLayoutEngine(),
		persist:     persist,
		transfer:    transfer,
		emitter:     emitter,
		uploadLimit: uploadLimit,
		now:         time.Now,
	}
}

// SetConfirm installs the prompt used before destructive commands. A nil
// func approves everything, which is what headless callers want.
func (s *MapService) SetConfirm(fn editmode.ConfirmFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirm = fn
	s.machine.SetConfirm(fn)
}

// Start loads the document, creates the default floor when storage is
// empty and subscribes to updates from other sessions. When the stored
// document cannot be read the session starts detached: it edits an empty
// map in memory and never writes over the unreadable record.
func (s *MapService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, version, err := s.persist.Load(ctx)
	if err != nil {
		log.Printf("[MAP] Load failed, saves held back: %v", err)
		s.notify(ctx, "error", "Error loading saved data")
		doc = domain.NewHotelMap()
	}
	s.detached = err != nil
	s.store.Replace(doc)
	s.version = version
	log.Printf("[MAP] Loaded v%d with %d floor(s)", version, len(doc.Floors))

	if s.store.EnsureDefaultFloor() && !s.detached {
		if _, err := s.saveLocked(ctx, "Create default floor"); err != nil {
			log.Printf("[MAP] Default floor not saved: %v", err)
		}
	}
	s.selectFallbackLocked()

	if hub := s.persist.Hub(); hub != nil && s.unsubscribe == nil {
		s.unsubscribe = hub.Subscribe(s.persist.Origin(), func(msg broadcast.Message) {
			s.ApplyRemote(ctx, msg)
		})
	}
	s.emitViewLocked(ctx)
	return err
}

// Close stops listening for remote updates.
func (s *MapService) Close() {
	s.mu.Lock()
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// ── Read side ──────────────────────────────────────────────

// View returns the current render projection.
func (s *MapService) View() domain.MapView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Document returns a copy of the whole document and its version.
func (s *MapService) Document() (*domain.HotelMap, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot(), s.version
}

// Floor returns a copy of one floor.
func (s *MapService) Floor(floorID int) (*domain.Floor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Floor(floorID)
}

// Floors returns the floor selector entries.
func (s *MapService) Floors() []domain.FloorSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summariesLocked()
}

// Stats returns marker and connection counts for a floor.
func (s *MapService) Stats(floorID int) (floorstore.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Stats(floorID)
}

// FloorPreview renders a PNG of the floor with its markers.
func (s *MapService) FloorPreview(floorID, maxWidth int) ([]byte, error) {
	f, err := s.Floor(floorID)
	if err != nil {
		return nil, err
	}
	return imaging.RenderPreview(f, maxWidth)
}

// ── Floors ─────────────────────────────────────────────────

// SelectFloor makes floorID current and resets the edit mode.
func (s *MapService) SelectFloor(ctx context.Context, floorID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.machine.SelectFloor(floorID); err != nil {
		return err
	}
	s.emitViewLocked(ctx)
	return nil
}

// AddFloor creates a floor and switches to it.
func (s *MapService) AddFloor(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.store.AddFloor(name)
	if err != nil {
		return 0, err
	}
	s.machine.SelectFloor(id)
	f, _ := s.store.Floor(id)
	return id, s.commitLocked(ctx, "Add floor "+f.Name, fmt.Sprintf("Floor %q added successfully!", f.Name))
}

// DeleteFloor removes a floor after confirmation. The lowest remaining
// floor becomes current when the deleted one was selected.
func (s *MapService) DeleteFloor(ctx context.Context, floorID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.store.Floor(floorID)
	if err != nil {
		return err
	}
	if !s.askLocked(fmt.Sprintf("Delete %q and all its markers/connections?", f.Name)) {
		return nil
	}
	if err := s.store.DeleteFloor(floorID); err != nil {
		return err
	}
	if s.machine.FloorID() == floorID {
		s.selectFallbackLocked()
	}
	return s.commitLocked(ctx, "Delete floor "+f.Name, fmt.Sprintf("Floor %q deleted", f.Name))
}

// RenameFloor changes a floor's display name.
func (s *MapService) RenameFloor(ctx context.Context, floorID int, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.RenameFloor(floorID, name); err != nil {
		return err
	}
	f, _ := s.store.Floor(floorID)
	return s.commitLocked(ctx, "Rename floor", fmt.Sprintf("Floor renamed to %q", f.Name))
}

// UploadFloorImage validates an image and attaches it to a floor.
func (s *MapService) UploadFloorImage(ctx context.Context, floorID int, data []byte) (*imaging.FloorImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.store.HasFloor(floorID) {
		return nil, domain.FloorNotFound(floorID)
	}
	img, err := imaging.Prepare(data, s.uploadLimit)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetFloorImage(floorID, img.DataURL); err != nil {
		return nil, err
	}
	return img, s.commitLocked(ctx, "Upload floor plan", "Floor plan uploaded successfully!")
}

// RemoveFloorImage detaches the image from one floor.
func (s *MapService) RemoveFloorImage(ctx context.Context, floorID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.SetFloorImage(floorID, ""); err != nil {
		return err
	}
	return s.commitLocked(ctx, "Remove floor plan", "Floor plan removed")
}

// ClearFloor removes all markers and connections from a floor, and its
// image when clearImage is set.
func (s *MapService) ClearFloor(ctx context.Context, floorID int, clearImage bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.store.HasFloor(floorID) {
		return domain.FloorNotFound(floorID)
	}
	if !s.askLocked("Clear all markers and connections from this floor?") {
		return nil
	}
	if err := s.store.ClearFloorContent(floorID, clearImage); err != nil {
		return err
	}
	if s.machine.FloorID() == floorID {
		s.machine.SetMode(s.machine.Mode())
	}
	return s.commitLocked(ctx, "Clear floor", "Map cleared successfully")
}

// ClearImageCache drops every floor image and keeps markers and connections.
func (s *MapService) ClearImageCache(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.askLocked("Clear all floor plan images? This will keep markers and connections but remove images.") {
		return 0, nil
	}
	n := s.store.ClearAllImages()
	return n, s.commitLocked(ctx, "Clear image cache", "Image cache cleared")
}

// ── Edit mode ──────────────────────────────────────────────

// SetMode switches the editing mode.
func (s *MapService) SetMode(ctx context.Context, mode string) error {
	m, err := editmode.ParseMode(mode)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.SetMode(m)
	s.emitViewLocked(ctx)
	return nil
}

// Click feeds a pointer event on the floor plan into the edit machine.
func (s *MapService) Click(ctx context.Context, click editmode.Click) (editmode.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	floorID := s.machine.FloorID()
	before, _ := s.store.Floor(floorID)
	out, err := s.machine.Click(click)
	if err != nil {
		return out, err
	}
	return out, s.afterOutcomeLocked(ctx, before, out)
}

// ConfirmMarker names the pending placement and creates the marker.
func (s *MapService) ConfirmMarker(ctx context.Context, name, icon string) (editmode.Outcome, error) {
	ic, ok := domain.ParseIcon(icon)
	if !ok {
		return editmode.Outcome{}, domain.Invalid("icon", fmt.Sprintf("unknown icon %q", icon))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.machine.ConfirmMarker(name, ic)
	if err != nil {
		return out, err
	}
	return out, s.afterOutcomeLocked(ctx, nil, out)
}

// CancelMarker drops the pending placement.
func (s *MapService) CancelMarker(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.CancelMarker()
	s.emitViewLocked(ctx)
}

func (s *MapService) afterOutcomeLocked(ctx context.Context, before *domain.Floor, out editmode.Outcome) error {
	floorID := s.machine.FloorID()
	f, _ := s.store.Floor(floorID)
	name := func(id string) string {
		for _, fl := range []*domain.Floor{f, before} {
			if fl == nil {
				continue
			}
			if i := fl.MarkerIndex(id); i >= 0 {
				return fl.Markers[i].Name
			}
		}
		return id
	}

	switch out.Action {
	case editmode.ActionMarkerAdded:
		return s.commitLocked(ctx, "Add marker "+name(out.MarkerID), fmt.Sprintf("Marker %q created successfully!", name(out.MarkerID)))
	case editmode.ActionMarkerDeleted:
		return s.commitLocked(ctx, "Delete marker "+name(out.MarkerID), fmt.Sprintf("Marker %q deleted", name(out.MarkerID)))
	case editmode.ActionConnected:
		return s.commitLocked(ctx, "Connect markers", fmt.Sprintf("Connected %s to %s", name(out.MarkerID), name(out.OtherID)))
	case editmode.ActionDisconnected:
		return s.commitLocked(ctx, "Disconnect markers", fmt.Sprintf("Disconnected %s from %s", name(out.MarkerID), name(out.OtherID)))
	case editmode.ActionAlreadyConnected:
		s.notify(ctx, "info", "Markers are already connected")
	case editmode.ActionNotConnected:
		s.notify(ctx, "error", "These markers are not connected")
	}
	s.emitViewLocked(ctx)
	return nil
}

// ── Direct marker commands (MCP, HTTP) ─────────────────────

// AddMarker places a marker without going through the edit machine.
func (s *MapService) AddMarker(ctx context.Context, floorID int, pos domain.Position, name, icon string) (string, error) {
	ic, ok := domain.ParseIcon(icon)
	if !ok {
		return "", domain.Invalid("icon", fmt.Sprintf("unknown icon %q", icon))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.store.AddMarker(floorID, pos, name, ic)
	if err != nil {
		return "", err
	}
	m, _ := s.store.Marker(floorID, id)
	return id, s.commitLocked(ctx, "Add marker "+m.Name, fmt.Sprintf("Marker %q created successfully!", m.Name))
}

// DeleteMarker removes a marker and its connections.
func (s *MapService) DeleteMarker(ctx context.Context, floorID int, markerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.store.Marker(floorID, markerID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMarker(floorID, markerID); err != nil {
		return err
	}
	if s.machine.Selected() == markerID {
		s.machine.SetMode(s.machine.Mode())
	}
	return s.commitLocked(ctx, "Delete marker "+m.Name, fmt.Sprintf("Marker %q deleted", m.Name))
}

// Connect links two markers on a floor.
func (s *MapService) Connect(ctx context.Context, floorID int, a, b string) (floorstore.LinkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.store.Connect(floorID, a, b)
	if err != nil || res != floorstore.LinkCreated {
		return res, err
	}
	return res, s.commitLocked(ctx, "Connect markers", "")
}

// Disconnect removes the link between two markers on a floor.
func (s *MapService) Disconnect(ctx context.Context, floorID int, a, b string) (floorstore.LinkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.store.Disconnect(floorID, a, b)
	if err != nil || res != floorstore.LinkRemoved {
		return res, err
	}
	return res, s.commitLocked(ctx, "Disconnect markers", "")
}

// PlaceMarkers adds a batch of markers in a single save. Drafts without
// coordinates are laid out clear of existing markers. With replace set the
// floor's markers and connections are removed first, after confirmation.
// The batch is all or nothing. A declined confirmation returns nil, nil.
func (s *MapService) PlaceMarkers(ctx context.Context, floorID int, drafts []domain.MarkerDraft, replace bool) ([]domain.Marker, error) {
	if len(drafts) == 0 {
		return nil, domain.Invalid("markers", "nothing to place")
	}
	icons := make([]domain.Icon, len(drafts))
	for i, d := range drafts {
		ic, ok := domain.ParseIcon(d.Icon)
		if !ok {
			return nil, domain.Invalid("icon", fmt.Sprintf("marker %d: unknown icon %q", i+1, d.Icon))
		}
		icons[i] = ic
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.store.Floor(floorID)
	if err != nil {
		return nil, err
	}
	if replace && len(f.Markers) > 0 {
		if !s.askLocked(fmt.Sprintf("Replace the %d marker(s) on %q?", len(f.Markers), f.Name)) {
			return nil, nil
		}
	}

	before := s.store.Snapshot()
	rollback := func(err error) ([]domain.Marker, error) {
		s.store.Replace(before)
		return nil, err
	}

	occupied := f.Markers
	if replace {
		if err := s.store.ClearFloorContent(floorID, false); err != nil {
			return nil, err
		}
		s.machine.SetMode(s.machine.Mode())
		occupied = nil
	}
	missing := 0
	for _, d := range drafts {
		if d.HasPosition() {
			occupied = append(occupied, domain.Marker{X: *d.X, Y: *d.Y})
		} else {
			missing++
		}
	}
	free := s.layout.ArrangeGroup(occupied, missing)
	if len(free) < missing {
		return rollback(domain.Invalid("position", fmt.Sprintf("no free spot left on %q for %d marker(s)", f.Name, missing-len(free))))
	}

	placed := make([]domain.Marker, 0, len(drafts))
	for i, d := range drafts {
		var pos domain.Position
		if d.HasPosition() {
			pos = domain.Position{X: *d.X, Y: *d.Y}
		} else {
			pos, free = free[0], free[1:]
		}
		id, err := s.store.AddMarker(floorID, pos, d.Name, icons[i])
		if err != nil {
			return rollback(fmt.Errorf("marker %d: %w", i+1, err))
		}
		m, _ := s.store.Marker(floorID, id)
		placed = append(placed, m)
	}

	label := fmt.Sprintf("Place %d marker(s)", len(placed))
	if replace {
		label = fmt.Sprintf("Replace markers with %d", len(placed))
	}
	return placed, s.commitLocked(ctx, label, fmt.Sprintf("%d marker(s) added to %q", len(placed), f.Name))
}

// ── Import / export ────────────────────────────────────────

// Import validates data and, after confirmation, replaces the whole
// document. A declined confirmation returns a zero report and no error.
func (s *MapService) Import(ctx context.Context, data []byte) (ImportReport, error) {
	doc, report, err := s.transfer.Validate(data)
	if err != nil {
		return report, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.askLocked("This will replace all current data. Are you sure?") {
		return ImportReport{}, nil
	}
	s.replaceLocked(doc)
	s.selectFallbackLocked()
	log.Printf("[MAP] Imported %s", report)
	return report, s.commitLocked(ctx, "Import data", "Data imported successfully!")
}

// Export renders the current document as an export file.
func (s *MapService) Export() (string, []byte, error) {
	s.mu.Lock()
	doc := s.store.Snapshot()
	s.mu.Unlock()
	return s.transfer.Export(doc, s.now())
}

// ── Revisions ──────────────────────────────────────────────

// ListRevisions returns the save history newest first.
func (s *MapService) ListRevisions() ([]domain.Revision, error) {
	return s.persist.ListRevisions()
}

// RestoreRevision replaces the document with a stored revision.
func (s *MapService) RestoreRevision(ctx context.Context, revisionID string) error {
	rev, doc, err := s.persist.Revision(revisionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(doc)
	s.selectFallbackLocked()
	return s.commitLocked(ctx, fmt.Sprintf("Restore v%d", rev.Version),
		fmt.Sprintf("Restored %q from v%d", rev.Label, rev.Version))
}

// ── Remote updates ─────────────────────────────────────────

// ApplyRemote adopts a document saved by another session. Stale versions
// are ignored. The edit machine returns to Idle.
func (s *MapService) ApplyRemote(ctx context.Context, msg broadcast.Message) bool {
	if msg.Type != broadcast.TypeDataUpdate || msg.Data == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Version <= s.version {
		return false
	}
	s.replaceLocked(msg.Data.Clone())
	s.version = msg.Version
	s.selectFallbackLocked()
	log.Printf("[MAP] Applied remote v%d from %s", msg.Version, msg.Origin)
	s.notify(ctx, "info", "Data updated from another window")
	s.emitViewLocked(ctx)
	return true
}

// ── helpers ────────────────────────────────────────────────

// commitLocked saves the document and emits the view. A storage failure
// keeps the in-memory change and warns that it may not survive a reload.
func (s *MapService) commitLocked(ctx context.Context, label, success string) error {
	if s.detached {
		log.Printf("[MAP] Save %q held back: stored map unreadable", label)
		s.notify(ctx, "warning", "Saved data could not be loaded; changes are kept in this window only")
		s.emitViewLocked(ctx)
		return &domain.StorageError{Op: "save", Err: ErrDetached}
	}
	_, err := s.saveLocked(ctx, label)
	if err != nil {
		log.Printf("[MAP] Save %q failed: %v", label, err)
		s.notify(ctx, "warning", "Changes could not be saved and may be lost on reload")
	} else if success != "" {
		s.notify(ctx, "success", success)
	}
	s.emitViewLocked(ctx)
	return err
}

func (s *MapService) saveLocked(ctx context.Context, label string) (int64, error) {
	version, err := s.persist.Save(ctx, s.store.Snapshot(), label)
	if err != nil {
		var se *domain.StorageError
		if !errors.As(err, &se) {
			err = &domain.StorageError{Op: "save", Err: err}
		}
		return 0, err
	}
	s.version = version
	return version, nil
}

// replaceLocked swaps in a whole document. The map always keeps at least
// one floor, and the result may be saved over the stored record.
func (s *MapService) replaceLocked(doc *domain.HotelMap) {
	s.store.Replace(doc)
	s.store.EnsureDefaultFloor()
	s.machine.Reset()
	s.detached = false
}

func (s *MapService) askLocked(prompt string) bool {
	return s.confirm == nil || s.confirm(prompt)
}

// selectFallbackLocked selects the lowest floor, or none. The current
// floor is kept when it still exists.
func (s *MapService) selectFallbackLocked() {
	if s.store.HasFloor(s.machine.FloorID()) {
		return
	}
	ids := s.store.FloorIDs()
	if len(ids) == 0 {
		s.machine.Reset()
		return
	}
	s.machine.SelectFloor(ids[0])
}

func (s *MapService) notify(ctx context.Context, level, msg string) {
	s.emitter.Emit(ctx, EventMapNotice, domain.Notice{Level: level, Message: msg})
}

func (s *MapService) emitViewLocked(ctx context.Context) {
	s.emitter.Emit(ctx, EventMapChanged, s.viewLocked())
}

func (s *MapService) summariesLocked() []domain.FloorSummary {
	ids := s.store.FloorIDs()
	out := make([]domain.FloorSummary, 0, len(ids))
	for _, id := range ids {
		f, _ := s.store.Floor(id)
		out = append(out, domain.FloorSummary{
			ID:          domain.FloorKey(id),
			Name:        f.Name,
			Markers:     len(f.Markers),
			Connections: len(f.Connections),
			HasImage:    f.HasImage(),
		})
	}
	return out
}

func (s *MapService) viewLocked() domain.MapView {
	v := domain.MapView{
		Floors:         s.summariesLocked(),
		Mode:           string(s.machine.Mode()),
		SelectedMarker: s.machine.Selected(),
		Pending:        s.machine.Pending(),
		Version:        s.version,
		Detached:       s.detached,
		Lines:          []domain.LineView{},
	}
	v.CanDeleteFloor = len(v.Floors) > 1

	f, err := s.store.Floor(s.machine.FloorID())
	if err != nil {
		return v
	}
	v.CurrentFloor = domain.FloorKey(s.machine.FloorID())
	v.Floor = f
	for _, c := range f.Connections {
		ai, bi := f.MarkerIndex(c[0]), f.MarkerIndex(c[1])
		if ai < 0 || bi < 0 {
			continue
		}
		a, b := f.Markers[ai].Position(), f.Markers[bi].Position()
		line := geometry.ConnectionGeometry(a, b)
		v.Lines = append(v.Lines, domain.LineView{
			From:         c[0],
			To:           c[1],
			Left:         a.X,
			Top:          a.Y,
			Length:       line.Distance,
			AngleDegrees: line.AngleDegrees,
		})
	}
	return v
}
