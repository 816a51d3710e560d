// Package editmode interprets clicks on the floor plan according to the
// active editing mode and turns them into Floor Store commands.
package editmode

import (
	"fmt"

	"hotelmap/internal/domain"
	"hotelmap/internal/floorstore"
	"hotelmap/internal/geometry"
)

// Mode is the active editing mode.
type Mode string

const (
	ModeIdle       Mode = "idle"
	ModeAdd        Mode = "add"
	ModeDelete     Mode = "delete"
	ModeConnect    Mode = "connect"
	ModeDisconnect Mode = "disconnect"
)

// ParseMode validates a mode name coming from the frontend.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeIdle, ModeAdd, ModeDelete, ModeConnect, ModeDisconnect:
		return m, nil
	case "":
		return ModeIdle, nil
	}
	return "", domain.Invalid("mode", fmt.Sprintf("unknown mode %q", s))
}

// ConfirmFunc asks the user to approve a destructive step. A nil
// ConfirmFunc approves everything.
type ConfirmFunc func(prompt string) bool

// Click is one pointer event on the floor-plan container. MarkerID is set
// when the click landed directly on a rendered marker.
type Click struct {
	MarkerID  string          `json:"markerId"`
	Pointer   geometry.Point  `json:"pointer"`
	Container geometry.Rect   `json:"container"`
	Scroll    geometry.Scroll `json:"scroll"`
}

// Action says what a click or confirmation did.
type Action string

const (
	ActionNone             Action = "none"
	ActionPlacementPending Action = "placement-pending"
	ActionMarkerAdded      Action = "marker-added"
	ActionMarkerDeleted    Action = "marker-deleted"
	ActionDeleteDeclined   Action = "delete-declined"
	ActionFirstSelected    Action = "first-selected"
	ActionSelectionCleared Action = "selection-cleared"
	ActionConnected        Action = "connected"
	ActionAlreadyConnected Action = "already-connected"
	ActionDisconnected     Action = "disconnected"
	ActionNotConnected     Action = "not-connected"
)

// Outcome describes the effect of one machine input.
type Outcome struct {
	Action   Action           `json:"action"`
	MarkerID string           `json:"markerId,omitempty"`
	OtherID  string           `json:"otherId,omitempty"`
	Position *domain.Position `json:"position,omitempty"`
}

// Changed reports whether the outcome mutated the document.
func (o Outcome) Changed() bool {
	switch o.Action {
	case ActionMarkerAdded, ActionMarkerDeleted, ActionConnected, ActionDisconnected:
		return true
	}
	return false
}

// Machine holds the current floor, mode and in-progress selection.
type Machine struct {
	store   *floorstore.Store
	confirm ConfirmFunc
	radius  float64

	floorID int
	mode    Mode
	first   string
	pending *domain.Position
}

// New creates a Machine in Idle with no floor selected.
func New(store *floorstore.Store, confirm ConfirmFunc) *Machine {
	return &Machine{
		store:   store,
		confirm: confirm,
		radius:  geometry.DefaultCaptureRadius,
		mode:    ModeIdle,
	}
}

// SetCaptureRadius overrides the nearest-marker tolerance in pixels.
func (m *Machine) SetCaptureRadius(r float64) {
	if r > 0 {
		m.radius = r
	}
}

// SetConfirm replaces the confirmation hook.
func (m *Machine) SetConfirm(fn ConfirmFunc) {
	m.confirm = fn
}

func (m *Machine) Mode() Mode { return m.mode }

func (m *Machine) FloorID() int { return m.floorID }

// Selected returns the first endpoint of a pending connect or disconnect.
func (m *Machine) Selected() string { return m.first }

// Pending returns the position awaiting a name, if any.
func (m *Machine) Pending() *domain.Position {
	if m.pending == nil {
		return nil
	}
	p := *m.pending
	return &p
}

// SetMode switches mode and drops any half-finished selection or placement.
func (m *Machine) SetMode(mode Mode) {
	m.mode = mode
	m.first = ""
	m.pending = nil
}

// Reset returns to Idle.
func (m *Machine) Reset() {
	m.SetMode(ModeIdle)
}

// SelectFloor makes floorID current and returns to Idle.
func (m *Machine) SelectFloor(floorID int) error {
	if !m.store.HasFloor(floorID) {
		return domain.FloorNotFound(floorID)
	}
	m.floorID = floorID
	m.Reset()
	return nil
}

// Click feeds one pointer event into the machine.
func (m *Machine) Click(c Click) (Outcome, error) {
	if m.mode == ModeIdle {
		return Outcome{Action: ActionNone}, nil
	}
	if !m.store.HasFloor(m.floorID) {
		return Outcome{}, domain.FloorNotFound(m.floorID)
	}

	switch m.mode {
	case ModeAdd:
		return m.clickAdd(c)
	case ModeDelete:
		return m.clickDelete(c)
	case ModeConnect, ModeDisconnect:
		return m.clickLink(c)
	}
	return Outcome{Action: ActionNone}, nil
}

// ConfirmMarker completes a pending placement. On failure the placement is
// kept so the caller can retry with a valid name.
func (m *Machine) ConfirmMarker(name string, icon domain.Icon) (Outcome, error) {
	if m.mode != ModeAdd || m.pending == nil {
		return Outcome{}, domain.Invalid("position", "no marker placement is pending")
	}
	pos := *m.pending
	id, err := m.store.AddMarker(m.floorID, pos, name, icon)
	if err != nil {
		return Outcome{}, err
	}
	m.pending = nil
	return Outcome{Action: ActionMarkerAdded, MarkerID: id, Position: &pos}, nil
}

// CancelMarker discards a pending placement and stays in Add.
func (m *Machine) CancelMarker() {
	m.pending = nil
}

// ── per-mode handlers ──────────────────────────────────────

func (m *Machine) clickAdd(c Click) (Outcome, error) {
	if c.MarkerID != "" {
		return Outcome{Action: ActionNone}, nil
	}
	pos, err := geometry.PointToNormalizedPosition(c.Pointer, c.Container, c.Scroll)
	if err != nil {
		return Outcome{}, err
	}
	if pos.X < 0 || pos.X > 100 || pos.Y < 0 || pos.Y > 100 {
		return Outcome{Action: ActionNone}, nil
	}
	m.pending = &pos
	p := pos
	return Outcome{Action: ActionPlacementPending, Position: &p}, nil
}

func (m *Machine) clickDelete(c Click) (Outcome, error) {
	id, err := m.resolve(c)
	if err != nil || id == "" {
		return Outcome{Action: ActionNone}, err
	}
	marker, err := m.store.Marker(m.floorID, id)
	if err != nil {
		return Outcome{}, err
	}
	if m.confirm != nil && !m.confirm(fmt.Sprintf("Delete marker %q?", marker.Name)) {
		return Outcome{Action: ActionDeleteDeclined, MarkerID: id}, nil
	}
	if err := m.store.DeleteMarker(m.floorID, id); err != nil {
		return Outcome{}, err
	}
	return Outcome{Action: ActionMarkerDeleted, MarkerID: id}, nil
}

func (m *Machine) clickLink(c Click) (Outcome, error) {
	id, err := m.resolve(c)
	if err != nil || id == "" {
		return Outcome{Action: ActionNone}, err
	}
	if m.first == "" {
		m.first = id
		return Outcome{Action: ActionFirstSelected, MarkerID: id}, nil
	}
	if m.first == id {
		m.first = ""
		return Outcome{Action: ActionSelectionCleared, MarkerID: id}, nil
	}

	first := m.first
	m.first = ""
	var res floorstore.LinkResult
	if m.mode == ModeConnect {
		res, err = m.store.Connect(m.floorID, first, id)
	} else {
		res, err = m.store.Disconnect(m.floorID, first, id)
	}
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Action: linkAction(res), MarkerID: first, OtherID: id}, nil
}

// resolve maps a click to a marker id: a direct hit first, then the nearest
// marker inside the capture radius. An empty id means no marker.
func (m *Machine) resolve(c Click) (string, error) {
	f, err := m.store.Floor(m.floorID)
	if err != nil {
		return "", err
	}
	if c.MarkerID != "" && f.MarkerIndex(c.MarkerID) >= 0 {
		return c.MarkerID, nil
	}
	if len(f.Markers) == 0 {
		return "", nil
	}

	candidates := make([]geometry.Candidate, 0, len(f.Markers))
	for _, mk := range f.Markers {
		pt, err := geometry.ToContainerPoint(mk.Position(), c.Container, c.Scroll)
		if err != nil {
			return "", err
		}
		candidates = append(candidates, geometry.Candidate{ID: mk.ID, Point: pt})
	}
	best, ok := geometry.NearestMarker(c.Pointer, candidates, m.radius)
	if !ok {
		return "", nil
	}
	return best.ID, nil
}

func linkAction(r floorstore.LinkResult) Action {
	switch r {
	case floorstore.LinkCreated:
		return ActionConnected
	case floorstore.LinkAlreadyExists:
		return ActionAlreadyConnected
	case floorstore.LinkRemoved:
		return ActionDisconnected
	default:
		return ActionNotConnected
	}
}
