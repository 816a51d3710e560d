// Package floorstore owns the in-memory hotel map and enforces its
// structural rules. Every operation validates before it mutates, so a
// failed call leaves the document untouched. Persistence is the caller's
// job.
package floorstore

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"hotelmap/internal/domain"
)

// LinkResult reports what Connect or Disconnect did.
type LinkResult int

const (
	LinkCreated LinkResult = iota
	LinkAlreadyExists
	LinkRemoved
	LinkNotFound
)

func (r LinkResult) String() string {
	switch r {
	case LinkCreated:
		return "connected"
	case LinkAlreadyExists:
		return "already connected"
	case LinkRemoved:
		return "disconnected"
	case LinkNotFound:
		return "not connected"
	}
	return "unknown"
}

// Stats counts the content of one floor.
type Stats struct {
	Markers     int `json:"markers"`
	Connections int `json:"connections"`
}

// Store is the single in-memory source of truth for a session.
type Store struct {
	doc *domain.HotelMap
	now func() time.Time
}

// New creates a Store over an empty document.
func New() *Store {
	return &Store{doc: domain.NewHotelMap(), now: time.Now}
}

// FromDocument creates a Store that takes ownership of doc.
func FromDocument(doc *domain.HotelMap) *Store {
	s := New()
	s.Replace(doc)
	return s
}

// SetClock overrides the marker id source. Used by tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// ── Whole document ─────────────────────────────────────────

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() *domain.HotelMap {
	return s.doc.Clone()
}

// Replace swaps in a new document wholesale.
func (s *Store) Replace(doc *domain.HotelMap) {
	if doc == nil {
		doc = domain.NewHotelMap()
	}
	if doc.Floors == nil {
		doc.Floors = make(map[string]*domain.Floor)
	}
	s.doc = doc
}

// FloorIDs returns the live floor ids in ascending order.
func (s *Store) FloorIDs() []int {
	return s.doc.SortedFloorIDs()
}

// Floor returns a copy of one floor.
func (s *Store) Floor(floorID int) (*domain.Floor, error) {
	f, err := s.floor(floorID)
	if err != nil {
		return nil, err
	}
	return f.Clone(), nil
}

// HasFloor reports whether floorID is live.
func (s *Store) HasFloor(floorID int) bool {
	_, ok := s.doc.Floors[domain.FloorKey(floorID)]
	return ok
}

// Stats returns marker and connection counts for a floor.
func (s *Store) Stats(floorID int) (Stats, error) {
	f, err := s.floor(floorID)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Markers: len(f.Markers), Connections: len(f.Connections)}, nil
}

// ── Floors ─────────────────────────────────────────────────

// AddFloor creates a floor under the smallest positive id not in use.
func (s *Store) AddFloor(name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, domain.Invalid("name", "floor name is required")
	}
	id := 1
	for s.HasFloor(id) {
		id++
	}
	s.doc.Floors[domain.FloorKey(id)] = &domain.Floor{
		Name:        name,
		FloorNumber: domain.FloorKey(id),
		Markers:     []domain.Marker{},
		Connections: []domain.Connection{},
	}
	return id, nil
}

// EnsureDefaultFloor adds "Floor 1" when the document has no floors.
// It reports whether a floor was created.
func (s *Store) EnsureDefaultFloor() bool {
	if len(s.doc.Floors) > 0 {
		return false
	}
	id, _ := s.AddFloor("Floor 1")
	return id > 0
}

// DeleteFloor removes a floor with everything on it. Choosing a new
// current floor is up to the caller.
func (s *Store) DeleteFloor(floorID int) error {
	if _, err := s.floor(floorID); err != nil {
		return err
	}
	delete(s.doc.Floors, domain.FloorKey(floorID))
	return nil
}

// RenameFloor overwrites the display name.
func (s *Store) RenameFloor(floorID int, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Invalid("name", "floor name is required")
	}
	f, err := s.floor(floorID)
	if err != nil {
		return err
	}
	f.Name = name
	return nil
}

// SetFloorImage stores the image data URL, or clears it when image is empty.
func (s *Store) SetFloorImage(floorID int, image string) error {
	f, err := s.floor(floorID)
	if err != nil {
		return err
	}
	if image == "" {
		f.FloorPlanURL = nil
		return nil
	}
	f.FloorPlanURL = &image
	return nil
}

// ClearAllImages drops every floor's image and keeps markers and connections.
// It returns how many images were removed.
func (s *Store) ClearAllImages() int {
	n := 0
	for _, f := range s.doc.Floors {
		if f.FloorPlanURL != nil {
			f.FloorPlanURL = nil
			n++
		}
	}
	return n
}

// ClearFloorContent empties markers and connections, and the image too
// when clearImage is set.
func (s *Store) ClearFloorContent(floorID int, clearImage bool) error {
	f, err := s.floor(floorID)
	if err != nil {
		return err
	}
	f.Markers = []domain.Marker{}
	f.Connections = []domain.Connection{}
	if clearImage {
		f.FloorPlanURL = nil
	}
	return nil
}

// ── Markers ────────────────────────────────────────────────

// AddMarker places a marker and returns its id. Positions are percentages
// and must lie within [0, 100].
func (s *Store) AddMarker(floorID int, pos domain.Position, name string, icon domain.Icon) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.Invalid("name", "marker name is required")
	}
	if !inRange(pos.X) || !inRange(pos.Y) {
		return "", domain.Invalid("position", fmt.Sprintf("(%g, %g) is outside the floor plan", pos.X, pos.Y))
	}
	if icon == "" {
		icon = domain.DefaultIcon
	}
	if !icon.Valid() {
		return "", domain.Invalid("icon", fmt.Sprintf("unknown icon %q", icon))
	}
	f, err := s.floor(floorID)
	if err != nil {
		return "", err
	}

	id := s.nextMarkerID(f)
	f.Markers = append(f.Markers, domain.Marker{
		ID:   id,
		X:    pos.X,
		Y:    pos.Y,
		Name: name,
		Icon: icon,
	})
	return id, nil
}

// DeleteMarker removes a marker and every connection that references it.
func (s *Store) DeleteMarker(floorID int, markerID string) error {
	f, err := s.floor(floorID)
	if err != nil {
		return err
	}
	idx := f.MarkerIndex(markerID)
	if idx < 0 {
		return domain.MarkerNotFound(markerID)
	}
	f.Markers = append(f.Markers[:idx], f.Markers[idx+1:]...)

	kept := f.Connections[:0]
	for _, c := range f.Connections {
		if !c.Touches(markerID) {
			kept = append(kept, c)
		}
	}
	f.Connections = kept
	return nil
}

// Marker returns one marker by id.
func (s *Store) Marker(floorID int, markerID string) (domain.Marker, error) {
	f, err := s.floor(floorID)
	if err != nil {
		return domain.Marker{}, err
	}
	idx := f.MarkerIndex(markerID)
	if idx < 0 {
		return domain.Marker{}, domain.MarkerNotFound(markerID)
	}
	return f.Markers[idx], nil
}

// ── Connections ────────────────────────────────────────────

// Connect links two markers. An existing link in either order is reported
// as LinkAlreadyExists and nothing changes.
func (s *Store) Connect(floorID int, a, b string) (LinkResult, error) {
	f, err := s.linkFloor(floorID, a, b)
	if err != nil {
		return 0, err
	}
	if f.ConnectionIndex(a, b) >= 0 {
		return LinkAlreadyExists, nil
	}
	f.Connections = append(f.Connections, domain.Connection{a, b})
	return LinkCreated, nil
}

// Disconnect removes the link between two markers. A missing link is
// reported as LinkNotFound, which is not an error.
func (s *Store) Disconnect(floorID int, a, b string) (LinkResult, error) {
	f, err := s.floor(floorID)
	if err != nil {
		return 0, err
	}
	idx := f.ConnectionIndex(a, b)
	if idx < 0 {
		return LinkNotFound, nil
	}
	f.Connections = append(f.Connections[:idx], f.Connections[idx+1:]...)
	return LinkRemoved, nil
}

// ── helpers ────────────────────────────────────────────────

func (s *Store) floor(floorID int) (*domain.Floor, error) {
	f, ok := s.doc.Floors[domain.FloorKey(floorID)]
	if !ok || f == nil {
		return nil, domain.FloorNotFound(floorID)
	}
	return f, nil
}

func (s *Store) linkFloor(floorID int, a, b string) (*domain.Floor, error) {
	if a == b {
		return nil, domain.Invalid("connection", "cannot connect a marker to itself")
	}
	f, err := s.floor(floorID)
	if err != nil {
		return nil, err
	}
	for _, id := range []string{a, b} {
		if f.MarkerIndex(id) < 0 {
			return nil, domain.MarkerNotFound(id)
		}
	}
	return f, nil
}

// nextMarkerID derives an id from the clock in milliseconds and bumps it
// until it is unique on the floor.
func (s *Store) nextMarkerID(f *domain.Floor) string {
	n := s.now().UnixMilli()
	for {
		id := strconv.FormatInt(n, 10)
		if f.MarkerIndex(id) < 0 {
			return id
		}
		n++
	}
}

func inRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 100
}
