package domain

import (
	"sort"
	"strconv"
)

// HotelMap is the whole persisted document: every floor keyed by its
// decimal floor id.
type HotelMap struct {
	Floors map[string]*Floor `json:"floors"`
}

// Floor is one level of the building.
type Floor struct {
	Name         string       `json:"name"`
	FloorNumber  string       `json:"floorNumber"`
	FloorPlanURL *string      `json:"floorPlanUrl"` // data URL, nil when no image
	Markers      []Marker     `json:"markers"`
	Connections  []Connection `json:"connections"`
}

// Marker is a labeled point of interest. X and Y are percentages (0-100)
// of the rendered floor-plan image box.
type Marker struct {
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Name string  `json:"name"`
	Icon Icon    `json:"icon"`
}

// Position is a normalized marker position in percent.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Position returns the marker's normalized position.
func (m Marker) Position() Position {
	return Position{X: m.X, Y: m.Y}
}

// MarkerDraft is a marker waiting to be placed. When X or Y is nil the
// position is chosen automatically.
type MarkerDraft struct {
	Name string   `json:"name"`
	Icon string   `json:"icon"`
	X    *float64 `json:"x,omitempty"`
	Y    *float64 `json:"y,omitempty"`
}

// HasPosition reports whether both coordinates were given.
func (d MarkerDraft) HasPosition() bool {
	return d.X != nil && d.Y != nil
}

// Connection is an unordered pair of marker ids on one floor.
// It serializes as a two-element JSON array.
type Connection [2]string

// Joins reports whether c links a and b, in either order.
func (c Connection) Joins(a, b string) bool {
	return (c[0] == a && c[1] == b) || (c[0] == b && c[1] == a)
}

// Touches reports whether either endpoint of c is id.
func (c Connection) Touches(id string) bool {
	return c[0] == id || c[1] == id
}

// NewHotelMap returns an empty document.
func NewHotelMap() *HotelMap {
	return &HotelMap{Floors: make(map[string]*Floor)}
}

// FloorKey formats a floor id as a document key.
func FloorKey(id int) string {
	return strconv.Itoa(id)
}

// ParseFloorKey parses a document key into a floor id.
func ParseFloorKey(key string) (int, bool) {
	id, err := strconv.Atoi(key)
	if err != nil || id <= 0 || strconv.Itoa(id) != key {
		return 0, false
	}
	return id, true
}

// SortedFloorIDs returns the floor ids in ascending numeric order.
// Keys that are not positive integers are skipped.
func (h *HotelMap) SortedFloorIDs() []int {
	ids := make([]int, 0, len(h.Floors))
	for key := range h.Floors {
		if id, ok := ParseFloorKey(key); ok {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// Clone returns a deep copy of the document.
func (h *HotelMap) Clone() *HotelMap {
	out := NewHotelMap()
	if h == nil {
		return out
	}
	for key, f := range h.Floors {
		out.Floors[key] = f.Clone()
	}
	return out
}

// Clone returns a deep copy of the floor.
func (f *Floor) Clone() *Floor {
	if f == nil {
		return nil
	}
	out := &Floor{
		Name:        f.Name,
		FloorNumber: f.FloorNumber,
		Markers:     make([]Marker, len(f.Markers)),
		Connections: make([]Connection, len(f.Connections)),
	}
	if f.FloorPlanURL != nil {
		img := *f.FloorPlanURL
		out.FloorPlanURL = &img
	}
	copy(out.Markers, f.Markers)
	copy(out.Connections, f.Connections)
	return out
}

// MarkerIndex returns the position of the marker with id, or -1.
func (f *Floor) MarkerIndex(id string) int {
	for i, m := range f.Markers {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// ConnectionIndex returns the position of the connection joining a and b, or -1.
func (f *Floor) ConnectionIndex(a, b string) int {
	for i, c := range f.Connections {
		if c.Joins(a, b) {
			return i
		}
	}
	return -1
}

// HasImage reports whether a floor-plan image is attached.
func (f *Floor) HasImage() bool {
	return f.FloorPlanURL != nil && *f.FloorPlanURL != ""
}
