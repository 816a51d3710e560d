package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"hotelmap/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// TransferService — JSON import validation and export
// ─────────────────────────────────────────────────────────────

const (
	DefaultImportLimit = 10 << 20
	exportFilePattern  = "hotel-hopper-data-2006-01-02.json"
)

// ImportReport summarizes what Validate repaired or discarded.
type ImportReport struct {
	Floors             int `json:"floors"`
	Markers            int `json:"markers"`
	Connections        int `json:"connections"`
	RepairedFields     int `json:"repairedFields"`
	DroppedMarkers     int `json:"droppedMarkers"`
	DroppedConnections int `json:"droppedConnections"`
}

// Clean reports whether the document was imported without changes.
func (r ImportReport) Clean() bool {
	return r.RepairedFields == 0 && r.DroppedMarkers == 0 && r.DroppedConnections == 0
}

func (r ImportReport) String() string {
	s := fmt.Sprintf("%d floor(s), %d marker(s), %d connection(s)", r.Floors, r.Markers, r.Connections)
	if !r.Clean() {
		s += fmt.Sprintf("; repaired %d field(s), dropped %d marker(s) and %d connection(s)",
			r.RepairedFields, r.DroppedMarkers, r.DroppedConnections)
	}
	return s
}

// TransferService converts between the document and its JSON file form.
type TransferService struct {
	importLimit int64
}

func NewTransferService(importLimit int64) *TransferService {
	if importLimit <= 0 {
		importLimit = DefaultImportLimit
	}
	return &TransferService{importLimit: importLimit}
}

// ImportLimit is the largest accepted import in bytes.
func (s *TransferService) ImportLimit() int64 { return s.importLimit }

// ExportFilename is the suggested file name for an export taken at now.
func ExportFilename(now time.Time) string {
	return now.Format(exportFilePattern)
}

// Export renders doc as indented JSON.
func (s *TransferService) Export(doc *domain.HotelMap, now time.Time) (string, []byte, error) {
	if doc == nil {
		doc = domain.NewHotelMap()
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("encode export: %w", err)
	}
	return ExportFilename(now), data, nil
}

// ── Import ─────────────────────────────────────────────────

type rawFloor struct {
	Name         json.RawMessage   `json:"name"`
	FloorNumber  json.RawMessage   `json:"floorNumber"`
	FloorPlanURL *string           `json:"floorPlanUrl"`
	Markers      []*rawMarker      `json:"markers"`
	Connections  []json.RawMessage `json:"connections"`
}

type rawMarker struct {
	ID   json.RawMessage `json:"id"`
	X    float64         `json:"x"`
	Y    float64         `json:"y"`
	Name string          `json:"name"`
	Icon string          `json:"icon"`
}

// Validate checks an import payload and returns the normalized document.
// Anything wrong at the document level is a ValidationError. Broken
// markers and connections inside an otherwise valid document are
// dropped and counted in the report.
func (s *TransferService) Validate(data []byte) (*domain.HotelMap, ImportReport, error) {
	var report ImportReport
	if int64(len(data)) > s.importLimit {
		return nil, report, domain.Invalid("file", fmt.Sprintf("file too large (max %dMB)", s.importLimit>>20))
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, report, domain.Invalid("file", "invalid JSON format")
	}
	rawFloors, ok := top["floors"]
	if !ok || !isJSONObject(rawFloors) {
		return nil, report, domain.Invalid("floors", "invalid data format: a floors object is required")
	}
	var floors map[string]*rawFloor
	if err := json.Unmarshal(rawFloors, &floors); err != nil {
		return nil, report, domain.Invalid("floors", fmt.Sprintf("invalid data format: %v", err))
	}

	doc := domain.NewHotelMap()
	for key, rf := range floors {
		id, ok := domain.ParseFloorKey(key)
		if !ok {
			return nil, report, domain.Invalid("floors", fmt.Sprintf("floor key %q is not a positive integer", key))
		}
		if rf == nil {
			return nil, report, domain.Invalid("floors", fmt.Sprintf("floor %s is empty", key))
		}
		doc.Floors[key] = normalizeFloor(id, rf, &report)
	}

	report.Floors = len(doc.Floors)
	for _, f := range doc.Floors {
		report.Markers += len(f.Markers)
		report.Connections += len(f.Connections)
	}
	return doc, report, nil
}

func normalizeFloor(id int, rf *rawFloor, report *ImportReport) *domain.Floor {
	key := domain.FloorKey(id)
	f := &domain.Floor{
		Markers:     []domain.Marker{},
		Connections: []domain.Connection{},
	}

	if name, ok := looseString(rf.Name); ok && strings.TrimSpace(name) != "" {
		f.Name = strings.TrimSpace(name)
	} else {
		f.Name = "Floor " + key
		report.RepairedFields++
	}
	if num, ok := looseString(rf.FloorNumber); ok && num != "" {
		f.FloorNumber = num
	} else {
		f.FloorNumber = key
		report.RepairedFields++
	}
	if rf.FloorPlanURL != nil && *rf.FloorPlanURL != "" {
		img := *rf.FloorPlanURL
		f.FloorPlanURL = &img
	}

	for _, rm := range rf.Markers {
		m, ok := normalizeMarker(rm, report)
		if !ok || f.MarkerIndex(m.ID) >= 0 {
			report.DroppedMarkers++
			continue
		}
		f.Markers = append(f.Markers, m)
	}

	for _, rc := range rf.Connections {
		var pair []json.RawMessage
		if err := json.Unmarshal(rc, &pair); err != nil || len(pair) != 2 {
			report.DroppedConnections++
			continue
		}
		a, okA := looseString(pair[0])
		b, okB := looseString(pair[1])
		switch {
		case !okA || !okB || a == b:
			report.DroppedConnections++
		case f.MarkerIndex(a) < 0 || f.MarkerIndex(b) < 0:
			report.DroppedConnections++
		case f.ConnectionIndex(a, b) >= 0:
			report.DroppedConnections++
		default:
			f.Connections = append(f.Connections, domain.Connection{a, b})
		}
	}
	return f
}

func normalizeMarker(rm *rawMarker, report *ImportReport) (domain.Marker, bool) {
	if rm == nil {
		return domain.Marker{}, false
	}
	id, ok := looseString(rm.ID)
	if !ok || id == "" {
		return domain.Marker{}, false
	}

	m := domain.Marker{ID: id, X: rm.X, Y: rm.Y, Name: strings.TrimSpace(rm.Name)}
	if m.X < 0 || m.X > 100 || m.Y < 0 || m.Y > 100 {
		m.X = math.Min(math.Max(m.X, 0), 100)
		m.Y = math.Min(math.Max(m.Y, 0), 100)
		report.RepairedFields++
	}
	if m.Name == "" {
		m.Name = "Unnamed"
		report.RepairedFields++
	}
	icon, ok := domain.ParseIcon(rm.Icon)
	if !ok {
		icon = domain.DefaultIcon
		report.RepairedFields++
	}
	m.Icon = icon
	return m, true
}

// looseString accepts a JSON string or number. Older exports stored
// marker ids and floor numbers as numbers.
func looseString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func isJSONObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
