package etl

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"hotelmap/internal/domain"
)

// ── Destination ────────────────────────────────────────────
// The destination is always a floor. MapService implements it and saves
// the whole batch at once.

// Destination places marker drafts on a floor.
type Destination interface {
	PlaceMarkers(ctx context.Context, floorID int, drafts []domain.MarkerDraft, replace bool) ([]domain.Marker, error)
}

// LoadMode determines what happens to markers already on the floor.
type LoadMode string

const (
	LoadAppend  LoadMode = "append"  // keep existing markers
	LoadReplace LoadMode = "replace" // clear markers and connections first
)

// ParseLoadMode accepts "", "append" and "replace".
func ParseLoadMode(s string) (LoadMode, error) {
	switch LoadMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", LoadAppend:
		return LoadAppend, nil
	case LoadReplace:
		return LoadReplace, nil
	}
	return "", fmt.Errorf("unknown load mode %q (use append or replace)", s)
}

// ColumnMapping names the columns holding each marker field. Empty
// entries fall back to "name", "icon", "x" and "y".
type ColumnMapping struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
	X    string `json:"x"`
	Y    string `json:"y"`
}

func (m ColumnMapping) withDefaults() ColumnMapping {
	if m.Name == "" {
		m.Name = "name"
	}
	if m.Icon == "" {
		m.Icon = "icon"
	}
	if m.X == "" {
		m.X = "x"
	}
	if m.Y == "" {
		m.Y = "y"
	}
	return m
}

// RowError explains why a row was skipped. Rows are numbered from 1.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ToDrafts maps records onto marker drafts. Rows that could never be
// placed are skipped and reported so one bad row does not sink the list.
func ToDrafts(records []Record, mapping ColumnMapping) ([]domain.MarkerDraft, []RowError) {
	m := mapping.withDefaults()
	var (
		drafts  []domain.MarkerDraft
		skipped []RowError
	)
	for i, r := range records {
		row := i + 1
		name := strings.TrimSpace(text(r.Data[m.Name]))
		if name == "" {
			skipped = append(skipped, RowError{Row: row, Reason: fmt.Sprintf("column %q is empty", m.Name)})
			continue
		}

		icon := text(r.Data[m.Icon])
		if _, ok := domain.ParseIcon(icon); !ok {
			skipped = append(skipped, RowError{Row: row, Reason: fmt.Sprintf("unknown icon %q", icon)})
			continue
		}

		d := domain.MarkerDraft{Name: name, Icon: icon}
		x, hasX := coordinate(r.Data[m.X])
		y, hasY := coordinate(r.Data[m.Y])
		if hasX != hasY {
			skipped = append(skipped, RowError{Row: row, Reason: "only one coordinate given"})
			continue
		}
		if hasX {
			if x < 0 || x > 100 || y < 0 || y > 100 {
				skipped = append(skipped, RowError{Row: row, Reason: fmt.Sprintf("(%g, %g) is outside the floor plan", x, y)})
				continue
			}
			d.X, d.Y = &x, &y
		}
		drafts = append(drafts, d)
	}
	return drafts, skipped
}

func text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// coordinate reads a percentage. Blank cells count as missing.
func coordinate(v any) (float64, bool) {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return 0, false
	}
	if v == nil {
		return 0, false
	}
	return toFloatSafe(v)
}
