package floorstore

import (
	"math"
	"testing"

	"hotelmap/internal/domain"
)

func TestNextPosition_EmptyFloor(t *testing.T) {
	le := NewLayoutEngine()
	p, ok := le.NextPosition(nil)
	if !ok || p.X != Margin || p.Y != Margin {
		t.Errorf("expected (%.0f, %.0f) for an empty floor, got (%.0f, %.0f) ok=%v", Margin, Margin, p.X, p.Y, ok)
	}
}

func TestNextPosition_AvoidsExistingMarker(t *testing.T) {
	le := NewLayoutEngine()
	existing := []domain.Marker{{ID: "1", X: 5, Y: 5}}
	p, ok := le.NextPosition(existing)
	if !ok {
		t.Fatal("expected a free position")
	}
	if d := math.Hypot(p.X-5, p.Y-5); d < Spacing {
		t.Errorf("position (%.0f, %.0f) is %.1f from the existing marker", p.X, p.Y, d)
	}
	if p.Y != 5 {
		t.Errorf("expected the first row to be reused, got y=%.0f", p.Y)
	}
}

func TestNextPosition_FullFloor(t *testing.T) {
	le := NewLayoutEngine()
	var existing []domain.Marker
	for y := 0.0; y <= 100; y += 5 {
		for x := 0.0; x <= 100; x += 5 {
			existing = append(existing, domain.Marker{X: x, Y: y})
		}
	}
	if _, ok := le.NextPosition(existing); ok {
		t.Error("expected no free position on a saturated floor")
	}
}

func TestArrangeGroup_SpacesNewMarkers(t *testing.T) {
	le := NewLayoutEngine()
	existing := []domain.Marker{{ID: "1", X: 50, Y: 50}}
	got := le.ArrangeGroup(existing, 4)
	if len(got) != 4 {
		t.Fatalf("expected 4 positions, got %d", len(got))
	}

	all := append([]domain.Position{{X: 50, Y: 50}}, got...)
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			if d := math.Hypot(all[i].X-all[j].X, all[i].Y-all[j].Y); d < Spacing {
				t.Errorf("positions %v and %v are %.1f apart", all[i], all[j], d)
			}
		}
	}
	for _, p := range got {
		if p.X < 0 || p.X > 100 || p.Y < 0 || p.Y > 100 {
			t.Errorf("position %v is off the floor", p)
		}
	}
}
