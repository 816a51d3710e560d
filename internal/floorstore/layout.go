package floorstore

import (
	"math"

	"github.com/paulmach/orb/planar"

	"hotelmap/internal/domain"
	"hotelmap/internal/geometry"
)

const (
	GridStep = 5.0  // percent between candidate positions
	Spacing  = 8.0  // minimum distance to an existing marker, in percent
	Margin   = 5.0  // keep new markers off the image border
	rowLimit = 95.0 // last usable row/column
)

// LayoutEngine picks positions for markers added without coordinates
// (agent tools, bulk loads) so they do not land on top of existing ones.
type LayoutEngine struct {
	step    float64
	spacing float64
	margin  float64
}

func NewLayoutEngine() *LayoutEngine {
	return &LayoutEngine{
		step:    GridStep,
		spacing: Spacing,
		margin:  Margin,
	}
}

// snap rounds v to the nearest grid point.
func (le *LayoutEngine) snap(v float64) float64 {
	return math.Round(v/le.step) * le.step
}

func (le *LayoutEngine) free(p domain.Position, taken []domain.Position) bool {
	for _, t := range taken {
		if planar.Distance(geometry.PositionPoint(p), geometry.PositionPoint(t)) < le.spacing {
			return false
		}
	}
	return true
}

// NextPosition scans the floor row by row and returns the first grid point
// far enough from every existing marker. ok is false when the floor is full.
func (le *LayoutEngine) NextPosition(existing []domain.Marker) (domain.Position, bool) {
	taken := make([]domain.Position, len(existing))
	for i, m := range existing {
		taken[i] = m.Position()
	}
	return le.next(taken)
}

func (le *LayoutEngine) next(taken []domain.Position) (domain.Position, bool) {
	start := le.snap(le.margin)
	for y := start; y <= rowLimit; y += le.step {
		for x := start; x <= rowLimit; x += le.step {
			p := domain.Position{X: x, Y: y}
			if le.free(p, taken) {
				return p, true
			}
		}
	}
	return domain.Position{}, false
}

// ArrangeGroup returns n free positions, each one also clear of the
// positions chosen before it.
func (le *LayoutEngine) ArrangeGroup(existing []domain.Marker, n int) []domain.Position {
	taken := make([]domain.Position, 0, len(existing)+n)
	for _, m := range existing {
		taken = append(taken, m.Position())
	}
	out := make([]domain.Position, 0, n)
	for i := 0; i < n; i++ {
		p, ok := le.next(taken)
		if !ok {
			break
		}
		out = append(out, p)
		taken = append(taken, p)
	}
	return out
}
