package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Candidate is a marker projected into the same pixel space as the click.
type Candidate struct {
	ID    string
	Point Point
}

// NearestMarker returns the candidate closest to click whose distance is
// strictly less than radius. On equal distances the candidate that comes
// first in the slice wins.
func NearestMarker(click Point, candidates []Candidate, radius float64) (Candidate, bool) {
	var best Candidate
	found := false
	bestDist := radius
	at := click.orb()
	for _, c := range candidates {
		d := planar.Distance(at, c.Point.orb())
		if d < bestDist {
			best, bestDist, found = c, d, true
		}
	}
	return best, found
}

func (p Point) orb() orb.Point { return orb.Point{p.X, p.Y} }
