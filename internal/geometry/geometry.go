// Package geometry maps pointer events on the floor-plan container to
// normalized marker positions and back, and derives connection-line
// geometry. Everything here is pure.
package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"hotelmap/internal/domain"
)

// DefaultCaptureRadius is the click tolerance, in container pixels, for
// resolving a click to the nearest marker.
const DefaultCaptureRadius = 30.0

// Point is a pointer position in viewport pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is the container's on-screen bounding rectangle.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Scroll holds the container's scroll offsets.
type Scroll struct {
	Left float64 `json:"left"`
	Top  float64 `json:"top"`
}

// Line is the geometry of a connection drawn from A toward B.
type Line struct {
	Distance     float64 `json:"distance"`
	AngleDegrees float64 `json:"angleDegrees"`
}

func (r Rect) validate() error {
	switch {
	case !finite(r.Left) || !finite(r.Top) || !finite(r.Width) || !finite(r.Height):
		return &domain.GeometryError{Reason: "container rect is not finite"}
	case r.Width <= 0:
		return &domain.GeometryError{Reason: "container width is zero"}
	case r.Height <= 0:
		return &domain.GeometryError{Reason: "container height is zero"}
	}
	return nil
}

// PointToNormalizedPosition converts a pointer position into percent of the
// container box. The result is only meaningful for the rect and scroll it
// was computed with. No rounding is applied.
func PointToNormalizedPosition(p Point, container Rect, scroll Scroll) (domain.Position, error) {
	if err := container.validate(); err != nil {
		return domain.Position{}, err
	}
	return domain.Position{
		X: (p.X - container.Left + scroll.Left) / container.Width * 100,
		Y: (p.Y - container.Top + scroll.Top) / container.Height * 100,
	}, nil
}

// ToContainerPoint is the inverse of PointToNormalizedPosition: it returns
// the pointer position at which pos is rendered.
func ToContainerPoint(pos domain.Position, container Rect, scroll Scroll) (Point, error) {
	if err := container.validate(); err != nil {
		return Point{}, err
	}
	return Point{
		X: pos.X/100*container.Width + container.Left - scroll.Left,
		Y: pos.Y/100*container.Height + container.Top - scroll.Top,
	}, nil
}

// ConnectionGeometry returns the length and rotation of a line anchored at
// a and growing toward b.
func ConnectionGeometry(a, b domain.Position) Line {
	from, to := PositionPoint(a), PositionPoint(b)
	return Line{
		Distance:     planar.Distance(from, to),
		AngleDegrees: math.Atan2(to.Y()-from.Y(), to.X()-from.X()) * 180 / math.Pi,
	}
}

// PositionPoint returns pos in percent space as an orb point.
func PositionPoint(pos domain.Position) orb.Point {
	return orb.Point{pos.X, pos.Y}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
