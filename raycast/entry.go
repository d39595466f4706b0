package raycast

import (
	"math"

	"github.com/aukilabs/quadcast/geom"
)

// Axis identifies the boundary a ray crossed.
type Axis int

const (
	AxisNone Axis = iota
	AxisX
	AxisY
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	default:
		return "none"
	}
}

// Entry is where a ray coming from outside enters the domain.
type Entry struct {
	Point geom.Vec2
	T     float64
	Axis  Axis
}

// ResolveEntry intersects a ray with the four boundary lines of the domain
// [0, side) x [0, side) and returns the closest crossing that lies on the
// boundary segment, the other coordinate being strictly within (0, side).
// It returns false when the ray never reaches the domain.
func ResolveEntry(ray geom.Ray, side float64) (Entry, bool) {
	var (
		best  Entry
		found bool
	)

	try := func(t float64, axis Axis) {
		if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
			return
		}

		p := ray.At(t)
		switch axis {
		case AxisX:
			if !(p.Y > 0 && p.Y < side) {
				return
			}
		case AxisY:
			if !(p.X > 0 && p.X < side) {
				return
			}
		}

		if found && t >= best.T {
			return
		}
		best = Entry{Point: p, T: t, Axis: axis}
		found = true
	}

	for _, line := range []float64{0, side} {
		try(lineDistance(line, ray.Origin.X, ray.Direction.X), AxisX)
		try(lineDistance(line, ray.Origin.Y, ray.Direction.Y), AxisY)
	}

	if !found {
		return Entry{}, false
	}

	// Snap the crossed coordinate onto the boundary so the first cell does
	// not depend on rounding.
	switch best.Axis {
	case AxisX:
		best.Point.X = snapToBoundary(best.Point.X, side)
	case AxisY:
		best.Point.Y = snapToBoundary(best.Point.Y, side)
	}
	return best, true
}

// lineDistance returns the ray parameter at which the coordinate reaches
// the given line. A zero direction component never reaches it.
func lineDistance(line, origin, direction float64) float64 {
	if direction == 0 {
		return math.Inf(1)
	}
	return (line - origin) / direction
}

func snapToBoundary(v, side float64) float64 {
	if math.Abs(v) < math.Abs(v-side) {
		return 0
	}
	return side
}
