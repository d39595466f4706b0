package quadtree

import (
	"github.com/aukilabs/quadcast/geom"
)

// Region is the axis-aligned square covered by a node: [Origin, Origin+Side).
type Region struct {
	Origin geom.Vec2 `json:"origin"`
	Side   float64   `json:"side"`
}

func (r Region) Max() geom.Vec2 {
	return geom.Vec2{X: r.Origin.X + r.Side, Y: r.Origin.Y + r.Side}
}

func (r Region) Contains(p geom.Vec2) bool {
	max := r.Max()
	return p.X >= r.Origin.X && p.Y >= r.Origin.Y && p.X < max.X && p.Y < max.Y
}

// Overlaps reports whether the interiors of both regions intersect.
func (r Region) Overlaps(o Region) bool {
	rMax := r.Max()
	oMax := o.Max()

	if r.Origin.X >= oMax.X || rMax.X <= o.Origin.X {
		return false
	}
	if r.Origin.Y >= oMax.Y || rMax.Y <= o.Origin.Y {
		return false
	}
	return true
}

func (r Region) Area() float64 {
	return r.Side * r.Side
}

// Quadrant returns the region of the child at the given index, following the
// fixed quadrant mapping of ChildIndex.
func (r Region) Quadrant(index int) Region {
	qx, qy := ChildQuadrant(index)
	half := r.Side / 2
	return Region{
		Origin: geom.Vec2{
			X: r.Origin.X + float64(qx)*half,
			Y: r.Origin.Y + float64(qy)*half,
		},
		Side: half,
	}
}

// ChildIndex maps a quadrant (qx, qy), each 0 or 1, to a child index:
// (0,0)→0, (0,1)→1, (1,0)→2, (1,1)→3. The order is part of the fixture format
// and must not change.
func ChildIndex(qx, qy int) int {
	return qx<<1 | qy
}

// ChildQuadrant is the inverse of ChildIndex.
func ChildQuadrant(index int) (qx, qy int) {
	return index >> 1 & 1, index & 1
}
