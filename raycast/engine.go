package raycast

import (
	"math"

	"github.com/aukilabs/quadcast/geom"
	"github.com/aukilabs/quadcast/quadtree"
)

// LegacyMaxSteps is the historical fixed iteration cap. It is too small for
// most trees and is kept behind a feature flag for comparisons.
const LegacyMaxSteps = 20

// DefaultMaxSteps returns a step budget large enough for any ray to leave
// the domain: every crossing lands on one of the side/minLeafSide+1 grid
// lines of either axis and no line is crossed twice.
func DefaultMaxSteps(index quadtree.SpatialIndex) int {
	minLeafSide := index.MinLeafSide()
	if minLeafSide <= 0 {
		minLeafSide = 1
	}
	return 2*index.Side()/minLeafSide + 2
}

// Step is one state of a traversal: the position on the boundary just
// crossed, the cell entered, aligned to the stride of the leaf holding it,
// and the axis crossed to get there.
type Step struct {
	Position geom.Vec2
	Cell     geom.Vec2
	StepSize int
	Axis     Axis
}

type outcome int

const (
	outcomeContinue outcome = iota
	outcomeHit
	outcomeExited
	outcomeDesync
)

// advance computes the step following s. It never modifies s.
func advance(index quadtree.SpatialIndex, direction geom.Vec2, s Step) (Step, outcome, error) {
	targetX := nextBoundary(s.Cell.X, s.StepSize, direction.X)
	targetY := nextBoundary(s.Cell.Y, s.StepSize, direction.Y)

	tx := boundaryDistance(targetX, s.Position.X, direction.X)
	ty := boundaryDistance(targetY, s.Position.Y, direction.Y)

	if tx < 0 || ty < 0 || (math.IsInf(tx, 1) && math.IsInf(ty, 1)) {
		return s, outcomeDesync, nil
	}

	var (
		position geom.Vec2
		axis     Axis
	)

	if tx < ty {
		position = geom.Add(s.Position, geom.Mul(direction, tx))
		position.X = targetX
		axis = AxisX
	} else {
		position = geom.Add(s.Position, geom.Mul(direction, ty))
		position.Y = targetY
		axis = AxisY
	}

	next, leaf, err := enter(index, position, direction, axis)
	if err != nil {
		return s, outcomeDesync, err
	}

	switch {
	case leaf == nil:
		return next, outcomeExited, nil
	case leaf.IsSolid():
		return next, outcomeHit, nil
	default:
		return next, outcomeContinue, nil
	}
}

// enter returns the step for a ray at position moving along direction,
// together with the leaf it is entering. The leaf is nil when the ray is
// leaving the domain.
func enter(index quadtree.SpatialIndex, position, direction geom.Vec2, axis Axis) (Step, *quadtree.Node, error) {
	step := Step{
		Position: position,
		Axis:     axis,
	}

	x := probe(position.X, direction.X)
	y := probe(position.Y, direction.Y)
	if !index.InRange(x, y) {
		return step, nil, nil
	}

	stepSize, err := index.StepSizeAt(x, y)
	if err != nil {
		return step, nil, err
	}

	step.StepSize = stepSize
	step.Cell = geom.NewVec2(
		geom.FloorTo(x, float64(stepSize)),
		geom.FloorTo(y, float64(stepSize)),
	)

	leaf, err := index.Locate(step.Cell.X, step.Cell.Y)
	if err != nil {
		return step, nil, err
	}
	return step, leaf, nil
}

// probe returns the unit cell coordinate a ray occupies right after v. A ray
// sitting on an integer boundary and moving backwards is already in the cell
// below it.
func probe(v, direction float64) float64 {
	f := math.Floor(v)
	if direction < 0 && f == v {
		return f - 1
	}
	return f
}

func nextBoundary(cell float64, stepSize int, direction float64) float64 {
	if direction > 0 {
		return cell + float64(stepSize)
	}
	return cell
}

// boundaryDistance returns the ray parameter at which the coordinate reaches
// target. Crossings that can never happen report +Inf so they lose every
// comparison.
func boundaryDistance(target, position, direction float64) float64 {
	if direction == 0 {
		return math.Inf(1)
	}

	t := (target - position) / direction
	if math.IsNaN(t) || math.IsInf(t, -1) || (t == 0 && math.Signbit(t)) {
		return math.Inf(1)
	}
	return t
}

// surfaceNormal is the unit vector facing back against the ray on the
// crossed axis.
func surfaceNormal(axis Axis, direction geom.Vec2) geom.Vec2 {
	switch axis {
	case AxisX:
		return geom.NewVec2(-geom.Sign(direction.X), 0)
	case AxisY:
		return geom.NewVec2(0, -geom.Sign(direction.Y))
	default:
		return geom.Vec2{}
	}
}
