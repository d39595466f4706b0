package raycast

import (
	"context"
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadcast/geom"
	"github.com/aukilabs/quadcast/quadtree"
)

// Caster casts single rays through a spatial index.
type Caster interface {
	Cast(ctx context.Context, index quadtree.SpatialIndex, ray geom.Ray) (Result, error)
}

// Options tunes an Engine.
type Options struct {
	// Caps the number of boundary crossings. Zero uses DefaultMaxSteps.
	MaxSteps int

	// Caps the number of boundary crossings to LegacyMaxSteps when MaxSteps
	// is not set.
	LegacyStepCap bool

	// Drops the trace from collision and no collision results. Inconclusive
	// results always carry it.
	DisableTrace bool
}

// Engine is the adaptive traversal. It strides through the index one leaf
// at a time, so empty regions are crossed in a single step whatever their
// size. An Engine holds no per-cast state and is safe for concurrent use.
type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

func (e *Engine) Options() Options {
	return e.opts
}

// CastRay casts a ray with default options. A non finite ray or a faulty
// index is logged and reported as no collision, with the error type
// (invalid_ray or index_error) as reason. Inconclusive is only returned when
// the step budget runs out.
func CastRay(index quadtree.SpatialIndex, origin, direction geom.Vec2) Result {
	res, err := NewEngine(Options{}).Cast(context.Background(), index, geom.NewRay(origin, direction))
	if err != nil {
		logs.Warn(err)
		return Result{
			Kind:   NoCollision,
			Reason: errors.Type(err),
			Trace:  res.Trace,
		}
	}
	return res
}

// Cast returns the first solid leaf hit by the ray. The ray starts at its
// origin when the origin is inside the domain, otherwise where it enters the
// domain.
func (e *Engine) Cast(ctx context.Context, index quadtree.SpatialIndex, ray geom.Ray) (Result, error) {
	if !ray.Origin.IsFinite() || !ray.Direction.IsFinite() {
		return Result{}, errors.New("ray components must be finite").
			WithType(ErrTypeInvalidRay).
			WithTag("origin", ray.Origin.String()).
			WithTag("direction", ray.Direction.String())
	}

	direction := ray.Direction
	if direction.IsZero() {
		return Result{
			Kind:   NoCollision,
			Reason: ReasonDegenerateDirection,
		}, nil
	}

	var (
		start Step
		leaf  *quadtree.Node
		err   error
	)

	if origin := ray.Origin; index.InRange(origin.X, origin.Y) {
		if embedding, err := index.Locate(origin.X, origin.Y); err != nil {
			return Result{}, indexError(err)
		} else if embedding.IsSolid() {
			return e.result(Result{
				Kind:   Collision,
				Reason: ReasonEmbedded,
				Point:  origin,
				Cell:   embedding.Region().Origin,
				Trace:  []geom.Vec2{origin},
			}), nil
		}

		start, leaf, err = enter(index, origin, direction, originAxis(origin, direction))
	} else {
		entry, ok := ResolveEntry(ray, float64(index.Side()))
		if !ok {
			return e.result(Result{
				Kind:   NoCollision,
				Reason: ReasonMissedDomain,
			}), nil
		}

		start, leaf, err = enter(index, entry.Point, direction, entry.Axis)
	}
	if err != nil {
		return Result{}, indexError(err)
	}

	trace := []geom.Vec2{start.Position}

	switch {
	case leaf == nil:
		return e.result(Result{
			Kind:   NoCollision,
			Reason: ReasonExitedDomain,
			Trace:  trace,
		}), nil

	case leaf.IsSolid():
		return e.result(collision(start, direction, 0, trace)), nil
	}

	maxSteps := e.maxSteps(index)
	s := start

	for steps := 0; ; steps++ {
		if err := ctx.Err(); err != nil {
			return Result{
				Kind:  Inconclusive,
				Steps: steps,
				Trace: trace,
			}, errors.New("cast canceled").
				WithType(ErrTypeCanceled).
				WithTag("steps", steps).
				Wrap(err)
		}

		if steps >= maxSteps {
			return Result{
				Kind:   Inconclusive,
				Reason: ReasonStepCap,
				Steps:  steps,
				Trace:  trace,
			}, nil
		}

		next, out, err := advance(index, direction, s)
		if err != nil {
			return Result{}, indexError(err)
		}

		switch out {
		case outcomeDesync:
			return e.result(Result{
				Kind:   NoCollision,
				Reason: ReasonDesync,
				Steps:  steps,
				Trace:  trace,
			}), nil

		case outcomeExited:
			return e.result(Result{
				Kind:   NoCollision,
				Reason: ReasonExitedDomain,
				Steps:  steps + 1,
				Trace:  append(trace, next.Position),
			}), nil

		case outcomeHit:
			return e.result(collision(next, direction, steps+1, append(trace, next.Position))), nil
		}

		trace = append(trace, next.Position)
		s = next
	}
}

func (e *Engine) maxSteps(index quadtree.SpatialIndex) int {
	switch {
	case e.opts.MaxSteps > 0:
		return e.opts.MaxSteps
	case e.opts.LegacyStepCap:
		return LegacyMaxSteps
	default:
		return DefaultMaxSteps(index)
	}
}

func (e *Engine) result(r Result) Result {
	if e.opts.DisableTrace {
		r.Trace = nil
	}
	return r
}

func collision(s Step, direction geom.Vec2, steps int, trace []geom.Vec2) Result {
	return Result{
		Kind:   Collision,
		Reason: ReasonSolidLeaf,
		Point:  s.Position,
		Cell:   s.Cell,
		Normal: surfaceNormal(s.Axis, direction),
		Steps:  steps,
		Trace:  trace,
	}
}

// originAxis returns the axis whose boundary an origin lying on a cell edge
// is about to cross. Ties go to the y axis.
func originAxis(origin, direction geom.Vec2) Axis {
	onBoundary := func(v, d float64) bool {
		return d < 0 && v == math.Floor(v)
	}

	switch {
	case onBoundary(origin.Y, direction.Y):
		return AxisY
	case onBoundary(origin.X, direction.X):
		return AxisX
	default:
		return AxisNone
	}
}

func indexError(err error) error {
	return errors.New("querying spatial index failed").
		WithType(ErrTypeIndex).
		Wrap(err)
}
