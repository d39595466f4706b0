package geom

import (
	"fmt"
	"math"
)

func EqualWithEpsilon(a float64, b float64, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

// Sign returns -1, 0 or 1. Negative zero is 0.
func Sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// FloorTo floors v to the nearest multiple of step at or below it.
func FloorTo(v float64, step float64) float64 {
	return math.Floor(v/step) * step
}

// Vec2 is a point or a direction in the world space of a tree.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func NewVec2(x, y float64) Vec2 {
	return Vec2{X: x, Y: y}
}

func (v Vec2) String() string {
	return fmt.Sprintf("<%g, %g>", v.X, v.Y)
}

func (v Vec2) Equal(o Vec2) bool {
	return v.X == o.X && v.Y == o.Y
}

func (v Vec2) EqualWithEpsilon(o Vec2, epsilon float64) bool {
	return EqualWithEpsilon(v.X, o.X, epsilon) && EqualWithEpsilon(v.Y, o.Y, epsilon)
}

func (v Vec2) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

func (v Vec2) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}

func Add(a Vec2, b Vec2) Vec2 {
	return Vec2{a.X + b.X, a.Y + b.Y}
}

func Sub(a Vec2, b Vec2) Vec2 {
	return Vec2{a.X - b.X, a.Y - b.Y}
}

func Mul(a Vec2, s float64) Vec2 {
	return Vec2{a.X * s, a.Y * s}
}

// Div divides both components by s. Dividing by zero yields non-finite
// components; callers that care check IsFinite.
func Div(a Vec2, s float64) Vec2 {
	return Vec2{a.X / s, a.Y / s}
}

func (v Vec2) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

func (v Vec2) Dot(o Vec2) float64 {
	return v.X*o.X + v.Y*o.Y
}

// Normalized returns v scaled to unit length. The zero vector is returned
// unchanged.
func Normalized(v Vec2) Vec2 {
	length := v.Length()
	if length == 0 {
		return v
	}
	return Div(v, length)
}
