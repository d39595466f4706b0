package geom

// Ray is a half line starting at Origin. Direction does not need to be of unit
// length: parameters returned by traversal are expressed in multiples of it.
type Ray struct {
	Origin    Vec2 `json:"origin"`
	Direction Vec2 `json:"direction"`
}

func NewRay(origin, direction Vec2) Ray {
	return Ray{
		Origin:    origin,
		Direction: direction,
	}
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float64) Vec2 {
	return Add(r.Origin, Mul(r.Direction, t))
}

// Normalized returns a copy of the ray with a unit direction. Used for display,
// traversal works with the raw direction.
func (r Ray) Normalized() Ray {
	return Ray{
		Origin:    r.Origin,
		Direction: Normalized(r.Direction),
	}
}
