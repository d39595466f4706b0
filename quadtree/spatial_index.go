package quadtree

// SpatialIndex is the read-only view of a tree that ray traversal needs.
type SpatialIndex interface {
	// The side length of the domain, 2^size of the root.
	Side() int

	// The side length of the smallest leaf.
	MinLeafSide() int

	// Reports whether 0 <= x < side and 0 <= y < side.
	InRange(x, y float64) bool

	// Returns the leaf containing the given world-space point.
	Locate(x, y float64) (*Node, error)

	// Returns the side length of the leaf containing the given point.
	StepSizeAt(x, y float64) (int, error)
}
