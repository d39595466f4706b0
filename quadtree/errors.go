package quadtree

// Error types attached to errors returned by this package. Use errors.Type or
// errors.IsType from go-tooling to inspect them.
const (
	ErrTypeOutOfBounds       = "out_of_bounds"
	ErrTypeInvalidChildCount = "invalid_child_count"
	ErrTypeInvalidSize       = "invalid_size"
	ErrTypeInvalidRegion     = "invalid_region"
	ErrTypeNilGenerator      = "nil_generator"
)
