package raycast

const (
	ErrTypeInvalidRay = "invalid_ray"
	ErrTypeCanceled   = "cast_canceled"
	ErrTypeIndex      = "index_error"
)
