package models

const (
	ErrTypeTreeNotFound  = "tree_not_found"
	ErrTypeInvalidParams = "invalid_build_params"
	ErrTypeStoreFull     = "tree_store_full"
)
