package types

import "errors"

// Domain errors for type validation
var (
	ErrEmptyChunkID      = errors.New("chunk ID cannot be empty")
	ErrEmptyContent      = errors.New("content cannot be empty")
	ErrMissingCollection = errors.New("collection is required")
	ErrMissingSourcePath = errors.New("source path is required")
)
