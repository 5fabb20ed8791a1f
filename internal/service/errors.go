package service

import "errors"

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when there's a conflict (e.g., duplicate)
	ErrConflict = errors.New("resource conflict")

	// ErrClientRequired is returned when a destructive operation is attempted
	// without a client id to scope it
	ErrClientRequired = errors.New("client id is required for this operation")

	// ErrCannotDeleteBucket is returned when deleting the unmapped bucket is
	// attempted while transactions still reference it
	ErrCannotDeleteBucket = errors.New("unmapped bucket still has transactions assigned")
)
