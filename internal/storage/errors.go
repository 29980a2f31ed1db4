package storage

import "errors"

// Sentinel errors shared by the repositories. Services map these onto
// field-level validation or not-found responses.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)
