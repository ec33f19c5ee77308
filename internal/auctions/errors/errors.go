package errors

import "errors"

var (
	ErrNotFound = errors.New("auction not found")

	ErrInvalidID = errors.New("invalid auction ID format")

	ErrVersionConflict = errors.New("auction was modified concurrently")

	ErrLocked = errors.New("auction is locked by another writer")

	ErrAlreadyExists = errors.New("auction already exists")
)
