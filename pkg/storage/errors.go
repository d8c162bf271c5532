package storage

import "errors"

// These errors are allocated at init time; commands translate them into
// domain errors, so they stay plain.
var (
	ErrNotFound  = errors.New("not found")
	ErrCollision = errors.New("item already exists")
	ErrCancelled = errors.New("request has been cancelled")
)
