package storage

import "errors"

// ErrNotFound is returned when no identity or key pair has been saved yet.
var ErrNotFound = errors.New("storage: not found")
