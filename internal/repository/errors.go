package repository

import "errors"

// ErrNotFound is returned when a lookup matches no stored record. Callers
// branch on it to tell absence apart from infrastructure failure.
var ErrNotFound = errors.New("repository: record not found")
