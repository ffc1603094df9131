package repository

import "errors"

// Sentinel kinds for persistence errors.
var (
	ErrIO          = errors.New("persistence write failed")
	ErrCorruptData = errors.New("persisted data is corrupt")
)
