package model

import "errors"

// Sentinel kinds for input that cannot become a Score.
var (
	ErrInvalidNumber = errors.New("invalid number")
	ErrOutOfRange    = errors.New("out of range")
	ErrEmptySubject  = errors.New("empty subject")
	ErrInvalidText   = errors.New("not valid UTF-8")
)
