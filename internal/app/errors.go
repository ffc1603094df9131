package service

import "errors"

// ErrNotOpen is returned by mutations attempted before Open succeeded.
var ErrNotOpen = errors.New("service not open")
