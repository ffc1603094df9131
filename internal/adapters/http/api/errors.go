package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// badRequest tags err as a malformed request from operation op.
func badRequest(op string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, ErrBadRequest)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err)
}
