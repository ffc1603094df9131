package export

import "errors"

// Sentinel errors for CSV input.
var (
	ErrBadHeader = errors.New("unexpected csv header")
	ErrMalformed = errors.New("malformed csv")
)
