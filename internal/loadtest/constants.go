package loadtest

import "time"

// HTTP status code constants.
const (
	StatusOK      = 200
	StatusCreated = 201
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
	progressInterval        = time.Second
)

// PercentageMultiplier turns a ratio into a percentage.
const PercentageMultiplier = 100
