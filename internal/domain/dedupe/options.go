package dedupe

const defaultMaxSize = 10_000

// Option applies a configuration option to the deduper.
type Option func(*keyCache)

// WithMaxSize sets how many keys are remembered before the oldest is
// evicted. Non-positive values keep the default.
func WithMaxSize(maxSize int) Option {
	return func(d *keyCache) {
		if maxSize > 0 {
			d.maxSize = maxSize
		}
	}
}
