package dedupe

type options struct {
	expectedSize int
}

// Option applies a configuration option to the in-memory deduper.
type Option func(*options)

// WithExpectedSize pre-sizes the underlying set. Values <= 0 are ignored.
func WithExpectedSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.expectedSize = n
		}
	}
}
