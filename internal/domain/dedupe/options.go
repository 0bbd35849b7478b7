package dedupe

// Option applies a configuration option to the deduper.
type Option func(*window)

// WithMaxSize caps the number of remembered ids. Zero or less disables the
// cap.
func WithMaxSize(n int) Option {
	return func(d *window) {
		d.maxSize = n
	}
}
