package access

import "time"

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithClock overrides the time source. Used by tests to pin schedule checks.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}
