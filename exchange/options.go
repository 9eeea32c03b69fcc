package exchange

import (
	"github.com/rs/zerolog"

	"github.com/notargets/goptdesign/criteria"
	"github.com/notargets/goptdesign/types"
)

// SweepStats describes one completed sweep over the design rows.
type SweepStats struct {
	Criterion types.Criterion
	Sweep     int
	Value     float64
	Exchanges int
	// Weight is the D-efficiency weight of the alias continuation level, zero outside it.
	Weight float64
}

type Option func(*config)

type config struct {
	logger    zerolog.Logger
	observer  func(SweepStats)
	maxSweeps int
	limit     float64
}

func newConfig(opts []Option) *config {
	c := &config{
		logger: zerolog.Nop(),
		limit:  criteria.ConditionLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithSweepObserver calls f after every completed sweep, including the sweeps of a seed pass.
func WithSweepObserver(f func(SweepStats)) Option {
	return func(c *config) { c.observer = f }
}

// WithMaxSweeps caps the number of sweeps of each exchange loop. Zero means no cap.
func WithMaxSweeps(n int) Option {
	return func(c *config) { c.maxSweeps = n }
}

// WithSingularityThreshold sets the condition number above which an information matrix is
// singular. The default is criteria.ConditionLimit.
func WithSingularityThreshold(limit float64) Option {
	return func(c *config) { c.limit = limit }
}
