// Package retry provides the bounded exponential backoff policy used by
// the convergence supervisor.
package retry

import "time"

// Config holds backoff configuration.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultConfig returns the backoff defaults for convergence runs.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  10,
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
	}
}

// Option is a functional option for backoff configuration.
type Option func(*Config)

// WithMaxAttempts sets the per-entity attempt budget.
func WithMaxAttempts(n int) Option {
	return func(c *Config) { c.MaxAttempts = n }
}

// WithInitialDelay sets the first delay between passes.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) { c.InitialDelay = d }
}

// WithMaxDelay sets the delay ceiling.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) { c.MaxDelay = d }
}

// WithMultiplier sets the backoff multiplier.
func WithMultiplier(m float64) Option {
	return func(c *Config) { c.Multiplier = m }
}

// Apply returns a copy of the config with the options applied.
func (c Config) Apply(opts ...Option) Config {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Backoff yields an exponentially increasing delay sequence bounded by
// the configured ceiling. It is not safe for concurrent use; the
// supervisor owns exactly one per run.
type Backoff struct {
	cfg  Config
	next time.Duration
}

// NewBackoff creates a backoff sequence starting at the initial delay.
func NewBackoff(cfg Config) *Backoff {
	return &Backoff{cfg: cfg, next: cfg.InitialDelay}
}

// Next returns the current delay and advances the sequence.
func (b *Backoff) Next() time.Duration {
	delay := b.next
	b.next = time.Duration(float64(b.next) * b.cfg.Multiplier)
	if b.next > b.cfg.MaxDelay {
		b.next = b.cfg.MaxDelay
	}
	return delay
}

// Reset restarts the sequence at the initial delay. The supervisor resets
// after a pass that made progress, so a single slow entity does not push
// later entities to the ceiling.
func (b *Backoff) Reset() {
	b.next = b.cfg.InitialDelay
}
