package crawler

import (
	"fmt"
	"time"
)

// Defaults applied by DefaultConfig. The pool size matches the ten threads the
// crawler has always used.
const (
	DefaultPoolSize     = 10
	DefaultQueueDepth   = 64
	DefaultFetchTimeout = 30 * time.Second
	DefaultGracePeriod  = 60 * time.Second
	DefaultCancelWait   = 5 * time.Second
)

// Config captures every knob that influences a crawl session.
type Config struct {
	// PoolSize is the number of concurrent fetch workers.
	PoolSize int
	// QueueDepth bounds the frontier; submitters block or run inline when full.
	QueueDepth int
	// FetchTimeout bounds a single fetch.
	FetchTimeout time.Duration
	// GracePeriod is how long Stop waits for queued and in-flight work.
	GracePeriod time.Duration
	// CancelWait is how long Stop waits for workers after forced cancellation.
	CancelWait time.Duration
	// ResetOnStart clears visited URLs, content and failures whenever a stopped
	// scheduler is started again. By default results accumulate across sessions.
	ResetOnStart bool
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() Config {
	return Config{
		PoolSize:     DefaultPoolSize,
		QueueDepth:   DefaultQueueDepth,
		FetchTimeout: DefaultFetchTimeout,
		GracePeriod:  DefaultGracePeriod,
		CancelWait:   DefaultCancelWait,
	}
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.PoolSize <= 0 {
		return fmt.Errorf("%w: pool_size must be > 0", ErrInvalidConfig)
	}
	if c.QueueDepth <= 0 {
		return fmt.Errorf("%w: queue_depth must be > 0", ErrInvalidConfig)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("%w: fetch_timeout must be > 0", ErrInvalidConfig)
	}
	if c.GracePeriod <= 0 {
		return fmt.Errorf("%w: grace_period must be > 0", ErrInvalidConfig)
	}
	if c.CancelWait < 0 {
		return fmt.Errorf("%w: cancel_wait must be >= 0", ErrInvalidConfig)
	}
	return nil
}
