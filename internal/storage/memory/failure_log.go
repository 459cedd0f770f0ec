package memory

import (
	"maps"
	"sync"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

// FailureLog records the most recent failure per URL.
type FailureLog struct {
	mu       sync.RWMutex
	failures map[string]crawler.Failure
}

// NewFailureLog constructs an empty FailureLog.
func NewFailureLog() *FailureLog {
	return &FailureLog{failures: make(map[string]crawler.Failure)}
}

// Record stores f under f.URL.
func (l *FailureLog) Record(f crawler.Failure) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[f.URL] = f
}

// Snapshot returns a copy of the recorded failures.
func (l *FailureLog) Snapshot() map[string]crawler.Failure {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.failures)
}

// Reset clears the log.
func (l *FailureLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = make(map[string]crawler.Failure)
}
