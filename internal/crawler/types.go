package crawler

import (
	"net/http"
	"time"
)

// State represents the lifecycle state of a Scheduler.
type State int32

// Scheduler states. Stopped is both the initial and the terminal state; a
// stopped scheduler can be started again.
const (
	StateStopped State = iota
	StateRunning
	StateStopping
)

// String returns the lowercase state name used in logs.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Task is a frontier entry: a claimed URL waiting for a worker.
type Task struct {
	URL       string
	Referrer  string
	Submitted time.Time
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	// URL is the final URL after redirects.
	URL         string
	StatusCode  int
	ContentType string
	Headers     http.Header
	Body        []byte
	Duration    time.Duration
}

// ContentEntry is the stored result of one successful fetch.
type ContentEntry struct {
	URL         string    `json:"url"`
	Raw         string    `json:"raw"`
	Text        string    `json:"text"`
	ContentType string    `json:"content_type"`
	Digest      string    `json:"digest"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// FailureKind classifies a per-URL failure.
type FailureKind string

// Failure kinds recorded by fetch workers.
const (
	FailureNetwork FailureKind = "network"
	FailureParse   FailureKind = "parse"
)

// Failure is the diagnostic record kept for a URL whose fetch did not succeed.
type Failure struct {
	URL        string      `json:"url"`
	Kind       FailureKind `json:"kind"`
	Reason     string      `json:"reason"`
	StatusCode int         `json:"status_code,omitempty"`
	At         time.Time   `json:"at"`
}
