package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageSessionStart Stage = "SESSION_START"
	StageSessionStop  Stage = "SESSION_STOP"
	StageFetchStart   Stage = "FETCH_START"
	StageFetchDone    Stage = "FETCH_DONE"
	StageFetchError   Stage = "FETCH_ERROR"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single crawl milestone.
type Event struct {
	// SessionID identifies the crawl session in 16-byte UUID form.
	SessionID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Site scopes fetch events to a host label.
	Site string
	// URL is the page URL for fetch events.
	URL string
	// Bytes is the response size for FETCH_DONE.
	Bytes int64
	// Links counts the outbound links a page contributed.
	Links       int64
	StatusClass StatusClass
	// Dur is the fetch latency, or the session runtime on SESSION_STOP.
	Dur time.Duration
	// Note carries low-volume context: the error text on FETCH_ERROR, the stop
	// mode on SESSION_STOP.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.SessionID == [16]byte{} {
		return errors.New("session id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageSessionStart, StageSessionStop:
	case StageFetchStart, StageFetchError:
		if e.Site == "" {
			return fmt.Errorf("%s requires site", e.Stage)
		}
	case StageFetchDone:
		if e.Site == "" {
			return errors.New("fetch done requires site")
		}
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// SessionUUID converts the binary session ID back to uuid.UUID.
func (e Event) SessionUUID() uuid.UUID {
	return uuid.UUID(e.SessionID)
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
