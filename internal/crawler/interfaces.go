package crawler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Fetcher fetches a URL and returns the body plus metadata. Timeouts,
// connection failures and non-2xx responses are reported as errors.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Parser turns a fetched body into a Document. baseURL is used to resolve
// relative links.
type Parser interface {
	Parse(body []byte, contentType string, baseURL string) (Document, error)
}

// Document is a parsed page.
type Document interface {
	// HTML returns the serialized form of the document.
	HTML() (string, error)
	// Text returns the document's plain text.
	Text() string
	// Links returns outbound links resolved to absolute URLs.
	Links() []string
}

// VisitedSet records URLs already claimed for fetching.
type VisitedSet interface {
	// TryClaim atomically inserts url and reports whether the caller now owns
	// its fetch. It returns false without side effects when url is present.
	TryClaim(url string) bool
	Contains(url string) bool
	Snapshot() []string
	Len() int
	Reset()
}

// ContentStore holds fetched content keyed by URL.
type ContentStore interface {
	Put(entry ContentEntry)
	Get(url string) (ContentEntry, bool)
	Reset()
}

// FailureRecorder keeps the last failure reason per URL.
type FailureRecorder interface {
	Record(failure Failure)
	Snapshot() map[string]Failure
	Reset()
}

// Hasher computes digests for content integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces crawl session IDs.
type IDGenerator interface {
	NewSessionID() (uuid.UUID, error)
}
