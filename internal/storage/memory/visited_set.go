package memory

import (
	"sort"
	"sync"
)

// VisitedSet records every URL the scheduler has claimed. Membership is
// insert-only until Reset.
type VisitedSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

// NewVisitedSet constructs an empty VisitedSet.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{urls: make(map[string]struct{})}
}

// TryClaim inserts url and reports whether this call inserted it. Exactly one
// of any number of concurrent callers for the same url observes true.
func (s *VisitedSet) TryClaim(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.urls[url]; seen {
		return false
	}
	s.urls[url] = struct{}{}
	return true
}

// Contains reports whether url has been claimed.
func (s *VisitedSet) Contains(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.urls[url]
	return ok
}

// Snapshot returns the claimed URLs in lexical order.
func (s *VisitedSet) Snapshot() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.urls))
	for url := range s.urls {
		out = append(out, url)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

// Len reports how many URLs have been claimed.
func (s *VisitedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}

// Reset forgets every claimed URL.
func (s *VisitedSet) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = make(map[string]struct{})
}
