package memory

import (
	"sync"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

// ContentStore keeps the raw and text renderings of each fetched page keyed by
// URL. An entry is written once, after both renderings are known, so readers
// never observe a page with only one of them.
type ContentStore struct {
	mu      sync.RWMutex
	entries map[string]crawler.ContentEntry
}

// NewContentStore creates a new in-memory content store.
func NewContentStore() *ContentStore {
	return &ContentStore{entries: make(map[string]crawler.ContentEntry)}
}

// Put stores entry under entry.URL, replacing any previous value.
func (s *ContentStore) Put(entry crawler.ContentEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.URL] = entry
}

// Get returns the entry for url.
func (s *ContentStore) Get(url string) (crawler.ContentEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[url]
	return entry, ok
}

// Raw returns the serialized document stored for url.
func (s *ContentStore) Raw(url string) (string, bool) {
	entry, ok := s.Get(url)
	return entry.Raw, ok
}

// Text returns the plain text stored for url.
func (s *ContentStore) Text(url string) (string, bool) {
	entry, ok := s.Get(url)
	return entry.Text, ok
}

// Len reports how many pages are stored.
func (s *ContentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Reset drops every stored entry.
func (s *ContentStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]crawler.ContentEntry)
}
