package api

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

type pagesDTO struct {
	Total  int      `json:"total"`
	Offset int      `json:"offset"`
	URLs   []string `json:"urls"`
}

// listPages handles GET /v1/pages?limit=&offset=. URLs are returned in
// lexical order so pagination is stable while a session runs.
func (s *Server) listPages(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultPageLimit, maxPageLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	urls := s.crawler.VisitedURLs()
	writeJSON(w, http.StatusOK, pagesDTO{
		Total:  len(urls),
		Offset: offset,
		URLs:   window(urls, limit, offset),
	})
}

type contentDTO struct {
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Digest      string    `json:"digest"`
	FetchedAt   time.Time `json:"fetched_at"`
	Raw         string    `json:"raw,omitempty"`
	Text        string    `json:"text,omitempty"`
}

// getContent handles GET /v1/pages/content?url=&format=raw|text|json. The
// default json format returns metadata plus both renderings.
func (s *Server) getContent(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}
	entry, ok := s.crawler.Content(target)
	if !ok {
		writeError(w, http.StatusNotFound, "content not found")
		return
	}
	switch r.URL.Query().Get("format") {
	case "raw":
		writeText(w, "text/html; charset=utf-8", entry.Raw)
	case "text":
		writeText(w, "text/plain; charset=utf-8", entry.Text)
	case "", "json":
		writeJSON(w, http.StatusOK, contentDTO{
			URL:         entry.URL,
			ContentType: entry.ContentType,
			Digest:      entry.Digest,
			FetchedAt:   entry.FetchedAt,
			Raw:         entry.Raw,
			Text:        entry.Text,
		})
	default:
		writeError(w, http.StatusBadRequest, "invalid format")
	}
}

type failureDTO struct {
	URL        string    `json:"url"`
	Kind       string    `json:"kind"`
	Reason     string    `json:"reason"`
	StatusCode int       `json:"status_code,omitempty"`
	At         time.Time `json:"at"`
}

// listFailures handles GET /v1/failures?limit=&offset=.
func (s *Server) listFailures(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultPageLimit, maxPageLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	failures := s.crawler.Failures()
	urls := make([]string, 0, len(failures))
	for url := range failures {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	page := window(urls, limit, offset)
	out := make([]failureDTO, 0, len(page))
	for _, url := range page {
		f := failures[url]
		out = append(out, failureDTO{
			URL:        f.URL,
			Kind:       string(f.Kind),
			Reason:     f.Reason,
			StatusCode: f.StatusCode,
			At:         f.At,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":    len(failures),
		"offset":   offset,
		"failures": out,
	})
}

func window(items []string, limit, offset int) []string {
	if offset >= len(items) {
		return []string{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func writeText(w http.ResponseWriter, contentType, body string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
