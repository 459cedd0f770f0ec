package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

func TestFetcherFetchSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			http.Error(w, "unexpected agent", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	t.Cleanup(server.Close)

	f := New(Config{UserAgent: "test-agent", Timeout: 5 * time.Second})
	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: server.URL + "/page"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, server.URL+"/page", resp.URL)
	require.Equal(t, "text/html; charset=utf-8", resp.ContentType)
	require.Equal(t, "<html><body>hello</body></html>", string(resp.Body))
	require.Positive(t, resp.Duration)
}

func TestFetcherFetchFollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("moved"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	resp, err := New(Config{}).Fetch(context.Background(), crawler.FetchRequest{URL: server.URL + "/old"})
	require.NoError(t, err)
	require.Equal(t, server.URL+"/new", resp.URL)
	require.Equal(t, "moved", string(resp.Body))
}

func TestFetcherFetchNon2xxIsNetworkError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	_, err := New(Config{}).Fetch(context.Background(), crawler.FetchRequest{URL: server.URL})
	require.Error(t, err)
	require.ErrorIs(t, err, crawler.ErrNetwork)

	var fetchErr *crawler.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	require.Equal(t, server.URL, fetchErr.URL)
}

func TestFetcherFetchConnectionRefused(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	target := server.URL
	server.Close()

	_, err := New(Config{Timeout: time.Second}).Fetch(context.Background(), crawler.FetchRequest{URL: target})
	require.ErrorIs(t, err, crawler.ErrNetwork)
}

func TestFetcherFetchContextCanceled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := New(Config{Timeout: 10 * time.Second}).Fetch(ctx, crawler.FetchRequest{URL: server.URL})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorIs(t, err, crawler.ErrNetwork)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestFetcherMaxBodyBytes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 100)))
	}))
	t.Cleanup(server.Close)

	resp, err := New(Config{MaxBodyBytes: 10}).Fetch(context.Background(), crawler.FetchRequest{URL: server.URL})
	require.NoError(t, err)
	require.Len(t, resp.Body, 10)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	req := crawler.FetchRequest{
		URL:     "https://example.com",
		Headers: http.Header{"X-Trace": {"yes"}},
	}
	start := time.Unix(0, 0)
	state := &fetchState{}

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, start, state)
	if hooks.onRequest == nil || hooks.onResponse == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	if collyReq.Headers.Get("X-Trace") != "yes" {
		t.Fatalf("expected header propagation, got %+v", collyReq.Headers)
	}

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{"Content-Type": {"text/html"}},
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com/final"),
		},
	})
	if state.result.StatusCode != http.StatusCreated || string(state.result.Body) != "body" {
		t.Fatalf("unexpected result: %+v", state.result)
	}
	if state.result.ContentType != "text/html" || state.result.URL != "https://example.com/final" {
		t.Fatalf("expected content type and final url, got %+v", state.result)
	}

	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("boom"))
	if state.err == nil || state.err.Error() != "boom" {
		t.Fatalf("expected fetch error set, got %v", state.err)
	}
	if state.statusCode != http.StatusBadGateway {
		t.Fatalf("expected status captured from error, got %d", state.statusCode)
	}
}

func TestCopyHeadersHandlesNil(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	collyReq := &colly.Request{Headers: &http.Header{}}
	f.copyHeaders(crawler.FetchRequest{}, collyReq)
	if len(*collyReq.Headers) != 0 {
		t.Fatalf("expected no headers to be copied, got %+v", *collyReq.Headers)
	}
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
