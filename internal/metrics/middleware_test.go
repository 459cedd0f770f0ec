package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware(t *testing.T) {
	t.Parallel()

	m := NewHTTP(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/test", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/notfound", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/test", "/notfound"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if val := testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "200")); val != 1 {
		t.Errorf("Expected requests total for GET /test to be 1, got %f", val)
	}
	if val := testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "404")); val != 1 {
		t.Errorf("Expected requests total for GET /notfound to be 1, got %f", val)
	}
	if val := testutil.CollectAndCount(m.requestDuration); val != 2 {
		t.Errorf("Expected one duration series per route, got %d", val)
	}
}

func TestMiddlewareWithoutRouteContext(t *testing.T) {
	t.Parallel()

	m := NewHTTP(prometheus.NewRegistry())
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", nil))

	if val := testutil.ToFloat64(m.requestsTotal.WithLabelValues("POST", "418")); val != 1 {
		t.Errorf("Expected POST 418 to be counted once, got %f", val)
	}
	if val := testutil.CollectAndCount(m.requestDuration); val != 1 {
		t.Errorf("Expected a single duration series labeled unknown, got %d", val)
	}
}
