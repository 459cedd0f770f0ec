package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
	"github.com/JakeFAU/sitecrawler/internal/metrics"
)

const (
	readTimeout  = 30 * time.Second
	maxBodyBytes = 1 << 20
)

// Crawler is the scheduler surface the API drives. *crawler.Scheduler
// satisfies it.
type Crawler interface {
	Start(ctx context.Context, seed string) error
	Stop(ctx context.Context) error
	Submit(ctx context.Context, rawURL, referrer string) error
	State() crawler.State
	SessionID() string
	VisitedURLs() []string
	Content(url string) (crawler.ContentEntry, bool)
	Failures() map[string]crawler.Failure
}

// Server wires HTTP handlers to the scheduler.
type Server struct {
	router  chi.Router
	crawler Crawler
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes. metricsHandler
// serves /metrics; httpMetrics may be nil to skip request instrumentation.
func NewServer(c Crawler, metricsHandler http.Handler, httpMetrics *metrics.HTTP, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		crawler: c,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	if httpMetrics != nil {
		r.Use(httpMetrics.Middleware)
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.sessionStatus)
			r.Post("/start", s.startSession)
			// Stop may legitimately take the whole grace period, so it is not
			// wrapped in the read timeout.
			r.Post("/stop", s.stopSession)
		})
		r.Post("/urls", s.submitURL)
		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(readTimeout))
			r.Get("/pages", s.listPages)
			r.Get("/pages/content", s.getContent)
			r.Get("/failures", s.listFailures)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	state := s.crawler.State()
	if state != crawler.StateRunning {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": state.String()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type sessionDTO struct {
	SessionID string `json:"session_id,omitempty"`
	State     string `json:"state"`
	Visited   int    `json:"visited"`
	Failures  int    `json:"failures"`
}

func (s *Server) sessionStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) snapshot() sessionDTO {
	return sessionDTO{
		SessionID: s.crawler.SessionID(),
		State:     s.crawler.State().String(),
		Visited:   len(s.crawler.VisitedURLs()),
		Failures:  len(s.crawler.Failures()),
	}
}

type startRequest struct {
	Seed string `json:"seed"`
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.crawler.Start(r.Context(), req.Seed); err != nil {
		writeCrawlerError(w, s.logger, err)
		return
	}
	s.logger.Info("session started via api", zap.String("seed", req.Seed))
	writeJSON(w, http.StatusAccepted, s.snapshot())
}

// stopSession stops the running session. A client that disconnects before
// the grace period elapses forces cancellation early.
func (s *Server) stopSession(w http.ResponseWriter, r *http.Request) {
	if err := s.crawler.Stop(r.Context()); err != nil {
		s.logger.Warn("stop ended early", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

type submitRequest struct {
	URL      string `json:"url"`
	Referrer string `json:"referrer,omitempty"`
}

func (s *Server) submitURL(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if s.crawler.State() != crawler.StateRunning {
		writeError(w, http.StatusConflict, "no running session")
		return
	}
	if err := s.crawler.Submit(r.Context(), req.URL, req.Referrer); err != nil {
		writeCrawlerError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"url": req.URL})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeCrawlerError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, crawler.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, crawler.ErrInvalidConfig):
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusRequestTimeout, "request canceled")
	default:
		logger.Error("crawler request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			reqID, _ := r.Context().Value(requestIDKey{}).(string)
			logger.Debug("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", reqID),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
