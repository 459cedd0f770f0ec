package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/sitecrawler/internal/metrics"
	"github.com/JakeFAU/sitecrawler/internal/progress"
)

// PrometheusSink exports crawl progress as Prometheus collectors: session
// counts and runtimes, per-site fetch outcomes, bytes, latency, and the number
// of fetches in flight.
type PrometheusSink struct {
	sessionsStarted prometheus.Counter
	sessionsStopped *prometheus.CounterVec
	sessionsRunning prometheus.Gauge
	sessionRuntime  prometheus.Histogram

	fetchRequests *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	fetchBytes    *prometheus.CounterVec
	fetchLinks    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	fetchInFlight prometheus.Gauge
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_sessions_started_total",
			Help: "Total crawl sessions started.",
		}),
		sessionsStopped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_sessions_stopped_total",
			Help: "Total crawl sessions stopped, partitioned by stop mode.",
		}, []string{"mode"}),
		sessionsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_sessions_running",
			Help: "Current number of running crawl sessions.",
		}),
		sessionRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawler_session_runtime_seconds",
			Help:    "Wall time per stopped crawl session.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		fetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_fetch_requests_total",
			Help: "Successful fetches partitioned by site and status class.",
		}, []string{"site", "status_class"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_fetch_errors_total",
			Help: "Failed fetches partitioned by site.",
		}, []string{"site"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_fetch_bytes_total",
			Help: "Bytes downloaded per site.",
		}, []string{"site"}),
		fetchLinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_links_discovered_total",
			Help: "Outbound links extracted per site.",
		}, []string{"site"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawler_fetch_duration_seconds",
			Help:    "Fetch duration partitioned by site.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"site"}),
		fetchInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_fetches_in_flight",
			Help: "Fetches started but not yet finished.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.sessionsStarted,
		s.sessionsStopped,
		s.sessionsRunning,
		s.sessionRuntime,
		s.fetchRequests,
		s.fetchErrors,
		s.fetchBytes,
		s.fetchLinks,
		s.fetchDuration,
		s.fetchInFlight,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Collectors are safe for
// concurrent use, so Consume is too.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	site := metrics.SanitizeSite(evt.Site)
	switch evt.Stage {
	case progress.StageSessionStart:
		s.sessionsStarted.Inc()
		s.sessionsRunning.Inc()
	case progress.StageSessionStop:
		mode := evt.Note
		if mode == "" {
			mode = "graceful"
		}
		s.sessionsStopped.WithLabelValues(mode).Inc()
		s.sessionsRunning.Dec()
		if evt.Dur > 0 {
			s.sessionRuntime.Observe(evt.Dur.Seconds())
		}
	case progress.StageFetchStart:
		s.fetchInFlight.Inc()
	case progress.StageFetchDone:
		s.fetchInFlight.Dec()
		statusClass := string(evt.StatusClass)
		if statusClass == "" {
			statusClass = string(progress.StatusOther)
		}
		s.fetchRequests.WithLabelValues(site, statusClass).Inc()
		if evt.Bytes > 0 {
			s.fetchBytes.WithLabelValues(site).Add(float64(evt.Bytes))
		}
		if evt.Links > 0 {
			s.fetchLinks.WithLabelValues(site).Add(float64(evt.Links))
		}
		if evt.Dur > 0 {
			s.fetchDuration.WithLabelValues(site).Observe(evt.Dur.Seconds())
		}
	case progress.StageFetchError:
		s.fetchInFlight.Dec()
		s.fetchErrors.WithLabelValues(site).Inc()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
