// Package app initializes and holds long-lived application services, acting
// as the dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/api"
	"github.com/JakeFAU/sitecrawler/internal/config"
	"github.com/JakeFAU/sitecrawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/sitecrawler/internal/fetcher/colly"
	"github.com/JakeFAU/sitecrawler/internal/metrics"
	goqueryparser "github.com/JakeFAU/sitecrawler/internal/parser/goquery"
	"github.com/JakeFAU/sitecrawler/internal/progress"
	"github.com/JakeFAU/sitecrawler/internal/progress/sinks"
	"github.com/JakeFAU/sitecrawler/internal/storage/memory"
)

const shutdownTimeout = 10 * time.Second

// ErrServerDisabled is returned by Serve when no listen address is configured.
var ErrServerDisabled = errors.New("ops server disabled: metrics.addr is empty")

// App holds the shared, long-lived services for one process: the scheduler,
// its stores, the progress hub and the ops HTTP server.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	hub       *progress.Hub
	scheduler *crawler.Scheduler
	server    *api.Server
}

type options struct {
	fetcher crawler.Fetcher
}

// Option customizes App construction.
type Option func(*options)

// WithFetcher replaces the Colly fetcher, e.g. with a test double.
func WithFetcher(f crawler.Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// New wires every service from cfg. It fails fast if a collaborator can't be
// built.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	registry := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTP(registry)
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return nil, fmt.Errorf("init prometheus sink: %w", err)
	}

	hubCfg := cfg.HubSettings()
	hubCfg.Logger = logger.Named("progress")
	hub := progress.NewHub(hubCfg, sinks.NewLogSink(logger.Named("events")), promSink)

	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent:    cfg.HTTP.UserAgent,
			Timeout:      cfg.HTTP.FetchTimeout,
			MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		})
	}

	scheduler := crawler.New(cfg.CrawlerSettings(), crawler.Deps{
		Fetcher:  fetcher,
		Parser:   goqueryparser.New(),
		Visited:  memory.NewVisitedSet(),
		Content:  memory.NewContentStore(),
		Failures: memory.NewFailureLog(),
		Progress: hub,
		Logger:   logger.Named("crawler"),
	})

	logger.Info("application services initialized",
		zap.Int("pool_size", cfg.Crawler.PoolSize),
		zap.Int("queue_depth", cfg.Crawler.QueueDepth),
		zap.String("metrics_addr", cfg.Metrics.Addr),
	)

	return &App{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		hub:       hub,
		scheduler: scheduler,
		server:    api.NewServer(scheduler, metrics.Handler(registry), httpMetrics, logger.Named("api")),
	}, nil
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// Scheduler returns the crawl scheduler.
func (a *App) Scheduler() *crawler.Scheduler {
	return a.scheduler
}

// Registry exposes the Prometheus registry backing /metrics.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Handler returns the ops HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Serve listens on the configured metrics address and serves the ops API
// until ctx is canceled.
func (a *App) Serve(ctx context.Context) error {
	if a.cfg.Metrics.Addr == "" {
		return ErrServerDisabled
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", a.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Metrics.Addr, err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener serves the ops API on ln until ctx is canceled, then shuts
// the server down gracefully.
func (a *App) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("ops server started", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ops server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ops server shutdown: %w", err)
	}
	<-errCh
	a.logger.Info("ops server stopped")
	return nil
}

// Close stops the scheduler and flushes the progress hub. ctx bounds the
// whole shutdown; if it ends first the scheduler is stopped forcibly.
func (a *App) Close(ctx context.Context) error {
	a.logger.Info("shutting down application services")
	var errs []error
	if err := a.scheduler.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	}
	if err := a.hub.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
