package crawler

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/sitecrawler/internal/clock/system"
	"github.com/JakeFAU/sitecrawler/internal/hash/sha256"
	idgen "github.com/JakeFAU/sitecrawler/internal/id/uuid"
	"github.com/JakeFAU/sitecrawler/internal/progress"
	"github.com/JakeFAU/sitecrawler/internal/queue/memory"
)

// Deps wires the scheduler's collaborators. Fetcher, Parser, Visited, Content
// and Failures are required; the rest fall back to production defaults.
type Deps struct {
	Fetcher  Fetcher
	Parser   Parser
	Visited  VisitedSet
	Content  ContentStore
	Failures FailureRecorder
	Hasher   Hasher
	Clock    Clock
	IDs      IDGenerator
	Progress progress.Emitter
	Logger   *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Hasher == nil {
		d.Hasher = sha256.New()
	}
	if d.Clock == nil {
		d.Clock = system.New()
	}
	if d.IDs == nil {
		d.IDs = idgen.New()
	}
	if d.Progress == nil {
		d.Progress = progress.Discard
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

func (d Deps) validate() error {
	switch {
	case d.Fetcher == nil:
		return fmt.Errorf("%w: fetcher is required", ErrInvalidConfig)
	case d.Parser == nil:
		return fmt.Errorf("%w: parser is required", ErrInvalidConfig)
	case d.Visited == nil:
		return fmt.Errorf("%w: visited set is required", ErrInvalidConfig)
	case d.Content == nil:
		return fmt.Errorf("%w: content store is required", ErrInvalidConfig)
	case d.Failures == nil:
		return fmt.Errorf("%w: failure recorder is required", ErrInvalidConfig)
	}
	return nil
}

// run holds the resources of one Start..Stop cycle.
type run struct {
	id      uuid.UUID
	started time.Time
	queue   *memory.Queue[Task]

	// ctx is canceled when Stop gives up waiting; in-flight fetches abort.
	ctx    context.Context
	cancel context.CancelFunc
	// accepting is canceled as soon as Stop begins; blocked submitters return.
	accepting     context.Context
	stopAccepting context.CancelFunc

	group *errgroup.Group
	done  chan struct{}
}

// Scheduler runs a crawl: a fixed pool of workers pulls claimed URLs from a
// bounded queue, fetches and parses them, stores their content and feeds the
// discovered links back through Submit. It is safe for concurrent use.
type Scheduler struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger

	state atomic.Int32

	// lifeMu serializes Start and Stop. Stop holds it until the session is
	// fully stopped, so a Start issued while stopping waits.
	lifeMu sync.Mutex

	// submitMu is read-held by submitters across the state check, claim and
	// dispatch. Stop write-locks it before sealing the queue, so no send can
	// race with the close.
	submitMu sync.RWMutex
	run      *run

	pendingMu sync.Mutex
	pending   int
	drained   chan struct{}
}

// New constructs a Scheduler in the Stopped state. Configuration and required
// dependencies are checked by Start.
func New(cfg Config, deps Deps) *Scheduler {
	deps = deps.withDefaults()
	drained := make(chan struct{})
	close(drained)
	return &Scheduler{
		cfg:     cfg,
		deps:    deps,
		logger:  deps.Logger.Named("scheduler"),
		drained: drained,
	}
}

// Start begins a session if the scheduler is stopped and submits seed. It is a
// no-op (apart from submitting seed) while running. Crawling proceeds in the
// background; use Wait or Stop to observe completion.
func (s *Scheduler) Start(ctx context.Context, seed string) error {
	if err := ValidateURL(seed); err != nil {
		return fmt.Errorf("start crawl: %w", err)
	}

	s.lifeMu.Lock()
	if s.State() == StateStopped {
		if err := s.startRun(); err != nil {
			s.lifeMu.Unlock()
			return err
		}
	}
	s.lifeMu.Unlock()

	return s.Submit(ctx, seed, "")
}

func (s *Scheduler) startRun() error {
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("start crawl: %w", err)
	}
	if err := s.deps.validate(); err != nil {
		return fmt.Errorf("start crawl: %w", err)
	}
	id, err := s.deps.IDs.NewSessionID()
	if err != nil {
		return fmt.Errorf("start crawl: %w", err)
	}
	if s.cfg.ResetOnStart {
		s.deps.Visited.Reset()
		s.deps.Content.Reset()
		s.deps.Failures.Reset()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	accepting, stopAccepting := context.WithCancel(context.Background())
	r := &run{
		id:            id,
		started:       s.deps.Clock.Now(),
		queue:         memory.NewQueue[Task](s.cfg.QueueDepth),
		ctx:           runCtx,
		cancel:        cancel,
		accepting:     accepting,
		stopAccepting: stopAccepting,
		group:         &errgroup.Group{},
		done:          make(chan struct{}),
	}
	for range s.cfg.PoolSize {
		r.group.Go(func() error {
			s.work(r)
			return nil
		})
	}
	go func() {
		_ = r.group.Wait()
		close(r.done)
	}()

	s.submitMu.Lock()
	s.run = r
	s.state.Store(int32(StateRunning))
	s.submitMu.Unlock()

	s.logger.Info("crawl session started",
		zap.Stringer("session_id", id),
		zap.Int("pool_size", s.cfg.PoolSize),
		zap.Int("queue_depth", s.cfg.QueueDepth),
		zap.Bool("reset_on_start", s.cfg.ResetOnStart),
	)
	s.emit(r, progress.Event{Stage: progress.StageSessionStart})
	return nil
}

// Submit offers rawURL to the frontier. Non-HTTP(S) URLs are rejected with
// ErrInvalidInput. While the scheduler is not running, or when rawURL was
// already claimed, Submit does nothing. A full queue blocks the caller until
// space frees, the scheduler starts stopping, or ctx ends; only the last case
// is reported as an error.
func (s *Scheduler) Submit(ctx context.Context, rawURL, referrer string) error {
	if err := ValidateURL(rawURL); err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	s.submitMu.RLock()
	defer s.submitMu.RUnlock()

	r := s.run
	if s.State() != StateRunning || r == nil {
		return nil
	}
	if !s.deps.Visited.TryClaim(rawURL) {
		return nil
	}
	s.track(1)

	task := Task{URL: rawURL, Referrer: referrer, Submitted: s.deps.Clock.Now()}
	if r.queue.TryEnqueue(task) {
		return nil
	}

	enqueueCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(r.accepting, cancel)
	defer stop()

	if err := r.queue.Enqueue(enqueueCtx, task); err != nil {
		s.track(-1)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("submit %s: %w", rawURL, ctxErr)
		}
		s.logger.Debug("submission dropped while stopping", zap.String("url", rawURL))
	}
	return nil
}

// submitDiscovered is Submit for links found by a worker. It never blocks: on
// a full queue the calling worker processes the task itself.
func (s *Scheduler) submitDiscovered(r *run, rawURL, referrer string) {
	s.submitMu.RLock()
	if s.run != r || s.State() != StateRunning || r.ctx.Err() != nil {
		s.submitMu.RUnlock()
		return
	}
	if !s.deps.Visited.TryClaim(rawURL) {
		s.submitMu.RUnlock()
		return
	}
	s.track(1)
	task := Task{URL: rawURL, Referrer: referrer, Submitted: s.deps.Clock.Now()}
	queued := r.queue.TryEnqueue(task)
	s.submitMu.RUnlock()

	if !queued {
		s.process(r, task)
	}
}

// Stop ends the running session. It stops accepting submissions, lets the
// workers finish queued and in-flight tasks for up to the grace period, then
// cancels whatever is left. Stop on a stopped scheduler returns nil. If ctx
// ends before the grace period, cancellation is forced early and ctx's error
// is returned once the session has stopped.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.State() != StateRunning {
		return nil
	}
	r := s.run
	s.state.Store(int32(StateStopping))
	s.logger.Info("stopping crawl session",
		zap.Stringer("session_id", r.id),
		zap.Duration("grace_period", s.cfg.GracePeriod),
	)

	r.stopAccepting()
	s.submitMu.Lock()
	r.queue.Close()
	s.submitMu.Unlock()

	grace := time.NewTimer(s.cfg.GracePeriod)
	defer grace.Stop()

	var (
		forced  bool
		stopErr error
	)
	select {
	case <-r.done:
	case <-grace.C:
		forced = true
	case <-ctx.Done():
		forced = true
		stopErr = fmt.Errorf("stop crawl: %w", ctx.Err())
	}

	if forced {
		r.cancel()
		s.awaitWorkers(r)
		discarded := s.discardQueued(r)
		s.logger.Warn("crawl session stopped before work drained",
			zap.Stringer("session_id", r.id),
			zap.Int("discarded", discarded),
		)
	}
	r.cancel()
	s.state.Store(int32(StateStopped))

	mode := "graceful"
	if forced {
		mode = "forced"
	}
	runtime := s.deps.Clock.Now().Sub(r.started)
	s.logger.Info("crawl session stopped",
		zap.Stringer("session_id", r.id),
		zap.String("mode", mode),
		zap.Duration("runtime", runtime),
		zap.Int("visited", s.deps.Visited.Len()),
	)
	s.emit(r, progress.Event{Stage: progress.StageSessionStop, Dur: max(runtime, 0), Note: mode})
	return stopErr
}

func (s *Scheduler) awaitWorkers(r *run) {
	if s.cfg.CancelWait <= 0 {
		return
	}
	timer := time.NewTimer(s.cfg.CancelWait)
	defer timer.Stop()
	select {
	case <-r.done:
	case <-timer.C:
		s.logger.Warn("workers did not exit after cancellation",
			zap.Stringer("session_id", r.id),
			zap.Duration("cancel_wait", s.cfg.CancelWait),
		)
	}
}

func (s *Scheduler) discardQueued(r *run) int {
	discarded := 0
	for {
		if _, ok := r.queue.TryDequeue(); !ok {
			return discarded
		}
		s.track(-1)
		discarded++
	}
}

// Wait blocks until no claimed task is queued or in flight, or ctx ends.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.pendingMu.Lock()
	drained := s.drained
	s.pendingMu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for crawl: %w", ctx.Err())
	}
}

// track adjusts the pending-work count and signals Wait when it reaches zero.
func (s *Scheduler) track(delta int) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	before := s.pending
	s.pending += delta
	switch {
	case before == 0 && s.pending > 0:
		s.drained = make(chan struct{})
	case before > 0 && s.pending == 0:
		close(s.drained)
	case s.pending < 0:
		panic("crawler: pending work count went negative")
	}
}

// State reports the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// SessionID returns the ID of the current or most recent session, or "" if
// the scheduler has never started.
func (s *Scheduler) SessionID() string {
	s.submitMu.RLock()
	defer s.submitMu.RUnlock()
	if s.run == nil {
		return ""
	}
	return s.run.id.String()
}

// VisitedURLs returns every claimed URL in lexical order.
func (s *Scheduler) VisitedURLs() []string {
	if s.deps.Visited == nil {
		return nil
	}
	urls := s.deps.Visited.Snapshot()
	slices.Sort(urls)
	return urls
}

// RawContent returns the serialized document stored for url.
func (s *Scheduler) RawContent(url string) (string, bool) {
	entry, ok := s.content(url)
	return entry.Raw, ok
}

// TextContent returns the plain text stored for url.
func (s *Scheduler) TextContent(url string) (string, bool) {
	entry, ok := s.content(url)
	return entry.Text, ok
}

// Content returns the full stored entry for url.
func (s *Scheduler) Content(url string) (ContentEntry, bool) {
	return s.content(url)
}

func (s *Scheduler) content(url string) (ContentEntry, bool) {
	if s.deps.Content == nil {
		return ContentEntry{}, false
	}
	return s.deps.Content.Get(url)
}

// Failures returns the last failure recorded per URL.
func (s *Scheduler) Failures() map[string]Failure {
	if s.deps.Failures == nil {
		return map[string]Failure{}
	}
	return s.deps.Failures.Snapshot()
}

func (s *Scheduler) emit(r *run, evt progress.Event) {
	evt.SessionID = r.id
	if evt.TS.IsZero() {
		evt.TS = s.deps.Clock.Now()
	}
	s.deps.Progress.Emit(evt)
}
