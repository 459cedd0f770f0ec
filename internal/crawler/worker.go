package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/progress"
)

var errTaskPanic = errors.New("task panicked")

// work is the loop each pool worker runs until the queue is sealed and empty
// or the run is canceled.
func (s *Scheduler) work(r *run) {
	for {
		task, err := r.queue.Dequeue(r.ctx)
		if err != nil {
			return
		}
		s.process(r, task)
	}
}

// process fetches, parses and stores one claimed URL, then submits its links.
// Failures are recorded and never escape.
func (s *Scheduler) process(r *run, task Task) {
	defer s.track(-1)
	if r.ctx.Err() != nil {
		return
	}

	site := siteOf(task.URL)
	start := s.deps.Clock.Now()
	kind := FailureNetwork
	defer func() {
		if rec := recover(); rec != nil {
			s.fail(r, task, kind, fmt.Errorf("%w: %v", errTaskPanic, rec), start)
		}
	}()

	s.emit(r, progress.Event{Stage: progress.StageFetchStart, Site: site, URL: task.URL})

	resp, err := s.fetch(r, task)
	if err != nil {
		if r.ctx.Err() != nil {
			s.abort(r, task, err, start)
			return
		}
		s.fail(r, task, FailureNetwork, err, start)
		return
	}

	kind = FailureParse
	entry, links, err := s.extract(task, resp)
	if err != nil {
		s.fail(r, task, FailureParse, err, start)
		return
	}
	s.deps.Content.Put(entry)

	crawlable := make([]string, 0, len(links))
	for _, link := range links {
		if IsCrawlable(link) {
			crawlable = append(crawlable, link)
		}
	}

	done := s.deps.Clock.Now()
	s.logger.Debug("page fetched",
		zap.String("url", task.URL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
		zap.Int("links", len(crawlable)),
	)
	s.emit(r, progress.Event{
		Stage:       progress.StageFetchDone,
		Site:        site,
		URL:         task.URL,
		Bytes:       int64(len(resp.Body)),
		Links:       int64(len(crawlable)),
		StatusClass: progress.ClassifyStatus(resp.StatusCode),
		Dur:         max(done.Sub(start), 0),
	})

	for _, link := range crawlable {
		s.submitDiscovered(r, link, task.URL)
	}
}

func (s *Scheduler) fetch(r *run, task Task) (FetchResponse, error) {
	ctx, cancel := context.WithTimeout(r.ctx, s.cfg.FetchTimeout)
	defer cancel()

	resp, err := s.deps.Fetcher.Fetch(ctx, FetchRequest{URL: task.URL})
	if err != nil {
		if !errors.Is(err, ErrNetwork) {
			err = &FetchError{URL: task.URL, Err: err}
		}
		return FetchResponse{}, err
	}
	return resp, nil
}

// extract parses the response and builds the content entry. The entry is keyed
// by the claimed URL; links resolve against the final URL after redirects.
func (s *Scheduler) extract(task Task, resp FetchResponse) (ContentEntry, []string, error) {
	baseURL := resp.URL
	if baseURL == "" {
		baseURL = task.URL
	}
	doc, err := s.deps.Parser.Parse(resp.Body, resp.ContentType, baseURL)
	if err != nil {
		return ContentEntry{}, nil, asParseError("parse document", err)
	}
	raw, err := doc.HTML()
	if err != nil {
		return ContentEntry{}, nil, asParseError("serialize document", err)
	}
	digest, err := s.deps.Hasher.Hash([]byte(raw))
	if err != nil {
		return ContentEntry{}, nil, asParseError("hash document", err)
	}
	entry := ContentEntry{
		URL:         task.URL,
		Raw:         raw,
		Text:        doc.Text(),
		ContentType: resp.ContentType,
		Digest:      digest,
		FetchedAt:   s.deps.Clock.Now(),
	}
	return entry, doc.Links(), nil
}

func asParseError(op string, err error) error {
	if errors.Is(err, ErrParse) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrParse, err)
}

func (s *Scheduler) fail(r *run, task Task, kind FailureKind, err error, start time.Time) {
	now := s.deps.Clock.Now()
	status := statusCodeOf(err)
	s.deps.Failures.Record(Failure{
		URL:        task.URL,
		Kind:       kind,
		Reason:     err.Error(),
		StatusCode: status,
		At:         now,
	})
	s.logger.Warn("crawl task failed",
		zap.String("url", task.URL),
		zap.Stringer("session_id", r.id),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	evt := progress.Event{
		Stage: progress.StageFetchError,
		Site:  siteOf(task.URL),
		URL:   task.URL,
		Dur:   max(now.Sub(start), 0),
		Note:  err.Error(),
	}
	if status != 0 {
		evt.StatusClass = progress.ClassifyStatus(status)
	}
	s.emit(r, evt)
}

// abort reports a fetch cut short by a forced stop. It is not a failure of the
// URL, so nothing is recorded.
func (s *Scheduler) abort(r *run, task Task, err error, start time.Time) {
	s.logger.Debug("fetch aborted by stop", zap.String("url", task.URL), zap.Error(err))
	s.emit(r, progress.Event{
		Stage: progress.StageFetchError,
		Site:  siteOf(task.URL),
		URL:   task.URL,
		Dur:   max(s.deps.Clock.Now().Sub(start), 0),
		Note:  "canceled",
	})
}
