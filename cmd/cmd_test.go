package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/app"
	"github.com/JakeFAU/sitecrawler/internal/config"
	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

type mockCrawler struct {
	mock.Mock
}

func (m *mockCrawler) Start(ctx context.Context, seed string) error {
	return m.Called(ctx, seed).Error(0)
}

func (m *mockCrawler) Stop(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockCrawler) Wait(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockCrawler) SessionID() string {
	return m.Called().String(0)
}

func (m *mockCrawler) VisitedURLs() []string {
	urls, _ := m.Called().Get(0).([]string)
	return urls
}

func (m *mockCrawler) Failures() map[string]crawler.Failure {
	failures, _ := m.Called().Get(0).(map[string]crawler.Failure)
	return failures
}

type mockApp struct {
	mock.Mock
	crawler *mockCrawler
}

func (m *mockApp) GetLogger() *zap.Logger {
	return zap.NewNop()
}

func (m *mockApp) GetCrawler() Crawler {
	return m.crawler
}

func (m *mockApp) Serve(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockApp) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// useMockApp swaps the app factory for the duration of the test and records
// the config it was called with.
func useMockApp(t *testing.T, a *mockApp) *config.Config {
	t.Helper()
	var seen config.Config
	orig := newApp
	newApp = func(cfg config.Config, _ *zap.Logger) (App, error) {
		seen = cfg
		return a, nil
	}
	t.Cleanup(func() { newApp = orig })
	return &seen
}

func execute(args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCrawlCommandRunsSession(t *testing.T) {
	c := &mockCrawler{}
	a := &mockApp{crawler: c}
	seen := useMockApp(t, a)

	a.On("Serve", mock.Anything).Return(app.ErrServerDisabled)
	a.On("Close", mock.Anything).Return(nil)
	c.On("Start", mock.Anything, "https://example.com/").Return(nil)
	c.On("Wait", mock.Anything).Return(nil)
	c.On("Stop", mock.Anything).Return(nil)
	c.On("SessionID").Return("sess-1")
	c.On("VisitedURLs").Return([]string{"https://example.com/", "https://example.com/a"})
	c.On("Failures").Return(map[string]crawler.Failure{
		"https://example.com/x": {URL: "https://example.com/x", Kind: crawler.FailureNetwork},
	})

	out, err := execute("crawl", "--seed", "https://example.com/", "--pool-size", "3", "--metrics-addr", "")
	require.NoError(t, err)
	require.Contains(t, out, "session sess-1: visited 2 urls, 1 failures")
	require.Equal(t, 3, seen.Crawler.PoolSize)
	require.Empty(t, seen.Metrics.Addr)
	c.AssertExpectations(t)
	a.AssertExpectations(t)
}

func TestCrawlCommandTimeout(t *testing.T) {
	c := &mockCrawler{}
	a := &mockApp{crawler: c}
	useMockApp(t, a)

	a.On("Serve", mock.Anything).Return(app.ErrServerDisabled)
	a.On("Close", mock.Anything).Return(nil)
	c.On("Start", mock.Anything, "https://example.com/").Return(nil)
	c.On("Wait", mock.Anything).Return(context.DeadlineExceeded)
	c.On("Stop", mock.Anything).Return(nil)
	c.On("SessionID").Return("sess-2")
	c.On("VisitedURLs").Return([]string{"https://example.com/"})
	c.On("Failures").Return(map[string]crawler.Failure{})

	out, err := execute("crawl", "--seed", "https://example.com/", "--timeout", "1ms")
	require.NoError(t, err)
	require.Contains(t, out, "visited 1 urls, 0 failures")
	c.AssertCalled(t, "Stop", mock.Anything)
}

func TestCrawlCommandRequiresSeed(t *testing.T) {
	a := &mockApp{crawler: &mockCrawler{}}
	useMockApp(t, a)

	_, err := execute("crawl")
	require.ErrorContains(t, err, "no seed URL")
	a.AssertNotCalled(t, "Serve", mock.Anything)
}

func TestCrawlCommandStartFailure(t *testing.T) {
	c := &mockCrawler{}
	a := &mockApp{crawler: c}
	useMockApp(t, a)

	a.On("Serve", mock.Anything).Return(app.ErrServerDisabled)
	c.On("Start", mock.Anything, "https://example.com/").Return(crawler.ErrInvalidConfig)

	_, err := execute("crawl", "--seed", "https://example.com/")
	require.ErrorIs(t, err, crawler.ErrInvalidConfig)
	c.AssertNotCalled(t, "Wait", mock.Anything)
}

func TestServeCommandPropagatesServeError(t *testing.T) {
	a := &mockApp{crawler: &mockCrawler{}}
	useMockApp(t, a)

	a.On("Serve", mock.Anything).Return(errors.New("address in use"))

	_, err := execute("serve")
	require.ErrorContains(t, err, "address in use")
}

func TestRootRejectsBadConfig(t *testing.T) {
	a := &mockApp{crawler: &mockCrawler{}}
	useMockApp(t, a)

	_, err := execute("crawl", "--config", "/does/not/exist.yaml")
	require.ErrorContains(t, err, "load config")

	_, err = execute("crawl", "--pool-size", "-1", "--seed", "https://example.com/")
	require.ErrorIs(t, err, crawler.ErrInvalidConfig)
}

func TestResolveAppWithoutInit(t *testing.T) {
	t.Parallel()

	_, err := resolveApp(context.Background())
	require.Error(t, err)
}
