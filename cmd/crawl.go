package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/sitecrawler/internal/app"
)

type crawlOptions struct {
	seed    string
	timeout time.Duration
}

// newCrawlCmd creates the 'crawl' subcommand, which runs one session from a
// seed until the frontier drains, the timeout elapses or the process is
// interrupted.
func newCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl outward from a seed URL",
		Long: `Starts a crawl session at the seed URL and waits until there is no
queued or in-flight work left. The session is then stopped gracefully and a
summary is printed. While it runs, the ops server (if enabled) serves health,
metrics and results.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.seed, "seed", "", "seed URL; overrides crawler.seed")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "stop the crawl after this long (0 waits until drained)")
	return cmd
}

func runCrawl(cmd *cobra.Command, opts *crawlOptions) error {
	ctx := cmd.Context()
	appInstance, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	logger := appInstance.GetLogger()

	seed := opts.seed
	if seed == "" {
		seed = resolveConfig(ctx).Crawler.Seed
	}
	if seed == "" {
		return errors.New("no seed URL: pass --seed or set crawler.seed")
	}

	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()
	var g errgroup.Group
	g.Go(func() error {
		if err := appInstance.Serve(serveCtx); err != nil && !errors.Is(err, app.ErrServerDisabled) {
			logger.Error("ops server failed", zap.Error(err))
			return err
		}
		return nil
	})

	c := appInstance.GetCrawler()
	if err := c.Start(ctx, seed); err != nil {
		stopServing()
		_ = g.Wait()
		return fmt.Errorf("start crawl: %w", err)
	}

	waitCtx := ctx
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}
	switch err := c.Wait(waitCtx); {
	case err == nil:
		logger.Info("crawl frontier drained")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Info("crawl timeout reached", zap.Duration("timeout", opts.timeout))
	default:
		logger.Info("crawl interrupted", zap.Error(err))
	}

	stopErr := c.Stop(context.WithoutCancel(ctx))
	if stopErr != nil {
		logger.Warn("crawl stop ended early", zap.Error(stopErr))
	}

	visited := c.VisitedURLs()
	failures := c.Failures()
	logger.Info("crawl command finished",
		zap.String("session_id", c.SessionID()),
		zap.Int("visited", len(visited)),
		zap.Int("failures", len(failures)),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "session %s: visited %d urls, %d failures\n",
		c.SessionID(), len(visited), len(failures))

	stopServing()
	if err := g.Wait(); err != nil {
		return fmt.Errorf("ops server: %w", err)
	}
	return nil
}
