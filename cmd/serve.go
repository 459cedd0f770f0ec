package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newServeCmd creates the 'serve' subcommand, which runs the ops API until
// interrupted. Sessions are started and stopped over HTTP; if crawler.seed
// is set a session is started immediately.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the crawler control API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	appInstance, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	if seed := resolveConfig(ctx).Crawler.Seed; seed != "" {
		if err := appInstance.GetCrawler().Start(ctx, seed); err != nil {
			return fmt.Errorf("start crawl: %w", err)
		}
		appInstance.GetLogger().Info("crawl session started from config", zap.String("seed", seed))
	}
	if err := appInstance.Serve(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
