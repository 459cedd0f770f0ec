// Package cmd defines and implements the CLI commands for the sitecrawler
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/app"
	"github.com/JakeFAU/sitecrawler/internal/config"
	"github.com/JakeFAU/sitecrawler/internal/crawler"
	"github.com/JakeFAU/sitecrawler/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// Crawler is the slice of the scheduler the commands drive.
type Crawler interface {
	Start(ctx context.Context, seed string) error
	Stop(ctx context.Context) error
	Wait(ctx context.Context) error
	SessionID() string
	VisitedURLs() []string
	Failures() map[string]crawler.Failure
}

// App defines the application interface that commands use. Tests inject a
// mock through newApp.
type App interface {
	GetLogger() *zap.Logger
	GetCrawler() Crawler
	Serve(ctx context.Context) error
	Close(ctx context.Context) error
}

// appAdapter narrows *app.App to the App interface.
type appAdapter struct {
	*app.App
}

func (a appAdapter) GetCrawler() Crawler {
	return a.Scheduler()
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(cfg config.Config, logger *zap.Logger) (App, error) {
	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return appAdapter{a}, nil
}

// rootOptions holds the persistent flag values.
type rootOptions struct {
	cfgFile     string
	metricsAddr string
	poolSize    int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "sitecrawler",
		Short: "A concurrent, same-process web crawler.",
		Long: `sitecrawler crawls outward from a seed URL with a bounded pool of
workers, visiting every reachable page at most once and keeping the raw HTML,
the extracted text and a failure record for each URL.`,
		SilenceUsage: true,

		// Runs before every subcommand: load config, build the logger and the
		// application services, and stash them in the command context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := newApp(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			ctx = context.WithValue(ctx, configKey, cfg)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return nil
			}
			// The command context is usually canceled by now; Close still
			// needs the full grace period.
			closeErr := appInstance.Close(context.WithoutCancel(cmd.Context()))
			if syncErr := logging.Sync(appInstance.GetLogger()); syncErr != nil {
				fmt.Fprintln(os.Stderr, syncErr)
			}
			if closeErr != nil {
				return fmt.Errorf("close application: %w", closeErr)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "ops server listen address; overrides metrics.addr")
	flags.IntVar(&opts.poolSize, "pool-size", 0, "number of fetch workers; overrides crawler.pool_size")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

type configKeyType string

const configKey configKeyType = "config"

func loadConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if flags.Changed("pool-size") {
		cfg.Crawler.PoolSize = opts.poolSize
		if err := cfg.Validate(); err != nil {
			return config.Config{}, fmt.Errorf("load config: %w", err)
		}
	}
	return cfg, nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

func resolveConfig(ctx context.Context) config.Config {
	cfg, _ := ctx.Value(configKey).(config.Config)
	return cfg
}

// Execute runs the root command with SIGINT and SIGTERM canceling its context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
