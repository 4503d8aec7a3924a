package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/config"
	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/server"
)

const closeTimeout = 10 * time.Second

// App is the slice of the application the commands drive. Tests swap in a fake.
type App interface {
	Run(ctx context.Context) error
	Crawl(ctx context.Context, campaignID, sourceID string) (crawler.CrawlJob, error)
	Close(ctx context.Context)
}

// newApp is the application factory, replaceable in tests.
var newApp = func(ctx context.Context, cfg *config.Config) (App, error) {
	return server.Build(ctx, cfg)
}

type options struct {
	cfgFile  string
	envFiles []string
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "news-crawler",
		Short: "Collects news articles from websites, feeds and APIs.",
		Long: `news-crawler crawls the news sources of running campaigns on a schedule,
stores the extracted articles and feeds them to a search index.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files loaded before config")

	cmd.AddCommand(newServeCmd(opts), newCrawlCmd(opts))
	return cmd
}

// loadConfig applies dotenv files, reads config and honors the PORT variable
// set by Cloud Run.
func loadConfig(opts *options) (*config.Config, error) {
	if err := config.LoadDotEnv(opts.envFiles...); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if raw := os.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", raw, err)
		}
		cfg.Server.Port = port
	}
	return &cfg, nil
}

// withApp builds the application, runs fn and closes the application even
// when fn fails.
func withApp(ctx context.Context, opts *options, fn func(App) error) (err error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	app, err := newApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		app.Close(closeCtx)
	}()
	return fn(app)
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logger := zap.L()
		if errors.Is(err, context.Canceled) {
			logger.Info("command canceled")
			return
		}
		logger.Error("command execution failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
