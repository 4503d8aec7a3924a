package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/news-crawler/internal/orchestrator"
)

// newCrawlCmd creates the 'crawl' subcommand, which crawls one source
// synchronously and prints the resulting job.
func newCrawlCmd(opts *options) *cobra.Command {
	var campaignID, sourceID string
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl one source now",
		Long: `Runs a single crawl of the given source outside the queue and scheduler,
stores its articles and prints the job outcome.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sourceID == "" {
				return errors.New("--source is required")
			}
			return withApp(cmd.Context(), opts, func(app App) error {
				job, err := app.Crawl(cmd.Context(), campaignID, sourceID)
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "job %s: %s\n", job.ID, job.Status)
				if err != nil {
					return fmt.Errorf("crawl %s: %w", sourceID, err)
				}
				fmt.Fprintf(out, "articles: %d\n", job.ArticleCount)
				fmt.Fprintf(out, "elapsed: %s\n", orchestrator.Elapsed(job))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&campaignID, "campaign", "", "campaign the crawl is attributed to")
	cmd.Flags().StringVar(&sourceID, "source", "", "ID of the source to crawl")
	return cmd
}
