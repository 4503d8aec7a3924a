package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API, scheduler, workers and indexer",
		Long: `Starts the HTTP API and the background crawl pipeline. The process runs
until it receives SIGINT or SIGTERM, then drains in-flight work.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(app App) error {
				if err := app.Run(cmd.Context()); err != nil {
					return fmt.Errorf("run server: %w", err)
				}
				return nil
			})
		},
	}
}
