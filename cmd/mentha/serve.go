package main

import (
	"github.com/spf13/cobra"

	"github.com/beenruuu/mentha/internal/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler: resync on start, promote due jobs, serve ops endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
}
