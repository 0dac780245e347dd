package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/beenruuu/mentha/internal/app"
	"github.com/beenruuu/mentha/internal/config"
)

type rootOptions struct {
	cfg      *config.Config
	envFiles []string
	output   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "mentha",
		Short:         "Recurring scan scheduler and quota service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.envFiles...)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "output format: table or json")

	cmd.AddCommand(
		newServeCmd(opts),
		newResyncCmd(opts),
		newStatsCmd(opts),
		newSchedulesCmd(opts),
		newScheduleCmd(opts),
		newUnscheduleCmd(opts),
		newQuotaCmd(opts),
		newUsageCmd(opts),
	)
	return cmd
}

// withApp builds the service components for a one-shot command and closes them after fn.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) (err error) {
	ctx := cmd.Context()
	a, err := app.New(ctx, o.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); err == nil {
			err = cerr
		}
	}()
	return fn(ctx, a)
}

func (o *rootOptions) json() bool { return o.output == "json" }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
