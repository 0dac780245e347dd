package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/beenruuu/mentha/internal/app"
	"github.com/beenruuu/mentha/pkg/queue"
	"github.com/beenruuu/mentha/pkg/schedule"
)

func newResyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resync",
		Short: "Reinstall the schedule of every active keyword",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Resync(ctx)
				if err != nil {
					return err
				}
				if opts.json() {
					if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
						return err
					}
					return report.Err()
				}

				t := newTable(cmd)
				t.AppendHeader(table.Row{"Keyword", "Result", "Detail"})
				for _, id := range report.Scheduled {
					t.AppendRow(table.Row{id, "scheduled", ""})
				}
				for _, s := range report.Skipped {
					t.AppendRow(table.Row{s.KeywordID, "skipped", s.Reason})
				}
				for _, f := range report.Failed {
					t.AppendRow(table.Row{f.KeywordID, "failed", f.Message})
				}
				t.AppendFooter(table.Row{"Total", report.Total(), ""})
				t.Render()
				return report.Err()
			})
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show schedule and queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				stats, err := a.Manager().Stats(ctx)
				if err != nil {
					return err
				}
				resp := app.StatsResponse{Schedules: stats, Queues: make(map[queue.Name]queue.Counts)}
				for _, name := range queue.Names() {
					q, err := a.Registry().Queue(name)
					if err != nil {
						return err
					}
					if resp.Queues[name], err = q.Counts(ctx); err != nil {
						return err
					}
				}
				if opts.json() {
					return writeJSON(cmd.OutOrStdout(), resp)
				}

				next := "-"
				if stats.NextRun != nil {
					next = stats.NextRun.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schedules: %d (next run %s)\n", stats.ScheduledCount, next)

				t := newTable(cmd)
				t.AppendHeader(table.Row{"Queue", "Waiting", "Prioritized", "Delayed", "Repeating"})
				for _, name := range queue.Names() {
					c := resp.Queues[name]
					t.AppendRow(table.Row{name, c.Waiting, c.Prioritized, c.Delayed, c.Repeating})
				}
				t.Render()
				return nil
			})
		},
	}
}

func newSchedulesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedules",
		Short: "List installed schedules ordered by next run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				list, err := a.Manager().Schedules(ctx)
				if err != nil {
					return err
				}
				if opts.json() {
					return writeJSON(cmd.OutOrStdout(), list)
				}

				t := newTable(cmd)
				t.AppendHeader(table.Row{"Keyword", "Frequency", "Pattern", "Offset", "Next run"})
				for _, s := range list {
					t.AppendRow(table.Row{s.KeywordID, s.Frequency, s.Pattern, s.Offset, s.Next.UTC().Format(time.RFC3339)})
				}
				t.Render()
				return nil
			})
		},
	}
}

func newScheduleCmd(opts *rootOptions) *cobra.Command {
	var (
		frequency string
		engines   []string
	)

	cmd := &cobra.Command{
		Use:   "schedule <keyword-id>",
		Short: "Install or replace the recurring scan of a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			freq, err := schedule.ParseFrequency(frequency)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				s, err := a.Manager().ScheduleRecurring(ctx, args[0], freq, engines)
				if err != nil {
					return err
				}
				if opts.json() {
					return writeJSON(cmd.OutOrStdout(), s)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "scheduled %s %s, next run %s\n",
					s.KeywordID, s.Frequency, s.Next.UTC().Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&frequency, "frequency", "f", string(schedule.Daily), "daily or weekly")
	cmd.Flags().StringSliceVarP(&engines, "engine", "e", nil, "search engines to scan (repeatable)")
	return cmd
}

func newUnscheduleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unschedule <keyword-id>",
		Short: "Remove the recurring scan of a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Manager().RemoveSchedule(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "unscheduled %s\n", args[0])
				return nil
			})
		},
	}
}

func newTable(cmd *cobra.Command) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	return t
}
