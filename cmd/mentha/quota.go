package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/beenruuu/mentha/internal/app"
	"github.com/beenruuu/mentha/pkg/ratelimit"
)

func newQuotaCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Manage custom scan quotas",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <user-id>",
			Short: "Show the effective scan quota of a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
					limit, err := a.Limiter().GetQuota(ctx, args[0])
					if err != nil {
						return err
					}
					if opts.json() {
						return writeJSON(cmd.OutOrStdout(), map[string]any{"user_id": args[0], "limit": limit})
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d scans per window\n", args[0], limit)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "set <user-id> <limit>",
			Short: "Set a custom scan quota",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				limit, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("%w: %q", ratelimit.ErrInvalidQuota, args[1])
				}
				return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
					if err := a.Limiter().SetQuota(ctx, args[0], limit); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "quota of %s set to %d\n", args[0], limit)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "reset <user-id>",
			Short: "Remove the custom quota, falling back to the default",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
					if err := a.Limiter().ResetQuota(ctx, args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "quota of %s reset\n", args[0])
					return nil
				})
			},
		},
	)
	return cmd
}

func newUsageCmd(opts *rootOptions) *cobra.Command {
	var (
		class string
		reset bool
	)

	cmd := &cobra.Command{
		Use:   "usage <user-id>",
		Short: "Show (or reset) the current window usage of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ratelimit.ClassName(class)
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if reset {
					if err := a.Limiter().Reset(ctx, args[0], name); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s usage of %s reset\n", name, args[0])
					return nil
				}

				usage, err := a.Limiter().GetUsage(ctx, args[0], name)
				if err != nil {
					return err
				}
				if opts.json() {
					return writeJSON(cmd.OutOrStdout(), usage)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d/%d used, %d remaining, resets %s\n",
					args[0], usage.Class, usage.Current, usage.Limit, usage.Remaining,
					usage.ResetAt.UTC().Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&class, "class", "c", string(ratelimit.ClassScan), "limit class: api or scan")
	cmd.Flags().BoolVar(&reset, "reset", false, "clear the current window instead of showing it")
	return cmd
}
