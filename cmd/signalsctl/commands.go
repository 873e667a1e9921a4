package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/viralforge/trading-signals/internal/app/bootstrap"
	"github.com/viralforge/trading-signals/internal/application"
)

func withAdmin(configPath *string, fn func(cmd *cobra.Command, admin *bootstrap.Admin, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		admin, err := bootstrap.NewAdmin(cmd.Context(), *configPath)
		if err != nil {
			return err
		}
		defer admin.Close()
		return fn(cmd, admin, args)
	}
}

func rateLimitCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Inspect and reset rate-limit windows",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ttl [prefix] [identifier]",
		Short: "Show how long the current window still runs",
		Args:  cobra.ExactArgs(2),
		RunE: withAdmin(configPath, func(cmd *cobra.Command, admin *bootstrap.Admin, args []string) error {
			ttl, err := admin.Limiter.Remaining(cmd.Context(), args[0], strings.ToLower(args[1]))
			if err != nil {
				return err
			}
			if ttl <= 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: no open window\n", application.RateLimitKey(args[0], strings.ToLower(args[1])))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %ds remaining\n", application.RateLimitKey(args[0], strings.ToLower(args[1])), int64(ttl.Round(time.Second)/time.Second))
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset [prefix] [identifier]",
		Short: "Drop the counter so the identifier is admitted again",
		Args:  cobra.ExactArgs(2),
		RunE: withAdmin(configPath, func(cmd *cobra.Command, admin *bootstrap.Admin, args []string) error {
			deleted, err := admin.Limiter.Reset(cmd.Context(), args[0], strings.ToLower(args[1]))
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Fprintln(cmd.OutOrStdout(), "no counter to reset")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "counter reset")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list [prefix]",
		Short: "List open rate-limit counters",
		Args:  cobra.MaximumNArgs(1),
		RunE: withAdmin(configPath, func(cmd *cobra.Command, admin *bootstrap.Admin, args []string) error {
			pattern := "rate_limit:*"
			if len(args) == 1 {
				if _, ok := admin.Rule(args[0]); !ok {
					return fmt.Errorf("unknown rate limit prefix %q", args[0])
				}
				pattern = application.RateLimitKey(args[0], "*")
			}
			keys, err := admin.Store.Keys(cmd.Context(), pattern)
			if err != nil {
				return err
			}
			sort.Strings(keys)
			for _, key := range keys {
				raw, _, err := admin.Store.Get(cmd.Context(), key)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, raw)
			}
			return nil
		}),
	})
	return cmd
}

func cacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage read-through cache entries",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "invalidate",
		Short: "Drop the cached signals feed so the next read recomputes it",
		Args:  cobra.NoArgs,
		RunE: withAdmin(configPath, func(cmd *cobra.Command, admin *bootstrap.Admin, _ []string) error {
			deleted, err := admin.Signals.Invalidate(cmd.Context(), admin.Config.SignalsCacheKey)
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "%s was not cached\n", admin.Config.SignalsCacheKey)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s invalidated\n", admin.Config.SignalsCacheKey)
			return nil
		}),
	})
	return cmd
}

func webhookCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Inspect webhook idempotency markers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status [event-id]",
		Short: "Report whether an event id has been processed",
		Args:  cobra.ExactArgs(1),
		RunE: withAdmin(configPath, func(cmd *cobra.Command, admin *bootstrap.Admin, args []string) error {
			processed, err := admin.Guard.IsProcessed(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !processed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: not processed\n", args[0])
				return nil
			}
			ttl, err := admin.Guard.Remaining(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: processed, marker expires in %s\n", args[0], ttl.Round(time.Second))
			return nil
		}),
	})
	return cmd
}
