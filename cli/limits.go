package cli

import (
	"github.com/spf13/cobra"

	"github.com/sanchitsharma77/airweave-sub002/ratelimit"
)

var (
	limitValue  int
	limitWindow int
	limitScope  string
)

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "manage per-source rate limits",
}

var limitsSetCmd = &cobra.Command{
	Use:   "set [organization-id] [source-short-name]",
	Short: "create or update a source rate limit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := NewApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		admin := ratelimit.NewAdmin(app.Limits, app.SourceLimiter)
		return admin.Set(ctx, args[0], args[1], ratelimit.SourceLimitConfig{
			Limit:         limitValue,
			WindowSeconds: limitWindow,
			Scope:         ratelimit.Scope(limitScope),
		})
	},
}

var limitsRemoveCmd = &cobra.Command{
	Use:   "remove [organization-id] [source-short-name]",
	Short: "delete a source rate limit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := NewApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		admin := ratelimit.NewAdmin(app.Limits, app.SourceLimiter)
		return admin.Remove(ctx, args[0], args[1])
	},
}

func init() {
	limitsSetCmd.Flags().IntVar(&limitValue, "limit", 10, "allowed calls per window")
	limitsSetCmd.Flags().IntVar(&limitWindow, "window", 60, "window length in seconds")
	limitsSetCmd.Flags().StringVar(&limitScope, "scope", "org", "limit scope: org or connection")
	limitsCmd.AddCommand(limitsSetCmd, limitsRemoveCmd)
	RootCmd.AddCommand(limitsCmd)
}
