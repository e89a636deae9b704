package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/postbot/internal/app"
)

func newLoginCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in and leave the session on the home page.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) bool {
				return a.Authenticate(ctx)
			})
		},
	}
}

func newResetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Return the session to the home page.",
		Long: "Return the session to the home page. Combine with --browser reconnect " +
			"to recover a session left running with --keep-alive.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) bool {
				return a.Reset(ctx)
			})
		},
	}
}
