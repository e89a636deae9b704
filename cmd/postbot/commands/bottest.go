package commands

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/postbot/internal/browser"
)

const botTestURL = "https://bot.sannysoft.com"

func newBotTestCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "bot-test",
		Short: "Open " + botTestURL + " with the stealth options to audit the browser fingerprint.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			slog.InfoContext(ctx, "opening fingerprint test page", "url", botTestURL)

			chrome, err := browser.LaunchLocal(browser.LocalOptions{
				ShowWindow:  true,
				ExecPath:    c.cfg.Chrome.ExecPath,
				UserDataDir: c.cfg.Chrome.UserDataDir,
			})
			if err != nil {
				return err
			}
			defer chrome.Close(context.WithoutCancel(ctx))

			if err := chrome.Navigate(ctx, botTestURL); err != nil {
				return fmt.Errorf("failed to navigate: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Press Enter to close the browser...")
			done := make(chan struct{})
			go func() {
				bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				close(done)
			}()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	}
}
