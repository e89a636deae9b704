package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/postbot/internal/digest"
	"github.com/ibeckermayer/postbot/internal/notifier"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newHistoryCmd(c *cli) *cobra.Command {
	var limit int
	var mail bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent submissions.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			subs, err := st.RecentSubmissions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(subs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no submissions yet")
				return nil
			}
			if mail {
				if !c.cfg.Email.Enabled() {
					return errors.New("--email needs email.to_address in the config")
				}
				n, err := notifier.NewFromConfig(c.cfg.Email)
				if err != nil {
					return err
				}
				if err := n.SendHistory(cmd.Context(), subs); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sent %d rows to %s\n", len(subs), c.cfg.Email.ToAddr)
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("ID", "WHEN", "RESULT", "TEXT", "FILES", "SCHEDULED").
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == table.HeaderRow {
						return headerStyle
					}
					return cellStyle
				})
			for _, s := range subs {
				scheduled := "-"
				if !s.Scheduled.IsZero() {
					scheduled = s.Scheduled.Local().Format(time.DateTime)
				}
				t.Row(
					strconv.FormatInt(s.ID, 10),
					s.SubmittedAt.Local().Format(time.DateTime),
					digest.Result(s),
					strconv.Itoa(s.TextLength),
					fmt.Sprintf("%d/%d", s.Uploaded, s.Attachments),
					scheduled,
				)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of rows")
	cmd.Flags().BoolVar(&mail, "email", false, "mail the rows to email.to_address instead of printing them")
	return cmd
}
