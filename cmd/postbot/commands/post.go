package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/postbot/internal/app"
	"github.com/ibeckermayer/postbot/internal/types"
)

// scheduleLayouts are accepted by --schedule, tried in order. Layouts
// without a zone are read in local time.
var scheduleLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

type postFlags struct {
	jobFile    string
	text       string
	attach     []string
	price      float64
	expire     string
	schedule   string
	pollPeriod string
	poll       []string
	tweet      bool
	keywords   []string
	tags       []string
}

func newPostCmd(c *cli) *cobra.Command {
	pf := &postFlags{}
	cmd := &cobra.Command{
		Use:   "post [--job job.toml] [--text ...] [--attach path|url ...]",
		Short: "Compose and publish a post.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := pf.build(cmd)
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) bool {
				return a.Submit(ctx, job)
			})
		},
	}

	pf.register(cmd)
	return cmd
}

func (pf *postFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&pf.jobFile, "job", "", "TOML file describing the post; other flags override it")
	f.StringVar(&pf.text, "text", "", "post text")
	f.StringArrayVar(&pf.attach, "attach", nil, "file path or http(s) URL to attach (repeatable)")
	f.Float64Var(&pf.price, "price", 0, "price; 0 posts for free")
	f.StringVar(&pf.expire, "expire", "", "expiration: 1, 3, 7, 30 days or \"no limit\"")
	f.StringVar(&pf.schedule, "schedule", "", "publish time, e.g. 2026-12-24 18:30 or RFC 3339")
	f.StringVar(&pf.pollPeriod, "poll-period", "7", "poll duration: 1, 3, 7, 30 days or \"no limit\"")
	f.StringArrayVar(&pf.poll, "poll", nil, "poll option (repeat 2 to 10 times)")
	f.BoolVar(&pf.tweet, "tweet", false, "also share to the linked Twitter account")
	f.StringSliceVar(&pf.keywords, "keywords", nil, "keywords, logged with the submission")
	f.StringSliceVar(&pf.tags, "tags", nil, "tags, logged with the submission")
}

// build assembles the job from --job and the flags that were set.
func (pf *postFlags) build(cmd *cobra.Command) (types.SubmissionJob, error) {
	var job types.SubmissionJob
	if pf.jobFile != "" {
		var err error
		if job, err = types.LoadJobFile(pf.jobFile); err != nil {
			return job, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("text") {
		job.Text = pf.text
	}
	for _, src := range pf.attach {
		job.Attachments = append(job.Attachments, types.NewAttachment(src, ""))
	}
	if changed("price") {
		job.Price = pf.price
	}
	if changed("expire") {
		p, err := types.ParsePeriod(pf.expire)
		if err != nil {
			return job, fmt.Errorf("--expire: %w", err)
		}
		job.Expiration = &p
	}
	if changed("schedule") {
		t, err := parseSchedule(pf.schedule)
		if err != nil {
			return job, err
		}
		job.Schedule = &t
	}
	if len(pf.poll) > 0 {
		p, err := types.ParsePeriod(pf.pollPeriod)
		if err != nil {
			return job, fmt.Errorf("--poll-period: %w", err)
		}
		job.Poll = &types.Poll{Period: p, Questions: pf.poll}
	}
	if changed("tweet") {
		job.Tweet = pf.tweet
	}
	job.Keywords = append(job.Keywords, pf.keywords...)
	job.Tags = append(job.Tags, pf.tags...)
	return job, nil
}

func parseSchedule(s string) (time.Time, error) {
	for _, layout := range scheduleLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("--schedule: cannot parse %q", s)
}
