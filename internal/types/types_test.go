package types

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	cases := map[string]Period{
		"1":         Period1Day,
		"3d":        Period3Days,
		"7 days":    Period7Days,
		"30":        Period30Days,
		"unlimited": PeriodUnlimited,
	}
	for in, want := range cases {
		got, err := ParsePeriod(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, in := range []string{"2", "0", "forever", "-1"} {
		_, err := ParsePeriod(in)
		require.ErrorIs(t, err, ErrInvalidPeriod, in)
	}
}

func TestPeriodLabels(t *testing.T) {
	var labels []string
	for _, p := range Periods {
		labels = append(labels, p.Label())
	}
	require.Equal(t, []string{"1 day", "3 days", "7 days", "30 days", "No limit"}, labels)
}

func TestAttachmentRequeue(t *testing.T) {
	a := NewAttachment("/tmp/photo.png", "")
	require.Equal(t, "photo.png", a.Title)
	require.False(t, a.Prepared)

	p := a.WithLocalPath("/tmp/photo.png")
	require.True(t, p.Prepared)
	require.Equal(t, a.ID, p.ID)
	require.False(t, a.Prepared)

	r := p.Requeued("/tmp/photo_1.png")
	require.NotEqual(t, p.ID, r.ID)
	require.Equal(t, 1, r.Generation)
	require.Equal(t, 0, p.Generation)
	require.Equal(t, "/tmp/photo.png", p.LocalPath)

	require.True(t, NewAttachment("https://cdn.example/x.jpg", "").Remote())
	require.False(t, a.Remote())
}

func TestValidate(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	bad := Period(5)
	week := Period7Days

	cases := []struct {
		name string
		job  SubmissionJob
		want error
	}{
		{name: "empty", job: SubmissionJob{}, want: ErrEmptyJob},
		{name: "past schedule", job: SubmissionJob{Text: "hi", Schedule: &past}, want: ErrScheduleInPast},
		{name: "now is not future", job: SubmissionJob{Text: "hi", Schedule: &now}, want: ErrScheduleInPast},
		{name: "expiration", job: SubmissionJob{Text: "hi", Expiration: &bad}, want: ErrInvalidPeriod},
		{name: "one question", job: SubmissionJob{Poll: &Poll{Period: Period1Day, Questions: []string{"a"}}}, want: ErrPollQuestions},
		{name: "eleven questions", job: SubmissionJob{Poll: &Poll{Period: Period1Day, Questions: make([]string, 11)}}, want: ErrPollQuestions},
		{name: "price", job: SubmissionJob{Text: "hi", Price: -1}, want: ErrInvalidPrice},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.ErrorIs(t, c.job.Validate(now), c.want)
		})
	}

	ok := SubmissionJob{
		Text:       "hello",
		Price:      4.99,
		Expiration: &week,
		Schedule:   &future,
		Poll:       &Poll{Period: PeriodUnlimited, Questions: []string{"yes", "no"}},
	}
	require.NoError(t, ok.Validate(now))
}

func TestLoadJobFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
text = "new set"
price = 9.5
expiration = 7
tweet = true
schedule = 2027-01-03T21:15:00Z

[poll]
period = "unlimited"
questions = ["red", "blue"]

[[attachments]]
source = "photos/a.png"

[[attachments]]
source = "https://cdn.example/b.jpg"
title = "b"
`), 0600))

	job, err := LoadJobFile(path)
	require.NoError(t, err)
	require.Equal(t, "new set", job.Text)
	require.Equal(t, Period7Days, *job.Expiration)
	require.Equal(t, PeriodUnlimited, job.Poll.Period)
	require.Equal(t, 2027, job.Schedule.Year())
	require.True(t, job.Tweet)

	require.Len(t, job.Attachments, 2)
	require.Equal(t, filepath.Join(dir, "photos", "a.png"), job.Attachments[0].Source)
	require.Equal(t, "a.png", job.Attachments[0].Title)
	require.Equal(t, "https://cdn.example/b.jpg", job.Attachments[1].Source)
	require.NotEmpty(t, job.Attachments[0].ID)
	require.NotEqual(t, job.Attachments[0].ID, job.Attachments[1].ID)
}
