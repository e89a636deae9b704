package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/postbot/internal/config"
	"github.com/ibeckermayer/postbot/internal/store"
	"github.com/ibeckermayer/postbot/internal/types"
)

func buildJob(t *testing.T, args ...string) (types.SubmissionJob, error) {
	t.Helper()
	cmd := &cobra.Command{Use: "post"}
	pf := &postFlags{}
	pf.register(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return pf.build(cmd)
}

func TestPostFlags(t *testing.T) {
	job, err := buildJob(t,
		"--text", "new drop",
		"--attach", "/media/a.png",
		"--attach", "https://cdn.example/b.jpg",
		"--price", "4.99",
		"--expire", "30",
		"--schedule", "2027-01-02 18:30",
		"--poll", "yes", "--poll", "no", "--poll-period", "no limit",
		"--tweet",
		"--tags", "summer,beach",
	)
	require.NoError(t, err)
	require.Equal(t, "new drop", job.Text)
	require.Len(t, job.Attachments, 2)
	require.Equal(t, "b.jpg", job.Attachments[1].Title)
	require.Equal(t, 4.99, job.Price)
	require.Equal(t, types.Period30Days, *job.Expiration)
	require.True(t, job.Schedule.Equal(time.Date(2027, time.January, 2, 18, 30, 0, 0, time.Local)))
	require.Equal(t, &types.Poll{Period: types.PeriodUnlimited, Questions: []string{"yes", "no"}}, job.Poll)
	require.True(t, job.Tweet)
	require.Equal(t, []string{"summer", "beach"}, job.Tags)
}

func TestPostFlagsOverrideJobFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
text = "from file"
price = 10.0

[[attachments]]
source = "a.png"
`), 0600))

	job, err := buildJob(t, "--job", path, "--text", "from flag", "--attach", "/media/b.png")
	require.NoError(t, err)
	require.Equal(t, "from flag", job.Text)
	require.Equal(t, 10.0, job.Price)
	require.Len(t, job.Attachments, 2)
	require.Equal(t, filepath.Join(dir, "a.png"), job.Attachments[0].Source)
}

func TestPostFlagsErrors(t *testing.T) {
	_, err := buildJob(t, "--expire", "5")
	require.ErrorIs(t, err, types.ErrInvalidPeriod)

	_, err = buildJob(t, "--schedule", "tomorrow")
	require.Error(t, err)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestHistory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "postbot.db")
	st, err := store.New(dbPath)
	require.NoError(t, err)
	_, err = st.RecordSubmission(context.Background(), store.Submission{
		SubmittedAt: time.Now(),
		OK:          true,
		TextLength:  12,
		Attachments: 3,
		Uploaded:    2,
	})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	cfgPath := writeConfig(t, fmt.Sprintf("store_path = '%s'\n", dbPath))

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	code := execute(context.Background(), root, []string{"--config", cfgPath, "--env", "", "history"}, &errOut)
	require.Equal(t, exitOK, code, errOut.String())
	require.Contains(t, out.String(), "posted")
	require.Contains(t, out.String(), "2/3")
}

func TestInvalidConfigExitsFatal(t *testing.T) {
	cfgPath := writeConfig(t, "")

	var errOut bytes.Buffer
	root := newRootCmd()
	root.SetErr(&errOut)
	code := execute(context.Background(), root, []string{"--config", cfgPath, "--env", "", "--browser", "netscape", "history"}, &errOut)
	require.Equal(t, exitFatal, code)
	require.Contains(t, errOut.String(), "netscape")
}

func TestOpenTargets(t *testing.T) {
	dir := t.TempDir()
	c := &cli{cfg: config.Default()}
	c.flags.configPath = filepath.Join(dir, "conf", "config.toml")
	c.cfg.Upload.DownloadDir = filepath.Join(dir, "dl")
	c.cfg.StorePath = filepath.Join(dir, "data", "postbot.db")

	path, err := c.openTarget("config")
	require.NoError(t, err)
	require.FileExists(t, path)

	path, err = c.openTarget("downloads")
	require.NoError(t, err)
	require.DirExists(t, path)

	path, err = c.openTarget("db")
	require.NoError(t, err)
	require.DirExists(t, filepath.Dir(path))

	_, err = c.openTarget("cache")
	require.Error(t, err)
}
