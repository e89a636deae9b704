package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/postbot/internal/browser"
	"github.com/ibeckermayer/postbot/internal/config"
	"github.com/ibeckermayer/postbot/internal/session"
	"github.com/ibeckermayer/postbot/internal/store"
	"github.com/ibeckermayer/postbot/internal/testutil"
	"github.com/ibeckermayer/postbot/internal/types"
	"github.com/ibeckermayer/postbot/internal/upload"
)

var now = time.Date(2026, time.October, 16, 10, 0, 0, 0, time.UTC)

type memHistory struct {
	mu   sync.Mutex
	subs []store.Submission
}

func (h *memHistory) RecordSubmission(ctx context.Context, sub store.Submission) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = append(h.subs, sub)
	return int64(len(h.subs)), nil
}

type memNotifier struct {
	subs []store.Submission
}

func (n *memNotifier) NotifySubmission(ctx context.Context, sub store.Submission) error {
	n.subs = append(n.subs, sub)
	return nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.BaseURL = "https://site.test"
	cfg.BrowserType = config.BrowserChrome
	cfg.Timing.PollIntervalMillis = 1
	cfg.Timing.HomeTimeoutSeconds = 1
	cfg.Timing.LoginTimeoutSeconds = 0
	cfg.Timing.CaptchaDelaySeconds = 0
	cfg.Timing.UploadSettleMillis = 0
	cfg.Upload.MaxDurationSeconds = 1
	return cfg
}

type harness struct {
	app      *App
	driver   *testutil.Driver
	history  *memHistory
	launches int
}

func newHarness(t *testing.T, cfg *config.Config, html string, opts ...Option) *harness {
	t.Helper()
	h := &harness{driver: testutil.NewDriver(html), history: &memHistory{}}
	h.driver.SetURL(cfg.BaseURL)
	m := session.NewManager(cfg, session.WithLaunchers(session.Launchers{
		Chrome: func(ctx context.Context) (browser.Driver, error) {
			h.launches++
			return h.driver, nil
		},
	}))
	opts = append([]Option{WithHistory(h.history), WithClock(func() time.Time { return now })}, opts...)
	h.app = New(cfg, m, opts...)
	return h
}

func TestAuthenticationFailureIsRemembered(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testConfig(), testutil.LoginPage)

	require.False(t, h.app.Authenticate(ctx))
	events := len(h.driver.Events())

	require.False(t, h.app.Authenticate(ctx))
	require.False(t, h.app.Submit(ctx, types.SubmissionJob{Text: "hi"}))
	require.Len(t, h.driver.Events(), events)
	require.Equal(t, 1, h.launches)
}

func TestSubmitDebugTextOnly(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Debug = true
	n := &memNotifier{}
	h := newHarness(t, cfg, testutil.HomePage, WithNotifier(n))

	require.True(t, h.app.Submit(ctx, types.SubmissionJob{Text: "héllo"}))
	require.Equal(t, 1, h.driver.Count("type", "new_post_text_input"))
	require.Zero(t, h.driver.Count("click", "send"))

	require.Len(t, h.history.subs, 1)
	sub := h.history.subs[0]
	require.True(t, sub.OK)
	require.True(t, sub.Debug)
	require.Equal(t, 5, sub.TextLength)
	require.True(t, sub.Scheduled.IsZero())

	require.Len(t, n.subs, 1)
	require.Equal(t, int64(1), n.subs[0].ID)
}

func TestSubmitInvalidJobNeverSpawns(t *testing.T) {
	h := newHarness(t, testConfig(), testutil.HomePage)

	past := now.Add(-time.Minute)
	require.False(t, h.app.Submit(context.Background(), types.SubmissionJob{Text: "late", Schedule: &past}))
	require.Zero(t, h.launches)
	require.Empty(t, h.driver.Events())
	require.Len(t, h.history.subs, 1)
	require.False(t, h.history.subs[0].OK)
	require.Equal(t, past, h.history.subs[0].Scheduled)
}

func TestSubmitWithAttachments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pic.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0600))

	h := newHarness(t, testConfig(), testutil.HomePage,
		WithPreparer(upload.NewFilePreparer(t.TempDir()), t.TempDir()))

	job := types.SubmissionJob{
		Text:        "look",
		Attachments: []types.Attachment{types.NewAttachment(path, "pic")},
	}
	require.True(t, h.app.Submit(context.Background(), job))
	require.Equal(t, []string{path}, h.driver.Values("files", ""))
	require.Equal(t, 1, h.driver.Count("click", "send"))
	require.Equal(t, 1, h.history.subs[0].Uploaded)

	// a second submission reuses the session
	require.True(t, h.app.Submit(context.Background(), types.SubmissionJob{Text: "again"}))
	require.Equal(t, 1, h.launches)
	require.Equal(t, 2, h.driver.Count("click", "send"))
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testConfig(), testutil.HomePage)

	require.False(t, h.app.Reset(ctx))

	require.NoError(t, h.app.Start(ctx))
	require.True(t, h.app.Reset(ctx))
	require.Equal(t, 1, h.driver.Count("navigate", ""))
}

func TestShutdown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testConfig(), testutil.HomePage)
	require.NoError(t, h.app.Start(ctx))

	h.app.Shutdown(ctx)
	require.True(t, h.driver.Closed())
	require.False(t, h.app.KeptAlive())
}

func TestStartFatal(t *testing.T) {
	cfg := testConfig()
	m := session.NewManager(cfg, session.WithLaunchers(session.Launchers{}))
	a := New(cfg, m)

	var fatal *session.FatalError
	require.ErrorAs(t, a.Start(context.Background()), &fatal)
	require.False(t, a.Authenticate(context.Background()))
}
