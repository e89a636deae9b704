// Package app ties the session, sign-in, upload and submission components
// into the four operations callers use.
package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ibeckermayer/postbot/internal/auth"
	"github.com/ibeckermayer/postbot/internal/config"
	"github.com/ibeckermayer/postbot/internal/session"
	"github.com/ibeckermayer/postbot/internal/status"
	"github.com/ibeckermayer/postbot/internal/store"
	"github.com/ibeckermayer/postbot/internal/submit"
	"github.com/ibeckermayer/postbot/internal/types"
	"github.com/ibeckermayer/postbot/internal/upload"
	"github.com/ibeckermayer/postbot/internal/wait"
)

// History records submission outcomes. *store.Store implements it.
type History interface {
	RecordSubmission(ctx context.Context, sub store.Submission) (int64, error)
}

// Notifier reports a finished submission. *notifier.Notifier implements it.
type Notifier interface {
	NotifySubmission(ctx context.Context, sub store.Submission) error
}

// App holds the application state.
type App struct {
	cfg      *config.Config
	manager  *session.Manager
	history  History
	notifier Notifier
	prompter auth.Prompter
	preparer upload.Preparer
	workDir  string
	status   *status.Printer
	now      func() time.Time

	mu         sync.Mutex
	authFailed bool
	machine    *submit.Machine
	machineFor *session.Session
}

// Option configures an App.
type Option func(*App)

// WithHistory records every submission.
func WithHistory(h History) Option {
	return func(a *App) { a.history = h }
}

// WithNotifier reports every submission.
func WithNotifier(n Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// WithPrompter asks for credentials missing from the config.
func WithPrompter(p auth.Prompter) Option {
	return func(a *App) { a.prompter = p }
}

// WithPreparer replaces the attachment preparer. Renamed copies go to
// workDir.
func WithPreparer(p upload.Preparer, workDir string) Option {
	return func(a *App) {
		a.preparer = p
		a.workDir = workDir
	}
}

// WithStatus sets where stage lines are printed.
func WithStatus(p *status.Printer) Option {
	return func(a *App) { a.status = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// New creates a new App over manager. The session is spawned by Start or by
// the first operation that needs it.
func New(cfg *config.Config, manager *session.Manager, opts ...Option) *App {
	a := &App{
		cfg:     cfg,
		manager: manager,
		status:  status.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.preparer == nil {
		fp := upload.NewFilePreparer(cfg.Upload.DownloadDir)
		a.preparer = fp
		a.workDir = fp.Dir()
	}
	return a
}

// Start spawns the session. A *session.FatalError means no engine could
// produce one.
func (a *App) Start(ctx context.Context) error {
	_, err := a.manager.Spawn(ctx)
	return err
}

// Authenticate signs the session in with the configured login method. Once
// sign-in has failed, later calls return false without trying again.
func (a *App) Authenticate(ctx context.Context) bool {
	a.mu.Lock()
	failed := a.authFailed
	a.mu.Unlock()
	if failed {
		slog.WarnContext(ctx, "skipping sign in after an earlier failure")
		return false
	}

	sess, err := a.manager.Spawn(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "no session", "err", err)
		return false
	}
	if sess.Authenticated() {
		return true
	}

	method, err := auth.ParseMethod(a.cfg.LoginMethod)
	if err != nil {
		slog.ErrorContext(ctx, "bad login method", "err", err)
		a.markFailed()
		return false
	}

	opts := []auth.Option{auth.WithStatus(a.status)}
	if a.prompter != nil {
		opts = append(opts, auth.WithPrompter(a.prompter))
	}
	ok := auth.NewSelector(a.cfg, a.manager, sess.Elements(), opts...).Authenticate(ctx, method)
	if !ok {
		a.markFailed()
		return false
	}
	sess.SetAuthenticated(true)
	return true
}

func (a *App) markFailed() {
	a.mu.Lock()
	a.authFailed = true
	a.mu.Unlock()
}

// Submit signs in if needed and runs job. The outcome is recorded in the
// history when one is configured.
func (a *App) Submit(ctx context.Context, job types.SubmissionJob) bool {
	if err := job.Validate(a.now()); err != nil {
		slog.ErrorContext(ctx, "invalid submission", "err", err)
		a.status.Fail("submission: %v", err)
		a.record(ctx, job, submit.Outcome{State: submit.Failed, Err: err})
		return false
	}
	if !a.Authenticate(ctx) {
		return false
	}

	m := a.machineForSession()
	if m == nil {
		slog.ErrorContext(ctx, "session went away before submission")
		return false
	}

	out := m.Submit(ctx, job)
	if out.Err != nil {
		slog.ErrorContext(ctx, "submission failed", "state", out.State, "err", out.Err)
	} else {
		slog.InfoContext(ctx, "submission finished",
			"state", out.State,
			"uploaded", len(out.Upload.Uploaded),
			"dropped", len(out.Upload.Dropped),
			"failed_dialogs", out.Failed,
		)
	}
	a.record(ctx, job, out)
	return out.OK()
}

// machineForSession returns the submission machine bound to the live
// session, creating it on first use or after a respawn.
func (a *App) machineForSession() *submit.Machine {
	sess := a.manager.Session()
	if sess == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.machine != nil && a.machineFor == sess {
		return a.machine
	}

	res := sess.Elements()
	pipeline := upload.NewPipeline(res, a.preparer, upload.Options{
		Workers: a.cfg.Upload.Workers,
		Max:     a.cfg.Upload.Max,
		Settle:  a.cfg.Timing.UploadSettle(),
		Retry:   wait.NewBudget(a.cfg.Upload.MaxDuration(), a.cfg.Timing.PollInterval()),
		WorkDir: a.workDir,
		Status:  a.status,
	})
	a.machine = submit.New(a.cfg, a.manager, res, pipeline,
		submit.WithStatus(a.status),
		submit.WithClock(a.now),
	)
	a.machineFor = sess
	return a.machine
}

func (a *App) record(ctx context.Context, job types.SubmissionJob, out submit.Outcome) {
	sub := store.Submission{
		SubmittedAt: a.now(),
		Debug:       a.cfg.Debug,
		OK:          out.OK(),
		TextLength:  len([]rune(job.Text)),
		Attachments: len(job.Attachments),
		Uploaded:    len(out.Upload.Uploaded),
	}
	if job.Schedule != nil {
		sub.Scheduled = *job.Schedule
	}
	if a.history != nil {
		id, err := a.history.RecordSubmission(ctx, sub)
		if err != nil {
			slog.WarnContext(ctx, "failed to record submission", "err", err)
		}
		sub.ID = id
	}
	if a.notifier != nil {
		if err := a.notifier.NotifySubmission(ctx, sub); err != nil {
			slog.WarnContext(ctx, "failed to send submission report", "err", err)
		}
	}
}

// Reset returns the live session to the home page.
func (a *App) Reset(ctx context.Context) bool {
	a.status.Stage("returning home")
	if err := a.manager.NavigateHome(ctx, true); err != nil {
		slog.ErrorContext(ctx, "reset failed", "err", err)
		a.status.Fail("reset: %v", err)
		return false
	}
	a.status.OK("home")
	return true
}

// Shutdown closes the session, or parks it on the home page with a
// keep-alive refresher when keep_alive is set.
func (a *App) Shutdown(ctx context.Context) {
	if err := a.manager.Shutdown(ctx, a.cfg.KeepAlive); err != nil {
		slog.WarnContext(ctx, "shutdown", "err", err)
	}
}

// KeptAlive reports whether Shutdown left the session running.
func (a *App) KeptAlive() bool {
	return a.manager.State() == session.KeptAlive
}

// StopKeepAlive ends the refresher started by a keep-alive Shutdown.
func (a *App) StopKeepAlive() {
	a.manager.StopKeepAlive()
}
