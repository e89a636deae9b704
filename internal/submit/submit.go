// Package submit drives the post composer through one submission: optional
// dialogs, price, files, text, and the final send.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ibeckermayer/postbot/internal/config"
	"github.com/ibeckermayer/postbot/internal/elements"
	"github.com/ibeckermayer/postbot/internal/status"
	"github.com/ibeckermayer/postbot/internal/telemetry"
	"github.com/ibeckermayer/postbot/internal/types"
	"github.com/ibeckermayer/postbot/internal/upload"
	"github.com/ibeckermayer/postbot/internal/wait"
)

var (
	// ErrSendDisabled means the send button never became clickable.
	ErrSendDisabled = errors.New("send button is not enabled")
	// ErrBusy is returned when a submission is already running.
	ErrBusy = errors.New("a submission is already running")
)

// Navigator returns the session to the home page. session.Manager
// implements it.
type Navigator interface {
	NavigateHome(ctx context.Context, force bool) error
}

// Uploader attaches files to the open composer. *upload.Pipeline
// implements it.
type Uploader interface {
	Run(ctx context.Context, atts []types.Attachment) (upload.Report, error)
}

// Outcome is the result of one submission.
type Outcome struct {
	State  State
	Err    error
	Upload upload.Report
	// Failed names the optional dialogs that could not be filled.
	Failed []string
}

// OK reports whether the post was sent, or cancelled on purpose in debug
// mode.
func (o Outcome) OK() bool {
	return o.State == Confirmed || o.State == CancelledDebug
}

// Machine runs submissions against one session. Only one submission runs at
// a time.
type Machine struct {
	cfg     *config.Config
	nav     Navigator
	res     *elements.Resolver
	uploads Uploader
	status  *status.Printer
	now     func() time.Time

	run   sync.Mutex
	mu    sync.Mutex
	state State
}

// Option configures a Machine.
type Option func(*Machine)

// WithStatus sets where stage lines are printed.
func WithStatus(p *status.Printer) Option {
	return func(m *Machine) { m.status = p }
}

// WithClock replaces time.Now for job validation.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// New creates a machine. Debug and force-upload behavior come from cfg.
func New(cfg *config.Config, nav Navigator, res *elements.Resolver, uploads Uploader, opts ...Option) *Machine {
	m := &Machine{
		cfg:     cfg,
		nav:     nav,
		res:     res,
		uploads: uploads,
		status:  status.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State is the state of the current or last submission.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) set(ctx context.Context, s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()
	slog.DebugContext(ctx, "submission state", "from", prev, "to", s)
}

// Submit runs job to completion. The job is validated before the session is
// touched.
func (m *Machine) Submit(ctx context.Context, job types.SubmissionJob) Outcome {
	if !m.run.TryLock() {
		return Outcome{State: m.State(), Err: ErrBusy}
	}
	defer m.run.Unlock()

	ctx, span := telemetry.Start(ctx, "submit.run",
		attribute.Bool("debug", m.cfg.Debug),
		attribute.Int("attachments", len(job.Attachments)),
	)
	defer span.End()

	m.set(ctx, Idle)
	out := m.submit(ctx, job)
	out.State = m.State()

	span.SetAttributes(attribute.String("state", out.State.String()))
	if out.Err != nil {
		span.RecordError(out.Err)
	}
	return out
}

func (m *Machine) fail(ctx context.Context, out Outcome, stage string, err error) Outcome {
	m.set(ctx, Failed)
	slog.ErrorContext(ctx, "submission failed", "stage", stage, "err", err)
	m.status.Fail("%s: %v", stage, err)
	out.Err = fmt.Errorf("%s: %w", stage, err)
	return out
}

func (m *Machine) submit(ctx context.Context, job types.SubmissionJob) Outcome {
	var out Outcome

	if err := job.Validate(m.now()); err != nil {
		return m.fail(ctx, out, "validate", err)
	}
	if len(job.Keywords) > 0 || len(job.Tags) > 0 {
		slog.InfoContext(ctx, "submission metadata", "keywords", job.Keywords, "tags", job.Tags)
	}

	m.status.Stage("opening composer")
	if err := m.nav.NavigateHome(ctx, true); err != nil {
		return m.fail(ctx, out, "home", err)
	}
	m.set(ctx, HomeReady)

	m.set(ctx, Dialogs)
	if job.Expiration != nil && !m.dialog(ctx, expirationDialog(*job.Expiration)) {
		out.Failed = append(out.Failed, "expiration")
	}
	if job.Schedule != nil && !m.dialog(ctx, scheduleDialog(*job.Schedule, m.cfg.Timing.PollInterval())) {
		out.Failed = append(out.Failed, "schedule")
	}
	if job.Poll != nil && !m.dialog(ctx, pollDialog(*job.Poll, m.cfg.Timing.PollInterval())) {
		out.Failed = append(out.Failed, "poll")
	}
	if job.Price > 0 && !m.dialog(ctx, priceDialog(job.Price)) {
		out.Failed = append(out.Failed, "price")
	}

	report, err := m.uploads.Run(ctx, job.Attachments)
	out.Upload = report
	if err != nil {
		return m.fail(ctx, out, "upload", err)
	}
	m.set(ctx, FilesAttached)

	if job.Text != "" {
		m.status.Stage("entering text")
		if err := m.fill(ctx, "text_input", job.Text); err != nil {
			return m.fail(ctx, out, "text", err)
		}
	}
	m.set(ctx, TextEntered)

	if job.Tweet {
		if err := m.click(ctx, "tweet_toggle"); err != nil {
			slog.WarnContext(ctx, "failed to toggle tweet", "err", err)
			m.status.Warn("tweet toggle: %v", err)
		}
	}

	m.set(ctx, AwaitingUploadComplete)
	if err := m.awaitSend(ctx); err != nil {
		if !m.cfg.ForceUpload {
			return m.fail(ctx, out, "upload wait", err)
		}
		slog.WarnContext(ctx, "uploads still running, continuing anyway", "err", err)
		m.status.Warn("uploads did not finish in time, continuing (force_upload)")
	}

	if m.cfg.Debug {
		if err := m.click(ctx, "post_cancel"); err != nil {
			slog.WarnContext(ctx, "failed to cancel post", "err", err)
		}
		m.status.Skipped("post")
		m.set(ctx, CancelledDebug)
		return out
	}

	if err := m.send(ctx); err != nil {
		return m.fail(ctx, out, "send", err)
	}
	m.status.OK("posted")
	m.set(ctx, Confirmed)
	return out
}

// awaitSend polls until the send button is visible and enabled, which is
// how the composer signals that uploads finished.
func (m *Machine) awaitSend(ctx context.Context) error {
	m.status.Stage("waiting for uploads to finish")
	budget := wait.NewBudget(m.cfg.Upload.MaxDuration(), m.cfg.Timing.PollInterval())
	return budget.Until(ctx, func(ctx context.Context) bool {
		el, err := m.res.FindClickable(ctx, "send_button")
		if err != nil {
			return false
		}
		visible, _ := el.Visible(ctx)
		enabled, _ := el.Enabled(ctx)
		return visible && enabled
	})
}

func (m *Machine) send(ctx context.Context) error {
	el, err := m.res.FindClickable(ctx, "send_button")
	if err != nil {
		return err
	}
	if ok, _ := el.Enabled(ctx); !ok {
		return ErrSendDisabled
	}
	return el.Click(ctx)
}

func (m *Machine) click(ctx context.Context, name string) error {
	el, err := m.res.FindClickable(ctx, name)
	if err != nil {
		return err
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("failed to click %s: %w", name, err)
	}
	return nil
}

func (m *Machine) fill(ctx context.Context, name, value string) error {
	el, err := m.res.FindOne(ctx, name)
	if err != nil {
		return err
	}
	if err := el.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear %s: %w", name, err)
	}
	if err := el.SendKeys(ctx, value); err != nil {
		return fmt.Errorf("failed to type into %s: %w", name, err)
	}
	return nil
}
