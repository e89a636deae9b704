package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ibeckermayer/postbot/internal/config"
	"github.com/ibeckermayer/postbot/internal/elements"
	"github.com/ibeckermayer/postbot/internal/scheduler"
	"github.com/ibeckermayer/postbot/internal/status"
	"github.com/ibeckermayer/postbot/internal/store"
	"github.com/ibeckermayer/postbot/internal/telemetry"
	"github.com/ibeckermayer/postbot/internal/wait"
)

const (
	scrollTopJS  = `window.scrollTo(0, 0)`
	keepAliveJob = "keep-alive"
)

// Store persists the session a kept-alive process leaves behind.
type Store interface {
	SaveSession(ctx context.Context, r store.SessionRecord) error
	LoadSession(ctx context.Context) (store.SessionRecord, error)
}

// Manager owns the process's one Session.
type Manager struct {
	cfg       *config.Config
	launchers Launchers
	store     Store
	registry  *elements.Registry
	status    *status.Printer

	// launchersSet is false until WithLaunchers; DefaultLaunchers apply then.
	launchersSet bool

	mu    sync.Mutex
	state State
	sess  *Session
	sched *scheduler.Scheduler
}

// Option configures a Manager.
type Option func(*Manager)

// WithLaunchers replaces the engine launchers.
func WithLaunchers(l Launchers) Option {
	return func(m *Manager) {
		m.launchers = l
		m.launchersSet = true
	}
}

// WithStore enables saving and reconnecting kept-alive sessions.
func WithStore(s Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithRegistry sets the element registry sessions resolve against.
func WithRegistry(r *elements.Registry) Option {
	return func(m *Manager) { m.registry = r }
}

// WithStatus sets where stage lines are printed.
func WithStatus(p *status.Printer) Option {
	return func(m *Manager) { m.status = p }
}

// NewManager creates a manager in the Unspawned state.
func NewManager(cfg *config.Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:    cfg,
		status: status.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = elements.Default()
	}
	if !m.launchersSet {
		m.launchers = DefaultLaunchers(cfg)
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns the live session, or nil.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess
}

// engines expands a browser_type into the engines tried in order.
func engines(browserType string) []string {
	switch browserType {
	case config.BrowserAuto:
		return []string{config.BrowserChrome, config.BrowserDocker}
	case config.BrowserRemoteAuto:
		return []string{config.BrowserRemoteChrome, config.BrowserRemoteBrowserless}
	}
	return []string{browserType}
}

// Spawn starts or attaches the session. It is a no-op when a session is
// already live. When every engine fails the error is a *FatalError.
func (m *Manager) Spawn(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.sess != nil {
		defer m.mu.Unlock()
		return m.sess, nil
	}
	m.state = Spawning
	m.mu.Unlock()

	ctx, span := telemetry.Start(ctx, "session.spawn", attribute.String("browser_type", m.cfg.BrowserType))
	defer span.End()

	fatal := &FatalError{BrowserType: m.cfg.BrowserType}
	for _, engine := range engines(m.cfg.BrowserType) {
		m.status.Stage("starting browser (%s)", engine)
		sess, err := m.launch(ctx, engine)
		if err != nil {
			slog.WarnContext(ctx, "browser engine failed", "engine", engine, "err", err)
			m.status.Warn("%s: %v", engine, err)
			fatal.Attempts = append(fatal.Attempts, fmt.Errorf("%s: %w", engine, err))
			continue
		}

		m.mu.Lock()
		m.sess = sess
		m.state = Ready
		m.mu.Unlock()

		slog.InfoContext(ctx, "browser session ready", "engine", sess.Engine(), "session_id", sess.ID(), "endpoint", sess.Endpoint())
		m.status.OK("browser ready (%s)", engine)
		if m.cfg.KeepAlive && engine != config.BrowserReconnect {
			m.persist(ctx, sess)
		}
		return sess, nil
	}

	m.mu.Lock()
	m.state = Unspawned
	m.mu.Unlock()
	span.RecordError(fatal)
	m.status.Fail("could not start a browser session")
	return nil, fatal
}

func (m *Manager) launch(ctx context.Context, engine string) (*Session, error) {
	if engine == config.BrowserReconnect {
		if m.store == nil || m.launchers.Reconnect == nil {
			return nil, errors.New("reconnect needs a session store")
		}
		rec, err := m.store.LoadSession(ctx)
		if err != nil {
			return nil, err
		}
		d, err := m.launchers.Reconnect(ctx, rec)
		if err != nil {
			return nil, err
		}
		return newSession(d, rec.Engine, m.registry), nil
	}

	launcher := m.launchers.For(engine)
	if launcher == nil {
		return nil, fmt.Errorf("unknown browser engine %q", engine)
	}
	d, err := launcher(ctx)
	if err != nil {
		return nil, err
	}
	return newSession(d, engine, m.registry), nil
}

func (m *Manager) persist(ctx context.Context, sess *Session) {
	if m.store == nil {
		return
	}
	if sess.Endpoint() == "" || sess.ID() == "" {
		slog.WarnContext(ctx, "session cannot be reattached later; set chrome.remote_debugging_port", "engine", sess.Engine())
		return
	}
	rec := store.SessionRecord{SessionID: sess.ID(), Endpoint: sess.Endpoint(), Engine: sess.Engine()}
	if err := m.store.SaveSession(ctx, rec); err != nil {
		slog.WarnContext(ctx, "failed to save session", "err", err)
		return
	}
	slog.InfoContext(ctx, "saved session for reconnect", "session_id", rec.SessionID, "endpoint", rec.Endpoint)
}

func (m *Manager) live() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil, ErrNotSpawned
	}
	return m.sess, nil
}

// HomeURL is the configured base URL.
func (m *Manager) HomeURL() string {
	return m.cfg.BaseURL
}

func (m *Manager) resolve(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	return strings.TrimRight(m.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func samePage(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}

// NavigateHome loads the home page unless the session is already there and
// force is false, in which case it only scrolls back to the top.
func (m *Manager) NavigateHome(ctx context.Context, force bool) error {
	return m.navigate(ctx, m.cfg.BaseURL, force)
}

// NavigateTo loads path (relative to the base URL, or absolute) unless the
// session is already on it.
func (m *Manager) NavigateTo(ctx context.Context, path string) error {
	return m.navigate(ctx, m.resolve(path), false)
}

func (m *Manager) navigate(ctx context.Context, target string, force bool) error {
	sess, err := m.live()
	if err != nil {
		return err
	}

	if !force {
		if loc, err := sess.Location(ctx); err == nil && samePage(loc, target) {
			return sess.Evaluate(ctx, scrollTopJS, nil)
		}
	}

	if err := sess.Navigate(ctx, target); err != nil {
		return err
	}
	return m.waitMain(ctx, sess, target)
}

func (m *Manager) waitMain(ctx context.Context, sess *Session, target string) error {
	budget := wait.NewBudget(m.cfg.Timing.HomeTimeout(), m.cfg.Timing.PollInterval())
	err := budget.Until(ctx, func(ctx context.Context) bool {
		_, err := sess.Elements().FindMany(ctx, "main_content")
		return err == nil
	})
	if err != nil {
		slog.WarnContext(ctx, "page did not finish loading", "url", target, "timeout", budget.MaxDuration(), "err", err)
		return fmt.Errorf("page %s did not load: %w", target, err)
	}
	return nil
}

// Reload refreshes the current page.
func (m *Manager) Reload(ctx context.Context) error {
	sess, err := m.live()
	if err != nil {
		return err
	}
	return sess.Reload(ctx)
}

// Shutdown either leaves the browser running with a periodic refresh
// (keepAlive) or closes it.
func (m *Manager) Shutdown(ctx context.Context, keepAlive bool) error {
	sess, err := m.live()
	if err != nil {
		m.mu.Lock()
		m.state = Closed
		m.mu.Unlock()
		return nil
	}

	if keepAlive {
		return m.keepAlive(ctx, sess)
	}

	m.StopKeepAlive()
	err = sess.close(ctx)

	m.mu.Lock()
	m.sess = nil
	m.state = Closed
	m.mu.Unlock()

	if err != nil {
		slog.WarnContext(ctx, "failed to close browser", "err", err)
		return fmt.Errorf("failed to close browser: %w", err)
	}
	slog.InfoContext(ctx, "browser session closed")
	return nil
}

func (m *Manager) keepAlive(ctx context.Context, sess *Session) error {
	if err := m.NavigateHome(ctx, true); err != nil {
		slog.WarnContext(ctx, "keep-alive could not return home", "err", err)
	}

	interval := m.cfg.Timing.KeepAliveInterval()
	sched, err := scheduler.New("", time.Minute)
	if err != nil {
		return err
	}
	if err := sched.AddEvery(keepAliveJob, interval, m.Reload); err != nil {
		return err
	}
	sched.Start()

	m.mu.Lock()
	if m.sched != nil {
		m.sched.Stop()
	}
	m.sched = sched
	m.state = KeptAlive
	m.mu.Unlock()

	sess.keepAlive.Store(true)
	slog.InfoContext(ctx, "keeping browser session alive", "session_id", sess.ID(), "endpoint", sess.Endpoint(), "refresh", interval)
	return nil
}

// StopKeepAlive stops the refresher without closing the browser.
func (m *Manager) StopKeepAlive() {
	m.mu.Lock()
	sched := m.sched
	m.sched = nil
	m.mu.Unlock()
	if sched != nil {
		<-sched.Stop().Done()
	}
}

// KeepAliveJobs lists the scheduled refreshers.
func (m *Manager) KeepAliveJobs() []scheduler.JobInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sched == nil {
		return nil
	}
	return m.sched.ListJobs()
}
