// Package auth signs the session in through one of several interchangeable
// strategies.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ibeckermayer/postbot/internal/config"
	"github.com/ibeckermayer/postbot/internal/elements"
	"github.com/ibeckermayer/postbot/internal/status"
	"github.com/ibeckermayer/postbot/internal/telemetry"
	"github.com/ibeckermayer/postbot/internal/wait"
)

const loggedInMarker = "login_check"

var errNoCredentials = errors.New("no credentials")

// Navigator returns the session to the home page. session.Manager
// implements it.
type Navigator interface {
	NavigateHome(ctx context.Context, force bool) error
}

// Selector runs sign-in strategies against a session.
type Selector struct {
	cfg      *config.Config
	nav      Navigator
	res      *elements.Resolver
	prompter Prompter
	status   *status.Printer
}

// Option configures a Selector.
type Option func(*Selector)

// WithPrompter asks for credentials missing from the config.
func WithPrompter(p Prompter) Option {
	return func(s *Selector) { s.prompter = p }
}

// WithStatus sets where attempt lines are printed.
func WithStatus(p *status.Printer) Option {
	return func(s *Selector) { s.status = p }
}

// NewSelector creates a selector over the session's resolver.
func NewSelector(cfg *config.Config, nav Navigator, res *elements.Resolver, opts ...Option) *Selector {
	s := &Selector{cfg: cfg, nav: nav, res: res, status: status.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate signs in with method and reports whether the session ends up
// signed in. A session already signed in returns true without touching any
// strategy. Auto tries each strategy in turn until one succeeds.
func (s *Selector) Authenticate(ctx context.Context, method Method) bool {
	ctx, span := telemetry.Start(ctx, "auth.authenticate", attribute.String("method", string(method)))
	defer span.End()

	if err := s.nav.NavigateHome(ctx, false); err != nil {
		slog.WarnContext(ctx, "home page unavailable before login", "err", err)
		s.status.Fail("sign in: home page did not load")
		return false
	}
	if s.res.Present(ctx, loggedInMarker) {
		slog.InfoContext(ctx, "already signed in")
		s.status.OK("already signed in")
		return true
	}

	methods := []Method{method}
	if method == MethodAuto {
		methods = autoOrder
	}
	for _, m := range methods {
		strat, ok := strategies[m]
		if !ok {
			slog.ErrorContext(ctx, "unknown login method", "method", m)
			continue
		}
		if s.attempt(ctx, strat) {
			span.SetAttributes(attribute.String("method.used", string(m)))
			return true
		}
	}
	s.status.Fail("sign in failed")
	return false
}

// attempt runs one strategy. Errors and panics stay inside and become false.
func (s *Selector) attempt(ctx context.Context, strat strategy) (ok bool) {
	ctx, span := telemetry.Start(ctx, "auth.strategy", attribute.String("method", string(strat.method)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "login strategy panicked", "method", strat.method, "panic", r)
			ok = false
		}
		span.SetAttributes(attribute.Bool("ok", ok))
	}()

	s.status.Stage("signing in with %s", strat.method)
	if err := s.run(ctx, strat); err != nil {
		slog.WarnContext(ctx, "login strategy failed", "method", strat.method, "err", err)
		span.RecordError(err)
		s.status.Warn("%s: %v", strat.method, err)
		return false
	}
	s.status.OK("signed in with %s", strat.method)
	return true
}

func (s *Selector) run(ctx context.Context, strat strategy) error {
	creds, err := s.credentials(ctx, strat.method)
	if err != nil {
		return err
	}

	if err := s.nav.NavigateHome(ctx, false); err != nil {
		return err
	}
	if strat.entry != "" {
		if err := s.click(ctx, strat.entry); err != nil {
			return err
		}
	}

	for _, st := range strat.steps {
		var err error
		switch st.do {
		case typeUsername:
			err = s.fill(ctx, st.element, creds.Username)
		case typePassword:
			err = s.fill(ctx, st.element, creds.Password)
		case click:
			err = s.click(ctx, st.element)
		}
		if err != nil {
			return err
		}
	}

	if strat.captcha {
		s.probeChallenge(ctx, strat)
	}

	budget := wait.NewBudget(s.cfg.Timing.LoginTimeout(), s.cfg.Timing.PollInterval())
	err = budget.Until(ctx, func(ctx context.Context) bool {
		return s.res.Present(ctx, loggedInMarker)
	})
	if err != nil {
		return fmt.Errorf("signed-in marker never appeared: %w", err)
	}
	return nil
}

// credentials come from the config (which already has environment
// overrides applied), then from the prompter.
func (s *Selector) credentials(ctx context.Context, m Method) (Credentials, error) {
	c := s.cfg.Credential(string(m))
	creds := Credentials{Username: c.Username, Password: c.Password}
	if !creds.Empty() {
		return creds, nil
	}
	if s.prompter == nil {
		return Credentials{}, errNoCredentials
	}
	creds, err := s.prompter.Prompt(ctx, m)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %w", errNoCredentials, err)
	}
	if creds.Empty() {
		return Credentials{}, errNoCredentials
	}
	return creds, nil
}

func (s *Selector) fill(ctx context.Context, name, value string) error {
	el, err := s.res.FindOne(ctx, name)
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

func (s *Selector) click(ctx context.Context, name string) error {
	el, err := s.res.FindClickable(ctx, name)
	if err != nil {
		return err
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("failed to click %s: %w", name, err)
	}
	return nil
}

// probeChallenge guesses that a bot challenge blocked the submission when
// the password field is still there after a delay. It ticks the challenge
// and submits again, best effort. A slow page looks the same as a
// challenge, so a false positive costs one extra submit.
func (s *Selector) probeChallenge(ctx context.Context, strat strategy) {
	delay := s.cfg.Timing.CaptchaDelay()
	if err := wait.Sleep(ctx, delay); err != nil {
		return
	}
	if !s.res.Present(ctx, strat.password) {
		return
	}

	slog.WarnContext(ctx, "bot challenge suspected", "method", strat.method)
	s.status.Warn("%s: bot challenge suspected, retrying", strat.method)
	if err := s.click(ctx, "captcha_checkbox"); err != nil {
		slog.DebugContext(ctx, "no challenge checkbox", "err", err)
	}
	if err := s.click(ctx, strat.submit); err != nil {
		slog.DebugContext(ctx, "resubmit failed", "err", err)
	}

	if err := wait.Sleep(ctx, delay); err != nil {
		return
	}
	if s.res.Present(ctx, strat.password) {
		slog.WarnContext(ctx, "bot challenge still showing", "method", strat.method)
	}
}
