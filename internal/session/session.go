// Package session owns the single browser session of the process: spawning
// it through one of several engines, navigating it, keeping it alive after
// the process is done with it, and shutting it down.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ibeckermayer/postbot/internal/browser"
	"github.com/ibeckermayer/postbot/internal/elements"
)

// ErrNotSpawned is returned by navigation before Spawn succeeded or after
// Shutdown.
var ErrNotSpawned = errors.New("browser session not spawned")

// State is the lifecycle position of the managed session.
type State int

const (
	Unspawned State = iota
	Spawning
	Ready
	Closed
	KeptAlive
)

func (s State) String() string {
	switch s {
	case Unspawned:
		return "unspawned"
	case Spawning:
		return "spawning"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	case KeptAlive:
		return "kept-alive"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// FatalError means no engine could produce a session. It is the only error
// meant to end the process.
type FatalError struct {
	BrowserType string
	Attempts    []error
}

func (e *FatalError) Error() string {
	msgs := make([]string, len(e.Attempts))
	for i, err := range e.Attempts {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("no browser session for %s: %s", e.BrowserType, strings.Join(msgs, "; "))
}

func (e *FatalError) Unwrap() []error {
	return e.Attempts
}

// Session is a live browser session. Every command, including commands on
// elements it returned, holds the session lock, so callers on different
// goroutines never interleave.
type Session struct {
	mu       sync.Mutex
	driver   browser.Driver
	engine   string
	resolver *elements.Resolver

	authenticated atomic.Bool
	keepAlive     atomic.Bool
}

func newSession(d browser.Driver, engine string, reg *elements.Registry) *Session {
	s := &Session{driver: d, engine: engine}
	s.resolver = elements.NewResolver(reg, s)
	return s
}

// Engine names the browser_type path that produced the session.
func (s *Session) Engine() string { return s.engine }

// ID is the browser target id, used to reattach later.
func (s *Session) ID() string { return s.driver.SessionID() }

// Endpoint is the remote-control address, empty for local sessions without
// a debugging port.
func (s *Session) Endpoint() string { return s.driver.Endpoint() }

// Elements returns the resolver bound to this session.
func (s *Session) Elements() *elements.Resolver { return s.resolver }

func (s *Session) Authenticated() bool     { return s.authenticated.Load() }
func (s *Session) SetAuthenticated(v bool) { s.authenticated.Store(v) }
func (s *Session) KeepAlive() bool         { return s.keepAlive.Load() }

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.Navigate(ctx, url)
}

func (s *Session) Location(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.Location(ctx)
}

func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.Reload(ctx)
}

func (s *Session) Evaluate(ctx context.Context, expression string, res any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.Evaluate(ctx, expression, res)
}

// FindAll implements elements.Finder.
func (s *Session) FindAll(ctx context.Context, by browser.By, selector string) ([]browser.Element, error) {
	s.mu.Lock()
	found, err := s.driver.FindAll(ctx, by, selector)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]browser.Element, len(found))
	for i, el := range found {
		out[i] = &lockedElement{s: s, el: el}
	}
	return out, nil
}

func (s *Session) close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.Close(ctx)
}

type lockedElement struct {
	s  *Session
	el browser.Element
}

func (e *lockedElement) Identity() string { return e.el.Identity() }

func (e *lockedElement) Text(ctx context.Context) (string, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.el.Text(ctx)
}

func (e *lockedElement) Visible(ctx context.Context) (bool, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.el.Visible(ctx)
}

func (e *lockedElement) Enabled(ctx context.Context) (bool, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.el.Enabled(ctx)
}

func (e *lockedElement) Click(ctx context.Context) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.el.Click(ctx)
}

func (e *lockedElement) Clear(ctx context.Context) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.el.Clear(ctx)
}

func (e *lockedElement) SendKeys(ctx context.Context, text string) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.el.SendKeys(ctx, text)
}

func (e *lockedElement) SetFiles(ctx context.Context, paths ...string) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.el.SetFiles(ctx, paths...)
}
