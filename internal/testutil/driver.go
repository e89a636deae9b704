// Package testutil provides an in-memory browser driver over a static HTML
// document, used by package tests in place of a real Chrome.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/ibeckermayer/postbot/internal/browser"
)

// Event is one recorded driver command.
type Event struct {
	Action string
	Target string
	Value  string
}

// Driver implements browser.Driver over a goquery document. Visibility
// comes from the hidden attribute or display:none on the node or an
// ancestor; enabled state comes from the disabled attribute.
type Driver struct {
	mu        sync.Mutex
	doc       *goquery.Document
	url       string
	sessionID string
	endpoint  string
	closed    bool
	events    []Event

	onClick    map[string][]func(*Driver)
	onFiles    func(d *Driver, paths []string)
	onNavigate func(d *Driver, url string)
}

// NewDriver parses html into a new fake driver. It panics on malformed
// input since fixtures are static.
func NewDriver(html string) *Driver {
	d := &Driver{
		sessionID: "fake-target",
		onClick:   make(map[string][]func(*Driver)),
	}
	d.SetHTML(html)
	return d
}

// WithSession sets what SessionID and Endpoint report.
func (d *Driver) WithSession(id, endpoint string) *Driver {
	d.sessionID = id
	d.endpoint = endpoint
	return d
}

// SetHTML replaces the whole document.
func (d *Driver) SetHTML(html string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		panic(fmt.Sprintf("invalid fixture html: %v", err))
	}
	d.mu.Lock()
	d.doc = doc
	d.mu.Unlock()
}

// SetURL changes the current location without recording a navigation.
func (d *Driver) SetURL(url string) {
	d.mu.Lock()
	d.url = url
	d.mu.Unlock()
}

func (d *Driver) mutate(selector string, fn func(*goquery.Selection)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.doc.Find(selector))
}

// Hide marks matching nodes hidden.
func (d *Driver) Hide(selector string) {
	d.mutate(selector, func(s *goquery.Selection) { s.SetAttr("hidden", "") })
}

// Show removes the hidden attribute from matching nodes.
func (d *Driver) Show(selector string) {
	d.mutate(selector, func(s *goquery.Selection) { s.RemoveAttr("hidden") })
}

// Disable sets the disabled attribute on matching nodes.
func (d *Driver) Disable(selector string) {
	d.mutate(selector, func(s *goquery.Selection) { s.SetAttr("disabled", "") })
}

// Enable removes the disabled attribute from matching nodes.
func (d *Driver) Enable(selector string) {
	d.mutate(selector, func(s *goquery.Selection) { s.RemoveAttr("disabled") })
}

// Remove deletes matching nodes.
func (d *Driver) Remove(selector string) {
	d.mutate(selector, func(s *goquery.Selection) { s.Remove() })
}

// Append adds html as the last child of matching nodes.
func (d *Driver) Append(selector, html string) {
	d.mutate(selector, func(s *goquery.Selection) { s.AppendHtml(html) })
}

// SetText replaces the text of matching nodes.
func (d *Driver) SetText(selector, text string) {
	d.mutate(selector, func(s *goquery.Selection) { s.SetText(text) })
}

// OnClick registers fn to run after a click on target (see Event.Target).
func (d *Driver) OnClick(target string, fn func(*Driver)) {
	d.mu.Lock()
	d.onClick[target] = append(d.onClick[target], fn)
	d.mu.Unlock()
}

// OnSetFiles registers fn to run after files are set on any input.
func (d *Driver) OnSetFiles(fn func(d *Driver, paths []string)) {
	d.mu.Lock()
	d.onFiles = fn
	d.mu.Unlock()
}

// OnNavigate registers fn to run after every navigation.
func (d *Driver) OnNavigate(fn func(d *Driver, url string)) {
	d.mu.Lock()
	d.onNavigate = fn
	d.mu.Unlock()
}

// Events returns a copy of every recorded command.
func (d *Driver) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

// Count returns how many events match action and, if non-empty, target.
func (d *Driver) Count(action, target string) int {
	n := 0
	for _, e := range d.Events() {
		if e.Action == action && (target == "" || e.Target == target) {
			n++
		}
	}
	return n
}

// Values returns the Value of every event matching action and target.
func (d *Driver) Values(action, target string) []string {
	var out []string
	for _, e := range d.Events() {
		if e.Action == action && (target == "" || e.Target == target) {
			out = append(out, e.Value)
		}
	}
	return out
}

// Clicked lists click targets in order.
func (d *Driver) Clicked() []string {
	var out []string
	for _, e := range d.Events() {
		if e.Action == "click" {
			out = append(out, e.Target)
		}
	}
	return out
}

func (d *Driver) record(e Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return browser.ErrClosed
	}
	d.events = append(d.events, e)
	return nil
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := d.record(Event{Action: "navigate", Value: url}); err != nil {
		return err
	}
	d.mu.Lock()
	d.url = url
	hook := d.onNavigate
	d.mu.Unlock()
	if hook != nil {
		hook(d, url)
	}
	return nil
}

func (d *Driver) Location(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", browser.ErrClosed
	}
	return d.url, nil
}

func (d *Driver) Reload(ctx context.Context) error {
	return d.record(Event{Action: "reload", Value: d.url})
}

func (d *Driver) Evaluate(ctx context.Context, expression string, res any) error {
	return d.record(Event{Action: "eval", Value: expression})
}

func (d *Driver) FindAll(ctx context.Context, by browser.By, selector string) ([]browser.Element, error) {
	query := selector
	switch by {
	case browser.ByID:
		query = browser.IDSelector(selector)
	case browser.ByClass:
		sel, ok := browser.ClassSelector(selector)
		if !ok {
			return nil, nil
		}
		query = sel
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, browser.ErrClosed
	}
	var out []browser.Element
	d.doc.Find(query).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &element{d: d, s: s})
	})
	return out, nil
}

func (d *Driver) SessionID() string { return d.sessionID }

func (d *Driver) Endpoint() string { return d.endpoint }

func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.events = append(d.events, Event{Action: "close"})
	}
	d.closed = true
	return nil
}

// Closed reports whether Close was called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type element struct {
	d *Driver
	s *goquery.Selection
}

// Target names a node for event records: data-testid, id, name, class or
// tag, whichever comes first.
func Target(s *goquery.Selection) string {
	for _, attr := range []string{"data-testid", "id", "name", "class"} {
		if v, ok := s.Attr(attr); ok && v != "" {
			return v
		}
	}
	return goquery.NodeName(s)
}

func (e *element) target() string {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return Target(e.s)
}

func (e *element) Identity() string {
	return fmt.Sprintf("%p", e.s.Get(0))
}

func (e *element) Text(ctx context.Context) (string, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	switch goquery.NodeName(e.s) {
	case "input", "textarea":
		v, _ := e.s.Attr("value")
		return strings.TrimSpace(v), nil
	}
	return strings.TrimSpace(e.s.Text()), nil
}

func hiddenNode(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	style, _ := s.Attr("style")
	return strings.Contains(strings.ReplaceAll(style, " ", ""), "display:none")
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	for n := e.s; n.Length() > 0; n = n.Parent() {
		if hiddenNode(n) {
			return false, nil
		}
	}
	return true, nil
}

func (e *element) Enabled(ctx context.Context) (bool, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if _, ok := e.s.Attr("disabled"); ok {
		return false, nil
	}
	aria, _ := e.s.Attr("aria-disabled")
	return aria != "true", nil
}

func (e *element) Click(ctx context.Context) error {
	target := e.target()
	if err := e.d.record(Event{Action: "click", Target: target}); err != nil {
		return err
	}
	e.d.mu.Lock()
	hooks := append([]func(*Driver)(nil), e.d.onClick[target]...)
	e.d.mu.Unlock()
	for _, h := range hooks {
		h(e.d)
	}
	return nil
}

func (e *element) Clear(ctx context.Context) error {
	if err := e.d.record(Event{Action: "clear", Target: e.target()}); err != nil {
		return err
	}
	e.d.mu.Lock()
	e.s.SetAttr("value", "")
	e.d.mu.Unlock()
	return nil
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	if err := e.d.record(Event{Action: "type", Target: e.target(), Value: text}); err != nil {
		return err
	}
	e.d.mu.Lock()
	v, _ := e.s.Attr("value")
	e.s.SetAttr("value", v+text)
	e.d.mu.Unlock()
	return nil
}

func (e *element) SetFiles(ctx context.Context, paths ...string) error {
	if err := e.d.record(Event{Action: "files", Target: e.target(), Value: strings.Join(paths, ",")}); err != nil {
		return err
	}
	e.d.mu.Lock()
	hook := e.d.onFiles
	e.d.mu.Unlock()
	if hook != nil {
		hook(e.d, paths)
	}
	return nil
}
