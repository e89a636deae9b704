package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// DefaultActionTimeout bounds a single element command.
const DefaultActionTimeout = 15 * time.Second

// Chrome is a Driver backed by a chromedp tab.
type Chrome struct {
	ctx      context.Context
	cancel   context.CancelFunc
	release  context.CancelFunc
	endpoint string
	closed   atomic.Bool

	// ActionTimeout bounds each element command. Navigation is bounded by the
	// caller's context only.
	ActionTimeout time.Duration
	// OnClose runs after the tab is closed, e.g. to stop a container.
	OnClose func(ctx context.Context) error
}

// LaunchLocal starts a new Chrome process with the stealth options.
func LaunchLocal(lo LocalOptions) (*Chrome, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), Options(lo)...)

	endpoint := ""
	if lo.DebuggingPort > 0 {
		endpoint = fmt.Sprintf("ws://127.0.0.1:%d", lo.DebuggingPort)
	}
	return attach(allocCtx, allocCancel, endpoint)
}

// ConnectRemote attaches to a browser that is already running at endpoint.
// When targetID is set the new client is bound to that existing tab instead
// of opening a fresh one. discover lets chromedp resolve the websocket URL
// through /json/version; pass false for endpoints that are already a
// websocket address.
func ConnectRemote(endpoint, targetID string, discover bool) (*Chrome, error) {
	var allocOpts []chromedp.RemoteAllocatorOption
	if !discover {
		allocOpts = append(allocOpts, chromedp.NoModifyURL)
	}
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), endpoint, allocOpts...)

	var ctxOpts []chromedp.ContextOption
	if targetID != "" {
		ctxOpts = append(ctxOpts, chromedp.WithTargetID(target.ID(targetID)))
	}
	return attach(allocCtx, allocCancel, endpoint, ctxOpts...)
}

func attach(allocCtx context.Context, allocCancel context.CancelFunc, endpoint string, opts ...chromedp.ContextOption) (*Chrome, error) {
	ctx, cancel := chromedp.NewContext(allocCtx, opts...)

	// An empty Run allocates the browser and attaches to the tab.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	c := &Chrome{
		ctx:           ctx,
		cancel:        cancel,
		release:       allocCancel,
		endpoint:      endpoint,
		ActionTimeout: DefaultActionTimeout,
	}
	chromedp.ListenTarget(ctx, c.handleEvent)
	return c, nil
}

// handleEvent accepts native alert/confirm/beforeunload dialogs so they
// never block navigation. CDP calls must not run on the listener goroutine.
func (c *Chrome) handleEvent(ev any) {
	if e, ok := ev.(*page.EventJavascriptDialogOpening); ok {
		go func() {
			if err := chromedp.Run(c.ctx, page.HandleJavaScriptDialog(true)); err != nil {
				slog.Warn("failed to dismiss native dialog", "type", e.Type, "err", err)
				return
			}
			slog.Debug("dismissed native dialog", "type", e.Type, "message", e.Message)
		}()
	}
}

// run executes actions on the tab, cancelled when either ctx ends or the
// action timeout elapses.
func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if c.closed.Load() {
		return ErrClosed
	}
	runCtx := c.ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(c.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(c.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, 0, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (c *Chrome) Location(ctx context.Context) (string, error) {
	var url string
	if err := c.run(ctx, c.ActionTimeout, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return url, nil
}

func (c *Chrome) Reload(ctx context.Context) error {
	return c.run(ctx, 0, chromedp.Reload())
}

func (c *Chrome) Evaluate(ctx context.Context, expression string, res any) error {
	return c.run(ctx, c.ActionTimeout, chromedp.Evaluate(expression, res))
}

func (c *Chrome) FindAll(ctx context.Context, by By, selector string) ([]Element, error) {
	query := selector
	switch by {
	case ByID:
		query = IDSelector(selector)
	case ByClass:
		sel, ok := ClassSelector(selector)
		if !ok {
			return nil, nil
		}
		query = sel
	}

	var nodes []*cdp.Node
	err := c.run(ctx, c.ActionTimeout,
		chromedp.Nodes(query, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s %q: %w", by, selector, err)
	}

	elems := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elems = append(elems, &chromeElement{c: c, n: n})
	}
	return elems, nil
}

func (c *Chrome) SessionID() string {
	if cc := chromedp.FromContext(c.ctx); cc != nil && cc.Target != nil {
		return string(cc.Target.TargetID)
	}
	return ""
}

func (c *Chrome) Endpoint() string {
	return c.endpoint
}

func (c *Chrome) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := chromedp.Cancel(c.ctx)
	c.cancel()
	c.release()
	if c.OnClose != nil {
		if cerr := c.OnClose(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

const (
	textJS    = `function() { return ((this.innerText || this.value || this.textContent || '') + '').trim(); }`
	visibleJS = `function() { return !!(this.offsetWidth || this.offsetHeight || this.getClientRects().length); }`
	enabledJS = `function() { return !this.disabled && this.getAttribute('aria-disabled') !== 'true'; }`
	clickJS   = `function() { this.scrollIntoView({block: 'center'}); this.click(); }`
	clearJS   = `function() {
		if ('value' in this) { this.value = ''; } else { this.innerHTML = ''; }
		this.dispatchEvent(new Event('input', {bubbles: true}));
	}`
)

type chromeElement struct {
	c *Chrome
	n *cdp.Node
}

func (e *chromeElement) call(ctx context.Context, fn string, res any) error {
	return e.c.run(ctx, e.c.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return chromedp.CallFunctionOnNode(ctx, e.n, fn, res)
	}))
}

func (e *chromeElement) Identity() string {
	return strconv.FormatInt(int64(e.n.BackendNodeID), 10)
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var s string
	err := e.call(ctx, textJS, &s)
	return s, err
}

func (e *chromeElement) Visible(ctx context.Context) (bool, error) {
	var ok bool
	err := e.call(ctx, visibleJS, &ok)
	return ok, err
}

func (e *chromeElement) Enabled(ctx context.Context) (bool, error) {
	var ok bool
	err := e.call(ctx, enabledJS, &ok)
	return ok, err
}

func (e *chromeElement) Click(ctx context.Context) error {
	return e.call(ctx, clickJS, nil)
}

func (e *chromeElement) Clear(ctx context.Context) error {
	return e.call(ctx, clearJS, nil)
}

func (e *chromeElement) SendKeys(ctx context.Context, text string) error {
	return e.c.run(ctx, e.c.ActionTimeout, chromedp.KeyEventNode(e.n, text))
}

func (e *chromeElement) SetFiles(ctx context.Context, paths ...string) error {
	return e.c.run(ctx, e.c.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return dom.SetFileInputFiles(paths).WithNodeID(e.n.NodeID).Do(ctx)
	}))
}
