package browser

import (
	"context"
	"errors"
	"strings"
)

// ErrClosed is returned by a driver after Close.
var ErrClosed = errors.New("browser session closed")

// By selects how a selector string is interpreted by FindAll.
type By int

const (
	// ByID matches the element whose id attribute equals the selector.
	ByID By = iota
	// ByClass treats the selector as a list of class names.
	ByClass
	// ByQuery treats the selector as a CSS selector.
	ByQuery
)

func (b By) String() string {
	switch b {
	case ByID:
		return "id"
	case ByClass:
		return "class"
	case ByQuery:
		return "query"
	}
	return "unknown"
}

// Driver is the set of commands postbot issues against a live browser tab.
// Implementations are not required to be safe for concurrent use; the
// session manager serializes access.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	Reload(ctx context.Context) error
	Evaluate(ctx context.Context, expression string, res any) error
	FindAll(ctx context.Context, by By, selector string) ([]Element, error)

	// SessionID identifies the tab so a later process can attach to it.
	SessionID() string
	// Endpoint is the DevTools address the tab is reachable at, or "" for a
	// browser that cannot be reattached.
	Endpoint() string
	Close(ctx context.Context) error
}

// Element is a live handle to one DOM node. Handles go stale as soon as
// the page changes and are never cached.
type Element interface {
	// Identity is stable for the same node within one document.
	Identity() string
	Text(ctx context.Context) (string, error)
	Visible(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)
	Click(ctx context.Context) error
	Clear(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	SetFiles(ctx context.Context, paths ...string) error
}

// ClassSelector turns a space separated list of class names into a CSS
// selector. It reports false when the input is not a plain class list.
func ClassSelector(classes string) (string, bool) {
	fields := strings.Fields(classes)
	if len(fields) == 0 {
		return "", false
	}
	var b strings.Builder
	for _, f := range fields {
		for _, r := range f {
			ok := r == '-' || r == '_' ||
				(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
			if !ok {
				return "", false
			}
		}
		b.WriteByte('.')
		b.WriteString(f)
	}
	return b.String(), true
}

// IDSelector returns a CSS attribute selector matching id exactly.
func IDSelector(id string) string {
	return `[id="` + strings.ReplaceAll(id, `"`, `\"`) + `"]`
}
