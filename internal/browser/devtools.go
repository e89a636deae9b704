package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ibeckermayer/postbot/internal/wait"
)

// ErrNotReady is returned when a DevTools endpoint never answers.
var ErrNotReady = errors.New("devtools endpoint not ready")

// VersionInfo is the payload of a DevTools /json/version response.
type VersionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Prober checks DevTools HTTP endpoints.
type Prober struct {
	client *resty.Client
}

// NewProber creates a prober with a short per-request timeout.
func NewProber() *Prober {
	return &Prober{
		client: resty.New().
			SetTimeout(5 * time.Second).
			SetHeader("Accept", "application/json"),
	}
}

// Version fetches /json/version from an http(s) or ws(s) base address.
func (p *Prober) Version(ctx context.Context, base string) (*VersionInfo, error) {
	url := httpBase(base) + "/json/version"

	var info VersionInfo
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&info).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", url, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("unexpected status from %s: %s", url, resp.Status())
	}
	if info.WebSocketDebuggerURL == "" {
		return nil, fmt.Errorf("no websocket debugger url in %s", url)
	}
	return &info, nil
}

// WaitReady polls Version until it succeeds or the budget runs out.
func (p *Prober) WaitReady(ctx context.Context, base string, b wait.Budget) (*VersionInfo, error) {
	var info *VersionInfo
	err := wait.Until(ctx, b, func(ctx context.Context) bool {
		v, err := p.Version(ctx, base)
		if err != nil {
			slog.DebugContext(ctx, "devtools endpoint not ready", "base", base, "err", err)
			return false
		}
		info = v
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotReady, base, err)
	}
	return info, nil
}

func httpBase(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "ws://"):
		return "http://" + strings.TrimPrefix(base, "ws://")
	case strings.HasPrefix(base, "wss://"):
		return "https://" + strings.TrimPrefix(base, "wss://")
	case strings.HasPrefix(base, "http://"), strings.HasPrefix(base, "https://"):
		return base
	}
	return "http://" + base
}
