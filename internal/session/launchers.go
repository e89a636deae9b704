package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ibeckermayer/postbot/internal/browser"
	"github.com/ibeckermayer/postbot/internal/config"
	"github.com/ibeckermayer/postbot/internal/store"
	"github.com/ibeckermayer/postbot/internal/wait"
)

const (
	containerReadyTimeout  = time.Minute
	containerReadyInterval = time.Second
)

// Launcher starts a driver for one engine.
type Launcher func(ctx context.Context) (browser.Driver, error)

// Launchers holds one launcher per engine. A nil launcher makes that
// engine fail.
type Launchers struct {
	Chrome            Launcher
	Docker            Launcher
	RemoteChrome      Launcher
	RemoteBrowserless Launcher
	Reconnect         func(ctx context.Context, rec store.SessionRecord) (browser.Driver, error)
}

// For returns the launcher for engine, or nil.
func (l Launchers) For(engine string) Launcher {
	switch engine {
	case config.BrowserChrome:
		return l.Chrome
	case config.BrowserDocker:
		return l.Docker
	case config.BrowserRemoteChrome:
		return l.RemoteChrome
	case config.BrowserRemoteBrowserless:
		return l.RemoteBrowserless
	}
	return nil
}

// DefaultLaunchers drives real browsers as configured.
func DefaultLaunchers(cfg *config.Config) Launchers {
	timeout := cfg.Timing.ActionTimeout()
	withTimeout := func(c *browser.Chrome, err error) (browser.Driver, error) {
		if err != nil {
			return nil, err
		}
		if timeout > 0 {
			c.ActionTimeout = timeout
		}
		return c, nil
	}

	return Launchers{
		Chrome: func(ctx context.Context) (browser.Driver, error) {
			return withTimeout(browser.LaunchLocal(browser.LocalOptions{
				ShowWindow:    cfg.ShowWindow,
				DebuggingPort: cfg.Chrome.RemoteDebuggingPort,
				ExecPath:      cfg.Chrome.ExecPath,
				UserDataDir:   cfg.Chrome.UserDataDir,
			}))
		},
		Docker: func(ctx context.Context) (browser.Driver, error) {
			return withTimeout(launchContainer(ctx, cfg.Docker.Image))
		},
		RemoteChrome: func(ctx context.Context) (browser.Driver, error) {
			base := fmt.Sprintf("http://%s:%d", cfg.Remote.Host, cfg.Remote.Port)
			info, err := browser.NewProber().Version(ctx, base)
			if err != nil {
				return nil, err
			}
			return withTimeout(browser.ConnectRemote(info.WebSocketDebuggerURL, "", false))
		},
		RemoteBrowserless: func(ctx context.Context) (browser.Driver, error) {
			endpoint := fmt.Sprintf("ws://%s:%d", cfg.Remote.Host, cfg.Remote.Port)
			return withTimeout(browser.ConnectRemote(endpoint, "", false))
		},
		Reconnect: func(ctx context.Context, rec store.SessionRecord) (browser.Driver, error) {
			// a bare host:port needs /json/version discovery; a full
			// devtools URL is used as is
			discover := !strings.Contains(rec.Endpoint, "/devtools/")
			return withTimeout(browser.ConnectRemote(rec.Endpoint, rec.SessionID, discover))
		},
	}
}

func launchContainer(ctx context.Context, img string) (*browser.Chrome, error) {
	launcher, err := browser.NewContainerLauncher(img)
	if err != nil {
		return nil, err
	}
	if err := launcher.EnsureImage(ctx); err != nil {
		launcher.Close()
		return nil, err
	}

	ctr, err := launcher.Launch(ctx, wait.NewBudget(containerReadyTimeout, containerReadyInterval))
	if err != nil {
		launcher.Close()
		return nil, err
	}

	c, err := browser.ConnectRemote(ctr.Endpoint, "", true)
	if err != nil {
		if serr := launcher.Stop(context.WithoutCancel(ctx), ctr.ID); serr != nil {
			slog.WarnContext(ctx, "failed to stop browser container", "container", ctr.Name, "err", serr)
		}
		launcher.Close()
		return nil, err
	}

	c.OnClose = func(ctx context.Context) error {
		defer launcher.Close()
		return launcher.Stop(ctx, ctr.ID)
	}
	return c, nil
}
