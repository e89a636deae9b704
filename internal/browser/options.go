// Package browser holds the driver port postbot talks to and its chromedp
// implementation, including the shared stealth allocator configuration.
package browser

import (
	"strconv"

	"github.com/chromedp/chromedp"
)

// DefaultUserAgent is a realistic Chrome user agent
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// LocalOptions configures a locally spawned Chrome.
type LocalOptions struct {
	ShowWindow bool
	// DebuggingPort exposes DevTools on 127.0.0.1 so the tab can be
	// reattached by a later process. Zero keeps the default pipe transport.
	DebuggingPort int
	ExecPath      string
	UserDataDir   string
}

// Options returns chromedp allocator options with anti-bot-detection measures.
// All browser instances should use this to ensure consistent stealth configuration.
func Options(lo LocalOptions) []chromedp.ExecAllocatorOption {
	headless := !lo.ShowWindow
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),

		// Prevent navigator.webdriver = true detection
		chromedp.Flag("disable-blink-features", "AutomationControlled"),

		chromedp.UserAgent(DefaultUserAgent),
		chromedp.WindowSize(1920, 1080),

		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	if headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	if lo.DebuggingPort > 0 {
		opts = append(opts,
			chromedp.Flag("remote-debugging-address", "127.0.0.1"),
			chromedp.Flag("remote-debugging-port", strconv.Itoa(lo.DebuggingPort)),
		)
	}
	if lo.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(lo.ExecPath))
	}
	if lo.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(lo.UserDataDir))
	}

	return opts
}
