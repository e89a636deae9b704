package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/postbot/internal/browser"
	"github.com/ibeckermayer/postbot/internal/config"
	"github.com/ibeckermayer/postbot/internal/session"
	"github.com/ibeckermayer/postbot/internal/testutil"
)

const (
	home      = "https://site.test"
	googleURL = "https://accounts.google.test/signin"
	birdURL   = "https://api.twitter.test/oauth/authorize"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.BaseURL = home
	cfg.BrowserType = config.BrowserChrome
	cfg.Timing.PollIntervalMillis = 1
	cfg.Timing.HomeTimeoutSeconds = 1
	cfg.Timing.LoginTimeoutSeconds = 1
	cfg.Timing.CaptchaDelaySeconds = 0
	return cfg
}

func newSelector(t *testing.T, cfg *config.Config, d *testutil.Driver, opts ...Option) *Selector {
	t.Helper()
	m := session.NewManager(cfg, session.WithLaunchers(session.Launchers{
		Chrome: func(ctx context.Context) (browser.Driver, error) { return d, nil },
	}))
	sess, err := m.Spawn(context.Background())
	require.NoError(t, err)
	return NewSelector(cfg, m, sess.Elements(), opts...)
}

// providerHooks make the provider buttons open their forms and the final
// submit land back on the signed-in home page.
func providerHooks(d *testutil.Driver) {
	d.OnClick("login-google", func(d *testutil.Driver) {
		d.SetHTML(testutil.GoogleLoginPage)
		d.SetURL(googleURL)
	})
	d.OnClick("login-twitter", func(d *testutil.Driver) {
		d.SetHTML(testutil.TwitterLoginPage)
		d.SetURL(birdURL)
	})
	signedIn := func(d *testutil.Driver) {
		d.SetHTML(testutil.HomePage)
		d.SetURL(home)
	}
	d.OnClick("passwordNext", signedIn)
	d.OnClick("g-btn m-login", signedIn)
}

type fakePrompter struct {
	creds Credentials
	err   error
	asked []Method
}

func (p *fakePrompter) Prompt(ctx context.Context, m Method) (Credentials, error) {
	p.asked = append(p.asked, m)
	return p.creds, p.err
}

func TestAutoWithOnlyThirdStrategyConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Credentials["google"] = config.Credential{Username: "me@example.com", Password: "pw"}
	d := testutil.NewDriver(testutil.LoginPage)
	providerHooks(d)
	prompter := &fakePrompter{err: ErrNoTerminal}

	s := newSelector(t, cfg, d, WithPrompter(prompter))
	require.True(t, s.Authenticate(context.Background(), MethodAuto))

	// form and twitter were asked for credentials and gave up without
	// touching the page
	require.Equal(t, []Method{MethodForm, MethodTwitter}, prompter.asked)
	require.Zero(t, d.Count("type", "email"))
	require.Zero(t, d.Count("click", "login-twitter"))

	require.Equal(t, []string{"login-google", "identifierNext", "passwordNext"}, d.Clicked())
	require.Equal(t, []string{"me@example.com"}, d.Values("type", "identifierId"))
	require.Equal(t, []string{"pw"}, d.Values("type", "Passwd"))
}

func TestAlreadySignedIn(t *testing.T) {
	d := testutil.NewDriver(testutil.HomePage)
	d.SetURL(home)

	s := newSelector(t, testConfig(), d)
	require.True(t, s.Authenticate(context.Background(), MethodAuto))
	require.Empty(t, d.Clicked())
	require.Zero(t, d.Count("navigate", ""))
}

func TestNamedMethodRunsOnlyThatStrategy(t *testing.T) {
	cfg := testConfig()
	cfg.Credentials["google"] = config.Credential{Username: "g", Password: "g"}
	d := testutil.NewDriver(testutil.LoginPage)
	providerHooks(d)
	prompter := &fakePrompter{creds: Credentials{Username: "fan", Password: "secret"}}

	method, err := ParseMethod("primary")
	require.NoError(t, err)

	s := newSelector(t, cfg, d, WithPrompter(prompter))
	require.True(t, s.Authenticate(context.Background(), method))
	require.Equal(t, []Method{MethodForm}, prompter.asked)
	require.Equal(t, []string{"fan"}, d.Values("type", "email"))
	require.Equal(t, []string{"secret"}, d.Values("type", "password"))
	require.Equal(t, []string{"g-btn m-login"}, d.Clicked())
}

func TestNamedMethodDoesNotFallBack(t *testing.T) {
	cfg := testConfig()
	cfg.Credentials["google"] = config.Credential{Username: "g", Password: "g"}
	d := testutil.NewDriver(testutil.LoginPage)
	providerHooks(d)

	s := newSelector(t, cfg, d)
	require.False(t, s.Authenticate(context.Background(), MethodTwitter))
	require.Empty(t, d.Clicked())
}

func TestSignInTimesOut(t *testing.T) {
	cfg := testConfig()
	cfg.Timing.LoginTimeoutSeconds = 0
	cfg.Credentials["form"] = config.Credential{Username: "u", Password: "p"}
	// the submit button does nothing
	d := testutil.NewDriver(testutil.LoginPage)

	s := newSelector(t, cfg, d)
	require.False(t, s.Authenticate(context.Background(), MethodForm))
	require.Equal(t, 1, d.Count("click", "g-btn m-login"))
}

func TestBotChallengeProbe(t *testing.T) {
	cfg := testConfig()
	cfg.Credentials["twitter"] = config.Credential{Username: "bird", Password: "seed"}
	d := testutil.NewDriver(testutil.LoginPage)
	providerHooks(d)

	submits := 0
	d.OnClick("allow", func(d *testutil.Driver) {
		submits++
		if submits == 1 {
			d.Append("div.auth", `<span class="recaptcha-checkbox"></span>`)
			return
		}
		d.SetHTML(testutil.HomePage)
		d.SetURL(home)
	})

	s := newSelector(t, cfg, d)
	require.True(t, s.Authenticate(context.Background(), MethodTwitter))
	require.Equal(t, []string{"login-twitter", "allow", "recaptcha-checkbox", "allow"}, d.Clicked())
}

func TestPromptFailureIsNotFatal(t *testing.T) {
	d := testutil.NewDriver(testutil.LoginPage)
	prompter := &fakePrompter{err: errors.New("closed")}

	s := newSelector(t, testConfig(), d, WithPrompter(prompter))
	require.False(t, s.Authenticate(context.Background(), MethodAuto))
	require.Len(t, prompter.asked, 3)
	require.Empty(t, d.Clicked())
}

func TestParseMethod(t *testing.T) {
	cases := map[string]Method{
		"":        MethodAuto,
		"AUTO":    MethodAuto,
		"primary": MethodForm,
		"alt1":    MethodTwitter,
		"Twitter": MethodTwitter,
		"alt2":    MethodGoogle,
		"google":  MethodGoogle,
	}
	for in, want := range cases {
		got, err := ParseMethod(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseMethod("facebook")
	require.Error(t, err)
}
