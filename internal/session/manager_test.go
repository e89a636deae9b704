package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/postbot/internal/browser"
	"github.com/ibeckermayer/postbot/internal/config"
	"github.com/ibeckermayer/postbot/internal/store"
	"github.com/ibeckermayer/postbot/internal/testutil"
	"github.com/ibeckermayer/postbot/internal/wait"
)

const home = "https://site.test"

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.BaseURL = home
	cfg.Timing.PollIntervalMillis = 1
	cfg.Timing.HomeTimeoutSeconds = 1
	return cfg
}

func serve(d *testutil.Driver) Launcher {
	return func(ctx context.Context) (browser.Driver, error) { return d, nil }
}

func fail(msg string) Launcher {
	return func(ctx context.Context) (browser.Driver, error) { return nil, errors.New(msg) }
}

type memStore struct {
	mu    sync.Mutex
	rec   *store.SessionRecord
	saves int
}

func (m *memStore) SaveSession(ctx context.Context, r store.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = &r
	m.saves++
	return nil
}

func (m *memStore) LoadSession(ctx context.Context) (store.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return store.SessionRecord{}, store.ErrNoSession
	}
	return *m.rec, nil
}

func TestSpawnFallsBackToNextEngine(t *testing.T) {
	d := testutil.NewDriver(testutil.HomePage)
	m := NewManager(testConfig(), WithLaunchers(Launchers{
		Chrome: fail("chrome not installed"),
		Docker: serve(d),
	}))
	require.Equal(t, Unspawned, m.State())

	sess, err := m.Spawn(context.Background())
	require.NoError(t, err)
	require.Equal(t, config.BrowserDocker, sess.Engine())
	require.Equal(t, Ready, m.State())
	require.Same(t, sess, m.Session())
}

func TestSpawnRemoteAutoOrder(t *testing.T) {
	var tried []string
	record := func(name string) Launcher {
		return func(ctx context.Context) (browser.Driver, error) {
			tried = append(tried, name)
			return nil, errors.New("refused")
		}
	}
	cfg := testConfig()
	cfg.BrowserType = config.BrowserRemoteAuto
	m := NewManager(cfg, WithLaunchers(Launchers{
		RemoteChrome:      record("remote-chrome"),
		RemoteBrowserless: record("remote-browserless"),
		Chrome:            record("chrome"),
	}))

	_, err := m.Spawn(context.Background())
	require.Error(t, err)
	require.Equal(t, []string{"remote-chrome", "remote-browserless"}, tried)
}

func TestSpawnFatal(t *testing.T) {
	m := NewManager(testConfig(), WithLaunchers(Launchers{
		Chrome: fail("no chrome"),
		Docker: fail("no docker"),
	}))

	_, err := m.Spawn(context.Background())
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	require.Len(t, fatal.Attempts, 2)
	require.Contains(t, err.Error(), "no docker")
	require.Equal(t, Unspawned, m.State())
	require.Nil(t, m.Session())
}

func TestSpawnIsIdempotent(t *testing.T) {
	calls := 0
	d := testutil.NewDriver(testutil.HomePage)
	cfg := testConfig()
	cfg.BrowserType = config.BrowserChrome
	m := NewManager(cfg, WithLaunchers(Launchers{
		Chrome: func(ctx context.Context) (browser.Driver, error) {
			calls++
			return d, nil
		},
	}))

	first, err := m.Spawn(context.Background())
	require.NoError(t, err)
	second, err := m.Spawn(context.Background())
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 1, calls)
}

func spawned(t *testing.T, html string) (*Manager, *testutil.Driver) {
	t.Helper()
	d := testutil.NewDriver(html)
	cfg := testConfig()
	cfg.BrowserType = config.BrowserChrome
	m := NewManager(cfg, WithLaunchers(Launchers{Chrome: serve(d)}))
	_, err := m.Spawn(context.Background())
	require.NoError(t, err)
	return m, d
}

func TestNavigateHomeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, d := spawned(t, testutil.HomePage)
	d.SetURL(home + "/")

	require.NoError(t, m.NavigateHome(ctx, false))
	require.NoError(t, m.NavigateHome(ctx, false))
	require.Equal(t, 0, d.Count("navigate", ""))
	require.Equal(t, []string{scrollTopJS, scrollTopJS}, d.Values("eval", ""))

	require.NoError(t, m.NavigateHome(ctx, true))
	require.Equal(t, []string{home}, d.Values("navigate", ""))
}

func TestNavigateHomeFromElsewhere(t *testing.T) {
	ctx := context.Background()
	m, d := spawned(t, testutil.HomePage)
	d.SetURL(home + "/my/settings")

	require.NoError(t, m.NavigateHome(ctx, false))
	require.Equal(t, 1, d.Count("navigate", ""))
}

func TestNavigateHomeTimesOut(t *testing.T) {
	ctx := context.Background()
	m, _ := spawned(t, `<html><body><div>loading</div></body></html>`)
	m.cfg.Timing.HomeTimeoutSeconds = 0

	err := m.NavigateHome(ctx, true)
	require.ErrorIs(t, err, wait.ErrTimeout)
}

func TestNavigateTo(t *testing.T) {
	ctx := context.Background()
	m, d := spawned(t, testutil.HomePage)

	require.NoError(t, m.NavigateTo(ctx, "/my/queue"))
	require.NoError(t, m.NavigateTo(ctx, "my/queue"))
	require.Equal(t, []string{home + "/my/queue"}, d.Values("navigate", ""))

	require.NoError(t, m.NavigateTo(ctx, "https://other.test/x"))
	require.Equal(t, 2, d.Count("navigate", ""))
}

func TestKeepAliveSavesAndSchedules(t *testing.T) {
	ctx := context.Background()
	st := &memStore{}
	d := testutil.NewDriver(testutil.HomePage).WithSession("T1", "ws://127.0.0.1:9222")
	cfg := testConfig()
	cfg.BrowserType = config.BrowserChrome
	cfg.KeepAlive = true
	m := NewManager(cfg, WithStore(st), WithLaunchers(Launchers{Chrome: serve(d)}))

	sess, err := m.Spawn(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.saves)
	require.Equal(t, store.SessionRecord{SessionID: "T1", Endpoint: "ws://127.0.0.1:9222", Engine: "chrome"}, *st.rec)

	require.NoError(t, m.Shutdown(ctx, true))
	t.Cleanup(m.StopKeepAlive)
	require.Equal(t, KeptAlive, m.State())
	require.True(t, sess.KeepAlive())
	require.False(t, d.Closed())
	require.Equal(t, 1, d.Count("navigate", ""))
	require.Len(t, m.KeepAliveJobs(), 1)
}

func TestKeepAliveWithoutEndpointIsNotSaved(t *testing.T) {
	st := &memStore{}
	d := testutil.NewDriver(testutil.HomePage).WithSession("T1", "")
	cfg := testConfig()
	cfg.BrowserType = config.BrowserChrome
	cfg.KeepAlive = true
	m := NewManager(cfg, WithStore(st), WithLaunchers(Launchers{Chrome: serve(d)}))

	_, err := m.Spawn(context.Background())
	require.NoError(t, err)
	require.Zero(t, st.saves)
}

func TestReconnect(t *testing.T) {
	ctx := context.Background()
	st := &memStore{rec: &store.SessionRecord{SessionID: "T9", Endpoint: "ws://grid:3000", Engine: "docker"}}
	d := testutil.NewDriver(testutil.HomePage)

	var got store.SessionRecord
	cfg := testConfig()
	cfg.BrowserType = config.BrowserReconnect
	cfg.KeepAlive = true
	m := NewManager(cfg, WithStore(st), WithLaunchers(Launchers{
		Reconnect: func(ctx context.Context, rec store.SessionRecord) (browser.Driver, error) {
			got = rec
			return d, nil
		},
	}))

	sess, err := m.Spawn(ctx)
	require.NoError(t, err)
	require.Equal(t, "T9", got.SessionID)
	require.Equal(t, "docker", sess.Engine())
	require.Zero(t, st.saves)
}

func TestReconnectWithoutSavedSession(t *testing.T) {
	cfg := testConfig()
	cfg.BrowserType = config.BrowserReconnect
	m := NewManager(cfg, WithStore(&memStore{}), WithLaunchers(Launchers{
		Reconnect: func(ctx context.Context, rec store.SessionRecord) (browser.Driver, error) {
			t.Fatal("reconnect without a record")
			return nil, nil
		},
	}))

	_, err := m.Spawn(context.Background())
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	require.ErrorIs(t, err, store.ErrNoSession)
}

func TestShutdownCloses(t *testing.T) {
	ctx := context.Background()
	m, d := spawned(t, testutil.HomePage)

	require.NoError(t, m.Shutdown(ctx, false))
	require.True(t, d.Closed())
	require.Equal(t, Closed, m.State())
	require.Nil(t, m.Session())
	require.ErrorIs(t, m.NavigateHome(ctx, false), ErrNotSpawned)

	// a second shutdown has nothing to do
	require.NoError(t, m.Shutdown(ctx, false))
}

func TestSessionElementsAreSerialized(t *testing.T) {
	ctx := context.Background()
	m, d := spawned(t, testutil.HomePage)
	sess := m.Session()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			el, err := sess.Elements().FindClickable(ctx, "send_button")
			if err == nil {
				_ = el.Click(ctx)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 8, d.Count("click", "send"))
}
