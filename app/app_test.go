package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ChristosG/finsmart-client/api"
	"github.com/ChristosG/finsmart-client/app"
	"github.com/ChristosG/finsmart-client/credentials"
	"github.com/ChristosG/finsmart-client/guard"
	"github.com/ChristosG/finsmart-client/internal/config"
	apperrors "github.com/ChristosG/finsmart-client/internal/errors"
	"github.com/ChristosG/finsmart-client/server"
	"github.com/stretchr/testify/require"
)

const password = "Secret123"

// gate holds refresh calls until ready reports true, so concurrent requests
// all queue behind one refresh.
type gate struct {
	base  http.RoundTripper
	ready atomic.Pointer[func() bool]
}

func (g *gate) RoundTrip(r *http.Request) (*http.Response, error) {
	if ready := g.ready.Load(); ready != nil && strings.HasSuffix(r.URL.Path, api.PathRefresh) {
		deadline := time.Now().Add(2 * time.Second)
		for !(*ready)() && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
	}
	return g.base.RoundTrip(r)
}

type testFixture struct {
	backend *server.Server
	ts      *httptest.Server
	app     *app.App
	gate    *gate
	history *guard.History
	folder  string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	return setupTestFixtureWithClearDelay(t, "1ms")
}

func setupTestFixtureWithClearDelay(t *testing.T, clearDelay string) *testFixture {
	t.Helper()
	folder := t.TempDir()
	t.Setenv("ENV", "TEST")
	t.Setenv("FOLDER", folder)
	t.Setenv("CLEAR_DELAY", clearDelay)
	t.Setenv("BOOTSTRAP_DELAY", "1ms")

	backend, err := server.New(config.New(), server.WithoutSeedData())
	require.NoError(t, err)
	ts := httptest.NewServer(backend)
	t.Cleanup(ts.Close)
	t.Setenv("API_BASE_URL", ts.URL)

	g := &gate{base: ts.Client().Transport}
	history := guard.NewHistory("/")
	a, err := app.New(config.New(), app.WithBaseTransport(g), app.WithNavigator(history))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	return &testFixture{backend: backend, ts: ts, app: a, gate: g, history: history, folder: folder}
}

func (f *testFixture) signup(t *testing.T) {
	t.Helper()
	require.NoError(t, f.app.Auth.Signup(context.Background(), api.SignupRequest{
		Username: "alice", Email: "alice@example.com", Password: password,
	}))
}

// breakAccessToken keeps the refresh token but swaps in an access token the
// backend will reject.
func (f *testFixture) breakAccessToken() {
	st := f.app.State
	st.AuthSucceeded(nil, "not-a-jwt", st.RefreshToken(), time.Hour)
}

func TestSignupPersistsCredentials(t *testing.T) {
	f := setupTestFixture(t)
	f.signup(t)

	require.True(t, f.app.State.IsAuthenticated())
	require.Equal(t, "alice", f.app.State.User().Username)

	tok, err := credentials.NewFileRepo(f.folder).Load()
	require.NoError(t, err)
	require.Equal(t, f.app.State.AccessToken(), tok.AccessToken)
}

func TestRejectedAccessTokenIsRefreshedAndRetried(t *testing.T) {
	f := setupTestFixture(t)
	f.signup(t)
	ctx := context.Background()

	_, err := f.app.Sources.Add(ctx, api.ScrapeRequest{SiteURL: "https://a.example.com", SourceName: "A", MaxArticles: 2})
	require.NoError(t, err)

	f.breakAccessToken()
	got, err := f.app.Sources.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(1), f.backend.RefreshCount())
	require.NotEqual(t, "not-a-jwt", f.app.State.AccessToken())
}

func TestConcurrentRequestsShareOneRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.signup(t)
	f.breakAccessToken()

	const n = 5
	ready := func() bool { return f.app.Refresh.QueueLen() == n }
	f.gate.ready.Store(&ready)

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.app.API.ListSources(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int64(1), f.backend.RefreshCount())
}

func TestFailedRefreshClearsSessionAndRemembersLocation(t *testing.T) {
	f := setupTestFixture(t)
	f.signup(t)
	f.history.Navigate("/sources/3")

	f.app.State.AuthSucceeded(nil, "not-a-jwt", "stale-refresh-token", time.Hour)

	_, err := f.app.API.ListSources(context.Background())
	require.ErrorIs(t, err, apperrors.ErrRefreshFailed)

	require.Eventually(t, func() bool { return !f.app.State.IsAuthenticated() }, time.Second, 5*time.Millisecond)
	require.Equal(t, "/sources/3", f.app.State.ReturnURL())
	_, err = credentials.NewFileRepo(f.folder).Load()
	require.ErrorIs(t, err, credentials.ErrNoCredentials)
}

func TestLoginAfterFailedRefreshSurvivesDeferredClear(t *testing.T) {
	f := setupTestFixtureWithClearDelay(t, "100ms")
	f.signup(t)
	ctx := context.Background()

	f.app.State.AuthSucceeded(nil, "not-a-jwt", "stale-refresh-token", time.Hour)
	_, err := f.app.API.ListSources(ctx)
	require.ErrorIs(t, err, apperrors.ErrRefreshFailed)

	require.NoError(t, f.app.Auth.Login(ctx, api.LoginRequest{EmailOrUsername: "alice", Password: password}))
	time.Sleep(200 * time.Millisecond)

	require.True(t, f.app.State.IsAuthenticated())
	tok, err := credentials.NewFileRepo(f.folder).Load()
	require.NoError(t, err)
	require.Equal(t, f.app.State.AccessToken(), tok.AccessToken)

	_, err = f.app.API.ListSources(ctx)
	require.NoError(t, err)
}

func TestLogoutWithBackendDownStillClears(t *testing.T) {
	f := setupTestFixture(t)
	f.signup(t)
	_, err := f.app.Sources.Add(context.Background(), api.ScrapeRequest{SiteURL: "https://a.example.com", MaxArticles: 1})
	require.NoError(t, err)
	_, err = f.app.Sources.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, f.app.Sources.Sources(), 1)

	f.ts.Close()
	f.app.Logout(context.Background())

	require.False(t, f.app.State.IsAuthenticated())
	require.Empty(t, f.app.Sources.Sources())
	_, err = credentials.NewFileRepo(f.folder).Load()
	require.ErrorIs(t, err, credentials.ErrNoCredentials)

	// Second logout is a no-op.
	f.app.Logout(context.Background())
	require.False(t, f.app.State.IsAuthenticated())
}

func TestStartRestoresStoredSession(t *testing.T) {
	f := setupTestFixture(t)
	f.signup(t)
	f.app.Close()

	restarted, err := app.New(config.New(), app.WithBaseTransport(f.gate))
	require.NoError(t, err)
	t.Cleanup(restarted.Close)
	require.True(t, restarted.State.Loading())

	done := restarted.Start(context.Background())
	require.True(t, restarted.State.IsAuthenticated())
	require.Nil(t, restarted.State.User())

	require.NoError(t, <-done)
	require.Equal(t, "alice", restarted.State.User().Username)
	require.Equal(t, guard.ViewProtected, restarted.Guard.Evaluate().View)
}

func TestSessionEndDropsCachedArticles(t *testing.T) {
	f := setupTestFixture(t)
	f.signup(t)
	ctx := context.Background()
	<-f.app.Start(ctx)

	scraped, err := f.app.Sources.Add(ctx, api.ScrapeRequest{SiteURL: "https://a.example.com", MaxArticles: 2})
	require.NoError(t, err)
	page, err := f.app.Articles.FetchAll(ctx, 1, 10, false)
	require.NoError(t, err)
	require.Len(t, page.Articles, 2)
	require.NotZero(t, scraped.SourceID)

	f.app.State.Clear("")
	require.Eventually(t, func() bool { return len(f.app.Articles.All().Articles) == 0 }, time.Second, 5*time.Millisecond)
}
