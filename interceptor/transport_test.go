package interceptor_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ChristosG/finsmart-client/api"
	credentialsrepofake "github.com/ChristosG/finsmart-client/credentials/repofake"
	"github.com/ChristosG/finsmart-client/interceptor"
	apperrors "github.com/ChristosG/finsmart-client/internal/errors"
	"github.com/ChristosG/finsmart-client/sessions"
	"github.com/ChristosG/finsmart-client/sessions/refresh"
	"github.com/ChristosG/finsmart-client/users"
	"github.com/stretchr/testify/require"
)

// backend accepts "Bearer A2" only and mints A2 on refresh.
type backend struct {
	refreshCalls atomic.Int32
	refreshGate  chan struct{}
	refreshFails bool
	sourceHits   atomic.Int32
	bodies       []string
	mu           sync.Mutex
}

func (b *backend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+api.PathRefresh, func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)
		if b.refreshGate != nil {
			<-b.refreshGate
		}
		if b.refreshFails {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Invalid refresh token"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(api.AuthResponse{AccessToken: "A2", RefreshToken: "R2", ExpiresIn: 900})
	})
	mux.HandleFunc("POST "+api.PathLogin, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Invalid credentials"}`)
	})
	mux.HandleFunc("GET "+api.PathSources, func(w http.ResponseWriter, r *http.Request) {
		b.sourceHits.Add(1)
		if r.Header.Get("Authorization") != "Bearer A2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode([]api.Source{{ID: 1, Name: "Reuters"}})
	})
	mux.HandleFunc("POST "+api.PathScrape, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.bodies = append(b.bodies, string(raw))
		b.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer A2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(api.ScrapeResponse{Success: true})
	})
	mux.HandleFunc("GET "+api.PathMe, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	return mux
}

type testFixture struct {
	backend     *backend
	store       *credentialsrepofake.FakeCredentialsRepo
	state       *sessions.State
	coordinator *refresh.Coordinator
	client      *api.Client
	srv         *httptest.Server
}

func newFixture(t *testing.T, b *backend) *testFixture {
	t.Helper()
	srv := httptest.NewServer(b.handler(t))
	t.Cleanup(srv.Close)

	store := credentialsrepofake.NewFakeCredentialsRepo()
	state := sessions.NewState(store)
	state.AuthSucceeded(&users.User{ID: 1, Username: "alice"}, "A1", "R1", time.Minute)

	locator := refresh.LocatorFunc(func() string { return "/sources/1" })

	// The coordinator uses its own plain client so refresh calls bypass the interceptor.
	plain := api.NewClient(srv.URL, api.WithHTTPClient(srv.Client()))
	coordinator := refresh.NewCoordinator(plain, state,
		refresh.WithLocator(locator),
		refresh.WithAfterFunc(func(time.Duration, func()) {}),
	)

	transport := &interceptor.Transport{
		Base:      srv.Client().Transport,
		Session:   state,
		Refresher: coordinator,
		Locator:   locator,
	}
	client := api.NewClient(srv.URL, api.WithHTTPClient(&http.Client{Transport: transport}))

	return &testFixture{backend: b, store: store, state: state, coordinator: coordinator, client: client, srv: srv}
}

func TestTransport_RefreshesAndRetriesOnce(t *testing.T) {
	f := newFixture(t, &backend{})

	sources, err := f.client.ListSources(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Reuters", sources[0].Name)

	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
	require.Equal(t, int32(2), f.backend.sourceHits.Load())
	require.Equal(t, "A2", f.state.AccessToken())

	// The fresh token is attached directly from now on.
	_, err = f.client.ListSources(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
	require.Equal(t, int32(3), f.backend.sourceHits.Load())
}

func TestTransport_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	const n = 6
	b := &backend{refreshGate: make(chan struct{})}
	f := newFixture(t, b)

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.client.ListSources(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return f.coordinator.QueueLen() == n }, 2*time.Second, time.Millisecond)
	close(b.refreshGate)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), b.refreshCalls.Load())
	require.Equal(t, int32(2*n), b.sourceHits.Load())
}

func TestTransport_SecondUnauthorizedIsReturned(t *testing.T) {
	f := newFixture(t, &backend{})

	_, err := f.client.Me(context.Background())
	require.True(t, api.IsUnauthorized(err))
	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
	require.True(t, f.state.IsAuthenticated())
}

func TestTransport_RefreshEndpointUnauthorizedClearsWithoutLoop(t *testing.T) {
	f := newFixture(t, &backend{refreshFails: true})

	_, err := f.client.Refresh(context.Background(), "R1")
	require.True(t, api.IsUnauthorized(err))

	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
	snap := f.state.Snapshot()
	require.False(t, snap.IsAuthenticated)
	require.Equal(t, "/sources/1", snap.ReturnURL)
	require.True(t, f.store.Empty())
}

func TestTransport_LoginUnauthorizedPassesThrough(t *testing.T) {
	f := newFixture(t, &backend{})

	_, err := f.client.Login(context.Background(), api.LoginRequest{EmailOrUsername: "alice", Password: "wrong"})
	require.Equal(t, "Invalid credentials", api.MessageOr(err, ""))
	require.Zero(t, f.backend.refreshCalls.Load())
	require.True(t, f.state.IsAuthenticated())
}

func TestTransport_ReplaysRequestBody(t *testing.T) {
	f := newFixture(t, &backend{})

	_, err := f.client.Scrape(context.Background(), api.ScrapeRequest{SiteURL: "https://example.com", SourceName: "Example", MaxArticles: 3})
	require.NoError(t, err)

	require.Len(t, f.backend.bodies, 2)
	require.Equal(t, f.backend.bodies[0], f.backend.bodies[1])
	require.Contains(t, f.backend.bodies[1], "https://example.com")
}

func TestTransport_NonReplayableBody(t *testing.T) {
	f := newFixture(t, &backend{})
	hc := &http.Client{Transport: &interceptor.Transport{
		Base: f.srv.Client().Transport, Session: f.state, Refresher: f.coordinator,
	}}

	req, err := http.NewRequest(http.MethodPost, f.srv.URL+api.PathScrape, io.NopCloser(strings.NewReader(`{}`)))
	require.NoError(t, err)
	require.Nil(t, req.GetBody)

	_, err = hc.Do(req)
	require.ErrorIs(t, err, apperrors.ErrBodyNotReplayable)
	require.Zero(t, f.backend.refreshCalls.Load())
}

func TestTransport_RefreshFailureSurfacesError(t *testing.T) {
	f := newFixture(t, &backend{refreshFails: true})

	_, err := f.client.ListSources(context.Background())
	require.ErrorIs(t, err, apperrors.ErrRefreshFailed)
	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
}

func TestTransport_KeepsExplicitAuthorization(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	t.Cleanup(srv.Close)

	state := sessions.NewState(credentialsrepofake.NewFakeCredentialsRepo())
	state.AuthSucceeded(nil, "A1", "R1", time.Minute)
	hc := &http.Client{Transport: &interceptor.Transport{Session: state}}

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer other")
	resp, err := hc.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "Bearer other", got)

	req, err = http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err = hc.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "Bearer A1", got)
	require.Empty(t, req.Header.Get("Authorization"))
}

func TestWithRetried(t *testing.T) {
	require.False(t, interceptor.IsRetried(context.Background()))
	require.True(t, interceptor.IsRetried(interceptor.WithRetried(context.Background())))
}
