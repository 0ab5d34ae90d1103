// Package app assembles the client: credential storage, session state, the
// refresh coordinator, the authenticating transport and the data stores.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ChristosG/finsmart-client/api"
	"github.com/ChristosG/finsmart-client/articles"
	"github.com/ChristosG/finsmart-client/auth"
	"github.com/ChristosG/finsmart-client/credentials"
	"github.com/ChristosG/finsmart-client/guard"
	"github.com/ChristosG/finsmart-client/interceptor"
	"github.com/ChristosG/finsmart-client/internal/config"
	"github.com/ChristosG/finsmart-client/internal/metrics"
	"github.com/ChristosG/finsmart-client/sessions"
	"github.com/ChristosG/finsmart-client/sessions/refresh"
	"github.com/ChristosG/finsmart-client/sources"
	"github.com/rs/zerolog/log"
)

type App struct {
	Config      config.Config
	Credentials credentials.Repo
	State       *sessions.State
	API         *api.Client
	Refresh     *refresh.Coordinator
	Auth        *auth.Service
	Guard       *guard.Guard
	Navigator   guard.Navigator
	Sources     *sources.Store
	Articles    *articles.Store

	bootstrapper *auth.Bootstrapper

	mu          sync.Mutex
	unsubscribe func()
}

type options struct {
	repo      credentials.Repo
	transport http.RoundTripper
	now       func() time.Time
	navigator guard.Navigator
}

type Option func(*options)

// WithCredentialsRepo replaces the file store under the configured folder.
func WithCredentialsRepo(repo credentials.Repo) Option {
	return func(o *options) {
		o.repo = repo
	}
}

// WithBaseTransport sets the transport beneath the authenticating one.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func WithNavigator(nav guard.Navigator) Option {
	return func(o *options) {
		o.navigator = nav
	}
}

func New(cfg config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("[app.New] config is required")
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.repo == nil {
		o.repo = credentials.NewFileRepo(cfg.GetDataFolder())
	}
	if o.transport == nil {
		o.transport = http.DefaultTransport
	}
	if o.navigator == nil {
		o.navigator = guard.NewHistory("/")
	}

	metrics.Init()

	state := sessions.NewState(o.repo, sessions.WithNowFunc(o.now))
	locator := refresh.LocatorFunc(o.navigator.Location)

	// The refresh call goes out on a plain client so a 401 from the refresh
	// endpoint never re-enters the interceptor.
	refreshClient := api.NewClient(cfg.GetAPIBaseURL(),
		api.WithHTTPClient(&http.Client{Transport: o.transport, Timeout: cfg.GetRequestTimeout()}))

	coordinator := refresh.NewCoordinator(refreshClient, state,
		refresh.WithLocator(locator),
		refresh.WithClearDelay(cfg.GetClearDelay()),
		refresh.WithTimeout(cfg.GetRefreshTimeout()),
		refresh.WithTransientRetries(cfg.GetRefreshRetries(), cfg.GetRefreshRetryBackoff()),
	)

	transport := &interceptor.Transport{
		Base:      o.transport,
		Session:   state,
		Refresher: coordinator,
		Locator:   locator,
	}
	client := api.NewClient(cfg.GetAPIBaseURL(),
		api.WithHTTPClient(&http.Client{Transport: transport, Timeout: cfg.GetRequestTimeout()}),
		api.WithRateLimit(cfg.GetRequestsPerSecond()),
	)

	service, err := auth.NewService(client, state, coordinator)
	if err != nil {
		return nil, fmt.Errorf("[app.New] %w", err)
	}

	a := &App{
		Config:       cfg,
		Credentials:  o.repo,
		State:        state,
		API:          client,
		Refresh:      coordinator,
		Auth:         service,
		Guard:        guard.New(state, o.navigator),
		Navigator:    o.navigator,
		Sources:      sources.NewStore(client),
		Articles:     articles.NewStore(client, articles.WithNowFunc(o.now)),
		bootstrapper: auth.NewBootstrapper(state, service, cfg.GetBootstrapDelay()),
	}
	a.Sources.OnRefreshed(a.Articles.MarkStale)
	return a, nil
}

// Start restores any stored session and begins dropping cached data whenever
// the session ends. The channel reports the background session validation.
func (a *App) Start(ctx context.Context) <-chan error {
	a.watchSession()
	return a.bootstrapper.Start(ctx)
}

// Close stops the session watcher.
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
}

func (a *App) Logout(ctx context.Context) {
	a.Auth.Logout(ctx)
	a.resetStores()
}

func (a *App) LogoutAll(ctx context.Context) {
	a.Auth.LogoutAll(ctx)
	a.resetStores()
}

func (a *App) watchSession() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unsubscribe != nil {
		return
	}

	updates, cancel := a.State.Subscribe()
	a.unsubscribe = cancel
	go func() {
		wasAuthenticated := a.State.IsAuthenticated()
		for s := range updates {
			if wasAuthenticated && !s.IsAuthenticated {
				log.Debug().Msg("Session ended, dropping cached data")
				a.resetStores()
			}
			wasAuthenticated = s.IsAuthenticated
		}
	}()
}

func (a *App) resetStores() {
	a.Sources.Reset()
	a.Articles.ResetAll()
}
