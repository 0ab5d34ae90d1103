// Package refresh coalesces concurrent token refreshes into a single backend
// call whose outcome every waiting caller shares.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ChristosG/finsmart-client/api"
	apperrors "github.com/ChristosG/finsmart-client/internal/errors"
	"github.com/ChristosG/finsmart-client/internal/metrics"
	"github.com/ChristosG/finsmart-client/users"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoRefreshToken = apperrors.ErrNoRefreshToken
	ErrRefreshFailed  = apperrors.ErrRefreshFailed
)

// Refresher calls the backend refresh endpoint. *api.Client satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*api.AuthResponse, error)
}

// Session is the slice of sessions.State the coordinator drives.
type Session interface {
	RefreshToken() string
	BeginLoading()
	AuthSucceeded(user *users.User, accessToken, refreshToken string, expiresIn time.Duration)
	RefreshFailed()
	Generation() uint64
	ClearIfGeneration(gen uint64, preserveReturnURLFrom string) bool
}

// Locator reports where the user currently is, recorded as the return URL
// when a failed refresh drops the session.
type Locator interface {
	Location() string
}

type LocatorFunc func() string

func (f LocatorFunc) Location() string { return f() }

type result struct {
	token string
	err   error
}

// Coordinator guarantees at most one refresh call in flight. Callers that
// arrive while one is running wait for it and receive the same result.
type Coordinator struct {
	refresher Refresher
	session   Session
	locator   Locator

	clearDelay time.Duration
	timeout    time.Duration
	retries    int
	backoff    time.Duration
	afterFunc  func(d time.Duration, f func())

	mu       sync.Mutex
	inFlight bool
	waiters  []chan result
}

type Option func(*Coordinator)

func WithLocator(l Locator) Option {
	return func(c *Coordinator) {
		c.locator = l
	}
}

// WithClearDelay sets how long after a failed refresh the session is cleared.
func WithClearDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		c.clearDelay = d
	}
}

// WithTimeout bounds a single refresh attempt, retries included.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// WithTransientRetries retries refresh calls that failed before the backend
// answered (connection refused, timeouts). Any response from the backend,
// including 5xx, is final. n=0 treats every failure as fatal.
func WithTransientRetries(n int, backoff time.Duration) Option {
	return func(c *Coordinator) {
		c.retries = n
		c.backoff = backoff
	}
}

// WithAfterFunc replaces time.AfterFunc for scheduling the deferred clear.
func WithAfterFunc(fn func(d time.Duration, f func())) Option {
	return func(c *Coordinator) {
		c.afterFunc = fn
	}
}

func NewCoordinator(refresher Refresher, session Session, opts ...Option) *Coordinator {
	c := &Coordinator{
		refresher:  refresher,
		session:    session,
		locator:    LocatorFunc(func() string { return "" }),
		clearDelay: 50 * time.Millisecond,
		timeout:    30 * time.Second,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureFreshToken returns a newly minted access token, starting a refresh
// if none is running or joining the one in flight. A caller whose ctx ends
// stops waiting but does not cancel the refresh for the others.
func (c *Coordinator) EnsureFreshToken(ctx context.Context) (string, error) {
	ch := make(chan result, 1)

	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	leader := !c.inFlight
	c.inFlight = true
	c.mu.Unlock()

	if leader {
		go c.run(context.WithoutCancel(ctx))
	}

	select {
	case res := <-ch:
		return res.token, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// QueueLen is the number of callers waiting on the refresh in flight.
func (c *Coordinator) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// InFlight reports whether a refresh is running.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func (c *Coordinator) run(ctx context.Context) {
	// A login that lands after this point owns the session; the deferred
	// clear must leave it alone.
	gen := c.session.Generation()
	res := c.refresh(ctx)

	if res.err != nil {
		c.session.RefreshFailed()
		c.afterFunc(c.clearDelay, func() {
			if !c.session.ClearIfGeneration(gen, c.locator.Location()) {
				log.Debug().Msg("Session re-established since the refresh failed, keeping it")
				return
			}
			metrics.SessionClears.WithLabelValues("refresh_failed").Inc()
		})
	}

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.inFlight = false
	c.mu.Unlock()

	metrics.RefreshWaiters.Observe(float64(len(waiters) - 1))
	for _, w := range waiters {
		w <- res
	}
}

func (c *Coordinator) refresh(ctx context.Context) result {
	refreshToken := c.session.RefreshToken()
	if refreshToken == "" {
		log.Debug().Msg("No refresh token available, user needs to login")
		metrics.RefreshTotal.WithLabelValues(metrics.ResultNoToken).Inc()
		return result{err: ErrNoRefreshToken}
	}

	c.session.BeginLoading()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.callWithRetries(ctx, refreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("Token refresh failed")
		metrics.RefreshTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return result{err: fmt.Errorf("%w: %w", ErrRefreshFailed, err)}
	}

	c.session.AuthSucceeded(resp.User, resp.AccessToken, resp.RefreshToken, resp.ExpiresInDuration())
	metrics.RefreshTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	return result{token: resp.AccessToken}
}

func (c *Coordinator) callWithRetries(ctx context.Context, refreshToken string) (*api.AuthResponse, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.refresher.Refresh(ctx, refreshToken)
		if err == nil {
			return resp, nil
		}
		if attempt >= c.retries || !isTransient(err) || ctx.Err() != nil {
			return nil, err
		}

		metrics.RefreshTotal.WithLabelValues(metrics.ResultRetry).Inc()
		log.Debug().Err(err).Int("attempt", attempt+1).Msg("Retrying token refresh")

		select {
		case <-time.After(c.backoff * time.Duration(attempt+1)):
		case <-ctx.Done():
			return nil, err
		}
	}
}

// isTransient is true for errors raised before any response was received.
func isTransient(err error) bool {
	var apiErr *api.Error
	return !apperrors.As(err, &apiErr)
}
