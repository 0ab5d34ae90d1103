// Package interceptor provides the http.RoundTripper that attaches the bearer
// token to outgoing calls and recovers from 401s with a single refresh-and-retry.
package interceptor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ChristosG/finsmart-client/api"
	apperrors "github.com/ChristosG/finsmart-client/internal/errors"
	"github.com/ChristosG/finsmart-client/internal/metrics"
	"github.com/ChristosG/finsmart-client/sessions/refresh"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

type retriedKey struct{}

// WithRetried marks requests built from ctx as already retried once.
func WithRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

func IsRetried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}

// Session is what the transport needs from sessions.State.
type Session interface {
	Token() *oauth2.Token
	Clear(preserveReturnURLFrom string)
}

// TokenRefresher is satisfied by *refresh.Coordinator.
type TokenRefresher interface {
	EnsureFreshToken(ctx context.Context) (string, error)
}

var _ http.RoundTripper = (*Transport)(nil)

type Transport struct {
	Base      http.RoundTripper // http.DefaultTransport when nil
	Session   Session
	Refresher TokenRefresher
	Locator   refresh.Locator // optional
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req
	if req.Header.Get("Authorization") == "" {
		if tok := t.Session.Token(); tok != nil {
			out = req.Clone(req.Context())
			tok.SetAuthHeader(out)
		}
	}

	resp, err := t.base().RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	path := req.URL.Path
	switch {
	case IsRetried(req.Context()):
		return resp, nil
	case isCredentialsPath(path):
		// Wrong password is reported to the user, it never triggers a refresh.
		return resp, nil
	case strings.Contains(path, api.PathRefresh):
		log.Debug().Msg("Refresh endpoint rejected the refresh token, clearing session")
		metrics.SessionClears.WithLabelValues("refresh_unauthorized").Inc()
		t.Session.Clear(t.location())
		return resp, nil
	}

	body, err := rewindBody(req)
	if err != nil {
		drain(resp)
		return nil, err
	}
	drain(resp)

	token, err := t.Refresher.EnsureFreshToken(req.Context())
	if err != nil {
		if body != nil {
			body.Close()
		}
		if !apperrors.Is(err, apperrors.ErrRefreshFailed) {
			err = fmt.Errorf("%w: %w", apperrors.ErrRefreshFailed, err)
		}
		return nil, err
	}

	retry := req.Clone(WithRetried(req.Context()))
	retry.Body = body
	retry.Header.Set("Authorization", "Bearer "+token)
	metrics.RequestRetries.Inc()
	log.Debug().Str("method", req.Method).Str("path", path).Msg("Retrying request with refreshed token")
	return t.base().RoundTrip(retry)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) location() string {
	if t.Locator == nil {
		return ""
	}
	return t.Locator.Location()
}

func isCredentialsPath(path string) bool {
	return strings.Contains(path, api.PathLogin) || strings.Contains(path, api.PathSignup)
}

// rewindBody returns a fresh copy of the request body for a resubmission.
func rewindBody(req *http.Request) (io.ReadCloser, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, apperrors.ErrBodyNotReplayable)
	}
	return req.GetBody()
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()
}
