// Package auth runs the user-facing authentication operations against the
// backend and records their outcome in the session state.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/ChristosG/finsmart-client/api"
	apperrors "github.com/ChristosG/finsmart-client/internal/errors"
	"github.com/ChristosG/finsmart-client/internal/metrics"
	"github.com/ChristosG/finsmart-client/sessions"
	"github.com/ChristosG/finsmart-client/users"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// API is the subset of *api.Client used for authentication.
type API interface {
	Signup(ctx context.Context, req api.SignupRequest) (*api.AuthResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error)
	Me(ctx context.Context) (*users.User, error)
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) error
}

// TokenRefresher is satisfied by *refresh.Coordinator.
type TokenRefresher interface {
	EnsureFreshToken(ctx context.Context) (string, error)
}

type Service struct {
	api       API
	state     *sessions.State
	refresher TokenRefresher
	meGroup   singleflight.Group
}

func NewService(client API, state *sessions.State, refresher TokenRefresher) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("[NewService] api client is required")
	}
	if state == nil {
		return nil, fmt.Errorf("[NewService] session state is required")
	}
	if refresher == nil {
		return nil, fmt.Errorf("[NewService] token refresher is required")
	}
	return &Service{api: client, state: state, refresher: refresher}, nil
}

// Signup registers a new account and signs it in.
func (s *Service) Signup(ctx context.Context, req api.SignupRequest) error {
	s.state.BeginAuthOperation()

	resp, err := s.api.Signup(ctx, req)
	if err != nil {
		msg := api.MessageOr(err, msgSignupFailed)
		s.state.AuthFailed(msg)
		return apperrors.Wrapf(err, "signup")
	}

	s.adopt(resp)
	log.Info().Str("username", req.Username).Msg("Signed up")
	return nil
}

// Login signs in with a username or email. A failure leaves any existing
// session untouched and records the backend's message as the session error.
func (s *Service) Login(ctx context.Context, req api.LoginRequest) error {
	if strings.TrimSpace(req.EmailOrUsername) == "" || req.Password == "" {
		s.state.AuthFailed(ErrMissingCredential.Error())
		return ErrMissingCredential
	}

	s.state.BeginAuthOperation()

	resp, err := s.api.Login(ctx, req)
	if err != nil {
		s.state.AuthFailed(api.MessageOr(err, msgLoginFailed))
		return apperrors.Wrapf(err, "login as %s", req.EmailOrUsername)
	}

	s.adopt(resp)
	log.Info().Str("login", req.EmailOrUsername).Msg("Logged in")
	return nil
}

// FetchCurrentUser loads the profile for the current token. Concurrent
// callers share one request.
func (s *Service) FetchCurrentUser(ctx context.Context) (*users.User, error) {
	v, err, _ := s.meGroup.Do("me", func() (any, error) {
		s.state.BeginLoading()

		user, err := s.api.Me(ctx)
		if err != nil {
			s.state.AuthFailed(api.MessageOr(err, msgUserInfoFails))
			return nil, err
		}
		s.state.UserLoaded(user)
		return user, nil
	})
	if err != nil {
		return nil, apperrors.Wrapf(err, "fetch current user")
	}
	return v.(*users.User), nil
}

// ValidateSession loads the profile of a hydrated session that has none yet.
// A 401 drops the session; other failures leave it as is. A failed refresh
// is left to the refresh coordinator, which schedules its own clear.
func (s *Service) ValidateSession(ctx context.Context) error {
	snap := s.state.Snapshot()
	if !snap.IsAuthenticated || snap.AccessToken == "" || snap.User != nil {
		return nil
	}

	user, err := s.api.Me(ctx)
	if err != nil {
		if api.IsUnauthorized(err) && !apperrors.Is(err, apperrors.ErrRefreshFailed) {
			metrics.SessionClears.WithLabelValues("unauthorized").Inc()
			s.state.Clear("")
		}
		log.Debug().Err(err).Msg("Session validation failed")
		return fmt.Errorf("%w: %w", ErrSessionValidation, err)
	}

	s.state.AttachUser(user)
	return nil
}

// Logout ends the session on the backend if it can and always clears it
// locally.
func (s *Service) Logout(ctx context.Context) {
	if err := s.api.Logout(ctx); err != nil {
		log.Warn().Err(err).Msg("Logout request failed, clearing session locally")
	}
	metrics.SessionClears.WithLabelValues("logout").Inc()
	s.state.Clear("")
}

// LogoutAll revokes every session of the user, then clears locally.
func (s *Service) LogoutAll(ctx context.Context) {
	if err := s.api.LogoutAll(ctx); err != nil {
		log.Warn().Err(err).Msg("Logout-all request failed, clearing session locally")
	}
	metrics.SessionClears.WithLabelValues("logout").Inc()
	s.state.Clear("")
}

// Refresh forces a token refresh through the shared coordinator.
func (s *Service) Refresh(ctx context.Context) (string, error) {
	return s.refresher.EnsureFreshToken(ctx)
}

func (s *Service) UpdateProfile(patch users.ProfilePatch) {
	s.state.UpdateUser(patch)
}

func (s *Service) adopt(resp *api.AuthResponse) {
	s.state.AuthSucceeded(resp.User, resp.AccessToken, resp.RefreshToken, resp.ExpiresInDuration())
}
