package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/ChristosG/finsmart-client/api"
	"github.com/ChristosG/finsmart-client/internal/config"
	"github.com/ChristosG/finsmart-client/token/jwt"
	"github.com/ChristosG/finsmart-client/token/keys"
	"github.com/ChristosG/finsmart-client/token/refresh"
	refreshrepofake "github.com/ChristosG/finsmart-client/token/refresh/repofake"
	"github.com/ChristosG/finsmart-client/users"
	"github.com/google/uuid"
)

var ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")

// Manager issues, rotates and revokes the token pairs handed out by the
// development backend.
type Manager struct {
	accounts     users.AccountRepo
	creator      *jwt.Creator
	inspector    *jwt.Inspector
	refresh      *refresh.Manager
	refreshRepo  refresh.Repo
	revokedCache RevokedTokenCache
	nowFunc      func() time.Time
}

type ManagerOption func(*Manager)

func WithRefreshRepo(repo refresh.Repo) ManagerOption {
	return func(m *Manager) {
		m.refreshRepo = repo
	}
}

func WithRevokedTokenCache(cache RevokedTokenCache) ManagerOption {
	return func(m *Manager) {
		m.revokedCache = cache
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func New(accounts users.AccountRepo, signer keys.Signer, cfg config.TokenConfig, options ...ManagerOption) (*Manager, error) {
	if accounts == nil {
		return nil, fmt.Errorf("[token.New] accounts is required")
	}
	if signer == nil {
		return nil, fmt.Errorf("[token.New] signer is required")
	}

	m := &Manager{accounts: accounts, nowFunc: time.Now}
	for _, opt := range options {
		opt(m)
	}
	if m.refreshRepo == nil {
		m.refreshRepo = refreshrepofake.NewFakeRefreshTokenRepo()
	}
	if m.revokedCache == nil {
		m.revokedCache = NewInMemoryRevokedTokenCache(m.nowFunc)
	}

	var err error
	if m.creator, err = jwt.NewCreator(signer, cfg.GetAccessTokenExpiry()); err != nil {
		return nil, err
	}
	if m.refresh, err = refresh.NewManager(m.refreshRepo, cfg.GetRefreshTokenExpiry()); err != nil {
		return nil, err
	}
	m.inspector = jwt.NewInspector(signer, m.revokedCache)
	return m, nil
}

// Issue starts a new login session for user and returns its first token pair.
func (m *Manager) Issue(user users.User) (*api.AuthResponse, error) {
	rt, err := m.refresh.Create(user.ID, uuid.New().String())
	if err != nil {
		return nil, err
	}
	return m.response(user, rt)
}

// Refresh rotates refreshToken and mints a new access token for the same session.
func (m *Manager) Refresh(refreshToken string) (*api.AuthResponse, error) {
	rt, err := m.refresh.Rotate(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}

	account, err := m.accounts.GetByID(rt.UserID)
	if err != nil {
		_ = m.refreshRepo.Delete(rt.Token)
		return nil, fmt.Errorf("user not found for refresh token: %w", err)
	}
	return m.response(account.User, rt)
}

// Authenticate verifies a bearer access token.
func (m *Manager) Authenticate(rawToken string) (*jwt.Claims, error) {
	return m.inspector.Introspect(rawToken)
}

// Logout ends the session the access token belongs to.
func (m *Manager) Logout(claims *jwt.Claims) error {
	if err := m.refresh.RevokeSession(claims.UserID, claims.SessionID); err != nil {
		return err
	}
	return m.revokedCache.Add(claims.SessionID, m.revocationHorizon())
}

// LogoutAll ends every session of the token's user.
func (m *Manager) LogoutAll(claims *jwt.Claims) error {
	sessions, err := m.refresh.RevokeAllForUser(claims.UserID)
	if err != nil {
		return err
	}
	sessions = append(sessions, claims.SessionID)
	horizon := m.revocationHorizon()
	for _, sid := range sessions {
		if err := m.revokedCache.Add(sid, horizon); err != nil {
			return err
		}
	}
	return nil
}

// CleanupRevokedTokens drops revocations whose tokens have expired anyway.
func (m *Manager) CleanupRevokedTokens() {
	m.revokedCache.Cleanup()
}

func (m *Manager) AccessTokenExpiry() time.Duration {
	return m.creator.Expiry()
}

func (m *Manager) response(user users.User, rt *refresh.StoredRefreshToken) (*api.AuthResponse, error) {
	access, err := m.creator.CreateAccessToken(user.ID, rt.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}
	return &api.AuthResponse{
		AccessToken:  access,
		RefreshToken: rt.Token,
		User:         &user,
		ExpiresIn:    int64(m.creator.Expiry().Seconds()),
	}, nil
}

// revocationHorizon is the point after which every access token issued now has expired.
func (m *Manager) revocationHorizon() time.Time {
	return m.nowFunc().Add(m.creator.Expiry())
}
