package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var ErrExpired = errors.New("refresh token expired")

const tokenLength = 32

// Manager handles refresh token creation, validation, and rotation
type Manager struct {
	repo   Repo
	expiry time.Duration
}

func NewManager(repo Repo, expiry time.Duration) (*Manager, error) {
	if repo == nil {
		return nil, fmt.Errorf("[NewManager] repo is required")
	}
	if expiry <= 0 {
		return nil, fmt.Errorf("[NewManager] expiry must be positive")
	}
	return &Manager{repo: repo, expiry: expiry}, nil
}

// Create generates a new refresh token for a login session and stores it.
func (m *Manager) Create(userID int64, sessionID string) (*StoredRefreshToken, error) {
	tokenBytes := make([]byte, tokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	rt := &StoredRefreshToken{
		Token:     hex.EncodeToString(tokenBytes),
		UserID:    userID,
		SessionID: sessionID,
		Iat:       NowTimeFunc(),
	}
	if err := m.repo.Upsert(rt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return rt, nil
}

// Rotate consumes token and issues its replacement within the same session.
// A token can be rotated once; replaying it fails with ErrNotFound.
func (m *Manager) Rotate(token string) (*StoredRefreshToken, error) {
	rt, err := m.repo.Get(token)
	if err != nil {
		return nil, err
	}
	if err := m.repo.Delete(token); err != nil {
		return nil, err
	}
	if m.IsExpired(rt) {
		return nil, ErrExpired
	}
	return m.Create(rt.UserID, rt.SessionID)
}

// RevokeSession deletes every refresh token of a single login session.
func (m *Manager) RevokeSession(userID int64, sessionID string) error {
	tokens, err := m.repo.ListByUserID(userID)
	if err != nil {
		return err
	}
	for _, rt := range tokens {
		if rt.SessionID == sessionID {
			_ = m.repo.Delete(rt.Token)
		}
	}
	return nil
}

// RevokeAllForUser deletes all of a user's refresh tokens and returns the
// session ids they belonged to.
func (m *Manager) RevokeAllForUser(userID int64) ([]string, error) {
	tokens, err := m.repo.ListByUserID(userID)
	if err != nil {
		return nil, err
	}
	sessions := make([]string, 0, len(tokens))
	for _, rt := range tokens {
		_ = m.repo.Delete(rt.Token)
		sessions = append(sessions, rt.SessionID)
	}
	return sessions, nil
}

// IsExpired checks if a refresh token is older than the configured lifetime
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return NowTimeFunc().Sub(rt.Iat) > m.expiry
}
