package token_test

import (
	"testing"
	"time"

	"github.com/ChristosG/finsmart-client/token"
	"github.com/ChristosG/finsmart-client/token/jwt"
	"github.com/ChristosG/finsmart-client/token/keys"
	refreshrepofake "github.com/ChristosG/finsmart-client/token/refresh/repofake"
	"github.com/ChristosG/finsmart-client/users"
	fakeuserrepo "github.com/ChristosG/finsmart-client/users/repofake"
	"github.com/stretchr/testify/require"
)

type tokenConfig struct {
	access, refresh time.Duration
}

func (c tokenConfig) GetJWTSecret() string                 { return "test-secret" }
func (c tokenConfig) GetAccessTokenExpiry() time.Duration  { return c.access }
func (c tokenConfig) GetRefreshTokenExpiry() time.Duration { return c.refresh }

type testFixture struct {
	manager  *token.Manager
	refresh  *refreshrepofake.FakeRefreshTokenRepo
	user     users.User
	accounts *fakeuserrepo.FakeAccountRepo
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	accounts := fakeuserrepo.NewFakeAccountRepo()
	account := &users.Account{User: users.User{Username: "alice", Email: "alice@example.com"}}
	require.NoError(t, accounts.Create(account))

	signer, err := keys.NewHMACSigner("test-secret")
	require.NoError(t, err)

	refreshRepo := refreshrepofake.NewFakeRefreshTokenRepo()
	m, err := token.New(accounts, signer, tokenConfig{access: time.Minute, refresh: time.Hour},
		token.WithRefreshRepo(refreshRepo))
	require.NoError(t, err)

	return &testFixture{manager: m, refresh: refreshRepo, user: account.User, accounts: accounts}
}

func TestIssueAndAuthenticate(t *testing.T) {
	f := setupTestFixture(t)

	resp, err := f.manager.Issue(f.user)
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, int64(60), resp.ExpiresIn)
	require.Equal(t, "alice", resp.User.Username)

	claims, err := f.manager.Authenticate(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, f.user.ID, claims.UserID)
	require.NotEmpty(t, claims.SessionID)
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.manager.Authenticate("")
	require.ErrorIs(t, err, jwt.ErrEmptyToken)

	_, err = f.manager.Authenticate("not.a.jwt")
	require.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestAuthenticateRejectsOtherSecret(t *testing.T) {
	f := setupTestFixture(t)
	other, err := keys.NewHMACSigner("another-secret")
	require.NoError(t, err)
	creator, err := jwt.NewCreator(other, time.Minute)
	require.NoError(t, err)
	forged, err := creator.CreateAccessToken(f.user.ID, "sid")
	require.NoError(t, err)

	_, err = f.manager.Authenticate(forged)
	require.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestExpiredAccessToken(t *testing.T) {
	f := setupTestFixture(t)
	resp, err := f.manager.Issue(f.user)
	require.NoError(t, err)

	jwt.NowTimeFunc = func() time.Time { return time.Now().Add(2 * time.Minute) }
	t.Cleanup(func() { jwt.NowTimeFunc = time.Now })

	_, err = f.manager.Authenticate(resp.AccessToken)
	require.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestRefreshRotatesAndKeepsSession(t *testing.T) {
	f := setupTestFixture(t)
	first, err := f.manager.Issue(f.user)
	require.NoError(t, err)
	firstClaims, err := f.manager.Authenticate(first.AccessToken)
	require.NoError(t, err)

	second, err := f.manager.Refresh(first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.Equal(t, 1, f.refresh.Len())

	secondClaims, err := f.manager.Authenticate(second.AccessToken)
	require.NoError(t, err)
	require.Equal(t, firstClaims.SessionID, secondClaims.SessionID)

	// The consumed token cannot be replayed.
	_, err = f.manager.Refresh(first.RefreshToken)
	require.ErrorIs(t, err, token.ErrInvalidRefreshToken)
}

func TestLogoutRevokesSessionOnly(t *testing.T) {
	f := setupTestFixture(t)
	a, err := f.manager.Issue(f.user)
	require.NoError(t, err)
	b, err := f.manager.Issue(f.user)
	require.NoError(t, err)

	claims, err := f.manager.Authenticate(a.AccessToken)
	require.NoError(t, err)
	require.NoError(t, f.manager.Logout(claims))

	_, err = f.manager.Authenticate(a.AccessToken)
	require.ErrorIs(t, err, jwt.ErrRevoked)
	_, err = f.manager.Refresh(a.RefreshToken)
	require.Error(t, err)

	_, err = f.manager.Authenticate(b.AccessToken)
	require.NoError(t, err)
	_, err = f.manager.Refresh(b.RefreshToken)
	require.NoError(t, err)
}

func TestLogoutAll(t *testing.T) {
	f := setupTestFixture(t)
	a, err := f.manager.Issue(f.user)
	require.NoError(t, err)
	b, err := f.manager.Issue(f.user)
	require.NoError(t, err)

	claims, err := f.manager.Authenticate(a.AccessToken)
	require.NoError(t, err)
	require.NoError(t, f.manager.LogoutAll(claims))

	_, err = f.manager.Authenticate(b.AccessToken)
	require.ErrorIs(t, err, jwt.ErrRevoked)
	_, err = f.manager.Refresh(b.RefreshToken)
	require.Error(t, err)
	require.Equal(t, 0, f.refresh.Len())
}

func TestRevokedCacheCleanup(t *testing.T) {
	now := time.Now()
	cache := token.NewInMemoryRevokedTokenCache(func() time.Time { return now })
	require.NoError(t, cache.Add("old", now.Add(-time.Second)))
	require.NoError(t, cache.Add("live", now.Add(time.Minute)))
	require.False(t, cache.IsRevoked(""))

	cache.Cleanup()
	require.False(t, cache.IsRevoked("old"))
	require.True(t, cache.IsRevoked("live"))
}
