package refresh_test

import (
	"testing"
	"time"

	"github.com/ChristosG/finsmart-client/token/refresh"
	refreshrepofake "github.com/ChristosG/finsmart-client/token/refresh/repofake"
	"github.com/stretchr/testify/require"
)

func TestRotateExpired(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	m, err := refresh.NewManager(repo, time.Hour)
	require.NoError(t, err)

	rt, err := m.Create(7, "sid-1")
	require.NoError(t, err)
	require.Len(t, rt.Token, 64)

	refresh.NowTimeFunc = func() time.Time { return time.Now().Add(2 * time.Hour) }
	t.Cleanup(func() { refresh.NowTimeFunc = time.Now })

	_, err = m.Rotate(rt.Token)
	require.ErrorIs(t, err, refresh.ErrExpired)
	require.Equal(t, 0, repo.Len())
}

func TestRotateUnknown(t *testing.T) {
	m, err := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), time.Hour)
	require.NoError(t, err)

	_, err = m.Rotate("nope")
	require.ErrorIs(t, err, refresh.ErrNotFound)
}

func TestRevokeAllForUser(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	m, err := refresh.NewManager(repo, time.Hour)
	require.NoError(t, err)

	_, err = m.Create(1, "a")
	require.NoError(t, err)
	_, err = m.Create(1, "b")
	require.NoError(t, err)
	_, err = m.Create(2, "c")
	require.NoError(t, err)

	sessions, err := m.RevokeAllForUser(1)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, sessions)
	require.Equal(t, 1, repo.Len())
}

func TestNewManagerValidation(t *testing.T) {
	_, err := refresh.NewManager(nil, time.Hour)
	require.Error(t, err)
	_, err = refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), 0)
	require.Error(t, err)
}
