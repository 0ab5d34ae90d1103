package users_test

import (
	"testing"

	"github.com/ChristosG/finsmart-client/users"
	fakeuserrepo "github.com/ChristosG/finsmart-client/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestValidateSignup(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		wantErr  string
	}{
		{name: "valid", username: "alice", email: "alice@example.com", password: "Secret123"},
		{name: "short username", username: "al", email: "alice@example.com", password: "Secret123", wantErr: "username"},
		{name: "username with at", username: "al@ce", email: "alice@example.com", password: "Secret123", wantErr: "username"},
		{name: "bad email", username: "alice", email: "alice", password: "Secret123", wantErr: "email"},
		{name: "weak password", username: "alice", email: "alice@example.com", password: "secret", wantErr: "8 characters"},
		{name: "no digit", username: "alice", email: "alice@example.com", password: "SecretSecret", wantErr: "number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := users.ValidateSignup(tt.username, tt.email, tt.password)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProfilePatch(t *testing.T) {
	u := users.User{ID: 1, Username: "alice", Email: "alice@example.com"}
	got := users.ProfilePatch{Email: "a@example.com"}.Apply(u)
	require.Equal(t, "alice", got.Username)
	require.Equal(t, "a@example.com", got.Email)
}

func TestFakeAccountRepo(t *testing.T) {
	repo := fakeuserrepo.NewFakeAccountRepo()

	hash, err := users.HashPassword("Secret123")
	require.NoError(t, err)

	acct := &users.Account{User: users.User{Username: "alice", Email: "Alice@Example.com"}, PasswordHash: hash}
	require.NoError(t, repo.Create(acct))
	require.Equal(t, int64(1), acct.ID)

	dup := &users.Account{User: users.User{Username: "ALICE", Email: "other@example.com"}}
	require.ErrorIs(t, repo.Create(dup), users.ErrAlreadyExists)

	byEmail, err := repo.GetByLogin("alice@example.com")
	require.NoError(t, err)
	require.True(t, byEmail.CheckPassword("Secret123"))
	require.False(t, byEmail.CheckPassword("wrong"))

	byName, err := repo.GetByLogin("alice")
	require.NoError(t, err)
	require.Equal(t, byEmail.ID, byName.ID)

	_, err = repo.GetByLogin("bob")
	require.ErrorIs(t, err, users.ErrNotFound)
}
