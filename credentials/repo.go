// Package credentials persists the access token, refresh token and expiry so
// a session survives a process restart.
package credentials

import (
	"strconv"
	"time"

	apperrors "github.com/ChristosG/finsmart-client/internal/errors"
	"golang.org/x/oauth2"
)

// Storage keys. Each value is stored independently; a record is only read
// back when all three are present and valid.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyTokenExpiry  = "token_expiry"
)

// ErrNoCredentials is returned by Load when no complete record is stored.
var ErrNoCredentials = apperrors.ErrNoCredentials

// Repo is the durable credential store. Implementations never touch the network.
type Repo interface {
	Save(tok *oauth2.Token) error
	Load() (*oauth2.Token, error)
	Clear() error
}

// Encode flattens tok into the three storage values. Expiry is written as
// milliseconds since the epoch.
func Encode(tok *oauth2.Token) map[string]string {
	return map[string]string{
		KeyAccessToken:  tok.AccessToken,
		KeyRefreshToken: tok.RefreshToken,
		KeyTokenExpiry:  strconv.FormatInt(tok.Expiry.UnixMilli(), 10),
	}
}

// Decode rebuilds a token from stored values. Any missing, empty or
// unparsable value yields ErrNoCredentials.
func Decode(values map[string]string) (*oauth2.Token, error) {
	access := values[KeyAccessToken]
	refresh := values[KeyRefreshToken]
	rawExpiry := values[KeyTokenExpiry]
	if access == "" || refresh == "" || rawExpiry == "" {
		return nil, ErrNoCredentials
	}

	ms, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil || ms <= 0 {
		return nil, ErrNoCredentials
	}

	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		Expiry:       time.UnixMilli(ms),
	}, nil
}
