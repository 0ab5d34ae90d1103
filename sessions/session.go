// Package sessions holds the process-wide authentication state. State is the
// only writer; everything else reads through Reader.
package sessions

import (
	"strings"
	"time"

	"github.com/ChristosG/finsmart-client/users"
	"golang.org/x/oauth2"
)

// Session is an immutable snapshot of the authentication state.
type Session struct {
	User            *users.User
	AccessToken     string
	RefreshToken    string
	IsAuthenticated bool
	TokenExpiry     time.Time // zero when no token is held
	Loading         bool
	Error           string
	ReturnURL       string
}

// Token returns the held credentials, or nil when no access token is held.
func (s Session) Token() *oauth2.Token {
	if s.AccessToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.TokenExpiry,
	}
}

// Reader is the read capability handed to components outside the session
// subsystem.
type Reader interface {
	Snapshot() Session
	IsAuthenticated() bool
	User() *users.User
	Loading() bool
	Error() string
	ReturnURL() string
	AccessToken() string
	RefreshToken() string
	Token() *oauth2.Token
	Subscribe() (<-chan Session, func())
}

// IsAuthPath reports whether path is the login or signup page.
func IsAuthPath(path string) bool {
	return strings.Contains(path, "/login") || strings.Contains(path, "/signup")
}

func cloneUser(u *users.User) *users.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
