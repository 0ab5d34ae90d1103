package jwt

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ChristosG/finsmart-client/token/keys"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Creator mints access tokens for the development backend.
type Creator struct {
	signer keys.Signer
	expiry time.Duration
}

func NewCreator(signer keys.Signer, expiry time.Duration) (*Creator, error) {
	if signer == nil {
		return nil, fmt.Errorf("[NewCreator] signer is required")
	}
	if expiry <= 0 {
		return nil, fmt.Errorf("[NewCreator] expiry must be positive")
	}
	return &Creator{signer: signer, expiry: expiry}, nil
}

// Expiry is the lifetime given to every token this creator signs.
func (c *Creator) Expiry() time.Duration {
	return c.expiry
}

// CreateAccessToken signs a token for userID bound to the login session sessionID.
func (c *Creator) CreateAccessToken(userID int64, sessionID string) (string, error) {
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"sid": sessionID,
		"iat": now.Unix(),
		"exp": now.Add(c.expiry).Unix(),
		"jti": uuid.New().String(),
	}

	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signed, nil
}
