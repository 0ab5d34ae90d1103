package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ChristosG/finsmart-client/token/keys"
	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptyToken   = errors.New("empty token")
	ErrInvalidToken = errors.New("invalid token")
	ErrRevoked      = errors.New("token revoked")
)

// Claims is the verified content of an access token.
type Claims struct {
	UserID    int64
	SessionID string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RevokedChecker is an interface for checking if a token has been revoked.
// Both token ids and session ids are looked up.
type RevokedChecker interface {
	IsRevoked(key string) bool
}

// Inspector verifies access tokens minted by Creator
type Inspector struct {
	signer         keys.Signer
	revokedChecker RevokedChecker
}

func NewInspector(signer keys.Signer, revokedChecker RevokedChecker) *Inspector {
	return &Inspector{
		signer:         signer,
		revokedChecker: revokedChecker,
	}
}

// Introspect validates rawToken and returns its claims. Expired, revoked or
// malformed tokens produce an error.
func (i *Inspector) Introspect(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrEmptyToken
	}

	token, err := jwtlib.ParseWithClaims(rawToken, jwtlib.MapClaims{}, i.signer.GetVerificationKey,
		jwtlib.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
		jwtlib.WithTimeFunc(NowTimeFunc),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: error extracting claims", ErrInvalidToken)
	}

	sub, _ := claims["sub"].(string)
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, sub)
	}
	sid, _ := claims["sid"].(string)
	jti, _ := claims["jti"].(string)
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)

	if i.revokedChecker != nil && (i.revokedChecker.IsRevoked(jti) || i.revokedChecker.IsRevoked(sid)) {
		return nil, ErrRevoked
	}

	return &Claims{
		UserID:    userID,
		SessionID: sid,
		JTI:       jti,
		IssuedAt:  time.Unix(int64(iat), 0),
		ExpiresAt: time.Unix(int64(exp), 0),
	}, nil
}
