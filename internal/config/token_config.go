package config

import "time"

// TokenConfig drives the development backend in package server.
type TokenConfig interface {
	GetJWTSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

type Token struct{}

var _ TokenConfig = Token{}

func (Token) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "dev-secret-change-me")
}

func (Token) GetAccessTokenExpiry() time.Duration {
	return GetDuration("ACCESS_TOKEN_TTL", 15*time.Minute)
}

func (Token) GetRefreshTokenExpiry() time.Duration {
	return GetDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour)
}
