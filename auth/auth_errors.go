package auth

import "errors"

var (
	ErrSessionValidation = errors.New("session validation failed")
	ErrMissingCredential = errors.New("username and password are required")
)

// Fallback messages shown when the backend gives no reason.
const (
	msgSignupFailed  = "Signup failed"
	msgLoginFailed   = "Login failed"
	msgUserInfoFails = "Failed to get user info"
)
