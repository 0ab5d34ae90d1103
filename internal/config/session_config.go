package config

import "time"

type SessionConfig interface {
	GetBootstrapDelay() time.Duration
	GetClearDelay() time.Duration
	GetRefreshTimeout() time.Duration
	GetRefreshRetries() int
	GetRefreshRetryBackoff() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

// GetBootstrapDelay is the pause between hydration and the first /me check.
func (Session) GetBootstrapDelay() time.Duration {
	return GetDuration("BOOTSTRAP_DELAY", 200*time.Millisecond)
}

// GetClearDelay defers the logout that follows a failed refresh.
func (Session) GetClearDelay() time.Duration {
	return GetDuration("CLEAR_DELAY", 50*time.Millisecond)
}

func (Session) GetRefreshTimeout() time.Duration {
	return GetDuration("REFRESH_TIMEOUT", 30*time.Second)
}

// GetRefreshRetries is how many times a refresh that failed at the transport
// level is retried before the session is dropped. Zero keeps every failure fatal.
func (Session) GetRefreshRetries() int {
	return GetInt("REFRESH_RETRIES", 0)
}

func (Session) GetRefreshRetryBackoff() time.Duration {
	return GetDuration("REFRESH_RETRY_BACKOFF", 500*time.Millisecond)
}
