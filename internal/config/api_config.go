package config

import (
	"strings"
	"time"
)

type APIConfig interface {
	GetAPIBaseURL() string
	GetRequestTimeout() time.Duration
	GetRequestsPerSecond() float64
}

type API struct{}

var _ APIConfig = API{}

// GetAPIBaseURL returns the backend root without a trailing slash.
func (API) GetAPIBaseURL() string {
	return strings.TrimRight(GetEnv("API_BASE_URL", "http://localhost:7000"), "/")
}

func (API) GetRequestTimeout() time.Duration {
	return GetDuration("REQUEST_TIMEOUT", 60*time.Second)
}

// GetRequestsPerSecond limits outgoing calls. Zero disables the limiter.
func (API) GetRequestsPerSecond() float64 {
	return GetFloat("REQUESTS_PER_SECOND", 0)
}
