package auth

import (
	"context"
	"time"

	"github.com/ChristosG/finsmart-client/sessions"
)

// Bootstrapper restores the session once at startup.
type Bootstrapper struct {
	state   *sessions.State
	service *Service
	delay   time.Duration
}

func NewBootstrapper(state *sessions.State, service *Service, delay time.Duration) *Bootstrapper {
	return &Bootstrapper{state: state, service: service, delay: delay}
}

// Start hydrates the session before returning, then validates it in the
// background after the configured delay. The channel receives the
// validation result and is closed.
func (b *Bootstrapper) Start(ctx context.Context) <-chan error {
	b.state.Hydrate()

	done := make(chan error, 1)
	go func() {
		defer close(done)

		timer := time.NewTimer(b.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			done <- ctx.Err()
			return
		case <-timer.C:
		}

		done <- b.service.ValidateSession(ctx)
	}()
	return done
}
