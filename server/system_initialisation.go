package server

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/ChristosG/finsmart-client/users"
	"github.com/rs/zerolog/log"
)

const demoSiteURL = "https://demo.finsmart.local"

// InitialiseSystem creates the demo account and a demo source with a few
// articles. An existing demo account is left untouched.
func (s *Server) InitialiseSystem() error {
	username := s.config.GetDemoUser()
	if _, err := s.accounts.GetByLogin(username); err == nil {
		return nil
	}

	password := s.config.GetDemoPassword()
	generated := password == ""
	if generated {
		var err error
		if password, err = generatePassword(); err != nil {
			return fmt.Errorf("[Server InitialiseSystem] %w", err)
		}
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return fmt.Errorf("[Server InitialiseSystem] failed to hash password: %w", err)
	}
	account := &users.Account{
		User: users.User{
			Username:  username,
			Email:     username + "@finsmart.local",
			CreatedAt: NowTimeFunc().UTC().Format(time.RFC3339),
		},
		PasswordHash: hash,
	}
	if err := s.accounts.Create(account); err != nil && !errors.Is(err, users.ErrAlreadyExists) {
		return fmt.Errorf("[Server InitialiseSystem] failed to create demo account: %w", err)
	}

	s.catalog.Scrape(demoSiteURL, "FinSmart Demo", 5)

	event := log.Info().Str("username", username).Str("email", account.Email)
	if generated {
		event = event.Str("password", password)
	}
	event.Msg("Demo account ready")
	return nil
}

// generatePassword returns a random password that passes the signup rules.
func generatePassword() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b) + "Aa1", nil
}
