package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ChristosG/finsmart-client/api"
	"github.com/ChristosG/finsmart-client/users"
	"github.com/rs/zerolog/log"
)

// NowTimeFunc stamps new accounts. It can be overridden in tests.
var NowTimeFunc = time.Now

func (s *Server) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.SignupRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := users.ValidateSignup(req.Username, req.Email, req.Password); err != nil {
			writeValidationError(w, api.FieldError{Loc: []any{"body", fieldOf(err.Error())}, Msg: err.Error()})
			return
		}

		hash, err := users.HashPassword(req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to hash password")
			return
		}

		account := &users.Account{
			User: users.User{
				Username:  strings.TrimSpace(req.Username),
				Email:     strings.TrimSpace(req.Email),
				CreatedAt: NowTimeFunc().UTC().Format(time.RFC3339),
			},
			PasswordHash: hash,
		}
		if err := s.accounts.Create(account); err != nil {
			if errors.Is(err, users.ErrAlreadyExists) {
				writeError(w, http.StatusBadRequest, "Username or email already registered")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		s.issue(w, http.StatusCreated, account.User)
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.LoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		account, err := s.accounts.GetByLogin(req.EmailOrUsername)
		if err != nil || !account.CheckPassword(req.Password) {
			writeError(w, http.StatusUnauthorized, "Incorrect email/username or password")
			return
		}

		s.issue(w, http.StatusOK, account.User)
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.RefreshRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		resp, err := s.tokens.Refresh(req.RefreshToken)
		if err != nil {
			log.Debug().Err(err).Msg("Refresh rejected")
			writeError(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		s.refreshCount.Add(1)
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		account, err := s.accounts.GetByID(claims.UserID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "User not found")
			return
		}
		writeJSON(w, http.StatusOK, account.User)
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.tokens.Logout(claimsFromContext(r.Context())); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
	}
}

func (s *Server) LogoutAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.tokens.LogoutAll(claimsFromContext(r.Context())); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out from all devices"})
	}
}

func (s *Server) issue(w http.ResponseWriter, status int, user users.User) {
	resp, err := s.tokens.Issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, status, resp)
}

// fieldOf guesses the offending field from a validation message.
func fieldOf(msg string) string {
	for _, f := range []string{"username", "email", "password"} {
		if strings.HasPrefix(msg, f) {
			return f
		}
	}
	return "body"
}
