package users

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// User is the profile record returned by the backend (/api/auth/me and the
// auth responses).
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// ProfilePatch carries local profile edits. Empty fields are left untouched.
type ProfilePatch struct {
	Username string
	Email    string
}

// Apply returns a copy of u with the non-empty patch fields applied.
func (p ProfilePatch) Apply(u User) User {
	if p.Username != "" {
		u.Username = p.Username
	}
	if p.Email != "" {
		u.Email = p.Email
	}
	return u
}

// Account is the server-side view of a user, used by the development backend.
type Account struct {
	User
	PasswordHash string `json:"-"` // never serialize
}

// ValidateSignup checks the shape of a signup request before it is stored.
func ValidateSignup(username, email, password string) error {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 64 {
		return fmt.Errorf("username must be between 3 and 64 characters")
	}
	if strings.ContainsAny(username, "@ ") {
		return fmt.Errorf("username must not contain spaces or '@'")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("email is not valid")
	}
	return ValidatePasswordStrength(password)
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword checks a password against the account's hash
func (a *Account) CheckPassword(password string) bool {
	return CheckPasswordHash(password, a.PasswordHash)
}
