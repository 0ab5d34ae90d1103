package users

import "errors"

var (
	ErrNotFound      = errors.New("user not found")
	ErrAlreadyExists = errors.New("user already exists")
)

// AccountRepo stores accounts for the development backend. Create assigns the
// numeric ID; lookups by login accept either email or username.
type AccountRepo interface {
	Create(account *Account) error
	GetByID(id int64) (*Account, error)
	GetByLogin(emailOrUsername string) (*Account, error)
}
