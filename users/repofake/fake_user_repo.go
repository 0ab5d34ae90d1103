package fakeuserrepo

import (
	"strings"
	"sync"

	"github.com/ChristosG/finsmart-client/users"
)

var _ users.AccountRepo = (*FakeAccountRepo)(nil)

type FakeAccountRepo struct {
	accounts  map[int64]*users.Account
	emails    map[string]int64 // lower-cased email to id
	usernames map[string]int64 // lower-cased username to id
	nextID    int64
	lock      sync.RWMutex
}

func NewFakeAccountRepo() *FakeAccountRepo {
	return &FakeAccountRepo{
		accounts:  make(map[int64]*users.Account),
		emails:    make(map[string]int64),
		usernames: make(map[string]int64),
	}
}

func (ar *FakeAccountRepo) Create(account *users.Account) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	email := strings.ToLower(account.Email)
	username := strings.ToLower(account.Username)
	if _, ok := ar.emails[email]; ok {
		return users.ErrAlreadyExists
	}
	if _, ok := ar.usernames[username]; ok {
		return users.ErrAlreadyExists
	}

	ar.nextID++
	account.ID = ar.nextID
	stored := *account
	ar.accounts[account.ID] = &stored
	ar.emails[email] = account.ID
	ar.usernames[username] = account.ID
	return nil
}

func (ar *FakeAccountRepo) GetByID(id int64) (*users.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	a, ok := ar.accounts[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (ar *FakeAccountRepo) GetByLogin(emailOrUsername string) (*users.Account, error) {
	key := strings.ToLower(strings.TrimSpace(emailOrUsername))

	ar.lock.RLock()
	id, ok := ar.emails[key]
	if !ok {
		id, ok = ar.usernames[key]
	}
	ar.lock.RUnlock()

	if !ok {
		return nil, users.ErrNotFound
	}
	return ar.GetByID(id)
}
