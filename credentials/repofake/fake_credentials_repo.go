package credentialsrepofake

import (
	"sync"

	"github.com/ChristosG/finsmart-client/credentials"
	"golang.org/x/oauth2"
)

var _ credentials.Repo = (*FakeCredentialsRepo)(nil)

// FakeCredentialsRepo is an in-memory key/value credential store that counts
// calls. Values can be set key by key to simulate partial records.
type FakeCredentialsRepo struct {
	values map[string]string
	lock   sync.Mutex

	saves  int
	loads  int
	clears int
}

func NewFakeCredentialsRepo() *FakeCredentialsRepo {
	return &FakeCredentialsRepo{values: make(map[string]string)}
}

func (fr *FakeCredentialsRepo) Save(tok *oauth2.Token) error {
	fr.lock.Lock()
	defer fr.lock.Unlock()

	fr.saves++
	for k, v := range credentials.Encode(tok) {
		fr.values[k] = v
	}
	return nil
}

func (fr *FakeCredentialsRepo) Load() (*oauth2.Token, error) {
	fr.lock.Lock()
	defer fr.lock.Unlock()

	fr.loads++
	return credentials.Decode(fr.values)
}

func (fr *FakeCredentialsRepo) Clear() error {
	fr.lock.Lock()
	defer fr.lock.Unlock()

	fr.clears++
	delete(fr.values, credentials.KeyAccessToken)
	delete(fr.values, credentials.KeyRefreshToken)
	delete(fr.values, credentials.KeyTokenExpiry)
	return nil
}

// Set stores a single raw value.
func (fr *FakeCredentialsRepo) Set(key, value string) {
	fr.lock.Lock()
	defer fr.lock.Unlock()
	fr.values[key] = value
}

// Get returns a raw value and whether it is present.
func (fr *FakeCredentialsRepo) Get(key string) (string, bool) {
	fr.lock.Lock()
	defer fr.lock.Unlock()
	v, ok := fr.values[key]
	return v, ok
}

// Empty reports whether none of the credential keys are stored.
func (fr *FakeCredentialsRepo) Empty() bool {
	fr.lock.Lock()
	defer fr.lock.Unlock()
	for _, k := range []string{credentials.KeyAccessToken, credentials.KeyRefreshToken, credentials.KeyTokenExpiry} {
		if _, ok := fr.values[k]; ok {
			return false
		}
	}
	return true
}

func (fr *FakeCredentialsRepo) Saves() int {
	fr.lock.Lock()
	defer fr.lock.Unlock()
	return fr.saves
}

func (fr *FakeCredentialsRepo) Loads() int {
	fr.lock.Lock()
	defer fr.lock.Unlock()
	return fr.loads
}

func (fr *FakeCredentialsRepo) Clears() int {
	fr.lock.Lock()
	defer fr.lock.Unlock()
	return fr.clears
}
