package sessions

import (
	"sync"
	"time"

	"github.com/ChristosG/finsmart-client/credentials"
	"github.com/ChristosG/finsmart-client/internal/errors"
	"github.com/ChristosG/finsmart-client/users"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var _ Reader = (*State)(nil)

// State is the single-writer session container. Every transition, including
// the write to the credential store, happens under one lock so readers never
// observe a half-applied change.
type State struct {
	mu    sync.RWMutex
	s     Session
	store credentials.Repo
	now   func() time.Time

	// generation counts established sessions: hydrate, login, signup, refresh.
	generation uint64

	subs   map[int]chan Session
	nextID int
}

type StateOption func(*State)

// WithNowFunc overrides the clock used to compute and check token expiry.
func WithNowFunc(now func() time.Time) StateOption {
	return func(st *State) {
		st.now = now
	}
}

// NewState creates an empty session with Loading set, so nothing treats the
// user as logged out before Hydrate has run.
func NewState(store credentials.Repo, opts ...StateOption) *State {
	st := &State{
		s:     Session{Loading: true},
		store: store,
		now:   func() time.Time { return NowTimeFunc() },
		subs:  make(map[int]chan Session),
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// Read side

func (st *State) Snapshot() Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	snap := st.s
	snap.User = cloneUser(st.s.User)
	return snap
}

func (st *State) IsAuthenticated() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.IsAuthenticated
}

func (st *State) User() *users.User {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return cloneUser(st.s.User)
}

func (st *State) Loading() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.Loading
}

func (st *State) Error() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.Error
}

func (st *State) ReturnURL() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.ReturnURL
}

func (st *State) AccessToken() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.AccessToken
}

func (st *State) RefreshToken() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.RefreshToken
}

func (st *State) Token() *oauth2.Token {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.Token()
}

// Subscribe returns a channel that always holds the latest snapshot after a
// transition. Intermediate snapshots may be dropped. The returned func stops
// delivery and closes the channel.
func (st *State) Subscribe() (<-chan Session, func()) {
	st.mu.Lock()
	defer st.mu.Unlock()

	id := st.nextID
	st.nextID++
	ch := make(chan Session, 1)
	st.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			st.mu.Lock()
			defer st.mu.Unlock()
			delete(st.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Transitions

// BeginAuthOperation marks a login or signup as started.
func (st *State) BeginAuthOperation() {
	st.update(func(s *Session) {
		s.Loading = true
		s.Error = ""
	})
}

// BeginLoading marks a refresh or user fetch as started. Any error is kept.
func (st *State) BeginLoading() {
	st.update(func(s *Session) {
		s.Loading = true
	})
}

// AuthSucceeded adopts a fresh credential set and persists it. A nil user
// keeps the profile already loaded.
func (st *State) AuthSucceeded(user *users.User, accessToken, refreshToken string, expiresIn time.Duration) {
	st.update(func(s *Session) {
		if user != nil {
			s.User = cloneUser(user)
		}
		s.AccessToken = accessToken
		s.RefreshToken = refreshToken
		s.TokenExpiry = st.now().Add(expiresIn)
		s.IsAuthenticated = true
		s.Loading = false
		s.Error = ""
		st.generation++

		if err := st.store.Save(s.Token()); err != nil {
			log.Err(err).Msg("Failed to persist credentials")
		}
	})
}

// AuthFailed records a failed auth operation without touching the session.
func (st *State) AuthFailed(message string) {
	st.update(func(s *Session) {
		s.Loading = false
		s.Error = message
	})
}

// RefreshFailed ends the loading state of a refresh that did not succeed.
// The session itself is dropped separately by Clear.
func (st *State) RefreshFailed() {
	st.update(func(s *Session) {
		s.Loading = false
	})
}

func (st *State) UserLoaded(user *users.User) {
	st.update(func(s *Session) {
		s.User = cloneUser(user)
		s.Loading = false
		s.Error = ""
	})
}

// AttachUser sets the profile without touching loading or error.
func (st *State) AttachUser(user *users.User) {
	st.update(func(s *Session) {
		s.User = cloneUser(user)
	})
}

// UpdateUser applies a local profile edit. It is a no-op without a profile.
func (st *State) UpdateUser(patch users.ProfilePatch) {
	st.update(func(s *Session) {
		if s.User == nil {
			return
		}
		u := patch.Apply(*s.User)
		s.User = &u
	})
}

// Clear drops the session and erases stored credentials. When
// preserveReturnURLFrom is a non-auth path it becomes the ReturnURL,
// otherwise the existing ReturnURL is kept.
func (st *State) Clear(preserveReturnURLFrom string) {
	st.update(func(s *Session) {
		st.clear(s, preserveReturnURLFrom)
	})
}

// Generation identifies the current session. It changes every time a
// session is established.
func (st *State) Generation() uint64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.generation
}

// ClearIfGeneration is Clear, applied only while gen is still the current
// generation. It reports whether the session was dropped.
func (st *State) ClearIfGeneration(gen uint64, preserveReturnURLFrom string) bool {
	cleared := false
	st.update(func(s *Session) {
		if st.generation != gen {
			return
		}
		st.clear(s, preserveReturnURLFrom)
		cleared = true
	})
	return cleared
}

func (st *State) clear(s *Session, preserveReturnURLFrom string) {
	returnURL := s.ReturnURL
	if preserveReturnURLFrom != "" && !IsAuthPath(preserveReturnURLFrom) {
		returnURL = preserveReturnURLFrom
	}
	*s = Session{ReturnURL: returnURL}

	if err := st.store.Clear(); err != nil {
		log.Err(err).Msg("Failed to erase stored credentials")
	}
}

// Hydrate restores the session from the credential store. Expired records
// are erased. No network call is made.
func (st *State) Hydrate() {
	st.update(func(s *Session) {
		defer func() { s.Loading = false }()

		tok, err := st.store.Load()
		if err != nil {
			if !errors.Is(err, credentials.ErrNoCredentials) {
				log.Err(err).Msg("Failed to read stored credentials")
			}
			return
		}

		if !tok.Expiry.After(st.now()) {
			log.Debug().Time("expiry", tok.Expiry).Msg("Stored credentials expired, erasing")
			if err := st.store.Clear(); err != nil {
				log.Err(err).Msg("Failed to erase expired credentials")
			}
			return
		}

		s.AccessToken = tok.AccessToken
		s.RefreshToken = tok.RefreshToken
		s.TokenExpiry = tok.Expiry
		s.IsAuthenticated = true
		st.generation++
	})
}

func (st *State) SetReturnURL(path string) {
	st.update(func(s *Session) {
		s.ReturnURL = path
	})
}

func (st *State) ClearReturnURL() {
	st.SetReturnURL("")
}

func (st *State) ClearError() {
	st.update(func(s *Session) {
		s.Error = ""
	})
}

// update applies fn under the write lock and publishes the result.
func (st *State) update(fn func(s *Session)) {
	st.mu.Lock()
	defer st.mu.Unlock()

	fn(&st.s)

	snap := st.s
	snap.User = cloneUser(st.s.User)
	for _, ch := range st.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
