// Package guard decides what a protected page shows for the current session
// and keeps the return URL in step with where the user is.
package guard

import (
	"github.com/ChristosG/finsmart-client/sessions"
	"github.com/rs/zerolog/log"
)

type View int

const (
	ViewLoading View = iota
	ViewAuthForm
	ViewProtected
)

func (v View) String() string {
	switch v {
	case ViewLoading:
		return "loading"
	case ViewAuthForm:
		return "auth-form"
	case ViewProtected:
		return "protected"
	}
	return "unknown"
}

// Decision is the outcome of one guard evaluation.
type Decision struct {
	View View
	// FetchUser is set when the session is authenticated but no profile is loaded.
	FetchUser bool
}

// ReturnURLs is the part of sessions.State the guard writes.
type ReturnURLs interface {
	sessions.Reader
	SetReturnURL(path string)
	ClearReturnURL()
}

type Guard struct {
	state ReturnURLs
	nav   Navigator
}

func New(state ReturnURLs, nav Navigator) *Guard {
	return &Guard{state: state, nav: nav}
}

// Evaluate picks the view for the current location. While unauthenticated
// on a page other than the root or an auth page, that page becomes the
// return URL.
func (g *Guard) Evaluate() Decision {
	snap := g.state.Snapshot()

	if snap.Loading {
		return Decision{View: ViewLoading}
	}

	if !snap.IsAuthenticated {
		loc := g.nav.Location()
		if loc != "/" && !sessions.IsAuthPath(loc) && snap.ReturnURL != loc {
			g.state.SetReturnURL(loc)
		}
		return Decision{View: ViewAuthForm}
	}

	return Decision{View: ViewProtected, FetchUser: snap.User == nil}
}

// RedirectAfterAuth sends an authenticated user back to the stored return
// URL and clears it. A user who logged in on that page already is there, so
// the URL is only cleared. It reports whether a navigation happened.
func (g *Guard) RedirectAfterAuth() bool {
	snap := g.state.Snapshot()
	if !snap.IsAuthenticated || snap.Loading || snap.ReturnURL == "" {
		return false
	}
	if snap.ReturnURL == g.nav.Location() {
		g.state.ClearReturnURL()
		return false
	}

	log.Debug().Str("to", snap.ReturnURL).Msg("Returning to page after authentication")
	g.nav.Navigate(snap.ReturnURL)
	g.state.ClearReturnURL()
	return true
}

func (g *Guard) Navigator() Navigator {
	return g.nav
}
