package gate

import (
	"errors"
	"sync"
)

// View is what the client should be showing.
type View string

const (
	ViewLanding   View = "landing"
	ViewSignIn    View = "signin"
	ViewSignUp    View = "signup"
	ViewWorkspace View = "workspace"
)

// Event is a provider-originated session transition. View changes are driven
// only by these, never by optimistic local state, so the visible
// authentication state cannot diverge from the provider's.
type Event string

const (
	EventSignedIn       Event = "signed_in"
	EventSignedOut      Event = "signed_out"
	EventTokenRefreshed Event = "token_refreshed"
)

var ErrNavigationBlocked = errors.New("navigation not allowed for current session state")

// Gate tracks one client's session presence and maps it to a view.
type Gate struct {
	mu       sync.Mutex
	view     View
	signedIn bool
}

func New() *Gate {
	return &Gate{view: ViewLanding}
}

// NewSignedIn seeds a gate for a connection that already holds a session.
func NewSignedIn() *Gate {
	return &Gate{view: ViewWorkspace, signedIn: true}
}

func (g *Gate) View() View {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view
}

// Apply consumes a session event and returns the resulting view. Signing out
// lands on the landing view regardless of what was visible before.
func (g *Gate) Apply(ev Event) View {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch ev {
	case EventSignedIn:
		g.signedIn = true
		g.view = ViewWorkspace
	case EventSignedOut:
		g.signedIn = false
		g.view = ViewLanding
	case EventTokenRefreshed:
		// Session still valid, view unchanged.
	}
	return g.view
}

// Navigate handles user-initiated view changes. The auth forms are only
// reachable signed out, the workspace only signed in.
func (g *Gate) Navigate(to View) (View, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch to {
	case ViewSignIn, ViewSignUp:
		if g.signedIn {
			return g.view, ErrNavigationBlocked
		}
	case ViewWorkspace:
		if !g.signedIn {
			return g.view, ErrNavigationBlocked
		}
	case ViewLanding:
		// Always reachable.
	default:
		return g.view, ErrNavigationBlocked
	}

	g.view = to
	return g.view, nil
}
