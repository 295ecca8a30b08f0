// Package guard decides whether a protected view may render for the current
// session state.
package guard

import (
	"fmt"
	"net/url"

	"travelhub/api/internal/models"
	"travelhub/api/internal/roles"
)

// LoginPath is where unauthenticated visitors are sent.
const LoginPath = "/login"

type Outcome uint8

const (
	Loading Outcome = iota
	RedirectLogin
	AccessDenied
	Render
	AuthError
)

func (o Outcome) String() string {
	switch o {
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect_login"
	case AccessDenied:
		return "access_denied"
	case Render:
		return "render"
	case AuthError:
		return "auth_error"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// State is a consistent snapshot of the session context.
type State struct {
	Loading bool
	User    *models.User
}

type Decision struct {
	Outcome Outcome
	// RedirectTo is the login page for RedirectLogin and the role landing page
	// for AccessDenied.
	RedirectTo string
	// ReturnTo is the originally requested location, preserved across login.
	ReturnTo string
}

// Evaluate is pure: the same state, allowed list and location always give the
// same decision. An empty allowed list admits any authenticated user.
func Evaluate(state State, allowed []roles.Role, location string) Decision {
	if state.Loading {
		return Decision{Outcome: Loading}
	}

	if state.User == nil {
		return Decision{
			Outcome:    RedirectLogin,
			RedirectTo: LoginURL(location),
			ReturnTo:   location,
		}
	}

	if len(allowed) > 0 && !state.User.Role.In(allowed...) {
		return Decision{
			Outcome:    AccessDenied,
			RedirectTo: roles.LandingPath(state.User.Role),
		}
	}

	return Decision{Outcome: Render}
}

// Check evaluates the state returned by lookup. A lookup error or panic yields
// AuthError, never Render.
func Check(lookup func() (State, error), allowed []roles.Role, location string) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			d = Decision{Outcome: AuthError}
		}
	}()

	state, err := lookup()
	if err != nil {
		return Decision{Outcome: AuthError}
	}
	return Evaluate(state, allowed, location)
}

// LoginURL builds the login page address carrying the return location.
func LoginURL(returnTo string) string {
	if returnTo == "" || returnTo == LoginPath {
		return LoginPath
	}
	return LoginPath + "?redirect=" + url.QueryEscape(returnTo)
}
