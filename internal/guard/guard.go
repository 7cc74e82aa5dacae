// Package guard decides, per page request, whether to serve the page or
// redirect to login or to the principal's role home.
package guard

import (
	"net/url"
	"slices"

	"github.com/vakspot/vakspot/internal/auth"
)

// Outcome is the guard's verdict for a request
type Outcome int

const (
	Allow Outcome = iota
	RedirectLogin
	RedirectRoleHome
)

func (o Outcome) String() string {
	switch o {
	case RedirectLogin:
		return "redirect_login"
	case RedirectRoleHome:
		return "redirect_role_home"
	default:
		return "allow"
	}
}

// Decision is an outcome plus the redirect target, if any
type Decision struct {
	Outcome  Outcome
	Location string
}

const LoginPath = "/login"

// Prefixes the guard never evaluates
var excludedPrefixes = []string{"/api", "/static", "/uploads", "/health", "/favicon.ico"}

var authPages = []string{"/login", "/register"}

// Guard evaluates requests against a route table
type Guard struct {
	table Table
}

// New creates a guard over table
func New(table Table) *Guard {
	return &Guard{table: table}
}

// Excluded reports whether path is outside the guard's scope
func Excluded(path string) bool {
	for _, prefix := range excludedPrefixes {
		if hasPathPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Protects reports whether a route rule covers path
func (g *Guard) Protects(path string) bool {
	_, ok := g.table.match(path)
	return ok
}

// Decide evaluates a request. requestURI is the path plus query string and is
// preserved as the login callback target.
func (g *Guard) Decide(path, requestURI string, principal *auth.Principal) Decision {
	if Excluded(path) {
		return Decision{Outcome: Allow}
	}

	if principal != nil && slices.Contains(authPages, path) {
		return roleHome(principal)
	}

	rule, ok := g.table.match(path)
	if !ok {
		return Decision{Outcome: Allow}
	}

	if principal == nil {
		if requestURI == "" {
			requestURI = path
		}
		return Decision{
			Outcome:  RedirectLogin,
			Location: LoginPath + "?callbackUrl=" + url.QueryEscape(requestURI),
		}
	}

	if len(rule.Roles) > 0 && !principal.HasRole(rule.Roles...) {
		return roleHome(principal)
	}

	return Decision{Outcome: Allow}
}

func roleHome(p *auth.Principal) Decision {
	return Decision{Outcome: RedirectRoleHome, Location: auth.RoleHome(p.Role)}
}
