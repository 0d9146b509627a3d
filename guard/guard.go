package guard

import (
	"context"

	"github.com/jrsteele09/go-admin-console/session"
	"github.com/rs/zerolog/log"
)

// Route is a navigation target. Public routes are reachable without a session.
type Route struct {
	Path   string
	Public bool
}

// Table resolves paths to routes. Unknown paths require authentication.
type Table map[string]Route

func NewTable(routes ...Route) Table {
	t := make(Table, len(routes))
	for _, r := range routes {
		t[r.Path] = r
	}
	return t
}

func (t Table) Lookup(path string) Route {
	if r, ok := t[path]; ok {
		return r
	}
	return Route{Path: path}
}

// Authenticator is the part of the session facade the guard needs.
type Authenticator interface {
	EnsureAuthenticated(ctx context.Context) bool
}

// Guard gates each navigation once. A denied navigation redirects to the login route; it never retries.
type Guard struct {
	auth       Authenticator
	loginRoute string
}

type Option func(*Guard)

func WithLoginRoute(route string) Option {
	return func(g *Guard) {
		g.loginRoute = route
	}
}

func New(auth Authenticator, options ...Option) *Guard {
	g := &Guard{
		auth:       auth,
		loginRoute: session.LoginRoute,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Check decides whether navigation to the route may proceed. When it may not, redirect names the route to go to instead.
func (g *Guard) Check(ctx context.Context, to Route) (redirect string, allowed bool) {
	if to.Public {
		return "", true
	}
	if g.auth.EnsureAuthenticated(ctx) {
		return "", true
	}
	log.Ctx(ctx).Debug().Str("path", to.Path).Msg("navigation denied, redirecting to login")
	return g.loginRoute, false
}

// Navigate runs Check and sends the user to the redirect on denial. It reports whether the navigation went ahead.
func (g *Guard) Navigate(ctx context.Context, to Route, nav session.Navigator) bool {
	redirect, allowed := g.Check(ctx, to)
	if !allowed {
		nav.Navigate(ctx, redirect)
		return false
	}
	nav.Navigate(ctx, to.Path)
	return true
}
