package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-admin-console/authapi"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUser stores the authenticated admin profile
	ContextKeyUser ContextKey = "user"
)

// RequirePageAuth runs the route guard for a page request. The session is rebuilt from the request cookies,
// refreshed when close to expiry, and a denied navigation is redirected to the login page.
func (s *Server) RequirePageAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pass := s.newPass(w, r)
		if redirect, allowed := s.guardFor(pass).Check(r.Context(), s.pages.Lookup(r.URL.Path)); !allowed {
			redirectSuccess(w, r, redirect)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyUser, pass.facade.State().User)
		next(w, r.WithContext(ctx))
	}
}

// UserFromContext returns the admin authenticated by RequirePageAuth.
func UserFromContext(ctx context.Context) (*authapi.AdminUserProfile, bool) {
	user, ok := ctx.Value(ContextKeyUser).(*authapi.AdminUserProfile)
	return user, ok && user != nil
}
