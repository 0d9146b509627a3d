package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-admin-console/authapi"
	"github.com/jrsteele09/go-admin-console/internal/respond"
	"github.com/rs/zerolog/log"
)

// LoginResponse is the body of a successful POST /api/auth/login. Tokens stay in HttpOnly cookies.
type LoginResponse struct {
	User      authapi.AdminUserProfile `json:"user"`
	ExpiresIn int                      `json:"expiresIn"`
}

// APILoginHandler exchanges credentials for a session (POST /api/auth/login)
func (s *Server) APILoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds authapi.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Email == "" || creds.Password == "" {
			respond.Error(w, r, http.StatusBadRequest, "Email and password are required")
			return
		}

		resp, err := s.newPass(w, r).gateway.Login(r.Context(), creds)
		if err != nil {
			log.Ctx(r.Context()).Info().Err(err).Msg("login rejected")
			respond.Error(w, r, authapi.StatusCode(err, http.StatusUnauthorized), authapi.Detail(err, "Invalid email or password"))
			return
		}

		respond.JSON(w, r, http.StatusOK, LoginResponse{User: resp.User, ExpiresIn: resp.ExpiresIn})
	}
}

// APIRefreshHandler renews the access token from the refresh cookie (POST /api/auth/refresh)
func (s *Server) APIRefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pass := s.newPass(w, r)
		if err := pass.gateway.RefreshToken(r.Context()); err != nil {
			log.Ctx(r.Context()).Debug().Err(err).Msg("refresh failed")
			pass.store.Clear()
			respond.Error(w, r, http.StatusUnauthorized, "Failed to refresh token")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// APIProfileHandler returns the profile of the current session (GET /api/auth/profile)
func (s *Server) APIProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := s.newPass(w, r).gateway.GetProfile(r.Context())
		if err != nil {
			log.Ctx(r.Context()).Debug().Err(err).Msg("profile fetch failed")
			respond.Error(w, r, http.StatusUnauthorized, "Failed to get profile")
			return
		}
		respond.JSON(w, r, http.StatusOK, profile)
	}
}

// APILogoutHandler revokes the session upstream when possible and always clears the cookies (POST /api/auth/logout)
func (s *Server) APILogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pass := s.newPass(w, r)
		if err := pass.gateway.Logout(r.Context()); err != nil {
			log.Ctx(r.Context()).Debug().Err(err).Msg("upstream logout failed, clearing cookies anyway")
		}
		pass.store.Clear()
		w.WriteHeader(http.StatusNoContent)
	}
}
