package server

import (
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-admin-console/authapi"
	"github.com/rs/zerolog/log"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName string
	User    *authapi.AdminUserProfile // always nil, the layout hides the navigation
	Error   string
	Email   string // Preserve email on error
}

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	loginTmpl, err := ParseTemplate("login.html")
	if err != nil {
		panic("Failed to parse login template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		data := LoginPageData{
			AppName: s.config.GetAppName(),
			Error:   r.URL.Query().Get("error"),
			Email:   r.URL.Query().Get("email"),
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		if err := loginTmpl.Execute(w, data); err != nil {
			log.Ctx(r.Context()).Err(err).Msg("Failed to render login template")
			http.Error(w, "Failed to render login page", http.StatusInternalServerError)
		}
	}
}

// LoginSubmissionHandler processes the login form submission (POST /login)
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		email := r.FormValue("email")
		password := r.FormValue("password")
		if email == "" || password == "" {
			renderLoginError(w, r, "Email and password are required", email)
			return
		}

		pass := s.newPass(w, r)
		if !pass.facade.Login(r.Context(), email, password) {
			renderLoginError(w, r, "Invalid email or password", email)
			return
		}
		redirectSuccess(w, r, pass.navigateTo)
	}
}

// LogoutHandler ends the session and returns to the login page (POST /logout)
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pass := s.newPass(w, r)
		pass.facade.Logout(r.Context())
		redirectSuccess(w, r, pass.navigateTo)
	}
}

// renderLoginError redirects to login page with an error message
func renderLoginError(w http.ResponseWriter, r *http.Request, errorMsg, email string) {
	redirectURL := RouteLogin + "?error=" + url.QueryEscape(errorMsg)
	if email != "" {
		redirectURL += "&email=" + url.QueryEscape(email)
	}
	redirectSuccess(w, r, redirectURL)
}
