package server

import (
	"net/http"

	"github.com/jrsteele09/go-admin-console/authapi"
	"github.com/rs/zerolog/log"
)

// PageData is shared by the authenticated pages.
type PageData struct {
	AppName         string
	User            *authapi.AdminUserProfile
	RefreshBufferMs int64
}

// IndexHandler renders the home page
func (s *Server) IndexHandler() http.HandlerFunc {
	return s.pageHandler("index.html")
}

// ProfilePageHandler renders the profile of the signed in admin
func (s *Server) ProfilePageHandler() http.HandlerFunc {
	return s.pageHandler("profile.html")
}

func (s *Server) pageHandler(name string) http.HandlerFunc {
	tmpl, err := ParseTemplate(name)
	if err != nil {
		panic("Failed to parse " + name + " template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		data := PageData{
			AppName:         s.config.GetAppName(),
			User:            user,
			RefreshBufferMs: s.config.GetRefreshBuffer().Milliseconds(),
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		if err := tmpl.Execute(w, data); err != nil {
			log.Ctx(r.Context()).Err(err).Str("template", name).Msg("Failed to render page")
		}
	}
}
