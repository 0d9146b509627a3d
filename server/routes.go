package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	// Pages (rendering phase, guarded per request)
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteProfile, ChainMiddleware(s.ProfilePageHandler(), s.HTMLMiddleWare(s.RequirePageAuth)...))
	s.RegisterRouteHandler("GET "+RouteHome+"{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare(s.RequirePageAuth)...))

	// Session API
	s.RegisterRouteHandler("POST "+RouteAPIAuthLogin, ChainMiddleware(s.APILoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIAuthRefresh, ChainMiddleware(s.APIRefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIAuthProfile, ChainMiddleware(s.APIProfileHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIAuthLogout, ChainMiddleware(s.APILogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteAPIAuth, ChainMiddleware(noContent, s.APIMiddleware()...))

	// Backend services
	s.RegisterRouteHandler(RouteAPICatalog, ChainMiddleware(s.catalog.ServeHTTP, s.APIMiddleware()...))
	s.RegisterRouteHandler(RouteAPIImages, ChainMiddleware(s.images.ServeHTTP, s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteHealth, noContent)
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
