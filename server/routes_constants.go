package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Pages
	RouteHome    = "/"
	RouteLogin   = "/login"
	RouteLogout  = "/logout"
	RouteProfile = "/profile"

	// Session API (called from the browser)
	RouteAPIAuth        = "/api/auth/"
	RouteAPIAuthLogin   = "/api/auth/login"
	RouteAPIAuthRefresh = "/api/auth/refresh"
	RouteAPIAuthProfile = "/api/auth/profile"
	RouteAPIAuthLogout  = "/api/auth/logout"

	// Backend service proxies (prefixes)
	RouteAPICatalog = "/api/catalog/"
	RouteAPIImages  = "/api/images/"

	RouteHealth = "/healthz"
)
