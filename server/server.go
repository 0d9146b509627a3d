package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-admin-console/authapi"
	"github.com/jrsteele09/go-admin-console/gateway"
	"github.com/jrsteele09/go-admin-console/guard"
	"github.com/jrsteele09/go-admin-console/internal/config"
	"github.com/jrsteele09/go-admin-console/proxy"
	"github.com/jrsteele09/go-admin-console/session"
	"github.com/jrsteele09/go-admin-console/tokenstore"
	"github.com/rs/zerolog/log"
)

// Server is the console backend-for-frontend: it renders pages, owns the session cookies and
// forwards API calls to the backend services.
type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	api       authapi.API
	inspector *gateway.Inspector
	cookies   tokenstore.CookieOptions
	pages     guard.Table
	nowFunc   func() time.Time

	catalog *proxy.Proxy
	images  *proxy.Proxy
}

type Option func(*Server)

func WithInspector(inspector *gateway.Inspector) Option {
	return func(s *Server) {
		s.inspector = inspector
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

func New(cfg config.Config, api authapi.API, options ...Option) (*Server, error) {
	s := &Server{
		env:     cfg.GetEnv(),
		mux:     http.NewServeMux(),
		config:  cfg,
		api:     api,
		cookies: tokenstore.CookieOptions{Secure: cfg.GetCookieSecure()},
		pages: guard.NewTable(
			guard.Route{Path: RouteLogin, Public: true},
			guard.Route{Path: RouteHome},
			guard.Route{Path: RouteProfile},
		),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.inspector == nil {
		s.inspector = gateway.NewInspector(nil)
	}

	transport := upstreamTransport(cfg.GetUpstreamTimeout())
	var err error
	if s.catalog, err = s.newProxy("catalog", RouteAPICatalog, cfg.GetCatalogAPIURL(), transport); err != nil {
		return nil, err
	}
	if s.images, err = s.newProxy("images", RouteAPIImages, cfg.GetImageAPIURL(), transport); err != nil {
		return nil, err
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) newProxy(name, prefix, rawURL string, transport http.RoundTripper) (*proxy.Proxy, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("[Server New] invalid %s service URL %q: %w", name, rawURL, err)
	}
	return proxy.New(name, prefix, target,
		proxy.WithTransport(transport),
		proxy.WithCookieOptions(s.cookies),
		proxy.WithNowFunc(s.nowFunc),
	), nil
}

// renderPass is the per-request session context of the rendering phase.
type renderPass struct {
	store   *tokenstore.RequestStore
	gateway *gateway.Gateway
	facade  *session.Facade

	// navigateTo is where the facade asked to go; handlers turn it into a redirect.
	navigateTo string
}

// newPass binds the gateway and a facade to the cookies of one request. Nothing survives the request.
func (s *Server) newPass(w http.ResponseWriter, r *http.Request) *renderPass {
	pass := &renderPass{store: tokenstore.NewRequestStore(w, r, s.cookies)}
	pass.gateway = gateway.New(s.api, pass.store, gateway.WithInspector(s.inspector), gateway.WithNowFunc(s.nowFunc))
	pass.facade = session.New(gateway.NewInProcess(pass.gateway), pass.store,
		session.WithRefreshBuffer(s.config.GetRefreshBuffer()),
		session.WithCallTimeout(2*s.config.GetUpstreamTimeout()), // refresh + profile
		session.WithNowFunc(s.nowFunc),
		session.WithNavigator(session.NavigatorFunc(func(_ context.Context, route string) {
			pass.navigateTo = route
		})),
	)
	return pass
}

func (s *Server) guardFor(pass *renderPass) *guard.Guard {
	return guard.New(pass.facade, guard.WithLoginRoute(RouteLogin))
}

func upstreamTransport(timeout time.Duration) http.RoundTripper {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = timeout
	return t
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
