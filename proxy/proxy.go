package proxy

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-admin-console/internal/respond"
	"github.com/jrsteele09/go-admin-console/tokenstore"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Proxy forwards console API calls to a backend service, presenting the session's access token as a bearer
// credential. Browser cookies never leave the console.
type Proxy struct {
	name    string
	prefix  string
	target  *url.URL
	base    http.RoundTripper
	cookies tokenstore.CookieOptions
	nowFunc func() time.Time
}

type Option func(*Proxy)

func WithTransport(base http.RoundTripper) Option {
	return func(p *Proxy) {
		p.base = base
	}
}

func WithCookieOptions(opts tokenstore.CookieOptions) Option {
	return func(p *Proxy) {
		p.cookies = opts
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(p *Proxy) {
		p.nowFunc = now
	}
}

// New proxies requests under prefix to target, with prefix removed from the path.
func New(name, prefix string, target *url.URL, options ...Option) *Proxy {
	p := &Proxy{
		name:    name,
		prefix:  strings.TrimSuffix(prefix, "/"),
		target:  target,
		base:    http.DefaultTransport,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session, err := tokenstore.NewRequestStore(w, r, p.cookies).Read()
	if err != nil || !session.HasAccessToken() || tokenstore.IsExpired(session.ExpiresAt, p.nowFunc(), 0) {
		respond.Error(w, r, http.StatusUnauthorized, "Not authenticated")
		return
	}

	rp := &httputil.ReverseProxy{
		Rewrite: p.rewrite,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(session.OAuth2Token()),
			Base:   p.base,
		},
		ModifyResponse: func(resp *http.Response) error {
			resp.Header.Del("Set-Cookie")
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Ctx(r.Context()).Err(err).Str("service", p.name).Msg("proxy request failed")
			respond.Error(w, r, http.StatusBadGateway, p.name+" service unavailable")
		},
	}
	rp.ServeHTTP(w, r)
}

func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, p.prefix)
	pr.Out.URL.RawPath = ""
	pr.SetURL(p.target)
	pr.SetXForwarded()
	pr.Out.Header.Del("Cookie")
	pr.Out.Header.Del("Authorization")
}
