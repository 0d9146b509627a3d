package tokenstore

import (
	"net/http"
	"net/url"
	"time"
)

// JarStore is the browser-phase view of the session cookies held in a cookie jar.
// Like page script, it can see the expiry marker but never the HTTP-only tokens.
type JarStore struct {
	jar http.CookieJar
	u   *url.URL
}

var _ ExpiryReader = (*JarStore)(nil)

func NewJarStore(jar http.CookieJar, u *url.URL) *JarStore {
	return &JarStore{jar: jar, u: u}
}

func (s *JarStore) ExpiresAt() (time.Time, error) {
	for _, c := range s.jar.Cookies(s.u) {
		if c.Name == AccessTokenExpiresAtCookie {
			return ParseExpiry(c.Value)
		}
	}
	return time.Time{}, nil
}

// Clear drops every session cookie from the jar, so the next request carries no credentials.
func (s *JarStore) Clear() {
	expired := make([]*http.Cookie, 0, 3)
	for _, name := range []string{AccessTokenCookie, AccessTokenExpiresAtCookie, RefreshTokenCookie} {
		expired = append(expired, &http.Cookie{Name: name, Path: "/", MaxAge: -1})
	}
	s.jar.SetCookies(s.u, expired)
}
