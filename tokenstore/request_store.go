package tokenstore

import (
	"math"
	"net/http"
	"strings"
	"sync"
	"time"
)

// CookieOptions are the attributes shared by all three session cookies.
type CookieOptions struct {
	Secure bool
}

// RequestStore is the rendering-phase store. It reads the cookies of one incoming request and
// writes Set-Cookie headers on its response. Writes are visible to later reads in the same pass.
type RequestStore struct {
	w    http.ResponseWriter
	r    *http.Request
	opts CookieOptions

	mu      sync.Mutex
	overlay map[string]string // cookie name -> value written during this pass ("" = cleared)
}

var (
	_ Store        = (*RequestStore)(nil)
	_ ExpiryReader = (*RequestStore)(nil)
)

func NewRequestStore(w http.ResponseWriter, r *http.Request, opts CookieOptions) *RequestStore {
	return &RequestStore{
		w:       w,
		r:       r,
		opts:    opts,
		overlay: make(map[string]string),
	}
}

// Read returns the stored session. The access pair is reported only when both halves are present and
// the expiry parses; a malformed expiry is returned as an error alongside the (still usable) refresh token.
func (s *RequestStore) Read() (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := Session{RefreshToken: s.value(RefreshTokenCookie)}
	expiresAt, err := ParseExpiry(s.value(AccessTokenExpiresAtCookie))
	if err != nil {
		return session, err
	}
	access := s.value(AccessTokenCookie)
	if access == "" || expiresAt.IsZero() {
		return session, nil
	}
	session.AccessToken = access
	session.ExpiresAt = expiresAt
	return session, nil
}

func (s *RequestStore) ExpiresAt() (time.Time, error) {
	session, err := s.Read()
	if err != nil {
		return time.Time{}, err
	}
	return session.ExpiresAt, nil
}

func (s *RequestStore) Write(grant Grant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxAge := maxAgeSeconds(grant.ExpiresIn)
	s.set(AccessTokenCookie, grant.AccessToken, true, maxAge)
	if grant.RefreshToken != "" {
		s.set(RefreshTokenCookie, grant.RefreshToken, true, maxAgeSeconds(grant.RefreshExpiresIn))
	}
	s.set(AccessTokenExpiresAtCookie, FormatExpiry(grant.ExpiresAt), false, maxAge)
}

// maxAgeSeconds rounds a validity window up to whole seconds, so a sub-second window still
// expires instead of becoming a session cookie. An unknown window (<= 0) yields a session cookie.
func maxAgeSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func (s *RequestStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range []string{AccessTokenCookie, AccessTokenExpiresAtCookie, RefreshTokenCookie} {
		s.set(name, "", name != AccessTokenExpiresAtCookie, -1)
	}
}

func (s *RequestStore) value(name string) string {
	if v, ok := s.overlay[name]; ok {
		return v
	}
	c, err := s.r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *RequestStore) set(name, value string, httpOnly bool, maxAge int) {
	s.overlay[name] = value

	// Only the last Set-Cookie for a name should reach the client.
	header := s.w.Header()
	var kept []string
	for _, line := range header.Values("Set-Cookie") {
		if !strings.HasPrefix(line, name+"=") {
			kept = append(kept, line)
		}
	}
	header.Del("Set-Cookie")
	for _, line := range kept {
		header.Add("Set-Cookie", line)
	}

	http.SetCookie(s.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}
