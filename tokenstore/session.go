package tokenstore

import (
	"strconv"
	"time"

	apperrors "github.com/jrsteele09/go-admin-console/internal/errors"
	"golang.org/x/oauth2"
)

// Cookie names shared by the rendering pass and the browser.
const (
	AccessTokenCookie          = "access-token"
	RefreshTokenCookie         = "refresh-token"
	AccessTokenExpiresAtCookie = "access-token-expires-at"
)

// Session is the cookie-held credential set of one administrator.
type Session struct {
	// Tokens (refresh is essential, access is what every backend call carries)
	AccessToken  string
	RefreshToken string

	// ExpiresAt is the absolute expiry of AccessToken. Set together with AccessToken, cleared together with it.
	ExpiresAt time.Time
}

// HasAccessToken reports whether both halves of the access pair are present.
func (s Session) HasAccessToken() bool {
	return s.AccessToken != "" && !s.ExpiresAt.IsZero()
}

// OAuth2Token exposes the session as a bearer token for oauth2 transports.
func (s Session) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken,
		Expiry:       s.ExpiresAt,
	}
}

// Grant is what a successful login or refresh hands to the store.
type Grant struct {
	AccessToken string
	ExpiresAt   time.Time
	ExpiresIn   time.Duration

	// RefreshToken is empty when the auth service did not rotate it; the stored one is then kept.
	RefreshToken     string
	RefreshExpiresIn time.Duration
}

// Store is the full token store. Only the server side holds one.
type Store interface {
	Read() (Session, error)
	Write(grant Grant)
	Clear()
}

// ExpiryReader is the script-visible part of the store: the access token expiry and nothing else.
type ExpiryReader interface {
	// ExpiresAt returns the zero time when no expiry is stored.
	ExpiresAt() (time.Time, error)
}

// ParseExpiry decodes the expiry cookie value (milliseconds since epoch).
func ParseExpiry(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, apperrors.Wrapf(apperrors.ErrMalformedSession, "expiry cookie %q", raw)
	}
	return time.UnixMilli(ms), nil
}

// FormatExpiry encodes t the way ParseExpiry expects it.
func FormatExpiry(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// IsExpired reports whether an access token expiring at expiresAt should be refreshed at now.
// A missing expiry counts as expired, and so does one inside the buffer.
func IsExpired(expiresAt, now time.Time, buffer time.Duration) bool {
	if expiresAt.IsZero() {
		return true
	}
	return expiresAt.Before(now.Add(buffer))
}
