package config

import "time"

// DefaultRefreshBuffer is how long before real expiry an access token is treated as expired.
const DefaultRefreshBuffer = 30 * time.Second

type SessionConfig interface {
	GetCookieSecure() bool
	GetRefreshBuffer() time.Duration
	GetAuthJWKSURL() string
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetCookieSecure() bool {
	return GetEnvBool("COOKIE_SECURE", false)
}

func (Session) GetRefreshBuffer() time.Duration {
	buffer := GetEnvDuration("TOKEN_REFRESH_BUFFER_MS", DefaultRefreshBuffer)
	if buffer < 0 {
		return DefaultRefreshBuffer
	}
	return buffer
}

// GetAuthJWKSURL is optional. When set, access tokens issued by the auth service are signature checked.
func (Session) GetAuthJWKSURL() string {
	return GetEnv("AUTH_JWKS_URL", "")
}
