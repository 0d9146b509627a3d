package authapi

import "time"

// LoginRequest is the body of the admin login call.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AdminUserProfile is the identity of an authenticated administrator.
type AdminUserProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// DisplayName returns "First Last", falling back to the email address.
func (p AdminUserProfile) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	default:
		return p.Email
	}
}

// TokenRefreshRequest exchanges a refresh token for a new access token.
type TokenRefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenRefreshResponse is returned by the refresh call.
type TokenRefreshResponse struct {
	// AccessToken is the new bearer credential. It replaces the previous one.
	AccessToken string `json:"accessToken"`

	// ExpiresAt is the absolute expiry of AccessToken. May be zero on older auth service builds.
	ExpiresAt time.Time `json:"expiresAt,omitempty"`

	// ExpiresIn is the lifetime of AccessToken in seconds.
	ExpiresIn int `json:"expiresIn"`

	// RefreshToken is set when the auth service rotates the refresh token.
	RefreshToken string `json:"refreshToken,omitempty"`

	// RefreshExpiresIn is the lifetime of RefreshToken in seconds.
	RefreshExpiresIn int `json:"refreshExpiresIn,omitempty"`

	TokenType string `json:"tokenType,omitempty"`
}

// AdminAuthResponse is returned by a successful admin login.
type AdminAuthResponse struct {
	TokenRefreshResponse
	User AdminUserProfile `json:"user"`
}
