package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-admin-console/authapi"
	apperrors "github.com/jrsteele09/go-admin-console/internal/errors"
	"github.com/jrsteele09/go-admin-console/tokenstore"
	"github.com/rs/zerolog/log"
)

// Gateway is the only party that holds the refresh token and talks to the auth service.
// One Gateway serves one rendering pass; it is bound to that pass's token store.
type Gateway struct {
	api       authapi.API
	store     tokenstore.Store
	inspector *Inspector
	nowFunc   func() time.Time
}

type Option func(*Gateway)

func WithInspector(inspector *Inspector) Option {
	return func(g *Gateway) {
		g.inspector = inspector
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(g *Gateway) {
		g.nowFunc = now
	}
}

func New(api authapi.API, store tokenstore.Store, options ...Option) *Gateway {
	g := &Gateway{
		api:     api,
		store:   store,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(g)
	}
	if g.inspector == nil {
		g.inspector = NewInspector(nil)
	}
	return g
}

// Store returns the token store this gateway writes to.
func (g *Gateway) Store() tokenstore.Store {
	return g.store
}

// Login exchanges credentials for a session and stores it.
func (g *Gateway) Login(ctx context.Context, creds authapi.LoginRequest) (*authapi.AdminAuthResponse, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, apperrors.ErrMissingCredentials
	}

	resp, err := g.api.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("[Gateway Login] %w", err)
	}

	grant, err := g.grantFrom(ctx, &resp.TokenRefreshResponse)
	if err != nil {
		return nil, fmt.Errorf("[Gateway Login] %w", err)
	}
	g.store.Write(grant)
	return resp, nil
}

// RefreshToken replaces the access token using the stored refresh token.
// Any failure clears the stored session.
func (g *Gateway) RefreshToken(ctx context.Context) error {
	session, err := g.store.Read()
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("refreshing over a malformed session")
	}
	if session.RefreshToken == "" {
		g.store.Clear()
		return fmt.Errorf("[Gateway RefreshToken] %w", apperrors.ErrNoRefreshToken)
	}

	resp, err := g.api.RefreshToken(ctx, authapi.TokenRefreshRequest{RefreshToken: session.RefreshToken})
	if err != nil {
		g.store.Clear()
		if apperrors.Is(err, apperrors.ErrInvalidCredentials) {
			return fmt.Errorf("[Gateway RefreshToken] %w: %w", apperrors.ErrRefreshRejected, err)
		}
		return fmt.Errorf("[Gateway RefreshToken] %w", err)
	}

	grant, err := g.grantFrom(ctx, resp)
	if err != nil {
		g.store.Clear()
		return fmt.Errorf("[Gateway RefreshToken] %w", err)
	}
	g.store.Write(grant)
	log.Ctx(ctx).Debug().Time("expires_at", grant.ExpiresAt).Bool("rotated", grant.RefreshToken != "").Msg("access token refreshed")
	return nil
}

// GetProfile fetches the profile of the stored session. Any failure clears the stored session.
func (g *Gateway) GetProfile(ctx context.Context) (*authapi.AdminUserProfile, error) {
	session, err := g.store.Read()
	if err != nil || !session.HasAccessToken() {
		return nil, fmt.Errorf("[Gateway GetProfile] %w", apperrors.ErrNotAuthenticated)
	}

	profile, err := g.api.GetProfile(ctx, session.AccessToken)
	if err != nil {
		g.store.Clear()
		return nil, fmt.Errorf("[Gateway GetProfile] %w", err)
	}
	return profile, nil
}

// Logout revokes the access token upstream. Callers clear the store whatever the outcome.
func (g *Gateway) Logout(ctx context.Context) error {
	session, err := g.store.Read()
	if err != nil || !session.HasAccessToken() {
		return fmt.Errorf("[Gateway Logout] %w", apperrors.ErrNotAuthenticated)
	}
	if err := g.api.Logout(ctx, session.AccessToken); err != nil {
		return fmt.Errorf("[Gateway Logout] %w", err)
	}
	return nil
}

// grantFrom turns an auth service token response into a store write.
// Expiry comes from expiresAt, then the JWT exp claim, then expiresIn.
func (g *Gateway) grantFrom(ctx context.Context, resp *authapi.TokenRefreshResponse) (tokenstore.Grant, error) {
	if resp.AccessToken == "" {
		return tokenstore.Grant{}, apperrors.Wrapf(apperrors.ErrUnexpectedResponse, "no access token in response")
	}
	if err := g.inspector.Verify(ctx, resp.AccessToken); err != nil {
		return tokenstore.Grant{}, err
	}

	now := g.nowFunc()
	expiresIn := time.Duration(resp.ExpiresIn) * time.Second
	expiresAt := resp.ExpiresAt
	if expiresAt.IsZero() {
		if exp, ok := g.inspector.Expiry(resp.AccessToken); ok {
			expiresAt = exp
		} else if expiresIn > 0 {
			expiresAt = now.Add(expiresIn)
		} else {
			return tokenstore.Grant{}, apperrors.Wrapf(apperrors.ErrUnexpectedResponse, "no expiry in response")
		}
	}
	if expiresIn <= 0 {
		expiresIn = expiresAt.Sub(now)
	}

	return tokenstore.Grant{
		AccessToken:      resp.AccessToken,
		ExpiresAt:        expiresAt,
		ExpiresIn:        expiresIn,
		RefreshToken:     resp.RefreshToken,
		RefreshExpiresIn: time.Duration(resp.RefreshExpiresIn) * time.Second,
	}, nil
}
