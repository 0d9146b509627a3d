package authapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jrsteele09/go-admin-console/authapi"
	"github.com/jrsteele09/go-admin-console/authapi/authapifake"
	apperrors "github.com/jrsteele09/go-admin-console/internal/errors"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "admin@example.com"
	testPassword = "Password123"
)

func setupAuthService(t *testing.T, options ...authapifake.Option) (*authapifake.Server, *authapi.Client) {
	t.Helper()
	fake := authapifake.New(options...)
	t.Cleanup(fake.Close)
	_, err := fake.AddAdmin(testEmail, testPassword, "Ada", "Admin")
	require.NoError(t, err)
	return fake, authapi.NewClient(fake.URL, authapi.WithTimeout(5*time.Second))
}

func TestClient_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		_, client := setupAuthService(t)
		resp, err := client.Login(ctx, authapi.LoginRequest{Email: testEmail, Password: testPassword})
		require.NoError(t, err)
		require.NotEmpty(t, resp.AccessToken)
		require.NotEmpty(t, resp.RefreshToken)
		require.Equal(t, testEmail, resp.User.Email)
		require.Equal(t, 900, resp.ExpiresIn)
		require.WithinDuration(t, time.Now().Add(15*time.Minute), resp.ExpiresAt, 5*time.Second)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, client := setupAuthService(t)
		_, err := client.Login(ctx, authapi.LoginRequest{Email: "a@b.com", Password: "wrong"})
		require.Error(t, err)
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		require.Equal(t, http.StatusUnauthorized, authapi.StatusCode(err, 0))
		require.Equal(t, "Invalid email or password", authapi.Detail(err, ""))
	})

	t.Run("upstream error", func(t *testing.T) {
		fake, client := setupAuthService(t)
		fake.FailWith(authapi.PathAdminLogin, http.StatusServiceUnavailable)
		_, err := client.Login(ctx, authapi.LoginRequest{Email: testEmail, Password: testPassword})
		require.ErrorIs(t, err, apperrors.ErrUpstream)
		require.Equal(t, http.StatusServiceUnavailable, authapi.StatusCode(err, 0))
	})

	t.Run("transport failure", func(t *testing.T) {
		fake, client := setupAuthService(t)
		fake.DropConnections(authapi.PathAdminLogin, true)
		_, err := client.Login(ctx, authapi.LoginRequest{Email: testEmail, Password: testPassword})
		require.ErrorIs(t, err, apperrors.ErrTransport)
		require.Equal(t, http.StatusBadGateway, authapi.StatusCode(err, http.StatusBadGateway))
	})
}

func TestClient_RefreshAndProfile(t *testing.T) {
	ctx := context.Background()
	fake, client := setupAuthService(t)

	login, err := client.Login(ctx, authapi.LoginRequest{Email: testEmail, Password: testPassword})
	require.NoError(t, err)

	profile, err := client.GetProfile(ctx, login.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "Ada Admin", profile.DisplayName())

	refreshed, err := client.RefreshToken(ctx, authapi.TokenRefreshRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	require.NotEqual(t, login.AccessToken, refreshed.AccessToken)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	t.Run("previous access token is no longer accepted", func(t *testing.T) {
		_, err := client.GetProfile(ctx, login.AccessToken)
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("rotated refresh token cannot be reused", func(t *testing.T) {
		_, err := client.RefreshToken(ctx, authapi.TokenRefreshRequest{RefreshToken: login.RefreshToken})
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("logout revokes the session", func(t *testing.T) {
		require.NoError(t, client.Logout(ctx, refreshed.AccessToken))
		_, err := client.GetProfile(ctx, refreshed.AccessToken)
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		_, err = client.RefreshToken(ctx, authapi.TokenRefreshRequest{RefreshToken: refreshed.RefreshToken})
		require.Error(t, err)
	})

	require.Equal(t, 1, fake.Calls(authapi.PathAdminLogin))
	require.Equal(t, 2, fake.Calls(authapi.PathTokenRefresh))
}

func TestAdminUserProfile_DisplayName(t *testing.T) {
	require.Equal(t, "Ada Admin", authapi.AdminUserProfile{FirstName: "Ada", LastName: "Admin"}.DisplayName())
	require.Equal(t, "Ada", authapi.AdminUserProfile{FirstName: "Ada"}.DisplayName())
	require.Equal(t, "a@b.com", authapi.AdminUserProfile{Email: "a@b.com"}.DisplayName())
}
