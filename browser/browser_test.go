package browser_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-admin-console/authapi"
	"github.com/jrsteele09/go-admin-console/authapi/authapifake"
	"github.com/jrsteele09/go-admin-console/browser"
	"github.com/jrsteele09/go-admin-console/guard"
	"github.com/jrsteele09/go-admin-console/internal/config"
	apperrors "github.com/jrsteele09/go-admin-console/internal/errors"
	"github.com/jrsteele09/go-admin-console/server"
	"github.com/jrsteele09/go-admin-console/session"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "admin@example.com"
	testPassword = "Password123"
)

type routeLog struct {
	mu     sync.Mutex
	routes []string
}

func (l *routeLog) Navigate(_ context.Context, route string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.routes = append(l.routes, route)
}

func (l *routeLog) last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.routes) == 0 {
		return ""
	}
	return l.routes[len(l.routes)-1]
}

type testFixture struct {
	fake    *authapifake.Server
	console *httptest.Server
	nav     *routeLog
	session *browser.Session
}

func setupTestFixture(t *testing.T, options ...authapifake.Option) *testFixture {
	t.Helper()
	fake := authapifake.New(options...)
	t.Cleanup(fake.Close)
	_, err := fake.AddAdmin(testEmail, testPassword, "Ada", "Admin")
	require.NoError(t, err)

	t.Setenv("ENV", "TEST")
	srv, err := server.New(config.New(), authapi.NewClient(fake.URL))
	require.NoError(t, err)
	console := httptest.NewServer(srv)
	t.Cleanup(console.Close)

	client, err := browser.NewClient(console.URL, browser.WithTimeout(5*time.Second))
	require.NoError(t, err)
	nav := &routeLog{}
	s := browser.NewSession(client, browser.WithNavigator(nav))
	t.Cleanup(s.Stop)

	return &testFixture{fake: fake, console: console, nav: nav, session: s}
}

func TestSession_LoginLogout(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.session.Start(ctx)

	require.False(t, f.session.Facade.Login(ctx, testEmail, "wrong"))
	require.False(t, f.session.Facade.State().IsLoading)

	require.True(t, f.session.Facade.Login(ctx, testEmail, testPassword))
	require.Equal(t, session.HomeRoute, f.nav.last())

	expiresAt, err := f.session.Client.Store().ExpiresAt()
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)
	require.True(t, f.session.Facade.State().TokenExpiresAt.Equal(expiresAt))

	due, pending := f.session.Scheduler.Pending()
	require.True(t, pending)
	require.WithinDuration(t, expiresAt.Add(-30*time.Second), due, time.Second)

	require.True(t, f.session.Guard.Navigate(ctx, guard.Route{Path: "/profile"}, f.nav))
	require.Equal(t, "/profile", f.nav.last())

	f.session.Facade.Logout(ctx)
	require.Equal(t, session.LoginRoute, f.nav.last())
	_, pending = f.session.Scheduler.Pending()
	require.False(t, pending)

	expiresAt, err = f.session.Client.Store().ExpiresAt()
	require.NoError(t, err)
	require.True(t, expiresAt.IsZero())

	require.False(t, f.session.Guard.Navigate(ctx, guard.Route{Path: "/profile"}, f.nav))
	require.Equal(t, session.LoginRoute, f.nav.last())
}

func TestSession_SchedulerRefreshesBeforeExpiry(t *testing.T) {
	f := setupTestFixture(t, authapifake.WithAccessTTL(31*time.Second))
	ctx := context.Background()
	f.session.Start(ctx)

	require.True(t, f.session.Facade.Login(ctx, testEmail, testPassword))
	first := f.session.Facade.State().TokenExpiresAt

	require.Eventually(t, func() bool {
		return f.fake.Calls(authapi.PathTokenRefresh) >= 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return f.session.Facade.State().TokenExpiresAt.After(first)
	}, 5*time.Second, 10*time.Millisecond)
	require.True(t, f.session.Facade.State().IsAuthenticated())
}

func TestClient_Errors(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.session.Client.Profile(ctx)
	var apiErr *browser.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "Failed to get profile", apiErr.Message)
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	f.console.Close()
	require.ErrorIs(t, f.session.Client.Refresh(ctx), apperrors.ErrTransport)
}
