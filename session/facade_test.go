package session_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-admin-console/authapi"
	"github.com/jrsteele09/go-admin-console/authapi/authapifake"
	"github.com/jrsteele09/go-admin-console/gateway"
	apperrors "github.com/jrsteele09/go-admin-console/internal/errors"
	"github.com/jrsteele09/go-admin-console/session"
	"github.com/jrsteele09/go-admin-console/tokenstore"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "a@b.com"
	testPassword = "right"
)

// memoryStore holds only an expiry, like the script-visible cookie.
type memoryStore struct {
	mu        sync.Mutex
	expiresAt time.Time
	cleared   int
}

func (m *memoryStore) ExpiresAt() (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiresAt, nil
}

func (m *memoryStore) clearCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleared
}

func (m *memoryStore) set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiresAt = t
}

func (m *memoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiresAt = time.Time{}
	m.cleared++
}

// stubBackend counts network calls and moves the store expiry on refresh.
type stubBackend struct {
	store      *memoryStore
	newExpiry  time.Time
	refreshErr error
	profileErr error
	logoutErr  error
	release    chan struct{}

	// profileEntered is signalled when Profile starts; Profile then waits for profileRelease.
	profileEntered chan struct{}
	profileRelease chan struct{}

	refreshCalls atomic.Int32
	profileCalls atomic.Int32
	logoutCalls  atomic.Int32
}

func (b *stubBackend) Login(_ context.Context, email, password string) (*authapi.AdminUserProfile, error) {
	if password != testPassword {
		return nil, &authapi.ResponseError{StatusCode: http.StatusUnauthorized, Detail: "Invalid email or password"}
	}
	b.store.set(b.newExpiry)
	return &authapi.AdminUserProfile{ID: "1", Email: email}, nil
}

func (b *stubBackend) Logout(context.Context) error {
	b.logoutCalls.Add(1)
	return b.logoutErr
}

func (b *stubBackend) Refresh(context.Context) error {
	b.refreshCalls.Add(1)
	if b.release != nil {
		<-b.release
	}
	if b.refreshErr != nil {
		return b.refreshErr
	}
	b.store.set(b.newExpiry)
	return nil
}

func (b *stubBackend) Profile(context.Context) (*authapi.AdminUserProfile, error) {
	b.profileCalls.Add(1)
	if b.profileEntered != nil {
		b.profileEntered <- struct{}{}
		<-b.profileRelease
	}
	if b.profileErr != nil {
		return nil, b.profileErr
	}
	return &authapi.AdminUserProfile{ID: "1", Email: testEmail}, nil
}

type recordingNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *recordingNavigator) Navigate(_ context.Context, route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *recordingNavigator) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.routes) == 0 {
		return ""
	}
	return n.routes[len(n.routes)-1]
}

type testFixture struct {
	now     time.Time
	store   *memoryStore
	backend *stubBackend
	nav     *recordingNavigator
	facade  *session.Facade
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &memoryStore{}
	backend := &stubBackend{store: store, newExpiry: now.Add(15 * time.Minute)}
	nav := &recordingNavigator{}
	facade := session.New(backend, store,
		session.WithNavigator(nav),
		session.WithRefreshBuffer(30*time.Second),
		session.WithNowFunc(func() time.Time { return now }),
	)
	return &testFixture{now: now, store: store, backend: backend, nav: nav, facade: facade}
}

func (f *testFixture) loggedIn(t *testing.T) {
	t.Helper()
	require.True(t, f.facade.Login(context.Background(), testEmail, testPassword))
}

func TestFacade_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success caches the profile and goes home", func(t *testing.T) {
		f := setupTestFixture(t)
		require.True(t, f.facade.State().IsLoading)

		require.True(t, f.facade.Login(ctx, testEmail, testPassword))
		state := f.facade.State()
		require.True(t, state.IsAuthenticated())
		require.False(t, state.IsLoading)
		require.Equal(t, testEmail, state.User.Email)
		require.True(t, state.TokenExpiresAt.Equal(f.backend.newExpiry))
		require.Equal(t, session.HomeRoute, f.nav.last())
	})

	t.Run("rejected credentials", func(t *testing.T) {
		f := setupTestFixture(t)
		require.False(t, f.facade.Login(ctx, testEmail, "wrong"))
		state := f.facade.State()
		require.Nil(t, state.User)
		require.False(t, state.IsLoading)
		require.Empty(t, f.nav.routes)
	})
}

func TestFacade_Logout(t *testing.T) {
	for name, logoutErr := range map[string]error{
		"upstream ok":     nil,
		"upstream failed": apperrors.ErrTransport,
	} {
		t.Run(name, func(t *testing.T) {
			f := setupTestFixture(t)
			f.loggedIn(t)
			f.backend.logoutErr = logoutErr

			f.facade.Logout(context.Background())
			require.False(t, f.facade.State().IsAuthenticated())
			require.Equal(t, 1, f.store.cleared)
			require.True(t, f.store.expiresAt.IsZero())
			require.Equal(t, session.LoginRoute, f.nav.last())
		})
	}
}

func TestFacade_EnsureAuthenticated(t *testing.T) {
	ctx := context.Background()

	t.Run("cached profile and distant expiry needs no network", func(t *testing.T) {
		f := setupTestFixture(t)
		f.loggedIn(t)
		f.store.set(f.now.Add(10 * time.Minute))

		require.True(t, f.facade.EnsureAuthenticated(ctx))
		require.Zero(t, f.backend.refreshCalls.Load())
		require.Zero(t, f.backend.profileCalls.Load())
	})

	t.Run("expiry inside the buffer refreshes", func(t *testing.T) {
		f := setupTestFixture(t)
		f.loggedIn(t)
		f.store.set(f.now.Add(25 * time.Second))

		require.True(t, f.facade.EnsureAuthenticated(ctx))
		require.Equal(t, int32(1), f.backend.refreshCalls.Load())
		require.Zero(t, f.backend.profileCalls.Load())
		require.True(t, f.facade.State().TokenExpiresAt.Equal(f.backend.newExpiry))
	})

	t.Run("expiry just outside the buffer does not refresh", func(t *testing.T) {
		f := setupTestFixture(t)
		f.loggedIn(t)
		f.store.set(f.now.Add(35 * time.Second))

		require.True(t, f.facade.EnsureAuthenticated(ctx))
		require.Zero(t, f.backend.refreshCalls.Load())
	})

	t.Run("missing expiry refreshes then loads the profile", func(t *testing.T) {
		f := setupTestFixture(t)

		require.True(t, f.facade.EnsureAuthenticated(ctx))
		require.Equal(t, int32(1), f.backend.refreshCalls.Load())
		require.Equal(t, int32(1), f.backend.profileCalls.Load())
		state := f.facade.State()
		require.True(t, state.IsAuthenticated())
		require.False(t, state.IsLoading)
	})

	t.Run("refresh failure clears the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.loggedIn(t)
		f.store.set(f.now.Add(-time.Minute))
		f.backend.refreshErr = apperrors.ErrTransport

		require.False(t, f.facade.EnsureAuthenticated(ctx))
		state := f.facade.State()
		require.False(t, state.IsAuthenticated())
		require.False(t, state.IsLoading)
		require.Equal(t, 1, f.store.cleared)
	})

	t.Run("stale token after refresh is a failure", func(t *testing.T) {
		f := setupTestFixture(t)
		f.loggedIn(t)
		f.backend.newExpiry = f.now.Add(-time.Minute)
		f.store.set(f.backend.newExpiry)

		require.False(t, f.facade.EnsureAuthenticated(ctx))
		require.False(t, f.facade.State().IsAuthenticated())
	})

	t.Run("profile failure clears the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.store.set(f.now.Add(10 * time.Minute))
		f.backend.profileErr = errors.New("boom")

		require.False(t, f.facade.EnsureAuthenticated(ctx))
		require.Nil(t, f.facade.State().User)
		require.Equal(t, 1, f.store.cleared)
	})

	t.Run("concurrent callers share one refresh", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.release = make(chan struct{})

		const callers = 8
		results := make(chan bool, callers)
		var wg sync.WaitGroup
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- f.facade.EnsureAuthenticated(ctx)
			}()
		}
		require.Eventually(t, func() bool { return f.backend.refreshCalls.Load() == 1 }, time.Second, time.Millisecond)
		close(f.backend.release)
		wg.Wait()
		close(results)

		for ok := range results {
			require.True(t, ok)
		}
		require.Equal(t, int32(1), f.backend.refreshCalls.Load())
		require.Equal(t, int32(1), f.backend.profileCalls.Load())
	})
}

func TestFacade_LogoutDuringCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("profile arriving after logout is dropped", func(t *testing.T) {
		f := setupTestFixture(t)
		f.store.set(f.now.Add(10 * time.Minute))
		f.backend.profileEntered = make(chan struct{}, 1)
		f.backend.profileRelease = make(chan struct{})

		result := make(chan bool, 1)
		go func() { result <- f.facade.EnsureAuthenticated(ctx) }()
		<-f.backend.profileEntered

		f.facade.Logout(ctx)
		close(f.backend.profileRelease)

		require.False(t, <-result)
		state := f.facade.State()
		require.False(t, state.IsAuthenticated())
		require.True(t, state.TokenExpiresAt.IsZero())
		expiresAt, err := f.store.ExpiresAt()
		require.NoError(t, err)
		require.True(t, expiresAt.IsZero())
		require.Equal(t, session.LoginRoute, f.nav.last())
	})

	t.Run("refresh landing after logout is cleared again", func(t *testing.T) {
		f := setupTestFixture(t)
		f.loggedIn(t)
		f.store.set(f.now.Add(-time.Minute))
		f.backend.release = make(chan struct{})

		result := make(chan bool, 1)
		go func() { result <- f.facade.EnsureAuthenticated(ctx) }()
		require.Eventually(t, func() bool { return f.backend.refreshCalls.Load() == 1 }, time.Second, time.Millisecond)

		f.facade.Logout(ctx)
		close(f.backend.release)

		require.False(t, <-result)
		require.False(t, f.facade.State().IsAuthenticated())
		expiresAt, err := f.store.ExpiresAt()
		require.NoError(t, err)
		require.True(t, expiresAt.IsZero(), "cookies written by the late refresh are removed")
		require.Equal(t, 2, f.store.clearCount())
	})

	t.Run("check after logout starts a new round", func(t *testing.T) {
		f := setupTestFixture(t)
		f.store.set(f.now.Add(10 * time.Minute))
		f.backend.profileEntered = make(chan struct{}, 2)
		f.backend.profileRelease = make(chan struct{})

		first := make(chan bool, 1)
		go func() { first <- f.facade.EnsureAuthenticated(ctx) }()
		<-f.backend.profileEntered
		f.facade.Logout(ctx)

		f.backend.refreshErr = apperrors.ErrRefreshRejected
		second := make(chan bool, 1)
		go func() { second <- f.facade.EnsureAuthenticated(ctx) }()
		require.False(t, <-second, "logged out session needs a refresh, which is rejected")

		close(f.backend.profileRelease)
		require.False(t, <-first)
		require.False(t, f.facade.State().IsAuthenticated())
	})
}

func TestFacade_CallerCancellation(t *testing.T) {
	f := setupTestFixture(t)
	f.loggedIn(t)
	f.store.set(f.now.Add(25 * time.Second))
	f.backend.release = make(chan struct{})

	navCtx, cancel := context.WithCancel(context.Background())
	result := make(chan bool, 1)
	go func() { result <- f.facade.EnsureAuthenticated(navCtx) }()
	require.Eventually(t, func() bool { return f.backend.refreshCalls.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	require.False(t, <-result, "the cancelled caller stops waiting")

	close(f.backend.release)
	require.Eventually(t, func() bool {
		return f.facade.State().TokenExpiresAt.Equal(f.backend.newExpiry)
	}, time.Second, time.Millisecond)
	require.True(t, f.facade.EnsureAuthenticated(context.Background()))
	require.True(t, f.facade.State().IsAuthenticated())
	require.Equal(t, int32(1), f.backend.refreshCalls.Load())
	require.Zero(t, f.store.clearCount(), "a cancelled caller does not end the session")
}

func TestFacade_Subscribe(t *testing.T) {
	f := setupTestFixture(t)

	var states []session.State
	unsubscribe := f.facade.Subscribe(func(s session.State) { states = append(states, s) })

	f.loggedIn(t)
	require.NotEmpty(t, states)
	require.True(t, states[len(states)-1].IsAuthenticated())

	seen := len(states)
	require.True(t, f.facade.EnsureAuthenticated(context.Background()))
	require.Len(t, states, seen, "no change, no notification")

	unsubscribe()
	f.facade.Logout(context.Background())
	require.Len(t, states, seen)
}

// TestFacade_RenderingPhase drives the facade through the gateway and a request-bound cookie store.
func TestFacade_RenderingPhase(t *testing.T) {
	fake := authapifake.New()
	t.Cleanup(fake.Close)
	_, err := fake.AddAdmin(testEmail, testPassword, "Ada", "Admin")
	require.NoError(t, err)
	api := authapi.NewClient(fake.URL)
	ctx := context.Background()

	newPass := func(cookies []*http.Cookie) (*session.Facade, *httptest.ResponseRecorder) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		store := tokenstore.NewRequestStore(rec, req, tokenstore.CookieOptions{})
		return session.New(gateway.NewInProcess(gateway.New(api, store)), store), rec
	}

	t.Run("wrong password against the auth service", func(t *testing.T) {
		facade, rec := newPass(nil)
		require.False(t, facade.Login(ctx, testEmail, "wrong"))
		require.Nil(t, facade.State().User)
		require.False(t, facade.State().IsLoading)
		require.Empty(t, rec.Result().Cookies())
	})

	t.Run("network failure on refresh clears and does not retry", func(t *testing.T) {
		facade, rec := newPass(nil)
		require.True(t, facade.Login(ctx, testEmail, testPassword))
		cookies := rec.Result().Cookies()

		// Next request arrives with an access token that has run out.
		expired := make([]*http.Cookie, 0, len(cookies))
		for _, c := range cookies {
			if c.Name == tokenstore.AccessTokenExpiresAtCookie {
				c.Value = tokenstore.FormatExpiry(time.Now().Add(-time.Minute))
			}
			expired = append(expired, c)
		}
		fake.DropConnections(authapi.PathTokenRefresh, true)
		t.Cleanup(func() { fake.DropConnections(authapi.PathTokenRefresh, false) })

		facade, rec = newPass(expired)
		require.False(t, facade.EnsureAuthenticated(ctx))
		require.False(t, facade.State().IsAuthenticated())
		require.Equal(t, 1, fake.Calls(authapi.PathTokenRefresh))

		require.False(t, facade.EnsureAuthenticated(ctx))
		require.Equal(t, 1, fake.Calls(authapi.PathTokenRefresh), "cleared session has nothing to refresh with")

		for _, c := range rec.Result().Cookies() {
			require.Empty(t, c.Value, c.Name)
		}
	})
}
