package session

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-admin-console/authapi"
	"github.com/jrsteele09/go-admin-console/tokenstore"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	HomeRoute  = "/"
	LoginRoute = "/login"
)

const ensureKey = "ensure"

// Backend performs the network side of the session: the gateway itself during rendering,
// or the BFF auth API from the browser.
type Backend interface {
	Login(ctx context.Context, email, password string) (*authapi.AdminUserProfile, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
	Profile(ctx context.Context) (*authapi.AdminUserProfile, error)
}

// Navigator moves the user to another route.
type Navigator interface {
	Navigate(ctx context.Context, route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, route string)

func (f NavigatorFunc) Navigate(ctx context.Context, route string) {
	f(ctx, route)
}

// State is a snapshot of the session as the UI sees it.
type State struct {
	User           *authapi.AdminUserProfile
	IsLoading      bool
	TokenExpiresAt time.Time
}

func (s State) IsAuthenticated() bool {
	return s.User != nil
}

func (s State) equal(o State) bool {
	if s.IsLoading != o.IsLoading || !s.TokenExpiresAt.Equal(o.TokenExpiresAt) {
		return false
	}
	if s.User == nil || o.User == nil {
		return s.User == o.User
	}
	return *s.User == *o.User
}

// Facade owns the session state of one execution context. Route guards and the refresh scheduler
// hold a reference to it and never keep state of their own.
type Facade struct {
	backend Backend
	store   tokenstore.ExpiryReader
	nav     Navigator
	buffer  time.Duration
	timeout time.Duration
	nowFunc func() time.Time

	mu    sync.Mutex
	state State
	// epoch moves on every login and every invalidation. Work started under an older epoch
	// must not write its outcome back.
	epoch       uint64
	subscribers map[int]func(State)
	nextSubID   int

	// inflight collapses concurrent EnsureAuthenticated calls into one refresh/profile round.
	inflight singleflight.Group
}

type Option func(*Facade)

func WithRefreshBuffer(buffer time.Duration) Option {
	return func(f *Facade) {
		f.buffer = buffer
	}
}

// WithCallTimeout bounds one shared EnsureAuthenticated round. Zero leaves it to the backend.
func WithCallTimeout(timeout time.Duration) Option {
	return func(f *Facade) {
		f.timeout = timeout
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(f *Facade) {
		f.nowFunc = now
	}
}

func WithNavigator(nav Navigator) Option {
	return func(f *Facade) {
		f.nav = nav
	}
}

// New creates a facade over backend. store is read for the token expiry only.
func New(backend Backend, store tokenstore.ExpiryReader, options ...Option) *Facade {
	f := &Facade{
		backend:     backend,
		store:       store,
		nav:         NavigatorFunc(func(context.Context, string) {}),
		buffer:      30 * time.Second,
		nowFunc:     time.Now,
		state:       State{IsLoading: true},
		subscribers: make(map[int]func(State)),
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// State returns the current session snapshot.
func (f *Facade) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// RefreshBuffer is the margin before expiry at which the token is renewed.
func (f *Facade) RefreshBuffer() time.Duration {
	return f.buffer
}

// Subscribe registers fn for state changes. The returned func removes it.
func (f *Facade) Subscribe(fn func(State)) (unsubscribe func()) {
	f.mu.Lock()
	id := f.nextSubID
	f.nextSubID++
	f.subscribers[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subscribers, id)
		f.mu.Unlock()
	}
}

// Login authenticates and navigates home. It reports false on any failure.
func (f *Facade) Login(ctx context.Context, email, password string) bool {
	defer f.update(func(s *State) { s.IsLoading = false })

	profile, err := f.backend.Login(ctx, email, password)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("login failed")
		return false
	}

	expiresAt := f.readExpiry(ctx)
	f.mu.Lock()
	f.epoch++
	f.mu.Unlock()
	f.update(func(s *State) {
		s.User = profile
		s.TokenExpiresAt = expiresAt
	})
	f.nav.Navigate(ctx, HomeRoute)
	return true
}

// Logout revokes the session upstream on a best-effort basis, then always clears it locally.
func (f *Facade) Logout(ctx context.Context) {
	if err := f.backend.Logout(ctx); err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("logout upstream failed, clearing session anyway")
	}
	f.invalidate()
	f.inflight.Forget(ensureKey)
	f.nav.Navigate(ctx, LoginRoute)
}

// EnsureAuthenticated refreshes the access token when it is missing or about to expire and loads the
// profile when none is cached. Concurrent callers share a single execution and its result.
// The shared round outlives any one caller: a caller whose ctx ends gets false and leaves the
// session alone.
func (f *Facade) EnsureAuthenticated(ctx context.Context) bool {
	results := f.inflight.DoChan(ensureKey, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		if f.timeout > 0 {
			var cancel context.CancelFunc
			shared, cancel = context.WithTimeout(shared, f.timeout)
			defer cancel()
		}
		return f.ensureAuthenticated(shared), nil
	})
	select {
	case res := <-results:
		return res.Val.(bool)
	case <-ctx.Done():
		log.Ctx(ctx).Debug().Err(ctx.Err()).Msg("stopped waiting for session check")
		return false
	}
}

func (f *Facade) ensureAuthenticated(ctx context.Context) bool {
	defer f.update(func(s *State) { s.IsLoading = false })

	f.mu.Lock()
	epoch := f.epoch
	f.mu.Unlock()

	expiresAt := f.readExpiry(ctx)
	if tokenstore.IsExpired(expiresAt, f.nowFunc(), f.buffer) {
		if err := f.backend.Refresh(ctx); err != nil {
			log.Ctx(ctx).Debug().Err(err).Msg("token refresh failed")
			f.invalidateEpoch(epoch)
			return false
		}
		if f.superseded(ctx, epoch) {
			return false
		}
		expiresAt = f.readExpiry(ctx)
		if tokenstore.IsExpired(expiresAt, f.nowFunc(), f.buffer) {
			log.Ctx(ctx).Warn().Time("expires_at", expiresAt).Msg("refreshed token is already stale")
			f.invalidateEpoch(epoch)
			return false
		}
	}
	if !f.commit(epoch, func(s *State) { s.TokenExpiresAt = expiresAt }) {
		return false
	}

	if f.State().User != nil {
		return true
	}

	profile, err := f.backend.Profile(ctx)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("profile fetch failed")
		f.invalidateEpoch(epoch)
		return false
	}
	if !f.commit(epoch, func(s *State) { s.User = profile }) {
		log.Ctx(ctx).Debug().Msg("session changed during profile fetch, dropping result")
		return false
	}
	return true
}

// superseded reports whether the session moved on since epoch. When it ended meanwhile,
// cookies written by a late refresh are cleared again.
func (f *Facade) superseded(ctx context.Context, epoch uint64) bool {
	f.mu.Lock()
	moved := f.epoch != epoch
	ended := f.state.User == nil
	f.mu.Unlock()
	if !moved {
		return false
	}
	log.Ctx(ctx).Debug().Msg("session changed during refresh, dropping result")
	if ended {
		f.clearStore()
	}
	return true
}

// readExpiry treats an unreadable expiry as missing, which forces a refresh.
func (f *Facade) readExpiry(ctx context.Context) time.Time {
	expiresAt, err := f.store.ExpiresAt()
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("ignoring malformed token expiry")
		return time.Time{}
	}
	return expiresAt
}

func (f *Facade) invalidate() {
	f.mu.Lock()
	f.epoch++
	f.mu.Unlock()
	f.clearStore()
	f.update(func(s *State) {
		s.User = nil
		s.TokenExpiresAt = time.Time{}
	})
}

// invalidateEpoch clears the session only if it is still the one started at epoch.
func (f *Facade) invalidateEpoch(epoch uint64) {
	f.mu.Lock()
	current := f.epoch == epoch
	f.mu.Unlock()
	if current {
		f.invalidate()
	}
}

func (f *Facade) clearStore() {
	if c, ok := f.store.(interface{ Clear() }); ok {
		c.Clear()
	}
}

func (f *Facade) update(mutate func(*State)) {
	f.apply(nil, mutate)
}

// commit applies mutate only while the session is still at epoch.
func (f *Facade) commit(epoch uint64, mutate func(*State)) bool {
	return f.apply(&epoch, mutate)
}

func (f *Facade) apply(epoch *uint64, mutate func(*State)) bool {
	f.mu.Lock()
	if epoch != nil && *epoch != f.epoch {
		f.mu.Unlock()
		return false
	}
	before := f.state
	mutate(&f.state)
	after := f.state
	if before.equal(after) {
		f.mu.Unlock()
		return true
	}
	subscribers := make([]func(State), 0, len(f.subscribers))
	for _, fn := range f.subscribers {
		subscribers = append(subscribers, fn)
	}
	f.mu.Unlock()

	for _, fn := range subscribers {
		fn(after)
	}
	return true
}
