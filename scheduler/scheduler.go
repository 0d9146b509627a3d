package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-admin-console/session"
	"github.com/rs/zerolog/log"
)

// Source is the session the scheduler keeps alive.
type Source interface {
	State() session.State
	Subscribe(fn func(session.State)) (unsubscribe func())
	EnsureAuthenticated(ctx context.Context) bool
	RefreshBuffer() time.Duration
}

// Timer is a pending one-shot callback.
type Timer interface {
	Stop() bool
}

// AfterFunc arms a one-shot timer. time.AfterFunc is the production implementation.
type AfterFunc func(d time.Duration, fn func()) Timer

func realAfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Scheduler renews the access token shortly before it expires. It runs in the browser context only;
// a rendering pass is too short-lived to own a timer.
type Scheduler struct {
	source    Source
	afterFunc AfterFunc
	nowFunc   func() time.Time

	mu          sync.Mutex
	ctx         context.Context
	timer       Timer
	due         time.Time
	generation  uint64
	watched     watchedState
	running     bool
	unsubscribe func()
	stopWatch   func() bool
}

// watchedState is the part of the session state that moves the timer.
type watchedState struct {
	authenticated bool
	expiresAt     time.Time
}

type Option func(*Scheduler)

func WithAfterFunc(afterFunc AfterFunc) Option {
	return func(s *Scheduler) {
		s.afterFunc = afterFunc
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.nowFunc = now
	}
}

func New(source Source, options ...Option) *Scheduler {
	s := &Scheduler{
		source:    source,
		afterFunc: realAfterFunc,
		nowFunc:   time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Start begins observing the session. ctx bounds the refresh calls; cancelling it stops the scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx = ctx
	s.watched = watchedState{}
	s.mu.Unlock()

	unsubscribe := s.source.Subscribe(func(session.State) { s.reschedule(false) })
	stopWatch := context.AfterFunc(ctx, s.Stop)

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.stopWatch = stopWatch
	s.mu.Unlock()

	s.reschedule(true)
}

// Stop cancels the pending timer and stops observing the session.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.cancelLocked()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}
}

// Pending reports whether a refresh is armed and when it is due.
func (s *Scheduler) Pending() (due time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.due, s.timer != nil
}

func (s *Scheduler) reschedule(force bool) {
	state := s.source.State()
	next := watchedState{authenticated: state.IsAuthenticated(), expiresAt: state.TokenExpiresAt}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if !force && next.authenticated == s.watched.authenticated && next.expiresAt.Equal(s.watched.expiresAt) {
		return
	}
	s.watched = next

	s.cancelLocked()
	if !next.authenticated || next.expiresAt.IsZero() {
		return
	}

	delay := max(0, next.expiresAt.Sub(s.nowFunc())-s.source.RefreshBuffer())
	generation := s.generation
	s.due = s.nowFunc().Add(delay)
	s.timer = s.afterFunc(delay, func() { s.fire(generation) })
	log.Ctx(s.ctx).Debug().Dur("in", delay).Time("expires_at", next.expiresAt).Msg("token refresh scheduled")
}

// cancelLocked clears the pending timer. Bumping the generation disarms a callback that already started.
func (s *Scheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
		s.due = time.Time{}
	}
	s.generation++
}

func (s *Scheduler) fire(generation uint64) {
	s.mu.Lock()
	if !s.running || generation != s.generation {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.due = time.Time{}
	// A fire that leaves the state unchanged must still be able to re-arm.
	s.watched = watchedState{}
	ctx := s.ctx
	s.mu.Unlock()

	if !s.source.EnsureAuthenticated(ctx) {
		log.Ctx(ctx).Info().Msg("scheduled token refresh failed, session ended")
	}
	s.reschedule(false)
}
