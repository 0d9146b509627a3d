package browser

import (
	"context"
	"time"

	"github.com/jrsteele09/go-admin-console/guard"
	"github.com/jrsteele09/go-admin-console/scheduler"
	"github.com/jrsteele09/go-admin-console/session"
)

// Session is the long-lived browser context: one facade, the scheduler that keeps it fresh and
// the guard that gates navigation. All three share the facade's state.
type Session struct {
	Client    *Client
	Facade    *session.Facade
	Scheduler *scheduler.Scheduler
	Guard     *guard.Guard
}

type sessionOptions struct {
	refreshBuffer time.Duration
	navigator     session.Navigator
	afterFunc     scheduler.AfterFunc
}

type SessionOption func(*sessionOptions)

func WithRefreshBuffer(buffer time.Duration) SessionOption {
	return func(o *sessionOptions) {
		o.refreshBuffer = buffer
	}
}

func WithNavigator(nav session.Navigator) SessionOption {
	return func(o *sessionOptions) {
		o.navigator = nav
	}
}

func WithAfterFunc(afterFunc scheduler.AfterFunc) SessionOption {
	return func(o *sessionOptions) {
		o.afterFunc = afterFunc
	}
}

func NewSession(client *Client, options ...SessionOption) *Session {
	opts := sessionOptions{
		refreshBuffer: 30 * time.Second,
		navigator:     session.NavigatorFunc(func(context.Context, string) {}),
	}
	for _, opt := range options {
		opt(&opts)
	}

	facade := session.New(client, client.Store(),
		session.WithRefreshBuffer(opts.refreshBuffer),
		session.WithCallTimeout(2*client.httpClient.Timeout), // refresh + profile
		session.WithNavigator(opts.navigator),
	)
	var schedulerOptions []scheduler.Option
	if opts.afterFunc != nil {
		schedulerOptions = append(schedulerOptions, scheduler.WithAfterFunc(opts.afterFunc))
	}

	return &Session{
		Client:    client,
		Facade:    facade,
		Scheduler: scheduler.New(facade, schedulerOptions...),
		Guard:     guard.New(facade),
	}
}

// Start arms the refresh scheduler until ctx is done or Stop is called.
func (s *Session) Start(ctx context.Context) {
	s.Scheduler.Start(ctx)
}

func (s *Session) Stop() {
	s.Scheduler.Stop()
}
