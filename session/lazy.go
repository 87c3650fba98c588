package session

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrNoFactory is returned when a Lazy provider has nothing to build from.
var ErrNoFactory = errors.New("session: no factory configured")

// Lazy initializes a session on first use and shares it afterwards.
// Concurrent first callers wait for a single Factory call, which keeps the
// first caller's context values but not its cancellation. A failed
// initialization is not remembered, so a later Get tries again.
type Lazy struct {
	factory Factory

	group singleflight.Group
	mu    sync.RWMutex
	s     Session
}

// NewLazy returns a Lazy provider backed by f.
func NewLazy(f Factory) *Lazy {
	return &Lazy{factory: f}
}

// Get returns the shared session, creating it if needed.
func (l *Lazy) Get(ctx context.Context) (Session, error) {
	if s := l.cached(); s != nil {
		return s, nil
	}
	if l.factory == nil {
		return nil, ErrNoFactory
	}

	ch := l.group.DoChan("session", func() (interface{}, error) {
		if s := l.cached(); s != nil {
			return s, nil
		}
		// Shared by every waiter, so one caller giving up must not cancel it.
		s, err := l.factory(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.s = s
		l.mu.Unlock()
		return s, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Session), nil
	}
}

// Ready reports whether a session has been created.
func (l *Lazy) Ready() bool {
	return l.cached() != nil
}

func (l *Lazy) cached() Session {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.s
}
