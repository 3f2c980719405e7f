package service

import (
	"context"
	"sync"
	"time"

	"Lundawebserver/internal/domain"
)

// gameLocks serializes batch evaluation per game. Two devices submitting for
// the same game are never interleaved; distinct games proceed in parallel.
type gameLocks struct {
	mu sync.Mutex
	m  map[string]*gameLockEntry
}

type gameLockEntry struct {
	sem  chan struct{}
	refs int
}

func newGameLocks() *gameLocks {
	return &gameLocks{m: make(map[string]*gameLockEntry)}
}

// acquire blocks up to wait for exclusive access to gameID. On timeout it
// returns domain.ErrGameBusy so the caller retries the whole batch as a
// transport-class failure.
func (l *gameLocks) acquire(ctx context.Context, gameID string, wait time.Duration) (func(), error) {
	l.mu.Lock()
	e, ok := l.m[gameID]
	if !ok {
		e = &gameLockEntry{sem: make(chan struct{}, 1)}
		l.m[gameID] = e
	}
	e.refs++
	l.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			l.put(gameID, e)
		}, nil
	case <-timer.C:
		l.put(gameID, e)
		return nil, domain.ErrGameBusy
	case <-ctx.Done():
		l.put(gameID, e)
		return nil, ctx.Err()
	}
}

func (l *gameLocks) put(gameID string, e *gameLockEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.m, gameID)
	}
	l.mu.Unlock()
}
