package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalLocker is an in-process Locker for single-instance deployments and tests.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localLock
	clock func() time.Time
}

type localLock struct {
	token   string
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localLock), clock: time.Now}
}

func (l *LocalLocker) AcquireBookingLock(_ context.Context, bookingID string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if cur, ok := l.held[bookingID]; ok && now.Before(cur.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[bookingID] = localLock{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *LocalLocker) ReleaseBookingLock(_ context.Context, bookingID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.held[bookingID]; ok && cur.token == token {
		delete(l.held, bookingID)
	}
	return nil
}

func (l *LocalLocker) ExtendBookingLock(_ context.Context, bookingID, token string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	cur, ok := l.held[bookingID]
	if !ok || cur.token != token || !now.Before(cur.expires) {
		return false, nil
	}
	l.held[bookingID] = localLock{token: token, expires: now.Add(ttl)}
	return true, nil
}

var _ Locker = (*LocalLocker)(nil)
