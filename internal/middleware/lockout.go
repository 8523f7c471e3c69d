package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	lockoutMaxFailures = 5
	lockoutWindow      = 15 * time.Minute
	lockoutDuration    = 5 * time.Minute
	lockoutMaxEntries  = 10000
)

type failures struct {
	count    int
	first    time.Time
	lockedAt time.Time
}

func (f *failures) expired(now time.Time) bool {
	if !f.lockedAt.IsZero() {
		return now.Sub(f.lockedAt) >= lockoutDuration
	}

	return now.Sub(f.first) >= lockoutWindow
}

// Lockout blocks API keys after repeated authentication failures within a
// sliding window. Keys are tracked by hash only.
type Lockout struct {
	mu      sync.Mutex
	entries map[string]*failures
	log     *logrus.Logger
}

// NewLockout creates a Lockout whose expired entries are swept until ctx is cancelled.
func NewLockout(ctx context.Context, log *logrus.Logger) *Lockout {
	l := &Lockout{entries: make(map[string]*failures), log: log}
	go l.sweepLoop(ctx)

	return l
}

// Blocked reports whether apiKey is currently locked out.
func (l *Lockout) Blocked(apiKey string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.entries[hashKey(apiKey)]

	return ok && !f.lockedAt.IsZero() && time.Since(f.lockedAt) < lockoutDuration
}

// Fail records a failed attempt for apiKey.
func (l *Lockout) Fail(apiKey string) {
	hk := hashKey(apiKey)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.entries[hk]
	if !ok || f.expired(now) {
		if !ok && len(l.entries) >= lockoutMaxEntries {
			l.sweep(now)
		}
		l.entries[hk] = &failures{count: 1, first: now}
		return
	}

	f.count++
	if f.count >= lockoutMaxFailures && f.lockedAt.IsZero() {
		f.lockedAt = now
		l.log.WithField("key_hash", hk[:16]).Warn("api key locked out after repeated auth failures")
	}
}

// Succeed clears the failure history of apiKey.
func (l *Lockout) Succeed(apiKey string) {
	l.mu.Lock()
	delete(l.entries, hashKey(apiKey))
	l.mu.Unlock()
}

func (l *Lockout) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.mu.Lock()
			l.sweep(now)
			l.mu.Unlock()
		}
	}
}

// sweep drops expired entries and, if still over capacity, arbitrary
// unlocked ones. Caller must hold l.mu.
func (l *Lockout) sweep(now time.Time) {
	for k, f := range l.entries {
		if f.expired(now) {
			delete(l.entries, k)
		}
	}

	for k, f := range l.entries {
		if len(l.entries) < lockoutMaxEntries {
			return
		}
		if f.lockedAt.IsZero() {
			delete(l.entries, k)
		}
	}
}
