package ws

import (
	"sync"
	"time"
)

const (
	defaultReplayLen = 1000
	defaultReplayAge = time.Hour
)

// replayLog keeps each tenant's most recent events so a reconnecting client
// can resume after the last ID it saw. The hub prunes it periodically.
type replayLog struct {
	mu      sync.RWMutex
	tenants map[string][]Event
	maxLen  int
	maxAge  time.Duration
}

func newReplayLog(maxLen int, maxAge time.Duration) *replayLog {
	if maxLen <= 0 {
		maxLen = defaultReplayLen
	}

	if maxAge <= 0 {
		maxAge = defaultReplayAge
	}

	return &replayLog{tenants: make(map[string][]Event), maxLen: maxLen, maxAge: maxAge}
}

// expired returns how many leading events are older than cutoff.
func expired(events []Event, cutoff time.Time) int {
	n := 0
	for n < len(events) && events[n].Time.Before(cutoff) {
		n++
	}

	return n
}

func (l *replayLog) record(evt Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := l.tenants[evt.TenantID]
	events = events[expired(events, evt.Time.Add(-l.maxAge)):]
	events = append(events, evt)

	if over := len(events) - l.maxLen; over > 0 {
		events = events[over:]
	}

	l.tenants[evt.TenantID] = events
}

// after returns the tenant's events with IDs above lastID. complete is false
// when events following lastID have already been dropped.
func (l *replayLog) after(tenantID string, lastID uint64) (events []Event, complete bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	buf := l.tenants[tenantID]
	if len(buf) == 0 {
		return nil, true
	}

	if buf[0].ID > lastID+1 {
		return nil, false
	}

	for i := range buf {
		if buf[i].ID > lastID {
			return append([]Event(nil), buf[i:]...), true
		}
	}

	return nil, true
}

// prune drops expired events and tenants left with none.
func (l *replayLog) prune(now time.Time) {
	cutoff := now.Add(-l.maxAge)

	l.mu.Lock()
	defer l.mu.Unlock()

	for tenant, events := range l.tenants {
		events = events[expired(events, cutoff):]
		if len(events) == 0 {
			delete(l.tenants, tenant)
			continue
		}

		l.tenants[tenant] = events
	}
}
