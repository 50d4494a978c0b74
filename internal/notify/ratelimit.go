package notify

import (
	"log/slog"
	"sync"
	"time"
)

const rateLimitPruneHorizon = 5 * time.Minute

// RateLimitLedger throttles initial notification sends per (guild, user).
// It is advisory, process-local state: losing it on restart only means a
// subscriber might get one extra DM sooner than usual.
type RateLimitLedger struct {
	minInterval time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time

	stopOnce sync.Once
	stopCh   chan struct{}

	now func() time.Time
}

func NewRateLimitLedger(minInterval time.Duration) *RateLimitLedger {
	return &RateLimitLedger{
		minInterval: minInterval,
		lastSent:    make(map[string]time.Time),
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}
}

func (l *RateLimitLedger) key(guildID, userID string) string {
	return userID + ":" + guildID
}

// Allow reports whether an initial send to the user is currently permitted.
// It does not record anything; call MarkSent after a successful send.
func (l *RateLimitLedger) Allow(guildID, userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	last, ok := l.lastSent[l.key(guildID, userID)]
	if !ok {
		return true
	}
	return l.now().Sub(last) >= l.minInterval
}

func (l *RateLimitLedger) MarkSent(guildID, userID string) {
	l.mu.Lock()
	l.lastSent[l.key(guildID, userID)] = l.now()
	l.mu.Unlock()
}

// Prune drops entries older than the prune horizon.
func (l *RateLimitLedger) Prune() {
	cutoff := l.now().Add(-rateLimitPruneHorizon)
	l.mu.Lock()
	for key, ts := range l.lastSent {
		if ts.Before(cutoff) {
			delete(l.lastSent, key)
		}
	}
	l.mu.Unlock()
}

// StartPruning launches the background prune loop. Close stops it.
func (l *RateLimitLedger) StartPruning(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-l.stopCh:
				return
			case <-ticker.C:
				l.Prune()
			}
		}
	}()
	slog.Debug("rate limit prune loop started", "interval", interval)
}

func (l *RateLimitLedger) Close() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
}

func (l *RateLimitLedger) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lastSent)
}
