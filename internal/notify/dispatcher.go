package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Dispatcher coalesces rapid repeated triggers for the same key into a single
// delayed action. A new Schedule for a pending key cancels the pending timer
// and replaces its action, so only the most recent arguments ever execute.
// Distinct keys are fully independent.
type Dispatcher struct {
	mu      sync.Mutex
	pending map[string]*pendingAction
}

type pendingAction struct {
	fn    func()
	timer *time.Timer
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{pending: make(map[string]*pendingAction)}
}

func (d *Dispatcher) Schedule(key string, fn func(), delay time.Duration) {
	d.mu.Lock()
	if prev, ok := d.pending[key]; ok {
		prev.timer.Stop()
	}
	p := &pendingAction{fn: fn}
	p.timer = time.AfterFunc(delay, func() {
		d.fire(key, p)
	})
	d.pending[key] = p
	d.mu.Unlock()
	slog.Debug("scheduled debounced action", "key", key, "delay", delay)
}

func (d *Dispatcher) fire(key string, p *pendingAction) {
	d.mu.Lock()
	current, ok := d.pending[key]
	if !ok || current != p {
		// Superseded by a newer Schedule or taken by Flush/Clear.
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()
	p.fn()
}

// Flush cancels all pending timers and executes their actions immediately,
// returning once every action has completed. Used during shutdown so the last
// batched refresh is never dropped.
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	taken := d.pending
	d.pending = make(map[string]*pendingAction)
	for _, p := range taken {
		p.timer.Stop()
	}
	d.mu.Unlock()

	for key, p := range taken {
		slog.Debug("flushing debounced action", "key", key)
		p.fn()
	}
}

// Clear cancels all pending timers without executing them. Only meant for
// tests and cache resets, never for normal shutdown.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	for _, p := range d.pending {
		p.timer.Stop()
	}
	d.pending = make(map[string]*pendingAction)
	d.mu.Unlock()
}

func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
