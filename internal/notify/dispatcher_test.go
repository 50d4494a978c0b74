package notify

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcher_CoalescesSameKey(t *testing.T) {
	d := NewDispatcher()
	var calls atomic.Int32
	var last atomic.Int32

	for i := int32(1); i <= 3; i++ {
		v := i
		d.Schedule("key", func() {
			calls.Add(1)
			last.Store(v)
		}, 20*time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly one execution, got %d", got)
	}
	if got := last.Load(); got != 3 {
		t.Fatalf("expected the most recent action to run, got %d", got)
	}
	if d.Len() != 0 {
		t.Fatalf("expected no pending actions, got %d", d.Len())
	}
}

func TestDispatcher_DistinctKeysAreIndependent(t *testing.T) {
	d := NewDispatcher()
	var calls atomic.Int32

	d.Schedule("key-a", func() { calls.Add(1) }, 10*time.Millisecond)
	d.Schedule("key-b", func() { calls.Add(1) }, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected both keys to fire, got %d", got)
	}
}

func TestDispatcher_FlushRunsPendingExactlyOnce(t *testing.T) {
	d := NewDispatcher()
	var calls atomic.Int32

	d.Schedule("key", func() { calls.Add(1) }, time.Hour)
	d.Flush()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected the pending action to run on flush, got %d", got)
	}
	if d.Len() != 0 {
		t.Fatalf("expected flush to drain the dispatcher, got %d pending", d.Len())
	}

	// The cancelled timer must never fire a second execution.
	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("action ran again after flush, total %d", got)
	}
}

func TestDispatcher_ClearDropsWithoutRunning(t *testing.T) {
	d := NewDispatcher()
	var calls atomic.Int32

	d.Schedule("key", func() { calls.Add(1) }, 10*time.Millisecond)
	d.Clear()

	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Fatalf("cleared actions must never run, got %d", got)
	}
}

func TestDispatcher_SupersededTimerNeverFires(t *testing.T) {
	d := NewDispatcher()
	var stale atomic.Int32

	d.Schedule("key", func() { stale.Add(1) }, 50*time.Millisecond)
	// Replace before the first timer can fire its action.
	d.Schedule("key", func() {}, time.Hour)

	time.Sleep(150 * time.Millisecond)
	if got := stale.Load(); got != 0 {
		t.Fatalf("superseded action must not run, got %d", got)
	}
	d.Clear()
}
