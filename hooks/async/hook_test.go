package asynchook

import (
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/balancer"
)

type recorder struct {
	balancer.NopHooks
	mu     sync.Mutex
	events []string
	keys   []string
	block  chan struct{}
}

func (r *recorder) add(ev string) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) LockAcquired(k string, _ time.Duration) { r.add("acquired:" + k) }
func (r *recorder) LockReleased(k string)                  { r.add("released:" + k) }
func (r *recorder) SelfHeal(k, _ string)                   { r.add("heal:" + k) }
func (r *recorder) ExpiryFailed(_ string, keys []string) {
	r.mu.Lock()
	r.keys = keys
	r.mu.Unlock()
	r.add("expiry")
}

func TestDeliversBeforeClose(t *testing.T) {
	rec := &recorder{}
	h := New(rec, 1, 16)
	h.LockAcquired("a", time.Second)
	h.SelfHeal("b", "value_decode")
	keys := []string{"x", "y"}
	h.ExpiryFailed("r1", keys)
	keys[0] = "mutated"
	h.Close()

	if len(rec.events) != 3 {
		t.Fatalf("want 3 events, got %v", rec.events)
	}
	if rec.events[0] != "acquired:a" || rec.events[1] != "heal:b" {
		t.Fatalf("order: %v", rec.events)
	}
	if rec.keys[0] != "x" {
		t.Fatalf("keys slice was shared with caller: %v", rec.keys)
	}
	if h.Dropped() != 0 {
		t.Fatalf("dropped=%d", h.Dropped())
	}
}

func TestDropsWhenFullOrClosed(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	h := New(rec, 1, 1)

	// One event is taken by the (blocked) worker, one fills the queue.
	h.LockReleased("a")
	h.LockReleased("b")
	h.LockReleased("c")
	h.LockReleased("d")
	if h.Dropped() == 0 {
		t.Fatalf("expected drops with a full queue")
	}
	close(rec.block)
	h.Close()

	before := h.Dropped()
	h.WriteRejected("late")
	if h.Dropped() != before+1 {
		t.Fatalf("event after Close should be dropped")
	}
	h.Close()
}
