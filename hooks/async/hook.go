// Package asynchook moves hook calls off the request path.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{BackendFailEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	b, _ := balancer.New(balancer.Options{Backends: conns, Hooks: hooks})
//
// Events are dropped when the queue is full.
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/balancer"
)

type Hooks struct {
	inner   balancer.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ balancer.Hooks = (*Hooks)(nil)

func New(inner balancer.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}
	if inner == nil {
		inner = balancer.NopHooks{}
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Later events are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped counts events lost to a full queue or a closed hook.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) LockReleased(k string)  { h.try(func() { h.inner.LockReleased(k) }) }
func (h *Hooks) WriteRejected(k string) { h.try(func() { h.inner.WriteRejected(k) }) }
func (h *Hooks) SelfHeal(k, r string)   { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) BackendFailed(b, c string, err error) {
	h.try(func() { h.inner.BackendFailed(b, c, err) })
}
func (h *Hooks) LockAcquired(k string, ttl time.Duration) {
	h.try(func() { h.inner.LockAcquired(k, ttl) })
}
func (h *Hooks) LockWaited(k string, d time.Duration) {
	h.try(func() { h.inner.LockWaited(k, d) })
}
func (h *Hooks) ExpiryFailed(b string, keys []string) {
	cp := append([]string(nil), keys...)
	h.try(func() { h.inner.ExpiryFailed(b, cp) })
}
