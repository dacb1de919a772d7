package balancer

import (
	"context"
	"time"

	"github.com/unkn0wn-root/balancer/internal/util"
	"github.com/unkn0wn-root/balancer/internal/wire"
)

// IsLocked probes backends in configured order and returns the first decisive
// answer. A key holding an empty string reads as Absent.
func (b *Balancer) IsLocked(ctx context.Context, key string) LockState {
	return b.lockState(ctx, nil, key)
}

func (b *Balancer) lockState(ctx context.Context, c *call, key string) LockState {
	for i := range b.backends {
		if c != nil && c.down[i] {
			continue
		}
		r := b.exec(ctx, c, i, "GETRANGE", key, 0, wire.ProbeEnd)
		if r.Failed() {
			continue
		}
		v, _ := r.Bytes()
		switch {
		case len(v) == 0:
			return LockState{Kind: Absent, Backend: i}
		case wire.IsLock(v):
			return LockState{Kind: Locked, Marker: string(v), Backend: i}
		default:
			return LockState{Kind: NotLocked, Backend: i}
		}
	}
	return LockState{Kind: NotLocked, Backend: -1}
}

// Lock stores a fill lock marker for key with NX semantics. ttl <= 0 uses the
// configured lock time. Non-mutex mode writes the primary backend only, mutex
// mode writes all of them and the last answer decides.
func (b *Balancer) Lock(ctx context.Context, key string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = b.lockTime
	}
	if ttl <= 0 || len(b.backends) == 0 {
		return false
	}

	token := util.LockToken(key)
	marker, err := wire.EncodeLock(token)
	if err != nil {
		b.log.Error("lock token rejected", Fields{"key": key, "err": err})
		return false
	}

	args := append([]any{"SET", key, marker, "NX"}, expiryArgs(ttl)...)
	acquired := false
	for i := range b.backends {
		acquired = b.exec(ctx, nil, i, args...).Ok()
		if !b.mutex {
			break
		}
	}
	if !acquired {
		return false
	}

	b.locks.Put(key, token, ttl)
	b.log.Debug("fill lock acquired", Fields{"key": key, "ttl": ttl})
	b.hooks.LockAcquired(key, ttl)
	return true
}

// Unlock deletes key everywhere, but only while the stored marker is the one
// this instance wrote. A record whose marker is gone is dropped.
func (b *Balancer) Unlock(ctx context.Context, key string) bool {
	token, ok := b.locks.Token(key)
	if !ok {
		return false
	}
	if !b.ownsLock(ctx, key, token) {
		b.locks.DeleteIf(key, token)
		return false
	}

	if _, deleted := b.deleteAll(ctx, key); !deleted {
		return false
	}
	b.locks.DeleteIf(key, token)
	b.log.Debug("fill lock released", Fields{"key": key})
	b.hooks.LockReleased(key)
	return true
}

// AllowedToSet reports whether an overwrite of key may proceed: nobody holds
// a fill lock, or this instance does.
func (b *Balancer) AllowedToSet(ctx context.Context, key string) bool {
	st := b.lockState(ctx, nil, key)
	if st.Kind != Locked {
		return true
	}
	token, ok := b.locks.Token(key)
	return ok && st.Marker == wire.LockPrefix+token
}

func (b *Balancer) ownsLock(ctx context.Context, key, token string) bool {
	st := b.lockState(ctx, nil, key)
	return st.Kind == Locked && st.Marker == wire.LockPrefix+token
}

// HeldLocks returns the keys this instance has a lock record for.
func (b *Balancer) HeldLocks() []string { return b.locks.Keys() }

// runSleeping busy-waits while key is locked. It runs only when locking is on
// and the mode allows waiting: mutex mode, a single backend, or force.
func (b *Balancer) runSleeping(ctx context.Context, c *call, key string, force bool) {
	if !b.lockingEnabled() {
		return
	}
	if !b.mutex && len(b.backends) != 1 && !force {
		return
	}

	start := time.Now()
	if b.sleep(ctx) {
		for b.lockState(ctx, c, key).Kind == Locked {
			if !b.sleep(ctx) {
				break
			}
		}
	}
	waited := time.Since(start)
	b.log.Debug("waited for fill lock", Fields{"key": key, "waited": waited})
	b.hooks.LockWaited(key, waited)
}

// sleep waits one poll interval. It returns false when ctx ends first.
func (b *Balancer) sleep(ctx context.Context) bool {
	t := time.NewTimer(b.poll)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// expiryArgs picks EX for whole seconds and PX otherwise.
func expiryArgs(ttl time.Duration) []any {
	if ttl%time.Second == 0 {
		return []any{"EX", int64(ttl / time.Second)}
	}
	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return []any{"PX", ms}
}
