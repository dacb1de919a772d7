package balancer

import (
	"context"
	"sort"
	"time"
)

// Set overwrites key on every backend. It refuses while another instance
// holds the fill lock; a successful write drops this instance's lock record.
func (b *Balancer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	return b.SetMode(ctx, key, value, ttl, Overwrite)
}

// Add releases this instance's fill lock on key, then writes with NX.
func (b *Balancer) Add(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	return b.SetMode(ctx, key, value, ttl, AddIfAbsent)
}

// SetMode writes key to every backend. The result is the last backend's answer.
// ttl <= 0 stores without expiry.
func (b *Balancer) SetMode(ctx context.Context, key string, value []byte, ttl time.Duration, mode SetMode) bool {
	if len(b.backends) == 0 {
		return false
	}

	args := []any{"SET", key, value}
	if ttl > 0 {
		args = append(args, expiryArgs(ttl)...)
	}

	switch mode {
	case AddIfAbsent:
		b.Unlock(ctx, key)
		args = append(args, "NX")
	default:
		if !b.AllowedToSet(ctx, key) {
			b.log.Warn("write refused, key is locked", Fields{"key": key})
			b.hooks.WriteRejected(key)
			return false
		}
	}

	ok := false
	for i := range b.backends {
		ok = b.exec(ctx, nil, i, args...).Ok()
	}
	if ok && mode == Overwrite {
		// The value replaced our marker.
		b.locks.Delete(key)
	}
	return ok
}

// MultiSet writes data to every backend and returns the keys that failed
// (sorted, possibly empty). Without a ttl each backend gets one MSET and a
// failed MSET fails every key. With a ttl each backend gets MSET plus one
// PEXPIRE per key in a single transaction; keys whose expiry did not take
// are failed.
func (b *Balancer) MultiSet(ctx context.Context, data map[string][]byte, ttl time.Duration) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) == 0 {
		return []string{}
	}
	if len(b.backends) == 0 {
		return keys
	}

	mset := make([]any, 0, 2*len(keys)+1)
	mset = append(mset, "MSET")
	for _, k := range keys {
		mset = append(mset, k, data[k])
	}

	failed := newKeySet()
	if ttl <= 0 {
		for i := range b.backends {
			if b.exec(ctx, nil, i, mset...).Failed() {
				failed.add(keys...)
			}
		}
		return failed.list()
	}

	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	cmds := make([][]any, 0, len(keys)+1)
	cmds = append(cmds, mset)
	for _, k := range keys {
		cmds = append(cmds, []any{"PEXPIRE", k, ms})
	}

	for i, h := range b.backends {
		replies := h.ExecTx(ctx, cmds...)
		if replies[0].Failed() {
			b.failed(i, "MULTI", replies[0].Err)
		}
		var bad []string
		for j, r := range replies[1:] {
			if n, ok := r.Int(); !ok || n != 1 {
				bad = append(bad, keys[j])
			}
		}
		if len(bad) > 0 {
			b.log.Warn("expiry not applied", Fields{"backend": h.Name(), "keys": len(bad)})
			b.hooks.ExpiryFailed(h.Name(), bad)
			failed.add(bad...)
		}
	}
	return failed.list()
}

// Delete removes key from every backend and reports the last backend's answer.
func (b *Balancer) Delete(ctx context.Context, key string) bool {
	last, _ := b.deleteAll(ctx, key)
	return last
}

// deleteAll returns whether the last backend removed key and whether any did.
func (b *Balancer) deleteAll(ctx context.Context, key string) (last, deleted bool) {
	for i := range b.backends {
		n, _ := b.exec(ctx, nil, i, "DEL", key).Int()
		last = n > 0
		deleted = deleted || last
	}
	return last, deleted
}

// Flush empties the primary backend, or every backend in mutex mode, and
// forgets all lock records.
func (b *Balancer) Flush(ctx context.Context) bool {
	ok := false
	for i := range b.backends {
		ok = b.exec(ctx, nil, i, "FLUSHDB").Ok()
		if !b.mutex {
			break
		}
	}
	b.locks.Clear()
	return ok
}

type keySet struct {
	seen map[string]struct{}
	keys []string
}

func newKeySet() *keySet { return &keySet{seen: make(map[string]struct{})} }

func (s *keySet) add(keys ...string) {
	for _, k := range keys {
		if _, ok := s.seen[k]; ok {
			continue
		}
		s.seen[k] = struct{}{}
		s.keys = append(s.keys, k)
	}
}

func (s *keySet) list() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	sort.Strings(out)
	return out
}
