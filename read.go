package balancer

import (
	"context"

	"github.com/unkn0wn-root/balancer/backend"
	"github.com/unkn0wn-root/balancer/internal/wire"
)

// Get reads key.
//
// In queue mode the rotation is walked until a backend produces a value;
// failing backends are skipped for the rest of the call. In non-mutex mode a
// miss on an unlocked key makes this instance try to take the fill lock, and
// a successful acquire is reported as Pending: the caller owns the fill.
// With DisableQueue only the first backend of the rotation is asked.
func (b *Balancer) Get(ctx context.Context, key string) Lookup {
	if len(b.backends) == 0 {
		return Lookup{}
	}
	c := b.newCall()
	if !b.queue {
		return b.getOne(ctx, c, key)
	}
	return b.get(ctx, c, key, true)
}

func (b *Balancer) getOne(ctx context.Context, c *call, key string) Lookup {
	i := c.order[0]
	v, ok := b.exec(ctx, c, i, "GET", key).Bytes()
	if !ok {
		return Lookup{}
	}
	b.setSource(i)
	return Lookup{Status: Hit, Value: v, Source: b.backends[i].Name()}
}

func (b *Balancer) get(ctx context.Context, c *call, key string, first bool) Lookup {
	st := b.lockState(ctx, c, key)
	locked := st.Kind == Locked
	if locked {
		b.runSleeping(ctx, c, key, false)
	}

	for _, i := range c.order {
		if c.down[i] {
			continue
		}
		// The holder stores a marker, not a value.
		if !b.mutex && locked && i == st.Backend {
			continue
		}
		if !b.mutex && st.Kind == Absent {
			return b.pending(ctx, key)
		}

		r := b.exec(ctx, c, i, "GET", key)
		switch r.Kind {
		case backend.Hit:
			v, _ := r.Bytes()
			if wire.IsLock(v) {
				continue
			}
			b.setSource(i)
			return Lookup{Status: Hit, Value: v, Source: b.backends[i].Name()}
		case backend.Miss:
			if !b.mutex && !locked {
				return b.pending(ctx, key)
			}
		}
	}

	if first && locked && !b.mutex {
		b.runSleeping(ctx, c, key, true)
		return b.get(ctx, c, key, false)
	}
	return Lookup{}
}

// pending tries to take the fill lock after a miss.
func (b *Balancer) pending(ctx context.Context, key string) Lookup {
	if b.lockingEnabled() && b.Lock(ctx, key, 0) {
		return Lookup{Status: Pending}
	}
	return Lookup{}
}

// MultiGet reads keys with one MGET per backend, walking the rotation until a
// backend answers. It ignores fill locks: a lock marker reads as missing.
// ok is false when no backend answered.
func (b *Balancer) MultiGet(ctx context.Context, keys []string) (found map[string][]byte, missing []string, ok bool) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil, true
	}
	if len(b.backends) == 0 {
		return nil, nil, false
	}

	c := b.newCall()
	order := c.order
	if !b.queue {
		order = order[:1]
	}

	args := make([]any, 0, len(keys)+1)
	args = append(args, "MGET")
	for _, k := range keys {
		args = append(args, k)
	}

	for _, i := range order {
		if c.down[i] {
			continue
		}
		vals, ok := b.exec(ctx, c, i, args...).Slice()
		if !ok || len(vals) != len(keys) {
			continue
		}
		b.setSource(i)

		found = make(map[string][]byte, len(keys))
		for j, v := range vals {
			raw, ok := backend.AsBytes(v)
			if !ok || wire.IsLock(raw) {
				missing = append(missing, keys[j])
				continue
			}
			found[keys[j]] = raw
		}
		return found, missing, true
	}
	return nil, nil, false
}

// Exists reports whether some backend holds key with a real value. In queue
// mode a key whose probe shows a fill lock does not exist yet.
func (b *Balancer) Exists(ctx context.Context, key string) bool {
	if len(b.backends) == 0 {
		return false
	}
	c := b.newCall()
	if !b.queue {
		n, _ := b.exec(ctx, c, c.order[0], "EXISTS", key).Int()
		return n > 0
	}

	var st *LockState
	for _, i := range c.order {
		if c.down[i] {
			continue
		}
		n, _ := b.exec(ctx, c, i, "EXISTS", key).Int()
		if n <= 0 {
			continue
		}
		if st == nil {
			s := b.lockState(ctx, c, key)
			st = &s
		}
		if st.Kind == NotLocked {
			return true
		}
	}
	return false
}
