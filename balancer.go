package balancer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/balancer/backend"
	"github.com/unkn0wn-root/balancer/lockrec"
)

// Balancer spreads cache traffic over a fixed set of backends.
//
// Reads walk a randomized rotation and fail over on transport errors. Writes
// are broadcast. Concurrent fills of the same key are serialized with a lock
// marker stored in the key itself.
type Balancer struct {
	backends []*backend.Handle
	rot      rotation
	shuffle  func(n int, swap func(i, j int))

	queue    bool
	mutex    bool
	lockTime time.Duration // <= 0 disables locking
	poll     time.Duration

	locks *lockrec.Table

	source atomic.Value // string

	log   Logger
	hooks Hooks

	closeOnce sync.Once
	closeErr  error
}

func New(opts Options) (*Balancer, error) {
	seen := make(map[string]struct{}, len(opts.Backends))
	hs := make([]*backend.Handle, 0, len(opts.Backends))
	for i, c := range opts.Backends {
		if c == nil {
			return nil, fmt.Errorf("%w (index %d)", ErrNilConn, i)
		}
		if _, dup := seen[c.Name()]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateBackend, c.Name())
		}
		seen[c.Name()] = struct{}{}
		hs = append(hs, backend.NewHandle(c))
	}

	lockTime := max(opts.LockTime, 0)

	b := &Balancer{
		backends: hs,
		shuffle:  opts.Shuffle,
		queue:    !opts.DisableQueue,
		mutex:    opts.MutexMode,
		lockTime: lockTime,
		poll:     coalesce(opts.PollInterval, defaultPollInterval),
		log:      opts.Logger,
		hooks:    opts.Hooks,
	}
	if b.shuffle == nil {
		b.shuffle = defaultShuffle
	}
	if b.log == nil {
		b.log = NopLogger{}
	}
	if b.hooks == nil {
		b.hooks = NopHooks{}
	}

	// Explicit Lock calls record locks even with locking off, so the sweeper always runs.
	sweep := coalesce(opts.LockSweepInterval, coalesce(lockTime, defaultSweepInterval))
	b.locks = lockrec.New(sweep)
	b.source.Store("")
	return b, nil
}

// call is the per-operation view of the backends: the rotation order plus the
// backends that failed during this call. It is never shared between calls.
type call struct {
	order []int
	down  []bool
}

func (b *Balancer) newCall() *call {
	return &call{
		order: b.rot.indices(len(b.backends), b.shuffle),
		down:  make([]bool, len(b.backends)),
	}
}

// exec runs one command on backend i. A failure is logged, reported, and when
// c is non-nil the backend is dropped for the rest of the call.
func (b *Balancer) exec(ctx context.Context, c *call, i int, args ...any) backend.Reply {
	r := b.backends[i].Exec(ctx, args...)
	if r.Failed() {
		if c != nil {
			c.down[i] = true
		}
		b.failed(i, backend.Command(args), r.Err)
	}
	return r
}

func (b *Balancer) failed(i int, cmd string, err error) {
	name := b.backends[i].Name()
	b.log.Warn("backend command failed", Fields{"backend": name, "cmd": cmd, "err": err})
	b.hooks.BackendFailed(name, cmd, err)
}

func (b *Balancer) lockingEnabled() bool { return b.lockTime > 0 }

func (b *Balancer) setSource(i int) { b.source.Store(b.backends[i].Name()) }

// LastSource names the backend that served the most recent successful read,
// or "" before any.
func (b *Balancer) LastSource() string {
	s, _ := b.source.Load().(string)
	return s
}

// Backends returns backend names in configured order.
func (b *Balancer) Backends() []string {
	out := make([]string, len(b.backends))
	for i, h := range b.backends {
		out[i] = h.Name()
	}
	return out
}

// Rotation returns backend names in read order.
func (b *Balancer) Rotation() []string {
	idx := b.rot.indices(len(b.backends), b.shuffle)
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = b.backends[j].Name()
	}
	return out
}

// Close releases the fill locks this instance still owns, stops the lock record
// sweeper and closes every backend. Only the first call does work.
func (b *Balancer) Close(ctx context.Context) error {
	b.closeOnce.Do(func() {
		for _, key := range b.locks.Keys() {
			if !b.Unlock(ctx, key) {
				b.locks.Delete(key)
			}
		}
		b.locks.Close()

		var errs []error
		for _, h := range b.backends {
			if err := h.Conn().Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", h.Name(), err))
			}
		}
		b.closeErr = errors.Join(errs...)
	})
	return b.closeErr
}
