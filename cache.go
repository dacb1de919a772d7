package balancer

import (
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/balancer/codec"
)

// Codec is re-exported so callers can spell balancer.Codec[V].
type Codec[V any] = codec.Codec[V]

// Cache is a typed, namespaced view over a Balancer.
type Cache[V any] interface {
	// Get returns (value, true) on a hit. A value that no longer decodes is
	// deleted and reported as a miss. A fill lock taken by the read is released.
	Get(ctx context.Context, key string) (V, bool, error)

	// GetOrLoad returns the cached value or calls load, stores its result and
	// returns it. Concurrent loaders on other instances wait on the fill lock.
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) (V, error)) (V, error)

	// Set overwrites; false means another instance holds the fill lock or no
	// backend took the write.
	Set(ctx context.Context, key string, value V, ttl time.Duration) (bool, error)
	// Add writes only where key is absent.
	Add(ctx context.Context, key string, value V, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) bool
	Exists(ctx context.Context, key string) bool

	// Lock takes the fill lock for key (ttl 0 => the balancer's LockTime).
	Lock(ctx context.Context, key string, ttl time.Duration) bool
	Unlock(ctx context.Context, key string) bool

	GetMany(ctx context.Context, keys []string) (map[string]V, []string, error)
	// SetMany returns the keys that failed on some backend.
	SetMany(ctx context.Context, items map[string]V, ttl time.Duration) ([]string, error)
}

type CacheOptions[V any] struct {
	Namespace string   // required; keys are stored as "<ns>:<key>"
	Codec     Codec[V] // required

	// DefaultTTL applies when a write passes ttl == 0. 0 => no expiry.
	DefaultTTL time.Duration
}

type cache[V any] struct {
	b          *Balancer
	ns         string
	codec      Codec[V]
	defaultTTL time.Duration
}

func NewCache[V any](b *Balancer, opts CacheOptions[V]) (Cache[V], error) {
	if b == nil {
		return nil, ErrNilBalancer
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("balancer: codec is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("balancer: namespace is required")
	}
	return &cache[V]{
		b:          b,
		ns:         opts.Namespace,
		codec:      opts.Codec,
		defaultTTL: opts.DefaultTTL,
	}, nil
}

func (c *cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	k := c.key(key)
	res := c.b.Get(ctx, k)
	switch res.Status {
	case Pending:
		// Nobody is going to fill it through this call.
		c.b.Unlock(ctx, k)
		return zero, false, nil
	case Hit:
		v, ok := c.decode(ctx, k, res.Value)
		return v, ok, nil
	default:
		return zero, false, nil
	}
}

func (c *cache[V]) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) (V, error)) (V, error) {
	k := c.key(key)
	res := c.b.Get(ctx, k)
	if res.Status == Hit {
		if v, ok := c.decode(ctx, k, res.Value); ok {
			return v, nil
		}
	}

	v, err := load(ctx)
	if err != nil {
		if res.Status == Pending {
			c.b.Unlock(ctx, k)
		}
		return v, err
	}
	if ok, err := c.Set(ctx, key, v, ttl); err != nil {
		return v, err
	} else if !ok {
		c.b.log.Debug("loaded value not stored", Fields{"key": k})
	}
	return v, nil
}

func (c *cache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) (bool, error) {
	return c.set(ctx, key, value, ttl, Overwrite)
}

func (c *cache[V]) Add(ctx context.Context, key string, value V, ttl time.Duration) (bool, error) {
	return c.set(ctx, key, value, ttl, AddIfAbsent)
}

func (c *cache[V]) set(ctx context.Context, key string, value V, ttl time.Duration, mode SetMode) (bool, error) {
	k := c.key(key)
	raw, err := c.codec.Encode(value)
	if err != nil {
		return false, &CodecError{Key: k, Op: "encode", Err: err}
	}
	return c.b.SetMode(ctx, k, raw, c.ttl(ttl), mode), nil
}

func (c *cache[V]) Delete(ctx context.Context, key string) bool {
	return c.b.Delete(ctx, c.key(key))
}

func (c *cache[V]) Exists(ctx context.Context, key string) bool {
	return c.b.Exists(ctx, c.key(key))
}

func (c *cache[V]) Lock(ctx context.Context, key string, ttl time.Duration) bool {
	return c.b.Lock(ctx, c.key(key), ttl)
}

func (c *cache[V]) Unlock(ctx context.Context, key string) bool {
	return c.b.Unlock(ctx, c.key(key))
}

func (c *cache[V]) GetMany(ctx context.Context, keys []string) (map[string]V, []string, error) {
	out := make(map[string]V, len(keys))
	if len(keys) == 0 {
		return out, nil, nil
	}

	storage := make([]string, len(keys))
	for i, k := range keys {
		storage[i] = c.key(k)
	}
	found, _, ok := c.b.MultiGet(ctx, storage)
	if !ok {
		missing := make([]string, len(keys))
		copy(missing, keys)
		return out, missing, nil
	}

	var missing []string
	for i, k := range keys {
		raw, hit := found[storage[i]]
		if !hit {
			missing = append(missing, k)
			continue
		}
		v, ok := c.decode(ctx, storage[i], raw)
		if !ok {
			missing = append(missing, k)
			continue
		}
		out[k] = v
	}
	return out, missing, nil
}

func (c *cache[V]) SetMany(ctx context.Context, items map[string]V, ttl time.Duration) ([]string, error) {
	data := make(map[string][]byte, len(items))
	back := make(map[string]string, len(items))
	for k, v := range items {
		sk := c.key(k)
		raw, err := c.codec.Encode(v)
		if err != nil {
			return nil, &CodecError{Key: sk, Op: "encode", Err: err}
		}
		data[sk] = raw
		back[sk] = k
	}

	failed := c.b.MultiSet(ctx, data, c.ttl(ttl))
	out := make([]string, 0, len(failed))
	for _, sk := range failed {
		out = append(out, back[sk])
	}
	return out, nil
}

// decode self-heals: a value that does not decode is deleted everywhere.
func (c *cache[V]) decode(ctx context.Context, storageKey string, raw []byte) (V, bool) {
	v, err := c.codec.Decode(raw)
	if err == nil {
		return v, true
	}
	c.b.log.Warn("dropping undecodable value", Fields{"key": storageKey, "err": &CodecError{Key: storageKey, Op: "decode", Err: err}})
	c.b.Delete(ctx, storageKey)
	c.b.hooks.SelfHeal(storageKey, "value_decode")
	var zero V
	return zero, false
}

func (c *cache[V]) key(userKey string) string { return c.ns + ":" + userKey }

func (c *cache[V]) ttl(ttl time.Duration) time.Duration {
	return coalesce(ttl, c.defaultTTL)
}
