package balancer

import (
	"context"
	"math"
	"sort"

	"github.com/unkn0wn-root/balancer/backend"
)

// Keys returns the sorted union of keys across the backends that answered.
func (b *Balancer) Keys(ctx context.Context) []string {
	set := make(map[string]struct{})
	for i := range b.backends {
		vals, ok := b.exec(ctx, nil, i, "KEYS", "*").Slice()
		if !ok {
			continue
		}
		for _, v := range vals {
			if k, ok := backend.AsBytes(v); ok {
				set[string(k)] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Synchronized reports whether every backend answers GET key the same way.
// A failure on one backend counts as a difference.
func (b *Balancer) Synchronized(ctx context.Context, key string) bool {
	if len(b.backends) == 0 {
		return false
	}
	first := b.exec(ctx, nil, 0, "GET", key)
	for i := 1; i < len(b.backends); i++ {
		if !b.exec(ctx, nil, i, "GET", key).Equal(first) {
			return false
		}
	}
	return true
}

// SyncPercent is the share of known keys that are synchronized, rounded to
// two decimals. No backends gives 0; one backend or no keys gives 100.
func (b *Balancer) SyncPercent(ctx context.Context) float64 {
	switch {
	case len(b.backends) == 0:
		return 0
	case len(b.backends) < 2:
		return 100
	}
	keys := b.Keys(ctx)
	if len(keys) == 0 {
		return 100
	}
	synced := 0
	for _, k := range keys {
		if b.Synchronized(ctx, k) {
			synced++
		}
	}
	pct := float64(synced) * 100 / float64(len(keys))
	return math.Round(pct*100) / 100
}

// Stats collects INFO output per category and backend. A failing backend
// reports "".
func (b *Balancer) Stats(ctx context.Context) map[string]map[string]string {
	out := make(map[string]map[string]string, len(StatCategories))
	for _, cat := range StatCategories {
		m := make(map[string]string, len(b.backends))
		for i, h := range b.backends {
			v, _ := b.exec(ctx, nil, i, "INFO", cat).Bytes()
			m[h.Name()] = string(v)
		}
		out[cat] = m
	}
	return out
}
