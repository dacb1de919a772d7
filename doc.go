// Package balancer spreads cache traffic over several Redis-compatible backends.
//
// Components:
//   - backend.Conn: one cache server (go-redis, or an in-process store behind
//     backend/local with BigCache or Ristretto underneath).
//   - Balancer: the engine. Reads walk a randomized rotation and fail over on
//     transport errors; writes are broadcast to every backend.
//   - Cache[V]: typed, namespaced view with a pluggable Codec[V].
//
// Fill locks:
//
// When a read misses, the reader tries to store a lock marker in the key itself
// (SET NX with a TTL). The marker is
//
//	LOCK|||<40 hex chars>
//
// Other readers that see it either wait for it to clear or read the remaining
// backends. The winner computes the value and writes it, which replaces the marker.
//
// Typical fill:
//
//	res := b.Get(ctx, k)
//	switch res.Status {
//	case balancer.Hit:
//		use(res.Value)
//	case balancer.Pending: // we hold the lock
//		v := load(k)
//		b.Set(ctx, k, v, time.Minute)
//	}
package balancer
