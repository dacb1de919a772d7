package balancer

import (
	"math/rand/v2"
	"sync"
)

func defaultShuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// rotation is the read order over backend indices. It is built once, on first
// use, and never changes afterwards.
type rotation struct {
	once  sync.Once
	order []int
}

// indices returns a copy of the order so callers can hold it for a whole call.
func (r *rotation) indices(n int, shuffle func(n int, swap func(i, j int))) []int {
	r.once.Do(func() {
		r.order = make([]int, n)
		for i := range r.order {
			r.order[i] = i
		}
		if n > 1 {
			shuffle(n, func(i, j int) { r.order[i], r.order[j] = r.order[j], r.order[i] })
		}
	})
	out := make([]int, len(r.order))
	copy(out, r.order)
	return out
}
