package codec

import (
	"errors"
	"fmt"
)

var ErrTooLarge = errors.New("codec: payload too large")

// Limit caps payload size in both directions. Backends are shared, so a
// reader should not trust what another writer stored. Max <= 0 disables it.
type Limit[V any] struct {
	Inner Codec[V]
	Max   int
}

var _ Codec[[]byte] = Limit[[]byte]{}

func (l Limit[V]) Encode(v V) ([]byte, error) {
	b, err := l.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if l.Max > 0 && len(b) > l.Max {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooLarge, len(b), l.Max)
	}
	return b, nil
}

func (l Limit[V]) Decode(b []byte) (V, error) {
	if l.Max > 0 && len(b) > l.Max {
		var zero V
		return zero, fmt.Errorf("%w: %d > %d", ErrTooLarge, len(b), l.Max)
	}
	return l.Inner.Decode(b)
}
