// Package codec turns typed values into the byte strings the backends store.
package codec

// Codec encodes V for storage and decodes it back. Implementations must be
// safe for concurrent use.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
