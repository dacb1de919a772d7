package codec

import (
	"errors"

	"google.golang.org/protobuf/proto"
)

var ErrNoConstructor = errors.New("codec: protobuf constructor is nil")

// Protobuf stores proto messages in wire format.
type Protobuf[T proto.Message] struct {
	newMsg func() T
}

// NewProtobuf takes a constructor for the concrete message,
// e.g. func() *pb.User { return new(pb.User) }.
func NewProtobuf[T proto.Message](newMsg func() T) Protobuf[T] {
	return Protobuf[T]{newMsg: newMsg}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) { return proto.Marshal(v) }

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	if c.newMsg == nil {
		var zero T
		return zero, ErrNoConstructor
	}
	m := c.newMsg()
	if err := proto.Unmarshal(b, m); err != nil {
		var zero T
		return zero, err
	}
	return m, nil
}
