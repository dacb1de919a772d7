package balancer

import (
	"errors"
	"fmt"
)

var (
	ErrNilConn          = errors.New("balancer: nil backend")
	ErrDuplicateBackend = errors.New("balancer: duplicate backend name")
	ErrNilBalancer      = errors.New("balancer: nil balancer")
)

// CodecError reports a value that could not be encoded or decoded by a Cache.
type CodecError struct {
	Key string
	Op  string // "encode" or "decode"
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("balancer: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }
