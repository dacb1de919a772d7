// Package backend defines the command-execution contract the balancer drives.
//
// A Conn is one independent key-value store (a Redis server, an in-process
// store, ...). The balancer never speaks a wire protocol itself: it hands a
// command name plus arguments to Conn.Do and interprets the reply.
//
// Reply discipline used everywhere:
//
//	value, nil        - hit; value is a string, int64, []any or []byte
//	nil, ErrNil       - the key is definitely absent (nil reply)
//	nil, other error  - the command could not be executed (transport/server failure)
//
// Handle turns that into a tagged Reply so callers never compare sentinels.
package backend

import (
	"context"
	"errors"
)

// ErrNil is returned by Conn.Do when the store replied with nil (key absent).
var ErrNil = errors.New("backend: nil reply")

// Conn is one store connection. Implementations must be safe for concurrent use.
type Conn interface {
	// Name is a stable identifier (host:port or a configured label).
	Name() string

	// Do executes a single command, e.g. Do(ctx, "SET", "k", "v", "NX", "PX", 500).
	Do(ctx context.Context, args ...any) (any, error)

	// Tx executes cmds atomically (MULTI ... EXEC) and returns one Reply per command.
	// A non-nil error means the transaction as a whole could not be executed.
	Tx(ctx context.Context, cmds ...[]any) ([]Reply, error)

	// Close releases resources owned by the connection.
	Close(ctx context.Context) error
}
