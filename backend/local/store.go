// Package local runs the balancer's command set against an in-process Store.
//
// It understands the subset of Redis commands the balancer issues (GET, SET with
// NX/XX and EX/PX, MGET, MSET, DEL, EXISTS, GETRANGE, EXPIRE, PEXPIRE, PTTL,
// FLUSHDB, KEYS, DBSIZE, INFO, PING) plus MULTI/EXEC through Conn.Tx. Replies
// follow go-redis Do conventions: strings, int64, []any, and backend.ErrNil for
// nil replies.
//
// Stores only hold bytes; expiry is tracked by Conn through Entry.Deadline.
package local

import (
	"errors"
	"time"
)

var (
	// ErrUnsupported is returned by stores that cannot perform an operation (e.g. enumerate keys).
	ErrUnsupported = errors.New("local: operation not supported by store")
	ErrSyntax      = errors.New("ERR syntax error")
	ErrNotInteger  = errors.New("ERR value is not an integer or out of range")
	ErrClosed      = errors.New("local: connection closed")
)

// Entry is one stored value. A zero Deadline means no expiry.
type Entry struct {
	Value    []byte
	Deadline time.Time
}

func (e Entry) expired(now time.Time) bool {
	return !e.Deadline.IsZero() && !now.Before(e.Deadline)
}

// Store is a raw byte store. Conn serializes all calls, so implementations need
// not be safe for concurrent use beyond what their library already provides.
type Store interface {
	Load(key string) (Entry, bool, error)
	Save(key string, e Entry) error
	Remove(key string) (bool, error)
	// Keys lists stored keys (expired ones included). May return ErrUnsupported.
	Keys() ([]string, error)
	Reset() error
	Close() error
}
