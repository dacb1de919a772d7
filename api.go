package balancer

import (
	"time"

	"github.com/unkn0wn-root/balancer/backend"
)

// DefaultLockTime is the fill lock TTL config files get when they do not set one.
const DefaultLockTime = 30 * time.Second

const (
	defaultPollInterval  = 500 * time.Millisecond
	defaultSweepInterval = 30 * time.Second
)

// Options configure a Balancer. Locking is off unless LockTime is set;
// DefaultLockTime is the usual value.
type Options struct {
	// Backends in configured order. The first one is the primary: non-mutex locks
	// and flushes address it alone.
	Backends []backend.Conn

	DisableQueue bool          // read from exactly one backend instead of walking the rotation
	MutexMode    bool          // broadcast locks and flushes to every backend
	LockTime     time.Duration // fill lock TTL; <= 0 disables locking
	PollInterval time.Duration // busy-wait poll; 0 => 500ms

	// LockSweepInterval is how often expired local lock records are pruned;
	// 0 => LockTime, or 30s when locking is off.
	LockSweepInterval time.Duration

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks

	// Shuffle permutes the rotation once. nil => math/rand/v2 Shuffle.
	Shuffle func(n int, swap func(i, j int))
}

// Status of a single-key read.
type Status uint8

const (
	// Miss: no backend produced a value.
	Miss Status = iota
	// Hit: Value holds the cached bytes.
	Hit
	// Pending: nothing cached yet and this instance now holds the fill lock.
	// The caller should compute the value and Set it.
	Pending
)

func (s Status) String() string {
	switch s {
	case Hit:
		return "hit"
	case Pending:
		return "pending"
	default:
		return "miss"
	}
}

type Lookup struct {
	Status Status
	Value  []byte
	Source string // backend that served a hit
}

// SetMode selects the write primitive of SetMode.
type SetMode uint8

const (
	// Overwrite refuses to write over another instance's fill lock.
	Overwrite SetMode = iota
	// AddIfAbsent releases this instance's own lock, then writes with NX.
	AddIfAbsent
)

// LockKind is what the lock probe observed.
type LockKind uint8

const (
	NotLocked LockKind = iota // a backend holds a real value (or none answered)
	Locked                    // a backend holds a lock marker
	Absent                    // a backend holds nothing (or an empty string)
)

func (k LockKind) String() string {
	switch k {
	case Locked:
		return "locked"
	case Absent:
		return "absent"
	default:
		return "not_locked"
	}
}

// LockState is the first decisive answer of the lock probe.
type LockState struct {
	Kind    LockKind
	Marker  string // raw probe bytes when Locked
	Backend int    // index of the answering backend; -1 if none answered
}

// StatCategories are the INFO sections Stats collects.
var StatCategories = []string{"server", "clients", "stats", "commandstats", "keyspace"}
