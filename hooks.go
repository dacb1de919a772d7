package balancer

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; they run on the request path.
type Hooks interface {
	// A command could not be executed on a backend (transport or server failure).
	BackendFailed(backend, command string, err error)

	// This instance stored a fill lock marker for key.
	LockAcquired(key string, ttl time.Duration)
	// This instance removed its own fill lock for key.
	LockReleased(key string)
	// A read busy-waited on someone else's fill lock.
	LockWaited(key string, waited time.Duration)

	// An overwrite was refused because another instance holds the fill lock.
	WriteRejected(key string)

	// A transactional multi-set could not attach an expiry to keys on backend.
	ExpiryFailed(backend string, keys []string)

	// A cached value was deleted on read.
	// reason ∈ {"value_decode"}
	SelfHeal(key, reason string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) BackendFailed(string, string, error) {}
func (NopHooks) LockAcquired(string, time.Duration)  {}
func (NopHooks) LockReleased(string)                 {}
func (NopHooks) LockWaited(string, time.Duration)    {}
func (NopHooks) WriteRejected(string)                {}
func (NopHooks) ExpiryFailed(string, []string)       {}
func (NopHooks) SelfHeal(string, string)             {}
