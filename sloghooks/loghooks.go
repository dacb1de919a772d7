// Package sloghooks reports balancer events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/balancer"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	BackendFailEvery uint64
	LockEvery        uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	failCtr atomic.Uint64
	lockCtr atomic.Uint64
}

var _ balancer.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n <= 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) BackendFailed(backend, command string, err error) {
	if h.l == nil || !sample(h.opts.BackendFailEvery, &h.failCtr) {
		return
	}
	h.l.Warn("balancer.backend_failed",
		"backend", backend,
		"cmd", command,
		"err", err)
}

func (h *Hooks) LockAcquired(key string, ttl time.Duration) {
	if h.l == nil || !sample(h.opts.LockEvery, &h.lockCtr) {
		return
	}
	h.l.Debug("balancer.lock_acquired",
		"key", h.redact(key),
		"ttl", ttl)
}

func (h *Hooks) LockReleased(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("balancer.lock_released", "key", h.redact(key))
}

func (h *Hooks) LockWaited(key string, waited time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Info("balancer.lock_waited",
		"key", h.redact(key),
		"waited", waited)
}

func (h *Hooks) WriteRejected(key string) {
	if h.l == nil {
		return
	}
	h.l.Info("balancer.write_rejected", "key", h.redact(key))
}

func (h *Hooks) ExpiryFailed(backend string, keys []string) {
	if h.l == nil {
		return
	}
	h.l.Error("balancer.expiry_failed",
		"backend", backend,
		"count", len(keys))
}

func (h *Hooks) SelfHeal(key, reason string) {
	if h.l == nil {
		return
	}
	h.l.Warn("balancer.self_heal",
		"key", h.redact(key),
		"reason", reason)
}
