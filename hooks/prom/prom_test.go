package prom

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := New("test", reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	h.BackendFailed("r1", "GET", errors.New("down"))
	h.BackendFailed("r1", "GET", errors.New("down"))
	h.BackendFailed("r2", "SET", errors.New("down"))
	h.LockAcquired("k", time.Second)
	h.LockReleased("k")
	h.LockWaited("k", 250*time.Millisecond)
	h.WriteRejected("k")
	h.ExpiryFailed("r1", []string{"a", "b", "c"})
	h.SelfHeal("k", "value_decode")

	if got := testutil.ToFloat64(h.backendFailures.WithLabelValues("r1", "GET")); got != 2 {
		t.Fatalf("r1 GET failures = %v", got)
	}
	if got := testutil.ToFloat64(h.locksAcquired); got != 1 {
		t.Fatalf("locks acquired = %v", got)
	}
	if got := testutil.ToFloat64(h.expiryFailures.WithLabelValues("r1")); got != 3 {
		t.Fatalf("expiry failures = %v", got)
	}
	if got := testutil.ToFloat64(h.selfHeals.WithLabelValues("value_decode")); got != 1 {
		t.Fatalf("self heals = %v", got)
	}
	if n := testutil.CollectAndCount(h.lockWait); n != 1 {
		t.Fatalf("lock wait series = %d", n)
	}
}

func TestDoubleRegisterFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New("dup", reg); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := New("dup", reg); err == nil {
		t.Fatalf("expected AlreadyRegistered error")
	}
}
