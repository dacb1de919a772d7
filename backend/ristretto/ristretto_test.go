package ristretto

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unkn0wn-root/balancer/backend/local"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{NumCounters: 1000, MaxCost: 1 << 20})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreSaveLoadRemove(t *testing.T) {
	s := newStore(t)
	if err := s.Save("k", local.Entry{Value: []byte("v")}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	e, ok, _ := s.Load("k")
	if !ok || string(e.Value) != "v" {
		t.Fatalf("Load: %+v %v", e, ok)
	}
	if ok, _ := s.Remove("k"); !ok {
		t.Fatalf("Remove existing")
	}
	if _, ok, _ := s.Load("k"); ok {
		t.Fatalf("still present after Remove")
	}
}

func TestStorePastDeadlineDeletes(t *testing.T) {
	s := newStore(t)
	_ = s.Save("k", local.Entry{Value: []byte("v")})
	if err := s.Save("k", local.Entry{Value: []byte("w"), Deadline: time.Now().Add(-time.Second)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok, _ := s.Load("k"); ok {
		t.Fatalf("expired save should delete")
	}
}

func TestStoreCannotEnumerate(t *testing.T) {
	s := newStore(t)
	if _, err := s.Keys(); !errors.Is(err, local.ErrUnsupported) {
		t.Fatalf("Keys: %v", err)
	}

	c := local.New("rist", s)
	if _, err := c.Do(context.Background(), "KEYS", "*"); !errors.Is(err, local.ErrUnsupported) {
		t.Fatalf("KEYS through Conn: %v", err)
	}
	if v, err := c.Do(context.Background(), "SET", "k", "v", "PX", int64(5000)); err != nil || v != "OK" {
		t.Fatalf("SET PX: %v %v", v, err)
	}
	if v, err := c.Do(context.Background(), "GET", "k"); err != nil || v != "v" {
		t.Fatalf("GET: %v %v", v, err)
	}
}
