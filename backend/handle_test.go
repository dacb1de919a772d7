package backend

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubConn struct {
	do func(args ...any) (any, error)
	tx func(cmds ...[]any) ([]Reply, error)
}

func (s stubConn) Name() string                { return "stub" }
func (s stubConn) Close(context.Context) error { return nil }
func (s stubConn) Do(_ context.Context, args ...any) (any, error) {
	return s.do(args...)
}
func (s stubConn) Tx(_ context.Context, cmds ...[]any) ([]Reply, error) {
	return s.tx(cmds...)
}

func TestExecRecoversPanic(t *testing.T) {
	h := NewHandle(stubConn{do: func(...any) (any, error) { panic("driver bug") }})
	r := h.Exec(context.Background(), "get", "k")
	if !r.Failed() || !strings.Contains(r.Err.Error(), "panic in GET") {
		t.Fatalf("got %+v", r)
	}
}

func TestExecTxFailureFansOut(t *testing.T) {
	boom := errors.New("EXECABORT")
	h := NewHandle(stubConn{tx: func(...[]any) ([]Reply, error) { return nil, boom }})
	rs := h.ExecTx(context.Background(), []any{"MSET", "a", "1"}, []any{"PEXPIRE", "a", 10})
	if len(rs) != 2 {
		t.Fatalf("want 2 replies, got %d", len(rs))
	}
	for _, r := range rs {
		if !r.Failed() || !errors.Is(r.Err, boom) {
			t.Fatalf("got %+v", r)
		}
	}

	short := NewHandle(stubConn{tx: func(...[]any) ([]Reply, error) { return []Reply{{Kind: Hit, Val: "OK"}}, nil }})
	rs = short.ExecTx(context.Background(), []any{"MSET", "a", "1"}, []any{"PEXPIRE", "a", 10})
	if len(rs) != 2 || !rs[0].Failed() || !rs[1].Failed() {
		t.Fatalf("length mismatch should fail every command: %+v", rs)
	}
}

func TestCommand(t *testing.T) {
	if got := Command([]any{"getrange", "k", 0, 46}); got != "GETRANGE" {
		t.Fatalf("got %q", got)
	}
	if got := Command(nil); got != "" {
		t.Fatalf("got %q", got)
	}
}
