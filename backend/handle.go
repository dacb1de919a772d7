package backend

import (
	"context"
	"fmt"
	"strings"
)

// Handle wraps a Conn and never propagates failures: every outcome is a Reply.
type Handle struct {
	conn Conn
}

func NewHandle(c Conn) *Handle { return &Handle{conn: c} }

func (h *Handle) Name() string { return h.conn.Name() }
func (h *Handle) Conn() Conn   { return h.conn }

// Exec runs one command. A panic inside the connection is treated as a failure.
func (h *Handle) Exec(ctx context.Context, args ...any) (r Reply) {
	defer func() {
		if p := recover(); p != nil {
			r = Reply{Kind: Failure, Err: fmt.Errorf("backend %s: panic in %s: %v", h.conn.Name(), Command(args), p)}
		}
	}()
	return Result(h.conn.Do(ctx, args...))
}

// ExecTx runs cmds in one transaction. When the transaction cannot run, the
// returned slice holds one Failure per command.
func (h *Handle) ExecTx(ctx context.Context, cmds ...[]any) []Reply {
	out, err := h.tx(ctx, cmds)
	if err == nil && len(out) == len(cmds) {
		return out
	}
	if err == nil {
		err = fmt.Errorf("backend %s: transaction returned %d replies for %d commands", h.conn.Name(), len(out), len(cmds))
	}
	failed := make([]Reply, len(cmds))
	for i := range failed {
		failed[i] = Reply{Kind: Failure, Err: err}
	}
	return failed
}

func (h *Handle) tx(ctx context.Context, cmds [][]any) (out []Reply, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("backend %s: panic in transaction: %v", h.conn.Name(), p)
		}
	}()
	return h.conn.Tx(ctx, cmds...)
}

// Command returns the upper-cased command name of args (for logs and metrics).
func Command(args []any) string {
	if len(args) == 0 {
		return ""
	}
	if s, ok := args[0].(string); ok {
		return strings.ToUpper(s)
	}
	return fmt.Sprint(args[0])
}
