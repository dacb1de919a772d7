// Package zap adapts a *zap.Logger to balancer.Logger.
package zap

import (
	"sort"

	"github.com/unkn0wn-root/balancer"
	"go.uber.org/zap"
)

var _ balancer.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New names the logger "balancer". A nil l logs nothing.
func New(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return Logger{L: l.Named("balancer")}
}

func (z Logger) Debug(msg string, f balancer.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f balancer.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f balancer.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f balancer.Fields) { z.L.Error(msg, fields(f)...) }

// fields sorts by key so output is stable. "err" becomes zap.Error.
func fields(f balancer.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok && k == "err" {
			out = append(out, zap.Error(err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
