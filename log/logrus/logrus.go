// Package logrus adapts a logrus entry to balancer.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/balancer"
)

var _ balancer.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New tags every line with component=balancer.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "balancer")}
}

func (l Logger) Debug(msg string, f balancer.Fields) { l.entry(f).Debug(msg) }
func (l Logger) Info(msg string, f balancer.Fields)  { l.entry(f).Info(msg) }
func (l Logger) Warn(msg string, f balancer.Fields)  { l.entry(f).Warn(msg) }
func (l Logger) Error(msg string, f balancer.Fields) { l.entry(f).Error(msg) }

func (l Logger) entry(f balancer.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	e := l.E
	if err, ok := f["err"].(error); ok {
		e = e.WithError(err)
	}
	fs := make(logrus.Fields, len(f))
	for k, v := range f {
		if k == "err" {
			continue
		}
		fs[k] = v
	}
	return e.WithFields(fs)
}
