package balancer

// Fields carries structured context. The engine uses "key", "backend", "cmd"
// and "err"; adapters render "err" with their native error field.
type Fields map[string]any

// Logger is the leveled sink the engine writes to. Adapters for logrus, zap
// and slog live under log/. A nil Logger in Options disables logging.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

var _ Logger = NopLogger{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
