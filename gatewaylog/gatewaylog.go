// Package gatewaylog provides the structured logging used throughout the
// gateway control plane. It wraps a single zap.Logger and hands every
// subsystem a prefixed, leveled Logger in the Infof/Warnf/Errorf/Fatalf
// style the rest of the codebase calls.
package gatewaylog

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

var (
	once sync.Once
	root *zap.SugaredLogger
)

func rootLogger() *zap.SugaredLogger {
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.DisableStacktrace = true
		l, err := cfg.Build()
		if err != nil {
			// Logger construction failing is a programmer error (bad config);
			// fall back to a bare logger so the process can still report why.
			l = zap.NewNop()
			os.Stderr.WriteString("gatewaylog: falling back to no-op logger: " + err.Error() + "\n")
		}
		root = l.Sugar()
	})
	return root
}

// Logger is a component-scoped log handle, analogous to the teacher's
// logPrefix convention: every call is tagged with the component name.
type Logger struct {
	name string
	sl   *zap.SugaredLogger
}

// New returns a Logger scoped to component name, e.g. "topology.builder".
func New(component string) *Logger {
	return &Logger{name: component, sl: rootLogger().Named(component)}
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.sl.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.sl.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.sl.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.sl.Errorf(format, args...) }

// Fatalf logs at error level and terminates the process. Reserved for
// invariant violations (section 7: Internal errors), never for recoverable
// per-request failures.
func (l *Logger) Fatalf(format string, args ...interface{}) { l.sl.Fatalf(format, args...) }

// Sync flushes any buffered log entries. Call once at shutdown.
func Sync() {
	if root != nil {
		_ = root.Sync()
	}
}
