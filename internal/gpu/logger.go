package gpu

import (
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/life"
)

// override is the logger installed with SetLogger. While it is nil the
// package follows life.Logger.
var override atomic.Pointer[slog.Logger]

// taggedLogger caches src.With("component", "gpu").
type taggedLogger struct {
	src, out *slog.Logger
}

var tagged atomic.Pointer[taggedLogger]

// SetLogger routes the GPU core's records to l instead of life.Logger.
// Pass nil to follow life.Logger again.
func SetLogger(l *slog.Logger) { override.Store(l) }

// slogger returns the package logger. Records carry component=gpu.
func slogger() *slog.Logger {
	src := override.Load()
	if src == nil {
		src = life.Logger()
	}
	if t := tagged.Load(); t != nil && t.src == src {
		return t.out
	}
	t := &taggedLogger{src: src, out: src.With("component", "gpu")}
	tagged.Store(t)
	return t.out
}
