// Package nlog wires up structured logging for a host embedding
// neonucleus, in the style of the rest of this code base's
// leveled-key-value logging: one base logfmt logger, filtered through
// level.NewFilter, with With() used to attach per-computer and
// per-component context instead of string-formatting it into messages.
package nlog

import (
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Level selects the minimum severity a Logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// New builds a logfmt logger writing to w, filtered to lvl and above,
// with a timestamp and caller attached to every line.
func New(w io.Writer, lvl Level) log.Logger {
	base := log.NewLogfmtLogger(log.NewSyncWriter(w))
	base = log.With(base, "ts", log.DefaultTimestampUTC, "caller", log.Caller(5))
	return level.NewFilter(base, filterOption(lvl))
}

// Default returns a logger writing to stderr at LevelInfo, suitable for
// a host that hasn't configured logging explicitly.
func Default() log.Logger {
	return New(os.Stderr, LevelInfo)
}

func filterOption(lvl Level) level.Option {
	switch lvl {
	case LevelDebug:
		return level.AllowDebug()
	case LevelWarn:
		return level.AllowWarn()
	case LevelError:
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

// Computer returns a logger scoped to one computer's address, the
// context every Universe-level log line about that computer's
// lifecycle (boot, crash, blackout, overwork) should carry.
func Computer(base log.Logger, address string) log.Logger {
	return log.With(base, "computer", address)
}

// Component returns a logger further scoped to one mounted component,
// for method-invocation tracing.
func Component(base log.Logger, address, typeName string) log.Logger {
	return log.With(base, "component", address, "type", typeName)
}

// Debug, Info, Warn, and Error are thin wrappers over level.X(logger).Log
// so callers don't need to import go-kit/log/level themselves for the
// common case of a flat key-value line.
func Debug(l log.Logger, keyvals ...interface{}) { level.Debug(l).Log(keyvals...) }
func Info(l log.Logger, keyvals ...interface{})  { level.Info(l).Log(keyvals...) }
func Warn(l log.Logger, keyvals ...interface{})  { level.Warn(l).Log(keyvals...) }
func Error(l log.Logger, keyvals ...interface{}) { level.Error(l).Log(keyvals...) }
