// Package diaglog ships best-effort diagnostic entries to a remote sink.
// Delivery never blocks or fails the operation that produced the entry.
package diaglog

import (
	"context"
	"fmt"
)

// Level is the severity of a diagnostic entry
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Packages name the subsystem an entry comes from
const (
	PackageShorten  = "shorten"
	PackageRedirect = "redirect"
)

// DefaultStack identifies this tier in every entry
const DefaultStack = "backend"

// Entry is the payload delivered to a sink
type Entry struct {
	Stack   string `json:"stack"`
	Level   Level  `json:"level"`
	Package string `json:"package"`
	Message string `json:"message"`
}

// ParseLevel accepts info, warn or error
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelInfo, LevelWarn, LevelError:
		return Level(s), nil
	default:
		return "", fmt.Errorf("unknown diagnostic level %q", s)
	}
}

// AtLeast reports whether l is as severe as min
func (l Level) AtLeast(min Level) bool {
	return l.rank() >= min.rank()
}

func (l Level) rank() int {
	switch l {
	case LevelWarn:
		return 1
	case LevelError:
		return 2
	default:
		return 0
	}
}

// Sink delivers one entry. Implementations must honour ctx.
type Sink interface {
	Name() string
	Send(ctx context.Context, entry Entry) error
}

// NopSink discards entries; the dispatcher still logs them locally
type NopSink struct{}

func (NopSink) Name() string { return "none" }

func (NopSink) Send(context.Context, Entry) error { return nil }
