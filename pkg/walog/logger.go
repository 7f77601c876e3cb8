package walog

import (
	"fmt"
	"log"
	"os"
)

// Logger is a small, injectable logging handle. No package in this
// module reaches for a process-wide logger singleton; every
// constructor that needs to log takes one of these instead.
type Logger interface {
	Log(level, msg string, fields map[string]any)
}

// stdLogger is the default Logger, backed by the standard library's
// log.Logger and printing fields inline.
type stdLogger struct {
	l *log.Logger
}

// NewStdLogger returns a Logger that writes to stderr with a
// "<date> <time> [level] msg key=val ..." line format.
func NewStdLogger() Logger {
	return &stdLogger{l: log.New(os.Stderr, "", log.LstdFlags)}
}

func (s *stdLogger) Log(level, msg string, fields map[string]any) {
	line := fmt.Sprintf("[%s] %s", level, msg)
	for k, v := range fields {
		line += fmt.Sprintf(" %s=%v", k, v)
	}
	s.l.Println(line)
}

// NopLogger discards every message. Useful in tests that don't want
// log noise but still need to satisfy a Logger parameter.
type NopLogger struct{}

func (NopLogger) Log(string, string, map[string]any) {}
