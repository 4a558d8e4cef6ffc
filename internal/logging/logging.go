// Package logging includes utilities used to trace encoding selection. This
// is in an independent package to avoid dependency cycles.
package logging

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

type LogScopes uint64

const (
	LogScopeNone             = LogScopes(0)
	LogScopeLookup LogScopes = 1 << iota
	LogScopeLegalize
	LogScopeRelax
	LogScopeAll = LogScopes(0xffffffffffffffff)
)

func scopeName(s LogScopes) string {
	switch s {
	case LogScopeLookup:
		return "lookup"
	case LogScopeLegalize:
		return "legalize"
	case LogScopeRelax:
		return "relax"
	default:
		return fmt.Sprintf("<unknown=%d>", s)
	}
}

// IsEnabled returns true if the scope (or group of scopes) is enabled.
func (f LogScopes) IsEnabled(scope LogScopes) bool {
	return f&scope != 0
}

// String implements fmt.Stringer by returning each enabled log scope.
func (f LogScopes) String() string {
	if f == LogScopeAll {
		return "all"
	}
	var builder strings.Builder
	for i := 0; i <= 63; i++ { // cycle through all bits to reduce code and maintenance
		target := LogScopes(1 << i)
		if f.IsEnabled(target) {
			if name := scopeName(target); name != "" {
				if builder.Len() > 0 {
					builder.WriteByte('|')
				}
				builder.WriteString(name)
			}
		}
	}
	return builder.String()
}

// ParseLogScopes parses a comma-separated list of scopes, e.g. "lookup,relax".
func ParseLogScopes(input string) (LogScopes, error) {
	var ret LogScopes
	for _, s := range strings.Split(input, ",") {
		switch s {
		case "":
			continue
		case "all":
			ret |= LogScopeAll
		case "lookup":
			ret |= LogScopeLookup
		case "legalize":
			ret |= LogScopeLegalize
		case "relax":
			ret |= LogScopeRelax
		default:
			return 0, errors.New("not a log scope")
		}
	}
	return ret, nil
}

type Writer interface {
	io.Writer
	io.StringWriter
	io.ByteWriter
}

type writer struct {
	io.Writer
}

func (w writer) WriteString(s string) (int, error) {
	return io.WriteString(w.Writer, s)
}

func (w writer) WriteByte(c byte) error {
	_, err := w.Write([]byte{c})
	return err
}

// Logger writes a line per event of the enabled scopes. It is safe for
// concurrent use, and a nil Logger logs nothing.
type Logger struct {
	mu     sync.Mutex
	w      Writer
	scopes LogScopes
}

// NewLogger returns a Logger writing the events of scopes to w.
func NewLogger(w io.Writer, scopes LogScopes) *Logger {
	lw, ok := w.(Writer)
	if !ok {
		lw = writer{w}
	}
	return &Logger{w: lw, scopes: scopes}
}

// IsEnabled returns true if events of scope are written.
func (l *Logger) IsEnabled(scope LogScopes) bool {
	return l != nil && l.scopes.IsEnabled(scope)
}

// Logf writes a line prefixed with the name of scope, if the scope is enabled.
func (l *Logger) Logf(scope LogScopes, format string, args ...interface{}) {
	if !l.IsEnabled(scope) {
		return
	}
	msg := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.WriteByte('[')                //nolint
	l.w.WriteString(scopeName(scope)) //nolint
	l.w.WriteString("] ")             //nolint
	l.w.WriteString(msg)              //nolint
	l.w.WriteByte('\n')               //nolint
}
