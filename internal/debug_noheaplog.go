//go:build !debugheaplog

package internal

import (
	"context"
	"log/slog"
)

// HeapAllocDebugging is set by the debugheaplog build tag, under which every
// log call site reports heap growth.
const HeapAllocDebugging = false

// LogEnabled reports whether l logs at lvl. A nil logger logs nothing.
func LogEnabled(l *slog.Logger, lvl slog.Level) bool {
	if l == nil {
		return false
	}
	return l.Enabled(context.Background(), lvl)
}

// LogAttrs logs through l if it is not nil. Driver packages log through
// here only, so the debugheaplog build tag can swap in the allocation
// reporting print logger.
func LogAttrs(l *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if l == nil {
		return
	}
	l.LogAttrs(context.Background(), level, msg, attrs...)
}
