// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: logx.go — cold-path-only, allocation-light diagnostic logging
//
// Purpose:
//   - Logs infrequent agent-level events (connection state, storage errors,
//     table-full conditions) without pulling in a logging framework.
//   - Never called from activetable, retx, or dedupe hot paths.
//
// Notes:
//   - Concatenation instead of fmt.Sprintf, matching debug.go's approach —
//     these paths are cold enough that the extra allocation from string
//     concatenation is a non-issue, but there is still no reason to pull
//     in a formatting engine for a handful of fixed-shape messages.
// ─────────────────────────────────────────────────────────────────────────────

// Package logx provides the bundle agent's diagnostic logging: a handful
// of fixed-shape helpers written directly to stderr, with no third-party
// logging dependency and no hot-path use.
package logx

import "os"

// Warn writes prefix + ": " + err.Error() to stderr, or just prefix if err
// is nil. Mirrors debug.go's DropError.
func Warn(prefix string, err error) {
	if err != nil {
		os.Stderr.WriteString(prefix + ": " + err.Error() + "\n")
		return
	}
	os.Stderr.WriteString(prefix + "\n")
}

// Info writes prefix + ": " + message to stderr. Mirrors debug.go's
// DropMessage.
func Info(prefix, message string) {
	os.Stderr.WriteString(prefix + ": " + message + "\n")
}
