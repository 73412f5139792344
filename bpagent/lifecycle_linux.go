//go:build linux
// +build linux

// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: lifecycle_linux.go — page-lock the agent's resident memory
//
// Purpose:
//   - On embedded DTN gateways the agent's whole working set (active table,
//     retransmission arena, route table) should never be paged out; a page
//     fault mid-forward defeats the point of a fixed-capacity, bounded-
//     latency design.
//
// Notes:
//   - Mirrors main_linux.go/main_darwin.go's platform-split convention:
//     Linux gets the real syscall, other platforms get the error-returning
//     stub in lifecycle_other.go.
// ─────────────────────────────────────────────────────────────────────────────

package bpagent

import "golang.org/x/sys/unix"

// LockMemory pins the process's resident pages so the runtime never
// pages out the agent's fixed-capacity tables. Requires CAP_IPC_LOCK or
// running as root; callers should treat failure as a warning, not fatal.
func LockMemory() error {
	return unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE)
}
