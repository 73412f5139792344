//go:build !linux
// +build !linux

package bpagent

import "errors"

// LockMemory locks nothing on non-Linux platforms and returns an error
// saying so; the agent still runs, just without the residency guarantee.
func LockMemory() error {
	return errors.New("bpagent: memory locking not supported on this platform")
}
