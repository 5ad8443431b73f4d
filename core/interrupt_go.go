//go:build !tinygo

package core

// interruptState stands in for interrupt.State on regular Go, where the
// receivers are driven from goroutines and the atomics carry the handoff.
type interruptState uintptr

func disableInterrupts() interruptState {
	return 0
}

func restoreInterrupts(state interruptState) {}
