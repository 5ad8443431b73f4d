//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks the transport interrupts while the main loop
// touches receiver state the handlers also write
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
