//go:build tinygo

package core

import "sync/atomic"

// systemTicksValue is advanced by the target's tick source
var systemTicksValue uint32

func getSystemTicks() uint32 {
	return atomic.LoadUint32(&systemTicksValue)
}

// AdvanceTime adds delta ticks to the system time. Targets call it from
// their timer interrupt or main loop poll.
func AdvanceTime(delta uint32) {
	atomic.AddUint32(&systemTicksValue, delta)
}
