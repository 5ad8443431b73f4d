//go:build !tinygo

package core

import "time"

var processStart = time.Now()

// getSystemTicks returns microseconds since process start
func getSystemTicks() uint32 {
	return uint32(time.Since(processStart) / time.Microsecond)
}
