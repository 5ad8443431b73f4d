//go:build tinygo && numicro

package main

import (
	"runtime/volatile"
	"unsafe"

	"ispboot/core"
)

// SysTick registers
const (
	sysTickCTRL = 0xE000E010
	sysTickLOAD = 0xE000E014
	sysTickVAL  = 0xE000E018

	cpuClock      = 48000000
	ticksPerUS    = cpuClock / core.TickFreq
	sysTickReload = 0x00FFFFFF
)

var (
	stCTRL = (*volatile.Register32)(unsafe.Pointer(uintptr(sysTickCTRL)))
	stLOAD = (*volatile.Register32)(unsafe.Pointer(uintptr(sysTickLOAD)))
	stVAL  = (*volatile.Register32)(unsafe.Pointer(uintptr(sysTickVAL)))

	lastSysTick uint32
	residue     uint32
)

// InitClock starts SysTick free-running from the CPU clock. The ISP loop
// polls it often enough that the 24-bit counter never wraps twice between
// polls.
func InitClock() {
	stLOAD.Set(sysTickReload)
	stVAL.Set(0)
	stCTRL.Set(0x5) // ENABLE | CLKSRC, no interrupt
	lastSysTick = stVAL.Get()
}

// UpdateSystemTime advances core time by the SysTick cycles since the last
// call.
func UpdateSystemTime() {
	now := stVAL.Get()
	// SysTick counts down
	cycles := (lastSysTick - now) & sysTickReload
	lastSysTick = now

	cycles += residue
	core.AdvanceTime(cycles / ticksPerUS)
	residue = cycles % ticksPerUS
}
