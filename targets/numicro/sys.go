//go:build tinygo && numicro

package main

import (
	"runtime/volatile"
	"unsafe"
)

// SYS and CLK registers
const (
	sysPDID    = 0x40000000
	sysREGLCTL = 0x40000100
	clkAHBCLK  = 0x40000204

	ahbclkISPCKEN = 1 << 2
)

var (
	pdid    = (*volatile.Register32)(unsafe.Pointer(uintptr(sysPDID)))
	reglctl = (*volatile.Register32)(unsafe.Pointer(uintptr(sysREGLCTL)))
	ahbclk  = (*volatile.Register32)(unsafe.Pointer(uintptr(clkAHBCLK)))
)

// unlockRegisters opens the write-protected SYS, CLK and FMC registers.
func unlockRegisters() {
	for reglctl.Get() == 0 {
		reglctl.Set(0x59)
		reglctl.Set(0x16)
		reglctl.Set(0x88)
	}
	ahbclk.SetBits(ahbclkISPCKEN)
}

// productID reads the PDID register.
func productID() uint32 {
	return pdid.Get()
}
