//go:build tinygo && numicro

package main

import (
	"device/arm"
	"runtime/volatile"
	"unsafe"

	"ispboot/core"
)

// FMC peripheral memory map
const (
	fmcBase    = 0x4000C000
	fmcISPCTL  = fmcBase + 0x00
	fmcISPADDR = fmcBase + 0x04
	fmcISPDAT  = fmcBase + 0x08
	fmcISPCMD  = fmcBase + 0x0C
	fmcISPTRG  = fmcBase + 0x10
	fmcISPSTS  = fmcBase + 0x40
)

// ISPCTL bits
const (
	ispctlISPEN  = 1 << 0
	ispctlBS     = 1 << 1
	ispctlAPUEN  = 1 << 3
	ispctlCFGUEN = 1 << 4
	ispctlLDUEN  = 1 << 5
	ispctlISPFF  = 1 << 6
)

// ISP commands
const (
	ispCmdRead       = 0x00
	ispCmdProgram    = 0x21
	ispCmdPageErase  = 0x22
	ispCmdVectorPage = 0x2E
)

var (
	ispCTL  = (*volatile.Register32)(unsafe.Pointer(uintptr(fmcISPCTL)))
	ispADDR = (*volatile.Register32)(unsafe.Pointer(uintptr(fmcISPADDR)))
	ispDAT  = (*volatile.Register32)(unsafe.Pointer(uintptr(fmcISPDAT)))
	ispCMD  = (*volatile.Register32)(unsafe.Pointer(uintptr(fmcISPCMD)))
	ispTRG  = (*volatile.Register32)(unsafe.Pointer(uintptr(fmcISPTRG)))
	ispSTS  = (*volatile.Register32)(unsafe.Pointer(uintptr(fmcISPSTS)))
)

// FMC drives the flash memory controller. Multi-word programming is not
// used; StartProgram latches one word per call.
type FMC struct{}

// NewFMC enables ISP mode. The SYS registers must be unlocked.
func NewFMC() *FMC {
	ispCTL.SetBits(ispctlISPEN)
	return &FMC{}
}

func (f *FMC) trigger(cmd, addr uint32) {
	ispCMD.Set(cmd)
	ispADDR.Set(addr)
	ispTRG.Set(1)
}

func (f *FMC) StartRead(addr uint32) {
	f.trigger(ispCmdRead, addr)
}

func (f *FMC) Data() uint32 {
	return ispDAT.Get()
}

func (f *FMC) StartErase(addr uint32) {
	f.trigger(ispCmdPageErase, addr)
}

func (f *FMC) StartProgram(addr uint32, words []uint32) int {
	if len(words) == 0 {
		return 0
	}
	ispDAT.Set(words[0])
	f.trigger(ispCmdProgram, addr)
	return 1
}

func (f *FMC) Status() core.FlashStatus {
	var st core.FlashStatus
	if ispTRG.Get()&1 != 0 {
		st |= core.FlashBusy
	}
	if ispCTL.Get()&ispctlISPFF != 0 {
		st |= core.FlashFault
	}
	return st
}

// ClearFault writes 1 to ISPFF.
func (f *FMC) ClearFault() {
	ispCTL.SetBits(ispctlISPFF)
}

func (f *FMC) SetUpdateEnable(region core.RegionKind, enable bool) {
	var bit uint32
	switch region {
	case core.RegionAPROM:
		bit = ispctlAPUEN
	case core.RegionLDROM:
		bit = ispctlLDUEN
	case core.RegionConfig:
		bit = ispctlCFGUEN
	default:
		return // Data Flash is always writable in ISP mode
	}
	if enable {
		ispCTL.SetBits(bit)
	} else {
		ispCTL.ClearBits(bit)
	}
}

func (f *FMC) BootSource() core.BootSource {
	if ispCTL.Get()&ispctlBS != 0 {
		return core.BootLDROM
	}
	return core.BootAPROM
}

func (f *FMC) SelectBootSource(src core.BootSource) {
	if src == core.BootLDROM {
		ispCTL.SetBits(ispctlBS)
	} else {
		ispCTL.ClearBits(ispctlBS)
	}
}

// SetVectorBase remaps the vector page. Cortex-M0 has no VTOR; the FMC
// maps the page at addr to address 0 instead.
func (f *FMC) SetVectorBase(addr uint32) {
	f.trigger(ispCmdVectorPage, addr)
	for ispTRG.Get()&1 != 0 {
	}
}

func (f *FMC) SystemReset() {
	arm.SystemReset()
}
