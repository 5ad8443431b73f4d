//go:build tinygo && numicro

package main

import (
	"runtime/volatile"
	"unsafe"

	"ispboot/core"
)

// UART0 peripheral memory map
const (
	uart0Base    = 0x40070000
	uart0DAT     = uart0Base + 0x00
	uart0LINE    = uart0Base + 0x0C
	uart0FIFOSTS = uart0Base + 0x18
	uart0BAUD    = uart0Base + 0x24

	fifostsRXEMPTY = 1 << 14
	fifostsTXFULL  = 1 << 23

	lineWLS8    = 0x3       // 8 data bits, no parity, 1 stop
	baudMode2   = 0x3 << 28 // BAUDM1 | BAUDM0
	uartClock   = 48000000  // HIRC
	uartDivisor = uartClock/core.UARTBaudRate - 2
)

var (
	uDAT     = (*volatile.Register32)(unsafe.Pointer(uintptr(uart0DAT)))
	uLINE    = (*volatile.Register32)(unsafe.Pointer(uintptr(uart0LINE)))
	uFIFOSTS = (*volatile.Register32)(unsafe.Pointer(uintptr(uart0FIFOSTS)))
	uBAUD    = (*volatile.Register32)(unsafe.Pointer(uintptr(uart0BAUD)))
)

// UART0 is the polled ISP UART. It implements core.ByteSource and
// io.Writer.
type UART0 struct{}

// InitUART configures UART0 for the ISP line settings. Pin muxing is left
// to the reset defaults of the ISP pins.
func InitUART() *UART0 {
	uLINE.Set(lineWLS8)
	uBAUD.Set(baudMode2 | uartDivisor)
	return &UART0{}
}

func (u *UART0) Buffered() int {
	if uFIFOSTS.Get()&fifostsRXEMPTY != 0 {
		return 0
	}
	return 1
}

func (u *UART0) ReadByte() (byte, error) {
	return byte(uDAT.Get()), nil
}

func (u *UART0) Write(b []byte) (int, error) {
	for _, c := range b {
		for uFIFOSTS.Get()&fifostsTXFULL != 0 {
		}
		uDAT.Set(uint32(c))
	}
	return len(b), nil
}
