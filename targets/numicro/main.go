//go:build tinygo && numicro

// Command numicro is the LDROM bootloader image for NuMicro M031 parts.
//
//	tinygo build -target=./targets/numicro/m031.json -o isp.bin ./targets/numicro
package main

import (
	"ispboot/core"
)

// Flash geometry of the M031 64 KB parts
const (
	flashSize = 64 * 1024
	ldromSize = 4 * 1024
)

func main() {
	unlockRegisters()
	InitClock()
	uart := InitUART()
	fmc := NewFMC()

	hw := core.Hardware{
		Flash: fmc,
		Boot:  fmc,
		Device: core.DeviceInfo{
			ProductID:   productID(),
			FlashSize:   flashSize,
			LDROMSize:   ldromSize,
			PageSize:    core.DefaultPageSize,
			BlockSize:   core.DefaultBlockSize,
			ConfigWords: core.DefaultConfigWords,
		},
	}

	rx := core.NewUARTReceiver(uart)
	s, err := core.NewSession(hw, rx, core.SystemClock{},
		core.WithPoll(func() {
			UpdateSystemTime()
			rx.Service(uart, core.GetTime())
		}),
	)
	if err != nil {
		// CONFIG unreadable: nothing to flash safely, start the application
		fmc.SelectBootSource(core.BootAPROM)
		fmc.SystemReset()
		return
	}

	s.Run()
}
