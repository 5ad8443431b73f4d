package core

// FlashStatus holds the flash controller status bits polled after every
// operation.
type FlashStatus uint32

const (
	FlashBusy  FlashStatus = 1 << iota // ISPGO still set
	FlashFault                         // ISPFF: operation failed
)

// FlashDriver is the register-level flash memory controller interface that
// the ISP core uses. Start* calls trigger an operation and return without
// waiting; completion is observed through Status.
type FlashDriver interface {
	// StartRead latches the word at addr; Data returns it once not busy.
	StartRead(addr uint32)

	// Data returns the word produced by the last read.
	Data() uint32

	// StartErase erases the page containing addr.
	StartErase(addr uint32)

	// StartProgram programs consecutive words starting at addr using the
	// multi-word program mode. It returns the number of words latched,
	// which is less than len(words) if the controller's block limit is hit.
	StartProgram(addr uint32, words []uint32) int

	// Status returns the current controller status bits.
	Status() FlashStatus

	// ClearFault clears a latched fault bit.
	ClearFault()

	// SetUpdateEnable opens or closes the write enable of a region
	// (APUEN, LDUEN, CFGUEN).
	SetUpdateEnable(region RegionKind, enable bool)
}

// BootSource selects the image the chip starts from after reset.
type BootSource uint8

const (
	BootAPROM BootSource = iota
	BootLDROM
)

func (b BootSource) String() string {
	if b == BootLDROM {
		return "LDROM"
	}
	return "APROM"
}

// BootController performs the hand-off out of the bootloader.
type BootController interface {
	// BootSource reports the image currently executing.
	BootSource() BootSource

	// SelectBootSource sets the boot source used by the next reset.
	SelectBootSource(src BootSource)

	// SetVectorBase remaps the vector table to addr.
	SetVectorBase(addr uint32)

	// SystemReset resets the core. On hardware it does not return.
	SystemReset()
}

// DeviceInfo is the identification the target reads once at ISP entry.
type DeviceInfo struct {
	ProductID   uint32 // PDID register
	FlashSize   uint32 // APROM + Data Flash bytes
	LDROMSize   uint32
	PageSize    uint32
	BlockSize   uint32 // bytes per multi-word program
	ConfigWords int
}

// Hardware bundles the collaborators a session needs from the target.
type Hardware struct {
	Flash  FlashDriver
	Boot   BootController
	Device DeviceInfo
}
