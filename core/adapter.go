package core

import (
	"encoding/binary"

	"ispboot/protocol"
)

// DefaultBusyPollLimit bounds every busy-wait on the flash controller.
const DefaultBusyPollLimit = 200000

// FlashAdapter enforces the address, alignment and protection rules the flash
// controller does not check itself, and turns controller status into errors.
// Range and alignment failures are reported before any hardware access.
//
// The adapter does not read back what it programs; callers verify.
type FlashAdapter struct {
	drv           FlashDriver
	geo           Geometry
	pollLimit     int
	ldromWritable bool

	words []uint32 // one multi-word block of scratch
}

// NewFlashAdapter wraps drv for the given geometry. LDROM is only writable
// when ldromWritable is set, since the bootloader normally runs from it.
func NewFlashAdapter(drv FlashDriver, geo Geometry, pollLimit int, ldromWritable bool) *FlashAdapter {
	if pollLimit <= 0 {
		pollLimit = DefaultBusyPollLimit
	}
	blockWords := int(geo.BlockSize / protocol.WordSize)
	if blockWords == 0 {
		blockWords = 1
	}
	return &FlashAdapter{
		drv:           drv,
		geo:           geo,
		pollLimit:     pollLimit,
		ldromWritable: ldromWritable,
		words:         make([]uint32, blockWords),
	}
}

// Geometry returns the layout the adapter validates against.
func (a *FlashAdapter) Geometry() Geometry {
	return a.geo
}

// wait polls the controller until it is idle, a fault is latched, or the
// poll bound is exhausted
func (a *FlashAdapter) wait(op string, addr uint32) error {
	for i := 0; i < a.pollLimit; i++ {
		st := a.drv.Status()
		if st&FlashBusy != 0 {
			continue
		}
		if st&FlashFault != 0 {
			a.drv.ClearFault()
			return flashError(op, addr, ErrHardwareFault)
		}
		return nil
	}
	return flashError(op, addr, ErrTimeout)
}

// check validates [addr, addr+length) for an operation with the given unit
func (a *FlashAdapter) check(op string, addr, length, unit uint32, write bool) (Region, error) {
	r, ok := a.geo.Lookup(addr, length)
	if !ok {
		return Region{}, flashError(op, addr, ErrOutOfRange)
	}
	if addr%unit != 0 || length%unit != 0 {
		return Region{}, flashError(op, addr, ErrMisaligned)
	}
	if write && !a.writable(r.Kind) {
		return Region{}, flashError(op, addr, ErrProtected)
	}
	return r, nil
}

func (a *FlashAdapter) writable(kind RegionKind) bool {
	switch kind {
	case RegionAPROM, RegionDataFlash:
		return true
	case RegionLDROM:
		return a.ldromWritable
	default:
		// CONFIG only changes through UpdateConfig
		return false
	}
}

// CheckRead validates a read of [addr, addr+length) without touching
// hardware.
func (a *FlashAdapter) CheckRead(addr, length uint32) error {
	_, err := a.check("read", addr, length, protocol.WordSize, false)
	return err
}

// CheckErase validates an erase of every page in [addr, addr+length).
func (a *FlashAdapter) CheckErase(addr, length uint32) error {
	_, err := a.check("erase", addr, length, a.geo.PageSize, true)
	return err
}

// Read returns the word at addr.
func (a *FlashAdapter) Read(addr uint32) (uint32, error) {
	if _, err := a.check("read", addr, protocol.WordSize, protocol.WordSize, false); err != nil {
		return 0, err
	}
	return a.read(addr)
}

func (a *FlashAdapter) read(addr uint32) (uint32, error) {
	a.drv.StartRead(addr)
	if err := a.wait("read", addr); err != nil {
		return 0, err
	}
	return a.drv.Data(), nil
}

// ReadRange fills dst with consecutive words starting at addr.
func (a *FlashAdapter) ReadRange(addr uint32, dst []uint32) error {
	if err := a.CheckRead(addr, uint32(len(dst))*protocol.WordSize); err != nil {
		return err
	}
	for i := range dst {
		w, err := a.read(addr + uint32(i)*protocol.WordSize)
		if err != nil {
			return err
		}
		dst[i] = w
	}
	return nil
}

// Erase erases the single page at pageAddr. After a failure the page
// content is undefined.
func (a *FlashAdapter) Erase(pageAddr uint32) error {
	r, err := a.check("erase", pageAddr, a.geo.PageSize, a.geo.PageSize, true)
	if err != nil {
		return err
	}

	a.drv.SetUpdateEnable(r.Kind, true)
	defer a.drv.SetUpdateEnable(r.Kind, false)

	a.drv.StartErase(pageAddr)
	return a.wait("erase", pageAddr)
}

// WriteMultiple programs data at addr with the multi-word program mode. One
// call programs at most up to the next block boundary and returns the byte
// count programmed; callers loop until all of data is written or an error
// is returned.
func (a *FlashAdapter) WriteMultiple(addr uint32, data []byte) (int, error) {
	r, err := a.check("program", addr, uint32(len(data)), protocol.WordSize, true)
	if err != nil {
		return 0, err
	}

	block := a.geo.BlockSize
	if block == 0 {
		block = protocol.WordSize
	}
	n := int(block - addr%block)
	if n > len(data) {
		n = len(data)
	}

	words := a.words[:n/protocol.WordSize]
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*protocol.WordSize:])
	}

	a.drv.SetUpdateEnable(r.Kind, true)
	defer a.drv.SetUpdateEnable(r.Kind, false)

	latched := a.drv.StartProgram(addr, words)
	err = a.wait("program", addr)
	if err == nil && latched == 0 {
		err = flashError("program", addr, ErrHardwareFault)
	}
	if err != nil {
		// words before the fault are programmed; report the first one that is not
		if latched > 0 && latched < len(words) {
			if fe, ok := err.(*FlashError); ok {
				fe.Addr = addr + uint32(latched)*protocol.WordSize
			}
			return latched * protocol.WordSize, err
		}
		return 0, err
	}
	return latched * protocol.WordSize, nil
}

// UpdateConfig rewrites the CONFIG words: open config update, erase the
// CONFIG page, program the new words and read them back. A read-back
// mismatch is a hardware fault at the first differing word.
func (a *FlashAdapter) UpdateConfig(words []uint32) error {
	cfg := a.geo.Config
	length := uint32(len(words)) * protocol.WordSize
	if !cfg.Contains(cfg.Base, length) {
		return flashError("config", cfg.Base, ErrOutOfRange)
	}

	a.drv.SetUpdateEnable(RegionConfig, true)
	defer a.drv.SetUpdateEnable(RegionConfig, false)

	a.drv.StartErase(cfg.Base)
	if err := a.wait("config erase", cfg.Base); err != nil {
		return err
	}

	for done := 0; done < len(words); {
		addr := cfg.Base + uint32(done)*protocol.WordSize
		latched := a.drv.StartProgram(addr, words[done:])
		if err := a.wait("config program", addr); err != nil {
			return err
		}
		if latched == 0 {
			return flashError("config program", addr, ErrHardwareFault)
		}
		done += latched
	}

	for i, want := range words {
		addr := cfg.Base + uint32(i)*protocol.WordSize
		got, err := a.read(addr)
		if err != nil {
			return err
		}
		if got != want {
			return flashError("config verify", addr, ErrHardwareFault)
		}
	}
	return nil
}

// Checksum returns the CRC-16 of [addr, addr+length).
func (a *FlashAdapter) Checksum(addr, length uint32) (uint16, error) {
	if err := a.CheckRead(addr, length); err != nil {
		return 0, err
	}

	var buf [protocol.WordSize]byte
	crc := protocol.ChecksumInit()
	for off := uint32(0); off < length; off += protocol.WordSize {
		w, err := a.read(addr + off)
		if err != nil {
			return 0, err
		}
		binary.LittleEndian.PutUint32(buf[:], w)
		crc = protocol.ChecksumUpdate(crc, buf[:])
	}
	return protocol.ChecksumComplete(crc), nil
}
