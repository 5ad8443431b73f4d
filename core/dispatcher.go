package core

import (
	"encoding/binary"

	"ispboot/protocol"
)

// Result is what the main loop needs to know about a dispatched command.
type Result struct {
	Status protocol.Status
	Reboot bool
	Target BootSource
}

// Dispatcher executes one decoded command against the flash adapter and
// fills the response frame. It never fails: every outcome, including an
// unknown opcode, is a status in the response.
type Dispatcher struct {
	flash   *FlashAdapter
	boot    BootController
	info    DeviceInfo
	version uint32

	words [protocol.PayloadWords]uint32
}

// NewDispatcher returns a dispatcher for one session.
func NewDispatcher(flash *FlashAdapter, boot BootController, info DeviceInfo, version uint32) *Dispatcher {
	return &Dispatcher{
		flash:   flash,
		boot:    boot,
		info:    info,
		version: version,
	}
}

// Dispatch runs cmd and writes the outcome into resp, which must already
// echo the request header (see protocol.NewResponse).
func (d *Dispatcher) Dispatch(cmd protocol.Command, resp *protocol.Frame) Result {
	var (
		status protocol.Status
		stop   uint32
	)

	switch c := cmd.(type) {
	case protocol.Connect:
		resp.SetPayloadWord(2, d.info.ProductID)
		resp.SetPayloadWord(3, d.version)
	case protocol.Read:
		status, stop = d.read(c, resp)
		if status.OK() {
			return Result{}
		}
	case protocol.Program:
		status, stop = d.program(c)
	case protocol.PageErase:
		status, stop = d.pageErase(c)
	case protocol.EraseAll:
		status, stop = d.eraseAll()
	case protocol.UpdateConfig:
		status, stop = d.updateConfig(c.Words, resp)
	case protocol.ReadConfig:
		status, stop = d.readConfig(resp)
	case protocol.ReadChecksum:
		crc, err := d.flash.Checksum(c.Addr, c.Length)
		status, stop = StatusOf(err), StopAddress(err, c.Addr)
		resp.SetPayloadWord(2, uint32(crc))
	case protocol.GetDeviceID:
		d.deviceID(resp)
	case protocol.GetVersion:
		resp.SetPayloadWord(2, d.version)
	case protocol.GetFlashMode:
		mode := uint32(protocol.FlashModeAPROM)
		if d.boot.BootSource() == BootLDROM {
			mode = protocol.FlashModeLDROM
		}
		resp.SetPayloadWord(2, mode)
	case protocol.RunAPROM:
		resp.SetStatus(protocol.StatusOK, 0)
		return Result{Reboot: true, Target: BootAPROM}
	case protocol.RunLDROM:
		resp.SetStatus(protocol.StatusOK, 0)
		return Result{Reboot: true, Target: BootLDROM}
	case protocol.Reset:
		resp.SetStatus(protocol.StatusOK, 0)
		return Result{Reboot: true, Target: d.configuredBoot()}
	default:
		status = protocol.StatusUnsupportedCommand
	}

	resp.SetWord(2, 0)
	resp.SetStatus(status, stop)
	return Result{Status: status}
}

// read packs up to one payload of words. On success the response length is
// the number of data bytes and the payload holds data only.
func (d *Dispatcher) read(c protocol.Read, resp *protocol.Frame) (protocol.Status, uint32) {
	length := c.Length
	if length > protocol.PayloadSize {
		length = protocol.PayloadSize
	}
	if err := d.flash.CheckRead(c.Addr, length); err != nil {
		return StatusOf(err), c.Addr
	}

	words := d.words[:length/protocol.WordSize]
	for i := range words {
		addr := c.Addr + uint32(i)*protocol.WordSize
		w, err := d.flash.Read(addr)
		if err != nil {
			return StatusOf(err), addr
		}
		words[i] = w
	}

	payload := resp.Payload()
	for i := range payload {
		payload[i] = 0
	}
	for i, w := range words {
		binary.LittleEndian.PutUint32(payload[i*protocol.WordSize:], w)
	}
	resp.SetWord(2, length)
	return protocol.StatusOK, 0
}

// program loops WriteMultiple over the payload and stops at the first
// error, reporting where it stopped. CONFIG addresses take the sequenced
// update path.
func (d *Dispatcher) program(c protocol.Program) (protocol.Status, uint32) {
	if c.Length > protocol.PayloadSize {
		return protocol.StatusOutOfRange, c.Addr
	}
	data := c.Bytes()
	if len(data) == 0 {
		return protocol.StatusOutOfRange, c.Addr
	}

	geo := d.flash.Geometry()
	if geo.Config.Contains(c.Addr, 1) {
		return d.programConfig(c.Addr, data)
	}

	for off := 0; off < len(data); {
		addr := c.Addr + uint32(off)
		n, err := d.flash.WriteMultiple(addr, data[off:])
		off += n
		if err != nil {
			return StatusOf(err), StopAddress(err, c.Addr+uint32(off))
		}
	}
	return protocol.StatusOK, 0
}

// programConfig overlays data onto the current CONFIG words and rewrites
// them with the erase-then-program sequence
func (d *Dispatcher) programConfig(addr uint32, data []byte) (protocol.Status, uint32) {
	cfg := d.flash.Geometry().Config
	if !cfg.Contains(addr, uint32(len(data))) {
		return protocol.StatusOutOfRange, addr
	}
	if addr%protocol.WordSize != 0 || len(data)%protocol.WordSize != 0 {
		return protocol.StatusMisaligned, addr
	}

	words := d.words[:cfg.Size/protocol.WordSize]
	if err := d.flash.ReadRange(cfg.Base, words); err != nil {
		return StatusOf(err), StopAddress(err, cfg.Base)
	}
	first := (addr - cfg.Base) / protocol.WordSize
	for i := 0; i < len(data)/protocol.WordSize; i++ {
		words[int(first)+i] = binary.LittleEndian.Uint32(data[i*protocol.WordSize:])
	}

	if err := d.flash.UpdateConfig(words); err != nil {
		return StatusOf(err), StopAddress(err, cfg.Base)
	}
	return protocol.StatusOK, 0
}

// pageErase erases every page of the range, stopping at the first failure.
// A zero length erases the single page at Addr.
func (d *Dispatcher) pageErase(c protocol.PageErase) (protocol.Status, uint32) {
	page := d.flash.Geometry().PageSize
	length := c.Length
	if length == 0 {
		length = page
	}
	if err := d.flash.CheckErase(c.Addr, length); err != nil {
		return StatusOf(err), c.Addr
	}

	for off := uint32(0); off < length; off += page {
		if err := d.flash.Erase(c.Addr + off); err != nil {
			return StatusOf(err), StopAddress(err, c.Addr+off)
		}
	}
	return protocol.StatusOK, 0
}

// eraseAll erases APROM and Data Flash. LDROM and CONFIG are left alone.
func (d *Dispatcher) eraseAll() (protocol.Status, uint32) {
	geo := d.flash.Geometry()
	for _, r := range []Region{geo.APROM, geo.DataFlash} {
		for addr := r.Base; addr < r.End(); addr += geo.PageSize {
			if err := d.flash.Erase(addr); err != nil {
				return StatusOf(err), StopAddress(err, addr)
			}
		}
	}
	return protocol.StatusOK, 0
}

func (d *Dispatcher) updateConfig(words []uint32, resp *protocol.Frame) (protocol.Status, uint32) {
	cfg := d.flash.Geometry().Config
	if err := d.flash.UpdateConfig(words); err != nil {
		return StatusOf(err), StopAddress(err, cfg.Base)
	}
	for i, w := range words {
		resp.SetPayloadWord(2+i, w)
	}
	return protocol.StatusOK, 0
}

func (d *Dispatcher) readConfig(resp *protocol.Frame) (protocol.Status, uint32) {
	cfg := d.flash.Geometry().Config
	words := d.words[:cfg.Size/protocol.WordSize]
	if err := d.flash.ReadRange(cfg.Base, words); err != nil {
		return StatusOf(err), StopAddress(err, cfg.Base)
	}
	for i, w := range words {
		resp.SetPayloadWord(2+i, w)
	}
	return protocol.StatusOK, 0
}

// deviceID reports the product ID followed by the session geometry
func (d *Dispatcher) deviceID(resp *protocol.Frame) {
	geo := d.flash.Geometry()
	resp.SetPayloadWord(2, d.info.ProductID)
	resp.SetPayloadWord(3, geo.APROM.Size)
	resp.SetPayloadWord(4, geo.DataFlash.Base)
	resp.SetPayloadWord(5, geo.DataFlash.Size)
	resp.SetPayloadWord(6, geo.LDROM.Size)
	resp.SetPayloadWord(7, geo.PageSize)
	resp.SetPayloadWord(8, geo.BlockSize)
}

// configuredBoot returns the boot source CONFIG0.CBS selects for a plain
// reset, APROM if CONFIG cannot be read
func (d *Dispatcher) configuredBoot() BootSource {
	config0, err := d.flash.Read(ConfigBase)
	if err != nil || config0&Config0CBS != 0 {
		return BootAPROM
	}
	return BootLDROM
}
