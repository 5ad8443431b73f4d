package core

import "encoding/binary"

// MemoryFlash is a FlashDriver and BootController backed by RAM. It models
// NOR semantics (erase sets bytes to 0xFF, programming can only clear bits),
// per-region update enables, a configurable number of busy polls per
// operation and injected faults. It backs the simulator and the tests.
type MemoryFlash struct {
	banks     []memBank
	pageSize  uint32
	blockSize uint32

	enabled [RegionConfig + 1]bool
	status  FlashStatus
	data    uint32

	busyPolls int
	busyLeft  int
	stuck     bool
	faults    map[uint32]bool

	ops uint32

	bootSource BootSource
	nextBoot   BootSource
	vectorBase uint32
	resets     int
}

type memBank struct {
	base uint32
	data []byte
}

func (b *memBank) contains(addr, length uint32) bool {
	return addr >= b.base && uint64(addr)+uint64(length) <= uint64(b.base)+uint64(len(b.data))
}

// NewMemoryFlash creates an erased flash array laid out for info. The CONFIG
// bank is a full page so that a config erase behaves like hardware.
func NewMemoryFlash(info DeviceInfo) *MemoryFlash {
	info = normalizeDeviceInfo(info)
	m := &MemoryFlash{
		banks: []memBank{
			{base: APROMBase, data: make([]byte, info.FlashSize)},
			{base: LDROMBase, data: make([]byte, info.LDROMSize)},
			{base: ConfigBase, data: make([]byte, info.PageSize)},
		},
		pageSize:   info.PageSize,
		blockSize:  info.BlockSize,
		faults:     make(map[uint32]bool),
		bootSource: BootLDROM,
		nextBoot:   BootLDROM,
	}
	for i := range m.banks {
		fill(m.banks[i].data, 0xFF)
	}
	return m
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

func (m *MemoryFlash) bank(addr, length uint32) *memBank {
	for i := range m.banks {
		if m.banks[i].contains(addr, length) {
			return &m.banks[i]
		}
	}
	return nil
}

// regionOf classifies addr the way the controller's update enables do,
// using the Data Flash base held in CONFIG
func (m *MemoryFlash) regionOf(addr uint32) RegionKind {
	switch {
	case addr >= ConfigBase:
		return RegionConfig
	case addr >= LDROMBase:
		return RegionLDROM
	}
	config0 := m.word(ConfigBase)
	config1 := m.word(ConfigBase + 4)
	if config0&Config0DFEN == 0 && addr >= config1 {
		return RegionDataFlash
	}
	return RegionAPROM
}

func (m *MemoryFlash) word(addr uint32) uint32 {
	b := m.bank(addr, 4)
	if b == nil {
		return 0xFFFFFFFF
	}
	return binary.LittleEndian.Uint32(b.data[addr-b.base:])
}

func (m *MemoryFlash) begin() {
	m.ops++
	m.busyLeft = m.busyPolls
}

func (m *MemoryFlash) fault() {
	m.status |= FlashFault
}

func (m *MemoryFlash) writeAllowed(addr uint32) bool {
	kind := m.regionOf(addr)
	return kind == RegionDataFlash || m.enabled[kind]
}

// StartRead implements FlashDriver.
func (m *MemoryFlash) StartRead(addr uint32) {
	m.begin()
	b := m.bank(addr, 4)
	if b == nil || addr%4 != 0 || m.faults[addr] {
		m.data = 0xFFFFFFFF
		m.fault()
		return
	}
	m.data = binary.LittleEndian.Uint32(b.data[addr-b.base:])
}

// Data implements FlashDriver.
func (m *MemoryFlash) Data() uint32 {
	return m.data
}

// StartErase implements FlashDriver. A faulted erase leaves the page as it
// was.
func (m *MemoryFlash) StartErase(addr uint32) {
	m.begin()
	page := addr &^ (m.pageSize - 1)
	b := m.bank(page, 1)
	if b == nil || !m.writeAllowed(page) {
		m.fault()
		return
	}
	end := page + m.pageSize
	if bankEnd := b.base + uint32(len(b.data)); end > bankEnd {
		end = bankEnd
	}
	for a := page; a < end; a += 4 {
		if m.faults[a] {
			m.fault()
			return
		}
	}
	fill(b.data[page-b.base:end-b.base], 0xFF)
}

// StartProgram implements FlashDriver. Words stop at the block boundary or
// at the first injected fault.
func (m *MemoryFlash) StartProgram(addr uint32, words []uint32) int {
	m.begin()
	if addr%4 != 0 {
		m.fault()
		return 0
	}
	limit := int((m.blockSize - addr%m.blockSize) / 4)
	if len(words) > limit {
		words = words[:limit]
	}

	for i, w := range words {
		a := addr + uint32(i)*4
		b := m.bank(a, 4)
		if b == nil || !m.writeAllowed(a) || m.faults[a] {
			m.fault()
			return i
		}
		off := a - b.base
		old := binary.LittleEndian.Uint32(b.data[off:])
		binary.LittleEndian.PutUint32(b.data[off:], old&w)
	}
	return len(words)
}

// Status implements FlashDriver.
func (m *MemoryFlash) Status() FlashStatus {
	if m.stuck {
		return m.status | FlashBusy
	}
	if m.busyLeft > 0 {
		m.busyLeft--
		return m.status | FlashBusy
	}
	return m.status
}

// ClearFault implements FlashDriver.
func (m *MemoryFlash) ClearFault() {
	m.status &^= FlashFault
}

// SetUpdateEnable implements FlashDriver.
func (m *MemoryFlash) SetUpdateEnable(region RegionKind, enable bool) {
	if int(region) < len(m.enabled) {
		m.enabled[region] = enable
	}
}

// BootSource implements BootController.
func (m *MemoryFlash) BootSource() BootSource {
	return m.bootSource
}

// SelectBootSource implements BootController.
func (m *MemoryFlash) SelectBootSource(src BootSource) {
	m.nextBoot = src
}

// SetVectorBase implements BootController.
func (m *MemoryFlash) SetVectorBase(addr uint32) {
	m.vectorBase = addr
}

// SystemReset implements BootController. The simulated core restarts from
// the selected boot source.
func (m *MemoryFlash) SystemReset() {
	m.resets++
	m.bootSource = m.nextBoot
}

// Ops returns the number of controller operations issued so far.
func (m *MemoryFlash) Ops() uint32 {
	return m.ops
}

// Resets returns the number of system resets performed.
func (m *MemoryFlash) Resets() int {
	return m.resets
}

// VectorBase returns the last vector table base set.
func (m *MemoryFlash) VectorBase() uint32 {
	return m.vectorBase
}

// NextBootSource returns the boot source selected for the next reset.
func (m *MemoryFlash) NextBootSource() BootSource {
	return m.nextBoot
}

// SetBusyPolls makes every operation report busy for n status polls.
func (m *MemoryFlash) SetBusyPolls(n int) {
	m.busyPolls = n
}

// SetStuck makes the controller report busy forever.
func (m *MemoryFlash) SetStuck(stuck bool) {
	m.stuck = stuck
}

// InjectFault makes any operation touching the word at addr fail.
func (m *MemoryFlash) InjectFault(addr uint32) {
	m.faults[addr&^3] = true
}

// ClearFaults removes all injected faults.
func (m *MemoryFlash) ClearFaults() {
	m.faults = make(map[uint32]bool)
}

// Load writes data directly into the array without counting an operation.
func (m *MemoryFlash) Load(addr uint32, data []byte) bool {
	b := m.bank(addr, uint32(len(data)))
	if b == nil {
		return false
	}
	copy(b.data[addr-b.base:], data)
	return true
}

// LoadConfig stores CONFIG words directly.
func (m *MemoryFlash) LoadConfig(words ...uint32) {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	m.Load(ConfigBase, buf)
}

// Peek returns a copy of length bytes at addr, or nil if unmapped.
func (m *MemoryFlash) Peek(addr, length uint32) []byte {
	b := m.bank(addr, length)
	if b == nil {
		return nil
	}
	out := make([]byte, length)
	copy(out, b.data[addr-b.base:])
	return out
}
