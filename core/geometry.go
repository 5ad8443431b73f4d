package core

import "ispboot/protocol"

// Fixed region bases of the NuMicro flash map
const (
	APROMBase  = 0x00000000
	LDROMBase  = 0x00100000
	ConfigBase = 0x00300000

	DefaultPageSize    = 512
	DefaultBlockSize   = 256
	DefaultConfigWords = 2

	// CONFIG words echo after the status and stop address words
	MaxConfigWords = protocol.PayloadWords - 2
)

// CONFIG0 bits used by the bootloader
const (
	Config0DFEN = 1 << 0 // Data Flash enable, active low
	Config0CBS  = 1 << 7 // Boot from APROM when set
)

// RegionKind names a flash region.
type RegionKind uint8

const (
	RegionNone RegionKind = iota
	RegionAPROM
	RegionLDROM
	RegionDataFlash
	RegionConfig
)

func (k RegionKind) String() string {
	switch k {
	case RegionAPROM:
		return "APROM"
	case RegionLDROM:
		return "LDROM"
	case RegionDataFlash:
		return "DataFlash"
	case RegionConfig:
		return "CONFIG"
	default:
		return "none"
	}
}

// Region is a contiguous flash address range.
type Region struct {
	Kind RegionKind
	Base uint32
	Size uint32
}

// End returns the first address past the region.
func (r Region) End() uint32 {
	return r.Base + r.Size
}

// Contains reports whether every byte of [addr, addr+length) lies inside
// the region. Empty ranges are never contained.
func (r Region) Contains(addr, length uint32) bool {
	if r.Size == 0 || length == 0 {
		return false
	}
	start, end := uint64(addr), uint64(addr)+uint64(length)
	return start >= uint64(r.Base) && end <= uint64(r.Base)+uint64(r.Size)
}

// Geometry is the flash layout of the device, fixed for the session.
type Geometry struct {
	PageSize  uint32
	BlockSize uint32

	APROM     Region
	LDROM     Region
	DataFlash Region
	Config    Region
}

// Regions returns the mapped regions in address order.
func (g *Geometry) Regions() []Region {
	return []Region{g.APROM, g.DataFlash, g.LDROM, g.Config}
}

// Lookup returns the single region that holds all of [addr, addr+length).
func (g *Geometry) Lookup(addr, length uint32) (Region, bool) {
	for _, r := range g.Regions() {
		if r.Contains(addr, length) {
			return r, true
		}
	}
	return Region{}, false
}

// bootstrapGeometry maps only the regions whose location is known before
// CONFIG has been read.
func bootstrapGeometry(info DeviceInfo) Geometry {
	return Geometry{
		PageSize:  info.PageSize,
		BlockSize: info.BlockSize,
		LDROM:     Region{Kind: RegionLDROM, Base: LDROMBase, Size: info.LDROMSize},
		Config:    Region{Kind: RegionConfig, Base: ConfigBase, Size: uint32(info.ConfigWords) * 4},
	}
}

// DiscoverGeometry builds the session geometry from the device info and
// the CONFIG words. When CONFIG0.DFEN is clear the Data Flash starts at the
// page-aligned base held in CONFIG1 and APROM ends there.
func DiscoverGeometry(drv FlashDriver, info DeviceInfo, pollLimit int) (Geometry, error) {
	info = normalizeDeviceInfo(info)
	geo := bootstrapGeometry(info)

	probe := NewFlashAdapter(drv, geo, pollLimit, false)
	config0, err := probe.Read(ConfigBase)
	if err != nil {
		return Geometry{}, err
	}
	config1 := uint32(0xFFFFFFFF)
	if info.ConfigWords > 1 {
		if config1, err = probe.Read(ConfigBase + 4); err != nil {
			return Geometry{}, err
		}
	}

	geo.APROM = Region{Kind: RegionAPROM, Base: APROMBase, Size: info.FlashSize}
	geo.DataFlash = Region{Kind: RegionDataFlash}

	if config0&Config0DFEN == 0 {
		dfba := config1
		if dfba%info.PageSize == 0 && dfba > APROMBase && dfba < info.FlashSize {
			geo.APROM.Size = dfba - APROMBase
			geo.DataFlash = Region{Kind: RegionDataFlash, Base: dfba, Size: info.FlashSize - dfba}
		}
	}

	return geo, nil
}

// normalizeDeviceInfo fills zero fields with the family defaults
func normalizeDeviceInfo(info DeviceInfo) DeviceInfo {
	if info.PageSize == 0 {
		info.PageSize = DefaultPageSize
	}
	if info.BlockSize == 0 {
		info.BlockSize = DefaultBlockSize
	}
	if info.ConfigWords <= 0 {
		info.ConfigWords = DefaultConfigWords
	}
	if info.ConfigWords > MaxConfigWords {
		info.ConfigWords = MaxConfigWords
	}
	return info
}
