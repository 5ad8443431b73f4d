// Package protocol implements the ISP frame protocol shared by the
// bootloader and the host tool.
package protocol

// Version is the ISP firmware version reported by GET_VERSION.
const Version = "1.2.0"

// VersionWord packs Version as 0x00MMmmpp for the GET_VERSION reply.
const VersionWord = 0x00010200

// Frame layout constants
const (
	FrameSize   = 64 // Every command and response frame is exactly this long
	WordSize    = 4
	FrameWords  = FrameSize / WordSize
	HeaderWords = 3 // opcode, address, length

	OffsetOpcode  = 0
	OffsetAddress = 4
	OffsetLength  = 8
	OffsetPayload = HeaderWords * WordSize

	PayloadSize  = FrameSize - OffsetPayload // 52 bytes
	PayloadWords = PayloadSize / WordSize    // 13 words
)

// Opcode identifies an ISP command. Values follow the NuMicro ISP tool.
type Opcode uint32

const (
	CmdProgram      Opcode = 0xA0 // CMD_UPDATE_APROM
	CmdUpdateConfig Opcode = 0xA1
	CmdReadConfig   Opcode = 0xA2
	CmdEraseAll     Opcode = 0xA3
	CmdRead         Opcode = 0xA5 // CMD_READ_ROM
	CmdGetVersion   Opcode = 0xA6
	CmdPageErase    Opcode = 0xA7
	CmdRunAPROM     Opcode = 0xAB
	CmdRunLDROM     Opcode = 0xAC
	CmdReset        Opcode = 0xAD
	CmdConnect      Opcode = 0xAE
	CmdGetDeviceID  Opcode = 0xB1
	CmdReadChecksum Opcode = 0xC8
	CmdGetFlashMode Opcode = 0xCA
)

// String returns the wire name of the opcode.
func (o Opcode) String() string {
	switch o {
	case CmdProgram:
		return "PROGRAM"
	case CmdUpdateConfig:
		return "UPDATE_CONFIG"
	case CmdReadConfig:
		return "READ_CONFIG"
	case CmdEraseAll:
		return "ERASE_ALL"
	case CmdRead:
		return "READ"
	case CmdGetVersion:
		return "GET_VERSION"
	case CmdPageErase:
		return "PAGE_ERASE"
	case CmdRunAPROM:
		return "RUN_APROM"
	case CmdRunLDROM:
		return "RUN_LDROM"
	case CmdReset:
		return "RESET"
	case CmdConnect:
		return "CONNECT"
	case CmdGetDeviceID:
		return "GET_DEVICEID"
	case CmdReadChecksum:
		return "READ_CHECKSUM"
	case CmdGetFlashMode:
		return "GET_FLASHMODE"
	default:
		return "0x" + hex32(uint32(o))
	}
}

// Flash mode values returned by GET_FLASHMODE
const (
	FlashModeAPROM = 1
	FlashModeLDROM = 2
)

func hex32(v uint32) string {
	const digits = "0123456789ABCDEF"
	var buf [8]byte
	for i := 7; i >= 0; i-- {
		buf[i] = digits[v&0xF]
		v >>= 4
	}
	return string(buf[:])
}
