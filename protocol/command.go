package protocol

// Command is a decoded ISP request. DecodeCommand produces one of the
// concrete types below; unknown opcodes decode to Unsupported so callers can
// always answer with exactly one response.
//
// Slices inside a decoded command alias the source frame and are only valid
// until the frame is overwritten.
type Command interface {
	Op() Opcode
	Encode(f *Frame)
}

type Connect struct{}

// Read requests Length bytes starting at Addr. A single response carries at
// most PayloadSize bytes.
type Read struct {
	Addr   uint32
	Length uint32
}

// Program writes Length bytes of Data starting at Addr.
type Program struct {
	Addr   uint32
	Length uint32
	Data   []byte
}

// Bytes returns the declared data bytes, clamped to the payload.
func (c Program) Bytes() []byte {
	n := int(c.Length)
	if n > len(c.Data) {
		n = len(c.Data)
	}
	return c.Data[:n]
}

// PageErase erases every page in [Addr, Addr+Length).
type PageErase struct {
	Addr   uint32
	Length uint32
}

type EraseAll struct{}

// UpdateConfig rewrites the CONFIG words (CONFIG0, CONFIG1, ...).
type UpdateConfig struct {
	Words []uint32
}

type ReadConfig struct{}

// ReadChecksum asks for the CRC-16 of [Addr, Addr+Length).
type ReadChecksum struct {
	Addr   uint32
	Length uint32
}

type GetDeviceID struct{}
type GetVersion struct{}
type GetFlashMode struct{}
type RunAPROM struct{}
type RunLDROM struct{}
type Reset struct{}

// Unsupported carries an opcode the bootloader does not recognize.
type Unsupported struct {
	Code Opcode
}

func (Connect) Op() Opcode      { return CmdConnect }
func (Read) Op() Opcode         { return CmdRead }
func (Program) Op() Opcode      { return CmdProgram }
func (PageErase) Op() Opcode    { return CmdPageErase }
func (EraseAll) Op() Opcode     { return CmdEraseAll }
func (UpdateConfig) Op() Opcode { return CmdUpdateConfig }
func (ReadConfig) Op() Opcode   { return CmdReadConfig }
func (ReadChecksum) Op() Opcode { return CmdReadChecksum }
func (GetDeviceID) Op() Opcode  { return CmdGetDeviceID }
func (GetVersion) Op() Opcode   { return CmdGetVersion }
func (GetFlashMode) Op() Opcode { return CmdGetFlashMode }
func (RunAPROM) Op() Opcode     { return CmdRunAPROM }
func (RunLDROM) Op() Opcode     { return CmdRunLDROM }
func (Reset) Op() Opcode        { return CmdReset }
func (c Unsupported) Op() Opcode {
	return c.Code
}

func (c Connect) Encode(f *Frame)      { encodeBare(f, c.Op()) }
func (c EraseAll) Encode(f *Frame)     { encodeBare(f, c.Op()) }
func (c ReadConfig) Encode(f *Frame)   { encodeBare(f, c.Op()) }
func (c GetDeviceID) Encode(f *Frame)  { encodeBare(f, c.Op()) }
func (c GetVersion) Encode(f *Frame)   { encodeBare(f, c.Op()) }
func (c GetFlashMode) Encode(f *Frame) { encodeBare(f, c.Op()) }
func (c RunAPROM) Encode(f *Frame)     { encodeBare(f, c.Op()) }
func (c RunLDROM) Encode(f *Frame)     { encodeBare(f, c.Op()) }
func (c Reset) Encode(f *Frame)        { encodeBare(f, c.Op()) }
func (c Unsupported) Encode(f *Frame)  { encodeBare(f, c.Code) }

func (c Read) Encode(f *Frame) {
	f.Reset()
	f.SetHeader(CmdRead, c.Addr, c.Length)
}

func (c PageErase) Encode(f *Frame) {
	f.Reset()
	f.SetHeader(CmdPageErase, c.Addr, c.Length)
}

func (c ReadChecksum) Encode(f *Frame) {
	f.Reset()
	f.SetHeader(CmdReadChecksum, c.Addr, c.Length)
}

// Encode writes the program request. Data beyond PayloadSize is dropped;
// callers split larger writes across frames.
func (c Program) Encode(f *Frame) {
	f.Reset()
	n := copy(f.Payload(), c.Data)
	length := c.Length
	if length == 0 || int(length) > n {
		length = uint32(n)
	}
	f.SetHeader(CmdProgram, c.Addr, length)
}

func (c UpdateConfig) Encode(f *Frame) {
	f.Reset()
	n := len(c.Words)
	if n > PayloadWords {
		n = PayloadWords
	}
	f.SetHeader(CmdUpdateConfig, 0, uint32(n*WordSize))
	for i := 0; i < n; i++ {
		f.SetPayloadWord(i, c.Words[i])
	}
}

func encodeBare(f *Frame, op Opcode) {
	f.Reset()
	f.SetHeader(op, 0, 0)
}

// DecodeCommand decodes a request frame into its command variant.
func DecodeCommand(f *Frame) Command {
	addr, length := f.Address(), f.Length()

	switch op := f.Opcode(); op {
	case CmdConnect:
		return Connect{}
	case CmdRead:
		return Read{Addr: addr, Length: length}
	case CmdProgram:
		return Program{Addr: addr, Length: length, Data: f.Payload()}
	case CmdPageErase:
		return PageErase{Addr: addr, Length: length}
	case CmdEraseAll:
		return EraseAll{}
	case CmdUpdateConfig:
		n := int(length / WordSize)
		if n > PayloadWords {
			n = PayloadWords
		}
		words := make([]uint32, n)
		for i := range words {
			words[i] = f.PayloadWord(i)
		}
		return UpdateConfig{Words: words}
	case CmdReadConfig:
		return ReadConfig{}
	case CmdReadChecksum:
		return ReadChecksum{Addr: addr, Length: length}
	case CmdGetDeviceID:
		return GetDeviceID{}
	case CmdGetVersion:
		return GetVersion{}
	case CmdGetFlashMode:
		return GetFlashMode{}
	case CmdRunAPROM:
		return RunAPROM{}
	case CmdRunLDROM:
		return RunLDROM{}
	case CmdReset:
		return Reset{}
	default:
		return Unsupported{Code: op}
	}
}
