package protocol

import "encoding/binary"

// Frame is a fixed-size command or response buffer. Words are stored in the
// target's native (little-endian) byte order.
type Frame [FrameSize]byte

// Word returns the i-th 32-bit word of the frame.
func (f *Frame) Word(i int) uint32 {
	return binary.LittleEndian.Uint32(f[i*WordSize:])
}

// SetWord stores v as the i-th 32-bit word of the frame.
func (f *Frame) SetWord(i int, v uint32) {
	binary.LittleEndian.PutUint32(f[i*WordSize:], v)
}

func (f *Frame) Opcode() Opcode  { return Opcode(f.Word(0)) }
func (f *Frame) Address() uint32 { return f.Word(1) }
func (f *Frame) Length() uint32  { return f.Word(2) }

// Payload returns the payload region of the frame (aliases the frame).
func (f *Frame) Payload() []byte {
	return f[OffsetPayload:]
}

// PayloadWord returns the i-th payload word.
func (f *Frame) PayloadWord(i int) uint32 {
	return f.Word(HeaderWords + i)
}

// SetPayloadWord stores the i-th payload word.
func (f *Frame) SetPayloadWord(i int, v uint32) {
	f.SetWord(HeaderWords+i, v)
}

// SetHeader fills the three header words.
func (f *Frame) SetHeader(op Opcode, addr, length uint32) {
	f.SetWord(0, uint32(op))
	f.SetWord(1, addr)
	f.SetWord(2, length)
}

// Reset zeroes the frame.
func (f *Frame) Reset() {
	*f = Frame{}
}

// Status returns the status word of a response frame.
func (f *Frame) Status() Status {
	return Status(int32(f.PayloadWord(0)))
}

// StopAddress returns the address at which a failed operation stopped.
func (f *Frame) StopAddress() uint32 {
	return f.PayloadWord(1)
}

// SetStatus writes a status word and stop address into a response frame.
func (f *Frame) SetStatus(s Status, stopAddr uint32) {
	f.SetPayloadWord(0, uint32(int32(s)))
	f.SetPayloadWord(1, stopAddr)
}

// NewResponse returns a response frame echoing the request header with a
// zero length and a success status.
func NewResponse(req *Frame) Frame {
	var resp Frame
	resp.SetHeader(req.Opcode(), req.Address(), 0)
	return resp
}
