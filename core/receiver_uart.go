package core

import (
	"io"
	"sync/atomic"

	"ispboot/protocol"
)

// UARTBaudRate is the line rate of the UART transport (8N1).
const UARTBaudRate = 115200

// UARTIdleTicks is ten character times at UARTBaudRate. A partial frame
// that sees no byte for this long is dropped.
const UARTIdleTicks = 10 * 10 * TickFreq / UARTBaudRate

// ByteSource is a polled UART, such as machine.UART.
type ByteSource interface {
	Buffered() int
	ReadByte() (byte, error)
}

// UARTReceiver assembles 64-byte frames from a UART byte stream. Nothing is
// accepted until a CONNECT frame has been seen, which doubles as the stream
// synchronization point.
type UARTReceiver struct {
	inbox

	asm    protocol.Assembler // owned by the RX side
	synced uint32             // atomic bool
	out    io.Writer

	idle     uint32 // ticks, 0 disables idle detection
	lastByte uint32
}

// NewUARTReceiver returns a receiver that writes responses to out.
func NewUARTReceiver(out io.Writer) *UARTReceiver {
	return &UARTReceiver{out: out, idle: UARTIdleTicks}
}

// SetIdleTimeout changes the mid-frame silence, in ticks, after which
// Service drops a partial frame. Zero disables the check.
func (r *UARTReceiver) SetIdleTimeout(ticks uint32) {
	r.idle = ticks
}

// HandleByte consumes one received byte. Call it from the RX interrupt or
// from Pump.
func (r *UARTReceiver) HandleByte(b byte) {
	if !r.asm.WriteByte(b) {
		return
	}
	f := r.asm.Frame()
	if atomic.LoadUint32(&r.synced) == 0 {
		if f.Opcode() != protocol.CmdConnect {
			r.framingError()
			return
		}
		atomic.StoreUint32(&r.synced, 1)
	}
	r.post(f)
}

// HandleIdle drops a partial frame when the line goes idle mid-frame.
func (r *UARTReceiver) HandleIdle() {
	if r.asm.Pending() > 0 {
		r.asm.Reset()
		r.framingError()
	}
}

// Pump feeds every byte currently buffered by src and returns the count.
func (r *UARTReceiver) Pump(src ByteSource) int {
	n := 0
	for src.Buffered() > 0 {
		b, err := src.ReadByte()
		if err != nil {
			break
		}
		r.HandleByte(b)
		n++
	}
	return n
}

// Service pumps src and runs the idle check against now. Polled targets
// call it from the session poll hook instead of Pump.
func (r *UARTReceiver) Service(src ByteSource, now uint32) int {
	n := r.Pump(src)
	if n > 0 {
		r.lastByte = now
		return n
	}
	if r.idle != 0 && r.asm.Pending() > 0 && elapsed(now, r.lastByte, r.idle) {
		r.HandleIdle()
	}
	return 0
}

// SendResponse implements Receiver.
func (r *UARTReceiver) SendResponse(f *protocol.Frame) error {
	_, err := r.out.Write(f[:])
	return err
}

// Synced reports whether the CONNECT sync frame has been seen.
func (r *UARTReceiver) Synced() bool {
	return atomic.LoadUint32(&r.synced) != 0
}

// Reset drops any partial frame and requires a new CONNECT.
func (r *UARTReceiver) Reset() {
	state := disableInterrupts()
	r.asm.Reset()
	atomic.StoreUint32(&r.synced, 0)
	restoreInterrupts(state)
}
