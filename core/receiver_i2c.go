package core

import "ispboot/protocol"

// DefaultI2CAddress is the 7-bit slave address of the ISP device.
const DefaultI2CAddress = 0x60

// I2CReceiver is the I2C slave transport. The bus START/STOP conditions
// delimit frames: a master write of exactly 64 bytes is a command, and the
// next master read returns the pending response.
type I2CReceiver struct {
	inbox

	Address uint8

	rx     protocol.Frame // owned by the interrupt handler
	tx     protocol.Frame
	outbox protocol.Mailbox
}

// NewI2CReceiver returns a receiver listening on addr (DefaultI2CAddress
// when zero).
func NewI2CReceiver(addr uint8) *I2CReceiver {
	if addr == 0 {
		addr = DefaultI2CAddress
	}
	return &I2CReceiver{Address: addr}
}

// HandleWrite is called at STOP after a master write transaction.
func (r *I2CReceiver) HandleWrite(data []byte) {
	if len(data) != protocol.FrameSize {
		r.framingError()
		return
	}
	copy(r.rx[:], data)
	r.post(&r.rx)
}

// HandleRead fills buf for a master read. Without a pending response the
// bus reads 0xFF.
func (r *I2CReceiver) HandleRead(buf []byte) int {
	if !r.outbox.Take(&r.tx) {
		fill(buf, 0xFF)
		return len(buf)
	}
	n := copy(buf, r.tx[:])
	fill(buf[n:], 0xFF)
	return len(buf)
}

// SendResponse implements Receiver. The response waits until the host
// reads it; a second response before that fails.
func (r *I2CReceiver) SendResponse(f *protocol.Frame) error {
	if !r.outbox.Post(f) {
		return ErrResponsePending
	}
	return nil
}

// ResponsePending implements ResponseFlusher.
func (r *I2CReceiver) ResponsePending() bool {
	return r.outbox.Full()
}
