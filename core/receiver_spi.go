package core

import "ispboot/protocol"

// SPIReceiver is the SPI slave transport. Every chip-select window shifts
// 64 bytes each way: the host's command comes in while the staged response
// (or 0xFF) goes out. A window whose opcode word is 0 or all ones is a poll
// used only to clock out a response.
type SPIReceiver struct {
	inbox

	ready  ReadyPin
	rx     protocol.Frame // owned by the interrupt handler
	tx     protocol.Frame
	outbox protocol.Mailbox
}

// NewSPIReceiver returns a receiver driving the optional ready line.
func NewSPIReceiver(ready ReadyPin) *SPIReceiver {
	r := &SPIReceiver{ready: ready}
	r.setReady(false)
	return r
}

func (r *SPIReceiver) setReady(high bool) {
	if r.ready != nil {
		r.ready.Set(high)
	}
}

// HandleExchange services one chip-select window.
func (r *SPIReceiver) HandleExchange(rx, tx []byte) {
	if r.outbox.Take(&r.tx) {
		n := copy(tx, r.tx[:])
		fill(tx[n:], 0xFF)
		r.setReady(false)
	} else {
		fill(tx, 0xFF)
	}

	if len(rx) != protocol.FrameSize {
		r.framingError()
		return
	}
	copy(r.rx[:], rx)
	if op := r.rx.Word(0); op == 0 || op == 0xFFFFFFFF {
		return
	}
	r.post(&r.rx)
}

// SendResponse implements Receiver. The ready line goes high with the
// response staged, so the handler cannot clock it out before the line is
// raised.
func (r *SPIReceiver) SendResponse(f *protocol.Frame) error {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if !r.outbox.Post(f) {
		return ErrResponsePending
	}
	r.setReady(true)
	return nil
}

// ResponsePending implements ResponseFlusher.
func (r *SPIReceiver) ResponsePending() bool {
	return r.outbox.Full()
}
