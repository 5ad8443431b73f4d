package core

import (
	"sync/atomic"

	"ispboot/protocol"
)

// Receiver delivers complete command frames from a transport to the main
// loop and carries responses back.
type Receiver interface {
	// TryReceiveFrame copies the next complete frame into f. It never
	// blocks and returns false when no frame is ready.
	TryReceiveFrame(f *protocol.Frame) bool

	// SendResponse queues or transmits one response frame.
	SendResponse(f *protocol.Frame) error
}

// DisconnectReporter is implemented by connection-oriented receivers.
type DisconnectReporter interface {
	Disconnected() bool
}

// ResponseFlusher is implemented by receivers whose responses wait for the
// host to clock them out (I2C, SPI).
type ResponseFlusher interface {
	ResponsePending() bool
}

// ReadyPin is the optional line a bus slave raises while a response is
// waiting for the host.
type ReadyPin interface {
	Set(high bool)
}

// ReceiverStats counts frames seen by a receiver.
type ReceiverStats struct {
	Frames  uint32 // frames handed to the main loop
	Dropped uint32 // complete frames lost because the mailbox was full
	Framing uint32 // short, oversized or unsynchronized input discarded
}

// inbox is the interrupt-to-main-loop half shared by every receiver
type inbox struct {
	mb      protocol.Mailbox
	frames  uint32 // atomic
	framing uint32 // atomic
}

func (in *inbox) post(f *protocol.Frame) bool {
	if !in.mb.Post(f) {
		return false
	}
	atomic.AddUint32(&in.frames, 1)
	return true
}

func (in *inbox) framingError() {
	atomic.AddUint32(&in.framing, 1)
}

// TryReceiveFrame implements Receiver.
func (in *inbox) TryReceiveFrame(f *protocol.Frame) bool {
	return in.mb.Take(f)
}

// Stats returns the receiver counters.
func (in *inbox) Stats() ReceiverStats {
	return ReceiverStats{
		Frames:  atomic.LoadUint32(&in.frames),
		Dropped: in.mb.Dropped(),
		Framing: atomic.LoadUint32(&in.framing),
	}
}
