package protocol

import "sync/atomic"

// Mailbox is a single-slot frame handoff between exactly one producer and
// one consumer. On the device the producer is a transport interrupt handler
// and the consumer is the main loop; the full flag is the only
// synchronization point, so the slot is owned by the producer while empty and
// by the consumer while full.
type Mailbox struct {
	full    uint32 // atomic bool
	dropped uint32 // atomic
	slot    Frame
}

// Post copies f into the mailbox. If the previous frame has not been taken
// yet the new frame is dropped and Post returns false.
func (m *Mailbox) Post(f *Frame) bool {
	if atomic.LoadUint32(&m.full) != 0 {
		atomic.AddUint32(&m.dropped, 1)
		return false
	}
	m.slot = *f
	atomic.StoreUint32(&m.full, 1)
	return true
}

// Take copies the pending frame into dst and empties the mailbox.
// It returns false if no frame is pending.
func (m *Mailbox) Take(dst *Frame) bool {
	if atomic.LoadUint32(&m.full) == 0 {
		return false
	}
	*dst = m.slot
	atomic.StoreUint32(&m.full, 0)
	return true
}

// Full reports whether a frame is waiting to be taken.
func (m *Mailbox) Full() bool {
	return atomic.LoadUint32(&m.full) != 0
}

// Dropped returns the number of frames rejected because the slot was full.
func (m *Mailbox) Dropped() uint32 {
	return atomic.LoadUint32(&m.dropped)
}

// Clear empties the mailbox. Only the consumer may call it.
func (m *Mailbox) Clear() {
	atomic.StoreUint32(&m.full, 0)
}
