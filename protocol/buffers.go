package protocol

// FifoBuffer is a circular byte buffer used to stage serial input until whole
// frames are available. One slot is kept free to tell full from empty.
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
}

// NewFifoBuffer creates a FifoBuffer holding up to capacity-1 bytes.
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the count written.
func (f *FifoBuffer) Write(data []byte) int {
	written := 0
	for _, b := range data {
		next := (f.write + 1) % len(f.buf)
		if next == f.read {
			break
		}
		f.buf[f.write] = b
		f.write = next
		written++
	}
	return written
}

// Read moves up to len(data) bytes out of the buffer.
func (f *FifoBuffer) Read(data []byte) int {
	n := 0
	for n < len(data) && f.read != f.write {
		data[n] = f.buf[f.read]
		f.read = (f.read + 1) % len(f.buf)
		n++
	}
	return n
}

// ReadByte removes one byte. ok is false when the buffer is empty.
func (f *FifoBuffer) ReadByte() (b byte, ok bool) {
	if f.read == f.write {
		return 0, false
	}
	b = f.buf[f.read]
	f.read = (f.read + 1) % len(f.buf)
	return b, true
}

// ReadFrame removes one complete frame if at least FrameSize bytes are
// buffered.
func (f *FifoBuffer) ReadFrame(dst *Frame) bool {
	if f.Available() < FrameSize {
		return false
	}
	f.Read(dst[:])
	return true
}

// Available returns the number of buffered bytes.
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return len(f.buf) - f.read + f.write
}

// Free returns the number of bytes that can still be written.
func (f *FifoBuffer) Free() int {
	return len(f.buf) - f.Available() - 1
}

// IsEmpty returns true if nothing is buffered.
func (f *FifoBuffer) IsEmpty() bool {
	return f.read == f.write
}

// Reset discards all buffered bytes.
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}
