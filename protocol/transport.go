package protocol

// Assembler accumulates a byte stream into fixed-size frames. Partial frames
// are held across calls until the remaining bytes arrive or Reset is called.
type Assembler struct {
	buf Frame
	n   int
}

// WriteByte appends one byte and reports whether a frame is now complete.
// Once complete, Frame returns it and the next byte starts a new frame.
func (a *Assembler) WriteByte(b byte) bool {
	if a.n == FrameSize {
		a.n = 0
	}
	a.buf[a.n] = b
	a.n++
	return a.n == FrameSize
}

// Feed appends data, calling emit for every frame completed. It returns the
// number of complete frames emitted.
func (a *Assembler) Feed(data []byte, emit func(f *Frame)) int {
	frames := 0
	for _, b := range data {
		if a.WriteByte(b) {
			frames++
			if emit != nil {
				emit(&a.buf)
			}
		}
	}
	return frames
}

// Frame returns the assembly buffer. It is only meaningful right after
// WriteByte reported completion.
func (a *Assembler) Frame() *Frame {
	return &a.buf
}

// Pending returns the number of bytes held for the frame being assembled.
func (a *Assembler) Pending() int {
	if a.n == FrameSize {
		return 0
	}
	return a.n
}

// Reset discards any partial frame.
func (a *Assembler) Reset() {
	a.n = 0
}
