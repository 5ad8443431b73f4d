package protocol

import "testing"

func TestFifoBufferWrapAround(t *testing.T) {
	fifo := NewFifoBuffer(8)

	if n := fifo.Write([]byte{1, 2, 3, 4, 5}); n != 5 {
		t.Fatalf("Expected 5 bytes written, got %d", n)
	}

	out := make([]byte, 4)
	if n := fifo.Read(out); n != 4 {
		t.Fatalf("Expected 4 bytes read, got %d", n)
	}

	// Write across the end of the backing array
	if n := fifo.Write([]byte{6, 7, 8, 9, 10}); n != 5 {
		t.Fatalf("Expected 5 bytes written after wrap, got %d", n)
	}

	if fifo.Available() != 6 {
		t.Errorf("Expected 6 bytes available, got %d", fifo.Available())
	}

	got := make([]byte, 6)
	fifo.Read(got)
	want := []byte{5, 6, 7, 8, 9, 10}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d: expected %d, got %d", i, want[i], got[i])
		}
	}

	if !fifo.IsEmpty() {
		t.Error("Expected buffer to be empty")
	}
}

func TestFifoBufferFull(t *testing.T) {
	fifo := NewFifoBuffer(4)

	if n := fifo.Write([]byte{1, 2, 3, 4, 5}); n != 3 {
		t.Errorf("Expected 3 bytes to fit in capacity-4 buffer, got %d", n)
	}
	if fifo.Free() != 0 {
		t.Errorf("Expected no free space, got %d", fifo.Free())
	}

	b, ok := fifo.ReadByte()
	if !ok || b != 1 {
		t.Errorf("ReadByte() = %d, %v; want 1, true", b, ok)
	}
}

func TestFifoBufferReadFrame(t *testing.T) {
	fifo := NewFifoBuffer(2 * FrameSize)

	var frame Frame
	fifo.Write(make([]byte, FrameSize-1))
	if fifo.ReadFrame(&frame) {
		t.Fatal("ReadFrame succeeded with a partial frame buffered")
	}

	fifo.Write([]byte{0xAE})
	if !fifo.ReadFrame(&frame) {
		t.Fatal("ReadFrame failed with a full frame buffered")
	}
	if frame[FrameSize-1] != 0xAE {
		t.Errorf("Expected last byte 0xAE, got 0x%02X", frame[FrameSize-1])
	}
	if !fifo.IsEmpty() {
		t.Error("Expected buffer to be empty after ReadFrame")
	}
}

func TestAssemblerHoldsPartialFrames(t *testing.T) {
	var asm Assembler

	first := make([]byte, 40)
	if n := asm.Feed(first, nil); n != 0 {
		t.Fatalf("Expected no frames from 40 bytes, got %d", n)
	}
	if asm.Pending() != 40 {
		t.Errorf("Expected 40 pending bytes, got %d", asm.Pending())
	}

	var got []Opcode
	rest := make([]byte, FrameSize-40+FrameSize)
	rest[FrameSize-40] = byte(CmdConnect)
	n := asm.Feed(rest, func(f *Frame) { got = append(got, f.Opcode()) })
	if n != 2 {
		t.Fatalf("Expected 2 frames, got %d", n)
	}
	if got[1] != CmdConnect {
		t.Errorf("Expected second frame opcode CONNECT, got %v", got[1])
	}
	if asm.Pending() != 0 {
		t.Errorf("Expected 0 pending bytes, got %d", asm.Pending())
	}

	asm.Feed([]byte{1, 2, 3}, nil)
	asm.Reset()
	if asm.Pending() != 0 {
		t.Errorf("Expected Reset to drop the partial frame, %d pending", asm.Pending())
	}
}

func TestMailboxHandoff(t *testing.T) {
	var mb Mailbox
	var in, out Frame

	if mb.Take(&out) {
		t.Fatal("Take succeeded on an empty mailbox")
	}

	in.SetHeader(CmdRead, 0x100, 8)
	if !mb.Post(&in) {
		t.Fatal("Post failed on an empty mailbox")
	}

	in.SetHeader(CmdProgram, 0, 0)
	if mb.Post(&in) {
		t.Error("Post succeeded on a full mailbox")
	}
	if mb.Dropped() != 1 {
		t.Errorf("Expected 1 dropped frame, got %d", mb.Dropped())
	}

	if !mb.Take(&out) {
		t.Fatal("Take failed on a full mailbox")
	}
	if out.Opcode() != CmdRead || out.Address() != 0x100 {
		t.Errorf("Took wrong frame: %v 0x%X", out.Opcode(), out.Address())
	}
	if mb.Full() {
		t.Error("Mailbox still full after Take")
	}
}
