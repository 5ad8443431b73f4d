package core

import (
	"bytes"
	"errors"
	"testing"

	"ispboot/protocol"
)

func encode(cmd protocol.Command) protocol.Frame {
	var f protocol.Frame
	cmd.Encode(&f)
	return f
}

func TestUARTReceiverRequiresConnect(t *testing.T) {
	var out bytes.Buffer
	r := NewUARTReceiver(&out)

	read := encode(protocol.Read{Addr: 0, Length: 4})
	for _, b := range read {
		r.HandleByte(b)
	}

	var f protocol.Frame
	if r.TryReceiveFrame(&f) {
		t.Fatal("Frame accepted before CONNECT")
	}
	if r.Stats().Framing != 1 {
		t.Errorf("Expected 1 framing drop, got %d", r.Stats().Framing)
	}

	connect := encode(protocol.Connect{})
	for _, b := range connect[:40] {
		r.HandleByte(b)
	}
	if r.TryReceiveFrame(&f) {
		t.Fatal("Partial frame delivered")
	}
	for _, b := range connect[40:] {
		r.HandleByte(b)
	}
	if !r.TryReceiveFrame(&f) || f.Opcode() != protocol.CmdConnect {
		t.Fatalf("Expected CONNECT frame, got %v", f.Opcode())
	}
	if !r.Synced() {
		t.Error("Expected receiver to be synced")
	}

	for _, b := range read {
		r.HandleByte(b)
	}
	if !r.TryReceiveFrame(&f) || f.Opcode() != protocol.CmdRead {
		t.Errorf("Expected READ frame after sync, got %v", f.Opcode())
	}
	if r.TryReceiveFrame(&f) {
		t.Error("Frame delivered twice")
	}

	resp := protocol.NewResponse(&f)
	if err := r.SendResponse(&resp); err != nil {
		t.Fatalf("SendResponse failed: %v", err)
	}
	if out.Len() != protocol.FrameSize {
		t.Errorf("Expected %d bytes written, got %d", protocol.FrameSize, out.Len())
	}
}

func TestUARTReceiverIdleDropsPartialFrame(t *testing.T) {
	r := NewUARTReceiver(&bytes.Buffer{})
	connect := encode(protocol.Connect{})

	for _, b := range []byte{1, 2, 3} {
		r.HandleByte(b)
	}
	r.HandleIdle()
	for _, b := range connect {
		r.HandleByte(b)
	}

	var f protocol.Frame
	if !r.TryReceiveFrame(&f) || f.Opcode() != protocol.CmdConnect {
		t.Fatalf("Expected CONNECT after idle resync, got %v", f.Opcode())
	}
	if r.Stats().Framing != 1 {
		t.Errorf("Expected 1 framing drop, got %d", r.Stats().Framing)
	}

	r.Reset()
	if r.Synced() {
		t.Error("Reset must require a new CONNECT")
	}
}

func TestUARTReceiverMailboxFull(t *testing.T) {
	r := NewUARTReceiver(&bytes.Buffer{})
	connect := encode(protocol.Connect{})
	for i := 0; i < 2; i++ {
		for _, b := range connect {
			r.HandleByte(b)
		}
	}
	st := r.Stats()
	if st.Frames != 1 || st.Dropped != 1 {
		t.Errorf("Stats = %+v, want 1 frame and 1 drop", st)
	}
}

type byteQueue struct {
	data []byte
}

func (q *byteQueue) Buffered() int {
	return len(q.data)
}

func (q *byteQueue) ReadByte() (byte, error) {
	if len(q.data) == 0 {
		return 0, errors.New("empty")
	}
	b := q.data[0]
	q.data = q.data[1:]
	return b, nil
}

func TestUARTReceiverPump(t *testing.T) {
	r := NewUARTReceiver(&bytes.Buffer{})
	connect := encode(protocol.Connect{})
	src := &byteQueue{data: append([]byte(nil), connect[:]...)}

	if n := r.Pump(src); n != protocol.FrameSize {
		t.Errorf("Expected %d bytes pumped, got %d", protocol.FrameSize, n)
	}
	var f protocol.Frame
	if !r.TryReceiveFrame(&f) {
		t.Error("Expected a frame after pumping")
	}
}

func TestI2CReceiver(t *testing.T) {
	r := NewI2CReceiver(0)
	if r.Address != DefaultI2CAddress {
		t.Errorf("Expected default address %#x, got %#x", DefaultI2CAddress, r.Address)
	}

	connect := encode(protocol.Connect{})
	r.HandleWrite(connect[:63])
	var f protocol.Frame
	if r.TryReceiveFrame(&f) {
		t.Fatal("Short write delivered as a frame")
	}
	r.HandleWrite(connect[:])
	if !r.TryReceiveFrame(&f) {
		t.Fatal("Expected a frame")
	}

	buf := make([]byte, protocol.FrameSize)
	r.HandleRead(buf)
	if !bytes.Equal(buf, bytes.Repeat([]byte{0xFF}, protocol.FrameSize)) {
		t.Error("Expected 0xFF filler without a pending response")
	}

	resp := protocol.NewResponse(&f)
	if err := r.SendResponse(&resp); err != nil {
		t.Fatalf("SendResponse failed: %v", err)
	}
	if !r.ResponsePending() {
		t.Error("Expected a pending response")
	}
	if err := r.SendResponse(&resp); !errors.Is(err, ErrResponsePending) {
		t.Errorf("Expected ErrResponsePending, got %v", err)
	}

	r.HandleRead(buf)
	if !bytes.Equal(buf, resp[:]) {
		t.Error("Master read did not return the response")
	}
	if r.ResponsePending() {
		t.Error("Response still pending after read")
	}
	if r.Stats().Framing != 1 {
		t.Errorf("Expected 1 framing drop, got %d", r.Stats().Framing)
	}
}

type fakePin struct {
	high bool
	sets int
}

func (p *fakePin) Set(high bool) {
	p.high = high
	p.sets++
}

func TestSPIReceiver(t *testing.T) {
	pin := &fakePin{high: true}
	r := NewSPIReceiver(pin)
	if pin.high {
		t.Fatal("Ready line must start low")
	}

	tx := make([]byte, protocol.FrameSize)
	poll := make([]byte, protocol.FrameSize)
	var f protocol.Frame

	r.HandleExchange(poll, tx)
	if r.TryReceiveFrame(&f) {
		t.Fatal("Poll window delivered as a frame")
	}

	connect := encode(protocol.Connect{})
	r.HandleExchange(connect[:], tx)
	if !r.TryReceiveFrame(&f) {
		t.Fatal("Expected a frame")
	}

	resp := protocol.NewResponse(&f)
	resp.SetStatus(protocol.StatusOK, 0)
	if err := r.SendResponse(&resp); err != nil {
		t.Fatalf("SendResponse failed: %v", err)
	}
	if !pin.high {
		t.Error("Ready line not raised with a staged response")
	}

	r.HandleExchange(bytes.Repeat([]byte{0xFF}, protocol.FrameSize), tx)
	if !bytes.Equal(tx, resp[:]) {
		t.Error("Response not clocked out")
	}
	if pin.high {
		t.Error("Ready line still high after the response was clocked out")
	}
	if r.TryReceiveFrame(&f) {
		t.Error("All-ones poll delivered as a frame")
	}

	r.HandleExchange(make([]byte, 10), tx)
	if r.Stats().Framing != 1 {
		t.Errorf("Expected 1 framing drop, got %d", r.Stats().Framing)
	}
}
