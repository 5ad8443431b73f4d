package hid

import (
	"bytes"
	"io"
	"testing"

	"ispboot/protocol"
)

type fakeDevice struct {
	writes [][]byte
	reads  [][]byte
	closed bool
}

func (d *fakeDevice) Write(b []byte) (int, error) {
	d.writes = append(d.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (d *fakeDevice) Read(b []byte) (int, error) {
	if len(d.reads) == 0 {
		return 0, io.EOF
	}
	n := copy(b, d.reads[0])
	d.reads = d.reads[1:]
	return n, nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

func TestPortWritesWholeReports(t *testing.T) {
	dev := &fakeDevice{}
	p := newPort(dev)

	var f protocol.Frame
	protocol.Connect{}.Encode(&f)

	if n, err := p.Write(f[:10]); err != nil || n != 10 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if len(dev.writes) != 0 {
		t.Fatal("Partial report sent")
	}
	if n, err := p.Write(f[10:]); err != nil || n != protocol.FrameSize-10 {
		t.Fatalf("Write = %d, %v", n, err)
	}

	if len(dev.writes) != 1 {
		t.Fatalf("Expected 1 report, got %d", len(dev.writes))
	}
	report := dev.writes[0]
	if len(report) != ReportSize+1 || report[0] != 0 {
		t.Errorf("Report length %d id %d", len(report), report[0])
	}
	if !bytes.Equal(report[1:], f[:]) {
		t.Error("Report does not carry the frame")
	}
}

func TestPortReadSplitsReports(t *testing.T) {
	report := bytes.Repeat([]byte{0xAB}, ReportSize)
	dev := &fakeDevice{reads: [][]byte{report}}
	p := newPort(dev)

	buf := make([]byte, 40)
	n, err := p.Read(buf)
	if err != nil || n != 40 {
		t.Fatalf("Read = %d, %v", n, err)
	}
	n, err = p.Read(buf)
	if err != nil || n != ReportSize-40 {
		t.Fatalf("Read = %d, %v", n, err)
	}
	if _, err := p.Read(buf); err != io.EOF {
		t.Errorf("Expected EOF, got %v", err)
	}

	p.Close()
	if !dev.closed {
		t.Error("Close did not reach the device")
	}
}
