package protocol

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

// echoDevice answers every frame with a success response, sending a stale
// response for an unrelated opcode first.
func echoDevice(t *testing.T, conn net.Conn) {
	t.Helper()
	go func() {
		var req Frame
		for {
			if _, err := io.ReadFull(conn, req[:]); err != nil {
				return
			}
			var stale Frame
			stale.SetHeader(CmdGetVersion, 0, 0)
			resp := NewResponse(&req)
			resp.SetPayloadWord(2, 0xCAFE)

			// Split the reply across writes to exercise reassembly
			conn.Write(stale[:])
			conn.Write(resp[:10])
			conn.Write(resp[10:])
		}
	}()
}

func TestHostTransportExchange(t *testing.T) {
	host, dev := net.Pipe()
	echoDevice(t, dev)

	tr := NewHostTransport(host)
	defer tr.Close()

	var req Frame
	Read{Addr: 0x100, Length: 4}.Encode(&req)

	resp, err := tr.Exchange(&req, time.Second)
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if resp.Opcode() != CmdRead {
		t.Errorf("Expected READ response, got %v", resp.Opcode())
	}
	if resp.PayloadWord(2) != 0xCAFE {
		t.Errorf("Expected payload marker 0xCAFE, got 0x%X", resp.PayloadWord(2))
	}
}

func TestHostTransportTimeout(t *testing.T) {
	host, dev := net.Pipe()
	go io.Copy(io.Discard, dev)

	tr := NewHostTransport(host)
	defer tr.Close()

	var req Frame
	Connect{}.Encode(&req)

	_, err := tr.Exchange(&req, 20*time.Millisecond)
	if !errors.Is(err, ErrResponseTimeout) {
		t.Errorf("Expected ErrResponseTimeout, got %v", err)
	}
}

func TestHostTransportResyncWhileReceiving(t *testing.T) {
	host, dev := net.Pipe()
	tr := NewHostTransport(host)
	defer tr.Close()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		var noise Frame
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := dev.Write(noise[:]); err != nil {
				return
			}
		}
	}()
	for i := 0; i < 200; i++ {
		tr.Resync()
	}
	close(stop)
	<-done

	echoDevice(t, dev)
	var req Frame
	GetVersion{}.Encode(&req)
	if _, err := tr.Exchange(&req, time.Second); err != nil {
		t.Fatalf("Exchange after resync failed: %v", err)
	}
}
