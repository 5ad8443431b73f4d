package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	ErrResponseTimeout = errors.New("response timeout")
	ErrTransportClosed = errors.New("transport stopped")
)

// HostTransport exchanges frames with a bootloader from the host side. A
// background reader assembles incoming bytes into response frames.
type HostTransport struct {
	port io.ReadWriteCloser

	inputBuffer *FifoBuffer
	assembler   Assembler

	responseChan chan Frame

	writeMutex sync.Mutex
	readMutex  sync.Mutex

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewHostTransport creates a host-side transport and starts its reader.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		inputBuffer:  NewFifoBuffer(4 * FrameSize),
		responseChan: make(chan Frame, 4),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}

	go t.readLoop()

	return t
}

// Send writes one request frame without waiting for a reply.
func (t *HostTransport) Send(req *Frame) error {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	n, err := t.port.Write(req[:])
	if err != nil {
		return err
	}
	if n != FrameSize {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, FrameSize)
	}
	return nil
}

// Exchange sends req and waits for the response echoing its opcode.
// Responses for other opcodes (late replies to an earlier retry) are skipped.
func (t *HostTransport) Exchange(req *Frame, timeout time.Duration) (Frame, error) {
	t.Drain()

	if err := t.Send(req); err != nil {
		return Frame{}, fmt.Errorf("failed to write frame: %w", err)
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case resp := <-t.responseChan:
			if resp.Opcode() != req.Opcode() {
				continue
			}
			return resp, nil

		case <-deadline.C:
			return Frame{}, fmt.Errorf("%w after %v", ErrResponseTimeout, timeout)

		case <-t.stopChan:
			return Frame{}, ErrTransportClosed
		}
	}
}

// Drain discards responses that nobody waited for.
func (t *HostTransport) Drain() {
	for {
		select {
		case <-t.responseChan:
		default:
			return
		}
	}
}

// readLoop continuously reads from the port and assembles frames
func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)

	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buffer)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if n > 0 {
			t.processFrames(buffer[:n])
		}
	}
}

// processFrames appends data to the input buffer and moves complete frames
// to the channel
func (t *HostTransport) processFrames(data []byte) {
	t.readMutex.Lock()
	defer t.readMutex.Unlock()

	t.inputBuffer.Write(data)

	for {
		b, ok := t.inputBuffer.ReadByte()
		if !ok {
			return
		}
		if !t.assembler.WriteByte(b) {
			continue
		}

		resp := *t.assembler.Frame()
		select {
		case t.responseChan <- resp:
		default:
			// Drop the oldest response
			select {
			case <-t.responseChan:
			default:
			}
			t.responseChan <- resp
		}
	}
}

// Resync discards any partially received frame.
func (t *HostTransport) Resync() {
	t.readMutex.Lock()
	defer t.readMutex.Unlock()

	t.inputBuffer.Reset()
	t.assembler.Reset()
	t.Drain()
}

// Close stops the transport and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan
	})
	return err
}
