// Package sim runs the ISP core against an in-memory flash so the host
// tool can be exercised without hardware. The device speaks the UART
// transport over an in-process pipe.
package sim

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"ispboot/core"
	"ispboot/protocol"
)

var errClosed = errors.New("device closed")

// Config holds simulator settings.
type Config struct {
	// ConnectWindow is how long each ISP session waits for CONNECT.
	ConnectWindow time.Duration

	// BusyPolls makes every flash operation report busy this many times.
	BusyPolls int

	// IdleTimeout is the mid-frame silence after which a partial frame is
	// dropped. The pipe has no line timing, so it is far longer than on a
	// real UART.
	IdleTimeout time.Duration

	// Debug receives the session debug output.
	Debug core.DebugWriter
}

// DefaultConfig returns the reference timing.
func DefaultConfig() Config {
	return Config{
		ConnectWindow: core.DefaultConnectWindowMS * time.Millisecond,
		IdleTimeout:   20 * time.Millisecond,
	}
}

// Device is a simulated part running the bootloader.
type Device struct {
	profile *core.Profile
	cfg     Config
	mem     *core.MemoryFlash

	hostEnd net.Conn
	devEnd  net.Conn
	rxBytes chan byte

	mu    sync.Mutex
	boots []core.BootSource
	err   error

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// New creates a device for profile. Call Start to power it on.
func New(profile *core.Profile, cfg Config) *Device {
	mem := profile.NewMemoryFlash()
	mem.SetBusyPolls(cfg.BusyPolls)
	return &Device{
		profile:  profile,
		cfg:      cfg,
		mem:      mem,
		rxBytes:  make(chan byte, 16*protocol.FrameSize),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Flash returns the device's flash. Only inspect it after Close.
func (d *Device) Flash() *core.MemoryFlash {
	return d.mem
}

// Start powers the device on and returns the host end of its UART.
func (d *Device) Start() io.ReadWriteCloser {
	d.hostEnd, d.devEnd = net.Pipe()
	go d.readLoop()
	go d.run()
	return d.hostEnd
}

// Boots returns the boot targets of every finished ISP session.
func (d *Device) Boots() []core.BootSource {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]core.BootSource(nil), d.boots...)
}

// Err returns the error that stopped the device, if any.
func (d *Device) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Close powers the device off and waits for it to stop.
func (d *Device) Close() error {
	d.stopOnce.Do(func() {
		close(d.stopChan)
		if d.devEnd != nil {
			d.devEnd.Close()
			d.hostEnd.Close()
			<-d.doneChan
		}
	})
	return nil
}

func (d *Device) stopped() bool {
	select {
	case <-d.stopChan:
		return true
	default:
		return false
	}
}

// readLoop plays the UART RX interrupt: bytes from the wire go into the
// receive FIFO
func (d *Device) readLoop() {
	buf := make([]byte, protocol.FrameSize)
	for {
		n, err := d.devEnd.Read(buf)
		for _, b := range buf[:n] {
			select {
			case d.rxBytes <- b:
			case <-d.stopChan:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// run is the device main loop: one ISP session after another until the
// application is started or the device is closed
func (d *Device) run() {
	defer close(d.doneChan)

	for !d.stopped() {
		target, err := d.session()
		if err != nil {
			if errors.Is(err, errClosed) {
				return
			}
			d.mu.Lock()
			d.err = err
			d.mu.Unlock()
			return
		}

		d.mu.Lock()
		d.boots = append(d.boots, target)
		d.mu.Unlock()

		if target == core.BootAPROM {
			d.application()
			return
		}
	}
}

func (d *Device) session() (core.BootSource, error) {
	rx := core.NewUARTReceiver(d.devEnd)
	rx.SetIdleTimeout(uint32(d.cfg.IdleTimeout / time.Microsecond))
	src := &fifoSource{ch: d.rxBytes, stop: d.stopChan}

	window := uint32(d.cfg.ConnectWindow / time.Microsecond)
	s, err := core.NewSession(
		core.Hardware{Flash: d.mem, Boot: d.mem, Device: d.profile.DeviceInfo()},
		rx,
		core.SystemClock{},
		core.WithConnectWindow(window),
		core.WithDebugWriter(d.cfg.Debug),
		core.WithPoll(func() {
			src.wait(time.Millisecond)
			rx.Service(src, core.GetTime())
		}),
	)
	if err != nil {
		return 0, err
	}

	for s.Step() != core.StateRebooting {
		if d.stopped() {
			return 0, errClosed
		}
	}
	s.DumpTrace()
	s.Reboot()
	return s.Target(), nil
}

// application stands in for the user image: it consumes the UART and
// never answers
func (d *Device) application() {
	for {
		select {
		case <-d.rxBytes:
		case <-d.stopChan:
			return
		}
	}
}

// fifoSource adapts the receive channel to core.ByteSource
type fifoSource struct {
	ch      chan byte
	stop    chan struct{}
	pending []byte
}

func (f *fifoSource) Buffered() int {
	return len(f.pending) + len(f.ch)
}

func (f *fifoSource) ReadByte() (byte, error) {
	if len(f.pending) > 0 {
		b := f.pending[0]
		f.pending = f.pending[1:]
		return b, nil
	}
	select {
	case b := <-f.ch:
		return b, nil
	default:
		return 0, io.EOF
	}
}

// wait blocks until a byte arrives, the device stops or d elapses
func (f *fifoSource) wait(d time.Duration) {
	if f.Buffered() > 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case b := <-f.ch:
		f.pending = append(f.pending, b)
	case <-f.stop:
	case <-timer.C:
	}
}
