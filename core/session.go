package core

import (
	"errors"

	"ispboot/protocol"
)

// Config holds the tunables of an ISP session.
type Config struct {
	ConnectWindow uint32 // ticks to wait for CONNECT
	FlushWindow   uint32 // ticks to wait for the host to collect the last response
	BusyPollLimit int    // status polls per flash operation
	LDROMWritable bool
	Version       uint32 // reported by GET_VERSION and CONNECT
	Debug         DebugWriter
	Poll          func() // called at the top of every loop iteration
}

// DefaultConfig returns the configuration of the reference bootloader.
func DefaultConfig() Config {
	return Config{
		ConnectWindow: TicksFromMS(DefaultConnectWindowMS),
		FlushWindow:   TicksFromMS(100),
		BusyPollLimit: DefaultBusyPollLimit,
		Version:       protocol.VersionWord,
	}
}

// Option configures a Session.
type Option func(*Config)

// WithConnectWindow sets the connect window in ticks.
func WithConnectWindow(ticks uint32) Option {
	return func(c *Config) { c.ConnectWindow = ticks }
}

// WithFlushWindow bounds the wait for the last response before reboot.
func WithFlushWindow(ticks uint32) Option {
	return func(c *Config) { c.FlushWindow = ticks }
}

// WithBusyPollLimit bounds every flash busy wait.
func WithBusyPollLimit(n int) Option {
	return func(c *Config) { c.BusyPollLimit = n }
}

// WithLDROMWritable allows erasing and programming LDROM, for loaders that
// run from APROM.
func WithLDROMWritable(writable bool) Option {
	return func(c *Config) { c.LDROMWritable = writable }
}

// WithVersion overrides the reported firmware version word.
func WithVersion(v uint32) Option {
	return func(c *Config) { c.Version = v }
}

// WithDebugWriter routes session debug output to w.
func WithDebugWriter(w DebugWriter) Option {
	return func(c *Config) { c.Debug = w }
}

// WithPoll runs fn at the top of every loop iteration, typically a UART
// pump for targets without an RX interrupt.
func WithPoll(fn func()) Option {
	return func(c *Config) { c.Poll = fn }
}

// Stats counts what the session has done.
type Stats struct {
	Frames       uint32 // frames dispatched
	Responses    uint32 // responses accepted by the receiver
	SendFailures uint32
	Errors       uint32 // responses with a non-zero status
	NotConnected uint32 // commands refused before CONNECT
	Panics       uint32
}

// Session is the ISP context: everything that lives from ISP entry until
// the reboot. It is driven by a single goroutine (the main loop).
type Session struct {
	cfg    Config
	hw     Hardware
	rx     Receiver
	clock  Clock
	geo    Geometry
	flash  *FlashAdapter
	disp   *Dispatcher
	engine *BootEngine

	req  protocol.Frame
	resp protocol.Frame

	stats Stats
	trace TraceRing
}

// NewSession reads the device geometry and arms the connect window.
func NewSession(hw Hardware, rx Receiver, clock Clock, opts ...Option) (*Session, error) {
	if hw.Flash == nil || hw.Boot == nil {
		return nil, errors.New("flash driver and boot controller are required")
	}
	if rx == nil {
		return nil, errors.New("receiver is required")
	}
	if clock == nil {
		clock = SystemClock{}
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	info := normalizeDeviceInfo(hw.Device)
	geo, err := DiscoverGeometry(hw.Flash, info, cfg.BusyPollLimit)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:   cfg,
		hw:    hw,
		rx:    rx,
		clock: clock,
		geo:   geo,
	}
	s.flash = NewFlashAdapter(hw.Flash, geo, cfg.BusyPollLimit, cfg.LDROMWritable)
	s.disp = NewDispatcher(s.flash, hw.Boot, info, cfg.Version)
	s.engine = NewBootEngine(clock, cfg.ConnectWindow)

	s.debug("[ISP] session start APROM=" + itoa(int(geo.APROM.Size)) +
		" DF=" + hex32(geo.DataFlash.Base) + "/" + itoa(int(geo.DataFlash.Size)) +
		" LDROM=" + itoa(int(geo.LDROM.Size)))
	return s, nil
}

func (s *Session) debug(msg string) {
	if s.cfg.Debug != nil {
		s.cfg.Debug(msg)
	}
}

// Geometry returns the flash layout discovered at session start.
func (s *Session) Geometry() Geometry {
	return s.geo
}

// Flash returns the session's flash adapter.
func (s *Session) Flash() *FlashAdapter {
	return s.flash
}

// State returns the boot state.
func (s *Session) State() BootState {
	return s.engine.State()
}

// Target returns the image the session will boot when it ends.
func (s *Session) Target() BootSource {
	return s.engine.Target()
}

// Stats returns a copy of the session counters.
func (s *Session) Stats() Stats {
	return s.stats
}

// Trace returns the event ring.
func (s *Session) Trace() *TraceRing {
	return &s.trace
}

// DumpTrace writes the event ring to the debug writer.
func (s *Session) DumpTrace() {
	s.trace.Dump(s.cfg.Debug)
}
