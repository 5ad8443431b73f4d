package isp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"ispboot/core"
	"ispboot/protocol"
)

// DeviceInfo is what the device reports about itself after CONNECT.
type DeviceInfo struct {
	ProductID     uint32
	Version       uint32
	APROMSize     uint32
	DataFlashBase uint32
	DataFlashSize uint32
	LDROMSize     uint32
	PageSize      uint32
	BlockSize     uint32
}

// VersionString formats the packed firmware version as major.minor.patch.
func (d *DeviceInfo) VersionString() string {
	return fmt.Sprintf("%d.%d.%d", d.Version>>16&0xFF, d.Version>>8&0xFF, d.Version&0xFF)
}

// Programmer drives one ISP device over a frame transport.
//
// Programmer is not safe for concurrent use.
type Programmer struct {
	transport *protocol.HostTransport
	config    Config
	info      *DeviceInfo
}

// New creates a Programmer on port and starts its reader. The port is
// closed by Close.
func New(port io.ReadWriteCloser, opts ...Option) *Programmer {
	if port == nil {
		panic("port cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Programmer{
		transport: protocol.NewHostTransport(port),
		config:    cfg,
	}
}

// Close stops the transport and closes the port.
func (p *Programmer) Close() error {
	return p.transport.Close()
}

// Connect knocks with CONNECT until the device answers, then reads its
// identification and geometry.
func (p *Programmer) Connect(ctx context.Context) (*DeviceInfo, error) {
	var req protocol.Frame
	protocol.Connect{}.Encode(&req)

	connected := false
	for attempt := 1; attempt <= p.config.ConnectAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cancelled: %w", err)
		}

		resp, err := p.transport.Exchange(&req, p.config.ConnectTimeout)
		if err != nil {
			if !errors.Is(err, protocol.ErrResponseTimeout) {
				return nil, fmt.Errorf("connect: %w", err)
			}
			continue
		}
		if st := resp.Status(); !st.OK() {
			return nil, &StatusError{Operation: "connect", Status: st, Addr: resp.StopAddress()}
		}
		p.logDebug("connected", "attempt", attempt, "product_id", fmt.Sprintf("0x%08X", resp.PayloadWord(2)))
		connected = true
		break
	}
	if !connected {
		return nil, fmt.Errorf("%w after %d attempts", ErrNotConnected, p.config.ConnectAttempts)
	}

	info, err := p.Info(ctx)
	if err != nil {
		return nil, err
	}
	p.logInfo("device identified",
		"product_id", fmt.Sprintf("0x%08X", info.ProductID),
		"version", info.VersionString(),
		"aprom", info.APROMSize,
		"ldrom", info.LDROMSize,
	)
	return info, nil
}

// Info queries GET_DEVICEID and GET_VERSION.
func (p *Programmer) Info(ctx context.Context) (*DeviceInfo, error) {
	resp, err := p.exchange(ctx, "get device id", protocol.GetDeviceID{})
	if err != nil {
		return nil, err
	}
	info := &DeviceInfo{
		ProductID:     resp.PayloadWord(2),
		APROMSize:     resp.PayloadWord(3),
		DataFlashBase: resp.PayloadWord(4),
		DataFlashSize: resp.PayloadWord(5),
		LDROMSize:     resp.PayloadWord(6),
		PageSize:      resp.PayloadWord(7),
		BlockSize:     resp.PayloadWord(8),
	}

	resp, err = p.exchange(ctx, "get version", protocol.GetVersion{})
	if err != nil {
		return nil, err
	}
	info.Version = resp.PayloadWord(2)

	p.info = info
	return info, nil
}

// FlashMode reports which image the device is executing.
func (p *Programmer) FlashMode(ctx context.Context) (core.BootSource, error) {
	resp, err := p.exchange(ctx, "get flash mode", protocol.GetFlashMode{})
	if err != nil {
		return 0, err
	}
	if resp.PayloadWord(2) == protocol.FlashModeLDROM {
		return core.BootLDROM, nil
	}
	return core.BootAPROM, nil
}

// Read reads length bytes starting at addr. The device reads whole words,
// so a trailing partial word is read in full and trimmed.
func (p *Programmer) Read(ctx context.Context, addr, length uint32) ([]byte, error) {
	out := make([]byte, 0, length+protocol.WordSize)
	for uint32(len(out)) < length {
		n := length - uint32(len(out))
		if n > protocol.PayloadSize {
			n = protocol.PayloadSize
		}
		n = (n + protocol.WordSize - 1) &^ (protocol.WordSize - 1)

		at := addr + uint32(len(out))
		resp, err := p.exchange(ctx, "read", protocol.Read{Addr: at, Length: n})
		if err != nil {
			return nil, err
		}
		got := resp.Length()
		if got == 0 || got > n {
			return nil, fmt.Errorf("read at 0x%08X: device returned %d bytes", at, got)
		}
		out = append(out, resp.Payload()[:got]...)
	}
	return out[:length], nil
}

// Erase erases every page in [addr, addr+length), EraseChunk pages per
// request.
func (p *Programmer) Erase(ctx context.Context, addr, length uint32) error {
	page := p.pageSize()
	chunk := page * uint32(p.config.EraseChunk)
	for off := uint32(0); off < length; off += chunk {
		n := length - off
		if n > chunk {
			n = chunk
		}
		if _, err := p.exchange(ctx, "page erase", protocol.PageErase{Addr: addr + off, Length: n}); err != nil {
			return err
		}
	}
	return nil
}

// EraseAll erases APROM and Data Flash.
func (p *Programmer) EraseAll(ctx context.Context) error {
	_, err := p.exchange(ctx, "erase all", protocol.EraseAll{})
	return err
}

// Write programs data at addr in ChunkSize frames. data is padded with
// 0xFF to a word multiple.
func (p *Programmer) Write(ctx context.Context, addr uint32, data []byte) error {
	return p.write(ctx, addr, padWords(data), nil)
}

func (p *Programmer) write(ctx context.Context, addr uint32, data []byte, progress func(done int)) error {
	for off := 0; off < len(data); off += p.config.ChunkSize {
		end := off + p.config.ChunkSize
		if end > len(data) {
			end = len(data)
		}
		cmd := protocol.Program{Addr: addr + uint32(off), Data: data[off:end]}
		if _, err := p.exchange(ctx, "program", cmd); err != nil {
			return err
		}
		if progress != nil {
			progress(end)
		}
	}
	return nil
}

// Checksum returns the device CRC-16 of [addr, addr+length).
func (p *Programmer) Checksum(ctx context.Context, addr, length uint32) (uint16, error) {
	resp, err := p.exchange(ctx, "read checksum", protocol.ReadChecksum{Addr: addr, Length: length})
	if err != nil {
		return 0, err
	}
	return uint16(resp.PayloadWord(2)), nil
}

// ReadConfig returns the CONFIG words.
func (p *Programmer) ReadConfig(ctx context.Context) ([]uint32, error) {
	resp, err := p.exchange(ctx, "read config", protocol.ReadConfig{})
	if err != nil {
		return nil, err
	}
	// CONFIG0 and CONFIG1 on every supported part
	return []uint32{resp.PayloadWord(2), resp.PayloadWord(3)}, nil
}

// UpdateConfig rewrites the CONFIG words.
func (p *Programmer) UpdateConfig(ctx context.Context, words []uint32) error {
	if len(words) == 0 || len(words) > protocol.PayloadWords {
		return fmt.Errorf("config must have 1 to %d words, got %d", protocol.PayloadWords, len(words))
	}
	_, err := p.exchange(ctx, "update config", protocol.UpdateConfig{Words: words})
	return err
}

// Program writes image at addr: erase the covering pages, program, then
// compare CRCs if verification is enabled.
func (p *Programmer) Program(ctx context.Context, addr uint32, image []byte) error {
	if len(image) == 0 {
		return errors.New("image is empty")
	}
	start := time.Now()
	data := padWords(image)

	if p.info == nil {
		p.reportProgress(Progress{Phase: PhaseConnecting})
		if _, err := p.Connect(ctx); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
	}

	page := p.pageSize()
	first := addr &^ (page - 1)
	last := (addr + uint32(len(data)) + page - 1) &^ (page - 1)
	p.reportProgress(Progress{
		Phase:       PhaseErasing,
		Total:       int((last - first) / page),
		Percentage:  0,
		ElapsedTime: time.Since(start),
	})
	if err := p.Erase(ctx, first, last-first); err != nil {
		return fmt.Errorf("erase: %w", err)
	}

	err := p.write(ctx, addr, data, func(done int) {
		p.reportProgress(Progress{
			Phase:        PhaseProgramming,
			Done:         done,
			Total:        len(data),
			Percentage:   5 + float64(done)/float64(len(data))*90,
			BytesWritten: done,
			ElapsedTime:  time.Since(start),
		})
	})
	if err != nil {
		return fmt.Errorf("program: %w", err)
	}

	if p.config.VerifyAfterProgram {
		p.reportProgress(Progress{
			Phase:        PhaseVerifying,
			Done:         len(data),
			Total:        len(data),
			Percentage:   96,
			BytesWritten: len(data),
			ElapsedTime:  time.Since(start),
		})
		if err := p.Verify(ctx, addr, data); err != nil {
			return err
		}
	}

	p.reportProgress(Progress{
		Phase:        PhaseComplete,
		Done:         len(data),
		Total:        len(data),
		Percentage:   100,
		BytesWritten: len(data),
		ElapsedTime:  time.Since(start),
	})
	p.logInfo("programming complete",
		"addr", fmt.Sprintf("0x%08X", addr),
		"bytes", len(data),
		"elapsed", time.Since(start).String(),
	)
	return nil
}

// Verify compares the device CRC of [addr, addr+len(data)) with data.
func (p *Programmer) Verify(ctx context.Context, addr uint32, data []byte) error {
	data = padWords(data)
	got, err := p.Checksum(ctx, addr, uint32(len(data)))
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if want := protocol.Checksum(data); got != want {
		return &VerificationError{Addr: addr, Length: uint32(len(data)), Expected: want, Actual: got}
	}
	return nil
}

// Run leaves ISP and starts target. The device resets right after the
// acknowledgement, so a lost acknowledgement is not an error.
func (p *Programmer) Run(ctx context.Context, target core.BootSource) error {
	var cmd protocol.Command = protocol.RunAPROM{}
	if target == core.BootLDROM {
		cmd = protocol.RunLDROM{}
	}
	var req protocol.Frame
	cmd.Encode(&req)

	_, err := p.transport.Exchange(&req, p.config.Timeout)
	if err != nil && !errors.Is(err, protocol.ErrResponseTimeout) {
		return fmt.Errorf("run %s: %w", target, err)
	}
	p.info = nil
	p.logInfo("device started", "target", target.String())
	return nil
}

// Reset resets the device into the image CONFIG selects.
func (p *Programmer) Reset(ctx context.Context) error {
	var req protocol.Frame
	protocol.Reset{}.Encode(&req)
	if _, err := p.transport.Exchange(&req, p.config.Timeout); err != nil && !errors.Is(err, protocol.ErrResponseTimeout) {
		return fmt.Errorf("reset: %w", err)
	}
	p.info = nil
	return nil
}

// exchange sends cmd and turns the response status into an error. Timeouts
// are retried; a retried PROGRAM is harmless because programming the same
// data twice leaves the flash unchanged.
func (p *Programmer) exchange(ctx context.Context, op string, cmd protocol.Command) (protocol.Frame, error) {
	var req protocol.Frame
	cmd.Encode(&req)

	var lastErr error
	for attempt := 0; attempt <= p.config.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return protocol.Frame{}, fmt.Errorf("cancelled: %w", err)
		}
		if attempt > 0 {
			p.logDebug("retrying", "op", op, "attempt", attempt, "error", lastErr)
			p.transport.Resync()
		}

		resp, err := p.transport.Exchange(&req, p.config.Timeout)
		if err == nil {
			err = responseError(op, &resp)
			if err == nil {
				return resp, nil
			}
		}
		lastErr = err
		if !IsRetryable(err) {
			break
		}
	}

	p.logError("command failed", "op", op, "addr", fmt.Sprintf("0x%08X", req.Address()), "error", lastErr)
	return protocol.Frame{}, fmt.Errorf("%s: %w", op, lastErr)
}

// responseError extracts the status of resp. A READ response with data
// carries no status word.
func responseError(op string, resp *protocol.Frame) error {
	if resp.Opcode() == protocol.CmdRead && resp.Length() != 0 {
		return nil
	}
	if st := resp.Status(); !st.OK() {
		return &StatusError{Operation: op, Status: st, Addr: resp.StopAddress()}
	}
	return nil
}

func (p *Programmer) pageSize() uint32 {
	if p.info != nil && p.info.PageSize != 0 {
		return p.info.PageSize
	}
	return core.DefaultPageSize
}

func padWords(data []byte) []byte {
	rem := len(data) % protocol.WordSize
	if rem == 0 {
		return data
	}
	out := make([]byte, len(data), len(data)+protocol.WordSize-rem)
	copy(out, data)
	for i := rem; i < protocol.WordSize; i++ {
		out = append(out, 0xFF)
	}
	return out
}

// reportProgress calls the progress callback if configured.
func (p *Programmer) reportProgress(progress Progress) {
	if p.config.ProgressCallback != nil {
		p.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (p *Programmer) logDebug(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (p *Programmer) logInfo(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (p *Programmer) logError(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Error(msg, keysAndValues...)
	}
}
