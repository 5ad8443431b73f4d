package isp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"ispboot/core"
	"ispboot/protocol"
	"ispboot/sim"
)

type recordLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordLogger) Debug(msg string, keysAndValues ...interface{}) { l.add(msg) }
func (l *recordLogger) Info(msg string, keysAndValues ...interface{})  { l.add(msg) }
func (l *recordLogger) Error(msg string, keysAndValues ...interface{}) { l.add(msg) }

func (l *recordLogger) add(msg string) {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
}

func newSimProgrammer(t *testing.T, profile string, opts ...Option) (*Programmer, *sim.Device) {
	t.Helper()
	p, ok := core.BuiltinProfile(profile)
	if !ok {
		t.Fatalf("unknown profile %q", profile)
	}
	cfg := sim.DefaultConfig()
	cfg.ConnectWindow = 5 * time.Second
	d := sim.New(p, cfg)
	prog := New(d.Start(), opts...)
	t.Cleanup(func() {
		prog.Close()
		d.Close()
	})
	return prog, d
}

func image(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*7 + 3)
	}
	return out
}

func TestProgrammerConnect(t *testing.T) {
	prog, _ := newSimProgrammer(t, "m031-64k")

	info, err := prog.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if info.ProductID != 0x01131000 {
		t.Errorf("Expected product ID 0x01131000, got 0x%08X", info.ProductID)
	}
	if info.Version != protocol.VersionWord {
		t.Errorf("Expected version 0x%08X, got 0x%08X", protocol.VersionWord, info.Version)
	}
	if info.VersionString() != protocol.Version {
		t.Errorf("Expected version string %s, got %s", protocol.Version, info.VersionString())
	}
	if info.PageSize != core.DefaultPageSize {
		t.Errorf("Expected page size %d, got %d", core.DefaultPageSize, info.PageSize)
	}
	if info.APROMSize != 64*1024 {
		t.Errorf("Expected APROM size 65536, got %d", info.APROMSize)
	}

	mode, err := prog.FlashMode(context.Background())
	if err != nil {
		t.Fatalf("FlashMode failed: %v", err)
	}
	if mode != core.BootLDROM {
		t.Errorf("Expected LDROM flash mode, got %v", mode)
	}
}

func TestProgrammerProgramAndRead(t *testing.T) {
	var phases []string
	logger := &recordLogger{}
	prog, _ := newSimProgrammer(t, "m031-64k",
		WithLogger(logger),
		WithProgressCallback(func(p Progress) {
			if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
				phases = append(phases, p.Phase)
			}
		}),
	)
	ctx := context.Background()

	img := image(512)
	if err := prog.Program(ctx, 0x4000, img); err != nil {
		t.Fatalf("Program failed: %v", err)
	}

	got, err := prog.Read(ctx, 0x4000, uint32(len(img)))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, img) {
		t.Errorf("Read back differs from image")
	}

	want := []string{PhaseConnecting, PhaseErasing, PhaseProgramming, PhaseVerifying, PhaseComplete}
	if len(phases) != len(want) {
		t.Fatalf("Expected phases %v, got %v", want, phases)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("Phase %d: expected %s, got %s", i, want[i], phases[i])
		}
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.msgs) == 0 {
		t.Errorf("Expected log messages")
	}
}

func TestProgrammerUnalignedImage(t *testing.T) {
	prog, _ := newSimProgrammer(t, "m031-64k")
	ctx := context.Background()

	img := image(10)
	if err := prog.Program(ctx, 0x800, img); err != nil {
		t.Fatalf("Program failed: %v", err)
	}
	got, err := prog.Read(ctx, 0x800, 12)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got[:10], img) {
		t.Errorf("Image bytes differ")
	}
	if got[10] != 0xFF || got[11] != 0xFF {
		t.Errorf("Expected 0xFF padding, got %02X %02X", got[10], got[11])
	}
}

func TestProgrammerStatusError(t *testing.T) {
	prog, _ := newSimProgrammer(t, "m031-64k")
	ctx := context.Background()
	if _, err := prog.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	_, err := prog.Read(ctx, 0x10000, 4)
	if err == nil {
		t.Fatal("Expected error reading past APROM")
	}
	if !IsStatus(err, protocol.StatusOutOfRange) {
		t.Errorf("Expected OutOfRange, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Expected StatusError, got %T", err)
	}
	if se.Operation != "read" {
		t.Errorf("Expected operation read, got %s", se.Operation)
	}
	if IsRetryable(err) {
		t.Errorf("OutOfRange must not be retryable")
	}

	err = prog.Erase(ctx, 0x101, 4)
	if !IsStatus(err, protocol.StatusMisaligned) {
		t.Errorf("Expected Misaligned, got %v", err)
	}
}

func TestProgrammerEraseAndChecksum(t *testing.T) {
	prog, _ := newSimProgrammer(t, "m031-64k", WithEraseChunk(1))
	ctx := context.Background()
	if _, err := prog.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	img := image(64)
	if err := prog.Write(ctx, 0x200, img); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	crc, err := prog.Checksum(ctx, 0x200, 64)
	if err != nil {
		t.Fatalf("Checksum failed: %v", err)
	}
	if crc != protocol.Checksum(img) {
		t.Errorf("Expected CRC 0x%04X, got 0x%04X", protocol.Checksum(img), crc)
	}
	if err := prog.Verify(ctx, 0x200, img); err != nil {
		t.Errorf("Verify failed: %v", err)
	}

	if err := prog.Erase(ctx, 0, 1024); err != nil {
		t.Fatalf("Erase failed: %v", err)
	}
	err = prog.Verify(ctx, 0x200, img)
	var ve *VerificationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected VerificationError after erase, got %v", err)
	}
	if ve.Addr != 0x200 || ve.Length != 64 {
		t.Errorf("Unexpected verification range 0x%X+%d", ve.Addr, ve.Length)
	}

	if err := prog.EraseAll(ctx); err != nil {
		t.Fatalf("EraseAll failed: %v", err)
	}
}

func TestProgrammerConfig(t *testing.T) {
	prog, _ := newSimProgrammer(t, "m031-64k")
	ctx := context.Background()
	if _, err := prog.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	words, err := prog.ReadConfig(ctx)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	if words[0] != 0xFFFFFF7F {
		t.Errorf("Expected CONFIG0 0xFFFFFF7F, got 0x%08X", words[0])
	}

	if err := prog.UpdateConfig(ctx, []uint32{0xFFFFFFFF, 0xFFFFFFFF}); err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}
	words, err = prog.ReadConfig(ctx)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	if words[0] != 0xFFFFFFFF {
		t.Errorf("Expected CONFIG0 0xFFFFFFFF, got 0x%08X", words[0])
	}

	if err := prog.UpdateConfig(ctx, nil); err == nil {
		t.Errorf("Expected error for empty config")
	}
}

func TestProgrammerRun(t *testing.T) {
	prog, d := newSimProgrammer(t, "m031-64k")
	ctx := context.Background()
	if _, err := prog.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := prog.Run(ctx, core.BootAPROM); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(d.Boots()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	boots := d.Boots()
	if len(boots) != 1 || boots[0] != core.BootAPROM {
		t.Errorf("Expected one APROM boot, got %v", boots)
	}
}

// silentPeer accepts frames and never answers
func silentPeer(t *testing.T) io.ReadWriteCloser {
	host, dev := net.Pipe()
	go io.Copy(io.Discard, dev)
	t.Cleanup(func() { dev.Close() })
	return host
}

func TestProgrammerConnectFails(t *testing.T) {
	prog := New(silentPeer(t), WithConnect(3, 5*time.Millisecond))
	defer prog.Close()

	_, err := prog.Connect(context.Background())
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

func TestProgrammerTimeoutRetries(t *testing.T) {
	logger := &recordLogger{}
	prog := New(silentPeer(t), WithTimeout(5*time.Millisecond), WithRetries(2), WithLogger(logger))
	defer prog.Close()

	_, err := prog.Checksum(context.Background(), 0, 4)
	if !errors.Is(err, protocol.ErrResponseTimeout) {
		t.Fatalf("Expected ErrResponseTimeout, got %v", err)
	}
	if !IsRetryable(err) {
		t.Errorf("Expected timeout to be retryable")
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	retries := 0
	for _, m := range logger.msgs {
		if m == "retrying" {
			retries++
		}
	}
	if retries != 2 {
		t.Errorf("Expected 2 retries, got %d", retries)
	}
}

func TestProgrammerCancelled(t *testing.T) {
	prog := New(silentPeer(t))
	defer prog.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := prog.Connect(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestNewPanicsOnNilPort(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Expected panic")
		}
	}()
	New(nil)
}

func TestOptions(t *testing.T) {
	cfg := defaultConfig()
	WithChunkSize(50)(&cfg)
	if cfg.ChunkSize != 48 {
		t.Errorf("Expected unaligned chunk size to be ignored, got %d", cfg.ChunkSize)
	}
	WithChunkSize(52)(&cfg)
	if cfg.ChunkSize != 52 {
		t.Errorf("Expected chunk size 52, got %d", cfg.ChunkSize)
	}
	WithConnect(0, 0)(&cfg)
	if cfg.ConnectAttempts != 100 || cfg.ConnectTimeout != 50*time.Millisecond {
		t.Errorf("Expected zero connect options to be ignored")
	}
	WithVerify(false)(&cfg)
	if cfg.VerifyAfterProgram {
		t.Errorf("Expected verify disabled")
	}
}

func TestProgrammerReadPartialWord(t *testing.T) {
	prog, _ := newSimProgrammer(t, "m031-64k")
	ctx := context.Background()

	img := image(8)
	if err := prog.Program(ctx, 0x1000, img); err != nil {
		t.Fatalf("Program failed: %v", err)
	}
	got, err := prog.Read(ctx, 0x1000, 6)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, img[:6]) {
		t.Errorf("Expected %x, got %x", img[:6], got)
	}
}
