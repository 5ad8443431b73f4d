package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ispboot/core"
	"ispboot/host/hid"
	"ispboot/host/isp"
	"ispboot/host/serial"
	"ispboot/sim"
)

// simPort closes the simulated device along with its UART
type simPort struct {
	io.ReadWriteCloser
	dev *sim.Device
}

func (p *simPort) Close() error {
	err := p.ReadWriteCloser.Close()
	p.dev.Close()
	return err
}

// openPort opens the link named by --port
func openPort() (io.ReadWriteCloser, error) {
	name := CLI.Port
	switch {
	case strings.HasPrefix(name, "sim:"):
		profile, err := simProfile(strings.TrimPrefix(name, "sim:"))
		if err != nil {
			return nil, err
		}
		cfg := sim.DefaultConfig()
		cfg.ConnectWindow = CLI.Connect
		dev := sim.New(profile, cfg)
		return &simPort{ReadWriteCloser: dev.Start(), dev: dev}, nil

	case name == "hid" || strings.HasPrefix(name, "hid:"):
		idx := 0
		if s := strings.TrimPrefix(name, "hid"); s != "" {
			n, err := strconv.Atoi(s[1:])
			if err != nil {
				return nil, fmt.Errorf("invalid HID index %q", s[1:])
			}
			idx = n
		}
		port, err := hid.Open(idx, uint16(CLI.VID), uint16(CLI.PID))
		if err != nil {
			return nil, err
		}
		return port, nil

	default:
		cfg := serial.DefaultConfig(name)
		cfg.Baud = CLI.Baud
		port, err := serial.Open(cfg)
		if err != nil {
			return nil, err
		}
		if err := port.Flush(); err != nil {
			port.Close()
			return nil, err
		}
		return port, nil
	}
}

// simProfile resolves a built-in profile name or a JSON/YAML profile file
func simProfile(name string) (*core.Profile, error) {
	if p, ok := core.BuiltinProfile(name); ok {
		return p, nil
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return core.LoadProfile(name)
	}
	return nil, fmt.Errorf("unknown simulator profile %q", name)
}

// connect opens the port and performs the CONNECT handshake
func (c *Context) connect(opts ...isp.Option) (*isp.Programmer, *isp.DeviceInfo, error) {
	port, err := openPort()
	if err != nil {
		return nil, nil, err
	}

	knock := 50 * time.Millisecond
	attempts := int(CLI.Connect / knock)
	if attempts < 1 {
		attempts = 1
	}
	opts = append([]isp.Option{
		isp.WithLogger(c.out),
		isp.WithTimeout(CLI.Timeout),
		isp.WithRetries(CLI.Retries),
		isp.WithConnect(attempts, knock),
	}, opts...)

	prog := isp.New(port, opts...)
	c.out.status("Waiting for %s (reset the device now)...", CLI.Port)
	info, err := prog.Connect(c.ctx)
	if err != nil {
		prog.Close()
		return nil, nil, err
	}
	return prog, info, nil
}
