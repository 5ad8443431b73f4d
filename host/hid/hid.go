// Package hid opens the USB-HID link of NuMicro parts with a USB device
// port. Each ISP frame travels as one 64-byte interrupt report.
package hid

import (
	"errors"
	"fmt"
	"io"

	usb "github.com/karalabe/hid"

	"ispboot/protocol"
)

// Default USB identifiers of the NuMicro ISP-by-USB loader.
const (
	VID = 0x0416
	PID = 0x3F00
)

// ReportSize is the HID report length; one frame per report.
const ReportSize = protocol.FrameSize

// reportDevice is the subset of usb.Device the port needs
type reportDevice interface {
	io.ReadWriteCloser
}

// Port is an io.ReadWriteCloser over HID reports, usable with
// protocol.NewHostTransport.
type Port struct {
	dev reportDevice

	out     [ReportSize + 1]byte // report ID + report
	in      [ReportSize]byte
	pending []byte
	partial []byte
}

// AttachedDevices returns every connected HID interface matching vid/pid.
func AttachedDevices(vid, pid uint16) []usb.DeviceInfo {
	var info []usb.DeviceInfo
	for _, i := range usb.Enumerate(vid, pid) {
		info = append(info, i)
	}
	return info
}

// Open claims the idx-th attached device matching vid/pid.
func Open(idx int, vid, pid uint16) (*Port, error) {
	if !usb.Supported() {
		return nil, errors.New("USB HID is not supported on this platform")
	}
	info := AttachedDevices(vid, pid)
	if idx < 0 || idx >= len(info) {
		return nil, fmt.Errorf("device index %d out of range, %d device(s) attached", idx, len(info))
	}
	dev, err := info[idx].Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open HID device %s: %w", info[idx].Path, err)
	}
	return newPort(dev), nil
}

func newPort(dev reportDevice) *Port {
	return &Port{dev: dev}
}

// Write sends b as whole reports. A trailing partial report is held until
// the rest of it is written.
func (p *Port) Write(b []byte) (int, error) {
	written := 0
	for len(b) > 0 {
		need := ReportSize - len(p.partial)
		if len(b) < need {
			p.partial = append(p.partial, b...)
			return written + len(b), nil
		}

		p.out[0] = 0 // unnumbered report
		n := copy(p.out[1:], p.partial)
		copy(p.out[1+n:], b[:need])
		p.partial = p.partial[:0]

		if _, err := p.dev.Write(p.out[:]); err != nil {
			return written, fmt.Errorf("HID write: %w", err)
		}
		written += need
		b = b[need:]
	}
	return written, nil
}

// Read returns bytes from the next input report.
func (p *Port) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		n, err := p.dev.Read(p.in[:])
		if err != nil {
			return 0, err
		}
		p.pending = p.in[:n]
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// Flush drops buffered input and any partial output report.
func (p *Port) Flush() error {
	p.pending = nil
	p.partial = p.partial[:0]
	return nil
}

// Close releases the device.
func (p *Port) Close() error {
	return p.dev.Close()
}
