// Package serial opens the UART link to an ISP device.
package serial

import (
	"io"

	"ispboot/core"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - The in-process simulator (ispboot/sim)
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input and unsent output
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string `json:"device"`

	// Baud rate of the ISP UART (8N1)
	Baud int `json:"baud"`

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int `json:"read_timeout_ms"`
}

// DefaultConfig returns the ISP line settings for device
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        core.UARTBaudRate,
		ReadTimeout: 100,
	}
}
