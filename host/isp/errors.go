package isp

import (
	"errors"
	"fmt"

	"ispboot/protocol"
)

// ErrNotConnected is returned when the device never answered CONNECT.
var ErrNotConnected = errors.New("device did not answer CONNECT")

// StatusError is a non-zero status returned by the device.
type StatusError struct {
	// Operation is the command that failed
	Operation string

	// Status is the status word of the response
	Status protocol.Status

	// Addr is where the device stopped
	Addr uint32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed at 0x%08X: %s (%d)", e.Operation, e.Addr, e.Status, int32(e.Status))
}

// VerificationError indicates that the device CRC does not match the image.
type VerificationError struct {
	Addr     uint32
	Length   uint32
	Expected uint16
	Actual   uint16
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed for 0x%08X+%d: expected CRC 0x%04X, device has 0x%04X",
		e.Addr, e.Length, e.Expected, e.Actual)
}

// IsStatus reports whether err carries the given device status.
func IsStatus(err error, status protocol.Status) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

// IsRetryable reports whether repeating the command may succeed: response
// timeouts and flash controller timeouts are retryable, everything else is
// a definite answer.
func IsRetryable(err error) bool {
	return errors.Is(err, protocol.ErrResponseTimeout) || IsStatus(err, protocol.StatusTimeout)
}
