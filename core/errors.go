package core

import (
	"errors"

	"ispboot/protocol"
)

var (
	ErrOutOfRange    = errors.New("address out of range")
	ErrMisaligned    = errors.New("misaligned address or length")
	ErrProtected     = errors.New("region write protected")
	ErrHardwareFault = errors.New("flash controller fault")
	ErrTimeout       = errors.New("flash controller timeout")

	ErrResponsePending = errors.New("previous response not yet collected")
)

// FlashError reports a failed flash operation and the address where it
// stopped. It matches its sentinel through errors.Is.
type FlashError struct {
	Op   string
	Addr uint32
	Err  error
}

func (e *FlashError) Error() string {
	return e.Op + " " + hex32(e.Addr) + ": " + e.Err.Error()
}

func (e *FlashError) Unwrap() error {
	return e.Err
}

func flashError(op string, addr uint32, err error) error {
	return &FlashError{Op: op, Addr: addr, Err: err}
}

// StatusOf maps an adapter error to the wire status code.
func StatusOf(err error) protocol.Status {
	switch {
	case err == nil:
		return protocol.StatusOK
	case errors.Is(err, ErrOutOfRange):
		return protocol.StatusOutOfRange
	case errors.Is(err, ErrMisaligned):
		return protocol.StatusMisaligned
	case errors.Is(err, ErrProtected):
		return protocol.StatusProtected
	case errors.Is(err, ErrTimeout):
		return protocol.StatusTimeout
	default:
		return protocol.StatusHardwareFault
	}
}

// StopAddress returns the address carried by a FlashError, or fallback.
func StopAddress(err error, fallback uint32) uint32 {
	var fe *FlashError
	if errors.As(err, &fe) {
		return fe.Addr
	}
	return fallback
}
