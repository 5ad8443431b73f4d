package protocol

// Status is the signed result code carried in the first payload word of a
// response. Zero is success, negative values are errors.
type Status int32

const (
	StatusOK                 Status = 0
	StatusOutOfRange         Status = -1
	StatusHardwareFault      Status = -2
	StatusTimeout            Status = -3
	StatusUnsupportedCommand Status = -4
	StatusMisaligned         Status = -5
	StatusProtected          Status = -6
	StatusNotConnected       Status = -7
)

// OK reports whether the status is success.
func (s Status) OK() bool {
	return s == StatusOK
}

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "success"
	case StatusOutOfRange:
		return "address out of range"
	case StatusHardwareFault:
		return "flash controller fault"
	case StatusTimeout:
		return "flash controller timeout"
	case StatusUnsupportedCommand:
		return "unsupported command"
	case StatusMisaligned:
		return "misaligned address or length"
	case StatusProtected:
		return "region write protected"
	case StatusNotConnected:
		return "not connected"
	default:
		if s < 0 {
			return "unknown status -" + itoa(uint32(-s))
		}
		return "unknown status " + itoa(uint32(s))
	}
}

// itoa converts a uint32 to decimal without strconv
func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	pos := len(buf)
	for v > 0 {
		pos--
		buf[pos] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[pos:])
}
