package core

// DefaultConnectWindowMS is how long the bootloader waits for CONNECT
// before starting the application.
const DefaultConnectWindowMS = 300

// BootState is the ISP session state.
type BootState uint8

const (
	StateWaitingForConnect BootState = iota
	StateActive
	StateRebooting
)

func (s BootState) String() string {
	switch s {
	case StateWaitingForConnect:
		return "waiting-for-connect"
	case StateActive:
		return "active"
	case StateRebooting:
		return "rebooting"
	default:
		return "unknown"
	}
}

// BootEngine decides between staying in ISP and starting the application.
// It arms the connect window when created; if no CONNECT arrives before the
// window elapses it moves to StateRebooting with APROM as the target. Once
// Active there is no timeout: the host ends the session. StateRebooting is
// terminal.
type BootEngine struct {
	clock  Clock
	window uint32
	armed  uint32

	state        BootState
	target       BootSource
	lastActivity uint32
}

// NewBootEngine arms a connect window of window ticks.
func NewBootEngine(clock Clock, window uint32) *BootEngine {
	now := clock.Ticks()
	return &BootEngine{
		clock:        clock,
		window:       window,
		armed:        now,
		state:        StateWaitingForConnect,
		target:       BootAPROM,
		lastActivity: now,
	}
}

// Poll checks the connect window and returns the current state.
func (e *BootEngine) Poll() BootState {
	if e.state == StateWaitingForConnect && elapsed(e.clock.Ticks(), e.armed, e.window) {
		e.state = StateRebooting
		e.target = BootAPROM
	}
	return e.state
}

// Connect handles a CONNECT frame. It reports whether the session is
// active afterwards.
func (e *BootEngine) Connect() bool {
	switch e.state {
	case StateWaitingForConnect:
		e.state = StateActive
		e.Touch()
		return true
	case StateActive:
		e.Touch()
		return true
	default:
		return false
	}
}

// Touch records ISP activity.
func (e *BootEngine) Touch() {
	e.lastActivity = e.clock.Ticks()
}

// RequestReboot enters the terminal state with the given boot target.
func (e *BootEngine) RequestReboot(target BootSource) {
	if e.state == StateRebooting {
		return
	}
	e.state = StateRebooting
	e.target = target
}

// Disconnect ends an active session on a connection-oriented transport.
// The application is started, as after a connect timeout.
func (e *BootEngine) Disconnect() {
	if e.state == StateActive {
		e.RequestReboot(BootAPROM)
	}
}

// State returns the current state without checking the window.
func (e *BootEngine) State() BootState {
	return e.state
}

// Target returns the image to boot once StateRebooting is reached.
func (e *BootEngine) Target() BootSource {
	return e.target
}
