package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TraceEvent captures one ISP event for post-mortem analysis.
type TraceEvent struct {
	Kind   uint8
	Op     uint8  // low byte of the opcode, when relevant
	Clock  uint32 // ticks at the event
	Value1 uint32 // usually an address
	Value2 uint32 // status, length or state
}

// Event kinds
const (
	EvtFrame    = 1 // command frame taken from the receiver
	EvtResponse = 2 // response handed to the receiver
	EvtState    = 3 // boot state change
	EvtFault    = 4 // command finished with an error status
	EvtSendFail = 5 // receiver refused the response
	EvtPanic    = 6 // dispatch panicked
	EvtReboot   = 7 // leaving ISP
)

const (
	TraceRingSize = 32 // Keep last 32 events for post-mortem
)

// TraceRing is a fixed-size ring of the most recent events. It is owned by
// the main loop and never allocates.
type TraceRing struct {
	events [TraceRingSize]TraceEvent
	head   uint8
	count  uint8
}

// Record appends an event, overwriting the oldest when full.
func (r *TraceRing) Record(kind, op uint8, clock, value1, value2 uint32) {
	r.events[r.head] = TraceEvent{
		Kind:   kind,
		Op:     op,
		Clock:  clock,
		Value1: value1,
		Value2: value2,
	}
	r.head = (r.head + 1) % TraceRingSize
	if r.count < TraceRingSize {
		r.count++
	}
}

// Events returns the recorded events, oldest first.
func (r *TraceRing) Events() []TraceEvent {
	out := make([]TraceEvent, 0, r.count)
	start := (r.head + TraceRingSize - r.count) % TraceRingSize
	for i := uint8(0); i < r.count; i++ {
		out = append(out, r.events[(start+i)%TraceRingSize])
	}
	return out
}

// Clear empties the ring.
func (r *TraceRing) Clear() {
	*r = TraceRing{}
}

// Dump writes the ring to w, oldest first.
func (r *TraceRing) Dump(w DebugWriter) {
	if w == nil {
		return
	}

	w("[TRACE] === Trace Ring Dump ===")
	for _, evt := range r.Events() {
		var name string
		switch evt.Kind {
		case EvtFrame:
			name = "FRAME"
		case EvtResponse:
			name = "RESPONSE"
		case EvtState:
			name = "STATE"
		case EvtFault:
			name = "FAULT!"
		case EvtSendFail:
			name = "SEND_FAIL!"
		case EvtPanic:
			name = "PANIC!"
		case EvtReboot:
			name = "REBOOT"
		default:
			name = "UNKNOWN"
		}

		w("[TRACE] " + name +
			" op=" + hex32(uint32(evt.Op)) +
			" clock=" + itoa(int(evt.Clock)) +
			" v1=" + hex32(evt.Value1) +
			" v2=" + itoa(int(int32(evt.Value2))))
	}
	w("[TRACE] === End Dump ===")
}
