package core

import (
	"strings"
	"testing"
)

func TestTraceRingWraps(t *testing.T) {
	var r TraceRing
	for i := 0; i < 40; i++ {
		r.Record(EvtFrame, 0xA5, uint32(i), uint32(i), 0)
	}

	events := r.Events()
	if len(events) != TraceRingSize {
		t.Fatalf("Expected %d events, got %d", TraceRingSize, len(events))
	}
	if events[0].Value1 != 8 || events[len(events)-1].Value1 != 39 {
		t.Errorf("Expected events 8..39, got %d..%d", events[0].Value1, events[len(events)-1].Value1)
	}

	var lines []string
	r.Dump(func(s string) { lines = append(lines, s) })
	if len(lines) != TraceRingSize+2 {
		t.Errorf("Expected %d dump lines, got %d", TraceRingSize+2, len(lines))
	}
	if !strings.Contains(lines[1], "FRAME") || !strings.Contains(lines[1], "op=0x000000A5") {
		t.Errorf("Unexpected dump line %q", lines[1])
	}

	r.Clear()
	if len(r.Events()) != 0 {
		t.Error("Expected empty ring after Clear")
	}
}

func TestTraceRingPartial(t *testing.T) {
	var r TraceRing
	r.Record(EvtState, 0, 1, 0, 1)
	r.Record(EvtReboot, 0, 2, 0, 0)

	events := r.Events()
	if len(events) != 2 || events[0].Kind != EvtState || events[1].Kind != EvtReboot {
		t.Errorf("Events = %+v", events)
	}
}
