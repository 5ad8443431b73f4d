package core

import "ispboot/protocol"

// Step runs one iteration of the main control loop: poll, check the
// connect window, take at most one frame, dispatch it and send exactly one
// response. It returns the state after the iteration.
func (s *Session) Step() BootState {
	if s.cfg.Poll != nil {
		s.cfg.Poll()
	}

	before := s.engine.State()
	state := s.engine.Poll()
	if state == StateActive {
		if dr, ok := s.rx.(DisconnectReporter); ok && dr.Disconnected() {
			s.engine.Disconnect()
			state = s.engine.State()
		}
	}
	if state != StateRebooting && s.rx.TryReceiveFrame(&s.req) {
		s.handle()
		state = s.engine.State()
	}

	if state != before {
		s.trace.Record(EvtState, 0, s.clock.Ticks(), uint32(before), uint32(state))
		s.debug("[ISP] " + before.String() + " -> " + state.String())
	}
	return state
}

func (s *Session) handle() {
	s.stats.Frames++
	op := s.req.Opcode()
	s.trace.Record(EvtFrame, uint8(op), s.clock.Ticks(), s.req.Address(), s.req.Length())

	s.resp = protocol.NewResponse(&s.req)
	res := s.dispatch(protocol.DecodeCommand(&s.req))

	if !res.Status.OK() {
		s.stats.Errors++
		s.trace.Record(EvtFault, uint8(op), s.clock.Ticks(), s.resp.StopAddress(), uint32(int32(res.Status)))
	}

	if err := s.rx.SendResponse(&s.resp); err != nil {
		s.stats.SendFailures++
		s.trace.Record(EvtSendFail, uint8(op), s.clock.Ticks(), s.req.Address(), 0)
		s.debug("[ISP] response for " + op.String() + " not sent: " + err.Error())
	} else {
		s.stats.Responses++
		s.trace.Record(EvtResponse, uint8(op), s.clock.Ticks(), s.resp.Length(), uint32(int32(res.Status)))
	}

	if res.Reboot {
		s.engine.RequestReboot(res.Target)
	}
}

// dispatch applies the connect gate and runs the command. A panic anywhere
// below is answered as a hardware fault so the host still gets a response.
func (s *Session) dispatch(cmd protocol.Command) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			s.stats.Panics++
			s.trace.Record(EvtPanic, uint8(cmd.Op()), s.clock.Ticks(), s.req.Address(), 0)
			s.debug("[ISP] panic in " + cmd.Op().String())
			s.resp = protocol.NewResponse(&s.req)
			s.resp.SetStatus(protocol.StatusHardwareFault, s.req.Address())
			res = Result{Status: protocol.StatusHardwareFault}
		}
	}()

	if s.engine.State() == StateWaitingForConnect {
		switch cmd.(type) {
		case protocol.Connect:
			s.engine.Connect()
		case protocol.Unsupported:
		default:
			s.stats.NotConnected++
			s.resp.SetStatus(protocol.StatusNotConnected, 0)
			return Result{Status: protocol.StatusNotConnected}
		}
	} else if _, ok := cmd.(protocol.Connect); ok {
		s.engine.Connect()
	}

	res = s.disp.Dispatch(cmd, &s.resp)
	if res.Status.OK() {
		s.engine.Touch()
	}
	return res
}

// Run drives the loop until the session ends, waits (bounded) for the host
// to collect the last response, then hands off to the boot target. On
// hardware the reset does not return; elsewhere Run returns the target.
func (s *Session) Run() BootSource {
	for s.Step() != StateRebooting {
	}
	s.flushResponse()
	s.Reboot()
	return s.engine.Target()
}

// flushResponse gives a bus-slave host time to clock out the final
// response before the reset
func (s *Session) flushResponse() {
	f, ok := s.rx.(ResponseFlusher)
	if !ok {
		return
	}
	start := s.clock.Ticks()
	for f.ResponsePending() && !elapsed(s.clock.Ticks(), start, s.cfg.FlushWindow) {
		if s.cfg.Poll != nil {
			s.cfg.Poll()
		}
	}
}

// Reboot leaves ISP: vector table to the target image, boot source
// selected at the flash controller, core reset.
func (s *Session) Reboot() {
	target := s.engine.Target()
	s.engine.RequestReboot(target)

	base := uint32(APROMBase)
	if target == BootLDROM {
		base = LDROMBase
	}
	s.trace.Record(EvtReboot, 0, s.clock.Ticks(), base, uint32(target))
	s.debug("[ISP] reboot into " + target.String())

	s.hw.Boot.SetVectorBase(base)
	s.hw.Boot.SelectBootSource(target)
	s.hw.Boot.SystemReset()
}
