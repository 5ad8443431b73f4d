package core

// TickFreq is the rate of the free-running tick counter. Ticks are
// microseconds and wrap after about 71 minutes; every comparison uses
// wrapping uint32 arithmetic.
const TickFreq = 1000000

// Clock is a free-running tick counter.
type Clock interface {
	Ticks() uint32
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() uint32

func (f ClockFunc) Ticks() uint32 {
	return f()
}

// SystemClock reads the platform tick counter.
type SystemClock struct{}

func (SystemClock) Ticks() uint32 {
	return GetTime()
}

// GetTime returns the current system time in ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// TicksFromMS converts milliseconds to ticks
func TicksFromMS(ms uint32) uint32 {
	return ms * (TickFreq / 1000)
}

// elapsed reports whether at least window ticks have passed since start
func elapsed(now, start, window uint32) bool {
	return now-start >= window
}
