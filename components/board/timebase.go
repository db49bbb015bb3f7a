package board

import (
	"runtime"
	"time"

	"github.com/benbjohnson/clock"
)

// SystemTimebase is a Timebase over a clock.Clock, counting microseconds since it was created.
type SystemTimebase struct {
	clock clock.Clock
	epoch time.Time
	mask  uint32
}

// NewSystemTimebase returns a timebase counting from now on clk with a counter of the given
// bit width (0 means 32).
func NewSystemTimebase(clk clock.Clock, bits uint) *SystemTimebase {
	if clk == nil {
		clk = clock.New()
	}
	return &SystemTimebase{clock: clk, epoch: clk.Now(), mask: MaskForBits(bits)}
}

// Clock returns the underlying clock.
func (tb *SystemTimebase) Clock() clock.Clock {
	return tb.clock
}

// Micros returns microseconds since the timebase was created, masked.
func (tb *SystemTimebase) Micros() uint32 {
	return uint32(tb.clock.Since(tb.epoch)/time.Microsecond) & tb.mask
}

// Mask returns the counter's wrap mask.
func (tb *SystemTimebase) Mask() uint32 {
	return tb.mask
}

// DelayMicroseconds spins until us microseconds have passed. A mock clock is advanced instead.
func (tb *SystemTimebase) DelayMicroseconds(us uint32) {
	d := time.Duration(us) * time.Microsecond
	if mock, ok := tb.clock.(*clock.Mock); ok {
		mock.Add(d)
		return
	}
	start := tb.clock.Now()
	for tb.clock.Since(start) < d {
		runtime.Gosched()
	}
}
