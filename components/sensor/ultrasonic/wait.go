package ultrasonic

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/viam-labs/ultrasonic/components/board"
)

// DefaultPollIntervalUs is the busy-wait poll period.
const DefaultPollIntervalUs = 100

// A WaitStrategy waits for an armed capture to complete. It returns false once timeoutUs
// microseconds have elapsed since start on the board's counter without completion.
type WaitStrategy interface {
	Wait(c *Capture, start, timeoutUs uint32) bool
}

// BusyWait polls the capture, delaying PollUs between checks with the board's busy delay. It is
// the only strategy usable where there is no scheduler to park on.
type BusyWait struct {
	PollUs uint32
}

// Wait implements WaitStrategy.
func (w BusyWait) Wait(c *Capture, start, timeoutUs uint32) bool {
	poll := w.PollUs
	if poll == 0 {
		poll = DefaultPollIntervalUs
	}
	b := c.board
	for !c.Ended() {
		if board.Elapsed(b.Micros(), start, b.Mask()) > timeoutUs {
			return false
		}
		b.DelayMicroseconds(poll)
	}
	return true
}

// NotifyWait parks on the capture's completion signal, woken by the interrupt handler. The
// timeout runs on Clock, which must advance on its own (a real clock on hosted boards).
type NotifyWait struct {
	Clock clock.Clock
}

// Wait implements WaitStrategy.
func (w NotifyWait) Wait(c *Capture, start, timeoutUs uint32) bool {
	if c.Ended() {
		return true
	}
	clk := w.Clock
	if clk == nil {
		clk = clock.New()
	}
	b := c.board
	spent := board.Elapsed(b.Micros(), start, b.Mask())
	if spent > timeoutUs {
		return c.Ended()
	}
	timer := clk.Timer(time.Duration(timeoutUs-spent) * time.Microsecond)
	defer timer.Stop()
	for {
		select {
		case <-c.Done():
			// a late signal from an earlier cycle can arrive after reset.
			if c.Ended() {
				return true
			}
		case <-timer.C:
			return c.Ended()
		}
	}
}
