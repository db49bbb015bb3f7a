package ultrasonic

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"go.viam.com/test"

	"github.com/viam-labs/ultrasonic/components/board"
	"github.com/viam-labs/ultrasonic/components/board/fake"
	"github.com/viam-labs/ultrasonic/logging"
	"github.com/viam-labs/ultrasonic/testutils/inject"
)

// newRealtimeBoard wraps a fake board with the system clock and delivers echo edges from another
// goroutine, the way hosted adapters do.
func newRealtimeBoard(t *testing.T, width time.Duration) (*inject.Board, *atomic.Bool, *sync.WaitGroup) {
	t.Helper()
	fb := fake.NewBoard()
	tb := board.NewSystemTimebase(clock.New(), 32)
	ib := inject.NewBoard(fb)
	ib.MicrosFunc = tb.Micros
	ib.MaskFunc = tb.Mask
	ib.DelayMicrosecondsFunc = tb.DelayMicroseconds

	echoing := atomic.NewBool(true)
	var wg sync.WaitGroup
	ib.SetInterruptFunc = func(pin board.Pin, edge board.Edge) error {
		if err := fb.SetInterrupt(pin, edge); err != nil {
			return err
		}
		if edge == board.EdgeRising && echoing.Load() {
			wg.Add(1)
			go func() {
				defer wg.Done()
				time.Sleep(500 * time.Microsecond)
				fb.FireInterrupt(pin)
				time.Sleep(width)
				fb.FireInterrupt(pin)
			}()
		}
		return nil
	}
	return ib, echoing, &wg
}

func TestWaitStrategies(t *testing.T) {
	for _, tc := range []struct {
		name string
		wait WaitStrategy
	}{
		{"busy", BusyWait{PollUs: 50}},
		{"notify", NotifyWait{Clock: clock.New()}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ib, echoing, wg := newRealtimeBoard(t, 2*time.Millisecond)
			c := NewCapture(ib, logging.NewTestLogger(t))
			s, err := NewSensor(c, triggerPin, echoPin, Microseconds, WithWaitStrategy(tc.wait))
			test.That(t, err, test.ShouldBeNil)

			elapsed, err := s.MeasureRaw(uint32(time.Second / time.Microsecond))
			wg.Wait()
			test.That(t, err, test.ShouldBeNil)
			test.That(t, elapsed, test.ShouldBeGreaterThanOrEqualTo, 2000)
			test.That(t, elapsed, test.ShouldBeLessThan, 500000)

			echoing.Store(false)
			_, err = s.MeasureRaw(3000)
			test.That(t, expectKind(t, err, ErrTimeout), test.ShouldBeGreaterThanOrEqualTo, 3000)
			_, armed := c.Armed()
			test.That(t, armed, test.ShouldBeFalse)
		})
	}
}

func TestNotifyWaitAlreadyEnded(t *testing.T) {
	fb := fake.NewBoard()
	c := NewCapture(fb, logging.NewTestLogger(t))
	c.ended.Store(true)
	test.That(t, NotifyWait{}.Wait(c, 0, 0), test.ShouldBeTrue)

	c.ended.Store(false)
	fb.Advance(100)
	test.That(t, NotifyWait{}.Wait(c, 0, 50), test.ShouldBeFalse)
}

func TestSlowHandlerDisable(t *testing.T) {
	for _, tc := range []struct {
		name string
		wait WaitStrategy
	}{
		{"busy", BusyWait{PollUs: 50}},
		{"notify", NotifyWait{Clock: clock.New()}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ib, _, wg := newRealtimeBoard(t, time.Millisecond)
			setInterrupt := ib.SetInterruptFunc
			// the handler's disable lands late, as on an adapter that talks to the kernel.
			ib.SetInterruptFunc = func(pin board.Pin, edge board.Edge) error {
				if edge == board.EdgeNone {
					time.Sleep(20 * time.Millisecond)
				}
				return setInterrupt(pin, edge)
			}
			c := NewCapture(ib, logging.NewTestLogger(t))
			s, err := NewSensor(c, triggerPin, echoPin, Microseconds, WithWaitStrategy(tc.wait))
			test.That(t, err, test.ShouldBeNil)

			for i := 0; i < 3; i++ {
				elapsed, err := s.MeasureRaw(uint32(time.Second / time.Microsecond))
				test.That(t, err, test.ShouldBeNil)
				test.That(t, elapsed, test.ShouldBeGreaterThanOrEqualTo, DefaultMinEchoUs)
				_, armed := c.Armed()
				test.That(t, armed, test.ShouldBeFalse)
			}
			wg.Wait()
		})
	}
}

func TestNotifyWaitStaleSignal(t *testing.T) {
	fb := fake.NewBoard()
	c := NewCapture(fb, logging.NewTestLogger(t))
	c.done <- struct{}{}
	test.That(t, NotifyWait{Clock: clock.New()}.Wait(c, 0, 2000), test.ShouldBeFalse)
	test.That(t, len(c.done), test.ShouldEqual, 0)
}
