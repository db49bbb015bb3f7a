package periph

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/viam-labs/ultrasonic/components/board"
	"github.com/viam-labs/ultrasonic/components/sensor/ultrasonic"
	"github.com/viam-labs/ultrasonic/logging"
)

// pulsePin calls onPulse whenever it is driven from high to low.
type pulsePin struct {
	*gpiotest.Pin
	onPulse func()
}

func (p *pulsePin) Out(l gpio.Level) error {
	was := p.Pin.Read()
	if err := p.Pin.Out(l); err != nil {
		return err
	}
	if was == gpio.High && l == gpio.Low {
		p.onPulse()
	}
	return nil
}

func TestMeasureThroughMonitor(t *testing.T) {
	for _, tc := range []struct {
		name string
		wait ultrasonic.WaitStrategy
	}{
		{"busy", ultrasonic.BusyWait{PollUs: 50}},
		{"notify", ultrasonic.NotifyWait{Clock: clock.New()}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			echo := &gpiotest.Pin{N: "6", Num: 6, EdgesChan: make(chan gpio.Level, 4)}
			trigger := &pulsePin{Pin: &gpiotest.Pin{N: "5", Num: 5}}
			b := newBoard(func(name string) gpio.PinIO {
				switch name {
				case "5":
					return trigger
				case "6":
					return echo
				}
				return nil
			}, logging.NewTestLogger(t))

			risingArmed := func() bool {
				b.mu.Lock()
				ps := b.pins[6]
				b.mu.Unlock()
				return ps != nil && board.Edge(ps.edge.Load()) == board.EdgeRising
			}
			// the module answers each trigger with a 1ms echo once the rising edge is armed.
			var wg sync.WaitGroup
			trigger.onPulse = func() {
				wg.Add(1)
				go func() {
					defer wg.Done()
					deadline := time.Now().Add(time.Second)
					for !risingArmed() {
						if time.Now().After(deadline) {
							return
						}
						time.Sleep(50 * time.Microsecond)
					}
					echo.EdgesChan <- gpio.High
					time.Sleep(time.Millisecond)
					echo.EdgesChan <- gpio.Low
				}()
			}

			c := ultrasonic.NewCapture(b, logging.NewTestLogger(t))
			s, err := ultrasonic.NewSensor(c, 5, 6, ultrasonic.Microseconds, ultrasonic.WithWaitStrategy(tc.wait))
			test.That(t, err, test.ShouldBeNil)

			for i := 0; i < 2; i++ {
				elapsed, err := s.MeasureRaw(uint32(time.Second / time.Microsecond))
				test.That(t, err, test.ShouldBeNil)
				test.That(t, elapsed, test.ShouldBeGreaterThanOrEqualTo, ultrasonic.DefaultMinEchoUs)
				test.That(t, elapsed, test.ShouldBeLessThan, 500000)
				_, armed := c.Armed()
				test.That(t, armed, test.ShouldBeFalse)
				test.That(t, b.InterruptStatus(), test.ShouldEqual, 0)
			}
			wg.Wait()

			test.That(t, c.Close(), test.ShouldBeNil)
			test.That(t, b.Close(), test.ShouldBeNil)
		})
	}
}
