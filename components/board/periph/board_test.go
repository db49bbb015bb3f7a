package periph

import (
	"sync"
	"testing"
	"time"

	"go.viam.com/test"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/viam-labs/ultrasonic/components/board"
	"github.com/viam-labs/ultrasonic/logging"
)

func newTestBoard(t *testing.T) (*Board, map[string]*gpiotest.Pin) {
	t.Helper()
	pins := map[string]*gpiotest.Pin{
		"5": {N: "5", Num: 5},
		"6": {N: "6", Num: 6, EdgesChan: make(chan gpio.Level, 4)},
	}
	b := newBoard(func(name string) gpio.PinIO {
		if p, ok := pins[name]; ok {
			return p
		}
		return nil
	}, logging.NewTestLogger(t))
	t.Cleanup(func() {
		test.That(t, b.Close(), test.ShouldBeNil)
	})
	return b, pins
}

func TestPins(t *testing.T) {
	b, pins := newTestBoard(t)

	test.That(t, b.SetLevel(5, true), test.ShouldNotBeNil)
	test.That(t, b.SetPinMode(5, board.Output), test.ShouldBeNil)
	test.That(t, b.SetLevel(5, true), test.ShouldBeNil)
	test.That(t, pins["5"].Read(), test.ShouldEqual, gpio.High)
	high, err := b.Level(5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, high, test.ShouldBeTrue)

	_, err = b.Level(12)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, b.AttachInterrupt(40, func() {}), test.ShouldNotBeNil)
	test.That(t, b.SetInterrupt(5, board.EdgeRising), test.ShouldNotBeNil)
}

func TestInterrupts(t *testing.T) {
	b, pins := newTestBoard(t)
	fired := make(chan uint32, 4)
	test.That(t, b.AttachInterrupt(6, func() {
		status := b.InterruptStatus()
		b.ClearInterruptStatus(board.Pin(6).Bit())
		fired <- status
	}), test.ShouldBeNil)

	// only the falling edge is reported.
	test.That(t, b.SetInterrupt(6, board.EdgeFalling), test.ShouldBeNil)
	pins["6"].EdgesChan <- gpio.High
	pins["6"].EdgesChan <- gpio.Low

	select {
	case status := <-fired:
		test.That(t, status, test.ShouldEqual, board.Pin(6).Bit())
	case <-time.After(5 * time.Second):
		t.Fatal("interrupt never fired")
	}
	test.That(t, b.InterruptStatus(), test.ShouldEqual, 0)
	test.That(t, len(fired), test.ShouldEqual, 0)
}

func TestAttachWhileSwitchingMode(t *testing.T) {
	b, _ := newTestBoard(t)
	var wg sync.WaitGroup
	var modeErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100 && modeErr == nil; i++ {
			modeErr = b.SetPinMode(6, board.Input)
		}
	}()
	test.That(t, b.AttachInterrupt(6, func() {}), test.ShouldBeNil)
	wg.Wait()
	test.That(t, modeErr, test.ShouldBeNil)
	test.That(t, b.AttachInterrupt(6, func() {}), test.ShouldNotBeNil)
	test.That(t, b.SetInterrupt(6, board.EdgeRising), test.ShouldBeNil)
}
