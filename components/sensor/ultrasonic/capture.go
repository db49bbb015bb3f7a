package ultrasonic

import (
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/viam-labs/ultrasonic/components/board"
	"github.com/viam-labs/ultrasonic/logging"
)

const noPin = -1

// A Capture times echo pulses for every sensor attached to one board interrupt vector. At most
// one measurement is armed on it at a time.
//
// The interrupt handler and the sequencer share the capture fields only through atomics; the
// handler writes started/start then ended/end, the sequencer arms, resets, and releases the arm
// once it has read both timestamps.
type Capture struct {
	board  board.Board
	logger logging.Logger

	armedPin atomic.Int32
	start    atomic.Uint32
	started  atomic.Bool
	end      atomic.Uint32
	ended    atomic.Bool

	// edges is set when the board timestamps edges itself.
	edges board.EdgeTimer

	// echoPins is the mask of every echo pin attached to this capture.
	echoPins atomic.Uint32
	done     chan struct{}
}

// NewCapture returns the capture machinery for b.
func NewCapture(b board.Board, logger logging.Logger) *Capture {
	if logger == nil {
		logger = logging.Global()
	}
	c := &Capture{board: b, logger: logger, done: make(chan struct{}, 1)}
	if et, ok := b.(board.EdgeTimer); ok {
		c.edges = et
	}
	c.armedPin.Store(noPin)
	return c
}

// Board returns the board the capture is attached to.
func (c *Capture) Board() board.Board {
	return c.board
}

// attach wires the handler to an echo pin and adds it to the vector mask.
func (c *Capture) attach(echo board.Pin) error {
	if echo > board.MaxInterruptPin {
		return &InitError{Kind: ErrInterruptAttachFailed, Pin: echo}
	}
	if c.echoPins.Load()&echo.Bit() == 0 {
		if err := c.board.AttachInterrupt(echo, c.handleInterrupt); err != nil {
			return &InitError{Kind: ErrInterruptAttachFailed, Pin: echo, Err: err}
		}
	}
	for {
		old := c.echoPins.Load()
		if c.echoPins.CompareAndSwap(old, old|echo.Bit()) {
			return nil
		}
	}
}

// handleInterrupt is the interrupt handler shared by every attached echo pin. It runs in
// interrupt context: no blocking, no allocation, no logging.
func (c *Capture) handleInterrupt() {
	status := c.board.InterruptStatus()
	ours := status & c.echoPins.Load()
	if ours == 0 {
		return
	}
	armed := c.armedPin.Load()
	if armed == noPin || status&board.Pin(armed).Bit() == 0 {
		// one of our pins, but not the armed one: acknowledge without touching the state.
		c.board.ClearInterruptStatus(ours)
		return
	}
	pin := board.Pin(armed)
	c.board.ClearInterruptStatus(ours)

	if !c.started.Load() {
		c.start.Store(c.edgeMicros(pin))
		c.started.Store(true)
		// a failed re-arm shows up as a timeout.
		_ = c.board.SetInterrupt(pin, board.EdgeFalling)
		return
	}
	if c.ended.Load() {
		return
	}
	now := c.edgeMicros(pin)
	// the sequencer may release and re-arm as soon as ended is visible, so the interrupt is
	// disabled first and the arm is left for the sequencer to release.
	_ = c.board.SetInterrupt(pin, board.EdgeNone)
	c.end.Store(now)
	c.ended.Store(true)
	select {
	case c.done <- struct{}{}:
	default:
	}
}

func (c *Capture) edgeMicros(pin board.Pin) uint32 {
	if c.edges != nil {
		return c.edges.EdgeMicros(pin)
	}
	return c.board.Micros()
}

// tryArm claims the capture for echo. It fails when another measurement is armed.
func (c *Capture) tryArm(echo board.Pin) bool {
	return c.armedPin.CompareAndSwap(noPin, int32(echo))
}

// reset clears the timing state for a new cycle. Only valid while the caller holds the arm.
func (c *Capture) reset() {
	c.ended.Store(false)
	c.started.Store(false)
	c.start.Store(0)
	c.end.Store(0)
	select {
	case <-c.done:
	default:
	}
}

// release gives up the arm without touching the interrupt.
func (c *Capture) release(echo board.Pin) {
	c.armedPin.CompareAndSwap(int32(echo), noPin)
}

// disarm disables the echo interrupt and releases the capture.
func (c *Capture) disarm(echo board.Pin) error {
	err := c.board.SetInterrupt(echo, board.EdgeNone)
	c.release(echo)
	return err
}

// Armed returns the armed echo pin, if any.
func (c *Capture) Armed() (board.Pin, bool) {
	armed := c.armedPin.Load()
	if armed == noPin {
		return 0, false
	}
	return board.Pin(armed), true
}

// Ended reports whether the armed cycle saw both edges.
func (c *Capture) Ended() bool {
	return c.ended.Load()
}

// Done is signaled by the handler when a cycle completes.
func (c *Capture) Done() <-chan struct{} {
	return c.done
}

// CaptureState is a point-in-time copy of the capture fields.
type CaptureState struct {
	ArmedPin       int32
	StartTimestamp uint32
	Started        bool
	EndTimestamp   uint32
	Ended          bool
}

// State snapshots the capture. The fields are read individually, so a snapshot taken while an
// edge is being handled may mix cycles.
func (c *Capture) State() CaptureState {
	return CaptureState{
		ArmedPin:       c.armedPin.Load(),
		StartTimestamp: c.start.Load(),
		Started:        c.started.Load(),
		EndTimestamp:   c.end.Load(),
		Ended:          c.ended.Load(),
	}
}

// EchoPins returns the mask of attached echo pins.
func (c *Capture) EchoPins() uint32 {
	return c.echoPins.Load()
}

// Close disables the interrupt on every attached echo pin.
func (c *Capture) Close() error {
	var errs error
	mask := c.echoPins.Load()
	for p := board.Pin(0); p <= board.MaxInterruptPin; p++ {
		if mask&p.Bit() != 0 {
			errs = multierr.Combine(errs, c.board.SetInterrupt(p, board.EdgeNone))
		}
	}
	c.armedPin.Store(noPin)
	return errs
}
