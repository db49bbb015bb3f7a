// Package genericlinux implements a board over the Linux GPIO character device
// (/dev/gpiochipN), indirectly by way of mkch's gpio package. Pins are line offsets on the chip.
package genericlinux

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/viam-labs/ultrasonic/components/board"
	"github.com/viam-labs/ultrasonic/logging"
)

// DefaultChip is the GPIO character device used when none is given.
const DefaultChip = "/dev/gpiochip0"

const consumer = "ultrasonic"

var (
	_ board.Board     = (*Board)(nil)
	_ board.EdgeTimer = (*Board)(nil)
)

// Board is a GPIO chip with a system clock timebase.
type Board struct {
	*board.SystemTimebase
	devicePath string
	logger     logging.Logger

	mu      sync.Mutex
	lines   map[board.Pin]*gpioLine
	pending board.PendingInterrupts
	closed  bool

	// kernel timestamps of the last delivered edge per pin.
	edgeTimes [board.MaxInterruptPin + 1]atomic.Uint32

	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewBoard returns a board over the GPIO chip at devicePath.
func NewBoard(devicePath string, logger logging.Logger) (*Board, error) {
	if devicePath == "" {
		devicePath = DefaultChip
	}
	if logger == nil {
		logger = logging.Global()
	}
	if err := checkChip(devicePath); err != nil {
		return nil, errors.Wrapf(err, "cannot open gpio chip %q", devicePath)
	}
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	return &Board{
		SystemTimebase: board.NewSystemTimebase(clock.New(), 32),
		devicePath:     devicePath,
		logger:         logger,
		lines:          map[board.Pin]*gpioLine{},
		cancelCtx:      cancelCtx,
		cancelFunc:     cancelFunc,
	}, nil
}

func (b *Board) line(pin board.Pin) (*gpioLine, error) {
	if b.closed {
		return nil, errors.New("board is closed")
	}
	l, ok := b.lines[pin]
	if !ok {
		l = &gpioLine{b: b, pin: pin, devicePath: b.devicePath}
		b.lines[pin] = l
	}
	return l, nil
}

// SetPinMode implements board.Board.
func (b *Board) SetPinMode(pin board.Pin, mode board.PinMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, err := b.line(pin)
	if err != nil {
		return err
	}
	return l.setMode(mode)
}

// SetLevel implements board.Board.
func (b *Board) SetLevel(pin board.Pin, high bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, err := b.line(pin)
	if err != nil {
		return err
	}
	return l.set(high)
}

// Level implements board.Board.
func (b *Board) Level(pin board.Pin) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, err := b.line(pin)
	if err != nil {
		return false, err
	}
	return l.get()
}

// AttachInterrupt implements board.Board. The line is reopened as an input with edge events.
func (b *Board) AttachInterrupt(pin board.Pin, handler board.InterruptHandler) error {
	if pin > board.MaxInterruptPin {
		return errors.Errorf("pin %s cannot take an interrupt", pin)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	l, err := b.line(pin)
	if err != nil {
		return err
	}
	l.handler = handler
	l.edge.Store(int32(board.EdgeNone))
	return l.openInput()
}

// SetInterrupt implements board.Board. The kernel reports both edges; the monitor drops the ones
// not asked for.
func (b *Board) SetInterrupt(pin board.Pin, edge board.Edge) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, err := b.line(pin)
	if err != nil {
		return err
	}
	if l.handler == nil && edge != board.EdgeNone {
		return errors.Errorf("no interrupt attached to pin %s", pin)
	}
	l.edge.Store(int32(edge))
	return nil
}

// InterruptStatus implements board.Board.
func (b *Board) InterruptStatus() uint32 {
	return b.pending.Status()
}

// ClearInterruptStatus implements board.Board.
func (b *Board) ClearInterruptStatus(mask uint32) {
	b.pending.Clear(mask)
}

// Close stops every monitor and releases every line.
func (b *Board) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.cancelFunc()
	var errs error
	for _, l := range b.lines {
		errs = multierr.Combine(errs, l.close())
	}
	b.mu.Unlock()
	b.activeBackgroundWorkers.Wait()
	return errs
}

// eventMicros converts a line event's kernel timestamp to a wrapping microsecond count.
func eventMicros(t time.Time) uint32 {
	return uint32(t.UnixNano() / int64(time.Microsecond))
}

func (b *Board) stampEdge(p board.Pin, t time.Time) {
	if p > board.MaxInterruptPin {
		return
	}
	if t.IsZero() {
		b.edgeTimes[p].Store(b.Micros())
		return
	}
	b.edgeTimes[p].Store(eventMicros(t))
}

// EdgeMicros implements board.EdgeTimer with the kernel's event timestamps.
func (b *Board) EdgeMicros(p board.Pin) uint32 {
	if p > board.MaxInterruptPin {
		return b.Micros()
	}
	return b.edgeTimes[p].Load()
}
