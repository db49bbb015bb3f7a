// Package periph implements a board over periph.io GPIO, for any host periph supports. Pins are
// looked up by number through gpioreg, which is the BCM numbering on a Raspberry Pi.
package periph

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/viam-labs/ultrasonic/components/board"
	"github.com/viam-labs/ultrasonic/logging"
)

// edgePoll bounds how long a monitor blocks before rechecking for shutdown.
const edgePoll = 100 * time.Millisecond

var _ board.Board = (*Board)(nil)

type pin struct {
	io   gpio.PinIO
	mode atomic.Int32
	edge atomic.Int32

	// guarded by the board mutex.
	handler board.InterruptHandler
}

// Board is the host's GPIO with a system clock timebase.
type Board struct {
	*board.SystemTimebase
	logger logging.Logger
	lookup func(name string) gpio.PinIO

	mu      sync.Mutex
	pins    map[board.Pin]*pin
	pending board.PendingInterrupts
	closed  bool

	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewBoard initializes the periph host drivers and returns the host board.
func NewBoard(logger logging.Logger) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "cannot initialize periph host")
	}
	return newBoard(gpioreg.ByName, logger), nil
}

func newBoard(lookup func(string) gpio.PinIO, logger logging.Logger) *Board {
	if logger == nil {
		logger = logging.Global()
	}
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	return &Board{
		SystemTimebase: board.NewSystemTimebase(clock.New(), 32),
		logger:         logger,
		lookup:         lookup,
		pins:           map[board.Pin]*pin{},
		cancelCtx:      cancelCtx,
		cancelFunc:     cancelFunc,
	}
}

func (b *Board) pin(p board.Pin) (*pin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("board is closed")
	}
	if ps, ok := b.pins[p]; ok {
		return ps, nil
	}
	io := b.lookup(p.String())
	if io == nil {
		return nil, errors.Errorf("no gpio pin found for %q", p.String())
	}
	ps := &pin{io: io}
	ps.mode.Store(int32(board.Input))
	b.pins[p] = ps
	return ps, nil
}

func (b *Board) hasHandler(ps *pin) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ps.handler != nil
}

func (b *Board) inputEdge(ps *pin) gpio.Edge {
	if b.hasHandler(ps) {
		return gpio.BothEdges
	}
	return gpio.NoEdge
}

// SetPinMode implements board.Board.
func (b *Board) SetPinMode(p board.Pin, mode board.PinMode) error {
	ps, err := b.pin(p)
	if err != nil {
		return err
	}
	if mode == board.Output {
		if err := ps.io.Out(ps.io.Read()); err != nil {
			return errors.Wrapf(err, "cannot set pin %s as output", p)
		}
	} else if err := ps.io.In(gpio.Float, b.inputEdge(ps)); err != nil {
		return errors.Wrapf(err, "cannot set pin %s as input", p)
	}
	ps.mode.Store(int32(mode))
	return nil
}

// SetLevel implements board.Board.
func (b *Board) SetLevel(p board.Pin, high bool) error {
	ps, err := b.pin(p)
	if err != nil {
		return err
	}
	if board.PinMode(ps.mode.Load()) != board.Output {
		return errors.Errorf("pin %s is not an output", p)
	}
	l := gpio.Low
	if high {
		l = gpio.High
	}
	return ps.io.Out(l)
}

// Level implements board.Board.
func (b *Board) Level(p board.Pin) (bool, error) {
	ps, err := b.pin(p)
	if err != nil {
		return false, err
	}
	return ps.io.Read() == gpio.High, nil
}

// AttachInterrupt implements board.Board.
func (b *Board) AttachInterrupt(p board.Pin, handler board.InterruptHandler) error {
	if p > board.MaxInterruptPin {
		return errors.Errorf("pin %s cannot take an interrupt", p)
	}
	ps, err := b.pin(p)
	if err != nil {
		return err
	}
	b.mu.Lock()
	if ps.handler != nil {
		b.mu.Unlock()
		return errors.Errorf("pin %s already has an interrupt handler", p)
	}
	ps.handler = handler
	b.mu.Unlock()

	ps.edge.Store(int32(board.EdgeNone))
	if err := ps.io.In(gpio.Float, gpio.BothEdges); err != nil {
		b.mu.Lock()
		ps.handler = nil
		b.mu.Unlock()
		return errors.Wrapf(err, "cannot enable edge detection on pin %s", p)
	}
	ps.mode.Store(int32(board.Input))
	b.startMonitor(p, ps, handler)
	return nil
}

func (b *Board) startMonitor(p board.Pin, ps *pin, handler board.InterruptHandler) {
	b.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		for {
			if b.cancelCtx.Err() != nil {
				return
			}
			if board.PinMode(ps.mode.Load()) == board.Output {
				// no edge detection while driving the pin.
				if !utils.SelectContextOrWait(b.cancelCtx, time.Millisecond) {
					return
				}
				continue
			}
			if !ps.io.WaitForEdge(edgePoll) {
				continue
			}
			high := ps.io.Read() == gpio.High
			edge := board.Edge(ps.edge.Load())
			if (high && edge == board.EdgeRising) || (!high && edge == board.EdgeFalling) {
				b.pending.Raise(p)
				handler()
			}
		}
	}, b.activeBackgroundWorkers.Done)
}

// SetInterrupt implements board.Board. Edge detection stays on for both edges; the monitor drops
// the ones not asked for.
func (b *Board) SetInterrupt(p board.Pin, edge board.Edge) error {
	ps, err := b.pin(p)
	if err != nil {
		return err
	}
	if edge != board.EdgeNone && !b.hasHandler(ps) {
		return errors.Errorf("no interrupt attached to pin %s", p)
	}
	ps.edge.Store(int32(edge))
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

// Close stops the monitors and halts every pin used.
func (b *Board) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.cancelFunc()
	pins := b.pins
	b.mu.Unlock()

	b.activeBackgroundWorkers.Wait()
	var errs error
	for p, ps := range pins {
		if err := ps.io.Halt(); err != nil {
			errs = multierr.Combine(errs, errors.Wrapf(err, "cannot halt pin %s", p))
		}
	}
	return errs
}
