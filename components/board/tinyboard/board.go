//go:build tinygo

package tinyboard

import (
	"machine"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/viam-labs/ultrasonic/components/board"
)

var _ board.Board = (*Board)(nil)

// Board is the microcontroller's GPIO with the runtime clock as timebase.
type Board struct {
	*board.SystemTimebase
	handlers [board.MaxInterruptPin + 1]board.InterruptHandler
	// callbacks are built at attach time; SetInterrupt runs from handlers and must not allocate.
	callbacks [board.MaxInterruptPin + 1]func(machine.Pin)
	pending   board.PendingInterrupts
}

// NewBoard returns the board.
func NewBoard() *Board {
	return &Board{SystemTimebase: board.NewSystemTimebase(clock.New(), 32)}
}

// SetPinMode implements board.Board.
func (b *Board) SetPinMode(pin board.Pin, mode board.PinMode) error {
	m := machine.PinInput
	if mode == board.Output {
		m = machine.PinOutput
	}
	machine.Pin(pin).Configure(machine.PinConfig{Mode: m})
	return nil
}

// SetLevel implements board.Board.
func (b *Board) SetLevel(pin board.Pin, high bool) error {
	machine.Pin(pin).Set(high)
	return nil
}

// Level implements board.Board.
func (b *Board) Level(pin board.Pin) (bool, error) {
	return machine.Pin(pin).Get(), nil
}

// AttachInterrupt implements board.Board.
func (b *Board) AttachInterrupt(pin board.Pin, handler board.InterruptHandler) error {
	if pin > board.MaxInterruptPin {
		return errors.Errorf("pin %s cannot take an interrupt", pin)
	}
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinInput})
	b.handlers[pin] = handler
	b.callbacks[pin] = func(p machine.Pin) {
		b.pending.Raise(board.Pin(p))
		handler()
	}
	return nil
}

// SetInterrupt implements board.Board.
func (b *Board) SetInterrupt(pin board.Pin, edge board.Edge) error {
	if pin > board.MaxInterruptPin {
		return errors.Errorf("pin %s cannot take an interrupt", pin)
	}
	if edge == board.EdgeNone {
		return setEdge[machine.Pin, machine.PinChange, machine.Pin](machine.Pin(pin), 0, nil)
	}
	callback := b.callbacks[pin]
	if callback == nil {
		return errors.Errorf("no interrupt attached to pin %s", pin)
	}
	change := machine.PinRising
	if edge == board.EdgeFalling {
		change = machine.PinFalling
	}
	return setEdge(machine.Pin(pin), change, callback)
}

// InterruptStatus implements board.Board.
func (b *Board) InterruptStatus() uint32 {
	return b.pending.Status()
}

// ClearInterruptStatus implements board.Board.
func (b *Board) ClearInterruptStatus(mask uint32) {
	b.pending.Clear(mask)
}

// Close disables every attached interrupt.
func (b *Board) Close() error {
	for pin, handler := range b.handlers {
		if handler != nil {
			if err := machine.Pin(pin).SetInterrupt(0, nil); err != nil {
				return err
			}
		}
	}
	return nil
}
