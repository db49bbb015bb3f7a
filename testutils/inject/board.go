// Package inject provides a board whose methods can be replaced per test.
package inject

import (
	"sync"

	"github.com/viam-labs/ultrasonic/components/board"
)

// Board is an injected board. Every method calls its Func field when set and the embedded board
// otherwise.
type Board struct {
	board.Board
	MicrosFunc               func() uint32
	MaskFunc                 func() uint32
	DelayMicrosecondsFunc    func(us uint32)
	SetPinModeFunc           func(pin board.Pin, mode board.PinMode) error
	SetLevelFunc             func(pin board.Pin, high bool) error
	LevelFunc                func(pin board.Pin) (bool, error)
	AttachInterruptFunc      func(pin board.Pin, handler board.InterruptHandler) error
	SetInterruptFunc         func(pin board.Pin, edge board.Edge) error
	InterruptStatusFunc      func() uint32
	ClearInterruptStatusFunc func(mask uint32)
	CloseFunc                func() error

	mu              sync.Mutex
	setInterruptCap []interface{}
}

// NewBoard returns an injected board falling back to b.
func NewBoard(b board.Board) *Board {
	return &Board{Board: b}
}

// Micros calls the injected Micros or the real version.
func (b *Board) Micros() uint32 {
	if b.MicrosFunc == nil {
		return b.Board.Micros()
	}
	return b.MicrosFunc()
}

// Mask calls the injected Mask or the real version.
func (b *Board) Mask() uint32 {
	if b.MaskFunc == nil {
		return b.Board.Mask()
	}
	return b.MaskFunc()
}

// DelayMicroseconds calls the injected DelayMicroseconds or the real version.
func (b *Board) DelayMicroseconds(us uint32) {
	if b.DelayMicrosecondsFunc == nil {
		b.Board.DelayMicroseconds(us)
		return
	}
	b.DelayMicrosecondsFunc(us)
}

// SetPinMode calls the injected SetPinMode or the real version.
func (b *Board) SetPinMode(pin board.Pin, mode board.PinMode) error {
	if b.SetPinModeFunc == nil {
		return b.Board.SetPinMode(pin, mode)
	}
	return b.SetPinModeFunc(pin, mode)
}

// SetLevel calls the injected SetLevel or the real version.
func (b *Board) SetLevel(pin board.Pin, high bool) error {
	if b.SetLevelFunc == nil {
		return b.Board.SetLevel(pin, high)
	}
	return b.SetLevelFunc(pin, high)
}

// Level calls the injected Level or the real version.
func (b *Board) Level(pin board.Pin) (bool, error) {
	if b.LevelFunc == nil {
		return b.Board.Level(pin)
	}
	return b.LevelFunc(pin)
}

// AttachInterrupt calls the injected AttachInterrupt or the real version.
func (b *Board) AttachInterrupt(pin board.Pin, handler board.InterruptHandler) error {
	if b.AttachInterruptFunc == nil {
		return b.Board.AttachInterrupt(pin, handler)
	}
	return b.AttachInterruptFunc(pin, handler)
}

// SetInterrupt calls the injected SetInterrupt or the real version.
func (b *Board) SetInterrupt(pin board.Pin, edge board.Edge) error {
	b.mu.Lock()
	b.setInterruptCap = []interface{}{pin, edge}
	b.mu.Unlock()
	if b.SetInterruptFunc == nil {
		return b.Board.SetInterrupt(pin, edge)
	}
	return b.SetInterruptFunc(pin, edge)
}

// SetInterruptCap returns the last parameters received by SetInterrupt, and then clears them.
func (b *Board) SetInterruptCap() []interface{} {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	defer func() { b.setInterruptCap = nil }()
	return b.setInterruptCap
}

// InterruptStatus calls the injected InterruptStatus or the real version.
func (b *Board) InterruptStatus() uint32 {
	if b.InterruptStatusFunc == nil {
		return b.Board.InterruptStatus()
	}
	return b.InterruptStatusFunc()
}

// ClearInterruptStatus calls the injected ClearInterruptStatus or the real version.
func (b *Board) ClearInterruptStatus(mask uint32) {
	if b.ClearInterruptStatusFunc == nil {
		b.Board.ClearInterruptStatus(mask)
		return
	}
	b.ClearInterruptStatusFunc(mask)
}

// Close calls the injected Close or the real version.
func (b *Board) Close() error {
	if b.CloseFunc == nil {
		if b.Board == nil {
			return nil
		}
		return b.Board.Close()
	}
	return b.CloseFunc()
}
