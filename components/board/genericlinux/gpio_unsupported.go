//go:build !linux

package genericlinux

import (
	"github.com/pkg/errors"

	"github.com/viam-labs/ultrasonic/components/board"
)

// gpioLine is implemented in the Linux version. The methods here only exist to get things to
// compile on non-Linux environments.
type gpioLine struct {
	b          *Board
	pin        board.Pin
	devicePath string
	handler    board.InterruptHandler
	edge       edgeValue
}

type edgeValue struct{}

func (edgeValue) Store(int32) {}

var errUnsupported = errors.New("gpio character devices are only available on linux")

func checkChip(string) error { return errUnsupported }

func (l *gpioLine) setMode(board.PinMode) error { return errUnsupported }
func (l *gpioLine) openInput() error            { return errUnsupported }
func (l *gpioLine) set(bool) error              { return errUnsupported }
func (l *gpioLine) get() (bool, error)          { return false, errUnsupported }
func (l *gpioLine) close() error                { return nil }
