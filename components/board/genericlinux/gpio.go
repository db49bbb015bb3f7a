//go:build linux

package genericlinux

import (
	"github.com/mkch/gpio"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/utils"

	"github.com/viam-labs/ultrasonic/components/board"
)

// gpioLine is one line on the chip, open either as an output or as an input with events. All
// fields but edge are guarded by the board mutex.
type gpioLine struct {
	b          *Board
	pin        board.Pin
	devicePath string

	mode    board.PinMode
	level   bool
	out     *gpio.Line
	in      *gpio.LineWithEvent
	stop    func()
	handler board.InterruptHandler
	edge    atomic.Int32
}

func checkChip(devicePath string) error {
	chip, err := gpio.OpenChip(devicePath)
	if err != nil {
		return err
	}
	return chip.Close()
}

func value(high bool) byte {
	if high {
		return 1
	}
	return 0
}

func (l *gpioLine) setMode(mode board.PinMode) error {
	if mode == board.Output {
		return l.openOutput()
	}
	return l.openInput()
}

func (l *gpioLine) openOutput() error {
	if l.out != nil {
		return nil
	}
	if err := l.close(); err != nil {
		return err
	}
	chip, err := gpio.OpenChip(l.devicePath)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(chip.Close)

	line, err := chip.OpenLine(uint32(l.pin), value(l.level), gpio.Output, consumer)
	if err != nil {
		return errors.Wrapf(err, "cannot open line %s as output", l.pin)
	}
	l.out = line
	l.mode = board.Output
	return nil
}

func (l *gpioLine) openInput() error {
	if l.in != nil {
		if l.handler != nil && l.stop == nil {
			l.startMonitor()
		}
		return nil
	}
	if err := l.close(); err != nil {
		return err
	}
	chip, err := gpio.OpenChip(l.devicePath)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(chip.Close)

	line, err := chip.OpenLineWithEvents(uint32(l.pin), gpio.Input, gpio.BothEdges, consumer)
	if err != nil {
		return errors.Wrapf(err, "cannot open line %s as input", l.pin)
	}
	l.in = line
	l.mode = board.Input
	if l.handler != nil {
		l.startMonitor()
	}
	return nil
}

func (l *gpioLine) set(high bool) error {
	if l.out == nil {
		return errors.Errorf("pin %s is not an output", l.pin)
	}
	if err := l.out.SetValue(value(high)); err != nil {
		return err
	}
	l.level = high
	return nil
}

func (l *gpioLine) get() (bool, error) {
	var (
		v   byte
		err error
	)
	switch {
	case l.in != nil:
		v, err = l.in.Value()
	case l.out != nil:
		v, err = l.out.Value()
	default:
		if err := l.openInput(); err != nil {
			return false, err
		}
		v, err = l.in.Value()
	}
	if err != nil {
		return false, err
	}
	// We'd expect value to be either 0 or 1, but any non-zero value should be considered high.
	return v != 0, nil
}

func (l *gpioLine) close() error {
	if l.stop != nil {
		l.stop()
		l.stop = nil
	}
	var err error
	if l.in != nil {
		err = l.in.Close()
		l.in = nil
	}
	if l.out != nil {
		err = l.out.Close()
		l.out = nil
	}
	return err
}
