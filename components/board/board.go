// Package board defines the GPIO, interrupt and timing contract that ranging sensors are
// driven through. Implementations live in the subpackages: a simulated board for tests and
// tools, Linux adapters for the GPIO character device and periph.io, and a TinyGo adapter.
package board

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// A Pin is a GPIO number on a board.
type Pin uint8

// MaxInterruptPin bounds pins that can take part in an interrupt status mask.
const MaxInterruptPin = 31

// Bit returns the pin's bit in an interrupt status mask. Pins above MaxInterruptPin have no bit.
func (p Pin) Bit() uint32 {
	if p > MaxInterruptPin {
		return 0
	}
	return 1 << p
}

func (p Pin) String() string {
	return strconv.Itoa(int(p))
}

// ParsePin parses a decimal GPIO number.
func ParsePin(s string) (Pin, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid pin %q", s)
	}
	return Pin(n), nil
}

// PinMode is the direction of a pin.
type PinMode int

const (
	// Input disables the output driver.
	Input PinMode = iota
	// Output enables the output driver.
	Output
)

func (m PinMode) String() string {
	switch m {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("PinMode(%d)", int(m))
	}
}

// Edge selects which transitions raise an interrupt on a pin.
type Edge int

const (
	// EdgeNone disables the interrupt.
	EdgeNone Edge = iota
	// EdgeRising fires on low to high.
	EdgeRising
	// EdgeFalling fires on high to low.
	EdgeFalling
)

func (e Edge) String() string {
	switch e {
	case EdgeNone:
		return "none"
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	default:
		return fmt.Sprintf("Edge(%d)", int(e))
	}
}

// An InterruptHandler is invoked in interrupt context after the board has raised the firing
// pin's bit in its interrupt status. It must not block.
type InterruptHandler func()

// A Timebase is a free running microsecond counter plus a busy-wait delay.
type Timebase interface {
	// Micros returns the counter, already masked to Mask.
	Micros() uint32
	// Mask is the counter's wrap mask, e.g. 0xFFFFFFFF for a full 32 bit counter.
	Mask() uint32
	// DelayMicroseconds busy-waits for the given number of microseconds.
	DelayMicroseconds(us uint32)
}

// A Board is the hardware a ranging sensor is attached to.
type Board interface {
	Timebase

	// SetPinMode switches a pin between input and output.
	SetPinMode(pin Pin, mode PinMode) error
	// SetLevel drives an output pin high or low.
	SetLevel(pin Pin, high bool) error
	// Level reads the current level of a pin.
	Level(pin Pin) (bool, error)

	// AttachInterrupt registers the handler for a pin. The interrupt starts disabled.
	AttachInterrupt(pin Pin, handler InterruptHandler) error
	// SetInterrupt arms the pin's interrupt for an edge, or disables it with EdgeNone.
	SetInterrupt(pin Pin, edge Edge) error
	// InterruptStatus returns the mask of pins with a pending interrupt.
	InterruptStatus() uint32
	// ClearInterruptStatus acknowledges the pending interrupts in mask.
	ClearInterruptStatus(mask uint32)

	Close() error
}

// An EdgeTimer is a board that timestamps edges when they happen rather than when the handler
// runs. EdgeMicros returns the time of the last edge delivered on pin. The timestamps share a
// base with each other, not necessarily with Micros.
type EdgeTimer interface {
	EdgeMicros(pin Pin) uint32
}

// Elapsed returns now-since on a counter wrapping at mask.
func Elapsed(now, since, mask uint32) uint32 {
	return (now - since) & mask
}

// MaskForBits returns the wrap mask of a counter with the given width.
func MaskForBits(bits uint) uint32 {
	if bits == 0 || bits >= 32 {
		return 0xFFFFFFFF
	}
	return 1<<bits - 1
}
