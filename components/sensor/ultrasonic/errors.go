package ultrasonic

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/viam-labs/ultrasonic/components/board"
)

// Error kinds. Measurement failures are expected operating conditions for this sensor class and
// are returned wrapped in a *MeasureError carrying the elapsed time observed.
var (
	ErrNotInitiated          = errors.New("sensor not initiated")
	ErrBusy                  = errors.New("another measurement is already armed")
	ErrEchoStuckHigh         = errors.New("echo pin never returned low")
	ErrTimeout               = errors.New("no echo before timeout")
	ErrSpuriousEcho          = errors.New("implausible echo discarded")
	ErrPinModeFailed         = errors.New("failed to set pin mode")
	ErrInterruptAttachFailed = errors.New("failed to attach interrupt")
)

// MeasureError is a failed measurement.
type MeasureError struct {
	Kind error
	// Elapsed is the time observed before giving up, in microseconds. For a spurious echo it is
	// the rejected width, or 0 when the echo ended before it started.
	Elapsed uint32
}

func (e *MeasureError) Error() string {
	return fmt.Sprintf("%s (elapsed %dus)", e.Kind, e.Elapsed)
}

func (e *MeasureError) Unwrap() error {
	return e.Kind
}

func measureErr(kind error, elapsed uint32) error {
	return &MeasureError{Kind: kind, Elapsed: elapsed}
}

// ElapsedFrom extracts the diagnostic elapsed time from a measurement error.
func ElapsedFrom(err error) (uint32, bool) {
	var me *MeasureError
	if errors.As(err, &me) {
		return me.Elapsed, true
	}
	return 0, false
}

// InitError is a configuration-time hardware failure.
type InitError struct {
	Kind error
	Pin  board.Pin
	Err  error
}

func (e *InitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s on pin %s", e.Kind, e.Pin)
	}
	return fmt.Sprintf("%s on pin %s: %s", e.Kind, e.Pin, e.Err)
}

func (e *InitError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
