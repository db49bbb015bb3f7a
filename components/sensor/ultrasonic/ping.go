package ultrasonic

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/viam-labs/ultrasonic/components/board"
)

// MeasureRaw sends one ping and returns the echo width in microseconds. It gives up once
// maxTimeoutUs microseconds have passed since the call. Failures are *MeasureError values
// wrapping one of the Err kinds, except board faults which are returned wrapped as they are.
func (s *Sensor) MeasureRaw(maxTimeoutUs uint32) (uint32, error) {
	if !s.initiated {
		return 0, measureErr(ErrNotInitiated, 0)
	}
	c := s.capture
	if !c.tryArm(s.echo) {
		return 0, measureErr(ErrBusy, 0)
	}
	b := c.board
	t0 := b.Micros()
	c.reset()
	elapsed := func() uint32 { return board.Elapsed(b.Micros(), t0, b.Mask()) }

	if s.onePin {
		if err := b.SetPinMode(s.echo, board.Input); err != nil {
			return 0, s.fault(err, "cannot switch pin to input")
		}
	}

	// idle-settle: a previous echo may still be in flight.
	for {
		high, err := b.Level(s.echo)
		if err != nil {
			return 0, s.fault(err, "cannot read echo pin")
		}
		if !high {
			break
		}
		if spent := elapsed(); spent > maxTimeoutUs {
			if err := multierr.Combine(s.recoveryPulse(), c.disarm(s.echo)); err != nil {
				s.logger.Debugw("recovery after stuck echo failed", "name", s.Name, "error", err)
			}
			s.logger.Debugw("echo pin stuck high", "name", s.Name, "elapsed_us", spent)
			return 0, measureErr(ErrEchoStuckHigh, spent)
		}
		b.DelayMicroseconds(s.pollUs)
	}

	if err := s.pulse(); err != nil {
		return 0, s.fault(err, "cannot pulse trigger pin")
	}

	if err := b.SetPinMode(s.echo, board.Input); err != nil {
		return 0, s.fault(err, "cannot switch echo pin to input")
	}
	if err := b.SetInterrupt(s.echo, board.EdgeRising); err != nil {
		return 0, s.fault(err, "cannot arm echo interrupt")
	}

	if !s.wait.Wait(c, t0, maxTimeoutUs) {
		spent := elapsed()
		if err := c.disarm(s.echo); err != nil {
			s.logger.Debugw("failed to disarm echo pin", "name", s.Name, "error", err)
		}
		return 0, measureErr(ErrTimeout, spent)
	}
	state := c.State()
	c.release(s.echo)
	return validateEcho(state.StartTimestamp, state.EndTimestamp, s.minEchoUs)
}

// validateEcho rejects an echo that ended before it started (clock wrap, or a ghost edge from an
// earlier cycle) and one narrower than minUs.
func validateEcho(start, end, minUs uint32) (uint32, error) {
	if end < start {
		return 0, measureErr(ErrSpuriousEcho, 0)
	}
	width := end - start
	if width < minUs {
		return 0, measureErr(ErrSpuriousEcho, width)
	}
	return width, nil
}

// MeasureDistance sends one ping and returns the distance in the sensor's unit. maxDistance is
// in the same unit and bounds the wait.
func (s *Sensor) MeasureDistance(maxDistance float64) (float64, error) {
	if !s.initiated {
		return 0, measureErr(ErrNotInitiated, 0)
	}
	timeout, err := s.timeoutFor(maxDistance)
	if err != nil {
		return 0, err
	}
	elapsed, err := s.MeasureRaw(timeout)
	if err != nil {
		return 0, err
	}
	return s.unit.Distance(float64(elapsed)), nil
}

// timeoutFor converts maxDistance to whole microseconds, saturating at the counter range.
func (s *Sensor) timeoutFor(maxDistance float64) (uint32, error) {
	if !(maxDistance > 0) || math.IsInf(maxDistance, 1) {
		return 0, errors.Errorf("ultrasonic: max distance must be positive and finite, got %v", maxDistance)
	}
	timeout := s.unit.Timeout(maxDistance)
	if timeout >= math.MaxUint32 {
		return math.MaxUint32, nil
	}
	return uint32(timeout), nil
}

func (s *Sensor) idleLevel() bool {
	return s.triggerIdleHigh
}

// pulse drives the trigger pin to its active level for the pulse width.
func (s *Sensor) pulse() error {
	b := s.capture.board
	if s.onePin {
		if err := b.SetPinMode(s.trigger, board.Output); err != nil {
			return err
		}
	}
	if err := b.SetLevel(s.trigger, !s.idleLevel()); err != nil {
		return err
	}
	b.DelayMicroseconds(s.pulseWidthUs)
	return b.SetLevel(s.trigger, s.idleLevel())
}

// recoveryPulse toggles the trigger idle, active, idle to wake a module whose echo is stuck.
func (s *Sensor) recoveryPulse() error {
	b := s.capture.board
	if s.onePin {
		if err := b.SetPinMode(s.trigger, board.Output); err != nil {
			return err
		}
	}
	for i, level := range []bool{s.idleLevel(), !s.idleLevel(), s.idleLevel()} {
		if i > 0 {
			b.DelayMicroseconds(recoveryPulseUs)
		}
		if err := b.SetLevel(s.trigger, level); err != nil {
			return err
		}
	}
	if s.onePin {
		return b.SetPinMode(s.echo, board.Input)
	}
	return nil
}

// fault disarms after a board error mid-sequence and wraps it.
func (s *Sensor) fault(err error, msg string) error {
	return errors.Wrapf(multierr.Combine(err, s.capture.disarm(s.echo)), "ultrasonic sensor %q: %s", s.Name, msg)
}
