// Package ultrasonic implements an HC-SR04 class time-of-flight ranging sensor timed by an
// edge-triggered interrupt on the echo pin.
package ultrasonic

import (
	"context"

	"github.com/pkg/errors"

	"github.com/viam-labs/ultrasonic/components/board"
	"github.com/viam-labs/ultrasonic/components/sensor"
	"github.com/viam-labs/ultrasonic/logging"
)

// Timing defaults.
const (
	DefaultPulseWidthUs = 5
	DefaultMinEchoUs    = 50
	recoveryPulseUs     = 50
)

var _ sensor.Sensor = (*Sensor)(nil)

// Sensor is one ultrasonic module. The zero value is an uninitiated sensor; every measurement
// on it fails with ErrNotInitiated.
type Sensor struct {
	Name string

	capture         *Capture
	trigger         board.Pin
	echo            board.Pin
	unit            Unit
	onePin          bool
	triggerIdleHigh bool
	pulseWidthUs    uint32
	minEchoUs       uint32
	pollUs          uint32
	maxDistance     float64
	wait            WaitStrategy
	logger          logging.Logger
	initiated       bool
}

// An Option customizes a Sensor at Init.
type Option func(*Sensor)

// WithTriggerIdleHigh is for modules whose trigger input idles high and pulses low.
func WithTriggerIdleHigh() Option {
	return func(s *Sensor) { s.triggerIdleHigh = true }
}

// WithPulseWidth sets the trigger pulse width.
func WithPulseWidth(us uint32) Option {
	return func(s *Sensor) { s.pulseWidthUs = us }
}

// WithMinEcho sets the narrowest echo accepted as real.
func WithMinEcho(us uint32) Option {
	return func(s *Sensor) { s.minEchoUs = us }
}

// WithPollInterval sets the idle-settle poll period and the busy-wait poll period.
func WithPollInterval(us uint32) Option {
	return func(s *Sensor) { s.pollUs = us }
}

// WithWaitStrategy replaces the busy-wait completion poll.
func WithWaitStrategy(w WaitStrategy) Option {
	return func(s *Sensor) { s.wait = w }
}

// WithMaxDistance sets the default range used by Readings, in the sensor's unit.
func WithMaxDistance(d float64) Option {
	return func(s *Sensor) { s.maxDistance = d }
}

// WithLogger sets the sensor logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Sensor) { s.logger = logger }
}

// WithName names the sensor in logs.
func WithName(name string) Option {
	return func(s *Sensor) { s.Name = name }
}

// NewSensor initiates a sensor on a trigger/echo pin pair. Equal pins select one-pin mode.
func NewSensor(c *Capture, trigger, echo board.Pin, unit Unit, opts ...Option) (*Sensor, error) {
	s := &Sensor{}
	if err := s.Init(c, trigger, echo, unit, opts...); err != nil {
		return nil, err
	}
	return s, nil
}

// NewOnePinSensor initiates a sensor whose trigger and echo share one pin.
func NewOnePinSensor(c *Capture, pin board.Pin, unit Unit, opts ...Option) (*Sensor, error) {
	return NewSensor(c, pin, pin, unit, opts...)
}

// Init configures the pins and attaches the echo interrupt. The sensor is initiated only when
// every step succeeds; on failure it stays uninitiated and the error is an *InitError.
func (s *Sensor) Init(c *Capture, trigger, echo board.Pin, unit Unit, opts ...Option) error {
	if c == nil {
		return errors.New("ultrasonic: nil capture")
	}
	*s = Sensor{
		Name:         s.Name,
		capture:      c,
		trigger:      trigger,
		echo:         echo,
		unit:         unit,
		onePin:       trigger == echo,
		pulseWidthUs: DefaultPulseWidthUs,
		minEchoUs:    DefaultMinEchoUs,
		pollUs:       DefaultPollIntervalUs,
		logger:       c.logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.wait == nil {
		s.wait = BusyWait{PollUs: s.pollUs}
	}
	if s.maxDistance <= 0 {
		s.maxDistance = unit.DefaultMaxDistance()
	}
	b := c.board

	if !s.onePin {
		if err := b.SetPinMode(trigger, board.Output); err != nil {
			s.logger.Debugw("failed to set pin mode on trigger pin", "name", s.Name, "pin", trigger, "error", err)
			return &InitError{Kind: ErrPinModeFailed, Pin: trigger, Err: err}
		}
		if err := b.SetLevel(trigger, s.triggerIdleHigh); err != nil {
			return &InitError{Kind: ErrPinModeFailed, Pin: trigger, Err: err}
		}
	}

	if err := c.attach(echo); err != nil {
		s.logger.Debugw("failed to set interrupt on echo pin", "name", s.Name, "pin", echo, "error", err)
		return err
	}
	if s.onePin {
		// attaching the interrupt leaves the pin as an input; rest it as an idle output.
		if err := b.SetPinMode(trigger, board.Output); err != nil {
			return &InitError{Kind: ErrPinModeFailed, Pin: trigger, Err: err}
		}
		if err := b.SetLevel(trigger, s.triggerIdleHigh); err != nil {
			return &InitError{Kind: ErrPinModeFailed, Pin: trigger, Err: err}
		}
	}

	s.initiated = true
	s.logger.Debugw("initiated ultrasonic sensor",
		"name", s.Name, "trigger", trigger, "echo", echo, "one_pin", s.onePin, "unit", unit.String())
	return nil
}

// Initiated reports whether Init succeeded.
func (s *Sensor) Initiated() bool {
	return s.initiated
}

// Unit returns the unit distances are reported in.
func (s *Sensor) Unit() Unit {
	return s.unit
}

// OnePin reports whether trigger and echo share a pin.
func (s *Sensor) OnePin() bool {
	return s.onePin
}

// Readings measures once and reports the distance in the sensor's unit. extra may carry a
// "max_distance" overriding the configured range.
func (s *Sensor) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.initiated {
		return nil, errors.Wrapf(measureErr(ErrNotInitiated, 0), "ultrasonic sensor %q", s.Name)
	}
	maxDistance := s.maxDistance
	if v, ok := extra["max_distance"]; ok {
		d, ok := v.(float64)
		if !ok {
			return nil, errors.Errorf("ultrasonic: invalid max_distance %v", v)
		}
		maxDistance = d
	}
	timeout, err := s.timeoutFor(maxDistance)
	if err != nil {
		return nil, err
	}
	elapsed, err := s.MeasureRaw(timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "ultrasonic sensor %q", s.Name)
	}
	return map[string]interface{}{
		"distance":   s.unit.Distance(float64(elapsed)),
		"unit":       s.unit.String(),
		"elapsed_us": elapsed,
	}, nil
}

// Close releases the echo interrupt if this sensor holds it.
func (s *Sensor) Close(ctx context.Context) error {
	if !s.initiated {
		return nil
	}
	s.initiated = false
	if pin, armed := s.capture.Armed(); armed && pin == s.echo {
		return s.capture.disarm(s.echo)
	}
	return s.capture.board.SetInterrupt(s.echo, board.EdgeNone)
}
