package ultrasonic

import (
	"math"

	"github.com/benbjohnson/clock"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	rdkutils "go.viam.com/utils"

	"github.com/viam-labs/ultrasonic/components/board"
	"github.com/viam-labs/ultrasonic/logging"
)

// Wait strategy names.
const (
	WaitBusy   = "busy"
	WaitNotify = "notify"
)

// Config is used for converting config attributes.
type Config struct {
	TriggerPin      string  `json:"trigger_pin"`
	EchoPin         string  `json:"echo_pin,omitempty"`
	Unit            string  `json:"unit,omitempty"`
	MaxDistance     float64 `json:"max_distance,omitempty"`
	TriggerIdleHigh bool    `json:"trigger_idle_high,omitempty"`
	PulseWidthUs    uint32  `json:"pulse_width_us,omitempty"`
	MinEchoUs       uint32  `json:"min_echo_us,omitempty"`
	PollIntervalUs  uint32  `json:"poll_interval_us,omitempty"`
	Wait            string  `json:"wait,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) ([]string, error) {
	if len(conf.TriggerPin) == 0 {
		return nil, rdkutils.NewConfigValidationFieldRequiredError(path, "trigger_pin")
	}
	if _, err := board.ParsePin(conf.TriggerPin); err != nil {
		return nil, rdkutils.NewConfigValidationError(path, err)
	}
	if conf.EchoPin != "" {
		echo, err := board.ParsePin(conf.EchoPin)
		if err != nil {
			return nil, rdkutils.NewConfigValidationError(path, err)
		}
		if echo > board.MaxInterruptPin {
			return nil, rdkutils.NewConfigValidationError(path,
				errors.Errorf("echo pin %s cannot take an interrupt, must be at most %d", echo, board.MaxInterruptPin))
		}
	}
	if _, err := ParseUnit(conf.Unit); err != nil {
		return nil, rdkutils.NewConfigValidationError(path, err)
	}
	if conf.MaxDistance < 0 || math.IsNaN(conf.MaxDistance) || math.IsInf(conf.MaxDistance, 0) {
		return nil, rdkutils.NewConfigValidationError(path, errors.New("max_distance must be a finite non-negative number"))
	}
	switch conf.Wait {
	case "", WaitBusy, WaitNotify:
	default:
		return nil, rdkutils.NewConfigValidationError(path, errors.Errorf("unknown wait strategy %q", conf.Wait))
	}
	return nil, nil
}

// Pins returns the trigger and echo pins. Without an echo pin the sensor runs in one-pin mode.
func (conf *Config) Pins() (trigger, echo board.Pin, err error) {
	trigger, err = board.ParsePin(conf.TriggerPin)
	if err != nil {
		return 0, 0, err
	}
	if conf.EchoPin == "" {
		return trigger, trigger, nil
	}
	echo, err = board.ParsePin(conf.EchoPin)
	return trigger, echo, err
}

// ConfigFromAttributes decodes a loosely typed attribute map, e.g. parsed JSON, into a Config.
// Numeric pins are accepted.
func ConfigFromAttributes(attributes map[string]interface{}) (*Config, error) {
	var conf Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &conf,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, errors.Wrap(err, "ultrasonic: cannot decode attributes")
	}
	return &conf, nil
}

// FromConfig initiates a named sensor on c from its configuration.
func FromConfig(c *Capture, name string, conf *Config, logger logging.Logger) (*Sensor, error) {
	if _, err := conf.Validate(name); err != nil {
		return nil, err
	}
	trigger, echo, err := conf.Pins()
	if err != nil {
		return nil, err
	}
	unit, err := ParseUnit(conf.Unit)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = c.logger
	}
	opts := []Option{WithName(name), WithLogger(logger)}
	if conf.TriggerIdleHigh {
		opts = append(opts, WithTriggerIdleHigh())
	}
	if conf.PulseWidthUs > 0 {
		opts = append(opts, WithPulseWidth(conf.PulseWidthUs))
	}
	if conf.MinEchoUs > 0 {
		opts = append(opts, WithMinEcho(conf.MinEchoUs))
	}
	if conf.PollIntervalUs > 0 {
		opts = append(opts, WithPollInterval(conf.PollIntervalUs))
	}
	if conf.MaxDistance > 0 {
		opts = append(opts, WithMaxDistance(conf.MaxDistance))
	}
	if conf.Wait == WaitNotify {
		opts = append(opts, WithWaitStrategy(NotifyWait{Clock: clock.New()}))
	}
	return NewSensor(c, trigger, echo, unit, opts...)
}
