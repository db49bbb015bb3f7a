package ultrasonic

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/viam-labs/ultrasonic/components/board"
	"github.com/viam-labs/ultrasonic/components/board/fake"
	"github.com/viam-labs/ultrasonic/logging"
)

func TestValidate(t *testing.T) {
	conf := &Config{}
	_, err := conf.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "trigger_pin")

	conf.TriggerPin = "some-pin"
	_, err = conf.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)

	conf.TriggerPin = "5"
	_, err = conf.Validate("path")
	test.That(t, err, test.ShouldBeNil)

	for _, bad := range []Config{
		{TriggerPin: "5", EchoPin: "40"},
		{TriggerPin: "5", EchoPin: "x"},
		{TriggerPin: "5", Unit: "furlongs"},
		{TriggerPin: "5", MaxDistance: -1},
		{TriggerPin: "5", MaxDistance: math.NaN()},
		{TriggerPin: "5", MaxDistance: math.Inf(1)},
		{TriggerPin: "5", Wait: "sleep"},
	} {
		_, err := bad.Validate("path")
		test.That(t, err, test.ShouldNotBeNil)
	}

	conf = &Config{TriggerPin: "5", EchoPin: "6", Unit: "in", Wait: WaitNotify}
	_, err = conf.Validate("path")
	test.That(t, err, test.ShouldBeNil)
}

func TestConfigPins(t *testing.T) {
	trigger, echo, err := (&Config{TriggerPin: "5", EchoPin: "6"}).Pins()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, trigger, test.ShouldEqual, board.Pin(5))
	test.That(t, echo, test.ShouldEqual, board.Pin(6))

	trigger, echo, err = (&Config{TriggerPin: "9"}).Pins()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, trigger, test.ShouldEqual, echo)
}

func TestConfigFromAttributes(t *testing.T) {
	conf, err := ConfigFromAttributes(map[string]interface{}{
		"trigger_pin":       5,
		"echo_pin":          "6",
		"unit":              "in",
		"max_distance":      "100",
		"trigger_idle_high": true,
		"min_echo_us":       30.0,
		"wait":              "notify",
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf, test.ShouldResemble, &Config{
		TriggerPin:      "5",
		EchoPin:         "6",
		Unit:            "in",
		MaxDistance:     100,
		TriggerIdleHigh: true,
		MinEchoUs:       30,
		Wait:            WaitNotify,
	})

	_, err = ConfigFromAttributes(map[string]interface{}{"trigger_pin": 5, "echo": 6})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "echo")
}

func TestFromConfig(t *testing.T) {
	logger := logging.NewTestLogger(t)

	t.Run("two pin", func(t *testing.T) {
		fb := fake.NewBoard()
		c := NewCapture(fb, logger)
		s, err := FromConfig(c, "front", &Config{
			TriggerPin:   "5",
			EchoPin:      "6",
			Unit:         "us",
			PulseWidthUs: 10,
			MaxDistance:  500,
		}, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, s.Name, test.ShouldEqual, "front")
		test.That(t, s.Unit(), test.ShouldEqual, Microseconds)
		test.That(t, s.OnePin(), test.ShouldBeFalse)
		fb.ResetOps()
		fb.Respond(5, 6, 100, 600, false)

		d, err := s.MeasureDistance(5000)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, d, test.ShouldEqual, 600.0)
		levels := opsOf(fb.Ops(), fake.OpSetLevel, 5)
		test.That(t, levels[1].At-levels[0].At, test.ShouldEqual, 10)

		// the configured range is shorter than the echo.
		_, err = s.Readings(context.Background(), nil)
		test.That(t, errors.Is(err, ErrTimeout), test.ShouldBeTrue)
	})

	t.Run("one pin", func(t *testing.T) {
		c := NewCapture(fake.NewBoard(), logger)
		s, err := FromConfig(c, "back", &Config{TriggerPin: "9"}, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, s.OnePin(), test.ShouldBeTrue)
		test.That(t, s.Unit(), test.ShouldEqual, Millimeters)
	})

	t.Run("notify", func(t *testing.T) {
		c := NewCapture(fake.NewBoard(), logger)
		s, err := FromConfig(c, "side", &Config{TriggerPin: "5", EchoPin: "6", Wait: WaitNotify}, logger)
		test.That(t, err, test.ShouldBeNil)
		_, ok := s.wait.(NotifyWait)
		test.That(t, ok, test.ShouldBeTrue)
	})

	t.Run("invalid", func(t *testing.T) {
		c := NewCapture(fake.NewBoard(), logger)
		_, err := FromConfig(c, "bad", &Config{EchoPin: "6"}, logger)
		test.That(t, err, test.ShouldNotBeNil)
	})
}
