package ultrasonic

import (
	"testing"

	"go.viam.com/test"
)

func TestUnitRoundTrip(t *testing.T) {
	for _, unit := range []Unit{Millimeters, Inches, Microseconds} {
		t.Run(unit.String(), func(t *testing.T) {
			for _, d := range []float64{0, 1, 17.5, 101.4, 4000, 1e6} {
				test.That(t, unit.Distance(unit.Timeout(d)), test.ShouldAlmostEqual, d, 1e-9)
			}
		})
	}
}

func TestUnitScale(t *testing.T) {
	test.That(t, Millimeters.Distance(588), test.ShouldAlmostEqual, 101.379, 0.001)
	test.That(t, Inches.Distance(148), test.ShouldAlmostEqual, 1.0, 1e-12)
	test.That(t, Microseconds.Distance(588), test.ShouldEqual, 588.0)
	test.That(t, Millimeters.Timeout(4000), test.ShouldAlmostEqual, 23200, 1e-6)

	test.That(t, Millimeters.DefaultMaxDistance(), test.ShouldAlmostEqual, 4000, 1e-6)
	test.That(t, Inches.DefaultMaxDistance(), test.ShouldAlmostEqual, 156.756, 0.001)
	test.That(t, Microseconds.DefaultMaxDistance(), test.ShouldAlmostEqual, 23200, 1e-6)
}

func TestParseUnit(t *testing.T) {
	for name, want := range map[string]Unit{
		"":             Millimeters,
		"mm":           Millimeters,
		"MM":           Millimeters,
		"in":           Inches,
		"inches":       Inches,
		"us":           Microseconds,
		"µs":           Microseconds,
		"microseconds": Microseconds,
	} {
		got, err := ParseUnit(name)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldEqual, want)
	}

	_, err := ParseUnit("furlongs")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "furlongs")

	test.That(t, Unit(9).String(), test.ShouldEqual, "Unit(9)")
}
