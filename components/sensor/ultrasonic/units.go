package ultrasonic

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Round trip scale factors for an echo at roughly 343 m/s.
const (
	MicrosToMillimeters = 1.0 / 5.8
	MicrosToInches      = 1.0 / 148.0
)

// Unit is the unit a sensor reports distances in.
type Unit int

const (
	// Millimeters is the default unit.
	Millimeters Unit = iota
	// Inches reports distances in inches.
	Inches
	// Microseconds passes the raw echo width through.
	Microseconds
)

func (u Unit) String() string {
	switch u {
	case Millimeters:
		return "mm"
	case Inches:
		return "in"
	case Microseconds:
		return "us"
	default:
		return fmt.Sprintf("Unit(%d)", int(u))
	}
}

// ParseUnit maps a unit name to a Unit. The empty string is Millimeters.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mm", "millimeters", "millimetres":
		return Millimeters, nil
	case "in", "inch", "inches":
		return Inches, nil
	case "us", "µs", "micros", "microseconds":
		return Microseconds, nil
	default:
		return Millimeters, errors.Errorf("unknown unit %q", s)
	}
}

func (u Unit) scale() float64 {
	switch u {
	case Millimeters:
		return MicrosToMillimeters
	case Inches:
		return MicrosToInches
	default:
		return 1
	}
}

// Timeout returns the echo width in microseconds that corresponds to maxDistance.
func (u Unit) Timeout(maxDistance float64) float64 {
	return maxDistance / u.scale()
}

// Distance converts an echo width in microseconds to a distance.
func (u Unit) Distance(elapsedUs float64) float64 {
	return elapsedUs * u.scale()
}

// DefaultMaxDistance is the HC-SR04's rated 4 m range expressed in u.
func (u Unit) DefaultMaxDistance() float64 {
	return u.Distance(Millimeters.Timeout(4000))
}
