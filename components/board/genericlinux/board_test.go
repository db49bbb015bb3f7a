package genericlinux

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/viam-labs/ultrasonic/components/board"
	"github.com/viam-labs/ultrasonic/logging"
)

func TestNewBoardMissingChip(t *testing.T) {
	_, err := NewBoard("/dev/gpiochip-does-not-exist", logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "gpiochip-does-not-exist")
}

func TestEdgeTimes(t *testing.T) {
	base := time.Unix(1700000000, 0)
	rising := base.Add(1000 * time.Microsecond)
	falling := rising.Add(588 * time.Microsecond)
	test.That(t, eventMicros(falling)-eventMicros(rising), test.ShouldEqual, 588)

	b := &Board{SystemTimebase: board.NewSystemTimebase(clock.NewMock(), 32)}
	b.stampEdge(6, rising)
	start := b.EdgeMicros(6)
	b.stampEdge(6, falling)
	test.That(t, b.EdgeMicros(6)-start, test.ShouldEqual, 588)

	// no kernel timestamp falls back to the counter.
	b.Clock().(*clock.Mock).Add(42 * time.Microsecond)
	b.stampEdge(7, time.Time{})
	test.That(t, b.EdgeMicros(7), test.ShouldEqual, b.Micros())
	test.That(t, b.EdgeMicros(40), test.ShouldEqual, b.Micros())
}
