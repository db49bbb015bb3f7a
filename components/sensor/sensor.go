// Package sensor defines an abstract sensing device that can provide measurement readings.
package sensor

import (
	"context"
	"sort"

	"go.uber.org/multierr"
)

// A Sensor represents a general purpose sensors that can give arbitrary readings
// of some thing that it is sensing.
type Sensor interface {
	// Readings return data specific to the type of sensor and can be of any type.
	Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error)
	Close(ctx context.Context) error
}

// Names returns the names of the given sensors in sorted order.
func Names(sensors map[string]Sensor) []string {
	names := make([]string, 0, len(sensors))
	for name := range sensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CloseAll closes every sensor, combining the errors.
func CloseAll(ctx context.Context, sensors map[string]Sensor) error {
	var errs error
	for _, name := range Names(sensors) {
		errs = multierr.Combine(errs, sensors[name].Close(ctx))
	}
	return errs
}
