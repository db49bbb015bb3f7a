package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/viam-labs/ultrasonic/components/board"
	"github.com/viam-labs/ultrasonic/components/board/fake"
	"github.com/viam-labs/ultrasonic/components/board/genericlinux"
	"github.com/viam-labs/ultrasonic/components/board/periph"
	"github.com/viam-labs/ultrasonic/components/sensor"
	"github.com/viam-labs/ultrasonic/components/sensor/ultrasonic"
	"github.com/viam-labs/ultrasonic/logging"
)

// Boards.
const (
	boardFake     = "fake"
	boardPeriph   = "periph"
	boardGPIOChip = "gpiochip"
)

// echoDelayUs is how long the fake board's modules take to answer a trigger.
const echoDelayUs = 150

type options struct {
	Board       string
	Chip        string
	ConfigPath  string
	Trigger     string
	Echo        string
	Unit        string
	MaxDistance float64
	Interval    time.Duration
	Count       int
	Wait        string
	SimDistance float64
}

func loadConfigs(opts options) (map[string]*ultrasonic.Config, error) {
	if opts.ConfigPath == "" {
		if opts.Trigger == "" {
			return nil, errors.New("either --config or --trigger is required")
		}
		return map[string]*ultrasonic.Config{
			"sensor": {
				TriggerPin:  opts.Trigger,
				EchoPin:     opts.Echo,
				Unit:        opts.Unit,
				MaxDistance: opts.MaxDistance,
				Wait:        opts.Wait,
			},
		}, nil
	}

	//nolint:gosec
	data, err := os.ReadFile(opts.ConfigPath)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read config")
	}
	var attributes map[string]map[string]interface{}
	if err := json.Unmarshal(data, &attributes); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config %q", opts.ConfigPath)
	}
	if len(attributes) == 0 {
		return nil, errors.Errorf("no sensors in config %q", opts.ConfigPath)
	}
	confs := make(map[string]*ultrasonic.Config, len(attributes))
	for name, attrs := range attributes {
		conf, err := ultrasonic.ConfigFromAttributes(attrs)
		if err != nil {
			return nil, errors.Wrapf(err, "sensor %q", name)
		}
		confs[name] = conf
	}
	return confs, nil
}

func openBoard(opts options, confs map[string]*ultrasonic.Config, logger logging.Logger) (board.Board, error) {
	switch opts.Board {
	case boardFake:
		fb := fake.NewBoard()
		widthUs := uint32(math.Round(ultrasonic.Millimeters.Timeout(opts.SimDistance)))
		for _, name := range sortedNames(confs) {
			conf := confs[name]
			trigger, echo, err := conf.Pins()
			if err != nil {
				return nil, err
			}
			fb.Respond(trigger, echo, echoDelayUs, widthUs, conf.TriggerIdleHigh)
			if conf.Wait == ultrasonic.WaitNotify {
				// the fake board's time only moves while the sequencer busy-waits.
				logger.Warnw("fake board forces busy wait", "wait", conf.Wait)
				conf.Wait = ultrasonic.WaitBusy
			}
		}
		return fb, nil
	case boardPeriph:
		return periph.NewBoard(logger.Sublogger(boardPeriph))
	case boardGPIOChip:
		return genericlinux.NewBoard(opts.Chip, logger.Sublogger(boardGPIOChip))
	default:
		return nil, errors.Errorf("unknown board %q", opts.Board)
	}
}

type samples struct {
	distances stats.Float64Data
	failures  int
}

func run(ctx context.Context, opts options, logger logging.Logger, out io.Writer) (err error) {
	confs, err := loadConfigs(opts)
	if err != nil {
		return err
	}
	b, err := openBoard(opts, confs, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, b.Close())
	}()

	capture := ultrasonic.NewCapture(b, logger.Sublogger("capture"))
	defer func() {
		err = multierr.Combine(err, capture.Close())
	}()

	sensors := map[string]sensor.Sensor{}
	defer func() {
		err = multierr.Combine(err, sensor.CloseAll(context.Background(), sensors))
	}()
	units := map[string]ultrasonic.Unit{}
	for _, name := range sortedNames(confs) {
		s, err := ultrasonic.FromConfig(capture, name, confs[name], logger.Sublogger(name))
		if err != nil {
			return errors.Wrapf(err, "cannot initiate sensor %q", name)
		}
		sensors[name] = s
		units[name] = s.Unit()
	}
	names := sensor.Names(sensors)

	results := map[string]*samples{}
	for _, name := range names {
		results[name] = &samples{}
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	for i := 0; opts.Count <= 0 || i < opts.Count; i++ {
		for _, name := range names {
			readings, err := sensors[name].Readings(ctx, nil)
			if err != nil {
				if ctx.Err() != nil {
					break
				}
				results[name].failures++
				elapsed, _ := ultrasonic.ElapsedFrom(err)
				logger.Infow("ping failed", "sensor", name, "elapsed_us", elapsed, "error", err)
				continue
			}
			distance, _ := readings["distance"].(float64)
			results[name].distances = append(results[name].distances, distance)
			logger.Infow("ping",
				"sensor", name, "elapsed_us", readings["elapsed_us"], "distance", distance, "unit", readings["unit"])
		}
		if opts.Count > 0 && i == opts.Count-1 {
			break
		}
		if !utils.SelectContextOrWait(ctx, interval) {
			break
		}
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Sensor", "Unit", "OK", "Failed", "Mean", "Median", "StdDev", "Min", "Max"})
	for _, name := range names {
		t.AppendRow(summaryRow(name, units[name], results[name]))
	}
	fmt.Fprintln(out, t.Render())
	return nil
}

func summaryRow(name string, unit ultrasonic.Unit, s *samples) table.Row {
	row := table.Row{name, unit.String(), len(s.distances), s.failures}
	if len(s.distances) == 0 {
		return append(row, "-", "-", "-", "-", "-")
	}
	// errors are only returned for empty input.
	mean, _ := stats.Mean(s.distances)
	median, _ := stats.Median(s.distances)
	stddev, _ := stats.StandardDeviation(s.distances)
	lo, _ := stats.Min(s.distances)
	hi, _ := stats.Max(s.distances)
	return append(row,
		fmt.Sprintf("%.1f", mean), fmt.Sprintf("%.1f", median), fmt.Sprintf("%.2f", stddev),
		fmt.Sprintf("%.1f", lo), fmt.Sprintf("%.1f", hi))
}

func sortedNames(confs map[string]*ultrasonic.Config) []string {
	names := make([]string, 0, len(confs))
	for name := range confs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
