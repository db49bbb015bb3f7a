// Package main samples ultrasonic range sensors on a board and summarizes the results.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/viam-labs/ultrasonic/components/board/genericlinux"
	"github.com/viam-labs/ultrasonic/logging"
)

const (
	// Flags.
	flagBoard       = "board"
	flagChip        = "chip"
	flagConfig      = "config"
	flagTrigger     = "trigger"
	flagEcho        = "echo"
	flagUnit        = "unit"
	flagMaxDistance = "max-distance"
	flagInterval    = "interval"
	flagCount       = "count"
	flagWait        = "wait"
	flagSimDistance = "simulated-distance"
	flagDebug       = "debug"
)

func main() {
	var logger logging.Logger

	app := &cli.App{
		Name:  "ping",
		Usage: "sample ultrasonic range sensors",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagBoard,
				Value: boardFake,
				Usage: "board to drive: fake, periph or gpiochip",
			},
			&cli.StringFlag{
				Name:  flagChip,
				Value: genericlinux.DefaultChip,
				Usage: "gpio character device for the gpiochip board",
			},
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load sensors from a JSON `FILE` mapping names to attributes",
			},
			&cli.StringFlag{
				Name:  flagTrigger,
				Usage: "trigger pin",
			},
			&cli.StringFlag{
				Name:  flagEcho,
				Usage: "echo pin, omit for one-pin modules",
			},
			&cli.StringFlag{
				Name:  flagUnit,
				Value: "mm",
				Usage: "distance unit: mm, in or us",
			},
			&cli.Float64Flag{
				Name:  flagMaxDistance,
				Usage: "range limit in the sensor unit",
			},
			&cli.DurationFlag{
				Name:  flagInterval,
				Value: 500 * time.Millisecond,
				Usage: "time between samples",
			},
			&cli.IntFlag{
				Name:  flagCount,
				Usage: "number of samples per sensor, 0 runs until interrupted",
			},
			&cli.StringFlag{
				Name:  flagWait,
				Value: "busy",
				Usage: "completion wait: busy or notify",
			},
			&cli.Float64Flag{
				Name:  flagSimDistance,
				Value: 500,
				Usage: "distance in mm the fake board's sensors report",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("ping")
			} else {
				logger = logging.NewLogger("ping")
			}
			logging.ReplaceGlobal(logger)
			return nil
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
			defer stop()
			return run(ctx, optionsFromFlags(c), logger, c.App.Writer)
		},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func optionsFromFlags(c *cli.Context) options {
	return options{
		Board:       c.String(flagBoard),
		Chip:        c.String(flagChip),
		ConfigPath:  c.String(flagConfig),
		Trigger:     c.String(flagTrigger),
		Echo:        c.String(flagEcho),
		Unit:        c.String(flagUnit),
		MaxDistance: c.Float64(flagMaxDistance),
		Interval:    c.Duration(flagInterval),
		Count:       c.Int(flagCount),
		Wait:        c.String(flagWait),
		SimDistance: c.Float64(flagSimDistance),
	}
}
