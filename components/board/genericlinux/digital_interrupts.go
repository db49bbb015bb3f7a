//go:build linux

package genericlinux

import (
	"context"

	"go.viam.com/utils"

	"github.com/viam-labs/ultrasonic/components/board"
)

// startMonitor forwards the line's edge events to its handler until the line is closed.
func (l *gpioLine) startMonitor() {
	events := l.in.Events()
	handler := l.handler
	ctx, cancel := context.WithCancel(l.b.cancelCtx)
	l.stop = cancel

	l.b.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				if event == nil {
					continue
				}
				edge := board.Edge(l.edge.Load())
				if (event.RisingEdge && edge == board.EdgeRising) || (!event.RisingEdge && edge == board.EdgeFalling) {
					l.b.stampEdge(l.pin, event.Time)
					l.b.pending.Raise(l.pin)
					handler()
				}
			}
		}
	}, l.b.activeBackgroundWorkers.Done)
}
