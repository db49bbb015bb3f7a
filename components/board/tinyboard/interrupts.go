// Package tinyboard implements a board over TinyGo's machine package for microcontrollers. Pin
// numbers are machine.Pin numbers. Handlers run in interrupt context.
package tinyboard

// irqPin is the interrupt half of machine.Pin.
type irqPin[C any, P any] interface {
	SetInterrupt(change C, callback func(P)) error
}

// setEdge replaces the pin change interrupt on pin. Ports refuse a new callback while one is
// registered, so the old one is always removed first. A nil callback only removes.
func setEdge[T irqPin[C, P], C any, P any](pin T, change C, callback func(P)) error {
	var none C
	if err := pin.SetInterrupt(none, nil); err != nil {
		return err
	}
	if callback == nil {
		return nil
	}
	return pin.SetInterrupt(change, callback)
}
