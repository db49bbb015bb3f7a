package tinyboard

import (
	"errors"
	"testing"

	"go.viam.com/test"
)

type change uint8

const (
	changeRising change = iota + 1
	changeFalling
)

var errAlreadySet = errors.New("pin already has a callback")

// portPin behaves like an ESP32/RP2040 port pin: a callback must be cleared before another is set.
type portPin struct {
	change   change
	callback func(uint8)
}

func (p *portPin) SetInterrupt(c change, callback func(uint8)) error {
	if callback == nil {
		p.change, p.callback = 0, nil
		return nil
	}
	if p.callback != nil {
		return errAlreadySet
	}
	p.change, p.callback = c, callback
	return nil
}

func TestSetEdge(t *testing.T) {
	p := &portPin{}
	fired := 0
	callback := func(uint8) { fired++ }

	test.That(t, setEdge(p, changeRising, callback), test.ShouldBeNil)
	test.That(t, p.change, test.ShouldEqual, changeRising)

	// re-armed from inside the callback for the other edge.
	test.That(t, p.SetInterrupt(changeFalling, callback), test.ShouldEqual, errAlreadySet)
	test.That(t, setEdge(p, changeFalling, callback), test.ShouldBeNil)
	test.That(t, p.change, test.ShouldEqual, changeFalling)
	p.callback(0)
	test.That(t, fired, test.ShouldEqual, 1)

	test.That(t, setEdge[*portPin, change, uint8](p, changeRising, nil), test.ShouldBeNil)
	test.That(t, p.callback, test.ShouldBeNil)
	test.That(t, p.change, test.ShouldEqual, change(0))
}
