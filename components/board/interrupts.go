package board

import "go.uber.org/atomic"

// PendingInterrupts emulates an interrupt status register for adapters whose platform delivers
// edge events without one. Adapters Raise the firing pin before calling its handler.
type PendingInterrupts struct {
	status atomic.Uint32
}

// Raise marks pin as pending.
func (p *PendingInterrupts) Raise(pin Pin) {
	bit := pin.Bit()
	for {
		old := p.status.Load()
		if p.status.CompareAndSwap(old, old|bit) {
			return
		}
	}
}

// Status returns the pending mask.
func (p *PendingInterrupts) Status() uint32 {
	return p.status.Load()
}

// Clear acknowledges every pin in mask.
func (p *PendingInterrupts) Clear(mask uint32) {
	for {
		old := p.status.Load()
		if p.status.CompareAndSwap(old, old&^mask) {
			return
		}
	}
}
