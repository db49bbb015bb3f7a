// Package fake implements a simulated board driven by a mock clock. Time only moves when the
// code under test busy-waits through DelayMicroseconds, so echo timelines scripted against it
// replay identically every run.
package fake

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/viam-labs/ultrasonic/components/board"
)

// OpKind identifies a hardware operation recorded by the board.
type OpKind int

// Recorded operations.
const (
	OpPinMode OpKind = iota
	OpSetLevel
	OpReadLevel
	OpAttach
	OpSetInterrupt
)

// An Op is one recorded hardware operation.
type Op struct {
	Kind  OpKind
	Pin   board.Pin
	At    uint64
	Mode  board.PinMode
	High  bool
	Edge  board.Edge
	Error error
}

type pinState struct {
	mode    board.PinMode
	level   bool
	edge    board.Edge
	handler board.InterruptHandler
}

type event struct {
	at  uint64
	seq int
	pin board.Pin
	// level is applied to pin when fn is nil.
	level bool
	fn    func()
}

// Board is a simulated board.
type Board struct {
	clock *clock.Mock
	epoch time.Time
	mask  uint32

	mu         sync.Mutex
	pins       map[board.Pin]*pinState
	events     []event
	seq        int
	ops        []Op
	responders []*Responder
	failMode   map[board.Pin]error
	failAttach map[board.Pin]error
	closed     bool

	pending board.PendingInterrupts
}

// NewBoard returns a simulated board with a full 32 bit microsecond counter starting at 0.
func NewBoard() *Board {
	return NewBoardWithMask(board.MaskForBits(32))
}

// NewBoardWithMask returns a simulated board whose counter wraps at mask.
func NewBoardWithMask(mask uint32) *Board {
	mock := clock.NewMock()
	return &Board{
		clock:      mock,
		epoch:      mock.Now(),
		mask:       mask,
		pins:       map[board.Pin]*pinState{},
		failMode:   map[board.Pin]error{},
		failAttach: map[board.Pin]error{},
	}
}

// Clock returns the board's mock clock.
func (b *Board) Clock() *clock.Mock {
	return b.clock
}

// Now returns unmasked microseconds since the board was created.
func (b *Board) Now() uint64 {
	return uint64(b.clock.Now().Sub(b.epoch) / time.Microsecond)
}

// Micros returns the masked counter.
func (b *Board) Micros() uint32 {
	return uint32(b.Now()) & b.mask
}

// Mask returns the counter's wrap mask.
func (b *Board) Mask() uint32 {
	return b.mask
}

// DelayMicroseconds advances simulated time, applying every scheduled event on the way in order.
func (b *Board) DelayMicroseconds(us uint32) {
	target := b.Now() + uint64(us)
	for {
		ev, ok := b.popEvent(target)
		if !ok {
			break
		}
		b.advanceTo(ev.at)
		if ev.fn != nil {
			ev.fn()
			continue
		}
		b.applyLevel(ev.pin, ev.level)
	}
	b.advanceTo(target)
}

// Advance is DelayMicroseconds for callers outside the code under test.
func (b *Board) Advance(us uint32) {
	b.DelayMicroseconds(us)
}

func (b *Board) advanceTo(at uint64) {
	if now := b.Now(); at > now {
		b.clock.Add(time.Duration(at-now) * time.Microsecond)
	}
}

func (b *Board) popEvent(target uint64) (event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 || b.events[0].at > target {
		return event{}, false
	}
	ev := b.events[0]
	b.events = b.events[1:]
	return ev, true
}

func (b *Board) schedule(ev event) {
	b.seq++
	ev.seq = b.seq
	b.events = append(b.events, ev)
	sort.SliceStable(b.events, func(i, j int) bool {
		if b.events[i].at == b.events[j].at {
			return b.events[i].seq < b.events[j].seq
		}
		return b.events[i].at < b.events[j].at
	})
}

func (b *Board) pin(p board.Pin) *pinState {
	ps, ok := b.pins[p]
	if !ok {
		ps = &pinState{}
		b.pins[p] = ps
	}
	return ps
}

func (b *Board) record(op Op) {
	op.At = b.Now()
	b.ops = append(b.ops, op)
}

// applyLevel changes a pin level as seen from outside the board and fires the pin's interrupt
// when the transition matches its armed edge.
func (b *Board) applyLevel(p board.Pin, high bool) {
	b.mu.Lock()
	ps := b.pin(p)
	prev := ps.level
	ps.level = high
	var handler board.InterruptHandler
	if prev != high && ps.handler != nil &&
		((high && ps.edge == board.EdgeRising) || (!high && ps.edge == board.EdgeFalling)) {
		handler = ps.handler
	}
	b.mu.Unlock()

	if handler != nil {
		b.pending.Raise(p)
		handler()
	}
}

// Echo schedules the echo pin to rise and fall at the given absolute times in microseconds since
// the board was created.
func (b *Board) Echo(p board.Pin, rise, fall uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.schedule(event{at: rise, pin: p, level: true})
	b.schedule(event{at: fall, pin: p, level: false})
}

// SetInputLevel schedules an external level change on p at the given time.
func (b *Board) SetInputLevel(p board.Pin, high bool, at uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.schedule(event{at: at, pin: p, level: high})
}

// ForceLevel sets a pin level immediately without firing interrupts.
func (b *Board) ForceLevel(p board.Pin, high bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pin(p).level = high
}

// At schedules fn to run when simulated time reaches at. fn runs without board locks held and
// may call back into the board.
func (b *Board) At(at uint64, fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.schedule(event{at: at, fn: fn})
}

// FireInterrupt raises p in the interrupt status and runs the handler attached to p, or the
// first attached handler when p has none, as a shared interrupt vector would.
func (b *Board) FireInterrupt(p board.Pin) {
	b.mu.Lock()
	handler := b.pin(p).handler
	if handler == nil {
		pins := make([]int, 0, len(b.pins))
		for other, ps := range b.pins {
			if ps.handler != nil {
				pins = append(pins, int(other))
			}
		}
		sort.Ints(pins)
		if len(pins) > 0 {
			handler = b.pins[board.Pin(pins[0])].handler
		}
	}
	b.mu.Unlock()

	b.pending.Raise(p)
	if handler != nil {
		handler()
	}
}

// FailPinMode makes every SetPinMode on p fail with err.
func (b *Board) FailPinMode(p board.Pin, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failMode[p] = err
}

// FailAttach makes AttachInterrupt on p fail with err.
func (b *Board) FailAttach(p board.Pin, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAttach[p] = err
}

// SetPinMode implements board.Board.
func (b *Board) SetPinMode(p board.Pin, mode board.PinMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.failMode[p]
	b.record(Op{Kind: OpPinMode, Pin: p, Mode: mode, Error: err})
	if err != nil {
		return err
	}
	b.pin(p).mode = mode
	return nil
}

// SetLevel implements board.Board. Output pins only.
func (b *Board) SetLevel(p board.Pin, high bool) error {
	b.mu.Lock()
	ps := b.pin(p)
	if ps.mode != board.Output {
		b.record(Op{Kind: OpSetLevel, Pin: p, High: high, Error: errors.New("not an output")})
		b.mu.Unlock()
		return errors.Errorf("pin %s is not an output", p)
	}
	b.record(Op{Kind: OpSetLevel, Pin: p, High: high})
	prev := ps.level
	ps.level = high
	now := b.Now()
	for _, r := range b.responders {
		if r.Trigger == p && prev != high && high == r.IdleHigh && !r.Silent.Load() {
			rise := now + uint64(r.DelayUs)
			b.schedule(event{at: rise, pin: r.Echo, level: true})
			b.schedule(event{at: rise + uint64(r.WidthUs.Load()), pin: r.Echo, level: false})
		}
	}
	b.mu.Unlock()
	return nil
}

// Level implements board.Board.
func (b *Board) Level(p board.Pin) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Op{Kind: OpReadLevel, Pin: p})
	return b.pin(p).level, nil
}

// AttachInterrupt implements board.Board.
func (b *Board) AttachInterrupt(p board.Pin, handler board.InterruptHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.failAttach[p]
	b.record(Op{Kind: OpAttach, Pin: p, Error: err})
	if err != nil {
		return err
	}
	ps := b.pin(p)
	ps.handler = handler
	ps.edge = board.EdgeNone
	// attaching reconfigures the pin as an input, like most GPIO interrupt setups.
	ps.mode = board.Input
	return nil
}

// SetInterrupt implements board.Board.
func (b *Board) SetInterrupt(p board.Pin, edge board.Edge) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Op{Kind: OpSetInterrupt, Pin: p, Edge: edge})
	ps := b.pin(p)
	if ps.handler == nil && edge != board.EdgeNone {
		return errors.Errorf("no interrupt attached to pin %s", p)
	}
	ps.edge = edge
	return nil
}

// InterruptStatus implements board.Board.
func (b *Board) InterruptStatus() uint32 {
	return b.pending.Status()
}

// ClearInterruptStatus implements board.Board.
func (b *Board) ClearInterruptStatus(mask uint32) {
	b.pending.Clear(mask)
}

// Close implements board.Board.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Closed reports whether Close was called.
func (b *Board) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Ops returns a copy of the recorded operations.
func (b *Board) Ops() []Op {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Op(nil), b.ops...)
}

// ResetOps forgets the recorded operations.
func (b *Board) ResetOps() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = nil
}

// PinMode returns the current direction of p.
func (b *Board) PinMode(p board.Pin) board.PinMode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pin(p).mode
}

// InterruptEdge returns the edge p is currently armed for.
func (b *Board) InterruptEdge(p board.Pin) board.Edge {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pin(p).edge
}

// A Responder models an HC-SR04 module: when the trigger pin returns to its idle level, the echo
// pin goes high DelayUs later for WidthUs.
type Responder struct {
	Trigger  board.Pin
	Echo     board.Pin
	IdleHigh bool
	DelayUs  uint32
	WidthUs  atomic.Uint32
	Silent   atomic.Bool
}

// Respond attaches a module model to the board.
func (b *Board) Respond(trigger, echo board.Pin, delayUs, widthUs uint32, idleHigh bool) *Responder {
	r := &Responder{Trigger: trigger, Echo: echo, IdleHigh: idleHigh, DelayUs: delayUs}
	r.WidthUs.Store(widthUs)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responders = append(b.responders, r)
	return r
}
