// Package engine implements the discrete-event core described in spec §4.1:
// a min-heap priority queue over simulated nanosecond time, FIFO among
// events sharing a fire time, predicate-based cancellation, and a
// process-wide object registry for external (console-style) lookup.
package engine

import (
	"container/heap"
	"fmt"

	"github.com/apex/log"
)

// Engine owns the global simulated clock and the pending-event heap. There
// is exactly one Engine per simulation run; every scheduling call in the
// host/phy/arp/ipv4 packages takes an explicit *Engine rather than reaching
// for a package-level global, per the design note on "global mutable time
// and queue" — the teacher's package-level clock becomes a value threaded
// through constructors here.
type Engine struct {
	now    Time
	heap   eventHeap
	nextID uint64

	// Trace, if set, is called with every event immediately before it
	// runs. Optional; used by determinism tests to capture the exact
	// event order without coupling the engine to a logger.
	Trace func(*Event)

	registry map[string]any
}

// New returns an Engine with its clock at zero and an empty event queue.
func New() *Engine {
	return &Engine{registry: make(map[string]any)}
}

// Now returns the engine's current simulated time.
func (eng *Engine) Now() Time {
	return eng.now
}

// Len returns the number of events still pending.
func (eng *Engine) Len() int {
	return eng.heap.Len()
}

// Schedule inserts ev, keyed by ev.fireTime, with insertion order recorded
// for tie-breaking. It is the primitive every other scheduling helper in
// this package, and every delay-based call in phy/arp/ipv4, is built on.
func (eng *Engine) Schedule(fireTime Time, kind Kind, sender any, data any, run func(*Engine)) *Event {
	if fireTime < eng.now {
		panic(fmt.Sprintf("engine: Schedule: fireTime %d is before now %d", fireTime, eng.now))
	}
	ev := &Event{
		fireTime: fireTime,
		seq:      eng.nextID,
		Kind:     kind,
		Sender:   sender,
		Data:     data,
		Run:      run,
	}
	eng.nextID++
	heap.Push(&eng.heap, ev)
	return ev
}

// ScheduleCallback is a convenience wrapper scheduling a plain callback at
// now+delay (spec §4.1).
func (eng *Engine) ScheduleCallback(delay Time, fn func(*Engine)) *Event {
	return eng.Schedule(eng.now+delay, KindCallback, nil, nil, fn)
}

// CancelMatching removes every pending event for which predicate returns
// true and reports how many were removed. This is the only cancellation
// primitive the simulator has; the PHY layer uses it to invalidate an
// already-scheduled SignalCease when it jams the medium (spec §4.1/§4.3).
func (eng *Engine) CancelMatching(predicate func(*Event) bool) int {
	count := 0
	for {
		idx := -1
		for i, ev := range eng.heap {
			if predicate(ev) {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		ev := heap.Remove(&eng.heap, idx).(*Event)
		ev.canceled = true
		count++
	}
	return count
}

// PeekNext returns the next event to fire without removing it.
func (eng *Engine) PeekNext() (*Event, bool) {
	if eng.heap.Len() == 0 {
		return nil, false
	}
	return eng.heap[0], true
}

// DequeueNext removes and returns the next event to fire, in (fireTime,
// seq) order.
func (eng *Engine) DequeueNext() (*Event, bool) {
	if eng.heap.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&eng.heap).(*Event), true
}

// RunUntil repeatedly dequeues events with fireTime <= t, advancing the
// clock to each event's fireTime before running it. Once no such event
// remains the clock is advanced to t directly, even if nothing fired
// (spec §4.1). Events scheduled by a running event's Run with a fireTime
// <= t are picked up within the same call, matching the "advance the clock,
// then run everything due" contract the CSMA/CD backoff chains rely on.
func (eng *Engine) RunUntil(t Time) {
	for {
		next, ok := eng.PeekNext()
		if !ok || next.fireTime > t {
			break
		}
		ev, _ := eng.DequeueNext()
		eng.now = ev.fireTime
		if eng.Trace != nil {
			eng.Trace(ev)
		}
		ev.Run(eng)
	}
	if t > eng.now {
		eng.now = t
	}
}

// RunFor advances the simulation by delay nanoseconds from the current
// time, equivalent to RunUntil(Now()+delay).
func (eng *Engine) RunFor(delay Time) {
	eng.RunUntil(eng.now + delay)
}

// Register adds obj to the process-wide object registry under name, for
// external (console-style) lookup by name. This is observational only —
// nothing in the core ever calls Lookup itself (spec §4.1).
func (eng *Engine) Register(name string, obj any) {
	if _, exists := eng.registry[name]; exists {
		log.WithField("name", name).Warn("engine: object name re-registered")
	}
	eng.registry[name] = obj
}

// Lookup returns the object registered under name, if any.
func (eng *Engine) Lookup(name string) (any, bool) {
	obj, ok := eng.registry[name]
	return obj, ok
}

// Objects returns every registered name, for a "Show Objects" style
// listing.
func (eng *Engine) Objects() []string {
	names := make([]string, 0, len(eng.registry))
	for name := range eng.registry {
		names = append(names, name)
	}
	return names
}
