package engine

// Time is the simulator's global, monotone nanosecond clock. It is owned
// exclusively by the Engine; every delay computed anywhere in the system is
// expressed in this unit (spec §3).
type Time uint64

// Kind tags an Event for the predicate-based cancellation the PHY layer
// needs when it jams an in-flight transmission (spec §4.1/§4.2): a jam must
// be able to find and remove "the SignalCease I already scheduled for this
// sender" without the engine knowing anything about connectors or cables.
type Kind int

const (
	// KindCallback marks an event created by ScheduleCallback.
	KindCallback Kind = iota
	// KindSignalSense marks a physical-layer carrier-sense event.
	KindSignalSense
	// KindSignalCease marks a physical-layer carrier-cease event.
	KindSignalCease
)

// Event is the unit the Engine schedules and fires. Subtypes from spec §3
// (SignalSense, SignalCease, Callback) are represented as one struct with a
// Kind tag and an opaque Sender/Data pair, rather than as a class hierarchy
// dispatched by type switch — the engine only ever calls Run.
type Event struct {
	fireTime Time
	seq      uint64 // insertion sequence; breaks ties in heap order

	// Kind, Sender and Data exist purely so CancelMatching predicates can
	// select events without the engine understanding their payload.
	Kind   Kind
	Sender any
	Data   any

	// Run executes the event's effect. It receives the Engine so it may
	// schedule further events (the only way anything happens after the
	// first external stimulus in a cooperative, single-threaded
	// simulation).
	Run func(eng *Engine)

	canceled bool
	index    int // position in the heap, maintained by container/heap
}

// FireTime returns the simulated time at which the event is scheduled to
// run.
func (e *Event) FireTime() Time {
	return e.fireTime
}

// Seq returns the event's insertion sequence number, which is what breaks
// ties between events scheduled for the same fireTime (spec §5's "stable
// equal-time order" guarantee).
func (e *Event) Seq() uint64 {
	return e.seq
}
