package phy

import (
	"github.com/apex/log"

	"github.com/smiley22/netsim/engine"
	"github.com/smiley22/netsim/frame"
	"github.com/smiley22/netsim/wire"
)

// Bridge is a multi-port learning switch (spec §4.4): each port is an
// independent NIC sharing one forwarding table and per-port FIFOs. A
// periodic drain, paced by processingDelay, moves at most one frame per
// tick from some input FIFO to the correct port's output FIFO (or floods
// it when the destination is unknown). Each port's NIC then drains its own
// output FIFO, waiting out its own IFG; the drain loop does not start
// transmissions itself.
type Bridge struct {
	ports           []*bridgePort
	forwardTable    map[wire.MAC]int
	processingDelay engine.Time
	draining        bool
}

type bridgePort struct {
	nic   *NIC
	input *wire.CappedQueue[*frame.Frame]
}

// NewBridge constructs a bridge with no ports; call AddPort for each
// segment it connects. processingDelay paces the periodic drain loop
// that moves frames between input and output FIFOs.
func NewBridge(processingDelay engine.Time) *Bridge {
	return &Bridge{
		forwardTable:    make(map[wire.MAC]int),
		processingDelay: processingDelay,
	}
}

// AddPort adds a port with its own NIC (and hence its own MAC and
// Connector) and returns the NIC so the caller can attach its Connector to
// a Cable.
func (b *Bridge) AddPort(mac wire.MAC, bitrate float64, fifoCapacity int, rng rngSource) *NIC {
	idx := len(b.ports)
	nic := NewNIC(mac, bitrate, fifoCapacity, rng)
	nic.Promiscuous = true
	p := &bridgePort{
		nic:   nic,
		input: wire.NewCappedQueue[*frame.Frame](fifoCapacity),
	}
	nic.FrameReceived = func(eng *engine.Engine, fr *frame.Frame) {
		b.Ingest(eng, idx, fr)
	}
	b.ports = append(b.ports, p)
	return nic
}

// Ingest runs the bridge's learning/drop/forward/flood decision for a
// frame received on port `from` (spec §4.4 steps 1–4). It is wired as
// the port's NIC.FrameReceived callback.
func (b *Bridge) Ingest(eng *engine.Engine, from int, fr *frame.Frame) {
	b.forwardTable[fr.Src] = from

	if dstPort, ok := b.forwardTable[fr.Dst]; ok && dstPort == from {
		return // same segment, spec §4.4 step 3 — drop
	}

	if err := b.ports[from].input.Push(fr); err != nil {
		log.WithField("port", from).Warn("phy: bridge input FIFO full, dropping frame")
		return
	}
	if !b.draining {
		b.draining = true
		eng.ScheduleCallback(b.processingDelay, func(eng *engine.Engine) { b.drain(eng) })
	}
}

// drain performs one tick of the bridge's periodic processing (spec
// §4.4): move at most one frame from an input FIFO to its destination
// port's NIC output FIFO (or flood), and reschedule itself while any input
// FIFO still holds frames.
func (b *Bridge) drain(eng *engine.Engine) {
	moved := b.moveOne(eng)

	anyPending := moved
	for _, p := range b.ports {
		if !p.input.Empty() {
			anyPending = true
		}
	}
	if anyPending {
		eng.ScheduleCallback(b.processingDelay, func(eng *engine.Engine) { b.drain(eng) })
		return
	}
	b.draining = false
}

func (b *Bridge) moveOne(eng *engine.Engine) bool {
	for from, p := range b.ports {
		fr, ok := p.input.Pop()
		if !ok {
			continue
		}
		if dstPort, known := b.forwardTable[fr.Dst]; known {
			_ = b.ports[dstPort].nic.Output(eng, fr)
		} else {
			for i, op := range b.ports {
				if i == from {
					continue
				}
				_ = op.nic.Output(eng, fr)
			}
		}
		return true
	}
	return false
}

// ForwardTableSnapshot returns a copy of the bridge's MAC-to-port
// forwarding table, for introspection (e.g. a CLI's `Show ForwardTable`).
func (b *Bridge) ForwardTableSnapshot() map[wire.MAC]int {
	out := make(map[wire.MAC]int, len(b.forwardTable))
	for k, v := range b.forwardTable {
		out[k] = v
	}
	return out
}
