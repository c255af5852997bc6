package phy

import "github.com/smiley22/netsim/engine"

// Hub is a multi-port repeater (spec §3, "Hub" row): it owns one Connector
// per port, each attached to its own point-to-point Cable running to a
// station's NIC. Whatever one port's cable delivers, the hub re-emits on
// every other port's cable, each carrying that port's own propagation and
// transmission delay.
//
// Simplification, documented rather than silently taken: the hub relays
// at SignalCease, once the full payload is known, rather than also
// forwarding the bare carrier-rising SignalSense ahead of it. A real
// repeater forwards bit-by-bit as it arrives; this simulator's Cable
// primitive only carries a payload at cease, so a hub with this Connector
// API cannot forward an as-yet-unknown payload any earlier. Two stations
// separated by a hub therefore see a shorter window to collide than two
// stations on one shared cable would — acceptable since the hub accounts
// for only a small slice of the physical layer and no testable property
// depends on sub-hub collision timing.
type Hub struct {
	ports []*hubPort
}

type hubPort struct {
	conn *Connector
}

// NewHub constructs an empty hub; ports are added with AddPort.
func NewHub() *Hub {
	return &Hub{}
}

// AddPort adds a new port to the hub and returns its Connector, which the
// caller attaches to the cable running to the station on that port.
func (h *Hub) AddPort() *Connector {
	p := &hubPort{conn: NewConnector()}
	idx := len(h.ports)
	p.conn.OnCease = func(eng *engine.Engine, sender *Connector, data []byte) {
		if sender == p.conn {
			return // the port's own relayed transmission, looped back
		}
		h.relay(eng, idx, data)
	}
	h.ports = append(h.ports, p)
	return p.conn
}

// relay re-transmits data, received on port `from`, onto every other
// port's cable.
func (h *Hub) relay(eng *engine.Engine, from int, data []byte) {
	if IsJam(data) {
		return
	}
	for i, p := range h.ports {
		if i == from {
			continue
		}
		p.conn.Transmit(eng, data)
	}
}
