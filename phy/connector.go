// Package phy implements the physical-medium and data-link layers of spec
// §4.2–§4.4: cables and their signal-sense/signal-cease propagation, the
// half-duplex CSMA/CD station NIC, the pure-repeater hub, and the
// multi-port learning bridge.
package phy

import "github.com/smiley22/netsim/engine"

// Connector is the endpoint of a Cable attached to a NIC, Hub port, or
// Bridge port. It is a thin capability object: the Cable calls OnSense/
// OnCease directly on whichever owner attached it, replacing the
// observable-listener indirection the design notes call out for
// re-architecture (spec §9) with two plain function fields.
type Connector struct {
	cable *Cable

	// OnSense is called when the cable detects a rising carrier at this
	// connector's position.
	OnSense func(eng *engine.Engine)

	// OnCease is called when the cable detects a falling carrier at this
	// connector's position. sender identifies which connector drove the
	// medium; data is nil for a jam signal (spec §4.2's "isJam"
	// predicate), otherwise the (possibly bit-error-distorted) bytes
	// transmitted.
	OnCease func(eng *engine.Engine, sender *Connector, data []byte)
}

// NewConnector returns an unattached Connector. Callers set OnSense/OnCease
// before (or as part of) attaching it to a Cable.
func NewConnector() *Connector {
	return &Connector{}
}

// Cable returns the cable this connector is attached to, or nil.
func (c *Connector) Cable() *Cable {
	return c.cable
}

// Transmit drives the attached cable with data, originating from this
// connector. It is a thin convenience forwarding to Cable.Transmit.
func (c *Connector) Transmit(eng *engine.Engine, data []byte) {
	c.cable.Transmit(eng, c, data)
}

// Jam drives a 48-bit jam signal onto the attached cable from this
// connector, returning the jam's transmission time so the caller (the PHY's
// collision handler) can start its backoff clock from it.
func (c *Connector) Jam(eng *engine.Engine) engine.Time {
	return c.cable.Jam(eng, c)
}
