// Package ipv4 implements the per-host IPv4 engine of spec §4.6: output
// queueing gated on ARP resolution, MTU-aware fragmentation, reassembly
// via a union-find over the byte range, longest-match routing with a
// metric tie-break, TTL handling with ICMP generation, and the input/
// output FIFO discipline tied to the datalink layer's ready interrupts.
package ipv4

import (
	"github.com/apex/log"

	"github.com/smiley22/netsim/engine"
	"github.com/smiley22/netsim/frame"
	"github.com/smiley22/netsim/netpkt"
	"github.com/smiley22/netsim/wire"
)

// DefaultNodalProcessingDelay is used when an Engine is not given an
// explicit one: the per-packet delay processPackets waits before running,
// mirroring a real router's nodal processing latency.
const DefaultNodalProcessingDelay = engine.Time(10_000)

type inputItem struct {
	pkt *netpkt.IPPacket
	ifc *Interface
}

// Engine is one host's IPv4 layer: its interfaces, routing table, global
// input queue, and in-flight reassembly state.
type Engine struct {
	NodalProcessingDelay engine.Time

	interfaces map[string]*Interface
	// interfaceOrder mirrors interfaces' keys in insertion order, so
	// anyInterface can pick deterministically instead of ranging over the
	// map (spec §8's determinism invariant).
	interfaceOrder []string
	routes         *RoutingTable

	inputQueue *wire.CappedQueue[inputItem]
	processing bool

	fragments map[wire.ReassemblyKey]*reassembler

	// OnDeliver is invoked for every packet addressed to one of this
	// host's interfaces once it is complete (never fragmented, or fully
	// reassembled) — the "hand data up to transport" step of spec §4.6.
	OnDeliver func(eng *engine.Engine, pkt *netpkt.IPPacket)
}

// NewEngine constructs an Engine over routes, with a capped global input
// queue.
func NewEngine(routes *RoutingTable, inputQueueCapacity int) *Engine {
	return &Engine{
		NodalProcessingDelay: DefaultNodalProcessingDelay,
		interfaces:           make(map[string]*Interface),
		routes:               routes,
		inputQueue:           wire.NewCappedQueue[inputItem](inputQueueCapacity),
		fragments:            make(map[wire.ReassemblyKey]*reassembler),
	}
}

// AddInterface registers ifc under its name.
func (e *Engine) AddInterface(ifc *Interface) {
	e.interfaces[ifc.Name] = ifc
	e.interfaceOrder = append(e.interfaceOrder, ifc.Name)
}

// Interface returns the named interface, or nil.
func (e *Engine) Interface(name string) *Interface {
	return e.interfaces[name]
}

// Routes exposes the routing table for addRoute/removeRoute-style
// callers (spec §4.7).
func (e *Engine) Routes() *RoutingTable {
	return e.routes
}

// Output implements spec §4.6's output(ifc, dstIp, bytes, protocol):
// split bytes across as many fresh, unfragmented IpPackets as the
// interface's MTU requires and send each to its next hop.
func (e *Engine) Output(eng *engine.Engine, ifcName string, dstIP wire.IP, data []byte, protocol netpkt.Protocol) error {
	ifc := e.interfaces[ifcName]
	if ifc == nil {
		panic("ipv4: unknown interface " + ifcName)
	}
	maxPayload := ifc.MTU - netpkt.HeaderSize
	if maxPayload <= 0 {
		panic("ipv4: MTU too small for IP header")
	}

	numPackets := (len(data) + maxPayload - 1) / maxPayload
	if numPackets == 0 {
		numPackets = 1
	}
	for i := 0; i < numPackets; i++ {
		start := i * maxPayload
		end := start + maxPayload
		if end > len(data) {
			end = len(data)
		}
		pkt := netpkt.NewPacket(ifc.IP, dstIP, protocol, append([]byte(nil), data[start:end]...))

		nextHop := dstIP
		if !ifc.InSubnet(dstIP) {
			nextHop = ifc.Gateway
		}
		ifc.outputToNextHop(eng, nextHop, pkt)
	}
	return nil
}

// OnInput implements spec §4.6's onInput(ifc, bytes, etherType):
// dispatch to ARP or IP based on EtherType.
func (e *Engine) OnInput(eng *engine.Engine, ifcName string, payload []byte, etherType frame.EtherType) {
	ifc := e.interfaces[ifcName]
	if ifc == nil {
		return
	}
	switch etherType {
	case frame.EtherTypeARP:
		pkt, err := netpkt.UnmarshalARP(payload)
		if err != nil {
			log.WithField("ifc", ifcName).WithError(err).Debug("ipv4: dropping malformed ARP packet")
			return
		}
		ifc.ARP.OnInput(eng, pkt)
	case frame.EtherTypeIPv4:
		e.onIPInput(eng, ifc, payload)
	}
}

// onIPInput implements spec §4.6's onIpInput: deserialize, and enqueue on
// the global input queue, scheduling processPackets if it was empty.
func (e *Engine) onIPInput(eng *engine.Engine, ifc *Interface, payload []byte) {
	pkt, err := netpkt.UnmarshalIP(payload)
	if err != nil {
		log.WithField("ifc", ifc.Name).WithError(err).Debug("ipv4: dropping malformed or bad-checksum packet")
		return
	}

	wasEmpty := e.inputQueue.Empty()
	if err := e.inputQueue.Push(inputItem{pkt: pkt, ifc: ifc}); err != nil {
		log.WithField("ifc", ifc.Name).Warn("ipv4: input queue full, sending source quench")
		e.sendICMP(eng, ifc, pkt.Src, netpkt.SourceQuench(pkt))
		return
	}
	if wasEmpty && !e.processing {
		e.processing = true
		eng.ScheduleCallback(e.NodalProcessingDelay, func(eng *engine.Engine) { e.processPackets(eng) })
	}
}

// processPackets implements spec §4.6's processPackets: handle exactly
// one queued packet, then reschedule itself if more remain.
func (e *Engine) processPackets(eng *engine.Engine) {
	item, ok := e.inputQueue.Pop()
	if !ok {
		e.processing = false
		return
	}
	e.processOne(eng, item.pkt, item.ifc)

	if !e.inputQueue.Empty() {
		eng.ScheduleCallback(e.NodalProcessingDelay, func(eng *engine.Engine) { e.processPackets(eng) })
		return
	}
	e.processing = false
}

func (e *Engine) processOne(eng *engine.Engine, pkt *netpkt.IPPacket, ifc *Interface) {
	pkt.TTL--
	if pkt.TTL == 0 {
		if pkt.Protocol != netpkt.ProtoICMP {
			e.sendICMP(eng, ifc, pkt.Src, netpkt.TimeExceeded(pkt))
		}
		log.WithField("dst", pkt.Dst.String()).Debug("ipv4: ttl exceeded")
		return
	}
	// Incremental checksum update for the TTL decrement (spec §4.6 step
	// 2): deliberately not the textbook RFC 1624 formula — this mirrors
	// the source system's own (slightly nonstandard) update and is
	// preserved as specified behavior, not fixed.
	pkt.Checksum = wire.IncrementalTTLChecksum(pkt.Checksum)

	if e.isLocalAddress(pkt.Dst) {
		e.deliverLocal(eng, pkt, ifc)
		return
	}
	e.route(eng, pkt)
}

// isLocalAddress reports whether ip matches any of this host's own
// interface addresses.
func (e *Engine) isLocalAddress(ip wire.IP) bool {
	for _, ifc := range e.interfaces {
		if ifc.IP == ip {
			return true
		}
	}
	return false
}

func (e *Engine) deliverLocal(eng *engine.Engine, pkt *netpkt.IPPacket, ifc *Interface) {
	if !pkt.IsFragment() {
		if e.OnDeliver != nil {
			e.OnDeliver(eng, pkt)
		}
		return
	}
	e.reassemble(eng, pkt)
}

func (e *Engine) reassemble(eng *engine.Engine, pkt *netpkt.IPPacket) {
	key := wire.ReassemblyKey{Src: pkt.Src, Dst: pkt.Dst, Protocol: byte(pkt.Protocol), Identification: pkt.Identification}
	r, ok := e.fragments[key]
	if !ok {
		r = newReassembler()
		e.fragments[key] = r
	}
	complete, done := r.add(pkt)
	if !done {
		return
	}
	delete(e.fragments, key)
	if e.OnDeliver != nil {
		e.OnDeliver(eng, complete)
	}
}

// route implements spec §4.6's Routing step: longest-match lookup,
// MTU/DF check, and fragmentation if needed.
func (e *Engine) route(eng *engine.Engine, pkt *netpkt.IPPacket) {
	r, ok := e.routes.Lookup(pkt.Dst)
	if !ok {
		e.sendICMP(eng, e.anyInterface(), pkt.Src, netpkt.DestinationNetworkUnreachable(pkt))
		return
	}

	if int(pkt.TotalLength) > r.Interface.MTU {
		if pkt.Flags&netpkt.FlagDF != 0 {
			e.sendICMP(eng, r.Interface, pkt.Src, netpkt.FragmentationRequired(pkt))
			return
		}
		for _, frag := range fragment(pkt, r.Interface.MTU) {
			nextHop := r.Gateway
			if nextHop == 0 {
				nextHop = frag.Dst
			}
			r.Interface.outputToNextHop(eng, nextHop, frag)
		}
		return
	}

	nextHop := r.Gateway
	if nextHop == 0 {
		nextHop = pkt.Dst
	}
	r.Interface.outputToNextHop(eng, nextHop, pkt)
}

// anyInterface returns this host's first-added interface, to source an
// ICMP error from when there is no route (and hence no specific outbound
// interface) to hand it to. It picks by interfaceOrder rather than
// ranging over the interfaces map, whose iteration order is randomized
// per run and would otherwise make a multi-interface host (a router)
// source the same ICMP from a different interface across runs.
func (e *Engine) anyInterface() *Interface {
	if len(e.interfaceOrder) == 0 {
		return nil
	}
	return e.interfaces[e.interfaceOrder[0]]
}

func (e *Engine) sendICMP(eng *engine.Engine, ifc *Interface, dst wire.IP, msg *netpkt.ICMPPacket) {
	if ifc == nil {
		log.Warn("ipv4: cannot send ICMP error, host has no interfaces")
		return
	}
	pkt := netpkt.NewPacket(ifc.IP, dst, netpkt.ProtoICMP, msg.Marshal())
	nextHop := dst
	if !ifc.InSubnet(dst) {
		nextHop = ifc.Gateway
	}
	ifc.outputToNextHop(eng, nextHop, pkt)
}
