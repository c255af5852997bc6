// Package host implements spec §4.7's Host: the owner that wires a
// station's NICs to its IPv4 engine and routing table.
package host

import (
	"github.com/iti/rngstream"

	"github.com/smiley22/netsim/engine"
	"github.com/smiley22/netsim/frame"
	"github.com/smiley22/netsim/ipv4"
	"github.com/smiley22/netsim/netpkt"
	"github.com/smiley22/netsim/phy"
	"github.com/smiley22/netsim/wire"
)

// InterfaceConfig describes one NIC/IP interface pair to attach when
// constructing a Host.
type InterfaceConfig struct {
	Name         string
	MAC          wire.MAC
	IP           wire.IP
	Netmask      wire.IP
	Gateway      wire.IP
	MTU          int
	Bitrate      float64
	FIFOCapacity int
}

// Host is a network endpoint: one or more NICs, each paired with an
// ipv4.Interface, sharing one IPv4 engine and routing table (spec §4.7).
// It registers interfaces and wires DataReceived -> ipv4.OnInput and
// SendFIFOEmpty -> ipv4.OnAvailableToSend, and provides the
// addRoute/removeRoute/output surface spec §4.7 names.
type Host struct {
	Name string

	rng  *rngstream.RngStream
	ipv4 *ipv4.Engine
	nics map[string]*phy.NIC
}

// NewHost constructs a Host with its own RNG stream (named after the
// host, per the teacher convention of one rngstream.New(name) per
// device) and an empty IPv4 engine/routing table.
func NewHost(name string, inputQueueCapacity int) *Host {
	return &Host{
		Name: name,
		rng:  rngstream.New(name),
		ipv4: ipv4.NewEngine(ipv4.NewRoutingTable(), inputQueueCapacity),
		nics: make(map[string]*phy.NIC),
	}
}

// Rng returns the host's private random number stream, used by whatever
// layer needs host-local randomness (CSMA/CD backoff jitter is driven by
// the same stream passed at interface construction).
func (h *Host) Rng() *rngstream.RngStream {
	return h.rng
}

// AddInterface attaches a NIC/IP pair described by cfg, wiring the NIC's
// interrupts into the IPv4 engine.
func (h *Host) AddInterface(cfg InterfaceConfig) (*phy.NIC, *phy.Connector) {
	nic := phy.NewNIC(cfg.MAC, cfg.Bitrate, cfg.FIFOCapacity, h.rng)
	ifc := ipv4.NewInterface(cfg.Name, cfg.MAC, cfg.IP, cfg.Netmask, cfg.MTU, cfg.FIFOCapacity, hostLink{nic})
	ifc.Gateway = cfg.Gateway
	h.ipv4.AddInterface(ifc)
	h.nics[cfg.Name] = nic

	nic.DataReceived = func(eng *engine.Engine, payload []byte, etherType frame.EtherType) {
		h.ipv4.OnInput(eng, cfg.Name, payload, etherType)
	}
	nic.SendFIFOEmpty = func(eng *engine.Engine) {
		ifc.OnAvailableToSend(eng)
	}
	return nic, nic.Connector()
}

// hostLink adapts a *phy.NIC to ipv4.Link.
type hostLink struct{ nic *phy.NIC }

func (l hostLink) Output(eng *engine.Engine, dst wire.MAC, payload []byte, etherType frame.EtherType) error {
	fr := frame.New(dst, l.nic.MAC, etherType, payload)
	return l.nic.Output(eng, fr)
}

// AddRoute installs a route (spec §4.7 addRoute).
func (h *Host) AddRoute(destination, netmask, gateway wire.IP, ifcName string, metric int) {
	ifc := h.ipv4.Interface(ifcName)
	if ifc == nil {
		panic("host: unknown interface " + ifcName)
	}
	h.ipv4.Routes().Add(&ipv4.Route{
		Destination: destination,
		Netmask:     netmask,
		Gateway:     gateway,
		Interface:   ifc,
		Metric:      metric,
	})
}

// RemoveRoute deletes a previously installed route (spec §4.7
// removeRoute).
func (h *Host) RemoveRoute(destination, netmask wire.IP, ifcName string) {
	ifc := h.ipv4.Interface(ifcName)
	if ifc == nil {
		return
	}
	h.ipv4.Routes().Remove(destination, netmask, ifc)
}

// Output sends bytes to dstIP out ifcName, always as protocol TCP — a
// stub, per spec §4.7, since nothing above IP is modeled.
func (h *Host) Output(eng *engine.Engine, ifcName string, dstIP wire.IP, data []byte) {
	_ = h.ipv4.Output(eng, ifcName, dstIP, data, netpkt.ProtoTCP)
}

// IPv4 exposes the host's IPv4 engine, e.g. to set OnDeliver or inspect
// reassembly/routing state.
func (h *Host) IPv4() *ipv4.Engine {
	return h.ipv4
}

// NIC returns the named interface's NIC, e.g. to attach its Connector to
// a Cable.
func (h *Host) NIC(name string) *phy.NIC {
	return h.nics[name]
}
