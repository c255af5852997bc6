package ipv4

import (
	"github.com/apex/log"
	"golang.org/x/exp/slices"

	"github.com/smiley22/netsim/arp"
	"github.com/smiley22/netsim/engine"
	"github.com/smiley22/netsim/frame"
	"github.com/smiley22/netsim/netpkt"
	"github.com/smiley22/netsim/wire"
)

// Link is the datalink-layer primitive an Interface sends framed bytes
// through — normally a phy.NIC's Output, wrapped by the owning Host.
type Link interface {
	Output(eng *engine.Engine, dst wire.MAC, payload []byte, etherType frame.EtherType) error
}

// outboundItem is the (dstMac, Serializable) pair spec §4.6 queues in
// outputQueue: either an IpPacket or an ArpPacket, each knowing its own
// EtherType.
type outboundItem interface {
	Marshal() []byte
	etherType() frame.EtherType
}

type ipOutItem struct{ pkt *netpkt.IPPacket }

func (i ipOutItem) Marshal() []byte            { return i.pkt.Marshal() }
func (i ipOutItem) etherType() frame.EtherType { return frame.EtherTypeIPv4 }

type arpOutItem struct{ pkt *netpkt.ARPPacket }

func (i arpOutItem) Marshal() []byte            { return i.pkt.Marshal() }
func (i arpOutItem) etherType() frame.EtherType { return frame.EtherTypeARP }

type queuedOutput struct {
	mac  wire.MAC
	item outboundItem
}

type waitingPacket struct {
	ip  wire.IP
	pkt *netpkt.IPPacket
}

// Interface is a host's per-link IP configuration and IP-layer output
// state (spec §4.6/§4.7): address/mask/gateway/MTU, an ARP cache, the
// packets deferred pending ARP resolution, and the capped output FIFO of
// (mac, packet) pairs awaiting transmission.
type Interface struct {
	Name    string
	MAC     wire.MAC
	IP      wire.IP
	Netmask wire.IP
	Gateway wire.IP // zero value: no default gateway configured
	MTU     int

	link Link
	ARP  *arp.Cache

	waiting     []waitingPacket
	outputQueue *wire.CappedQueue[queuedOutput]
	sendingFIFO bool
}

// NewInterface constructs an Interface and its ARP cache, wired to send
// framed bytes through link.
func NewInterface(name string, mac wire.MAC, ip, netmask wire.IP, mtu, outputQueueCapacity int, link Link) *Interface {
	if mtu <= netpkt.HeaderSize {
		panic("ipv4: MTU must exceed the IP header size")
	}
	ifc := &Interface{
		Name:        name,
		MAC:         mac,
		IP:          ip,
		Netmask:     netmask,
		MTU:         mtu,
		link:        link,
		outputQueue: wire.NewCappedQueue[queuedOutput](outputQueueCapacity),
	}
	ifc.ARP = arp.NewCache(mac, ip, ifc)
	ifc.ARP.OnResolved = ifc.onARPResolved
	return ifc
}

// InSubnet reports whether ip is directly reachable on this interface's
// attached subnet.
func (ifc *Interface) InSubnet(ip wire.IP) bool {
	return wire.SameSubnet(ip, ifc.IP, ifc.Netmask)
}

// SendARP implements arp.Transmitter by queuing the ARP packet exactly
// like an IP packet (spec §4.6: the output queue carries either kind of
// Serializable).
func (ifc *Interface) SendARP(eng *engine.Engine, dst wire.MAC, pkt *netpkt.ARPPacket) {
	ifc.enqueueOutput(eng, dst, arpOutItem{pkt})
}

// outputToNextHop implements spec §4.6's outputToNextHop: resolve ip via
// ARP, deferring the packet if unresolved, otherwise queuing it for
// transmission.
func (ifc *Interface) outputToNextHop(eng *engine.Engine, ip wire.IP, pkt *netpkt.IPPacket) {
	if mac, ok := ifc.ARP.Lookup(eng.Now(), ip); ok {
		ifc.enqueueOutput(eng, mac, ipOutItem{pkt})
		return
	}
	ifc.waiting = append(ifc.waiting, waitingPacket{ip: ip, pkt: pkt})
	ifc.ARP.Resolve(eng, ip)
}

// onARPResolved is wired as ifc.ARP.OnResolved: it flushes every packet
// this interface deferred for ip now that its MAC is known.
func (ifc *Interface) onARPResolved(eng *engine.Engine, ip wire.IP, mac wire.MAC) {
	ifc.waiting = slices.DeleteFunc(ifc.waiting, func(wp waitingPacket) bool {
		if wp.ip != ip {
			return false
		}
		ifc.enqueueOutput(eng, mac, ipOutItem{wp.pkt})
		return true
	})
}

// enqueueOutput queues item and, if the output FIFO was idle, schedules an
// immediate callback to start sending it — rather than calling
// emptySendFIFO inline — so the send is ordered against any other event
// already pending for this instant (spec §4.6).
func (ifc *Interface) enqueueOutput(eng *engine.Engine, mac wire.MAC, item outboundItem) {
	wasEmpty := ifc.outputQueue.Empty()
	if err := ifc.outputQueue.Push(queuedOutput{mac: mac, item: item}); err != nil {
		log.WithField("ifc", ifc.Name).Warn("ipv4: output queue full, dropping")
		return
	}
	if wasEmpty && !ifc.sendingFIFO {
		ifc.sendingFIFO = true
		eng.ScheduleCallback(0, func(eng *engine.Engine) { ifc.emptySendFIFO(eng) })
	}
}

// emptySendFIFO implements spec §4.6's emptySendFifo: dequeue one item
// and hand it to the datalink layer.
func (ifc *Interface) emptySendFIFO(eng *engine.Engine) {
	q, ok := ifc.outputQueue.Pop()
	if !ok {
		ifc.sendingFIFO = false
		return
	}
	ifc.sendingFIFO = true
	if err := ifc.link.Output(eng, q.mac, q.item.Marshal(), q.item.etherType()); err != nil {
		log.WithField("ifc", ifc.Name).WithError(err).Warn("ipv4: datalink output failed")
	}
}

// OnAvailableToSend implements spec §4.7's SendFifoEmpty handler: once
// the NIC's own FIFO has drained, try again if more is queued here.
func (ifc *Interface) OnAvailableToSend(eng *engine.Engine) {
	ifc.sendingFIFO = false
	if !ifc.outputQueue.Empty() {
		ifc.emptySendFIFO(eng)
	}
}
