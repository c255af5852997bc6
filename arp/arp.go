// Package arp implements the per-interface address resolution cache and
// request/response protocol of spec §4.5.
package arp

import (
	"github.com/apex/log"

	"github.com/smiley22/netsim/engine"
	"github.com/smiley22/netsim/netpkt"
	"github.com/smiley22/netsim/wire"
)

// Expiry is how long a resolved cache entry stays valid before it must be
// re-resolved (spec §4.5).
const Expiry = 10 * 60 * 1_000_000_000 // 10 minutes, in nanoseconds

type entry struct {
	mac        wire.MAC
	expiryTime engine.Time
}

// Transmitter is the capability an interface exposes to ARP for sending a
// request or reply: the datalink-layer broadcast/unicast primitive. The
// interface/host wires this to its NIC's framing and output path.
type Transmitter interface {
	SendARP(eng *engine.Engine, dst wire.MAC, pkt *netpkt.ARPPacket)
}

// Cache is a single interface's ARP cache: resolved (ip -> mac) entries
// with expiry, and a de-duplicating set of IPs with a request already in
// flight (spec §4.5).
type Cache struct {
	ownMAC wire.MAC
	ownIP  wire.IP

	link Transmitter

	entries    map[wire.IP]entry
	inProgress map[wire.IP]struct{}

	// OnResolved, when set, is invoked whenever OnInput learns a new
	// mapping — the IPv4 engine wires this to flush any packets it
	// deferred in waitingPackets for that IP (spec §4.6 output path).
	OnResolved func(eng *engine.Engine, ip wire.IP, mac wire.MAC)
}

// NewCache constructs an ARP cache for one interface, identified by its
// own MAC/IP, sending requests/replies through link.
func NewCache(ownMAC wire.MAC, ownIP wire.IP, link Transmitter) *Cache {
	return &Cache{
		ownMAC:     ownMAC,
		ownIP:      ownIP,
		link:       link,
		entries:    make(map[wire.IP]entry),
		inProgress: make(map[wire.IP]struct{}),
	}
}

// Lookup returns the MAC resolved for ip, iff a non-expired entry exists
// (spec §4.5 lookup).
func (c *Cache) Lookup(now engine.Time, ip wire.IP) (wire.MAC, bool) {
	e, ok := c.entries[ip]
	if !ok || now > e.expiryTime {
		return wire.MAC{}, false
	}
	return e.mac, true
}

// Resolve issues an ARP request for ip unless one is already in flight
// (spec §4.5 resolve's de-duplication).
func (c *Cache) Resolve(eng *engine.Engine, ip wire.IP) {
	if _, pending := c.inProgress[ip]; pending {
		return
	}
	c.inProgress[ip] = struct{}{}
	req := netpkt.NewRequest(c.ownMAC, c.ownIP, ip)
	c.link.SendARP(eng, wire.BroadcastMAC, req)
}

// OnInput handles an inbound ARP packet (spec §4.5 onInput): own requests
// are ignored, the sender's (IP, MAC) is learned, any in-progress
// resolution for it is cleared, and a request addressed to our own IP
// gets a unicast reply.
func (c *Cache) OnInput(eng *engine.Engine, pkt *netpkt.ARPPacket) {
	if pkt.SenderMAC == c.ownMAC {
		return
	}
	c.entries[pkt.SenderIP] = entry{mac: pkt.SenderMAC, expiryTime: eng.Now() + Expiry}
	delete(c.inProgress, pkt.SenderIP)

	log.WithField("ip", pkt.SenderIP.String()).WithField("mac", pkt.SenderMAC.String()).
		Debug("arp: learned mapping")

	if c.OnResolved != nil {
		c.OnResolved(eng, pkt.SenderIP, pkt.SenderMAC)
	}

	if pkt.IsRequest && pkt.TargetIP == c.ownIP {
		reply := netpkt.NewReply(c.ownMAC, c.ownIP, pkt.SenderMAC, pkt.SenderIP)
		c.link.SendARP(eng, pkt.SenderMAC, reply)
	}
}
