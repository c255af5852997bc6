package netpkt

import (
	"fmt"

	"github.com/smiley22/netsim/wire"
)

// ARPSize is the on-wire size of an ARPPacket.
const ARPSize = 1 + 6 + 4 + 6 + 4

// ARPPacket is the simulator-internal ARP message (spec §3/§6): a request
// or reply carrying the sender's and target's MAC/IP pairs. A request's
// TargetMAC is the broadcast address, since the requester does not yet know
// it.
type ARPPacket struct {
	IsRequest bool
	SenderMAC wire.MAC
	SenderIP  wire.IP
	TargetMAC wire.MAC
	TargetIP  wire.IP
}

// NewRequest builds an ARP request for targetIP, sent from (senderMAC,
// senderIP).
func NewRequest(senderMAC wire.MAC, senderIP wire.IP, targetIP wire.IP) *ARPPacket {
	return &ARPPacket{
		IsRequest: true,
		SenderMAC: senderMAC,
		SenderIP:  senderIP,
		TargetMAC: wire.BroadcastMAC,
		TargetIP:  targetIP,
	}
}

// NewReply builds an ARP reply from (senderMAC, senderIP) back to
// (targetMAC, targetIP) — normally the sender/target of the triggering
// request, swapped.
func NewReply(senderMAC wire.MAC, senderIP wire.IP, targetMAC wire.MAC, targetIP wire.IP) *ARPPacket {
	return &ARPPacket{
		IsRequest: false,
		SenderMAC: senderMAC,
		SenderIP:  senderIP,
		TargetMAC: targetMAC,
		TargetIP:  targetIP,
	}
}

// Marshal serializes the ARP packet.
func (a *ARPPacket) Marshal() []byte {
	b := wire.NewBuilder(ARPSize)
	if a.IsRequest {
		b.PutByte(1)
	} else {
		b.PutByte(0)
	}
	b.PutBytes(a.SenderMAC[:])
	sa, sb, sc, sd := a.SenderIP.Octets()
	b.PutByte(sa).PutByte(sb).PutByte(sc).PutByte(sd)
	b.PutBytes(a.TargetMAC[:])
	ta, tb, tc, td := a.TargetIP.Octets()
	b.PutByte(ta).PutByte(tb).PutByte(tc).PutByte(td)
	return b.Bytes()
}

// UnmarshalARP parses buf into an ARPPacket.
func UnmarshalARP(buf []byte) (*ARPPacket, error) {
	r := wire.NewReader(buf)
	flag, ok := r.Byte()
	if !ok {
		return nil, fmt.Errorf("%w: arp: short buffer", wire.ErrInvalidFormat)
	}
	senderMACB, ok := r.Bytes(6)
	if !ok {
		return nil, fmt.Errorf("%w: arp: short buffer for senderMAC", wire.ErrInvalidFormat)
	}
	senderIPB, ok := r.Bytes(4)
	if !ok {
		return nil, fmt.Errorf("%w: arp: short buffer for senderIP", wire.ErrInvalidFormat)
	}
	targetMACB, ok := r.Bytes(6)
	if !ok {
		return nil, fmt.Errorf("%w: arp: short buffer for targetMAC", wire.ErrInvalidFormat)
	}
	targetIPB, ok := r.Bytes(4)
	if !ok {
		return nil, fmt.Errorf("%w: arp: short buffer for targetIP", wire.ErrInvalidFormat)
	}

	a := &ARPPacket{IsRequest: flag != 0}
	copy(a.SenderMAC[:], senderMACB)
	a.SenderIP = wire.MakeIP(senderIPB[0], senderIPB[1], senderIPB[2], senderIPB[3])
	copy(a.TargetMAC[:], targetMACB)
	a.TargetIP = wire.MakeIP(targetIPB[0], targetIPB[1], targetIPB[2], targetIPB[3])
	return a, nil
}
