// Package netpkt implements the binary codecs for the network-layer wire
// formats named in spec §3/§6: the IPv4 header+payload, ICMP packets (with
// the four builders the IPv4 engine needs for its error paths), and ARP
// packets.
package netpkt

import (
	"encoding/binary"
	"fmt"

	"github.com/smiley22/netsim/errs"
	"github.com/smiley22/netsim/wire"
)

// Protocol identifies the payload carried by an IPv4 packet.
type Protocol byte

const (
	ProtoICMP Protocol = 1
	ProtoTCP  Protocol = 6
	ProtoUDP  Protocol = 17
)

// Flag bits of an IPv4 header's flags field. Bit layout is internal to this
// simulator (spec §6 only requires that serialize/deserialize round-trip,
// not a particular on-wire bit position).
const (
	FlagMF byte = 0x1 // more fragments follow
	FlagDF byte = 0x2 // don't fragment
)

// HeaderSize is the length of an IPv4 header with no options.
const HeaderSize = 20

// IPPacket is an IPv4 datagram: a 20-byte header (options appended when
// present) plus payload.
type IPPacket struct {
	Version        byte
	IHL            byte // header length in 32-bit words; 5 when Options is empty
	DSCP           byte
	TotalLength    uint16
	Identification uint16
	Flags          byte
	FragmentOffset uint16 // units of 8 bytes
	TTL            byte
	Protocol       Protocol
	Checksum       uint16
	Src            wire.IP
	Dst            wire.IP
	Options        []byte
	Data           []byte
}

// NewPacket builds an IPPacket with the defaults spec §4.6's output path
// assigns to a freshly originated (non-fragment) datagram: TTL 64,
// identification 0, no flags, offset 0.
func NewPacket(src, dst wire.IP, protocol Protocol, data []byte) *IPPacket {
	p := &IPPacket{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: protocol,
		Src:      src,
		Dst:      dst,
		Data:     data,
	}
	p.TotalLength = uint16(HeaderSize + len(data))
	return p
}

// IsFragment reports whether p is part of a multi-fragment datagram (more
// fragments follow, or this is not the first fragment) — spec §4.6.
func (p *IPPacket) IsFragment() bool {
	return p.Flags&FlagMF != 0 || p.FragmentOffset > 0
}

// headerBytes renders the 20-byte fixed header (plus any options) with the
// checksum field set to the value in p.Checksum (0 during computation,
// the computed value when finalizing Marshal).
func (p *IPPacket) headerBytes() []byte {
	hdr := make([]byte, HeaderSize+len(p.Options))
	hdr[0] = (p.IHL << 4) | (p.Version & 0x0F)
	hdr[1] = p.DSCP
	binary.BigEndian.PutUint16(hdr[2:4], p.TotalLength)
	binary.BigEndian.PutUint16(hdr[4:6], p.Identification)
	flagsAndOffset := (p.FragmentOffset << 3) | uint16(p.Flags&0x7)
	binary.BigEndian.PutUint16(hdr[6:8], flagsAndOffset)
	hdr[8] = p.TTL
	hdr[9] = byte(p.Protocol)
	binary.BigEndian.PutUint16(hdr[10:12], p.Checksum)
	a, b, c, d := p.Src.Octets()
	hdr[12], hdr[13], hdr[14], hdr[15] = a, b, c, d
	a, b, c, d = p.Dst.Octets()
	hdr[16], hdr[17], hdr[18], hdr[19] = a, b, c, d
	copy(hdr[HeaderSize:], p.Options)
	return hdr
}

// ComputeChecksum returns the header checksum. When withField is true the
// current value of p.Checksum participates in the sum (used by the round
// trip invariant test: recomputing with the field included must yield 0);
// when false the field is treated as zero, which is how Marshal derives the
// value to store.
func (p *IPPacket) ComputeChecksum(withField bool) uint16 {
	saved := p.Checksum
	if !withField {
		p.Checksum = 0
	}
	hdr := p.headerBytes()
	p.Checksum = saved
	return wire.Checksum16(hdr)
}

// Marshal serializes the packet, computing and inserting the header
// checksum.
func (p *IPPacket) Marshal() []byte {
	p.Checksum = p.ComputeChecksum(false)
	hdr := p.headerBytes()
	out := make([]byte, 0, len(hdr)+len(p.Data))
	out = append(out, hdr...)
	out = append(out, p.Data...)
	return out
}

// UnmarshalIP parses buf into an IPPacket, verifying the header checksum.
func UnmarshalIP(buf []byte) (*IPPacket, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("%w: ip: short buffer (%d bytes)", wire.ErrInvalidFormat, len(buf))
	}
	versionIHL := buf[0]
	p := &IPPacket{
		Version: versionIHL & 0x0F,
		IHL:     versionIHL >> 4,
		DSCP:    buf[1],
	}
	p.TotalLength = binary.BigEndian.Uint16(buf[2:4])
	p.Identification = binary.BigEndian.Uint16(buf[4:6])
	flagsAndOffset := binary.BigEndian.Uint16(buf[6:8])
	p.Flags = byte(flagsAndOffset & 0x7)
	p.FragmentOffset = flagsAndOffset >> 3
	p.TTL = buf[8]
	p.Protocol = Protocol(buf[9])
	p.Checksum = binary.BigEndian.Uint16(buf[10:12])
	p.Src = wire.MakeIP(buf[12], buf[13], buf[14], buf[15])
	p.Dst = wire.MakeIP(buf[16], buf[17], buf[18], buf[19])

	optLen := int(p.IHL)*4 - HeaderSize
	if optLen < 0 || len(buf) < HeaderSize+optLen {
		return nil, fmt.Errorf("%w: ip: invalid IHL %d", wire.ErrInvalidFormat, p.IHL)
	}
	if optLen > 0 {
		p.Options = append([]byte(nil), buf[HeaderSize:HeaderSize+optLen]...)
	}
	p.Data = append([]byte(nil), buf[HeaderSize+optLen:]...)

	if p.ComputeChecksum(true) != 0 {
		return nil, errs.ErrBadChecksum
	}
	return p, nil
}

// Clone returns a deep copy of p, so callers (fragmentation, reassembly,
// ICMP error generation) can mutate a packet without aliasing the original.
func (p *IPPacket) Clone() *IPPacket {
	c := *p
	c.Options = append([]byte(nil), p.Options...)
	c.Data = append([]byte(nil), p.Data...)
	return &c
}
