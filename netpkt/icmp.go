package netpkt

import (
	"encoding/binary"
	"fmt"

	"github.com/smiley22/netsim/errs"
	"github.com/smiley22/netsim/wire"
)

// ICMP type/code values used by the IPv4 engine's error paths (spec §4.6,
// §7). Only the four conditions the core itself generates are named; this
// simulator has no ICMP echo/ping support since nothing above IP originates
// one.
const (
	ICMPTypeDestinationUnreachable byte = 3
	ICMPCodeNetworkUnreachable     byte = 0
	ICMPCodeFragmentationRequired  byte = 4

	ICMPTypeSourceQuench byte = 4

	ICMPTypeTimeExceeded byte = 11
	ICMPCodeTTLExceeded  byte = 0
)

// ICMPPacket is an ICMP message: type, code, checksum, and a data payload.
type ICMPPacket struct {
	Type     byte
	Code     byte
	Checksum uint16
	Data     []byte
}

// triggeringSnippet returns the IP header plus the first 8 bytes of the
// triggering packet's payload, the conventional ICMP quoting rule spec §3
// calls for in the four error builders below.
func triggeringSnippet(trigger *IPPacket) []byte {
	hdr := trigger.headerBytes()
	snippet := make([]byte, 0, len(hdr)+8)
	snippet = append(snippet, hdr...)
	n := 8
	if n > len(trigger.Data) {
		n = len(trigger.Data)
	}
	snippet = append(snippet, trigger.Data[:n]...)
	return snippet
}

// TimeExceeded builds the ICMP message sent back to a packet's source when
// its TTL reaches zero in transit (spec §4.6 step 1, §7 TtlExceeded).
func TimeExceeded(trigger *IPPacket) *ICMPPacket {
	return &ICMPPacket{Type: ICMPTypeTimeExceeded, Code: ICMPCodeTTLExceeded, Data: triggeringSnippet(trigger)}
}

// DestinationNetworkUnreachable builds the ICMP message sent when the
// routing table has no entry for a packet's destination (spec §7 NoRoute).
func DestinationNetworkUnreachable(trigger *IPPacket) *ICMPPacket {
	return &ICMPPacket{Type: ICMPTypeDestinationUnreachable, Code: ICMPCodeNetworkUnreachable, Data: triggeringSnippet(trigger)}
}

// FragmentationRequired builds the ICMP message sent when a packet exceeds
// the next hop's MTU but carries the don't-fragment flag (spec §7
// MtuExceededDF).
func FragmentationRequired(trigger *IPPacket) *ICMPPacket {
	return &ICMPPacket{Type: ICMPTypeDestinationUnreachable, Code: ICMPCodeFragmentationRequired, Data: triggeringSnippet(trigger)}
}

// SourceQuench builds the ICMP message sent to a packet's source when the
// IP input queue is full on arrival (spec §7 QueueFull on ingress).
func SourceQuench(trigger *IPPacket) *ICMPPacket {
	return &ICMPPacket{Type: ICMPTypeSourceQuench, Data: triggeringSnippet(trigger)}
}

// ComputeChecksum returns the ICMP checksum. As with IPPacket, withField
// controls whether the current Checksum field participates in the sum.
func (m *ICMPPacket) ComputeChecksum(withField bool) uint16 {
	saved := m.Checksum
	if !withField {
		m.Checksum = 0
	}
	buf := m.bytes()
	m.Checksum = saved
	return wire.Checksum16(buf)
}

func (m *ICMPPacket) bytes() []byte {
	buf := make([]byte, 4+len(m.Data))
	buf[0] = m.Type
	buf[1] = m.Code
	binary.BigEndian.PutUint16(buf[2:4], m.Checksum)
	copy(buf[4:], m.Data)
	return buf
}

// Marshal serializes the ICMP packet, computing and inserting the
// checksum.
func (m *ICMPPacket) Marshal() []byte {
	m.Checksum = m.ComputeChecksum(false)
	return m.bytes()
}

// UnmarshalICMP parses buf into an ICMPPacket, verifying the checksum.
func UnmarshalICMP(buf []byte) (*ICMPPacket, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("%w: icmp: short buffer (%d bytes)", wire.ErrInvalidFormat, len(buf))
	}
	m := &ICMPPacket{
		Type:     buf[0],
		Code:     buf[1],
		Checksum: binary.BigEndian.Uint16(buf[2:4]),
		Data:     append([]byte(nil), buf[4:]...),
	}
	if m.ComputeChecksum(true) != 0 {
		return nil, errs.ErrBadChecksum
	}
	return m, nil
}
