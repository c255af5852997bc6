// Package frame implements the IEEE 802.3 Ethernet frame codec used by the
// PHY/MAC layer: construction, FCS computation/verification, and the
// minimum-payload zero-padding rule (spec §3/§6).
package frame

import (
	"fmt"
	"hash/crc32"

	"github.com/smiley22/netsim/errs"
	"github.com/smiley22/netsim/wire"
)

// EtherType identifies the payload protocol carried by a Frame.
type EtherType uint16

const (
	// EtherTypeIPv4 marks a frame carrying an IPv4 datagram.
	EtherTypeIPv4 EtherType = 0x0800
	// EtherTypeARP marks a frame carrying an ARP packet.
	EtherTypeARP EtherType = 0x0806
)

const (
	// MinPayload is the smallest payload an Ethernet frame may carry;
	// shorter payloads are zero-padded up to this size on the wire.
	MinPayload = 46
	// MaxPayload is the largest payload an Ethernet frame may carry.
	MaxPayload = 1500
)

// Frame is an IEEE 802.3 Ethernet II frame.
type Frame struct {
	Dst       wire.MAC
	Src       wire.MAC
	EtherType EtherType
	Payload   []byte
}

// New constructs a Frame, panicking if the payload exceeds the maximum a
// real Ethernet frame may carry — a caller error, not a runtime condition
// the simulated network itself should ever produce.
func New(dst, src wire.MAC, etherType EtherType, payload []byte) *Frame {
	if len(payload) > MaxPayload {
		panic(fmt.Sprintf("frame: payload of %d bytes exceeds max %d", len(payload), MaxPayload))
	}
	return &Frame{Dst: dst, Src: src, EtherType: etherType, Payload: payload}
}

// wireLen is the number of payload bytes actually present on the wire,
// after zero-padding up to the Ethernet minimum.
func wireLen(payloadLen int) int {
	if payloadLen < MinPayload {
		return MinPayload
	}
	return payloadLen
}

// OnWireLength returns the total number of bytes that will be transmitted
// for this frame, header + payload-length field + padded payload + FCS —
// the length of Marshal's output, which is what the PHY layer puts on the
// cable and times its transmission by (spec §4.2).
func (f *Frame) OnWireLength() int {
	return 6 + 6 + 2 + 4 + wireLen(len(f.Payload)) + 4
}

// Marshal serializes the frame, including the internal payload-length field
// spec §6 calls out as a simulator convenience (no start/stop framing to
// delimit the payload otherwise), and the CRC-32 FCS computed over the
// header and the zero-padded payload actually placed on the wire.
func (f *Frame) Marshal() []byte {
	padded := make([]byte, wireLen(len(f.Payload)))
	copy(padded, f.Payload)

	b := wire.NewBuilder(16 + len(padded))
	b.PutBytes(f.Dst[:])
	b.PutBytes(f.Src[:])
	b.PutUint16(uint16(f.EtherType))
	b.PutUint32(uint32(len(f.Payload)))
	b.PutBytes(padded)

	fcs := crc32.ChecksumIEEE(b.Bytes())
	b.PutUint32(fcs)
	return b.Bytes()
}

// Unmarshal parses buf into a Frame, verifying the FCS. A mismatch returns
// errs.ErrBadFCS and the frame is dropped by the caller (spec §7).
func Unmarshal(buf []byte) (*Frame, error) {
	r := wire.NewReader(buf)
	dstB, ok := r.Bytes(6)
	if !ok {
		return nil, fmt.Errorf("%w: frame: short buffer for dst", wire.ErrInvalidFormat)
	}
	srcB, ok := r.Bytes(6)
	if !ok {
		return nil, fmt.Errorf("%w: frame: short buffer for src", wire.ErrInvalidFormat)
	}
	etherType, ok := r.Uint16()
	if !ok {
		return nil, fmt.Errorf("%w: frame: short buffer for etherType", wire.ErrInvalidFormat)
	}
	payloadLen, ok := r.Uint32()
	if !ok {
		return nil, fmt.Errorf("%w: frame: short buffer for payloadLength", wire.ErrInvalidFormat)
	}
	padded, ok := r.Bytes(wireLen(int(payloadLen)))
	if !ok {
		return nil, fmt.Errorf("%w: frame: short buffer for payload", wire.ErrInvalidFormat)
	}
	fcsGot, ok := r.Uint32()
	if !ok {
		return nil, fmt.Errorf("%w: frame: short buffer for fcs", wire.ErrInvalidFormat)
	}

	fcsWant := crc32.ChecksumIEEE(buf[:len(buf)-4])
	if fcsGot != fcsWant {
		return nil, errs.ErrBadFCS
	}

	f := &Frame{EtherType: EtherType(etherType)}
	copy(f.Dst[:], dstB)
	copy(f.Src[:], srcB)
	f.Payload = append([]byte(nil), padded[:payloadLen]...)
	return f, nil
}
