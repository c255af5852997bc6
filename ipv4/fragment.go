package ipv4

import (
	"sort"

	"github.com/smiley22/netsim/netpkt"
	"github.com/smiley22/netsim/wire"
)

// fragment splits p into fragments no larger than maxSegSize bytes of
// payload each (spec §4.6 Fragmentation). maxSegSize is rounded down to
// a multiple of 8 since the fragment offset field counts in 8-byte
// units; the last fragment carries whatever remainder that rounding
// leaves behind.
func fragment(p *netpkt.IPPacket, mtu int) []*netpkt.IPPacket {
	maxSegSize := (mtu - netpkt.HeaderSize) / 8 * 8
	if maxSegSize <= 0 {
		panic("ipv4: MTU too small to carry any fragment payload")
	}
	numSegs := (len(p.Data) + maxSegSize - 1) / maxSegSize
	if numSegs == 0 {
		numSegs = 1
	}

	ident := p.Identification
	out := make([]*netpkt.IPPacket, 0, numSegs)
	offset := 0 // in 8-byte units
	for i := 0; i < numSegs; i++ {
		mf := i < numSegs-1
		flags := p.Flags
		if mf {
			flags |= netpkt.FlagMF
		}
		start := offset * 8
		size := maxSegSize
		if remaining := len(p.Data) - start; remaining < size {
			size = remaining
		}
		dataSlice := append([]byte(nil), p.Data[start:start+size]...)

		frag := &netpkt.IPPacket{
			Version:         p.Version,
			IHL:             p.IHL,
			DSCP:            p.DSCP,
			Identification:  ident,
			Flags:           flags,
			FragmentOffset:  uint16(p.FragmentOffset) + uint16(offset),
			TTL:             p.TTL,
			Protocol:        p.Protocol,
			Src:             p.Src,
			Dst:             p.Dst,
			Data:            dataSlice,
		}
		frag.TotalLength = uint16(netpkt.HeaderSize + len(dataSlice))
		out = append(out, frag)
		offset += maxSegSize / 8
	}
	return out
}

// reassembler tracks the fragments seen so far for one (src, dst,
// protocol, identification) key (spec §4.6 Reassembly), using a
// union-find over byte positions to detect when the whole original
// payload is covered without gaps.
type reassembler struct {
	uf             *wire.UnionFind
	fragments      []*netpkt.IPPacket
	originalLength int // 0 until the non-MF fragment is seen
}

// unionFindSize must exceed the maximum byte position reassembly can
// union(to, to+1) against: with byte positions in [0, 65536), the last
// fragment's "to" can be 65535, and union(to, to+1) then touches index
// 65536 — one past the nominal range the spec names, so the backing
// array needs 65537 slots, not 65536.
const unionFindSize = 65537

func newReassembler() *reassembler {
	return &reassembler{uf: wire.NewUnionFind(unionFindSize)}
}

// add folds one more fragment into the reassembler and reports the
// complete packet once every byte from 0 to originalLength is connected
// (spec §4.6 Reassembly steps).
func (r *reassembler) add(f *netpkt.IPPacket) (*netpkt.IPPacket, bool) {
	r.fragments = append(r.fragments, f)

	from := int(f.FragmentOffset) * 8
	to := from + len(f.Data) - 1
	if to < from {
		to = from
	}
	r.uf.Union(from, to)
	r.uf.Union(to, to+1)
	if f.Flags&netpkt.FlagMF == 0 {
		r.originalLength = from + len(f.Data)
	}

	if r.originalLength == 0 {
		return nil, false
	}
	if !r.uf.Connected(0, r.originalLength) {
		return nil, false
	}
	return r.assemble(), true
}

// assemble concatenates the fragments' payloads in offset order.
func (r *reassembler) assemble() *netpkt.IPPacket {
	frags := append([]*netpkt.IPPacket(nil), r.fragments...)
	sort.Slice(frags, func(i, j int) bool { return frags[i].FragmentOffset < frags[j].FragmentOffset })

	data := make([]byte, 0, r.originalLength)
	for _, f := range frags {
		data = append(data, f.Data...)
	}
	if len(data) > r.originalLength {
		data = data[:r.originalLength]
	}

	first := frags[0]
	out := &netpkt.IPPacket{
		Version:  first.Version,
		IHL:      first.IHL,
		DSCP:     first.DSCP,
		TTL:      first.TTL,
		Protocol: first.Protocol,
		Src:      first.Src,
		Dst:      first.Dst,
		Data:     data,
	}
	out.TotalLength = uint16(netpkt.HeaderSize + len(data))
	return out
}
