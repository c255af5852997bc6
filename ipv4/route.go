package ipv4

import (
	"golang.org/x/exp/slices"

	"github.com/smiley22/netsim/wire"
)

// Route is one entry of a RoutingTable (spec §4.6 Routing).
type Route struct {
	Destination wire.IP
	Netmask     wire.IP
	Gateway     wire.IP // zero value means "directly connected, no next hop"
	Interface   *Interface
	Metric      int

	seq int // insertion order, for the metric tie-break
}

// RoutingTable holds a host's routes, keyed by destination/mask pair in
// insertion order.
type RoutingTable struct {
	routes []*Route
	nextSeq int
}

// NewRoutingTable returns an empty routing table.
func NewRoutingTable() *RoutingTable {
	return &RoutingTable{}
}

// Add inserts a route, recording its insertion order for the metric
// tie-break in Lookup.
func (rt *RoutingTable) Add(r *Route) {
	r.seq = rt.nextSeq
	rt.nextSeq++
	rt.routes = append(rt.routes, r)
}

// Remove deletes every route whose destination/netmask/interface match r.
func (rt *RoutingTable) Remove(destination, netmask wire.IP, ifc *Interface) {
	rt.routes = slices.DeleteFunc(rt.routes, func(r *Route) bool {
		return r.Destination == destination && r.Netmask == netmask && r.Interface == ifc
	})
}

// Lookup implements spec §4.6's Routing step: among routes whose
// (destination & netmask) matches (dst & netmask), keep the longest
// matching netmask; on a netmask tie, the lowest metric; on a further
// tie, the earliest inserted.
func (rt *RoutingTable) Lookup(dst wire.IP) (*Route, bool) {
	var best *Route
	var bestPrefixLen int
	for _, r := range rt.routes {
		if dst&r.Netmask != r.Destination&r.Netmask {
			continue
		}
		prefixLen := popcount(uint32(r.Netmask))
		switch {
		case best == nil:
			best, bestPrefixLen = r, prefixLen
		case prefixLen > bestPrefixLen:
			best, bestPrefixLen = r, prefixLen
		case prefixLen == bestPrefixLen && r.Metric < best.Metric:
			best, bestPrefixLen = r, prefixLen
		case prefixLen == bestPrefixLen && r.Metric == best.Metric && r.seq < best.seq:
			best, bestPrefixLen = r, prefixLen
		}
	}
	return best, best != nil
}

func popcount(x uint32) int {
	n := 0
	for x != 0 {
		n += int(x & 1)
		x >>= 1
	}
	return n
}

// Routes returns every route currently installed, for introspection.
func (rt *RoutingTable) Routes() []*Route {
	out := make([]*Route, len(rt.routes))
	copy(out, rt.routes)
	return out
}
