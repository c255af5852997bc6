package wire

// ReassemblyKey identifies one IPv4 datagram's fragment set: the 3-tuple of
// endpoints and protocol plus the IP identification field (spec §4.6).
type ReassemblyKey struct {
	Src, Dst       IP
	Protocol       byte
	Identification uint16
}
