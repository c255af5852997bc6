// Package errs collects the sentinel error kinds named in spec §7, so every
// layer reports failures the same way and callers can tell them apart with
// errors.Is rather than string matching.
package errs

import "errors"

var (
	// ErrBadChecksum is returned when a deserialized IP or ICMP header's
	// checksum does not verify.
	ErrBadChecksum = errors.New("netsim: bad checksum")

	// ErrBadFCS is returned when a deserialized Ethernet frame's FCS does
	// not match its payload.
	ErrBadFCS = errors.New("netsim: bad frame check sequence")
)
