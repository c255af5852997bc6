package phy

import (
	"fmt"
	"math"

	"github.com/iti/rngstream"
	"golang.org/x/exp/slices"

	"github.com/smiley22/netsim/engine"
)

// SpeedOfLight is c, in meters per second.
const SpeedOfLight = 299_792_458.0

// JamBits is the width of the jam signal a colliding transceiver drives
// onto the medium to guarantee every station observes the collision
// (spec glossary, §4.2).
const JamBits = 48

// Cable models a shared wired segment: a bitrate, a propagation speed
// derived from the speed of light and a velocity factor, and the set of
// connectors attached to it together with their position along the cable
// (spec §3). The Cable — not the Connector — holds the canonical
// Connector-to-position mapping, per the design notes' ownership rules.
type Cable struct {
	Length           float64 // meters
	Bitrate          float64 // bits/second
	VelocityFactor   float64 // (0,1]
	FullDuplex       bool
	InstallationGrid float64 // meters; 0 disables the grid-alignment check

	// BitErrorRate, MinBurstErrorLength and MaxBurstErrorLength configure
	// the optional burst-error distortion model of spec §7. BitErrorRate
	// 0 disables distortion entirely.
	BitErrorRate         float64
	MinBurstErrorLength  int
	MaxBurstErrorLength  int

	positions map[*Connector]float64
	order     []*Connector // attachment order; Transmit/Jam must iterate deterministically, not over the map
	rng       *rngstream.RngStream
}

// NewCable constructs a Cable, validating the invariants spec §3 lists:
// velocityFactor in (0,1], bitrate > 0 and a non-negative length. The
// burst-error fields are set after construction; Attach is what rejects
// minBurstErrorLength > maxBurstErrorLength.
func NewCable(name string, length, bitrate, velocityFactor float64) *Cable {
	if length < 0 {
		panic(fmt.Sprintf("phy: cable %q: negative length %g", name, length))
	}
	if bitrate <= 0 {
		panic(fmt.Sprintf("phy: cable %q: non-positive bitrate %g", name, bitrate))
	}
	if velocityFactor <= 0 || velocityFactor > 1 {
		panic(fmt.Sprintf("phy: cable %q: velocity factor %g out of (0,1]", name, velocityFactor))
	}
	return &Cable{
		Length:         length,
		Bitrate:        bitrate,
		VelocityFactor: velocityFactor,
		positions:      make(map[*Connector]float64),
		rng:            rngstream.New(name),
	}
}

// propagationSpeed is c scaled by the cable's velocity factor.
func (c *Cable) propagationSpeed() float64 {
	return SpeedOfLight * c.VelocityFactor
}

// Attach adds conn to the cable at the given position (spec §3: each
// attached connector has a unique position; for coax-style cables the
// position must land on the installation grid). Returns an error — not a
// panic — since a scenario file's bad topology is a normal runtime
// condition a caller should be able to report, not a programming error.
func (c *Cable) Attach(conn *Connector, position float64) error {
	if position < 0 || position > c.Length {
		return fmt.Errorf("phy: position %g is outside cable of length %g", position, c.Length)
	}
	if c.InstallationGrid > 0 {
		ratio := position / c.InstallationGrid
		if math.Abs(ratio-math.Round(ratio)) > 1e-9 {
			return fmt.Errorf("phy: position %g is not a multiple of the %g m installation grid", position, c.InstallationGrid)
		}
	}
	if slices.ContainsFunc(c.order, func(other *Connector) bool {
		return other != conn && c.positions[other] == position
	}) {
		return fmt.Errorf("phy: position %g is already occupied", position)
	}
	if c.BitErrorRate > 0 && c.MinBurstErrorLength > c.MaxBurstErrorLength {
		return fmt.Errorf("phy: minBurstErrorLength %d exceeds maxBurstErrorLength %d", c.MinBurstErrorLength, c.MaxBurstErrorLength)
	}
	conn.cable = c
	if _, already := c.positions[conn]; !already {
		c.order = append(c.order, conn)
	}
	c.positions[conn] = position
	return nil
}

// Connectors returns every connector attached to the cable, in attachment
// order.
func (c *Cable) Connectors() []*Connector {
	return append([]*Connector(nil), c.order...)
}

// transmissionTime returns the time, in nanoseconds, needed to put the
// given number of bits on the wire at the cable's bitrate.
func (c *Cable) transmissionTime(bits float64) engine.Time {
	return engine.Time(bits * 1e9 / c.Bitrate)
}

// propagationDelay returns the propagation delay, in nanoseconds, between
// two positions on the cable.
func (c *Cable) propagationDelay(a, b float64) engine.Time {
	return engine.Time(math.Abs(a-b) * 1e9 / c.propagationSpeed())
}

// Transmit puts data on the wire, originating at source's position. Every
// attached connector (including source itself, which senses its own
// carrier exactly as a real transceiver looping back onto a shared bus
// does) gets a SignalSense scheduled at its propagation delay and a
// SignalCease scheduled at propagation delay + transmission time, carrying
// a copy of data independently distorted by the cable's bit-error model
// (spec §4.2).
func (c *Cable) Transmit(eng *engine.Engine, source *Connector, data []byte) {
	srcPos := c.positions[source]
	transTime := c.transmissionTime(float64(len(data)) * 8)

	for _, conn := range c.order {
		pos := c.positions[conn]
		propDelay := c.propagationDelay(srcPos, pos)
		delivered := c.distort(data)
		cc := conn
		eng.Schedule(eng.Now()+propDelay, engine.KindSignalSense, source, cc, func(eng *engine.Engine) {
			if cc.OnSense != nil {
				cc.OnSense(eng)
			}
		})
		eng.Schedule(eng.Now()+propDelay+transTime, engine.KindSignalCease, source, cc, func(eng *engine.Engine) {
			if cc.OnCease != nil {
				cc.OnCease(eng, source, delivered)
			}
		})
	}
}

// Jam cancels every not-yet-fired SignalCease originated by source (they
// are obsolete — the jam replaces them), then drives a 48-bit jam signal
// onto every attached connector: an immediate SignalSense and a
// SignalCease carrying a nil payload (the receiver-side "isJam" test) at
// the jam's own propagation delay plus transmission time. It returns the
// jam transmission time so the caller's backoff clock can start from it
// (spec §4.2).
func (c *Cable) Jam(eng *engine.Engine, source *Connector) engine.Time {
	eng.CancelMatching(func(ev *engine.Event) bool {
		return ev.Kind == engine.KindSignalCease && ev.Sender == source
	})

	jamTransTime := c.transmissionTime(JamBits)
	srcPos := c.positions[source]

	for _, conn := range c.order {
		pos := c.positions[conn]
		propDelay := c.propagationDelay(srcPos, pos)
		cc := conn
		eng.Schedule(eng.Now(), engine.KindSignalSense, source, cc, func(eng *engine.Engine) {
			if cc.OnSense != nil {
				cc.OnSense(eng)
			}
		})
		eng.Schedule(eng.Now()+propDelay+jamTransTime, engine.KindSignalCease, source, cc, func(eng *engine.Engine) {
			if cc.OnCease != nil {
				cc.OnCease(eng, source, nil)
			}
		})
	}
	return jamTransTime
}

// IsJam reports whether a SignalCease's data payload marks a jam signal
// rather than a frame (spec §4.2).
func IsJam(data []byte) bool {
	return data == nil
}

// distort applies the cable's burst-error model (spec §7) to an
// independent copy of data: scanning bit by bit, with probability
// BitErrorRate at each position it starts a burst of length drawn
// uniformly from [MinBurstErrorLength, MaxBurstErrorLength] and replaces
// those bits with fresh random ones, then resumes scanning past the
// burst. BitErrorRate 0 is a fast path that returns an unchanged copy
// (each connector still gets its own backing array, since each delivery
// is corrupted independently). A nil (jam) payload is returned as nil.
func (c *Cable) distort(data []byte) []byte {
	if data == nil {
		return nil
	}
	out := append([]byte(nil), data...)
	if c.BitErrorRate <= 0 || len(out) == 0 {
		return out
	}

	totalBits := len(out) * 8
	burstRange := c.MaxBurstErrorLength - c.MinBurstErrorLength + 1
	for bit := 0; bit < totalBits; bit++ {
		if c.rng.RandU01() >= c.BitErrorRate {
			continue
		}
		burstLen := c.MinBurstErrorLength
		if burstRange > 1 {
			burstLen += int(c.rng.RandU01() * float64(burstRange))
		}
		for n := 0; n < burstLen && bit < totalBits; n, bit = n+1, bit+1 {
			if c.rng.RandU01() < 0.5 {
				out[bit/8] ^= 1 << uint(bit%8)
			}
		}
	}
	return out
}
