package phy

import (
	"github.com/apex/log"

	"github.com/smiley22/netsim/engine"
	"github.com/smiley22/netsim/frame"
	"github.com/smiley22/netsim/wire"
)

// IFGBits and SlotBits are the link-layer timing constants of spec
// §4.3/glossary, expressed in bittimes of the NIC's bitrate.
const (
	IFGBits  = 96  // interframe gap, in bittimes
	SlotBits = 512 // backoff slot time, in bittimes

	// MaxRetransmissions is the CSMA/CD retry ceiling; exceeding it aborts
	// the transmission and resets the counter (spec §7 MaxRetransmissions).
	MaxRetransmissions = 15

	// deferMinNs/deferMaxNs bound the pseudo-random retry delay used when
	// transmit() finds the medium busy (spec §4.3 step 1).
	deferMinNs = 10_000
	deferMaxNs = 15_000
)

// NIC is a half-duplex CSMA/CD station transceiver: carrier sense,
// collision detection, jam/backoff recovery, Ethernet framing and FCS
// checking, and an output FIFO of frames awaiting transmission (spec
// §4.3). It owns a Connector to a Cable but has no notion of IP; its
// upward interface is the two callback fields below.
type NIC struct {
	MAC wire.MAC

	conn    *Connector
	bitrate float64
	rng     rngSource

	tx      bool // currently driving the medium
	rx      bool // currently sensing a carrier (possibly our own)
	jamming bool // jam already emitted for the in-progress collision

	// Promiscuous, when true, bypasses the destination-address filter in
	// receive — used by a Bridge port, which must see every frame on its
	// segment regardless of destination MAC.
	Promiscuous bool

	retransmissionCount int
	pending             []byte // bytes of the frame currently being (re)transmitted
	fifo                *wire.CappedQueue[[]byte]
	emptyingFIFO        bool

	// DataReceived is invoked with a fully validated, deframed payload
	// and its EtherType whenever a frame addressed to this NIC (unicast
	// or broadcast) passes its FCS check.
	DataReceived func(eng *engine.Engine, payload []byte, etherType frame.EtherType)

	// FrameReceived, when set, is invoked with the full validated Frame
	// instead of (or in addition to) DataReceived — used by a Bridge
	// port, which must see source/destination MAC to learn and forward
	// rather than just the payload.
	FrameReceived func(eng *engine.Engine, fr *frame.Frame)

	// SendFIFOEmpty is invoked once the output FIFO has been fully
	// drained, mirroring the interrupt of the same name in spec §4.3/§4.7.
	SendFIFOEmpty func(eng *engine.Engine)
}

// rngSource is the single primitive this package depends on from
// github.com/iti/rngstream: a uniform draw on [0,1).
type rngSource interface {
	RandU01() float64
}

// NewNIC constructs a NIC with the given MAC address, bitrate (for
// deriving IFG/slot-time in nanoseconds) and output FIFO capacity. rng
// drives the busy-medium retry jitter and the backoff slot selection.
func NewNIC(mac wire.MAC, bitrate float64, fifoCapacity int, rng rngSource) *NIC {
	if bitrate <= 0 {
		panic("phy: NIC bitrate must be positive")
	}
	n := &NIC{
		MAC:     mac,
		conn:    NewConnector(),
		bitrate: bitrate,
		rng:     rng,
		fifo:    wire.NewCappedQueue[[]byte](fifoCapacity),
	}
	n.conn.OnSense = n.onSense
	n.conn.OnCease = n.onCease
	return n
}

// Connector exposes the NIC's cable attachment point.
func (n *NIC) Connector() *Connector {
	return n.conn
}

func (n *NIC) bittime() float64 {
	return 1e9 / n.bitrate
}

func (n *NIC) ifg() engine.Time {
	return engine.Time(IFGBits * n.bittime())
}

func (n *NIC) slotTime() engine.Time {
	return engine.Time(SlotBits * n.bittime())
}

// Output enqueues a frame for transmission. If the FIFO was empty, it
// schedules an immediate callback to start draining, so the drain's
// effect is ordered against any other event already pending for this
// instant rather than running inline ahead of it (spec §4.3).
func (n *NIC) Output(eng *engine.Engine, fr *frame.Frame) error {
	buf := fr.Marshal()
	wasEmpty := n.fifo.Empty()
	if err := n.fifo.Push(buf); err != nil {
		log.WithField("mac", n.MAC.String()).Warn("phy: output FIFO full, dropping frame")
		return err
	}
	if wasEmpty && !n.emptyingFIFO {
		n.emptyingFIFO = true
		eng.ScheduleCallback(0, func(eng *engine.Engine) { n.drainNext(eng) })
	}
	return nil
}

func (n *NIC) drainNext(eng *engine.Engine) {
	buf, ok := n.fifo.Pop()
	if !ok {
		n.emptyingFIFO = false
		if n.SendFIFOEmpty != nil {
			n.SendFIFOEmpty(eng)
		}
		return
	}
	n.transmit(eng, buf)
}

// transmit implements spec §4.3's transmit(bytes): defer on a busy
// medium, otherwise wait out the IFG before actually keying the
// transmitter.
func (n *NIC) transmit(eng *engine.Engine, data []byte) {
	n.pending = data
	if n.rx {
		delay := engine.Time(deferMinNs + n.rng.RandU01()*(deferMaxNs-deferMinNs))
		eng.ScheduleCallback(delay, func(eng *engine.Engine) {
			n.transmit(eng, n.pending)
		})
		return
	}
	eng.ScheduleCallback(n.ifg(), func(eng *engine.Engine) {
		n.startTransmission(eng)
	})
}

// startTransmission keys the transmitter if the medium is still idle;
// otherwise the IFG wait must be restarted (spec §4.3).
func (n *NIC) startTransmission(eng *engine.Engine) {
	if n.rx {
		n.transmit(eng, n.pending)
		return
	}
	n.tx = true
	n.conn.Transmit(eng, n.pending)
}

// onSense handles a rising carrier (spec §4.3): if we are already
// sensing a carrier (rx) while transmitting (tx), a second carrier has
// arrived on top of our own — a collision. Otherwise this is simply the
// medium going busy, our own loopback sense included. Once a jam has been
// emitted for the current collision, the jam's own sense (looped back to
// us like any other signal) must not re-trigger collision handling.
func (n *NIC) onSense(eng *engine.Engine) {
	if n.jamming {
		return
	}
	if n.rx && n.tx {
		n.jamming = true
		jamTime := n.conn.Jam(eng)
		n.exponentialBackoff(eng, jamTime)
		return
	}
	n.rx = true
}

// onCease handles a falling carrier (spec §4.3): jam data is discarded
// (we remain in backoff), our own completed transmission resets the
// retry counter and drains the next queued frame, and foreign frames are
// handed to MAC receive.
func (n *NIC) onCease(eng *engine.Engine, sender *Connector, data []byte) {
	n.rx = false
	wasTx := n.tx
	n.tx = false

	if IsJam(data) {
		n.jamming = false
		return
	}
	if sender == n.conn {
		if wasTx {
			n.retransmissionCount = 0
			n.pending = nil
			n.drainNext(eng)
		}
		return
	}
	n.receive(eng, data)
}

// exponentialBackoff implements spec §4.3's truncated binary exponential
// backoff: abort after 15 retries, otherwise draw a uniform slot count
// from [0, 2^min(n,10)) and retry after jamTime + c*slotTime.
func (n *NIC) exponentialBackoff(eng *engine.Engine, jamTime engine.Time) {
	n.retransmissionCount++
	if n.retransmissionCount > MaxRetransmissions {
		log.WithField("mac", n.MAC.String()).
			Warn("phy: max retransmissions exceeded, aborting frame")
		n.retransmissionCount = 0
		n.pending = nil
		n.drainNext(eng)
		return
	}
	limit := 1 << min(n.retransmissionCount, 10)
	c := int(n.rng.RandU01() * float64(limit))
	delay := jamTime + engine.Time(c)*n.slotTime()
	eng.ScheduleCallback(delay, func(eng *engine.Engine) {
		n.transmit(eng, n.pending)
	})
}

// receive implements MAC receive (spec §4.3): recompute FCS, drop our own
// frames and bad-FCS frames silently, accept unicast-to-us or broadcast.
func (n *NIC) receive(eng *engine.Engine, raw []byte) {
	fr, err := frame.Unmarshal(raw)
	if err != nil {
		log.WithField("mac", n.MAC.String()).WithError(err).Debug("phy: dropping frame with bad FCS")
		return
	}
	if fr.Src == n.MAC {
		return
	}
	if !n.Promiscuous && fr.Dst != n.MAC && !fr.Dst.IsBroadcast() {
		return
	}
	if n.DataReceived != nil {
		n.DataReceived(eng, fr.Payload, fr.EtherType)
	}
	if n.FrameReceived != nil {
		n.FrameReceived(eng, fr)
	}
}
