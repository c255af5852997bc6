package phy

import (
	"testing"

	"github.com/smiley22/netsim/engine"
	"github.com/smiley22/netsim/frame"
	"github.com/smiley22/netsim/wire"
)

type zeroRNG struct{}

func (zeroRNG) RandU01() float64 { return 0 }

// constRNG always returns the same draw — enough to give two colliding
// stations distinct backoff slot counts without needing real randomness.
type constRNG float64

func (r constRNG) RandU01() float64 { return float64(r) }

func TestNICDeliversFrameAcrossCable(t *testing.T) {
	eng := engine.New()
	cable := NewCable("seg", 250, 1e7, 0.66)

	macA, _ := wire.ParseMAC("AA:AA:AA:AA:AA:AA")
	macB, _ := wire.ParseMAC("BB:BB:BB:BB:BB:BB")
	nicA := NewNIC(macA, 1e7, 4, zeroRNG{})
	nicB := NewNIC(macB, 1e7, 4, zeroRNG{})
	if err := cable.Attach(nicA.Connector(), 0); err != nil {
		t.Fatalf("attach a: %v", err)
	}
	if err := cable.Attach(nicB.Connector(), 250); err != nil {
		t.Fatalf("attach b: %v", err)
	}

	var gotPayload []byte
	var gotEtherType frame.EtherType
	nicB.DataReceived = func(_ *engine.Engine, payload []byte, et frame.EtherType) {
		gotPayload = payload
		gotEtherType = et
	}

	fr := frame.New(macB, macA, frame.EtherTypeIPv4, []byte("ping"))
	if err := nicA.Output(eng, fr); err != nil {
		t.Fatalf("Output: %v", err)
	}
	eng.RunUntil(1_000_000)

	if string(gotPayload) != "ping" {
		t.Fatalf("payload = %q, want %q", gotPayload, "ping")
	}
	if gotEtherType != frame.EtherTypeIPv4 {
		t.Fatalf("etherType = %v, want %v", gotEtherType, frame.EtherTypeIPv4)
	}
}

func TestNICDropsOwnFrame(t *testing.T) {
	eng := engine.New()
	cable := NewCable("seg", 10, 1e7, 1.0)

	mac, _ := wire.ParseMAC("AA:AA:AA:AA:AA:AA")
	nic := NewNIC(mac, 1e7, 4, zeroRNG{})
	other := NewConnector()
	_ = cable.Attach(nic.Connector(), 0)
	_ = cable.Attach(other, 5)

	called := false
	nic.DataReceived = func(*engine.Engine, []byte, frame.EtherType) { called = true }

	fr := frame.New(wire.BroadcastMAC, mac, frame.EtherTypeIPv4, []byte("x"))
	_ = nic.Output(eng, fr)
	eng.RunUntil(1_000_000)

	if called {
		t.Fatalf("NIC should not deliver a frame it sourced itself back to its own DataReceived")
	}
}

func TestNICCollisionSettlesWithoutDeadlock(t *testing.T) {
	eng := engine.New()
	cable := NewCable("seg", 100, 1e7, 1.0)

	macA, _ := wire.ParseMAC("AA:AA:AA:AA:AA:AA")
	macB, _ := wire.ParseMAC("BB:BB:BB:BB:BB:BB")
	nicA := NewNIC(macA, 1e7, 4, zeroRNG{})
	nicB := NewNIC(macB, 1e7, 4, zeroRNG{})
	if err := cable.Attach(nicA.Connector(), 0); err != nil {
		t.Fatalf("attach a: %v", err)
	}
	if err := cable.Attach(nicB.Connector(), 50); err != nil {
		t.Fatalf("attach b: %v", err)
	}

	frA := frame.New(wire.BroadcastMAC, macA, frame.EtherTypeIPv4, []byte("hello-a"))
	frB := frame.New(wire.BroadcastMAC, macB, frame.EtherTypeIPv4, []byte("hello-b"))
	if err := nicA.Output(eng, frA); err != nil {
		t.Fatalf("Output a: %v", err)
	}
	if err := nicB.Output(eng, frB); err != nil {
		t.Fatalf("Output b: %v", err)
	}

	eng.RunUntil(engine.Time(10_000_000)) // 10ms, generous relative to slot/IFG timing

	if eng.Len() != 0 {
		t.Fatalf("simulation did not settle, %d events still pending", eng.Len())
	}
}

// TestNICStaggeredTransmissionsCollideAndBothRetransmit mirrors the 250m
// 10BASE5-style collision scenario: two stations each start transmitting
// before either has heard the other's carrier (H2 starts 1000ns after H1,
// well inside the 250m link's propagation delay), so both frames collide
// and must eventually be delivered after backoff.
func TestNICStaggeredTransmissionsCollideAndBothRetransmit(t *testing.T) {
	eng := engine.New()
	cable := NewCable("seg", 250, 1e7, 0.66)

	macA, _ := wire.ParseMAC("AA:AA:AA:AA:AA:AA")
	macB, _ := wire.ParseMAC("BB:BB:BB:BB:BB:BB")
	nicA := NewNIC(macA, 1e7, 4, constRNG(0.0))
	nicB := NewNIC(macB, 1e7, 4, constRNG(0.9))
	if err := cable.Attach(nicA.Connector(), 0); err != nil {
		t.Fatalf("attach a: %v", err)
	}
	if err := cable.Attach(nicB.Connector(), 250); err != nil {
		t.Fatalf("attach b: %v", err)
	}

	var aGot, bGot []byte
	nicA.DataReceived = func(_ *engine.Engine, payload []byte, _ frame.EtherType) { aGot = payload }
	nicB.DataReceived = func(_ *engine.Engine, payload []byte, _ frame.EtherType) { bGot = payload }

	frA := frame.New(macB, macA, frame.EtherTypeIPv4, []byte("from-a"))
	frB := frame.New(macA, macB, frame.EtherTypeIPv4, []byte("from-b"))
	if err := nicA.Output(eng, frA); err != nil {
		t.Fatalf("Output a: %v", err)
	}
	eng.ScheduleCallback(1000, func(eng *engine.Engine) {
		if err := nicB.Output(eng, frB); err != nil {
			t.Fatalf("Output b: %v", err)
		}
	})

	eng.RunUntil(engine.Time(50_000_000)) // 50ms, generous for several backoff rounds

	if string(bGot) != "from-a" {
		t.Fatalf("b never received a's frame after collision recovery, got %q", bGot)
	}
	if string(aGot) != "from-b" {
		t.Fatalf("a never received b's frame after collision recovery, got %q", aGot)
	}
	if eng.Len() != 0 {
		t.Fatalf("simulation did not settle, %d events still pending", eng.Len())
	}
}

func TestNICPromiscuousAcceptsUnaddressedFrame(t *testing.T) {
	eng := engine.New()
	cable := NewCable("seg", 10, 1e7, 1.0)

	macA, _ := wire.ParseMAC("AA:AA:AA:AA:AA:AA")
	macB, _ := wire.ParseMAC("BB:BB:BB:BB:BB:BB")
	macC, _ := wire.ParseMAC("CC:CC:CC:CC:CC:CC")
	nicA := NewNIC(macA, 1e7, 4, zeroRNG{})
	nicB := NewNIC(macB, 1e7, 4, zeroRNG{})
	nicB.Promiscuous = true
	_ = cable.Attach(nicA.Connector(), 0)
	_ = cable.Attach(nicB.Connector(), 5)

	received := false
	nicB.DataReceived = func(*engine.Engine, []byte, frame.EtherType) { received = true }

	fr := frame.New(macC, macA, frame.EtherTypeIPv4, []byte("not for b"))
	_ = nicA.Output(eng, fr)
	eng.RunUntil(1_000_000)

	if !received {
		t.Fatalf("promiscuous NIC should receive a frame addressed to neither itself nor broadcast")
	}
}
