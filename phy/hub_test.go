package phy

import (
	"testing"

	"github.com/smiley22/netsim/engine"
)

// attachStation wires a fresh point-to-point cable between a hub port and a
// plain station Connector, returning the station side.
func attachStation(t *testing.T, port *Connector) *Connector {
	t.Helper()
	cable := NewCable("link", 10, 1e7, 1.0)
	if err := cable.Attach(port, 0); err != nil {
		t.Fatalf("attach port: %v", err)
	}
	station := NewConnector()
	if err := cable.Attach(station, 10); err != nil {
		t.Fatalf("attach station: %v", err)
	}
	return station
}

func TestHubRelaysToOtherPortsNotSource(t *testing.T) {
	hub := NewHub()
	p0 := hub.AddPort()
	p1 := hub.AddPort()
	p2 := hub.AddPort()

	s0 := attachStation(t, p0)
	s1 := attachStation(t, p1)
	s2 := attachStation(t, p2)

	var s0Called bool
	var got1, got2 []byte
	// s0 hears its own transmission loop back on its cable; only a cease
	// driven by anyone else would be a relay back to the source.
	s0.OnCease = func(_ *engine.Engine, sender *Connector, _ []byte) {
		if sender != s0 {
			s0Called = true
		}
	}
	s1.OnCease = func(_ *engine.Engine, _ *Connector, data []byte) { got1 = data }
	s2.OnCease = func(_ *engine.Engine, _ *Connector, data []byte) { got2 = data }

	eng := engine.New()
	s0.Transmit(eng, []byte("payload"))
	eng.RunUntil(1_000_000)

	if s0Called {
		t.Fatalf("hub relayed back to the source station")
	}
	if string(got1) != "payload" || string(got2) != "payload" {
		t.Fatalf("hub did not relay to both other ports: got1=%q got2=%q", got1, got2)
	}
}

func TestHubDropsJamSignal(t *testing.T) {
	hub := NewHub()
	p0 := hub.AddPort()
	p1 := hub.AddPort()

	_ = attachStation(t, p0)
	s1 := attachStation(t, p1)

	called := false
	s1.OnCease = func(*engine.Engine, *Connector, []byte) { called = true }

	eng := engine.New()
	hub.relay(eng, 0, nil) // a jam signal reaching the hub's port must not be repeated
	eng.RunUntil(1_000_000)

	if called {
		t.Fatalf("hub should not relay a jam signal")
	}
}
