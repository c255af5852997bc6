package phy

import (
	"testing"

	"github.com/smiley22/netsim/engine"
)

func TestCablePropagationAndTransmissionTiming(t *testing.T) {
	cable := NewCable("seg", 1000, 1e7, 1.0)
	a := NewConnector()
	b := NewConnector()
	if err := cable.Attach(a, 0); err != nil {
		t.Fatalf("Attach a: %v", err)
	}
	if err := cable.Attach(b, 1000); err != nil {
		t.Fatalf("Attach b: %v", err)
	}

	var aSense, aCease, bSense, bCease engine.Time
	a.OnSense = func(eng *engine.Engine) { aSense = eng.Now() }
	a.OnCease = func(eng *engine.Engine, _ *Connector, _ []byte) { aCease = eng.Now() }
	b.OnSense = func(eng *engine.Engine) { bSense = eng.Now() }
	b.OnCease = func(eng *engine.Engine, _ *Connector, _ []byte) { bCease = eng.Now() }

	eng := engine.New()
	data := make([]byte, 5) // 40 bits
	cable.Transmit(eng, a, data)
	eng.RunUntil(1_000_000)

	wantPropDelay := cable.propagationDelay(0, 1000)
	wantTransTime := cable.transmissionTime(40)

	if aSense != 0 {
		t.Fatalf("a (source) should sense at t=0, got %d", aSense)
	}
	if aCease != wantTransTime {
		t.Fatalf("a cease at %d, want %d", aCease, wantTransTime)
	}
	if bSense != wantPropDelay {
		t.Fatalf("b sense at %d, want %d", bSense, wantPropDelay)
	}
	if bCease != wantPropDelay+wantTransTime {
		t.Fatalf("b cease at %d, want %d", bCease, wantPropDelay+wantTransTime)
	}
}

func TestCableJamCancelsPendingCease(t *testing.T) {
	cable := NewCable("seg", 10, 1e7, 1.0)
	a := NewConnector()
	b := NewConnector()
	_ = cable.Attach(a, 0)
	_ = cable.Attach(b, 10)

	var bCeaseData []byte
	var bCeaseSeen bool
	b.OnCease = func(eng *engine.Engine, _ *Connector, data []byte) {
		bCeaseData = data
		bCeaseSeen = true
	}

	eng := engine.New()
	cable.Transmit(eng, a, []byte("hello"))
	cable.Jam(eng, a)
	eng.RunUntil(1_000_000)

	if !bCeaseSeen {
		t.Fatalf("b never saw a cease event")
	}
	if !IsJam(bCeaseData) {
		t.Fatalf("b's cease should carry the jam (nil) payload, got %v", bCeaseData)
	}
}

func TestCableAttachRejectsDuplicatePosition(t *testing.T) {
	cable := NewCable("seg", 10, 1e7, 1.0)
	a := NewConnector()
	b := NewConnector()
	if err := cable.Attach(a, 5); err != nil {
		t.Fatalf("Attach a: %v", err)
	}
	if err := cable.Attach(b, 5); err == nil {
		t.Fatalf("expected error attaching to an occupied position")
	}
}

func TestCableAttachEnforcesInstallationGrid(t *testing.T) {
	cable := NewCable("seg", 10, 1e7, 1.0)
	cable.InstallationGrid = 2.5
	a := NewConnector()
	if err := cable.Attach(a, 2.5); err != nil {
		t.Fatalf("2.5 should be on the grid: %v", err)
	}
	b := NewConnector()
	if err := cable.Attach(b, 3); err == nil {
		t.Fatalf("3 is not a multiple of the 2.5m grid, expected error")
	}
}

func TestCableDistortNoOpWhenBitErrorRateZero(t *testing.T) {
	cable := NewCable("seg", 10, 1e7, 1.0)
	data := []byte("unchanged")
	got := cable.distort(data)
	if string(got) != string(data) {
		t.Fatalf("distort with BitErrorRate=0 changed data: %q vs %q", got, data)
	}
}
