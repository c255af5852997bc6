package arp

import (
	"testing"

	"github.com/smiley22/netsim/engine"
	"github.com/smiley22/netsim/netpkt"
	"github.com/smiley22/netsim/wire"
)

type fakeLink struct {
	sent []*netpkt.ARPPacket
}

func (f *fakeLink) SendARP(eng *engine.Engine, dst wire.MAC, pkt *netpkt.ARPPacket) {
	f.sent = append(f.sent, pkt)
}

func TestResolveDeduplicates(t *testing.T) {
	eng := engine.New()
	link := &fakeLink{}
	mac, _ := wire.ParseMAC("AA:AA:AA:AA:AA:AA")
	c := NewCache(mac, wire.MakeIP(192, 168, 1, 2), link)

	target := wire.MakeIP(192, 168, 1, 3)
	c.Resolve(eng, target)
	c.Resolve(eng, target)

	if len(link.sent) != 1 {
		t.Fatalf("expected exactly one request, got %d", len(link.sent))
	}
}

func TestOnInputLearnsAndExpires(t *testing.T) {
	eng := engine.New()
	link := &fakeLink{}
	mac, _ := wire.ParseMAC("AA:AA:AA:AA:AA:AA")
	c := NewCache(mac, wire.MakeIP(192, 168, 1, 2), link)

	remoteMAC, _ := wire.ParseMAC("BB:BB:BB:BB:BB:BB")
	remoteIP := wire.MakeIP(192, 168, 1, 3)
	c.OnInput(eng, netpkt.NewReply(remoteMAC, remoteIP, mac, c.ownIP))

	got, ok := c.Lookup(eng.Now(), remoteIP)
	if !ok || got != remoteMAC {
		t.Fatalf("Lookup after learning = (%v, %v), want (%v, true)", got, ok, remoteMAC)
	}

	if _, ok := c.Lookup(eng.Now()+Expiry+1, remoteIP); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestOnInputRepliesToOwnRequest(t *testing.T) {
	eng := engine.New()
	link := &fakeLink{}
	mac, _ := wire.ParseMAC("AA:AA:AA:AA:AA:AA")
	ownIP := wire.MakeIP(192, 168, 1, 2)
	c := NewCache(mac, ownIP, link)

	remoteMAC, _ := wire.ParseMAC("BB:BB:BB:BB:BB:BB")
	remoteIP := wire.MakeIP(192, 168, 1, 3)
	c.OnInput(eng, netpkt.NewRequest(remoteMAC, remoteIP, ownIP))

	if len(link.sent) != 1 || link.sent[0].IsRequest {
		t.Fatalf("expected exactly one reply, got %+v", link.sent)
	}
}

func TestOnInputIgnoresOwnRequest(t *testing.T) {
	eng := engine.New()
	link := &fakeLink{}
	mac, _ := wire.ParseMAC("AA:AA:AA:AA:AA:AA")
	c := NewCache(mac, wire.MakeIP(192, 168, 1, 2), link)

	c.OnInput(eng, netpkt.NewRequest(mac, c.ownIP, wire.MakeIP(192, 168, 1, 9)))
	if len(c.entries) != 0 {
		t.Fatalf("own request should not be learned")
	}
}
