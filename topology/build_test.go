package topology

import (
	"strings"
	"testing"

	"github.com/smiley22/netsim/engine"
)

func TestBuildSucceedsForConnectedTopology(t *testing.T) {
	eng := engine.New()
	net, err := Build(eng, sampleScenario())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(net.Hosts) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(net.Hosts))
	}
	if _, ok := net.Cables["seg0"]; !ok {
		t.Fatalf("expected cable seg0 to be registered")
	}
	if _, ok := eng.Lookup("h1"); !ok {
		t.Fatalf("expected h1 to be registered with the engine")
	}
}

func TestBuildRejectsDisconnectedTopology(t *testing.T) {
	scn := sampleScenario()
	// Give h2 its own, unconnected cable instead of sharing seg0 with h1.
	scn.Cables = append(scn.Cables, CableDesc{Name: "seg1", Length: 10, Bitrate: 1e7, VelocityFactor: 1.0})
	scn.Hosts[1].Interfaces[0].Cable = "seg1"

	eng := engine.New()
	if _, err := Build(eng, scn); err == nil {
		t.Fatalf("expected a connectivity error for two hosts on separate cables")
	}
}

func TestBuildRejectsUnknownCableReference(t *testing.T) {
	scn := sampleScenario()
	scn.Hosts[0].Interfaces[0].Cable = "does-not-exist"

	eng := engine.New()
	_, err := Build(eng, scn)
	if err == nil || !strings.Contains(err.Error(), "unknown cable") {
		t.Fatalf("expected an unknown-cable error, got %v", err)
	}
}

func TestBuildInstallsRoutes(t *testing.T) {
	scn := sampleScenario()
	scn.Routes = []RouteDesc{
		{Host: "h1", Destination: "10.0.0.0/24", Gateway: "192.168.1.3", Interface: "eth0", Metric: 1},
	}

	eng := engine.New()
	net, err := Build(eng, scn)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	routes := net.Hosts["h1"].IPv4().Routes().Routes()
	if len(routes) != 1 {
		t.Fatalf("expected 1 installed route, got %d", len(routes))
	}
}

func TestBuildRejectsRouteForUnknownHost(t *testing.T) {
	scn := sampleScenario()
	scn.Routes = []RouteDesc{
		{Host: "ghost", Destination: "10.0.0.0/24", Interface: "eth0"},
	}

	eng := engine.New()
	if _, err := Build(eng, scn); err == nil {
		t.Fatalf("expected an error referencing the unknown host")
	}
}
