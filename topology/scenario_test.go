package topology

import (
	"os"
	"path/filepath"
	"testing"
)

func sampleScenario() *Scenario {
	return &Scenario{
		Name: "two-host-segment",
		Hosts: []HostDesc{
			{
				Name:               "h1",
				InputQueueCapacity: 16,
				Interfaces: []InterfaceDesc{
					{Name: "eth0", MAC: "AA:AA:AA:AA:AA:AA", Address: "192.168.1.2/24",
						MTU: 1500, Bitrate: 1e7, FIFOCapacity: 8, Cable: "seg0", Position: 0},
				},
			},
			{
				Name:               "h2",
				InputQueueCapacity: 16,
				Interfaces: []InterfaceDesc{
					{Name: "eth0", MAC: "BB:BB:BB:BB:BB:BB", Address: "192.168.1.3/24",
						MTU: 1500, Bitrate: 1e7, FIFOCapacity: 8, Cable: "seg0", Position: 250},
				},
			},
		},
		Cables: []CableDesc{
			{Name: "seg0", Length: 250, Bitrate: 1e7, VelocityFactor: 0.66},
		},
	}
}

func TestScenarioYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")

	want := sampleScenario()
	if err := want.WriteToFile(path); err != nil {
		t.Fatalf("WriteToFile: %v", err)
	}

	got, err := ReadScenario(path, true, nil)
	if err != nil {
		t.Fatalf("ReadScenario: %v", err)
	}
	if got.Name != want.Name {
		t.Fatalf("Name = %q, want %q", got.Name, want.Name)
	}
	if len(got.Hosts) != len(want.Hosts) || len(got.Cables) != len(want.Cables) {
		t.Fatalf("round trip lost hosts/cables: got %+v", got)
	}
	if got.Hosts[1].Interfaces[0].Address != "192.168.1.3/24" {
		t.Fatalf("h2 address = %q, want 192.168.1.3/24", got.Hosts[1].Interfaces[0].Address)
	}
}

func TestScenarioJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.json")

	want := sampleScenario()
	if err := want.WriteToFile(path); err != nil {
		t.Fatalf("WriteToFile: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(raw) == 0 || raw[0] != '{' {
		t.Fatalf("expected JSON output, got %q", raw[:min(20, len(raw))])
	}

	got, err := ReadScenario(path, false, nil)
	if err != nil {
		t.Fatalf("ReadScenario: %v", err)
	}
	if got.Name != want.Name {
		t.Fatalf("Name = %q, want %q", got.Name, want.Name)
	}
}

func TestScenarioWriteToFileRejectsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.txt")

	if err := sampleScenario().WriteToFile(path); err == nil {
		t.Fatalf("expected an error for an unrecognized extension")
	}
}

func TestReadScenarioFromInlineBytes(t *testing.T) {
	inline := []byte(`{"name":"inline","hosts":[],"cables":[]}`)
	got, err := ReadScenario("", false, inline)
	if err != nil {
		t.Fatalf("ReadScenario: %v", err)
	}
	if got.Name != "inline" {
		t.Fatalf("Name = %q, want %q", got.Name, "inline")
	}
}
