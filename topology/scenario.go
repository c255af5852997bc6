// Package topology loads a network scenario description from YAML or
// JSON (the teacher's codec-by-extension convention) and builds the
// engine/host/cable/bridge/hub object graph it describes, validating
// that every station ends up mutually reachable.
package topology

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// Scenario is the root of a topology description file.
type Scenario struct {
	Name    string         `yaml:"name" json:"name"`
	Hosts   []HostDesc     `yaml:"hosts" json:"hosts"`
	Cables  []CableDesc    `yaml:"cables" json:"cables"`
	Bridges []BridgeDesc   `yaml:"bridges,omitempty" json:"bridges,omitempty"`
	Hubs    []HubDesc      `yaml:"hubs,omitempty" json:"hubs,omitempty"`
	Routes  []RouteDesc    `yaml:"routes,omitempty" json:"routes,omitempty"`
}

// HostDesc describes one Host and its interfaces.
type HostDesc struct {
	Name               string          `yaml:"name" json:"name"`
	InputQueueCapacity int             `yaml:"inputQueueCapacity" json:"inputQueueCapacity"`
	Interfaces         []InterfaceDesc `yaml:"interfaces" json:"interfaces"`
}

// InterfaceDesc describes one NIC/IP interface, including the cable it
// attaches to and its position on it.
type InterfaceDesc struct {
	Name         string  `yaml:"name" json:"name"`
	MAC          string  `yaml:"mac" json:"mac"`
	Address      string  `yaml:"address" json:"address"` // CIDR, e.g. "192.168.1.2/24"
	Gateway      string  `yaml:"gateway,omitempty" json:"gateway,omitempty"`
	MTU          int     `yaml:"mtu" json:"mtu"`
	Bitrate      float64 `yaml:"bitrate" json:"bitrate"`
	FIFOCapacity int     `yaml:"fifoCapacity" json:"fifoCapacity"`
	Cable        string  `yaml:"cable" json:"cable"`
	Position     float64 `yaml:"position" json:"position"`
}

// CableDesc describes one shared or point-to-point medium.
type CableDesc struct {
	Name                 string  `yaml:"name" json:"name"`
	Length               float64 `yaml:"length" json:"length"`
	Bitrate              float64 `yaml:"bitrate" json:"bitrate"`
	VelocityFactor       float64 `yaml:"velocityFactor" json:"velocityFactor"`
	InstallationGrid     float64 `yaml:"installationGrid,omitempty" json:"installationGrid,omitempty"`
	BitErrorRate         float64 `yaml:"bitErrorRate,omitempty" json:"bitErrorRate,omitempty"`
	MinBurstErrorLength  int     `yaml:"minBurstErrorLength,omitempty" json:"minBurstErrorLength,omitempty"`
	MaxBurstErrorLength  int     `yaml:"maxBurstErrorLength,omitempty" json:"maxBurstErrorLength,omitempty"`
}

// BridgeDesc describes a learning bridge and its ports.
type BridgeDesc struct {
	Name            string           `yaml:"name" json:"name"`
	ProcessingDelay uint64           `yaml:"processingDelayNs" json:"processingDelayNs"`
	Ports           []BridgePortDesc `yaml:"ports" json:"ports"`
}

// BridgePortDesc describes one port of a Bridge.
type BridgePortDesc struct {
	MAC          string  `yaml:"mac" json:"mac"`
	Bitrate      float64 `yaml:"bitrate" json:"bitrate"`
	FIFOCapacity int     `yaml:"fifoCapacity" json:"fifoCapacity"`
	Cable        string  `yaml:"cable" json:"cable"`
	Position     float64 `yaml:"position" json:"position"`
}

// HubDesc describes a repeater hub and its ports.
type HubDesc struct {
	Name  string        `yaml:"name" json:"name"`
	Ports []HubPortDesc `yaml:"ports" json:"ports"`
}

// HubPortDesc describes one port of a Hub.
type HubPortDesc struct {
	Cable    string  `yaml:"cable" json:"cable"`
	Position float64 `yaml:"position" json:"position"`
}

// RouteDesc describes one static route to install on a host (spec §4.7
// addRoute).
type RouteDesc struct {
	Host        string `yaml:"host" json:"host"`
	Destination string `yaml:"destination" json:"destination"` // CIDR
	Gateway     string `yaml:"gateway,omitempty" json:"gateway,omitempty"`
	Interface   string `yaml:"interface" json:"interface"`
	Metric      int    `yaml:"metric" json:"metric"`
}

// WriteToFile serializes the scenario to filename, selecting JSON or
// YAML by its extension.
func (s *Scenario) WriteToFile(filename string) error {
	var bytes []byte
	var err error
	switch ext := path.Ext(filename); ext {
	case ".yaml", ".yml", ".YAML":
		bytes, err = yaml.Marshal(*s)
	case ".json", ".JSON":
		bytes, err = json.MarshalIndent(*s, "", "\t")
	default:
		return fmt.Errorf("topology: unrecognized file extension %q", ext)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(filename, bytes, 0o644)
}

// ReadScenario deserializes a Scenario from dict, or from filename if
// dict is empty. The codec is chosen by useYAML (YAML when true, JSON
// otherwise); filename's extension is not consulted.
func ReadScenario(filename string, useYAML bool, dict []byte) (*Scenario, error) {
	var err error
	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}
	s := &Scenario{}
	if useYAML {
		err = yaml.Unmarshal(dict, s)
	} else {
		err = json.Unmarshal(dict, s)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
