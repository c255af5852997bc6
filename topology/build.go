package topology

import (
	"fmt"

	"github.com/iti/rngstream"

	"github.com/smiley22/netsim/engine"
	"github.com/smiley22/netsim/host"
	"github.com/smiley22/netsim/phy"
	"github.com/smiley22/netsim/wire"
)

// Network is the fully constructed object graph a Scenario describes.
type Network struct {
	Engine  *engine.Engine
	Hosts   map[string]*host.Host
	Bridges map[string]*phy.Bridge
	Hubs    map[string]*phy.Hub
	Cables  map[string]*phy.Cable
}

// Build constructs a Network from scn: cables first, then every host's
// interfaces and every bridge/hub's ports attaching to them, then
// routes, then validates that the resulting physical topology leaves no
// station unreachable from any other. A disconnected topology makes Build
// return an error instead of a Network.
func Build(eng *engine.Engine, scn *Scenario) (*Network, error) {
	net := &Network{
		Engine:  eng,
		Hosts:   make(map[string]*host.Host),
		Bridges: make(map[string]*phy.Bridge),
		Hubs:    make(map[string]*phy.Hub),
		Cables:  make(map[string]*phy.Cable),
	}

	for _, cd := range scn.Cables {
		c := phy.NewCable(cd.Name, cd.Length, cd.Bitrate, cd.VelocityFactor)
		c.InstallationGrid = cd.InstallationGrid
		c.BitErrorRate = cd.BitErrorRate
		c.MinBurstErrorLength = cd.MinBurstErrorLength
		c.MaxBurstErrorLength = cd.MaxBurstErrorLength
		net.Cables[cd.Name] = c
		eng.Register(cd.Name, c)
	}

	for _, hd := range scn.Hosts {
		h := host.NewHost(hd.Name, hd.InputQueueCapacity)
		net.Hosts[hd.Name] = h
		eng.Register(hd.Name, h)

		for _, id := range hd.Interfaces {
			mac, err := wire.ParseMAC(id.MAC)
			if err != nil {
				return nil, fmt.Errorf("topology: host %s interface %s: %w", hd.Name, id.Name, err)
			}
			cidr, err := wire.ParseCIDR(id.Address)
			if err != nil {
				return nil, fmt.Errorf("topology: host %s interface %s: %w", hd.Name, id.Name, err)
			}
			var gateway wire.IP
			if id.Gateway != "" {
				gateway, err = wire.ParseIP(id.Gateway)
				if err != nil {
					return nil, fmt.Errorf("topology: host %s interface %s gateway: %w", hd.Name, id.Name, err)
				}
			}
			cable, ok := net.Cables[id.Cable]
			if !ok {
				return nil, fmt.Errorf("topology: host %s interface %s: unknown cable %q", hd.Name, id.Name, id.Cable)
			}

			_, conn := h.AddInterface(host.InterfaceConfig{
				Name:         id.Name,
				MAC:          mac,
				IP:           cidr.IP,
				Netmask:      cidr.Mask,
				Gateway:      gateway,
				MTU:          id.MTU,
				Bitrate:      id.Bitrate,
				FIFOCapacity: id.FIFOCapacity,
			})
			if err := cable.Attach(conn, id.Position); err != nil {
				return nil, fmt.Errorf("topology: host %s interface %s: %w", hd.Name, id.Name, err)
			}
		}
	}

	for _, bd := range scn.Bridges {
		b := phy.NewBridge(engine.Time(bd.ProcessingDelay))
		net.Bridges[bd.Name] = b
		eng.Register(bd.Name, b)

		for portIdx, pd := range bd.Ports {
			mac, err := wire.ParseMAC(pd.MAC)
			if err != nil {
				return nil, fmt.Errorf("topology: bridge %s: %w", bd.Name, err)
			}
			cable, ok := net.Cables[pd.Cable]
			if !ok {
				return nil, fmt.Errorf("topology: bridge %s: unknown cable %q", bd.Name, pd.Cable)
			}
			rng := rngstream.New(fmt.Sprintf("%s-port%d", bd.Name, portIdx))
			nic := b.AddPort(mac, pd.Bitrate, pd.FIFOCapacity, rng)
			if err := cable.Attach(nic.Connector(), pd.Position); err != nil {
				return nil, fmt.Errorf("topology: bridge %s: %w", bd.Name, err)
			}
		}
	}

	for _, hub := range scn.Hubs {
		hb := phy.NewHub()
		net.Hubs[hub.Name] = hb
		eng.Register(hub.Name, hb)

		for _, pd := range hub.Ports {
			cable, ok := net.Cables[pd.Cable]
			if !ok {
				return nil, fmt.Errorf("topology: hub %s: unknown cable %q", hub.Name, pd.Cable)
			}
			conn := hb.AddPort()
			if err := cable.Attach(conn, pd.Position); err != nil {
				return nil, fmt.Errorf("topology: hub %s: %w", hub.Name, err)
			}
		}
	}

	for _, rd := range scn.Routes {
		h, ok := net.Hosts[rd.Host]
		if !ok {
			return nil, fmt.Errorf("topology: route references unknown host %q", rd.Host)
		}
		dest, err := wire.ParseCIDR(rd.Destination)
		if err != nil {
			return nil, fmt.Errorf("topology: host %s route: %w", rd.Host, err)
		}
		var gateway wire.IP
		if rd.Gateway != "" {
			gateway, err = wire.ParseIP(rd.Gateway)
			if err != nil {
				return nil, fmt.Errorf("topology: host %s route gateway: %w", rd.Host, err)
			}
		}
		h.AddRoute(dest.IP, dest.Mask, gateway, rd.Interface, rd.Metric)
	}

	if err := net.checkConnectivity(scn); err != nil {
		return nil, err
	}
	return net, nil
}
