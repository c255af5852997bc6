package topology

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// checkConnectivity builds an undirected graph with one node per host,
// bridge and hub, and one edge per pair of endpoints sharing a cable,
// then runs Dijkstra from the first host to confirm every other node is
// reachable. Grounded on the teacher's own connectivity-graph
// construction (gonum's simple.WeightedUndirectedGraph + graph/path),
// repurposed here to validate a scenario's wiring rather than to compute
// application-layer routes, since this simulator's routes are statically
// configured (spec §4.7), never derived from shortest paths.
func (net *Network) checkConnectivity(scn *Scenario) error {
	ids := map[string]int64{}
	names := map[int64]string{}
	register := func(name string) int64 {
		if id, ok := ids[name]; ok {
			return id
		}
		id := int64(len(ids))
		ids[name] = id
		names[id] = name
		return id
	}

	for _, hd := range scn.Hosts {
		register(hd.Name)
	}
	for _, bd := range scn.Bridges {
		register(bd.Name)
	}
	for _, hub := range scn.Hubs {
		register(hub.Name)
	}
	if len(ids) == 0 {
		return nil
	}

	endpointsByCable := map[string][]string{}
	for _, hd := range scn.Hosts {
		for _, id := range hd.Interfaces {
			endpointsByCable[id.Cable] = append(endpointsByCable[id.Cable], hd.Name)
		}
	}
	for _, bd := range scn.Bridges {
		for _, pd := range bd.Ports {
			endpointsByCable[pd.Cable] = append(endpointsByCable[pd.Cable], bd.Name)
		}
	}
	for _, hub := range scn.Hubs {
		for _, pd := range hub.Ports {
			endpointsByCable[pd.Cable] = append(endpointsByCable[pd.Cable], hub.Name)
		}
	}

	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for id := range names {
		g.AddNode(simple.Node(id))
	}
	for _, endpoints := range endpointsByCable {
		for i := 0; i < len(endpoints); i++ {
			for j := i + 1; j < len(endpoints); j++ {
				a, b := ids[endpoints[i]], ids[endpoints[j]]
				g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(a), T: simple.Node(b), W: 1})
			}
		}
	}

	root := int64(0)
	tree := path.DijkstraFrom(simple.Node(root), g)
	for id, name := range names {
		if id == root {
			continue
		}
		nodeSeq, weight := tree.To(id)
		if len(nodeSeq) == 0 || math.IsInf(weight, 1) {
			return fmt.Errorf("topology: %q is not reachable from %q — check cable attachments", name, names[root])
		}
	}
	return nil
}
