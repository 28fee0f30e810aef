package population

import (
	"math/rand/v2"
	"slices"
)

// Params configures population generation.
type Params struct {
	// Size is the number of persons.
	Size int

	// PatientDensity is the chance a person starts symptomatic.
	PatientDensity float64

	// CarrierDensity is the chance a non-symptomatic person starts as an
	// asymptomatic carrier.
	CarrierDensity float64

	// ClusterRange is the half-open range [min, max) the daily cluster
	// count is drawn from.
	ClusterRange [2]int

	// IncubationPeriod sizes every person's contact history.
	IncubationPeriod int
}

// Census is the healthy/infected split produced by Initialize.
type Census struct {
	Healthy  int
	Infected int
}

// Initialize creates the population with one Bernoulli health draw per
// person. It does not create any contacts.
func Initialize(p Params, rng *rand.Rand) (*Graph, Census) {
	g := NewGraph(p.IncubationPeriod)
	clusters := DrawClusterCount(p.ClusterRange, rng)

	var census Census
	for i := 0; i < p.Size; i++ {
		person := Person{
			Cluster:       rng.IntN(clusters),
			IsolationDays: p.IncubationPeriod,
		}
		if rng.Float64() < p.PatientDensity {
			person.DisplayState = Onset
			person.TrueState = Onset
		} else if rng.Float64() < p.CarrierDensity {
			person.TrueState = Onset
		}

		if person.IsInfected() {
			census.Infected++
		} else {
			census.Healthy++
		}
		g.Add(person)
	}
	return g, census
}

// DrawClusterCount draws uniformly from [min, max). A degenerate range
// yields min.
func DrawClusterCount(r [2]int, rng *rand.Rand) int {
	lo, hi := r[0], r[1]
	if lo < 1 {
		lo = 1
	}
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo)
}

// ReassignClusters draws a fresh cluster pool size and moves every alive
// person into a uniformly chosen cluster.
func (g *Graph) ReassignClusters(clusterRange [2]int, rng *rand.Rand) {
	clusters := DrawClusterCount(clusterRange, rng)
	for _, id := range g.IDs() {
		g.people[id].Cluster = rng.IntN(clusters)
	}
}

// RegenerateContacts creates today's edges. Within every cluster with at
// least two non-isolated members, members*density random pairs meet; each
// meeting becomes an edge and is written to both contact histories. It
// returns the number of meetings drawn.
func (g *Graph) RegenerateContacts(day int, density float64, rng *rand.Rand) int {
	byCluster := make(map[int][]int)
	for _, id := range g.IDs() {
		p := g.people[id]
		if p.Isolated {
			continue
		}
		byCluster[p.Cluster] = append(byCluster[p.Cluster], id)
	}

	keys := make([]int, 0, len(byCluster))
	for k := range byCluster {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	meetings := 0
	for _, k := range keys {
		members := byCluster[k]
		if len(members) < 2 {
			continue
		}
		draws := int(float64(len(members)) * density)
		for range draws {
			i := rng.IntN(len(members))
			j := rng.IntN(len(members) - 1)
			if j >= i {
				j++
			}
			a, b := members[i], members[j]
			g.people[a].History.Record(day, b)
			g.people[b].History.Record(day, a)
			g.AddEdge(a, b)
			meetings++
		}
	}
	return meetings
}

// UpdateLinks replaces yesterday's contacts: all edges are dropped,
// clusters are redrawn and new contacts generated for day.
func (g *Graph) UpdateLinks(day int, density float64, clusterRange [2]int, rng *rand.Rand) int {
	g.ClearEdges()
	g.ReassignClusters(clusterRange, rng)
	return g.RegenerateContacts(day, density, rng)
}
