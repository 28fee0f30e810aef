package population

import (
	"math/rand/v2"
	"slices"
	"testing"
)

func testRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func defaultParams(size int) Params {
	return Params{
		Size:             size,
		PatientDensity:   0.1,
		CarrierDensity:   0.1,
		ClusterRange:     [2]int{10, 20},
		IncubationPeriod: 14,
	}
}

func TestInitialize_Census(t *testing.T) {
	g, census := Initialize(defaultParams(300), testRand(1))

	if g.Size() != 300 {
		t.Fatalf("Size() = %d, want 300", g.Size())
	}
	if census.Healthy+census.Infected != 300 {
		t.Errorf("census %+v does not sum to 300", census)
	}

	infected := 0
	for _, id := range g.IDs() {
		p := g.Person(id)
		if p.IsInfected() {
			infected++
		}
		if p.IsSymptomatic() && !p.IsInfected() {
			t.Errorf("person %d symptomatic without infection", id)
		}
		if p.IsolationDays != 14 {
			t.Errorf("person %d IsolationDays = %d, want 14", id, p.IsolationDays)
		}
		if p.Cluster < 0 || p.Cluster >= 20 {
			t.Errorf("person %d cluster %d outside [0, 20)", id, p.Cluster)
		}
	}
	if infected != census.Infected {
		t.Errorf("counted %d infected, census says %d", infected, census.Infected)
	}
	if g.EdgeCount() != 0 {
		t.Errorf("Initialize created %d edges, want 0", g.EdgeCount())
	}
}

func TestInitialize_Extremes(t *testing.T) {
	p := defaultParams(50)
	p.PatientDensity, p.CarrierDensity = 0, 0
	_, census := Initialize(p, testRand(2))
	if census.Infected != 0 {
		t.Errorf("no-infection census = %+v", census)
	}

	p.PatientDensity = 1
	g, census := Initialize(p, testRand(3))
	if census.Infected != 50 {
		t.Errorf("all-patient census = %+v", census)
	}
	for _, id := range g.IDs() {
		if !g.Person(id).IsSymptomatic() {
			t.Fatalf("person %d not symptomatic with PatientDensity=1", id)
		}
	}
}

func TestDrawClusterCount(t *testing.T) {
	rng := testRand(4)
	for i := 0; i < 200; i++ {
		n := DrawClusterCount([2]int{10, 20}, rng)
		if n < 10 || n >= 20 {
			t.Fatalf("DrawClusterCount = %d, want in [10, 20)", n)
		}
	}
	if n := DrawClusterCount([2]int{3, 3}, rng); n != 3 {
		t.Errorf("degenerate range gave %d, want 3", n)
	}
}

func TestRegenerateContacts_HistoryAndIsolation(t *testing.T) {
	g := NewGraph(14)
	for i := 0; i < 10; i++ {
		g.Add(Person{Cluster: i % 2})
	}
	g.Person(0).Isolated = true

	meetings := g.RegenerateContacts(3, 2, testRand(5))
	if meetings != 18 { // cluster 0 has 4 free members, cluster 1 has 5: (4+5)*2
		t.Errorf("meetings = %d, want 18", meetings)
	}
	if g.Degree(0) != 0 {
		t.Errorf("isolated person got %d edges", g.Degree(0))
	}

	for _, e := range g.Edges() {
		a, b := g.Person(e[0]), g.Person(e[1])
		if a.Cluster != b.Cluster {
			t.Errorf("edge %v crosses clusters %d/%d", e, a.Cluster, b.Cluster)
		}
		if !slices.Contains(a.History.Contacts(3), b.ID) || !slices.Contains(b.History.Contacts(3), a.ID) {
			t.Errorf("edge %v missing from contact histories", e)
		}
	}
}

func TestRegenerateContacts_SingletonCluster(t *testing.T) {
	g := NewGraph(14)
	g.Add(Person{Cluster: 0})
	g.Add(Person{Cluster: 1})

	if meetings := g.RegenerateContacts(0, 5, testRand(6)); meetings != 0 {
		t.Errorf("singleton clusters produced %d meetings", meetings)
	}
}

func TestUpdateLinks_ReplacesEdges(t *testing.T) {
	g, _ := Initialize(defaultParams(100), testRand(7))
	g.RegenerateContacts(0, 2, testRand(8))
	before := g.Edges()

	g.UpdateLinks(1, 0, [2]int{10, 20}, testRand(9))
	if g.EdgeCount() != 0 {
		t.Errorf("density 0 left %d edges; yesterday had %d", g.EdgeCount(), len(before))
	}
}

func TestUpdateLinks_Deterministic(t *testing.T) {
	run := func() [][2]int {
		rng := testRand(10)
		g, _ := Initialize(defaultParams(120), rng)
		for day := 0; day < 4; day++ {
			g.UpdateLinks(day, 2, [2]int{10, 20}, rng)
		}
		return g.Edges()
	}
	if a, b := run(), run(); !slices.Equal(a, b) {
		t.Error("identical seeds produced different contact graphs")
	}
}
