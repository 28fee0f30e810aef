package population

import (
	"slices"
	"testing"
)

func newLineGraph(t *testing.T, n int) *Graph {
	t.Helper()
	g := NewGraph(14)
	for i := 0; i < n; i++ {
		g.Add(Person{})
	}
	for i := 0; i+1 < n; i++ {
		g.AddEdge(i, i+1)
	}
	return g
}

func TestGraph_AddAssignsStableIDs(t *testing.T) {
	g := NewGraph(5)
	for i := 0; i < 3; i++ {
		p := g.Add(Person{})
		if p.ID != i {
			t.Errorf("Add() ID = %d, want %d", p.ID, i)
		}
		if p.History == nil || p.History.Window() != 5 {
			t.Errorf("Add() did not attach a 5-slot history")
		}
	}
	if g.Size() != 3 || g.Len() != 3 {
		t.Errorf("Size()=%d Len()=%d, want 3 3", g.Size(), g.Len())
	}
}

func TestGraph_Edges(t *testing.T) {
	g := newLineGraph(t, 4)

	if got := g.EdgeCount(); got != 3 {
		t.Errorf("EdgeCount() = %d, want 3", got)
	}
	if !g.HasEdge(1, 0) {
		t.Error("HasEdge(1, 0) = false, want true (undirected)")
	}
	if g.AddEdge(2, 2) {
		t.Error("AddEdge(2, 2) should ignore self loops")
	}

	want := [][2]int{{0, 1}, {1, 2}, {2, 3}}
	if got := g.Edges(); !slices.Equal(got, want) {
		t.Errorf("Edges() = %v, want %v", got, want)
	}

	g.RemoveEdge(2, 1)
	if g.HasEdge(1, 2) {
		t.Error("RemoveEdge(2, 1) left the edge in place")
	}

	g.DropEdges(3)
	if g.Degree(2) != 0 || g.Degree(3) != 0 {
		t.Errorf("DropEdges(3) left degrees %d, %d", g.Degree(2), g.Degree(3))
	}

	g.ClearEdges()
	if g.EdgeCount() != 0 {
		t.Errorf("ClearEdges() left %d edges", g.EdgeCount())
	}
}

func TestGraph_RemoveDuringScan(t *testing.T) {
	g := newLineGraph(t, 5)

	snapshot := g.IDs()
	visited := 0
	for _, id := range snapshot {
		if g.Person(id) == nil {
			continue
		}
		visited++
		if id == 1 {
			g.Remove(2)
			g.Remove(3)
		}
	}

	if visited != 3 {
		t.Errorf("visited %d alive persons, want 3", visited)
	}
	if len(snapshot) != 5 {
		t.Errorf("snapshot changed length to %d", len(snapshot))
	}
	if g.Person(2) != nil {
		t.Error("Person(2) should be nil after Remove")
	}
	if g.HasEdge(1, 2) || g.Degree(1) != 1 {
		t.Error("Remove(2) should drop its edges")
	}
	if g.Len() != 3 || g.Size() != 5 {
		t.Errorf("Len()=%d Size()=%d, want 3 5", g.Len(), g.Size())
	}

	g.Compact()
	if got := g.IDs(); !slices.Equal(got, []int{0, 1, 4}) {
		t.Errorf("IDs() after Compact = %v, want [0 1 4]", got)
	}
	if g.AddEdge(0, 3) {
		t.Error("AddEdge to a removed person should fail")
	}
}

func TestPerson_Color(t *testing.T) {
	tests := []struct {
		name   string
		person Person
		want   Color
	}{
		{name: "healthy", person: Person{}, want: ColorHealthy},
		{name: "carrier", person: Person{TrueState: 3}, want: ColorCarrier},
		{name: "symptomatic", person: Person{TrueState: 3, DisplayState: 1}, want: ColorSymptomatic},
		{name: "recovered", person: Person{TrueState: Recovered, DisplayState: Recovered}, want: ColorRecovered},
		{name: "hospitalized", person: Person{TrueState: 4, DisplayState: 2, InHospital: true}, want: ColorHospitalized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.person.Color(); got != tt.want {
				t.Errorf("Color() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPerson_Recover(t *testing.T) {
	p := Person{TrueState: 8, DisplayState: 3, Isolated: true, InHospital: true}
	p.Recover()
	if !p.IsRecovered() || p.DisplayState != Recovered {
		t.Errorf("Recover() states = (%v, %v), want 0.5", p.DisplayState, p.TrueState)
	}
	if p.Isolated || p.InHospital {
		t.Error("Recover() should lift isolation and hospital flags")
	}
	if p.IsHealthy() || p.IsInfected() {
		t.Error("recovered person must be neither healthy nor infected")
	}
}
