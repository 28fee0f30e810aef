package population

import (
	"slices"
)

// Graph is the contact graph. Persons live in an arena indexed by ID; a
// death tombstones the slot and Compact drops it from the active list at
// the day boundary, so ids handed out by IDs stay valid for a whole scan.
type Graph struct {
	people  []*Person
	removed []bool
	adj     []map[int]struct{}
	active  []int
	window  int
}

// NewGraph creates an empty graph whose persons keep window days of
// contact history.
func NewGraph(window int) *Graph {
	return &Graph{window: window}
}

// Add appends a person to the arena, assigning its ID and a fresh history.
func (g *Graph) Add(p Person) *Person {
	p.ID = len(g.people)
	if p.History == nil {
		p.History = NewHistory(g.window)
	}
	pp := &p
	g.people = append(g.people, pp)
	g.removed = append(g.removed, false)
	g.adj = append(g.adj, make(map[int]struct{}))
	g.active = append(g.active, p.ID)
	return pp
}

// Window returns the contact-history window length.
func (g *Graph) Window() int {
	return g.window
}

// Size returns the number of persons ever added, alive or dead.
func (g *Graph) Size() int {
	return len(g.people)
}

// Len returns the number of alive persons.
func (g *Graph) Len() int {
	n := 0
	for _, id := range g.active {
		if !g.removed[id] {
			n++
		}
	}
	return n
}

// Person returns the alive person with the given id, or nil.
func (g *Graph) Person(id int) *Person {
	if !g.alive(id) {
		return nil
	}
	return g.people[id]
}

// IDs returns a snapshot of alive ids in ascending order. The slice is a
// copy: removals during a scan do not change it.
func (g *Graph) IDs() []int {
	out := make([]int, 0, len(g.active))
	for _, id := range g.active {
		if !g.removed[id] {
			out = append(out, id)
		}
	}
	return out
}

// Neighbors returns the ids adjacent to id in ascending order.
func (g *Graph) Neighbors(id int) []int {
	if !g.alive(id) {
		return nil
	}
	out := make([]int, 0, len(g.adj[id]))
	for n := range g.adj[id] {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Degree returns the number of edges at id.
func (g *Graph) Degree(id int) int {
	if !g.alive(id) {
		return 0
	}
	return len(g.adj[id])
}

// HasEdge reports whether a and b met today.
func (g *Graph) HasEdge(a, b int) bool {
	if !g.alive(a) || !g.alive(b) {
		return false
	}
	_, ok := g.adj[a][b]
	return ok
}

// AddEdge connects a and b. Self loops and edges to removed persons are
// ignored; the return value reports whether an edge exists afterwards.
func (g *Graph) AddEdge(a, b int) bool {
	if a == b || !g.alive(a) || !g.alive(b) {
		return false
	}
	g.adj[a][b] = struct{}{}
	g.adj[b][a] = struct{}{}
	return true
}

// RemoveEdge disconnects a and b.
func (g *Graph) RemoveEdge(a, b int) {
	if a < 0 || a >= len(g.adj) || b < 0 || b >= len(g.adj) {
		return
	}
	delete(g.adj[a], b)
	delete(g.adj[b], a)
}

// DropEdges removes every edge at id.
func (g *Graph) DropEdges(id int) {
	if id < 0 || id >= len(g.adj) {
		return
	}
	for n := range g.adj[id] {
		delete(g.adj[n], id)
	}
	clear(g.adj[id])
}

// ClearEdges removes every edge in the graph.
func (g *Graph) ClearEdges() {
	for _, m := range g.adj {
		clear(m)
	}
}

// Edges returns every edge once as an ordered pair (low, high), sorted.
func (g *Graph) Edges() [][2]int {
	var out [][2]int
	for _, a := range g.IDs() {
		for b := range g.adj[a] {
			if a < b {
				out = append(out, [2]int{a, b})
			}
		}
	}
	slices.SortFunc(out, func(x, y [2]int) int {
		if x[0] != y[0] {
			return x[0] - y[0]
		}
		return x[1] - y[1]
	})
	return out
}

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, id := range g.IDs() {
		n += len(g.adj[id])
	}
	return n / 2
}

// Remove tombstones id and drops its edges. The person stays addressable
// in the arena only for the remainder of the scan; Person returns nil.
func (g *Graph) Remove(id int) {
	if !g.alive(id) {
		return
	}
	g.DropEdges(id)
	g.removed[id] = true
}

// Compact drops tombstoned ids from the active list.
func (g *Graph) Compact() {
	g.active = g.IDs()
}

func (g *Graph) alive(id int) bool {
	return id >= 0 && id < len(g.people) && !g.removed[id]
}
