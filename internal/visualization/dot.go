// Package visualization renders simulation snapshots in various output
// formats. Rendering is a pure projection of an epidemic.Snapshot; nothing
// here feeds back into the simulation.
package visualization

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/nvandessel/epigraph/internal/epidemic"
	"github.com/nvandessel/epigraph/internal/population"
)

// Format specifies the output format for snapshot rendering.
type Format string

const (
	FormatText Format = "text"
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// fillColors maps person colors to DOT fill colors.
var fillColors = map[population.Color]string{
	population.ColorHealthy:      "steelblue",
	population.ColorSymptomatic:  "tomato",
	population.ColorCarrier:      "gold",
	population.ColorRecovered:    "mediumseagreen",
	population.ColorHospitalized: "gray20",
}

// Title is the one-line caption of a snapshot.
func Title(s epidemic.Snapshot) string {
	c := s.Counters
	return fmt.Sprintf("persons: %d, healthy: %d, sick: %d, recovery: %d, death: %d - day: %d",
		s.Population, c.Healthy, c.Infected, c.Recovered, c.Dead, s.Day)
}

// RenderDOT produces an undirected Graphviz graph of the snapshot. Persons
// are grouped into one subgraph per cluster so layout engines draw crowds
// together.
func RenderDOT(s epidemic.Snapshot) string {
	var b strings.Builder
	b.WriteString("graph epigraph {\n")
	fmt.Fprintf(&b, "  label=%q;\n", Title(s))
	b.WriteString("  labelloc=t;\n")
	b.WriteString("  node [shape=circle, style=filled, fontname=\"Helvetica\", fontsize=8, width=0.3];\n\n")

	byCluster := make(map[int][]epidemic.PersonView)
	for _, p := range s.Persons {
		byCluster[p.Cluster] = append(byCluster[p.Cluster], p)
	}
	clusters := make([]int, 0, len(byCluster))
	for c := range byCluster {
		clusters = append(clusters, c)
	}
	slices.Sort(clusters)

	for _, c := range clusters {
		fmt.Fprintf(&b, "  subgraph \"cluster_%d\" {\n", c)
		b.WriteString("    style=dotted;\n")
		for _, p := range byCluster[c] {
			fmt.Fprintf(&b, "    %d [fillcolor=%q, tooltip=%q];\n", p.ID, fillColor(p.Color), tooltip(p))
		}
		b.WriteString("  }\n")
	}
	b.WriteString("\n")

	for _, e := range s.Edges {
		fmt.Fprintf(&b, "  %d -- %d;\n", e[0], e[1])
	}

	b.WriteString("}\n")
	return b.String()
}

// RenderJSON produces a JSON-ready graph with nodes and edges arrays.
func RenderJSON(s epidemic.Snapshot) map[string]interface{} {
	nodes := make([]map[string]interface{}, 0, len(s.Persons))
	for _, p := range s.Persons {
		nodes = append(nodes, map[string]interface{}{
			"id":          p.ID,
			"color":       string(p.Color),
			"cluster":     p.Cluster,
			"state":       p.DisplayState,
			"real":        p.TrueState,
			"isolated":    p.Isolated,
			"in_hospital": p.InHospital,
		})
	}

	edges := make([]map[string]interface{}, 0, len(s.Edges))
	for _, e := range s.Edges {
		edges = append(edges, map[string]interface{}{
			"source": e[0],
			"target": e[1],
		})
	}

	return map[string]interface{}{
		"title":      Title(s),
		"day":        s.Day,
		"isolation":  s.Isolation,
		"admission":  s.Admission,
		"counters":   s.Counters,
		"ward":       s.Ward,
		"nodes":      nodes,
		"edges":      edges,
		"node_count": len(nodes),
		"edge_count": len(edges),
	}
}

// Render encodes the snapshot in the given format.
func Render(s epidemic.Snapshot, format Format) ([]byte, error) {
	switch format {
	case FormatText, "":
		return []byte(Title(s) + "\n"), nil
	case FormatDOT:
		return []byte(RenderDOT(s)), nil
	case FormatJSON:
		data, err := json.MarshalIndent(RenderJSON(s), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal graph: %w", err)
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unknown format %q (valid: text, dot, json)", format)
	}
}

func fillColor(c population.Color) string {
	if fc, ok := fillColors[c]; ok {
		return fc
	}
	return "lightgray"
}

func tooltip(p epidemic.PersonView) string {
	t := fmt.Sprintf("state=%g real=%g", p.DisplayState, p.TrueState)
	if p.Isolated {
		t += " isolated"
	}
	if p.InHospital {
		t += " hospital"
	}
	return t
}
