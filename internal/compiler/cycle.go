package compiler

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/roach88/rmlplan/internal/rml"
)

// CycleWarning reports triples maps that join back onto themselves, directly
// or through other triples maps.
//
// Join cycles are legal: every join is planned from its own fragments, so a
// cycle never makes translation loop. They are still worth knowing about
// because each edge of the cycle repeats the parent's source scan.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["Person", "Org", "Person"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeJoins builds the parent-reference graph of a document (an edge
// from each triples map to every parent it joins with) and reports each
// strongly connected component with more than one member, and each
// self-join, as an info-level warning.
//
// Components are reported in the document order of their first member, and
// each cycle path starts at that member. A document without join cycles
// returns an empty list.
func AnalyzeJoins(doc *rml.Document) []CycleWarning {
	warnings := []CycleWarning{}
	if doc == nil || len(doc.TriplesMaps) == 0 {
		return warnings
	}

	jg := buildJoinGraph(doc)
	for _, scc := range jg.components() {
		if len(scc) > 1 || hasSelfLoop(scc[0], jg.parents) {
			warnings = append(warnings, cycleSCCToWarning(scc, jg.parents))
		}
	}
	return warnings
}

// joinGraph holds the parents of each triples map, keyed by identifier, and
// the same relation as a gonum graph whose node ids are document positions.
type joinGraph struct {
	parents  map[string][]string
	order    []string
	position map[string]int64
	directed *simple.DirectedGraph
}

// buildJoinGraph collects the join edges of doc. Parents missing from the
// document are skipped; validation reports them. Self-joins are kept in
// parents only, since the gonum graph has no self edges.
func buildJoinGraph(doc *rml.Document) joinGraph {
	jg := joinGraph{
		parents:  make(map[string][]string),
		position: make(map[string]int64),
		directed: simple.NewDirectedGraph(),
	}
	for _, tm := range doc.TriplesMaps {
		if _, ok := jg.position[tm.Identifier]; ok {
			continue
		}
		pos := int64(len(jg.order))
		jg.position[tm.Identifier] = pos
		jg.parents[tm.Identifier] = []string{}
		jg.order = append(jg.order, tm.Identifier)
		jg.directed.AddNode(simple.Node(pos))
	}

	for _, tm := range doc.TriplesMaps {
		seen := make(map[string]bool)
		for _, pom := range tm.POMs {
			for _, om := range pom.ObjectMaps {
				parent := om.ParentTriplesMap
				if parent == "" || seen[parent] {
					continue
				}
				to, ok := jg.position[parent]
				if !ok {
					continue
				}
				seen[parent] = true
				jg.parents[tm.Identifier] = append(jg.parents[tm.Identifier], parent)

				from := jg.position[tm.Identifier]
				if from != to && !jg.directed.HasEdgeFromTo(from, to) {
					jg.directed.SetEdge(jg.directed.NewEdge(simple.Node(from), simple.Node(to)))
				}
			}
		}
	}
	return jg
}

// components returns the strongly connected components, each listing its
// members in document order, sorted by their first member.
func (jg joinGraph) components() [][]string {
	sccs := topo.TarjanSCC(jg.directed)

	positions := make([][]int64, len(sccs))
	for i, scc := range sccs {
		ids := make([]int64, len(scc))
		for j, n := range scc {
			ids[j] = n.ID()
		}
		slices.Sort(ids)
		positions[i] = ids
	}
	slices.SortFunc(positions, func(a, b []int64) int { return cmp.Compare(a[0], b[0]) })

	out := make([][]string, len(positions))
	for i, ids := range positions {
		members := make([]string, len(ids))
		for j, id := range ids {
			members[j] = jg.order[id]
		}
		out[i] = members
	}
	return out
}

func hasSelfLoop(node string, parents map[string][]string) bool {
	return slices.Contains(parents[node], node)
}

func cycleSCCToWarning(scc []string, graph map[string][]string) CycleWarning {
	if len(scc) == 1 {
		id := scc[0]
		return CycleWarning{
			Path:    []string{id, id},
			Message: fmt.Sprintf("Self-join detected: %s → %s", id, id),
			Level:   "info",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Join cycle detected: %s", strings.Join(path, " → ")),
		Level:   "info",
	}
}

// reconstructCyclePath walks from the first member along edges inside the
// SCC until it returns to the start.
func reconstructCyclePath(scc []string, graph map[string][]string) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
