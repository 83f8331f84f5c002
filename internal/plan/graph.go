package plan

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/roach88/rmlplan/internal/operator"
)

// NodeIndex addresses a node in a Graph's arena.
type NodeIndex int

// EdgeKey names the input port an edge feeds.
type EdgeKey string

const (
	EdgeInput EdgeKey = "input"
	EdgeLeft  EdgeKey = "left"
	EdgeRight EdgeKey = "right"
)

// EdgeValue names what flows over an edge.
type EdgeValue string

const (
	MappingTuple     EdgeValue = "MappingTuple"
	SerializedFormat EdgeValue = "SerializedFormat"
)

// PlanNode is one operator in the plan.
type PlanNode struct {
	ID       string
	Operator operator.Operator
}

// PlanEdge connects two nodes.
type PlanEdge struct {
	From  NodeIndex
	To    NodeIndex
	Key   EdgeKey
	Value EdgeValue
}

// Graph is the arena shared by all stage handles of one plan.
type Graph struct {
	nodes   []PlanNode
	edges   []PlanEdge
	sources []NodeIndex
}

func (g *Graph) addNode(prefix string, op operator.Operator) NodeIndex {
	idx := NodeIndex(len(g.nodes))
	g.nodes = append(g.nodes, PlanNode{
		ID:       fmt.Sprintf("%s_%d", prefix, len(g.nodes)),
		Operator: op,
	})
	return idx
}

func (g *Graph) addEdge(from, to NodeIndex, key EdgeKey, value EdgeValue) {
	g.edges = append(g.edges, PlanEdge{From: from, To: to, Key: key, Value: value})
}

// Rebuild assembles a Graph from nodes and edges read back from storage.
// Node ids are kept as given; sources are recomputed from operator kinds.
func Rebuild(nodes []PlanNode, edges []PlanEdge) (*Graph, error) {
	g := &Graph{nodes: append([]PlanNode(nil), nodes...)}
	for i, n := range g.nodes {
		if n.Operator == nil {
			return nil, newPlanError(ErrCodeInvalidEdge, "", "node %s has no operator", n.ID)
		}
		if n.Operator.Kind() == operator.KindSource {
			g.sources = append(g.sources, NodeIndex(i))
		}
	}
	for _, e := range edges {
		if e.From < 0 || int(e.From) >= len(g.nodes) || e.To < 0 || int(e.To) >= len(g.nodes) {
			return nil, newPlanError(ErrCodeInvalidEdge, "", "edge %d -> %d is out of range for %d nodes",
				e.From, e.To, len(g.nodes))
		}
		g.addEdge(e.From, e.To, e.Key, e.Value)
	}
	return g, nil
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Node returns the node at idx. It panics if idx is out of range.
func (g *Graph) Node(idx NodeIndex) PlanNode { return g.nodes[idx] }

// Nodes returns a copy of all nodes in insertion order.
func (g *Graph) Nodes() []PlanNode {
	return append([]PlanNode(nil), g.nodes...)
}

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []PlanEdge {
	return append([]PlanEdge(nil), g.edges...)
}

// Sources returns the indices of every Source node in insertion order.
func (g *Graph) Sources() []NodeIndex {
	return append([]NodeIndex(nil), g.sources...)
}

// FindNode returns the index of the node with the given id.
func (g *Graph) FindNode(id string) (NodeIndex, bool) {
	for i, n := range g.nodes {
		if n.ID == id {
			return NodeIndex(i), true
		}
	}
	return -1, false
}

// InEdges returns the edges ending at idx in insertion order.
func (g *Graph) InEdges(idx NodeIndex) []PlanEdge {
	var out []PlanEdge
	for _, e := range g.edges {
		if e.To == idx {
			out = append(out, e)
		}
	}
	return out
}

// OutEdges returns the edges starting at idx in insertion order.
func (g *Graph) OutEdges(idx NodeIndex) []PlanEdge {
	var out []PlanEdge
	for _, e := range g.edges {
		if e.From == idx {
			out = append(out, e)
		}
	}
	return out
}

// NodesOfKind returns the indices of nodes whose operator has the given kind.
func (g *Graph) NodesOfKind(kind string) []NodeIndex {
	var out []NodeIndex
	for i, n := range g.nodes {
		if n.Operator.Kind() == kind {
			out = append(out, NodeIndex(i))
		}
	}
	return out
}

// planNode is the gonum view of a PlanNode.
type planNode struct {
	idx  NodeIndex
	node PlanNode
}

func (n planNode) ID() int64 { return int64(n.idx) }

// planLine is the gonum view of a PlanEdge. Joins of a fragment with itself
// produce two lines between the same pair of nodes, hence a multigraph.
type planLine struct {
	from, to planNode
	uid      int64
	edge     PlanEdge
}

func (l planLine) From() graph.Node { return l.from }
func (l planLine) To() graph.Node   { return l.to }
func (l planLine) ID() int64        { return l.uid }
func (l planLine) ReversedLine() graph.Line {
	return planLine{from: l.to, to: l.from, uid: l.uid, edge: l.edge}
}

// Directed returns the plan as a gonum directed multigraph. Node ids are
// NodeIndex values; line ids are edge positions.
func (g *Graph) Directed() *multi.DirectedGraph {
	dg := multi.NewDirectedGraph()
	views := make([]planNode, len(g.nodes))
	for i, n := range g.nodes {
		views[i] = planNode{idx: NodeIndex(i), node: n}
		dg.AddNode(views[i])
	}
	for i, e := range g.edges {
		dg.SetLine(planLine{from: views[e.From], to: views[e.To], uid: int64(i), edge: e})
	}
	return dg
}

// TopologicalOrder returns node indices so that every edge points forward.
// Ties are broken by insertion order.
func (g *Graph) TopologicalOrder() ([]NodeIndex, error) {
	sorted, err := topo.SortStabilized(g.Directed(), sortNodesByID)
	if err != nil {
		return nil, errors.Wrap(err, "plan is not acyclic")
	}
	out := make([]NodeIndex, len(sorted))
	for i, n := range sorted {
		out[i] = NodeIndex(n.ID())
	}
	return out, nil
}

func sortNodesByID(nodes []graph.Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
}
