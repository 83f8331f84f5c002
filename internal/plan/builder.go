package plan

import (
	"github.com/roach88/rmlplan/internal/operator"
)

// Node id prefixes used by the builder. Apply takes its prefix from the
// caller; the translator uses PrefixProjection and PrefixExtend.
const (
	PrefixSource     = "Source"
	PrefixProjection = "Projection"
	PrefixExtend     = "Extend"
	PrefixRename     = "Rename"
	PrefixJoin       = "Join"
	PrefixSerialize  = "Serialize"
	PrefixSink       = "Sink"
)

// Init is the entry stage. It can start any number of fragments, each
// rooted at its own Source node.
type Init struct {
	graph *Graph
}

// New creates an empty plan.
func New() Init {
	return Init{graph: &Graph{}}
}

// Graph returns the shared arena.
func (i Init) Graph() *Graph { return i.graph }

// Source adds a Source node and returns a handle whose frontier is that
// node. The source is recorded in the plan's source list.
func (i Init) Source(src operator.Source) Processed {
	idx := i.graph.addNode(PrefixSource, src)
	i.graph.sources = append(i.graph.sources, idx)
	return Processed{graph: i.graph, last: idx, hasLast: true}
}

// Processed is a fragment that can be extended, joined or serialized.
type Processed struct {
	graph   *Graph
	last    NodeIndex
	hasLast bool
}

// Graph returns the shared arena.
func (p Processed) Graph() *Graph { return p.graph }

// Last returns the frontier node.
func (p Processed) Last() (NodeIndex, bool) { return p.last, p.hasLast }

func (p Processed) frontier(op string) (NodeIndex, error) {
	if p.graph == nil || p.graph.NodeCount() == 0 {
		return 0, newPlanError(ErrCodeEmptyPlan, op, "plan has no nodes")
	}
	if !p.hasLast {
		return 0, newPlanError(ErrCodeDanglingApplyOperator, op, "no frontier node to attach to")
	}
	return p.last, nil
}

// Apply appends op after the frontier, connected by an input edge carrying
// rows. The node id is <prefix>_<n>. Operators with their own transition
// (Source, Join, Serializer, Target) are rejected. A Join has two inputs and
// Apply wires only one, so joins are added through Join, which connects the
// left and right edges.
func (p Processed) Apply(op operator.Operator, prefix string) (Processed, error) {
	if op == nil {
		return Processed{}, newPlanError(ErrCodeWrongApplyOperator, "", "nil operator")
	}
	switch op.(type) {
	case operator.Source, operator.Join, operator.Serializer, operator.Target:
		return Processed{}, newPlanError(ErrCodeWrongApplyOperator, op.Kind(),
			"operator has its own plan stage and cannot be applied")
	}

	last, err := p.frontier(op.Kind())
	if err != nil {
		return Processed{}, err
	}

	idx := p.graph.addNode(prefix, op)
	p.graph.addEdge(last, idx, EdgeInput, MappingTuple)
	return Processed{graph: p.graph, last: idx, hasLast: true}, nil
}

// Join starts a join with p as the child (left) input and other as the
// parent (right) input.
func (p Processed) Join(other Processed) JoinBuilder {
	return JoinBuilder{child: p, parent: other}
}

// Serialize appends a serializer after the frontier.
func (p Processed) Serialize(ser operator.Serializer) (Serialized, error) {
	last, err := p.frontier(ser.Kind())
	if err != nil {
		return Serialized{}, err
	}

	idx := p.graph.addNode(PrefixSerialize, ser)
	p.graph.addEdge(last, idx, EdgeInput, MappingTuple)
	return Serialized{graph: p.graph, last: idx}, nil
}

// JoinBuilder collects the alias of a join.
type JoinBuilder struct {
	child, parent Processed
}

// Alias sets the name parent attributes are exposed under.
func (b JoinBuilder) Alias(alias string) AliasedJoin {
	return AliasedJoin{child: b.child, parent: b.parent, alias: alias}
}

// AliasedJoin collects the child join keys.
type AliasedJoin struct {
	child, parent Processed
	alias         string
}

// WhereBy sets the child-side join attributes.
func (b AliasedJoin) WhereBy(child []string) KeyedJoin {
	return KeyedJoin{
		child:     b.child,
		parent:    b.parent,
		alias:     b.alias,
		childKeys: append([]string(nil), child...),
	}
}

// KeyedJoin collects the parent join keys and completes the join.
type KeyedJoin struct {
	child, parent Processed
	alias         string
	childKeys     []string
}

// ComparedTo sets the parent-side join attributes and adds the Join node
// with a left edge from the child frontier and a right edge from the parent
// frontier.
func (b KeyedJoin) ComparedTo(parent []string) (Processed, error) {
	left, err := b.child.frontier(operator.KindJoin)
	if err != nil {
		return Processed{}, err
	}
	right, err := b.parent.frontier(operator.KindJoin)
	if err != nil {
		return Processed{}, err
	}
	if b.child.graph != b.parent.graph {
		return Processed{}, newPlanError(ErrCodeForeignJoin, operator.KindJoin,
			"child and parent belong to different plans")
	}
	if b.alias == "" {
		return Processed{}, newPlanError(ErrCodeEmptyJoinAlias, operator.KindJoin, "join alias is empty")
	}
	if len(b.childKeys) != len(parent) {
		return Processed{}, newPlanError(ErrCodeMismatchedJoinKeys, operator.KindJoin,
			"%d child attributes vs %d parent attributes", len(b.childKeys), len(parent))
	}

	g := b.child.graph
	idx := g.addNode(PrefixJoin, operator.Join{
		Alias:            b.alias,
		ChildAttributes:  b.childKeys,
		ParentAttributes: append([]string(nil), parent...),
		JoinType:         operator.JoinInner,
	})
	g.addEdge(left, idx, EdgeLeft, MappingTuple)
	g.addEdge(right, idx, EdgeRight, MappingTuple)
	return Processed{graph: g, last: idx, hasLast: true}, nil
}

// Serialized is a fragment ending in a serializer; it can only be sunk.
type Serialized struct {
	graph *Graph
	last  NodeIndex
}

// Graph returns the shared arena.
func (s Serialized) Graph() *Graph { return s.graph }

// Sink appends a target after the serializer, connected by an edge carrying
// serialized text.
func (s Serialized) Sink(target operator.Target) (Sunk, error) {
	if s.graph == nil || s.graph.NodeCount() == 0 {
		return Sunk{}, newPlanError(ErrCodeEmptyPlan, target.Kind(), "plan has no nodes")
	}

	idx := s.graph.addNode(PrefixSink, target)
	s.graph.addEdge(s.last, idx, EdgeInput, SerializedFormat)
	return Sunk{graph: s.graph, last: idx}, nil
}

// Sunk is a completed branch. It cannot grow.
type Sunk struct {
	graph *Graph
	last  NodeIndex
}

// Graph returns the shared arena.
func (s Sunk) Graph() *Graph { return s.graph }

// Last returns the sink node.
func (s Sunk) Last() NodeIndex { return s.last }
