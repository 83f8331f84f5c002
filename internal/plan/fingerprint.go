package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/roach88/rmlplan/internal/operator"
)

// Domain prefixes for content-addressed plan identity.
// Version suffix enables future algorithm migration.
const (
	DomainPlan = "rmlplan/plan/v1"
	DomainNode = "rmlplan/node/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalMap returns the plan as a generic value: nodes in insertion order
// with their ids and tagged operators, edges by node id, and the source ids.
func (g *Graph) CanonicalMap() map[string]any {
	nodes := make([]any, len(g.nodes))
	for i, n := range g.nodes {
		nodes[i] = map[string]any{
			"id":       n.ID,
			"operator": operator.CanonicalMap(n.Operator),
		}
	}

	edges := make([]any, len(g.edges))
	for i, e := range g.edges {
		edges[i] = map[string]any{
			"from":  g.nodes[e.From].ID,
			"to":    g.nodes[e.To].ID,
			"key":   string(e.Key),
			"value": string(e.Value),
		}
	}

	sources := make([]any, len(g.sources))
	for i, idx := range g.sources {
		sources[i] = g.nodes[idx].ID
	}

	return map[string]any{
		"nodes":   nodes,
		"edges":   edges,
		"sources": sources,
	}
}

// CanonicalJSON returns the RFC 8785 form of CanonicalMap. It is stable
// across runs and is what golden files and the catalog store.
func (g *Graph) CanonicalJSON() ([]byte, error) {
	data, err := MarshalCanonical(g.CanonicalMap())
	if err != nil {
		return nil, errors.Wrap(err, "canonical plan")
	}
	return data, nil
}

// NodeSignatures returns, per node index, a hash of the node's operator
// combined with what feeds it and what it feeds: an upstream signature over
// its inputs and their ports, and a downstream signature over its outputs.
// Node ids and insertion positions do not contribute, so two plans with the
// same shape produce the same multiset of signatures.
func (g *Graph) NodeSignatures() ([]string, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	ops := make([]any, len(g.nodes))
	for i, n := range g.nodes {
		ops[i] = operator.CanonicalMap(n.Operator)
	}

	up := make([]string, len(g.nodes))
	for _, idx := range order {
		in := g.InEdges(idx)
		inputs := make([]string, len(in))
		for i, e := range in {
			inputs[i] = string(e.Key) + ":" + string(e.Value) + ":" + up[e.From]
		}
		if up[idx], err = nodeHash(ops[idx], "inputs", inputs); err != nil {
			return nil, errors.Wrapf(err, "node %s", g.nodes[idx].ID)
		}
	}

	down := make([]string, len(g.nodes))
	for i := len(order) - 1; i >= 0; i-- {
		idx := order[i]
		out := g.OutEdges(idx)
		outputs := make([]string, len(out))
		for j, e := range out {
			outputs[j] = string(e.Key) + ":" + string(e.Value) + ":" + down[e.To]
		}
		if down[idx], err = nodeHash(ops[idx], "outputs", outputs); err != nil {
			return nil, errors.Wrapf(err, "node %s", g.nodes[idx].ID)
		}
	}

	sigs := make([]string, len(g.nodes))
	for i := range g.nodes {
		sigs[i] = hashWithDomain(DomainNode, []byte(up[i]+down[i]))
	}
	return sigs, nil
}

// nodeHash hashes an operator with the sorted signatures of one side of it.
func nodeHash(op any, side string, neighbours []string) (string, error) {
	sort.Strings(neighbours)
	data, err := MarshalCanonical(map[string]any{
		"operator": op,
		side:       neighbours,
	})
	if err != nil {
		return "", err
	}
	return hashWithDomain(DomainNode, data), nil
}

// Fingerprint is the content-addressed identity of the plan's shape: the
// hash of its sorted node signatures.
func (g *Graph) Fingerprint() (string, error) {
	sigs, err := g.NodeSignatures()
	if err != nil {
		return "", err
	}
	sort.Strings(sigs)

	data, err := MarshalCanonical(sigs)
	if err != nil {
		return "", errors.Wrap(err, "fingerprint")
	}
	return hashWithDomain(DomainPlan, data), nil
}

// Isomorphic reports whether a and b have the same operators connected the
// same way, regardless of node ids and insertion order. Equal fingerprints
// are confirmed by an explicit node mapping, so a signature collision never
// reports two different plans as equal.
func Isomorphic(a, b *Graph) (bool, error) {
	if a.NodeCount() != b.NodeCount() || a.EdgeCount() != b.EdgeCount() {
		return false, nil
	}
	sa, err := a.NodeSignatures()
	if err != nil {
		return false, err
	}
	sb, err := b.NodeSignatures()
	if err != nil {
		return false, err
	}

	sortedA := append([]string(nil), sa...)
	sortedB := append([]string(nil), sb...)
	sort.Strings(sortedA)
	sort.Strings(sortedB)
	for i := range sortedA {
		if sortedA[i] != sortedB[i] {
			return false, nil
		}
	}

	order, err := a.TopologicalOrder()
	if err != nil {
		return false, err
	}
	m := &matcher{a: a, b: b, sigA: sa, sigB: sb, order: order,
		toB: make([]NodeIndex, a.NodeCount()), used: make([]bool, b.NodeCount())}
	return m.match(0), nil
}

// matcher maps the nodes of a onto b in topological order of a. Every
// input of a node is mapped before the node itself, so a candidate only has
// to reproduce the node's in-edges.
type matcher struct {
	a, b       *Graph
	sigA, sigB []string
	order      []NodeIndex
	toB        []NodeIndex
	used       []bool
}

func (m *matcher) match(pos int) bool {
	if pos == len(m.order) {
		return true
	}
	idx := m.order[pos]
	for cand := range m.b.nodes {
		c := NodeIndex(cand)
		if m.used[c] || m.sigB[c] != m.sigA[idx] || !m.sameInputs(idx, c) {
			continue
		}
		m.used[c] = true
		m.toB[idx] = c
		if m.match(pos + 1) {
			return true
		}
		m.used[c] = false
	}
	return false
}

// sameInputs compares the in-edges of idx in a, translated through the
// mapping, with the in-edges of c in b.
func (m *matcher) sameInputs(idx, c NodeIndex) bool {
	want := make(map[string]int)
	for _, e := range m.a.InEdges(idx) {
		want[edgeKey(m.toB[e.From], e)]++
	}
	for _, e := range m.b.InEdges(c) {
		k := edgeKey(e.From, e)
		if want[k] == 0 {
			return false
		}
		want[k]--
	}
	for _, n := range want {
		if n != 0 {
			return false
		}
	}
	return true
}

func edgeKey(from NodeIndex, e PlanEdge) string {
	return fmt.Sprintf("%d:%s:%s", from, e.Key, e.Value)
}
