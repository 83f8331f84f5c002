package translator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rmlplan/internal/operator"
	"github.com/roach88/rmlplan/internal/plan"
	"github.com/roach88/rmlplan/internal/rml"
)

func csvSource(path string) rml.LogicalSource {
	return rml.LogicalSource{
		Identifier:           path,
		Config:               map[string]string{"path": path},
		SourceType:           operator.IOFile,
		ReferenceFormulation: rml.FormulationCSV,
	}
}

func iriTemplate(id, value string) rml.TermMapInfo {
	return rml.TermMapInfo{Identifier: id, TermMapType: rml.TermTemplate, TermValue: value, TermType: rml.KindIRI}
}

func iriConstant(id, value string) rml.TermMapInfo {
	return rml.TermMapInfo{Identifier: id, TermMapType: rml.TermConstant, TermValue: value, TermType: rml.KindIRI}
}

func literalRef(id, value string) rml.TermMapInfo {
	return rml.TermMapInfo{Identifier: id, TermMapType: rml.TermReference, TermValue: value, TermType: rml.KindLiteral}
}

func predicate(value string) rml.PredicateMap {
	return rml.PredicateMap{TermMapInfo: iriConstant("pm", value)}
}

func plainObject(ref string) rml.ObjectMap {
	return rml.ObjectMap{TermMapInfo: literalRef("om", ref)}
}

func parentObject(parent string, child, parentKeys []string) rml.ObjectMap {
	return rml.ObjectMap{
		TermMapInfo:      rml.TermMapInfo{Identifier: "om_" + parent, TermType: rml.KindIRI},
		ParentTriplesMap: parent,
		JoinCondition:    &rml.JoinCondition{ChildAttributes: child, ParentAttributes: parentKeys},
	}
}

func simpleTriplesMap(id, subject string, poms ...rml.PredicateObjectMap) rml.TriplesMap {
	return rml.TriplesMap{
		Identifier:    id,
		LogicalSource: csvSource(id + ".csv"),
		SubjectMap:    rml.SubjectMap{TermMapInfo: iriTemplate("sm", subject)},
		POMs:          poms,
	}
}

func mustTranslate(t *testing.T, doc *rml.Document) *plan.Graph {
	t.Helper()
	root, err := Translate(doc)
	require.NoError(t, err)
	require.NotNil(t, root.Graph())
	return root.Graph()
}

func nodeByID(t *testing.T, g *plan.Graph, id string) plan.PlanNode {
	t.Helper()
	idx, ok := g.FindNode(id)
	require.True(t, ok, "node %s not found", id)
	return g.Node(idx)
}

func findIndex(t *testing.T, g *plan.Graph, id string) plan.NodeIndex {
	t.Helper()
	idx, ok := g.FindNode(id)
	require.True(t, ok, "node %s not found", id)
	return idx
}

func extendOf(t *testing.T, g *plan.Graph, id string) operator.Extend {
	t.Helper()
	ext, ok := nodeByID(t, g, id).Operator.(operator.Extend)
	require.True(t, ok, "node %s is not an Extend", id)
	return ext
}

func pairNames(ext operator.Extend) []string {
	return ext.SortedNames()
}

// chainFrom follows single outgoing edges from idx and returns the operator
// kinds and node indices along the way.
func chainFrom(g *plan.Graph, idx plan.NodeIndex) ([]string, []plan.NodeIndex) {
	var kinds []string
	var nodes []plan.NodeIndex
	for {
		kinds = append(kinds, g.Node(idx).Operator.Kind())
		nodes = append(nodes, idx)
		out := g.OutEdges(idx)
		if len(out) != 1 {
			return kinds, nodes
		}
		idx = out[0].To
	}
}
