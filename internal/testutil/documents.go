// Package testutil builds mapping documents and plans shared by package
// tests. Helpers fail the test instead of returning errors.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rmlplan/internal/operator"
	"github.com/roach88/rmlplan/internal/plan"
	"github.com/roach88/rmlplan/internal/rml"
	"github.com/roach88/rmlplan/internal/translator"
)

// TableSource is an rdb logical source reading table.
func TableSource(table string) rml.LogicalSource {
	return rml.LogicalSource{
		Identifier:           table,
		Config:               map[string]string{"table": table},
		SourceType:           operator.IORDB,
		ReferenceFormulation: rml.FormulationSQL,
	}
}

// CSVSource is a file logical source reading a CSV file.
func CSVSource(path string) rml.LogicalSource {
	return rml.LogicalSource{
		Identifier:           path,
		Config:               map[string]string{"path": path},
		SourceType:           operator.IOFile,
		ReferenceFormulation: rml.FormulationCSV,
	}
}

// TemplateSubject is an IRI subject map built from template.
func TemplateSubject(template string, classes ...string) rml.SubjectMap {
	return rml.SubjectMap{
		TermMapInfo: rml.TermMapInfo{
			Identifier: "sm", TermMapType: rml.TermTemplate, TermValue: template, TermType: rml.KindIRI,
		},
		Classes: classes,
	}
}

// ConstantPredicate is a predicate map with a fixed IRI.
func ConstantPredicate(iri string) rml.PredicateMap {
	return rml.PredicateMap{TermMapInfo: rml.TermMapInfo{
		Identifier: "pm", TermMapType: rml.TermConstant, TermValue: iri, TermType: rml.KindIRI,
	}}
}

// JoinPOM is a predicate-object map whose single object is the subject of
// parent, joined on child = parentKey.
func JoinPOM(predicate, parent, child, parentKey string) rml.PredicateObjectMap {
	return rml.PredicateObjectMap{
		PredicateMaps: []rml.PredicateMap{ConstantPredicate(predicate)},
		ObjectMaps: []rml.ObjectMap{{
			TermMapInfo:      rml.TermMapInfo{Identifier: "om", TermType: rml.KindIRI},
			ParentTriplesMap: parent,
			JoinCondition: &rml.JoinCondition{
				ChildAttributes:  []string{child},
				ParentAttributes: []string{parentKey},
			},
		}},
	}
}

// PersonOrgDocument is Person (person table) joined on org_id to Org read
// from orgSource.
func PersonOrgDocument(orgSource rml.LogicalSource) *rml.Document {
	return &rml.Document{TriplesMaps: []rml.TriplesMap{
		{
			Identifier:    "Person",
			LogicalSource: TableSource("person"),
			SubjectMap:    TemplateSubject("http://ex.org/person/{id}"),
			POMs:          []rml.PredicateObjectMap{JoinPOM("http://ex.org/worksFor", "Org", "org_id", "id")},
		},
		{
			Identifier:    "Org",
			LogicalSource: orgSource,
			SubjectMap:    TemplateSubject("http://ex.org/org/{id}"),
		},
	}}
}

// MustTranslate translates doc, failing the test on error.
func MustTranslate(t testing.TB, doc *rml.Document) *plan.Graph {
	t.Helper()
	root, err := translator.Translate(doc)
	require.NoError(t, err)
	return root.Graph()
}

// MustFindNode returns the index of the node with id.
func MustFindNode(t testing.TB, g *plan.Graph, id string) plan.NodeIndex {
	t.Helper()
	idx, ok := g.FindNode(id)
	require.True(t, ok, "node %s not found", id)
	return idx
}
