package rml

import (
	"slices"
	"strings"

	"github.com/roach88/rmlplan/internal/operator"
)

// Document is a parsed mapping document. Triples maps keep their
// declaration order; the translator numbers them by position.
type Document struct {
	TriplesMaps []TriplesMap
}

// FindTriplesMap returns the triples map with the given identifier and its
// position in the document.
func (d *Document) FindTriplesMap(identifier string) (TriplesMap, int, bool) {
	for i, tm := range d.TriplesMaps {
		if tm.Identifier == identifier {
			return tm, i, true
		}
	}
	return TriplesMap{}, -1, false
}

// TriplesMap describes how one logical source is turned into triples.
// Identifier is unique within a document and is the key joins refer to.
type TriplesMap struct {
	Identifier    string
	LogicalSource LogicalSource
	SubjectMap    SubjectMap
	GraphMap      *GraphMap
	POMs          []PredicateObjectMap
}

// ReferenceFormulation names how references are resolved against source
// records.
type ReferenceFormulation string

const (
	FormulationCSV      ReferenceFormulation = "csv"
	FormulationJSONPath ReferenceFormulation = "jsonpath"
	FormulationXPath    ReferenceFormulation = "xpath"
	FormulationSQL      ReferenceFormulation = "sql"
)

// DataFormat maps the formulation to the record format of the source.
func (f ReferenceFormulation) DataFormat() operator.DataFormat {
	switch f {
	case FormulationJSONPath:
		return operator.FormatJSON
	case FormulationXPath:
		return operator.FormatXML
	case FormulationSQL:
		return operator.FormatSQL
	default:
		return operator.FormatCSV
	}
}

// LogicalSource describes where the records of a triples map come from.
type LogicalSource struct {
	Identifier           string
	Config               map[string]string
	SourceType           operator.IOType
	Iterator             string
	ReferenceFormulation ReferenceFormulation
	Rename               *FieldRename
}

// FieldRename exposes fields of an iterator under an expression name: the
// source yields <Iterator>.<field> and term maps reference
// <Expression>.<field>.
type FieldRename struct {
	Iterator   string
	Expression string
	Fields     []string
}

// SourceAttribute maps an attribute referenced by a term map back to the
// attribute the source yields. Attributes outside the renamed fields are
// returned unchanged.
func (ls LogicalSource) SourceAttribute(attr string) string {
	r := ls.Rename
	if r == nil {
		return attr
	}
	field, ok := strings.CutPrefix(attr, r.Expression+".")
	if !ok || !slices.Contains(r.Fields, field) {
		return attr
	}
	return r.Iterator + "." + field
}

// ToSource converts the logical source into the configuration of a Source
// operator. An empty iterator yields no reference iterators.
func (ls LogicalSource) ToSource() operator.Source {
	cfg := make(map[string]string, len(ls.Config))
	for k, v := range ls.Config {
		cfg[k] = v
	}

	var iterators []string
	if ls.Iterator != "" {
		iterators = []string{ls.Iterator}
	}

	return operator.Source{
		Config:             cfg,
		SourceType:         ls.SourceType,
		ReferenceIterators: iterators,
		DataFormat:         ls.ReferenceFormulation.DataFormat(),
	}
}

// SubjectMap produces the subject of every triple of its triples map.
// Each class becomes an rdf:type triple.
type SubjectMap struct {
	TermMapInfo
	Classes []string
}

// PredicateMap produces a predicate.
type PredicateMap struct {
	TermMapInfo
}

// GraphMap names the graph triples are placed in.
type GraphMap struct {
	TermMapInfo
}

// JoinCondition pairs child attributes with parent attributes position by
// position. Both lists have the same length.
type JoinCondition struct {
	ChildAttributes  []string
	ParentAttributes []string
}

// ObjectMap produces an object. When ParentTriplesMap is set the object is
// the subject of the referenced triples map, matched through JoinCondition;
// the two are set together or not at all.
type ObjectMap struct {
	TermMapInfo
	ParentTriplesMap string
	JoinCondition    *JoinCondition
	Language         string
	Datatype         string
}

// HasParent reports whether the object map references a parent triples map.
func (om ObjectMap) HasParent() bool {
	return om.ParentTriplesMap != ""
}

// PredicateObjectMap pairs every predicate map with every object map.
type PredicateObjectMap struct {
	PredicateMaps []PredicateMap
	ObjectMaps    []ObjectMap
}

// HasParentRef reports whether any object map references a parent triples
// map, i.e. whether the POM needs a join.
func (pom PredicateObjectMap) HasParentRef() bool {
	for _, om := range pom.ObjectMaps {
		if om.HasParent() {
			return true
		}
	}
	return false
}
