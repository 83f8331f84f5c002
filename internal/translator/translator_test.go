package translator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rmlplan/internal/operator"
	"github.com/roach88/rmlplan/internal/plan"
	"github.com/roach88/rmlplan/internal/rml"
)

func TestTranslate_SingleMapNoJoins(t *testing.T) {
	doc := &rml.Document{TriplesMaps: []rml.TriplesMap{
		simpleTriplesMap("TM0", "{id}", rml.PredicateObjectMap{
			PredicateMaps: []rml.PredicateMap{predicate("ex:name")},
			ObjectMaps:    []rml.ObjectMap{plainObject("name")},
		}),
	}}

	g := mustTranslate(t, doc)

	ids := make([]string, 0, g.NodeCount())
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"Source_0", "Projection_1", "Extend_2", "Serialize_3", "Sink_4"}, ids)

	assert.Equal(t, operator.Source{
		Config:     map[string]string{"path": "TM0.csv"},
		SourceType: operator.IOFile,
		DataFormat: operator.FormatCSV,
	}, nodeByID(t, g, "Source_0").Operator)

	proj := nodeByID(t, g, "Projection_1").Operator.(operator.Projection)
	assert.Equal(t, []string{"id", "name"}, proj.Attributes.Sorted())

	ext := extendOf(t, g, "Extend_2")
	assert.Equal(t, map[string]operator.Function{
		"tm_0_sm":   operator.Iri{Inner: operator.UriEncode{Inner: operator.Template{Value: "{id}"}}},
		"tm_0_p0-0": operator.Iri{Inner: operator.UriEncode{Inner: operator.Constant{Value: "ex:name"}}},
		"tm_0_o0-0": operator.Literal{Inner: operator.Reference{Value: "name"}},
	}, ext.Pairs)

	assert.Equal(t, operator.Serializer{
		Template: " ?tm_0_sm ?tm_0_p0-0 ?tm_0_o0-0.\n",
		Format:   operator.FormatNTriples,
	}, nodeByID(t, g, "Serialize_3").Operator)

	assert.Equal(t, operator.Target{
		Config:     map[string]string{"path": "0_output.nt"},
		TargetType: operator.IOFile,
		DataFormat: operator.FormatNTriples,
	}, nodeByID(t, g, "Sink_4").Operator)

	assert.Equal(t, []plan.NodeIndex{0}, g.Sources())
}

func TestTranslate_IndependentChainsWithoutJoins(t *testing.T) {
	const n = 4
	doc := &rml.Document{}
	for i := 0; i < n; i++ {
		doc.TriplesMaps = append(doc.TriplesMaps, simpleTriplesMap(
			fmt.Sprintf("TM%d", i),
			fmt.Sprintf("http://ex.org/%d/{id}", i),
			rml.PredicateObjectMap{
				PredicateMaps: []rml.PredicateMap{predicate("ex:p")},
				ObjectMaps:    []rml.ObjectMap{plainObject(fmt.Sprintf("v%d", i))},
			},
		))
	}

	g := mustTranslate(t, doc)
	require.Len(t, g.Sources(), n)

	seen := map[plan.NodeIndex]int{}
	for chain, src := range g.Sources() {
		kinds, nodes := chainFrom(g, src)
		assert.Equal(t, []string{
			operator.KindSource, operator.KindProject, operator.KindExtend,
			operator.KindSerializer, operator.KindTarget,
		}, kinds)
		for _, idx := range nodes {
			prev, dup := seen[idx]
			assert.False(t, dup, "node %d shared by chains %d and %d", idx, prev, chain)
			seen[idx] = chain
		}

		sink := g.Node(nodes[len(nodes)-1]).Operator.(operator.Target)
		assert.Equal(t, fmt.Sprintf("%d_output.nt", chain), sink.Config["path"])
	}
	assert.Len(t, seen, g.NodeCount())

	for _, e := range g.Edges() {
		assert.Equal(t, seen[e.From], seen[e.To], "edge crosses chains")
	}
}

func TestTranslate_ParentChildJoin(t *testing.T) {
	parent := simpleTriplesMap("A", "http://ex.org/a/{id}")
	child := simpleTriplesMap("B", "http://ex.org/b/{bid}", rml.PredicateObjectMap{
		PredicateMaps: []rml.PredicateMap{predicate("ex:rel")},
		ObjectMaps:    []rml.ObjectMap{parentObject("A", []string{"pid"}, []string{"id"})},
	})
	doc := &rml.Document{TriplesMaps: []rml.TriplesMap{parent, child}}

	g := mustTranslate(t, doc)

	joins := g.NodesOfKind(operator.KindJoin)
	require.Len(t, joins, 1)
	join := g.Node(joins[0])
	assert.Equal(t, "Join_4", join.ID)
	assert.Equal(t, operator.Join{
		Alias:            "join_0",
		ChildAttributes:  []string{"pid"},
		ParentAttributes: []string{"id"},
		JoinType:         operator.JoinInner,
	}, join.Operator)

	in := g.InEdges(joins[0])
	require.Len(t, in, 2)
	assert.Equal(t, "Projection_3", g.Node(in[0].From).ID)
	assert.Equal(t, plan.EdgeLeft, in[0].Key)
	assert.Equal(t, "Projection_1", g.Node(in[1].From).ID)
	assert.Equal(t, plan.EdgeRight, in[1].Key)

	// the parent subject map rebound to the alias
	assert.Equal(t, "join_0_sm", parent.SubjectMap.PrefixAttributes("join_0").Identifier)

	ext := extendOf(t, g, "Extend_5")
	assert.Equal(t, []string{"tm_1_o0-0", "tm_1_p0-0", "tm_1_sm"}, pairNames(ext))
	assert.Equal(t,
		operator.Iri{Inner: operator.UriEncode{Inner: operator.Template{Value: "http://ex.org/a/{join_0_id}"}}},
		ext.Pairs["tm_1_o0-0"])

	ser := nodeByID(t, g, "Serialize_6").Operator.(operator.Serializer)
	assert.Equal(t, " ?tm_1_sm ?tm_1_p0-0 ?tm_1_o0-0.\n", ser.Template)

	sink := nodeByID(t, g, "Sink_7").Operator.(operator.Target)
	assert.Equal(t, "1_output.nt", sink.Config["path"])

	// a parent with no POMs and no classes gets no output branch
	assert.Len(t, g.NodesOfKind(operator.KindTarget), 1)
}

func TestTranslate_RenamedSourceFields(t *testing.T) {
	parent := simpleTriplesMap("A", "http://ex.org/a/{id}")
	child := simpleTriplesMap("B", "http://ex.org/b/{person.id}", rml.PredicateObjectMap{
		PredicateMaps: []rml.PredicateMap{predicate("ex:worksFor")},
		ObjectMaps:    []rml.ObjectMap{parentObject("A", []string{"person.org"}, []string{"id"})},
	})
	child.LogicalSource.Rename = &rml.FieldRename{Iterator: "it", Expression: "person", Fields: []string{"id", "org"}}
	doc := &rml.Document{TriplesMaps: []rml.TriplesMap{parent, child}}

	g := mustTranslate(t, doc)

	proj := nodeByID(t, g, "Projection_3").Operator.(operator.Projection)
	assert.Equal(t, []string{"it.id", "it.org"}, proj.Attributes.Sorted())

	assert.Equal(t, operator.Rename{Pairs: map[string]string{
		"it.id":  "person.id",
		"it.org": "person.org",
	}}, nodeByID(t, g, "Rename_4").Operator)
	in := g.InEdges(findIndex(t, g, "Rename_4"))
	require.Len(t, in, 1)
	assert.Equal(t, "Projection_3", g.Node(in[0].From).ID)

	join := nodeByID(t, g, "Join_5")
	assert.Equal(t, []string{"person.org"}, join.Operator.(operator.Join).ChildAttributes)
	in = g.InEdges(findIndex(t, g, "Join_5"))
	require.Len(t, in, 2)
	assert.Equal(t, "Rename_4", g.Node(in[0].From).ID)
	assert.Equal(t, plan.EdgeLeft, in[0].Key)

	ext := extendOf(t, g, "Extend_6")
	assert.Equal(t,
		operator.Iri{Inner: operator.UriEncode{Inner: operator.Template{Value: "http://ex.org/b/{person.id}"}}},
		ext.Pairs["tm_1_sm"])
}

func TestTranslate_ParentDeclaredAfterChild(t *testing.T) {
	child := simpleTriplesMap("B", "http://ex.org/b/{bid}", rml.PredicateObjectMap{
		PredicateMaps: []rml.PredicateMap{predicate("ex:rel")},
		ObjectMaps:    []rml.ObjectMap{parentObject("A", []string{"pid"}, []string{"id"})},
	})
	parent := simpleTriplesMap("A", "http://ex.org/a/{id}")

	g := mustTranslate(t, &rml.Document{TriplesMaps: []rml.TriplesMap{child, parent}})

	joins := g.NodesOfKind(operator.KindJoin)
	require.Len(t, joins, 1)
	assert.Equal(t, "join_1", g.Node(joins[0]).Operator.(operator.Join).Alias)

	ext := extendOf(t, g, "Extend_5")
	assert.Equal(t,
		operator.Iri{Inner: operator.UriEncode{Inner: operator.Template{Value: "http://ex.org/a/{join_1_id}"}}},
		ext.Pairs["tm_0_o0-0"])
}

func TestTranslate_JoinNodesHaveTwoInputsAndSyntheticPair(t *testing.T) {
	a := simpleTriplesMap("A", "http://ex.org/a/{id}")
	c := simpleTriplesMap("C", "http://ex.org/c/{code}")
	b := simpleTriplesMap("B", "http://ex.org/b/{bid}",
		rml.PredicateObjectMap{
			PredicateMaps: []rml.PredicateMap{predicate("ex:p1"), predicate("ex:p2")},
			ObjectMaps: []rml.ObjectMap{
				parentObject("A", []string{"aid"}, []string{"id"}),
				parentObject("C", []string{"cid", "cver"}, []string{"code", "ver"}),
			},
		},
	)

	g := mustTranslate(t, &rml.Document{TriplesMaps: []rml.TriplesMap{a, b, c}})

	joins := g.NodesOfKind(operator.KindJoin)
	require.Len(t, joins, 2)

	wantObject := []string{"tm_1_o0-0", "tm_1_o0-1"}
	for i, idx := range joins {
		assert.Len(t, g.InEdges(idx), 2)

		out := g.OutEdges(idx)
		require.Len(t, out, 1)
		ext, ok := g.Node(out[0].To).Operator.(operator.Extend)
		require.True(t, ok)
		assert.Contains(t, ext.Pairs, wantObject[i])

		serIdx := g.OutEdges(out[0].To)[0].To
		ser := g.Node(serIdx).Operator.(operator.Serializer)
		assert.Equal(t,
			" ?tm_1_sm ?tm_1_p0-0 ?"+wantObject[i]+".\n ?tm_1_sm ?tm_1_p0-1 ?"+wantObject[i]+".\n",
			ser.Template)
	}

	assert.Equal(t, "join_2", g.Node(joins[1]).Operator.(operator.Join).Alias)
	assert.Len(t, g.NodesOfKind(operator.KindTarget), 2)
}

func TestTranslate_MixedPOMIsSplit(t *testing.T) {
	a := simpleTriplesMap("A", "http://ex.org/a/{id}")
	b := simpleTriplesMap("B", "http://ex.org/b/{bid}",
		rml.PredicateObjectMap{
			PredicateMaps: []rml.PredicateMap{predicate("ex:mixed")},
			ObjectMaps: []rml.ObjectMap{
				plainObject("label"),
				parentObject("A", []string{"aid"}, []string{"id"}),
			},
		},
		rml.PredicateObjectMap{
			PredicateMaps: []rml.PredicateMap{predicate("ex:plain")},
			ObjectMaps:    []rml.ObjectMap{plainObject("note")},
		},
	)

	g := mustTranslate(t, &rml.Document{TriplesMaps: []rml.TriplesMap{a, b}})

	// Source_0 Projection_1 Source_2 Projection_3, then B's plain branch
	plain := extendOf(t, g, "Extend_4")
	assert.Equal(t, []string{"tm_1_o0-0", "tm_1_o1-0", "tm_1_p0-0", "tm_1_p1-0", "tm_1_sm"}, pairNames(plain))

	ser := nodeByID(t, g, "Serialize_5").Operator.(operator.Serializer)
	assert.Equal(t,
		" ?tm_1_sm ?tm_1_p1-0 ?tm_1_o1-0.\n ?tm_1_sm ?tm_1_p0-0 ?tm_1_o0-0.\n",
		ser.Template, "originally plain POMs come before lifted ones")

	joined := extendOf(t, g, "Extend_8")
	assert.Equal(t, []string{"tm_1_o0-1", "tm_1_p0-0", "tm_1_sm"}, pairNames(joined))

	proj := nodeByID(t, g, "Projection_3").Operator.(operator.Projection)
	assert.Equal(t, []string{"aid", "bid", "label", "note"}, proj.Attributes.Sorted())
}

func TestTranslate_SelfJoin(t *testing.T) {
	emp := simpleTriplesMap("Emp", "http://ex.org/emp/{id}", rml.PredicateObjectMap{
		PredicateMaps: []rml.PredicateMap{predicate("ex:manager")},
		ObjectMaps:    []rml.ObjectMap{parentObject("Emp", []string{"boss"}, []string{"id"})},
	})

	g := mustTranslate(t, &rml.Document{TriplesMaps: []rml.TriplesMap{emp}})

	joins := g.NodesOfKind(operator.KindJoin)
	require.Len(t, joins, 1)
	in := g.InEdges(joins[0])
	require.Len(t, in, 2)
	assert.Equal(t, in[0].From, in[1].From)

	ext := extendOf(t, g, "Extend_3")
	assert.Equal(t,
		operator.Iri{Inner: operator.UriEncode{Inner: operator.Template{Value: "http://ex.org/emp/{join_0_id}"}}},
		ext.Pairs["tm_0_o0-0"])
}

func TestTranslate_SubjectClasses(t *testing.T) {
	tm := simpleTriplesMap("P", "http://ex.org/p/{id}")
	tm.SubjectMap.Classes = []string{"http://ex.org/Person", "http://ex.org/Agent"}

	g := mustTranslate(t, &rml.Document{TriplesMaps: []rml.TriplesMap{tm}})

	ext := extendOf(t, g, "Extend_2")
	assert.Equal(t, operator.Iri{Inner: operator.Constant{Value: RDFType}}, ext.Pairs["tm_0_sm_type"])
	assert.Equal(t, operator.Iri{Inner: operator.Constant{Value: "http://ex.org/Person"}}, ext.Pairs["tm_0_sm_c0"])
	assert.Equal(t, operator.Iri{Inner: operator.Constant{Value: "http://ex.org/Agent"}}, ext.Pairs["tm_0_sm_c1"])

	ser := nodeByID(t, g, "Serialize_3").Operator.(operator.Serializer)
	assert.Equal(t,
		" ?tm_0_sm ?tm_0_sm_type ?tm_0_sm_c0.\n ?tm_0_sm ?tm_0_sm_type ?tm_0_sm_c1.\n",
		ser.Template)
}

func TestTranslate_GraphMapOnlyProjected(t *testing.T) {
	tm := simpleTriplesMap("G", "http://ex.org/{id}", rml.PredicateObjectMap{
		PredicateMaps: []rml.PredicateMap{predicate("ex:p")},
		ObjectMaps:    []rml.ObjectMap{plainObject("v")},
	})
	tm.GraphMap = &rml.GraphMap{TermMapInfo: iriTemplate("gm", "http://ex.org/graph/{year}")}

	g := mustTranslate(t, &rml.Document{TriplesMaps: []rml.TriplesMap{tm}})

	proj := nodeByID(t, g, "Projection_1").Operator.(operator.Projection)
	assert.Equal(t, []string{"id", "v", "year"}, proj.Attributes.Sorted())
	assert.Equal(t, []string{"tm_0_o0-0", "tm_0_p0-0", "tm_0_sm"}, pairNames(extendOf(t, g, "Extend_2")))
}

func TestTranslate_LiteralLanguageAndDatatype(t *testing.T) {
	om := plainObject("name")
	om.Language = "en"
	typed := plainObject("age")
	typed.Datatype = "http://www.w3.org/2001/XMLSchema#integer"

	tm := simpleTriplesMap("L", "http://ex.org/{id}", rml.PredicateObjectMap{
		PredicateMaps: []rml.PredicateMap{predicate("ex:p")},
		ObjectMaps:    []rml.ObjectMap{om, typed},
	})

	g := mustTranslate(t, &rml.Document{TriplesMaps: []rml.TriplesMap{tm}})
	ext := extendOf(t, g, "Extend_2")

	assert.Equal(t, operator.Literal{Inner: operator.Reference{Value: "name"}, Language: "en"}, ext.Pairs["tm_0_o0-0"])
	assert.Equal(t,
		operator.Literal{Inner: operator.Reference{Value: "age"}, Datatype: "http://www.w3.org/2001/XMLSchema#integer"},
		ext.Pairs["tm_0_o0-1"])
}

func TestTranslate_BlankNodeSubject(t *testing.T) {
	tm := simpleTriplesMap("B", "b{id}", rml.PredicateObjectMap{
		PredicateMaps: []rml.PredicateMap{predicate("ex:p")},
		ObjectMaps:    []rml.ObjectMap{plainObject("v")},
	})
	tm.SubjectMap.TermType = rml.KindBlankNode

	g := mustTranslate(t, &rml.Document{TriplesMaps: []rml.TriplesMap{tm}})
	assert.Equal(t, operator.BlankNode{Inner: operator.Template{Value: "b{id}"}}, extendOf(t, g, "Extend_2").Pairs["tm_0_sm"])
}

func TestTranslate_Idempotent(t *testing.T) {
	doc := &rml.Document{TriplesMaps: []rml.TriplesMap{
		simpleTriplesMap("A", "http://ex.org/a/{id}", rml.PredicateObjectMap{
			PredicateMaps: []rml.PredicateMap{predicate("ex:name"), predicate("ex:label")},
			ObjectMaps:    []rml.ObjectMap{plainObject("name")},
		}),
		simpleTriplesMap("B", "http://ex.org/b/{bid}", rml.PredicateObjectMap{
			PredicateMaps: []rml.PredicateMap{predicate("ex:rel")},
			ObjectMaps: []rml.ObjectMap{
				plainObject("title"),
				parentObject("A", []string{"pid"}, []string{"id"}),
			},
		}),
	}}

	first := mustTranslate(t, doc)
	second := mustTranslate(t, doc)

	iso, err := plan.Isomorphic(first, second)
	require.NoError(t, err)
	assert.True(t, iso)

	j1, err := first.CanonicalJSON()
	require.NoError(t, err)
	j2, err := second.CanonicalJSON()
	require.NoError(t, err)
	assert.Equal(t, string(j1), string(j2))
}

func TestTranslate_EmptyDocument(t *testing.T) {
	g := mustTranslate(t, &rml.Document{})
	assert.Equal(t, 0, g.NodeCount())

	root, err := Translate(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, root.Graph().NodeCount())
}

func TestTranslate_Errors(t *testing.T) {
	withObject := func(om rml.ObjectMap) *rml.Document {
		return &rml.Document{TriplesMaps: []rml.TriplesMap{
			simpleTriplesMap("A", "http://ex.org/a/{id}"),
			simpleTriplesMap("B", "http://ex.org/b/{bid}", rml.PredicateObjectMap{
				PredicateMaps: []rml.PredicateMap{predicate("ex:p")},
				ObjectMaps:    []rml.ObjectMap{om},
			}),
		}}
	}

	unknownKind := plainObject("v")
	unknownKind.TermType = "Triple"
	noKind := plainObject("v")
	noKind.TermType = ""
	badType := plainObject("v")
	badType.TermMapType = "function"

	testCases := []struct {
		name  string
		doc   *rml.Document
		check func(error) bool
	}{
		{
			name: "parent without join condition",
			doc: withObject(rml.ObjectMap{
				TermMapInfo:      rml.TermMapInfo{TermType: rml.KindIRI},
				ParentTriplesMap: "A",
			}),
			check: IsMalformedJoin,
		},
		{
			name: "join condition without parent",
			doc: withObject(rml.ObjectMap{
				TermMapInfo:   literalRef("om", "v"),
				JoinCondition: &rml.JoinCondition{ChildAttributes: []string{"x"}, ParentAttributes: []string{"y"}},
			}),
			check: IsMalformedJoin,
		},
		{
			name:  "missing parent",
			doc:   withObject(parentObject("Nope", []string{"x"}, []string{"y"})),
			check: IsMissingParent,
		},
		{
			name:  "unrecognized term kind",
			doc:   withObject(unknownKind),
			check: IsUnrecognizedTermKind,
		},
		{
			name:  "unknown term map type",
			doc:   withObject(badType),
			check: IsUnrecognizedTermKind,
		},
		{
			name:  "missing term type",
			doc:   withObject(noKind),
			check: IsMissingTermType,
		},
		{
			name:  "unequal join keys",
			doc:   withObject(parentObject("A", []string{"x", "z"}, []string{"y"})),
			check: plan.IsMismatchedJoinKeys,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			root, err := Translate(tc.doc)
			require.Error(t, err)
			assert.True(t, tc.check(err), "unexpected error: %v", err)
			assert.Nil(t, root.Graph(), "no partial plan")
		})
	}
}

func TestTranslate_ParentSubjectErrorsAreReported(t *testing.T) {
	parent := simpleTriplesMap("A", "http://ex.org/a/{id}")
	parent.SubjectMap.TermType = ""
	child := simpleTriplesMap("B", "http://ex.org/b/{bid}", rml.PredicateObjectMap{
		PredicateMaps: []rml.PredicateMap{predicate("ex:p")},
		ObjectMaps:    []rml.ObjectMap{parentObject("A", []string{"x"}, []string{"id"})},
	})

	_, err := Translate(&rml.Document{TriplesMaps: []rml.TriplesMap{parent, child}})
	require.Error(t, err)
	assert.True(t, IsMissingTermType(err))

	var te *TranslationError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "A", te.TriplesMap)
}

func TestTranslationError_Message(t *testing.T) {
	err := &TranslationError{Code: ErrCodeMissingParent, TriplesMap: "B", Message: `parent triples map "X" not found`}
	assert.Equal(t, `MissingParent: parent triples map "X" not found (triples map=B)`, err.Error())

	code, ok := CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeMissingParent, code)

	_, ok = CodeOf(fmt.Errorf("plain"))
	assert.False(t, ok)
}
