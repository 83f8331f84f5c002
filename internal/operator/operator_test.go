package operator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunction_String(t *testing.T) {
	fn := Iri{Inner: UriEncode{Inner: Template{Value: "http://ex.org/{id}"}}}
	assert.Equal(t, `Iri(UriEncode(Template("http://ex.org/{id}")))`, fn.String())

	lit := Literal{Inner: Reference{Value: "age"}, Datatype: "http://www.w3.org/2001/XMLSchema#integer"}
	assert.Equal(t, `Literal(Reference("age"), datatype="http://www.w3.org/2001/XMLSchema#integer")`, lit.String())

	assert.Equal(t, `BlankNode(<nil>)`, BlankNode{}.String())
}

func TestFunction_JSONRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		fn   Function
		want string
	}{
		{
			name: "iri over template",
			fn:   Iri{Inner: UriEncode{Inner: Template{Value: "{id}"}}},
			want: `{"inner_function":{"inner_function":{"type":"Template","value":"{id}"},"type":"UriEncode"},"type":"Iri"}`,
		},
		{
			name: "literal with language",
			fn:   Literal{Inner: Reference{Value: "name"}, Language: "en"},
			want: `{"inner_function":{"type":"Reference","value":"name"},"language":"en","type":"Literal"}`,
		},
		{
			name: "blank node over constant",
			fn:   BlankNode{Inner: Constant{Value: "b0"}},
			want: `{"inner_function":{"type":"Constant","value":"b0"},"type":"BlankNode"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.fn)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(data))

			decoded, err := UnmarshalFunction(data)
			require.NoError(t, err)
			assert.Equal(t, tc.fn, decoded)
		})
	}
}

func TestUnmarshalFunction_Errors(t *testing.T) {
	_, err := UnmarshalFunction([]byte(`{"type":"Iri"}`))
	assert.ErrorContains(t, err, "missing inner_function")

	_, err = UnmarshalFunction([]byte(`{"type":"Regex","inner_function":{"type":"Constant","value":"x"}}`))
	assert.ErrorContains(t, err, "unknown function type")

	_, err = UnmarshalFunction([]byte(`not json`))
	assert.Error(t, err)
}

func TestOperator_Kinds(t *testing.T) {
	ops := map[string]Operator{
		KindSource:     Source{},
		KindProject:    Projection{},
		KindExtend:     Extend{},
		KindRename:     Rename{},
		KindJoin:       Join{},
		KindSerializer: Serializer{},
		KindTarget:     Target{},
	}
	for kind, op := range ops {
		assert.Equal(t, kind, op.Kind())
	}
}

func TestOperator_MarshalRoundTrip(t *testing.T) {
	ops := []Operator{
		Source{
			Config:             map[string]string{"path": "people.csv"},
			SourceType:         IOFile,
			ReferenceIterators: []string{"$.people[*]"},
			DataFormat:         FormatCSV,
		},
		Projection{Attributes: NewAttributeSet("id", "name")},
		Extend{Pairs: map[string]Function{
			"tm_0_sm":   Iri{Inner: UriEncode{Inner: Template{Value: "http://ex.org/{id}"}}},
			"tm_0_o0-0": Literal{Inner: Reference{Value: "name"}},
		}},
		Rename{Pairs: map[string]string{"it.name": "expr.name"}},
		Join{Alias: "join_1", ChildAttributes: []string{"org"}, ParentAttributes: []string{"id"}, JoinType: JoinInner},
		Serializer{Template: " ?s ?p ?o.\n", Format: FormatNTriples},
		Target{Config: map[string]string{"path": "0_output.nt"}, TargetType: IOFile, DataFormat: FormatNTriples},
	}

	for _, op := range ops {
		t.Run(op.Kind(), func(t *testing.T) {
			data, err := MarshalOperator(op)
			require.NoError(t, err)

			decoded, err := UnmarshalOperator(data)
			require.NoError(t, err)
			assert.Equal(t, op, decoded)
			assert.Equal(t, CanonicalMap(op), CanonicalMap(decoded))
		})
	}
}

func TestUnmarshalOperator_UnknownKind(t *testing.T) {
	_, err := UnmarshalOperator([]byte(`{"kind":"Filter","config":{}}`))
	assert.ErrorContains(t, err, "unknown operator kind")
}

func TestMarshalOperator_Nil(t *testing.T) {
	_, err := MarshalOperator(nil)
	assert.Error(t, err)
}

func TestCanonicalMap_NoNilValues(t *testing.T) {
	m := CanonicalMap(Source{SourceType: IOStdin, DataFormat: FormatJSON})
	cfg := m["config"].(map[string]any)
	assert.Equal(t, map[string]any{}, cfg["config"])
	assert.Equal(t, []any{}, cfg["reference_iterators"])
}

func TestJoin_AliasedParentAttributes(t *testing.T) {
	j := Join{Alias: "join_0", ParentAttributes: []string{"id", "code"}}
	assert.Equal(t, []string{"join_0_id", "join_0_code"}, j.AliasedParentAttributes())
}

func TestPrettyString(t *testing.T) {
	got := PrettyString(Projection{Attributes: NewAttributeSet("name", "id")})
	assert.Equal(t, "Project\nattributes: id, name", got)

	got = PrettyString(Join{
		Alias:            "join_1",
		ChildAttributes:  []string{"org"},
		ParentAttributes: []string{"id"},
		JoinType:         JoinInner,
	})
	assert.Equal(t, "Join\nalias: join_1\ntype: inner\norg = join_1_id", got)

	got = PrettyString(Serializer{Template: " ?a ?b ?c.\n ?a ?d ?e.\n", Format: FormatNTriples})
	assert.Equal(t, "Serializer\nformat: NT\n?a ?b ?c.\n?a ?d ?e.", got)
}

func TestAttributeSet(t *testing.T) {
	s := NewAttributeSet("b", "a")
	s.Add("c")
	s.Union(NewAttributeSet("d"))

	assert.Equal(t, []string{"a", "b", "c", "d"}, s.Sorted())
	assert.True(t, s.IsSupersetOf(NewAttributeSet("a", "d")))
	assert.False(t, s.IsSupersetOf(NewAttributeSet("z")))

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `["a","b","c","d"]`, string(data))
}

func TestDataFormat_Extension(t *testing.T) {
	assert.Equal(t, "nt", FormatNTriples.Extension())
	assert.Equal(t, "ttl", FormatTurtle.Extension())
	assert.Equal(t, "out", DataFormat("BIN").Extension())
}
