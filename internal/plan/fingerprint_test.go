package plan

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rmlplan/internal/operator"
)

// buildJoinPlan builds child ⋈ parent -> serialize -> sink. When parentFirst
// is set the parent fragment is inserted first, changing every node id.
func buildJoinPlan(t *testing.T, parentFirst bool) *Graph {
	t.Helper()
	root := New()

	var child, parent Processed
	var err error
	if parentFirst {
		parent, err = root.Source(testSource("p.csv")).Apply(testProjection("id"), PrefixProjection)
		require.NoError(t, err)
		child, err = root.Source(testSource("c.csv")).Apply(testProjection("org"), PrefixProjection)
		require.NoError(t, err)
	} else {
		child, err = root.Source(testSource("c.csv")).Apply(testProjection("org"), PrefixProjection)
		require.NoError(t, err)
		parent, err = root.Source(testSource("p.csv")).Apply(testProjection("id"), PrefixProjection)
		require.NoError(t, err)
	}

	joined, err := child.Join(parent).Alias("join_1").WhereBy([]string{"org"}).ComparedTo([]string{"id"})
	require.NoError(t, err)
	ser, err := joined.Serialize(testSerializer())
	require.NoError(t, err)
	_, err = ser.Sink(testTarget("0_output.nt"))
	require.NoError(t, err)
	return root.Graph()
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := buildJoinPlan(t, false)
	b := buildJoinPlan(t, false)

	fa, err := a.Fingerprint()
	require.NoError(t, err)
	fb, err := b.Fingerprint()
	require.NoError(t, err)

	assert.Equal(t, fa, fb)
	assert.Len(t, fa, 64)
}

func TestIsomorphic_IgnoresInsertionOrder(t *testing.T) {
	a := buildJoinPlan(t, false)
	b := buildJoinPlan(t, true)

	assert.NotEqual(t, a.Nodes()[0], b.Nodes()[0])

	iso, err := Isomorphic(a, b)
	require.NoError(t, err)
	assert.True(t, iso)
}

func TestIsomorphic_DetectsDifferences(t *testing.T) {
	a := buildJoinPlan(t, false)

	// swapped join sides
	root := New()
	child, _ := root.Source(testSource("c.csv")).Apply(testProjection("org"), PrefixProjection)
	parent, _ := root.Source(testSource("p.csv")).Apply(testProjection("id"), PrefixProjection)
	joined, err := parent.Join(child).Alias("join_1").WhereBy([]string{"org"}).ComparedTo([]string{"id"})
	require.NoError(t, err)
	ser, _ := joined.Serialize(testSerializer())
	_, err = ser.Sink(testTarget("0_output.nt"))
	require.NoError(t, err)

	iso, err := Isomorphic(a, root.Graph())
	require.NoError(t, err)
	assert.False(t, iso)

	// different node count
	iso, err = Isomorphic(a, New().Graph())
	require.NoError(t, err)
	assert.False(t, iso)
}

func TestIsomorphic_DistinguishesFanOut(t *testing.T) {
	// one source feeding two projections, next to an unused source
	fanOut := New()
	shared := fanOut.Source(testSource("a.csv"))
	_, err := shared.Apply(testProjection("id"), PrefixProjection)
	require.NoError(t, err)
	_, err = shared.Apply(testProjection("id"), PrefixProjection)
	require.NoError(t, err)
	fanOut.Source(testSource("a.csv"))

	// two sources with one projection each
	split := New()
	_, err = split.Source(testSource("a.csv")).Apply(testProjection("id"), PrefixProjection)
	require.NoError(t, err)
	_, err = split.Source(testSource("a.csv")).Apply(testProjection("id"), PrefixProjection)
	require.NoError(t, err)

	a, b := fanOut.Graph(), split.Graph()
	require.Equal(t, a.NodeCount(), b.NodeCount())
	require.Equal(t, a.EdgeCount(), b.EdgeCount())

	fa, err := a.Fingerprint()
	require.NoError(t, err)
	fb, err := b.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, fa, fb)

	iso, err := Isomorphic(a, b)
	require.NoError(t, err)
	assert.False(t, iso)
}

func TestIsomorphic_SharedParentFragment(t *testing.T) {
	// two joins against one parent fragment vs. against two copies of it
	build := func(shareParent bool) *Graph {
		root := New()
		child, err := root.Source(testSource("c.csv")).Apply(testProjection("org"), PrefixProjection)
		require.NoError(t, err)
		parentA, err := root.Source(testSource("p.csv")).Apply(testProjection("id"), PrefixProjection)
		require.NoError(t, err)
		parentB := parentA
		if !shareParent {
			parentB, err = root.Source(testSource("p.csv")).Apply(testProjection("id"), PrefixProjection)
			require.NoError(t, err)
		}
		_, err = child.Join(parentA).Alias("join_0").WhereBy([]string{"org"}).ComparedTo([]string{"id"})
		require.NoError(t, err)
		_, err = child.Join(parentB).Alias("join_0").WhereBy([]string{"org"}).ComparedTo([]string{"id"})
		require.NoError(t, err)
		return root.Graph()
	}

	shared, copied := build(true), build(false)
	iso, err := Isomorphic(shared, copied)
	require.NoError(t, err)
	assert.False(t, iso)

	iso, err = Isomorphic(shared, build(true))
	require.NoError(t, err)
	assert.True(t, iso)
}

func TestCanonicalJSON(t *testing.T) {
	root := New()
	_, err := root.Source(operator.Source{
		Config:     map[string]string{"path": "a.csv"},
		SourceType: operator.IOFile,
		DataFormat: operator.FormatCSV,
	}).Apply(testProjection("b", "a"), PrefixProjection)
	require.NoError(t, err)

	data, err := root.Graph().CanonicalJSON()
	require.NoError(t, err)

	want := `{"edges":[{"from":"Source_0","key":"input","to":"Projection_1","value":"MappingTuple"}],` +
		`"nodes":[{"id":"Source_0","operator":{"config":{"config":{"path":"a.csv"},"data_format":"CSV","reference_iterators":[],"source_type":"file"},"kind":"Source"}},` +
		`{"id":"Projection_1","operator":{"config":{"attributes":["a","b"]},"kind":"Project"}}],` +
		`"sources":["Source_0"]}`
	assert.Equal(t, want, string(data))
}

func TestMarshalCanonical(t *testing.T) {
	testCases := []struct {
		name string
		in   any
		want string
	}{
		{"no html escaping", "<a&b>", `"<a&b>"`},
		{"nfc normalization", "e\u0301", "\"\u00e9\""},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
		{"escaped backslash kept", `\u2028`, `"\\u2028"`},
		{"sorted keys", map[string]any{"b": 1, "a": true}, `{"a":true,"b":1}`},
		{"string map", map[string]string{"z": "1", "y": "2"}, `{"y":"2","z":"1"}`},
		{"string list", []string{"x", "y"}, `["x","y"]`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MarshalCanonical(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))
		})
	}

	_, err := MarshalCanonical(map[string]any{"x": 1.5})
	assert.ErrorContains(t, err, "floats are forbidden")
	_, err = MarshalCanonical([]any{nil})
	assert.ErrorContains(t, err, "null is forbidden")
}

func TestLessUTF16(t *testing.T) {
	// U+1F600 is a surrogate pair in UTF-16 and sorts before U+FF61,
	// the reverse of their UTF-8 byte order.
	assert.True(t, lessUTF16("\U0001F600", "\uFF61"))
	assert.True(t, lessUTF16("a", "ab"))
	assert.False(t, lessUTF16("b", "a"))
}

func TestWriteDOT(t *testing.T) {
	g := buildJoinPlan(t, false)

	var buf bytes.Buffer
	require.NoError(t, g.Write(&buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "digraph plan {"))
	assert.Contains(t, out, "Source_0")
	assert.Contains(t, out, "Join_4")
	assert.Contains(t, out, `\"kind\":\"Join\"`)
	assert.Contains(t, out, `"left: MappingTuple"`)
	assert.Contains(t, out, `"right: MappingTuple"`)
	assert.Contains(t, out, `"input: SerializedFormat"`)

	buf.Reset()
	require.NoError(t, g.WritePretty(&buf))
	assert.Contains(t, buf.String(), `alias: join_1`)
	assert.Contains(t, buf.String(), `org = join_1_id`)
}

func TestWriteFile(t *testing.T) {
	g := buildJoinPlan(t, false)
	dir := t.TempDir()

	path := filepath.Join(dir, "nested", "plan.dot")
	require.NoError(t, g.WriteFile(path))
	prettyPath := filepath.Join(dir, "plan_pretty.dot")
	require.NoError(t, g.WritePrettyFile(prettyPath))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Serialize_5")

	data, err = os.ReadFile(prettyPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Sink_6")
}

func TestRebuild_PreservesFingerprint(t *testing.T) {
	g := buildJoinPlan(t, false)

	rebuilt, err := Rebuild(g.Nodes(), g.Edges())
	require.NoError(t, err)

	assert.Equal(t, g.Sources(), rebuilt.Sources())
	assert.Equal(t, g.Nodes(), rebuilt.Nodes())

	want, err := g.Fingerprint()
	require.NoError(t, err)
	got, err := rebuilt.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRebuild_RejectsOutOfRangeEdge(t *testing.T) {
	nodes := []PlanNode{{ID: "Source_0", Operator: testSource("a.csv")}}

	_, err := Rebuild(nodes, []PlanEdge{{From: 0, To: 3, Key: EdgeInput, Value: MappingTuple}})
	require.Error(t, err)
	assert.True(t, IsInvalidEdge(err))

	_, err = Rebuild([]PlanNode{{ID: "x"}}, nil)
	assert.True(t, IsInvalidEdge(err))
}
