package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rmlplan/internal/operator"
	"github.com/roach88/rmlplan/internal/plan"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T, ids ...string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(NewFixedGenerator(ids...)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestPlan builds child ⋈ parent -> extend -> serialize -> sink. The
// path of the child source distinguishes otherwise identical plans.
func createTestPlan(t *testing.T, childPath string) *plan.Graph {
	t.Helper()
	root := plan.New()

	child, err := root.Source(operator.Source{
		Config:     map[string]string{"path": childPath},
		SourceType: operator.IOFile,
		DataFormat: operator.FormatCSV,
	}).Apply(operator.Projection{Attributes: operator.NewAttributeSet("id", "org")}, plan.PrefixProjection)
	require.NoError(t, err)

	parent, err := root.Source(operator.Source{
		Config:             map[string]string{"path": "orgs.json"},
		SourceType:         operator.IOFile,
		ReferenceIterators: []string{"$.orgs[*]"},
		DataFormat:         operator.FormatJSON,
	}).Apply(operator.Projection{Attributes: operator.NewAttributeSet("id")}, plan.PrefixProjection)
	require.NoError(t, err)

	joined, err := child.Join(parent).Alias("join_1").WhereBy([]string{"org"}).ComparedTo([]string{"id"})
	require.NoError(t, err)

	extended, err := joined.Apply(operator.Extend{Pairs: map[string]operator.Function{
		"tm_0_sm": operator.Iri{Inner: operator.UriEncode{Inner: operator.Template{Value: "http://ex.org/{id}"}}},
		"tm_0_p0": operator.Iri{Inner: operator.Constant{Value: "http://ex.org/worksFor"}},
		"tm_0_o0-0": operator.Literal{
			Inner:    operator.Reference{Value: "name"},
			Language: "en",
		},
	}}, plan.PrefixExtend)
	require.NoError(t, err)

	ser, err := extended.Serialize(operator.Serializer{
		Template: " ?tm_0_sm ?tm_0_p0 ?tm_0_o0-0.\n",
		Format:   operator.FormatNTriples,
	})
	require.NoError(t, err)

	_, err = ser.Sink(operator.Target{
		Config:     map[string]string{"path": "0_output.nt"},
		TargetType: operator.IOFile,
		DataFormat: operator.FormatNTriples,
	})
	require.NoError(t, err)

	return root.Graph()
}
