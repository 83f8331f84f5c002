package store

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rmlplan/internal/operator"
	"github.com/roach88/rmlplan/internal/plan"
	"github.com/roach88/rmlplan/internal/rml"
	"github.com/roach88/rmlplan/internal/testutil"
)

func TestReadPlan_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "plan-1")
	g := createTestPlan(t, "people.csv")

	written, err := s.WritePlan(ctx, "people", g)
	require.NoError(t, err)

	rec, got, err := s.ReadPlan(ctx, written.ID)
	require.NoError(t, err)
	assert.Equal(t, written, rec)

	iso, err := plan.Isomorphic(g, got)
	require.NoError(t, err)
	assert.True(t, iso)

	for i, n := range g.Nodes() {
		assert.Equal(t, n.ID, got.Node(plan.NodeIndex(i)).ID)
		assert.Equal(t, n.Operator.Kind(), got.Node(plan.NodeIndex(i)).Operator.Kind())
	}
	assert.Equal(t, g.Edges(), got.Edges())
	assert.Equal(t, g.Sources(), got.Sources())

	idx, ok := got.FindNode("Join_4")
	require.True(t, ok)
	join, ok := got.Node(idx).Operator.(operator.Join)
	require.True(t, ok)
	assert.Equal(t, "join_1", join.Alias)
	assert.Equal(t, []string{"join_1_id"}, join.AliasedParentAttributes())

	idx, ok = got.FindNode("Extend_5")
	require.True(t, ok)
	ext := got.Node(idx).Operator.(operator.Extend)
	assert.Equal(t, operator.Literal{Inner: operator.Reference{Value: "name"}, Language: "en"}, ext.Pairs["tm_0_o0-0"])
}

func TestReadPlan_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, _, err := s.ReadPlan(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPlanNotFound))
}

func TestReadPlan_DetectsTampering(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "plan-1")

	_, err := s.WritePlan(ctx, "people", createTestPlan(t, "people.csv"))
	require.NoError(t, err)

	_, err = s.db.Exec(`UPDATE plan_nodes SET config = ? WHERE plan_id = ? AND idx = 1`,
		`{"attributes":["id"]}`, "plan-1")
	require.NoError(t, err)

	_, _, err = s.ReadPlan(ctx, "plan-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fingerprint mismatch")
}

func TestListPlans(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "plan-b", "plan-a")

	empty, err := s.ListPlans(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = s.WritePlan(ctx, "one", createTestPlan(t, "one.csv"))
	require.NoError(t, err)
	_, err = s.WritePlan(ctx, "two", createTestPlan(t, "two.csv"))
	require.NoError(t, err)

	plans, err := s.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "plan-b", plans[0].ID, "ordered by seq, not id")
	assert.Equal(t, "plan-a", plans[1].ID)
}

func TestFindByFingerprint(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "plan-1")
	g := createTestPlan(t, "people.csv")

	fingerprint, err := g.Fingerprint()
	require.NoError(t, err)

	_, found, err := s.FindByFingerprint(ctx, fingerprint)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = s.WritePlan(ctx, "people", g)
	require.NoError(t, err)

	rec, found, err := s.FindByFingerprint(ctx, fingerprint)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "plan-1", rec.ID)
}

func TestReadDocument(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "plan-1")
	g := createTestPlan(t, "people.csv")

	_, err := s.WritePlan(ctx, "people", g)
	require.NoError(t, err)

	doc, err := s.ReadDocument(ctx, "plan-1")
	require.NoError(t, err)
	want, err := g.CanonicalJSON()
	require.NoError(t, err)
	assert.Equal(t, string(want), doc)

	_, err = s.ReadDocument(ctx, "missing")
	assert.True(t, errors.Is(err, ErrPlanNotFound))
}

func TestReadPlan_TranslatedDocument(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "plan-1", "plan-2")

	for _, src := range []rml.LogicalSource{testutil.TableSource("org"), testutil.CSVSource("org.csv")} {
		g := testutil.MustTranslate(t, testutil.PersonOrgDocument(src))

		written, err := s.WritePlan(ctx, "person_org", g)
		require.NoError(t, err)

		_, got, err := s.ReadPlan(ctx, written.ID)
		require.NoError(t, err)

		want, err := g.CanonicalJSON()
		require.NoError(t, err)
		rebuilt, err := got.CanonicalJSON()
		require.NoError(t, err)
		assert.Equal(t, string(want), string(rebuilt))
	}

	records, err := s.ListPlans(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2, "the org source distinguishes the plans")
}
