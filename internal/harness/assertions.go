package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/rmlplan/internal/operator"
	"github.com/roach88/rmlplan/internal/plan"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Nodes    []string // Plan nodes for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Nodes) > 0 {
		fmt.Fprintf(&buf, "\nPlan nodes:\n")
		for i, n := range e.Nodes {
			fmt.Fprintf(&buf, "  [%d] %s\n", i, n)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against g and returns the
// failure messages in assertion order.
func EvaluateAssertions(g *plan.Graph, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		if err := evaluateAssertion(g, a); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func evaluateAssertion(g *plan.Graph, a Assertion) error {
	if g == nil {
		return &AssertionError{Type: a.Type, Expected: "a compiled plan", Actual: "no plan"}
	}

	switch a.Type {
	case AssertNodeCount:
		return assertCount(g, a.Type, a.Count, g.NodeCount(), "nodes")
	case AssertEdgeCount:
		return assertCount(g, a.Type, a.Count, g.EdgeCount(), "edges")
	case AssertOperatorCount:
		return assertCount(g, a.Type, a.Count, len(g.NodesOfKind(a.Kind)), a.Kind+" operators")
	case AssertExtendHas:
		return assertExtendHas(g, a)
	case AssertTemplateContains:
		return assertTemplateContains(g, a)
	case AssertSinkPath:
		return assertSinkPath(g, a)
	case AssertJoinAlias:
		return assertJoinAlias(g, a)
	case AssertProjectionEquals:
		return assertProjectionEquals(g, a)
	default:
		return errors.Newf("unknown assertion type: %s", a.Type)
	}
}

func assertCount(g *plan.Graph, typ string, want, got int, what string) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("%d %s", want, what),
		Actual:   fmt.Sprintf("%d %s", got, what),
		Nodes:    describeNodes(g),
	}
}

// candidates returns the node named by a.Node, or every node of kind.
func candidates(g *plan.Graph, a Assertion, kind string) ([]plan.NodeIndex, error) {
	if a.Node == "" {
		return g.NodesOfKind(kind), nil
	}
	idx, ok := g.FindNode(a.Node)
	if !ok {
		return nil, &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("node %s", a.Node),
			Actual:   "not found in plan",
			Nodes:    describeNodes(g),
		}
	}
	if got := g.Node(idx).Operator.Kind(); got != kind {
		return nil, &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("node %s to be %s", a.Node, kind),
			Actual:   got,
			Nodes:    describeNodes(g),
		}
	}
	return []plan.NodeIndex{idx}, nil
}

// assertExtendHas checks that some Extend binds the attribute, and when a
// function is given, that it is bound to that function.
func assertExtendHas(g *plan.Graph, a Assertion) error {
	nodes, err := candidates(g, a, operator.KindExtend)
	if err != nil {
		return err
	}

	var seen []string
	for _, idx := range nodes {
		ext := g.Node(idx).Operator.(operator.Extend)
		fn, ok := ext.Pairs[a.Name]
		if !ok {
			continue
		}
		if a.Function == "" || fn.String() == a.Function {
			return nil
		}
		seen = append(seen, fmt.Sprintf("%s: %s", g.Node(idx).ID, fn))
	}

	actual := "attribute not bound"
	if len(seen) > 0 {
		actual = "bound to " + strings.Join(seen, "; ")
	}
	expected := a.Name
	if a.Function != "" {
		expected += " = " + a.Function
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: expected,
		Actual:   actual,
		Nodes:    describeNodes(g),
	}
}

func assertTemplateContains(g *plan.Graph, a Assertion) error {
	nodes, err := candidates(g, a, operator.KindSerializer)
	if err != nil {
		return err
	}
	for _, idx := range nodes {
		ser := g.Node(idx).Operator.(operator.Serializer)
		if strings.Contains(ser.Template, a.Contains) {
			return nil
		}
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("a serializer template containing %q", a.Contains),
		Actual:   "not found",
		Nodes:    describeNodes(g),
	}
}

func assertSinkPath(g *plan.Graph, a Assertion) error {
	var paths []string
	for _, idx := range g.NodesOfKind(operator.KindTarget) {
		target := g.Node(idx).Operator.(operator.Target)
		if target.Config["path"] == a.Path {
			return nil
		}
		paths = append(paths, target.Config["path"])
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("a sink writing to %s", a.Path),
		Actual:   fmt.Sprintf("sink paths %v", paths),
		Nodes:    describeNodes(g),
	}
}

func assertJoinAlias(g *plan.Graph, a Assertion) error {
	var aliases []string
	for _, idx := range g.NodesOfKind(operator.KindJoin) {
		join := g.Node(idx).Operator.(operator.Join)
		if join.Alias == a.Alias {
			return nil
		}
		aliases = append(aliases, join.Alias)
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("a join aliased %s", a.Alias),
		Actual:   fmt.Sprintf("join aliases %v", aliases),
		Nodes:    describeNodes(g),
	}
}

func assertProjectionEquals(g *plan.Graph, a Assertion) error {
	nodes, err := candidates(g, a, operator.KindProject)
	if err != nil {
		return err
	}

	want := append([]string(nil), a.Attributes...)
	sort.Strings(want)
	got := g.Node(nodes[0]).Operator.(operator.Projection).Attributes.Sorted()

	if strings.Join(want, "\x00") == strings.Join(got, "\x00") {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s projects %v", a.Node, want),
		Actual:   fmt.Sprintf("%v", got),
		Nodes:    describeNodes(g),
	}
}

// describeNodes lists "id kind" for every node, in insertion order.
func describeNodes(g *plan.Graph) []string {
	out := make([]string, g.NodeCount())
	for i, n := range g.Nodes() {
		out[i] = n.ID + " " + n.Operator.Kind()
	}
	return out
}
