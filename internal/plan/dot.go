package plan

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/multi"

	"github.com/roach88/rmlplan/internal/operator"
)

// dotNode is a plan node with a DOT label.
type dotNode struct {
	planNode
	label string
}

func (n dotNode) DOTID() string { return n.node.ID }

func (n dotNode) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{Key: "label", Value: dotQuote(n.label)}}
}

// dotLine is a plan edge labelled with its port and payload.
type dotLine struct {
	from, to dotNode
	uid      int64
	edge     PlanEdge
}

func (l dotLine) From() graph.Node { return l.from }
func (l dotLine) To() graph.Node   { return l.to }
func (l dotLine) ID() int64        { return l.uid }
func (l dotLine) ReversedLine() graph.Line {
	return dotLine{from: l.to, to: l.from, uid: l.uid, edge: l.edge}
}

func (l dotLine) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{
		Key:   "label",
		Value: dotQuote(string(l.edge.Key) + ": " + string(l.edge.Value)),
	}}
}

// dotQuote returns s as a double-quoted DOT string.
func dotQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

func (g *Graph) marshalDOT(label func(PlanNode) (string, error)) ([]byte, error) {
	dg := multi.NewDirectedGraph()
	views := make([]dotNode, len(g.nodes))
	for i, n := range g.nodes {
		l, err := label(n)
		if err != nil {
			return nil, errors.Wrapf(err, "label node %s", n.ID)
		}
		views[i] = dotNode{planNode: planNode{idx: NodeIndex(i), node: n}, label: l}
		dg.AddNode(views[i])
	}
	for i, e := range g.edges {
		dg.SetLine(dotLine{from: views[e.From], to: views[e.To], uid: int64(i), edge: e})
	}

	data, err := dot.MarshalMulti(dg, "plan", "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal DOT")
	}
	return append(data, '\n'), nil
}

// Write writes the plan as DOT with debug labels: node id and the tagged
// JSON of its operator.
func (g *Graph) Write(w io.Writer) error {
	data, err := g.marshalDOT(func(n PlanNode) (string, error) {
		js, err := operator.MarshalOperator(n.Operator)
		if err != nil {
			return "", err
		}
		return n.ID + "\n" + string(js), nil
	})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WritePretty writes the plan as DOT with human-readable labels.
func (g *Graph) WritePretty(w io.Writer) error {
	data, err := g.marshalDOT(func(n PlanNode) (string, error) {
		return n.ID + "\n" + operator.PrettyString(n.Operator), nil
	})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFile writes the debug DOT rendering to path, creating parent
// directories as needed.
func (g *Graph) WriteFile(path string) error {
	return writeFile(path, g.Write)
}

// WritePrettyFile writes the pretty DOT rendering to path.
func (g *Graph) WritePrettyFile(path string) error {
	return writeFile(path, g.WritePretty)
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Close()
}
