package querysql

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/rmlplan/internal/operator"
	"github.com/roach88/rmlplan/internal/plan"
)

// ErrNotRelational is returned for plan fragments that do not read from a
// relational source or that use operators SQL cannot express.
var ErrNotRelational = errors.New("fragment is not relational")

// Statement is the SQL lowered from one plan node.
type Statement struct {
	Node string `json:"node"`
	SQL  string `json:"sql"`
}

// SQLCompiler lowers the relational prefix of a plan to SQL for SQLite.
//
// CRITICAL: ALL queries include ORDER BY for deterministic results.
// Plans carry no values, so the SQL is parameter-free; identifiers are
// always quoted.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// column is one output column of a relation.
type column struct {
	expr string // qualified source expression
	name string // output name
}

// relation is the lowered form of a plan node. base is set for a
// projection read straight from a source; joins need it to alias the
// parent side.
type relation struct {
	from    string
	columns []column
	base    *baseTable
}

// baseTable is a relational source: a table or a query.
type baseTable struct {
	table string
	query string
}

func (b baseTable) name(fallback string) string {
	if b.table != "" {
		return b.table
	}
	return fallback
}

// fromAs renders the source under the given alias.
func (b baseTable) fromAs(alias string) string {
	if b.table != "" {
		if b.table == alias {
			return quoteIdent(b.table)
		}
		return quoteIdent(b.table) + " AS " + quoteIdent(alias)
	}
	return "(" + b.query + ") AS " + quoteIdent(alias)
}

// Compile lowers the node at idx. The node must be a Projection over an
// rdb source, a Join of such fragments, or a Rename of either.
//
// MANDATORY: Every query includes ORDER BY over all output columns.
func (c *SQLCompiler) Compile(g *plan.Graph, idx plan.NodeIndex) (string, error) {
	if g == nil {
		return "", errors.New("cannot compile nil plan")
	}
	if idx < 0 || int(idx) >= g.NodeCount() {
		return "", errors.Newf("node index %d out of range", idx)
	}

	rel, err := c.lower(g, idx)
	if err != nil {
		return "", err
	}
	return render(rel), nil
}

// CompileFrom lowers every Projection, Rename and Join reachable from the
// given Source through input and left edges, in topological order. The
// walk stops at operators SQL cannot express and skips joins with a
// non-relational parent.
func (c *SQLCompiler) CompileFrom(g *plan.Graph, source plan.NodeIndex) ([]Statement, error) {
	if g == nil {
		return nil, errors.New("cannot compile nil plan")
	}
	if _, err := c.sourceTable(g, source); err != nil {
		return nil, err
	}

	reach := map[plan.NodeIndex]bool{source: true}
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	var stmts []Statement
	for _, idx := range order {
		if idx == source {
			continue
		}
		reached := false
		for _, e := range g.InEdges(idx) {
			if reach[e.From] && e.Key != plan.EdgeRight {
				reached = true
				break
			}
		}
		if !reached {
			continue
		}

		switch g.Node(idx).Operator.(type) {
		case operator.Projection, operator.Rename, operator.Join:
		default:
			continue
		}

		sql, err := c.Compile(g, idx)
		if errors.Is(err, ErrNotRelational) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "node %s", g.Node(idx).ID)
		}
		reach[idx] = true
		stmts = append(stmts, Statement{Node: g.Node(idx).ID, SQL: sql})
	}
	return stmts, nil
}

func (c *SQLCompiler) lower(g *plan.Graph, idx plan.NodeIndex) (relation, error) {
	node := g.Node(idx)
	switch op := node.Operator.(type) {
	case operator.Projection:
		return c.lowerProjection(g, idx, op)
	case operator.Join:
		return c.lowerJoin(g, idx, op)
	case operator.Rename:
		return c.lowerRename(g, idx, op)
	case operator.Source:
		return relation{}, errors.Wrapf(ErrNotRelational, "%s: a source must be projected before it can be selected", node.ID)
	default:
		return relation{}, errors.Wrapf(ErrNotRelational, "%s: %s has no SQL form", node.ID, node.Operator.Kind())
	}
}

func (c *SQLCompiler) lowerProjection(g *plan.Graph, idx plan.NodeIndex, op operator.Projection) (relation, error) {
	input, err := singleInput(g, idx, plan.EdgeInput)
	if err != nil {
		return relation{}, err
	}

	base, err := c.sourceTable(g, input)
	if err != nil {
		return relation{}, err
	}
	alias := base.name(fmt.Sprintf("src_%d", input))

	attrs := op.Attributes.Sorted()
	if len(attrs) == 0 {
		return relation{}, errors.Wrapf(ErrNotRelational, "%s: projection selects no attributes", g.Node(idx).ID)
	}

	cols := make([]column, len(attrs))
	for i, a := range attrs {
		cols[i] = column{expr: quoteIdent(alias) + "." + quoteIdent(a), name: a}
	}
	return relation{from: base.fromAs(alias), columns: cols, base: &base}, nil
}

// lowerJoin renders child INNER JOIN parent. The parent side must be a
// projection of a source; it is aliased with the join alias and its columns
// are exposed as <alias>_<attribute>.
func (c *SQLCompiler) lowerJoin(g *plan.Graph, idx plan.NodeIndex, op operator.Join) (relation, error) {
	if op.JoinType != "" && op.JoinType != operator.JoinInner {
		return relation{}, errors.Wrapf(ErrNotRelational, "%s: unsupported join type %q", g.Node(idx).ID, op.JoinType)
	}

	leftIdx, err := singleInput(g, idx, plan.EdgeLeft)
	if err != nil {
		return relation{}, err
	}
	rightIdx, err := singleInput(g, idx, plan.EdgeRight)
	if err != nil {
		return relation{}, err
	}

	left, err := c.lower(g, leftIdx)
	if err != nil {
		return relation{}, err
	}
	right, err := c.lower(g, rightIdx)
	if err != nil {
		return relation{}, err
	}
	if right.base == nil {
		return relation{}, errors.Wrapf(ErrNotRelational, "%s: parent side must be a projected source", g.Node(idx).ID)
	}

	leftCols := make(map[string]string, len(left.columns))
	for _, col := range left.columns {
		leftCols[col.name] = col.expr
	}

	conds := make([]string, len(op.ChildAttributes))
	for i, child := range op.ChildAttributes {
		expr, ok := leftCols[child]
		if !ok {
			return relation{}, errors.Wrapf(ErrNotRelational, "%s: child attribute %q is not projected", g.Node(idx).ID, child)
		}
		conds[i] = expr + " = " + quoteIdent(op.Alias) + "." + quoteIdent(op.ParentAttributes[i])
	}

	cols := append([]column(nil), left.columns...)
	for _, col := range right.columns {
		cols = append(cols, column{
			expr: quoteIdent(op.Alias) + "." + quoteIdent(col.name),
			name: op.Alias + "_" + col.name,
		})
	}

	from := left.from + " INNER JOIN " + right.base.fromAs(op.Alias) + " ON " + strings.Join(conds, " AND ")
	return relation{from: from, columns: cols}, nil
}

// lowerRename renames output columns. Pairs naming columns that do not
// exist are ignored. A renamed relation cannot be the parent of a join.
func (c *SQLCompiler) lowerRename(g *plan.Graph, idx plan.NodeIndex, op operator.Rename) (relation, error) {
	input, err := singleInput(g, idx, plan.EdgeInput)
	if err != nil {
		return relation{}, err
	}
	rel, err := c.lower(g, input)
	if err != nil {
		return relation{}, err
	}

	cols := make([]column, len(rel.columns))
	for i, col := range rel.columns {
		if to, ok := op.Pairs[col.name]; ok {
			col.name = to
		}
		cols[i] = col
	}
	return relation{from: rel.from, columns: cols}, nil
}

// sourceTable returns the table or query of an rdb source node.
func (c *SQLCompiler) sourceTable(g *plan.Graph, idx plan.NodeIndex) (baseTable, error) {
	node := g.Node(idx)
	src, ok := node.Operator.(operator.Source)
	if !ok {
		return baseTable{}, errors.Wrapf(ErrNotRelational, "%s: expected a Source, got %s", node.ID, node.Operator.Kind())
	}
	if src.SourceType != operator.IORDB {
		return baseTable{}, errors.Wrapf(ErrNotRelational, "%s: source type %q is not rdb", node.ID, src.SourceType)
	}

	base := baseTable{table: src.Config["table"], query: strings.TrimSpace(src.Config["query"])}
	if base.table == "" && base.query == "" {
		return baseTable{}, errors.Newf("%s: rdb source needs a table or a query", node.ID)
	}
	return base, nil
}

func singleInput(g *plan.Graph, idx plan.NodeIndex, key plan.EdgeKey) (plan.NodeIndex, error) {
	var found []plan.NodeIndex
	for _, e := range g.InEdges(idx) {
		if e.Key == key {
			found = append(found, e.From)
		}
	}
	if len(found) != 1 {
		return -1, errors.Newf("%s: expected one %s input, found %d", g.Node(idx).ID, key, len(found))
	}
	return found[0], nil
}

// render assembles the SELECT.
// MANDATORY: ORDER BY every output column with COLLATE BINARY.
func render(rel relation) string {
	sel := make([]string, len(rel.columns))
	order := make([]string, len(rel.columns))
	for i, col := range rel.columns {
		name := quoteIdent(col.name)
		if strings.HasSuffix(col.expr, "."+name) {
			sel[i] = col.expr
		} else {
			sel[i] = col.expr + " AS " + name
		}
		order[i] = name + " COLLATE BINARY ASC"
	}

	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(sel, ", "),
		rel.from,
		strings.Join(order, ", "))
}

// quoteIdent quotes a SQL identifier, doubling embedded quotes.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
