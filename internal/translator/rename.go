package translator

import (
	"github.com/roach88/rmlplan/internal/operator"
	"github.com/roach88/rmlplan/internal/rml"
)

// RenamePairs builds the Rename operator that exposes an iterator's fields
// under an expression's name: <iterator>.<field> -> <expression>.<field>.
func RenamePairs(iterator, expression string, fields ...string) operator.Rename {
	pairs := make(map[string]string, len(fields))
	for _, f := range fields {
		pairs[iterator+"."+f] = expression + "." + f
	}
	return operator.Rename{Pairs: pairs}
}

// renameFor returns the Rename applied after a triples map's projection,
// if its logical source renames fields.
func renameFor(ls rml.LogicalSource) (operator.Rename, bool) {
	if ls.Rename == nil || len(ls.Rename.Fields) == 0 {
		return operator.Rename{}, false
	}
	return RenamePairs(ls.Rename.Iterator, ls.Rename.Expression, ls.Rename.Fields...), true
}
