// Package operator defines the configuration vocabulary of an operator plan:
// the closed set of operators a plan node can carry and the function trees
// that describe how extended attributes are computed.
//
// Both Operator and Function are sealed interfaces using the marker method
// pattern. Only types in this package implement them, so consumers (the plan
// builder, the catalog, the SQL lowering) can switch exhaustively:
//
//	switch op := node.Operator.(type) {
//	case operator.Source:
//	case operator.Projection:
//	case operator.Extend:
//	case operator.Rename:
//	case operator.Join:
//	case operator.Serializer:
//	case operator.Target:
//	}
//
// OPERATORS:
//
//	Source      where records come from (config, IO type, iterators, format)
//	Projection  attribute set kept from the incoming rows
//	Extend      attribute -> Function pairs computed per row
//	Rename      from -> to attribute renames
//	Join        inner equi-join of two inputs, parent side aliased
//	Serializer  triple pattern template and output format
//	Target      where serialized output goes
//
// FUNCTION TREES:
//
// A function tree is a value function wrapped by a type function:
//
//	Iri(UriEncode(Template("http://ex.org/{id}")))
//	Literal(Reference("name"))
//	BlankNode(Constant("b0"))
//
// The plan only describes these trees; evaluating them is the execution
// engine's job.
//
// Every operator and function has a tagged JSON form so plans can be stored
// and reloaded without losing the variant:
//
//	{"kind":"Project","config":{"attributes":["id","name"]}}
//	{"type":"Iri","inner_function":{"type":"UriEncode","inner_function":{"type":"Template","value":"{id}"}}}
package operator
