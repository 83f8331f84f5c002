// Package translator compiles an rml.Document into an operator plan.
//
// Translation runs in two passes over the triples maps in declaration order.
// The first pass builds one Source -> Project fragment per triples map and
// records it by identifier. The second pass hangs output branches off those
// fragments:
//
//	Source_0 -> Projection_1 -> Extend -> Serialize -> Sink     non-join branch
//	                 |
//	                 +-> Join(left) <- Projection of the parent (right)
//	                         -> Extend -> Serialize -> Sink     one per parent-referencing object map
//
// Because every fragment exists before any branch is built, a triples map
// may join against any other regardless of declaration order, including
// itself.
//
// NAMING:
//
// Extended attributes are positional so the serializer template can refer
// to them without a second lookup. For the triples map at position i:
//
//	tm_<i>_sm            subject
//	tm_<i>_sm_type       rdf:type predicate (only with classes)
//	tm_<i>_sm_c<k>       k-th class
//	tm_<i>_p<pom>-<j>    j-th predicate map of POM pom
//	tm_<i>_o<pom>-<j>    j-th object map of POM pom
//
// A join branch aliases its parent as join_<parent position>; the parent's
// subject map is rebound to the aliased columns and becomes the object.
//
// The first error stops translation and no plan is returned.
package translator
