// Package plan builds operator plans: directed acyclic graphs whose nodes
// carry an operator.Operator and whose edges carry data between operators.
//
// The builder is type-state. Each stage is its own Go type and exposes only
// the transitions that are legal from it, so a plan cannot be serialized
// twice or grown after it was sunk:
//
//	Init ──Source──▶ Processed ──Apply──▶ Processed
//	                    │  └──Join(other).Alias(a).WhereBy(child).ComparedTo(parent)──▶ Processed
//	                    └──Serialize──▶ Serialized ──Sink──▶ Sunk
//
// All handles derived from one New() share a single arena (*Graph): a flat
// list of nodes and edges addressed by NodeIndex. Handles are small values
// holding the arena pointer and their frontier node, so a Processed handle
// can be reused to start several branches from the same fragment.
//
// NODE IDS:
//
// Node ids are <prefix>_<n> where n is the node count at insertion:
// Source_0, Projection_1, Extend_2, Join_5, Serialize_3, Sink_4.
//
// EDGES:
//
// Every edge records its input port (input, left, right) and what flows over
// it (MappingTuple rows, or SerializedFormat text between serializer and
// sink). Join nodes have exactly two incoming edges: left from the child,
// right from the parent.
//
// A plan is never executed here; Write/WritePretty export DOT for
// inspection and Fingerprint/CanonicalJSON give it a stable identity.
package plan
