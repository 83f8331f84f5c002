// Package harness provides a conformance testing framework for mapping
// compilation.
//
// A scenario names a CUE mapping document and states what the compiled
// plan must look like, or which error code compilation must raise. The
// harness runs the mapping through the same pipeline as the CLI: load,
// validate, translate. Every plan is then written to an in-memory catalog
// and read back, so the assertions run against the stored plan.
//
// # Scenario Format
//
//	name: person_with_classes
//	description: "Subject classes become rdf:type lines"
//	mapping: ../mappings/people.cue
//	assertions:
//	  - type: operator_count
//	    kind: Extend
//	    count: 1
//	  - type: template_contains
//	    contains: "?tm_0_sm ?tm_0_sm_type ?tm_0_sm_c0."
//
// A failing mapping is described with expect_error instead:
//
//	name: missing_parent
//	description: "Joins to unknown triples maps are rejected"
//	mapping: ../mappings/missing_parent.cue
//	expect_error: E104
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - node_count, edge_count: exact plan size
//   - operator_count: number of operators of a kind
//   - extend_has: an Extend binds an attribute, optionally to a function
//   - template_contains: a serializer template contains a fragment
//   - sink_path: a Target writes to a path
//   - join_alias: a Join uses an alias
//   - projection_equals: a Projection keeps exactly a set of attributes
//
// # Golden Files
//
// RunWithGolden snapshots the plan's canonical JSON, which is stable
// across runs, under testdata/golden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/people.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
