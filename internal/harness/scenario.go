package harness

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Scenario defines a plan conformance scenario.
// A scenario compiles one CUE mapping and either asserts on the shape of
// the resulting plan or expects compilation to fail with a given code.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Mapping is the path to the CUE mapping document.
	// Relative paths are resolved against the scenario file location.
	Mapping string `yaml:"mapping"`

	// ExpectError is an error code the mapping must raise, such as "E104"
	// or "MalformedJoin". When set, assertions are optional and ignored.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions validate the compiled plan.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one property of the compiled plan.
type Assertion struct {
	// Type specifies the assertion type:
	// - "node_count": plan has exactly Count nodes
	// - "edge_count": plan has exactly Count edges
	// - "operator_count": plan has exactly Count operators of Kind
	// - "extend_has": an Extend binds Name, optionally to Function
	// - "template_contains": a Serializer template contains Contains
	// - "sink_path": a Target writes to Path
	// - "join_alias": a Join uses Alias
	// - "projection_equals": the Projection at Node keeps exactly Attributes
	Type string `yaml:"type"`

	// Node restricts the assertion to one node id (extend_has,
	// template_contains, projection_equals).
	Node string `yaml:"node,omitempty"`

	// Kind is the operator kind (used by operator_count).
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number (node_count, edge_count, operator_count).
	Count int `yaml:"count,omitempty"`

	// Name is the extended attribute (used by extend_has).
	Name string `yaml:"name,omitempty"`

	// Function is the expected function tree in its printed form, for
	// example Literal(Reference("name")) (used by extend_has).
	Function string `yaml:"function,omitempty"`

	// Contains is the expected template fragment (used by template_contains).
	Contains string `yaml:"contains,omitempty"`

	// Path is the expected sink path (used by sink_path).
	Path string `yaml:"path,omitempty"`

	// Alias is the expected join alias (used by join_alias).
	Alias string `yaml:"alias,omitempty"`

	// Attributes are the expected projected attributes, in any order
	// (used by projection_equals).
	Attributes []string `yaml:"attributes,omitempty"`
}

// Assertion type constants.
const (
	AssertNodeCount        = "node_count"
	AssertEdgeCount        = "edge_count"
	AssertOperatorCount    = "operator_count"
	AssertExtendHas        = "extend_has"
	AssertTemplateContains = "template_contains"
	AssertSinkPath         = "sink_path"
	AssertJoinAlias        = "join_alias"
	AssertProjectionEquals = "projection_equals"
)

// LoadScenario reads and parses a scenario YAML file.
// The mapping path is resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the mapping path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML")
	}

	if scenario.Mapping != "" && !filepath.IsAbs(scenario.Mapping) && basePath != "" {
		scenario.Mapping = filepath.Join(basePath, scenario.Mapping)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, errors.Wrap(err, "invalid scenario")
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}

	if s.Description == "" {
		return errors.New("description is required")
	}

	if s.Mapping == "" {
		return errors.New("mapping is required")
	}

	if s.ExpectError == "" && len(s.Assertions) == 0 {
		return errors.New("assertions list is required unless expect_error is set")
	}

	if _, err := os.Stat(s.Mapping); os.IsNotExist(err) {
		return errors.Newf("mapping file not found: %s", s.Mapping)
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return errors.Newf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertNodeCount, AssertEdgeCount:
		if a.Count < 0 {
			return errors.Newf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertOperatorCount:
		if a.Kind == "" {
			return errors.Newf("assertions[%d]: kind is required for operator_count", index)
		}
		if a.Count < 0 {
			return errors.Newf("assertions[%d]: count must be non-negative for operator_count", index)
		}
	case AssertExtendHas:
		if a.Name == "" {
			return errors.Newf("assertions[%d]: name is required for extend_has", index)
		}
	case AssertTemplateContains:
		if a.Contains == "" {
			return errors.Newf("assertions[%d]: contains is required for template_contains", index)
		}
	case AssertSinkPath:
		if a.Path == "" {
			return errors.Newf("assertions[%d]: path is required for sink_path", index)
		}
	case AssertJoinAlias:
		if a.Alias == "" {
			return errors.Newf("assertions[%d]: alias is required for join_alias", index)
		}
	case AssertProjectionEquals:
		if a.Node == "" {
			return errors.Newf("assertions[%d]: node is required for projection_equals", index)
		}
		if len(a.Attributes) == 0 {
			return errors.Newf("assertions[%d]: attributes list is required for projection_equals", index)
		}
	default:
		return errors.Newf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
