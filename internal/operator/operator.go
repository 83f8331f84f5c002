package operator

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"
)

// Operator is the configuration carried by one plan node.
//
// This is a sealed interface - only types in this package implement it.
// The variant set is closed: Source, Projection, Extend, Rename, Join,
// Serializer, Target.
type Operator interface {
	operatorNode() // Marker method - seals interface to this package

	// Kind returns the variant tag used in JSON, DOT labels and the catalog.
	Kind() string
}

// Operator kinds.
const (
	KindSource     = "Source"
	KindProject    = "Project"
	KindExtend     = "Extend"
	KindRename     = "Rename"
	KindJoin       = "Join"
	KindSerializer = "Serializer"
	KindTarget     = "Target"
)

// Source describes where records come from. It is only ever the root of a
// fragment.
type Source struct {
	Config             map[string]string `json:"config"`
	SourceType         IOType            `json:"source_type"`
	ReferenceIterators []string          `json:"reference_iterators"`
	DataFormat         DataFormat        `json:"data_format"`
}

func (Source) operatorNode() {}
func (Source) Kind() string  { return KindSource }

// Projection keeps only the listed attributes of each incoming row.
type Projection struct {
	Attributes AttributeSet `json:"attributes"`
}

func (Projection) operatorNode() {}
func (Projection) Kind() string  { return KindProject }

// Extend adds one attribute per pair, computed by its function tree.
type Extend struct {
	Pairs map[string]Function `json:"pairs"`
}

func (Extend) operatorNode() {}
func (Extend) Kind() string  { return KindExtend }

// UnmarshalJSON decodes the tagged function trees of every pair.
func (e *Extend) UnmarshalJSON(data []byte) error {
	var raw struct {
		Pairs map[string]json.RawMessage `json:"pairs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Pairs = make(map[string]Function, len(raw.Pairs))
	for name, fnData := range raw.Pairs {
		fn, err := UnmarshalFunction(fnData)
		if err != nil {
			return errors.Wrapf(err, "pair %q", name)
		}
		e.Pairs[name] = fn
	}
	return nil
}

// SortedNames returns the extended attribute names in byte order.
func (e Extend) SortedNames() []string {
	return sortedKeys(e.Pairs)
}

// Rename renames row attributes, from -> to.
type Rename struct {
	Pairs map[string]string `json:"pairs"`
}

func (Rename) operatorNode() {}
func (Rename) Kind() string  { return KindRename }

// JoinType selects the join semantics. Only inner joins are produced.
type JoinType string

const JoinInner JoinType = "inner"

// Join combines a child (left) and parent (right) input on equality of
// ChildAttributes[k] and ParentAttributes[k] for every k. Parent attributes
// appear on the joined row as <Alias>_<attr>. Every matching pair produces
// one output row; duplicates are kept.
type Join struct {
	Alias            string   `json:"alias"`
	ChildAttributes  []string `json:"child_attributes"`
	ParentAttributes []string `json:"parent_attributes"`
	JoinType         JoinType `json:"join_type"`
}

func (Join) operatorNode() {}
func (Join) Kind() string  { return KindJoin }

// AliasedParentAttributes returns the parent join keys as they are exposed
// on the joined row.
func (j Join) AliasedParentAttributes() []string {
	out := make([]string, len(j.ParentAttributes))
	for i, a := range j.ParentAttributes {
		out[i] = j.Alias + "_" + a
	}
	return out
}

// Serializer turns rows into text by substituting ?attribute variables in
// Template.
type Serializer struct {
	Template string            `json:"template"`
	Options  map[string]string `json:"options,omitempty"`
	Format   DataFormat        `json:"format"`
}

func (Serializer) operatorNode() {}
func (Serializer) Kind() string  { return KindSerializer }

// Target describes where serialized output goes. It is only ever a leaf.
type Target struct {
	Config     map[string]string `json:"config"`
	TargetType IOType            `json:"target_type"`
	DataFormat DataFormat        `json:"data_format"`
}

func (Target) operatorNode() {}
func (Target) Kind() string  { return KindTarget }

// operatorJSON is the tagged wire form of an operator.
type operatorJSON struct {
	Kind   string          `json:"kind"`
	Config json.RawMessage `json:"config"`
}

// MarshalOperator encodes op with its variant tag.
func MarshalOperator(op Operator) ([]byte, error) {
	if op == nil {
		return nil, errors.New("marshal operator: nil operator")
	}
	cfg, err := json.Marshal(op)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s", op.Kind())
	}
	return json.Marshal(operatorJSON{Kind: op.Kind(), Config: cfg})
}

// UnmarshalOperator decodes an operator produced by MarshalOperator.
func UnmarshalOperator(data []byte) (Operator, error) {
	var raw operatorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decode operator")
	}
	return UnmarshalConfig(raw.Kind, raw.Config)
}

// UnmarshalConfig decodes the configuration of an operator of the given kind.
func UnmarshalConfig(kind string, cfg []byte) (Operator, error) {
	var (
		op  Operator
		err error
	)
	switch kind {
	case KindSource:
		var v Source
		err = json.Unmarshal(cfg, &v)
		op = v
	case KindProject:
		var v Projection
		err = json.Unmarshal(cfg, &v)
		op = v
	case KindExtend:
		var v Extend
		err = json.Unmarshal(cfg, &v)
		op = v
	case KindRename:
		var v Rename
		err = json.Unmarshal(cfg, &v)
		op = v
	case KindJoin:
		var v Join
		err = json.Unmarshal(cfg, &v)
		op = v
	case KindSerializer:
		var v Serializer
		err = json.Unmarshal(cfg, &v)
		op = v
	case KindTarget:
		var v Target
		err = json.Unmarshal(cfg, &v)
		op = v
	default:
		return nil, errors.Newf("unknown operator kind %q", kind)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s config", kind)
	}
	return op, nil
}

// CanonicalMap converts op into a generic tagged map with no nil values,
// suitable for canonical JSON and structural comparison.
func CanonicalMap(op Operator) map[string]any {
	var cfg map[string]any
	switch o := op.(type) {
	case Source:
		cfg = map[string]any{
			"config":              stringMap(o.Config),
			"source_type":         string(o.SourceType),
			"reference_iterators": stringList(o.ReferenceIterators),
			"data_format":         string(o.DataFormat),
		}
	case Projection:
		cfg = map[string]any{"attributes": stringList(o.Attributes.Sorted())}
	case Extend:
		pairs := make(map[string]any, len(o.Pairs))
		for name, fn := range o.Pairs {
			pairs[name] = FunctionMap(fn)
		}
		cfg = map[string]any{"pairs": pairs}
	case Rename:
		cfg = map[string]any{"pairs": stringMap(o.Pairs)}
	case Join:
		cfg = map[string]any{
			"alias":             o.Alias,
			"child_attributes":  stringList(o.ChildAttributes),
			"parent_attributes": stringList(o.ParentAttributes),
			"join_type":         string(o.JoinType),
		}
	case Serializer:
		cfg = map[string]any{
			"template": o.Template,
			"options":  stringMap(o.Options),
			"format":   string(o.Format),
		}
	case Target:
		cfg = map[string]any{
			"config":      stringMap(o.Config),
			"target_type": string(o.TargetType),
			"data_format": string(o.DataFormat),
		}
	default:
		return map[string]any{"kind": fmt.Sprintf("%T", op), "config": map[string]any{}}
	}
	return map[string]any{"kind": op.Kind(), "config": cfg}
}

func stringMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func stringList(l []string) []any {
	out := make([]any, len(l))
	for i, v := range l {
		out[i] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
