package operator

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
)

// Function is a node of a function tree: a recipe for computing one RDF term
// from a row.
//
// This is a sealed interface - only types in this package implement it.
//
// Function types:
//   - Constant, Reference, Template: value functions (leaves)
//   - UriEncode, Iri, Literal, BlankNode: type functions wrapping an inner function
type Function interface {
	functionNode() // Marker method - seals interface to this package

	// String renders the tree as a nested call expression,
	// e.g. Iri(UriEncode(Template("http://ex.org/{id}"))).
	String() string
}

// Constant yields a fixed string.
type Constant struct {
	Value string
}

func (Constant) functionNode() {}

func (f Constant) String() string { return fmt.Sprintf("Constant(%q)", f.Value) }

// Reference yields the value of a row attribute.
type Reference struct {
	Value string
}

func (Reference) functionNode() {}

func (f Reference) String() string { return fmt.Sprintf("Reference(%q)", f.Value) }

// Template yields a string with {attribute} placeholders filled from the row.
type Template struct {
	Value string
}

func (Template) functionNode() {}

func (f Template) String() string { return fmt.Sprintf("Template(%q)", f.Value) }

// UriEncode percent-encodes the inner value for use inside an IRI.
type UriEncode struct {
	Inner Function
}

func (UriEncode) functionNode() {}

func (f UriEncode) String() string { return "UriEncode(" + innerString(f.Inner) + ")" }

// Iri types the inner value as an IRI.
type Iri struct {
	Inner Function
}

func (Iri) functionNode() {}

func (f Iri) String() string { return "Iri(" + innerString(f.Inner) + ")" }

// Literal types the inner value as an RDF literal, optionally tagged with a
// datatype IRI or a language.
type Literal struct {
	Inner    Function
	Datatype string
	Language string
}

func (Literal) functionNode() {}

func (f Literal) String() string {
	s := "Literal(" + innerString(f.Inner)
	if f.Datatype != "" {
		s += fmt.Sprintf(", datatype=%q", f.Datatype)
	}
	if f.Language != "" {
		s += fmt.Sprintf(", language=%q", f.Language)
	}
	return s + ")"
}

// BlankNode types the inner value as a blank node label.
type BlankNode struct {
	Inner Function
}

func (BlankNode) functionNode() {}

func (f BlankNode) String() string { return "BlankNode(" + innerString(f.Inner) + ")" }

func innerString(f Function) string {
	if f == nil {
		return "<nil>"
	}
	return f.String()
}

// Function type tags used in the JSON encoding.
const (
	FuncConstant  = "Constant"
	FuncReference = "Reference"
	FuncTemplate  = "Template"
	FuncUriEncode = "UriEncode"
	FuncIri       = "Iri"
	FuncLiteral   = "Literal"
	FuncBlankNode = "BlankNode"
)

// functionJSON is the tagged wire form shared by every variant.
type functionJSON struct {
	Type     string          `json:"type"`
	Value    string          `json:"value,omitempty"`
	Inner    json.RawMessage `json:"inner_function,omitempty"`
	Datatype string          `json:"datatype,omitempty"`
	Language string          `json:"language,omitempty"`
}

// FunctionMap converts a function tree into a generic map suitable for
// canonical JSON. Empty optional fields are omitted.
func FunctionMap(f Function) map[string]any {
	switch fn := f.(type) {
	case Constant:
		return map[string]any{"type": FuncConstant, "value": fn.Value}
	case Reference:
		return map[string]any{"type": FuncReference, "value": fn.Value}
	case Template:
		return map[string]any{"type": FuncTemplate, "value": fn.Value}
	case UriEncode:
		return wrapperMap(FuncUriEncode, fn.Inner)
	case Iri:
		return wrapperMap(FuncIri, fn.Inner)
	case BlankNode:
		return wrapperMap(FuncBlankNode, fn.Inner)
	case Literal:
		m := wrapperMap(FuncLiteral, fn.Inner)
		if fn.Datatype != "" {
			m["datatype"] = fn.Datatype
		}
		if fn.Language != "" {
			m["language"] = fn.Language
		}
		return m
	default:
		return map[string]any{"type": fmt.Sprintf("%T", f)}
	}
}

func wrapperMap(tag string, inner Function) map[string]any {
	m := map[string]any{"type": tag}
	if inner != nil {
		m["inner_function"] = FunctionMap(inner)
	}
	return m
}

func (f Constant) MarshalJSON() ([]byte, error)  { return json.Marshal(FunctionMap(f)) }
func (f Reference) MarshalJSON() ([]byte, error) { return json.Marshal(FunctionMap(f)) }
func (f Template) MarshalJSON() ([]byte, error)  { return json.Marshal(FunctionMap(f)) }
func (f UriEncode) MarshalJSON() ([]byte, error) { return json.Marshal(FunctionMap(f)) }
func (f Iri) MarshalJSON() ([]byte, error)       { return json.Marshal(FunctionMap(f)) }
func (f Literal) MarshalJSON() ([]byte, error)   { return json.Marshal(FunctionMap(f)) }
func (f BlankNode) MarshalJSON() ([]byte, error) { return json.Marshal(FunctionMap(f)) }

// UnmarshalFunction decodes a tagged function tree.
func UnmarshalFunction(data []byte) (Function, error) {
	var raw functionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decode function")
	}

	switch raw.Type {
	case FuncConstant:
		return Constant{Value: raw.Value}, nil
	case FuncReference:
		return Reference{Value: raw.Value}, nil
	case FuncTemplate:
		return Template{Value: raw.Value}, nil
	}

	if len(raw.Inner) == 0 {
		return nil, errors.Newf("function %q: missing inner_function", raw.Type)
	}
	inner, err := UnmarshalFunction(raw.Inner)
	if err != nil {
		return nil, errors.Wrapf(err, "function %q", raw.Type)
	}

	switch raw.Type {
	case FuncUriEncode:
		return UriEncode{Inner: inner}, nil
	case FuncIri:
		return Iri{Inner: inner}, nil
	case FuncLiteral:
		return Literal{Inner: inner, Datatype: raw.Datatype, Language: raw.Language}, nil
	case FuncBlankNode:
		return BlankNode{Inner: inner}, nil
	default:
		return nil, errors.Newf("unknown function type %q", raw.Type)
	}
}
