package compiler

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"

	"github.com/roach88/rmlplan/internal/rml"
)

// Validation error codes (E100-E199)
const (
	ErrEmptyIdentifier      = "E101" // triples map identifier is empty
	ErrDuplicateIdentifier  = "E102" // two triples maps share an identifier
	ErrSubjectWithoutValue  = "E103" // subject map has no constant/reference/template
	ErrMissingParent        = "E104" // parent triples map not in the document
	ErrJoinWithoutParent    = "E105" // join condition and parent not set together
	ErrUnequalJoinKeys      = "E106" // child and parent key lists differ in length
	ErrInvalidIterator      = "E107" // JSONPath iterator does not parse
	ErrUnrecognizedTermKind = "E108" // term_type is not iri/literal/blanknode
	ErrIncompletePOM        = "E109" // POM without predicates or objects
	ErrMalformedTemplate    = "E110" // template placeholders do not balance
	ErrIncompleteRename     = "E111" // field rename without iterator, expression or fields
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateDocument checks a document against the rules translation relies
// on. Returns all errors found (does not fail-fast), in document order.
func ValidateDocument(doc *rml.Document) []ValidationError {
	if doc == nil {
		return nil
	}

	var errs []ValidationError
	seen := make(map[string]bool)
	for i, tm := range doc.TriplesMaps {
		field := fmt.Sprintf("mapping[%d]", i)
		if tm.Identifier != "" {
			field = "mapping." + tm.Identifier
		}

		// E101/E102
		if strings.TrimSpace(tm.Identifier) == "" {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "triples map identifier is required",
				Code:    ErrEmptyIdentifier,
			})
		} else if seen[tm.Identifier] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate triples map identifier %q", tm.Identifier),
				Code:    ErrDuplicateIdentifier,
			})
		}
		seen[tm.Identifier] = true

		errs = append(errs, validateTriplesMap(doc, field, tm)...)
	}
	return errs
}

func validateTriplesMap(doc *rml.Document, field string, tm rml.TriplesMap) []ValidationError {
	var errs []ValidationError

	// E107: only JSONPath iterators have a grammar we can check statically
	ls := tm.LogicalSource
	if ls.ReferenceFormulation == rml.FormulationJSONPath && ls.Iterator != "" {
		if _, err := jp.ParseString(ls.Iterator); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".source.iterator",
				Message: fmt.Sprintf("invalid JSONPath iterator %q: %v", ls.Iterator, err),
				Code:    ErrInvalidIterator,
			})
		}
	}

	// E111
	if r := ls.Rename; r != nil && (r.Iterator == "" || r.Expression == "" || len(r.Fields) == 0) {
		errs = append(errs, ValidationError{
			Field:   field + ".source.rename",
			Message: "rename needs an iterator, an expression and at least one field",
			Code:    ErrIncompleteRename,
		})
	}

	// E103
	sm := tm.SubjectMap
	if sm.TermMapType == "" || sm.TermValue == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".subject",
			Message: "subject needs a constant, reference or template value",
			Code:    ErrSubjectWithoutValue,
		})
	}
	errs = append(errs, validateTermMap(field+".subject", sm.TermMapInfo)...)

	if tm.GraphMap != nil {
		errs = append(errs, validateTermMap(field+".graph", tm.GraphMap.TermMapInfo)...)
	}

	for i, pom := range tm.POMs {
		pomField := fmt.Sprintf("%s.predicate_object[%d]", field, i)

		// E109
		if len(pom.PredicateMaps) == 0 || len(pom.ObjectMaps) == 0 {
			errs = append(errs, ValidationError{
				Field:   pomField,
				Message: "predicate_object needs at least one predicate and one object",
				Code:    ErrIncompletePOM,
			})
		}

		for j, pm := range pom.PredicateMaps {
			errs = append(errs, validateTermMap(fmt.Sprintf("%s.predicates[%d]", pomField, j), pm.TermMapInfo)...)
		}
		for j, om := range pom.ObjectMaps {
			omField := fmt.Sprintf("%s.objects[%d]", pomField, j)
			if om.HasParent() || om.JoinCondition != nil {
				errs = append(errs, validateParentRef(doc, omField, om)...)
				continue
			}
			errs = append(errs, validateTermMap(omField, om.TermMapInfo)...)
		}
	}
	return errs
}

func validateParentRef(doc *rml.Document, field string, om rml.ObjectMap) []ValidationError {
	var errs []ValidationError

	// E105
	if !om.HasParent() {
		return append(errs, ValidationError{
			Field:   field + ".join",
			Message: "join condition without a parent triples map",
			Code:    ErrJoinWithoutParent,
		})
	}
	if om.JoinCondition == nil {
		errs = append(errs, ValidationError{
			Field:   field + ".join",
			Message: fmt.Sprintf("parent %q referenced without a join condition", om.ParentTriplesMap),
			Code:    ErrJoinWithoutParent,
		})
	} else if len(om.JoinCondition.ChildAttributes) != len(om.JoinCondition.ParentAttributes) {
		// E106
		errs = append(errs, ValidationError{
			Field: field + ".join",
			Message: fmt.Sprintf("join has %d child attributes and %d parent attributes",
				len(om.JoinCondition.ChildAttributes), len(om.JoinCondition.ParentAttributes)),
			Code: ErrUnequalJoinKeys,
		})
	}

	// E104
	if _, _, ok := doc.FindTriplesMap(om.ParentTriplesMap); !ok {
		errs = append(errs, ValidationError{
			Field:   field + ".parent",
			Message: fmt.Sprintf("parent triples map %q is not defined", om.ParentTriplesMap),
			Code:    ErrMissingParent,
		})
	}
	return errs
}

// validateTermMap checks the term kind (E108) and template syntax (E110).
// An empty kind is left to the translator, which reports it as missing.
func validateTermMap(field string, info rml.TermMapInfo) []ValidationError {
	var errs []ValidationError
	if info.TermType != "" && !info.TermType.IsKnown() {
		errs = append(errs, ValidationError{
			Field:   field + ".term_type",
			Message: fmt.Sprintf("unrecognized term kind %q, must be \"iri\", \"literal\", or \"blanknode\"", info.TermType),
			Code:    ErrUnrecognizedTermKind,
		})
	}
	if info.TermMapType == rml.TermTemplate {
		if err := rml.CheckTemplate(info.TermValue); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".template",
				Message: err.Error(),
				Code:    ErrMalformedTemplate,
			})
		}
	}
	return errs
}
