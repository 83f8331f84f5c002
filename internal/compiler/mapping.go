package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/rmlplan/internal/operator"
	"github.com/roach88/rmlplan/internal/rml"
)

// Term map identifiers assigned by the loader. They are positional so that
// prefixed parent attributes read like join_0_sm.
const (
	subjectMapID = "sm"
	graphMapID   = "gm"
)

// CompileDocument parses a CUE value holding a `mapping` struct into a
// Document. Triples maps keep their declaration order.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`mapping: Person: { ... }`)
//	doc, err := CompileDocument(v)
func CompileDocument(v cue.Value) (*rml.Document, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	// Err only reports errors on v itself; conflicts nested in the
	// mapping surface through Validate.
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	mappingVal := v.LookupPath(cue.ParsePath("mapping"))
	if !mappingVal.Exists() {
		return nil, &CompileError{
			Field:   "mapping",
			Message: "mapping is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := mappingVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	doc := &rml.Document{}
	for iter.Next() {
		tm, err := compileTriplesMap(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		doc.TriplesMaps = append(doc.TriplesMaps, tm)
	}
	return doc, nil
}

// CompileTriplesMap parses a single triples map value. The identifier is
// taken from the value's last path label.
func CompileTriplesMap(v cue.Value) (rml.TriplesMap, error) {
	if err := v.Err(); err != nil {
		return rml.TriplesMap{}, formatCUEError(err)
	}
	var id string
	if sels := v.Path().Selectors(); len(sels) > 0 {
		last := sels[len(sels)-1]
		if last.LabelType() == cue.StringLabel {
			id = last.Unquoted()
		} else {
			id = last.String()
		}
	}
	return compileTriplesMap(id, v)
}

func compileTriplesMap(id string, v cue.Value) (rml.TriplesMap, error) {
	tm := rml.TriplesMap{Identifier: id}

	sourceVal := v.LookupPath(cue.ParsePath("source"))
	if !sourceVal.Exists() {
		return tm, &CompileError{
			Field:   fieldPath(id, "source"),
			Message: "source is required",
			Pos:     v.Pos(),
		}
	}
	ls, err := parseLogicalSource(id, sourceVal)
	if err != nil {
		return tm, err
	}
	tm.LogicalSource = ls

	subjectVal := v.LookupPath(cue.ParsePath("subject"))
	if !subjectVal.Exists() {
		return tm, &CompileError{
			Field:   fieldPath(id, "subject"),
			Message: "subject is required",
			Pos:     v.Pos(),
		}
	}
	sm, err := parseSubjectMap(id, subjectVal)
	if err != nil {
		return tm, err
	}
	tm.SubjectMap = sm

	if graphVal := v.LookupPath(cue.ParsePath("graph")); graphVal.Exists() {
		info, err := parseTermMap(fieldPath(id, "graph"), graphMapID, graphVal)
		if err != nil {
			return tm, err
		}
		if info.TermType == "" {
			info.TermType = rml.KindIRI
		}
		tm.GraphMap = &rml.GraphMap{TermMapInfo: info}
	}

	tm.POMs, err = parsePOMs(id, v)
	if err != nil {
		return tm, err
	}
	return tm, nil
}

// parseLogicalSource reads a source block. Type defaults to file and
// formulation to csv. Every string field except type, formulation and
// iterator ends up in the source configuration, along with the entries of
// an optional config struct. An optional rename struct exposes iterator
// fields under another name.
func parseLogicalSource(id string, v cue.Value) (rml.LogicalSource, error) {
	field := fieldPath(id, "source")
	ls := rml.LogicalSource{
		Identifier:           id + "_source",
		Config:               make(map[string]string),
		SourceType:           operator.IOFile,
		ReferenceFormulation: rml.FormulationCSV,
	}

	iter, err := v.Fields()
	if err != nil {
		return ls, formatCUEError(err)
	}
	for iter.Next() {
		label := iter.Selector().Unquoted()
		val := iter.Value()
		if label == "config" {
			if err := parseStringMap(field+".config", val, ls.Config); err != nil {
				return ls, err
			}
			continue
		}
		if label == "rename" {
			if ls.Rename, err = parseFieldRename(field+".rename", val); err != nil {
				return ls, err
			}
			continue
		}

		s, err := val.String()
		if err != nil {
			return ls, &CompileError{
				Field:   field + "." + label,
				Message: "must be a string",
				Pos:     val.Pos(),
			}
		}
		switch label {
		case "type":
			ls.SourceType = operator.IOType(s)
		case "formulation":
			ls.ReferenceFormulation = rml.ReferenceFormulation(s)
		case "iterator":
			ls.Iterator = s
		default:
			ls.Config[label] = s
		}
	}

	if !operator.ValidIOTypes[ls.SourceType] {
		return ls, &CompileError{
			Field:   field + ".type",
			Message: fmt.Sprintf("unknown source type %q", ls.SourceType),
			Pos:     v.LookupPath(cue.ParsePath("type")).Pos(),
		}
	}
	switch ls.ReferenceFormulation {
	case rml.FormulationCSV, rml.FormulationJSONPath, rml.FormulationXPath, rml.FormulationSQL:
	default:
		return ls, &CompileError{
			Field:   field + ".formulation",
			Message: fmt.Sprintf("unknown reference formulation %q", ls.ReferenceFormulation),
			Pos:     v.LookupPath(cue.ParsePath("formulation")).Pos(),
		}
	}
	return ls, nil
}

// parseFieldRename reads {iterator, expression, fields}; all three are
// required.
func parseFieldRename(field string, v cue.Value) (*rml.FieldRename, error) {
	iterator, err := requiredString(field+".iterator", v, "iterator")
	if err != nil {
		return nil, err
	}
	expression, err := requiredString(field+".expression", v, "expression")
	if err != nil {
		return nil, err
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{Field: field + ".fields", Message: "fields is required", Pos: v.Pos()}
	}
	fields, err := parseStringList(field+".fields", fieldsVal)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, &CompileError{Field: field + ".fields", Message: "fields must not be empty", Pos: fieldsVal.Pos()}
	}
	return &rml.FieldRename{Iterator: iterator, Expression: expression, Fields: fields}, nil
}

func parseSubjectMap(id string, v cue.Value) (rml.SubjectMap, error) {
	field := fieldPath(id, "subject")
	info, err := parseTermMap(field, subjectMapID, v)
	if err != nil {
		return rml.SubjectMap{}, err
	}
	if info.TermType == "" {
		info.TermType = rml.KindIRI
	}

	sm := rml.SubjectMap{TermMapInfo: info}
	if classesVal := v.LookupPath(cue.ParsePath("classes")); classesVal.Exists() {
		sm.Classes, err = parseStringList(field+".classes", classesVal)
		if err != nil {
			return sm, err
		}
	}
	return sm, nil
}

func parsePOMs(id string, v cue.Value) ([]rml.PredicateObjectMap, error) {
	pomsVal := v.LookupPath(cue.ParsePath("predicate_object"))
	if !pomsVal.Exists() {
		return nil, nil
	}

	list, err := pomsVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   fieldPath(id, "predicate_object"),
			Message: "must be a list",
			Pos:     pomsVal.Pos(),
		}
	}

	var poms []rml.PredicateObjectMap
	for i := 0; list.Next(); i++ {
		pom, err := parsePOM(id, i, list.Value())
		if err != nil {
			return nil, err
		}
		poms = append(poms, pom)
	}
	return poms, nil
}

func parsePOM(id string, i int, v cue.Value) (rml.PredicateObjectMap, error) {
	field := fmt.Sprintf("%s[%d]", fieldPath(id, "predicate_object"), i)
	var pom rml.PredicateObjectMap

	if predsVal := v.LookupPath(cue.ParsePath("predicates")); predsVal.Exists() {
		list, err := predsVal.List()
		if err != nil {
			return pom, &CompileError{Field: field + ".predicates", Message: "must be a list", Pos: predsVal.Pos()}
		}
		for j := 0; list.Next(); j++ {
			pmField := fmt.Sprintf("%s.predicates[%d]", field, j)
			info, err := parsePredicate(pmField, fmt.Sprintf("pm%d-%d", i, j), list.Value())
			if err != nil {
				return pom, err
			}
			pom.PredicateMaps = append(pom.PredicateMaps, rml.PredicateMap{TermMapInfo: info})
		}
	}

	if objsVal := v.LookupPath(cue.ParsePath("objects")); objsVal.Exists() {
		list, err := objsVal.List()
		if err != nil {
			return pom, &CompileError{Field: field + ".objects", Message: "must be a list", Pos: objsVal.Pos()}
		}
		for j := 0; list.Next(); j++ {
			omField := fmt.Sprintf("%s.objects[%d]", field, j)
			om, err := parseObjectMap(omField, fmt.Sprintf("om%d-%d", i, j), list.Value())
			if err != nil {
				return pom, err
			}
			pom.ObjectMaps = append(pom.ObjectMaps, om)
		}
	}
	return pom, nil
}

// parsePredicate accepts either a term map struct or a bare string, which
// is shorthand for a constant IRI.
func parsePredicate(field, tmID string, v cue.Value) (rml.TermMapInfo, error) {
	if v.Kind() == cue.StringKind {
		s, err := v.String()
		if err != nil {
			return rml.TermMapInfo{}, formatCUEError(err)
		}
		return rml.TermMapInfo{
			Identifier:  tmID,
			TermMapType: rml.TermConstant,
			TermValue:   s,
			TermType:    rml.KindIRI,
		}, nil
	}

	info, err := parseTermMap(field, tmID, v)
	if err != nil {
		return info, err
	}
	if info.TermType == "" {
		info.TermType = rml.KindIRI
	}
	return info, nil
}

// parseObjectMap reads either a term map or a parent reference. Without an
// explicit term_type an object is a literal when it is a reference or has a
// language or datatype, and an IRI otherwise.
func parseObjectMap(field, tmID string, v cue.Value) (rml.ObjectMap, error) {
	om := rml.ObjectMap{}

	parentVal := v.LookupPath(cue.ParsePath("parent"))
	joinVal := v.LookupPath(cue.ParsePath("join"))
	if parentVal.Exists() || joinVal.Exists() {
		om.TermMapInfo = rml.TermMapInfo{Identifier: tmID, TermType: rml.KindIRI}
		if parentVal.Exists() {
			parent, err := parentVal.String()
			if err != nil {
				return om, &CompileError{Field: field + ".parent", Message: "must be a string", Pos: parentVal.Pos()}
			}
			om.ParentTriplesMap = parent
		}
		if joinVal.Exists() {
			jc, err := parseJoinCondition(field+".join", joinVal)
			if err != nil {
				return om, err
			}
			om.JoinCondition = jc
		}
		return om, nil
	}

	if v.Kind() == cue.StringKind {
		s, err := v.String()
		if err != nil {
			return om, formatCUEError(err)
		}
		om.TermMapInfo = rml.TermMapInfo{
			Identifier:  tmID,
			TermMapType: rml.TermConstant,
			TermValue:   s,
			TermType:    rml.KindLiteral,
		}
		return om, nil
	}

	info, err := parseTermMap(field, tmID, v)
	if err != nil {
		return om, err
	}
	om.TermMapInfo = info

	if om.Language, err = optionalString(field+".language", v, "language"); err != nil {
		return om, err
	}
	if om.Datatype, err = optionalString(field+".datatype", v, "datatype"); err != nil {
		return om, err
	}

	if om.TermType == "" {
		if om.TermMapType == rml.TermReference || om.Language != "" || om.Datatype != "" {
			om.TermType = rml.KindLiteral
		} else {
			om.TermType = rml.KindIRI
		}
	}
	return om, nil
}

// parseJoinCondition reads a list of {child, parent} pairs.
func parseJoinCondition(field string, v cue.Value) (*rml.JoinCondition, error) {
	list, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of {child, parent}", Pos: v.Pos()}
	}

	jc := &rml.JoinCondition{}
	for i := 0; list.Next(); i++ {
		pairField := fmt.Sprintf("%s[%d]", field, i)
		pair := list.Value()

		child, err := requiredString(pairField+".child", pair, "child")
		if err != nil {
			return nil, err
		}
		parent, err := requiredString(pairField+".parent", pair, "parent")
		if err != nil {
			return nil, err
		}
		jc.ChildAttributes = append(jc.ChildAttributes, child)
		jc.ParentAttributes = append(jc.ParentAttributes, parent)
	}
	return jc, nil
}

// parseTermMap reads the shared part of a term map: exactly one of
// constant, reference or template, and an optional term_type.
func parseTermMap(field, tmID string, v cue.Value) (rml.TermMapInfo, error) {
	info := rml.TermMapInfo{Identifier: tmID}

	var found []rml.TermMapType
	for _, tt := range []rml.TermMapType{rml.TermConstant, rml.TermReference, rml.TermTemplate} {
		val := v.LookupPath(cue.ParsePath(string(tt)))
		if !val.Exists() {
			continue
		}
		s, err := val.String()
		if err != nil {
			return info, &CompileError{
				Field:   field + "." + string(tt),
				Message: "must be a string",
				Pos:     val.Pos(),
			}
		}
		found = append(found, tt)
		info.TermMapType = tt
		info.TermValue = s
	}

	switch len(found) {
	case 0:
		return info, &CompileError{
			Field:   field,
			Message: "one of constant, reference or template is required",
			Pos:     v.Pos(),
		}
	case 1:
	default:
		return info, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("only one of constant, reference or template is allowed, got %v", found),
			Pos:     v.Pos(),
		}
	}

	termType, err := optionalString(field+".term_type", v, "term_type")
	if err != nil {
		return info, err
	}
	info.TermType = rml.TermKind(termType)
	return info, nil
}

func parseStringList(field string, v cue.Value) ([]string, error) {
	list, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of strings", Pos: v.Pos()}
	}
	var out []string
	for i := 0; list.Next(); i++ {
		s, err := list.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: "must be a string",
				Pos:     list.Value().Pos(),
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func parseStringMap(field string, v cue.Value, into map[string]string) error {
	iter, err := v.Fields()
	if err != nil {
		return &CompileError{Field: field, Message: "must be a struct of strings", Pos: v.Pos()}
	}
	for iter.Next() {
		label := iter.Selector().Unquoted()
		s, err := iter.Value().String()
		if err != nil {
			return &CompileError{Field: field + "." + label, Message: "must be a string", Pos: iter.Value().Pos()}
		}
		into[label] = s
	}
	return nil
}

func optionalString(field string, v cue.Value, name string) (string, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return "", nil
	}
	s, err := val.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: "must be a string", Pos: val.Pos()}
	}
	return s, nil
}

func requiredString(field string, v cue.Value, name string) (string, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return "", &CompileError{Field: field, Message: name + " is required", Pos: v.Pos()}
	}
	s, err := val.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: "must be a string", Pos: val.Pos()}
	}
	return s, nil
}

func fieldPath(id, name string) string {
	return "mapping." + id + "." + name
}

// CompileError is a mapping document that could not be read, with the CUE
// position of the offending value when known.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError converts the first CUE error into a CompileError carrying
// its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
