package translator

import (
	"fmt"
	"strings"

	"github.com/roach88/rmlplan/internal/operator"
	"github.com/roach88/rmlplan/internal/rml"
)

// RDFType is the IRI of rdf:type, used for subject classes.
const RDFType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

func prefixFor(index int) string { return fmt.Sprintf("tm_%d", index) }

func joinAlias(parentIndex int) string { return fmt.Sprintf("join_%d", parentIndex) }

func subjectAttr(prefix string) string { return prefix + "_sm" }

func typeAttr(prefix string) string { return prefix + "_sm_type" }

func classAttr(prefix string, k int) string { return fmt.Sprintf("%s_sm_c%d", prefix, k) }

func predicateAttr(prefix string, pom, idx int) string {
	return fmt.Sprintf("%s_p%d-%d", prefix, pom, idx)
}

func objectAttr(prefix string, pom, idx int) string {
	return fmt.Sprintf("%s_o%d-%d", prefix, pom, idx)
}

// fileTarget is the sink of every branch of the triples map at index.
func fileTarget(index int) operator.Target {
	return operator.Target{
		Config:     map[string]string{"path": fmt.Sprintf("%d_output.nt", index)},
		TargetType: operator.IOFile,
		DataFormat: operator.FormatNTriples,
	}
}

// termFunction builds the function tree of a term map: a value function
// chosen by term map type, wrapped by a type function chosen by term kind.
// language and datatype only apply to literals.
func termFunction(tmID string, info rml.TermMapInfo, language, datatype string) (operator.Function, error) {
	var value operator.Function
	switch info.TermMapType {
	case rml.TermConstant:
		value = operator.Constant{Value: info.TermValue}
	case rml.TermReference:
		value = operator.Reference{Value: info.TermValue}
	case rml.TermTemplate:
		value = operator.Template{Value: info.TermValue}
	default:
		return nil, newTranslationError(ErrCodeUnrecognizedTermKind, tmID,
			"term map %q has unknown term map type %q", info.Identifier, info.TermMapType)
	}

	switch info.TermType {
	case rml.KindIRI:
		return operator.Iri{Inner: operator.UriEncode{Inner: value}}, nil
	case rml.KindLiteral:
		return operator.Literal{Inner: value, Language: language, Datatype: datatype}, nil
	case rml.KindBlankNode:
		return operator.BlankNode{Inner: value}, nil
	case "":
		return nil, newTranslationError(ErrCodeMissingTermType, tmID,
			"term map %q has no term type", info.Identifier)
	default:
		return nil, newTranslationError(ErrCodeUnrecognizedTermKind, tmID,
			"term map %q has unrecognized term type %q", info.Identifier, info.TermType)
	}
}

// subjectPairs returns the subject pair, plus the rdf:type and class pairs
// when withClasses is set.
func subjectPairs(tm rml.TriplesMap, prefix string, withClasses bool) (map[string]operator.Function, error) {
	fn, err := termFunction(tm.Identifier, tm.SubjectMap.TermMapInfo, "", "")
	if err != nil {
		return nil, err
	}
	pairs := map[string]operator.Function{subjectAttr(prefix): fn}

	if withClasses && len(tm.SubjectMap.Classes) > 0 {
		pairs[typeAttr(prefix)] = operator.Iri{Inner: operator.Constant{Value: RDFType}}
		for k, cls := range tm.SubjectMap.Classes {
			pairs[classAttr(prefix, k)] = operator.Iri{Inner: operator.Constant{Value: cls}}
		}
	}
	return pairs, nil
}

func addPredicatePairs(pairs map[string]operator.Function, tmID, prefix string, pom indexedPOM) error {
	for j, pm := range pom.predicates {
		fn, err := termFunction(tmID, pm.TermMapInfo, "", "")
		if err != nil {
			return err
		}
		pairs[predicateAttr(prefix, pom.idx, j)] = fn
	}
	return nil
}

// plainExtendPairs covers the subject, its classes, and every predicate and
// object map of the plain POMs.
func plainExtendPairs(tm rml.TriplesMap, prefix string, poms []indexedPOM) (map[string]operator.Function, error) {
	pairs, err := subjectPairs(tm, prefix, true)
	if err != nil {
		return nil, err
	}

	for _, pom := range poms {
		if err := addPredicatePairs(pairs, tm.Identifier, prefix, pom); err != nil {
			return nil, err
		}
		for _, o := range pom.objects {
			fn, err := termFunction(tm.Identifier, o.om.TermMapInfo, o.om.Language, o.om.Datatype)
			if err != nil {
				return nil, err
			}
			pairs[objectAttr(prefix, pom.idx, o.idx)] = fn
		}
	}
	return pairs, nil
}

// joinExtendPairs covers the subject, the predicates of the POM, and the
// parent's subject rebound to the join alias as the object. It returns the
// pairs and the object attribute name.
func joinExtendPairs(tm rml.TriplesMap, prefix string, pom indexedPOM, o indexedObject,
	parent rml.TriplesMap, alias string) (map[string]operator.Function, string, error) {
	pairs, err := subjectPairs(tm, prefix, false)
	if err != nil {
		return nil, "", err
	}
	if err := addPredicatePairs(pairs, tm.Identifier, prefix, pom); err != nil {
		return nil, "", err
	}

	parentSubject := parent.SubjectMap.TermMapInfo.PrefixAttributes(alias)
	fn, err := termFunction(parent.Identifier, parentSubject, "", "")
	if err != nil {
		return nil, "", err
	}

	attr := objectAttr(prefix, pom.idx, o.idx)
	pairs[attr] = fn
	return pairs, attr, nil
}

// patternLines emits " ?s ?p ?o.\n" for every predicate of a POM crossed
// with the given object attributes.
func patternLines(prefix string, pomIdx, predicates int, objects []string) string {
	var b strings.Builder
	for j := 0; j < predicates; j++ {
		for _, o := range objects {
			fmt.Fprintf(&b, " ?%s ?%s ?%s.\n", subjectAttr(prefix), predicateAttr(prefix, pomIdx, j), o)
		}
	}
	return b.String()
}

// serializerTemplate emits the pattern lines of every plain POM in order.
func serializerTemplate(prefix string, poms []indexedPOM) string {
	var b strings.Builder
	for _, pom := range poms {
		objects := make([]string, len(pom.objects))
		for i, o := range pom.objects {
			objects[i] = objectAttr(prefix, pom.idx, o.idx)
		}
		b.WriteString(patternLines(prefix, pom.idx, len(pom.predicates), objects))
	}
	return b.String()
}

// classLines emits one rdf:type line per subject class.
func classLines(prefix string, classes int) string {
	var b strings.Builder
	for k := 0; k < classes; k++ {
		fmt.Fprintf(&b, " ?%s ?%s ?%s.\n", subjectAttr(prefix), typeAttr(prefix), classAttr(prefix, k))
	}
	return b.String()
}
