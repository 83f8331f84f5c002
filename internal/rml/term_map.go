package rml

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/rmlplan/internal/operator"
)

// TermMapType says how a term map's value is interpreted.
type TermMapType string

const (
	TermConstant  TermMapType = "constant"
	TermReference TermMapType = "reference"
	TermTemplate  TermMapType = "template"
)

// TermKind is the kind of RDF term a term map produces. The empty kind means
// none was given; any value outside the three known kinds is unrecognized.
type TermKind string

const (
	KindIRI       TermKind = "iri"
	KindLiteral   TermKind = "literal"
	KindBlankNode TermKind = "blanknode"
)

// IsKnown reports whether k is one of the three RDF term kinds.
func (k TermKind) IsKnown() bool {
	switch k {
	case KindIRI, KindLiteral, KindBlankNode:
		return true
	}
	return false
}

// TermMapInfo is the part shared by every term map.
type TermMapInfo struct {
	Identifier  string
	TermMapType TermMapType
	TermValue   string
	TermType    TermKind
}

// Attributes returns the source attributes the term map reads: the
// placeholders of a template, the value of a reference, nothing for a
// constant.
func (tm TermMapInfo) Attributes() operator.AttributeSet {
	switch tm.TermMapType {
	case TermTemplate:
		attrs := operator.NewAttributeSet()
		for _, seg := range scanTemplate(tm.TermValue) {
			if seg.placeholder {
				attrs.Add(seg.name)
			}
		}
		return attrs
	case TermReference:
		return operator.NewAttributeSet(tm.TermValue)
	default:
		return operator.NewAttributeSet()
	}
}

// PrefixAttributes returns a copy in which every attribute the term map
// reads is renamed to <alias>_<attribute> and the identifier becomes
// <alias>_<identifier>. This is how a parent's term map is rebound to the
// aliased columns of a join. Constant values are left alone.
func (tm TermMapInfo) PrefixAttributes(alias string) TermMapInfo {
	out := tm
	out.Identifier = alias + "_" + tm.Identifier

	switch tm.TermMapType {
	case TermTemplate:
		var b strings.Builder
		for _, seg := range scanTemplate(tm.TermValue) {
			if seg.placeholder {
				b.WriteString("{" + alias + "_" + seg.raw + "}")
			} else {
				b.WriteString(seg.raw)
			}
		}
		out.TermValue = b.String()
	case TermReference:
		out.TermValue = alias + "_" + tm.TermValue
	}
	return out
}

// templateSegment is a run of literal text or one placeholder. raw is the
// text as written (escapes intact, braces stripped for placeholders); name
// is the unescaped attribute name.
type templateSegment struct {
	raw         string
	name        string
	placeholder bool
}

// scanTemplate splits a template into literal runs and placeholders.
// An unterminated placeholder is kept as literal text.
func scanTemplate(s string) []templateSegment {
	var (
		segs    []templateSegment
		literal strings.Builder
	)
	flush := func() {
		if literal.Len() > 0 {
			segs = append(segs, templateSegment{raw: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			literal.WriteByte(c)
			literal.WriteByte(s[i+1])
			i++
			continue
		}
		if c != '{' {
			literal.WriteByte(c)
			continue
		}

		end, raw, name, ok := scanPlaceholder(s, i+1)
		if !ok {
			literal.WriteString(s[i:])
			break
		}
		flush()
		segs = append(segs, templateSegment{raw: raw, name: name, placeholder: true})
		i = end
	}
	flush()
	return segs
}

// scanPlaceholder reads a placeholder body starting at start and returns the
// index of its closing brace.
func scanPlaceholder(s string, start int) (end int, raw, name string, ok bool) {
	var unescaped strings.Builder
	for j := start; j < len(s); j++ {
		switch s[j] {
		case '\\':
			if j+1 < len(s) {
				unescaped.WriteByte(s[j+1])
				j++
			}
		case '{':
			return 0, "", "", false
		case '}':
			return j, s[start:j], unescaped.String(), true
		default:
			unescaped.WriteByte(s[j])
		}
	}
	return 0, "", "", false
}

// CheckTemplate reports malformed templates: unterminated or nested
// placeholders, stray closing braces and empty placeholders.
func CheckTemplate(s string) error {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			if depth > 0 {
				return errors.Newf("nested placeholder at offset %d", i)
			}
			if i+1 < len(s) && s[i+1] == '}' {
				return errors.Newf("empty placeholder at offset %d", i)
			}
			depth++
		case '}':
			if depth == 0 {
				return errors.Newf("unmatched '}' at offset %d", i)
			}
			depth--
		}
	}
	if depth > 0 {
		return errors.New("unterminated placeholder")
	}
	return nil
}
