// Package rml holds the term-map model of an RML mapping document: triples
// maps, their logical sources, and the subject, predicate, object and graph
// term maps that describe how RDF terms are produced from source records.
//
// The model is plain data. Loading it from disk lives in the compiler
// package; turning it into an operator plan lives in the translator package.
//
// Attribute extraction is the only non-trivial logic here:
//
//	Template  "http://ex.org/{id}/{name}"  -> {id, name}
//	Reference "age"                        -> {age}
//	Constant  "http://ex.org/knows"        -> {}
//
// A backslash escapes the next character in a template, so "\{" and "\}"
// are literal braces and never start or end a placeholder.
package rml
