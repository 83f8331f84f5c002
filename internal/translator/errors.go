package translator

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// TranslationErrorCode categorizes translation failures.
type TranslationErrorCode string

const (
	// ErrCodeMissingParent indicates a join references a triples map that
	// does not exist.
	ErrCodeMissingParent TranslationErrorCode = "MissingParent"

	// ErrCodeMalformedJoin indicates a parent reference without a join
	// condition, or a join condition without a parent reference.
	ErrCodeMalformedJoin TranslationErrorCode = "MalformedJoin"

	// ErrCodeUnrecognizedTermKind indicates a term type outside iri,
	// literal and blanknode.
	ErrCodeUnrecognizedTermKind TranslationErrorCode = "UnrecognizedTermKind"

	// ErrCodeMissingTermType indicates a term map without a term type.
	ErrCodeMissingTermType TranslationErrorCode = "MissingTermType"
)

// TranslationError reports why a document could not be translated.
type TranslationError struct {
	Code TranslationErrorCode

	// TriplesMap is the identifier of the triples map being translated.
	TriplesMap string

	Message string
}

// Error implements the error interface.
func (e *TranslationError) Error() string {
	if e.TriplesMap != "" {
		return fmt.Sprintf("%s: %s (triples map=%s)", e.Code, e.Message, e.TriplesMap)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newTranslationError(code TranslationErrorCode, tm, format string, args ...any) error {
	return errors.WithStack(&TranslationError{
		Code:       code,
		TriplesMap: tm,
		Message:    fmt.Sprintf(format, args...),
	})
}

// CodeOf returns the code of the TranslationError in err's chain.
func CodeOf(err error) (TranslationErrorCode, bool) {
	var te *TranslationError
	if errors.As(err, &te) {
		return te.Code, true
	}
	return "", false
}

func hasCode(err error, code TranslationErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsMissingParent returns true if err is a MissingParent error.
func IsMissingParent(err error) bool { return hasCode(err, ErrCodeMissingParent) }

// IsMalformedJoin returns true if err is a MalformedJoin error.
func IsMalformedJoin(err error) bool { return hasCode(err, ErrCodeMalformedJoin) }

// IsUnrecognizedTermKind returns true if err is an UnrecognizedTermKind error.
func IsUnrecognizedTermKind(err error) bool { return hasCode(err, ErrCodeUnrecognizedTermKind) }

// IsMissingTermType returns true if err is a MissingTermType error.
func IsMissingTermType(err error) bool { return hasCode(err, ErrCodeMissingTermType) }
