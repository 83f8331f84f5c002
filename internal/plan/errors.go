package plan

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// PlanErrorCode categorizes plan construction failures.
type PlanErrorCode string

const (
	// ErrCodeEmptyPlan indicates an operation on a plan with no nodes.
	ErrCodeEmptyPlan PlanErrorCode = "EmptyPlan"

	// ErrCodeDanglingApplyOperator indicates an operation on a handle with
	// no frontier node to attach to.
	ErrCodeDanglingApplyOperator PlanErrorCode = "DanglingApplyOperator"

	// ErrCodeWrongApplyOperator indicates Apply was given an operator that
	// has its own stage transition (Source, Join, Serializer, Target).
	ErrCodeWrongApplyOperator PlanErrorCode = "WrongApplyOperator"

	// ErrCodeMismatchedJoinKeys indicates child and parent join key lists
	// of different length.
	ErrCodeMismatchedJoinKeys PlanErrorCode = "MismatchedJoinKeys"

	// ErrCodeEmptyJoinAlias indicates a join without an alias.
	ErrCodeEmptyJoinAlias PlanErrorCode = "EmptyJoinAlias"

	// ErrCodeForeignJoin indicates a join between handles of different plans.
	ErrCodeForeignJoin PlanErrorCode = "ForeignJoin"

	// ErrCodeInvalidEdge indicates an edge whose endpoints are not nodes
	// of the plan being rebuilt.
	ErrCodeInvalidEdge PlanErrorCode = "InvalidEdge"
)

// PlanError reports a plan construction failure.
type PlanError struct {
	Code PlanErrorCode

	// Operator is the kind of the operator being added, if any.
	Operator string

	Message string
}

// Error implements the error interface.
func (e *PlanError) Error() string {
	if e.Operator != "" {
		return fmt.Sprintf("%s: %s (operator=%s)", e.Code, e.Message, e.Operator)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newPlanError(code PlanErrorCode, op, format string, args ...any) error {
	return errors.WithStack(&PlanError{
		Code:     code,
		Operator: op,
		Message:  fmt.Sprintf(format, args...),
	})
}

// PlanErrorCodeOf returns the code of the PlanError in err's chain.
func PlanErrorCodeOf(err error) (PlanErrorCode, bool) {
	var pe *PlanError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return "", false
}

func hasCode(err error, code PlanErrorCode) bool {
	c, ok := PlanErrorCodeOf(err)
	return ok && c == code
}

// IsEmptyPlan returns true if err is an EmptyPlan error.
func IsEmptyPlan(err error) bool { return hasCode(err, ErrCodeEmptyPlan) }

// IsDanglingApplyOperator returns true if err is a DanglingApplyOperator error.
func IsDanglingApplyOperator(err error) bool { return hasCode(err, ErrCodeDanglingApplyOperator) }

// IsWrongApplyOperator returns true if err is a WrongApplyOperator error.
func IsWrongApplyOperator(err error) bool { return hasCode(err, ErrCodeWrongApplyOperator) }

// IsMismatchedJoinKeys returns true if err is a MismatchedJoinKeys error.
func IsMismatchedJoinKeys(err error) bool { return hasCode(err, ErrCodeMismatchedJoinKeys) }

// IsEmptyJoinAlias returns true if err is an EmptyJoinAlias error.
func IsEmptyJoinAlias(err error) bool { return hasCode(err, ErrCodeEmptyJoinAlias) }

// IsForeignJoin reports whether err is a ForeignJoin plan error.
func IsForeignJoin(err error) bool { return hasCode(err, ErrCodeForeignJoin) }

// IsInvalidEdge reports whether err is an InvalidEdge plan error.
func IsInvalidEdge(err error) bool { return hasCode(err, ErrCodeInvalidEdge) }
