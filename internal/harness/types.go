package harness

import (
	"github.com/roach88/rmlplan/internal/plan"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the expected error was raised, or if the plan compiled and
	// every assertion held.
	Pass bool `json:"pass"`

	// Errors contains failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Codes are the error codes raised while compiling the mapping:
	// validation codes (E1xx), translation codes and plan codes.
	Codes []string `json:"codes,omitempty"`

	// Fingerprint is the Merkle fingerprint of the compiled plan.
	Fingerprint string `json:"fingerprint,omitempty"`

	// Plan is the compiled plan, nil when compilation failed.
	Plan *plan.Graph `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Codes:  []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddCode records an error code raised during compilation.
func (r *Result) AddCode(code string) {
	r.Codes = append(r.Codes, code)
}

// HasCode reports whether code was raised.
func (r *Result) HasCode(code string) bool {
	for _, c := range r.Codes {
		if c == code {
			return true
		}
	}
	return false
}
