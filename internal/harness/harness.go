package harness

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/roach88/rmlplan/internal/compiler"
	"github.com/roach88/rmlplan/internal/plan"
	"github.com/roach88/rmlplan/internal/rml"
	"github.com/roach88/rmlplan/internal/store"
	"github.com/roach88/rmlplan/internal/translator"
)

// CodeCompile is recorded when the CUE mapping does not compile into a
// document. It carries no finer code.
const CodeCompile = "compile"

// Harness is the test execution engine.
// Every compiled plan is written to an in-memory catalog and read back so
// scenarios also cover the storage round trip.
type Harness struct {
	store  *store.Store
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Load and compile the CUE mapping
// 2. Validate the document, collecting every error code
// 3. Translate the document into a plan
// 4. Round-trip the plan through the catalog
// 5. Evaluate assertions, or check the expected error code
//
// The returned error reports infrastructure failures only; scenario
// failures are in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	if scenario == nil {
		return nil, errors.New("nil scenario")
	}

	st, err := store.Open(":memory:", store.WithIDGenerator(store.NewFixedGenerator("scenario-"+scenario.Name)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create in-memory store")
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	return h.run(context.Background(), scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	result := NewResult()

	g, err := h.compile(scenario, result)
	if err != nil {
		return nil, err
	}

	if scenario.ExpectError != "" {
		switch {
		case result.HasCode(scenario.ExpectError):
			// Other failures raised alongside the expected one are fine.
			result.Errors = []string{}
			result.Pass = true
		case g != nil:
			result.AddError(fmt.Sprintf("expected error %s, but the mapping compiled", scenario.ExpectError))
		default:
			result.AddError(fmt.Sprintf("expected error %s, got %v", scenario.ExpectError, result.Codes))
		}
		return result, nil
	}

	if g == nil {
		return result, nil
	}

	rec, err := h.store.WritePlan(ctx, scenario.Name, g)
	if err != nil {
		return nil, errors.Wrap(err, "failed to store plan")
	}
	_, stored, err := h.store.ReadPlan(ctx, rec.ID)
	if err != nil {
		result.AddError(fmt.Sprintf("catalog round trip: %v", err))
		return result, nil
	}

	result.Plan = stored
	result.Fingerprint = rec.Fingerprint
	h.logger.Debug("plan compiled", "scenario", scenario.Name, "fingerprint", rec.Fingerprint)

	for _, msg := range EvaluateAssertions(stored, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// compile runs the mapping through load, validation and translation. It
// returns a nil plan when any stage fails; the failure is recorded on the
// result.
func (h *Harness) compile(scenario *Scenario, result *Result) (*plan.Graph, error) {
	doc, err := compiler.LoadDocumentFile(scenario.Mapping)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, errors.Wrap(err, "failed to load mapping")
		}
		result.AddCode(CodeCompile)
		result.AddError(err.Error())
		return nil, nil
	}

	if verrs := compiler.ValidateDocument(doc); len(verrs) > 0 {
		for _, verr := range verrs {
			result.AddCode(verr.Code)
			result.AddError(verr.Error())
		}
		return nil, nil
	}

	return h.translate(doc, result), nil
}

func (h *Harness) translate(doc *rml.Document, result *Result) *plan.Graph {
	root, err := translator.Translate(doc)
	if err == nil {
		return root.Graph()
	}

	if code, ok := translator.CodeOf(err); ok {
		result.AddCode(string(code))
	}
	if code, ok := plan.PlanErrorCodeOf(err); ok {
		result.AddCode(string(code))
	}
	result.AddError(err.Error())
	return nil
}
