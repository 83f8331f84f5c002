package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/rmlplan/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <mapping>",
		Short: "Validate a mapping without translating it",
		Long: `Validate a CUE mapping document without building a plan.

Reports every structural error (E1xx codes) and lists join cycles
between triples maps as warnings. Join cycles are legal.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, validationErrors, err := checkMapping(formatter, path)
	if err != nil {
		return err
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	warnings := compiler.AnalyzeJoins(loadResult.Document)
	for _, w := range warnings {
		slog.Debug("join cycle", "path", w.Path, "level", w.Level)
	}

	return outputValidateSuccess(formatter, loadResult, warnings)
}

// checkMapping loads a mapping and validates it, collecting every error.
// Compile errors of individual triples maps are reported as validation
// errors; document rules only run once every triples map compiled. The
// returned error is set for command errors (unreadable paths, CUE that
// does not build) and has already been written through the formatter.
func checkMapping(formatter *OutputFormatter, path string) (*LoadResult, []compiler.ValidationError, error) {
	loadResult, loadErrors := LoadMappings(path, LoadModeCollectAll)

	// Handle load errors (path not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return nil, nil, outputCommandError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return nil, nil, outputCommandError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, path)
	for _, tm := range loadResult.Document.TriplesMaps {
		formatter.VerboseLog("Loaded triples map: %s", tm.Identifier)
	}

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "mapping",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    getLineFromPos(loadErr),
			})
			continue
		}
		validationErrors = append(validationErrors, compiler.ValidationError{
			Field:   "mapping",
			Message: err.Error(),
			Code:    ErrCodeGeneric,
		})
	}
	if len(validationErrors) > 0 {
		return loadResult, validationErrors, nil
	}

	return loadResult, compiler.ValidateDocument(loadResult.Document), nil
}

// getLineFromPos extracts the line number of a load error's CUE position.
func getLineFromPos(e *LoadError) int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, loadResult *LoadResult, warnings []compiler.CycleWarning) error {
	if formatter.Format == "json" {
		result := ValidationResult{Valid: true, Warnings: warnings}
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Mapping valid (%d triples map(s))\n", len(loadResult.Document.TriplesMaps))
	if len(warnings) > 0 {
		fmt.Fprintln(formatter.Writer)
		fmt.Fprintln(formatter.Writer, "Warnings:")
		for _, w := range warnings {
			fmt.Fprintf(formatter.Writer, "  [%s] %s\n", w.Level, w.Message)
		}
	}
	return nil
}

// outputCommandError outputs a single command-level error.
func outputCommandError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Command errors are exit code 2
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
