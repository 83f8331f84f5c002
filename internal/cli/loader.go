package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"github.com/cockroachdb/errors"

	"github.com/roach88/rmlplan/internal/compiler"
	"github.com/roach88/rmlplan/internal/rml"
)

// LoadMode controls how errors are handled during mapping loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading a mapping document.
type LoadResult struct {
	Document  *rml.Document
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during mapping loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadMappings loads a mapping document from a single CUE file or from
// every CUE file of a directory, which CUE unifies into one value.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects the errors of every triples map.
//
// The returned document holds the triples maps that compiled; with
// collected errors it is partial.
func LoadMappings(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("mapping path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing mapping path: %v", err)}}
	}

	var (
		cfg  *load.Config
		args []string
		n    int
	)
	if info.IsDir() {
		cueFiles, err := FindCUEFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
		if len(cueFiles) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
		}
		cfg = &load.Config{Dir: path}
		args = []string{"."}
		n = len(cueFiles)
	} else {
		if filepath.Ext(path) != ".cue" {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("not a CUE file: %s", path)}}
		}
		cfg = &load.Config{Dir: filepath.Dir(path)}
		args = []string{filepath.Base(path)}
		n = 1
	}

	ctx := cuecontext.New()
	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}
	if err := value.Validate(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		Document:  &rml.Document{},
		CUEValue:  value,
		FileCount: n,
	}

	mappingVal := value.LookupPath(cue.ParsePath("mapping"))
	if !mappingVal.Exists() {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: "no mapping found in " + path}}
	}

	iter, err := mappingVal.Fields()
	if err != nil {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating mapping: %v", err)}}
	}

	var errs []error
	for iter.Next() {
		tm, compileErr := compiler.CompileTriplesMap(iter.Value())
		if compileErr != nil {
			errs = append(errs, convertCompileError(compileErr, "mapping."+iter.Selector().Unquoted()))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Document.TriplesMaps = append(result.Document.TriplesMaps, tm)
	}

	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Field + ": " + compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
// Validation codes (E101-E110) are defined by the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	// Mapping shape errors
	ErrCodeInvalidSource  = "E008" // Missing or malformed logical source
	ErrCodeInvalidSubject = "E009" // Missing or malformed subject map
	ErrCodeInvalidPOM     = "E010" // Malformed predicate-object map
	ErrCodeInvalidJoin    = "E011" // Malformed join condition

	ErrCodeNotRelational = "E012" // Triples map has no SQL form
	ErrCodeTranslate     = "E013" // Plan construction failed
	ErrCodeStore         = "E014" // Plan catalog error

	ErrCodeScenarioFailed = "E015" // One or more scenarios failed
)

// MapFieldToErrorCode maps a compiler error field to an error code.
// Fields look like mapping.<id>.<part>, where part may be nested.
func MapFieldToErrorCode(field string) string {
	if !strings.HasPrefix(field, "mapping.") {
		return ErrCodeGeneric
	}

	switch {
	case strings.Contains(field, ".join"):
		return ErrCodeInvalidJoin
	case strings.Contains(field, ".predicate_object"):
		return ErrCodeInvalidPOM
	case strings.Contains(field, ".subject"):
		return ErrCodeInvalidSubject
	case strings.Contains(field, ".source"):
		return ErrCodeInvalidSource
	default:
		return ErrCodeGeneric
	}
}
