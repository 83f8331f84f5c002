package compiler

import (
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/cockroachdb/errors"

	"github.com/roach88/rmlplan/internal/rml"
)

// LoadDocumentFile reads a single CUE mapping file and compiles it. CUE
// positions in errors carry the file name.
func LoadDocumentFile(path string) (*rml.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read mapping file")
	}

	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	return CompileDocument(v)
}
