package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/rmlplan/internal/compiler"
	"github.com/roach88/rmlplan/internal/operator"
	"github.com/roach88/rmlplan/internal/plan"
	"github.com/roach88/rmlplan/internal/rml"
	"github.com/roach88/rmlplan/internal/store"
	"github.com/roach88/rmlplan/internal/translator"
)

// Output files written by translate --output-dir.
const (
	planJSONFile = "plan.json"
	planDOTFile  = "plan.dot"
)

// TranslateOptions holds flags for the translate command.
type TranslateOptions struct {
	*RootOptions
	Name string
	Save bool
}

// TranslateResult is the JSON payload of a successful translation.
type TranslateResult struct {
	Fingerprint string            `json:"fingerprint"`
	NodeCount   int               `json:"node_count"`
	EdgeCount   int               `json:"edge_count"`
	Sources     []string          `json:"sources"`
	Sinks       []string          `json:"sinks"`
	Plan        json.RawMessage   `json:"plan"`
	Stored      *store.PlanRecord `json:"stored,omitempty"`
	Files       []string          `json:"files,omitempty"`
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TranslateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "translate <mapping>",
		Short: "Compile a mapping into an operator plan",
		Long: `Compile a CUE mapping document (a file, or a directory of CUE files
unified into one document) into an operator plan.

The plan is validated, translated and fingerprinted. With --output-dir
the canonical plan is written to plan.json (and plan.dot with --dot);
with --save it is stored in the plan catalog at --db.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(contextOf(cmd), opts, args[0], cmd)
		},
	}

	cmd.Flags().String("output-dir", "", "directory to write plan.json (and plan.dot) to")
	cmd.Flags().String("db", "rmlplan.db", "plan catalog database")
	cmd.Flags().Bool("dot", false, "also render the plan as Graphviz DOT")
	cmd.Flags().Bool("pretty", false, "label DOT nodes with operator configuration")
	cmd.Flags().StringVar(&opts.Name, "name", "", "catalog name of the plan (default: mapping file name)")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "store the plan in the catalog")

	return cmd
}

func runTranslate(ctx context.Context, opts *TranslateOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	config, err := opts.settings(cmd, "output-dir", "db", "dot", "pretty")
	if err != nil {
		return err
	}

	loadResult, g, err := compileMapping(formatter, path)
	if err != nil {
		return err
	}

	fingerprint, err := g.Fingerprint()
	if err != nil {
		return outputCommandError(formatter, ErrCodeTranslate, err.Error(), nil)
	}
	document, err := g.CanonicalJSON()
	if err != nil {
		return outputCommandError(formatter, ErrCodeTranslate, err.Error(), nil)
	}

	result := TranslateResult{
		Fingerprint: fingerprint,
		NodeCount:   g.NodeCount(),
		EdgeCount:   g.EdgeCount(),
		Sources:     nodeIDs(g, g.Sources()),
		Sinks:       sinkPaths(g),
		Plan:        document,
	}

	if config.OutputDir != "" {
		files, err := writePlanFiles(g, document, config)
		if err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, err.Error(), nil)
		}
		result.Files = files
	}

	if opts.Save {
		name := opts.Name
		if name == "" {
			name = planName(path)
		}
		rec, err := savePlan(ctx, config.DB, name, g)
		if err != nil {
			return outputCommandError(formatter, ErrCodeStore, err.Error(), nil)
		}
		formatter.VerboseLog("Stored plan %s as %s", rec.ID, rec.Name)
		result.Stored = &rec
	}

	var warnings []string
	for _, w := range compiler.AnalyzeJoins(loadResult.Document) {
		warnings = append(warnings, w.Message)
	}

	if formatter.Format == "json" {
		return formatter.SuccessWithWarnings(result, warnings)
	}

	if config.Dot && config.OutputDir == "" {
		if config.Pretty {
			return g.WritePretty(formatter.Writer)
		}
		return g.Write(formatter.Writer)
	}
	if err := outputTranslateText(formatter, result); err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(formatter.GetErrWriter(), "info: %s\n", w)
	}
	return nil
}

// compileMapping runs the full pipeline on a mapping: load, validate and
// translate. Failures have already been reported through formatter.
func compileMapping(formatter *OutputFormatter, path string) (*LoadResult, *plan.Graph, error) {
	loadResult, validationErrors, err := checkMapping(formatter, path)
	if err != nil {
		return nil, nil, err
	}
	if len(validationErrors) > 0 {
		return nil, nil, outputValidationErrors(formatter, validationErrors)
	}
	g, err := translateDocument(formatter, loadResult.Document)
	if err != nil {
		return nil, nil, err
	}
	return loadResult, g, nil
}

// translateDocument translates a validated document. Translation errors
// are mapping failures (exit 1) since they describe the document.
func translateDocument(formatter *OutputFormatter, doc *rml.Document) (*plan.Graph, error) {
	root, err := translator.Translate(doc)
	if err != nil {
		code := ErrCodeTranslate
		if tc, ok := translator.CodeOf(err); ok {
			code = string(tc)
		} else if pc, ok := plan.PlanErrorCodeOf(err); ok {
			code = string(pc)
		}
		_ = formatter.Error(code, err.Error(), nil)
		return nil, WrapExitError(ExitFailure, "translation failed", err)
	}

	g := root.Graph()
	formatter.VerboseLog("Translated %d triples map(s) into %d nodes and %d edges",
		len(doc.TriplesMaps), g.NodeCount(), g.EdgeCount())
	return g, nil
}

// writePlanFiles writes the canonical plan and, when configured, its DOT
// rendering into the output directory.
func writePlanFiles(g *plan.Graph, document []byte, config *Config) ([]string, error) {
	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create output directory")
	}

	jsonPath := filepath.Join(config.OutputDir, planJSONFile)
	if err := os.WriteFile(jsonPath, document, 0o644); err != nil {
		return nil, errors.Wrapf(err, "write %s", jsonPath)
	}
	files := []string{jsonPath}

	if config.Dot {
		dotPath := filepath.Join(config.OutputDir, planDOTFile)
		write := g.WriteFile
		if config.Pretty {
			write = g.WritePrettyFile
		}
		if err := write(dotPath); err != nil {
			return nil, errors.Wrapf(err, "write %s", dotPath)
		}
		files = append(files, dotPath)
	}
	return files, nil
}

// savePlan stores g in the catalog at dbPath.
func savePlan(ctx context.Context, dbPath, name string, g *plan.Graph) (store.PlanRecord, error) {
	s, err := store.Open(dbPath)
	if err != nil {
		return store.PlanRecord{}, err
	}
	defer s.Close()

	return s.WritePlan(ctx, name, g)
}

// planName derives a catalog name from a mapping path.
func planName(path string) string {
	base := filepath.Base(filepath.Clean(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func nodeIDs(g *plan.Graph, idxs []plan.NodeIndex) []string {
	ids := make([]string, len(idxs))
	for i, idx := range idxs {
		ids[i] = g.Node(idx).ID
	}
	return ids
}

// sinkPaths lists the output path of every Target, in node order.
func sinkPaths(g *plan.Graph) []string {
	var paths []string
	for _, idx := range g.NodesOfKind(operator.KindTarget) {
		if t, ok := g.Node(idx).Operator.(operator.Target); ok {
			paths = append(paths, g.Node(idx).ID+" "+t.Config["path"])
		}
	}
	return paths
}

func outputTranslateText(formatter *OutputFormatter, result TranslateResult) error {
	w := formatter.Writer
	fmt.Fprintln(w, "✓ Plan compiled")
	fmt.Fprintf(w, "  Fingerprint: %s\n", result.Fingerprint)
	fmt.Fprintf(w, "  Nodes: %d, Edges: %d\n", result.NodeCount, result.EdgeCount)
	fmt.Fprintf(w, "  Sources: %s\n", strings.Join(result.Sources, ", "))
	if len(result.Sinks) > 0 {
		fmt.Fprintln(w, "  Sinks:")
		for _, s := range result.Sinks {
			fmt.Fprintf(w, "    %s\n", s)
		}
	}
	if result.Stored != nil {
		fmt.Fprintf(w, "  Stored: %s (%s)\n", result.Stored.ID, result.Stored.Name)
	}
	for _, f := range result.Files {
		fmt.Fprintf(w, "  Wrote: %s\n", f)
	}
	return nil
}
