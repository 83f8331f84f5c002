package cli

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/rmlplan/internal/querysql"
)

// SQLResult is the JSON payload of the sql command.
type SQLResult struct {
	TriplesMap string               `json:"triples_map"`
	Source     string               `json:"source"`
	Statements []querysql.Statement `json:"statements"`
}

// NewSQLCommand creates the sql command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sql <mapping> <triples-map>",
		Short: "Lower the relational part of a triples map to SQL",
		Long: `Compile a mapping and lower the plan fragment of one triples map to
SQLite queries: its projection and every join it owns whose parent is
also relational. The triples map must read from an rdb source.

Every query orders all of its output columns.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQL(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runSQL(opts *RootOptions, path, triplesMap string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, validationErrors, err := checkMapping(formatter, path)
	if err != nil {
		return err
	}
	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	_, idx, ok := loadResult.Document.FindTriplesMap(triplesMap)
	if !ok {
		return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("triples map not found: %s", triplesMap), nil)
	}

	g, err := translateDocument(formatter, loadResult.Document)
	if err != nil {
		return err
	}

	source := g.Sources()[idx]
	stmts, err := querysql.NewSQLCompiler().CompileFrom(g, source)
	if errors.Is(err, querysql.ErrNotRelational) {
		_ = formatter.Error(ErrCodeNotRelational, err.Error(), nil)
		return WrapExitError(ExitFailure, triplesMap+" has no SQL form", err)
	}
	if err != nil {
		return outputCommandError(formatter, ErrCodeTranslate, err.Error(), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(SQLResult{
			TriplesMap: triplesMap,
			Source:     g.Node(source).ID,
			Statements: stmts,
		})
	}

	for i, stmt := range stmts {
		if i > 0 {
			fmt.Fprintln(formatter.Writer)
		}
		fmt.Fprintf(formatter.Writer, "-- %s\n%s;\n", stmt.Node, stmt.SQL)
	}
	return nil
}
