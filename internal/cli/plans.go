package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/rmlplan/internal/store"
)

// PlanShowResult is the JSON payload of plans show.
type PlanShowResult struct {
	Record store.PlanRecord `json:"record"`
	Plan   json.RawMessage  `json:"plan"`
}

// NewPlansCommand creates the plans command group.
func NewPlansCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Inspect the plan catalog",
		Long: `List and show plans stored by translate --save.

Plans are content-addressed: storing a plan identical to a stored one
returns the existing entry.`,
	}

	cmd.PersistentFlags().String("db", "rmlplan.db", "plan catalog database")

	cmd.AddCommand(newPlansListCommand(rootOpts))
	cmd.AddCommand(newPlansShowCommand(rootOpts))
	return cmd
}

func newPlansListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored plans",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlansList(contextOf(cmd), rootOpts, cmd)
		},
	}
}

func newPlansShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "show <id>",
		Short:         "Show a stored plan",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlansShow(contextOf(cmd), rootOpts, args[0], cmd)
		},
	}
	cmd.Flags().Bool("dot", false, "render the plan as Graphviz DOT")
	cmd.Flags().Bool("pretty", false, "label DOT nodes with operator configuration")
	return cmd
}

func runPlansList(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	config, err := opts.settings(cmd, "db")
	if err != nil {
		return err
	}

	s, err := openCatalog(formatter, config.DB)
	if err != nil {
		return err
	}
	defer s.Close()

	records, err := s.ListPlans(ctx)
	if err != nil {
		return outputCommandError(formatter, ErrCodeStore, err.Error(), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(formatter.Writer, "No plans stored")
		return nil
	}
	for _, rec := range records {
		fmt.Fprintf(formatter.Writer, "%s  %-20s  %3d nodes  %3d edges  %s\n",
			rec.ID, rec.Name, rec.NodeCount, rec.EdgeCount, shortFingerprint(rec.Fingerprint))
	}
	return nil
}

func runPlansShow(ctx context.Context, opts *RootOptions, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	config, err := opts.settings(cmd, "db", "dot", "pretty")
	if err != nil {
		return err
	}

	s, err := openCatalog(formatter, config.DB)
	if err != nil {
		return err
	}
	defer s.Close()

	rec, g, err := s.ReadPlan(ctx, id)
	if errors.Is(err, store.ErrPlanNotFound) {
		return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("plan not found: %s", id), nil)
	}
	if err != nil {
		return outputCommandError(formatter, ErrCodeStore, err.Error(), nil)
	}

	if config.Dot {
		if config.Pretty {
			return g.WritePretty(formatter.Writer)
		}
		return g.Write(formatter.Writer)
	}

	document, err := s.ReadDocument(ctx, id)
	if err != nil {
		return outputCommandError(formatter, ErrCodeStore, err.Error(), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(PlanShowResult{Record: rec, Plan: json.RawMessage(document)})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Plan %s (%s)\n", rec.ID, rec.Name)
	fmt.Fprintf(w, "  Fingerprint: %s\n", rec.Fingerprint)
	fmt.Fprintf(w, "  Nodes: %d, Edges: %d\n", rec.NodeCount, rec.EdgeCount)
	fmt.Fprintln(w)
	for _, n := range g.Nodes() {
		fmt.Fprintf(w, "  %-16s %s\n", n.ID, n.Operator.Kind())
	}
	return nil
}

// openCatalog opens an existing catalog. A missing database is a command
// error rather than an empty catalog, so typos in --db are caught.
func openCatalog(formatter *OutputFormatter, path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("database not found: %s", path), nil)
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, outputCommandError(formatter, ErrCodeStore, err.Error(), nil)
	}
	return s, nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
