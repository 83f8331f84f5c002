package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	viper *viper.Viper
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rmlplan CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rmlplan",
		Short: "rmlplan - RML mapping compiler",
		Long: `Compile RML mapping documents written in CUE into operator plans.

A plan is a DAG of Source, Project, Extend, Join, Serializer and Target
operators that an execution engine runs to produce RDF.`,
		SilenceUsage:  true,
		SilenceErrors: true, // Execute prints errors commands did not report
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := NewViper(opts.ConfigFile)
			if err != nil {
				return NewExitError(ExitCommandError, err.Error())
			}
			if err := bindFlags(v, cmd.Flags(), "format", "verbose"); err != nil {
				return err
			}
			opts.viper = v
			opts.Format = v.GetString("format")
			opts.Verbose = v.GetBool("verbose")

			if !isValidFormat(opts.Format) {
				return errors.Newf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}

			setupLogging(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ./"+ConfigFileName+")")

	// Add subcommands
	cmd.AddCommand(NewTranslateCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewPlansCommand(opts))
	cmd.AddCommand(NewSQLCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// settings resolves the configuration for a command, letting the named
// flags override it. Format and verbosity come from the options, which
// the root command has already resolved.
func (o *RootOptions) settings(cmd *cobra.Command, flags ...string) (*Config, error) {
	if o.viper == nil {
		v, err := NewViper(o.ConfigFile)
		if err != nil {
			return nil, NewExitError(ExitCommandError, err.Error())
		}
		o.viper = v
	}
	if err := bindFlags(o.viper, cmd.Flags(), flags...); err != nil {
		return nil, err
	}

	config, err := loadConfig(o.viper)
	if err != nil {
		return nil, NewExitError(ExitCommandError, err.Error())
	}
	config.Format = o.Format
	config.Verbose = o.Verbose
	return config, nil
}

// formatter builds the output formatter for a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// setupLogging installs the process logger: debug level with --verbose,
// info otherwise.
func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Execute runs the root command and returns the process exit code.
// Errors a command already reported through its formatter carry an
// ExitError and are not printed again.
func Execute() int {
	cmd := NewRootCommand()
	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return GetExitCode(err)
}
