package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/hydrate/internal/dataset"
	"github.com/roach88/hydrate/internal/gas"
	"github.com/roach88/hydrate/internal/validate"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file.yaml>",
		Short: "Check a dataset without importing it",
		Long: `Check every record of a YAML dataset against the record schema
and the composition rules without opening the database.`,
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
	out := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		_ = out.Error(ErrCodeSetup, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load settings", err)
	}

	_, recs, err := dataset.Load(path)
	if err != nil {
		_ = out.Error(ErrCodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load dataset", err)
	}
	out.VerboseLog("Loaded %d record(s) from %s", len(recs), path)

	v, err := validate.New(cfg.ValidateConfig())
	if err != nil {
		_ = out.Error(ErrCodeSetup, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid validation settings", err)
	}
	rep := v.Batch(recs)
	if rep.Invalid > 0 {
		if opts.Format == "json" {
			_ = out.Error(string(gas.ErrCodeInvalidArgument), fmt.Sprintf("%d of %d records failed validation", rep.Invalid, rep.Total), rep)
		} else {
			writeValidation(out.Writer, rep)
			fmt.Fprintf(out.Writer, "✗ %d of %d records failed validation\n", rep.Invalid, rep.Total)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d record(s) invalid", rep.Invalid))
	}

	return out.Render(rep, func(w io.Writer) {
		writeValidation(w, rep)
		fmt.Fprintf(w, "✓ %d records valid (%d with warnings)\n", rep.Total, rep.Warnings)
	})
}

// writeValidation lists the reported rows, one per line.
func writeValidation(w io.Writer, rep validate.BatchReport) {
	for _, row := range rep.Rows {
		mark := "!"
		if !row.Valid() {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s row %d: %s\n", mark, row.Row, row.Summary())
	}
	if shown := len(rep.Rows); shown < rep.Invalid+rep.Warnings && shown > 0 {
		fmt.Fprintf(w, "  (first %d rows shown)\n", shown)
	}
}
