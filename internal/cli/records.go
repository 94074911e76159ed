package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/hydrate/internal/dataset"
	"github.com/roach88/hydrate/internal/gas"
	"github.com/roach88/hydrate/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	DryRun      bool
	SkipInvalid bool
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import equilibrium records from a YAML dataset",
		Long: `Validate a YAML dataset and insert its records in one transaction.

Any invalid record refuses the whole file unless --skip-invalid is given.
Warnings (sum slightly off 1, unusually high pressure) never block.

Example:
  hydrate import ./data/ch4.yaml
  hydrate import ./data/mixed.yaml --skip-invalid --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "validate without writing")
	cmd.Flags().BoolVar(&opts.SkipInvalid, "skip-invalid", false, "import the valid records of a file with invalid ones")

	return cmd
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)
	f, recs, err := dataset.Load(path)
	if err != nil {
		_ = out.Error(ErrCodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load dataset", err)
	}
	source := f.Source
	if source == "" {
		source = path
	}

	return runWithApp(opts.RootOptions, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
		rep, err := a.importer.Import(ctx, source, recs, dataset.Options{DryRun: opts.DryRun, SkipInvalid: opts.SkipInvalid})
		if err != nil {
			if opts.Format != "json" {
				writeValidation(out.Writer, rep.Validation)
			}
			return err
		}
		return out.Render(rep, func(w io.Writer) {
			writeValidation(w, rep.Validation)
			if rep.DryRun {
				fmt.Fprintf(w, "Dry run: %d of %d records would be imported\n", rep.Total-rep.Skipped, rep.Total)
				return
			}
			fmt.Fprintf(w, "Imported %d of %d records from %s (%d skipped)\n", rep.Imported, rep.Total, rep.Source, rep.Skipped)
		})
	})
}

// StatsResult is the stats command output.
type StatsResult struct {
	Records     int                 `json:"records"`
	Temperature gas.Span            `json:"temperature"`
	Pressure    gas.Span            `json:"pressure"`
	Components  map[string]gas.Span `json:"components"`
	Review      store.ReviewCounts  `json:"review"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Summarize the stored records and the review queue",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(rootOpts, cmd, runStats)
		},
	}
}

func runStats(ctx context.Context, a *app, out *OutputFormatter) error {
	env, err := a.store.Statistics(ctx)
	if err != nil {
		return gas.NewStorageError("statistics", err)
	}
	counts, err := a.workflow.Stats(ctx)
	if err != nil {
		return err
	}

	res := StatsResult{
		Records:     env.Records,
		Temperature: env.Temperature,
		Pressure:    env.Pressure,
		Components:  make(map[string]gas.Span, gas.NumComponents),
		Review:      counts,
	}
	for _, c := range gas.AllComponents {
		res.Components[c.Column()] = env.Fractions[c]
	}

	return out.Render(res, func(w io.Writer) {
		fmt.Fprintf(w, "Records:      %d\n", res.Records)
		fmt.Fprintf(w, "Temperature:  %s K\n", formatSpan(res.Temperature))
		fmt.Fprintf(w, "Pressure:     %s MPa\n", formatSpan(res.Pressure))
		for _, c := range gas.AllComponents {
			fmt.Fprintf(w, "  %-8s    %s\n", c, formatSpan(env.Fractions[c]))
		}
		fmt.Fprintf(w, "Review:       %d pending group(s), %d pending, %d approved, %d rejected\n",
			counts.PendingGroups, counts.Pending, counts.Approved, counts.Rejected)
	})
}

// formatSpan renders a span as "min .. max", or "-" when it holds no data.
func formatSpan(s gas.Span) string {
	if !s.Valid {
		return "-"
	}
	return fmt.Sprintf("%g .. %g", s.Min, s.Max)
}
