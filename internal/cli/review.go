package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hydrate/internal/gas"
	"github.com/roach88/hydrate/internal/review"
	"github.com/roach88/hydrate/internal/store"
)

// ScanOptions holds flags shared by scan and quarantine.
type ScanOptions struct {
	*RootOptions
	HighPressure bool
	Threshold    float64
	Reviewer     string
}

func (o *ScanOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.HighPressure, "high-pressure", false, "select records above the pressure threshold instead of duplicates")
	cmd.Flags().Float64Var(&o.Threshold, "threshold", 0, "pressure threshold in MPa (default from settings)")
}

func (o *ScanOptions) scan(ctx context.Context, a *app) ([]review.Group, error) {
	if o.HighPressure {
		return a.scanner.ScanHighPressure(ctx, o.Threshold)
	}
	return a.scanner.Scan(ctx)
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List duplicate groups without changing anything",
		Long: `List groups of records that share a composition and temperature but
disagree on pressure. Nothing is moved; see quarantine.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				groups, err := opts.scan(ctx, a)
				if err != nil {
					return err
				}
				return out.Render(groups, func(w io.Writer) {
					if len(groups) == 0 {
						fmt.Fprintln(w, "No duplicate groups found.")
						return
					}
					for _, g := range groups {
						fmt.Fprintf(w, "%.2f K  %-32s  %d records  pressures %s\n",
							g.Temperature, formatComposition(g.Composition), len(g.Members), formatPressures(g.Pressures()))
					}
					fmt.Fprintf(w, "%d group(s)\n", len(groups))
				})
			})
		},
	}
	opts.bind(cmd)

	return cmd
}

// NewQuarantineCommand creates the quarantine command.
func NewQuarantineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "quarantine",
		Short: "Move duplicate groups into the review queue",
		Long: `Scan for duplicate groups and move each one into the review queue as a
unit. A group that fails to move is left untouched; the others still move.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				groups, err := opts.scan(ctx, a)
				if err != nil {
					return err
				}
				rep, err := a.workflow.MoveToReview(ctx, groups, opts.Reviewer)
				if err != nil && !gas.IsPartialBatch(err) {
					return err
				}
				if err != nil && opts.Format == "json" {
					return err
				}
				renderErr := out.Render(rep, func(w io.Writer) {
					for _, g := range rep.Groups {
						if g.Err != nil {
							fmt.Fprintf(w, "✗ %s: %v\n", g.Key, g.Err)
							continue
						}
						fmt.Fprintf(w, "✓ %s  %d entries\n", g.GroupID, len(g.Entries))
					}
					fmt.Fprintf(w, "Moved %d of %d group(s) (batch %s)\n", rep.Moved, len(rep.Groups), rep.BatchID)
				})
				if renderErr != nil {
					return renderErr
				}
				return err
			})
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.Reviewer, "reviewer", "", "name recorded in the log")

	return cmd
}

// PendingOptions holds flags for the pending command.
type PendingOptions struct {
	*RootOptions
	Status  string
	Search  string
	Page    int
	PerPage int
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PendingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pending [group-id]",
		Short: "List review groups, or the entries of one group",
		Args:  cobra.MaximumNArgs(1),
		Example: `  hydrate pending
  hydrate pending --status approved --page 2
  hydrate pending G0003`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				if len(args) == 1 {
					return runGroup(ctx, a, out, args[0])
				}
				return runPending(ctx, a, out, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", string(gas.StatusPending), "entry status (pending|approved|rejected)")
	cmd.Flags().StringVar(&opts.Search, "search", "", "substring of the group id")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.PerPage, "per-page", 20, "groups per page")

	return cmd
}

func runPending(ctx context.Context, a *app, out *OutputFormatter, opts *PendingOptions) error {
	page, err := a.workflow.PendingGroups(ctx, store.GroupFilter{
		Status:      gas.ReviewStatus(opts.Status),
		GroupIDLike: opts.Search,
		Page:        opts.Page,
		PerPage:     opts.PerPage,
	})
	if err != nil {
		return err
	}
	return out.Render(page, func(w io.Writer) {
		if len(page.Groups) == 0 {
			fmt.Fprintf(w, "No %s groups.\n", opts.Status)
			return
		}
		for _, g := range page.Groups {
			fmt.Fprintf(w, "%s  %-8s  %.2f K  %-32s  %d entries  %s MPa\n",
				g.GroupID, g.Status, g.Temperature, formatComposition(g.Fractions), g.Entries, formatSpan(g.Pressure))
		}
		fmt.Fprintf(w, "%d of %d group(s)\n", len(page.Groups), page.Total)
	})
}

func runGroup(ctx context.Context, a *app, out *OutputFormatter, groupID string) error {
	entries, err := a.workflow.Group(ctx, groupID)
	if err != nil {
		return err
	}
	return out.Render(entries, func(w io.Writer) {
		first := entries[0]
		fmt.Fprintf(w, "Group %s  %.2f K  %s\n", groupID, first.Temperature, formatComposition(first.Fractions))
		for _, e := range entries {
			line := fmt.Sprintf("  entry %-5d %-8s %.4f MPa", e.ID, e.Status, e.Pressure)
			if e.Pressure != e.OriginalPressure {
				line += fmt.Sprintf(" (was %.4f)", e.OriginalPressure)
			}
			if e.ApprovedRecordID != nil {
				line += fmt.Sprintf(" -> record %d", *e.ApprovedRecordID)
			}
			fmt.Fprintln(w, line)
		}
	})
}

// NewCorrectCommand creates the correct command.
func NewCorrectCommand(rootOpts *RootOptions) *cobra.Command {
	var reviewer string

	cmd := &cobra.Command{
		Use:   "correct <entry-id> <pressure>",
		Short: "Correct the pressure of a pending entry",
		Long: `Set a new pressure (MPa) on a pending review entry. The pressure at
quarantine time is kept and shown alongside.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				id, err := parseEntryID(args[0])
				if err != nil {
					return err
				}
				pressure, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return &gas.Error{Code: gas.ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid pressure %q", args[1])}
				}
				entry, err := a.workflow.CorrectPressure(ctx, id, pressure, reviewer)
				if err != nil {
					return err
				}
				return out.Render(entry, func(w io.Writer) {
					fmt.Fprintf(w, "Entry %d in %s: %.4f MPa (was %.4f)\n", entry.ID, entry.GroupID, entry.Pressure, entry.OriginalPressure)
				})
			})
		},
	}
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "name recorded on the entry")

	return cmd
}

// NewApproveCommand creates the approve command.
func NewApproveCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		winners  []int64
		reviewer string
	)

	cmd := &cobra.Command{
		Use:   "approve <group-id>...",
		Short: "Approve review groups, reinstating the winning entries",
		Long: `Approve review groups. The winning entries are reinserted into the
record table and the rest are discarded.

With --winner, only the named entries survive (one group only). Without
it, the single policy requires all pressures to agree and the multiple
policy keeps every entry.`,
		Example: `  hydrate approve G0001 --winner 3
  hydrate approve G0001 G0002 G0005`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				if len(args) > 1 && len(winners) > 0 {
					return &gas.Error{Code: gas.ErrCodeInvalidArgument, Message: "--winner applies to a single group"}
				}
				if len(args) == 1 {
					o, err := a.workflow.Approve(ctx, args[0], winners, reviewer)
					if err != nil {
						return err
					}
					return renderOutcomes(out, []review.Outcome{o}, nil)
				}
				reqs := make([]review.ApproveRequest, len(args))
				for i, id := range args {
					reqs[i] = review.ApproveRequest{GroupID: id}
				}
				outcomes, err := a.workflow.ApproveBatch(ctx, reqs, reviewer)
				return renderOutcomes(out, outcomes, err)
			})
		},
	}
	cmd.Flags().Int64SliceVar(&winners, "winner", nil, "entry ids to keep")
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "name recorded on the entries")

	return cmd
}

// NewRejectCommand creates the reject command.
func NewRejectCommand(rootOpts *RootOptions) *cobra.Command {
	var reviewer string

	cmd := &cobra.Command{
		Use:           "reject <group-id>...",
		Short:         "Reject review groups, keeping none of their entries",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				if len(args) == 1 {
					o, err := a.workflow.Reject(ctx, args[0], reviewer)
					if err != nil {
						return err
					}
					return renderOutcomes(out, []review.Outcome{o}, nil)
				}
				outcomes, err := a.workflow.RejectBatch(ctx, args, reviewer)
				return renderOutcomes(out, outcomes, err)
			})
		},
	}
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "name recorded on the entries")

	return cmd
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <group-id>...",
		Short: "Return reviewed groups to pending",
		Long: `Return approved or rejected groups to pending. Records reinstated by an
approval are removed from the record table again.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				if len(args) == 1 {
					o, err := a.workflow.Restore(ctx, args[0])
					if err != nil {
						return err
					}
					return renderOutcomes(out, []review.Outcome{o}, nil)
				}
				outcomes, err := a.workflow.RestoreBatch(ctx, args)
				return renderOutcomes(out, outcomes, err)
			})
		},
	}
}

// renderOutcomes prints review outcomes and passes through the batch error.
// In JSON mode a partial batch reports only the error, whose details list
// the failed groups.
func renderOutcomes(out *OutputFormatter, outcomes []review.Outcome, err error) error {
	if err != nil && (!gas.IsPartialBatch(err) || out.Format == "json") {
		return err
	}
	renderErr := out.Render(outcomes, func(w io.Writer) {
		for _, o := range outcomes {
			fmt.Fprintln(w, describeOutcome(o))
		}
	})
	if renderErr != nil {
		return renderErr
	}
	return err
}

func describeOutcome(o review.Outcome) string {
	if o.Err != nil {
		return fmt.Sprintf("✗ %s: %v", o.GroupID, o.Err)
	}
	if o.NoOp {
		return fmt.Sprintf("✓ %s already %s", o.GroupID, o.Status)
	}
	switch o.Status {
	case gas.StatusApproved:
		kept := make([]string, len(o.Survivors))
		for i, s := range o.Survivors {
			kept[i] = fmt.Sprintf("entry %d -> record %d", s.EntryID, s.RecordID)
		}
		return fmt.Sprintf("✓ %s approved: %s", o.GroupID, strings.Join(kept, ", "))
	case gas.StatusPending:
		return fmt.Sprintf("✓ %s restored to pending (%d record(s) removed)", o.GroupID, len(o.Removed))
	default:
		return fmt.Sprintf("✓ %s %s", o.GroupID, o.Status)
	}
}

func parseEntryID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, &gas.Error{Code: gas.ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid entry id %q", s)}
	}
	return id, nil
}

func formatPressures(ps []float64) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = strconv.FormatFloat(p, 'g', -1, 64)
	}
	return strings.Join(parts, ", ")
}
