package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hydrate/internal/gas"
	"github.com/roach88/hydrate/internal/match"
)

// MatchOptions holds flags for the match command.
type MatchOptions struct {
	*RootOptions
	Composition          map[string]string
	Ranges               map[string]string
	Temperature          float64
	Tolerance            float64
	TemperatureTolerance float64
	Strict               bool
	Limit                int
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Find records close to a composition at a temperature",
		Long: `Find stored records whose composition lies within tolerance of the
given one, near the given temperature, ranked by score (100 = exact).

With --range, records are selected by per-component intervals instead.

Examples:
  hydrate match -c ch4=0.9,c2h6=0.1 -t 275
  hydrate match -c CO2=1 -t 280 --tolerance 0 --strict
  hydrate match --range ch4=0.8:0.95,c3h8=0.01:0.05 -t 278`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				return runMatch(ctx, a, out, opts, cmd)
			})
		},
	}

	cmd.Flags().StringToStringVarP(&opts.Composition, "comp", "c", nil, "composition as name=fraction pairs")
	cmd.Flags().StringToStringVar(&opts.Ranges, "range", nil, "component ranges as name=min:max pairs")
	cmd.Flags().Float64VarP(&opts.Temperature, "temperature", "t", 0, "temperature in K (required)")
	cmd.Flags().Float64Var(&opts.Tolerance, "tolerance", 0, "per-component tolerance (default from settings)")
	cmd.Flags().Float64Var(&opts.TemperatureTolerance, "temperature-tolerance", 0, "temperature window in K (default derived from tolerance)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "require every listed component to be present")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum results (default from settings)")
	_ = cmd.MarkFlagRequired("temperature")
	cmd.MarkFlagsMutuallyExclusive("comp", "range")
	cmd.MarkFlagsOneRequired("comp", "range")

	return cmd
}

func runMatch(ctx context.Context, a *app, out *OutputFormatter, opts *MatchOptions, cmd *cobra.Command) error {
	var (
		results []match.Result
		err     error
	)
	if len(opts.Ranges) > 0 {
		ranges, perr := parseRanges(opts.Ranges)
		if perr != nil {
			return perr
		}
		results, err = a.engine.MatchRange(ctx, ranges, opts.Temperature, opts.Limit)
	} else {
		comp, perr := parseFractions(opts.Composition)
		if perr != nil {
			return perr
		}
		q := match.Query{
			Composition:          comp,
			Temperature:          opts.Temperature,
			Tolerance:            a.cfg.Match.Tolerance,
			TemperatureTolerance: opts.TemperatureTolerance,
			Strict:               opts.Strict,
			Limit:                opts.Limit,
		}
		if cmd.Flags().Changed("tolerance") {
			q.Tolerance = opts.Tolerance
		}
		results, err = a.engine.Match(ctx, q)
	}
	if err != nil {
		return err
	}

	return out.Render(results, func(w io.Writer) {
		if len(results) == 0 {
			fmt.Fprintln(w, "No matching records.")
			return
		}
		writeResults(w, results)
	})
}

// BatchOptions holds flags for the batch command.
type BatchOptions struct {
	*RootOptions
	Composition  map[string]string
	Temperatures []float64
	Tolerance    float64
	Strict       bool
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Find the best match of one composition at several temperatures",
		Long: `Look up the best match of a composition at each listed temperature.
Temperatures are matched concurrently; results keep the input order.

Example:
  hydrate batch -c ch4=1 --temperatures 273.15,275,280`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				return runBatch(ctx, a, out, opts, cmd)
			})
		},
	}

	cmd.Flags().StringToStringVarP(&opts.Composition, "comp", "c", nil, "composition as name=fraction pairs (required)")
	cmd.Flags().Float64SliceVar(&opts.Temperatures, "temperatures", nil, "temperatures in K (required)")
	cmd.Flags().Float64Var(&opts.Tolerance, "tolerance", 0, "per-component tolerance (default from settings)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "require every listed component to be present")
	_ = cmd.MarkFlagRequired("comp")
	_ = cmd.MarkFlagRequired("temperatures")

	return cmd
}

func runBatch(ctx context.Context, a *app, out *OutputFormatter, opts *BatchOptions, cmd *cobra.Command) error {
	comp, err := parseFractions(opts.Composition)
	if err != nil {
		return err
	}
	q := match.Query{Composition: comp, Tolerance: a.cfg.Match.Tolerance, Strict: opts.Strict}
	if cmd.Flags().Changed("tolerance") {
		q.Tolerance = opts.Tolerance
	}

	results, err := a.engine.BatchMatch(ctx, q, opts.Temperatures)
	if err != nil && !gas.IsPartialBatch(err) {
		return err
	}
	if err != nil && opts.Format == "json" {
		return err
	}

	renderErr := out.Render(results, func(w io.Writer) {
		for _, r := range results {
			switch {
			case r.Err != nil:
				fmt.Fprintf(w, "%8.2f K  error: %v\n", r.Temperature, r.Err)
			case !r.Found:
				fmt.Fprintf(w, "%8.2f K  no match\n", r.Temperature)
			default:
				fmt.Fprintf(w, "%8.2f K  %8.4f MPa  score %5.1f  (record %d at %.2f K)\n",
					r.Temperature, r.Match.Record.Pressure, r.Match.Score, r.Match.Record.ID, r.Match.Record.Temperature)
			}
		}
	})
	if renderErr != nil {
		return renderErr
	}
	return err
}

// EstimateOptions holds flags for the estimate command.
type EstimateOptions struct {
	*RootOptions
	Ranges      map[string]string
	Temperature float64
}

// NewEstimateCommand creates the estimate command.
func NewEstimateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EstimateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Count the records a range query would return",
		Long: `Count the records inside the given component ranges, optionally near a
temperature. The count is shown bucketed (0, <10, 10+, 100+).

Example:
  hydrate estimate --range ch4=0.8:1 -t 275`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				ranges, err := parseRanges(opts.Ranges)
				if err != nil {
					return err
				}
				var temp *float64
				if cmd.Flags().Changed("temperature") {
					temp = &opts.Temperature
				}
				est, err := a.engine.EstimateCount(ctx, ranges, temp)
				if err != nil {
					return err
				}
				return out.Render(est, func(w io.Writer) {
					fmt.Fprintf(w, "%s records (%d)\n", est.Display, est.Count)
				})
			})
		},
	}

	cmd.Flags().StringToStringVar(&opts.Ranges, "range", nil, "component ranges as name=min:max pairs")
	cmd.Flags().Float64VarP(&opts.Temperature, "temperature", "t", 0, "temperature in K")

	return cmd
}

// NewComponentsCommand creates the components command.
func NewComponentsCommand(rootOpts *RootOptions) *cobra.Command {
	var selection map[string]string

	cmd := &cobra.Command{
		Use:   "components",
		Short: "List components that co-occur with a partial selection",
		Long: `List the components, outside the selection, that are present in at
least one record matching it. A selection value of 0 only requires the
component to be present.

Example:
  hydrate components -c ch4=0
  hydrate components -c ch4=0.9,co2=0`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				sel, err := parseFractions(selection)
				if err != nil {
					return err
				}
				set, err := a.resolver.AvailableComponents(ctx, sel)
				if err != nil {
					return err
				}
				return out.Render(set, func(w io.Writer) {
					if set.Len() == 0 {
						fmt.Fprintln(w, "No further components.")
						return
					}
					names := make([]string, 0, set.Len())
					for _, c := range set.Slice() {
						names = append(names, c.String())
					}
					fmt.Fprintln(w, strings.Join(names, " "))
				})
			})
		},
	}

	cmd.Flags().StringToStringVarP(&selection, "comp", "c", nil, "selection as name=value pairs")

	return cmd
}

// NewRangesCommand creates the ranges command.
func NewRangesCommand(rootOpts *RootOptions) *cobra.Command {
	var selection map[string]string

	cmd := &cobra.Command{
		Use:   "ranges",
		Short: "Show the data envelope of a partial selection",
		Long: `Show, over records matching the selection with every other component
absent, the observed range of each selected component, of temperature and
of pressure. Without a selection the whole table is summarized.

Example:
  hydrate ranges -c ch4=0,c2h6=0`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				sel, err := parseFractions(selection)
				if err != nil {
					return err
				}
				env, err := a.resolver.Ranges(ctx, sel)
				if err != nil {
					return err
				}
				return out.Render(env, func(w io.Writer) {
					fmt.Fprintf(w, "Records:      %d\n", env.Records)
					for _, cs := range env.Components {
						fmt.Fprintf(w, "  %-8s    %s\n", cs.Component, formatSpan(cs.Span))
					}
					fmt.Fprintf(w, "Temperature:  %s K\n", formatSpan(env.Temperature))
					fmt.Fprintf(w, "Pressure:     %s MPa\n", formatSpan(env.Pressure))
				})
			})
		},
	}

	cmd.Flags().StringToStringVarP(&selection, "comp", "c", nil, "selection as name=value pairs")

	return cmd
}

// parseFractions converts name=value flag pairs to fractions.
func parseFractions(pairs map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(pairs))
	for name, raw := range pairs {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, &gas.Error{Code: gas.ErrCodeInvalidArgument, Message: fmt.Sprintf("component %s: invalid value %q", name, raw)}
		}
		out[name] = v
	}
	return out, nil
}

// parseRanges converts name=min:max flag pairs to ranges.
func parseRanges(pairs map[string]string) (map[string]gas.Range, error) {
	out := make(map[string]gas.Range, len(pairs))
	for name, raw := range pairs {
		lo, hi, ok := strings.Cut(raw, ":")
		if !ok {
			return nil, &gas.Error{Code: gas.ErrCodeInvalidArgument, Message: fmt.Sprintf("component %s: range %q is not min:max", name, raw)}
		}
		minV, err1 := strconv.ParseFloat(strings.TrimSpace(lo), 64)
		maxV, err2 := strconv.ParseFloat(strings.TrimSpace(hi), 64)
		if err1 != nil || err2 != nil {
			return nil, &gas.Error{Code: gas.ErrCodeInvalidArgument, Message: fmt.Sprintf("component %s: invalid range %q", name, raw)}
		}
		out[name] = gas.Range{Min: minV, Max: maxV}
	}
	return out, nil
}

// writeResults prints match results as a table.
func writeResults(w io.Writer, results []match.Result) {
	fmt.Fprintf(w, "%-6s %-9s %-10s %-6s %s\n", "ID", "T (K)", "P (MPa)", "Score", "Composition")
	for _, r := range results {
		fmt.Fprintf(w, "%-6d %-9.2f %-10.4f %-6.1f %s\n",
			r.Record.ID, r.Record.Temperature, r.Record.Pressure, r.Score, formatComposition(r.Record.Fractions))
	}
}

// formatComposition lists the nonzero fractions, largest first.
func formatComposition(c gas.Composition) string {
	comps := make([]gas.Component, 0, gas.NumComponents)
	for _, comp := range gas.AllComponents {
		if c[comp] != 0 {
			comps = append(comps, comp)
		}
	}
	sort.SliceStable(comps, func(i, j int) bool { return c[comps[i]] > c[comps[j]] })

	parts := make([]string, len(comps))
	for i, comp := range comps {
		parts[i] = fmt.Sprintf("%s=%g", comp, c[comp])
	}
	return strings.Join(parts, " ")
}
