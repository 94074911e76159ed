package match

import (
	"context"
	"log/slog"

	"github.com/roach88/hydrate/internal/filter"
	"github.com/roach88/hydrate/internal/gas"
)

// Resolver reports what data exists for a partial composition.
//
// A selection maps component names to values. A positive value restricts
// that component to within Config.ResolverTolerance of it; zero or a
// negative value only requires the component to be present (x > 0).
//
// Thread-safety: Resolver holds no mutable state and is safe for concurrent use.
type Resolver struct {
	reader Reader
	cfg    Config
	logger *slog.Logger
}

// NewResolver creates a resolver over reader.
func NewResolver(reader Reader, cfg Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{reader: reader, cfg: cfg, logger: logger}
}

// selectionPredicates filters each selected component by its value or by
// presence.
func (r *Resolver) selectionPredicates(sel gas.Selection) []filter.Predicate {
	preds := make([]filter.Predicate, 0, gas.NumComponents)
	for _, c := range sel.Set.Slice() {
		if v := sel.Values[c]; v > 0 {
			preds = append(preds, filter.Near(filter.Fraction(c), v, r.cfg.ResolverTolerance))
		} else {
			preds = append(preds, filter.Positive{Field: filter.Fraction(c)})
		}
	}
	return preds
}

// parse resolves selection names. ok is false when a name is unknown, which
// callers answer with an empty result rather than an error.
func parse(selected map[string]float64) (sel gas.Selection, ok bool, err error) {
	sel, err = gas.ParseSelection(selected)
	if gas.IsUnknownComponent(err) {
		return gas.Selection{}, false, nil
	}
	if err != nil {
		return gas.Selection{}, false, err
	}
	return sel, true, nil
}

// AvailableComponents returns the components not yet selected that are
// nonzero in at least one record matching the selection.
//
// An empty selection returns all seven components without touching storage.
// An unknown component name yields an empty set and no error.
func (r *Resolver) AvailableComponents(ctx context.Context, selected map[string]float64) (gas.ComponentSet, error) {
	if len(selected) == 0 {
		return gas.FullSet(), nil
	}
	sel, ok, err := parse(selected)
	if err != nil || !ok {
		return gas.ComponentSet{}, err
	}

	presence, err := r.reader.PresenceCounts(ctx, filter.All(r.selectionPredicates(sel)...))
	if err != nil {
		return gas.ComponentSet{}, gas.NewStorageError("available components", err)
	}

	var out gas.ComponentSet
	for _, c := range gas.AllComponents {
		if !sel.Set.Has(c) && presence.Nonzero[c] > 0 {
			out.Add(c)
		}
	}

	r.logger.Debug("available components",
		"selected", sel.Set.Len(),
		"records", presence.Records,
		"available", out.Len())
	return out, nil
}

// ComponentSpan is the observed range of one selected component.
type ComponentSpan struct {
	Component gas.Component `json:"component"`
	Span      gas.Span      `json:"span"`
}

// Envelope is the Ranges answer. A Span with Valid=false means no record
// matched; its bounds are NaN.
type Envelope struct {
	Records     int             `json:"records"`
	Components  []ComponentSpan `json:"components"`
	Temperature gas.Span        `json:"temperature"`
	Pressure    gas.Span        `json:"pressure"`
}

func emptyEnvelope() Envelope {
	return Envelope{
		Components:  []ComponentSpan{},
		Temperature: gas.EmptySpan(),
		Pressure:    gas.EmptySpan(),
	}
}

// Ranges reports, over records matching the selection with every
// unselected component at most Config.AbsentThreshold, the min/max of each
// selected component, of temperature and of pressure, plus the record count.
//
// An empty selection reports the envelope of the whole table. An unknown
// component name yields an envelope with every span invalid.
func (r *Resolver) Ranges(ctx context.Context, selected map[string]float64) (Envelope, error) {
	sel, ok, err := parse(selected)
	if err != nil {
		return Envelope{}, err
	}
	if !ok {
		return emptyEnvelope(), nil
	}

	var p filter.Predicate
	if sel.Set.Len() > 0 {
		preds := r.selectionPredicates(sel)
		for _, c := range gas.AllComponents {
			if !sel.Set.Has(c) {
				preds = append(preds, filter.AtMost{Field: filter.Fraction(c), Max: r.cfg.AbsentThreshold})
			}
		}
		p = filter.All(preds...)
	}

	env, err := r.reader.Envelope(ctx, p)
	if err != nil {
		return Envelope{}, gas.NewStorageError("ranges", err)
	}

	out := Envelope{
		Records:     env.Records,
		Components:  make([]ComponentSpan, 0, sel.Set.Len()),
		Temperature: env.Temperature,
		Pressure:    env.Pressure,
	}
	for _, c := range sel.Set.Slice() {
		out.Components = append(out.Components, ComponentSpan{Component: c, Span: env.Fractions[c]})
	}
	return out, nil
}
