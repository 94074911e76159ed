package match

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/roach88/hydrate/internal/filter"
	"github.com/roach88/hydrate/internal/gas"
	"github.com/roach88/hydrate/internal/store"
)

// Reader is the storage surface the match package reads through.
// *store.Store implements it.
type Reader interface {
	FindRecords(ctx context.Context, p filter.Predicate, opts store.FindOptions) ([]gas.Record, error)
	CountRecords(ctx context.Context, p filter.Predicate) (int, error)
	PresenceCounts(ctx context.Context, p filter.Predicate) (store.Presence, error)
	Envelope(ctx context.Context, p filter.Predicate) (store.Envelope, error)
}

// Query asks for records close to a composition at a temperature.
type Query struct {
	// Composition maps component names (any accepted spelling) to mole
	// fractions. At least one component is required.
	Composition map[string]float64 `json:"composition"`

	// Temperature in K.
	Temperature float64 `json:"temperature"`

	// Tolerance is the absolute per-component window. Zero requires
	// Config.AllowExact.
	Tolerance float64 `json:"tolerance"`

	// TemperatureTolerance overrides the derived temperature window (K)
	// when positive.
	TemperatureTolerance float64 `json:"temperature_tolerance,omitempty"`

	// Strict also bounds every unspecified component by Tolerance.
	Strict bool `json:"strict"`

	// Limit caps the result count; zero means Config.MaxResults, which
	// is also the upper bound. A wider tolerance only ever adds
	// candidates, but once the cap truncates the ranking a record seen at
	// a narrower tolerance can fall off the end.
	Limit int `json:"limit,omitempty"`
}

// Result is one ranked match.
type Result struct {
	Record              gas.Record `json:"record"`
	Score               float64    `json:"score"`                // 0..100, 100 = exact
	CompositionDistance float64    `json:"composition_distance"` // normalized, 0..1
	TemperatureDelta    float64    `json:"temperature_delta"`    // record T - query T, K
}

// Engine ranks stored records against composition queries.
//
// Thread-safety: Engine holds no mutable state and is safe for concurrent use.
type Engine struct {
	reader Reader
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates an engine over reader.
func NewEngine(reader Reader, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{reader: reader, cfg: cfg, logger: logger}
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// plan is a validated Query.
type plan struct {
	sel    gas.Selection
	temp   float64
	tol    float64
	window float64
	strict bool
	limit  int
}

// prepare validates everything about q except its temperature, so that
// BatchMatch can fail up front and then vary only the temperature.
func (e *Engine) prepare(q Query) (plan, error) {
	sel, err := gas.ParseSelection(q.Composition)
	if err != nil {
		return plan{}, err
	}
	if sel.Set.Len() == 0 {
		return plan{}, &gas.Error{Code: gas.ErrCodeInvalidArgument, Message: "composition must name at least one component"}
	}

	tol := q.Tolerance
	switch {
	case math.IsNaN(tol) || math.IsInf(tol, 0) || tol < 0:
		return plan{}, &gas.Error{Code: gas.ErrCodeInvalidTolerance, Message: fmt.Sprintf("tolerance must be a finite non-negative number, got %v", tol)}
	case tol == 0 && !e.cfg.AllowExact:
		return plan{}, &gas.Error{Code: gas.ErrCodeInvalidTolerance, Message: "zero tolerance requires match.allow_exact"}
	}

	tt := q.TemperatureTolerance
	if math.IsNaN(tt) || math.IsInf(tt, 0) || tt < 0 {
		return plan{}, &gas.Error{Code: gas.ErrCodeInvalidTolerance, Message: fmt.Sprintf("temperature tolerance must be a finite non-negative number, got %v", tt)}
	}
	window := tt
	if window == 0 {
		window = tol * e.cfg.TemperatureScale
	}

	limit := q.Limit
	if limit <= 0 || limit > e.cfg.MaxResults {
		limit = e.cfg.MaxResults
	}

	return plan{sel: sel, tol: tol, window: window, strict: q.Strict, limit: limit}, nil
}

func checkTemperature(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return &gas.Error{Code: gas.ErrCodeInvalidArgument, Message: fmt.Sprintf("temperature must be finite, got %v", t)}
	}
	return nil
}

// predicate builds the storage filter for a plan.
func (p plan) predicate() filter.Predicate {
	preds := make([]filter.Predicate, 0, gas.NumComponents+1)
	for _, c := range gas.AllComponents {
		switch {
		case p.sel.Set.Has(c):
			preds = append(preds, filter.Near(filter.Fraction(c), p.sel.Values[c], p.tol))
		case p.strict:
			preds = append(preds, filter.AtMost{Field: filter.Fraction(c), Max: p.tol})
		}
	}
	preds = append(preds, filter.Near(filter.FieldTemperature, p.temp, p.window))
	return filter.All(preds...)
}

// compositionDistance is ‖Δx‖₂ / tol over the components the plan
// constrains, clamped to [0, 1]. Unspecified components compare against 0.
func (p plan) compositionDistance(rec gas.Record) float64 {
	if p.tol == 0 {
		return 0
	}
	var sum float64
	for _, c := range gas.AllComponents {
		if !p.sel.Set.Has(c) && !p.strict {
			continue
		}
		d := rec.Fractions[c] - p.sel.Values[c]
		sum += d * d
	}
	return clamp01(math.Sqrt(sum) / p.tol)
}

func (e *Engine) score(compDist, tempDist float64) float64 {
	wc, wt := e.cfg.CompositionWeight, e.cfg.TemperatureWeight
	return 100 * (1 - (wc*compDist+wt*tempDist)/(wc+wt))
}

func temperatureDistance(delta, window float64) float64 {
	if window == 0 {
		return 0
	}
	return clamp01(math.Abs(delta) / window)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// rank sorts by score desc, |ΔT| asc, record id asc and truncates.
func rank(results []Result, limit int) []Result {
	slices.SortFunc(results, func(a, b Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(math.Abs(a.TemperatureDelta), math.Abs(b.TemperatureDelta)); c != 0 {
			return c
		}
		return cmp.Compare(a.Record.ID, b.Record.ID)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (e *Engine) run(ctx context.Context, p plan) ([]Result, error) {
	recs, err := e.reader.FindRecords(ctx, p.predicate(), store.FindOptions{})
	if err != nil {
		return nil, gas.NewStorageError("match query", err)
	}

	results := make([]Result, 0, len(recs))
	for _, rec := range recs {
		delta := rec.Temperature - p.temp
		cd := p.compositionDistance(rec)
		results = append(results, Result{
			Record:              rec,
			Score:               e.score(cd, temperatureDistance(delta, p.window)),
			CompositionDistance: cd,
			TemperatureDelta:    delta,
		})
	}
	return rank(results, p.limit), nil
}

// Match returns records within tolerance of q, best first.
// Returns an empty slice (not an error) when nothing matches.
func (e *Engine) Match(ctx context.Context, q Query) ([]Result, error) {
	p, err := e.prepare(q)
	if err != nil {
		return nil, err
	}
	if err := checkTemperature(q.Temperature); err != nil {
		return nil, err
	}
	p.temp = q.Temperature

	results, err := e.run(ctx, p)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("match",
		"components", p.sel.Set.Len(),
		"temperature", p.temp,
		"tolerance", p.tol,
		"window", p.window,
		"strict", p.strict,
		"results", len(results))
	return results, nil
}

// Best returns the single best match. ok is false when nothing matches.
func (e *Engine) Best(ctx context.Context, q Query) (Result, bool, error) {
	q.Limit = 1
	results, err := e.Match(ctx, q)
	if err != nil {
		return Result{}, false, err
	}
	if len(results) == 0 {
		return Result{}, false, nil
	}
	return results[0], true, nil
}
