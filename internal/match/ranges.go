package match

import (
	"context"
	"fmt"
	"math"

	"github.com/roach88/hydrate/internal/filter"
	"github.com/roach88/hydrate/internal/gas"
	"github.com/roach88/hydrate/internal/store"
)

// rangeSelection is a validated name → Range map.
type rangeSelection struct {
	set    gas.ComponentSet
	ranges [gas.NumComponents]gas.Range
}

func parseRanges(m map[string]gas.Range) (rangeSelection, error) {
	var rs rangeSelection
	for name, r := range m {
		c, err := gas.ParseComponent(name)
		if err != nil {
			return rangeSelection{}, err
		}
		if rs.set.Has(c) {
			return rangeSelection{}, &gas.Error{
				Code:    gas.ErrCodeInvalidArgument,
				Message: fmt.Sprintf("component %s given more than once", c),
			}
		}
		if err := r.Validate(); err != nil {
			return rangeSelection{}, err
		}
		rs.set.Add(c)
		rs.ranges[c] = r
	}
	return rs, nil
}

// predicate bounds selected components by their ranges and every other
// component by absent. temperature may be nil.
func (rs rangeSelection) predicate(absent float64, temperature *float64, window float64) filter.Predicate {
	preds := make([]filter.Predicate, 0, gas.NumComponents+1)
	for _, c := range gas.AllComponents {
		if rs.set.Has(c) {
			r := rs.ranges[c]
			preds = append(preds, filter.Between{Field: filter.Fraction(c), Min: r.Min, Max: r.Max})
		} else {
			preds = append(preds, filter.AtMost{Field: filter.Fraction(c), Max: absent})
		}
	}
	if temperature != nil {
		preds = append(preds, filter.Near(filter.FieldTemperature, *temperature, window))
	}
	return filter.All(preds...)
}

// midpointDistance is the RMS of each selected component's offset from its
// range midpoint, normalized by the half-width and clamped to [0, 1].
func (rs rangeSelection) midpointDistance(rec gas.Record) float64 {
	n := rs.set.Len()
	if n == 0 {
		return 0
	}
	var sum float64
	for _, c := range rs.set.Slice() {
		r := rs.ranges[c]
		half := (r.Max - r.Min) / 2
		if half == 0 {
			continue
		}
		d := (rec.Fractions[c] - (r.Min + half)) / half
		sum += d * d
	}
	return clamp01(math.Sqrt(sum / float64(n)))
}

// MatchRange returns records whose selected components lie inside the given
// ranges, with every unselected component at most Config.AbsentThreshold,
// within Config.RangeTemperatureWindow of temperature. Records closest to
// the range midpoints and the temperature rank first.
func (e *Engine) MatchRange(ctx context.Context, ranges map[string]gas.Range, temperature float64, limit int) ([]Result, error) {
	rs, err := parseRanges(ranges)
	if err != nil {
		return nil, err
	}
	if rs.set.Len() == 0 {
		return nil, &gas.Error{Code: gas.ErrCodeInvalidArgument, Message: "at least one component range is required"}
	}
	if err := checkTemperature(temperature); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > e.cfg.MaxResults {
		limit = e.cfg.MaxResults
	}

	window := e.cfg.RangeTemperatureWindow
	recs, err := e.reader.FindRecords(ctx, rs.predicate(e.cfg.AbsentThreshold, &temperature, window), store.FindOptions{})
	if err != nil {
		return nil, gas.NewStorageError("range match query", err)
	}

	results := make([]Result, 0, len(recs))
	for _, rec := range recs {
		delta := rec.Temperature - temperature
		cd := rs.midpointDistance(rec)
		results = append(results, Result{
			Record:              rec,
			Score:               e.score(cd, temperatureDistance(delta, window)),
			CompositionDistance: cd,
			TemperatureDelta:    delta,
		})
	}

	results = rank(results, limit)
	e.logger.Debug("range match",
		"components", rs.set.Len(),
		"temperature", temperature,
		"results", len(results))
	return results, nil
}

// Estimate is the size of a prospective range query.
type Estimate struct {
	Count   int    `json:"count"`
	Display string `json:"display"`
}

// countDisplay buckets a count for display.
func countDisplay(n int) string {
	switch {
	case n <= 0:
		return "0"
	case n < 10:
		return "<10"
	case n < 100:
		return "10+"
	default:
		return "100+"
	}
}

// EstimateCount counts the records a range query would return, using a
// single COUNT over the conjunction of the ranges. Unselected components are
// bounded by Config.AbsentThreshold. A nil temperature leaves temperature
// unconstrained. With no ranges, only the temperature bound applies.
func (e *Engine) EstimateCount(ctx context.Context, ranges map[string]gas.Range, temperature *float64) (Estimate, error) {
	rs, err := parseRanges(ranges)
	if err != nil {
		return Estimate{}, err
	}
	if temperature != nil {
		if err := checkTemperature(*temperature); err != nil {
			return Estimate{}, err
		}
	}

	var p filter.Predicate
	if rs.set.Len() > 0 {
		p = rs.predicate(e.cfg.AbsentThreshold, temperature, e.cfg.RangeTemperatureWindow)
	} else if temperature != nil {
		p = filter.Near(filter.FieldTemperature, *temperature, e.cfg.RangeTemperatureWindow)
	}

	n, err := e.reader.CountRecords(ctx, p)
	if err != nil {
		return Estimate{}, gas.NewStorageError("estimate count", err)
	}
	return Estimate{Count: n, Display: countDisplay(n)}, nil
}
