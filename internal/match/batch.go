package match

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/hydrate/internal/gas"
)

// BatchResult is the outcome for one temperature of a BatchMatch.
type BatchResult struct {
	Temperature float64 `json:"temperature"`
	Match       *Result `json:"match,omitempty"`
	Found       bool    `json:"found"`
	Err         error   `json:"-"`
}

// BatchMatch finds the best match of q's composition at each temperature.
// q.Temperature is ignored.
//
// The result has exactly len(temperatures) entries in input order. Invalid
// composition or tolerance fails the whole call before any storage access.
// Per-temperature failures are recorded on their BatchResult and summarized
// in a *gas.PartialBatchError returned alongside the full result slice.
func (e *Engine) BatchMatch(ctx context.Context, q Query, temperatures []float64) ([]BatchResult, error) {
	base, err := e.prepare(q)
	if err != nil {
		return nil, err
	}
	base.limit = 1

	results := make([]BatchResult, len(temperatures))
	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)

	for i, t := range temperatures {
		results[i].Temperature = t
		g.Go(func() error {
			// Item failures never cancel siblings; they are collected below.
			if err := checkTemperature(t); err != nil {
				results[i].Err = err
				return nil
			}
			p := base
			p.temp = t
			ranked, err := e.run(ctx, p)
			if err != nil {
				results[i].Err = err
				return nil
			}
			if len(ranked) > 0 {
				results[i].Match = &ranked[0]
				results[i].Found = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var failed []gas.ItemError
	found := 0
	for i, r := range results {
		if r.Err != nil {
			failed = append(failed, gas.ItemError{
				Index: i,
				Key:   strconv.FormatFloat(r.Temperature, 'g', -1, 64),
				Err:   r.Err,
			})
		} else if r.Found {
			found++
		}
	}

	e.logger.Debug("batch match",
		"temperatures", len(temperatures),
		"found", found,
		"failed", len(failed))

	if len(failed) > 0 {
		return results, &gas.PartialBatchError{Total: len(temperatures), Items: failed}
	}
	return results, nil
}
