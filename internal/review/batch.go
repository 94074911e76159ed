package review

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/hydrate/internal/gas"
)

// ApproveRequest names a group and its designated winners.
type ApproveRequest struct {
	GroupID string  `json:"group_id"`
	Winners []int64 `json:"winners,omitempty"`
}

// ApproveBatch approves each group independently.
// See runBatch for the result contract.
func (w *Workflow) ApproveBatch(ctx context.Context, reqs []ApproveRequest, reviewer string) ([]Outcome, error) {
	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.GroupID
	}
	return w.runBatch(ctx, ids, func(ctx context.Context, i int) (Outcome, error) {
		return w.Approve(ctx, reqs[i].GroupID, reqs[i].Winners, reviewer)
	})
}

// RejectBatch rejects each group independently.
func (w *Workflow) RejectBatch(ctx context.Context, groupIDs []string, reviewer string) ([]Outcome, error) {
	return w.runBatch(ctx, groupIDs, func(ctx context.Context, i int) (Outcome, error) {
		return w.Reject(ctx, groupIDs[i], reviewer)
	})
}

// RestoreBatch restores each group independently.
func (w *Workflow) RestoreBatch(ctx context.Context, groupIDs []string) ([]Outcome, error) {
	return w.runBatch(ctx, groupIDs, func(ctx context.Context, i int) (Outcome, error) {
		return w.Restore(ctx, groupIDs[i])
	})
}

// runBatch runs op for every group concurrently, bounded by Config.Workers.
// It returns one Outcome per group in input order; a failed group's Outcome
// carries its GroupID and Err. A *gas.PartialBatchError accompanies the
// outcomes when any group failed. Groups never roll each other back.
func (w *Workflow) runBatch(ctx context.Context, groupIDs []string, op func(context.Context, int) (Outcome, error)) ([]Outcome, error) {
	outcomes := make([]Outcome, len(groupIDs))

	var g errgroup.Group
	g.SetLimit(w.cfg.Workers)
	for i := range groupIDs {
		g.Go(func() error {
			// A failed group is recorded on its Outcome and never
			// cancels its siblings.
			out, err := op(ctx, i)
			if err != nil {
				out = Outcome{GroupID: groupIDs[i], Err: err}
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var failed []gas.ItemError
	for i, out := range outcomes {
		if out.Err != nil {
			failed = append(failed, gas.ItemError{Index: i, Key: out.GroupID, Err: out.Err})
		}
	}
	if len(failed) > 0 {
		return outcomes, &gas.PartialBatchError{Total: len(groupIDs), Items: failed}
	}
	return outcomes, nil
}
