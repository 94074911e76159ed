package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/hydrate/internal/gas"
	"github.com/roach88/hydrate/internal/store"
)

// MoveOutcome is the result of moving one group.
type MoveOutcome struct {
	Key     string  `json:"key"`
	GroupID string  `json:"group_id,omitempty"` // assigned on success
	Entries []int64 `json:"entries,omitempty"`  // pending entry ids, member order
	Err     error   `json:"-"`
}

// MoveReport summarizes a MoveToReview run.
type MoveReport struct {
	BatchID string        `json:"batch_id"`
	Moved   int           `json:"moved"`
	Groups  []MoveOutcome `json:"groups"`
}

// MoveToReview quarantines each group in its own transaction: it allocates
// the next group id, deletes every member from the main table and inserts a
// pending snapshot per member. A group whose members changed or vanished
// since the scan rolls back alone with INVALID_STATE_TRANSITION.
//
// The report lists every group in input order. When any group failed, the
// report is returned together with a *gas.PartialBatchError.
func (w *Workflow) MoveToReview(ctx context.Context, groups []Group, reviewer string) (MoveReport, error) {
	report := MoveReport{
		BatchID: w.batches.Generate(),
		Groups:  make([]MoveOutcome, len(groups)),
	}

	var failed []gas.ItemError
	for i, g := range groups {
		out := w.moveGroup(ctx, g, report.BatchID)
		report.Groups[i] = out
		if out.Err != nil {
			failed = append(failed, gas.ItemError{Index: i, Key: g.Key, Err: out.Err})
			w.logger.Warn("group move failed", "key", g.Key, "error", out.Err)
			continue
		}
		report.Moved++
		w.logger.Info("group moved",
			"group", out.GroupID,
			"key", g.Key,
			"entries", len(out.Entries),
			"batch", report.BatchID,
			"reviewer", reviewer)
	}

	if len(failed) > 0 {
		return report, &gas.PartialBatchError{Total: len(groups), Items: failed}
	}
	return report, nil
}

func (w *Workflow) moveGroup(ctx context.Context, g Group, batchID string) MoveOutcome {
	out := MoveOutcome{Key: g.Key}
	if len(g.Members) == 0 {
		out.Err = &gas.Error{Code: gas.ErrCodeInvalidArgument, Message: "group has no members"}
		return out
	}

	// Moves of the same signature serialize; the id is unknown until the
	// transaction allocates it.
	unlock := w.locks.lock("key:" + g.Key)
	defer unlock()

	var groupID string
	var entryIDs []int64
	err := w.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		if groupID, err = tx.NextGroupID(ctx); err != nil {
			return err
		}

		entryIDs = make([]int64, 0, len(g.Members))
		for _, m := range g.Members {
			// Snapshot the row as it is now, not as it was scanned.
			rec, err := tx.GetRecord(ctx, m.ID)
			if errors.Is(err, store.ErrNotFound) {
				return &gas.Error{
					Code:     gas.ErrCodeInvalidStateTransition,
					Message:  "record is no longer in the main table",
					RecordID: m.ID,
				}
			}
			if err != nil {
				return err
			}
			if rec.Signature() != g.Signature {
				return &gas.Error{
					Code:     gas.ErrCodeInvalidStateTransition,
					Message:  "record changed since the scan",
					RecordID: m.ID,
				}
			}
			if err := tx.DeleteRecord(ctx, m.ID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return &gas.Error{
						Code:     gas.ErrCodeInvalidStateTransition,
						Message:  "record delete affected no rows",
						RecordID: m.ID,
					}
				}
				return err
			}

			origID := rec.ID
			entryID, err := tx.InsertPending(ctx, gas.PendingEntry{
				GroupID:          groupID,
				GroupKey:         g.Key,
				OriginalID:       &origID,
				BatchID:          batchID,
				Temperature:      rec.Temperature,
				Fractions:        rec.Fractions,
				Pressure:         rec.Pressure,
				OriginalPressure: rec.Pressure,
			})
			if err != nil {
				return err
			}
			entryIDs = append(entryIDs, entryID)
		}
		return nil
	})
	if err != nil {
		out.Err = liftStorage("move to review", "", err)
		return out
	}

	out.GroupID = groupID
	out.Entries = entryIDs
	return out
}

// PendingGroups lists review groups. PerPage is capped at Config.MaxPerPage.
func (w *Workflow) PendingGroups(ctx context.Context, f store.GroupFilter) (store.GroupPage, error) {
	if f.Status != "" && !f.Status.Valid() {
		return store.GroupPage{}, &gas.Error{Code: gas.ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown status %q", f.Status)}
	}
	if f.PerPage <= 0 || f.PerPage > w.cfg.MaxPerPage {
		f.PerPage = w.cfg.MaxPerPage
	}
	page, err := w.store.ListGroups(ctx, f)
	if err != nil {
		return store.GroupPage{}, gas.NewStorageError("list groups", err)
	}
	return page, nil
}

// Group returns every entry of a review group ordered by id.
func (w *Workflow) Group(ctx context.Context, groupID string) ([]gas.PendingEntry, error) {
	entries, err := w.store.GroupEntries(ctx, groupID)
	if err != nil {
		return nil, liftStorage("group entries", groupID, err)
	}
	if len(entries) == 0 {
		return nil, &gas.Error{Code: gas.ErrCodeNotFound, Message: "review group not found", GroupID: groupID}
	}
	return entries, nil
}

// Stats returns quarantine counts.
func (w *Workflow) Stats(ctx context.Context) (store.ReviewCounts, error) {
	counts, err := w.store.ReviewCounts(ctx)
	if err != nil {
		return store.ReviewCounts{}, gas.NewStorageError("review stats", err)
	}
	return counts, nil
}
