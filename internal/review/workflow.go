package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/roach88/hydrate/internal/gas"
	"github.com/roach88/hydrate/internal/store"
)

// Workflow runs the quarantine state machine over a store.
//
// Thread-safety: Workflow is safe for concurrent use. Operations on the same
// group serialize on a per-group lock; different groups run concurrently.
type Workflow struct {
	store   *store.Store
	cfg     Config
	logger  *slog.Logger
	batches BatchIDGenerator
	locks   *groupLocks
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = l
	}
}

// WithBatchIDGenerator replaces the UUIDv7 move-run id generator.
func WithBatchIDGenerator(g BatchIDGenerator) Option {
	return func(w *Workflow) {
		w.batches = g
	}
}

// NewWorkflow creates a workflow over s.
func NewWorkflow(s *store.Store, cfg Config, opts ...Option) *Workflow {
	w := &Workflow{
		store:   s,
		cfg:     cfg,
		logger:  slog.Default(),
		batches: UUIDv7Generator{},
		locks:   newGroupLocks(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Survivor links an approved entry to the record reinserted from it.
type Survivor struct {
	EntryID  int64 `json:"entry_id"`
	RecordID int64 `json:"record_id"`
}

// Outcome reports the result of one group operation.
type Outcome struct {
	GroupID string           `json:"group_id"`
	Status  gas.ReviewStatus `json:"status,omitempty"` // status after the operation
	NoOp    bool             `json:"no_op"`            // group was already in the target state

	// Survivors lists the reinserted records of an approved group.
	Survivors []Survivor `json:"survivors,omitempty"`

	// Removed lists the reinserted records a restore deleted.
	Removed []int64 `json:"removed,omitempty"`

	Err error `json:"-"`
}

// AlreadyApproved reports whether an Approve found the group approved.
func (o Outcome) AlreadyApproved() bool {
	return o.NoOp && o.Status == gas.StatusApproved
}

// groupStatus returns the common status of a group's entries.
func groupStatus(groupID string, entries []gas.PendingEntry) (gas.ReviewStatus, error) {
	if len(entries) == 0 {
		return "", gas.NewStateError(groupID, "group has no entries")
	}
	status := entries[0].Status
	for _, e := range entries[1:] {
		if e.Status != status {
			return "", gas.NewStateError(groupID, fmt.Sprintf("group entries disagree on status (%s, %s)", status, e.Status))
		}
	}
	return status, nil
}

// liftStorage converts store errors into typed errors. Typed errors pass
// through unchanged.
func liftStorage(op, groupID string, err error) error {
	if err == nil {
		return nil
	}
	var typed *gas.Error
	if errors.As(err, &typed) {
		return err
	}
	se := gas.NewStorageError(op, err)
	se.GroupID = groupID
	return se
}

// survivorsOf reads survivor links off approved entries.
func survivorsOf(entries []gas.PendingEntry) []Survivor {
	out := []Survivor{}
	for _, e := range entries {
		if e.ApprovedRecordID != nil {
			out = append(out, Survivor{EntryID: e.ID, RecordID: *e.ApprovedRecordID})
		}
	}
	return out
}

// chooseSurvivors applies the approval policy to a pending group.
func (w *Workflow) chooseSurvivors(groupID string, entries []gas.PendingEntry, winners []int64) ([]gas.PendingEntry, error) {
	byID := make(map[int64]gas.PendingEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	winners = slices.Clone(winners)
	slices.Sort(winners)
	winners = slices.Compact(winners)

	chosen := make([]gas.PendingEntry, 0, len(winners))
	for _, id := range winners {
		e, ok := byID[id]
		if !ok {
			return nil, &gas.Error{
				Code:    gas.ErrCodeInvalidArgument,
				Message: "winner is not an entry of this group",
				GroupID: groupID,
				EntryID: id,
			}
		}
		chosen = append(chosen, e)
	}

	switch w.cfg.ApprovalPolicy {
	case PolicyMultiple:
		if len(chosen) == 0 {
			return entries, nil
		}
		return chosen, nil

	default: // PolicySingle
		if len(chosen) > 1 {
			return nil, &gas.Error{
				Code:    gas.ErrCodeInvalidArgument,
				Message: fmt.Sprintf("approval policy %q allows one winner, got %d", PolicySingle, len(chosen)),
				GroupID: groupID,
			}
		}
		if len(chosen) == 1 {
			return chosen, nil
		}
		// No winner: only a group whose entries agree on pressure can be
		// approved, keeping the lowest entry id.
		for _, e := range entries[1:] {
			if e.Pressure != entries[0].Pressure {
				return nil, &gas.Error{
					Code:    gas.ErrCodeInvalidArgument,
					Message: "winner required: entries disagree on pressure",
					GroupID: groupID,
				}
			}
		}
		return entries[:1], nil
	}
}

// requireVacantSignature fails when the main table already holds a record
// in the group's signature bucket, such as one imported while the group was
// pending. Reinserting a survivor next to it would recreate the duplicate.
func requireVacantSignature(ctx context.Context, tx *store.Tx, groupID string, e gas.PendingEntry) error {
	n, err := tx.CountSignature(ctx, e.Snapshot().Signature())
	if err != nil {
		return err
	}
	if n > 0 {
		return gas.NewStateError(groupID, fmt.Sprintf("%d record(s) with this composition and temperature are already in the main table", n))
	}
	return nil
}

// Approve reinserts the surviving entries' snapshots as new records and
// marks every entry of the group approved.
//
// Approving an approved group is a no-op reporting the existing survivors.
// Approving a rejected, mixed or empty group fails with
// INVALID_STATE_TRANSITION, as does a single-policy approval when the main
// table already holds a record with the group's signature.
func (w *Workflow) Approve(ctx context.Context, groupID string, winners []int64, reviewer string) (Outcome, error) {
	unlock := w.locks.lock(groupID)
	defer unlock()

	out := Outcome{GroupID: groupID, Status: gas.StatusApproved}
	err := w.store.WithTx(ctx, func(tx *store.Tx) error {
		entries, err := tx.GroupEntries(ctx, groupID)
		if err != nil {
			return err
		}
		status, err := groupStatus(groupID, entries)
		if err != nil {
			return err
		}

		switch status {
		case gas.StatusApproved:
			out.NoOp = true
			out.Survivors = survivorsOf(entries)
			return nil
		case gas.StatusRejected:
			return gas.NewStateError(groupID, "cannot approve a rejected group; restore it first")
		}

		survivors, err := w.chooseSurvivors(groupID, entries, winners)
		if err != nil {
			return err
		}
		if w.cfg.ApprovalPolicy != PolicyMultiple {
			if err := requireVacantSignature(ctx, tx, groupID, entries[0]); err != nil {
				return err
			}
		}
		keep := make(map[int64]bool, len(survivors))
		for _, e := range survivors {
			keep[e.ID] = true
		}

		out.Survivors = make([]Survivor, 0, len(survivors))
		for _, e := range entries {
			rv := store.Review{Status: gas.StatusApproved, ReviewedBy: reviewer}
			if keep[e.ID] {
				recID, err := tx.InsertRecord(ctx, e.Snapshot())
				if err != nil {
					return err
				}
				rv.ApprovedRecordID = &recID
				out.Survivors = append(out.Survivors, Survivor{EntryID: e.ID, RecordID: recID})
			}
			if err := tx.SetReview(ctx, e.ID, rv); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Outcome{}, liftStorage("approve", groupID, err)
	}

	if out.NoOp {
		w.logger.Debug("group already approved", "group", groupID)
	} else {
		w.logger.Info("group approved",
			"group", groupID,
			"survivors", len(out.Survivors),
			"policy", string(w.cfg.ApprovalPolicy),
			"reviewer", reviewer)
	}
	return out, nil
}

// Reject marks every entry of a pending group rejected. Nothing is
// reinserted. Rejecting a rejected group is a no-op; rejecting an approved
// group fails with INVALID_STATE_TRANSITION.
func (w *Workflow) Reject(ctx context.Context, groupID, reviewer string) (Outcome, error) {
	unlock := w.locks.lock(groupID)
	defer unlock()

	out := Outcome{GroupID: groupID, Status: gas.StatusRejected}
	err := w.store.WithTx(ctx, func(tx *store.Tx) error {
		entries, err := tx.GroupEntries(ctx, groupID)
		if err != nil {
			return err
		}
		status, err := groupStatus(groupID, entries)
		if err != nil {
			return err
		}

		switch status {
		case gas.StatusRejected:
			out.NoOp = true
			return nil
		case gas.StatusApproved:
			return gas.NewStateError(groupID, "cannot reject an approved group; restore it first")
		}

		for _, e := range entries {
			if err := tx.SetReview(ctx, e.ID, store.Review{Status: gas.StatusRejected, ReviewedBy: reviewer}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Outcome{}, liftStorage("reject", groupID, err)
	}

	if !out.NoOp {
		w.logger.Info("group rejected", "group", groupID, "reviewer", reviewer)
	}
	return out, nil
}

// Restore returns an approved or rejected group to pending, deleting any
// records its approval reinserted and clearing review metadata. Restoring a
// pending group is a no-op.
func (w *Workflow) Restore(ctx context.Context, groupID string) (Outcome, error) {
	unlock := w.locks.lock(groupID)
	defer unlock()

	out := Outcome{GroupID: groupID, Status: gas.StatusPending}
	err := w.store.WithTx(ctx, func(tx *store.Tx) error {
		entries, err := tx.GroupEntries(ctx, groupID)
		if err != nil {
			return err
		}
		status, err := groupStatus(groupID, entries)
		if err != nil {
			return err
		}
		if status == gas.StatusPending {
			out.NoOp = true
			return nil
		}

		out.Removed = []int64{}
		for _, e := range entries {
			if e.ApprovedRecordID != nil {
				recID := *e.ApprovedRecordID
				if err := tx.DeleteRecord(ctx, recID); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return &gas.Error{
							Code:     gas.ErrCodeInvalidStateTransition,
							Message:  "reinserted record is no longer in the main table",
							GroupID:  groupID,
							RecordID: recID,
							EntryID:  e.ID,
						}
					}
					return err
				}
				out.Removed = append(out.Removed, recID)
			}
			if err := tx.SetReview(ctx, e.ID, store.Review{Status: gas.StatusPending}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Outcome{}, liftStorage("restore", groupID, err)
	}

	if !out.NoOp {
		w.logger.Info("group restored", "group", groupID, "removed_records", len(out.Removed))
	}
	return out, nil
}

// CorrectPressure replaces the pressure of a pending entry. The pressure at
// quarantine time is kept as the entry's original pressure.
func (w *Workflow) CorrectPressure(ctx context.Context, entryID int64, pressure float64, reviewer string) (gas.PendingEntry, error) {
	if math.IsNaN(pressure) || math.IsInf(pressure, 0) || pressure <= 0 {
		return gas.PendingEntry{}, &gas.Error{
			Code:    gas.ErrCodeInvalidArgument,
			Message: fmt.Sprintf("pressure must be a positive finite number, got %v", pressure),
			EntryID: entryID,
		}
	}

	// The group id is immutable, so it can be read before taking the lock.
	entry, err := w.store.GetPendingEntry(ctx, entryID)
	if err != nil {
		return gas.PendingEntry{}, entryError(entryID, err)
	}

	unlock := w.locks.lock(entry.GroupID)
	defer unlock()

	var updated gas.PendingEntry
	err = w.store.WithTx(ctx, func(tx *store.Tx) error {
		current, err := tx.GetPendingEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if current.Status != gas.StatusPending {
			return &gas.Error{
				Code:    gas.ErrCodeInvalidStateTransition,
				Message: fmt.Sprintf("cannot correct a %s entry", current.Status),
				GroupID: current.GroupID,
				EntryID: entryID,
			}
		}
		if err := tx.UpdatePendingPressure(ctx, entryID, pressure); err != nil {
			return err
		}
		updated, err = tx.GetPendingEntry(ctx, entryID)
		return err
	})
	if err != nil {
		return gas.PendingEntry{}, entryError(entryID, err)
	}

	w.logger.Info("pressure corrected",
		"group", updated.GroupID,
		"entry", entryID,
		"from", updated.OriginalPressure,
		"to", pressure,
		"reviewer", reviewer)
	return updated, nil
}

func entryError(entryID int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &gas.Error{Code: gas.ErrCodeNotFound, Message: "pending entry not found", EntryID: entryID, Err: err}
	}
	var typed *gas.Error
	if errors.As(err, &typed) {
		return err
	}
	se := gas.NewStorageError("correct pressure", err)
	se.EntryID = entryID
	return se
}
