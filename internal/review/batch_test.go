package review

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hydrate/internal/gas"
)

func TestApproveBatch_PartialFailure(t *testing.T) {
	s := createTestStore(t)
	w := newTestWorkflow(t, s, PolicySingle)
	ctx := context.Background()
	seed(t, s,
		methaneEthane(275, 2.5), methaneEthane(275, 3.1),
		pureMethane(280, 4.0), pureMethane(280, 4.4),
	)
	ids := quarantineAll(t, s, w)

	reqs := []ApproveRequest{
		{GroupID: ids[0], Winners: []int64{entriesOf(t, s, ids[0])[0].ID}},
		{GroupID: "G0404"},
		{GroupID: ids[1]}, // disagreeing pressures, no winner
	}
	outcomes, err := w.ApproveBatch(ctx, reqs, "alice")
	require.Error(t, err)
	require.Len(t, outcomes, 3)

	var pbe *gas.PartialBatchError
	require.True(t, errors.As(err, &pbe))
	assert.Equal(t, 3, pbe.Total)
	require.Len(t, pbe.Items, 2)
	assert.Equal(t, 1, pbe.Items[0].Index)
	assert.Equal(t, "G0404", pbe.Items[0].Key)
	assert.Equal(t, 2, pbe.Items[1].Index)

	assert.NoError(t, outcomes[0].Err)
	assert.Len(t, outcomes[0].Survivors, 1)
	assert.True(t, gas.IsInvalidState(outcomes[1].Err))
	assert.Equal(t, gas.ErrCodeInvalidArgument, gas.CodeOf(outcomes[2].Err))
	assert.Equal(t, ids[1], outcomes[2].GroupID)

	// The failed group is untouched; the successful one committed.
	for _, e := range entriesOf(t, s, ids[1]) {
		assert.Equal(t, gas.StatusPending, e.Status)
	}
	for _, e := range entriesOf(t, s, ids[0]) {
		assert.Equal(t, gas.StatusApproved, e.Status)
	}
}

func TestRejectAndRestoreBatch(t *testing.T) {
	s := createTestStore(t)
	w := newTestWorkflow(t, s, PolicySingle)
	ctx := context.Background()
	seed(t, s,
		methaneEthane(275, 2.5), methaneEthane(275, 3.1),
		pureMethane(280, 4.0), pureMethane(280, 4.4),
		pureMethane(290, 8.0), pureMethane(290, 8.8),
	)
	ids := quarantineAll(t, s, w)
	require.Len(t, ids, 3)

	outcomes, err := w.RejectBatch(ctx, ids, "bob")
	require.NoError(t, err)
	for i, out := range outcomes {
		assert.Equal(t, ids[i], out.GroupID)
		assert.Equal(t, gas.StatusRejected, out.Status)
	}

	outcomes, err = w.RestoreBatch(ctx, append(ids, "G0404"))
	require.Error(t, err)
	require.Len(t, outcomes, 4)
	assert.True(t, gas.IsPartialBatch(err))
	for _, out := range outcomes[:3] {
		assert.NoError(t, out.Err)
		assert.Equal(t, gas.StatusPending, out.Status)
	}

	stats, err := w.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.PendingGroups)
	assert.Equal(t, 0, w.locks.size())
}
