package store_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/cctp-orchestrator/store"
	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

func transfer(id string, stage types.Stage, updated time.Time) *types.TransferState {
	return &types.TransferState{
		ID:      id,
		Stage:   stage,
		Amount:  big.NewInt(1_000_000),
		Created: updated,
		Updated: updated,
	}
}

func TestMemoryStoreCreateLoadSave(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	now := time.Now()

	st := transfer("a", types.StageApprove, now)
	require.NoError(t, s.Create(ctx, st))
	require.ErrorIs(t, s.Create(ctx, st), types.ErrTransferExists)

	// mutating the caller's copy must not leak into the store
	st.Amount.SetInt64(5)
	loaded, err := s.Load(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), loaded.Amount.Int64())

	loaded.Stage = types.StageBurn
	require.NoError(t, s.Save(ctx, loaded))
	reloaded, err := s.Load(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, types.StageBurn, reloaded.Stage)

	_, err = s.Load(ctx, "missing")
	require.ErrorIs(t, err, types.ErrTransferNotFound)
	require.ErrorIs(t, s.Save(ctx, transfer("missing", types.StageBurn, now)), types.ErrTransferNotFound)
}

func TestMemoryStoreListOrdered(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	base := time.Now()

	require.NoError(t, s.Create(ctx, transfer("late", types.StageApprove, base.Add(time.Minute))))
	require.NoError(t, s.Create(ctx, transfer("early", types.StageApprove, base)))

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "early", all[0].ID)
	require.Equal(t, "late", all[1].ID)
}

func TestMemoryStoreDeleteTerminal(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	old := time.Now().Add(-2 * time.Hour)
	recent := time.Now()

	require.NoError(t, s.Create(ctx, transfer("old-done", types.StageDone, old)))
	require.NoError(t, s.Create(ctx, transfer("old-failed", types.StageFailed, old)))
	require.NoError(t, s.Create(ctx, transfer("old-active", types.StageAwaitingAttestation, old)))
	require.NoError(t, s.Create(ctx, transfer("new-done", types.StageDone, recent)))

	ids, err := s.DeleteTerminal(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, []string{"old-done", "old-failed"}, ids)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
