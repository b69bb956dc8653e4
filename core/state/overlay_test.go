package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"microlend/core/types"
	"microlend/storage"
)

func TestOverlayCommitAppliesStagedWrites(t *testing.T) {
	db := storage.NewMemDB()
	overlay := NewOverlay(db)
	mgr := NewManager(overlay)
	addr := testAddress(1)

	require.NoError(t, mgr.PutAccount(addr.Bytes(), &types.Account{Balance: big.NewInt(5)}))
	require.Empty(t, db.Keys())

	account, err := mgr.GetAccount(addr.Bytes())
	require.NoError(t, err)
	require.Equal(t, int64(5), account.Balance.Int64())

	require.NoError(t, overlay.Commit())
	require.Len(t, db.Keys(), 1)
	require.Zero(t, overlay.Dirty())

	committed, err := NewManager(db).GetAccount(addr.Bytes())
	require.NoError(t, err)
	require.Equal(t, int64(5), committed.Balance.Int64())
}

func TestOverlayDiscardLeavesBaseUntouched(t *testing.T) {
	db := storage.NewMemDB()
	require.NoError(t, NewManager(db).SetHeight(3))
	before := db.Keys()

	overlay := NewOverlay(db)
	mgr := NewManager(overlay)
	require.NoError(t, mgr.SetHeight(4))
	require.NoError(t, mgr.KVDelete(chainHeightKey))
	height, err := mgr.Height()
	require.NoError(t, err)
	require.Zero(t, height)

	overlay.Discard()
	require.Equal(t, before, db.Keys())
	height, err = NewManager(db).Height()
	require.NoError(t, err)
	require.Equal(t, uint64(3), height)
}

func TestOverlayCommitDeletes(t *testing.T) {
	db := storage.NewMemDB()
	require.NoError(t, NewManager(db).SetHeight(3))

	overlay := NewOverlay(db)
	require.NoError(t, NewManager(overlay).KVDelete(chainHeightKey))
	require.NoError(t, overlay.Commit())
	require.Empty(t, db.Keys())
}
