package core

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"microlend/native/lending"
	"microlend/storage"
)

func TestNodePersistsAcrossBackends(t *testing.T) {
	for _, backend := range []string{storage.BackendLevelDB, storage.BackendBolt, storage.BackendPebble} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			db, err := storage.Open(backend, dir)
			require.NoError(t, err)
			node := newTestNode(t, db)
			require.NoError(t, node.WithLending(func(engine *lending.Engine) error {
				_, err := engine.Contribute(testAddr(1), big.NewInt(2_500))
				return err
			}))
			_, err = node.MineBlocks(3)
			require.NoError(t, err)
			require.NoError(t, node.Close())

			reopened, err := storage.Open(backend, dir)
			require.NoError(t, err)
			restarted, err := NewNode(reopened, lending.DefaultConfig())
			require.NoError(t, err)
			defer restarted.Close()

			height, err := restarted.Height()
			require.NoError(t, err)
			require.Equal(t, uint64(3), height)

			var treasury *lending.Treasury
			require.NoError(t, restarted.WithLending(func(engine *lending.Engine) error {
				var err error
				treasury, err = engine.Treasury()
				return err
			}))
			require.Equal(t, "2500", treasury.PoolBalance.String())
			require.Equal(t, uint64(1), treasury.ContributionCount)
		})
	}
}
