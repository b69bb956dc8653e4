package core

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"microlend/core/events"
	"microlend/core/genesis"
	lendstate "microlend/core/state"
	"microlend/crypto"
	"microlend/native/lending"
	"microlend/storage"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, evt := range r.events {
		out[i] = evt.EventType()
	}
	return out
}

func testAddr(b byte) crypto.Address {
	var raw [crypto.AddressLength]byte
	raw[0] = b
	raw[crypto.AddressLength-1] = b
	return crypto.MustNewAddress(crypto.AccountPrefix, raw)
}

func newTestNode(t *testing.T, db storage.Database, opts ...Option) *Node {
	t.Helper()
	node, err := NewNode(db, lending.DefaultConfig(), opts...)
	require.NoError(t, err)
	spec, err := genesis.FromAllocations(map[string]string{
		testAddr(1).String(): "10000000",
		testAddr(2).String(): "3000100",
	}, 0)
	require.NoError(t, err)
	applied, err := node.ApplyGenesis(spec)
	require.NoError(t, err)
	require.True(t, applied)
	return node
}

func TestNodeConcreteScenario(t *testing.T) {
	emitter := &recordingEmitter{}
	node := newTestNode(t, storage.NewMemDB(), WithEmitter(emitter))
	lender, borrower := testAddr(1), testAddr(2)

	var contributionID, depositID, loanID uint64
	require.NoError(t, node.WithLending(func(engine *lending.Engine) error {
		var err error
		contributionID, err = engine.Contribute(lender, big.NewInt(10_000_000))
		return err
	}))
	require.Equal(t, uint64(1), contributionID)
	require.NoError(t, node.WithLending(func(engine *lending.Engine) error {
		var err error
		depositID, err = engine.DepositCollateral(borrower, big.NewInt(3_000_000))
		return err
	}))
	require.Equal(t, uint64(1), depositID)
	require.NoError(t, node.WithLending(func(engine *lending.Engine) error {
		var err error
		loanID, err = engine.RequestLoan(borrower, big.NewInt(1_000_000), 10)
		return err
	}))
	require.Equal(t, uint64(0), loanID)

	require.NoError(t, node.WithLending(func(engine *lending.Engine) error {
		_, err := engine.RepayLoan(borrower, loanID)
		return err
	}))
	err := node.WithLending(func(engine *lending.Engine) error {
		_, err := engine.LiquidateLoan(lender, loanID)
		return err
	})
	require.ErrorIs(t, err, lending.ErrLoanNotActive)

	balance, err := node.Balance(borrower)
	require.NoError(t, err)
	require.Equal(t, "0", balance.String())

	loan, ok, err := node.Loan(loanID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, lending.LoanStatusRepaid, loan.Status)
	require.Equal(t, "1000100", loan.AmountDue().String())

	require.Contains(t, emitter.types(), lending.EventTypeLoanRepaid)
	require.NotContains(t, emitter.types(), lending.EventTypeLoanLiquidated)
}

func TestFailedCallLeavesStateUntouched(t *testing.T) {
	db := storage.NewMemDB()
	emitter := &recordingEmitter{}
	node := newTestNode(t, db, WithEmitter(emitter))
	before := db.Keys()
	published := len(emitter.types())

	err := node.WithLending(func(engine *lending.Engine) error {
		if _, err := engine.Contribute(testAddr(1), big.NewInt(500)); err != nil {
			return err
		}
		// Fails after the contribution has been staged.
		_, err := engine.RequestLoan(testAddr(2), big.NewInt(100), 5)
		return err
	})
	require.ErrorIs(t, err, lending.ErrInsufficientCollateral)
	require.Equal(t, lending.CodeInsufficientCollateral, lending.CodeOf(err))
	require.Equal(t, before, db.Keys())
	require.Len(t, emitter.types(), published)

	balance, err := node.Balance(testAddr(1))
	require.NoError(t, err)
	require.Equal(t, "10000000", balance.String())
}

func TestLiquidationAfterMining(t *testing.T) {
	node := newTestNode(t, storage.NewMemDB())
	lender, borrower := testAddr(1), testAddr(2)
	require.NoError(t, node.WithLending(func(engine *lending.Engine) error {
		if _, err := engine.Contribute(lender, big.NewInt(10_000_000)); err != nil {
			return err
		}
		if _, err := engine.DepositCollateral(borrower, big.NewInt(3_000_000)); err != nil {
			return err
		}
		_, err := engine.RequestLoan(borrower, big.NewInt(1_000_000), 10)
		return err
	}))

	height, err := node.MineBlocks(10)
	require.NoError(t, err)
	require.Equal(t, uint64(10), height)
	err = node.WithLending(func(engine *lending.Engine) error {
		_, err := engine.LiquidateLoan(lender, 0)
		return err
	})
	require.ErrorIs(t, err, lending.ErrLoanNotOverdue)

	_, err = node.MineBlocks(1)
	require.NoError(t, err)
	var seized *big.Int
	require.NoError(t, node.WithLending(func(engine *lending.Engine) error {
		var err error
		seized, err = engine.LiquidateLoan(lender, 0)
		return err
	}))
	require.Equal(t, "1500000", seized.String())

	var treasury *lending.Treasury
	require.NoError(t, node.WithLending(func(engine *lending.Engine) error {
		var err error
		treasury, err = engine.Treasury()
		return err
	}))
	require.Equal(t, "10500000", treasury.PoolBalance.String())

	moduleBalance, err := node.Balance(node.LendingModuleAddress())
	require.NoError(t, err)
	require.Equal(t, "12000000", moduleBalance.String())
}

func TestModuleAccountCannotContribute(t *testing.T) {
	node := newTestNode(t, storage.NewMemDB())
	borrower := testAddr(2)
	require.NoError(t, node.WithLending(func(engine *lending.Engine) error {
		_, err := engine.DepositCollateral(borrower, big.NewInt(3_000_000))
		return err
	}))

	err := node.WithLending(func(engine *lending.Engine) error {
		_, err := engine.Contribute(node.LendingModuleAddress(), big.NewInt(3_000_000))
		return err
	})
	require.ErrorIs(t, err, lending.ErrInvalidCaller)

	err = node.WithLending(func(engine *lending.Engine) error {
		_, err := engine.RequestLoan(borrower, big.NewInt(1_000_000), 10)
		return err
	})
	require.ErrorIs(t, err, lending.ErrInsufficientTreasury)

	moduleBalance, err := node.Balance(node.LendingModuleAddress())
	require.NoError(t, err)
	require.Equal(t, "3000000", moduleBalance.String())
}

func TestNodeDefaultsZeroLendingConfig(t *testing.T) {
	node, err := NewNode(storage.NewMemDB(), lending.Config{})
	require.NoError(t, err)
	require.Equal(t, lending.DefaultConfig(), node.LendingConfig())
}

func TestPauseSwitch(t *testing.T) {
	node := newTestNode(t, storage.NewMemDB())
	node.SetPaused(lending.ModuleName, true)
	require.Equal(t, []string{"lending"}, node.Paused())
	err := node.WithLending(func(engine *lending.Engine) error {
		_, err := engine.Contribute(testAddr(1), big.NewInt(1))
		return err
	})
	require.Equal(t, lending.CodeModulePaused, lending.CodeOf(err))
	node.SetPaused(lending.ModuleName, false)
	require.NoError(t, node.WithLending(func(engine *lending.Engine) error {
		_, err := engine.Contribute(testAddr(1), big.NewInt(1))
		return err
	}))
}

func TestGenesisAppliedOnce(t *testing.T) {
	node := newTestNode(t, storage.NewMemDB())
	spec, err := genesis.FromAllocations(map[string]string{testAddr(1).String(): "5"}, 9)
	require.NoError(t, err)
	applied, err := node.ApplyGenesis(spec)
	require.NoError(t, err)
	require.False(t, applied)
	balance, err := node.Balance(testAddr(1))
	require.NoError(t, err)
	require.Equal(t, "10000000", balance.String())
}

func TestTerminalLoanCache(t *testing.T) {
	db := storage.NewMemDB()
	node := newTestNode(t, db, WithLoanCacheSize(4))
	require.NoError(t, node.WithLending(func(engine *lending.Engine) error {
		if _, err := engine.Contribute(testAddr(1), big.NewInt(1_000)); err != nil {
			return err
		}
		if _, err := engine.DepositCollateral(testAddr(2), big.NewInt(1_500)); err != nil {
			return err
		}
		if _, err := engine.RequestLoan(testAddr(2), big.NewInt(1_000), 1); err != nil {
			return err
		}
		_, err := engine.RepayLoan(testAddr(2), 0)
		return err
	}))
	loan, ok, err := node.Loan(0)
	require.NoError(t, err)
	require.True(t, ok)
	_, cached := node.loanCache.Get(0)
	require.True(t, cached)

	loan.Principal.SetInt64(1)
	again, ok, err := node.Loan(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1000", again.Principal.String())

	_, ok, err = node.Loan(42)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWithStateRollsBackOnError(t *testing.T) {
	db := storage.NewMemDB()
	node, err := NewNode(db, lending.DefaultConfig())
	require.NoError(t, err)
	boom := errors.New("boom")
	err = node.WithState(func(m *lendstate.Manager) error {
		require.NoError(t, m.SetHeight(99))
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Empty(t, db.Keys())
	height, err := node.Height()
	require.NoError(t, err)
	require.Zero(t, height)
}

func TestMinerAdvancesHeight(t *testing.T) {
	node, err := NewNode(storage.NewMemDB(), lending.DefaultConfig())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		node.RunMiner(ctx, 5*time.Millisecond)
		close(done)
	}()
	require.Eventually(t, func() bool {
		height, err := node.Height()
		return err == nil && height >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestClosedNodeRejectsCalls(t *testing.T) {
	node, err := NewNode(storage.NewMemDB(), lending.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, node.Close())
	_, err = node.Height()
	require.ErrorIs(t, err, ErrNodeClosed)
}
