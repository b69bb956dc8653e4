package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"microlend/core/events"
	"microlend/core/genesis"
	lendstate "microlend/core/state"
	"microlend/crypto"
	"microlend/native/bank"
	nativecommon "microlend/native/common"
	"microlend/native/lending"
	"microlend/storage"
)

const defaultLoanCacheSize = 1024

// ErrNodeClosed is returned once Close has been called.
var ErrNodeClosed = errors.New("node: closed")

// Node owns the committed state and serialises every call against it. Each
// call runs against a staging overlay that is committed as one batch only
// when the call succeeds.
type Node struct {
	db      storage.Database
	stateMu sync.Mutex
	closed  bool

	lendingConfig lending.Config
	moduleAddr    crypto.Address
	pauses        *nativecommon.PauseSet
	emitter       events.Emitter
	loanCache     *lru.Cache[uint64, *lending.Loan]
	logger        *slog.Logger
}

// Option customises a Node at construction.
type Option func(*Node)

// WithEmitter forwards committed events to emitter.
func WithEmitter(emitter events.Emitter) Option {
	return func(n *Node) {
		if emitter != nil {
			n.emitter = emitter
		}
	}
}

// WithPauses installs the pause switch consulted by native modules.
func WithPauses(pauses *nativecommon.PauseSet) Option {
	return func(n *Node) {
		if pauses != nil {
			n.pauses = pauses
		}
	}
}

// WithLogger sets the node logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithLoanCacheSize bounds the number of terminal loans kept in memory.
func WithLoanCacheSize(size int) Option {
	return func(n *Node) {
		if size <= 0 {
			return
		}
		if cache, err := lru.New[uint64, *lending.Loan](size); err == nil {
			n.loanCache = cache
		}
	}
}

func NewNode(db storage.Database, cfg lending.Config, opts ...Option) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database must not be nil")
	}
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cache, err := lru.New[uint64, *lending.Loan](defaultLoanCacheSize)
	if err != nil {
		return nil, err
	}
	n := &Node{
		db:            db,
		lendingConfig: cfg,
		moduleAddr:    crypto.ModuleAddress(lending.ModuleName),
		pauses:        nativecommon.NewPauseSet(),
		emitter:       events.NoopEmitter{},
		loanCache:     cache,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger.Info("node started",
		slog.String("lending_module", n.moduleAddr.String()),
		slog.Uint64("interest_ppm", cfg.InterestPerBlockPPM),
		slog.Uint64("collateral_ratio_bps", cfg.CollateralRatioBps))
	return n, nil
}

// WithState runs fn with exclusive access to a state manager. Writes made by
// fn are committed atomically when it returns nil and discarded otherwise.
func (n *Node) WithState(fn func(*lendstate.Manager) error) error {
	_, err := n.withState(func(manager *lendstate.Manager, _ events.Emitter) error {
		return fn(manager)
	})
	return err
}

// withState buffers every event fn emits and publishes the buffer only after
// the overlay has been committed.
func (n *Node) withState(fn func(*lendstate.Manager, events.Emitter) error) ([]events.Event, error) {
	if n == nil {
		return nil, fmt.Errorf("node: not initialised")
	}
	if fn == nil {
		return nil, fmt.Errorf("node: state callback must not be nil")
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if n.closed {
		return nil, ErrNodeClosed
	}
	overlay := lendstate.NewOverlay(n.db)
	buffer := &events.Buffer{}
	if err := fn(lendstate.NewManager(overlay), buffer); err != nil {
		overlay.Discard()
		return nil, err
	}
	if err := overlay.Commit(); err != nil {
		return nil, fmt.Errorf("node: commit state: %w", err)
	}
	published := buffer.Drain()
	for _, evt := range published {
		n.emitter.Emit(evt)
	}
	return published, nil
}

// WithLending runs fn against a lending engine wired to a fresh overlay, the
// wallet ledger, the current height and the pause switch.
func (n *Node) WithLending(fn func(*lending.Engine) error) error {
	_, err := n.withState(func(manager *lendstate.Manager, emitter events.Emitter) error {
		engine, err := n.lendingEngine(manager, emitter)
		if err != nil {
			return err
		}
		return fn(engine)
	})
	return err
}

func (n *Node) lendingEngine(manager *lendstate.Manager, emitter events.Emitter) (*lending.Engine, error) {
	height, err := manager.Height()
	if err != nil {
		return nil, err
	}
	ledger := bank.NewLedger(manager, n.lendingConfig.Asset)
	ledger.SetEmitter(emitter)
	engine := lending.NewEngine(n.moduleAddr, n.lendingConfig)
	engine.SetState(&lendingStateAdapter{manager: manager})
	engine.SetAssets(ledger)
	engine.SetBlockHeight(height)
	engine.SetPauses(n.pauses)
	engine.SetEmitter(emitter)
	return engine, nil
}

// Height returns the committed chain height.
func (n *Node) Height() (uint64, error) {
	var height uint64
	err := n.WithState(func(manager *lendstate.Manager) error {
		var err error
		height, err = manager.Height()
		return err
	})
	return height, err
}

// MineBlocks advances the chain height by count and returns the new height.
func (n *Node) MineBlocks(count uint64) (uint64, error) {
	if count == 0 {
		return 0, fmt.Errorf("node: block count must be positive")
	}
	var height uint64
	err := n.WithState(func(manager *lendstate.Manager) error {
		current, err := manager.Height()
		if err != nil {
			return err
		}
		next := current + count
		if next < current {
			return fmt.Errorf("node: height overflow")
		}
		height = next
		return manager.SetHeight(next)
	})
	if err != nil {
		return 0, err
	}
	n.logger.Debug("blocks mined", slog.Uint64("count", count), slog.Uint64("height", height))
	return height, nil
}

// ApplyGenesis mints the genesis allocations once. Later calls are no-ops and
// report false.
func (n *Node) ApplyGenesis(spec *genesis.GenesisSpec) (bool, error) {
	if spec == nil {
		return false, nil
	}
	applied := false
	_, err := n.withState(func(manager *lendstate.Manager, emitter events.Emitter) error {
		done, err := manager.GenesisApplied()
		if err != nil || done {
			return err
		}
		ledger := bank.NewLedger(manager, n.lendingConfig.Asset)
		ledger.SetEmitter(emitter)
		for _, alloc := range spec.Allocations() {
			if err := ledger.Mint(alloc.Address, alloc.Amount); err != nil {
				return fmt.Errorf("genesis alloc %s: %w", alloc.Address, err)
			}
		}
		if err := manager.SetHeight(spec.InitialHeight); err != nil {
			return err
		}
		applied = true
		return manager.MarkGenesisApplied()
	})
	if err != nil {
		return false, err
	}
	if applied {
		n.logger.Info("genesis applied",
			slog.Int("allocations", len(spec.Allocations())),
			slog.Uint64("height", spec.InitialHeight))
	}
	return applied, nil
}

// Loan returns a loan by id. Terminal loans never change and are served from
// an LRU cache after their first read.
func (n *Node) Loan(id uint64) (*lending.Loan, bool, error) {
	if n.loanCache != nil {
		if cached, ok := n.loanCache.Get(id); ok {
			return cached.Clone(), true, nil
		}
	}
	var (
		loan  *lending.Loan
		found bool
	)
	err := n.WithLending(func(engine *lending.Engine) error {
		var err error
		loan, found, err = engine.Loan(id)
		return err
	})
	if err != nil || !found {
		return nil, false, err
	}
	if n.loanCache != nil && loan.Status.Terminal() {
		n.loanCache.Add(id, loan.Clone())
	}
	return loan, true, nil
}

// Balance returns the wallet balance of addr.
func (n *Node) Balance(addr crypto.Address) (*big.Int, error) {
	var balance *big.Int
	err := n.WithState(func(manager *lendstate.Manager) error {
		var err error
		balance, err = bank.NewLedger(manager, n.lendingConfig.Asset).BalanceOf(addr)
		return err
	})
	return balance, err
}

// SetPaused toggles a module's pause switch.
func (n *Node) SetPaused(module string, paused bool) {
	n.pauses.Set(module, paused)
	n.logger.Warn("module pause updated", slog.String("module", module), slog.Bool("paused", paused))
}

// Paused lists paused modules.
func (n *Node) Paused() []string { return n.pauses.Paused() }

// LendingModuleAddress returns the account holding pool and collateral funds.
func (n *Node) LendingModuleAddress() crypto.Address { return n.moduleAddr }

// LendingConfig returns the active lending configuration.
func (n *Node) LendingConfig() lending.Config { return n.lendingConfig }

// Close releases the underlying database. Calls made afterwards fail with
// ErrNodeClosed.
func (n *Node) Close() error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	return n.db.Close()
}
