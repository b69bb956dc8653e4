package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"microlend/core"
	"microlend/crypto"
	"microlend/native/lending"
	"microlend/observability/metrics"
)

type nodeAdapter struct {
	node    *core.Node
	metrics *metrics.LendingMetrics
	logger  *slog.Logger
}

// NewNodeAdapter wires a core node into the Engine abstraction expected by
// the service. Committed lending state is mirrored into the lending gauges
// after every mutation.
func NewNodeAdapter(node *core.Node, logger *slog.Logger) Engine {
	if logger == nil {
		logger = slog.Default()
	}
	adapter := &nodeAdapter{node: node, metrics: metrics.Lending(), logger: logger}
	adapter.refreshMetrics()
	return adapter
}

func (a *nodeAdapter) Contribute(ctx context.Context, amount string) (uint64, error) {
	caller, value, err := a.prepare(ctx, amount)
	if err != nil {
		return 0, err
	}
	var id uint64
	err = a.node.WithLending(func(engine *lending.Engine) error {
		id, err = engine.Contribute(caller, value)
		return err
	})
	return id, a.settle(err)
}

func (a *nodeAdapter) DepositCollateral(ctx context.Context, amount string) (uint64, error) {
	caller, value, err := a.prepare(ctx, amount)
	if err != nil {
		return 0, err
	}
	var id uint64
	err = a.node.WithLending(func(engine *lending.Engine) error {
		id, err = engine.DepositCollateral(caller, value)
		return err
	})
	return id, a.settle(err)
}

func (a *nodeAdapter) WithdrawCollateral(ctx context.Context, amount string) (string, error) {
	caller, value, err := a.prepare(ctx, amount)
	if err != nil {
		return "", err
	}
	var remaining *big.Int
	err = a.node.WithLending(func(engine *lending.Engine) error {
		remaining, err = engine.WithdrawCollateral(caller, value)
		return err
	})
	if err := a.settle(err); err != nil {
		return "", err
	}
	return FormatAmount(remaining), nil
}

func (a *nodeAdapter) RequestLoan(ctx context.Context, principal string, duration uint64) (uint64, error) {
	caller, value, err := a.prepare(ctx, principal)
	if err != nil {
		return 0, err
	}
	var id uint64
	err = a.node.WithLending(func(engine *lending.Engine) error {
		id, err = engine.RequestLoan(caller, value, duration)
		return err
	})
	if err := a.settle(err); err != nil {
		return 0, err
	}
	a.metrics.RecordTransition(lending.LoanStatusActive.String())
	return id, nil
}

func (a *nodeAdapter) RepayLoan(ctx context.Context, loanID uint64) (bool, error) {
	caller, err := a.caller(ctx)
	if err != nil {
		return false, err
	}
	var repaid bool
	err = a.node.WithLending(func(engine *lending.Engine) error {
		repaid, err = engine.RepayLoan(caller, loanID)
		return err
	})
	if err := a.settle(err); err != nil {
		return false, err
	}
	a.metrics.RecordTransition(lending.LoanStatusRepaid.String())
	return repaid, nil
}

func (a *nodeAdapter) LiquidateLoan(ctx context.Context, loanID uint64) (string, error) {
	caller, err := a.caller(ctx)
	if err != nil {
		return "", err
	}
	var seized *big.Int
	err = a.node.WithLending(func(engine *lending.Engine) error {
		seized, err = engine.LiquidateLoan(caller, loanID)
		return err
	})
	if err := a.settle(err); err != nil {
		return "", err
	}
	a.metrics.RecordTransition(lending.LoanStatusLiquidated.String())
	return FormatAmount(seized), nil
}

func (a *nodeAdapter) GetLoan(ctx context.Context, loanID uint64) (Loan, bool, error) {
	if err := a.ready(ctx); err != nil {
		return Loan{}, false, err
	}
	loan, ok, err := a.node.Loan(loanID)
	if err != nil || !ok {
		return Loan{}, false, err
	}
	return LoanFromRecord(loan), true, nil
}

func (a *nodeAdapter) LoansByBorrower(ctx context.Context, borrower string) ([]Loan, error) {
	if err := a.ready(ctx); err != nil {
		return nil, err
	}
	addr, err := ParseAddress(borrower)
	if err != nil {
		return nil, err
	}
	var records []*lending.Loan
	err = a.node.WithLending(func(engine *lending.Engine) error {
		records, err = engine.LoansByBorrower(addr)
		return err
	})
	if err != nil {
		return nil, err
	}
	loans := make([]Loan, 0, len(records))
	for _, record := range records {
		loans = append(loans, LoanFromRecord(record))
	}
	return loans, nil
}

func (a *nodeAdapter) GetTreasury(ctx context.Context) (Treasury, error) {
	if err := a.ready(ctx); err != nil {
		return Treasury{}, err
	}
	snapshot, err := a.snapshot()
	if err != nil {
		return Treasury{}, err
	}
	return snapshot, nil
}

func (a *nodeAdapter) GetPosition(ctx context.Context, addr string) (Position, error) {
	if err := a.ready(ctx); err != nil {
		return Position{}, err
	}
	account, err := ParseAddress(addr)
	if err != nil {
		return Position{}, err
	}
	var position *lending.Position
	err = a.node.WithLending(func(engine *lending.Engine) error {
		position, err = engine.Position(account)
		return err
	})
	if err != nil {
		return Position{}, err
	}
	ids := position.LoanIDs
	if ids == nil {
		ids = []uint64{}
	}
	return Position{
		Address:       account.String(),
		WalletBalance: FormatAmount(position.WalletBalance),
		Collateral:    FormatAmount(position.Collateral),
		Contribution:  FormatAmount(position.Contribution),
		LoanIDs:       ids,
	}, nil
}

func (a *nodeAdapter) Quote(ctx context.Context, principal string, duration uint64) (Quote, error) {
	if err := a.ready(ctx); err != nil {
		return Quote{}, err
	}
	value, err := ParseAmount(principal)
	if err != nil {
		return Quote{}, err
	}
	var quote *lending.Quote
	err = a.node.WithLending(func(engine *lending.Engine) error {
		quote, err = engine.Quote(value, duration)
		return err
	})
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Principal:          FormatAmount(quote.Principal),
		Duration:           quote.Duration,
		Interest:           FormatAmount(quote.Interest),
		AmountDue:          FormatAmount(quote.AmountDue),
		RequiredCollateral: FormatAmount(quote.RequiredCollateral),
		DueHeight:          quote.DueHeight,
	}, nil
}

func (a *nodeAdapter) Height(ctx context.Context) (uint64, error) {
	if err := a.ready(ctx); err != nil {
		return 0, err
	}
	return a.node.Height()
}

func (a *nodeAdapter) MineBlocks(ctx context.Context, count uint64) (uint64, error) {
	if err := a.ready(ctx); err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, ErrInvalidCount
	}
	height, err := a.node.MineBlocks(count)
	if err != nil {
		return 0, err
	}
	a.metrics.SetHeight(height)
	return height, nil
}

func (a *nodeAdapter) SetPaused(ctx context.Context, module string, paused bool) ([]string, error) {
	if err := a.ready(ctx); err != nil {
		return nil, err
	}
	module = strings.ToLower(strings.TrimSpace(module))
	if module != lending.ModuleName {
		return nil, fmt.Errorf("%w: %q", ErrInvalidModule, module)
	}
	a.node.SetPaused(module, paused)
	return a.node.Paused(), nil
}

func (a *nodeAdapter) ready(ctx context.Context) error {
	if a == nil || a.node == nil {
		return ErrUnavailable
	}
	if ctx != nil {
		return ctx.Err()
	}
	return nil
}

func (a *nodeAdapter) caller(ctx context.Context) (crypto.Address, error) {
	if err := a.ready(ctx); err != nil {
		return crypto.Address{}, err
	}
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return crypto.Address{}, lending.ErrInvalidCaller
	}
	return caller, nil
}

func (a *nodeAdapter) prepare(ctx context.Context, amount string) (crypto.Address, *big.Int, error) {
	caller, err := a.caller(ctx)
	if err != nil {
		return crypto.Address{}, nil, err
	}
	value, err := ParseAmount(amount)
	if err != nil {
		return crypto.Address{}, nil, err
	}
	return caller, value, nil
}

// settle refreshes the gauges after a committed mutation and passes err
// through.
func (a *nodeAdapter) settle(err error) error {
	if err != nil {
		return err
	}
	a.refreshMetrics()
	return nil
}

func (a *nodeAdapter) refreshMetrics() {
	snapshot, err := a.snapshot()
	if err != nil {
		a.logger.Warn("lending metrics refresh failed", slog.Any("error", err))
		return
	}
	pool, _ := new(big.Int).SetString(snapshot.PoolBalance, 10)
	outstanding, _ := new(big.Int).SetString(snapshot.OutstandingPrincipal, 10)
	locked, _ := new(big.Int).SetString(snapshot.CollateralLocked, 10)
	a.metrics.SetTreasury(pool, outstanding)
	a.metrics.SetCollateralLocked(locked)
	a.metrics.SetActiveLoans(snapshot.ActiveLoans)
	a.metrics.SetHeight(snapshot.Height)
}

func (a *nodeAdapter) snapshot() (Treasury, error) {
	var (
		treasury *lending.Treasury
		vault    *lending.Vault
		registry *lending.Registry
	)
	err := a.node.WithLending(func(engine *lending.Engine) error {
		var err error
		if treasury, err = engine.Treasury(); err != nil {
			return err
		}
		if vault, err = engine.Vault(); err != nil {
			return err
		}
		registry, err = engine.Registry()
		return err
	})
	if err != nil {
		return Treasury{}, err
	}
	height, err := a.node.Height()
	if err != nil {
		return Treasury{}, err
	}
	cfg := a.node.LendingConfig()
	return Treasury{
		ModuleAddress:        a.node.LendingModuleAddress().String(),
		Asset:                cfg.Asset,
		Height:               height,
		PoolBalance:          FormatAmount(treasury.PoolBalance),
		TotalContributed:     FormatAmount(treasury.TotalContributed),
		TotalRepaid:          FormatAmount(treasury.TotalRepaid),
		CollateralAbsorbed:   FormatAmount(treasury.CollateralAbsorbed),
		OutstandingPrincipal: FormatAmount(treasury.OutstandingPrincipal),
		ContributionCount:    treasury.ContributionCount,
		CollateralFree:       FormatAmount(vault.TotalUnencumbered),
		CollateralLocked:     FormatAmount(vault.TotalLocked),
		DepositCount:         vault.DepositCount,
		NextLoanID:           registry.NextLoanID,
		ActiveLoans:          registry.ActiveLoans,
		InterestPerBlockPPM:  cfg.InterestPerBlockPPM,
		CollateralRatioBps:   cfg.CollateralRatioBps,
	}, nil
}
