package server

import (
	"context"

	"microlend/services/lending/engine"
)

type fakeEngine struct {
	contributeFn func(ctx context.Context, amount string) (uint64, error)
	depositFn    func(ctx context.Context, amount string) (uint64, error)
	withdrawFn   func(ctx context.Context, amount string) (string, error)
	requestFn    func(ctx context.Context, principal string, duration uint64) (uint64, error)
	repayFn      func(ctx context.Context, loanID uint64) (bool, error)
	liquidateFn  func(ctx context.Context, loanID uint64) (string, error)
	getLoanFn    func(ctx context.Context, loanID uint64) (engine.Loan, bool, error)
	listLoansFn  func(ctx context.Context, borrower string) ([]engine.Loan, error)
	treasuryFn   func(ctx context.Context) (engine.Treasury, error)
	positionFn   func(ctx context.Context, addr string) (engine.Position, error)
	quoteFn      func(ctx context.Context, principal string, duration uint64) (engine.Quote, error)
	heightFn     func(ctx context.Context) (uint64, error)
	mineFn       func(ctx context.Context, count uint64) (uint64, error)
	setPausedFn  func(ctx context.Context, module string, paused bool) ([]string, error)
}

func (f *fakeEngine) Contribute(ctx context.Context, amount string) (uint64, error) {
	if f != nil && f.contributeFn != nil {
		return f.contributeFn(ctx, amount)
	}
	return 0, nil
}

func (f *fakeEngine) DepositCollateral(ctx context.Context, amount string) (uint64, error) {
	if f != nil && f.depositFn != nil {
		return f.depositFn(ctx, amount)
	}
	return 0, nil
}

func (f *fakeEngine) WithdrawCollateral(ctx context.Context, amount string) (string, error) {
	if f != nil && f.withdrawFn != nil {
		return f.withdrawFn(ctx, amount)
	}
	return "0", nil
}

func (f *fakeEngine) RequestLoan(ctx context.Context, principal string, duration uint64) (uint64, error) {
	if f != nil && f.requestFn != nil {
		return f.requestFn(ctx, principal, duration)
	}
	return 0, nil
}

func (f *fakeEngine) RepayLoan(ctx context.Context, loanID uint64) (bool, error) {
	if f != nil && f.repayFn != nil {
		return f.repayFn(ctx, loanID)
	}
	return true, nil
}

func (f *fakeEngine) LiquidateLoan(ctx context.Context, loanID uint64) (string, error) {
	if f != nil && f.liquidateFn != nil {
		return f.liquidateFn(ctx, loanID)
	}
	return "0", nil
}

func (f *fakeEngine) GetLoan(ctx context.Context, loanID uint64) (engine.Loan, bool, error) {
	if f != nil && f.getLoanFn != nil {
		return f.getLoanFn(ctx, loanID)
	}
	return engine.Loan{}, false, nil
}

func (f *fakeEngine) LoansByBorrower(ctx context.Context, borrower string) ([]engine.Loan, error) {
	if f != nil && f.listLoansFn != nil {
		return f.listLoansFn(ctx, borrower)
	}
	return nil, nil
}

func (f *fakeEngine) GetTreasury(ctx context.Context) (engine.Treasury, error) {
	if f != nil && f.treasuryFn != nil {
		return f.treasuryFn(ctx)
	}
	return engine.Treasury{}, nil
}

func (f *fakeEngine) GetPosition(ctx context.Context, addr string) (engine.Position, error) {
	if f != nil && f.positionFn != nil {
		return f.positionFn(ctx, addr)
	}
	return engine.Position{}, nil
}

func (f *fakeEngine) Quote(ctx context.Context, principal string, duration uint64) (engine.Quote, error) {
	if f != nil && f.quoteFn != nil {
		return f.quoteFn(ctx, principal, duration)
	}
	return engine.Quote{}, nil
}

func (f *fakeEngine) Height(ctx context.Context) (uint64, error) {
	if f != nil && f.heightFn != nil {
		return f.heightFn(ctx)
	}
	return 0, nil
}

func (f *fakeEngine) MineBlocks(ctx context.Context, count uint64) (uint64, error) {
	if f != nil && f.mineFn != nil {
		return f.mineFn(ctx, count)
	}
	return count, nil
}

func (f *fakeEngine) SetPaused(ctx context.Context, module string, paused bool) ([]string, error) {
	if f != nil && f.setPausedFn != nil {
		return f.setPausedFn(ctx, module, paused)
	}
	return nil, nil
}

var _ engine.Engine = (*fakeEngine)(nil)
