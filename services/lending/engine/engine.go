package engine

import (
	"context"

	"microlend/crypto"
)

// Engine describes the operations required by the lending gRPC and HTTP
// surfaces. Mutating calls execute as the caller carried by ctx (see
// WithCaller); amounts are base-10 integer strings.
type Engine interface {
	Contribute(ctx context.Context, amount string) (uint64, error)
	DepositCollateral(ctx context.Context, amount string) (uint64, error)
	WithdrawCollateral(ctx context.Context, amount string) (string, error)
	RequestLoan(ctx context.Context, principal string, duration uint64) (uint64, error)
	RepayLoan(ctx context.Context, loanID uint64) (bool, error)
	LiquidateLoan(ctx context.Context, loanID uint64) (string, error)

	GetLoan(ctx context.Context, loanID uint64) (Loan, bool, error)
	LoansByBorrower(ctx context.Context, borrower string) ([]Loan, error)
	GetTreasury(ctx context.Context) (Treasury, error)
	GetPosition(ctx context.Context, addr string) (Position, error)
	Quote(ctx context.Context, principal string, duration uint64) (Quote, error)
	Height(ctx context.Context) (uint64, error)

	MineBlocks(ctx context.Context, count uint64) (uint64, error)
	SetPaused(ctx context.Context, module string, paused bool) ([]string, error)
}

type callerContextKey struct{}

// WithCaller returns a context carrying the identity a mutating call executes
// as.
func WithCaller(ctx context.Context, caller crypto.Address) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext returns the caller installed by WithCaller.
func CallerFromContext(ctx context.Context) (crypto.Address, bool) {
	if ctx == nil {
		return crypto.Address{}, false
	}
	caller, ok := ctx.Value(callerContextKey{}).(crypto.Address)
	return caller, ok && !caller.IsZero()
}
