package lending

import (
	"math/big"

	"microlend/crypto"
)

// LoanStatus enumerates the lifecycle states of a loan. Active is the only
// non-terminal state.
type LoanStatus uint8

const (
	// LoanStatusActive marks a disbursed loan awaiting repayment or liquidation.
	LoanStatusActive LoanStatus = iota + 1
	// LoanStatusRepaid marks a loan settled in full by any caller.
	LoanStatusRepaid
	// LoanStatusLiquidated marks an overdue loan whose collateral was seized.
	LoanStatusLiquidated
)

// String renders the status for logs and transport payloads.
func (s LoanStatus) String() string {
	switch s {
	case LoanStatusActive:
		return "active"
	case LoanStatusRepaid:
		return "repaid"
	case LoanStatusLiquidated:
		return "liquidated"
	default:
		return "unknown"
	}
}

// Valid reports whether the status is one of the known lifecycle states.
func (s LoanStatus) Valid() bool {
	return s >= LoanStatusActive && s <= LoanStatusLiquidated
}

// Terminal reports whether no further transition is permitted.
func (s LoanStatus) Terminal() bool {
	return s == LoanStatusRepaid || s == LoanStatusLiquidated
}

// ParseLoanStatus maps the textual form back to a status.
func ParseLoanStatus(raw string) (LoanStatus, bool) {
	switch raw {
	case "active":
		return LoanStatusActive, true
	case "repaid":
		return LoanStatusRepaid, true
	case "liquidated":
		return LoanStatusLiquidated, true
	default:
		return 0, false
	}
}

// Treasury captures the pooled lender liquidity. Amounts are expressed in the
// single asset unit shared by loans and collateral.
type Treasury struct {
	// PoolBalance is the liquidity currently available to fund new loans.
	PoolBalance *big.Int
	// TotalContributed is the sum of every successful contribution.
	TotalContributed *big.Int
	// TotalRepaid accumulates principal plus interest received on repayment.
	TotalRepaid *big.Int
	// CollateralAbsorbed accumulates collateral seized by liquidations.
	CollateralAbsorbed *big.Int
	// OutstandingPrincipal is the principal of all active loans.
	OutstandingPrincipal *big.Int
	// ContributionCount is the number of successful contributions. The next
	// contribution receives ContributionCount+1 as its identifier.
	ContributionCount uint64
}

// Clone returns a deep copy of the treasury snapshot.
func (t *Treasury) Clone() *Treasury {
	if t == nil {
		return nil
	}
	return &Treasury{
		PoolBalance:          cloneAmount(t.PoolBalance),
		TotalContributed:     cloneAmount(t.TotalContributed),
		TotalRepaid:          cloneAmount(t.TotalRepaid),
		CollateralAbsorbed:   cloneAmount(t.CollateralAbsorbed),
		OutstandingPrincipal: cloneAmount(t.OutstandingPrincipal),
		ContributionCount:    t.ContributionCount,
	}
}

// Vault tracks aggregate collateral custody.
type Vault struct {
	// TotalUnencumbered is the sum of every account's free collateral.
	TotalUnencumbered *big.Int
	// TotalLocked is the collateral pledged against active loans.
	TotalLocked *big.Int
	// DepositCount is the number of successful deposits. The first deposit
	// receives identifier 1.
	DepositCount uint64
}

// Clone returns a deep copy of the vault snapshot.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	return &Vault{
		TotalUnencumbered: cloneAmount(v.TotalUnencumbered),
		TotalLocked:       cloneAmount(v.TotalLocked),
		DepositCount:      v.DepositCount,
	}
}

// Registry holds the loan sequence.
type Registry struct {
	// NextLoanID is the identifier assigned to the next originated loan.
	NextLoanID uint64
	// ActiveLoans counts loans that have not reached a terminal state.
	ActiveLoans uint64
}

// Clone returns a copy of the registry.
func (r *Registry) Clone() *Registry {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// Loan is a single fixed-term borrowing position.
type Loan struct {
	ID        uint64
	Borrower  crypto.Address
	Principal *big.Int
	// CollateralLocked is the amount removed from the borrower's unencumbered
	// balance at origination.
	CollateralLocked *big.Int
	// Interest is fixed at origination from the nominal duration.
	Interest    *big.Int
	StartHeight uint64
	Duration    uint64
	DueHeight   uint64
	Status      LoanStatus
	// ClosedHeight is the block height of the terminal transition, zero while
	// the loan is active.
	ClosedHeight uint64
	// ClosedBy is the account that repaid or liquidated the loan.
	ClosedBy crypto.Address
}

// AmountDue returns principal plus the fixed interest.
func (l *Loan) AmountDue() *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Add(amountOrZero(l.Principal), amountOrZero(l.Interest))
}

// Overdue reports whether the loan may be liquidated at the provided height.
func (l *Loan) Overdue(height uint64) bool {
	return l != nil && height > l.DueHeight
}

// Clone returns a deep copy of the loan.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	clone.Principal = cloneAmount(l.Principal)
	clone.CollateralLocked = cloneAmount(l.CollateralLocked)
	clone.Interest = cloneAmount(l.Interest)
	return &clone
}

// Position summarises an account's relationship with the module.
type Position struct {
	Address crypto.Address
	// WalletBalance is reported only when the asset capability can read
	// balances.
	WalletBalance *big.Int
	Collateral    *big.Int
	Contribution  *big.Int
	LoanIDs       []uint64
}

// Quote previews the economics of a loan request without mutating state.
type Quote struct {
	Principal          *big.Int
	Duration           uint64
	Interest           *big.Int
	AmountDue          *big.Int
	RequiredCollateral *big.Int
	DueHeight          uint64
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
