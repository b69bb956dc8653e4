package lending

import (
	"math/big"

	"microlend/crypto"
)

// TreasuryLedger owns the lender pool: contributions flow in, principal flows
// out, and repayments and seized collateral flow back.
type TreasuryLedger struct {
	state engineState
}

// Load returns the current treasury with every amount field populated.
func (l TreasuryLedger) Load() (*Treasury, error) {
	treasury, err := l.state.GetTreasury()
	if err != nil {
		return nil, err
	}
	if treasury == nil {
		treasury = &Treasury{}
	}
	normalizeTreasury(treasury)
	return treasury, nil
}

// Contribution returns the lifetime contribution of addr.
func (l TreasuryLedger) Contribution(addr crypto.Address) (*big.Int, error) {
	amount, err := l.state.GetContribution(addr)
	if err != nil {
		return nil, err
	}
	return cloneAmount(amount), nil
}

// RecordContribution credits the pool and the contributor and returns the
// contribution sequence number, starting at 1.
func (l TreasuryLedger) RecordContribution(addr crypto.Address, amount *big.Int) (uint64, error) {
	treasury, err := l.Load()
	if err != nil {
		return 0, err
	}
	existing, err := l.Contribution(addr)
	if err != nil {
		return 0, err
	}
	updated, err := checkedAdd(existing, amount)
	if err != nil {
		return 0, err
	}
	pool, err := checkedAdd(treasury.PoolBalance, amount)
	if err != nil {
		return 0, err
	}
	total, err := checkedAdd(treasury.TotalContributed, amount)
	if err != nil {
		return 0, err
	}
	treasury.PoolBalance = pool
	treasury.TotalContributed = total
	treasury.ContributionCount++
	if err := l.state.PutContribution(addr, updated); err != nil {
		return 0, err
	}
	if err := l.state.PutTreasury(treasury); err != nil {
		return 0, err
	}
	return treasury.ContributionCount, nil
}

// CanFund reports whether the pool holds at least principal.
func (l TreasuryLedger) CanFund(principal *big.Int) (bool, error) {
	treasury, err := l.Load()
	if err != nil {
		return false, err
	}
	return treasury.PoolBalance.Cmp(principal) >= 0, nil
}

// Disburse removes principal from the pool and books it as outstanding.
func (l TreasuryLedger) Disburse(principal *big.Int) error {
	treasury, err := l.Load()
	if err != nil {
		return err
	}
	pool, ok := checkedSub(treasury.PoolBalance, principal)
	if !ok {
		return ErrInsufficientTreasury
	}
	outstanding, err := checkedAdd(treasury.OutstandingPrincipal, principal)
	if err != nil {
		return err
	}
	treasury.PoolBalance = pool
	treasury.OutstandingPrincipal = outstanding
	return l.state.PutTreasury(treasury)
}

// RecordRepayment returns amountDue to the pool and clears the principal.
func (l TreasuryLedger) RecordRepayment(principal, amountDue *big.Int) error {
	treasury, err := l.Load()
	if err != nil {
		return err
	}
	pool, err := checkedAdd(treasury.PoolBalance, amountDue)
	if err != nil {
		return err
	}
	repaid, err := checkedAdd(treasury.TotalRepaid, amountDue)
	if err != nil {
		return err
	}
	treasury.PoolBalance = pool
	treasury.TotalRepaid = repaid
	treasury.OutstandingPrincipal = settleOutstanding(treasury.OutstandingPrincipal, principal)
	return l.state.PutTreasury(treasury)
}

// AbsorbCollateral moves seized collateral into the pool and writes off the
// defaulted principal.
func (l TreasuryLedger) AbsorbCollateral(principal, collateral *big.Int) error {
	treasury, err := l.Load()
	if err != nil {
		return err
	}
	pool, err := checkedAdd(treasury.PoolBalance, collateral)
	if err != nil {
		return err
	}
	absorbed, err := checkedAdd(treasury.CollateralAbsorbed, collateral)
	if err != nil {
		return err
	}
	treasury.PoolBalance = pool
	treasury.CollateralAbsorbed = absorbed
	treasury.OutstandingPrincipal = settleOutstanding(treasury.OutstandingPrincipal, principal)
	return l.state.PutTreasury(treasury)
}

func settleOutstanding(outstanding, principal *big.Int) *big.Int {
	remaining, ok := checkedSub(outstanding, principal)
	if !ok {
		return big.NewInt(0)
	}
	return remaining
}

func normalizeTreasury(t *Treasury) {
	if t.PoolBalance == nil {
		t.PoolBalance = big.NewInt(0)
	}
	if t.TotalContributed == nil {
		t.TotalContributed = big.NewInt(0)
	}
	if t.TotalRepaid == nil {
		t.TotalRepaid = big.NewInt(0)
	}
	if t.CollateralAbsorbed == nil {
		t.CollateralAbsorbed = big.NewInt(0)
	}
	if t.OutstandingPrincipal == nil {
		t.OutstandingPrincipal = big.NewInt(0)
	}
}
