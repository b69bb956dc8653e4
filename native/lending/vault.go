package lending

import (
	"math/big"

	"microlend/crypto"
)

// CollateralVault holds each account's unencumbered collateral. Locked
// collateral lives on the loan record and is only tracked here in aggregate.
type CollateralVault struct {
	state engineState
}

func (v CollateralVault) Load() (*Vault, error) {
	vault, err := v.state.GetVault()
	if err != nil {
		return nil, err
	}
	if vault == nil {
		vault = &Vault{}
	}
	if vault.TotalUnencumbered == nil {
		vault.TotalUnencumbered = big.NewInt(0)
	}
	if vault.TotalLocked == nil {
		vault.TotalLocked = big.NewInt(0)
	}
	return vault, nil
}

// Balance returns the unencumbered collateral of addr.
func (v CollateralVault) Balance(addr crypto.Address) (*big.Int, error) {
	amount, err := v.state.GetCollateral(addr)
	if err != nil {
		return nil, err
	}
	return cloneAmount(amount), nil
}

// Deposit credits addr and returns the deposit sequence number, starting at 1.
func (v CollateralVault) Deposit(addr crypto.Address, amount *big.Int) (uint64, error) {
	vault, err := v.Load()
	if err != nil {
		return 0, err
	}
	balance, err := v.Balance(addr)
	if err != nil {
		return 0, err
	}
	updated, err := checkedAdd(balance, amount)
	if err != nil {
		return 0, err
	}
	total, err := checkedAdd(vault.TotalUnencumbered, amount)
	if err != nil {
		return 0, err
	}
	vault.TotalUnencumbered = total
	vault.DepositCount++
	if err := v.state.PutCollateral(addr, updated); err != nil {
		return 0, err
	}
	if err := v.state.PutVault(vault); err != nil {
		return 0, err
	}
	return vault.DepositCount, nil
}

// Withdraw debits unencumbered collateral and returns the remaining balance.
func (v CollateralVault) Withdraw(addr crypto.Address, amount *big.Int) (*big.Int, error) {
	vault, err := v.Load()
	if err != nil {
		return nil, err
	}
	balance, err := v.Balance(addr)
	if err != nil {
		return nil, err
	}
	remaining, ok := checkedSub(balance, amount)
	if !ok {
		return nil, ErrInsufficientCollateral
	}
	vault.TotalUnencumbered = settleOutstanding(vault.TotalUnencumbered, amount)
	if err := v.state.PutCollateral(addr, remaining); err != nil {
		return nil, err
	}
	if err := v.state.PutVault(vault); err != nil {
		return nil, err
	}
	return remaining, nil
}

// Lock moves amount from the unencumbered balance of addr into custody
// against a loan.
func (v CollateralVault) Lock(addr crypto.Address, amount *big.Int) error {
	vault, err := v.Load()
	if err != nil {
		return err
	}
	balance, err := v.Balance(addr)
	if err != nil {
		return err
	}
	remaining, ok := checkedSub(balance, amount)
	if !ok {
		return ErrInsufficientCollateral
	}
	locked, err := checkedAdd(vault.TotalLocked, amount)
	if err != nil {
		return err
	}
	vault.TotalLocked = locked
	vault.TotalUnencumbered = settleOutstanding(vault.TotalUnencumbered, amount)
	if err := v.state.PutCollateral(addr, remaining); err != nil {
		return err
	}
	return v.state.PutVault(vault)
}

// Release returns locked collateral to the unencumbered balance of addr.
func (v CollateralVault) Release(addr crypto.Address, amount *big.Int) error {
	vault, err := v.Load()
	if err != nil {
		return err
	}
	balance, err := v.Balance(addr)
	if err != nil {
		return err
	}
	updated, err := checkedAdd(balance, amount)
	if err != nil {
		return err
	}
	unencumbered, err := checkedAdd(vault.TotalUnencumbered, amount)
	if err != nil {
		return err
	}
	vault.TotalLocked = settleOutstanding(vault.TotalLocked, amount)
	vault.TotalUnencumbered = unencumbered
	if err := v.state.PutCollateral(addr, updated); err != nil {
		return err
	}
	return v.state.PutVault(vault)
}

// Seize drops locked collateral from custody. The caller is responsible for
// crediting it elsewhere.
func (v CollateralVault) Seize(amount *big.Int) error {
	vault, err := v.Load()
	if err != nil {
		return err
	}
	vault.TotalLocked = settleOutstanding(vault.TotalLocked, amount)
	return v.state.PutVault(vault)
}
