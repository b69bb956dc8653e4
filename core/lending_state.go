package core

import (
	"fmt"
	"math/big"

	lendstate "microlend/core/state"
	"microlend/crypto"
	"microlend/native/lending"
)

// lendingStateAdapter exposes the state manager through the persistence
// surface the lending engine expects.
type lendingStateAdapter struct {
	manager *lendstate.Manager
}

var errLendingStateUnavailable = fmt.Errorf("lending: state manager unavailable")

func (a *lendingStateAdapter) GetTreasury() (*lending.Treasury, error) {
	if a == nil || a.manager == nil {
		return nil, errLendingStateUnavailable
	}
	treasury, ok, err := a.manager.LendingGetTreasury()
	if err != nil || !ok {
		return nil, err
	}
	return treasury, nil
}

func (a *lendingStateAdapter) PutTreasury(treasury *lending.Treasury) error {
	if a == nil || a.manager == nil {
		return errLendingStateUnavailable
	}
	return a.manager.LendingPutTreasury(treasury)
}

func (a *lendingStateAdapter) GetVault() (*lending.Vault, error) {
	if a == nil || a.manager == nil {
		return nil, errLendingStateUnavailable
	}
	vault, ok, err := a.manager.LendingGetVault()
	if err != nil || !ok {
		return nil, err
	}
	return vault, nil
}

func (a *lendingStateAdapter) PutVault(vault *lending.Vault) error {
	if a == nil || a.manager == nil {
		return errLendingStateUnavailable
	}
	return a.manager.LendingPutVault(vault)
}

func (a *lendingStateAdapter) GetRegistry() (*lending.Registry, error) {
	if a == nil || a.manager == nil {
		return nil, errLendingStateUnavailable
	}
	registry, ok, err := a.manager.LendingGetRegistry()
	if err != nil || !ok {
		return nil, err
	}
	return registry, nil
}

func (a *lendingStateAdapter) PutRegistry(registry *lending.Registry) error {
	if a == nil || a.manager == nil {
		return errLendingStateUnavailable
	}
	return a.manager.LendingPutRegistry(registry)
}

func (a *lendingStateAdapter) GetContribution(addr crypto.Address) (*big.Int, error) {
	if a == nil || a.manager == nil {
		return nil, errLendingStateUnavailable
	}
	return a.manager.LendingContribution(addr)
}

func (a *lendingStateAdapter) PutContribution(addr crypto.Address, amount *big.Int) error {
	if a == nil || a.manager == nil {
		return errLendingStateUnavailable
	}
	return a.manager.LendingSetContribution(addr, amount)
}

func (a *lendingStateAdapter) GetCollateral(addr crypto.Address) (*big.Int, error) {
	if a == nil || a.manager == nil {
		return nil, errLendingStateUnavailable
	}
	return a.manager.LendingCollateral(addr)
}

func (a *lendingStateAdapter) PutCollateral(addr crypto.Address, amount *big.Int) error {
	if a == nil || a.manager == nil {
		return errLendingStateUnavailable
	}
	return a.manager.LendingSetCollateral(addr, amount)
}

func (a *lendingStateAdapter) GetLoan(id uint64) (*lending.Loan, bool, error) {
	if a == nil || a.manager == nil {
		return nil, false, errLendingStateUnavailable
	}
	return a.manager.LendingGetLoan(id)
}

func (a *lendingStateAdapter) PutLoan(loan *lending.Loan) error {
	if a == nil || a.manager == nil {
		return errLendingStateUnavailable
	}
	return a.manager.LendingPutLoan(loan)
}

func (a *lendingStateAdapter) IndexBorrowerLoan(addr crypto.Address, id uint64) error {
	if a == nil || a.manager == nil {
		return errLendingStateUnavailable
	}
	return a.manager.LendingIndexBorrowerLoan(addr, id)
}

func (a *lendingStateAdapter) BorrowerLoanIDs(addr crypto.Address) ([]uint64, error) {
	if a == nil || a.manager == nil {
		return nil, errLendingStateUnavailable
	}
	return a.manager.LendingBorrowerLoanIDs(addr)
}
