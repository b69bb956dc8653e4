package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"microlend/crypto"
	"microlend/native/lending"
)

var (
	lendingTreasuryKey        = []byte("lending/treasury")
	lendingVaultKey           = []byte("lending/vault")
	lendingRegistryKey        = []byte("lending/registry")
	lendingContributionPrefix = []byte("lending/contribution/")
	lendingCollateralPrefix   = []byte("lending/collateral/")
	lendingLoanPrefix         = []byte("lending/loan/")
	lendingBorrowerPrefix     = []byte("lending/borrower/")
)

type storedLoan struct {
	ID               uint64
	Borrower         []byte
	BorrowerPrefix   string
	Principal        *big.Int
	CollateralLocked *big.Int
	Interest         *big.Int
	StartHeight      uint64
	Duration         uint64
	DueHeight        uint64
	Status           uint8
	ClosedHeight     uint64
	ClosedBy         []byte
	ClosedByPrefix   string
}

func prefixedKey(prefix, suffix []byte) []byte {
	buf := make([]byte, len(prefix)+len(suffix))
	copy(buf, prefix)
	copy(buf[len(prefix):], suffix)
	return buf
}

func lendingLoanKey(id uint64) []byte {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], id)
	return prefixedKey(lendingLoanPrefix, raw[:])
}

func addressBytes(addr crypto.Address) ([]byte, error) {
	raw := addr.Bytes()
	if len(raw) != crypto.AddressLength {
		return nil, fmt.Errorf("lending: address must be %d bytes", crypto.AddressLength)
	}
	return raw, nil
}

func newStoredLoan(loan *lending.Loan) (*storedLoan, error) {
	borrower, err := addressBytes(loan.Borrower)
	if err != nil {
		return nil, err
	}
	stored := &storedLoan{
		ID:               loan.ID,
		Borrower:         borrower,
		BorrowerPrefix:   string(loan.Borrower.Prefix()),
		Principal:        amountOrZero(loan.Principal),
		CollateralLocked: amountOrZero(loan.CollateralLocked),
		Interest:         amountOrZero(loan.Interest),
		StartHeight:      loan.StartHeight,
		Duration:         loan.Duration,
		DueHeight:        loan.DueHeight,
		Status:           uint8(loan.Status),
		ClosedHeight:     loan.ClosedHeight,
	}
	if !loan.ClosedBy.IsZero() {
		stored.ClosedBy = loan.ClosedBy.Bytes()
		stored.ClosedByPrefix = string(loan.ClosedBy.Prefix())
	}
	return stored, nil
}

func (s *storedLoan) toLoan() (*lending.Loan, error) {
	if len(s.Borrower) != crypto.AddressLength {
		return nil, fmt.Errorf("lending: stored loan %d has malformed borrower", s.ID)
	}
	loan := &lending.Loan{
		ID:               s.ID,
		Borrower:         crypto.NewAddress(crypto.AddressPrefix(s.BorrowerPrefix), append([]byte(nil), s.Borrower...)),
		Principal:        amountOrZero(s.Principal),
		CollateralLocked: amountOrZero(s.CollateralLocked),
		Interest:         amountOrZero(s.Interest),
		StartHeight:      s.StartHeight,
		Duration:         s.Duration,
		DueHeight:        s.DueHeight,
		Status:           lending.LoanStatus(s.Status),
		ClosedHeight:     s.ClosedHeight,
	}
	if !loan.Status.Valid() {
		return nil, fmt.Errorf("lending: stored loan %d has invalid status %d", s.ID, s.Status)
	}
	if len(s.ClosedBy) == crypto.AddressLength {
		loan.ClosedBy = crypto.NewAddress(crypto.AddressPrefix(s.ClosedByPrefix), append([]byte(nil), s.ClosedBy...))
	}
	return loan, nil
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// LendingGetTreasury loads the pool snapshot.
func (m *Manager) LendingGetTreasury() (*lending.Treasury, bool, error) {
	treasury := new(lending.Treasury)
	ok, err := m.KVGet(lendingTreasuryKey, treasury)
	if err != nil || !ok {
		return nil, ok, err
	}
	return treasury, true, nil
}

// LendingPutTreasury persists the pool snapshot.
func (m *Manager) LendingPutTreasury(treasury *lending.Treasury) error {
	if treasury == nil {
		return fmt.Errorf("lending: treasury must not be nil")
	}
	return m.KVPut(lendingTreasuryKey, treasury.Clone())
}

// LendingGetVault loads aggregate collateral custody totals.
func (m *Manager) LendingGetVault() (*lending.Vault, bool, error) {
	vault := new(lending.Vault)
	ok, err := m.KVGet(lendingVaultKey, vault)
	if err != nil || !ok {
		return nil, ok, err
	}
	return vault, true, nil
}

// LendingPutVault persists aggregate collateral custody totals.
func (m *Manager) LendingPutVault(vault *lending.Vault) error {
	if vault == nil {
		return fmt.Errorf("lending: vault must not be nil")
	}
	return m.KVPut(lendingVaultKey, vault.Clone())
}

// LendingGetRegistry loads the loan sequence.
func (m *Manager) LendingGetRegistry() (*lending.Registry, bool, error) {
	registry := new(lending.Registry)
	ok, err := m.KVGet(lendingRegistryKey, registry)
	if err != nil || !ok {
		return nil, ok, err
	}
	return registry, true, nil
}

// LendingPutRegistry persists the loan sequence.
func (m *Manager) LendingPutRegistry(registry *lending.Registry) error {
	if registry == nil {
		return fmt.Errorf("lending: registry must not be nil")
	}
	return m.KVPut(lendingRegistryKey, registry)
}

func (m *Manager) lendingAmount(prefix []byte, addr crypto.Address) (*big.Int, error) {
	raw, err := addressBytes(addr)
	if err != nil {
		return nil, err
	}
	amount := new(big.Int)
	ok, err := m.KVGet(prefixedKey(prefix, raw), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) putLendingAmount(prefix []byte, addr crypto.Address, amount *big.Int) error {
	raw, err := addressBytes(addr)
	if err != nil {
		return err
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("lending: negative amount not allowed")
	}
	return m.KVPut(prefixedKey(prefix, raw), amount)
}

// LendingContribution returns the lifetime contribution of addr.
func (m *Manager) LendingContribution(addr crypto.Address) (*big.Int, error) {
	return m.lendingAmount(lendingContributionPrefix, addr)
}

// LendingSetContribution stores the lifetime contribution of addr.
func (m *Manager) LendingSetContribution(addr crypto.Address, amount *big.Int) error {
	return m.putLendingAmount(lendingContributionPrefix, addr, amount)
}

// LendingCollateral returns the unencumbered collateral of addr.
func (m *Manager) LendingCollateral(addr crypto.Address) (*big.Int, error) {
	return m.lendingAmount(lendingCollateralPrefix, addr)
}

// LendingSetCollateral stores the unencumbered collateral of addr.
func (m *Manager) LendingSetCollateral(addr crypto.Address, amount *big.Int) error {
	return m.putLendingAmount(lendingCollateralPrefix, addr, amount)
}

// LendingGetLoan loads a loan record by identifier.
func (m *Manager) LendingGetLoan(id uint64) (*lending.Loan, bool, error) {
	var stored storedLoan
	ok, err := m.KVGet(lendingLoanKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	loan, err := stored.toLoan()
	if err != nil {
		return nil, false, err
	}
	return loan, true, nil
}

// LendingPutLoan persists a loan record.
func (m *Manager) LendingPutLoan(loan *lending.Loan) error {
	if loan == nil {
		return fmt.Errorf("lending: loan must not be nil")
	}
	stored, err := newStoredLoan(loan)
	if err != nil {
		return err
	}
	return m.KVPut(lendingLoanKey(loan.ID), stored)
}

// LendingIndexBorrowerLoan records id under the borrower's loan index.
func (m *Manager) LendingIndexBorrowerLoan(addr crypto.Address, id uint64) error {
	raw, err := addressBytes(addr)
	if err != nil {
		return err
	}
	return m.KVAppendID(prefixedKey(lendingBorrowerPrefix, raw), id)
}

// LendingBorrowerLoanIDs lists the loans originated by addr in insertion order.
func (m *Manager) LendingBorrowerLoanIDs(addr crypto.Address) ([]uint64, error) {
	raw, err := addressBytes(addr)
	if err != nil {
		return nil, err
	}
	return m.KVIDs(prefixedKey(lendingBorrowerPrefix, raw))
}
